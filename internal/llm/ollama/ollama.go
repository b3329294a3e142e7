package ollama

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/IMax153/netlify-ai-gateway/internal/llm"
)

const maxLineSize = 5 * 1024 * 1024

// Provider streams completions from an Ollama server's /api/chat endpoint.
type Provider struct {
	client *http.Client
	url    string
}

func NewProvider(url string) *Provider {
	return &Provider{
		client: &http.Client{},
		url:    strings.TrimSuffix(url, "/"),
	}
}

type chatRequest struct {
	Model    string        `json:"model"`
	Messages []chatMessage `json:"messages"`
	Tools    []chatTool    `json:"tools,omitempty"`
	Stream   bool          `json:"stream"`
}

type chatMessage struct {
	Role      string     `json:"role"`
	Content   string     `json:"content"`
	Thinking  string     `json:"thinking,omitempty"`
	Images    []string   `json:"images,omitempty"`
	ToolCalls []toolCall `json:"tool_calls,omitempty"`
	ToolName  string     `json:"tool_name,omitempty"`
}

type toolCall struct {
	Function struct {
		Name      string          `json:"name"`
		Arguments json.RawMessage `json:"arguments"`
	} `json:"function"`
}

type chatTool struct {
	Type     string       `json:"type"`
	Function toolFunction `json:"function"`
}

type toolFunction struct {
	Name        string         `json:"name"`
	Description string         `json:"description"`
	Parameters  llm.JSONSchema `json:"parameters"`
}

type streamChunk struct {
	Model           string      `json:"model"`
	CreatedAt       time.Time   `json:"created_at"`
	Message         chatMessage `json:"message"`
	Done            bool        `json:"done"`
	DoneReason      string      `json:"done_reason"`
	PromptEvalCount int64       `json:"prompt_eval_count"`
	EvalCount       int64       `json:"eval_count"`
	Error           string      `json:"error"`
}

func (p *Provider) Stream(ctx context.Context, req *llm.Request, ch chan<- llm.StreamPart) error {
	defer close(ch)

	body, err := json.Marshal(chatRequest{
		Model:    req.Model,
		Messages: toChatMessages(req.Prompt),
		Tools:    toChatTools(req.Tools),
		Stream:   true,
	})
	if err != nil {
		return fmt.Errorf("could not marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, p.url+"/api/chat", bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("could not create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := p.client.Do(httpReq)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		bodyBytes, _ := io.ReadAll(resp.Body)
		return &llm.StatusError{Provider: "ollama", StatusCode: resp.StatusCode, Body: string(bodyBytes)}
	}

	s := &streamState{ctx: ctx, ch: ch}
	scanner := bufio.NewScanner(resp.Body)
	scanner.Buffer(make([]byte, 0, 64*1024), maxLineSize)
	for scanner.Scan() {
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}
		var chunk streamChunk
		if err := json.Unmarshal(line, &chunk); err != nil {
			return fmt.Errorf("failed to decode stream chunk: %w", err)
		}
		if chunk.Error != "" {
			return fmt.Errorf("ollama: %s", chunk.Error)
		}
		if err := s.handle(chunk); err != nil {
			return err
		}
	}
	return scanner.Err()
}

// streamState turns Ollama's cumulative message chunks into spans.
type streamState struct {
	ctx          context.Context
	ch           chan<- llm.StreamPart
	started      bool
	textID       string
	reasoningID  string
	spans        int
	sawToolCalls bool
}

func (s *streamState) send(part llm.StreamPart) error {
	return llm.Send(s.ctx, s.ch, part)
}

func (s *streamState) nextID(prefix string) string {
	s.spans++
	return fmt.Sprintf("%s-%d", prefix, s.spans)
}

func (s *streamState) handle(chunk streamChunk) error {
	if !s.started {
		s.started = true
		if err := s.send(llm.ResponseMetadataPart{ID: uuid.NewString(), ModelID: chunk.Model, Timestamp: chunk.CreatedAt}); err != nil {
			return err
		}
	}

	if chunk.Message.Thinking != "" {
		if err := s.closeText(); err != nil {
			return err
		}
		if s.reasoningID == "" {
			s.reasoningID = s.nextID("reasoning")
			if err := s.send(llm.ReasoningStartPart{ID: s.reasoningID}); err != nil {
				return err
			}
		}
		if err := s.send(llm.ReasoningDeltaPart{ID: s.reasoningID, Delta: chunk.Message.Thinking}); err != nil {
			return err
		}
	}

	if chunk.Message.Content != "" {
		if err := s.closeReasoning(); err != nil {
			return err
		}
		if s.textID == "" {
			s.textID = s.nextID("text")
			if err := s.send(llm.TextStartPart{ID: s.textID}); err != nil {
				return err
			}
		}
		if err := s.send(llm.TextDeltaPart{ID: s.textID, Delta: chunk.Message.Content}); err != nil {
			return err
		}
	}

	if len(chunk.Message.ToolCalls) > 0 {
		if err := s.closeSpans(); err != nil {
			return err
		}
		for _, tc := range chunk.Message.ToolCalls {
			s.sawToolCalls = true
			part := llm.ToolCallPart{
				ID:     "call_" + uuid.NewString(),
				Name:   tc.Function.Name,
				Params: llm.RawParams(tc.Function.Arguments),
			}
			if err := s.send(part); err != nil {
				return err
			}
		}
	}

	if chunk.Done {
		if err := s.closeSpans(); err != nil {
			return err
		}
		return s.send(llm.FinishPart{
			Reason: s.finishReason(chunk.DoneReason),
			Usage: llm.Usage{
				InputTokens:  chunk.PromptEvalCount,
				OutputTokens: chunk.EvalCount,
				TotalTokens:  chunk.PromptEvalCount + chunk.EvalCount,
			},
		})
	}
	return nil
}

func (s *streamState) closeText() error {
	if s.textID == "" {
		return nil
	}
	id := s.textID
	s.textID = ""
	return s.send(llm.TextEndPart{ID: id})
}

func (s *streamState) closeReasoning() error {
	if s.reasoningID == "" {
		return nil
	}
	id := s.reasoningID
	s.reasoningID = ""
	return s.send(llm.ReasoningEndPart{ID: id})
}

func (s *streamState) closeSpans() error {
	if err := s.closeReasoning(); err != nil {
		return err
	}
	return s.closeText()
}

func (s *streamState) finishReason(doneReason string) llm.FinishReason {
	if s.sawToolCalls {
		return llm.FinishToolCalls
	}
	switch doneReason {
	case "stop", "":
		return llm.FinishStop
	case "length":
		return llm.FinishLength
	default:
		return llm.FinishOther
	}
}

func toChatTools(defs []llm.ToolDefinition) []chatTool {
	tools := make([]chatTool, 0, len(defs))
	for _, d := range defs {
		tools = append(tools, chatTool{
			Type:     "function",
			Function: toolFunction{Name: d.Name, Description: d.Description, Parameters: d.Parameters},
		})
	}
	return tools
}

func toChatMessages(prompt llm.Prompt) []chatMessage {
	var out []chatMessage
	for _, m := range prompt.Messages {
		switch m.Role {
		case llm.RoleSystem, llm.RoleUser:
			msg := chatMessage{Role: string(m.Role), Content: m.Text()}
			for _, p := range m.Content {
				if f, ok := p.(llm.FileContent); ok {
					if _, data, ok := llm.ParseDataURL(f.Data); ok {
						msg.Images = append(msg.Images, data)
					} else {
						msg.Images = append(msg.Images, f.Data)
					}
				}
			}
			out = append(out, msg)
		case llm.RoleAssistant:
			msg := chatMessage{Role: "assistant"}
			var text, thinking strings.Builder
			for _, p := range m.Content {
				switch c := p.(type) {
				case llm.TextContent:
					text.WriteString(c.Text)
				case llm.ReasoningContent:
					thinking.WriteString(c.Text)
				case llm.ToolCallContent:
					var tc toolCall
					tc.Function.Name = c.Name
					tc.Function.Arguments = llm.ObjectParams(c.Params)
					msg.ToolCalls = append(msg.ToolCalls, tc)
				}
			}
			msg.Content = text.String()
			msg.Thinking = thinking.String()
			out = append(out, msg)
		case llm.RoleTool:
			for _, p := range m.Content {
				if r, ok := p.(llm.ToolResultContent); ok {
					out = append(out, chatMessage{Role: "tool", ToolName: r.Name, Content: llm.ResultText(r.Result)})
				}
			}
		}
	}
	return out
}
