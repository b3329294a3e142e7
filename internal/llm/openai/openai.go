package openai

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sort"
	"strings"
	"time"

	"github.com/IMax153/netlify-ai-gateway/internal/llm"
	"github.com/IMax153/netlify-ai-gateway/internal/sse"
)

const DefaultBaseURL = "https://api.openai.com/v1"

// Provider streams from any OpenAI-compatible Chat Completions endpoint.
type Provider struct {
	client  *http.Client
	baseURL string
	apiKey  string
}

func NewProvider(baseURL, apiKey string) *Provider {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	return &Provider{
		client:  &http.Client{},
		baseURL: strings.TrimSuffix(baseURL, "/"),
		apiKey:  apiKey,
	}
}

type chatRequest struct {
	Model         string         `json:"model"`
	Messages      []chatMessage  `json:"messages"`
	Tools         []chatTool     `json:"tools,omitempty"`
	Stream        bool           `json:"stream"`
	StreamOptions *streamOptions `json:"stream_options,omitempty"`
}

type streamOptions struct {
	IncludeUsage bool `json:"include_usage"`
}

type chatMessage struct {
	Role       string     `json:"role"`
	Content    any        `json:"content,omitempty"`
	ToolCalls  []toolCall `json:"tool_calls,omitempty"`
	ToolCallID string     `json:"tool_call_id,omitempty"`
}

type contentPart struct {
	Type     string    `json:"type"`
	Text     string    `json:"text,omitempty"`
	ImageURL *imageURL `json:"image_url,omitempty"`
}

type imageURL struct {
	URL string `json:"url"`
}

type toolCall struct {
	ID       string       `json:"id"`
	Type     string       `json:"type"`
	Function functionCall `json:"function"`
}

type functionCall struct {
	Name      string `json:"name"`
	Arguments string `json:"arguments"`
}

type chatTool struct {
	Type     string       `json:"type"`
	Function toolFunction `json:"function"`
}

type toolFunction struct {
	Name        string         `json:"name"`
	Description string         `json:"description,omitempty"`
	Parameters  llm.JSONSchema `json:"parameters"`
}

type streamChunk struct {
	ID      string `json:"id"`
	Model   string `json:"model"`
	Created int64  `json:"created"`
	Choices []struct {
		Delta struct {
			Content          string          `json:"content"`
			ReasoningContent string          `json:"reasoning_content"`
			ToolCalls        []toolCallDelta `json:"tool_calls"`
		} `json:"delta"`
		FinishReason *string `json:"finish_reason"`
	} `json:"choices"`
	Usage *struct {
		PromptTokens     int64 `json:"prompt_tokens"`
		CompletionTokens int64 `json:"completion_tokens"`
		TotalTokens      int64 `json:"total_tokens"`
	} `json:"usage"`
	Error *struct {
		Message string `json:"message"`
		Type    string `json:"type"`
	} `json:"error"`
}

type toolCallDelta struct {
	Index    int    `json:"index"`
	ID       string `json:"id"`
	Function struct {
		Name      string `json:"name"`
		Arguments string `json:"arguments"`
	} `json:"function"`
}

func (p *Provider) Stream(ctx context.Context, req *llm.Request, ch chan<- llm.StreamPart) error {
	defer close(ch)

	messages, err := toChatMessages(req.Prompt)
	if err != nil {
		return err
	}
	body, err := json.Marshal(chatRequest{
		Model:         req.Model,
		Messages:      messages,
		Tools:         toChatTools(req.Tools),
		Stream:        true,
		StreamOptions: &streamOptions{IncludeUsage: true},
	})
	if err != nil {
		return fmt.Errorf("could not marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, p.baseURL+"/chat/completions", bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("could not create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Accept", "text/event-stream")
	if p.apiKey != "" {
		httpReq.Header.Set("Authorization", "Bearer "+p.apiKey)
	}

	resp, err := p.client.Do(httpReq)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		bodyBytes, _ := io.ReadAll(resp.Body)
		return &llm.StatusError{Provider: "openai", StatusCode: resp.StatusCode, Body: string(bodyBytes)}
	}

	s := &streamState{ctx: ctx, ch: ch, calls: map[int]*pendingCall{}}
	scanner := sse.NewScanner(resp.Body)
	for scanner.Next() {
		event := scanner.Event()
		if event.IsDone() {
			break
		}
		var chunk streamChunk
		if err := json.Unmarshal([]byte(event.Data), &chunk); err != nil {
			return fmt.Errorf("failed to decode stream chunk: %w", err)
		}
		if chunk.Error != nil {
			return fmt.Errorf("openai: %s: %s", chunk.Error.Type, chunk.Error.Message)
		}
		if err := s.handle(chunk); err != nil {
			return err
		}
	}
	if err := scanner.Err(); err != nil {
		return err
	}
	return s.finish()
}

type pendingCall struct {
	id   string
	name string
	args strings.Builder
}

type streamState struct {
	ctx          context.Context
	ch           chan<- llm.StreamPart
	started      bool
	spans        int
	textID       string
	reasoningID  string
	calls        map[int]*pendingCall
	finishReason *string
	usage        llm.Usage
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
		meta := llm.ResponseMetadataPart{ID: chunk.ID, ModelID: chunk.Model}
		if chunk.Created > 0 {
			meta.Timestamp = time.Unix(chunk.Created, 0).UTC()
		}
		if err := s.send(meta); err != nil {
			return err
		}
	}
	if chunk.Usage != nil {
		s.usage = llm.Usage{
			InputTokens:  chunk.Usage.PromptTokens,
			OutputTokens: chunk.Usage.CompletionTokens,
			TotalTokens:  chunk.Usage.TotalTokens,
		}
	}
	if len(chunk.Choices) == 0 {
		return nil
	}

	choice := chunk.Choices[0]
	if choice.FinishReason != nil {
		s.finishReason = choice.FinishReason
	}

	if d := choice.Delta.ReasoningContent; d != "" {
		if err := s.closeText(); err != nil {
			return err
		}
		if s.reasoningID == "" {
			s.reasoningID = s.nextID("reasoning")
			if err := s.send(llm.ReasoningStartPart{ID: s.reasoningID}); err != nil {
				return err
			}
		}
		if err := s.send(llm.ReasoningDeltaPart{ID: s.reasoningID, Delta: d}); err != nil {
			return err
		}
	}

	if d := choice.Delta.Content; d != "" {
		if err := s.closeReasoning(); err != nil {
			return err
		}
		if s.textID == "" {
			s.textID = s.nextID("text")
			if err := s.send(llm.TextStartPart{ID: s.textID}); err != nil {
				return err
			}
		}
		if err := s.send(llm.TextDeltaPart{ID: s.textID, Delta: d}); err != nil {
			return err
		}
	}

	for _, tc := range choice.Delta.ToolCalls {
		call, ok := s.calls[tc.Index]
		if !ok {
			if err := s.closeReasoning(); err != nil {
				return err
			}
			if err := s.closeText(); err != nil {
				return err
			}
			call = &pendingCall{id: tc.ID, name: tc.Function.Name}
			if call.id == "" {
				call.id = fmt.Sprintf("call_%d", tc.Index)
			}
			s.calls[tc.Index] = call
			if err := s.send(llm.ToolParamsStartPart{ID: call.id, Name: call.name}); err != nil {
				return err
			}
		}
		if tc.Function.Arguments != "" {
			call.args.WriteString(tc.Function.Arguments)
			if err := s.send(llm.ToolParamsDeltaPart{ID: call.id, Delta: tc.Function.Arguments}); err != nil {
				return err
			}
		}
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

func (s *streamState) finish() error {
	if err := s.closeReasoning(); err != nil {
		return err
	}
	if err := s.closeText(); err != nil {
		return err
	}

	indexes := make([]int, 0, len(s.calls))
	for i := range s.calls {
		indexes = append(indexes, i)
	}
	sort.Ints(indexes)
	for _, i := range indexes {
		call := s.calls[i]
		if err := s.send(llm.ToolParamsEndPart{ID: call.id}); err != nil {
			return err
		}
		part := llm.ToolCallPart{ID: call.id, Name: call.name, Params: llm.RawParams(json.RawMessage(call.args.String()))}
		if err := s.send(part); err != nil {
			return err
		}
	}

	return s.send(llm.FinishPart{Reason: mapFinishReason(s.finishReason), Usage: s.usage})
}

func mapFinishReason(reason *string) llm.FinishReason {
	if reason == nil {
		return llm.FinishUnknown
	}
	switch *reason {
	case "stop":
		return llm.FinishStop
	case "length":
		return llm.FinishLength
	case "tool_calls", "function_call":
		return llm.FinishToolCalls
	case "content_filter":
		return llm.FinishContentFilter
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

func toChatMessages(prompt llm.Prompt) ([]chatMessage, error) {
	var out []chatMessage
	for _, m := range prompt.Messages {
		switch m.Role {
		case llm.RoleSystem:
			out = append(out, chatMessage{Role: "system", Content: m.Text()})
		case llm.RoleUser:
			var parts []contentPart
			for _, p := range m.Content {
				switch c := p.(type) {
				case llm.TextContent:
					parts = append(parts, contentPart{Type: "text", Text: c.Text})
				case llm.FileContent:
					if !strings.HasPrefix(c.MediaType, "image/") {
						return nil, fmt.Errorf("openai: unsupported file media type %q", c.MediaType)
					}
					url := c.Data
					if !strings.Contains(url, ":") {
						url = "data:" + c.MediaType + ";base64," + url
					}
					parts = append(parts, contentPart{Type: "image_url", ImageURL: &imageURL{URL: url}})
				}
			}
			out = append(out, chatMessage{Role: "user", Content: parts})
		case llm.RoleAssistant:
			msg := chatMessage{Role: "assistant"}
			var text strings.Builder
			var toolResults []chatMessage
			for _, p := range m.Content {
				switch c := p.(type) {
				case llm.TextContent:
					text.WriteString(c.Text)
				case llm.ToolCallContent:
					msg.ToolCalls = append(msg.ToolCalls, toolCall{
						ID:       c.ID,
						Type:     "function",
						Function: functionCall{Name: c.Name, Arguments: string(llm.RawParams(c.Params))},
					})
				case llm.ToolResultContent:
					// Provider-executed results have no assistant-side slot in
					// Chat Completions; replay them as tool messages.
					toolResults = append(toolResults, chatMessage{Role: "tool", ToolCallID: c.ID, Content: llm.ResultText(c.Result)})
				}
			}
			if text.Len() > 0 {
				msg.Content = text.String()
			}
			out = append(out, msg)
			out = append(out, toolResults...)
		case llm.RoleTool:
			for _, p := range m.Content {
				if r, ok := p.(llm.ToolResultContent); ok {
					out = append(out, chatMessage{Role: "tool", ToolCallID: r.ID, Content: llm.ResultText(r.Result)})
				}
			}
		}
	}
	return out, nil
}
