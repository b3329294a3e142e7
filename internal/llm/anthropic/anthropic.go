package anthropic

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"

	"github.com/IMax153/netlify-ai-gateway/internal/llm"
)

const (
	providerName     = "anthropic"
	defaultMaxTokens = 4096
)

// Provider streams completions from the Anthropic Messages API.
type Provider struct {
	client *anthropic.Client
}

func NewProvider(apiKey string, opts ...option.RequestOption) *Provider {
	client := anthropic.NewClient(append([]option.RequestOption{option.WithAPIKey(apiKey)}, opts...)...)
	return &Provider{client: &client}
}

type signatureMetadata struct {
	Signature string `json:"signature"`
}

func (p *Provider) Stream(ctx context.Context, req *llm.Request, ch chan<- llm.StreamPart) error {
	defer close(ch)

	params, err := buildParams(req)
	if err != nil {
		return err
	}

	stream := p.client.Messages.NewStreaming(ctx, params)
	defer stream.Close()

	s := &streamState{ctx: ctx, ch: ch, blocks: map[int64]*block{}}
	message := anthropic.Message{}
	for stream.Next() {
		event := stream.Current()
		if err := message.Accumulate(event); err != nil {
			return fmt.Errorf("failed to accumulate message: %w", err)
		}
		if err := s.handle(event); err != nil {
			return err
		}
	}
	if err := stream.Err(); err != nil {
		return fmt.Errorf("anthropic streaming error: %w", err)
	}

	return llm.Send(ctx, ch, llm.FinishPart{
		Reason: mapStopReason(string(message.StopReason)),
		Usage: llm.Usage{
			InputTokens:  message.Usage.InputTokens,
			OutputTokens: message.Usage.OutputTokens,
			TotalTokens:  message.Usage.InputTokens + message.Usage.OutputTokens,
		},
	})
}

type block struct {
	kind      string
	id        string
	name      string
	input     strings.Builder
	signature string
}

type streamState struct {
	ctx    context.Context
	ch     chan<- llm.StreamPart
	blocks map[int64]*block
}

func (s *streamState) send(part llm.StreamPart) error {
	return llm.Send(s.ctx, s.ch, part)
}

func (s *streamState) handle(event anthropic.MessageStreamEventUnion) error {
	switch e := event.AsAny().(type) {
	case anthropic.MessageStartEvent:
		return s.send(llm.ResponseMetadataPart{ID: e.Message.ID, ModelID: string(e.Message.Model)})

	case anthropic.ContentBlockStartEvent:
		b := &block{kind: string(e.ContentBlock.Type)}
		s.blocks[e.Index] = b
		switch b.kind {
		case "text":
			b.id = fmt.Sprintf("text-%d", e.Index)
			return s.send(llm.TextStartPart{ID: b.id})
		case "thinking":
			b.id = fmt.Sprintf("reasoning-%d", e.Index)
			return s.send(llm.ReasoningStartPart{ID: b.id})
		case "tool_use":
			b.id = e.ContentBlock.ID
			b.name = e.ContentBlock.Name
			return s.send(llm.ToolParamsStartPart{ID: b.id, Name: b.name})
		}

	case anthropic.ContentBlockDeltaEvent:
		b, ok := s.blocks[e.Index]
		if !ok {
			return nil
		}
		switch e.Delta.Type {
		case "text_delta":
			return s.send(llm.TextDeltaPart{ID: b.id, Delta: e.Delta.Text})
		case "thinking_delta":
			return s.send(llm.ReasoningDeltaPart{ID: b.id, Delta: e.Delta.Thinking})
		case "signature_delta":
			b.signature += e.Delta.Signature
		case "input_json_delta":
			if e.Delta.PartialJSON == "" {
				return nil
			}
			b.input.WriteString(e.Delta.PartialJSON)
			return s.send(llm.ToolParamsDeltaPart{ID: b.id, Delta: e.Delta.PartialJSON})
		}

	case anthropic.ContentBlockStopEvent:
		b, ok := s.blocks[e.Index]
		if !ok {
			return nil
		}
		delete(s.blocks, e.Index)
		switch b.kind {
		case "text":
			return s.send(llm.TextEndPart{ID: b.id})
		case "thinking":
			var meta llm.ProviderMetadata
			if b.signature != "" {
				raw, err := json.Marshal(signatureMetadata{Signature: b.signature})
				if err != nil {
					return err
				}
				meta = llm.ProviderMetadata{providerName: raw}
			}
			return s.send(llm.ReasoningEndPart{ID: b.id, Metadata: meta})
		case "tool_use":
			if err := s.send(llm.ToolParamsEndPart{ID: b.id}); err != nil {
				return err
			}
			return s.send(llm.ToolCallPart{ID: b.id, Name: b.name, Params: llm.RawParams(json.RawMessage(b.input.String()))})
		}
	}
	return nil
}

func mapStopReason(reason string) llm.FinishReason {
	switch reason {
	case "end_turn", "stop_sequence":
		return llm.FinishStop
	case "max_tokens":
		return llm.FinishLength
	case "tool_use":
		return llm.FinishToolCalls
	case "pause_turn":
		return llm.FinishPause
	case "refusal":
		return llm.FinishContentFilter
	case "":
		return llm.FinishUnknown
	default:
		return llm.FinishOther
	}
}

func buildParams(req *llm.Request) (anthropic.MessageNewParams, error) {
	params := anthropic.MessageNewParams{
		Model:     anthropic.Model(req.Model),
		MaxTokens: defaultMaxTokens,
	}

	var system []string
	for _, m := range req.Prompt.Messages {
		switch m.Role {
		case llm.RoleSystem:
			system = append(system, m.Text())
		case llm.RoleUser:
			blocks, err := userBlocks(m)
			if err != nil {
				return params, err
			}
			params.Messages = append(params.Messages, anthropic.NewUserMessage(blocks...))
		case llm.RoleAssistant:
			blocks, err := assistantBlocks(m)
			if err != nil {
				return params, err
			}
			if len(blocks) > 0 {
				params.Messages = append(params.Messages, anthropic.NewAssistantMessage(blocks...))
			}
		case llm.RoleTool:
			var blocks []anthropic.ContentBlockParamUnion
			for _, p := range m.Content {
				if r, ok := p.(llm.ToolResultContent); ok {
					blocks = append(blocks, anthropic.NewToolResultBlock(r.ID, llm.ResultText(r.Result), r.IsFailure))
				}
			}
			if len(blocks) > 0 {
				params.Messages = append(params.Messages, anthropic.NewUserMessage(blocks...))
			}
		}
	}
	if len(system) > 0 {
		params.System = []anthropic.TextBlockParam{{Type: "text", Text: strings.Join(system, "\n\n")}}
	}

	for _, def := range req.Tools {
		params.Tools = append(params.Tools, toolParam(def))
	}
	return params, nil
}

func userBlocks(m llm.Message) ([]anthropic.ContentBlockParamUnion, error) {
	var blocks []anthropic.ContentBlockParamUnion
	for _, p := range m.Content {
		switch c := p.(type) {
		case llm.TextContent:
			blocks = append(blocks, anthropic.NewTextBlock(c.Text))
		case llm.FileContent:
			if !strings.HasPrefix(c.MediaType, "image/") {
				return nil, fmt.Errorf("anthropic: unsupported file media type %q", c.MediaType)
			}
			data := c.Data
			if _, b64, ok := llm.ParseDataURL(c.Data); ok {
				data = b64
			}
			blocks = append(blocks, anthropic.NewImageBlockBase64(c.MediaType, data))
		}
	}
	return blocks, nil
}

func assistantBlocks(m llm.Message) ([]anthropic.ContentBlockParamUnion, error) {
	var blocks []anthropic.ContentBlockParamUnion
	for _, p := range m.Content {
		switch c := p.(type) {
		case llm.TextContent:
			if c.Text != "" {
				blocks = append(blocks, anthropic.NewTextBlock(c.Text))
			}
		case llm.ReasoningContent:
			// Thinking blocks can only be replayed with their signature.
			var meta signatureMetadata
			if raw, ok := c.Options[providerName]; ok {
				if err := json.Unmarshal(raw, &meta); err != nil {
					return nil, fmt.Errorf("anthropic: invalid reasoning metadata: %w", err)
				}
			}
			if meta.Signature != "" {
				blocks = append(blocks, anthropic.NewThinkingBlock(meta.Signature, c.Text))
			}
		case llm.ToolCallContent:
			var input any
			if err := json.Unmarshal(llm.ObjectParams(c.Params), &input); err != nil {
				return nil, fmt.Errorf("anthropic: invalid tool input for %s: %w", c.ID, err)
			}
			blocks = append(blocks, anthropic.NewToolUseBlock(c.ID, input, c.Name))
		}
	}
	return blocks, nil
}

func toolParam(def llm.ToolDefinition) anthropic.ToolUnionParam {
	schema := anthropic.ToolInputSchemaParam{
		Properties:  def.Parameters["properties"],
		ExtraFields: map[string]any{},
	}
	switch required := def.Parameters["required"].(type) {
	case []string:
		schema.Required = required
	case []any:
		for _, v := range required {
			if s, ok := v.(string); ok {
				schema.Required = append(schema.Required, s)
			}
		}
	}
	for key, value := range def.Parameters {
		if key != "type" && key != "properties" && key != "required" {
			schema.ExtraFields[key] = value
		}
	}

	tool := anthropic.ToolUnionParamOfTool(schema, def.Name)
	if def.Description != "" && tool.OfTool != nil {
		tool.OfTool.Description = anthropic.String(def.Description)
	}
	return tool
}
