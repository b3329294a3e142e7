package conversation

import (
	"encoding/json"

	"github.com/google/uuid"

	"github.com/IMax153/netlify-ai-gateway/internal/llm"
	"github.com/IMax153/netlify-ai-gateway/internal/uimessage"
)

const defaultToolError = "Tool execution failed"

// FromUIMessages rebuilds a prompt from UI messages. Assistant messages are
// split at step-start boundaries; each step yields an assistant message and,
// when it holds client-executed tool results, a tool message. Tool parts that
// are still streaming their input are dropped. The UI message id becomes the
// MessageID of the last assistant message it produced.
func FromUIMessages(messages []uimessage.Message) llm.Prompt {
	var out []llm.Message
	for _, m := range messages {
		switch m.Role {
		case uimessage.RoleSystem:
			var text string
			for _, p := range m.Parts {
				if t, ok := p.(uimessage.TextPart); ok {
					text += t.Text
				}
			}
			out = append(out, llm.NewSystemMessage(text))

		case uimessage.RoleUser:
			var content []llm.ContentPart
			for _, p := range m.Parts {
				switch v := p.(type) {
				case uimessage.TextPart:
					content = append(content, llm.TextContent{Text: v.Text, Options: v.ProviderMetadata})
				case uimessage.FilePart:
					content = append(content, llm.FileContent{MediaType: v.MediaType, FileName: v.Filename, Data: v.URL, Options: v.ProviderMetadata})
				}
			}
			msg := llm.NewUserMessage(content...)
			msg.MessageID = m.ID
			out = append(out, msg)

		case uimessage.RoleAssistant:
			out = append(out, assistantSteps(m)...)
		}
	}
	return llm.NewPrompt(out...)
}

type step struct {
	assistant []llm.ContentPart
	results   []llm.ToolResultContent
}

func assistantSteps(m uimessage.Message) []llm.Message {
	var msgs []llm.Message
	lastAssistant := -1
	var cur step

	flush := func() {
		if len(cur.assistant) > 0 {
			msgs = append(msgs, llm.NewAssistantMessage(cur.assistant...))
			lastAssistant = len(msgs) - 1
		}
		if len(cur.results) > 0 {
			msgs = append(msgs, llm.NewToolMessage(cur.results...))
		}
		cur = step{}
	}

	for _, p := range m.Parts {
		switch v := p.(type) {
		case uimessage.StepStartPart:
			flush()
		case uimessage.TextPart:
			cur.assistant = append(cur.assistant, llm.TextContent{Text: v.Text, Options: v.ProviderMetadata})
		case uimessage.ReasoningPart:
			cur.assistant = append(cur.assistant, llm.ReasoningContent{Text: v.Text, Options: v.ProviderMetadata})
		case uimessage.FilePart:
			cur.assistant = append(cur.assistant, llm.FileContent{MediaType: v.MediaType, FileName: v.Filename, Data: v.URL, Options: v.ProviderMetadata})
		case uimessage.ToolPart:
			cur.addTool(v)
		}
	}
	flush()

	if lastAssistant >= 0 {
		msgs[lastAssistant].MessageID = m.ID
	}
	return msgs
}

func (s *step) addTool(p uimessage.ToolPart) {
	if p.State == uimessage.ToolInputStreaming {
		return
	}

	input := p.Input
	if len(input) == 0 && json.Valid(p.RawInput) {
		input = p.RawInput
	}
	s.assistant = append(s.assistant, llm.ToolCallContent{
		ID:               p.ToolCallID,
		Name:             p.ToolName,
		Params:           llm.RawParams(input),
		ProviderExecuted: p.ProviderExecuted,
		Options:          p.CallProviderMetadata,
	})

	var result llm.ToolResultContent
	switch p.State {
	case uimessage.ToolOutputAvailable:
		result = llm.ToolResultContent{ID: p.ToolCallID, Name: p.ToolName, Result: p.Output, ProviderExecuted: p.ProviderExecuted}
	case uimessage.ToolOutputError:
		errorText, _ := json.Marshal(p.ErrorText)
		result = llm.ToolResultContent{ID: p.ToolCallID, Name: p.ToolName, Result: errorText, IsFailure: true, ProviderExecuted: p.ProviderExecuted}
	default:
		return
	}

	if result.ProviderExecuted {
		s.assistant = append(s.assistant, result)
		return
	}
	s.results = append(s.results, result)
}

// ToUIMessages renders a prompt for the browser. Each run of assistant and
// tool messages becomes one UI assistant message with a step-start before
// every assistant message; tool results are folded into the tool part of
// their call. The run takes the MessageID of its last assistant message.
func ToUIMessages(prompt llm.Prompt) []uimessage.Message {
	var out []uimessage.Message
	var run *uimessage.Message
	calls := map[string]int{}

	flush := func() {
		if run == nil {
			return
		}
		if run.ID == "" {
			run.ID = uuid.NewString()
		}
		out = append(out, *run)
		run = nil
		calls = map[string]int{}
	}

	for _, m := range prompt.Messages {
		switch m.Role {
		case llm.RoleSystem:
			flush()
			out = append(out, uimessage.Message{
				ID:    idOrNew(m.MessageID),
				Role:  uimessage.RoleSystem,
				Parts: []uimessage.Part{uimessage.TextPart{Text: m.Text()}},
			})

		case llm.RoleUser:
			flush()
			parts := make([]uimessage.Part, 0, len(m.Content))
			for _, c := range m.Content {
				switch v := c.(type) {
				case llm.TextContent:
					parts = append(parts, uimessage.TextPart{Text: v.Text, ProviderMetadata: v.Options})
				case llm.FileContent:
					parts = append(parts, uimessage.FilePart{MediaType: v.MediaType, Filename: v.FileName, URL: v.Data, ProviderMetadata: v.Options})
				}
			}
			out = append(out, uimessage.Message{ID: idOrNew(m.MessageID), Role: uimessage.RoleUser, Parts: parts})

		case llm.RoleAssistant:
			if run == nil {
				run = &uimessage.Message{Role: uimessage.RoleAssistant}
			}
			if m.MessageID != "" {
				run.ID = m.MessageID
			}
			run.Parts = append(run.Parts, uimessage.StepStartPart{})
			for _, c := range m.Content {
				switch v := c.(type) {
				case llm.TextContent:
					run.Parts = append(run.Parts, uimessage.TextPart{Text: v.Text, State: "done", ProviderMetadata: v.Options})
				case llm.ReasoningContent:
					run.Parts = append(run.Parts, uimessage.ReasoningPart{Text: v.Text, State: "done", ProviderMetadata: v.Options})
				case llm.FileContent:
					run.Parts = append(run.Parts, uimessage.FilePart{MediaType: v.MediaType, Filename: v.FileName, URL: v.Data, ProviderMetadata: v.Options})
				case llm.ToolCallContent:
					calls[v.ID] = len(run.Parts)
					run.Parts = append(run.Parts, uimessage.ToolPart{
						ToolName:             v.Name,
						ToolCallID:           v.ID,
						State:                uimessage.ToolInputAvailable,
						Input:                llm.RawParams(v.Params),
						ProviderExecuted:     v.ProviderExecuted,
						CallProviderMetadata: v.Options,
					})
				case llm.ToolResultContent:
					applyResult(run, calls, v)
				}
			}

		case llm.RoleTool:
			if run == nil {
				continue
			}
			for _, c := range m.Content {
				if v, ok := c.(llm.ToolResultContent); ok {
					applyResult(run, calls, v)
				}
			}
		}
	}
	flush()
	return out
}

func applyResult(run *uimessage.Message, calls map[string]int, r llm.ToolResultContent) {
	i, ok := calls[r.ID]
	if !ok {
		return
	}
	part := run.Parts[i].(uimessage.ToolPart)
	if r.IsFailure {
		part.State = uimessage.ToolOutputError
		part.ErrorText = llm.ResultText(r.Result)
		if part.ErrorText == "" {
			part.ErrorText = defaultToolError
		}
	} else {
		part.State = uimessage.ToolOutputAvailable
		part.Output = r.Result
		if len(part.Output) == 0 {
			part.Output = json.RawMessage(`null`)
		}
	}
	run.Parts[i] = part
}

func idOrNew(id string) string {
	if id != "" {
		return id
	}
	return uuid.NewString()
}
