package llm

import (
	"encoding/json"
	"fmt"
	"strings"
)

// Role is the author of a conversation message.
type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleTool      Role = "tool"
)

// ContentPart is one typed piece of a Message.
type ContentPart interface {
	ContentType() string
}

type TextContent struct {
	Text    string           `json:"text"`
	Options ProviderMetadata `json:"options,omitempty"`
}

// FileContent holds either a URL (including data URLs) or base64 data in Data.
type FileContent struct {
	MediaType string           `json:"mediaType"`
	FileName  string           `json:"fileName,omitempty"`
	Data      string           `json:"data"`
	Options   ProviderMetadata `json:"options,omitempty"`
}

type ReasoningContent struct {
	Text    string           `json:"text"`
	Options ProviderMetadata `json:"options,omitempty"`
}

type ToolCallContent struct {
	ID               string           `json:"id"`
	Name             string           `json:"name"`
	Params           json.RawMessage  `json:"params"`
	ProviderExecuted bool             `json:"providerExecuted,omitempty"`
	Options          ProviderMetadata `json:"options,omitempty"`
}

type ToolResultContent struct {
	ID               string           `json:"id"`
	Name             string           `json:"name"`
	Result           json.RawMessage  `json:"result"`
	IsFailure        bool             `json:"isFailure,omitempty"`
	ProviderExecuted bool             `json:"providerExecuted,omitempty"`
	Options          ProviderMetadata `json:"options,omitempty"`
}

func (TextContent) ContentType() string       { return "text" }
func (FileContent) ContentType() string       { return "file" }
func (ReasoningContent) ContentType() string  { return "reasoning" }
func (ToolCallContent) ContentType() string   { return "tool-call" }
func (ToolResultContent) ContentType() string { return "tool-result" }

// Message is a single entry of a Prompt. MessageID is the persistence id
// assigned when an assistant message is saved to chat history.
type Message struct {
	Role      Role
	Content   []ContentPart
	MessageID string
	Options   ProviderMetadata
}

func NewSystemMessage(text string) Message {
	return Message{Role: RoleSystem, Content: []ContentPart{TextContent{Text: text}}}
}

func NewUserMessage(parts ...ContentPart) Message {
	return Message{Role: RoleUser, Content: parts}
}

func NewAssistantMessage(parts ...ContentPart) Message {
	return Message{Role: RoleAssistant, Content: parts}
}

func NewToolMessage(parts ...ToolResultContent) Message {
	content := make([]ContentPart, len(parts))
	for i, p := range parts {
		content[i] = p
	}
	return Message{Role: RoleTool, Content: content}
}

// Text concatenates the message's text parts.
func (m Message) Text() string {
	var b strings.Builder
	for _, p := range m.Content {
		if t, ok := p.(TextContent); ok {
			b.WriteString(t.Text)
		}
	}
	return b.String()
}

type messageJSON struct {
	Role      Role              `json:"role"`
	Content   []json.RawMessage `json:"content"`
	MessageID string            `json:"messageId,omitempty"`
	Options   ProviderMetadata  `json:"options,omitempty"`
}

func (m Message) MarshalJSON() ([]byte, error) {
	out := messageJSON{Role: m.Role, MessageID: m.MessageID, Options: m.Options}
	out.Content = make([]json.RawMessage, 0, len(m.Content))
	for _, p := range m.Content {
		raw, err := marshalContent(p)
		if err != nil {
			return nil, err
		}
		out.Content = append(out.Content, raw)
	}
	return json.Marshal(out)
}

func (m *Message) UnmarshalJSON(data []byte) error {
	var in messageJSON
	if err := json.Unmarshal(data, &in); err != nil {
		return err
	}
	m.Role = in.Role
	m.MessageID = in.MessageID
	m.Options = in.Options
	m.Content = make([]ContentPart, 0, len(in.Content))
	for _, raw := range in.Content {
		p, err := unmarshalContent(raw)
		if err != nil {
			return err
		}
		m.Content = append(m.Content, p)
	}
	return nil
}

func marshalContent(p ContentPart) ([]byte, error) {
	body, err := json.Marshal(p)
	if err != nil {
		return nil, err
	}
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(body, &fields); err != nil {
		return nil, err
	}
	fields["type"], _ = json.Marshal(p.ContentType())
	return json.Marshal(fields)
}

func unmarshalContent(raw json.RawMessage) (ContentPart, error) {
	var head struct {
		Type string `json:"type"`
	}
	if err := json.Unmarshal(raw, &head); err != nil {
		return nil, err
	}
	switch head.Type {
	case "text":
		var p TextContent
		err := json.Unmarshal(raw, &p)
		return p, err
	case "file":
		var p FileContent
		err := json.Unmarshal(raw, &p)
		return p, err
	case "reasoning":
		var p ReasoningContent
		err := json.Unmarshal(raw, &p)
		return p, err
	case "tool-call":
		var p ToolCallContent
		err := json.Unmarshal(raw, &p)
		return p, err
	case "tool-result":
		var p ToolResultContent
		err := json.Unmarshal(raw, &p)
		return p, err
	default:
		return nil, fmt.Errorf("unknown content part type %q", head.Type)
	}
}

// Prompt is an ordered list of messages. Methods return new prompts and never
// mutate the receiver's backing array.
type Prompt struct {
	Messages []Message `json:"messages"`
}

func NewPrompt(messages ...Message) Prompt {
	return Prompt{Messages: messages}
}

func (p Prompt) IsEmpty() bool { return len(p.Messages) == 0 }

// Last returns the most recent message.
func (p Prompt) Last() (Message, bool) {
	if len(p.Messages) == 0 {
		return Message{}, false
	}
	return p.Messages[len(p.Messages)-1], true
}

// Concat returns p followed by the messages of other.
func (p Prompt) Concat(other Prompt) Prompt {
	out := make([]Message, 0, len(p.Messages)+len(other.Messages))
	out = append(out, p.Messages...)
	out = append(out, other.Messages...)
	return Prompt{Messages: out}
}

// SetSystem replaces the system message, or prepends one if there is none.
func (p Prompt) SetSystem(text string) Prompt {
	out := make([]Message, 0, len(p.Messages)+1)
	out = append(out, NewSystemMessage(text))
	for _, m := range p.Messages {
		if m.Role != RoleSystem {
			out = append(out, m)
		}
	}
	return Prompt{Messages: out}
}
