package uimessage

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/IMax153/netlify-ai-gateway/internal/llm"
)

type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// ToolState is the lifecycle state of a tool part.
type ToolState string

const (
	ToolInputStreaming  ToolState = "input-streaming"
	ToolInputAvailable  ToolState = "input-available"
	ToolOutputAvailable ToolState = "output-available"
	ToolOutputError     ToolState = "output-error"
)

// Message is the UI message exchanged with, and persisted for, the browser.
type Message struct {
	ID       string          `json:"id" validate:"required"`
	Role     Role            `json:"role" validate:"required,oneof=system user assistant"`
	Metadata json.RawMessage `json:"metadata,omitempty"`
	Parts    []Part          `json:"-"`
}

// Part is one entry of Message.Parts.
type Part interface {
	PartType() string
}

type StepStartPart struct{}

type TextPart struct {
	Text             string               `json:"text"`
	State            string               `json:"state,omitempty"`
	ProviderMetadata llm.ProviderMetadata `json:"providerMetadata,omitempty"`
}

type ReasoningPart struct {
	Text             string               `json:"text"`
	State            string               `json:"state,omitempty"`
	ProviderMetadata llm.ProviderMetadata `json:"providerMetadata,omitempty"`
}

type FilePart struct {
	MediaType        string               `json:"mediaType" validate:"required"`
	Filename         string               `json:"filename,omitempty"`
	URL              string               `json:"url" validate:"required"`
	ProviderMetadata llm.ProviderMetadata `json:"providerMetadata,omitempty"`
}

type SourceDocumentPart struct {
	SourceID         string               `json:"sourceId" validate:"required"`
	MediaType        string               `json:"mediaType"`
	Title            string               `json:"title"`
	Filename         string               `json:"filename,omitempty"`
	ProviderMetadata llm.ProviderMetadata `json:"providerMetadata,omitempty"`
}

type SourceURLPart struct {
	SourceID         string               `json:"sourceId" validate:"required"`
	URL              string               `json:"url" validate:"required"`
	Title            string               `json:"title,omitempty"`
	ProviderMetadata llm.ProviderMetadata `json:"providerMetadata,omitempty"`
}

// DataPart is sent with type "data-<Name>".
type DataPart struct {
	Name string          `json:"-"`
	ID   string          `json:"id,omitempty"`
	Data json.RawMessage `json:"data"`
}

// ToolPart is sent with type "tool-<ToolName>". Which fields are required
// depends on State; see Validate.
type ToolPart struct {
	ToolName             string               `json:"-"`
	ToolCallID           string               `json:"toolCallId"`
	State                ToolState            `json:"state"`
	Input                json.RawMessage      `json:"input,omitempty"`
	RawInput             json.RawMessage      `json:"rawInput,omitempty"`
	Output               json.RawMessage      `json:"output,omitempty"`
	ErrorText            string               `json:"errorText,omitempty"`
	ProviderExecuted     bool                 `json:"providerExecuted,omitempty"`
	CallProviderMetadata llm.ProviderMetadata `json:"callProviderMetadata,omitempty"`
	Preliminary          bool                 `json:"preliminary,omitempty"`
}

func (StepStartPart) PartType() string      { return "step-start" }
func (TextPart) PartType() string           { return "text" }
func (ReasoningPart) PartType() string      { return "reasoning" }
func (FilePart) PartType() string           { return "file" }
func (SourceDocumentPart) PartType() string { return "source-document" }
func (SourceURLPart) PartType() string      { return "source-url" }
func (p DataPart) PartType() string         { return "data-" + p.Name }
func (p ToolPart) PartType() string         { return "tool-" + p.ToolName }

// Validate checks the fields each state requires.
func (p ToolPart) Validate() error {
	if p.ToolName == "" {
		return fmt.Errorf("tool part is missing its tool name")
	}
	if p.ToolCallID == "" {
		return fmt.Errorf("tool-%s part is missing toolCallId", p.ToolName)
	}
	switch p.State {
	case ToolInputStreaming:
		return nil
	case ToolInputAvailable:
		if len(p.Input) == 0 {
			return fmt.Errorf("tool-%s part in state %s is missing input", p.ToolName, p.State)
		}
	case ToolOutputAvailable:
		if len(p.Input) == 0 || len(p.Output) == 0 {
			return fmt.Errorf("tool-%s part in state %s requires input and output", p.ToolName, p.State)
		}
	case ToolOutputError:
		if p.ErrorText == "" {
			return fmt.Errorf("tool-%s part in state %s is missing errorText", p.ToolName, p.State)
		}
	default:
		return fmt.Errorf("tool-%s part has unknown state %q", p.ToolName, p.State)
	}
	return nil
}

type messageJSON struct {
	ID       string            `json:"id"`
	Role     Role              `json:"role"`
	Metadata json.RawMessage   `json:"metadata,omitempty"`
	Parts    []json.RawMessage `json:"parts"`
}

func (m Message) MarshalJSON() ([]byte, error) {
	out := messageJSON{ID: m.ID, Role: m.Role, Metadata: m.Metadata, Parts: make([]json.RawMessage, 0, len(m.Parts))}
	for _, p := range m.Parts {
		raw, err := marshalPart(p)
		if err != nil {
			return nil, err
		}
		out.Parts = append(out.Parts, raw)
	}
	return json.Marshal(out)
}

func (m *Message) UnmarshalJSON(data []byte) error {
	var in messageJSON
	if err := json.Unmarshal(data, &in); err != nil {
		return err
	}
	m.ID = in.ID
	m.Role = in.Role
	m.Metadata = in.Metadata
	m.Parts = make([]Part, 0, len(in.Parts))
	for i, raw := range in.Parts {
		p, err := unmarshalPart(raw)
		if err != nil {
			return fmt.Errorf("part %d: %w", i, err)
		}
		m.Parts = append(m.Parts, p)
	}
	return nil
}

func marshalPart(p Part) ([]byte, error) {
	body, err := json.Marshal(p)
	if err != nil {
		return nil, err
	}
	fields := map[string]json.RawMessage{}
	if err := json.Unmarshal(body, &fields); err != nil {
		return nil, err
	}
	fields["type"], err = json.Marshal(p.PartType())
	if err != nil {
		return nil, err
	}
	return json.Marshal(fields)
}

func unmarshalPart(raw json.RawMessage) (Part, error) {
	var head typeOnly
	if err := json.Unmarshal(raw, &head); err != nil {
		return nil, err
	}
	switch head.Type {
	case "step-start":
		return StepStartPart{}, nil
	case "text":
		var p TextPart
		err := json.Unmarshal(raw, &p)
		return p, err
	case "reasoning":
		var p ReasoningPart
		err := json.Unmarshal(raw, &p)
		return p, err
	case "file":
		var p FilePart
		err := json.Unmarshal(raw, &p)
		return p, err
	case "source-document":
		var p SourceDocumentPart
		err := json.Unmarshal(raw, &p)
		return p, err
	case "source-url":
		var p SourceURLPart
		err := json.Unmarshal(raw, &p)
		return p, err
	}

	if name, ok := strings.CutPrefix(head.Type, "data-"); ok && name != "" {
		var p DataPart
		if err := json.Unmarshal(raw, &p); err != nil {
			return nil, err
		}
		p.Name = name
		return p, nil
	}
	if name, ok := strings.CutPrefix(head.Type, "tool-"); ok && name != "" {
		var p ToolPart
		if err := json.Unmarshal(raw, &p); err != nil {
			return nil, err
		}
		p.ToolName = name
		return p, nil
	}
	return nil, fmt.Errorf("unknown part type %q", head.Type)
}
