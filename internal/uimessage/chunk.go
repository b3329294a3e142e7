package uimessage

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/IMax153/netlify-ai-gateway/internal/llm"
)

// Chunk is one event of the UI message stream. Each implementation marshals
// itself with its "type" discriminator.
type Chunk interface {
	ChunkType() string
}

type StartChunk struct {
	MessageID       string          `json:"messageId,omitempty"`
	MessageMetadata json.RawMessage `json:"messageMetadata,omitempty"`
}

type StartStepChunk struct{}

type FinishStepChunk struct{}

type FinishChunk struct {
	MessageMetadata json.RawMessage `json:"messageMetadata,omitempty"`
}

type AbortChunk struct{}

type TextStartChunk struct {
	ID               string               `json:"id" validate:"required"`
	ProviderMetadata llm.ProviderMetadata `json:"providerMetadata,omitempty"`
}

type TextDeltaChunk struct {
	ID               string               `json:"id" validate:"required"`
	Delta            string               `json:"delta"`
	ProviderMetadata llm.ProviderMetadata `json:"providerMetadata,omitempty"`
}

type TextEndChunk struct {
	ID               string               `json:"id" validate:"required"`
	ProviderMetadata llm.ProviderMetadata `json:"providerMetadata,omitempty"`
}

type ReasoningStartChunk struct {
	ID               string               `json:"id" validate:"required"`
	ProviderMetadata llm.ProviderMetadata `json:"providerMetadata,omitempty"`
}

type ReasoningDeltaChunk struct {
	ID               string               `json:"id" validate:"required"`
	Delta            string               `json:"delta"`
	ProviderMetadata llm.ProviderMetadata `json:"providerMetadata,omitempty"`
}

type ReasoningEndChunk struct {
	ID               string               `json:"id" validate:"required"`
	ProviderMetadata llm.ProviderMetadata `json:"providerMetadata,omitempty"`
}

type ToolInputStartChunk struct {
	ToolCallID       string `json:"toolCallId" validate:"required"`
	ToolName         string `json:"toolName" validate:"required"`
	ProviderExecuted bool   `json:"providerExecuted,omitempty"`
	Dynamic          bool   `json:"dynamic,omitempty"`
}

type ToolInputDeltaChunk struct {
	ToolCallID     string `json:"toolCallId" validate:"required"`
	InputTextDelta string `json:"inputTextDelta"`
}

type ToolInputAvailableChunk struct {
	ToolCallID       string               `json:"toolCallId" validate:"required"`
	ToolName         string               `json:"toolName" validate:"required"`
	Input            json.RawMessage      `json:"input"`
	ProviderExecuted bool                 `json:"providerExecuted,omitempty"`
	ProviderMetadata llm.ProviderMetadata `json:"providerMetadata,omitempty"`
	Dynamic          bool                 `json:"dynamic,omitempty"`
}

type ToolInputErrorChunk struct {
	ToolCallID       string               `json:"toolCallId" validate:"required"`
	ToolName         string               `json:"toolName" validate:"required"`
	Input            json.RawMessage      `json:"input"`
	ErrorText        string               `json:"errorText" validate:"required"`
	ProviderExecuted bool                 `json:"providerExecuted,omitempty"`
	ProviderMetadata llm.ProviderMetadata `json:"providerMetadata,omitempty"`
	Dynamic          bool                 `json:"dynamic,omitempty"`
}

type ToolOutputAvailableChunk struct {
	ToolCallID       string          `json:"toolCallId" validate:"required"`
	Output           json.RawMessage `json:"output"`
	ProviderExecuted bool            `json:"providerExecuted,omitempty"`
	Preliminary      bool            `json:"preliminary,omitempty"`
	Dynamic          bool            `json:"dynamic,omitempty"`
}

type ToolOutputErrorChunk struct {
	ToolCallID       string `json:"toolCallId" validate:"required"`
	ErrorText        string `json:"errorText" validate:"required"`
	ProviderExecuted bool   `json:"providerExecuted,omitempty"`
	Dynamic          bool   `json:"dynamic,omitempty"`
}

// DataChunk is an application-defined side-channel payload. It is sent with
// type "data-<Name>".
type DataChunk struct {
	Name      string          `json:"-" validate:"required"`
	ID        string          `json:"id,omitempty"`
	Data      json.RawMessage `json:"data"`
	Transient bool            `json:"transient,omitempty"`
}

type SourceDocumentChunk struct {
	SourceID         string               `json:"sourceId" validate:"required"`
	MediaType        string               `json:"mediaType" validate:"required"`
	Title            string               `json:"title"`
	Filename         string               `json:"filename,omitempty"`
	ProviderMetadata llm.ProviderMetadata `json:"providerMetadata,omitempty"`
}

type SourceURLChunk struct {
	SourceID         string               `json:"sourceId" validate:"required"`
	URL              string               `json:"url" validate:"required"`
	Title            string               `json:"title,omitempty"`
	ProviderMetadata llm.ProviderMetadata `json:"providerMetadata,omitempty"`
}

type FileChunk struct {
	URL              string               `json:"url" validate:"required"`
	MediaType        string               `json:"mediaType" validate:"required"`
	ProviderMetadata llm.ProviderMetadata `json:"providerMetadata,omitempty"`
}

type MessageMetadataChunk struct {
	MessageMetadata json.RawMessage `json:"messageMetadata"`
}

type ErrorChunk struct {
	ErrorText string `json:"errorText"`
}

// NewDataChunk encodes data as the payload of a data-<name> chunk.
func NewDataChunk(name string, data any) (DataChunk, error) {
	raw, err := json.Marshal(data)
	if err != nil {
		return DataChunk{}, fmt.Errorf("failed to encode data-%s payload: %w", name, err)
	}
	return DataChunk{Name: name, Data: raw}, nil
}

func (StartChunk) ChunkType() string               { return "start" }
func (StartStepChunk) ChunkType() string           { return "start-step" }
func (FinishStepChunk) ChunkType() string          { return "finish-step" }
func (FinishChunk) ChunkType() string              { return "finish" }
func (AbortChunk) ChunkType() string               { return "abort" }
func (TextStartChunk) ChunkType() string           { return "text-start" }
func (TextDeltaChunk) ChunkType() string           { return "text-delta" }
func (TextEndChunk) ChunkType() string             { return "text-end" }
func (ReasoningStartChunk) ChunkType() string      { return "reasoning-start" }
func (ReasoningDeltaChunk) ChunkType() string      { return "reasoning-delta" }
func (ReasoningEndChunk) ChunkType() string        { return "reasoning-end" }
func (ToolInputStartChunk) ChunkType() string      { return "tool-input-start" }
func (ToolInputDeltaChunk) ChunkType() string      { return "tool-input-delta" }
func (ToolInputAvailableChunk) ChunkType() string  { return "tool-input-available" }
func (ToolInputErrorChunk) ChunkType() string      { return "tool-input-error" }
func (ToolOutputAvailableChunk) ChunkType() string { return "tool-output-available" }
func (ToolOutputErrorChunk) ChunkType() string     { return "tool-output-error" }
func (c DataChunk) ChunkType() string              { return "data-" + c.Name }
func (SourceDocumentChunk) ChunkType() string      { return "source-document" }
func (SourceURLChunk) ChunkType() string           { return "source-url" }
func (FileChunk) ChunkType() string                { return "file" }
func (MessageMetadataChunk) ChunkType() string     { return "message-metadata" }
func (ErrorChunk) ChunkType() string               { return "error" }

type typeOnly struct {
	Type string `json:"type"`
}

func (c StartChunk) MarshalJSON() ([]byte, error) {
	type alias StartChunk
	return json.Marshal(struct {
		Type string `json:"type"`
		alias
	}{c.ChunkType(), alias(c)})
}

func (c StartStepChunk) MarshalJSON() ([]byte, error) {
	return json.Marshal(typeOnly{c.ChunkType()})
}

func (c FinishStepChunk) MarshalJSON() ([]byte, error) {
	return json.Marshal(typeOnly{c.ChunkType()})
}

func (c FinishChunk) MarshalJSON() ([]byte, error) {
	type alias FinishChunk
	return json.Marshal(struct {
		Type string `json:"type"`
		alias
	}{c.ChunkType(), alias(c)})
}

func (c AbortChunk) MarshalJSON() ([]byte, error) {
	return json.Marshal(typeOnly{c.ChunkType()})
}

func (c TextStartChunk) MarshalJSON() ([]byte, error) {
	type alias TextStartChunk
	return json.Marshal(struct {
		Type string `json:"type"`
		alias
	}{c.ChunkType(), alias(c)})
}

func (c TextDeltaChunk) MarshalJSON() ([]byte, error) {
	type alias TextDeltaChunk
	return json.Marshal(struct {
		Type string `json:"type"`
		alias
	}{c.ChunkType(), alias(c)})
}

func (c TextEndChunk) MarshalJSON() ([]byte, error) {
	type alias TextEndChunk
	return json.Marshal(struct {
		Type string `json:"type"`
		alias
	}{c.ChunkType(), alias(c)})
}

func (c ReasoningStartChunk) MarshalJSON() ([]byte, error) {
	type alias ReasoningStartChunk
	return json.Marshal(struct {
		Type string `json:"type"`
		alias
	}{c.ChunkType(), alias(c)})
}

func (c ReasoningDeltaChunk) MarshalJSON() ([]byte, error) {
	type alias ReasoningDeltaChunk
	return json.Marshal(struct {
		Type string `json:"type"`
		alias
	}{c.ChunkType(), alias(c)})
}

func (c ReasoningEndChunk) MarshalJSON() ([]byte, error) {
	type alias ReasoningEndChunk
	return json.Marshal(struct {
		Type string `json:"type"`
		alias
	}{c.ChunkType(), alias(c)})
}

func (c ToolInputStartChunk) MarshalJSON() ([]byte, error) {
	type alias ToolInputStartChunk
	return json.Marshal(struct {
		Type string `json:"type"`
		alias
	}{c.ChunkType(), alias(c)})
}

func (c ToolInputDeltaChunk) MarshalJSON() ([]byte, error) {
	type alias ToolInputDeltaChunk
	return json.Marshal(struct {
		Type string `json:"type"`
		alias
	}{c.ChunkType(), alias(c)})
}

func (c ToolInputAvailableChunk) MarshalJSON() ([]byte, error) {
	type alias ToolInputAvailableChunk
	return json.Marshal(struct {
		Type string `json:"type"`
		alias
	}{c.ChunkType(), alias(c)})
}

func (c ToolInputErrorChunk) MarshalJSON() ([]byte, error) {
	type alias ToolInputErrorChunk
	return json.Marshal(struct {
		Type string `json:"type"`
		alias
	}{c.ChunkType(), alias(c)})
}

func (c ToolOutputAvailableChunk) MarshalJSON() ([]byte, error) {
	type alias ToolOutputAvailableChunk
	return json.Marshal(struct {
		Type string `json:"type"`
		alias
	}{c.ChunkType(), alias(c)})
}

func (c ToolOutputErrorChunk) MarshalJSON() ([]byte, error) {
	type alias ToolOutputErrorChunk
	return json.Marshal(struct {
		Type string `json:"type"`
		alias
	}{c.ChunkType(), alias(c)})
}

func (c DataChunk) MarshalJSON() ([]byte, error) {
	type alias DataChunk
	return json.Marshal(struct {
		Type string `json:"type"`
		alias
	}{c.ChunkType(), alias(c)})
}

func (c SourceDocumentChunk) MarshalJSON() ([]byte, error) {
	type alias SourceDocumentChunk
	return json.Marshal(struct {
		Type string `json:"type"`
		alias
	}{c.ChunkType(), alias(c)})
}

func (c SourceURLChunk) MarshalJSON() ([]byte, error) {
	type alias SourceURLChunk
	return json.Marshal(struct {
		Type string `json:"type"`
		alias
	}{c.ChunkType(), alias(c)})
}

func (c FileChunk) MarshalJSON() ([]byte, error) {
	type alias FileChunk
	return json.Marshal(struct {
		Type string `json:"type"`
		alias
	}{c.ChunkType(), alias(c)})
}

func (c MessageMetadataChunk) MarshalJSON() ([]byte, error) {
	type alias MessageMetadataChunk
	return json.Marshal(struct {
		Type string `json:"type"`
		alias
	}{c.ChunkType(), alias(c)})
}

func (c ErrorChunk) MarshalJSON() ([]byte, error) {
	type alias ErrorChunk
	return json.Marshal(struct {
		Type string `json:"type"`
		alias
	}{c.ChunkType(), alias(c)})
}

// DecodeChunk parses the wire form of a chunk.
func DecodeChunk(data []byte) (Chunk, error) {
	var head typeOnly
	if err := json.Unmarshal(data, &head); err != nil {
		return nil, err
	}

	var c Chunk
	switch head.Type {
	case "start":
		c = &StartChunk{}
	case "start-step":
		return StartStepChunk{}, nil
	case "finish-step":
		return FinishStepChunk{}, nil
	case "finish":
		c = &FinishChunk{}
	case "abort":
		return AbortChunk{}, nil
	case "text-start":
		c = &TextStartChunk{}
	case "text-delta":
		c = &TextDeltaChunk{}
	case "text-end":
		c = &TextEndChunk{}
	case "reasoning-start":
		c = &ReasoningStartChunk{}
	case "reasoning-delta":
		c = &ReasoningDeltaChunk{}
	case "reasoning-end":
		c = &ReasoningEndChunk{}
	case "tool-input-start":
		c = &ToolInputStartChunk{}
	case "tool-input-delta":
		c = &ToolInputDeltaChunk{}
	case "tool-input-available":
		c = &ToolInputAvailableChunk{}
	case "tool-input-error":
		c = &ToolInputErrorChunk{}
	case "tool-output-available":
		c = &ToolOutputAvailableChunk{}
	case "tool-output-error":
		c = &ToolOutputErrorChunk{}
	case "source-document":
		c = &SourceDocumentChunk{}
	case "source-url":
		c = &SourceURLChunk{}
	case "file":
		c = &FileChunk{}
	case "message-metadata":
		c = &MessageMetadataChunk{}
	case "error":
		c = &ErrorChunk{}
	default:
		name, ok := strings.CutPrefix(head.Type, "data-")
		if !ok || name == "" {
			return nil, fmt.Errorf("unknown chunk type %q", head.Type)
		}
		chunk := DataChunk{}
		if err := json.Unmarshal(data, &chunk); err != nil {
			return nil, err
		}
		chunk.Name = name
		return chunk, nil
	}

	if err := json.Unmarshal(data, c); err != nil {
		return nil, err
	}
	return deref(c), nil
}

// deref returns the value form so decoded chunks compare equal to the ones
// that were encoded.
func deref(c Chunk) Chunk {
	switch v := c.(type) {
	case *StartChunk:
		return *v
	case *FinishChunk:
		return *v
	case *TextStartChunk:
		return *v
	case *TextDeltaChunk:
		return *v
	case *TextEndChunk:
		return *v
	case *ReasoningStartChunk:
		return *v
	case *ReasoningDeltaChunk:
		return *v
	case *ReasoningEndChunk:
		return *v
	case *ToolInputStartChunk:
		return *v
	case *ToolInputDeltaChunk:
		return *v
	case *ToolInputAvailableChunk:
		return *v
	case *ToolInputErrorChunk:
		return *v
	case *ToolOutputAvailableChunk:
		return *v
	case *ToolOutputErrorChunk:
		return *v
	case *SourceDocumentChunk:
		return *v
	case *SourceURLChunk:
		return *v
	case *FileChunk:
		return *v
	case *MessageMetadataChunk:
		return *v
	case *ErrorChunk:
		return *v
	}
	return c
}
