package llm

import (
	"encoding/json"
	"time"
)

// ProviderMetadata is opaque per-provider data keyed by provider name.
type ProviderMetadata map[string]json.RawMessage

// PartType is the discriminator of a StreamPart.
type PartType string

const (
	PartResponseMetadata PartType = "response-metadata"
	PartTextStart        PartType = "text-start"
	PartTextDelta        PartType = "text-delta"
	PartTextEnd          PartType = "text-end"
	PartReasoningStart   PartType = "reasoning-start"
	PartReasoningDelta   PartType = "reasoning-delta"
	PartReasoningEnd     PartType = "reasoning-end"
	PartToolParamsStart  PartType = "tool-params-start"
	PartToolParamsDelta  PartType = "tool-params-delta"
	PartToolParamsEnd    PartType = "tool-params-end"
	PartToolCall         PartType = "tool-call"
	PartToolResult       PartType = "tool-result"
	PartFile             PartType = "file"
	PartSource           PartType = "source"
	PartError            PartType = "error"
	PartFinish           PartType = "finish"
)

// FinishReason explains why a model invocation ended.
type FinishReason string

const (
	FinishStop          FinishReason = "stop"
	FinishLength        FinishReason = "length"
	FinishContentFilter FinishReason = "content-filter"
	FinishToolCalls     FinishReason = "tool-calls"
	FinishError         FinishReason = "error"
	FinishPause         FinishReason = "pause"
	FinishOther         FinishReason = "other"
	FinishUnknown       FinishReason = "unknown"
)

// SourceType distinguishes document citations from URL citations.
type SourceType string

const (
	SourceDocument SourceType = "document"
	SourceURL      SourceType = "url"
)

// Usage reports token counts for one model invocation.
type Usage struct {
	InputTokens  int64 `json:"inputTokens"`
	OutputTokens int64 `json:"outputTokens"`
	TotalTokens  int64 `json:"totalTokens"`
}

// StreamPart is a single event emitted by a provider's streaming completion.
// Consumers switch on the concrete type and ignore types they do not know.
type StreamPart interface {
	PartType() PartType
	PartMetadata() ProviderMetadata
}

type ResponseMetadataPart struct {
	ID        string
	ModelID   string
	Timestamp time.Time
	Metadata  ProviderMetadata
}

type TextStartPart struct {
	ID       string
	Metadata ProviderMetadata
}

type TextDeltaPart struct {
	ID       string
	Delta    string
	Metadata ProviderMetadata
}

type TextEndPart struct {
	ID       string
	Metadata ProviderMetadata
}

type ReasoningStartPart struct {
	ID       string
	Metadata ProviderMetadata
}

type ReasoningDeltaPart struct {
	ID       string
	Delta    string
	Metadata ProviderMetadata
}

type ReasoningEndPart struct {
	ID       string
	Metadata ProviderMetadata
}

// ToolParamsStartPart opens the streamed parameters of a tool call. ID is the
// tool call id.
type ToolParamsStartPart struct {
	ID               string
	Name             string
	ProviderName     string
	ProviderExecuted bool
	Metadata         ProviderMetadata
}

type ToolParamsDeltaPart struct {
	ID       string
	Delta    string
	Metadata ProviderMetadata
}

type ToolParamsEndPart struct {
	ID       string
	Metadata ProviderMetadata
}

// ToolCallPart is a fully assembled tool call. InputError is set by the
// consumer when Params could not be decoded for the named tool.
type ToolCallPart struct {
	ID               string
	Name             string
	ProviderName     string
	Params           json.RawMessage
	ProviderExecuted bool
	InputError       string
	Metadata         ProviderMetadata
}

// ToolResultPart carries the outcome of a tool call. Result is what is sent
// back to the model, EncodedResult is what is sent to the UI. For failures
// both hold the error text encoded as a JSON string.
type ToolResultPart struct {
	ID               string
	Name             string
	ProviderName     string
	Result           json.RawMessage
	EncodedResult    json.RawMessage
	IsFailure        bool
	ProviderExecuted bool
	Metadata         ProviderMetadata
}

type FilePart struct {
	MediaType string
	Data      []byte
	Metadata  ProviderMetadata
}

type SourcePart struct {
	SourceType SourceType
	ID         string
	Title      string
	MediaType  string
	FileName   string
	URL        string
	Metadata   ProviderMetadata
}

// ErrorPart reports an upstream failure in-band.
type ErrorPart struct {
	Err      error
	Metadata ProviderMetadata
}

type FinishPart struct {
	Reason   FinishReason
	Usage    Usage
	Metadata ProviderMetadata
}

func (ResponseMetadataPart) PartType() PartType { return PartResponseMetadata }
func (TextStartPart) PartType() PartType        { return PartTextStart }
func (TextDeltaPart) PartType() PartType        { return PartTextDelta }
func (TextEndPart) PartType() PartType          { return PartTextEnd }
func (ReasoningStartPart) PartType() PartType   { return PartReasoningStart }
func (ReasoningDeltaPart) PartType() PartType   { return PartReasoningDelta }
func (ReasoningEndPart) PartType() PartType     { return PartReasoningEnd }
func (ToolParamsStartPart) PartType() PartType  { return PartToolParamsStart }
func (ToolParamsDeltaPart) PartType() PartType  { return PartToolParamsDelta }
func (ToolParamsEndPart) PartType() PartType    { return PartToolParamsEnd }
func (ToolCallPart) PartType() PartType         { return PartToolCall }
func (ToolResultPart) PartType() PartType       { return PartToolResult }
func (FilePart) PartType() PartType             { return PartFile }
func (SourcePart) PartType() PartType           { return PartSource }
func (ErrorPart) PartType() PartType            { return PartError }
func (FinishPart) PartType() PartType           { return PartFinish }

func (p ResponseMetadataPart) PartMetadata() ProviderMetadata { return p.Metadata }
func (p TextStartPart) PartMetadata() ProviderMetadata        { return p.Metadata }
func (p TextDeltaPart) PartMetadata() ProviderMetadata        { return p.Metadata }
func (p TextEndPart) PartMetadata() ProviderMetadata          { return p.Metadata }
func (p ReasoningStartPart) PartMetadata() ProviderMetadata   { return p.Metadata }
func (p ReasoningDeltaPart) PartMetadata() ProviderMetadata   { return p.Metadata }
func (p ReasoningEndPart) PartMetadata() ProviderMetadata     { return p.Metadata }
func (p ToolParamsStartPart) PartMetadata() ProviderMetadata  { return p.Metadata }
func (p ToolParamsDeltaPart) PartMetadata() ProviderMetadata  { return p.Metadata }
func (p ToolParamsEndPart) PartMetadata() ProviderMetadata    { return p.Metadata }
func (p ToolCallPart) PartMetadata() ProviderMetadata         { return p.Metadata }
func (p ToolResultPart) PartMetadata() ProviderMetadata       { return p.Metadata }
func (p FilePart) PartMetadata() ProviderMetadata             { return p.Metadata }
func (p SourcePart) PartMetadata() ProviderMetadata           { return p.Metadata }
func (p ErrorPart) PartMetadata() ProviderMetadata            { return p.Metadata }
func (p FinishPart) PartMetadata() ProviderMetadata           { return p.Metadata }

