package llm

import (
	"context"
	"fmt"
)

// JSONSchema describes tool parameters.
type JSONSchema map[string]any

// ToolDefinition is what a provider advertises to the model.
type ToolDefinition struct {
	Name        string
	Description string
	Parameters  JSONSchema
}

// Request is a single streamed completion.
type Request struct {
	Model  string
	Prompt Prompt
	Tools  []ToolDefinition
}

// Provider streams a completion for a prompt. Implementations send parts to ch
// in generation order, starting with a ResponseMetadataPart and ending with a
// FinishPart, and close ch before returning. A returned error means the stream
// was cut short; parts already sent remain valid.
type Provider interface {
	Stream(ctx context.Context, req *Request, ch chan<- StreamPart) error
}

// StatusError is returned when a provider answers with a non-2xx status.
type StatusError struct {
	Provider   string
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("%s: api returned non-200 status %d: %s", e.Provider, e.StatusCode, e.Body)
}

// Send delivers a part unless ctx is done first.
func Send(ctx context.Context, ch chan<- StreamPart, part StreamPart) error {
	select {
	case ch <- part:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
