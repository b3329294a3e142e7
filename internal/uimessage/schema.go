package uimessage

import (
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/go-playground/validator/v10"
)

// ErrInvalidChunk is wrapped by every chunk validation failure.
var ErrInvalidChunk = errors.New("invalid ui message chunk")

// ErrSpanNotOpen marks a text or reasoning delta or end whose span is not
// open. It wraps ErrInvalidChunk.
var ErrSpanNotOpen = fmt.Errorf("%w: span is not open", ErrInvalidChunk)

// ErrInvalidMessage is wrapped by every UI message validation failure.
var ErrInvalidMessage = errors.New("invalid ui message")

var (
	validate     *validator.Validate
	validateOnce sync.Once
)

func getValidator() *validator.Validate {
	validateOnce.Do(func() {
		validate = validator.New()
	})
	return validate
}

func structError(err error) string {
	var validationErrors validator.ValidationErrors
	if !errors.As(err, &validationErrors) {
		return err.Error()
	}
	msgs := make([]string, 0, len(validationErrors))
	for _, fieldErr := range validationErrors {
		msgs = append(msgs, fmt.Sprintf("Field '%s' failed on the '%s' tag", fieldErr.Field(), fieldErr.Tag()))
	}
	return strings.Join(msgs, "; ")
}

// Validate checks the message envelope and every part.
func (m Message) Validate() error {
	if err := getValidator().Struct(m); err != nil {
		return fmt.Errorf("%w: %s", ErrInvalidMessage, structError(err))
	}
	for i, p := range m.Parts {
		var err error
		switch v := p.(type) {
		case ToolPart:
			err = v.Validate()
		case FilePart, SourceDocumentPart, SourceURLPart:
			if serr := getValidator().Struct(v); serr != nil {
				err = errors.New(structError(serr))
			}
		}
		if err != nil {
			return fmt.Errorf("%w: part %d: %v", ErrInvalidMessage, i, err)
		}
	}
	return nil
}

// Schema describes the tools and data parts a stream may mention.
type Schema struct {
	tools map[string]struct{}
	data  map[string]struct{}
}

func NewSchema(toolNames []string, dataNames ...string) *Schema {
	s := &Schema{tools: map[string]struct{}{}, data: map[string]struct{}{}}
	for _, n := range toolNames {
		s.tools[n] = struct{}{}
	}
	for _, n := range dataNames {
		s.data[n] = struct{}{}
	}
	return s
}

// Resolve marks tool input chunks that name an undeclared tool as dynamic,
// so a call to a tool the server does not have still reaches the client
// along with its error. Other chunks are returned unchanged.
func (s *Schema) Resolve(c Chunk) Chunk {
	switch v := c.(type) {
	case ToolInputStartChunk:
		v.Dynamic = v.Dynamic || !s.hasTool(v.ToolName)
		return v
	case ToolInputAvailableChunk:
		v.Dynamic = v.Dynamic || !s.hasTool(v.ToolName)
		return v
	case ToolInputErrorChunk:
		v.Dynamic = v.Dynamic || !s.hasTool(v.ToolName)
		return v
	}
	return c
}

// Validate checks required fields and that tool and data names are declared.
// Dynamic tool chunks may name any tool.
func (s *Schema) Validate(c Chunk) error {
	if err := getValidator().Struct(c); err != nil {
		var invalid *validator.InvalidValidationError
		if !errors.As(err, &invalid) {
			return fmt.Errorf("%w: %s: %s", ErrInvalidChunk, c.ChunkType(), structError(err))
		}
	}
	switch v := c.(type) {
	case ToolInputStartChunk:
		return s.checkTool(v.ToolName, v.Dynamic)
	case ToolInputAvailableChunk:
		return s.checkTool(v.ToolName, v.Dynamic)
	case ToolInputErrorChunk:
		return s.checkTool(v.ToolName, v.Dynamic)
	case DataChunk:
		if _, ok := s.data[v.Name]; !ok {
			return fmt.Errorf("%w: undeclared data part %q", ErrInvalidChunk, v.Name)
		}
	}
	return nil
}

func (s *Schema) hasTool(name string) bool {
	_, ok := s.tools[name]
	return ok
}

func (s *Schema) checkTool(name string, dynamic bool) error {
	if !dynamic && !s.hasTool(name) {
		return fmt.Errorf("%w: unknown tool %q", ErrInvalidChunk, name)
	}
	return nil
}

type toolPhase int

const (
	toolNone toolPhase = iota
	toolStreaming
	toolInputDone
	toolOutputDone
)

// SequenceValidator enforces ordering across the chunks of one response:
// span deltas and ends only for open spans, and tool chunks per call id in
// the order input-start, input-delta*, input-available|input-error, then at
// most one output. It is not safe for concurrent use.
type SequenceValidator struct {
	text      map[string]bool
	reasoning map[string]bool
	tools     map[string]toolPhase
}

func NewSequenceValidator() *SequenceValidator {
	return &SequenceValidator{
		text:      map[string]bool{},
		reasoning: map[string]bool{},
		tools:     map[string]toolPhase{},
	}
}

func (v *SequenceValidator) Check(c Chunk) error {
	switch x := c.(type) {
	case TextStartChunk:
		return openSpan(v.text, "text", x.ID)
	case TextDeltaChunk:
		return requireOpen(v.text, "text", x.ID, "delta")
	case TextEndChunk:
		if err := requireOpen(v.text, "text", x.ID, "end"); err != nil {
			return err
		}
		delete(v.text, x.ID)
	case ReasoningStartChunk:
		return openSpan(v.reasoning, "reasoning", x.ID)
	case ReasoningDeltaChunk:
		return requireOpen(v.reasoning, "reasoning", x.ID, "delta")
	case ReasoningEndChunk:
		if err := requireOpen(v.reasoning, "reasoning", x.ID, "end"); err != nil {
			return err
		}
		delete(v.reasoning, x.ID)
	case ToolInputStartChunk:
		return v.advance(x.ToolCallID, c.ChunkType(), toolStreaming, toolNone)
	case ToolInputDeltaChunk:
		return v.advance(x.ToolCallID, c.ChunkType(), toolStreaming, toolStreaming)
	case ToolInputAvailableChunk:
		return v.advance(x.ToolCallID, c.ChunkType(), toolInputDone, toolNone, toolStreaming)
	case ToolInputErrorChunk:
		return v.advance(x.ToolCallID, c.ChunkType(), toolInputDone, toolNone, toolStreaming)
	case ToolOutputAvailableChunk:
		return v.advance(x.ToolCallID, c.ChunkType(), toolOutputDone, toolInputDone)
	case ToolOutputErrorChunk:
		return v.advance(x.ToolCallID, c.ChunkType(), toolOutputDone, toolInputDone)
	}
	return nil
}

func openSpan(spans map[string]bool, kind, id string) error {
	if spans[id] {
		return fmt.Errorf("%w: %s span %q opened twice", ErrInvalidChunk, kind, id)
	}
	spans[id] = true
	return nil
}

func requireOpen(spans map[string]bool, kind, id, what string) error {
	if !spans[id] {
		return fmt.Errorf("%w: %s %s for span %q", ErrSpanNotOpen, kind, what, id)
	}
	return nil
}

func (v *SequenceValidator) advance(callID, chunkType string, next toolPhase, allowed ...toolPhase) error {
	current := v.tools[callID]
	for _, a := range allowed {
		if current == a {
			v.tools[callID] = next
			return nil
		}
	}
	return fmt.Errorf("%w: %s out of order for tool call %q", ErrInvalidChunk, chunkType, callID)
}
