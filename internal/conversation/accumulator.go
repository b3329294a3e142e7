// Package conversation folds streamed model output and persisted UI messages
// into prompt messages.
package conversation

import (
	"encoding/base64"
	"log/slog"
	"maps"
	"strings"

	"github.com/IMax153/netlify-ai-gateway/internal/llm"
)

// Response is the assembled output of one model invocation.
type Response struct {
	Content      []llm.ContentPart
	Sources      []llm.SourcePart
	FinishReason llm.FinishReason
	Usage        llm.Usage
	Err          error
}

type slot struct {
	part llm.ContentPart
	done bool
}

type span struct {
	slot     int
	text     strings.Builder
	metadata llm.ProviderMetadata
}

// Accumulator reduces a stream of parts into completed content. Text and
// reasoning spans keep their position from the start part; spans that never
// end are discarded. It is not safe for concurrent use.
type Accumulator struct {
	logger    *slog.Logger
	slots     []slot
	text      map[string]*span
	reasoning map[string]*span
	sources   []llm.SourcePart
	finish    llm.FinishReason
	usage     llm.Usage
	err       error
	dropped   int
}

func NewAccumulator(logger *slog.Logger) *Accumulator {
	if logger == nil {
		logger = slog.Default()
	}
	return &Accumulator{
		logger:    logger,
		text:      map[string]*span{},
		reasoning: map[string]*span{},
		finish:    llm.FinishUnknown,
	}
}

// Add folds one part into the accumulated state.
func (a *Accumulator) Add(part llm.StreamPart) {
	switch p := part.(type) {
	case llm.TextStartPart:
		a.open(a.text, p.ID, p.Metadata)
	case llm.TextDeltaPart:
		a.appendDelta(a.text, p.PartType(), p.ID, p.Delta)
	case llm.TextEndPart:
		if s := a.close(a.text, p.PartType(), p.ID, p.Metadata); s != nil {
			a.slots[s.slot] = slot{part: llm.TextContent{Text: s.text.String(), Options: s.metadata}, done: true}
		}

	case llm.ReasoningStartPart:
		a.open(a.reasoning, p.ID, p.Metadata)
	case llm.ReasoningDeltaPart:
		a.appendDelta(a.reasoning, p.PartType(), p.ID, p.Delta)
	case llm.ReasoningEndPart:
		if s := a.close(a.reasoning, p.PartType(), p.ID, p.Metadata); s != nil {
			a.slots[s.slot] = slot{part: llm.ReasoningContent{Text: s.text.String(), Options: s.metadata}, done: true}
		}

	case llm.ToolCallPart:
		a.push(llm.ToolCallContent{
			ID:               p.ID,
			Name:             p.Name,
			Params:           llm.ValidParams(p.Params),
			ProviderExecuted: p.ProviderExecuted,
			Options:          nonEmpty(p.Metadata),
		})
	case llm.ToolResultPart:
		a.push(llm.ToolResultContent{
			ID:               p.ID,
			Name:             p.Name,
			Result:           p.Result,
			IsFailure:        p.IsFailure,
			ProviderExecuted: p.ProviderExecuted,
			Options:          nonEmpty(p.Metadata),
		})
	case llm.FilePart:
		a.push(llm.FileContent{
			MediaType: p.MediaType,
			Data:      "data:" + p.MediaType + ";base64," + base64.StdEncoding.EncodeToString(p.Data),
			Options:   nonEmpty(p.Metadata),
		})
	case llm.SourcePart:
		a.sources = append(a.sources, p)
	case llm.ErrorPart:
		a.err = p.Err
	case llm.FinishPart:
		a.finish = p.Reason
		a.usage = p.Usage
	}
}

func (a *Accumulator) push(part llm.ContentPart) {
	a.slots = append(a.slots, slot{part: part, done: true})
}

func (a *Accumulator) open(spans map[string]*span, id string, md llm.ProviderMetadata) {
	if _, ok := spans[id]; ok {
		a.logger.Debug("Span reopened before it ended, restarting", "span_id", id)
	}
	spans[id] = &span{slot: len(a.slots), metadata: nonEmpty(md)}
	a.slots = append(a.slots, slot{})
}

func (a *Accumulator) appendDelta(spans map[string]*span, kind llm.PartType, id, delta string) {
	s, ok := spans[id]
	if !ok {
		a.drop(kind, id)
		return
	}
	s.text.WriteString(delta)
}

func (a *Accumulator) close(spans map[string]*span, kind llm.PartType, id string, md llm.ProviderMetadata) *span {
	s, ok := spans[id]
	if !ok {
		a.drop(kind, id)
		return nil
	}
	delete(spans, id)
	if len(md) > 0 {
		if s.metadata == nil {
			s.metadata = llm.ProviderMetadata{}
		}
		maps.Copy(s.metadata, md)
	}
	return s
}

func (a *Accumulator) drop(kind llm.PartType, id string) {
	a.dropped++
	a.logger.Debug("Dropping part for unknown span", "part_type", kind, "span_id", id)
}

// Dropped reports how many deltas or ends referenced a span that was not open.
func (a *Accumulator) Dropped() int { return a.dropped }

// Response returns the completed content in stream order.
func (a *Accumulator) Response() Response {
	content := make([]llm.ContentPart, 0, len(a.slots))
	for _, s := range a.slots {
		if s.done {
			content = append(content, s.part)
		}
	}
	return Response{
		Content:      content,
		Sources:      a.sources,
		FinishReason: a.finish,
		Usage:        a.usage,
		Err:          a.err,
	}
}

// Messages splits the response into an assistant message and, when the
// response holds results of client-executed tools, a tool message.
func (a *Accumulator) Messages() []llm.Message {
	var assistant []llm.ContentPart
	var results []llm.ToolResultContent
	for _, part := range a.Response().Content {
		if r, ok := part.(llm.ToolResultContent); ok && !r.ProviderExecuted {
			results = append(results, r)
			continue
		}
		assistant = append(assistant, part)
	}

	var msgs []llm.Message
	if len(assistant) > 0 {
		msgs = append(msgs, llm.NewAssistantMessage(assistant...))
	}
	if len(results) > 0 {
		msgs = append(msgs, llm.NewToolMessage(results...))
	}
	return msgs
}

func nonEmpty(md llm.ProviderMetadata) llm.ProviderMetadata {
	if len(md) == 0 {
		return nil
	}
	return maps.Clone(md)
}
