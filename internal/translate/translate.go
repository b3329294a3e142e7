// Package translate maps provider stream parts onto UI message chunks.
package translate

import (
	"encoding/base64"
	"fmt"
	"strings"

	"github.com/IMax153/netlify-ai-gateway/internal/llm"
	"github.com/IMax153/netlify-ai-gateway/internal/uimessage"
)

// Options controls which optional parts reach the client.
type Options struct {
	// SendReasoning forwards reasoning deltas. Reasoning start and end chunks
	// are always forwarded.
	SendReasoning bool
	// SendSources forwards source citations.
	SendSources bool
}

func DefaultOptions() Options {
	return Options{SendReasoning: true}
}

// Translator converts stream parts into UI chunks. It holds no per-stream
// state; the message id is resolved once per request and only decorates the
// start chunk.
type Translator struct {
	opts      Options
	messageID string
}

func New(messageID string, opts Options) *Translator {
	return &Translator{opts: opts, messageID: messageID}
}

// MessageIDFromHistory returns the persistence id of the last message when it
// is an assistant message, and "" otherwise.
func MessageIDFromHistory(history llm.Prompt) string {
	last, ok := history.Last()
	if !ok || last.Role != llm.RoleAssistant {
		return ""
	}
	return last.MessageID
}

// Translate returns the chunks for one part. Unknown part types yield nothing.
func (t *Translator) Translate(part llm.StreamPart) []uimessage.Chunk {
	switch p := part.(type) {
	case llm.ResponseMetadataPart:
		return []uimessage.Chunk{uimessage.StartChunk{MessageID: t.messageID}, uimessage.StartStepChunk{}}

	case llm.TextStartPart:
		return one(uimessage.TextStartChunk{ID: p.ID, ProviderMetadata: metadata(p.Metadata)})
	case llm.TextDeltaPart:
		return one(uimessage.TextDeltaChunk{ID: p.ID, Delta: p.Delta, ProviderMetadata: metadata(p.Metadata)})
	case llm.TextEndPart:
		return one(uimessage.TextEndChunk{ID: p.ID, ProviderMetadata: metadata(p.Metadata)})

	case llm.ReasoningStartPart:
		return one(uimessage.ReasoningStartChunk{ID: p.ID, ProviderMetadata: metadata(p.Metadata)})
	case llm.ReasoningDeltaPart:
		if !t.opts.SendReasoning {
			return nil
		}
		return one(uimessage.ReasoningDeltaChunk{ID: p.ID, Delta: p.Delta, ProviderMetadata: metadata(p.Metadata)})
	case llm.ReasoningEndPart:
		return one(uimessage.ReasoningEndChunk{ID: p.ID, ProviderMetadata: metadata(p.Metadata)})

	case llm.ToolParamsStartPart:
		name := p.Name
		if p.ProviderName != "" {
			name = p.ProviderName
		}
		return one(uimessage.ToolInputStartChunk{ToolCallID: p.ID, ToolName: name, ProviderExecuted: p.ProviderExecuted})
	case llm.ToolParamsDeltaPart:
		return one(uimessage.ToolInputDeltaChunk{ToolCallID: p.ID, InputTextDelta: p.Delta})
	case llm.ToolParamsEndPart:
		// superseded by the tool-call part that follows
		return nil

	case llm.ToolCallPart:
		if p.InputError != "" {
			return one(uimessage.ToolInputErrorChunk{
				ToolCallID:       p.ID,
				ToolName:         p.Name,
				Input:            llm.ValidParams(p.Params),
				ErrorText:        p.InputError,
				ProviderExecuted: p.ProviderExecuted,
				ProviderMetadata: metadata(p.Metadata),
			})
		}
		return one(uimessage.ToolInputAvailableChunk{
			ToolCallID:       p.ID,
			ToolName:         p.Name,
			Input:            llm.ValidParams(p.Params),
			ProviderExecuted: p.ProviderExecuted,
			ProviderMetadata: metadata(p.Metadata),
		})
	case llm.ToolResultPart:
		output := p.EncodedResult
		if len(output) == 0 {
			output = p.Result
		}
		if p.IsFailure {
			return one(uimessage.ToolOutputErrorChunk{
				ToolCallID:       p.ID,
				ErrorText:        llm.ResultText(output),
				ProviderExecuted: p.ProviderExecuted,
			})
		}
		return one(uimessage.ToolOutputAvailableChunk{ToolCallID: p.ID, Output: output, ProviderExecuted: p.ProviderExecuted})

	case llm.FilePart:
		return one(uimessage.FileChunk{
			URL:              "data:" + p.MediaType + ";base64," + base64.StdEncoding.EncodeToString(p.Data),
			MediaType:        p.MediaType,
			ProviderMetadata: metadata(p.Metadata),
		})

	case llm.SourcePart:
		if !t.opts.SendSources {
			return nil
		}
		switch p.SourceType {
		case llm.SourceDocument:
			return one(uimessage.SourceDocumentChunk{
				SourceID:         p.ID,
				MediaType:        p.MediaType,
				Title:            p.Title,
				Filename:         p.FileName,
				ProviderMetadata: metadata(p.Metadata),
			})
		case llm.SourceURL:
			return one(uimessage.SourceURLChunk{SourceID: p.ID, URL: p.URL, Title: p.Title, ProviderMetadata: metadata(p.Metadata)})
		}
		return nil

	case llm.ErrorPart:
		return one(uimessage.ErrorChunk{ErrorText: ErrorText(p.Err)})

	case llm.FinishPart:
		return []uimessage.Chunk{uimessage.FinishStepChunk{}, uimessage.FinishChunk{}}
	}
	return nil
}

func one(c uimessage.Chunk) []uimessage.Chunk {
	return []uimessage.Chunk{c}
}

// metadata drops empty maps and nil entries so they never reach the wire.
func metadata(m llm.ProviderMetadata) llm.ProviderMetadata {
	if len(m) == 0 {
		return nil
	}
	out := make(llm.ProviderMetadata, len(m))
	for k, v := range m {
		if len(v) > 0 {
			out[k] = v
		}
	}
	if len(out) == 0 {
		return nil
	}
	return out
}

// ErrorText renders err and every error it wraps, one per line, so the
// client sees the whole chain rather than only the outermost message.
func ErrorText(err error) string {
	if err == nil {
		return "An unknown error occurred"
	}
	var b strings.Builder
	writeCause(&b, err, 0)
	return strings.TrimRight(b.String(), "\n")
}

func writeCause(b *strings.Builder, err error, depth int) {
	indent := strings.Repeat("  ", depth)
	label := "Error"
	if depth > 0 {
		label = "Caused by"
	}
	fmt.Fprintf(b, "%s%s: %s\n", indent, label, err.Error())

	switch u := err.(type) {
	case interface{ Unwrap() error }:
		if next := u.Unwrap(); next != nil {
			writeCause(b, next, depth+1)
		}
	case interface{ Unwrap() []error }:
		for _, next := range u.Unwrap() {
			writeCause(b, next, depth+1)
		}
	}
}
