package sse

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
)

// DoneSentinel is the payload of the terminal frame.
const DoneSentinel = "[DONE]"

// SetHeaders prepares a response for a UI message event stream.
func SetHeaders(h http.Header) {
	h.Set("Content-Type", "text/event-stream")
	h.Set("Cache-Control", "no-cache, no-transform")
	h.Set("Connection", "keep-alive")
	h.Set("X-Accel-Buffering", "no")
	h.Set("x-vercel-ai-ui-message-stream", "v1")
}

// Encoder writes `message` events, flushing after each frame when the
// underlying writer supports it.
type Encoder struct {
	w       io.Writer
	flusher http.Flusher
}

func NewEncoder(w io.Writer) *Encoder {
	flusher, _ := w.(http.Flusher)
	return &Encoder{w: w, flusher: flusher}
}

// Encode writes v as the JSON data of one frame.
func (e *Encoder) Encode(v any) error {
	payload, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("failed to encode chunk: %w", err)
	}
	return e.writeFrame(payload)
}

// Done writes the terminal frame.
func (e *Encoder) Done() error {
	return e.writeFrame([]byte(DoneSentinel))
}

func (e *Encoder) writeFrame(data []byte) error {
	if _, err := fmt.Fprintf(e.w, "event: message\ndata: %s\n\n", data); err != nil {
		// A write failure here almost always means the client went away.
		return fmt.Errorf("failed to write data to stream: %w", err)
	}
	if e.flusher != nil {
		e.flusher.Flush()
	}
	return nil
}

// Copy encodes every value received from src until it is closed. If result
// then reports no error the terminal frame is written.
func Copy[T any](ctx context.Context, e *Encoder, src <-chan T, result func() error) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case v, ok := <-src:
			if !ok {
				if err := result(); err != nil {
					return err
				}
				return e.Done()
			}
			if err := e.Encode(v); err != nil {
				return err
			}
		}
	}
}
