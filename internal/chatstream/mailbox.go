package chatstream

import (
	"context"
	"sync"

	"github.com/IMax153/netlify-ai-gateway/internal/uimessage"
)

// DefaultMailboxCapacity bounds how far the producer may run ahead of a slow
// client.
const DefaultMailboxCapacity = 16

// Mailbox is a bounded single-producer, single-consumer chunk queue. Offer
// blocks while the mailbox is full; closing it is the only end-of-stream
// signal the consumer gets.
type Mailbox struct {
	ch        chan uimessage.Chunk
	closeOnce sync.Once
}

func NewMailbox(capacity int) *Mailbox {
	if capacity <= 0 {
		capacity = DefaultMailboxCapacity
	}
	return &Mailbox{ch: make(chan uimessage.Chunk, capacity)}
}

// Offer enqueues c, waiting for room unless ctx is done first.
func (m *Mailbox) Offer(ctx context.Context, c uimessage.Chunk) error {
	select {
	case m.ch <- c:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (m *Mailbox) Chunks() <-chan uimessage.Chunk {
	return m.ch
}

// Close must only be called by the producer.
func (m *Mailbox) Close() {
	m.closeOnce.Do(func() { close(m.ch) })
}
