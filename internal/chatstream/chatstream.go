// Package chatstream drives the model through tool turns and merges every
// turn's UI chunks into one bounded stream.
package chatstream

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"

	"github.com/IMax153/netlify-ai-gateway/internal/conversation"
	"github.com/IMax153/netlify-ai-gateway/internal/llm"
	"github.com/IMax153/netlify-ai-gateway/internal/translate"
	"github.com/IMax153/netlify-ai-gateway/internal/uimessage"
)

// MaxTurns is the number of model invocations one request may make.
const MaxTurns = 5

type State int32

const (
	StateAwaitingModel State = iota
	StateModelStreaming
	StateToolTurn
	StateDone
	StateAborted
)

func (s State) String() string {
	switch s {
	case StateAwaitingModel:
		return "AWAITING_MODEL"
	case StateModelStreaming:
		return "MODEL_STREAMING"
	case StateToolTurn:
		return "TOOL_TURN"
	case StateDone:
		return "DONE"
	case StateAborted:
		return "ABORTED"
	}
	return fmt.Sprintf("State(%d)", int32(s))
}

// Invoke starts one model invocation and returns its parts. The channel must
// be closed when the invocation ends and must stop being written to once ctx
// is done.
type Invoke func(ctx context.Context, prompt llm.Prompt) <-chan llm.StreamPart

type Options struct {
	Translate translate.Options
	// MessageID is the resumed assistant message id, resolved once per request.
	MessageID string
	// Schema validates chunks before they are offered. Nil skips tool and
	// data name checks; ordering is always checked.
	Schema          *uimessage.Schema
	MaxTurns        int
	MailboxCapacity int
	Logger          *slog.Logger
}

// Stream is the consumer side of a running orchestrator.
type Stream struct {
	mailbox *Mailbox
	err     error
}

// Chunks yields chunks in generation order and is closed when the
// orchestrator reaches DONE or ABORTED.
func (s *Stream) Chunks() <-chan uimessage.Chunk {
	return s.mailbox.Chunks()
}

// Err reports why the stream was aborted. It must only be called after
// Chunks has been closed. Provider failures are delivered in-band as error
// chunks and do not show up here.
func (s *Stream) Err() error {
	return s.err
}

// Orchestrator is the producer side handed to the execute function of New.
type Orchestrator struct {
	opts       Options
	logger     *slog.Logger
	mailbox    *Mailbox
	translator *translate.Translator
	sequence   *uimessage.SequenceValidator
	state      atomic.Int32
	turns      int
	dropped    int
}

// New runs execute in the background and returns the stream it writes to.
// The context passed to execute is cancelled when ctx is, and once execute
// returns.
func New(ctx context.Context, opts Options, execute func(context.Context, *Orchestrator) error) *Stream {
	if opts.MaxTurns <= 0 {
		opts.MaxTurns = MaxTurns
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	stream := &Stream{mailbox: NewMailbox(opts.MailboxCapacity)}
	o := &Orchestrator{
		opts:       opts,
		logger:     logger,
		mailbox:    stream.mailbox,
		translator: translate.New(opts.MessageID, opts.Translate),
		sequence:   uimessage.NewSequenceValidator(),
	}

	ctx, cancel := context.WithCancel(ctx)
	go func() {
		defer cancel()

		err := execute(ctx, o)
		if err != nil {
			o.setState(StateAborted)
			logger.Warn("Chat stream aborted", "state", o.State().String(), "turns", o.turns, "error", err)
		} else {
			o.setState(StateDone)
			logger.Debug("Chat stream finished", "turns", o.turns, "dropped_parts", o.dropped)
		}
		stream.err = err
		stream.mailbox.Close()
	}()
	return stream
}

func (o *Orchestrator) State() State {
	return State(o.state.Load())
}

func (o *Orchestrator) setState(s State) {
	o.state.Store(int32(s))
}

// Turns reports how many model invocations have completed.
func (o *Orchestrator) Turns() int {
	return o.turns
}

// Write validates c and offers it to the mailbox. Deltas and ends for spans
// that are not open are dropped and counted; any other invalid chunk is an
// error.
func (o *Orchestrator) Write(ctx context.Context, c uimessage.Chunk) error {
	if o.opts.Schema != nil {
		c = o.opts.Schema.Resolve(c)
		if err := o.opts.Schema.Validate(c); err != nil {
			return err
		}
	}
	if err := o.sequence.Check(c); err != nil {
		if errors.Is(err, uimessage.ErrSpanNotOpen) {
			o.dropped++
			o.logger.Debug("Dropped chunk for closed span", "type", c.ChunkType(), "error", err)
			return nil
		}
		return err
	}
	return o.mailbox.Offer(ctx, c)
}

// Dropped reports how many chunks were discarded for spans that were not open.
func (o *Orchestrator) Dropped() int {
	return o.dropped
}

// Merge translates and writes every part of one invocation, and returns the
// assembled response once parts is closed.
func (o *Orchestrator) Merge(ctx context.Context, parts <-chan llm.StreamPart) (conversation.Response, error) {
	acc := conversation.NewAccumulator(o.logger)
	for {
		select {
		case <-ctx.Done():
			return conversation.Response{}, ctx.Err()
		case part, ok := <-parts:
			if !ok {
				return acc.Response(), nil
			}
			acc.Add(part)
			for _, c := range o.translator.Translate(part) {
				if err := o.Write(ctx, c); err != nil {
					return conversation.Response{}, err
				}
			}
		}
	}
}

// RunTurns invokes the model with prompt and keeps re-invoking it with an
// empty prompt while it finishes with tool calls, up to the turn ceiling.
// Reaching the ceiling is not an error.
func (o *Orchestrator) RunTurns(ctx context.Context, prompt llm.Prompt, invoke Invoke) error {
	for {
		o.setState(StateModelStreaming)
		resp, err := o.Merge(ctx, invoke(ctx, prompt))
		if err != nil {
			o.setState(StateAborted)
			return err
		}
		o.turns++

		if resp.FinishReason != llm.FinishToolCalls {
			o.setState(StateDone)
			return nil
		}
		o.setState(StateToolTurn)
		if o.turns >= o.opts.MaxTurns {
			o.logger.Info("Turn ceiling reached, finishing with last response", "turns", o.turns)
			o.setState(StateDone)
			return nil
		}
		prompt = llm.Prompt{}
	}
}
