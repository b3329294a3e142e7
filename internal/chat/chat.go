// Package chat binds a persisted chat history to a model provider. A Chat
// streams one model invocation at a time, runs client-side tool calls as
// they arrive and appends the completed messages to its history.
package chat

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/IMax153/netlify-ai-gateway/internal/conversation"
	"github.com/IMax153/netlify-ai-gateway/internal/llm"
	"github.com/IMax153/netlify-ai-gateway/internal/repository"
	"github.com/IMax153/netlify-ai-gateway/internal/tools"
)

var tracer = otel.Tracer("github.com/IMax153/netlify-ai-gateway/internal/chat")

// errSent wraps failures that already reached the client as an error part.
var errSent = errors.New("error part already sent")

// Persistence hands out chats backed by a history store.
type Persistence struct {
	store    repository.Store
	provider llm.Provider
	logger   *slog.Logger
}

func NewPersistence(store repository.Store, provider llm.Provider, logger *slog.Logger) *Persistence {
	if logger == nil {
		logger = slog.Default()
	}
	return &Persistence{store: store, provider: provider, logger: logger}
}

// GetOrCreate loads the chat's history, or starts an empty one when the store
// has none. The new chat is only written on its first completed invocation.
func (p *Persistence) GetOrCreate(ctx context.Context, chatID string) (*Chat, error) {
	history, err := p.store.Get(ctx, chatID)
	if err != nil {
		if !errors.Is(err, repository.ErrNotFound) {
			return nil, fmt.Errorf("could not load chat %s: %w", chatID, err)
		}
		p.logger.Debug("Starting new chat", "chat_id", chatID)
		history = llm.Prompt{}
	}
	return &Chat{
		id:       chatID,
		store:    p.store,
		provider: p.provider,
		logger:   p.logger.With("chat_id", chatID),
		history:  history,
	}, nil
}

// Chat is a history plus the provider that extends it.
type Chat struct {
	id       string
	store    repository.Store
	provider llm.Provider
	logger   *slog.Logger

	mu      sync.Mutex
	history llm.Prompt
}

func (c *Chat) ID() string { return c.id }

// History returns the messages persisted so far.
func (c *Chat) History() llm.Prompt {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.history
}

// StreamRequest is one model invocation on top of the chat's history.
type StreamRequest struct {
	// Prompt is appended to the history; it may be empty.
	Prompt  llm.Prompt
	Toolkit *tools.Toolkit
	Model   string
}

// StreamText invokes the provider with the history followed by req.Prompt
// and returns its parts. Client-side tool calls are executed right after
// their tool-call part and answered with a tool-result part. A provider
// failure ends the channel with an error part. The completed messages are
// saved before the finish part is sent; nothing is saved when the invocation
// fails or ctx is cancelled. Invocations on the same Chat run one at a time.
func (c *Chat) StreamText(ctx context.Context, req StreamRequest) <-chan llm.StreamPart {
	out := make(chan llm.StreamPart)
	go func() {
		defer close(out)

		c.mu.Lock()
		defer c.mu.Unlock()

		if err := c.streamText(ctx, req, out); err != nil {
			if ctx.Err() != nil {
				c.logger.Debug("Chat invocation cancelled", "error", err)
				return
			}
			c.logger.Error("Chat invocation failed", "model", req.Model, "error", err)
			if errors.Is(err, errSent) {
				return
			}
			_ = llm.Send(ctx, out, llm.ErrorPart{Err: err})
		}
	}()
	return out
}

func (c *Chat) streamText(ctx context.Context, req StreamRequest, out chan<- llm.StreamPart) (err error) {
	ctx, span := tracer.Start(ctx, "chat.stream_text", trace.WithAttributes(
		attribute.String("chat.id", c.id),
		attribute.String("gen_ai.request.model", req.Model),
	))
	defer func() {
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
		span.End()
	}()

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	prompt := c.history.Concat(req.Prompt)
	var defs []llm.ToolDefinition
	if req.Toolkit != nil {
		defs = req.Toolkit.Definitions()
	}

	parts := make(chan llm.StreamPart)
	errc := make(chan error, 1)
	go func() {
		errc <- c.provider.Stream(ctx, &llm.Request{Model: req.Model, Prompt: prompt, Tools: defs}, parts)
	}()

	acc := conversation.NewAccumulator(c.logger)
	emit := func(part llm.StreamPart) error {
		acc.Add(part)
		return llm.Send(ctx, out, part)
	}

	var finish llm.StreamPart
	for part := range parts {
		switch p := part.(type) {
		case llm.FinishPart:
			// held back until the history is saved
			finish = p
			continue
		case llm.ToolCallPart:
			if req.Toolkit != nil && !p.ProviderExecuted {
				call, result := c.executeTool(ctx, req.Toolkit, p)
				if err := emit(call); err != nil {
					return err
				}
				if err := emit(result); err != nil {
					return err
				}
				continue
			}
		}
		if err := emit(part); err != nil {
			return err
		}
	}
	if err := <-errc; err != nil {
		return err
	}

	resp := acc.Response()
	span.SetAttributes(
		attribute.String("gen_ai.response.finish_reason", string(resp.FinishReason)),
		attribute.Int64("gen_ai.usage.input_tokens", resp.Usage.InputTokens),
		attribute.Int64("gen_ai.usage.output_tokens", resp.Usage.OutputTokens),
	)
	if resp.Err != nil {
		return fmt.Errorf("%w: %w", errSent, resp.Err)
	}

	msgs := acc.Messages()
	for i := range msgs {
		if msgs[i].Role == llm.RoleAssistant {
			msgs[i].MessageID = uuid.NewString()
		}
	}
	history := prompt.Concat(llm.NewPrompt(msgs...))
	if err := c.store.Save(ctx, c.id, history); err != nil {
		return fmt.Errorf("could not save chat %s: %w", c.id, err)
	}
	c.history = history

	if finish != nil {
		return emit(finish)
	}
	return nil
}

// executeTool decodes and runs a client-side tool call. Undecodable params
// mark the call with an InputError; both those and handler errors yield a
// failed result so the model still sees an answer for every call.
func (c *Chat) executeTool(ctx context.Context, toolkit *tools.Toolkit, call llm.ToolCallPart) (llm.ToolCallPart, llm.ToolResultPart) {
	ctx, span := tracer.Start(ctx, "chat.execute_tool", trace.WithAttributes(
		attribute.String("tool.name", call.Name),
		attribute.String("tool.call_id", call.ID),
	))
	defer span.End()

	fail := func(err error) llm.ToolResultPart {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		text, _ := json.Marshal(err.Error())
		return llm.ToolResultPart{
			ID:            call.ID,
			Name:          call.Name,
			ProviderName:  call.ProviderName,
			Result:        text,
			EncodedResult: text,
			IsFailure:     true,
		}
	}

	invoke, err := toolkit.Decode(call.Name, call.Params)
	if err != nil {
		c.logger.Warn("Rejected tool call", "tool", call.Name, "tool_call_id", call.ID, "error", err)
		call.InputError = err.Error()
		return call, fail(err)
	}

	result, err := invoke(ctx)
	if err != nil {
		c.logger.Warn("Tool execution failed", "tool", call.Name, "tool_call_id", call.ID, "error", err)
		return call, fail(err)
	}
	c.logger.Debug("Tool executed", "tool", call.Name, "tool_call_id", call.ID)
	return call, llm.ToolResultPart{
		ID:            call.ID,
		Name:          call.Name,
		ProviderName:  call.ProviderName,
		Result:        result,
		EncodedResult: result,
	}
}
