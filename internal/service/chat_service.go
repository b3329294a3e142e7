package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/IMax153/netlify-ai-gateway/internal/chat"
	"github.com/IMax153/netlify-ai-gateway/internal/chatstream"
	"github.com/IMax153/netlify-ai-gateway/internal/conversation"
	app_errors "github.com/IMax153/netlify-ai-gateway/internal/errors"
	"github.com/IMax153/netlify-ai-gateway/internal/llm"
	"github.com/IMax153/netlify-ai-gateway/internal/model"
	"github.com/IMax153/netlify-ai-gateway/internal/repository"
	"github.com/IMax153/netlify-ai-gateway/internal/tools"
	"github.com/IMax153/netlify-ai-gateway/internal/translate"
	"github.com/IMax153/netlify-ai-gateway/internal/uimessage"
)

// SystemPrompt is set on the first message of every chat.
const SystemPrompt = `You are a chatbot who always speaks as a stereotypical
dad, full of groan-inducing puns, cheesy one-liners, and dorky humor. Your
mission is to make the user roll their eyes and groan, but secretly smile.

**Core Rules:**

* Always respond in the tone of a corny dad who thinks they are way funnier than they actually are.
* Where appropriate, weave in a dad joke, pun, or silly quip, even if it's unrelated to the topic.
* Keep your delivery wholesome, friendly, and slightly embarrassing, like a dad trying to be "cool."
* If the user asks a serious question, you should still *attempt* to answer it, but slip in a pun or dad joke along the way.
* Occasionally call out your own jokes with phrases like "Eh? Get it?" or "I'll see myself out..."
* Never break character: you are always the dorky dad.

**Examples of style:**

* User: "What's the weather like?"
  You: "Well, it's partly cloudy... but I'd say it's 100% punny with a chance of dad jokes. Better wear your *son*-screen. Eh? Get it?"

* User: "Can you help me with programming?"
  You: "Of course, kiddo! But remember, 90% of coding is figuring out why your semicolon walked out on you... it just couldn't *commit*."

* User: "Tell me a joke."
  You: "Sure thing! Why don't skeletons ever fight each other? ... Because they don't have the guts. Classic."`

// Data part names the chat stream may carry besides tool parts.
const (
	DataNotification = "notification"
	DataWeather      = "weather"
)

// ChatOptions tunes how replies are streamed.
type ChatOptions struct {
	DefaultModel    string
	Translate       translate.Options
	MailboxCapacity int
	Logger          *slog.Logger
}

type ChatService struct {
	store       repository.Store
	persistence *chat.Persistence
	toolkit     *tools.Toolkit
	schema      *uimessage.Schema
	opts        ChatOptions
	logger      *slog.Logger
}

func NewChatService(store repository.Store, provider llm.Provider, toolkit *tools.Toolkit, opts ChatOptions) *ChatService {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &ChatService{
		store:       store,
		persistence: chat.NewPersistence(store, provider, logger),
		toolkit:     toolkit,
		schema:      uimessage.NewSchema(toolkit.Names(), DataNotification, DataWeather),
		opts:        opts,
		logger:      logger,
	}
}

// StartChat loads the chat named by req and starts streaming the model's
// reply to req.Message. Errors returned here happen before any chunk is
// produced; later failures are reported through the stream.
func (s *ChatService) StartChat(ctx context.Context, req *model.ChatRequest) (*chatstream.Stream, error) {
	if req.Message.Role != uimessage.RoleUser {
		return nil, fmt.Errorf("%w: message role must be %q, got %q", app_errors.ErrValidation, uimessage.RoleUser, req.Message.Role)
	}
	if err := req.Message.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %s", app_errors.ErrValidation, err.Error())
	}

	c, err := s.persistence.GetOrCreate(ctx, req.ID)
	if err != nil {
		s.logger.Error("Failed to load chat history", "chat_id", req.ID, "error", err)
		return nil, fmt.Errorf("%w: could not load chat history", app_errors.ErrUnavailable)
	}

	history := c.History()
	prompt := conversation.FromUIMessages([]uimessage.Message{req.Message})
	if history.IsEmpty() {
		prompt = prompt.SetSystem(SystemPrompt)
	}

	modelName := req.SelectedChatModel
	if modelName == "" {
		modelName = s.opts.DefaultModel
	}
	logger := s.logger.With("chat_id", req.ID, "model", modelName)
	logger.Info("Starting chat reply", "history_messages", len(history.Messages))

	opts := chatstream.Options{
		Translate:       s.opts.Translate,
		MessageID:       translate.MessageIDFromHistory(history),
		Schema:          s.schema,
		MailboxCapacity: s.opts.MailboxCapacity,
		Logger:          logger,
	}
	return chatstream.New(ctx, opts, func(ctx context.Context, o *chatstream.Orchestrator) error {
		notification, err := uimessage.NewDataChunk(DataNotification, model.Notification{Level: "info", Message: "hi"})
		if err != nil {
			return err
		}
		if err := o.Write(ctx, notification); err != nil {
			return err
		}

		return o.RunTurns(ctx, prompt, func(ctx context.Context, p llm.Prompt) <-chan llm.StreamPart {
			return c.StreamText(ctx, chat.StreamRequest{Prompt: p, Toolkit: s.toolkit, Model: modelName})
		})
	}), nil
}

// GetChat returns a chat's history as UI messages.
func (s *ChatService) GetChat(ctx context.Context, chatID string) (*model.Chat, error) {
	history, err := s.store.Get(ctx, chatID)
	if err != nil {
		return nil, s.storeError(chatID, err)
	}
	return &model.Chat{
		ID:       chatID,
		Title:    repository.TitleFor(history),
		Messages: conversation.ToUIMessages(history),
	}, nil
}

// ListChats returns summaries of all stored chats, most recent first.
func (s *ChatService) ListChats(ctx context.Context) ([]model.ChatSummary, error) {
	summaries, err := s.store.List(ctx)
	if err != nil {
		s.logger.Error("Failed to list chats", "error", err)
		return nil, fmt.Errorf("%w: could not list chats", app_errors.ErrInternal)
	}
	return summaries, nil
}

// DeleteChat removes a chat and its history.
func (s *ChatService) DeleteChat(ctx context.Context, chatID string) error {
	if err := s.store.Delete(ctx, chatID); err != nil {
		return s.storeError(chatID, err)
	}
	s.logger.Info("Deleted chat", "chat_id", chatID)
	return nil
}

func (s *ChatService) storeError(chatID string, err error) error {
	if errors.Is(err, repository.ErrNotFound) {
		return fmt.Errorf("%w: chat with id %s", app_errors.ErrNotFound, chatID)
	}
	s.logger.Error("Chat store failure", "chat_id", chatID, "error", err)
	return fmt.Errorf("%w: chat store failure", app_errors.ErrInternal)
}
