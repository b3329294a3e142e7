package service_test

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	app_errors "github.com/IMax153/netlify-ai-gateway/internal/errors"
	"github.com/IMax153/netlify-ai-gateway/internal/icanhazdadjoke"
	"github.com/IMax153/netlify-ai-gateway/internal/llm"
	mock_llm "github.com/IMax153/netlify-ai-gateway/internal/llm/mocks"
	"github.com/IMax153/netlify-ai-gateway/internal/model"
	"github.com/IMax153/netlify-ai-gateway/internal/repository"
	mock_repo "github.com/IMax153/netlify-ai-gateway/internal/repository/mocks"
	"github.com/IMax153/netlify-ai-gateway/internal/service"
	"github.com/IMax153/netlify-ai-gateway/internal/tools"
	"github.com/IMax153/netlify-ai-gateway/internal/translate"
	"github.com/IMax153/netlify-ai-gateway/internal/uimessage"
)

type Mocks struct {
	store    *mock_repo.MockStore
	provider *mock_llm.MockProvider
}

// cannedJokes answers every lookup with the same joke.
type cannedJokes struct{}

func (cannedJokes) Random(context.Context) (icanhazdadjoke.Joke, error) {
	return icanhazdadjoke.Joke{ID: "r1", Joke: "I'm reading a book about anti-gravity. It's impossible to put down."}, nil
}

func (cannedJokes) Search(_ context.Context, term string) ([]icanhazdadjoke.Joke, error) {
	return []icanhazdadjoke.Joke{{ID: "s1", Joke: "What do you call a " + term + " with no legs? Nothing, it won't come anyway."}}, nil
}

func setupChatService(t *testing.T) (*service.ChatService, Mocks) {
	mocks := Mocks{
		store:    mock_repo.NewMockStore(t),
		provider: mock_llm.NewMockProvider(t),
	}
	chatService := service.NewChatService(mocks.store, mocks.provider, tools.NewDadJokeToolkit(cannedJokes{}), service.ChatOptions{
		DefaultModel: "gpt-4o-mini",
		Translate:    translate.DefaultOptions(),
	})
	return chatService, mocks
}

func streams(parts ...llm.StreamPart) func(mock.Arguments) {
	return func(args mock.Arguments) {
		ctx := args.Get(0).(context.Context)
		ch := args.Get(2).(chan<- llm.StreamPart)
		defer close(ch)
		for _, p := range parts {
			if llm.Send(ctx, ch, p) != nil {
				return
			}
		}
	}
}

func userMessage(text string) uimessage.Message {
	return uimessage.Message{
		ID:    "u1",
		Role:  uimessage.RoleUser,
		Parts: []uimessage.Part{uimessage.TextPart{Text: text}},
	}
}

func chunkTypes(chunks []uimessage.Chunk) []string {
	types := make([]string, 0, len(chunks))
	for _, c := range chunks {
		types = append(types, c.ChunkType())
	}
	return types
}

func drain(ch <-chan uimessage.Chunk) []uimessage.Chunk {
	var chunks []uimessage.Chunk
	for c := range ch {
		chunks = append(chunks, c)
	}
	return chunks
}

func TestChatService_StartChat(t *testing.T) {
	ctx := context.Background()

	t.Run("New chat gets the system prompt", func(t *testing.T) {
		// ARRANGE
		chatService, mocks := setupChatService(t)
		mocks.store.On("Get", mock.Anything, "chat123").Return(llm.Prompt{}, repository.ErrNotFound).Once()
		mocks.provider.On("Stream", mock.Anything, mock.MatchedBy(func(req *llm.Request) bool {
			return req.Model == "gpt-4o-mini" &&
				len(req.Prompt.Messages) == 2 &&
				req.Prompt.Messages[0].Role == llm.RoleSystem &&
				req.Prompt.Messages[0].Text() == service.SystemPrompt &&
				len(req.Tools) == 2
		}), mock.Anything).Run(streams(
			llm.ResponseMetadataPart{ID: "resp-1"},
			llm.TextStartPart{ID: "t1"},
			llm.TextDeltaPart{ID: "t1", Delta: "Hi hungry, I'm dad."},
			llm.TextEndPart{ID: "t1"},
			llm.FinishPart{Reason: llm.FinishStop},
		)).Return(nil).Once()
		mocks.store.On("Save", mock.Anything, "chat123", mock.MatchedBy(func(p llm.Prompt) bool {
			return len(p.Messages) == 3
		})).Return(nil).Once()

		// ACT
		stream, err := chatService.StartChat(ctx, &model.ChatRequest{ID: "chat123", Message: userMessage("I'm hungry")})
		require.NoError(t, err)
		chunks := drain(stream.Chunks())

		// ASSERT
		require.NoError(t, stream.Err())
		assert.Equal(t, []string{
			"data-notification", "start", "start-step",
			"text-start", "text-delta", "text-end",
			"finish-step", "finish",
		}, chunkTypes(chunks))
		assert.JSONEq(t, `{"level":"info","message":"hi"}`, string(chunks[0].(uimessage.DataChunk).Data))
		assert.Empty(t, chunks[1].(uimessage.StartChunk).MessageID)
	})

	t.Run("Existing chat resumes the assistant message id", func(t *testing.T) {
		chatService, mocks := setupChatService(t)
		assistant := llm.NewAssistantMessage(llm.TextContent{Text: "Hello!"})
		assistant.MessageID = "msg-9"
		history := llm.NewPrompt(llm.NewSystemMessage("custom"), llm.NewUserMessage(llm.TextContent{Text: "Hi"}), assistant)
		mocks.store.On("Get", mock.Anything, "chat123").Return(history, nil).Once()
		mocks.provider.On("Stream", mock.Anything, mock.MatchedBy(func(req *llm.Request) bool {
			return req.Model == "gpt-4.1" && len(req.Prompt.Messages) == 4 && req.Prompt.Messages[0].Text() == "custom"
		}), mock.Anything).Run(streams(
			llm.ResponseMetadataPart{},
			llm.FinishPart{Reason: llm.FinishStop},
		)).Return(nil).Once()
		mocks.store.On("Save", mock.Anything, "chat123", mock.Anything).Return(nil).Once()

		stream, err := chatService.StartChat(ctx, &model.ChatRequest{ID: "chat123", Message: userMessage("Again"), SelectedChatModel: "gpt-4.1"})
		require.NoError(t, err)
		chunks := drain(stream.Chunks())

		require.NoError(t, stream.Err())
		require.Len(t, chunks, 5)
		assert.Equal(t, "msg-9", chunks[1].(uimessage.StartChunk).MessageID)
	})

	t.Run("Tool turn runs the dad-joke tool", func(t *testing.T) {
		chatService, mocks := setupChatService(t)
		mocks.store.On("Get", mock.Anything, "chat123").Return(llm.Prompt{}, repository.ErrNotFound).Once()
		mocks.provider.On("Stream", mock.Anything, mock.Anything, mock.Anything).Run(streams(
			llm.ResponseMetadataPart{},
			llm.ToolCallPart{ID: "call-1", Name: tools.SearchDadJokeName, Params: json.RawMessage(`{"searchTerm":"cow"}`)},
			llm.FinishPart{Reason: llm.FinishToolCalls},
		)).Return(nil).Once()
		mocks.provider.On("Stream", mock.Anything, mock.MatchedBy(func(req *llm.Request) bool {
			last, _ := req.Prompt.Last()
			return last.Role == llm.RoleTool
		}), mock.Anything).Run(streams(
			llm.ResponseMetadataPart{},
			llm.TextStartPart{ID: "t1"},
			llm.TextDeltaPart{ID: "t1", Delta: "Moo-ving stuff."},
			llm.TextEndPart{ID: "t1"},
			llm.FinishPart{Reason: llm.FinishStop},
		)).Return(nil).Once()
		mocks.store.On("Save", mock.Anything, "chat123", mock.Anything).Return(nil).Twice()

		stream, err := chatService.StartChat(ctx, &model.ChatRequest{ID: "chat123", Message: userMessage("A cow joke please")})
		require.NoError(t, err)
		chunks := drain(stream.Chunks())

		require.NoError(t, stream.Err())
		assert.Equal(t, []string{
			"data-notification", "start", "start-step",
			"tool-input-available", "tool-output-available",
			"finish-step", "finish",
			"start", "start-step",
			"text-start", "text-delta", "text-end",
			"finish-step", "finish",
		}, chunkTypes(chunks))
		output := chunks[4].(uimessage.ToolOutputAvailableChunk)
		assert.JSONEq(t, `"What do you call a cow with no legs? Nothing, it won't come anyway."`, string(output.Output))
	})

	t.Run("Provider failure is reported in-band", func(t *testing.T) {
		chatService, mocks := setupChatService(t)
		mocks.store.On("Get", mock.Anything, "chat123").Return(llm.Prompt{}, repository.ErrNotFound).Once()
		mocks.provider.On("Stream", mock.Anything, mock.Anything, mock.Anything).Run(streams()).
			Return(&llm.StatusError{Provider: "openai", StatusCode: 401, Body: "invalid api key"}).Once()

		stream, err := chatService.StartChat(ctx, &model.ChatRequest{ID: "chat123", Message: userMessage("Hi")})
		require.NoError(t, err)
		chunks := drain(stream.Chunks())

		require.NoError(t, stream.Err())
		assert.Equal(t, []string{"data-notification", "error"}, chunkTypes(chunks))
		assert.Contains(t, chunks[1].(uimessage.ErrorChunk).ErrorText, "invalid api key")
	})

	t.Run("Rejects non-user messages", func(t *testing.T) {
		chatService, _ := setupChatService(t)
		msg := userMessage("Hi")
		msg.Role = uimessage.RoleAssistant

		_, err := chatService.StartChat(ctx, &model.ChatRequest{ID: "chat123", Message: msg})

		assert.ErrorIs(t, err, app_errors.ErrValidation)
	})

	t.Run("Store unavailable", func(t *testing.T) {
		chatService, mocks := setupChatService(t)
		mocks.store.On("Get", mock.Anything, "chat123").Return(llm.Prompt{}, errors.New("connection refused")).Once()

		_, err := chatService.StartChat(ctx, &model.ChatRequest{ID: "chat123", Message: userMessage("Hi")})

		assert.ErrorIs(t, err, app_errors.ErrUnavailable)
	})
}

func TestChatService_GetChat(t *testing.T) {
	ctx := context.Background()

	t.Run("Success", func(t *testing.T) {
		chatService, mocks := setupChatService(t)
		history := llm.NewPrompt(
			llm.NewSystemMessage(service.SystemPrompt),
			llm.NewUserMessage(llm.TextContent{Text: "Knock knock"}),
			llm.NewAssistantMessage(llm.TextContent{Text: "Who's there?"}),
		)
		mocks.store.On("Get", ctx, "chat123").Return(history, nil).Once()

		chat, err := chatService.GetChat(ctx, "chat123")

		require.NoError(t, err)
		assert.Equal(t, "chat123", chat.ID)
		assert.Equal(t, "Knock knock", chat.Title)
		require.Len(t, chat.Messages, 3)
		assert.Equal(t, uimessage.RoleAssistant, chat.Messages[2].Role)
	})

	t.Run("Not Found", func(t *testing.T) {
		chatService, mocks := setupChatService(t)
		mocks.store.On("Get", ctx, "chat123").Return(llm.Prompt{}, repository.ErrNotFound).Once()

		_, err := chatService.GetChat(ctx, "chat123")

		assert.ErrorIs(t, err, app_errors.ErrNotFound)
	})
}

func TestChatService_ListChats(t *testing.T) {
	ctx := context.Background()

	t.Run("Success", func(t *testing.T) {
		chatService, mocks := setupChatService(t)
		expected := []model.ChatSummary{{ID: "a", Title: "Cats"}, {ID: "b", Title: "Dogs"}}
		mocks.store.On("List", ctx).Return(expected, nil).Once()

		summaries, err := chatService.ListChats(ctx)

		require.NoError(t, err)
		assert.Equal(t, expected, summaries)
	})

	t.Run("Store failure", func(t *testing.T) {
		chatService, mocks := setupChatService(t)
		mocks.store.On("List", ctx).Return(nil, errors.New("boom")).Once()

		_, err := chatService.ListChats(ctx)

		assert.ErrorIs(t, err, app_errors.ErrInternal)
	})
}

func TestChatService_DeleteChat(t *testing.T) {
	ctx := context.Background()

	t.Run("Success", func(t *testing.T) {
		chatService, mocks := setupChatService(t)
		mocks.store.On("Delete", ctx, "chat123").Return(nil).Once()

		assert.NoError(t, chatService.DeleteChat(ctx, "chat123"))
	})

	t.Run("Not Found", func(t *testing.T) {
		chatService, mocks := setupChatService(t)
		mocks.store.On("Delete", ctx, "chat123").Return(repository.ErrNotFound).Once()

		assert.ErrorIs(t, chatService.DeleteChat(ctx, "chat123"), app_errors.ErrNotFound)
	})
}
