package chat_test

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/IMax153/netlify-ai-gateway/internal/chat"
	"github.com/IMax153/netlify-ai-gateway/internal/chatstream"
	"github.com/IMax153/netlify-ai-gateway/internal/llm"
	llmmocks "github.com/IMax153/netlify-ai-gateway/internal/llm/mocks"
	"github.com/IMax153/netlify-ai-gateway/internal/repository"
	repomocks "github.com/IMax153/netlify-ai-gateway/internal/repository/mocks"
	"github.com/IMax153/netlify-ai-gateway/internal/sse"
	"github.com/IMax153/netlify-ai-gateway/internal/tools"
	"github.com/IMax153/netlify-ai-gateway/internal/translate"
	"github.com/IMax153/netlify-ai-gateway/internal/uimessage"
)

type echoParams struct {
	Word string `json:"word" validate:"required"`
}

func testToolkit() *tools.Toolkit {
	return tools.NewToolkit(
		tools.New("Echo", "Echoes a word.", nil, func(_ context.Context, p echoParams) (string, error) {
			return p.Word + "!", nil
		}),
		tools.New("Broken", "Always fails.", nil, func(_ context.Context, _ struct{}) (string, error) {
			return "", errors.New("joke server on fire")
		}),
	)
}

// streams sends parts on the provider channel and closes it, the way a real
// provider does.
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

func collect(ch <-chan llm.StreamPart) []llm.StreamPart {
	var parts []llm.StreamPart
	for p := range ch {
		parts = append(parts, p)
	}
	return parts
}

func textTurn(text string, reason llm.FinishReason) []llm.StreamPart {
	return []llm.StreamPart{
		llm.ResponseMetadataPart{ID: "resp-1"},
		llm.TextStartPart{ID: "t1"},
		llm.TextDeltaPart{ID: "t1", Delta: text},
		llm.TextEndPart{ID: "t1"},
		llm.FinishPart{Reason: reason},
	}
}

func setupChat(t *testing.T, history llm.Prompt, getErr error) (*chat.Chat, *llmmocks.MockProvider, *repomocks.MockStore) {
	store := repomocks.NewMockStore(t)
	provider := llmmocks.NewMockProvider(t)
	store.On("Get", mock.Anything, "chat-1").Return(history, getErr).Once()

	c, err := chat.NewPersistence(store, provider, nil).GetOrCreate(context.Background(), "chat-1")
	require.NoError(t, err)
	return c, provider, store
}

func TestPersistence_GetOrCreate(t *testing.T) {
	t.Run("Existing chat", func(t *testing.T) {
		history := llm.NewPrompt(llm.NewUserMessage(llm.TextContent{Text: "hi"}))
		c, _, _ := setupChat(t, history, nil)

		assert.Equal(t, "chat-1", c.ID())
		assert.Equal(t, history, c.History())
	})

	t.Run("New chat", func(t *testing.T) {
		c, _, _ := setupChat(t, llm.Prompt{}, repository.ErrNotFound)

		assert.True(t, c.History().IsEmpty())
	})

	t.Run("Store failure", func(t *testing.T) {
		store := repomocks.NewMockStore(t)
		store.On("Get", mock.Anything, "chat-1").Return(llm.Prompt{}, errors.New("connection refused")).Once()

		_, err := chat.NewPersistence(store, llmmocks.NewMockProvider(t), nil).GetOrCreate(context.Background(), "chat-1")

		assert.ErrorContains(t, err, "connection refused")
	})
}

func TestChat_StreamText(t *testing.T) {
	t.Run("Single turn is persisted", func(t *testing.T) {
		// ARRANGE
		history := llm.NewPrompt(llm.NewSystemMessage("Be a dad."))
		c, provider, store := setupChat(t, history, nil)
		user := llm.NewPrompt(llm.NewUserMessage(llm.TextContent{Text: "Tell me a joke"}))

		provider.On("Stream", mock.Anything, mock.MatchedBy(func(req *llm.Request) bool {
			return req.Model == "gpt-test" && len(req.Prompt.Messages) == 2 && len(req.Tools) == 2
		}), mock.Anything).Run(streams(textTurn("Knock knock", llm.FinishStop)...)).Return(nil).Once()

		var saved llm.Prompt
		store.On("Save", mock.Anything, "chat-1", mock.Anything).Run(func(args mock.Arguments) {
			saved = args.Get(2).(llm.Prompt)
		}).Return(nil).Once()

		// ACT
		parts := collect(c.StreamText(context.Background(), chat.StreamRequest{
			Prompt:  user,
			Toolkit: testToolkit(),
			Model:   "gpt-test",
		}))

		// ASSERT
		require.Len(t, parts, 5)
		assert.IsType(t, llm.FinishPart{}, parts[4])
		require.Len(t, saved.Messages, 3)
		assistant := saved.Messages[2]
		assert.Equal(t, llm.RoleAssistant, assistant.Role)
		assert.Equal(t, "Knock knock", assistant.Text())
		assert.NotEmpty(t, assistant.MessageID)
		assert.Equal(t, saved, c.History())
	})

	t.Run("Client tool call is executed", func(t *testing.T) {
		c, provider, store := setupChat(t, llm.Prompt{}, repository.ErrNotFound)
		provider.On("Stream", mock.Anything, mock.Anything, mock.Anything).Run(streams(
			llm.ResponseMetadataPart{},
			llm.ToolCallPart{ID: "c1", Name: "Echo", Params: json.RawMessage(`{"word":"pun"}`)},
			llm.FinishPart{Reason: llm.FinishToolCalls},
		)).Return(nil).Once()

		var saved llm.Prompt
		store.On("Save", mock.Anything, "chat-1", mock.Anything).Run(func(args mock.Arguments) {
			saved = args.Get(2).(llm.Prompt)
		}).Return(nil).Once()

		parts := collect(c.StreamText(context.Background(), chat.StreamRequest{Toolkit: testToolkit()}))

		require.Len(t, parts, 4)
		result, ok := parts[2].(llm.ToolResultPart)
		require.True(t, ok)
		assert.Equal(t, "c1", result.ID)
		assert.False(t, result.IsFailure)
		assert.JSONEq(t, `"pun!"`, string(result.EncodedResult))

		require.Len(t, saved.Messages, 2)
		assert.Equal(t, llm.RoleAssistant, saved.Messages[0].Role)
		assert.Equal(t, llm.RoleTool, saved.Messages[1].Role)
		toolResult, ok := saved.Messages[1].Content[0].(llm.ToolResultContent)
		require.True(t, ok)
		assert.JSONEq(t, `"pun!"`, string(toolResult.Result))
	})

	t.Run("Tool failures become failed results", func(t *testing.T) {
		c, provider, store := setupChat(t, llm.Prompt{}, repository.ErrNotFound)
		provider.On("Stream", mock.Anything, mock.Anything, mock.Anything).Run(streams(
			llm.ResponseMetadataPart{},
			llm.ToolCallPart{ID: "c1", Name: "Echo", Params: json.RawMessage(`{"shout":"pun"}`)},
			llm.ToolCallPart{ID: "c2", Name: "Broken"},
			llm.ToolCallPart{ID: "c3", Name: "Missing"},
			llm.FinishPart{Reason: llm.FinishToolCalls},
		)).Return(nil).Once()
		store.On("Save", mock.Anything, "chat-1", mock.Anything).Return(nil).Once()

		parts := collect(c.StreamText(context.Background(), chat.StreamRequest{Toolkit: testToolkit()}))

		require.Len(t, parts, 8)
		badParams := parts[1].(llm.ToolCallPart)
		assert.Contains(t, badParams.InputError, "invalid tool parameters")
		assert.True(t, parts[2].(llm.ToolResultPart).IsFailure)

		broken := parts[4].(llm.ToolResultPart)
		assert.Empty(t, parts[3].(llm.ToolCallPart).InputError)
		assert.True(t, broken.IsFailure)
		assert.Equal(t, "joke server on fire", llm.ResultText(broken.EncodedResult))

		assert.Contains(t, parts[5].(llm.ToolCallPart).InputError, "unknown tool")
		assert.True(t, parts[6].(llm.ToolResultPart).IsFailure)
	})

	t.Run("Provider-executed calls are passed through", func(t *testing.T) {
		c, provider, store := setupChat(t, llm.Prompt{}, repository.ErrNotFound)
		provider.On("Stream", mock.Anything, mock.Anything, mock.Anything).Run(streams(
			llm.ToolCallPart{ID: "c1", Name: "web_search", ProviderExecuted: true},
			llm.FinishPart{Reason: llm.FinishStop},
		)).Return(nil).Once()
		store.On("Save", mock.Anything, "chat-1", mock.Anything).Return(nil).Once()

		parts := collect(c.StreamText(context.Background(), chat.StreamRequest{Toolkit: testToolkit()}))

		require.Len(t, parts, 2)
		assert.Empty(t, parts[0].(llm.ToolCallPart).InputError)
	})

	t.Run("Provider error is sent in-band and not persisted", func(t *testing.T) {
		c, provider, _ := setupChat(t, llm.Prompt{}, repository.ErrNotFound)
		upstream := &llm.StatusError{Provider: "openai", StatusCode: 502, Body: "bad gateway"}
		provider.On("Stream", mock.Anything, mock.Anything, mock.Anything).Run(streams(
			llm.ResponseMetadataPart{},
			llm.TextStartPart{ID: "t1"},
			llm.TextDeltaPart{ID: "t1", Delta: "Why did"},
		)).Return(upstream).Once()

		parts := collect(c.StreamText(context.Background(), chat.StreamRequest{}))

		require.Len(t, parts, 4)
		errPart, ok := parts[3].(llm.ErrorPart)
		require.True(t, ok)
		assert.ErrorIs(t, errPart.Err, upstream)
		assert.True(t, c.History().IsEmpty())
	})

	t.Run("In-band provider error is sent once", func(t *testing.T) {
		c, provider, _ := setupChat(t, llm.Prompt{}, repository.ErrNotFound)
		provider.On("Stream", mock.Anything, mock.Anything, mock.Anything).Run(streams(
			llm.ResponseMetadataPart{},
			llm.ErrorPart{Err: errors.New("overloaded")},
		)).Return(nil).Once()

		parts := collect(c.StreamText(context.Background(), chat.StreamRequest{}))

		require.Len(t, parts, 2)
		errPart, ok := parts[1].(llm.ErrorPart)
		require.True(t, ok)
		assert.EqualError(t, errPart.Err, "overloaded")
		assert.True(t, c.History().IsEmpty())
	})

	t.Run("Save failure replaces finish with an error", func(t *testing.T) {
		c, provider, store := setupChat(t, llm.Prompt{}, repository.ErrNotFound)
		provider.On("Stream", mock.Anything, mock.Anything, mock.Anything).Run(streams(textTurn("Hi", llm.FinishStop)...)).Return(nil).Once()
		store.On("Save", mock.Anything, "chat-1", mock.Anything).Return(errors.New("disk full")).Once()

		parts := collect(c.StreamText(context.Background(), chat.StreamRequest{}))

		require.Len(t, parts, 5)
		errPart, ok := parts[4].(llm.ErrorPart)
		require.True(t, ok)
		assert.ErrorContains(t, errPart.Err, "disk full")
		assert.True(t, c.History().IsEmpty())
	})

	t.Run("Cancellation stops without error part", func(t *testing.T) {
		c, provider, _ := setupChat(t, llm.Prompt{}, repository.ErrNotFound)
		ctx, cancel := context.WithCancel(context.Background())
		provider.On("Stream", mock.Anything, mock.Anything, mock.Anything).Run(func(args mock.Arguments) {
			pctx := args.Get(0).(context.Context)
			ch := args.Get(2).(chan<- llm.StreamPart)
			defer close(ch)
			_ = llm.Send(pctx, ch, llm.ResponseMetadataPart{})
			<-pctx.Done()
		}).Return(context.Canceled).Once()

		out := c.StreamText(ctx, chat.StreamRequest{})
		first := <-out
		cancel()
		rest := collect(out)

		assert.IsType(t, llm.ResponseMetadataPart{}, first)
		for _, p := range rest {
			assert.NotEqual(t, llm.PartError, p.PartType())
		}
		assert.True(t, c.History().IsEmpty())
	})
}

func TestChat_MalformedToolParamsReachTheClient(t *testing.T) {
	// ARRANGE
	toolkit := testToolkit()
	c, provider, store := setupChat(t, llm.Prompt{}, repository.ErrNotFound)
	provider.On("Stream", mock.Anything, mock.Anything, mock.Anything).Run(streams(
		llm.ResponseMetadataPart{},
		llm.ToolParamsStartPart{ID: "c1", Name: "Echo"},
		llm.ToolParamsDeltaPart{ID: "c1", Delta: `{"word":"pu`},
		llm.ToolParamsEndPart{ID: "c1"},
		llm.ToolCallPart{ID: "c1", Name: "Echo", Params: json.RawMessage(`{"word":"pu`)},
		llm.FinishPart{Reason: llm.FinishLength},
	)).Return(nil).Once()

	var saved llm.Prompt
	store.On("Save", mock.Anything, "chat-1", mock.Anything).Run(func(args mock.Arguments) {
		saved = args.Get(2).(llm.Prompt)
	}).Return(nil).Once()

	stream := chatstream.New(context.Background(), chatstream.Options{
		Translate: translate.DefaultOptions(),
		Schema:    uimessage.NewSchema(toolkit.Names()),
	}, func(ctx context.Context, o *chatstream.Orchestrator) error {
		return o.RunTurns(ctx, llm.Prompt{}, func(ctx context.Context, prompt llm.Prompt) <-chan llm.StreamPart {
			return c.StreamText(ctx, chat.StreamRequest{Prompt: prompt, Toolkit: toolkit})
		})
	})

	// ACT
	var body bytes.Buffer
	err := sse.Copy(context.Background(), sse.NewEncoder(&body), stream.Chunks(), stream.Err)

	// ASSERT
	require.NoError(t, err)
	var events []sse.Event
	scanner := sse.NewScanner(&body)
	for scanner.Next() {
		events = append(events, scanner.Event())
	}
	require.NoError(t, scanner.Err())
	require.NotEmpty(t, events)
	assert.True(t, events[len(events)-1].IsDone())

	var inputError struct {
		Type      string `json:"type"`
		Input     string `json:"input"`
		ErrorText string `json:"errorText"`
	}
	for _, e := range events {
		if bytes.Contains([]byte(e.Data), []byte(`"tool-input-error"`)) {
			require.NoError(t, json.Unmarshal([]byte(e.Data), &inputError))
		}
	}
	assert.Equal(t, "tool-input-error", inputError.Type)
	assert.Equal(t, `{"word":"pu`, inputError.Input)
	assert.Contains(t, inputError.ErrorText, "invalid tool parameters")

	require.Len(t, saved.Messages, 2)
	call, ok := saved.Messages[0].Content[0].(llm.ToolCallContent)
	require.True(t, ok)
	assert.JSONEq(t, `"{\"word\":\"pu"`, string(call.Params))
}
