package conversation_test

import (
	"encoding/json"
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/IMax153/netlify-ai-gateway/internal/conversation"
	"github.com/IMax153/netlify-ai-gateway/internal/llm"
	"github.com/IMax153/netlify-ai-gateway/internal/uimessage"
)

func TestAccumulator_Spans(t *testing.T) {
	// ARRANGE
	acc := conversation.NewAccumulator(nil)
	signature := llm.ProviderMetadata{"anthropic": json.RawMessage(`{"signature":"sig"}`)}

	// ACT
	for _, p := range []llm.StreamPart{
		llm.ResponseMetadataPart{ID: "resp"},
		llm.ReasoningStartPart{ID: "r"},
		llm.TextStartPart{ID: "t"},
		llm.ReasoningDeltaPart{ID: "r", Delta: "Dad "},
		llm.TextDeltaPart{ID: "t", Delta: "Why "},
		llm.ReasoningDeltaPart{ID: "r", Delta: "mode"},
		llm.TextDeltaPart{ID: "t", Delta: "not?"},
		llm.TextEndPart{ID: "t"},
		llm.ReasoningEndPart{ID: "r", Metadata: signature},
		llm.FinishPart{Reason: llm.FinishStop, Usage: llm.Usage{InputTokens: 3, OutputTokens: 4, TotalTokens: 7}},
	} {
		acc.Add(p)
	}

	// ASSERT
	resp := acc.Response()
	assert.Equal(t, []llm.ContentPart{
		llm.ReasoningContent{Text: "Dad mode", Options: signature},
		llm.TextContent{Text: "Why not?"},
	}, resp.Content, "spans keep the position of their start part")
	assert.Equal(t, llm.FinishStop, resp.FinishReason)
	assert.Equal(t, int64(7), resp.Usage.TotalTokens)
	assert.Zero(t, acc.Dropped())
}

func TestAccumulator_UnknownSpan(t *testing.T) {
	acc := conversation.NewAccumulator(nil)

	acc.Add(llm.TextDeltaPart{ID: "ghost", Delta: "boo"})
	acc.Add(llm.TextStartPart{ID: "1"})
	acc.Add(llm.TextEndPart{ID: "1"})
	acc.Add(llm.TextDeltaPart{ID: "1", Delta: "late"})
	acc.Add(llm.ReasoningEndPart{ID: "never-opened"})

	assert.Equal(t, 3, acc.Dropped())
	assert.Equal(t, []llm.ContentPart{llm.TextContent{Text: ""}}, acc.Response().Content)
}

func TestAccumulator_DiscardsOpenSpans(t *testing.T) {
	acc := conversation.NewAccumulator(nil)

	acc.Add(llm.TextStartPart{ID: "1"})
	acc.Add(llm.TextDeltaPart{ID: "1", Delta: "partial"})
	acc.Add(llm.ErrorPart{Err: errors.New("stream reset")})

	resp := acc.Response()
	assert.Empty(t, resp.Content)
	assert.EqualError(t, resp.Err, "stream reset")
	assert.Equal(t, llm.FinishUnknown, resp.FinishReason)
	assert.Empty(t, acc.Messages())
}

func TestAccumulator_Messages(t *testing.T) {
	acc := conversation.NewAccumulator(nil)

	for _, p := range []llm.StreamPart{
		llm.TextStartPart{ID: "1"},
		llm.TextDeltaPart{ID: "1", Delta: "One moment"},
		llm.TextEndPart{ID: "1"},
		llm.ToolCallPart{ID: "c1", Name: "GetRandomDadJoke"},
		llm.ToolCallPart{ID: "c2", Name: "web_search", ProviderExecuted: true, Params: json.RawMessage(`{"q":"dad"}`)},
		llm.ToolResultPart{ID: "c2", Name: "web_search", ProviderExecuted: true, Result: json.RawMessage(`[]`)},
		llm.ToolResultPart{ID: "c1", Name: "GetRandomDadJoke", Result: json.RawMessage(`{"id":"x","joke":"y"}`)},
		llm.FilePart{MediaType: "image/png", Data: []byte{1, 2}},
		llm.SourcePart{SourceType: llm.SourceURL, ID: "s", URL: "https://icanhazdadjoke.com"},
		llm.FinishPart{Reason: llm.FinishToolCalls},
	} {
		acc.Add(p)
	}

	msgs := acc.Messages()
	require.Len(t, msgs, 2)

	assert.Equal(t, llm.RoleAssistant, msgs[0].Role)
	assert.Equal(t, []llm.ContentPart{
		llm.TextContent{Text: "One moment"},
		llm.ToolCallContent{ID: "c1", Name: "GetRandomDadJoke", Params: json.RawMessage(`{}`)},
		llm.ToolCallContent{ID: "c2", Name: "web_search", Params: json.RawMessage(`{"q":"dad"}`), ProviderExecuted: true},
		llm.ToolResultContent{ID: "c2", Name: "web_search", Result: json.RawMessage(`[]`), ProviderExecuted: true},
		llm.FileContent{MediaType: "image/png", Data: "data:image/png;base64,AQI="},
	}, msgs[0].Content)

	assert.Equal(t, llm.RoleTool, msgs[1].Role)
	assert.Equal(t, []llm.ContentPart{
		llm.ToolResultContent{ID: "c1", Name: "GetRandomDadJoke", Result: json.RawMessage(`{"id":"x","joke":"y"}`)},
	}, msgs[1].Content)

	assert.Len(t, acc.Response().Sources, 1)
}

func TestFromUIMessages(t *testing.T) {
	t.Run("System and user", func(t *testing.T) {
		prompt := conversation.FromUIMessages([]uimessage.Message{
			{ID: "s", Role: uimessage.RoleSystem, Parts: []uimessage.Part{uimessage.TextPart{Text: "Be "}, uimessage.TextPart{Text: "a dad."}}},
			{ID: "u1", Role: uimessage.RoleUser, Parts: []uimessage.Part{
				uimessage.TextPart{Text: "What is this?"},
				uimessage.FilePart{MediaType: "image/png", Filename: "cat.png", URL: "data:image/png;base64,AQI="},
				uimessage.DataPart{Name: "notification", Data: json.RawMessage(`{}`)},
			}},
		})

		require.Len(t, prompt.Messages, 2)
		assert.Equal(t, "Be a dad.", prompt.Messages[0].Text())
		assert.Equal(t, "u1", prompt.Messages[1].MessageID)
		assert.Equal(t, []llm.ContentPart{
			llm.TextContent{Text: "What is this?"},
			llm.FileContent{MediaType: "image/png", FileName: "cat.png", Data: "data:image/png;base64,AQI="},
		}, prompt.Messages[1].Content)
	})

	t.Run("Assistant steps and tool states", func(t *testing.T) {
		prompt := conversation.FromUIMessages([]uimessage.Message{{
			ID:   "a1",
			Role: uimessage.RoleAssistant,
			Parts: []uimessage.Part{
				uimessage.StepStartPart{},
				uimessage.ReasoningPart{Text: "joke time"},
				uimessage.ToolPart{ToolName: "SearchDadJoke", ToolCallID: "c1", State: uimessage.ToolOutputAvailable, Input: json.RawMessage(`{"searchTerm":"cat"}`), Output: json.RawMessage(`"meow"`)},
				uimessage.ToolPart{ToolName: "SearchDadJoke", ToolCallID: "c2", State: uimessage.ToolOutputError, RawInput: json.RawMessage(`{"searchTerm":3}`), ErrorText: "bad input"},
				uimessage.ToolPart{ToolName: "GetRandomDadJoke", ToolCallID: "c3", State: uimessage.ToolInputStreaming},
				uimessage.StepStartPart{},
				uimessage.TextPart{Text: "Here you go"},
			},
		}})

		require.Len(t, prompt.Messages, 3)

		first := prompt.Messages[0]
		assert.Equal(t, llm.RoleAssistant, first.Role)
		assert.Empty(t, first.MessageID)
		assert.Equal(t, []llm.ContentPart{
			llm.ReasoningContent{Text: "joke time"},
			llm.ToolCallContent{ID: "c1", Name: "SearchDadJoke", Params: json.RawMessage(`{"searchTerm":"cat"}`)},
			llm.ToolCallContent{ID: "c2", Name: "SearchDadJoke", Params: json.RawMessage(`{"searchTerm":3}`)},
		}, first.Content)

		tool := prompt.Messages[1]
		assert.Equal(t, llm.RoleTool, tool.Role)
		assert.Equal(t, []llm.ContentPart{
			llm.ToolResultContent{ID: "c1", Name: "SearchDadJoke", Result: json.RawMessage(`"meow"`)},
			llm.ToolResultContent{ID: "c2", Name: "SearchDadJoke", Result: json.RawMessage(`"bad input"`), IsFailure: true},
		}, tool.Content)

		last := prompt.Messages[2]
		assert.Equal(t, "a1", last.MessageID)
		assert.Equal(t, "Here you go", last.Text())
	})

	t.Run("Provider executed results stay on the assistant message", func(t *testing.T) {
		prompt := conversation.FromUIMessages([]uimessage.Message{{
			ID:   "a1",
			Role: uimessage.RoleAssistant,
			Parts: []uimessage.Part{
				uimessage.ToolPart{ToolName: "web_search", ToolCallID: "w", State: uimessage.ToolOutputAvailable, Input: json.RawMessage(`{}`), Output: json.RawMessage(`[]`), ProviderExecuted: true},
			},
		}})

		require.Len(t, prompt.Messages, 1)
		assert.Len(t, prompt.Messages[0].Content, 2)
	})
}

func TestToUIMessages(t *testing.T) {
	prompt := llm.NewPrompt(
		llm.NewUserMessage(llm.TextContent{Text: "joke please"}),
		llm.NewAssistantMessage(llm.ToolCallContent{ID: "c1", Name: "GetRandomDadJoke", Params: json.RawMessage(`{}`)}),
		llm.NewToolMessage(llm.ToolResultContent{ID: "c1", Name: "GetRandomDadJoke", Result: json.RawMessage(`"timeout"`), IsFailure: true}),
	)

	msgs := conversation.ToUIMessages(prompt)

	require.Len(t, msgs, 2)
	assert.NotEmpty(t, msgs[0].ID)
	require.NoError(t, msgs[1].Validate())
	require.Len(t, msgs[1].Parts, 2)
	tool := msgs[1].Parts[1].(uimessage.ToolPart)
	assert.Equal(t, uimessage.ToolOutputError, tool.State)
	assert.Equal(t, "timeout", tool.ErrorText)
}

func TestRoundTrip(t *testing.T) {
	first := llm.NewAssistantMessage(
		llm.ReasoningContent{Text: "They want a cat joke", Options: llm.ProviderMetadata{"anthropic": json.RawMessage(`{"signature":"s"}`)}},
		llm.TextContent{Text: "Searching"},
		llm.ToolCallContent{ID: "c1", Name: "SearchDadJoke", Params: json.RawMessage(`{"searchTerm":"cat"}`)},
	)
	second := llm.NewAssistantMessage(llm.TextContent{Text: "Purr-fect."})
	second.MessageID = "assistant-2"
	user := llm.NewUserMessage(llm.TextContent{Text: "cat joke"})
	user.MessageID = "user-1"

	prompt := llm.NewPrompt(
		llm.NewSystemMessage("You are a dad."),
		user,
		first,
		llm.NewToolMessage(llm.ToolResultContent{ID: "c1", Name: "SearchDadJoke", Result: json.RawMessage(`"What do you call a pile of cats? A meowntain."`)}),
		second,
	)

	uiMessages := conversation.ToUIMessages(prompt)
	for _, m := range uiMessages {
		require.NoError(t, m.Validate())
	}

	// persisted form goes through JSON
	raw, err := json.Marshal(uiMessages)
	require.NoError(t, err)
	var decoded []uimessage.Message
	require.NoError(t, json.Unmarshal(raw, &decoded))

	again := conversation.FromUIMessages(decoded)
	if diff := cmp.Diff(prompt, again); diff != "" {
		t.Errorf("round trip mismatch (-want +got):\n%s", diff)
	}
}
