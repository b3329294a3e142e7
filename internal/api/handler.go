package api

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	app_errors "github.com/IMax153/netlify-ai-gateway/internal/errors"
	"github.com/IMax153/netlify-ai-gateway/internal/interfaces"
	"github.com/IMax153/netlify-ai-gateway/internal/model"
	"github.com/IMax153/netlify-ai-gateway/internal/sse"
)

// ChatHandler serves the chat stream and the stored chats.
type ChatHandler struct {
	chatService interfaces.ChatService
}

func NewChatHandler(chatSvc interfaces.ChatService) *ChatHandler {
	return &ChatHandler{chatService: chatSvc}
}

// HandleChat godoc
// @Summary      Stream a chat reply
// @Description  Appends the user message to the chat and streams the reply as UI message chunks. The stream ends with a [DONE] frame.
// @Tags         Chat
// @Accept       json
// @Produce      text/event-stream
// @Param        chatRequest  body  model.ChatRequest  true  "Chat id, newest user message and model"
// @Success      200          {string}  string  "Stream of UI message chunks"
// @Failure      400          {object}  ErrorResponse
// @Failure      503          {object}  ErrorResponse
// @Router       /chat [post]
func (h *ChatHandler) HandleChat(w http.ResponseWriter, r *http.Request) {
	var req model.ChatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondWithError(w, fmt.Errorf("%w: invalid request body: %s", app_errors.ErrValidation, err.Error()))
		return
	}
	if err := validateChatRequest(&req); err != nil {
		respondWithError(w, err)
		return
	}

	stream, err := h.chatService.StartChat(r.Context(), &req)
	if err != nil {
		respondWithError(w, err)
		return
	}

	sse.SetHeaders(w.Header())
	w.WriteHeader(http.StatusOK)

	err = sse.Copy(r.Context(), sse.NewEncoder(w), stream.Chunks(), stream.Err)
	switch {
	case err == nil:
		slog.Debug("Finished streaming chat reply", "chat_id", req.ID)
	case r.Context().Err() != nil:
		slog.Info("Client disconnected during chat stream", "chat_id", req.ID)
	default:
		// Headers are gone already; the missing [DONE] frame tells the client.
		slog.Error("Chat stream failed", "chat_id", req.ID, "error", err)
	}
}

// GetChats godoc
// @Summary      List chats
// @Description  Returns a summary of every stored chat, most recently updated first.
// @Tags         Chats
// @Produce      json
// @Success      200  {array}   model.ChatSummary
// @Failure      500  {object}  ErrorResponse
// @Router       /v1/chats [get]
func (h *ChatHandler) GetChats(w http.ResponseWriter, r *http.Request) {
	chats, err := h.chatService.ListChats(r.Context())
	if err != nil {
		respondWithError(w, err)
		return
	}
	respondWithJSON(w, http.StatusOK, chats)
}

// GetChat godoc
// @Summary      Get a chat
// @Description  Returns a chat's history as UI messages.
// @Tags         Chats
// @Produce      json
// @Param        chatID  path      string  true  "Chat ID"
// @Success      200     {object}  model.Chat
// @Failure      404     {object}  ErrorResponse
// @Router       /v1/chats/{chatID} [get]
func (h *ChatHandler) GetChat(w http.ResponseWriter, r *http.Request) {
	chatID := chi.URLParam(r, "chatID")
	chat, err := h.chatService.GetChat(r.Context(), chatID)
	if err != nil {
		respondWithError(w, err)
		return
	}
	respondWithJSON(w, http.StatusOK, chat)
}

// HandleDeleteChat godoc
// @Summary      Delete a chat
// @Tags         Chats
// @Produce      json
// @Param        chatID  path      string  true  "Chat ID"
// @Success      200     {object}  StatusResponse
// @Failure      404     {object}  ErrorResponse
// @Router       /v1/chats/{chatID} [delete]
func (h *ChatHandler) HandleDeleteChat(w http.ResponseWriter, r *http.Request) {
	chatID := chi.URLParam(r, "chatID")
	if err := h.chatService.DeleteChat(r.Context(), chatID); err != nil {
		respondWithError(w, err)
		return
	}
	respondWithJSON(w, http.StatusOK, StatusResponse{Status: "ok"})
}
