package interfaces

import (
	"context"

	"github.com/IMax153/netlify-ai-gateway/internal/chatstream"
	"github.com/IMax153/netlify-ai-gateway/internal/model"
)

// ChatService is what the API layer needs from the chat service.
type ChatService interface {
	StartChat(ctx context.Context, req *model.ChatRequest) (*chatstream.Stream, error)
	GetChat(ctx context.Context, chatID string) (*model.Chat, error)
	ListChats(ctx context.Context) ([]model.ChatSummary, error)
	DeleteChat(ctx context.Context, chatID string) error
}
