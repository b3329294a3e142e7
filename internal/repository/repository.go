package repository

import (
	"context"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/IMax153/netlify-ai-gateway/internal/llm"
	"github.com/IMax153/netlify-ai-gateway/internal/model"
)

// DefaultStoreID names the namespace chat histories are kept under.
const DefaultStoreID = "chats"

const (
	keyPrefix      = "chat-"
	defaultTitle   = "New chat"
	maxTitleLength = 80
)

// Store persists chat histories keyed by chat id. Implementations serialize
// writes per chat id themselves; callers do not lock.
type Store interface {
	// Get returns ErrNotFound when the chat has no history.
	Get(ctx context.Context, chatID string) (llm.Prompt, error)
	Save(ctx context.Context, chatID string, history llm.Prompt) error
	Delete(ctx context.Context, chatID string) error
	// List returns summaries, most recently updated first.
	List(ctx context.Context) ([]model.ChatSummary, error)
}

// ChatKey is the key a chat's history is stored under.
func ChatKey(chatID string) string {
	return keyPrefix + chatID
}

func chatIDFromKey(key string) string {
	return strings.TrimPrefix(key, keyPrefix)
}

// record is the stored form of a history together with its summary fields.
type record struct {
	Title     string     `json:"title"`
	CreatedAt time.Time  `json:"created_at"`
	UpdatedAt time.Time  `json:"updated_at"`
	History   llm.Prompt `json:"history"`
}

// TitleFor derives a chat title from the first user message.
func TitleFor(history llm.Prompt) string {
	for _, m := range history.Messages {
		if m.Role != llm.RoleUser {
			continue
		}
		title := strings.Join(strings.Fields(m.Text()), " ")
		if title == "" {
			continue
		}
		if utf8.RuneCountInString(title) > maxTitleLength {
			title = string([]rune(title)[:maxTitleLength-1]) + "…"
		}
		return title
	}
	return defaultTitle
}
