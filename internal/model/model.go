package model

import (
	"time"

	"github.com/IMax153/netlify-ai-gateway/internal/uimessage"
)

// ChatSummary describes a stored chat without its history.
type ChatSummary struct {
	ID           string    `json:"id"`
	Title        string    `json:"title"`
	MessageCount int       `json:"message_count"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// Chat is a stored chat with its history rendered as UI messages.
type Chat struct {
	ID       string              `json:"id"`
	Title    string              `json:"title"`
	Messages []uimessage.Message `json:"messages"`
}

// ChatRequest is the body of POST /api/chat. Message is the newest user
// turn only; earlier turns are reloaded from history.
type ChatRequest struct {
	ID                string            `json:"id" validate:"required"`
	Message           uimessage.Message `json:"message"`
	SelectedChatModel string            `json:"selectedChatModel"`
}

// Notification is the payload of data-notification chunks.
type Notification struct {
	Level   string `json:"level"`
	Message string `json:"message"`
}
