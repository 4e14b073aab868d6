package models

import (
	"time"

	"github.com/google/uuid"
)

const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// Message is one turn in a chat, authored by "user" or "assistant".
type Message struct {
	Role      string    `json:"role"`
	Content   string    `json:"content"`
	Timestamp time.Time `json:"timestamp"`
}

// Chat is a named, owned, ordered collection of messages. The message
// list is stored as one JSONB document; insertion order is conversation
// order.
type Chat struct {
	ID        uuid.UUID `json:"id"`
	UserID    string    `json:"userId"`
	Name      string    `json:"name"`
	Messages  []Message `json:"messages"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

const DefaultChatName = "New Chat"

// Request payloads.

type RenameChatRequest struct {
	ChatID string `json:"chatId"`
	Name   string `json:"name"`
}

type DeleteChatRequest struct {
	ChatID string `json:"chatId"`
}

type SendPromptRequest struct {
	ChatID string `json:"chatId"`
	Prompt string `json:"prompt"`
}

// Response envelopes. Every endpoint reports success through the flag;
// failures carry a message (and for upstream transport failures an error
// string), never a bare status code.

type CreateChatResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
	Chat    *Chat  `json:"chat"`
}

type ListChatsResponse struct {
	Success bool    `json:"success"`
	Data    []*Chat `json:"data"`
}

type RenameChatResponse struct {
	Success     bool   `json:"success"`
	Message     string `json:"message"`
	UpdatedChat *Chat  `json:"updatedChat"`
}

type DeleteChatResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
}

type SendPromptResponse struct {
	Success bool     `json:"success"`
	Data    *Message `json:"data"`
}

type FailureResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message,omitempty"`
	Error   string `json:"error,omitempty"`
}
