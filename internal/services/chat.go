package services

import (
	"context"
	"errors"
	"log"
	"strings"
	"time"

	"github.com/google/uuid"

	"lumos-backend/internal/models"
	"lumos-backend/internal/repository"
)

type chatRepository interface {
	Create(ctx context.Context, chat *models.Chat) error
	ListByOwner(ctx context.Context, ownerID string) ([]*models.Chat, error)
	GetByIDAndOwner(ctx context.Context, id uuid.UUID, ownerID string) (*models.Chat, error)
	ReplaceMessages(ctx context.Context, id uuid.UUID, ownerID string, messages []models.Message) error
	Rename(ctx context.Context, id uuid.UUID, ownerID, name string) (*models.Chat, error)
	Delete(ctx context.Context, id uuid.UUID, ownerID string) error
}

type textGenerator interface {
	Generate(ctx context.Context, prompt string) (string, error)
}

// ChatService is the authoritative state transition function for a
// chat: it validates identity and ownership, mutates persisted state,
// and invokes the model gateway.
type ChatService struct {
	chats   chatRepository
	gateway textGenerator
}

func NewChatService(chats chatRepository, gateway textGenerator) *ChatService {
	return &ChatService{chats: chats, gateway: gateway}
}

func (s *ChatService) CreateChat(ctx context.Context, ownerID string) (*models.Chat, error) {
	if ownerID == "" {
		return nil, &UnauthorizedError{Message: "User not authenticated"}
	}

	chat := &models.Chat{
		UserID:   ownerID,
		Name:     models.DefaultChatName,
		Messages: []models.Message{},
	}
	if err := s.chats.Create(ctx, chat); err != nil {
		return nil, &PersistenceError{Err: err}
	}

	log.Printf("Chat created for user %s, chatId %s", ownerID, chat.ID)
	return chat, nil
}

// ListChats returns all chats owned by ownerID. Ordering is left to the
// client.
func (s *ChatService) ListChats(ctx context.Context, ownerID string) ([]*models.Chat, error) {
	if ownerID == "" {
		return nil, &UnauthorizedError{Message: "User not authenticated"}
	}

	chats, err := s.chats.ListByOwner(ctx, ownerID)
	if err != nil {
		return nil, &PersistenceError{Err: err}
	}
	if chats == nil {
		chats = []*models.Chat{}
	}
	return chats, nil
}

func (s *ChatService) RenameChat(ctx context.Context, ownerID string, chatID uuid.UUID, name string) (*models.Chat, error) {
	if ownerID == "" {
		return nil, &UnauthorizedError{Message: "User not authenticated"}
	}

	name = strings.TrimSpace(name)
	if name == "" {
		return nil, &ValidationError{Message: "A valid name is required"}
	}

	chat, err := s.chats.Rename(ctx, chatID, ownerID, name)
	if errors.Is(err, repository.ErrNotFound) {
		log.Printf("Chat rename failed, chat not found or unauthorized: %s", chatID)
		return nil, &NotFoundError{Message: "Chat not found or not authorized"}
	}
	if err != nil {
		return nil, &PersistenceError{Err: err}
	}
	return chat, nil
}

// DeleteChat removes the chat iff owned by ownerID. Deleting an
// already-gone chat fails the same way every time.
func (s *ChatService) DeleteChat(ctx context.Context, ownerID string, chatID uuid.UUID) error {
	if ownerID == "" {
		return &UnauthorizedError{Message: "User not authenticated"}
	}

	err := s.chats.Delete(ctx, chatID, ownerID)
	if errors.Is(err, repository.ErrNotFound) {
		return &NotFoundError{Message: "Chat not found or not authorized"}
	}
	if err != nil {
		return &PersistenceError{Err: err}
	}
	return nil
}

// SendPrompt runs the core transition: validate, load, generate,
// persist. The user message and the assistant reply land in one durable
// write; if generation fails or comes back blank, nothing is persisted
// and the chat's stored state is exactly what it was before the call.
func (s *ChatService) SendPrompt(ctx context.Context, ownerID string, chatID uuid.UUID, prompt string) (*models.Message, error) {
	if ownerID == "" {
		return nil, &UnauthorizedError{Message: "User not authenticated"}
	}

	prompt = strings.TrimSpace(prompt)
	if prompt == "" {
		return nil, &ValidationError{Message: "Prompt cannot be empty"}
	}

	chat, err := s.chats.GetByIDAndOwner(ctx, chatID, ownerID)
	if errors.Is(err, repository.ErrNotFound) {
		log.Printf("Chat not found for user %s, chatId %s", ownerID, chatID)
		return nil, &NotFoundError{Message: "Chat not found for this user"}
	}
	if err != nil {
		return nil, &PersistenceError{Err: err}
	}

	userMessage := models.Message{
		Role:      models.RoleUser,
		Content:   prompt,
		Timestamp: time.Now(),
	}

	// Each prompt is stateless from the model's perspective: only the
	// latest text is forwarded, never the prior messages.
	text, err := s.gateway.Generate(ctx, prompt)
	if err != nil {
		return nil, &UpstreamError{Err: err}
	}

	text = strings.TrimSpace(text)
	if text == "" {
		log.Printf("Empty response from model for chat %s", chatID)
		return nil, &UpstreamEmptyError{}
	}

	assistantMessage := models.Message{
		Role:      models.RoleAssistant,
		Content:   text,
		Timestamp: time.Now(),
	}

	messages := make([]models.Message, 0, len(chat.Messages)+2)
	messages = append(messages, chat.Messages...)
	messages = append(messages, userMessage, assistantMessage)

	if err := s.chats.ReplaceMessages(ctx, chatID, ownerID, messages); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, &NotFoundError{Message: "Chat not found for this user"}
		}
		return nil, &PersistenceError{Err: err}
	}

	return &assistantMessage, nil
}
