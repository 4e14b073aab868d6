package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/uuid"

	"lumos-backend/internal/middleware"
	"lumos-backend/internal/models"
	"lumos-backend/internal/repository"
	"lumos-backend/internal/services"
)

// ─── Stubs ───

type stubChatRepo struct {
	chats map[uuid.UUID]*models.Chat
}

func newStubChatRepo() *stubChatRepo {
	return &stubChatRepo{chats: make(map[uuid.UUID]*models.Chat)}
}

func (s *stubChatRepo) Create(ctx context.Context, chat *models.Chat) error {
	chat.ID = uuid.New()
	chat.CreatedAt = time.Now()
	chat.UpdatedAt = chat.CreatedAt
	stored := *chat
	s.chats[chat.ID] = &stored
	return nil
}

func (s *stubChatRepo) ListByOwner(ctx context.Context, ownerID string) ([]*models.Chat, error) {
	var out []*models.Chat
	for _, c := range s.chats {
		if c.UserID == ownerID {
			out = append(out, c)
		}
	}
	return out, nil
}

func (s *stubChatRepo) GetByIDAndOwner(ctx context.Context, id uuid.UUID, ownerID string) (*models.Chat, error) {
	c, ok := s.chats[id]
	if !ok || c.UserID != ownerID {
		return nil, repository.ErrNotFound
	}
	return c, nil
}

func (s *stubChatRepo) ReplaceMessages(ctx context.Context, id uuid.UUID, ownerID string, messages []models.Message) error {
	c, ok := s.chats[id]
	if !ok || c.UserID != ownerID {
		return repository.ErrNotFound
	}
	c.Messages = messages
	c.UpdatedAt = time.Now()
	return nil
}

func (s *stubChatRepo) Rename(ctx context.Context, id uuid.UUID, ownerID, name string) (*models.Chat, error) {
	c, ok := s.chats[id]
	if !ok || c.UserID != ownerID {
		return nil, repository.ErrNotFound
	}
	c.Name = name
	return c, nil
}

func (s *stubChatRepo) Delete(ctx context.Context, id uuid.UUID, ownerID string) error {
	c, ok := s.chats[id]
	if !ok || c.UserID != ownerID {
		return repository.ErrNotFound
	}
	delete(s.chats, id)
	return nil
}

type stubGateway struct {
	reply string
	err   error
}

func (g *stubGateway) Generate(ctx context.Context, prompt string) (string, error) {
	return g.reply, g.err
}

func newTestHandler(repo *stubChatRepo, gateway *stubGateway) *ChatHandler {
	return NewChatHandler(services.NewChatService(repo, gateway))
}

func authedRequest(method, path string, body interface{}, ownerID string) *http.Request {
	var buf bytes.Buffer
	if body != nil {
		json.NewEncoder(&buf).Encode(body)
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if ownerID != "" {
		ctx := context.WithValue(req.Context(), middleware.UserIDKey, ownerID)
		req = req.WithContext(ctx)
	}
	return req
}

// ─── Handler tests ───

func TestChatHandler_Create(t *testing.T) {
	h := newTestHandler(newStubChatRepo(), &stubGateway{})

	rr := httptest.NewRecorder()
	h.Create(rr, authedRequest(http.MethodPost, "/api/chat/create", nil, "user_1"))

	if rr.Code != http.StatusCreated {
		t.Fatalf("Expected 201, got %d", rr.Code)
	}

	var resp models.CreateChatResponse
	if err := json.NewDecoder(rr.Body).Decode(&resp); err != nil {
		t.Fatalf("Failed to decode response: %v", err)
	}
	if !resp.Success {
		t.Error("Expected success=true")
	}
	if resp.Chat == nil || resp.Chat.Name != models.DefaultChatName {
		t.Errorf("Expected chat with default name, got %+v", resp.Chat)
	}
}

func TestChatHandler_Create_NoIdentity(t *testing.T) {
	h := newTestHandler(newStubChatRepo(), &stubGateway{})

	rr := httptest.NewRecorder()
	h.Create(rr, authedRequest(http.MethodPost, "/api/chat/create", nil, ""))

	if rr.Code != http.StatusUnauthorized {
		t.Fatalf("Expected 401, got %d", rr.Code)
	}

	var resp models.FailureResponse
	json.NewDecoder(rr.Body).Decode(&resp)
	if resp.Success {
		t.Error("Expected success=false")
	}
	if resp.Message == "" {
		t.Error("Expected a failure message")
	}
}

func TestChatHandler_Rename_StatusMapping(t *testing.T) {
	repo := newStubChatRepo()
	h := newTestHandler(repo, &stubGateway{})

	owned := &models.Chat{UserID: "user_1", Name: models.DefaultChatName}
	repo.Create(context.Background(), owned)

	tests := []struct {
		name       string
		ownerID    string
		body       models.RenameChatRequest
		wantStatus int
	}{
		{"whitespace name rejected", "user_1", models.RenameChatRequest{ChatID: owned.ID.String(), Name: "  "}, http.StatusBadRequest},
		{"malformed chat id rejected", "user_1", models.RenameChatRequest{ChatID: "not-a-uuid", Name: "Title"}, http.StatusBadRequest},
		{"foreign chat looks missing", "user_2", models.RenameChatRequest{ChatID: owned.ID.String(), Name: "Title"}, http.StatusNotFound},
		{"unknown chat missing", "user_1", models.RenameChatRequest{ChatID: uuid.NewString(), Name: "Title"}, http.StatusNotFound},
		{"owned rename succeeds", "user_1", models.RenameChatRequest{ChatID: owned.ID.String(), Name: "Title "}, http.StatusOK},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			rr := httptest.NewRecorder()
			h.Rename(rr, authedRequest(http.MethodPost, "/api/chat/rename", tc.body, tc.ownerID))
			if rr.Code != tc.wantStatus {
				t.Errorf("Expected %d, got %d", tc.wantStatus, rr.Code)
			}
		})
	}

	if repo.chats[owned.ID].Name != "Title" {
		t.Errorf("Expected trimmed persisted name 'Title', got %q", repo.chats[owned.ID].Name)
	}
}

func TestChatHandler_Delete_IdempotentFailure(t *testing.T) {
	repo := newStubChatRepo()
	h := newTestHandler(repo, &stubGateway{})

	chat := &models.Chat{UserID: "user_1"}
	repo.Create(context.Background(), chat)
	body := models.DeleteChatRequest{ChatID: chat.ID.String()}

	rr := httptest.NewRecorder()
	h.Delete(rr, authedRequest(http.MethodPost, "/api/chat/delete", body, "user_1"))
	if rr.Code != http.StatusOK {
		t.Fatalf("First delete: expected 200, got %d", rr.Code)
	}

	rr = httptest.NewRecorder()
	h.Delete(rr, authedRequest(http.MethodPost, "/api/chat/delete", body, "user_1"))
	if rr.Code != http.StatusNotFound {
		t.Errorf("Second delete: expected 404, got %d", rr.Code)
	}
}

func TestChatHandler_SendPrompt_UpstreamFailures(t *testing.T) {
	tests := []struct {
		name       string
		gateway    *stubGateway
		wantStatus int
	}{
		{"blank generation", &stubGateway{reply: "  "}, http.StatusBadGateway},
		{"transport error", &stubGateway{err: context.DeadlineExceeded}, http.StatusBadGateway},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			repo := newStubChatRepo()
			h := newTestHandler(repo, tc.gateway)

			chat := &models.Chat{UserID: "user_1"}
			repo.Create(context.Background(), chat)

			rr := httptest.NewRecorder()
			body := models.SendPromptRequest{ChatID: chat.ID.String(), Prompt: "hello"}
			h.SendPrompt(rr, authedRequest(http.MethodPost, "/api/chat/ai", body, "user_1"))

			if rr.Code != tc.wantStatus {
				t.Errorf("Expected %d, got %d", tc.wantStatus, rr.Code)
			}

			var resp models.FailureResponse
			json.NewDecoder(rr.Body).Decode(&resp)
			if resp.Success {
				t.Error("Expected success=false")
			}
			if len(repo.chats[chat.ID].Messages) != 0 {
				t.Error("Expected no messages persisted on upstream failure")
			}
		})
	}
}
