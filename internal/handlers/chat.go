package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/google/uuid"

	"lumos-backend/internal/middleware"
	"lumos-backend/internal/models"
	"lumos-backend/internal/services"
)

type ChatHandler struct {
	chatService *services.ChatService
}

func NewChatHandler(chatService *services.ChatService) *ChatHandler {
	return &ChatHandler{chatService: chatService}
}

// Create handles POST /api/chat/create.
func (h *ChatHandler) Create(w http.ResponseWriter, r *http.Request) {
	ownerID := middleware.GetUserID(r.Context())

	chat, err := h.chatService.CreateChat(r.Context(), ownerID)
	if err != nil {
		writeChatError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, models.CreateChatResponse{
		Success: true,
		Message: "Chat created successfully",
		Chat:    chat,
	})
}

// List handles GET /api/chat/get.
func (h *ChatHandler) List(w http.ResponseWriter, r *http.Request) {
	ownerID := middleware.GetUserID(r.Context())

	chats, err := h.chatService.ListChats(r.Context(), ownerID)
	if err != nil {
		writeChatError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, models.ListChatsResponse{Success: true, Data: chats})
}

// Rename handles POST /api/chat/rename.
func (h *ChatHandler) Rename(w http.ResponseWriter, r *http.Request) {
	ownerID := middleware.GetUserID(r.Context())

	var req models.RenameChatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeFailure(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	chatID, err := uuid.Parse(req.ChatID)
	if err != nil {
		writeFailure(w, http.StatusBadRequest, "chatId and a valid name are required")
		return
	}

	chat, err := h.chatService.RenameChat(r.Context(), ownerID, chatID, req.Name)
	if err != nil {
		writeChatError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, models.RenameChatResponse{
		Success:     true,
		Message:     "Chat renamed successfully",
		UpdatedChat: chat,
	})
}

// Delete handles POST /api/chat/delete.
func (h *ChatHandler) Delete(w http.ResponseWriter, r *http.Request) {
	ownerID := middleware.GetUserID(r.Context())

	var req models.DeleteChatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeFailure(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	chatID, err := uuid.Parse(req.ChatID)
	if err != nil {
		writeFailure(w, http.StatusBadRequest, "chatId is required")
		return
	}

	if err := h.chatService.DeleteChat(r.Context(), ownerID, chatID); err != nil {
		writeChatError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, models.DeleteChatResponse{
		Success: true,
		Message: "Chat deleted successfully",
	})
}

// SendPrompt handles POST /api/chat/ai.
func (h *ChatHandler) SendPrompt(w http.ResponseWriter, r *http.Request) {
	ownerID := middleware.GetUserID(r.Context())

	var req models.SendPromptRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeFailure(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	chatID, err := uuid.Parse(req.ChatID)
	if err != nil {
		writeFailure(w, http.StatusBadRequest, "chatId is required")
		return
	}

	message, err := h.chatService.SendPrompt(r.Context(), ownerID, chatID, req.Prompt)
	if err != nil {
		writeChatError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, models.SendPromptResponse{Success: true, Data: message})
}

// Shared helpers

func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func writeFailure(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, models.FailureResponse{Success: false, Message: message})
}

// writeChatError maps the service error taxonomy onto one consistent
// status scheme; every body keeps the {success:false, ...} shape.
func writeChatError(w http.ResponseWriter, err error) {
	switch e := err.(type) {
	case *services.UnauthorizedError:
		writeFailure(w, http.StatusUnauthorized, e.Message)
	case *services.ValidationError:
		writeFailure(w, http.StatusBadRequest, e.Message)
	case *services.NotFoundError:
		writeFailure(w, http.StatusNotFound, e.Message)
	case *services.UpstreamEmptyError:
		writeFailure(w, http.StatusBadGateway, "No response generated from Gemini API")
	case *services.UpstreamError:
		writeJSON(w, http.StatusBadGateway, models.FailureResponse{Success: false, Error: e.Error()})
	default:
		writeFailure(w, http.StatusInternalServerError, "Internal Server Error")
	}
}
