// Package client is a thin HTTP client for the chat API. It speaks the
// success-flag envelopes and surfaces {success:false} bodies as errors
// carrying the server's message.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	"lumos-backend/internal/models"
)

type Client struct {
	baseURL string
	token   string
	http    *http.Client
}

func New(baseURL, token string) *Client {
	return &Client{
		baseURL: baseURL,
		token:   token,
		http:    &http.Client{Timeout: 90 * time.Second},
	}
}

// APIError is a failure the server reported through its envelope.
type APIError struct {
	Status  int
	Message string
}

func (e *APIError) Error() string {
	if e.Message != "" {
		return e.Message
	}
	return fmt.Sprintf("request failed with status %d", e.Status)
}

func (c *Client) CreateChat(ctx context.Context) (*models.Chat, error) {
	var resp models.CreateChatResponse
	if err := c.do(ctx, http.MethodPost, "/api/chat/create", nil, &resp); err != nil {
		return nil, err
	}
	if resp.Chat == nil {
		return nil, &APIError{Message: "Chat creation failed"}
	}
	return resp.Chat, nil
}

func (c *Client) ListChats(ctx context.Context) ([]*models.Chat, error) {
	var resp models.ListChatsResponse
	if err := c.do(ctx, http.MethodGet, "/api/chat/get", nil, &resp); err != nil {
		return nil, err
	}
	return resp.Data, nil
}

func (c *Client) RenameChat(ctx context.Context, chatID uuid.UUID, name string) (*models.Chat, error) {
	req := models.RenameChatRequest{ChatID: chatID.String(), Name: name}
	var resp models.RenameChatResponse
	if err := c.do(ctx, http.MethodPost, "/api/chat/rename", req, &resp); err != nil {
		return nil, err
	}
	return resp.UpdatedChat, nil
}

func (c *Client) DeleteChat(ctx context.Context, chatID uuid.UUID) error {
	req := models.DeleteChatRequest{ChatID: chatID.String()}
	var resp models.DeleteChatResponse
	return c.do(ctx, http.MethodPost, "/api/chat/delete", req, &resp)
}

func (c *Client) SendPrompt(ctx context.Context, chatID uuid.UUID, prompt string) (*models.Message, error) {
	req := models.SendPromptRequest{ChatID: chatID.String(), Prompt: prompt}
	var resp models.SendPromptResponse
	if err := c.do(ctx, http.MethodPost, "/api/chat/ai", req, &resp); err != nil {
		return nil, err
	}
	if resp.Data == nil || strings.TrimSpace(resp.Data.Content) == "" {
		return nil, &APIError{Message: "No response from assistant"}
	}
	return resp.Data, nil
}

func (c *Client) do(ctx context.Context, method, path string, body, out interface{}) error {
	var reader io.Reader
	if body != nil {
		buf, err := json.Marshal(body)
		if err != nil {
			return err
		}
		reader = bytes.NewReader(buf)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bearer "+c.token)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return err
	}

	// The success flag, not the status code, is the contract.
	var envelope struct {
		Success bool   `json:"success"`
		Message string `json:"message"`
		Error   string `json:"error"`
	}
	if err := json.Unmarshal(raw, &envelope); err != nil {
		return &APIError{Status: resp.StatusCode, Message: "Unexpected response from server"}
	}
	if !envelope.Success {
		msg := envelope.Message
		if msg == "" {
			msg = envelope.Error
		}
		return &APIError{Status: resp.StatusCode, Message: msg}
	}

	return json.Unmarshal(raw, out)
}
