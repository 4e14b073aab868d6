package handlers

import (
	"context"
	"encoding/json"
	"io"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
	svix "github.com/svix/svix-webhooks/go"

	"lumos-backend/internal/models"
)

type userStore interface {
	Upsert(ctx context.Context, user *models.User) error
	Delete(ctx context.Context, id string) error
}

type replayGuard interface {
	// Seen reports whether this webhook message id was already processed.
	Seen(ctx context.Context, messageID string) (bool, error)
	// MarkProcessed records the id once the event has been handled, so a
	// failed delivery stays eligible for the provider's retry.
	MarkProcessed(ctx context.Context, messageID string) error
}

// WebhookHandler ingests identity-provider lifecycle events. Payloads
// are svix-signed; unknown event types are acknowledged as no-ops.
type WebhookHandler struct {
	users  userStore
	wh     *svix.Webhook
	replay replayGuard
}

func NewWebhookHandler(users userStore, signingSecret string, replay replayGuard) (*WebhookHandler, error) {
	wh, err := svix.NewWebhook(signingSecret)
	if err != nil {
		return nil, err
	}
	return &WebhookHandler{users: users, wh: wh, replay: replay}, nil
}

type clerkEvent struct {
	Type string `json:"type"`
	Data struct {
		ID             string `json:"id"`
		FirstName      string `json:"first_name"`
		LastName       string `json:"last_name"`
		ImageURL       string `json:"image_url"`
		EmailAddresses []struct {
			EmailAddress string `json:"email_address"`
		} `json:"email_addresses"`
	} `json:"data"`
}

// HandleClerk handles POST /api/clerk.
func (h *WebhookHandler) HandleClerk(w http.ResponseWriter, r *http.Request) {
	payload, err := io.ReadAll(r.Body)
	if err != nil {
		writeFailure(w, http.StatusBadRequest, "Unreadable payload")
		return
	}

	if err := h.wh.Verify(payload, r.Header); err != nil {
		log.Printf("Webhook signature verification failed: %v", err)
		writeFailure(w, http.StatusUnauthorized, "Invalid webhook signature")
		return
	}

	// Redelivered messages are acknowledged without reprocessing.
	msgID := r.Header.Get("svix-id")
	if msgID != "" && h.replay != nil {
		seen, err := h.replay.Seen(r.Context(), msgID)
		if err == nil && seen {
			writeJSON(w, http.StatusOK, map[string]string{"message": "Event already processed"})
			return
		}
	}

	var evt clerkEvent
	if err := json.Unmarshal(payload, &evt); err != nil {
		writeFailure(w, http.StatusBadRequest, "Invalid payload")
		return
	}

	switch evt.Type {
	case "user.created", "user.updated":
		user := &models.User{
			ID:       evt.Data.ID,
			FullName: strings.TrimSpace(evt.Data.FirstName + " " + evt.Data.LastName),
		}
		if len(evt.Data.EmailAddresses) > 0 {
			user.Email = evt.Data.EmailAddresses[0].EmailAddress
		}
		if evt.Data.ImageURL != "" {
			user.ImageURL = &evt.Data.ImageURL
		}
		if err := h.users.Upsert(r.Context(), user); err != nil {
			log.Printf("Webhook user upsert failed: %v", err)
			writeFailure(w, http.StatusInternalServerError, "Failed to process event")
			return
		}

	case "user.deleted":
		if err := h.users.Delete(r.Context(), evt.Data.ID); err != nil {
			log.Printf("Webhook user delete failed: %v", err)
			writeFailure(w, http.StatusInternalServerError, "Failed to process event")
			return
		}

	default:
		// Just acknowledge unknown event types
	}

	if msgID != "" && h.replay != nil {
		if err := h.replay.MarkProcessed(r.Context(), msgID); err != nil {
			log.Printf("Failed to record webhook message id %s: %v", msgID, err)
		}
	}

	writeJSON(w, http.StatusOK, map[string]string{"message": "Event processed successfully"})
}

// RedisReplayGuard remembers processed svix message ids with a TTL.
type RedisReplayGuard struct {
	client *redis.Client
}

func NewRedisReplayGuard(client *redis.Client) *RedisReplayGuard {
	return &RedisReplayGuard{client: client}
}

func (g *RedisReplayGuard) Seen(ctx context.Context, messageID string) (bool, error) {
	n, err := g.client.Exists(ctx, "webhook:svix:"+messageID).Result()
	return n > 0, err
}

func (g *RedisReplayGuard) MarkProcessed(ctx context.Context, messageID string) error {
	return g.client.Set(ctx, "webhook:svix:"+messageID, 1, 24*time.Hour).Err()
}
