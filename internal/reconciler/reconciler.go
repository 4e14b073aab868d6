// Package reconciler keeps a client-side view of the user's chats
// consistent with the server without polling. The user's message is
// appended optimistically before the network call resolves, and the
// assistant's reply is revealed token by token on a fixed-delay
// scheduler to simulate streaming; the server has already stored the
// full text in one write, so the reveal is purely presentational.
package reconciler

import (
	"context"
	"errors"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"lumos-backend/internal/models"
)

var (
	ErrEmptyPrompt = errors.New("prompt cannot be empty")
	ErrBusy        = errors.New("a response is still pending for this chat")
)

// API is the server surface the reconciler drives.
type API interface {
	CreateChat(ctx context.Context) (*models.Chat, error)
	ListChats(ctx context.Context) ([]*models.Chat, error)
	RenameChat(ctx context.Context, chatID uuid.UUID, name string) (*models.Chat, error)
	DeleteChat(ctx context.Context, chatID uuid.UUID) error
	SendPrompt(ctx context.Context, chatID uuid.UUID, prompt string) (*models.Message, error)
}

// Scheduler defers reveal steps. Production uses timers; tests drive
// the steps by hand.
type Scheduler interface {
	AfterFunc(d time.Duration, fn func())
}

// TimerScheduler schedules on real timers.
type TimerScheduler struct{}

func (TimerScheduler) AfterFunc(d time.Duration, fn func()) {
	time.AfterFunc(d, fn)
}

type Reconciler struct {
	api         API
	sched       Scheduler
	notify      func(string)
	revealDelay time.Duration

	// OnUpdate, when set, fires after every visible-state change. It is
	// invoked without the internal lock held.
	OnUpdate func()

	mu           sync.Mutex
	chats        []*models.Chat
	selectedID   uuid.UUID
	hasSelection bool
	inflight     map[uuid.UUID]bool
	attempt      uint64
}

// New builds a reconciler. notify receives user-visible notices (the
// toast channel); pass nil to discard them.
func New(api API, revealDelay time.Duration, sched Scheduler, notify func(string)) *Reconciler {
	if sched == nil {
		sched = TimerScheduler{}
	}
	if notify == nil {
		notify = func(string) {}
	}
	return &Reconciler{
		api:         api,
		sched:       sched,
		notify:      notify,
		revealDelay: revealDelay,
		inflight:    make(map[uuid.UUID]bool),
	}
}

// Refresh replaces all local state with the server's records (no
// merge), newest chat first, and selects the most recent one.
func (r *Reconciler) Refresh(ctx context.Context) error {
	chats, err := r.api.ListChats(ctx)
	if err != nil {
		r.notify(err.Error())
		return err
	}

	sort.Slice(chats, func(i, j int) bool {
		return chats[i].UpdatedAt.After(chats[j].UpdatedAt)
	})

	r.mu.Lock()
	r.chats = chats
	r.hasSelection = false
	if len(chats) > 0 {
		r.selectedID = chats[0].ID
		r.hasSelection = true
	}
	r.mu.Unlock()

	r.fireUpdate()
	return nil
}

// Chats returns the local chat list, newest first.
func (r *Reconciler) Chats() []*models.Chat {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]*models.Chat, len(r.chats))
	copy(out, r.chats)
	return out
}

// SelectedID returns the active chat id, if any.
func (r *Reconciler) SelectedID() (uuid.UUID, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.selectedID, r.hasSelection
}

// Busy reports whether a submission is still outstanding for the
// active chat (including the reveal of its reply).
func (r *Reconciler) Busy() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.hasSelection && r.inflight[r.selectedID]
}

// Select makes chatID the active chat; its persisted messages become
// the visible list.
func (r *Reconciler) Select(chatID uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.findChatLocked(chatID) == nil {
		return errors.New("no such chat")
	}
	r.selectedID = chatID
	r.hasSelection = true
	return nil
}

// VisibleMessages is the message list of the active chat as currently
// rendered, optimistic entries and partial reveals included.
func (r *Reconciler) VisibleMessages() []models.Message {
	r.mu.Lock()
	defer r.mu.Unlock()
	if !r.hasSelection {
		return nil
	}
	chat := r.findChatLocked(r.selectedID)
	if chat == nil {
		return nil
	}
	out := make([]models.Message, len(chat.Messages))
	copy(out, chat.Messages)
	return out
}

// NewChat creates a chat server-side and selects it.
func (r *Reconciler) NewChat(ctx context.Context) (*models.Chat, error) {
	chat, err := r.api.CreateChat(ctx)
	if err != nil {
		r.notify(err.Error())
		return nil, err
	}

	r.mu.Lock()
	r.chats = append([]*models.Chat{chat}, r.chats...)
	r.selectedID = chat.ID
	r.hasSelection = true
	r.mu.Unlock()

	r.fireUpdate()
	return chat, nil
}

// Rename renames the active chat.
func (r *Reconciler) Rename(ctx context.Context, name string) error {
	chatID, ok := r.SelectedID()
	if !ok {
		return errors.New("no chat selected")
	}

	updated, err := r.api.RenameChat(ctx, chatID, name)
	if err != nil {
		r.notify(err.Error())
		return err
	}

	r.mu.Lock()
	if chat := r.findChatLocked(chatID); chat != nil && updated != nil {
		chat.Name = updated.Name
		chat.UpdatedAt = updated.UpdatedAt
	}
	r.mu.Unlock()

	r.fireUpdate()
	return nil
}

// Delete removes the active chat and selects the next most recent one.
func (r *Reconciler) Delete(ctx context.Context) error {
	chatID, ok := r.SelectedID()
	if !ok {
		return errors.New("no chat selected")
	}

	if err := r.api.DeleteChat(ctx, chatID); err != nil {
		r.notify(err.Error())
		return err
	}

	r.mu.Lock()
	kept := r.chats[:0]
	for _, c := range r.chats {
		if c.ID != chatID {
			kept = append(kept, c)
		}
	}
	r.chats = kept
	r.hasSelection = false
	if len(r.chats) > 0 {
		r.selectedID = r.chats[0].ID
		r.hasSelection = true
	}
	r.mu.Unlock()

	r.fireUpdate()
	return nil
}

// Submit sends promptText for the active chat, creating a chat first if
// none is selected. The user's message shows up immediately; on failure
// it stays visible (and the notice carries the reason). On success an
// empty assistant placeholder appears and the reply is revealed one
// whitespace-delimited token at a time.
func (r *Reconciler) Submit(ctx context.Context, promptText string) error {
	prompt := strings.TrimSpace(promptText)
	if prompt == "" {
		r.notify("Prompt cannot be empty")
		return ErrEmptyPrompt
	}

	if _, ok := r.SelectedID(); !ok {
		// Send on empty state implicitly creates the chat.
		if _, err := r.NewChat(ctx); err != nil {
			return err
		}
	}

	r.mu.Lock()
	chatID := r.selectedID
	if r.inflight[chatID] {
		r.mu.Unlock()
		r.notify("Wait for the previous response")
		return ErrBusy
	}
	r.inflight[chatID] = true
	if chat := r.findChatLocked(chatID); chat != nil {
		chat.Messages = append(chat.Messages, models.Message{
			Role:      models.RoleUser,
			Content:   prompt,
			Timestamp: time.Now(),
		})
	}
	r.mu.Unlock()
	r.fireUpdate()

	reply, err := r.api.SendPrompt(ctx, chatID, prompt)
	if err != nil {
		r.mu.Lock()
		delete(r.inflight, chatID)
		r.mu.Unlock()
		// The optimistic user message stays visible.
		r.notify(err.Error())
		return err
	}

	tokens := strings.Fields(reply.Content)

	r.mu.Lock()
	if len(tokens) == 0 {
		// Nothing to reveal, so no final step will ever run; release the
		// guard here or the chat stays busy forever.
		delete(r.inflight, chatID)
		r.mu.Unlock()
		return nil
	}
	r.attempt++
	attemptID := r.attempt
	if chat := r.findChatLocked(chatID); chat != nil {
		chat.Messages = append(chat.Messages, models.Message{
			Role:      models.RoleAssistant,
			Content:   "",
			Timestamp: time.Now(),
		})
	}
	r.mu.Unlock()
	r.fireUpdate()

	for i := range tokens {
		k := i
		r.sched.AfterFunc(time.Duration(k)*r.revealDelay, func() {
			r.revealStep(chatID, attemptID, tokens, k)
		})
	}
	return nil
}

// revealStep applies one increment of the simulated stream. Steps are
// tagged with the chat and attempt active when they were scheduled and
// discarded if either has moved on, so a reveal never leaks into a
// newly selected chat's view. The in-flight guard for the originating
// chat is always released by the final step.
func (r *Reconciler) revealStep(chatID uuid.UUID, attemptID uint64, tokens []string, k int) {
	r.mu.Lock()
	if k == len(tokens)-1 {
		delete(r.inflight, chatID)
	}

	stale := !r.hasSelection || r.selectedID != chatID || r.attempt != attemptID
	if !stale {
		if chat := r.findChatLocked(chatID); chat != nil && len(chat.Messages) > 0 {
			chat.Messages[len(chat.Messages)-1] = models.Message{
				Role:      models.RoleAssistant,
				Content:   strings.Join(tokens[:k+1], " "),
				Timestamp: time.Now(),
			}
		}
	}
	r.mu.Unlock()

	if !stale {
		r.fireUpdate()
	}
}

func (r *Reconciler) findChatLocked(chatID uuid.UUID) *models.Chat {
	for _, c := range r.chats {
		if c.ID == chatID {
			return c
		}
	}
	return nil
}

func (r *Reconciler) fireUpdate() {
	if r.OnUpdate != nil {
		r.OnUpdate()
	}
}
