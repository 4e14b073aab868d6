package reconciler

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"

	"lumos-backend/internal/models"
)

// ─── Fakes ───

type fakeAPI struct {
	reply       string
	sendErr     error
	listResult  []*models.Chat
	sendCalls   int
	createCalls int
}

func (f *fakeAPI) CreateChat(ctx context.Context) (*models.Chat, error) {
	f.createCalls++
	return &models.Chat{
		ID:        uuid.New(),
		UserID:    "user_1",
		Name:      models.DefaultChatName,
		Messages:  []models.Message{},
		UpdatedAt: time.Now(),
	}, nil
}

func (f *fakeAPI) ListChats(ctx context.Context) ([]*models.Chat, error) {
	return f.listResult, nil
}

func (f *fakeAPI) RenameChat(ctx context.Context, chatID uuid.UUID, name string) (*models.Chat, error) {
	return &models.Chat{ID: chatID, Name: name, UpdatedAt: time.Now()}, nil
}

func (f *fakeAPI) DeleteChat(ctx context.Context, chatID uuid.UUID) error {
	return nil
}

func (f *fakeAPI) SendPrompt(ctx context.Context, chatID uuid.UUID, prompt string) (*models.Message, error) {
	f.sendCalls++
	if f.sendErr != nil {
		return nil, f.sendErr
	}
	return &models.Message{Role: models.RoleAssistant, Content: f.reply, Timestamp: time.Now()}, nil
}

// manualScheduler collects reveal steps so tests can fire them one at a
// time, in schedule order.
type manualScheduler struct {
	steps []func()
}

func (s *manualScheduler) AfterFunc(d time.Duration, fn func()) {
	s.steps = append(s.steps, fn)
}

func (s *manualScheduler) runNext() bool {
	if len(s.steps) == 0 {
		return false
	}
	fn := s.steps[0]
	s.steps = s.steps[1:]
	fn()
	return true
}

func (s *manualScheduler) runAll() {
	for s.runNext() {
	}
}

func newTestReconciler(api API) (*Reconciler, *manualScheduler, *[]string) {
	sched := &manualScheduler{}
	var notices []string
	rec := New(api, time.Millisecond, sched, func(msg string) {
		notices = append(notices, msg)
	})
	return rec, sched, &notices
}

func lastVisibleContent(t *testing.T, rec *Reconciler) string {
	t.Helper()
	msgs := rec.VisibleMessages()
	if len(msgs) == 0 {
		t.Fatal("Expected at least one visible message")
	}
	return msgs[len(msgs)-1].Content
}

// ─── Reveal sequence ───

func TestSubmit_RevealPassesThroughEveryState(t *testing.T) {
	api := &fakeAPI{reply: "a b c"}
	rec, sched, _ := newTestReconciler(api)

	if err := rec.Submit(context.Background(), "ask"); err != nil {
		t.Fatalf("Submit failed: %v", err)
	}

	// Placeholder first, then one more token per step, no skips or
	// repeats.
	want := []string{"", "a", "a b", "a b c"}
	got := []string{lastVisibleContent(t, rec)}
	for sched.runNext() {
		got = append(got, lastVisibleContent(t, rec))
	}

	if len(got) != len(want) {
		t.Fatalf("Expected %d states, got %d: %q", len(want), len(got), got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("State %d: expected %q, got %q", i, want[i], got[i])
		}
	}
}

func TestSubmit_AppendsUserMessageBeforeCallResolves(t *testing.T) {
	api := &fakeAPI{reply: "ok"}
	rec, sched, _ := newTestReconciler(api)

	rec.Submit(context.Background(), "  hello  ")
	sched.runAll()

	msgs := rec.VisibleMessages()
	if len(msgs) != 2 {
		t.Fatalf("Expected 2 visible messages, got %d", len(msgs))
	}
	if msgs[0].Role != models.RoleUser || msgs[0].Content != "hello" {
		t.Errorf("Expected trimmed optimistic user message, got %+v", msgs[0])
	}
	if msgs[1].Role != models.RoleAssistant || msgs[1].Content != "ok" {
		t.Errorf("Expected revealed assistant message, got %+v", msgs[1])
	}
}

// ─── Guards ───

func TestSubmit_EmptyPromptRejectedLocally(t *testing.T) {
	api := &fakeAPI{reply: "ok"}
	rec, _, notices := newTestReconciler(api)

	err := rec.Submit(context.Background(), "   ")
	if !errors.Is(err, ErrEmptyPrompt) {
		t.Fatalf("Expected ErrEmptyPrompt, got %v", err)
	}
	if api.sendCalls != 0 || api.createCalls != 0 {
		t.Error("Expected no network calls for an empty prompt")
	}
	if len(*notices) == 0 {
		t.Error("Expected a user-visible notice")
	}
}

func TestSubmit_NoSelectionCreatesChatFirst(t *testing.T) {
	api := &fakeAPI{reply: "ok"}
	rec, sched, _ := newTestReconciler(api)

	if _, ok := rec.SelectedID(); ok {
		t.Fatal("Expected no selection initially")
	}

	if err := rec.Submit(context.Background(), "hello"); err != nil {
		t.Fatalf("Submit failed: %v", err)
	}
	sched.runAll()

	if api.createCalls != 1 {
		t.Errorf("Expected implicit CreateChat, got %d calls", api.createCalls)
	}
	if _, ok := rec.SelectedID(); !ok {
		t.Error("Expected the new chat to be selected")
	}
}

func TestSubmit_SecondSubmissionRejectedWhileInFlight(t *testing.T) {
	api := &fakeAPI{reply: "a b"}
	rec, sched, notices := newTestReconciler(api)

	rec.Submit(context.Background(), "first")

	// Reveal steps have not run, so the chat is still busy.
	err := rec.Submit(context.Background(), "second")
	if !errors.Is(err, ErrBusy) {
		t.Fatalf("Expected ErrBusy, got %v", err)
	}
	if api.sendCalls != 1 {
		t.Errorf("Expected 1 SendPrompt call, got %d", api.sendCalls)
	}
	if len(*notices) == 0 {
		t.Error("Expected a user-visible notice for the rejected submission")
	}

	sched.runAll()
	if rec.Busy() {
		t.Error("Expected the guard released after the final reveal step")
	}
	if err := rec.Submit(context.Background(), "second"); err != nil {
		t.Errorf("Expected submission to succeed after reveal completed, got %v", err)
	}
}

func TestSubmit_BlankReplyReleasesGuard(t *testing.T) {
	api := &fakeAPI{reply: "   "}
	rec, sched, _ := newTestReconciler(api)

	if err := rec.Submit(context.Background(), "hello"); err != nil {
		t.Fatalf("Submit failed: %v", err)
	}
	sched.runAll()

	if rec.Busy() {
		t.Error("Expected the guard released when the reply has no tokens")
	}
	msgs := rec.VisibleMessages()
	if len(msgs) != 1 || msgs[0].Role != models.RoleUser {
		t.Errorf("Expected only the user message (no placeholder), got %+v", msgs)
	}

	api.reply = "ok"
	if err := rec.Submit(context.Background(), "again"); err != nil {
		t.Errorf("Expected the next submission to succeed, got %v", err)
	}
}

func TestSubmit_FailureKeepsOptimisticMessage(t *testing.T) {
	api := &fakeAPI{sendErr: errors.New("No response from assistant")}
	rec, _, notices := newTestReconciler(api)

	err := rec.Submit(context.Background(), "hello")
	if err == nil {
		t.Fatal("Expected an error")
	}

	msgs := rec.VisibleMessages()
	if len(msgs) != 1 || msgs[0].Role != models.RoleUser || msgs[0].Content != "hello" {
		t.Fatalf("Expected the optimistic user message to stay visible, got %+v", msgs)
	}
	if len(*notices) == 0 {
		t.Error("Expected a user-visible notice")
	}
	if rec.Busy() {
		t.Error("Expected the in-flight guard released on failure")
	}
}

// ─── Stale reveal steps ───

func TestRevealStep_DiscardedAfterSelectionChanges(t *testing.T) {
	api := &fakeAPI{reply: "a b c"}
	rec, sched, _ := newTestReconciler(api)

	first, _ := rec.NewChat(context.Background())
	second, _ := rec.NewChat(context.Background())

	rec.Select(first.ID)
	rec.Submit(context.Background(), "hello")

	// Switch away mid-reveal; the scheduled steps still fire but must
	// not leak into the new selection or mutate the old chat's view.
	rec.Select(second.ID)
	sched.runAll()

	if n := len(rec.VisibleMessages()); n != 0 {
		t.Errorf("Expected the newly selected chat untouched, got %d messages", n)
	}

	rec.Select(first.ID)
	msgs := rec.VisibleMessages()
	if len(msgs) != 2 {
		t.Fatalf("Expected user message and placeholder, got %d messages", len(msgs))
	}
	if msgs[1].Content != "" {
		t.Errorf("Expected stale steps discarded (placeholder left empty), got %q", msgs[1].Content)
	}
	if rec.Busy() {
		t.Error("Expected the guard released even for discarded steps")
	}
}

// ─── Refresh / selection ───

func TestRefresh_ReplacesStateAndSelectsNewest(t *testing.T) {
	older := &models.Chat{ID: uuid.New(), Name: "old", UpdatedAt: time.Now().Add(-time.Hour)}
	newer := &models.Chat{ID: uuid.New(), Name: "new", UpdatedAt: time.Now()}
	api := &fakeAPI{listResult: []*models.Chat{older, newer}}
	rec, _, _ := newTestReconciler(api)

	if err := rec.Refresh(context.Background()); err != nil {
		t.Fatalf("Refresh failed: %v", err)
	}

	chats := rec.Chats()
	if len(chats) != 2 || chats[0].ID != newer.ID {
		t.Errorf("Expected newest chat first, got %+v", chats)
	}
	selected, ok := rec.SelectedID()
	if !ok || selected != newer.ID {
		t.Errorf("Expected newest chat selected, got %v (ok=%v)", selected, ok)
	}
}

func TestSelect_ReplacesVisibleList(t *testing.T) {
	withMsgs := &models.Chat{
		ID:   uuid.New(),
		Name: "talked",
		Messages: []models.Message{
			{Role: models.RoleUser, Content: "hi"},
			{Role: models.RoleAssistant, Content: "hello"},
		},
		UpdatedAt: time.Now(),
	}
	empty := &models.Chat{ID: uuid.New(), Name: "fresh", UpdatedAt: time.Now().Add(-time.Minute)}
	api := &fakeAPI{listResult: []*models.Chat{withMsgs, empty}}
	rec, _, _ := newTestReconciler(api)
	rec.Refresh(context.Background())

	if err := rec.Select(empty.ID); err != nil {
		t.Fatalf("Select failed: %v", err)
	}
	if n := len(rec.VisibleMessages()); n != 0 {
		t.Errorf("Expected empty visible list, got %d", n)
	}

	rec.Select(withMsgs.ID)
	if n := len(rec.VisibleMessages()); n != 2 {
		t.Errorf("Expected 2 persisted messages visible, got %d", n)
	}

	if err := rec.Select(uuid.New()); err == nil {
		t.Error("Expected selecting an unknown chat to fail")
	}
}
