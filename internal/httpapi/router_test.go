package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/dwizi/copilot-backend/internal/auth"
	"github.com/dwizi/copilot-backend/internal/chat"
	"github.com/dwizi/copilot-backend/internal/config"
	"github.com/dwizi/copilot-backend/internal/google"
	"github.com/dwizi/copilot-backend/internal/llm"
	"github.com/dwizi/copilot-backend/internal/store"
)

type fixedResponder struct {
	reply string
	err   error
}

func (f *fixedResponder) Generate(context.Context, []llm.Message) (string, error) {
	if f.err != nil {
		return "", f.err
	}
	return f.reply, nil
}

type testHarness struct {
	handler http.Handler
	store   *store.Store
	auth    *auth.Manager
	now     time.Time
}

func newTestHarness(t *testing.T, responder llm.Responder) *testHarness {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	sqlStore, err := store.New(filepath.Join(t.TempDir(), "copilot.db"))
	if err != nil {
		t.Fatalf("store.New: %v", err)
	}
	t.Cleanup(func() { sqlStore.Close() })
	if err := sqlStore.AutoMigrate(context.Background()); err != nil {
		t.Fatalf("AutoMigrate: %v", err)
	}

	manager, err := auth.NewManager("test-secret", 30*time.Minute)
	if err != nil {
		t.Fatalf("auth.NewManager: %v", err)
	}
	if responder == nil {
		responder = &fixedResponder{reply: "ack"}
	}

	now := time.Date(2024, 6, 10, 12, 0, 0, 0, time.UTC)
	handler := NewRouter(Dependencies{
		Config:       config.Config{Environment: "test", FrontendURL: "http://localhost:5173"},
		Store:        sqlStore,
		Auth:         manager,
		Google:       google.New(google.Config{}, logger),
		Orchestrator: chat.New(sqlStore, responder, chat.Options{Logger: logger}),
		Logger:       logger,
		Now:          func() time.Time { return now },
	})
	return &testHarness{handler: handler, store: sqlStore, auth: manager, now: now}
}

func (h *testHarness) newUser(t *testing.T) (store.User, string) {
	t.Helper()
	user, err := h.store.UpsertUserByGoogleID(context.Background(), "g-test", "test@example.com", "Test User")
	if err != nil {
		t.Fatalf("create user: %v", err)
	}
	token, err := h.auth.Issue(user.ID, user.Email, h.now)
	if err != nil {
		t.Fatalf("issue token: %v", err)
	}
	return user, token
}

func (h *testHarness) do(t *testing.T, method, path, token string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var reader io.Reader
	if body != nil {
		encoded, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("encode body: %v", err)
		}
		reader = bytes.NewReader(encoded)
	}
	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	res := httptest.NewRecorder()
	h.handler.ServeHTTP(res, req)
	return res
}

func TestHealthAndReady(t *testing.T) {
	h := newTestHarness(t, nil)

	res := h.do(t, http.MethodGet, "/healthz", "", nil)
	if res.Code != http.StatusOK {
		t.Fatalf("healthz status = %d", res.Code)
	}
	res = h.do(t, http.MethodGet, "/readyz", "", nil)
	if res.Code != http.StatusOK {
		t.Fatalf("readyz status = %d, body=%s", res.Code, res.Body.String())
	}
	if res.Header().Get("X-Content-Type-Options") != "nosniff" {
		t.Error("security headers missing")
	}
}

func TestCORSForFrontendOrigin(t *testing.T) {
	h := newTestHarness(t, nil)

	res := h.do(t, http.MethodGet, "/healthz", "", nil)
	if got := res.Header().Get("Access-Control-Allow-Origin"); got != "http://localhost:5173" {
		t.Fatalf("Access-Control-Allow-Origin = %q", got)
	}
	if res.Header().Get("Access-Control-Allow-Credentials") != "true" {
		t.Error("credentials not allowed for frontend origin")
	}

	// Preflight must succeed without a bearer token.
	req := httptest.NewRequest(http.MethodOptions, "/api/chat", nil)
	req.Header.Set("Origin", "http://localhost:5173")
	req.Header.Set("Access-Control-Request-Method", http.MethodPost)
	rec := httptest.NewRecorder()
	h.handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusNoContent {
		t.Fatalf("preflight status = %d", rec.Code)
	}
	if methods := rec.Header().Get("Access-Control-Allow-Methods"); !strings.Contains(methods, http.MethodPost) {
		t.Errorf("Access-Control-Allow-Methods = %q", methods)
	}
	if headers := rec.Header().Get("Access-Control-Allow-Headers"); !strings.Contains(headers, "Authorization") {
		t.Errorf("Access-Control-Allow-Headers = %q", headers)
	}
}

func TestAuthRequired(t *testing.T) {
	h := newTestHarness(t, nil)

	for _, path := range []string{"/api/chat/conversations", "/api/tasks/summary", "/api/integrations/status"} {
		if res := h.do(t, http.MethodGet, path, "", nil); res.Code != http.StatusUnauthorized {
			t.Errorf("%s without token: status = %d", path, res.Code)
		}
	}
	if res := h.do(t, http.MethodGet, "/api/chat/conversations", "garbage", nil); res.Code != http.StatusUnauthorized {
		t.Errorf("bad token: status = %d", res.Code)
	}
}

func TestChatRoundtrip(t *testing.T) {
	h := newTestHarness(t, &fixedResponder{reply: "Focus on OPS-1 first."})
	user, token := h.newUser(t)

	includeContext := false
	res := h.do(t, http.MethodPost, "/api/chat", token, map[string]any{
		"messages":        []map[string]string{{"role": "user", "content": "What should I do today?"}},
		"include_context": &includeContext,
	})
	if res.Code != http.StatusOK {
		t.Fatalf("chat status = %d, body=%s", res.Code, res.Body.String())
	}

	var reply chat.Reply
	if err := json.Unmarshal(res.Body.Bytes(), &reply); err != nil {
		t.Fatalf("decode reply: %v", err)
	}
	if reply.Message != "Focus on OPS-1 first." {
		t.Fatalf("unexpected reply: %+v", reply)
	}
	wantPrefix := "user_" + user.ID + "_"
	if !strings.HasPrefix(reply.ThreadID, wantPrefix) {
		t.Fatalf("thread id %q must start with %q", reply.ThreadID, wantPrefix)
	}
	if reply.ContextUsed {
		t.Error("context was excluded, context_used must be false")
	}

	// Conversation and both turns must be visible afterwards.
	res = h.do(t, http.MethodGet, "/api/chat/conversations", token, nil)
	if res.Code != http.StatusOK {
		t.Fatalf("conversations status = %d", res.Code)
	}
	var conversations []store.Conversation
	if err := json.Unmarshal(res.Body.Bytes(), &conversations); err != nil {
		t.Fatalf("decode conversations: %v", err)
	}
	if len(conversations) != 1 || conversations[0].ThreadID != reply.ThreadID {
		t.Fatalf("unexpected conversations: %+v", conversations)
	}
	if conversations[0].Title != "What should I do today?" {
		t.Fatalf("title = %q", conversations[0].Title)
	}

	res = h.do(t, http.MethodGet, "/api/chat/conversations/"+reply.ThreadID+"/messages", token, nil)
	if res.Code != http.StatusOK {
		t.Fatalf("messages status = %d, body=%s", res.Code, res.Body.String())
	}
	var messages []store.Message
	if err := json.Unmarshal(res.Body.Bytes(), &messages); err != nil {
		t.Fatalf("decode messages: %v", err)
	}
	if len(messages) != 2 || messages[0].Role != "user" || messages[1].Role != "assistant" {
		t.Fatalf("unexpected messages: %+v", messages)
	}
}

func TestChatValidation(t *testing.T) {
	h := newTestHarness(t, nil)
	_, token := h.newUser(t)

	if res := h.do(t, http.MethodPost, "/api/chat", token, map[string]any{"messages": []any{}}); res.Code != http.StatusBadRequest {
		t.Errorf("empty messages: status = %d", res.Code)
	}
	if res := h.do(t, http.MethodGet, "/api/chat", token, nil); res.Code != http.StatusMethodNotAllowed {
		t.Errorf("GET chat: status = %d", res.Code)
	}
}

func TestConversationMessagesIsolatedPerUser(t *testing.T) {
	h := newTestHarness(t, nil)
	_, token := h.newUser(t)

	other, err := h.store.UpsertUserByGoogleID(context.Background(), "g-other", "other@example.com", "Other")
	if err != nil {
		t.Fatalf("create other user: %v", err)
	}
	if _, err := h.store.EnsureConversation(context.Background(), other.ID, "thread-other", "private"); err != nil {
		t.Fatalf("EnsureConversation: %v", err)
	}

	res := h.do(t, http.MethodGet, "/api/chat/conversations/thread-other/messages", token, nil)
	if res.Code != http.StatusNotFound {
		t.Fatalf("foreign conversation: status = %d", res.Code)
	}

	if res := h.do(t, http.MethodGet, "/api/chat/conversations/unknown-thread/messages", token, nil); res.Code != http.StatusNotFound {
		t.Fatalf("unknown conversation: status = %d", res.Code)
	}
}

func TestTokenExchange(t *testing.T) {
	h := newTestHarness(t, nil)
	user, token := h.newUser(t)

	res := h.do(t, http.MethodPost, "/api/auth/token", "", map[string]string{"token": token})
	if res.Code != http.StatusOK {
		t.Fatalf("token status = %d, body=%s", res.Code, res.Body.String())
	}
	var payload struct {
		AccessToken string            `json:"access_token"`
		TokenType   string            `json:"token_type"`
		User        map[string]string `json:"user"`
	}
	if err := json.Unmarshal(res.Body.Bytes(), &payload); err != nil {
		t.Fatalf("decode payload: %v", err)
	}
	if payload.TokenType != "bearer" || payload.User["id"] != user.ID || payload.User["email"] != user.Email {
		t.Fatalf("unexpected payload: %+v", payload)
	}

	if res := h.do(t, http.MethodPost, "/api/auth/token", "", map[string]string{"token": "junk"}); res.Code != http.StatusUnauthorized {
		t.Fatalf("junk token: status = %d", res.Code)
	}
}

func TestTaskSummaryWithoutIntegrations(t *testing.T) {
	h := newTestHarness(t, nil)
	_, token := h.newUser(t)

	res := h.do(t, http.MethodGet, "/api/tasks/summary", token, nil)
	if res.Code != http.StatusOK {
		t.Fatalf("summary status = %d, body=%s", res.Code, res.Body.String())
	}
	var summary struct {
		TotalTasks        int   `json:"total_tasks"`
		UpcomingDeadlines []any `json:"upcoming_deadlines"`
	}
	if err := json.Unmarshal(res.Body.Bytes(), &summary); err != nil {
		t.Fatalf("decode summary: %v", err)
	}
	if summary.TotalTasks != 0 {
		t.Fatalf("expected empty summary, got %+v", summary)
	}
	if summary.UpcomingDeadlines == nil {
		t.Error("upcoming_deadlines must encode as [], not null")
	}
}

func TestIntegrationStatusUnconnected(t *testing.T) {
	h := newTestHarness(t, nil)
	_, token := h.newUser(t)

	res := h.do(t, http.MethodGet, "/api/integrations/status", token, nil)
	if res.Code != http.StatusOK {
		t.Fatalf("status = %d", res.Code)
	}
	var statuses []integrationStatus
	if err := json.Unmarshal(res.Body.Bytes(), &statuses); err != nil {
		t.Fatalf("decode statuses: %v", err)
	}
	if len(statuses) != 2 {
		t.Fatalf("expected google and jira entries, got %+v", statuses)
	}
	for _, status := range statuses {
		if status.Connected {
			t.Errorf("%s must be disconnected in a fresh deployment", status.Service)
		}
	}
}

func TestJiraConnectValidation(t *testing.T) {
	h := newTestHarness(t, nil)
	_, token := h.newUser(t)

	res := h.do(t, http.MethodPost, "/api/integrations/jira/connect", token, map[string]string{"server": "https://corp.atlassian.net"})
	if res.Code != http.StatusBadRequest {
		t.Fatalf("incomplete credential: status = %d", res.Code)
	}
}

func TestJiraDataNotConnected(t *testing.T) {
	h := newTestHarness(t, nil)
	_, token := h.newUser(t)

	res := h.do(t, http.MethodGet, "/api/integrations/jira/data", token, nil)
	if res.Code != http.StatusBadRequest {
		t.Fatalf("jira data without credential: status = %d, body=%s", res.Code, res.Body.String())
	}
}

func TestRateLimiter(t *testing.T) {
	limiter := NewRateLimiter(2, time.Minute)
	now := time.Date(2024, 6, 10, 12, 0, 0, 0, time.UTC)
	limiter.now = func() time.Time { return now }

	if !limiter.Allow("1.2.3.4") || !limiter.Allow("1.2.3.4") {
		t.Fatal("first two requests must pass")
	}
	if limiter.Allow("1.2.3.4") {
		t.Fatal("third request in window must be rejected")
	}
	if !limiter.Allow("5.6.7.8") {
		t.Fatal("other clients must be unaffected")
	}

	now = now.Add(2 * time.Minute)
	if !limiter.Allow("1.2.3.4") {
		t.Fatal("window expiry must reset the budget")
	}
}
