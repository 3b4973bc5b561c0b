// Package httpapi exposes the copilot REST surface: Google sign-in, chat,
// task triage and integration management.
package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/dwizi/copilot-backend/internal/auth"
	"github.com/dwizi/copilot-backend/internal/chat"
	"github.com/dwizi/copilot-backend/internal/config"
	"github.com/dwizi/copilot-backend/internal/google"
	"github.com/dwizi/copilot-backend/internal/imapmail"
	"github.com/dwizi/copilot-backend/internal/jira"
	"github.com/dwizi/copilot-backend/internal/llm"
	"github.com/dwizi/copilot-backend/internal/store"
)

type Dependencies struct {
	Config       config.Config
	Store        *store.Store
	Auth         *auth.Manager
	Google       *google.Client
	Mail         *imapmail.Fetcher
	Orchestrator *chat.Orchestrator
	Limiter      *RateLimiter
	Logger       *slog.Logger
	Now          func() time.Time
}

type router struct {
	deps Dependencies
}

func NewRouter(deps Dependencies) http.Handler {
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}
	if deps.Now == nil {
		deps.Now = time.Now
	}
	rt := &router{deps: deps}

	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", rt.handleHealth)
	mux.HandleFunc("/readyz", rt.handleReady)
	mux.HandleFunc("/api/info", rt.handleInfo)

	mux.HandleFunc("/api/auth/google", rt.handleGoogleLogin)
	mux.HandleFunc("/api/auth/google/callback", rt.handleGoogleCallback)
	mux.HandleFunc("/api/auth/token", rt.handleToken)
	mux.HandleFunc("/api/auth/logout", rt.handleLogout)

	mux.HandleFunc("/api/chat", rt.authed(rt.handleChat))
	mux.HandleFunc("/api/chat/conversations", rt.authed(rt.handleConversations))
	mux.HandleFunc("/api/chat/conversations/", rt.authed(rt.handleConversationMessages))

	mux.HandleFunc("/api/tasks/summary", rt.authed(rt.handleTaskSummary))
	mux.HandleFunc("/api/tasks/all", rt.authed(rt.handleAllTasks))
	mux.HandleFunc("/api/tasks/analysis", rt.authed(rt.handleTaskAnalysis))
	mux.HandleFunc("/api/tasks/weekly-summary", rt.authed(rt.handleWeeklySummary))

	mux.HandleFunc("/api/integrations/status", rt.authed(rt.handleIntegrationStatus))
	mux.HandleFunc("/api/integrations/google/data", rt.authed(rt.handleGoogleData))
	mux.HandleFunc("/api/integrations/google/disconnect", rt.authed(rt.handleGoogleDisconnect))
	mux.HandleFunc("/api/integrations/jira/data", rt.authed(rt.handleJiraData))
	mux.HandleFunc("/api/integrations/jira/connect", rt.authed(rt.handleJiraConnect))
	mux.HandleFunc("/api/integrations/jira/disconnect", rt.authed(rt.handleJiraDisconnect))
	mux.HandleFunc("/api/integrations/sync", rt.authed(rt.handleSync))

	var handler http.Handler = mux
	handler = requestLogging(handler, deps.Logger)
	if deps.Limiter != nil {
		handler = deps.Limiter.Middleware(handler)
	}
	handler = securityHeaders(handler)
	handler = corsHeaders(handler, deps.Config.FrontendURL)
	return handler
}

func (r *router) handleHealth(w http.ResponseWriter, req *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (r *router) handleReady(w http.ResponseWriter, req *http.Request) {
	if err := r.deps.Store.Ping(req.Context()); err != nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "not-ready", "error": err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
}

func (r *router) handleInfo(w http.ResponseWriter, req *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"name":        "copilot-backend",
		"environment": r.deps.Config.Environment,
	})
}

// authed wraps a handler with bearer-token verification and passes the
// resolved identity through the request context.
func (r *router) authed(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, req *http.Request) {
		raw, err := auth.FromAuthorizationHeader(req.Header.Get("Authorization"))
		if err != nil {
			writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "missing authentication token"})
			return
		}
		identity, err := r.deps.Auth.Verify(raw)
		if err != nil {
			writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "invalid authentication credentials"})
			return
		}
		next(w, req.WithContext(withIdentity(req.Context(), identity)))
	}
}

type contextKey string

const identityKey contextKey = "identity"

func withIdentity(ctx context.Context, identity auth.Identity) context.Context {
	return context.WithValue(ctx, identityKey, identity)
}

func identityFrom(ctx context.Context) (auth.Identity, bool) {
	identity, ok := ctx.Value(identityKey).(auth.Identity)
	return identity, ok
}

// currentUser resolves the authenticated identity against the user table.
func (r *router) currentUser(w http.ResponseWriter, req *http.Request) (store.User, bool) {
	identity, ok := identityFrom(req.Context())
	if !ok {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "not authenticated"})
		return store.User{}, false
	}
	user, err := r.deps.Store.LookupUser(req.Context(), identity.UserID)
	if err != nil {
		r.writeError(w, err)
		return store.User{}, false
	}
	return user, true
}

func (r *router) writeError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, store.ErrUserNotFound), errors.Is(err, store.ErrConversationNotFound):
		status = http.StatusNotFound
	case errors.Is(err, auth.ErrMissingToken), errors.Is(err, auth.ErrInvalidToken):
		status = http.StatusUnauthorized
	case errors.Is(err, google.ErrNotConnected), errors.Is(err, jira.ErrNotConnected):
		status = http.StatusBadRequest
	case errors.Is(err, llm.ErrGenerationFailed):
		status = http.StatusBadGateway
	}
	writeJSON(w, status, map[string]string{"error": err.Error()})
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}
