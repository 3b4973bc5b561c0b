package httpapi

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/dwizi/copilot-backend/internal/jira"
	"github.com/dwizi/copilot-backend/internal/store"
)

type integrationStatus struct {
	Service   string `json:"service"`
	Connected bool   `json:"connected"`
	LastSync  string `json:"last_sync,omitempty"`
	Error     string `json:"error,omitempty"`
}

func (r *router) handleIntegrationStatus(w http.ResponseWriter, req *http.Request) {
	if req.Method != http.MethodGet {
		writeJSON(w, http.StatusMethodNotAllowed, map[string]string{"error": "method not allowed"})
		return
	}
	user, ok := r.currentUser(w, req)
	if !ok {
		return
	}

	ctx := req.Context()
	statuses := make([]integrationStatus, 0, 2)

	googleStatus := integrationStatus{Service: "google"}
	if token, err := r.deps.Store.LookupGoogleToken(ctx, user.ID); err == nil {
		googleStatus.Connected = token.AccessToken != ""
	} else if !errors.Is(err, store.ErrCredentialNotFound) {
		googleStatus.Error = err.Error()
	}
	statuses = append(statuses, googleStatus)

	jiraStatus := integrationStatus{Service: "jira"}
	if client, err := r.jiraClient(ctx, user.ID); err == nil {
		jiraStatus.Connected = client.TestConnection(ctx)
		if jiraStatus.Connected {
			jiraStatus.LastSync = r.deps.Now().Format(time.RFC3339)
		}
	} else if !errors.Is(err, jira.ErrNotConnected) {
		jiraStatus.Error = err.Error()
	}
	statuses = append(statuses, jiraStatus)

	writeJSON(w, http.StatusOK, statuses)
}

func (r *router) handleGoogleData(w http.ResponseWriter, req *http.Request) {
	if req.Method != http.MethodGet {
		writeJSON(w, http.StatusMethodNotAllowed, map[string]string{"error": "method not allowed"})
		return
	}
	user, ok := r.currentUser(w, req)
	if !ok {
		return
	}

	ctx := req.Context()
	accessToken, err := r.googleAccessToken(ctx, user.ID)
	if errors.Is(err, errReauthRequired) {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"error": err.Error()})
		return
	}
	if err != nil {
		r.writeError(w, err)
		return
	}

	service := strings.ToLower(strings.TrimSpace(req.URL.Query().Get("service")))
	var data any
	switch service {
	case "gmail":
		data, err = r.deps.Google.FetchEmails(ctx, accessToken, contextEmailCap)
	case "calendar":
		data, err = r.deps.Google.FetchEvents(ctx, accessToken, contextEventCap)
	case "drive":
		data, err = r.deps.Google.FetchFiles(ctx, accessToken, contextFileCap)
	default:
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid service"})
		return
	}
	if err != nil {
		r.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"service": service, "data": data})
}

func (r *router) handleGoogleDisconnect(w http.ResponseWriter, req *http.Request) {
	if req.Method != http.MethodPost {
		writeJSON(w, http.StatusMethodNotAllowed, map[string]string{"error": "method not allowed"})
		return
	}
	user, ok := r.currentUser(w, req)
	if !ok {
		return
	}
	if err := r.deps.Store.DeleteGoogleToken(req.Context(), user.ID); err != nil {
		r.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"message": "google integration disconnected"})
}

func (r *router) handleJiraData(w http.ResponseWriter, req *http.Request) {
	if req.Method != http.MethodGet {
		writeJSON(w, http.StatusMethodNotAllowed, map[string]string{"error": "method not allowed"})
		return
	}
	user, ok := r.currentUser(w, req)
	if !ok {
		return
	}

	ctx := req.Context()
	client, err := r.jiraClient(ctx, user.ID)
	if err != nil {
		r.writeError(w, err)
		return
	}

	dataType := strings.ToLower(strings.TrimSpace(req.URL.Query().Get("data_type")))
	if dataType == "" {
		dataType = "issues"
	}
	var data any
	switch dataType {
	case "issues":
		data, err = client.FetchAssignedIssues(ctx, contextIssueCap)
	case "projects":
		data, err = client.FetchProjects(ctx)
	default:
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid data type"})
		return
	}
	if err != nil {
		r.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"data_type": dataType, "data": data})
}

type jiraConnectRequest struct {
	Server   string `json:"server"`
	Email    string `json:"email"`
	APIToken string `json:"api_token"`
}

func (r *router) handleJiraConnect(w http.ResponseWriter, req *http.Request) {
	if req.Method != http.MethodPost {
		writeJSON(w, http.StatusMethodNotAllowed, map[string]string{"error": "method not allowed"})
		return
	}
	user, ok := r.currentUser(w, req)
	if !ok {
		return
	}

	var payload jiraConnectRequest
	if err := json.NewDecoder(req.Body).Decode(&payload); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid payload"})
		return
	}
	cred := jira.Credential{
		Server:   strings.TrimRight(strings.TrimSpace(payload.Server), "/"),
		Email:    strings.TrimSpace(payload.Email),
		APIToken: payload.APIToken,
	}

	ctx := req.Context()
	client, err := jira.New(cred, r.deps.Logger)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "server, email and api_token are required"})
		return
	}
	if !client.TestConnection(ctx) {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "jira connection test failed"})
		return
	}

	if err := r.deps.Store.UpsertJiraCredential(ctx, store.JiraCredential{
		UserID:   user.ID,
		Server:   cred.Server,
		Email:    cred.Email,
		APIToken: cred.APIToken,
	}); err != nil {
		r.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"message": "jira integration connected"})
}

func (r *router) handleJiraDisconnect(w http.ResponseWriter, req *http.Request) {
	if req.Method != http.MethodPost {
		writeJSON(w, http.StatusMethodNotAllowed, map[string]string{"error": "method not allowed"})
		return
	}
	user, ok := r.currentUser(w, req)
	if !ok {
		return
	}
	if err := r.deps.Store.DeleteJiraCredential(req.Context(), user.ID); err != nil {
		r.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"message": "jira integration disconnected"})
}

// handleSync pulls a fresh snapshot from every connected integration and
// reports per-source counts and failures.
func (r *router) handleSync(w http.ResponseWriter, req *http.Request) {
	if req.Method != http.MethodGet && req.Method != http.MethodPost {
		writeJSON(w, http.StatusMethodNotAllowed, map[string]string{"error": "method not allowed"})
		return
	}
	user, ok := r.currentUser(w, req)
	if !ok {
		return
	}

	outcome := r.gatherBundle(req.Context(), user.ID)
	results := map[string]any{
		"emails": len(outcome.Bundle.Emails),
		"events": len(outcome.Bundle.Events),
		"issues": len(outcome.Bundle.Issues),
		"files":  len(outcome.Bundle.Files),
	}
	failures := map[string]string{}
	for _, failure := range outcome.Failures {
		failures[failure.Source] = failure.Err.Error()
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"synced_at": r.deps.Now().Format(time.RFC3339),
		"results":   results,
		"failures":  failures,
	})
}
