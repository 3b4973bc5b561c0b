package httpapi

import (
	"encoding/json"
	"net/http"
	"net/url"
	"strings"

	"github.com/dwizi/copilot-backend/internal/store"
)

func (r *router) handleGoogleLogin(w http.ResponseWriter, req *http.Request) {
	if req.Method != http.MethodGet {
		writeJSON(w, http.StatusMethodNotAllowed, map[string]string{"error": "method not allowed"})
		return
	}
	http.Redirect(w, req, r.deps.Google.AuthURL(""), http.StatusFound)
}

func (r *router) handleGoogleCallback(w http.ResponseWriter, req *http.Request) {
	if req.Method != http.MethodGet {
		writeJSON(w, http.StatusMethodNotAllowed, map[string]string{"error": "method not allowed"})
		return
	}
	code := strings.TrimSpace(req.URL.Query().Get("code"))
	if code == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "code is required"})
		return
	}

	ctx := req.Context()
	grant, err := r.deps.Google.Exchange(ctx, code)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "authentication failed: " + err.Error()})
		return
	}
	info, err := r.deps.Google.FetchUserInfo(ctx, grant.AccessToken)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "authentication failed: " + err.Error()})
		return
	}

	user, err := r.deps.Store.UpsertUserByGoogleID(ctx, info.ID, info.Email, info.Name)
	if err != nil {
		r.writeError(w, err)
		return
	}
	if err := r.deps.Store.UpsertGoogleToken(ctx, store.GoogleToken{
		UserID:       user.ID,
		AccessToken:  grant.AccessToken,
		RefreshToken: grant.RefreshToken,
		ExpiresAt:    grant.Expiry,
	}); err != nil {
		r.writeError(w, err)
		return
	}

	token, err := r.deps.Auth.Issue(user.ID, user.Email, r.deps.Now())
	if err != nil {
		r.writeError(w, err)
		return
	}

	r.deps.Logger.Info("user authenticated", "user_id", user.ID)
	redirect := strings.TrimRight(r.deps.Config.FrontendURL, "/") + "/auth/callback?token=" + url.QueryEscape(token)
	http.Redirect(w, req, redirect, http.StatusFound)
}

type tokenRequest struct {
	Token string `json:"token"`
}

// handleToken lets the frontend trade a JWT back for the user profile.
func (r *router) handleToken(w http.ResponseWriter, req *http.Request) {
	if req.Method != http.MethodPost {
		writeJSON(w, http.StatusMethodNotAllowed, map[string]string{"error": "method not allowed"})
		return
	}
	var payload tokenRequest
	if err := json.NewDecoder(req.Body).Decode(&payload); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid payload"})
		return
	}

	identity, err := r.deps.Auth.Verify(strings.TrimSpace(payload.Token))
	if err != nil {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "invalid token"})
		return
	}
	user, err := r.deps.Store.LookupUser(req.Context(), identity.UserID)
	if err != nil {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "invalid token"})
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"access_token": payload.Token,
		"token_type":   "bearer",
		"user": map[string]string{
			"id":    user.ID,
			"email": user.Email,
			"name":  user.Name,
		},
	})
}

func (r *router) handleLogout(w http.ResponseWriter, req *http.Request) {
	if req.Method != http.MethodPost {
		writeJSON(w, http.StatusMethodNotAllowed, map[string]string{"error": "method not allowed"})
		return
	}
	// Tokens are stateless; the client drops its copy.
	writeJSON(w, http.StatusOK, map[string]string{"message": "logged out successfully"})
}
