package httpapi

import (
	"context"
	"errors"
	"fmt"

	"github.com/dwizi/copilot-backend/internal/assemble"
	"github.com/dwizi/copilot-backend/internal/google"
	"github.com/dwizi/copilot-backend/internal/jira"
	"github.com/dwizi/copilot-backend/internal/store"
)

const (
	contextEmailCap = 10
	contextEventCap = 7 // days ahead
	contextFileCap  = 10
	contextIssueCap = 15
)

var errReauthRequired = errors.New("token expired, re-authentication required")

// googleAccessToken returns a live access token for the user, refreshing an
// expired grant in place when possible.
func (r *router) googleAccessToken(ctx context.Context, userID string) (string, error) {
	token, err := r.deps.Store.LookupGoogleToken(ctx, userID)
	if errors.Is(err, store.ErrCredentialNotFound) {
		return "", google.ErrNotConnected
	}
	if err != nil {
		return "", err
	}
	if !token.Expired(r.deps.Now()) {
		return token.AccessToken, nil
	}
	if token.RefreshToken == "" {
		return "", errReauthRequired
	}

	renewed, err := r.deps.Google.Refresh(ctx, token.RefreshToken)
	if err != nil {
		return "", fmt.Errorf("refresh google token: %w", err)
	}
	next := store.GoogleToken{
		UserID:       userID,
		AccessToken:  renewed.AccessToken,
		RefreshToken: renewed.RefreshToken,
		ExpiresAt:    renewed.Expiry,
	}
	if err := r.deps.Store.UpsertGoogleToken(ctx, next); err != nil {
		return "", err
	}
	return renewed.AccessToken, nil
}

// jiraClient builds a client from the user's stored credential, falling back
// to the deployment-level credential when none is stored.
func (r *router) jiraClient(ctx context.Context, userID string) (*jira.Client, error) {
	cred, err := r.deps.Store.LookupJiraCredential(ctx, userID)
	if err == nil {
		return jira.New(jira.Credential{Server: cred.Server, Email: cred.Email, APIToken: cred.APIToken}, r.deps.Logger)
	}
	if !errors.Is(err, store.ErrCredentialNotFound) {
		return nil, err
	}
	cfg := r.deps.Config
	if !cfg.JiraConfigured() {
		return nil, jira.ErrNotConnected
	}
	return jira.New(jira.Credential{Server: cfg.JiraServer, Email: cfg.JiraEmail, APIToken: cfg.JiraAPIToken}, r.deps.Logger)
}

// fetchersFor binds per-source fetch closures to the user's credentials.
// Mail prefers Gmail and falls back to IMAP when Google isn't connected.
func (r *router) fetchersFor(ctx context.Context, userID string) assemble.Fetchers {
	var fetchers assemble.Fetchers

	accessToken, tokenErr := r.googleAccessToken(ctx, userID)
	if tokenErr == nil {
		fetchers.Emails = func(ctx context.Context) ([]google.Email, error) {
			return r.deps.Google.FetchEmails(ctx, accessToken, contextEmailCap)
		}
		fetchers.Events = func(ctx context.Context) ([]google.Event, error) {
			return r.deps.Google.FetchEvents(ctx, accessToken, contextEventCap)
		}
		fetchers.Files = func(ctx context.Context) ([]google.File, error) {
			return r.deps.Google.FetchFiles(ctx, accessToken, contextFileCap)
		}
	} else {
		if !errors.Is(tokenErr, google.ErrNotConnected) {
			r.deps.Logger.Warn("google token unavailable", "user_id", userID, "error", tokenErr)
		}
		if r.deps.Mail != nil && r.deps.Mail.Configured() {
			fetchers.Emails = func(ctx context.Context) ([]google.Email, error) {
				return r.deps.Mail.FetchUnread(ctx, contextEmailCap)
			}
		}
	}

	if client, err := r.jiraClient(ctx, userID); err == nil {
		fetchers.Issues = func(ctx context.Context) ([]jira.Issue, error) {
			return client.FetchAssignedIssues(ctx, contextIssueCap)
		}
	} else if !errors.Is(err, jira.ErrNotConnected) {
		r.deps.Logger.Warn("jira credential unavailable", "user_id", userID, "error", err)
	}

	return fetchers
}

func (r *router) gatherBundle(ctx context.Context, userID string) assemble.Outcome {
	return assemble.Gather(ctx, r.fetchersFor(ctx, userID), r.deps.Logger)
}
