package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

var ErrCredentialNotFound = errors.New("credential not found")

// GoogleToken is the persisted OAuth grant for one user. ExpiresAt is zero
// when the provider returned no expiry.
type GoogleToken struct {
	UserID       string
	AccessToken  string
	RefreshToken string
	ExpiresAt    time.Time
}

func (t GoogleToken) Expired(now time.Time) bool {
	return !t.ExpiresAt.IsZero() && now.After(t.ExpiresAt)
}

// UpsertGoogleToken stores the grant, keeping the previous refresh token when
// a refresh response omits it.
func (s *Store) UpsertGoogleToken(ctx context.Context, token GoogleToken) error {
	var expires any
	if !token.ExpiresAt.IsZero() {
		expires = token.ExpiresAt.Unix()
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO google_tokens (user_id, access_token, refresh_token, expires_at_unix)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(user_id) DO UPDATE SET
			access_token = excluded.access_token,
			refresh_token = CASE WHEN excluded.refresh_token = '' THEN google_tokens.refresh_token ELSE excluded.refresh_token END,
			expires_at_unix = excluded.expires_at_unix`,
		token.UserID, token.AccessToken, token.RefreshToken, expires,
	)
	if err != nil {
		return fmt.Errorf("upsert google token: %w", err)
	}
	return nil
}

func (s *Store) LookupGoogleToken(ctx context.Context, userID string) (GoogleToken, error) {
	var (
		token   GoogleToken
		expires sql.NullInt64
	)
	err := s.db.QueryRowContext(ctx,
		`SELECT user_id, access_token, refresh_token, expires_at_unix FROM google_tokens WHERE user_id = ?`,
		userID,
	).Scan(&token.UserID, &token.AccessToken, &token.RefreshToken, &expires)
	if errors.Is(err, sql.ErrNoRows) {
		return GoogleToken{}, ErrCredentialNotFound
	}
	if err != nil {
		return GoogleToken{}, fmt.Errorf("lookup google token: %w", err)
	}
	if expires.Valid {
		token.ExpiresAt = time.Unix(expires.Int64, 0)
	}
	return token, nil
}

// ListGoogleTokens returns every stored grant, for background refresh.
func (s *Store) ListGoogleTokens(ctx context.Context) ([]GoogleToken, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT user_id, access_token, refresh_token, expires_at_unix FROM google_tokens`)
	if err != nil {
		return nil, fmt.Errorf("list google tokens: %w", err)
	}
	defer rows.Close()

	var tokens []GoogleToken
	for rows.Next() {
		var (
			token   GoogleToken
			expires sql.NullInt64
		)
		if err := rows.Scan(&token.UserID, &token.AccessToken, &token.RefreshToken, &expires); err != nil {
			return nil, fmt.Errorf("scan google token: %w", err)
		}
		if expires.Valid {
			token.ExpiresAt = time.Unix(expires.Int64, 0)
		}
		tokens = append(tokens, token)
	}
	return tokens, rows.Err()
}

func (s *Store) DeleteGoogleToken(ctx context.Context, userID string) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM google_tokens WHERE user_id = ?`, userID); err != nil {
		return fmt.Errorf("delete google token: %w", err)
	}
	return nil
}

type JiraCredential struct {
	UserID   string
	Server   string
	Email    string
	APIToken string
}

func (s *Store) UpsertJiraCredential(ctx context.Context, cred JiraCredential) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO jira_credentials (user_id, server, email, api_token)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(user_id) DO UPDATE SET
			server = excluded.server,
			email = excluded.email,
			api_token = excluded.api_token`,
		cred.UserID, cred.Server, cred.Email, cred.APIToken,
	)
	if err != nil {
		return fmt.Errorf("upsert jira credential: %w", err)
	}
	return nil
}

func (s *Store) LookupJiraCredential(ctx context.Context, userID string) (JiraCredential, error) {
	var cred JiraCredential
	err := s.db.QueryRowContext(ctx,
		`SELECT user_id, server, email, api_token FROM jira_credentials WHERE user_id = ?`,
		userID,
	).Scan(&cred.UserID, &cred.Server, &cred.Email, &cred.APIToken)
	if errors.Is(err, sql.ErrNoRows) {
		return JiraCredential{}, ErrCredentialNotFound
	}
	if err != nil {
		return JiraCredential{}, fmt.Errorf("lookup jira credential: %w", err)
	}
	return cred, nil
}

func (s *Store) DeleteJiraCredential(ctx context.Context, userID string) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM jira_credentials WHERE user_id = ?`, userID); err != nil {
		return fmt.Errorf("delete jira credential: %w", err)
	}
	return nil
}
