package scheduler

import (
	"context"
	"log/slog"
	"time"

	"golang.org/x/oauth2"

	"github.com/dwizi/copilot-backend/internal/store"
)

// Grants nearing expiry by less than this margin are refreshed eagerly so
// interactive requests never pay the refresh round trip.
const refreshMargin = 10 * time.Minute

type TokenStore interface {
	ListGoogleTokens(ctx context.Context) ([]store.GoogleToken, error)
	UpsertGoogleToken(ctx context.Context, token store.GoogleToken) error
}

type TokenRefresher interface {
	Refresh(ctx context.Context, refreshToken string) (*oauth2.Token, error)
}

// RefreshExpiringTokens walks stored Google grants and renews those at or
// near expiry. One failing grant doesn't stop the sweep.
func RefreshExpiringTokens(ctx context.Context, tokens TokenStore, refresher TokenRefresher, logger *slog.Logger) error {
	if logger == nil {
		logger = slog.Default()
	}
	stored, err := tokens.ListGoogleTokens(ctx)
	if err != nil {
		return err
	}

	now := time.Now()
	refreshed := 0
	for _, grant := range stored {
		if grant.RefreshToken == "" {
			continue
		}
		if grant.ExpiresAt.IsZero() || grant.ExpiresAt.After(now.Add(refreshMargin)) {
			continue
		}
		renewed, err := refresher.Refresh(ctx, grant.RefreshToken)
		if err != nil {
			logger.Warn("google token refresh failed", "user_id", grant.UserID, "error", err)
			continue
		}
		next := store.GoogleToken{
			UserID:       grant.UserID,
			AccessToken:  renewed.AccessToken,
			RefreshToken: renewed.RefreshToken,
			ExpiresAt:    renewed.Expiry,
		}
		if err := tokens.UpsertGoogleToken(ctx, next); err != nil {
			logger.Warn("google token persist failed", "user_id", grant.UserID, "error", err)
			continue
		}
		refreshed++
	}
	if refreshed > 0 {
		logger.Info("google tokens refreshed", "count", refreshed)
	}
	return nil
}
