// Package app wires configuration, storage, integrations and the HTTP
// surface into one runnable backend.
package app

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/dwizi/copilot-backend/internal/auth"
	"github.com/dwizi/copilot-backend/internal/chat"
	"github.com/dwizi/copilot-backend/internal/config"
	"github.com/dwizi/copilot-backend/internal/google"
	"github.com/dwizi/copilot-backend/internal/httpapi"
	"github.com/dwizi/copilot-backend/internal/imapmail"
	"github.com/dwizi/copilot-backend/internal/llm/openai"
	"github.com/dwizi/copilot-backend/internal/promptwatch"
	"github.com/dwizi/copilot-backend/internal/scheduler"
	"github.com/dwizi/copilot-backend/internal/store"
)

type Runtime struct {
	cfg    config.Config
	logger *slog.Logger

	store        *store.Store
	googleClient *google.Client
	orchestrator *chat.Orchestrator
	promptWatch  *promptwatch.Service
	scheduler    *scheduler.Service
	httpServer   *http.Server
}

func New(cfg config.Config, logger *slog.Logger) (*Runtime, error) {
	if err := os.MkdirAll(filepath.Dir(cfg.DBPath), 0o755); err != nil {
		return nil, fmt.Errorf("create data dir: %w", err)
	}
	sqlStore, err := store.New(cfg.DBPath)
	if err != nil {
		return nil, err
	}
	if err := sqlStore.AutoMigrate(context.Background()); err != nil {
		sqlStore.Close()
		return nil, err
	}

	authManager, err := auth.NewManager(cfg.JWTSecret, time.Duration(cfg.JWTExpiryMinutes)*time.Minute)
	if err != nil {
		sqlStore.Close()
		return nil, err
	}

	googleClient := google.New(google.Config{
		ClientID:     cfg.GoogleClientID,
		ClientSecret: cfg.GoogleClientSecret,
		RedirectURL:  cfg.GoogleRedirectURL,
	}, logger.With("component", "google"))

	var mail *imapmail.Fetcher
	if cfg.IMAPConfigured() {
		mail = imapmail.New(imapmail.Config{
			Host:          cfg.IMAPHost,
			Port:          cfg.IMAPPort,
			Username:      cfg.IMAPUsername,
			Password:      cfg.IMAPPassword,
			Mailbox:       cfg.IMAPMailbox,
			TLSSkipVerify: cfg.IMAPTLSSkipVerify,
		})
	}

	responder := openai.New(openai.Config{
		APIKey:    cfg.LLMAPIKey,
		BaseURL:   cfg.LLMBaseURL,
		Model:     cfg.LLMModel,
		Timeout:   cfg.LLMTimeout(),
		MaxTokens: cfg.LLMMaxTokens,
	}, logger.With("component", "llm"))

	systemPrompt, err := promptwatch.Load(cfg.SystemPromptFile)
	if err != nil {
		sqlStore.Close()
		return nil, err
	}
	orchestrator := chat.New(sqlStore, responder, chat.Options{
		SystemPrompt:  systemPrompt,
		TokenBudget:   cfg.TokenBudget,
		ItemsPerGroup: cfg.ContextItemsPerGroup,
		Logger:        logger.With("component", "chat"),
	})

	promptWatch, err := promptwatch.New(cfg.SystemPromptFile, logger.With("component", "promptwatch"), orchestrator.SetSystemPrompt)
	if err != nil {
		sqlStore.Close()
		return nil, err
	}

	var syncService *scheduler.Service
	if cfg.SyncEnabled {
		syncLogger := logger.With("component", "scheduler")
		syncService, err = scheduler.New(cfg.SyncSchedule, func(ctx context.Context) error {
			return scheduler.RefreshExpiringTokens(ctx, sqlStore, googleClient, syncLogger)
		}, syncLogger)
		if err != nil {
			sqlStore.Close()
			return nil, err
		}
	}

	handler := httpapi.NewRouter(httpapi.Dependencies{
		Config:       cfg,
		Store:        sqlStore,
		Auth:         authManager,
		Google:       googleClient,
		Mail:         mail,
		Orchestrator: orchestrator,
		Limiter:      httpapi.NewRateLimiter(cfg.RateLimitPerWindow, time.Duration(cfg.RateLimitWindowSec)*time.Second),
		Logger:       logger.With("component", "httpapi"),
	})

	return &Runtime{
		cfg:          cfg,
		logger:       logger,
		store:        sqlStore,
		googleClient: googleClient,
		orchestrator: orchestrator,
		promptWatch:  promptWatch,
		scheduler:    syncService,
		httpServer: &http.Server{
			Addr:              cfg.HTTPAddr,
			Handler:           handler,
			ReadHeaderTimeout: 10 * time.Second,
		},
	}, nil
}
