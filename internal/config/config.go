package config

import (
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"
)

type Config struct {
	Environment string
	HTTPAddr    string
	DataDir     string
	DBPath      string
	FrontendURL string

	JWTSecret        string
	JWTExpiryMinutes int

	GoogleClientID     string
	GoogleClientSecret string
	GoogleRedirectURL  string

	JiraServer   string
	JiraEmail    string
	JiraAPIToken string

	IMAPHost          string
	IMAPPort          int
	IMAPUsername      string
	IMAPPassword      string
	IMAPMailbox       string
	IMAPTLSSkipVerify bool

	LLMBaseURL    string
	LLMAPIKey     string
	LLMModel      string
	LLMTimeoutSec int
	LLMMaxTokens  int

	TokenBudget          int
	ContextItemsPerGroup int
	SystemPromptFile     string

	SyncEnabled  bool
	SyncSchedule string

	RateLimitPerWindow int
	RateLimitWindowSec int
}

func FromEnv() Config {
	dataDir := stringOrDefault("COPILOT_DATA_DIR", "./data")

	return Config{
		Environment: stringOrDefault("COPILOT_ENV", "development"),
		HTTPAddr:    stringOrDefault("COPILOT_HTTP_ADDR", ":8000"),
		DataDir:     dataDir,
		DBPath:      stringOrDefault("COPILOT_DB_PATH", filepath.Join(dataDir, "copilot.sqlite")),
		FrontendURL: stringOrDefault("COPILOT_FRONTEND_URL", "http://localhost:5173"),

		JWTSecret:        os.Getenv("COPILOT_JWT_SECRET"),
		JWTExpiryMinutes: intOrDefault("COPILOT_JWT_EXPIRE_MINUTES", 30),

		GoogleClientID:     strings.TrimSpace(os.Getenv("COPILOT_GOOGLE_CLIENT_ID")),
		GoogleClientSecret: os.Getenv("COPILOT_GOOGLE_CLIENT_SECRET"),
		GoogleRedirectURL:  stringOrDefault("COPILOT_GOOGLE_REDIRECT_URL", "http://localhost:8000/api/auth/google/callback"),

		JiraServer:   strings.TrimRight(strings.TrimSpace(os.Getenv("COPILOT_JIRA_SERVER")), "/"),
		JiraEmail:    strings.TrimSpace(os.Getenv("COPILOT_JIRA_EMAIL")),
		JiraAPIToken: os.Getenv("COPILOT_JIRA_API_TOKEN"),

		IMAPHost:          strings.TrimSpace(os.Getenv("COPILOT_IMAP_HOST")),
		IMAPPort:          intOrDefault("COPILOT_IMAP_PORT", 993),
		IMAPUsername:      strings.TrimSpace(os.Getenv("COPILOT_IMAP_USERNAME")),
		IMAPPassword:      os.Getenv("COPILOT_IMAP_PASSWORD"),
		IMAPMailbox:       stringOrDefault("COPILOT_IMAP_MAILBOX", "INBOX"),
		IMAPTLSSkipVerify: boolOrDefault("COPILOT_IMAP_TLS_SKIP_VERIFY", false),

		LLMBaseURL:    stringOrDefault("COPILOT_LLM_BASE_URL", "https://api.groq.com/openai/v1"),
		LLMAPIKey:     strings.TrimSpace(os.Getenv("COPILOT_LLM_API_KEY")),
		LLMModel:      stringOrDefault("COPILOT_LLM_MODEL", "llama-3.3-70b-versatile"),
		LLMTimeoutSec: intOrDefault("COPILOT_LLM_TIMEOUT_SECONDS", 60),
		LLMMaxTokens:  intOrDefault("COPILOT_LLM_MAX_COMPLETION_TOKENS", 1000),

		TokenBudget:          intOrDefault("COPILOT_HISTORY_TOKEN_BUDGET", 4000),
		ContextItemsPerGroup: intOrDefault("COPILOT_CONTEXT_ITEMS_PER_GROUP", 5),
		SystemPromptFile:     strings.TrimSpace(os.Getenv("COPILOT_SYSTEM_PROMPT_FILE")),

		SyncEnabled:  boolOrDefault("COPILOT_SYNC_ENABLED", false),
		SyncSchedule: stringOrDefault("COPILOT_SYNC_SCHEDULE", "0 * * * *"),

		RateLimitPerWindow: intOrDefault("COPILOT_RATE_LIMIT_PER_WINDOW", 60),
		RateLimitWindowSec: intOrDefault("COPILOT_RATE_LIMIT_WINDOW_SECONDS", 60),
	}
}

func (c Config) LLMTimeout() time.Duration {
	return time.Duration(c.LLMTimeoutSec) * time.Second
}

func (c Config) JiraConfigured() bool {
	return c.JiraServer != "" && c.JiraEmail != "" && c.JiraAPIToken != ""
}

func (c Config) IMAPConfigured() bool {
	return c.IMAPHost != "" && c.IMAPUsername != ""
}

func stringOrDefault(name, fallback string) string {
	value := strings.TrimSpace(os.Getenv(name))
	if value == "" {
		return fallback
	}
	return value
}

func intOrDefault(name string, fallback int) int {
	value := strings.TrimSpace(os.Getenv(name))
	if value == "" {
		return fallback
	}
	parsed, err := strconv.Atoi(value)
	if err != nil || parsed < 1 {
		return fallback
	}
	return parsed
}

func boolOrDefault(name string, fallback bool) bool {
	value := strings.TrimSpace(strings.ToLower(os.Getenv(name)))
	switch value {
	case "1", "true", "yes", "on":
		return true
	case "0", "false", "no", "off":
		return false
	default:
		return fallback
	}
}
