// Package openai implements llm.Responder against any OpenAI-compatible
// chat-completions endpoint, including Groq's.
package openai

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/dwizi/copilot-backend/internal/llm"
)

type Config struct {
	APIKey      string
	BaseURL     string
	Model       string
	Timeout     time.Duration
	MaxTokens   int
	Temperature float64
}

type Client struct {
	cfg        Config
	httpClient *http.Client
	logger     *slog.Logger
}

func New(cfg Config, logger *slog.Logger) *Client {
	if strings.TrimSpace(cfg.BaseURL) == "" {
		cfg.BaseURL = "https://api.groq.com/openai/v1"
	}
	if strings.TrimSpace(cfg.Model) == "" {
		cfg.Model = "llama-3.3-70b-versatile"
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 60 * time.Second
	}
	if cfg.MaxTokens <= 0 {
		cfg.MaxTokens = 1000
	}
	if cfg.Temperature <= 0 {
		cfg.Temperature = 0.1
	}
	if logger == nil {
		logger = slog.Default()
	}

	return &Client{
		cfg: cfg,
		httpClient: &http.Client{
			Timeout: cfg.Timeout,
		},
		logger: logger,
	}
}

func (c *Client) Generate(ctx context.Context, messages []llm.Message) (string, error) {
	if len(messages) == 0 {
		return "", fmt.Errorf("%w: empty prompt", llm.ErrGenerationFailed)
	}
	if strings.TrimSpace(c.cfg.APIKey) == "" {
		return "", fmt.Errorf("%w: missing API key for %s", llm.ErrGenerationFailed, c.cfg.BaseURL)
	}

	payload := map[string]any{
		"model":       c.cfg.Model,
		"messages":    messages,
		"max_tokens":  c.cfg.MaxTokens,
		"temperature": c.cfg.Temperature,
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("marshal completion request: %w", err)
	}

	endpoint := strings.TrimRight(c.cfg.BaseURL, "/") + "/chat/completions"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return "", err
	}
	req.Header.Set("Authorization", "Bearer "+c.cfg.APIKey)
	req.Header.Set("Content-Type", "application/json")

	res, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("%w: %v", llm.ErrGenerationFailed, err)
	}
	defer res.Body.Close()

	respBody, err := io.ReadAll(io.LimitReader(res.Body, 4<<20))
	if err != nil {
		return "", fmt.Errorf("%w: %v", llm.ErrGenerationFailed, err)
	}
	if res.StatusCode < 200 || res.StatusCode >= 300 {
		c.logger.Error("chat completion failed", "status", res.StatusCode, "body", strings.TrimSpace(string(respBody)))
		return "", fmt.Errorf("%w: completion returned status %d", llm.ErrGenerationFailed, res.StatusCode)
	}

	var response chatCompletionResponse
	if err := json.Unmarshal(respBody, &response); err != nil {
		return "", fmt.Errorf("%w: decode response: %v", llm.ErrGenerationFailed, err)
	}
	if len(response.Choices) == 0 {
		return "", fmt.Errorf("%w: response returned no choices", llm.ErrGenerationFailed)
	}
	return strings.TrimSpace(response.Choices[0].Message.Content), nil
}

type chatCompletionResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
}
