// Package chat turns one inbound user message into one persisted assistant
// reply: session history, workspace context, and a single model call.
package chat

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/dwizi/copilot-backend/internal/assemble"
	"github.com/dwizi/copilot-backend/internal/llm"
	"github.com/dwizi/copilot-backend/internal/store"
	"github.com/dwizi/copilot-backend/internal/tokenbudget"
)

const (
	defaultTokenBudget   = 4000
	defaultItemsPerGroup = 5
	titleMaxLen          = 50
)

// TurnStore persists conversation turns keyed by thread id.
type TurnStore interface {
	AppendTurn(ctx context.Context, threadID, role, content, metadata string) (store.Message, error)
	LoadHistory(ctx context.Context, threadID string) ([]store.Message, error)
}

type Options struct {
	SystemPrompt  string
	TokenBudget   int
	ItemsPerGroup int
	Logger        *slog.Logger
}

type Orchestrator struct {
	turns     TurnStore
	responder llm.Responder

	tokenBudget   int
	itemsPerGroup int
	logger        *slog.Logger

	promptMu     sync.RWMutex
	systemPrompt string

	// One lock per thread id. Appends within a thread are serialized;
	// distinct threads proceed concurrently.
	locks sync.Map
}

func New(turns TurnStore, responder llm.Responder, opts Options) *Orchestrator {
	if opts.SystemPrompt == "" {
		opts.SystemPrompt = DefaultSystemPrompt
	}
	if opts.TokenBudget < 1 {
		opts.TokenBudget = defaultTokenBudget
	}
	if opts.ItemsPerGroup < 1 {
		opts.ItemsPerGroup = defaultItemsPerGroup
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	return &Orchestrator{
		turns:         turns,
		responder:     responder,
		tokenBudget:   opts.TokenBudget,
		itemsPerGroup: opts.ItemsPerGroup,
		logger:        opts.Logger,
		systemPrompt:  opts.SystemPrompt,
	}
}

// SetSystemPrompt swaps the system prompt for subsequent turns.
func (o *Orchestrator) SetSystemPrompt(prompt string) {
	prompt = strings.TrimSpace(prompt)
	if prompt == "" {
		prompt = DefaultSystemPrompt
	}
	o.promptMu.Lock()
	o.systemPrompt = prompt
	o.promptMu.Unlock()
}

func (o *Orchestrator) currentSystemPrompt() string {
	o.promptMu.RLock()
	defer o.promptMu.RUnlock()
	return o.systemPrompt
}

// NewThreadID mints a thread id for a conversation that doesn't have one.
func NewThreadID(userID string, now time.Time) string {
	if userID == "" {
		return uuid.NewString()
	}
	return fmt.Sprintf("user_%s_%d", userID, now.Unix())
}

// TitleFor derives a conversation title from its opening message.
func TitleFor(firstMessage string) string {
	firstMessage = strings.TrimSpace(firstMessage)
	if firstMessage == "" {
		return "New Chat"
	}
	runes := []rune(firstMessage)
	if len(runes) <= titleMaxLen {
		return firstMessage
	}
	return string(runes[:titleMaxLen]) + "..."
}

type Reply struct {
	Message     string `json:"message"`
	ThreadID    string `json:"thread_id"`
	ContextUsed bool   `json:"context_used"`
}

// Respond records the user turn, replays the budgeted session history behind
// the system prompt plus optional context block, and persists the single
// model reply. On generation failure the user turn stays recorded and no
// assistant turn is written.
func (o *Orchestrator) Respond(ctx context.Context, threadID, userMessage string, bundle assemble.Bundle) (Reply, error) {
	lock := o.threadLock(threadID)
	lock.Lock()
	defer lock.Unlock()

	if _, err := o.turns.AppendTurn(ctx, threadID, llm.RoleUser, userMessage, ""); err != nil {
		return Reply{}, fmt.Errorf("record user turn: %w", err)
	}

	history, err := o.turns.LoadHistory(ctx, threadID)
	if err != nil {
		return Reply{}, fmt.Errorf("load session history: %w", err)
	}
	budgeted := tokenbudget.SelectWithinBudget(historyMessages(history), o.tokenBudget)

	prompt := []llm.Message{{Role: llm.RoleSystem, Content: o.currentSystemPrompt()}}
	block, contextUsed := assemble.BuildContextBlock(bundle, o.itemsPerGroup)
	if contextUsed {
		prompt = append(prompt, llm.Message{Role: llm.RoleSystem, Content: block})
	}
	prompt = append(prompt, budgeted...)

	reply, err := o.responder.Generate(ctx, prompt)
	if err != nil {
		return Reply{}, fmt.Errorf("generate chat reply: %w", err)
	}

	metadata := ""
	if contextUsed {
		metadata = `{"context_used": true}`
	}
	if _, err := o.turns.AppendTurn(ctx, threadID, llm.RoleAssistant, reply, metadata); err != nil {
		return Reply{}, fmt.Errorf("record assistant turn: %w", err)
	}

	o.logger.Info("chat turn completed",
		"thread_id", threadID,
		"history_turns", len(history),
		"budgeted_turns", len(budgeted),
		"context_used", contextUsed,
	)
	return Reply{Message: reply, ThreadID: threadID, ContextUsed: contextUsed}, nil
}

func (o *Orchestrator) threadLock(threadID string) *sync.Mutex {
	lock, _ := o.locks.LoadOrStore(threadID, &sync.Mutex{})
	return lock.(*sync.Mutex)
}

func historyMessages(turns []store.Message) []llm.Message {
	messages := make([]llm.Message, 0, len(turns))
	for _, turn := range turns {
		messages = append(messages, llm.Message{Role: turn.Role, Content: turn.Content})
	}
	return messages
}
