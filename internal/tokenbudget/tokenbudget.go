// Package tokenbudget trims conversation history to fit an LLM context
// window. Counting is backed by tiktoken's cl100k_base encoding with a
// character heuristic as fallback.
package tokenbudget

import (
	"strings"
	"sync"

	"github.com/pkoukk/tiktoken-go"

	"github.com/dwizi/copilot-backend/internal/llm"
)

var (
	once     sync.Once
	encoding *tiktoken.Tiktoken
)

func initEncoding() {
	once.Do(func() {
		enc, err := tiktoken.GetEncoding("cl100k_base")
		if err == nil {
			encoding = enc
		}
	})
}

// CountTokens returns the token count of text under cl100k_base, or a
// max(runes/4, words) estimate if the encoding failed to load.
func CountTokens(text string) int {
	initEncoding()
	if encoding != nil {
		return len(encoding.Encode(text, nil, nil))
	}
	return estimate(text)
}

func estimate(text string) int {
	trimmed := strings.TrimSpace(text)
	if trimmed == "" {
		return 0
	}
	runes := len([]rune(trimmed))
	words := len(strings.Fields(trimmed))
	result := runes / 4
	if result < words {
		result = words
	}
	if result == 0 {
		result = 1
	}
	return result
}

// SelectWithinBudget returns the longest contiguous suffix of messages whose
// token total fits maxTokens. Walking stops at the first message that would
// overflow: once an older message is too big, everything before it is dropped
// too, never partially included. If even the newest message exceeds the
// budget, the result is empty.
func SelectWithinBudget(messages []llm.Message, maxTokens int) []llm.Message {
	if maxTokens <= 0 || len(messages) == 0 {
		return []llm.Message{}
	}

	total := 0
	start := len(messages)
	for idx := len(messages) - 1; idx >= 0; idx-- {
		cost := CountTokens(messages[idx].Content)
		if total+cost > maxTokens {
			break
		}
		total += cost
		start = idx
	}
	return messages[start:]
}
