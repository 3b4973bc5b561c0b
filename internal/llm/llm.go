package llm

import (
	"context"
	"errors"
)

var ErrGenerationFailed = errors.New("llm generation failed")

const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Responder produces one completion for an ordered prompt. Implementations
// must wrap terminal backend failures in ErrGenerationFailed.
type Responder interface {
	Generate(ctx context.Context, messages []Message) (string, error)
}
