// Package dialogue produces the next assistant turn of an intake
// conversation.
package dialogue

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/AloysioLvy/radar-intake/internal/conversation"
	"github.com/AloysioLvy/radar-intake/internal/openai"
)

var (
	// ErrMissingCredential means the text-generation credential is not
	// configured. It is a configuration error and is never retried.
	ErrMissingCredential = errors.New("text-generation credential not configured")
	// ErrUpstream wraps any failure of the text-generation call.
	ErrUpstream = errors.New("upstream extraction failed")
)

// Completer is the text-generation capability.
type Completer interface {
	Complete(ctx context.Context, messages []openai.Message) (string, error)
}

type Executor struct {
	llm    Completer
	system string
	logger *slog.Logger
}

func New(llm Completer, logger *slog.Logger) *Executor {
	return &Executor{llm: llm, system: SystemPrompt, logger: logger}
}

// Next sends the instruction plus the caller's turns and returns the
// assistant's reply verbatim.
func (e *Executor) Next(ctx context.Context, turns []conversation.Turn) (string, error) {
	messages := e.Messages(turns)

	e.logger.Debug("requesting assistant turn", "turns", len(turns), "messages", len(messages))

	reply, err := e.llm.Complete(ctx, messages)
	if err != nil {
		if errors.Is(err, openai.ErrMissingAPIKey) {
			e.logger.Error("text-generation credential missing")
			return "", ErrMissingCredential
		}
		e.logger.Error("text-generation call failed", "error", err)
		return "", fmt.Errorf("%w: %w", ErrUpstream, err)
	}
	return reply, nil
}

// Messages builds the outbound message list. The instruction is always
// element 0 and system turns supplied by the caller are dropped.
func (e *Executor) Messages(turns []conversation.Turn) []openai.Message {
	messages := make([]openai.Message, 0, len(turns)+1)
	messages = append(messages, openai.Message{Role: conversation.RoleSystem, Content: e.system})
	for _, t := range turns {
		if t.Role == conversation.RoleSystem {
			continue
		}
		messages = append(messages, openai.Message{Role: t.Role, Content: t.Content})
	}
	return messages
}
