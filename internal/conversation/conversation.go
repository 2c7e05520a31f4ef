// Package conversation models the caller-held turn log and the logical
// phase of an intake dialogue.
package conversation

import (
	"errors"
	"fmt"

	"github.com/AloysioLvy/radar-intake/internal/extractor"
)

const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// Turn is one entry of the conversation log.
type Turn struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Phase is the logical state of a conversation.
type Phase string

const (
	PhaseCollecting           Phase = "COLLECTING"
	PhaseAwaitingConfirmation Phase = "AWAITING_CONFIRMATION"
	PhaseConfirmed            Phase = "CONFIRMED"
	PhaseRejected             Phase = "REJECTED"
	PhaseTerminated           Phase = "TERMINATED"
)

var ErrEmptyConversation = errors.New("conversation has no turns")

// Validate checks roles and that the log ends with a user turn.
func Validate(turns []Turn) error {
	if len(turns) == 0 {
		return ErrEmptyConversation
	}
	for i, t := range turns {
		switch t.Role {
		case RoleSystem, RoleUser, RoleAssistant:
		default:
			return fmt.Errorf("turn %d: unknown role %q", i, t.Role)
		}
	}
	if last := turns[len(turns)-1]; last.Role != RoleUser {
		return fmt.Errorf("last turn must be from the user, got %q", last.Role)
	}
	return nil
}

// PhaseOf derives the phase from the log. Only the last assistant turn and
// the first user turn after it matter:
//
//	no summary pending              -> COLLECTING
//	summary, no answer yet          -> AWAITING_CONFIRMATION
//	summary, answered "sim"         -> CONFIRMED
//	summary, answered "não"         -> REJECTED
//	summary, unclear answer         -> AWAITING_CONFIRMATION
//
// A rejection keeps the whole log; the next assistant turn resumes
// collection inside it.
func PhaseOf(turns []Turn) Phase {
	last := -1
	for i := len(turns) - 1; i >= 0; i-- {
		if turns[i].Role == RoleAssistant {
			last = i
			break
		}
	}
	if last < 0 {
		return PhaseCollecting
	}

	if extractor.Classify(turns[last].Content).Kind != extractor.KindSummary {
		return PhaseCollecting
	}

	for _, t := range turns[last+1:] {
		if t.Role != RoleUser {
			continue
		}
		switch extractor.ParseVerdict(t.Content) {
		case extractor.VerdictConfirmed:
			return PhaseConfirmed
		case extractor.VerdictRejected:
			return PhaseRejected
		}
		break
	}
	return PhaseAwaitingConfirmation
}

// PhaseAfter returns the phase implied by a freshly classified assistant
// turn. A terminal payload maps to CONFIRMED; the caller moves it to
// TERMINATED once the report is accepted.
func PhaseAfter(kind extractor.Kind) Phase {
	switch kind {
	case extractor.KindSummary:
		return PhaseAwaitingConfirmation
	case extractor.KindTerminal:
		return PhaseConfirmed
	default:
		return PhaseCollecting
	}
}
