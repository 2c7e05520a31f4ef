package extractor

import (
	"strings"

	"github.com/AloysioLvy/radar-intake/internal/textutil"
)

// Verdict is the user's answer to a summary.
type Verdict string

const (
	VerdictConfirmed Verdict = "confirmed"
	VerdictRejected  Verdict = "rejected"
	VerdictUnknown   Verdict = "unknown"
)

var (
	affirmatives = map[string]bool{
		"sim": true, "s": true, "yes": true, "y": true, "correto": true, "certo": true,
		"isso": true, "confirmo": true, "confirmado": true, "confirmar": true, "ok": true, "exato": true,
	}
	negatives = map[string]bool{
		"nao": true, "n": true, "no": true, "errado": true, "incorreto": true, "negativo": true,
	}
)

// ParseVerdict maps a user turn that answers a summary to a verdict,
// looking at its first word only ("sim, está correto" confirms, "não, o
// local é outro" rejects).
func ParseVerdict(text string) Verdict {
	words := strings.Fields(textutil.Fold(text))
	if len(words) == 0 {
		return VerdictUnknown
	}
	first := strings.Trim(words[0], ".,!?;:")
	switch {
	case negatives[first]:
		return VerdictRejected
	case affirmatives[first]:
		return VerdictConfirmed
	default:
		return VerdictUnknown
	}
}
