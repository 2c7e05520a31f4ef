package extractor

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/AloysioLvy/radar-intake/internal/textutil"
)

// Classify decides whether an assistant turn is ordinary conversation, a
// summary awaiting confirmation, or the terminal JSON payload. It never
// fails: text that does not parse as a JSON object is conversation.
func Classify(text string) Classification {
	if report, ok := parseTerminal(text); ok {
		return Classification{Kind: KindTerminal, Text: text, Report: report}
	}
	if IsSummary(text) {
		return Classification{Kind: KindSummary, Text: text}
	}
	return Classification{Kind: KindOrdinary, Text: text}
}

// IsSummary reports whether text carries one of the pre-confirmation
// summary markers.
func IsSummary(text string) bool {
	folded := textutil.Fold(text)
	for _, m := range summaryMarkers {
		if strings.Contains(folded, m) {
			return true
		}
	}
	return false
}

// looksLikeObject is the cheap syntactic gate run before json.Unmarshal.
func looksLikeObject(s string) bool {
	return len(s) >= 2 && s[0] == '{' && s[len(s)-1] == '}'
}

func parseTerminal(text string) (*ExtractedReport, bool) {
	candidate := stripCodeFences(strings.TrimSpace(text))
	if !looksLikeObject(candidate) {
		return nil, false
	}

	var fields map[string]any
	if err := json.Unmarshal([]byte(candidate), &fields); err != nil {
		return nil, false
	}

	report := &ExtractedReport{
		CrimeType:    strings.TrimSpace(lookup(fields, crimeTypeKeys)),
		IncidentDate: NormalizeDate(lookup(fields, dateKeys)),
		LocationText: strings.TrimSpace(lookup(fields, locationKeys)),
	}
	if report.LocationText == "" {
		return nil, false
	}
	return report, true
}

func lookup(fields map[string]any, keys []string) string {
	for _, k := range keys {
		v, ok := fields[k]
		if !ok || v == nil {
			continue
		}
		switch val := v.(type) {
		case string:
			if strings.TrimSpace(val) != "" {
				return val
			}
		case float64, bool:
			return fmt.Sprint(val)
		}
	}
	return ""
}

// stripCodeFences removes a surrounding ``` or ```json fence.
func stripCodeFences(s string) string {
	if !strings.HasPrefix(s, "```") || !strings.HasSuffix(s, "```") || len(s) < 6 {
		return s
	}
	inner := strings.TrimSuffix(strings.TrimPrefix(s, "```"), "```")
	if nl := strings.IndexByte(inner, '\n'); nl >= 0 && !strings.Contains(inner[:nl], "{") {
		inner = inner[nl+1:]
	}
	return strings.TrimSpace(inner)
}

var dateLayouts = []string{
	"02/01/2006",
	"2/1/2006",
	"2006-01-02",
	"02-01-2006",
	"02.01.2006",
	"02/01/06",
	time.RFC3339,
}

// NormalizeDate rewrites a recognised date to DD/MM/YYYY. Anything else
// ("ontem à noite", "semana passada") is returned trimmed but unchanged.
func NormalizeDate(raw string) string {
	s := strings.TrimSpace(raw)
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.Format("02/01/2006")
		}
	}
	return s
}
