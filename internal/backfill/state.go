package backfill

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"
)

const DefaultStatePath = "~/.radar/backfill-state.json"

// BackfillState tracks progress for resumable backfill runs. Records are
// keyed by source file and position.
type BackfillState struct {
	StartedAt        time.Time `json:"started_at"`
	LastProcessedAt  time.Time `json:"last_processed_at"`
	Source           string    `json:"source"`
	RecordsProcessed []string  `json:"records_processed"`
	RecordsRemaining int       `json:"records_remaining"`
	Submitted        int       `json:"submitted"`
	Failed           int       `json:"failed"`
	Heinous          int       `json:"heinous"`
	Errors           []string  `json:"errors"`

	path string // not serialized
	seen map[string]struct{}
}

// LoadState loads the backfill state from path, or creates a new one.
func LoadState(path string) (*BackfillState, error) {
	if path == "" {
		path = DefaultStatePath
	}
	p := expandHome(path)

	data, err := os.ReadFile(p)
	if err != nil {
		if os.IsNotExist(err) {
			return &BackfillState{
				StartedAt: time.Now().UTC(),
				path:      p,
			}, nil
		}
		return nil, fmt.Errorf("read state: %w", err)
	}

	var s BackfillState
	if err := json.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("parse state: %w", err)
	}
	s.path = p
	return &s, nil
}

func (s *BackfillState) Path() string { return s.path }

// Save persists the state to disk.
func (s *BackfillState) Save() error {
	s.LastProcessedAt = time.Now().UTC()

	if err := os.MkdirAll(filepath.Dir(s.path), 0o755); err != nil {
		return fmt.Errorf("mkdir: %w", err)
	}

	data, err := json.MarshalIndent(s, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal state: %w", err)
	}

	return os.WriteFile(s.path, data, 0o644)
}

// IsProcessed returns true if the given record has already been submitted.
func (s *BackfillState) IsProcessed(key string) bool {
	if s.seen == nil {
		s.seen = make(map[string]struct{}, len(s.RecordsProcessed))
		for _, k := range s.RecordsProcessed {
			s.seen[k] = struct{}{}
		}
	}
	_, ok := s.seen[key]
	return ok
}

// MarkProcessed records a record as submitted.
func (s *BackfillState) MarkProcessed(key string) {
	if s.IsProcessed(key) {
		return
	}
	s.RecordsProcessed = append(s.RecordsProcessed, key)
	s.seen[key] = struct{}{}
}

// AddError records a processing error.
func (s *BackfillState) AddError(msg string) {
	s.Errors = append(s.Errors, msg)
}

func expandHome(path string) string {
	if len(path) > 1 && path[0] == '~' && path[1] == '/' {
		home, err := os.UserHomeDir()
		if err != nil {
			return path
		}
		return filepath.Join(home, path[2:])
	}
	return path
}
