package backfill

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/AloysioLvy/radar-intake/internal/extractor"
	"github.com/AloysioLvy/radar-intake/internal/ingest"
	"github.com/AloysioLvy/radar-intake/internal/severity"
)

// Record is one pre-built occurrence from a consolidated crimes file.
// A crime_weight of 3 or 9 in the file is kept; anything else is
// recomputed on submit.
type Record struct {
	Name       string      `json:"name"`
	Latitude   coordinate  `json:"latitude"`
	Longitude  coordinate  `json:"longitude"`
	CrimeName  string      `json:"crime_name"`
	ReportDate string      `json:"report_date"`
	Weight     json.Number `json:"crime_weight,omitempty"`
}

// coordinate accepts both "-22.9" and -22.9.
type coordinate string

func (c *coordinate) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if bytes.Equal(b, []byte("null")) {
		*c = ""
		return nil
	}
	if len(b) > 0 && b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		*c = coordinate(strings.TrimSpace(s))
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(b, &n); err != nil {
		return fmt.Errorf("coordinate: %w", err)
	}
	*c = coordinate(n.String())
	return nil
}

func optional(s string) *string {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	return &s
}

// FileWeight returns the weight carried by the file, if it is 3 or 9.
func (r Record) FileWeight() (int, bool) {
	n, err := r.Weight.Int64()
	if err != nil {
		return 0, false
	}
	switch n {
	case severity.WeightBaseline, severity.WeightHeinous:
		return int(n), true
	}
	return 0, false
}

// Report converts the record to the backend body with the given weight.
// Name is an area label, not a free-text location, so location_text is
// left empty.
func (r Record) Report(weight int) ingest.EnrichedReport {
	return ingest.EnrichedReport{
		Name:         optional(r.Name),
		Latitude:     optional(string(r.Latitude)),
		Longitude:    optional(string(r.Longitude)),
		CrimeName:    strings.TrimSpace(r.CrimeName),
		ReportDate:   extractor.NormalizeDate(r.ReportDate),
		CrimeWeight:  weight,
	}
}

// LoadRecords reads a JSON array of records.
func LoadRecords(path string) ([]Record, error) {
	data, err := os.ReadFile(expandHome(path))
	if err != nil {
		return nil, fmt.Errorf("read records: %w", err)
	}
	var records []Record
	if err := json.Unmarshal(data, &records); err != nil {
		return nil, fmt.Errorf("parse records: %w", err)
	}
	return records, nil
}
