package events

import (
	"encoding/json"
	"time"
)

// ReportEvent is emitted after every terminal submission attempt.
type ReportEvent struct {
	SubmissionID  string          `json:"submission_id,omitempty"`
	RequestID     string          `json:"request_id,omitempty"`
	CrimeName     string          `json:"crime_name"`
	CrimeWeight   int             `json:"crime_weight"`
	ReportDate    string          `json:"report_date"`
	Area          *string         `json:"area"`
	Geocoded      bool            `json:"geocoded"`
	Submitted     bool            `json:"submitted"`
	BackendStatus int             `json:"backend_status,omitempty"`
	Error         string          `json:"error,omitempty"`
	Payload       json.RawMessage `json:"payload"`
	OccurredAt    time.Time       `json:"occurred_at"`
}

func (e ReportEvent) Subject() string {
	if e.Submitted {
		return SubjectReportSubmitted
	}
	return SubjectReportFailed
}
