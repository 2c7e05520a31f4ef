package store

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"

	"github.com/AloysioLvy/radar-intake/internal/ingest"
)

const (
	StatusSubmitted = "submitted"
	StatusFailed    = "failed"
)

// Submission is one attempt to hand a report to the ingestion backend.
type Submission struct {
	ID            uuid.UUID
	RequestID     string
	Report        ingest.EnrichedReport
	Status        string
	BackendStatus int
	Error         string
	Payload       json.RawMessage
}

// RecordSubmission writes one attempt to report_submissions.
func (s *Store) RecordSubmission(ctx context.Context, sub Submission) (uuid.UUID, error) {
	if sub.ID == uuid.Nil {
		sub.ID = uuid.New()
	}
	payload := sub.Payload
	if len(payload) == 0 {
		b, err := json.Marshal(sub.Report)
		if err != nil {
			return uuid.Nil, fmt.Errorf("marshal payload: %w", err)
		}
		payload = b
	}

	_, err := s.pool.Exec(ctx, `
		INSERT INTO report_submissions
			(id, request_id, crime_name, crime_weight, report_date, location_text,
			 latitude, longitude, area, status, backend_status, error, payload, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, now())`,
		sub.ID, sub.RequestID, sub.Report.CrimeName, sub.Report.CrimeWeight, sub.Report.ReportDate,
		sub.Report.LocationText, sub.Report.Latitude, sub.Report.Longitude, sub.Report.Name,
		sub.Status, sub.BackendStatus, sub.Error, []byte(payload),
	)
	if err != nil {
		return uuid.Nil, fmt.Errorf("insert submission: %w", err)
	}
	return sub.ID, nil
}
