// Package ingest forwards enriched reports to the ingestion backend.
package ingest

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"
)

// ErrMissingEndpoint is returned when no backend URL is configured.
var ErrMissingEndpoint = errors.New("backend report endpoint not configured")

// SubmissionError is a failed submission. Payload holds the exact bytes
// that were (or would have been) posted so the caller can resubmit.
type SubmissionError struct {
	Status  int
	Reason  string
	Payload json.RawMessage
	Err     error
}

func (e *SubmissionError) Error() string {
	if e.Status > 0 {
		return fmt.Sprintf("backend submission failed (status %d): %s", e.Status, e.Reason)
	}
	return "backend submission failed: " + e.Reason
}

func (e *SubmissionError) Unwrap() error { return e.Err }

// Result is a successful submission.
type Result struct {
	Sent     json.RawMessage
	Response json.RawMessage
	Status   int
}

type Client struct {
	endpoint string
	client   *http.Client
	logger   *slog.Logger
}

func NewClient(endpoint string, timeout time.Duration, logger *slog.Logger) *Client {
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	endpoint = strings.TrimSpace(endpoint)
	if endpoint == "" {
		logger.Warn("BACKEND_REPORT_URL not set, report submissions will fail")
	}
	return &Client{
		endpoint: endpoint,
		client:   &http.Client{Timeout: timeout},
		logger:   logger,
	}
}

// Configured reports whether a backend endpoint is set.
func (c *Client) Configured() bool { return c.endpoint != "" }

// Submit posts report once. It does not retry.
func (c *Client) Submit(ctx context.Context, report EnrichedReport) (*Result, error) {
	body, err := json.Marshal(report)
	if err != nil {
		return nil, fmt.Errorf("marshal report: %w", err)
	}
	return c.SubmitRaw(ctx, body)
}

// SubmitRaw posts an already-encoded report body.
func (c *Client) SubmitRaw(ctx context.Context, body []byte) (*Result, error) {
	if c.endpoint == "" {
		c.logger.Error("cannot submit report", "error", ErrMissingEndpoint)
		return nil, &SubmissionError{Reason: ErrMissingEndpoint.Error(), Payload: body, Err: ErrMissingEndpoint}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, &SubmissionError{Reason: err.Error(), Payload: body, Err: err}
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		c.logger.Error("backend submission failed", "error", err)
		return nil, &SubmissionError{Reason: err.Error(), Payload: body, Err: err}
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &SubmissionError{Status: resp.StatusCode, Reason: "read response: " + err.Error(), Payload: body, Err: err}
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		reason := strings.TrimSpace(string(respBody))
		if reason == "" {
			reason = http.StatusText(resp.StatusCode)
		}
		c.logger.Error("backend rejected report", "status", resp.StatusCode, "reason", reason)
		return nil, &SubmissionError{Status: resp.StatusCode, Reason: reason, Payload: body}
	}

	c.logger.Info("report submitted", "status", resp.StatusCode)
	return &Result{Sent: body, Response: asJSON(respBody), Status: resp.StatusCode}, nil
}

// asJSON returns b unchanged when it is valid JSON, otherwise b encoded as
// a JSON string. An empty body becomes null.
func asJSON(b []byte) json.RawMessage {
	trimmed := bytes.TrimSpace(b)
	if len(trimmed) == 0 {
		return json.RawMessage("null")
	}
	if json.Valid(trimmed) {
		return json.RawMessage(trimmed)
	}
	quoted, _ := json.Marshal(string(trimmed))
	return quoted
}
