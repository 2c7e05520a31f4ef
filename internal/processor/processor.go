package processor

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/AloysioLvy/radar-intake/internal/conversation"
	"github.com/AloysioLvy/radar-intake/internal/events"
	"github.com/AloysioLvy/radar-intake/internal/extractor"
	"github.com/AloysioLvy/radar-intake/internal/geocode"
	"github.com/AloysioLvy/radar-intake/internal/ingest"
	"github.com/AloysioLvy/radar-intake/internal/metrics"
	"github.com/AloysioLvy/radar-intake/internal/store"
)

// ErrInvalidRequest wraps conversation validation failures.
var ErrInvalidRequest = errors.New("invalid conversation")

type Executor interface {
	Next(ctx context.Context, turns []conversation.Turn) (string, error)
}

type Classifier interface {
	Weight(crimeType string) int
}

type Enricher interface {
	Enrich(ctx context.Context, text string) geocode.Location
}

type Submitter interface {
	SubmitRaw(ctx context.Context, body []byte) (*ingest.Result, error)
}

type Ledger interface {
	RecordSubmission(ctx context.Context, sub store.Submission) (uuid.UUID, error)
}

type Publisher interface {
	PublishReport(ev events.ReportEvent) error
}

type Sessions interface {
	Load(ctx context.Context, sessionID string) ([]conversation.Turn, error)
	Save(ctx context.Context, sessionID string, turns []conversation.Turn) error
	Clear(ctx context.Context, sessionID string) error
}

// Deps are the collaborators of a Processor. Ledger, Publisher, Sessions
// and Metrics may be nil.
type Deps struct {
	Executor   Executor
	Classifier Classifier
	Enricher   Enricher
	Submitter  Submitter
	Ledger     Ledger
	Publisher  Publisher
	Sessions   Sessions
	Metrics    *metrics.PipelineMetrics
}

// Processor runs one dialogue turn end to end: model call, classification
// and, for a terminal payload, severity, enrichment and submission.
type Processor struct {
	deps   Deps
	tracer trace.Tracer
	logger *slog.Logger
}

func New(deps Deps, logger *slog.Logger) *Processor {
	return &Processor{
		deps:   deps,
		tracer: otel.Tracer("radar.internal.processor"),
		logger: logger,
	}
}

// Request is one POST /api call.
type Request struct {
	RequestID string
	SessionID string
	Turns     []conversation.Turn
}

// Outcome is the result of a turn. Sent and BackendResponse are set only
// once a report has been accepted.
type Outcome struct {
	Reply           string
	Kind            extractor.Kind
	Phase           conversation.Phase
	Report          *ingest.EnrichedReport
	SubmissionID    uuid.UUID
	Sent            json.RawMessage
	BackendResponse json.RawMessage
}

// Handle executes one turn. A failed submission returns *ingest.SubmissionError
// carrying the exact payload that was posted.
func (p *Processor) Handle(ctx context.Context, req Request) (*Outcome, error) {
	if err := conversation.Validate(req.Turns); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidRequest, err)
	}

	incoming := conversation.PhaseOf(req.Turns)
	log := p.logger.With("request_id", req.RequestID, "phase", incoming)
	if req.SessionID != "" {
		log = log.With("session_id", req.SessionID)
	}

	if err := p.saveSession(ctx, req.SessionID, req.Turns); err != nil {
		if errors.Is(err, conversation.ErrStaleSession) {
			stored, _ := p.deps.Sessions.Load(ctx, req.SessionID)
			log.Warn("conversation desync, request log is behind the stored session",
				"stored_turns", len(stored),
				"posted_turns", len(req.Turns),
			)
			p.deps.Metrics.ObserveTurn("stale")
			return nil, err
		}
		log.Warn("session save failed", "error", err)
	}

	start := time.Now()
	reply, err := p.deps.Executor.Next(ctx, req.Turns)
	p.deps.Metrics.ObserveUpstreamLatency("llm", time.Since(start).Seconds())
	if err != nil {
		log.Error("dialogue turn failed", "error", err)
		p.deps.Metrics.ObserveTurn("error")
		return nil, err
	}

	c := extractor.Classify(reply)
	p.deps.Metrics.ObserveTurn(string(c.Kind))

	if c.Kind != extractor.KindTerminal {
		phase := conversation.PhaseAfter(c.Kind)
		log.Info("turn completed", "kind", c.Kind, "next_phase", phase)

		next := append(append([]conversation.Turn(nil), req.Turns...), conversation.Turn{Role: conversation.RoleAssistant, Content: reply})
		if err := p.saveSession(ctx, req.SessionID, next); err != nil {
			log.Warn("session save failed after reply", "error", err)
		}
		return &Outcome{Reply: reply, Kind: c.Kind, Phase: phase}, nil
	}

	if incoming != conversation.PhaseConfirmed {
		log.Warn("terminal payload without prior confirmation, submitting anyway")
	}

	out, err := p.submit(ctx, req.RequestID, *c.Report, log)
	if out != nil {
		out.Reply = reply
		out.Kind = c.Kind
	}
	if err != nil {
		return nil, err
	}

	if req.SessionID != "" && p.deps.Sessions != nil {
		if err := p.deps.Sessions.Clear(ctx, req.SessionID); err != nil {
			log.Warn("session clear failed", "error", err)
		}
	}
	return out, nil
}

func (p *Processor) submit(ctx context.Context, requestID string, r extractor.ExtractedReport, log *slog.Logger) (*Outcome, error) {
	ctx, span := p.tracer.Start(ctx, "processor.submit")
	defer span.End()

	weight := p.deps.Classifier.Weight(r.CrimeType)
	p.deps.Metrics.ObserveSeverity(weight)

	start := time.Now()
	loc := p.deps.Enricher.Enrich(ctx, r.LocationText)
	p.deps.Metrics.ObserveUpstreamLatency("geocoder", time.Since(start).Seconds())
	p.deps.Metrics.ObserveGeocode(loc.Found())

	report := ingest.Build(r, weight, loc)
	span.SetAttributes(
		attribute.String("radar.crime_name", report.CrimeName),
		attribute.Int("radar.crime_weight", weight),
		attribute.Bool("radar.geocoded", loc.Found()),
	)

	body, err := json.Marshal(report)
	if err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("marshal report: %w", err)
	}

	start = time.Now()
	res, subErr := p.deps.Submitter.SubmitRaw(ctx, body)
	p.deps.Metrics.ObserveUpstreamLatency("backend", time.Since(start).Seconds())

	sub := store.Submission{
		ID:        uuid.New(),
		RequestID: requestID,
		Report:    report,
		Payload:   body,
	}
	if subErr != nil {
		span.RecordError(subErr)
		sub.Status = store.StatusFailed
		sub.Error = subErr.Error()
		var se *ingest.SubmissionError
		if errors.As(subErr, &se) {
			sub.BackendStatus = se.Status
		}
	} else {
		sub.Status = store.StatusSubmitted
		sub.BackendStatus = res.Status
	}
	p.deps.Metrics.ObserveSubmission(sub.Status)
	p.record(ctx, sub, loc.Found(), log)

	if subErr != nil {
		log.Error("report submission failed", "crime_name", report.CrimeName, "error", subErr)
		return nil, subErr
	}

	log.Info("report submitted",
		"submission_id", sub.ID,
		"crime_name", report.CrimeName,
		"crime_weight", weight,
		"geocoded", loc.Found(),
	)
	return &Outcome{
		Phase:           conversation.PhaseTerminated,
		Report:          &report,
		SubmissionID:    sub.ID,
		Sent:            res.Sent,
		BackendResponse: res.Response,
	}, nil
}

// record writes the ledger row and publishes the event. Neither may fail
// the request.
func (p *Processor) record(ctx context.Context, sub store.Submission, geocoded bool, log *slog.Logger) {
	if p.deps.Ledger != nil {
		if _, err := p.deps.Ledger.RecordSubmission(ctx, sub); err != nil {
			log.Warn("failed to record submission", "submission_id", sub.ID, "error", err)
		}
	}

	if p.deps.Publisher != nil {
		ev := events.ReportEvent{
			SubmissionID:  sub.ID.String(),
			RequestID:     sub.RequestID,
			CrimeName:     sub.Report.CrimeName,
			CrimeWeight:   sub.Report.CrimeWeight,
			ReportDate:    sub.Report.ReportDate,
			Area:          sub.Report.Name,
			Geocoded:      geocoded,
			Submitted:     sub.Status == store.StatusSubmitted,
			BackendStatus: sub.BackendStatus,
			Error:         sub.Error,
			Payload:       sub.Payload,
			OccurredAt:    time.Now().UTC(),
		}
		if err := p.deps.Publisher.PublishReport(ev); err != nil {
			log.Warn("failed to publish report event", "subject", ev.Subject(), "error", err)
		}
	}
}

func (p *Processor) saveSession(ctx context.Context, sessionID string, turns []conversation.Turn) error {
	if sessionID == "" || p.deps.Sessions == nil {
		return nil
	}
	return p.deps.Sessions.Save(ctx, sessionID, turns)
}
