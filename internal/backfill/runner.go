package backfill

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"path/filepath"
	"time"

	"github.com/google/uuid"

	"github.com/AloysioLvy/radar-intake/internal/ingest"
	"github.com/AloysioLvy/radar-intake/internal/severity"
	"github.com/AloysioLvy/radar-intake/internal/store"
)

// Config holds the backfill command configuration.
type Config struct {
	File      string
	StatePath string
	Delay     time.Duration
	Limit     int // 0 means all records
	DryRun    bool
}

type Submitter interface {
	Submit(ctx context.Context, report ingest.EnrichedReport) (*ingest.Result, error)
}

type Classifier interface {
	Weight(crimeType string) int
}

type Ledger interface {
	RecordSubmission(ctx context.Context, sub store.Submission) (uuid.UUID, error)
}

// Runner orchestrates the backfill process.
type Runner struct {
	cfg        Config
	submitter  Submitter
	classifier Classifier
	ledger     Ledger
	logger     *slog.Logger
	out        io.Writer
}

// NewRunner creates a backfill runner. ledger may be nil.
func NewRunner(cfg Config, sub Submitter, cls Classifier, ledger Ledger, out io.Writer, logger *slog.Logger) *Runner {
	return &Runner{
		cfg:        cfg,
		submitter:  sub,
		classifier: cls,
		ledger:     ledger,
		logger:     logger,
		out:        out,
	}
}

// Run submits every unprocessed record once, saving state after each one.
func (r *Runner) Run(ctx context.Context) (*BackfillState, error) {
	state, err := LoadState(r.cfg.StatePath)
	if err != nil {
		return nil, fmt.Errorf("load state: %w", err)
	}

	records, err := LoadRecords(r.cfg.File)
	if err != nil {
		return nil, err
	}

	source := filepath.Base(r.cfg.File)
	state.Source = source
	pending := 0
	for i := range records {
		if !state.IsProcessed(recordKey(source, i)) {
			pending++
		}
	}
	state.RecordsRemaining = pending

	r.logger.Info("records loaded",
		"file", r.cfg.File,
		"total", len(records),
		"pending", pending,
		"dry_run", r.cfg.DryRun,
	)

	attempted := 0
	for i, rec := range records {
		key := recordKey(source, i)
		if state.IsProcessed(key) {
			continue
		}
		if r.cfg.Limit > 0 && attempted >= r.cfg.Limit {
			break
		}

		select {
		case <-ctx.Done():
			r.logger.Info("backfill interrupted, saving state")
			_ = state.Save()
			return state, ctx.Err()
		default:
		}

		if attempted > 0 && r.cfg.Delay > 0 {
			select {
			case <-ctx.Done():
				_ = state.Save()
				return state, ctx.Err()
			case <-time.After(r.cfg.Delay):
			}
		}
		attempted++

		weight := r.weight(i, rec)
		report := rec.Report(weight)

		if r.cfg.DryRun {
			r.logger.Info("dry run", "index", i, "crime_name", report.CrimeName, "crime_weight", weight)
			continue
		}

		res, err := r.submitter.Submit(ctx, report)
		r.record(ctx, key, report, res, err)
		if err != nil {
			r.logger.Error("submission failed", "index", i, "crime_name", report.CrimeName, "error", err)
			state.AddError(fmt.Sprintf("%s: %v", key, err))
			state.Failed++
			_ = state.Save()
			continue
		}

		state.Submitted++
		if weight == severity.WeightHeinous {
			state.Heinous++
		}
		state.MarkProcessed(key)
		state.RecordsRemaining--
		_ = state.Save()
	}

	if err := state.Save(); err != nil {
		return state, fmt.Errorf("save state: %w", err)
	}

	r.logger.Info("backfill complete",
		"submitted", state.Submitted,
		"failed", state.Failed,
		"remaining", state.RecordsRemaining,
	)

	fmt.Fprintf(r.out, "\n=== Backfill Summary ===\n")
	fmt.Fprintf(r.out, "Records in file: %d\n", len(records))
	fmt.Fprintf(r.out, "Submitted: %d\n", state.Submitted)
	fmt.Fprintf(r.out, "Heinous (weight 9): %d\n", state.Heinous)
	fmt.Fprintf(r.out, "Failed: %d\n", state.Failed)
	fmt.Fprintf(r.out, "Remaining: %d\n", state.RecordsRemaining)
	if r.cfg.DryRun {
		fmt.Fprintf(r.out, "Mode: DRY RUN (nothing submitted)\n")
	}
	fmt.Fprintf(r.out, "State file: %s\n", state.Path())

	return state, nil
}

func (r *Runner) record(ctx context.Context, key string, report ingest.EnrichedReport, res *ingest.Result, err error) {
	if r.ledger == nil {
		return
	}
	sub := store.Submission{RequestID: "backfill:" + key, Report: report, Status: store.StatusSubmitted}
	if err != nil {
		sub.Status = store.StatusFailed
		sub.Error = err.Error()
		var se *ingest.SubmissionError
		if errors.As(err, &se) {
			sub.BackendStatus = se.Status
			sub.Payload = se.Payload
		}
	} else {
		sub.BackendStatus = res.Status
		sub.Payload = res.Sent
	}
	if _, lerr := r.ledger.RecordSubmission(ctx, sub); lerr != nil {
		r.logger.Warn("failed to record submission", "key", key, "error", lerr)
	}
}

// weight keeps a valid file weight and falls back to the classifier.
// Disagreements are logged so reweighting stays visible.
func (r *Runner) weight(idx int, rec Record) int {
	computed := r.classifier.Weight(rec.CrimeName)
	fileWeight, ok := rec.FileWeight()
	if !ok {
		if rec.Weight != "" {
			r.logger.Warn("invalid crime_weight in file, recomputing",
				"index", idx, "crime_name", rec.CrimeName, "file_weight", rec.Weight.String(), "crime_weight", computed)
		}
		return computed
	}
	if fileWeight != computed {
		r.logger.Info("file crime_weight differs from classifier, keeping file value",
			"index", idx, "crime_name", rec.CrimeName, "file_weight", fileWeight, "classifier_weight", computed)
	}
	return fileWeight
}

func recordKey(source string, idx int) string {
	return fmt.Sprintf("%s#%d", source, idx)
}
