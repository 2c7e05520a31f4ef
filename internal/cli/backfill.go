package cli

import (
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/AloysioLvy/radar-intake/internal/backfill"
	"github.com/AloysioLvy/radar-intake/internal/ingest"
	"github.com/AloysioLvy/radar-intake/internal/severity"
	"github.com/AloysioLvy/radar-intake/internal/store"
)

var (
	backfillFile  string
	backfillState string
	backfillDelay time.Duration
	backfillLimit int
	backfillDry   bool
)

func init() {
	cmd := &cobra.Command{
		Use:   "backfill",
		Short: "Bulk-submit occurrence records to the ingestion backend",
		Long: "Reads a JSON array of occurrence records (crime_name, report_date, latitude, longitude, name), " +
			"recomputes each crime_weight and posts it to BACKEND_REPORT_URL. Progress is saved after every " +
			"record, so an interrupted run resumes where it stopped.",
		RunE: runBackfill,
	}
	cmd.Flags().StringVar(&backfillFile, "file", "", "Consolidated crimes JSON file (required)")
	cmd.Flags().StringVar(&backfillState, "state", backfill.DefaultStatePath, "Resumable state file")
	cmd.Flags().DurationVar(&backfillDelay, "delay", time.Millisecond, "Pause between submissions")
	cmd.Flags().IntVar(&backfillLimit, "limit", 0, "Submit at most N records (0 = all)")
	cmd.Flags().BoolVar(&backfillDry, "dry-run", false, "Compute weights without submitting")
	_ = cmd.MarkFlagRequired("file")

	RootCmd.AddCommand(cmd)
}

func runBackfill(cmd *cobra.Command, args []string) error {
	cfg := loadConfig()
	logger := slog.Default()

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	client := ingest.NewClient(cfg.BackendReportURL, cfg.BackendTimeout, logger)
	if !client.Configured() && !backfillDry {
		return ingest.ErrMissingEndpoint
	}

	var ledger backfill.Ledger
	if cfg.DatabaseURL != "" && !backfillDry {
		db, err := store.New(ctx, cfg.DatabaseURL)
		if err != nil {
			slog.Warn("database unavailable, backfill will not be recorded", "error", err)
		} else {
			defer db.Close()
			if err := migrateUp(cfg.DatabaseURL); err != nil {
				slog.Warn("ledger migrations failed", "error", err)
			}
			ledger = db
		}
	}

	runner := backfill.NewRunner(backfill.Config{
		File:      backfillFile,
		StatePath: backfillState,
		Delay:     backfillDelay,
		Limit:     backfillLimit,
		DryRun:    backfillDry,
	}, client, severity.Default(), ledger, os.Stdout, logger)

	_, err := runner.Run(ctx)
	return err
}
