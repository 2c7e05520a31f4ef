package cli

import (
	"context"
	"log/slog"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"

	"github.com/AloysioLvy/radar-intake/internal/api"
	"github.com/AloysioLvy/radar-intake/internal/conversation"
	"github.com/AloysioLvy/radar-intake/internal/dialogue"
	"github.com/AloysioLvy/radar-intake/internal/events"
	"github.com/AloysioLvy/radar-intake/internal/geocode"
	"github.com/AloysioLvy/radar-intake/internal/ingest"
	"github.com/AloysioLvy/radar-intake/internal/metrics"
	"github.com/AloysioLvy/radar-intake/internal/openai"
	"github.com/AloysioLvy/radar-intake/internal/processor"
	"github.com/AloysioLvy/radar-intake/internal/severity"
	"github.com/AloysioLvy/radar-intake/internal/store"
)

func init() {
	RootCmd.AddCommand(&cobra.Command{
		Use:   "serve",
		Short: "Run the chat intake HTTP server",
		RunE:  runServe,
	})
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg := loadConfig()
	logger := slog.Default()

	slog.Info("radar starting", "port", cfg.Port)

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// LLM client. A missing key is reported per request, not at startup.
	if cfg.OpenAIAPIKey == "" {
		slog.Warn("OPENAI_API_KEY not set, chat turns will fail")
	}
	llm := openai.NewClient(openai.Options{
		APIKey:      cfg.OpenAIAPIKey,
		Model:       cfg.OpenAIModel,
		BaseURL:     cfg.OpenAIBaseURL,
		Temperature: cfg.OpenAITemperature,
		Timeout:     cfg.LLMTimeout,
	})
	slog.Info("llm client ready", "model", llm.Model())

	classifier := severity.Default()
	geocoder := geocode.NewClient(cfg.GeocoderURL, cfg.GeocoderUserAgent, cfg.GeocoderTimeout)
	backend := ingest.NewClient(cfg.BackendReportURL, cfg.BackendTimeout, logger)

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	deps := processor.Deps{
		Executor:   dialogue.New(llm, logger),
		Classifier: classifier,
		Enricher:   geocode.NewEnricher(geocoder, cfg.GeocoderAreaIndex, logger),
		Submitter:  backend,
		Metrics:    metrics.NewPipelineMetrics(reg),
	}
	status := api.Status{
		Model:          llm.Model(),
		HeinousCrimes:  classifier.Size(),
		BackendEnabled: backend.Configured(),
	}

	// Session store (optional).
	if cfg.RedisAddr != "" {
		rdb := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr, Password: cfg.RedisPassword})
		defer rdb.Close()
		if err := rdb.Ping(ctx).Err(); err != nil {
			slog.Warn("redis unavailable, running without session store", "error", err)
		} else {
			deps.Sessions = conversation.NewStore(rdb, cfg.SessionTTL)
			status.SessionsEnabled = true
			slog.Info("session store ready", "addr", cfg.RedisAddr)
		}
	}

	// Submission ledger (optional).
	if cfg.DatabaseURL != "" {
		db, err := store.New(ctx, cfg.DatabaseURL)
		if err != nil {
			slog.Warn("database unavailable, running without submission ledger", "error", err)
		} else {
			defer db.Close()
			if err := migrateUp(cfg.DatabaseURL); err != nil {
				slog.Warn("ledger migrations failed", "error", err)
			}
			deps.Ledger = db
			status.LedgerEnabled = true
			slog.Info("database connected")
		}
	}

	// Report events (optional).
	if cfg.NatsURL != "" {
		nc, err := events.NewClient(ctx, cfg.NatsURL, cfg.NatsToken, logger)
		if err != nil {
			slog.Warn("nats unavailable, running without report events", "error", err)
		} else {
			defer nc.Close()
			deps.Publisher = nc
			status.EventsEnabled = true
			slog.Info("NATS connected", "url", cfg.NatsURL)
		}
	}

	proc := processor.New(deps, logger)
	srv := api.NewServer(cfg.Port, proc, status, reg, logger)

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Start()
	}()

	slog.Info("radar ready", "port", cfg.Port)

	select {
	case err := <-errCh:
		if err != nil {
			slog.Error("HTTP server error", "error", err)
			return err
		}
	case <-ctx.Done():
	}

	slog.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("shutdown failed", "error", err)
	}
	slog.Info("radar stopped")
	return nil
}
