package api

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/AloysioLvy/radar-intake/internal/processor"
)

// Handler runs one dialogue turn.
type Handler interface {
	Handle(ctx context.Context, req processor.Request) (*processor.Outcome, error)
}

// Status describes which optional integrations are wired, for
// GET /api/v1/radar/status.
type Status struct {
	Model           string `json:"model"`
	HeinousCrimes   int    `json:"heinous_crimes"`
	BackendEnabled  bool   `json:"backend"`
	SessionsEnabled bool   `json:"sessions"`
	LedgerEnabled   bool   `json:"ledger"`
	EventsEnabled   bool   `json:"events"`
}

type Server struct {
	router  *chi.Mux
	handler Handler
	status  Status
	logger  *slog.Logger
	http    *http.Server
}

// NewServer builds the router. gatherer may be nil, in which case
// /metrics serves the default registry.
func NewServer(port int, h Handler, status Status, gatherer prometheus.Gatherer, logger *slog.Logger) *Server {
	router := chi.NewRouter()
	router.Use(middleware.RequestID)
	router.Use(middleware.RealIP)
	router.Use(middleware.Logger)
	router.Use(middleware.Recoverer)

	s := &Server{
		router:  router,
		handler: h,
		status:  status,
		logger:  logger,
		http: &http.Server{
			Addr:              fmt.Sprintf(":%d", port),
			Handler:           router,
			ReadHeaderTimeout: 10 * time.Second,
		},
	}

	metricsHandler := promhttp.Handler()
	if gatherer != nil {
		metricsHandler = promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
	}

	router.Get("/health", s.health)
	router.Get("/api/v1/radar/status", s.statusHandler)
	router.Method(http.MethodGet, "/metrics", metricsHandler)
	router.Post("/api", s.chat)

	return s
}

// Start blocks serving HTTP until Shutdown is called.
func (s *Server) Start() error {
	s.logger.Info("API server starting", "addr", s.http.Addr)
	if err := s.http.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.http.Shutdown(ctx)
}

func (s *Server) health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) statusHandler(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"agent":  "radar-intake",
		"status": "ok",
		"config": s.status,
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(false)
	_ = enc.Encode(v)
}
