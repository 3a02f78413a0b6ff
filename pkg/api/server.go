// Package api serves the analytics report and the entry log over HTTP.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/storyeval/storyeval/pkg/cost"
	"github.com/storyeval/storyeval/pkg/entry"
	"github.com/storyeval/storyeval/pkg/logstore"
	"github.com/storyeval/storyeval/pkg/models"
)

const maxBodyBytes = 1 << 20

// Backend is what the HTTP layer needs from the logbook.
type Backend interface {
	LogEntry(ctx context.Context, in entry.Input) (string, error)
	Stats(ctx context.Context, filter string) (models.StatsReport, error)
	Entries(ctx context.Context) ([]models.LogEntry, error)
	Models(ctx context.Context) ([]string, error)
	Pricing() []models.ModelPricing
	Currency() string
}

// Server is the storyeval HTTP API.
type Server struct {
	listen  string
	backend Backend
	logger  *slog.Logger
	router  chi.Router
}

// New creates a Server. When gatherer is non-nil its metrics are exposed on /metrics.
func New(listen string, b Backend, gatherer prometheus.Gatherer, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	s := &Server{
		listen:  listen,
		backend: b,
		logger:  logger,
		router:  chi.NewRouter(),
	}

	s.router.Use(chimw.RequestID)
	s.router.Use(chimw.Recoverer)
	s.router.Use(s.requestLogger)

	s.router.Get("/healthz", s.handleHealth)
	if gatherer != nil {
		s.router.Handle("/metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))
	}
	s.router.Route("/api", func(r chi.Router) {
		r.Get("/evaluation-stats", s.handleStats)
		r.Get("/models", s.handleModels)
		r.Get("/logs", s.handleListLogs)
		r.Post("/logs", s.handleCreateLog)
		r.Get("/pricing", s.handlePricing)
	})
	return s
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

// ListenAndServe starts the server with graceful shutdown support.
func (s *Server) ListenAndServe(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.listen,
		Handler:           s,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("storyeval api listening", "addr", s.listen)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		shutCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutCtx)
	case err := <-errCh:
		return err
	}
}

func (s *Server) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := chimw.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)
		s.logger.Info("http request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", ww.Status(),
			"duration_ms", time.Since(start).Milliseconds(),
			"request_id", chimw.GetReqID(r.Context()),
		)
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	report, err := s.backend.Stats(r.Context(), r.URL.Query().Get("model"))
	if err != nil {
		s.writeStoreError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, report)
}

type modelsResponse struct {
	Models []string `json:"models"`
}

func (s *Server) handleModels(w http.ResponseWriter, r *http.Request) {
	ids, err := s.backend.Models(r.Context())
	if err != nil {
		s.writeStoreError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, modelsResponse{Models: ids})
}

func (s *Server) handleListLogs(w http.ResponseWriter, r *http.Request) {
	entries, err := s.backend.Entries(r.Context())
	if err != nil {
		s.writeStoreError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, displayEntries(entries))
}

// displayEntries rounds entry costs for presentation. Stored values stay raw.
func displayEntries(entries []models.LogEntry) []models.LogEntry {
	out := make([]models.LogEntry, len(entries))
	for i, e := range entries {
		if e.Costs != nil {
			c := *e.Costs
			c.Story = cost.Display(c.Story)
			c.Evaluation = cost.Display(c.Evaluation)
			c.Total = cost.Display(c.Total)
			e.Costs = &c
		}
		out[i] = e
	}
	return out
}

type createLogResponse struct {
	ID string `json:"id"`
}

func (s *Server) handleCreateLog(w http.ResponseWriter, r *http.Request) {
	var in entry.Input
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeError(w, http.StatusRequestEntityTooLarge, "request body too large")
			return
		}
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	id, err := s.backend.LogEntry(r.Context(), in)
	if err != nil {
		s.writeStoreError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, createLogResponse{ID: id})
}

type pricingResponse struct {
	Currency string                `json:"currency"`
	Models   []models.ModelPricing `json:"models"`
}

func (s *Server) handlePricing(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, pricingResponse{
		Currency: s.backend.Currency(),
		Models:   s.backend.Pricing(),
	})
}

type errorResponse struct {
	Error string `json:"error"`
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		slog.Error("failed to write JSON response", "error", err)
	}
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, errorResponse{Error: message})
}

func (s *Server) writeStoreError(w http.ResponseWriter, err error) {
	s.logger.Error("request failed", "error", err)
	if errors.Is(err, logstore.ErrStorage) {
		writeError(w, http.StatusInternalServerError, "log store unavailable")
		return
	}
	writeError(w, http.StatusInternalServerError, "internal server error")
}
