// Package server exposes the refinement pipeline over HTTP.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/gorilla/mux"

	"github.com/danielpatrickdp/adaptive-state/quality-refiner/internal/durable"
	"github.com/danielpatrickdp/adaptive-state/quality-refiner/internal/ledger"
	"github.com/danielpatrickdp/adaptive-state/quality-refiner/internal/metrics"
	"github.com/danielpatrickdp/adaptive-state/quality-refiner/internal/pipeline"
	"github.com/danielpatrickdp/adaptive-state/quality-refiner/internal/ratelimit"
	"github.com/danielpatrickdp/adaptive-state/quality-refiner/internal/record"
)

// maxBody caps the size of an /optimize payload.
const maxBody = 10 << 20

// #region collaborators
// Processor runs one batch. *pipeline.Pipeline satisfies it.
type Processor interface {
	Process(ctx context.Context, items []record.Input) (pipeline.Summary, error)
}

// RunReader serves the last persisted batch. *ledger.Store satisfies it.
type RunReader interface {
	Latest(ctx context.Context) (ledger.Run, error)
}

// Container holds all dependencies for the router.
type Container struct {
	Pipeline Processor
	Runs     RunReader
	Auth     *Authenticator
	Limiter  ratelimit.Limiter
	Metrics  *metrics.Collector
	Logger   *slog.Logger
}
// #endregion collaborators

// Server holds the handlers' dependencies.
type Server struct {
	pipeline Processor
	runs     RunReader
	auth     *Authenticator
	limiter  ratelimit.Limiter
	metrics  *metrics.Collector
	logger   *slog.Logger
}

// #region router
// NewRouter creates the API router with all endpoints.
func NewRouter(c *Container) http.Handler {
	logger := c.Logger
	if logger == nil {
		logger = slog.Default()
	}
	auth := c.Auth
	if auth == nil {
		auth = NewAuthenticator("", "")
	}
	s := &Server{
		pipeline: c.Pipeline,
		runs:     c.Runs,
		auth:     auth,
		limiter:  c.Limiter,
		metrics:  c.Metrics,
		logger:   logger.With("component", "server"),
	}

	r := mux.NewRouter()
	r.Use(s.instrument)

	r.HandleFunc("/health", s.health).Methods("GET")
	r.Handle("/metrics", c.Metrics.Handler()).Methods("GET")
	r.HandleFunc("/optimize", s.optimize).Methods("POST")

	protected := r.NewRoute().Subrouter()
	protected.Use(s.requireAuth, s.rateLimit("retrieve"))
	protected.HandleFunc("/retrieve", s.retrieve).Methods("GET")

	return r
}
// #endregion router

// #region handlers
func (s *Server) health(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

type optimizeResponse struct {
	Status   string `json:"status"`
	Records  int    `json:"records"`
	RunID    string `json:"run_id"`
	Outcome  string `json:"outcome"`
	Degraded int    `json:"degraded"`
}

func (s *Server) optimize(w http.ResponseWriter, r *http.Request) {
	var items []record.Input
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBody))
	if err := dec.Decode(&items); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid JSON payload")
		return
	}

	sum, err := s.pipeline.Process(r.Context(), items)
	switch {
	case errors.Is(err, pipeline.ErrValidation):
		writeError(w, http.StatusBadRequest, err.Error())
		return
	case errors.Is(err, durable.ErrPersistence):
		s.logger.Error("optimize: persistence failed", "error", err)
		writeError(w, http.StatusInternalServerError, "Refined batch could not be persisted")
		return
	case err != nil:
		s.logger.Error("optimize failed", "error", err)
		writeError(w, http.StatusInternalServerError, "Internal error")
		return
	}

	writeJSON(w, http.StatusOK, optimizeResponse{
		Status:   "success",
		Records:  len(sum.Records),
		RunID:    sum.RunID,
		Outcome:  string(sum.Outcome.Kind),
		Degraded: sum.Degraded,
	})
}

func (s *Server) retrieve(w http.ResponseWriter, r *http.Request) {
	run, err := s.runs.Latest(r.Context())
	if errors.Is(err, ledger.ErrNotFound) {
		writeError(w, http.StatusNotFound, "Refined results not found")
		return
	}
	if err != nil {
		s.logger.Error("retrieve failed", "error", err)
		writeError(w, http.StatusInternalServerError, "Internal error")
		return
	}
	writeJSON(w, http.StatusOK, run.Records)
}
// #endregion handlers

// #region helpers
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, detail string) {
	writeJSON(w, status, map[string]string{"detail": detail})
}
// #endregion helpers
