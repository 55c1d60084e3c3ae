// Package ops exposes the operational HTTP surface: liveness, readiness,
// and Prometheus metrics. The processor has no business-facing endpoints.
package ops

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const checkTimeout = 2 * time.Second

// Checker probes one dependency for readiness.
type Checker interface {
	Name() string
	Health(ctx context.Context) error
}

// CheckerFunc adapts a function to Checker.
type CheckerFunc struct {
	CheckName string
	Check     func(ctx context.Context) error
}

func (c CheckerFunc) Name() string                     { return c.CheckName }
func (c CheckerFunc) Health(ctx context.Context) error { return c.Check(ctx) }

// Handler serves the operational endpoints.
type Handler struct {
	checkers []Checker
	logger   *slog.Logger
}

// NewHandler constructs the ops handler over the given readiness checkers.
func NewHandler(logger *slog.Logger, checkers ...Checker) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{checkers: checkers, logger: logger}
}

// Router builds the ops router.
func (h *Handler) Router() http.Handler {
	r := chi.NewRouter()
	r.Get("/healthz", h.handleHealthz)
	r.Get("/readyz", h.handleReadyz)
	r.Handle("/metrics", promhttp.Handler())
	return r
}

func (h *Handler) handleHealthz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// handleReadyz probes every dependency and reports per-check status. Any
// failing check makes the whole endpoint unavailable.
func (h *Handler) handleReadyz(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), checkTimeout)
	defer cancel()

	status := http.StatusOK
	checks := make(map[string]string, len(h.checkers))
	for _, c := range h.checkers {
		if err := c.Health(ctx); err != nil {
			h.logger.Warn("readiness check failed", "check", c.Name(), "error", err)
			checks[c.Name()] = err.Error()
			status = http.StatusServiceUnavailable
			continue
		}
		checks[c.Name()] = "ok"
	}

	writeJSON(w, status, map[string]any{
		"status": http.StatusText(status),
		"checks": checks,
	})
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}
