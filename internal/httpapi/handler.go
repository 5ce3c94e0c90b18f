// Package httpapi serves the reactivation links and the operational
// endpoints.
package httpapi

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"stock_watcher/internal/domain"
	"stock_watcher/internal/metrics"
)

type Reactivator interface {
	Outcome(ctx context.Context, token string) domain.ReactivationOutcome
}

type Pinger interface {
	PingContext(ctx context.Context) error
}

type Handler struct {
	reactivator Reactivator
	db          Pinger
	logger      *slog.Logger
}

func NewHandler(reactivator Reactivator, db Pinger, logger *slog.Logger) http.Handler {
	h := &Handler{
		reactivator: reactivator,
		db:          db,
		logger:      logger.With("component", "http"),
	}

	mux := http.NewServeMux()
	mux.HandleFunc("GET /productsku/{token}/reactivate", h.reactivate)
	mux.HandleFunc("GET /healthz", h.healthz)
	mux.Handle("GET /metrics", metrics.Handler())

	return h.logRequests(mux)
}

func (h *Handler) reactivate(w http.ResponseWriter, r *http.Request) {
	out := h.reactivator.Outcome(r.Context(), r.PathValue("token"))
	writeJSON(w, statusFor(out.Status), out)
}

func (h *Handler) healthz(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	if err := h.db.PingContext(ctx); err != nil {
		h.logger.Warn("health check failed", "error", err)
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unavailable"})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func statusFor(status domain.ReactivationStatus) int {
	switch status {
	case domain.ReactivationSucceeded:
		return http.StatusOK
	case domain.ReactivationNotFound:
		return http.StatusNotFound
	case domain.ReactivationAlreadyUsed, domain.ReactivationExpired:
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

func (h *Handler) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}

		next.ServeHTTP(rec, r)

		h.logger.Debug("request handled",
			"method", r.Method,
			"path", r.URL.Path,
			"status", rec.status,
			"duration", time.Since(start),
		)
	})
}
