package observability

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"github.com/danmuck/blazectl/internal/auth"
)

// StatusFunc reports live server state for /health.
type StatusFunc func() map[string]any

// NewAdminRouter serves /health, /ready and /metrics. When metricsAuth is set,
// /metrics requires a bearer token it accepts.
func NewAdminRouter(app, version string, logger zerolog.Logger, status StatusFunc, metricsAuth auth.Validator) http.Handler {
	RegisterMetrics()
	started := time.Now()

	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(RequestLogger(logger))
	r.Use(RequestMetrics)

	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		body := map[string]any{
			"status":    "ok",
			"uptime":    time.Since(started).String(),
			"component": app,
			"version":   version,
		}
		if status != nil {
			for k, v := range status() {
				body[k] = v
			}
		}
		writeJSON(w, http.StatusOK, body)
	})
	r.Get("/ready", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]any{"ready": true, "component": app})
	})
	r.With(auth.Require(metricsAuth)).Handle("/metrics", promhttp.Handler())
	return r
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}
