package server

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/dd0wney/vega-authsync/pkg/authphase"
	"github.com/dd0wney/vega-authsync/pkg/health"
	"github.com/dd0wney/vega-authsync/pkg/logging"
	"github.com/dd0wney/vega-authsync/pkg/metrics"
)

// Guarder is the tab surface the HTTP routes expose
type Guarder interface {
	Guard() authphase.Decision
	Login(ctx context.Context) (authphase.Decision, error)
}

// NewRouter builds the daemon's routes:
//
//	GET  /metrics          Prometheus exposition
//	GET  /health           all checks
//	GET  /health/ready     readiness checks
//	GET  /health/live      liveness checks
//	GET  /auth/guard       route guard decision
//	POST /auth/invalidate  login hook: drop the bootstrap cache and re-resolve
func NewRouter(tab Guarder, hc *health.HealthChecker, reg *metrics.Registry, logger logging.Logger) *mux.Router {
	if logger == nil {
		logger = logging.NewNopLogger()
	}
	h := &handlers{tab: tab, logger: logger.With(logging.Component("http"))}

	router := mux.NewRouter()

	if reg != nil {
		router.Handle("/metrics", promhttp.HandlerFor(reg.GetPrometheusRegistry(), promhttp.HandlerOpts{})).Methods("GET")
	}

	router.HandleFunc("/health", hc.HTTPHandler()).Methods("GET")
	router.HandleFunc("/health/ready", hc.ReadinessHandler()).Methods("GET")
	router.HandleFunc("/health/live", hc.LivenessHandler()).Methods("GET")

	router.HandleFunc("/auth/guard", h.guard).Methods("GET")
	router.HandleFunc("/auth/invalidate", h.invalidate).Methods("POST")

	router.Use(metricsMiddleware(reg))
	return router
}

type handlers struct {
	tab    Guarder
	logger logging.Logger
}

func (h *handlers) guard(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.tab.Guard())
}

func (h *handlers) invalidate(w http.ResponseWriter, r *http.Request) {
	decision, err := h.tab.Login(r.Context())
	if err != nil {
		h.logger.Warn("Login hook failed", logging.Error(err))
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"error": err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, decision)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

func metricsMiddleware(reg *metrics.Registry) mux.MiddlewareFunc {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if reg == nil {
				next.ServeHTTP(w, r)
				return
			}

			start := time.Now()
			rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
			next.ServeHTTP(rec, r)

			path := r.URL.Path
			if route := mux.CurrentRoute(r); route != nil {
				if tmpl, err := route.GetPathTemplate(); err == nil {
					path = tmpl
				}
			}
			reg.RecordHTTPRequest(r.Method, path, strconv.Itoa(rec.status), time.Since(start))
		})
	}
}
