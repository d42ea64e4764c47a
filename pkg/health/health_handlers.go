package health

import (
	"encoding/json"
	"net/http"
)

// HTTPHandler serves every general check. Degraded still answers 200.
func (hc *HealthChecker) HTTPHandler() http.HandlerFunc {
	return serve(hc.Check, true)
}

// ReadinessHandler serves the readiness checks. Only healthy answers 200.
func (hc *HealthChecker) ReadinessHandler() http.HandlerFunc {
	return serve(hc.CheckReadiness, false)
}

// LivenessHandler serves the liveness checks. Only healthy answers 200.
func (hc *HealthChecker) LivenessHandler() http.HandlerFunc {
	return serve(hc.CheckLiveness, false)
}

func serve(run func() Response, degradedOK bool) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		response := run()

		code := http.StatusServiceUnavailable
		if response.Status == StatusHealthy || (degradedOK && response.Status == StatusDegraded) {
			code = http.StatusOK
		}

		w.Header().Set("Content-Type", "application/json")
		w.Header().Set("Cache-Control", "no-store")
		w.WriteHeader(code)
		_ = json.NewEncoder(w).Encode(response)
	}
}
