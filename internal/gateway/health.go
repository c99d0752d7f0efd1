package gateway

import "net/http"

// livenessHandler answers 200 whenever the process can serve HTTP at all.
func livenessHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Cache-Control", "no-cache")
		writeJSON(r.Context(), w, map[string]string{"status": "ok"}, http.StatusOK)
	}
}

// readinessHandler reports whether the gateway is accepting traffic yet.
// It answers 503 until startup completes, 200 after.
func readinessHandler(checker ReadinessChecker) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Cache-Control", "no-cache")
		if !checker.IsReady() {
			writeJSON(r.Context(), w, map[string]string{"status": "starting"}, http.StatusServiceUnavailable)
			return
		}
		writeJSON(r.Context(), w, map[string]string{"status": "ready"}, http.StatusOK)
	}
}
