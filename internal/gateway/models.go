package gateway

import (
	_ "embed"
	"log/slog"
	"net/http"
)

//go:embed models.json
var modelsJSON []byte

// modelsHandler returns a static model list. OpenAI-compatible backends do not
// expose model discovery uniformly, so a cached response keeps model selection
// working in clients. Model names pass through to the backend verbatim, so the
// list is advisory, not an allowlist.
func modelsHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		if _, err := w.Write(modelsJSON); err != nil {
			slog.ErrorContext(r.Context(), "failed to write response", "error", err)
		}
	}
}
