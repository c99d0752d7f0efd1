package middleware

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/httplog/v3"
)

// Logging emits one structured line per request: method, path, status,
// duration, plus whatever inner middlewares attach via SetLogAttrs. Request
// and response bodies stay out of the logs entirely; requests carry API keys
// and full conversation content.
func Logging(logger *slog.Logger) func(http.Handler) http.Handler {
	return httplog.RequestLogger(logger, &httplog.Options{
		Schema:             httplog.SchemaECS.Concise(true),
		LogRequestHeaders:  []string{"Content-Type"},
		LogResponseHeaders: []string{},
		RecoverPanics:      false, // the gateway's Recovery middleware owns panics
	})
}

// SetLogAttrs attaches attributes to the current request's log line.
func SetLogAttrs(ctx context.Context, attrs ...slog.Attr) {
	httplog.SetAttrs(ctx, attrs...)
}
