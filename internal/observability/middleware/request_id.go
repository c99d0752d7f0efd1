package middleware

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/google/uuid"
)

type requestIDKey struct{}

// RequestIDFromContext returns the ID assigned by RequestID, or "" outside a
// request.
func RequestIDFromContext(ctx context.Context) string {
	id, _ := ctx.Value(requestIDKey{}).(string)
	return id
}

// RequestID assigns every request an ID: the client's X-Request-ID when
// present, a fresh UUID otherwise. The ID is stored in the request context,
// echoed in the X-Request-ID response header, and attached to the request log
// line. Must run inside Logging for the log attribute to land.
func RequestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get("X-Request-ID")
		if id == "" {
			id = uuid.New().String()
		}
		ctx := context.WithValue(r.Context(), requestIDKey{}, id)

		// Header goes out before the handler runs so it survives mid-stream
		// failures.
		w.Header().Set("X-Request-ID", id)
		SetLogAttrs(ctx, slog.String("request_id", id))

		next.ServeHTTP(w, r.WithContext(ctx))
	})
}
