package gateway

import (
	"log/slog"
	"net/http"

	"github.com/claudebridge/claudebridge/internal/anthropicadapter/types"
)

// Recovery converts handler panics into an api_error envelope so clients get
// a structured body instead of a bare 500. If the response already started
// the envelope write is best-effort; the panic is logged either way.
func Recovery(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if v := recover(); v != nil {
				slog.ErrorContext(r.Context(), "handler panic", "panic", v)
				writeJSONError(r.Context(), w, types.NewErrorResponse(types.ErrTypeAPI, "internal server error"))
			}
		}()
		next.ServeHTTP(w, r)
	})
}

// RequestSizeLimit caps the request body. Handlers reading past the limit get
// *http.MaxBytesError, which maps to the request_too_large error type.
func RequestSizeLimit(maxBytes int64) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			r.Body = http.MaxBytesReader(w, r.Body, maxBytes)
			next.ServeHTTP(w, r)
		})
	}
}

// applyMiddlewares wraps h so the first middleware listed runs outermost.
func applyMiddlewares(h http.Handler, middlewares ...func(http.Handler) http.Handler) http.Handler {
	for i := len(middlewares) - 1; i >= 0; i-- {
		h = middlewares[i](h)
	}
	return h
}
