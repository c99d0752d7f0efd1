package gateway

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/claudebridge/claudebridge/internal/anthropicadapter"
	"github.com/claudebridge/claudebridge/internal/anthropicadapter/types"
)

// writeJSON writes a JSON response with the given status code.
// Logs encoding failures internally using the provided context.
func writeJSON(ctx context.Context, w http.ResponseWriter, data any, status int) {
	w.Header().Set("Content-Type", "application/json")
	// Headers and status are written before encoding to avoid buffering.
	// If encoding fails, the client may receive a partial response.
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		slog.ErrorContext(ctx, "failed to encode JSON response", "error", err)
	}
}

// writeJSONError writes the Anthropic error envelope with the HTTP status the
// error type implies.
func writeJSONError(ctx context.Context, w http.ResponseWriter, errResp *anthropicadapter.ErrorResponse) {
	writeJSON(ctx, w, errResp, statusForErrType(errResp.Err.Type))
}

// statusForErrType maps Anthropic error types to HTTP status codes.
func statusForErrType(errType string) int {
	switch errType {
	case types.ErrTypeInvalidRequest:
		return http.StatusBadRequest
	case types.ErrTypeAuthentication:
		return http.StatusUnauthorized
	case types.ErrTypePermission:
		return http.StatusForbidden
	case types.ErrTypeNotFound:
		return http.StatusNotFound
	case types.ErrTypeRequestTooLarge:
		return http.StatusRequestEntityTooLarge
	case types.ErrTypeRateLimit:
		return http.StatusTooManyRequests
	case types.ErrTypeOverloaded:
		return 529
	default:
		return http.StatusInternalServerError
	}
}
