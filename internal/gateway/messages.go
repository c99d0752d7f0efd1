package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/claudebridge/claudebridge/internal/anthropicadapter"
	"github.com/claudebridge/claudebridge/internal/anthropicadapter/types"
	"github.com/claudebridge/claudebridge/internal/observability/middleware"
)

// CreateMessageHandler handles Anthropic Messages API requests, buffered and
// streaming.
type CreateMessageHandler struct {
	Adapter   anthropicadapter.CreateMessageAdapter
	Transport http.RoundTripper
	Validate  *validator.Validate

	// StreamTimeout bounds the wall-clock duration of one streaming response.
	StreamTimeout time.Duration
	// PingInterval is the keepalive ping cadence while waiting for the first
	// upstream event. Zero disables pings.
	PingInterval time.Duration
}

// Compile-time check that CreateMessageHandler implements http.Handler
var _ http.Handler = (*CreateMessageHandler)(nil)

// ServeHTTP decodes and validates the request, then dispatches to the
// streaming or buffered path.
func (h *CreateMessageHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req anthropicadapter.CreateMessageRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		var maxBytesErr *http.MaxBytesError
		if errors.As(err, &maxBytesErr) {
			slog.WarnContext(ctx, "request exceeds size limit", "limit_bytes", maxBytesErr.Limit)
			writeJSONError(ctx, w, types.NewErrorResponse(types.ErrTypeRequestTooLarge,
				fmt.Sprintf("request body exceeds %d bytes", maxBytesErr.Limit)))
			return
		}
		slog.WarnContext(ctx, "failed to decode request", "error", err)
		writeJSONError(ctx, w, types.NewErrorResponse(types.ErrTypeInvalidRequest,
			fmt.Sprintf("invalid request body: %v", err)))
		return
	}

	if err := h.Validate.StructCtx(ctx, &req); err != nil {
		writeJSONError(ctx, w, types.NewErrorResponse(types.ErrTypeInvalidRequest, validationMessage(err)))
		return
	}

	if req.Stream {
		h.streamResponse(ctx, w, req)
	} else {
		h.writeResponse(ctx, w, req)
	}
}

// writeResponse handles the buffered path: one backend call, one JSON body.
func (h *CreateMessageHandler) writeResponse(ctx context.Context, w http.ResponseWriter, req anthropicadapter.CreateMessageRequest) {
	if ctx.Err() != nil {
		return
	}
	response, err := h.Adapter.ProcessRequest(ctx, req, h.Transport)
	if err != nil {
		slog.ErrorContext(ctx, "request failed", "error", err)
		writeJSONError(ctx, w, asErrorResponse(err))
		return
	}
	writeJSON(ctx, w, response, http.StatusOK)
}

// streamResponse handles the streaming path. Keepalive pings cover the gap
// before the first upstream event; once events flow, the converter's own
// cadence keeps the connection alive. The client always receives either
// message_stop or a terminal error event, never a bare connection close,
// except when the client itself disconnected.
func (h *CreateMessageHandler) streamResponse(ctx context.Context, w http.ResponseWriter, req anthropicadapter.CreateMessageRequest) {
	if ctx.Err() != nil {
		return
	}
	if h.StreamTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, h.StreamTimeout)
		defer cancel()
	}

	stream, err := h.Adapter.ProcessStreamingRequest(ctx, req, h.Transport)
	if err != nil {
		slog.ErrorContext(ctx, "streaming request failed", "error", err)
		writeJSONError(ctx, w, asErrorResponse(err))
		return
	}

	sse, err := NewSSEWriter(w)
	if err != nil {
		slog.ErrorContext(ctx, "SSE not supported", "error", err)
		writeJSONError(ctx, w, types.NewErrorResponse(types.ErrTypeAPI,
			http.StatusText(http.StatusInternalServerError)))
		return
	}

	stopPings := h.startPings(ctx, sse)
	defer stopPings()

	for event, err := range stream {
		stopPings()

		if ctx.Err() != nil && errors.Is(ctx.Err(), context.Canceled) {
			slog.DebugContext(ctx, "client disconnected during stream")
			return
		}

		if err != nil {
			// The SSE error event carries no correlation ID; the log line is
			// the only place to tie it back to the request.
			slog.ErrorContext(ctx, "stream error", "error", err,
				"request_id", middleware.RequestIDFromContext(ctx))
			if writeErr := sse.WriteEvent(types.NewErrorEvent(asErrorResponse(err).Err)); writeErr != nil {
				slog.ErrorContext(ctx, "failed to write error event", "error", writeErr)
			}
			return
		}

		if err := sse.WriteEvent(event); err != nil {
			slog.ErrorContext(ctx, "failed to write event", "error", err)
			return
		}
	}
}

// startPings emits keepalive ping events on a ticker until the returned stop
// function is called or the context ends. Stop is idempotent and safe to call
// from the event loop on every iteration.
func (h *CreateMessageHandler) startPings(ctx context.Context, sse *SSEWriter) func() {
	if h.PingInterval <= 0 {
		return func() {}
	}

	done := make(chan struct{})
	go func() {
		ticker := time.NewTicker(h.PingInterval)
		defer ticker.Stop()
		for {
			select {
			case <-done:
				return
			case <-ctx.Done():
				return
			case <-ticker.C:
				if err := sse.WriteEvent(types.NewPingEvent()); err != nil {
					slog.DebugContext(ctx, "keepalive ping failed", "error", err)
					return
				}
			}
		}
	}()

	return sync.OnceFunc(func() { close(done) })
}

// asErrorResponse normalizes any error into the Anthropic envelope. Adapters
// already return structured envelopes; anything else is wrapped as api_error.
func asErrorResponse(err error) *anthropicadapter.ErrorResponse {
	var errResp *anthropicadapter.ErrorResponse
	if errors.As(err, &errResp) {
		return errResp
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return types.NewErrorResponse(types.ErrTypeAPI, "request timed out")
	}
	return types.NewErrorResponse(types.ErrTypeAPI, err.Error())
}

// validationMessage flattens validator errors into one client-facing message.
func validationMessage(err error) string {
	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		return err.Error()
	}
	parts := make([]string, 0, len(fieldErrs))
	for _, fe := range fieldErrs {
		switch fe.Tag() {
		case "required":
			parts = append(parts, fmt.Sprintf("%s is required", fieldName(fe)))
		case "min":
			parts = append(parts, fmt.Sprintf("%s must contain at least %s element(s)", fieldName(fe), fe.Param()))
		case "gt":
			parts = append(parts, fmt.Sprintf("%s must be greater than %s", fieldName(fe), fe.Param()))
		default:
			parts = append(parts, fmt.Sprintf("%s failed %s validation", fieldName(fe), fe.Tag()))
		}
	}
	return strings.Join(parts, "; ")
}

// fieldName strips the struct name prefix from the validator namespace. With
// JSON tag names registered on the validator, the remainder is the path as it
// appears in the request body.
func fieldName(fe validator.FieldError) string {
	ns := fe.Namespace()
	if i := strings.Index(ns, "."); i >= 0 {
		ns = ns[i+1:]
	}
	return ns
}
