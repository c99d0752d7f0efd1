package openaichat

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/openai/openai-go/v3"

	"github.com/claudebridge/claudebridge/internal/anthropicadapter"
	"github.com/claudebridge/claudebridge/internal/anthropicadapter/types"
)

// ValidationError reports a request that cannot be transformed for the
// backend, such as a tool definition without a name. It is fatal to the
// request that carried it.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return e.Reason
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Reason)
}

// ArgumentParseError reports tool-call arguments that did not finalize to
// valid JSON. Raw carries the accumulated text so callers can recover it
// instead of dropping the call.
type ArgumentParseError struct {
	Raw string
	Err error
}

func (e *ArgumentParseError) Error() string {
	return fmt.Sprintf("tool call arguments are not valid JSON: %v", e.Err)
}

func (e *ArgumentParseError) Unwrap() error {
	return e.Err
}

// BufferOverflowError reports a tool-call argument payload that exceeded the
// configured buffer limit.
type BufferOverflowError struct {
	Limit     int
	Attempted int
}

func (e *BufferOverflowError) Error() string {
	return fmt.Sprintf("tool call arguments exceed %d bytes (attempted %d)", e.Limit, e.Attempted)
}

// EmptyInputError reports an attempt to assemble a tool call from an empty
// event sequence.
type EmptyInputError struct{}

func (e *EmptyInputError) Error() string {
	return "no tool call events to assemble"
}

// toAnthropicError normalizes any failure into the Anthropic error envelope.
// Backend API errors map by HTTP status; transformation errors map to
// invalid_request_error; everything else (network, timeouts) becomes a
// generic api_error so a structured envelope always reaches the client.
func toAnthropicError(err error) *anthropicadapter.ErrorResponse {
	if err == nil {
		return nil
	}

	var errResp *anthropicadapter.ErrorResponse
	if errors.As(err, &errResp) {
		return errResp
	}

	var validationErr *ValidationError
	if errors.As(err, &validationErr) {
		return types.NewErrorResponse(types.ErrTypeInvalidRequest, validationErr.Error())
	}

	var apiErr *openai.Error
	if errors.As(err, &apiErr) {
		message := apiErr.Message
		if message == "" {
			message = apiErr.Error()
		}
		return types.NewErrorResponse(errTypeForStatus(apiErr.StatusCode), message)
	}

	if errors.Is(err, context.DeadlineExceeded) {
		return types.NewErrorResponse(types.ErrTypeAPI, "upstream request timed out")
	}

	return types.NewErrorResponse(types.ErrTypeAPI, err.Error())
}

// errTypeForStatus maps backend HTTP status codes to Anthropic error types.
func errTypeForStatus(status int) string {
	switch status {
	case http.StatusBadRequest:
		return types.ErrTypeInvalidRequest
	case http.StatusUnauthorized:
		return types.ErrTypeAuthentication
	case http.StatusForbidden:
		return types.ErrTypePermission
	case http.StatusNotFound:
		return types.ErrTypeNotFound
	case http.StatusRequestEntityTooLarge:
		return types.ErrTypeRequestTooLarge
	case http.StatusTooManyRequests:
		return types.ErrTypeRateLimit
	case http.StatusServiceUnavailable, 529:
		return types.ErrTypeOverloaded
	default:
		return types.ErrTypeAPI
	}
}
