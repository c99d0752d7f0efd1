package types

// Anthropic error type discriminators.
const (
	ErrTypeInvalidRequest  = "invalid_request_error"
	ErrTypeAuthentication  = "authentication_error"
	ErrTypePermission      = "permission_error"
	ErrTypeNotFound        = "not_found_error"
	ErrTypeRequestTooLarge = "request_too_large"
	ErrTypeRateLimit       = "rate_limit_error"
	ErrTypeAPI             = "api_error"
	ErrTypeOverloaded      = "overloaded_error"
)

// ErrorDetail is the inner error object of the Anthropic error envelope.
type ErrorDetail struct {
	Type    string `json:"type"`
	Message string `json:"message"`
}

// Error implements the error interface, returning the error message.
func (e *ErrorDetail) Error() string {
	return e.Message
}

// ErrorResponse wraps ErrorDetail in the envelope Anthropic clients expect:
// {"type":"error","error":{...}}. It implements error so adapters can return
// it directly while the gateway preserves the full structure for marshaling.
type ErrorResponse struct {
	Type string      `json:"type"`
	Err  ErrorDetail `json:"error"`
}

// NewErrorResponse builds an envelope with the mandatory "error" type tag.
func NewErrorResponse(errType, message string) *ErrorResponse {
	return &ErrorResponse{Type: "error", Err: ErrorDetail{Type: errType, Message: message}}
}

// Error implements the error interface, returning the underlying message.
func (e *ErrorResponse) Error() string {
	if e.Err.Message == "" {
		return "unknown error"
	}
	return e.Err.Message
}
