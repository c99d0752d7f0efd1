package openaichat

import (
	"net/http"

	"github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"
)

// newClient creates a backend client bound to the configured base URL.
// The transport chain, when provided, handles connection-level concerns;
// authentication uses the resolved static bearer key.
func newClient(baseURL, apiKey string, transport http.RoundTripper) openai.Client {
	opts := []option.RequestOption{
		option.WithBaseURL(baseURL),
		// The SDK would otherwise fail fast on a missing env key; local
		// backends often run unauthenticated.
		option.WithAPIKey(apiKey),
	}
	if transport != nil {
		opts = append(opts, option.WithHTTPClient(&http.Client{
			Transport: transport,
			// Client.Timeout = 0 allows long-running SSE streams; the actual
			// bound is the per-request stream timeout set by the gateway.
		}))
	}
	return openai.NewClient(opts...)
}
