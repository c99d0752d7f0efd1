package openaichat

import (
	"context"
	"io"
	"net/http"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/claudebridge/claudebridge/internal/anthropicadapter"
	"github.com/claudebridge/claudebridge/internal/anthropicadapter/types"
)

// mockTransport returns pre-recorded backend responses without network calls.
type mockTransport struct {
	responseBody   string
	responseStatus int
	isStreaming    bool

	lastRequest *http.Request
}

func (m *mockTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	m.lastRequest = req
	contentType := "application/json"
	if m.isStreaming {
		contentType = "text/event-stream"
	}
	return &http.Response{
		StatusCode: m.responseStatus,
		Body:       io.NopCloser(strings.NewReader(m.responseBody)),
		Header:     http.Header{"Content-Type": []string{contentType}},
		Request:    req,
	}, nil
}

func testRequest() anthropicadapter.CreateMessageRequest {
	return anthropicadapter.CreateMessageRequest{
		Model:     "m",
		MaxTokens: 64,
		Messages: []types.MessageParam{
			{Role: "user", Content: types.TextContent("hi")},
		},
	}
}

func TestProcessRequest(t *testing.T) {
	transport := &mockTransport{
		responseStatus: http.StatusOK,
		responseBody: `{
			"id": "chatcmpl-abc123",
			"object": "chat.completion",
			"choices": [{
				"index": 0,
				"message": {
					"role": "assistant",
					"content": "Checking.",
					"tool_calls": [{
						"id": "call_1",
						"type": "function",
						"function": {"name": "get_weather", "arguments": "{\"location\":\"Paris\"}"}
					}]
				},
				"finish_reason": "tool_calls"
			}],
			"usage": {"prompt_tokens": 9, "completion_tokens": 12}
		}`,
	}

	adapter := New(Config{BaseURL: "http://backend.test/v1"})
	msg, err := adapter.ProcessRequest(context.Background(), testRequest(), transport)
	require.NoError(t, err)

	assert.Equal(t, "msg_abc123", msg.ID)
	assert.Equal(t, "assistant", msg.Role)
	require.Len(t, msg.Content, 2)
	assert.Equal(t, "Checking.", msg.Content[0].Text)
	assert.Equal(t, types.ContentTypeToolUse, msg.Content[1].Type)
	assert.Equal(t, "get_weather", msg.Content[1].Name)
	require.NotNil(t, msg.StopReason)
	assert.Equal(t, types.StopReasonToolUse, *msg.StopReason)
	assert.Equal(t, int64(9), msg.Usage.InputTokens)
	assert.Equal(t, int64(12), msg.Usage.OutputTokens)

	assert.Equal(t, "/v1/chat/completions", transport.lastRequest.URL.Path)
}

func TestProcessRequestBackendError(t *testing.T) {
	transport := &mockTransport{
		responseStatus: http.StatusTooManyRequests,
		responseBody:   `{"error": {"message": "rate limited", "type": "rate_limit_error"}}`,
	}

	adapter := New(Config{BaseURL: "http://backend.test/v1"})
	_, err := adapter.ProcessRequest(context.Background(), testRequest(), transport)

	var errResp *anthropicadapter.ErrorResponse
	require.ErrorAs(t, err, &errResp)
	assert.Equal(t, types.ErrTypeRateLimit, errResp.Err.Type)
}

func TestProcessRequestInvalidTool(t *testing.T) {
	adapter := New(Config{BaseURL: "http://backend.test/v1"})
	req := testRequest()
	req.Tools = []types.ToolDefinition{{Name: ""}}

	_, err := adapter.ProcessRequest(context.Background(), req, &mockTransport{})

	var errResp *anthropicadapter.ErrorResponse
	require.ErrorAs(t, err, &errResp)
	assert.Equal(t, types.ErrTypeInvalidRequest, errResp.Err.Type)
}

func TestProcessStreamingRequest(t *testing.T) {
	sse := strings.Join([]string{
		`data: {"id":"chatcmpl-1","object":"chat.completion.chunk","choices":[{"index":0,"delta":{"content":"Hi"}}]}`,
		``,
		`data: {"id":"chatcmpl-1","object":"chat.completion.chunk","choices":[{"index":0,"delta":{"tool_calls":[{"index":0,"id":"call_1","function":{"name":"f","arguments":"{\"a\":"}}]}}]}`,
		``,
		`data: {"id":"chatcmpl-1","object":"chat.completion.chunk","choices":[{"index":0,"delta":{"tool_calls":[{"index":0,"function":{"arguments":"1}"}}]},"finish_reason":"tool_calls"}]}`,
		``,
		`data: {"id":"chatcmpl-1","object":"chat.completion.chunk","choices":[],"usage":{"prompt_tokens":5,"completion_tokens":7}}`,
		``,
		`data: [DONE]`,
		``,
	}, "\n")

	transport := &mockTransport{
		responseStatus: http.StatusOK,
		responseBody:   sse,
		isStreaming:    true,
	}

	adapter := New(Config{BaseURL: "http://backend.test/v1"})
	stream, err := adapter.ProcessStreamingRequest(context.Background(), testRequest(), transport)
	require.NoError(t, err)

	var events []types.StreamEvent
	for ev, err := range stream {
		require.NoError(t, err)
		events = append(events, ev)
	}

	require.Equal(t, []string{
		"message_start",
		"content_block_start", // text
		"content_block_delta",
		"content_block_start", // tool call
		"content_block_delta",
		"content_block_delta",
		"content_block_stop", // text closes at finish
		"content_block_stop", // tool closes at finish
		"message_delta",
		"message_stop",
	}, eventTypes(events))

	delta := events[len(events)-2].(types.MessageDeltaEvent)
	assert.Equal(t, types.StopReasonToolUse, delta.Delta.StopReason)
	assert.Equal(t, int64(5), delta.Usage.InputTokens)
	assert.Equal(t, int64(7), delta.Usage.OutputTokens)
}

func TestProcessStreamingRequestCanceled(t *testing.T) {
	sse := strings.Join([]string{
		`data: {"id":"chatcmpl-1","object":"chat.completion.chunk","choices":[{"index":0,"delta":{"content":"Hi"}}]}`,
		``,
		`data: [DONE]`,
		``,
	}, "\n")

	transport := &mockTransport{
		responseStatus: http.StatusOK,
		responseBody:   sse,
		isStreaming:    true,
	}

	adapter := New(Config{BaseURL: "http://backend.test/v1"})
	ctx, cancel := context.WithCancel(context.Background())
	stream, err := adapter.ProcessStreamingRequest(ctx, testRequest(), transport)
	require.NoError(t, err)

	// The client disconnected before the first chunk was consumed. The
	// iterator ends without yielding events or an error: there is nobody left
	// to deliver either to.
	cancel()
	var events []types.StreamEvent
	var errs []error
	for ev, err := range stream {
		if err != nil {
			errs = append(errs, err)
		} else {
			events = append(events, ev)
		}
	}
	assert.Empty(t, events)
	assert.Empty(t, errs)
}
