package openaichat

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"encoding/json"
	"errors"
	"log/slog"
	"strings"

	"github.com/openai/openai-go/v3"

	"github.com/claudebridge/claudebridge/internal/anthropicadapter/types"
)

// toMessage converts a buffered chat completion into the Anthropic message
// shape: text content becomes a text block, each tool call a tool_use block,
// in that order. With rawFallback set, a tool call whose arguments are not
// valid JSON survives as a tool_use block carrying the raw text as a JSON
// string instead of failing the response.
func toMessage(ctx context.Context, completion *openai.ChatCompletion, model string, rawFallback bool) (*types.Message, error) {
	if completion == nil || len(completion.Choices) == 0 {
		return nil, types.NewErrorResponse(types.ErrTypeAPI, "backend returned no choices")
	}
	choice := completion.Choices[0]

	content := make([]types.ContentBlock, 0, 1+len(choice.Message.ToolCalls))
	if choice.Message.Content != "" {
		content = append(content, types.ContentBlock{
			Type: types.ContentTypeText,
			Text: choice.Message.Content,
		})
	}
	for _, call := range choice.Message.ToolCalls {
		block, err := parseToolCall(call.ID, call.Function.Name, call.Function.Arguments)
		if err != nil {
			var parseErr *ArgumentParseError
			if !errors.As(err, &parseErr) || !rawFallback {
				return nil, err
			}
			slog.WarnContext(ctx, "passing unparseable tool call arguments through as a raw string",
				"tool_name", call.Function.Name, "error", err)
			raw, marshalErr := json.Marshal(parseErr.Raw)
			if marshalErr != nil {
				return nil, marshalErr
			}
			id := call.ID
			if id == "" {
				id = newToolCallID()
			}
			block = types.ContentBlock{
				Type:  types.ContentTypeToolUse,
				ID:    id,
				Name:  call.Function.Name,
				Input: raw,
			}
		}
		content = append(content, block)
	}

	stopReason := mapFinishReason(ctx, choice.FinishReason)
	return &types.Message{
		ID:         toMessageID(completion.ID),
		Type:       "message",
		Role:       "assistant",
		Model:      model,
		Content:    content,
		StopReason: &stopReason,
		Usage:      toUsage(completion.Usage),
	}, nil
}

// mapFinishReason maps backend finish reasons onto Anthropic stop reasons.
// content_filter has no counterpart and maps to stop_sequence, the closest
// "stopped early on purpose" value. Unknown reasons default to end_turn so an
// unrecognized backend never breaks the terminal event.
func mapFinishReason(ctx context.Context, reason string) types.StopReason {
	switch reason {
	case "stop", "":
		return types.StopReasonEndTurn
	case "tool_calls", "function_call":
		return types.StopReasonToolUse
	case "length":
		return types.StopReasonMaxTokens
	case "content_filter":
		return types.StopReasonStopSequence
	default:
		slog.DebugContext(ctx, "unknown finish reason, defaulting to end_turn", "finish_reason", reason)
		return types.StopReasonEndTurn
	}
}

// toMessageID derives the Anthropic-style message ID from the backend's
// response ID, generating a fresh one when the backend sent none.
func toMessageID(backendID string) string {
	if backendID == "" {
		return newMessageID()
	}
	return "msg_" + strings.TrimPrefix(backendID, "chatcmpl-")
}

// newMessageID generates an Anthropic-style message ID (format: msg_<token>).
func newMessageID() string {
	b := make([]byte, 24)
	if _, err := rand.Read(b); err != nil {
		panic(err) // rand.Read never fails on supported platforms
	}
	return "msg_" + base64.RawURLEncoding.EncodeToString(b)
}
