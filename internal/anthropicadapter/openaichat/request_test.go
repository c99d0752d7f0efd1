package openaichat

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/claudebridge/claudebridge/internal/anthropicadapter/types"
)

func TestToChatCompletionParamsBasic(t *testing.T) {
	req := &types.CreateMessageRequest{
		Model:     "llama-3.3-70b",
		MaxTokens: 1024,
		System:    types.SystemText("You are terse."),
		Messages: []types.MessageParam{
			{Role: "user", Content: types.TextContent("Hello")},
		},
	}

	params, err := toChatCompletionParams(req, req.Model, false)
	require.NoError(t, err)

	assert.Equal(t, "llama-3.3-70b", string(params.Model))
	assert.Equal(t, int64(1024), params.MaxTokens.Value)
	require.Len(t, params.Messages, 2)
	require.NotNil(t, params.Messages[0].OfSystem)
	assert.Equal(t, "You are terse.", params.Messages[0].OfSystem.Content.OfString.Value)
	require.NotNil(t, params.Messages[1].OfUser)
}

func TestToChatCompletionParamsSampling(t *testing.T) {
	temp, topP := 0.2, 0.9
	req := &types.CreateMessageRequest{
		Model:         "m",
		MaxTokens:     16,
		Temperature:   &temp,
		TopP:          &topP,
		StopSequences: []string{"END"},
		Metadata:      &types.Metadata{UserID: "user-42"},
		Messages:      []types.MessageParam{{Role: "user", Content: types.TextContent("hi")}},
	}

	params, err := toChatCompletionParams(req, req.Model, true)
	require.NoError(t, err)

	assert.Equal(t, 0.2, params.Temperature.Value)
	assert.Equal(t, 0.9, params.TopP.Value)
	assert.Equal(t, []string{"END"}, params.Stop.OfStringArray)
	assert.Equal(t, "user-42", params.User.Value)
	assert.True(t, params.StreamOptions.IncludeUsage.Value)
}

func TestToChatCompletionParamsAssistantToolUse(t *testing.T) {
	req := &types.CreateMessageRequest{
		Model:     "m",
		MaxTokens: 16,
		Messages: []types.MessageParam{
			{Role: "user", Content: types.TextContent("weather in Paris?")},
			{Role: "assistant", Content: types.BlocksContent(
				types.ContentBlockParam{Type: types.ContentTypeText, Text: "Let me check."},
				types.ContentBlockParam{
					Type:  types.ContentTypeToolUse,
					ID:    "call_1",
					Name:  "get_weather",
					Input: json.RawMessage(`{"location":"Paris"}`),
				},
			)},
			{Role: "user", Content: types.BlocksContent(
				types.ContentBlockParam{
					Type:      types.ContentTypeToolResult,
					ToolUseID: "call_1",
					Content:   json.RawMessage(`"18°C, clear"`),
				},
			)},
		},
	}

	params, err := toChatCompletionParams(req, req.Model, false)
	require.NoError(t, err)
	require.Len(t, params.Messages, 3)

	assistant := params.Messages[1].OfAssistant
	require.NotNil(t, assistant)
	assert.Equal(t, "Let me check.", assistant.Content.OfString.Value)
	require.Len(t, assistant.ToolCalls, 1)
	call := assistant.ToolCalls[0].OfFunction
	require.NotNil(t, call)
	assert.Equal(t, "call_1", call.ID)
	assert.Equal(t, "get_weather", call.Function.Name)
	assert.JSONEq(t, `{"location":"Paris"}`, call.Function.Arguments)

	tool := params.Messages[2].OfTool
	require.NotNil(t, tool)
	assert.Equal(t, "call_1", tool.ToolCallID)
	assert.Equal(t, "18°C, clear", tool.Content.OfString.Value)
}

func TestToChatCompletionParamsToolResultBlocks(t *testing.T) {
	req := &types.CreateMessageRequest{
		Model:     "m",
		MaxTokens: 16,
		Messages: []types.MessageParam{
			{Role: "user", Content: types.BlocksContent(
				types.ContentBlockParam{
					Type:      types.ContentTypeToolResult,
					ToolUseID: "call_1",
					Content:   json.RawMessage(`[{"type":"text","text":"part one "},{"type":"text","text":"part two"}]`),
				},
				types.ContentBlockParam{Type: types.ContentTypeText, Text: "thanks"},
			)},
		},
	}

	params, err := toChatCompletionParams(req, req.Model, false)
	require.NoError(t, err)
	// The tool result precedes the user's remaining content.
	require.Len(t, params.Messages, 2)
	require.NotNil(t, params.Messages[0].OfTool)
	assert.Equal(t, "part one part two", params.Messages[0].OfTool.Content.OfString.Value)
	require.NotNil(t, params.Messages[1].OfUser)
}

func TestToChatCompletionParamsImage(t *testing.T) {
	req := &types.CreateMessageRequest{
		Model:     "m",
		MaxTokens: 16,
		Messages: []types.MessageParam{
			{Role: "user", Content: types.BlocksContent(
				types.ContentBlockParam{Type: types.ContentTypeText, Text: "what is this?"},
				types.ContentBlockParam{Type: types.ContentTypeImage, Source: &types.ImageSource{
					Type:      "base64",
					MediaType: "image/png",
					Data:      "iVBORw0KGgo=",
				}},
			)},
		},
	}

	params, err := toChatCompletionParams(req, req.Model, false)
	require.NoError(t, err)
	user := params.Messages[0].OfUser
	require.NotNil(t, user)
	parts := user.Content.OfArrayOfContentParts
	require.Len(t, parts, 2)
	require.NotNil(t, parts[1].OfImageURL)
	assert.Equal(t, "data:image/png;base64,iVBORw0KGgo=", parts[1].OfImageURL.ImageURL.URL)
}

func TestToChatCompletionParamsUnsupportedBlock(t *testing.T) {
	req := &types.CreateMessageRequest{
		Model:     "m",
		MaxTokens: 16,
		Messages: []types.MessageParam{
			{Role: "user", Content: types.BlocksContent(
				types.ContentBlockParam{Type: "thinking"},
			)},
		},
	}

	_, err := toChatCompletionParams(req, req.Model, false)
	var validationErr *ValidationError
	require.ErrorAs(t, err, &validationErr)
}

func TestSystemPromptBlocks(t *testing.T) {
	var req types.CreateMessageRequest
	body := `{
		"model": "m",
		"max_tokens": 16,
		"system": [{"type":"text","text":"one"},{"type":"text","text":"two"}],
		"messages": [{"role":"user","content":"hi"}]
	}`
	require.NoError(t, json.Unmarshal([]byte(body), &req))

	params, err := toChatCompletionParams(&req, req.Model, false)
	require.NoError(t, err)
	require.NotNil(t, params.Messages[0].OfSystem)
	assert.Equal(t, "one\n\ntwo", params.Messages[0].OfSystem.Content.OfString.Value)
}
