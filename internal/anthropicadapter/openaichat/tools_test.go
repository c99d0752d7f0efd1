package openaichat

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/claudebridge/claudebridge/internal/anthropicadapter/types"
)

func TestToFunctionTools(t *testing.T) {
	schema := json.RawMessage(`{"type":"object","properties":{"location":{"type":"string"}},"required":["location"]}`)

	tools, err := toFunctionTools([]types.ToolDefinition{{
		Name:        "get_weather",
		Description: "Get current weather",
		InputSchema: schema,
	}})
	require.NoError(t, err)
	require.Len(t, tools, 1)

	fn := tools[0].OfFunction
	require.NotNil(t, fn)
	assert.Equal(t, "get_weather", fn.Function.Name)
	assert.Equal(t, "Get current weather", fn.Function.Description.Value)

	// input_schema passes through unchanged, envelope aside.
	assert.Equal(t, "object", fn.Function.Parameters["type"])
	assert.Contains(t, fn.Function.Parameters, "properties")
	assert.Contains(t, fn.Function.Parameters, "required")
}

func TestToFunctionToolsEmptyName(t *testing.T) {
	_, err := toFunctionTools([]types.ToolDefinition{{Name: "  "}})

	var validationErr *ValidationError
	require.ErrorAs(t, err, &validationErr)
	assert.Equal(t, "tools[0].name", validationErr.Field)
}

func TestToFunctionToolsNoTools(t *testing.T) {
	tools, err := toFunctionTools(nil)
	require.NoError(t, err)
	assert.Nil(t, tools)
}

func TestFromToolChoice(t *testing.T) {
	choice, err := fromToolChoice(&types.ToolChoice{Type: types.ToolChoiceAuto})
	require.NoError(t, err)
	assert.Equal(t, "auto", choice.OfAuto.Value)

	choice, err = fromToolChoice(&types.ToolChoice{Type: types.ToolChoiceAny})
	require.NoError(t, err)
	assert.Equal(t, "required", choice.OfAuto.Value)

	choice, err = fromToolChoice(&types.ToolChoice{Type: types.ToolChoiceNone})
	require.NoError(t, err)
	assert.Equal(t, "none", choice.OfAuto.Value)

	choice, err = fromToolChoice(&types.ToolChoice{Type: types.ToolChoiceTool, Name: "get_weather"})
	require.NoError(t, err)
	require.NotNil(t, choice.OfFunctionToolChoice)
	assert.Equal(t, "get_weather", choice.OfFunctionToolChoice.Function.Name)

	_, err = fromToolChoice(&types.ToolChoice{Type: types.ToolChoiceTool})
	var validationErr *ValidationError
	require.ErrorAs(t, err, &validationErr)

	_, err = fromToolChoice(&types.ToolChoice{Type: "sometimes"})
	require.ErrorAs(t, err, &validationErr)
}

func TestParseToolCall(t *testing.T) {
	block, err := parseToolCall("call_1", "get_weather", `{"location": "Paris"}`)
	require.NoError(t, err)
	assert.Equal(t, types.ContentTypeToolUse, block.Type)
	assert.Equal(t, "call_1", block.ID)
	assert.Equal(t, "get_weather", block.Name)
	assert.JSONEq(t, `{"location": "Paris"}`, string(block.Input))
}

func TestParseToolCallEmptyArguments(t *testing.T) {
	block, err := parseToolCall("call_1", "noop", "  ")
	require.NoError(t, err)
	assert.JSONEq(t, `{}`, string(block.Input))
}

func TestParseToolCallInvalidArguments(t *testing.T) {
	_, err := parseToolCall("call_1", "broken", `{"a": [1`)

	var parseErr *ArgumentParseError
	require.ErrorAs(t, err, &parseErr)
	assert.Equal(t, `{"a": [1`, parseErr.Raw)
}

func TestParseToolCallGeneratesID(t *testing.T) {
	block, err := parseToolCall("", "f", `{}`)
	require.NoError(t, err)
	assert.NotEmpty(t, block.ID)
	assert.Contains(t, block.ID, "call_")
}

func TestAssembleStreaming(t *testing.T) {
	block, err := assembleStreaming([]toolCallDelta{
		{ID: "call_1", Name: "search"},
		{Arguments: `{"q": "go`},
		{Arguments: `pher"}`},
	})
	require.NoError(t, err)
	assert.Equal(t, "call_1", block.ID)
	assert.Equal(t, "search", block.Name)
	assert.JSONEq(t, `{"q": "gopher"}`, string(block.Input))
}

func TestAssembleStreamingEmpty(t *testing.T) {
	_, err := assembleStreaming(nil)

	var emptyErr *EmptyInputError
	require.ErrorAs(t, err, &emptyErr)
}

func TestAssembleStreamingFirstIdentityWins(t *testing.T) {
	block, err := assembleStreaming([]toolCallDelta{
		{ID: "call_1", Name: "first", Arguments: `{}`},
		{ID: "call_2", Name: "second"},
	})
	require.NoError(t, err)
	assert.Equal(t, "call_1", block.ID)
	assert.Equal(t, "first", block.Name)
}
