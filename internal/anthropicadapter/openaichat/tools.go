package openaichat

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/shared"

	"github.com/claudebridge/claudebridge/internal/anthropicadapter/types"
)

// toFunctionTools wraps Anthropic tool definitions into the backend's function
// tool envelope. input_schema is already JSON Schema and passes through
// unchanged. A definition without a name is rejected up front: the backend
// would either reject the whole request or, worse, accept it and emit calls no
// client can route.
func toFunctionTools(tools []types.ToolDefinition) ([]openai.ChatCompletionToolUnionParam, error) {
	if len(tools) == 0 {
		return nil, nil
	}
	out := make([]openai.ChatCompletionToolUnionParam, 0, len(tools))
	for i, tool := range tools {
		if strings.TrimSpace(tool.Name) == "" {
			return nil, &ValidationError{
				Field:  fmt.Sprintf("tools[%d].name", i),
				Reason: "tool name must not be empty",
			}
		}
		def := shared.FunctionDefinitionParam{Name: tool.Name}
		if tool.Description != "" {
			def.Description = openai.String(tool.Description)
		}
		if len(tool.InputSchema) > 0 {
			var schema shared.FunctionParameters
			if err := json.Unmarshal(tool.InputSchema, &schema); err != nil {
				return nil, &ValidationError{
					Field:  fmt.Sprintf("tools[%d].input_schema", i),
					Reason: fmt.Sprintf("input_schema is not a JSON object: %v", err),
				}
			}
			def.Parameters = schema
		}
		out = append(out, openai.ChatCompletionFunctionTool(def))
	}
	return out, nil
}

// fromToolChoice maps the Anthropic tool_choice union onto the backend's.
// "any" has no direct equivalent and becomes "required".
func fromToolChoice(choice *types.ToolChoice) (openai.ChatCompletionToolChoiceOptionUnionParam, error) {
	var out openai.ChatCompletionToolChoiceOptionUnionParam
	if choice == nil {
		return out, nil
	}
	switch choice.Type {
	case types.ToolChoiceAuto:
		out.OfAuto = openai.String("auto")
	case types.ToolChoiceAny:
		out.OfAuto = openai.String("required")
	case types.ToolChoiceNone:
		out.OfAuto = openai.String("none")
	case types.ToolChoiceTool:
		if strings.TrimSpace(choice.Name) == "" {
			return out, &ValidationError{Field: "tool_choice.name", Reason: "required when type is \"tool\""}
		}
		out.OfFunctionToolChoice = &openai.ChatCompletionNamedToolChoiceParam{
			Function: openai.ChatCompletionNamedToolChoiceFunctionParam{Name: choice.Name},
		}
	default:
		return out, &ValidationError{
			Field:  "tool_choice.type",
			Reason: fmt.Sprintf("unsupported value %q", choice.Type),
		}
	}
	return out, nil
}

// parseToolCall converts one complete backend tool call into a tool_use
// content block. Arguments must be a complete JSON document here; empty
// arguments normalize to the empty object, anything unparseable surfaces as
// *ArgumentParseError with the raw text attached. A missing call ID gets a
// generated one so the block stays addressable by later tool_result turns.
func parseToolCall(id, name, arguments string) (types.ContentBlock, error) {
	input := json.RawMessage(`{}`)
	if strings.TrimSpace(arguments) != "" {
		if !json.Valid([]byte(arguments)) {
			return types.ContentBlock{}, &ArgumentParseError{
				Raw: arguments,
				Err: fmt.Errorf("invalid JSON in tool call %q", name),
			}
		}
		input = json.RawMessage(arguments)
	}
	if id == "" {
		id = newToolCallID()
	}
	return types.ContentBlock{
		Type:  types.ContentTypeToolUse,
		ID:    id,
		Name:  name,
		Input: input,
	}, nil
}

// assembleStreaming reconstructs a complete tool call from the fragment
// sequence of a finished stream. It is a pure function over its input, useful
// to clients that collected deltas without running them through the converter.
// Identity and name come from the first event that carries them.
func assembleStreaming(events []toolCallDelta) (types.ContentBlock, error) {
	if len(events) == 0 {
		return types.ContentBlock{}, &EmptyInputError{}
	}
	var (
		id, name string
		args     strings.Builder
	)
	for _, ev := range events {
		if id == "" {
			id = ev.ID
		}
		if name == "" {
			name = ev.Name
		}
		args.WriteString(ev.Arguments)
	}
	return parseToolCall(id, name, args.String())
}

// toolCallDelta is one collected fragment of a streamed tool call, the input
// shape of assembleStreaming.
type toolCallDelta struct {
	ID        string
	Name      string
	Arguments string
}
