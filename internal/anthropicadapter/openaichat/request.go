package openaichat

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/openai/openai-go/v3"

	"github.com/claudebridge/claudebridge/internal/anthropicadapter/types"
)

// toChatCompletionParams transforms an Anthropic Messages request into the
// backend's chat completion parameters.
//
// The system prompt becomes a leading system message. Conversation turns
// flatten per block kind: tool_result blocks become tool-role messages keyed
// by tool_use_id, assistant tool_use blocks become tool calls with their input
// re-serialized as the arguments string, images pass through as image_url
// content parts.
func toChatCompletionParams(req *types.CreateMessageRequest, model string, stream bool) (*openai.ChatCompletionNewParams, error) {
	params := &openai.ChatCompletionNewParams{
		Model:     openai.ChatModel(model),
		MaxTokens: openai.Int(req.MaxTokens),
	}

	system, err := req.System.Text()
	if err != nil {
		return nil, &ValidationError{Field: "system", Reason: err.Error()}
	}
	if system != "" {
		params.Messages = append(params.Messages, openai.SystemMessage(system))
	}

	for i, msg := range req.Messages {
		converted, err := toBackendMessages(msg)
		if err != nil {
			return nil, fmt.Errorf("messages[%d]: %w", i, err)
		}
		params.Messages = append(params.Messages, converted...)
	}

	tools, err := toFunctionTools(req.Tools)
	if err != nil {
		return nil, err
	}
	params.Tools = tools

	choice, err := fromToolChoice(req.ToolChoice)
	if err != nil {
		return nil, err
	}
	params.ToolChoice = choice

	if req.Temperature != nil {
		params.Temperature = openai.Float(*req.Temperature)
	}
	if req.TopP != nil {
		params.TopP = openai.Float(*req.TopP)
	}
	if len(req.StopSequences) > 0 {
		params.Stop = openai.ChatCompletionNewParamsStopUnion{OfStringArray: req.StopSequences}
	}
	if req.Metadata != nil && req.Metadata.UserID != "" {
		params.User = openai.String(req.Metadata.UserID)
	}
	if stream {
		// Without this the backend never reports token usage on the stream.
		params.StreamOptions = openai.ChatCompletionStreamOptionsParam{
			IncludeUsage: openai.Bool(true),
		}
	}

	return params, nil
}

// toBackendMessages flattens one Anthropic turn into backend messages. A turn
// can fan out: a user turn carrying tool results yields one tool-role message
// per result plus an optional user message for its remaining content.
func toBackendMessages(msg types.MessageParam) ([]openai.ChatCompletionMessageParamUnion, error) {
	switch msg.Role {
	case "assistant":
		return toAssistantMessages(msg.Content.Blocks())
	case "user":
		return toUserMessages(msg.Content.Blocks())
	default:
		return nil, &ValidationError{Field: "role", Reason: fmt.Sprintf("unsupported value %q", msg.Role)}
	}
}

func toAssistantMessages(blocks []types.ContentBlockParam) ([]openai.ChatCompletionMessageParamUnion, error) {
	assistant := openai.ChatCompletionAssistantMessageParam{}
	var text bytes.Buffer
	for _, block := range blocks {
		switch block.Type {
		case types.ContentTypeText:
			text.WriteString(block.Text)
		case types.ContentTypeToolUse:
			arguments := "{}"
			if len(block.Input) > 0 {
				arguments = string(block.Input)
			}
			assistant.ToolCalls = append(assistant.ToolCalls, openai.ChatCompletionMessageToolCallUnionParam{
				OfFunction: &openai.ChatCompletionMessageFunctionToolCallParam{
					ID: block.ID,
					Function: openai.ChatCompletionMessageFunctionToolCallFunctionParam{
						Name:      block.Name,
						Arguments: arguments,
					},
				},
			})
		default:
			return nil, &ValidationError{
				Field:  "content",
				Reason: fmt.Sprintf("unsupported assistant block type %q", block.Type),
			}
		}
	}
	if text.Len() > 0 {
		assistant.Content.OfString = openai.String(text.String())
	}
	return []openai.ChatCompletionMessageParamUnion{{OfAssistant: &assistant}}, nil
}

func toUserMessages(blocks []types.ContentBlockParam) ([]openai.ChatCompletionMessageParamUnion, error) {
	var (
		out   []openai.ChatCompletionMessageParamUnion
		parts []openai.ChatCompletionContentPartUnionParam
	)
	for _, block := range blocks {
		switch block.Type {
		case types.ContentTypeText:
			parts = append(parts, openai.TextContentPart(block.Text))
		case types.ContentTypeImage:
			url, err := imageURL(block.Source)
			if err != nil {
				return nil, err
			}
			parts = append(parts, openai.ImageContentPart(openai.ChatCompletionContentPartImageImageURLParam{URL: url}))
		case types.ContentTypeToolResult:
			// Tool results must precede the user's follow-up content so the
			// backend sees them adjacent to the assistant tool calls.
			content, err := flattenToolResult(block.Content)
			if err != nil {
				return nil, err
			}
			out = append(out, openai.ToolMessage(content, block.ToolUseID))
		default:
			return nil, &ValidationError{
				Field:  "content",
				Reason: fmt.Sprintf("unsupported user block type %q", block.Type),
			}
		}
	}
	if len(parts) > 0 {
		out = append(out, openai.UserMessage(parts))
	}
	return out, nil
}

// imageURL converts an Anthropic image source to an image_url value, encoding
// base64 sources as data URLs.
func imageURL(source *types.ImageSource) (string, error) {
	if source == nil {
		return "", &ValidationError{Field: "content", Reason: "image block without source"}
	}
	switch source.Type {
	case "url":
		return source.URL, nil
	case "base64":
		return fmt.Sprintf("data:%s;base64,%s", source.MediaType, source.Data), nil
	default:
		return "", &ValidationError{
			Field:  "content",
			Reason: fmt.Sprintf("unsupported image source type %q", source.Type),
		}
	}
}

// flattenToolResult reduces a tool_result content union (string or block
// array) to the plain string the tool-role message carries. Non-text blocks
// are serialized verbatim rather than rejected: tool output is opaque data on
// its way back to the model.
func flattenToolResult(content json.RawMessage) (string, error) {
	trimmed := bytes.TrimSpace(content)
	if len(trimmed) == 0 || string(trimmed) == "null" {
		return "", nil
	}
	if trimmed[0] == '"' {
		var s string
		if err := json.Unmarshal(trimmed, &s); err != nil {
			return "", &ValidationError{Field: "content", Reason: fmt.Sprintf("decode tool_result content: %v", err)}
		}
		return s, nil
	}
	if trimmed[0] == '[' {
		var blocks []types.ContentBlockParam
		if err := json.Unmarshal(trimmed, &blocks); err != nil {
			return "", &ValidationError{Field: "content", Reason: fmt.Sprintf("decode tool_result blocks: %v", err)}
		}
		var buf bytes.Buffer
		for _, block := range blocks {
			if block.Type == types.ContentTypeText {
				buf.WriteString(block.Text)
				continue
			}
			raw, err := json.Marshal(block)
			if err != nil {
				return "", fmt.Errorf("re-serialize tool_result block: %w", err)
			}
			buf.Write(raw)
		}
		return buf.String(), nil
	}
	return string(trimmed), nil
}
