package types

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// CreateMessageRequest is the Anthropic Messages API request body.
// Validation tags follow the documented API requirements; the gateway runs
// them through go-playground/validator before dispatching to an adapter.
type CreateMessageRequest struct {
	Model         string           `json:"model" validate:"required"`
	Messages      []MessageParam   `json:"messages" validate:"required,min=1,dive"`
	MaxTokens     int64            `json:"max_tokens" validate:"required,gt=0"`
	System        SystemPrompt     `json:"system,omitzero"`
	Tools         []ToolDefinition `json:"tools,omitempty" validate:"dive"`
	ToolChoice    *ToolChoice      `json:"tool_choice,omitempty"`
	Temperature   *float64         `json:"temperature,omitempty" validate:"omitempty,gte=0,lte=1"`
	TopP          *float64         `json:"top_p,omitempty" validate:"omitempty,gte=0,lte=1"`
	StopSequences []string         `json:"stop_sequences,omitempty"`
	Stream        bool             `json:"stream,omitempty"`
	Metadata      *Metadata        `json:"metadata,omitempty"`
}

// Metadata carries opaque request metadata. Only user_id is defined by the API.
type Metadata struct {
	UserID string `json:"user_id,omitempty"`
}

// MessageParam is a single conversation turn in the request.
type MessageParam struct {
	Role    string         `json:"role" validate:"required,oneof=user assistant"`
	Content MessageContent `json:"content"`
}

// MessageContent is the request-side content union: either a plain string or
// an array of content blocks. The wire shape is preserved so round-trips
// (tests, request logging) re-serialize what the client sent.
type MessageContent struct {
	text   string
	blocks []ContentBlockParam
	isText bool
}

// TextContent builds a MessageContent holding a plain string.
func TextContent(text string) MessageContent {
	return MessageContent{text: text, isText: true}
}

// BlocksContent builds a MessageContent holding structured blocks.
func BlocksContent(blocks ...ContentBlockParam) MessageContent {
	return MessageContent{blocks: blocks}
}

// Blocks returns the content normalized to block form. A plain string becomes
// a single text block.
func (c MessageContent) Blocks() []ContentBlockParam {
	if c.isText {
		if c.text == "" {
			return nil
		}
		return []ContentBlockParam{{Type: ContentTypeText, Text: c.text}}
	}
	return c.blocks
}

// UnmarshalJSON accepts both the string shorthand and the block array form.
func (c *MessageContent) UnmarshalJSON(data []byte) error {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 || string(trimmed) == "null" {
		*c = MessageContent{}
		return nil
	}
	if trimmed[0] == '"' {
		var s string
		if err := json.Unmarshal(trimmed, &s); err != nil {
			return fmt.Errorf("decode string content: %w", err)
		}
		*c = MessageContent{text: s, isText: true}
		return nil
	}
	var blocks []ContentBlockParam
	if err := json.Unmarshal(trimmed, &blocks); err != nil {
		return fmt.Errorf("decode content blocks: %w", err)
	}
	*c = MessageContent{blocks: blocks}
	return nil
}

// MarshalJSON emits the same shape that was decoded.
func (c MessageContent) MarshalJSON() ([]byte, error) {
	if c.isText {
		return json.Marshal(c.text)
	}
	if c.blocks == nil {
		return []byte("[]"), nil
	}
	return json.Marshal(c.blocks)
}

// Content block discriminator values used on both request and response paths.
const (
	ContentTypeText       = "text"
	ContentTypeToolUse    = "tool_use"
	ContentTypeToolResult = "tool_result"
	ContentTypeImage      = "image"
)

// ContentBlockParam is a request-side content block. A single struct covers
// all block kinds; Type selects which fields are meaningful.
type ContentBlockParam struct {
	Type string `json:"type" validate:"required"`

	// text
	Text string `json:"text,omitempty"`

	// tool_use (assistant turns echoing earlier tool calls)
	ID    string          `json:"id,omitempty"`
	Name  string          `json:"name,omitempty"`
	Input json.RawMessage `json:"input,omitempty"`

	// tool_result (user turns carrying tool output)
	ToolUseID string          `json:"tool_use_id,omitempty"`
	Content   json.RawMessage `json:"content,omitempty"`
	IsError   bool            `json:"is_error,omitempty"`

	// image
	Source *ImageSource `json:"source,omitempty"`
}

// ImageSource is the Anthropic image payload (base64 or URL).
type ImageSource struct {
	Type      string `json:"type"`
	MediaType string `json:"media_type,omitempty"`
	Data      string `json:"data,omitempty"`
	URL       string `json:"url,omitempty"`
}

// SystemPrompt is the system field union: string or array of text blocks.
type SystemPrompt struct {
	raw json.RawMessage
}

// UnmarshalJSON keeps the raw value; Text normalizes it on demand.
func (s *SystemPrompt) UnmarshalJSON(data []byte) error {
	s.raw = append(s.raw[:0], data...)
	return nil
}

// MarshalJSON re-emits the raw value as received.
func (s SystemPrompt) MarshalJSON() ([]byte, error) {
	if len(s.raw) == 0 {
		return []byte("null"), nil
	}
	return s.raw, nil
}

// IsZero reports whether no system prompt was supplied (for json omitzero).
func (s SystemPrompt) IsZero() bool {
	trimmed := bytes.TrimSpace(s.raw)
	return len(trimmed) == 0 || string(trimmed) == "null"
}

// SystemText builds a SystemPrompt from a plain string.
func SystemText(text string) SystemPrompt {
	raw, _ := json.Marshal(text)
	return SystemPrompt{raw: raw}
}

// Text flattens the system prompt to a single string, concatenating text
// blocks in order. Non-text blocks are rejected.
func (s SystemPrompt) Text() (string, error) {
	trimmed := bytes.TrimSpace(s.raw)
	if len(trimmed) == 0 || string(trimmed) == "null" {
		return "", nil
	}
	if trimmed[0] == '"' {
		var text string
		if err := json.Unmarshal(trimmed, &text); err != nil {
			return "", fmt.Errorf("decode system string: %w", err)
		}
		return text, nil
	}
	var blocks []ContentBlockParam
	if err := json.Unmarshal(trimmed, &blocks); err != nil {
		return "", fmt.Errorf("decode system blocks: %w", err)
	}
	var buf bytes.Buffer
	for i, block := range blocks {
		if block.Type != ContentTypeText {
			return "", fmt.Errorf("system block %d has unsupported type %q", i, block.Type)
		}
		if i > 0 {
			buf.WriteString("\n\n")
		}
		buf.WriteString(block.Text)
	}
	return buf.String(), nil
}

// ToolDefinition is an Anthropic tool declaration. InputSchema is JSON Schema
// and passes through to the backend unchanged, only the envelope differs.
type ToolDefinition struct {
	Name        string          `json:"name" validate:"required"`
	Description string          `json:"description,omitempty"`
	InputSchema json.RawMessage `json:"input_schema,omitempty"`
}

// Tool choice discriminator values.
const (
	ToolChoiceAuto = "auto"
	ToolChoiceAny  = "any"
	ToolChoiceTool = "tool"
	ToolChoiceNone = "none"
)

// ToolChoice controls how the model selects tools.
type ToolChoice struct {
	Type                   string `json:"type" validate:"required,oneof=auto any tool none"`
	Name                   string `json:"name,omitempty"`
	DisableParallelToolUse bool   `json:"disable_parallel_tool_use,omitempty"`
}
