package types

import "encoding/json"

// StopReason is the Anthropic stop_reason enumeration.
type StopReason string

const (
	StopReasonEndTurn      StopReason = "end_turn"
	StopReasonMaxTokens    StopReason = "max_tokens"
	StopReasonStopSequence StopReason = "stop_sequence"
	StopReasonToolUse      StopReason = "tool_use"
)

// Message is the Anthropic Messages API response body. It doubles as the
// message object embedded in the message_start stream event, where StopReason
// and StopSequence are serialized as explicit nulls.
type Message struct {
	ID           string         `json:"id"`
	Type         string         `json:"type"`
	Role         string         `json:"role"`
	Model        string         `json:"model"`
	Content      []ContentBlock `json:"content"`
	StopReason   *StopReason    `json:"stop_reason"`
	StopSequence *string        `json:"stop_sequence"`
	Usage        Usage          `json:"usage"`
}

// ContentBlock is a response-side content block: a text span or one tool
// invocation. Index identity lives in the enclosing array (non-streaming) or
// in the stream event (streaming).
type ContentBlock struct {
	Type string `json:"type"`

	// text
	Text string `json:"text,omitempty"`

	// tool_use
	ID    string          `json:"id,omitempty"`
	Name  string          `json:"name,omitempty"`
	Input json.RawMessage `json:"input,omitempty"`
}

// MarshalJSON pins field presence per block kind: text blocks always carry
// "text" (even when empty, as in content_block_start) and tool_use blocks
// always carry "input" (an empty object until arguments finish streaming).
func (b ContentBlock) MarshalJSON() ([]byte, error) {
	switch b.Type {
	case ContentTypeText:
		return json.Marshal(struct {
			Type string `json:"type"`
			Text string `json:"text"`
		}{b.Type, b.Text})
	case ContentTypeToolUse:
		input := b.Input
		if len(input) == 0 {
			input = json.RawMessage(`{}`)
		}
		return json.Marshal(struct {
			Type  string          `json:"type"`
			ID    string          `json:"id"`
			Name  string          `json:"name"`
			Input json.RawMessage `json:"input"`
		}{b.Type, b.ID, b.Name, input})
	default:
		type plain ContentBlock
		return json.Marshal(plain(b))
	}
}

// Usage carries token accounting for the turn.
type Usage struct {
	InputTokens  int64 `json:"input_tokens"`
	OutputTokens int64 `json:"output_tokens"`
}
