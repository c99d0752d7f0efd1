package types

import "encoding/json"

// Stream event type discriminators, also used as the SSE "event:" name.
const (
	EventTypeMessageStart      = "message_start"
	EventTypeContentBlockStart = "content_block_start"
	EventTypeContentBlockDelta = "content_block_delta"
	EventTypeContentBlockStop  = "content_block_stop"
	EventTypeMessageDelta      = "message_delta"
	EventTypeMessageStop       = "message_stop"
	EventTypePing              = "ping"
	EventTypeError             = "error"
)

// StreamEvent is one event of the Anthropic Messages streaming protocol.
// EventType returns the SSE event name, which always equals the payload's
// "type" field.
type StreamEvent interface {
	EventType() string
}

// Compile-time check that every event variant implements StreamEvent.
var (
	_ StreamEvent = MessageStartEvent{}
	_ StreamEvent = ContentBlockStartEvent{}
	_ StreamEvent = ContentBlockDeltaEvent{}
	_ StreamEvent = ContentBlockStopEvent{}
	_ StreamEvent = MessageDeltaEvent{}
	_ StreamEvent = MessageStopEvent{}
	_ StreamEvent = PingEvent{}
	_ StreamEvent = ErrorEvent{}
)

// MessageStartEvent opens a streamed message with provisional metadata.
type MessageStartEvent struct {
	Type    string  `json:"type"`
	Message Message `json:"message"`
}

func (MessageStartEvent) EventType() string { return EventTypeMessageStart }

// NewMessageStartEvent builds a message_start carrying an empty content array
// and null stop_reason, as clients expect before any block opens.
func NewMessageStartEvent(msg Message) MessageStartEvent {
	msg.Type = "message"
	msg.Role = "assistant"
	if msg.Content == nil {
		msg.Content = []ContentBlock{}
	}
	return MessageStartEvent{Type: EventTypeMessageStart, Message: msg}
}

// ContentBlockStartEvent opens content block Index.
type ContentBlockStartEvent struct {
	Type         string       `json:"type"`
	Index        int          `json:"index"`
	ContentBlock ContentBlock `json:"content_block"`
}

func (ContentBlockStartEvent) EventType() string { return EventTypeContentBlockStart }

func NewContentBlockStartEvent(index int, block ContentBlock) ContentBlockStartEvent {
	return ContentBlockStartEvent{Type: EventTypeContentBlockStart, Index: index, ContentBlock: block}
}

// Delta type discriminators.
const (
	DeltaTypeText      = "text_delta"
	DeltaTypeInputJSON = "input_json_delta"
)

// BlockDelta is the delta union inside content_block_delta.
type BlockDelta struct {
	Type        string
	Text        string
	PartialJSON string
}

// MarshalJSON always includes the field the delta kind defines, even when
// empty, matching the upstream protocol's serialization.
func (d BlockDelta) MarshalJSON() ([]byte, error) {
	switch d.Type {
	case DeltaTypeInputJSON:
		return json.Marshal(struct {
			Type        string `json:"type"`
			PartialJSON string `json:"partial_json"`
		}{d.Type, d.PartialJSON})
	default:
		return json.Marshal(struct {
			Type string `json:"type"`
			Text string `json:"text"`
		}{d.Type, d.Text})
	}
}

// UnmarshalJSON mirrors MarshalJSON for test round-trips.
func (d *BlockDelta) UnmarshalJSON(data []byte) error {
	var raw struct {
		Type        string `json:"type"`
		Text        string `json:"text"`
		PartialJSON string `json:"partial_json"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	*d = BlockDelta{Type: raw.Type, Text: raw.Text, PartialJSON: raw.PartialJSON}
	return nil
}

// ContentBlockDeltaEvent appends an increment to block Index.
type ContentBlockDeltaEvent struct {
	Type  string     `json:"type"`
	Index int        `json:"index"`
	Delta BlockDelta `json:"delta"`
}

func (ContentBlockDeltaEvent) EventType() string { return EventTypeContentBlockDelta }

func NewTextDeltaEvent(index int, text string) ContentBlockDeltaEvent {
	return ContentBlockDeltaEvent{
		Type:  EventTypeContentBlockDelta,
		Index: index,
		Delta: BlockDelta{Type: DeltaTypeText, Text: text},
	}
}

func NewInputJSONDeltaEvent(index int, partialJSON string) ContentBlockDeltaEvent {
	return ContentBlockDeltaEvent{
		Type:  EventTypeContentBlockDelta,
		Index: index,
		Delta: BlockDelta{Type: DeltaTypeInputJSON, PartialJSON: partialJSON},
	}
}

// ContentBlockStopEvent closes block Index.
type ContentBlockStopEvent struct {
	Type  string `json:"type"`
	Index int    `json:"index"`
}

func (ContentBlockStopEvent) EventType() string { return EventTypeContentBlockStop }

func NewContentBlockStopEvent(index int) ContentBlockStopEvent {
	return ContentBlockStopEvent{Type: EventTypeContentBlockStop, Index: index}
}

// MessageDeltaBody carries the terminal stop metadata.
type MessageDeltaBody struct {
	StopReason   StopReason `json:"stop_reason"`
	StopSequence *string    `json:"stop_sequence"`
}

// MessageDeltaEvent delivers stop_reason and final usage before message_stop.
type MessageDeltaEvent struct {
	Type  string           `json:"type"`
	Delta MessageDeltaBody `json:"delta"`
	Usage Usage            `json:"usage"`
}

func (MessageDeltaEvent) EventType() string { return EventTypeMessageDelta }

func NewMessageDeltaEvent(stopReason StopReason, usage Usage) MessageDeltaEvent {
	return MessageDeltaEvent{
		Type:  EventTypeMessageDelta,
		Delta: MessageDeltaBody{StopReason: stopReason},
		Usage: usage,
	}
}

// MessageStopEvent terminates the stream.
type MessageStopEvent struct {
	Type string `json:"type"`
}

func (MessageStopEvent) EventType() string { return EventTypeMessageStop }

func NewMessageStopEvent() MessageStopEvent {
	return MessageStopEvent{Type: EventTypeMessageStop}
}

// PingEvent is a keepalive frame; clients ignore it.
type PingEvent struct {
	Type string `json:"type"`
}

func (PingEvent) EventType() string { return EventTypePing }

func NewPingEvent() PingEvent {
	return PingEvent{Type: EventTypePing}
}

// ErrorEvent is the top-level error frame. A stream that cannot reach
// message_stop must end with one of these instead of a bare connection close.
type ErrorEvent struct {
	Type string      `json:"type"`
	Err  ErrorDetail `json:"error"`
}

func (ErrorEvent) EventType() string { return EventTypeError }

func NewErrorEvent(detail ErrorDetail) ErrorEvent {
	return ErrorEvent{Type: EventTypeError, Err: detail}
}
