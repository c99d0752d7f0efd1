package openaichat

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/claudebridge/claudebridge/internal/anthropicadapter/types"
)

// ToolNameStrategy selects how a tool_use block is named when the backend
// streams a tool call without a name.
type ToolNameStrategy string

const (
	// ToolNameBuffered defers content_block_start until the incremental parser
	// resolves the name from argument fragments.
	ToolNameBuffered ToolNameStrategy = "buffered"
	// ToolNameEager opens the block immediately with a placeholder name. The
	// protocol has no rename event, so the placeholder is final.
	ToolNameEager ToolNameStrategy = "eager"
)

// placeholderToolName is used when a block must open before any name is known.
const placeholderToolName = "Unknown"

// converterOptions tune one streaming conversion.
type converterOptions struct {
	maxToolArgumentBytes int
	nameStrategy         ToolNameStrategy
	disableIncremental   bool
	disableParseFallback bool
}

// converterState is the coarse lifecycle of one streamed message.
// stateStopped is terminal; message_start and message_stop are each emitted
// exactly once.
type converterState int

const (
	stateIdle converterState = iota
	stateStarted
	stateFinished // blocks closed, awaiting trailing usage before the terminal pair
	stateStopped
)

// openToolCall is the per-tool-call conversion state, created on
// tool-call-start and destroyed once its content_block_stop is emitted.
type openToolCall struct {
	id      string
	index   int // -1 until the content_block_start is emitted
	name    string
	started bool
	buf     *argumentBuffer
}

// streamConverter reshapes backend events into the strictly ordered Anthropic
// streaming event sequence. One converter exists per request; all mutable
// state lives here, keyed by tool call ID for in-flight calls, so parallel
// tool calls stream independently without cross-contamination.
type streamConverter struct {
	opts      converterOptions
	model     string
	messageID string

	state        converterState
	nextIndex    int
	textIndex    int // -1 while no text block is open
	calls        map[string]*openToolCall
	order        []string // call IDs in open order, for deterministic close at finish
	usage        types.Usage
	finishReason string
}

func newStreamConverter(model string, opts converterOptions) *streamConverter {
	if opts.nameStrategy == "" {
		opts.nameStrategy = ToolNameBuffered
	}
	return &streamConverter{
		opts:      opts,
		model:     model,
		messageID: newMessageID(),
		textIndex: -1,
		calls:     make(map[string]*openToolCall),
	}
}

// handle consumes one backend event, emitting zero or more Anthropic events.
// It returns false only when emit reported that the consumer stopped; every
// malformed or unexpected upstream event is logged and dropped, never allowed
// to corrupt other blocks or escape as a panic.
func (c *streamConverter) handle(ctx context.Context, ev backendEvent, emit func(types.StreamEvent) bool) bool {
	if c.state == stateStopped {
		slog.DebugContext(ctx, "dropping backend event after message_stop", "event", fmt.Sprintf("%T", ev))
		return true
	}
	if c.state == stateIdle {
		start := types.NewMessageStartEvent(types.Message{
			ID:    c.messageID,
			Model: c.model,
		})
		if !emit(start) {
			return false
		}
		c.state = stateStarted
	}

	if c.state == stateFinished {
		// The backend's usage-only chunk trails the finish reason; content
		// after the finish is a protocol violation and is dropped.
		switch ev := ev.(type) {
		case usageEvent:
			c.recordUsage(ev)
		default:
			slog.DebugContext(ctx, "dropping backend event after finish reason", "event", fmt.Sprintf("%T", ev))
		}
		return true
	}

	switch ev := ev.(type) {
	case textDeltaEvent:
		if ev.text == "" {
			return true
		}
		if c.textIndex < 0 {
			c.textIndex = c.allocIndex()
			if !emit(types.NewContentBlockStartEvent(c.textIndex, types.ContentBlock{Type: types.ContentTypeText})) {
				return false
			}
		}
		return emit(types.NewTextDeltaEvent(c.textIndex, ev.text))

	case toolCallStartEvent:
		if _, exists := c.calls[ev.id]; exists {
			slog.DebugContext(ctx, "duplicate tool call start dropped", "tool_call_id", ev.id)
			return true
		}
		call := &openToolCall{
			id:    ev.id,
			index: -1,
			name:  ev.name,
			buf:   newArgumentBuffer(c.opts.maxToolArgumentBytes),
		}
		c.calls[ev.id] = call
		c.order = append(c.order, ev.id)
		if call.name == "" && c.opts.nameStrategy == ToolNameBuffered {
			// Defer content_block_start until fragments resolve the name.
			return true
		}
		return c.openToolBlock(call, emit)

	case toolCallDeltaEvent:
		call, ok := c.calls[ev.id]
		if !ok {
			slog.DebugContext(ctx, "orphan tool call delta dropped", "tool_call_id", ev.id)
			return true
		}
		return c.feedToolCall(ctx, call, ev.fragment, emit)

	case toolCallEndEvent:
		call, ok := c.calls[ev.id]
		if !ok {
			slog.DebugContext(ctx, "orphan tool call end dropped", "tool_call_id", ev.id)
			return true
		}
		return c.closeToolCall(ctx, call, emit)

	case usageEvent:
		c.recordUsage(ev)
		return true

	case finishEvent:
		c.finishReason = ev.reason
		if !c.closeOpenBlocks(ctx, emit) {
			return false
		}
		c.state = stateFinished
		return true

	default:
		slog.DebugContext(ctx, "unhandled backend event dropped", "event", fmt.Sprintf("%T", ev))
		return true
	}
}

// allocIndex hands out content block indices in emission order. Indices are
// never reused within a message.
func (c *streamConverter) allocIndex() int {
	index := c.nextIndex
	c.nextIndex++
	return index
}

// openToolBlock emits the content_block_start for a tool call, resolving the
// name from the argument buffer when possible and falling back to the
// placeholder otherwise. There is no rename event, so whatever name the start
// carries is final.
func (c *streamConverter) openToolBlock(call *openToolCall, emit func(types.StreamEvent) bool) bool {
	if call.name == "" {
		if resolved, ok := call.buf.name(); ok {
			call.name = resolved
		} else {
			call.name = placeholderToolName
		}
	}
	call.index = c.allocIndex()
	call.started = true
	return emit(types.NewContentBlockStartEvent(call.index, types.ContentBlock{
		Type: types.ContentTypeToolUse,
		ID:   call.id,
		Name: call.name,
	}))
}

// feedToolCall routes an argument fragment to the call's incremental parser
// and emits the minimal delta. In full-retransmission mode the whole
// accumulated buffer is sent instead; output is identical after client-side
// assembly, at higher bandwidth cost.
func (c *streamConverter) feedToolCall(ctx context.Context, call *openToolCall, fragment string, emit func(types.StreamEvent) bool) bool {
	if err := call.buf.append(fragment); err != nil {
		slog.WarnContext(ctx, "tool call argument buffer overflow, closing block",
			"tool_call_id", call.id, "error", err)
		return c.failToolCall(call, emit)
	}

	if !call.started {
		if _, ok := call.buf.name(); !ok && c.opts.nameStrategy == ToolNameBuffered {
			return true // still waiting for the name
		}
		if !c.openToolBlock(call, emit) {
			return false
		}
	}

	if c.opts.disableIncremental {
		call.buf.take() // keep the cursor in step for the close-time flush
		return emit(types.NewInputJSONDeltaEvent(call.index, call.buf.cumulative()))
	}
	delta := call.buf.take()
	if delta == "" {
		return true
	}
	return emit(types.NewInputJSONDeltaEvent(call.index, delta))
}

// failToolCall closes an overflowed call: whatever accumulated before the
// limit is flushed so nothing is silently dropped, then the block stops and
// the rest of the stream continues unaffected.
func (c *streamConverter) failToolCall(call *openToolCall, emit func(types.StreamEvent) bool) bool {
	if !call.started {
		if !c.openToolBlock(call, emit) {
			return false
		}
	}
	// A deferred block reaches here with everything still unsent. The
	// remainder then equals the cumulative buffer, so the flush is correct in
	// full-retransmission mode too; for started blocks in that mode the
	// cursor is already in step and the remainder is empty.
	if remainder := call.buf.take(); remainder != "" {
		if !emit(types.NewInputJSONDeltaEvent(call.index, remainder)) {
			return false
		}
	}
	c.removeCall(call.id)
	return emit(types.NewContentBlockStopEvent(call.index))
}

// closeToolCall finalizes a call's arguments and emits its content_block_stop,
// destroying the per-call state. A parse failure falls back to re-emitting the
// raw accumulated buffer verbatim (unless disabled) so the data survives the
// failure; the stream always reaches the stop event.
func (c *streamConverter) closeToolCall(ctx context.Context, call *openToolCall, emit func(types.StreamEvent) bool) bool {
	if !call.started {
		if !c.openToolBlock(call, emit) {
			return false
		}
	}
	// Same remainder rule as failToolCall: a block whose start was deferred
	// has sent nothing yet, and its remainder is the full buffer in either
	// emission mode.
	if remainder := call.buf.take(); remainder != "" {
		if !emit(types.NewInputJSONDeltaEvent(call.index, remainder)) {
			return false
		}
	}

	if _, err := call.buf.finish(); err != nil {
		var parseErr *ArgumentParseError
		if errors.As(err, &parseErr) && !c.opts.disableParseFallback {
			slog.WarnContext(ctx, "tool call arguments failed to parse, passing raw buffer through",
				"tool_call_id", call.id, "error", err)
			if !emit(types.NewInputJSONDeltaEvent(call.index, parseErr.Raw)) {
				return false
			}
		} else {
			slog.WarnContext(ctx, "tool call arguments failed to parse",
				"tool_call_id", call.id, "error", err)
		}
	}

	c.removeCall(call.id)
	return emit(types.NewContentBlockStopEvent(call.index))
}

// closeOpenBlocks emits content_block_stop for the text block and every
// still-open tool call, in their open order.
func (c *streamConverter) closeOpenBlocks(ctx context.Context, emit func(types.StreamEvent) bool) bool {
	if c.textIndex >= 0 {
		if !emit(types.NewContentBlockStopEvent(c.textIndex)) {
			return false
		}
		c.textIndex = -1
	}
	for _, id := range c.order {
		call, ok := c.calls[id]
		if !ok {
			continue // already closed
		}
		if !c.closeToolCall(ctx, call, emit) {
			return false
		}
	}
	return true
}

func (c *streamConverter) recordUsage(ev usageEvent) {
	if ev.inputTokens > 0 {
		c.usage.InputTokens = ev.inputTokens
	}
	if ev.outputTokens > 0 {
		c.usage.OutputTokens = ev.outputTokens
	}
}

// flush terminates the message once the backend stream is exhausted: it closes
// anything still open (a stream that died without a finish reason), then emits
// the message_delta and message_stop pair exactly once. Terminal emission
// waits for stream end because the backend reports usage in a chunk trailing
// the finish reason.
func (c *streamConverter) flush(ctx context.Context, emit func(types.StreamEvent) bool) bool {
	switch c.state {
	case stateStopped:
		return true
	case stateIdle:
		start := types.NewMessageStartEvent(types.Message{
			ID:    c.messageID,
			Model: c.model,
		})
		if !emit(start) {
			return false
		}
	case stateStarted:
		if !c.closeOpenBlocks(ctx, emit) {
			return false
		}
	}

	if !emit(types.NewMessageDeltaEvent(mapFinishReason(ctx, c.finishReason), c.usage)) {
		return false
	}
	if !emit(types.NewMessageStopEvent()) {
		return false
	}
	c.state = stateStopped
	return true
}

func (c *streamConverter) removeCall(id string) {
	delete(c.calls, id)
}
