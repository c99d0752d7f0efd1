package openaichat

import (
	"context"
	"strings"
	"testing"

	"github.com/openai/openai-go/v3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/claudebridge/claudebridge/internal/anthropicadapter/types"
)

// runConverter drives a converter through events and the final flush,
// collecting everything it emits.
func runConverter(t *testing.T, opts converterOptions, events []backendEvent) []types.StreamEvent {
	t.Helper()
	ctx := context.Background()
	conv := newStreamConverter("test-model", opts)

	var out []types.StreamEvent
	emit := func(ev types.StreamEvent) bool {
		out = append(out, ev)
		return true
	}
	for _, ev := range events {
		require.True(t, conv.handle(ctx, ev, emit))
	}
	require.True(t, conv.flush(ctx, emit))
	return out
}

func eventTypes(events []types.StreamEvent) []string {
	out := make([]string, len(events))
	for i, ev := range events {
		out[i] = ev.EventType()
	}
	return out
}

func TestConverterTextOnly(t *testing.T) {
	out := runConverter(t, converterOptions{}, []backendEvent{
		textDeltaEvent{text: "Hel"},
		textDeltaEvent{text: "lo"},
		finishEvent{reason: "stop"},
		usageEvent{inputTokens: 10, outputTokens: 5},
	})

	require.Equal(t, []string{
		"message_start",
		"content_block_start",
		"content_block_delta",
		"content_block_delta",
		"content_block_stop",
		"message_delta",
		"message_stop",
	}, eventTypes(out))

	start := out[1].(types.ContentBlockStartEvent)
	assert.Equal(t, 0, start.Index)
	assert.Equal(t, types.ContentTypeText, start.ContentBlock.Type)

	assert.Equal(t, "Hel", out[2].(types.ContentBlockDeltaEvent).Delta.Text)
	assert.Equal(t, "lo", out[3].(types.ContentBlockDeltaEvent).Delta.Text)

	delta := out[5].(types.MessageDeltaEvent)
	assert.Equal(t, types.StopReasonEndTurn, delta.Delta.StopReason)
	assert.Equal(t, int64(10), delta.Usage.InputTokens)
	assert.Equal(t, int64(5), delta.Usage.OutputTokens)
}

func TestConverterToolCallMinimalDeltas(t *testing.T) {
	out := runConverter(t, converterOptions{}, []backendEvent{
		toolCallStartEvent{id: "call_1", name: "get_weather"},
		toolCallDeltaEvent{id: "call_1", fragment: `{"location"`},
		toolCallDeltaEvent{id: "call_1", fragment: `: "Paris"}`},
		finishEvent{reason: "tool_calls"},
	})

	require.Equal(t, []string{
		"message_start",
		"content_block_start",
		"content_block_delta",
		"content_block_delta",
		"content_block_stop",
		"message_delta",
		"message_stop",
	}, eventTypes(out))

	start := out[1].(types.ContentBlockStartEvent)
	assert.Equal(t, types.ContentTypeToolUse, start.ContentBlock.Type)
	assert.Equal(t, "call_1", start.ContentBlock.ID)
	assert.Equal(t, "get_weather", start.ContentBlock.Name)

	assert.Equal(t, `{"location"`, out[2].(types.ContentBlockDeltaEvent).Delta.PartialJSON)
	assert.Equal(t, `: "Paris"}`, out[3].(types.ContentBlockDeltaEvent).Delta.PartialJSON)

	assert.Equal(t, types.StopReasonToolUse, out[5].(types.MessageDeltaEvent).Delta.StopReason)
}

func TestConverterParallelToolCalls(t *testing.T) {
	out := runConverter(t, converterOptions{}, []backendEvent{
		textDeltaEvent{text: "Checking both."},
		toolCallStartEvent{id: "call_a", name: "weather"},
		toolCallStartEvent{id: "call_b", name: "time"},
		toolCallDeltaEvent{id: "call_b", fragment: `{"tz":`},
		toolCallDeltaEvent{id: "call_a", fragment: `{"city":"SF"}`},
		toolCallDeltaEvent{id: "call_b", fragment: `"CET"}`},
		finishEvent{reason: "tool_calls"},
	})

	// Indices strictly increase in order of first emission.
	var indices []int
	deltasByIndex := map[int][]string{}
	for _, ev := range out {
		switch ev := ev.(type) {
		case types.ContentBlockStartEvent:
			indices = append(indices, ev.Index)
		case types.ContentBlockDeltaEvent:
			if ev.Delta.Type == types.DeltaTypeInputJSON {
				deltasByIndex[ev.Index] = append(deltasByIndex[ev.Index], ev.Delta.PartialJSON)
			}
		}
	}
	assert.Equal(t, []int{0, 1, 2}, indices)

	// Fragments route to their own call, interleaving preserved per block.
	assert.Equal(t, `{"city":"SF"}`, strings.Join(deltasByIndex[1], ""))
	assert.Equal(t, `{"tz":"CET"}`, strings.Join(deltasByIndex[2], ""))

	// Both tool blocks close before the terminal pair, in open order.
	n := len(out)
	assert.Equal(t, "message_stop", out[n-1].EventType())
	assert.Equal(t, "message_delta", out[n-2].EventType())
	assert.Equal(t, 2, out[n-3].(types.ContentBlockStopEvent).Index)
	assert.Equal(t, 1, out[n-4].(types.ContentBlockStopEvent).Index)
}

func TestConverterBufferedNameFromArguments(t *testing.T) {
	out := runConverter(t, converterOptions{nameStrategy: ToolNameBuffered}, []backendEvent{
		toolCallStartEvent{id: "call_1"},
		toolCallDeltaEvent{id: "call_1", fragment: `{"na`},
		toolCallDeltaEvent{id: "call_1", fragment: `me":"search","q":"x"}`},
		finishEvent{reason: "tool_calls"},
	})

	require.Equal(t, []string{
		"message_start",
		"content_block_start",
		"content_block_delta",
		"content_block_stop",
		"message_delta",
		"message_stop",
	}, eventTypes(out))

	start := out[1].(types.ContentBlockStartEvent)
	assert.Equal(t, "search", start.ContentBlock.Name)

	// The deferred fragments arrive as one catch-up delta.
	assert.Equal(t, `{"name":"search","q":"x"}`, out[2].(types.ContentBlockDeltaEvent).Delta.PartialJSON)
}

func TestConverterBufferedNameNeverResolves(t *testing.T) {
	out := runConverter(t, converterOptions{nameStrategy: ToolNameBuffered}, []backendEvent{
		toolCallStartEvent{id: "call_1"},
		toolCallDeltaEvent{id: "call_1", fragment: `{"q":"x"}`},
		finishEvent{reason: "tool_calls"},
	})

	// The block opens at close time with the placeholder name; no data is lost.
	start := out[1].(types.ContentBlockStartEvent)
	assert.Equal(t, "Unknown", start.ContentBlock.Name)
	assert.Equal(t, `{"q":"x"}`, out[2].(types.ContentBlockDeltaEvent).Delta.PartialJSON)
	assert.Equal(t, "content_block_stop", out[3].EventType())
}

func TestConverterEagerPlaceholderName(t *testing.T) {
	out := runConverter(t, converterOptions{nameStrategy: ToolNameEager}, []backendEvent{
		toolCallStartEvent{id: "call_1"},
		toolCallDeltaEvent{id: "call_1", fragment: `{"name":"late"}`},
		finishEvent{reason: "tool_calls"},
	})

	// The block opened before the name streamed; there is no rename event.
	start := out[1].(types.ContentBlockStartEvent)
	assert.Equal(t, "Unknown", start.ContentBlock.Name)
}

func TestConverterOrphanEventsDropped(t *testing.T) {
	out := runConverter(t, converterOptions{}, []backendEvent{
		toolCallDeltaEvent{id: "ghost", fragment: `{"a":1}`},
		toolCallEndEvent{id: "ghost"},
		finishEvent{reason: "stop"},
	})

	require.Equal(t, []string{
		"message_start",
		"message_delta",
		"message_stop",
	}, eventTypes(out))
}

func TestConverterDuplicateToolCallStartDropped(t *testing.T) {
	out := runConverter(t, converterOptions{}, []backendEvent{
		toolCallStartEvent{id: "call_1", name: "first"},
		toolCallStartEvent{id: "call_1", name: "second"},
		finishEvent{reason: "tool_calls"},
	})

	var starts []types.ContentBlockStartEvent
	for _, ev := range out {
		if s, ok := ev.(types.ContentBlockStartEvent); ok {
			starts = append(starts, s)
		}
	}
	require.Len(t, starts, 1)
	assert.Equal(t, "first", starts[0].ContentBlock.Name)
}

func TestConverterOverflowClosesBlockStreamContinues(t *testing.T) {
	out := runConverter(t, converterOptions{maxToolArgumentBytes: 10}, []backendEvent{
		toolCallStartEvent{id: "call_1", name: "big"},
		toolCallDeltaEvent{id: "call_1", fragment: `{"a":1`},
		toolCallDeltaEvent{id: "call_1", fragment: `23456789}`}, // pushes past the limit
		textDeltaEvent{text: "still here"},
		finishEvent{reason: "stop"},
	})

	require.Equal(t, []string{
		"message_start",
		"content_block_start", // tool block
		"content_block_delta", // bytes accepted before the limit
		"content_block_stop",  // closed on overflow
		"content_block_start", // text block keeps streaming
		"content_block_delta",
		"content_block_stop",
		"message_delta",
		"message_stop",
	}, eventTypes(out))

	assert.Equal(t, `{"a":1`, out[2].(types.ContentBlockDeltaEvent).Delta.PartialJSON)
	assert.Equal(t, 1, out[4].(types.ContentBlockStartEvent).Index)
}

func TestConverterParseFallbackEmitsRawBuffer(t *testing.T) {
	out := runConverter(t, converterOptions{}, []backendEvent{
		toolCallStartEvent{id: "call_1", name: "broken"},
		toolCallDeltaEvent{id: "call_1", fragment: `{"a": [1`},
		finishEvent{reason: "tool_calls"},
	})

	// Incremental delta first, then the full raw buffer as the final delta
	// before the stop, so nothing is silently lost.
	require.Equal(t, []string{
		"message_start",
		"content_block_start",
		"content_block_delta",
		"content_block_delta",
		"content_block_stop",
		"message_delta",
		"message_stop",
	}, eventTypes(out))
	assert.Equal(t, `{"a": [1`, out[3].(types.ContentBlockDeltaEvent).Delta.PartialJSON)
}

func TestConverterParseFallbackDisabled(t *testing.T) {
	out := runConverter(t, converterOptions{disableParseFallback: true}, []backendEvent{
		toolCallStartEvent{id: "call_1", name: "broken"},
		toolCallDeltaEvent{id: "call_1", fragment: `{"a": [1`},
		finishEvent{reason: "tool_calls"},
	})

	require.Equal(t, []string{
		"message_start",
		"content_block_start",
		"content_block_delta",
		"content_block_stop",
		"message_delta",
		"message_stop",
	}, eventTypes(out))
}

func TestConverterFullRetransmissionMode(t *testing.T) {
	out := runConverter(t, converterOptions{disableIncremental: true}, []backendEvent{
		toolCallStartEvent{id: "call_1", name: "f"},
		toolCallDeltaEvent{id: "call_1", fragment: `{"a":`},
		toolCallDeltaEvent{id: "call_1", fragment: `1}`},
		finishEvent{reason: "tool_calls"},
	})

	var deltas []string
	for _, ev := range out {
		if d, ok := ev.(types.ContentBlockDeltaEvent); ok {
			deltas = append(deltas, d.Delta.PartialJSON)
		}
	}
	assert.Equal(t, []string{`{"a":`, `{"a":1}`}, deltas)
}

func TestConverterFullRetransmissionDeferredBlock(t *testing.T) {
	out := runConverter(t, converterOptions{
		nameStrategy:       ToolNameBuffered,
		disableIncremental: true,
	}, []backendEvent{
		toolCallStartEvent{id: "call_1"},
		toolCallDeltaEvent{id: "call_1", fragment: `{"q":`},
		toolCallDeltaEvent{id: "call_1", fragment: `"x"}`},
		finishEvent{reason: "tool_calls"},
	})

	// The name never resolves, so the block stays deferred until the finish.
	// The close must still deliver the accumulated arguments.
	require.Equal(t, []string{
		"message_start",
		"content_block_start",
		"content_block_delta",
		"content_block_stop",
		"message_delta",
		"message_stop",
	}, eventTypes(out))

	start := out[1].(types.ContentBlockStartEvent)
	assert.Equal(t, "Unknown", start.ContentBlock.Name)
	assert.Equal(t, `{"q":"x"}`, out[2].(types.ContentBlockDeltaEvent).Delta.PartialJSON)
}

func TestConverterStreamEndsWithoutFinish(t *testing.T) {
	out := runConverter(t, converterOptions{}, []backendEvent{
		textDeltaEvent{text: "partial"},
	})

	require.Equal(t, []string{
		"message_start",
		"content_block_start",
		"content_block_delta",
		"content_block_stop",
		"message_delta",
		"message_stop",
	}, eventTypes(out))
	assert.Equal(t, types.StopReasonEndTurn, out[4].(types.MessageDeltaEvent).Delta.StopReason)
}

func TestConverterEmptyStream(t *testing.T) {
	out := runConverter(t, converterOptions{}, nil)

	require.Equal(t, []string{
		"message_start",
		"message_delta",
		"message_stop",
	}, eventTypes(out))
}

func TestMapFinishReason(t *testing.T) {
	ctx := context.Background()
	tests := map[string]types.StopReason{
		"stop":           types.StopReasonEndTurn,
		"tool_calls":     types.StopReasonToolUse,
		"function_call":  types.StopReasonToolUse,
		"length":         types.StopReasonMaxTokens,
		"content_filter": types.StopReasonStopSequence,
		"":               types.StopReasonEndTurn,
		"mystery_reason": types.StopReasonEndTurn,
	}
	for reason, want := range tests {
		assert.Equal(t, want, mapFinishReason(ctx, reason), "reason %q", reason)
	}
}

func TestChunkSplitter(t *testing.T) {
	splitter := newChunkSplitter()

	events := splitter.split(openai.ChatCompletionChunk{
		Choices: []openai.ChatCompletionChunkChoice{{
			Delta: openai.ChatCompletionChunkChoiceDelta{
				Content: "hi",
				ToolCalls: []openai.ChatCompletionChunkChoiceDeltaToolCall{{
					Index: 0,
					ID:    "call_1",
					Function: openai.ChatCompletionChunkChoiceDeltaToolCallFunction{
						Name:      "f",
						Arguments: `{"a"`,
					},
				}},
			},
		}},
	})
	require.Equal(t, []backendEvent{
		textDeltaEvent{text: "hi"},
		toolCallStartEvent{id: "call_1", name: "f"},
		toolCallDeltaEvent{id: "call_1", fragment: `{"a"`},
	}, events)

	// Later chunks carry only the positional index; the splitter resolves it
	// to the stable call ID.
	events = splitter.split(openai.ChatCompletionChunk{
		Choices: []openai.ChatCompletionChunkChoice{{
			Delta: openai.ChatCompletionChunkChoiceDelta{
				ToolCalls: []openai.ChatCompletionChunkChoiceDeltaToolCall{{
					Index: 0,
					Function: openai.ChatCompletionChunkChoiceDeltaToolCallFunction{
						Arguments: `:1}`,
					},
				}},
			},
			FinishReason: "tool_calls",
		}},
	})
	require.Equal(t, []backendEvent{
		toolCallDeltaEvent{id: "call_1", fragment: `:1}`},
		finishEvent{reason: "tool_calls"},
	}, events)

	// Usage-only chunk (no choices).
	events = splitter.split(openai.ChatCompletionChunk{
		Usage: openai.CompletionUsage{PromptTokens: 7, CompletionTokens: 3},
	})
	require.Equal(t, []backendEvent{
		usageEvent{inputTokens: 7, outputTokens: 3},
	}, events)
}

func TestChunkSplitterSynthesizesMissingID(t *testing.T) {
	splitter := newChunkSplitter()
	events := splitter.split(openai.ChatCompletionChunk{
		Choices: []openai.ChatCompletionChunkChoice{{
			Delta: openai.ChatCompletionChunkChoiceDelta{
				ToolCalls: []openai.ChatCompletionChunkChoiceDeltaToolCall{{
					Index: 0,
					Function: openai.ChatCompletionChunkChoiceDeltaToolCallFunction{
						Name: "f",
					},
				}},
			},
		}},
	})
	require.Len(t, events, 1)
	start, ok := events[0].(toolCallStartEvent)
	require.True(t, ok)
	assert.True(t, strings.HasPrefix(start.id, "call_"))
	assert.Len(t, start.id, len("call_")+8)
}
