package openaichat

import (
	"fmt"

	"github.com/google/uuid"
	"github.com/openai/openai-go/v3"
)

// backendEvent is the closed set of upstream happenings the converter reacts
// to. Splitting chunks into these variants keeps the state machine exhaustive:
// a new backend event kind is a new type here and a new case in the converter,
// not a silently ignored field.
type backendEvent interface {
	isBackendEvent()
}

type textDeltaEvent struct {
	text string
}

type toolCallStartEvent struct {
	id   string
	name string // may be empty; resolved later from argument fragments
}

type toolCallDeltaEvent struct {
	id       string
	fragment string
}

type toolCallEndEvent struct {
	id string
}

type usageEvent struct {
	inputTokens  int64
	outputTokens int64
}

type finishEvent struct {
	reason string
}

func (textDeltaEvent) isBackendEvent()     {}
func (toolCallStartEvent) isBackendEvent() {}
func (toolCallDeltaEvent) isBackendEvent() {}
func (toolCallEndEvent) isBackendEvent()   {}
func (usageEvent) isBackendEvent()         {}
func (finishEvent) isBackendEvent()        {}

// chunkSplitter turns backend chat completion chunks into backend events.
//
// The Chat Completions stream identifies tool calls positionally: the first
// chunk for a tool index carries id and name, later chunks only the index and
// an arguments fragment. The splitter resolves indices to stable call IDs so
// everything downstream is keyed by id, and synthesizes an ID when the
// backend omits one. The protocol has no per-call end marker; open calls are
// closed by the converter when the finish reason arrives.
type chunkSplitter struct {
	idsByIndex map[int64]string
}

func newChunkSplitter() *chunkSplitter {
	return &chunkSplitter{idsByIndex: make(map[int64]string)}
}

func (s *chunkSplitter) split(chunk openai.ChatCompletionChunk) []backendEvent {
	var events []backendEvent

	// Usage-only chunks have no choices (stream_options.include_usage).
	if chunk.Usage.PromptTokens > 0 || chunk.Usage.CompletionTokens > 0 {
		events = append(events, usageEvent{
			inputTokens:  chunk.Usage.PromptTokens,
			outputTokens: chunk.Usage.CompletionTokens,
		})
	}
	if len(chunk.Choices) == 0 {
		return events
	}

	choice := chunk.Choices[0]
	if choice.Delta.Content != "" {
		events = append(events, textDeltaEvent{text: choice.Delta.Content})
	}

	for _, call := range choice.Delta.ToolCalls {
		id, known := s.idsByIndex[call.Index]
		if !known {
			id = call.ID
			if id == "" {
				id = newToolCallID()
			}
			s.idsByIndex[call.Index] = id
			events = append(events, toolCallStartEvent{id: id, name: call.Function.Name})
		}
		if call.Function.Arguments != "" {
			events = append(events, toolCallDeltaEvent{id: id, fragment: call.Function.Arguments})
		}
	}

	if choice.FinishReason != "" {
		events = append(events, finishEvent{reason: choice.FinishReason})
	}

	return events
}

// newToolCallID generates an OpenAI-style tool call ID (format: call_<8-char-uuid>)
// for backends that stream tool calls without one.
func newToolCallID() string {
	return fmt.Sprintf("call_%s", uuid.New().String()[:8])
}
