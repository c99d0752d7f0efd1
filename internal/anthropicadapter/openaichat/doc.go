// Package openaichat adapts Anthropic Messages requests to an
// OpenAI-Chat-Completions-compatible backend, enabling Anthropic SDK clients
// to work with any such inference server without code changes.
//
// The adapter handles:
//
//   - Request transformation: The system prompt moves into a leading system
//     message. Content blocks flatten to the backend's message shapes:
//     tool_result blocks become tool-role messages, assistant tool_use blocks
//     become assistant tool calls with re-serialized arguments.
//
//   - Tool calling: Anthropic tool definitions wrap into OpenAI function
//     definitions; input_schema passes through unchanged as JSON Schema.
//     Backend tool calls convert back to tool_use content blocks, with
//     generated IDs when the backend omits them.
//
//   - Streaming: Backend chunks are split into a closed set of events and
//     driven through a per-request state machine that emits the strictly
//     ordered Anthropic event sequence (message_start, content_block_start/
//     delta/stop per block, message_delta, message_stop). Tool call arguments
//     stream as minimal input_json_delta fragments assembled by one
//     incremental parser per in-flight call.
//
// # Adapters
//
// CreateMessageAdapter: Anthropic Messages → OpenAI Chat Completions
package openaichat
