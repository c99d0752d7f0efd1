// Package types provides Anthropic Messages API types for server-side
// request/response handling.
//
// This package hand-writes the wire types rather than reusing the
// anthropic-sdk-go SDK:
//
//  1. SERVER-SIDE vs CLIENT-SIDE: The anthropic-sdk-go SDK is designed for
//     making outbound API calls TO Anthropic. This gateway receives inbound
//     requests FROM Anthropic clients and translates them to an
//     OpenAI-compatible backend. The SDK's client-oriented design would add
//     unnecessary complexity for server-side JSON decoding.
//
//  2. FIELD PATTERNS: SDK request types use param.Opt[T] wrappers and custom
//     marshaling for optional fields. Hand-written types use standard Go
//     pointers and json struct tags, which work naturally with
//     json.NewDecoder() on the request path and json.Marshal on the SSE path.
//
//  3. WIRE CONTROL: Streaming events must be byte-compatible with what
//     Anthropic API clients expect (field presence, explicit nulls). Owning
//     the types keeps that serialization under direct control.
package types
