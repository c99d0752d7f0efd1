package openaichat

import (
	"context"
	"errors"
	"iter"
	"net/http"

	"github.com/claudebridge/claudebridge/internal/anthropicadapter"
	"github.com/claudebridge/claudebridge/internal/anthropicadapter/types"
)

// Config holds the adapter's backend binding and conversion tuning.
type Config struct {
	// BaseURL is the backend's OpenAI-compatible API root, including the
	// version prefix (for example http://localhost:8000/v1).
	BaseURL string
	// APIKey is the static bearer key sent to the backend. May be empty for
	// unauthenticated local backends.
	APIKey string

	// MaxToolArgumentBytes caps the accumulated argument JSON per tool call.
	// Zero means DefaultMaxToolArgumentBytes.
	MaxToolArgumentBytes int
	// ToolNameStrategy selects eager or buffered naming for tool calls that
	// stream without a name. Empty means buffered.
	ToolNameStrategy ToolNameStrategy
	// DisableIncremental switches input_json_delta emission to full
	// retransmission of the accumulated buffer on every fragment.
	DisableIncremental bool
	// DisableParseFallback drops the raw-buffer recovery for tool call
	// arguments that fail to parse.
	DisableParseFallback bool
}

// Adapter transforms Anthropic Messages requests into backend chat completion
// calls and the responses back. It is stateless: per-request conversion state
// lives in the converter created inside each call.
type Adapter struct {
	cfg Config
}

var _ anthropicadapter.CreateMessageAdapter = (*Adapter)(nil)

func New(cfg Config) *Adapter {
	return &Adapter{cfg: cfg}
}

// ProcessRequest handles the buffered (non-streaming) path.
func (a *Adapter) ProcessRequest(ctx context.Context, clientReq anthropicadapter.CreateMessageRequest, transport http.RoundTripper) (*anthropicadapter.CreateMessageResponse, error) {
	params, err := toChatCompletionParams(&clientReq, clientReq.Model, false)
	if err != nil {
		return nil, toAnthropicError(err)
	}

	client := newClient(a.cfg.BaseURL, a.cfg.APIKey, transport)
	completion, err := client.Chat.Completions.New(ctx, *params)
	if err != nil {
		return nil, toAnthropicError(err)
	}

	msg, err := toMessage(ctx, completion, clientReq.Model, !a.cfg.DisableParseFallback)
	if err != nil {
		return nil, toAnthropicError(err)
	}
	return msg, nil
}

// ProcessStreamingRequest handles the streaming path. The returned iterator is
// lazy and single-pass: the backend call starts on first iteration and events
// are yielded as chunks arrive. A stream that cannot reach message_stop yields
// a terminal error instead; client disconnects (context canceled) end the
// iteration silently since nothing can be delivered anymore.
func (a *Adapter) ProcessStreamingRequest(ctx context.Context, clientReq anthropicadapter.CreateMessageRequest, transport http.RoundTripper) (iter.Seq2[anthropicadapter.MessageStreamEvent, error], error) {
	params, err := toChatCompletionParams(&clientReq, clientReq.Model, true)
	if err != nil {
		return nil, toAnthropicError(err)
	}

	client := newClient(a.cfg.BaseURL, a.cfg.APIKey, transport)
	opts := converterOptions{
		maxToolArgumentBytes: a.cfg.MaxToolArgumentBytes,
		nameStrategy:         a.cfg.ToolNameStrategy,
		disableIncremental:   a.cfg.DisableIncremental,
		disableParseFallback: a.cfg.DisableParseFallback,
	}

	return func(yield func(anthropicadapter.MessageStreamEvent, error) bool) {
		stream := client.Chat.Completions.NewStreaming(ctx, *params)
		defer stream.Close()

		converter := newStreamConverter(clientReq.Model, opts)
		splitter := newChunkSplitter()
		emit := func(ev types.StreamEvent) bool {
			return yield(ev, nil)
		}

		for stream.Next() {
			if ctx.Err() != nil {
				break
			}
			for _, event := range splitter.split(stream.Current()) {
				if !converter.handle(ctx, event, emit) {
					return
				}
			}
		}

		if err := ctx.Err(); err != nil {
			if errors.Is(err, context.Canceled) {
				return // client went away, nothing left to deliver
			}
			yield(nil, toAnthropicError(err))
			return
		}
		if err := stream.Err(); err != nil {
			yield(nil, toAnthropicError(err))
			return
		}

		converter.flush(ctx, emit)
	}, nil
}
