package gateway

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"reflect"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/claudebridge/claudebridge/internal/anthropicadapter"
	"github.com/claudebridge/claudebridge/internal/observability/middleware"
)

// Defaults applied by New when the corresponding option is zero.
const (
	DefaultStreamTimeout   = 10 * time.Minute
	DefaultPingInterval    = 15 * time.Second
	DefaultMaxRequestBytes = 10 << 20 // 10 MiB
)

// ReadinessChecker reports whether the application is ready to serve traffic.
type ReadinessChecker interface {
	IsReady() bool
}

// Options configures a Gateway.
type Options struct {
	Adapter   anthropicadapter.CreateMessageAdapter
	Transport http.RoundTripper
	Readiness ReadinessChecker

	StreamTimeout   time.Duration
	PingInterval    time.Duration
	MaxRequestBytes int64
}

// Gateway is the HTTP server exposing the Anthropic Messages surface.
type Gateway struct {
	server *http.Server
}

// New assembles the gateway's routes and middleware chain.
func New(opts Options) (*Gateway, error) {
	if opts.Adapter == nil {
		return nil, fmt.Errorf("adapter cannot be nil")
	}
	if opts.Readiness == nil {
		return nil, fmt.Errorf("readiness checker cannot be nil")
	}
	if opts.StreamTimeout == 0 {
		opts.StreamTimeout = DefaultStreamTimeout
	}
	if opts.PingInterval == 0 {
		opts.PingInterval = DefaultPingInterval
	}
	if opts.MaxRequestBytes == 0 {
		opts.MaxRequestBytes = DefaultMaxRequestBytes
	}

	messagesHandler := &CreateMessageHandler{
		Adapter:       opts.Adapter,
		Transport:     opts.Transport,
		Validate:      newValidator(),
		StreamTimeout: opts.StreamTimeout,
		PingInterval:  opts.PingInterval,
	}

	mux := http.NewServeMux()
	mux.Handle("POST /v1/messages", messagesHandler)
	mux.Handle("GET /v1/models", modelsHandler())
	mux.Handle("GET /healthz", livenessHandler())
	mux.Handle("GET /readyz", readinessHandler(opts.Readiness))

	handler := applyMiddlewares(mux,
		middleware.Logging(slog.Default()),
		middleware.RequestID,
		middleware.TraceContext,
		Recovery,
		RequestSizeLimit(opts.MaxRequestBytes),
	)

	return &Gateway{
		server: &http.Server{
			Handler:           handler,
			ReadHeaderTimeout: 10 * time.Second,
			// WriteTimeout stays 0: streaming responses outlive any fixed
			// write deadline. The per-request stream timeout is the bound.
		},
	}, nil
}

// Start begins serving on addr. It returns a channel that delivers at most one
// runtime error and is closed when the server stops.
func (g *Gateway) Start(ctx context.Context, addr string) (<-chan error, error) {
	listener, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("listen on %s: %w", addr, err)
	}

	g.server.BaseContext = func(net.Listener) context.Context { return ctx }

	errCh := make(chan error, 1)
	go func() {
		defer close(errCh)
		if err := g.server.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	slog.InfoContext(ctx, "gateway listening", "addr", listener.Addr().String())
	return errCh, nil
}

// Shutdown gracefully stops the server, waiting for in-flight requests.
func (g *Gateway) Shutdown(ctx context.Context) error {
	return g.server.Shutdown(ctx)
}

// newValidator builds the request validator with JSON tag names registered so
// validation messages reference fields as the client sent them.
func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(field reflect.StructField) string {
		name := strings.SplitN(field.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}
