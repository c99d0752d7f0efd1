package observability

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"go.opentelemetry.io/contrib/bridges/otelslog"
	"go.opentelemetry.io/contrib/processors/minsev"
	"go.opentelemetry.io/otel/exporters/otlp/otlplog/otlploggrpc"
	"go.opentelemetry.io/otel/exporters/otlp/otlplog/otlploghttp"
	"go.opentelemetry.io/otel/exporters/stdout/stdoutlog"
	sdklog "go.opentelemetry.io/otel/sdk/log"
)

// scopeName identifies this process in exported log records.
const scopeName = "claudebridge"

// Options selects log level, stdout format, and optional OTLP export.
type Options struct {
	Level  slog.Level
	Format string // text or json

	OTLP OTLPOptions
}

// OTLPOptions configures log export. An empty Protocol disables export.
type OTLPOptions struct {
	Protocol string // grpc, http, or stdout
	Endpoint string
	Insecure bool
}

// Instrument installs the process-wide logger: a stdout handler enriched with
// trace correlation, fanned out to an OTLP exporter when configured. The
// returned shutdown function flushes the exporter pipeline; it is a no-op
// when export is disabled.
func Instrument(ctx context.Context, opts Options) (func(context.Context) error, error) {
	stdout, err := newStdoutHandler(opts.Level, opts.Format)
	if err != nil {
		return nil, err
	}

	handlers := []slog.Handler{newTraceContextHandler(stdout)}
	shutdown := func(context.Context) error { return nil }

	if opts.OTLP.Protocol != "" {
		exporter, err := newLogExporter(ctx, opts.OTLP)
		if err != nil {
			return nil, fmt.Errorf("create log exporter: %w", err)
		}
		provider := sdklog.NewLoggerProvider(
			sdklog.WithProcessor(minsev.NewLogProcessor(
				sdklog.NewBatchProcessor(exporter),
				otelSeverity(opts.Level),
			)),
		)
		handlers = append(handlers, otelslog.NewHandler(scopeName, otelslog.WithLoggerProvider(provider)))
		shutdown = provider.Shutdown
	}

	slog.SetDefault(slog.New(newFanoutHandler(handlers...)))
	return shutdown, nil
}

// newStdoutHandler creates a handler for human-readable logs.
func newStdoutHandler(level slog.Level, logFormat string) (slog.Handler, error) {
	opts := &slog.HandlerOptions{
		Level: level,
	}

	var handler slog.Handler
	switch strings.ToLower(logFormat) {
	case "json":
		handler = slog.NewJSONHandler(os.Stdout, opts)
	case "text":
		handler = slog.NewTextHandler(os.Stdout, opts)
	default:
		return nil, fmt.Errorf("unsupported log format %q (expected: json, text)", logFormat)
	}

	return handler, nil
}

// newLogExporter builds the exporter for the selected OTLP transport.
func newLogExporter(ctx context.Context, opts OTLPOptions) (sdklog.Exporter, error) {
	switch strings.ToLower(opts.Protocol) {
	case "grpc":
		grpcOpts := []otlploggrpc.Option{}
		if opts.Endpoint != "" {
			grpcOpts = append(grpcOpts, otlploggrpc.WithEndpoint(opts.Endpoint))
		}
		if opts.Insecure {
			grpcOpts = append(grpcOpts, otlploggrpc.WithInsecure())
		}
		return otlploggrpc.New(ctx, grpcOpts...)
	case "http":
		httpOpts := []otlploghttp.Option{}
		if opts.Endpoint != "" {
			httpOpts = append(httpOpts, otlploghttp.WithEndpoint(opts.Endpoint))
		}
		if opts.Insecure {
			httpOpts = append(httpOpts, otlploghttp.WithInsecure())
		}
		return otlploghttp.New(ctx, httpOpts...)
	case "stdout":
		return stdoutlog.New()
	default:
		return nil, fmt.Errorf("unsupported OTLP protocol %q (expected: grpc, http, stdout)", opts.Protocol)
	}
}

// otelSeverity maps an slog level to the minimum OpenTelemetry severity worth
// exporting, so the export pipeline drops what the stdout handler also drops.
func otelSeverity(level slog.Level) minsev.Severity {
	switch {
	case level <= slog.LevelDebug:
		return minsev.SeverityDebug
	case level <= slog.LevelInfo:
		return minsev.SeverityInfo
	case level <= slog.LevelWarn:
		return minsev.SeverityWarn
	default:
		return minsev.SeverityError
	}
}
