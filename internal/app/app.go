package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/claudebridge/claudebridge/internal/anthropicadapter/openaichat"
	"github.com/claudebridge/claudebridge/internal/config"
	"github.com/claudebridge/claudebridge/internal/gateway"
	"github.com/claudebridge/claudebridge/internal/keystore"
)

// App orchestrates the lifecycle of the gateway server and related services.
type App struct {
	cfg     *config.Config
	gateway *gateway.Gateway
	health  *Health
}

// New wires the adapter and gateway from configuration. The backend API key
// resolves config-first, then the OS keyring; absence of both means the
// backend is called unauthenticated.
func New(cfg *config.Config) (*App, error) {
	adapter := openaichat.New(openaichat.Config{
		BaseURL:              cfg.Backend.BaseURL,
		APIKey:               resolveAPIKey(cfg),
		MaxToolArgumentBytes: cfg.Stream.MaxToolArgumentBytes,
		ToolNameStrategy:     openaichat.ToolNameStrategy(cfg.Stream.ToolNameStrategy),
		DisableIncremental:   cfg.Stream.DisableIncremental,
		DisableParseFallback: cfg.Stream.DisableParseFallback,
	})

	health := NewHealth()
	gw, err := gateway.New(gateway.Options{
		Adapter:         adapter,
		Readiness:       health,
		StreamTimeout:   cfg.Stream.Timeout,
		PingInterval:    cfg.Stream.PingInterval,
		MaxRequestBytes: cfg.Stream.MaxRequestBytes,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create gateway: %w", err)
	}

	return &App{
		cfg:     cfg,
		gateway: gw,
		health:  health,
	}, nil
}

// resolveAPIKey prefers the configured key over the keyring.
func resolveAPIKey(cfg *config.Config) string {
	if cfg.Backend.APIKey != "" {
		return cfg.Backend.APIKey
	}
	key, err := keystore.New().Get()
	if errors.Is(err, keystore.ErrNotFound) {
		slog.Debug("no API key configured or stored, calling backend unauthenticated")
		return ""
	}
	if err != nil {
		// A broken keyring should not take the gateway down when the
		// backend may not need a key at all.
		slog.Warn("keyring unavailable, calling backend unauthenticated", "error", err)
		return ""
	}
	return key
}

// Start starts all services and blocks until shutdown is triggered.
// Uses errgroup for runtime error monitoring and shutdown function collection for coordinated cleanup.
func (a *App) Start(ctx context.Context) error {
	g, gCtx := errgroup.WithContext(ctx)

	var shutdownFuncs []func(context.Context) error

	// Startup phase: Start services
	slog.InfoContext(gCtx, "starting gateway server", "backend", a.cfg.Backend.BaseURL)
	gatewayErrCh, err := a.gateway.Start(gCtx, a.cfg.Listen)
	if err != nil {
		return fmt.Errorf("gateway startup failed: %w", err)
	}
	shutdownFuncs = append(shutdownFuncs, a.gateway.Shutdown)

	a.health.SetReady(true)

	// Monitor runtime errors - errgroup cancels context on first error
	g.Go(func() error {
		select {
		case err := <-gatewayErrCh:
			if err != nil {
				slog.ErrorContext(gCtx, "gateway runtime error", "error", err)
				return fmt.Errorf("gateway: %w", err)
			}
			return nil
		case <-gCtx.Done():
			return nil
		}
	})

	runtimeErr := g.Wait()

	a.health.SetReady(false)
	slog.InfoContext(gCtx, "shutting down services")

	// Shutdown phase: Stop all services
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	var errs []error
	if runtimeErr != nil {
		errs = append(errs, fmt.Errorf("runtime: %w", runtimeErr))
	}

	for i := len(shutdownFuncs) - 1; i >= 0; i-- {
		if err := shutdownFuncs[i](shutdownCtx); err != nil {
			slog.ErrorContext(shutdownCtx, "service shutdown failed", "error", err)
			errs = append(errs, err)
		}
	}

	if len(errs) > 0 {
		return errors.Join(errs...)
	}

	slog.Info("application stopped")
	return nil
}
