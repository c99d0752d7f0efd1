package commands

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/urfave/cli/v3"

	"github.com/claudebridge/claudebridge/internal/app"
	"github.com/claudebridge/claudebridge/internal/config"
	"github.com/claudebridge/claudebridge/internal/observability"
)

// Execute runs the root command with the given context and arguments.
func Execute(ctx context.Context, args []string, version, commit string) error {
	cmd := &cli.Command{
		Name:    "claudebridge",
		Usage:   "Anthropic Messages gateway for OpenAI-compatible backends",
		Version: fmt.Sprintf("%s (%s)", version, commit),
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  "config",
				Usage: "path to TOML config file",
			},
			&cli.StringFlag{
				Name:  "log-level",
				Usage: "log level (debug|info|warn|error)",
			},
			&cli.StringFlag{
				Name:  "log-format",
				Usage: "log format (text|json)",
			},
		},
		Commands: []*cli.Command{
			startCommand(),
			authCommand(),
		},
	}

	return cmd.Run(ctx, args)
}

func startCommand() *cli.Command {
	return &cli.Command{
		Name:  "start",
		Usage: "Starts the gateway",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  "listen",
				Usage: "listen address (host:port)",
			},
			&cli.StringFlag{
				Name:  "backend-url",
				Usage: "OpenAI-compatible backend base URL",
			},
		},
		Action: startAction,
	}
}

func startAction(ctx context.Context, cmd *cli.Command) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	var level slog.Level
	if err := level.UnmarshalText([]byte(cfg.Log.Level)); err != nil {
		return err
	}

	// Set up observability before creating app
	shutdownLogs, err := observability.Instrument(ctx, observability.Options{
		Level:  level,
		Format: cfg.Log.Format,
		OTLP: observability.OTLPOptions{
			Protocol: cfg.OTLP.Protocol,
			Endpoint: cfg.OTLP.Endpoint,
			Insecure: cfg.OTLP.Insecure,
		},
	})
	if err != nil {
		return fmt.Errorf("failed to set up observability layer: %w", err)
	}
	defer func() {
		if err := shutdownLogs(context.Background()); err != nil {
			slog.Error("log exporter shutdown failed", "error", err)
		}
	}()

	application, err := app.New(cfg)
	if err != nil {
		return fmt.Errorf("failed to create app: %w", err)
	}

	slog.InfoContext(ctx, "starting")

	if err := application.Start(ctx); err != nil {
		return fmt.Errorf("app failed to start: %w", err)
	}

	slog.InfoContext(ctx, "stopped gracefully")
	return nil
}

// loadConfig builds the layered configuration, translating set flags into the
// highest-precedence override layer.
func loadConfig(cmd *cli.Command) (*config.Config, error) {
	overrides := map[string]any{}
	if v := cmd.String("listen"); v != "" {
		overrides["listen"] = v
	}
	if v := cmd.String("backend-url"); v != "" {
		overrides["backend.base_url"] = v
	}
	if v := cmd.String("log-level"); v != "" {
		overrides["log.level"] = v
	}
	if v := cmd.String("log-format"); v != "" {
		overrides["log.format"] = v
	}
	return config.Load(cmd.String("config"), overrides)
}
