package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/claudebridge/claudebridge/cmd/claudebridge/commands"
)

var (
	version = "dev"
	commit  = "none"
)

func main() {
	// SIGINT and SIGTERM cancel the root context; commands shut down through
	// context propagation, never mid-flight exits.
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := commands.Execute(ctx, os.Args, version, commit); err != nil {
		slog.ErrorContext(ctx, "claudebridge failed", "error", err)
		os.Exit(1)
	}
}
