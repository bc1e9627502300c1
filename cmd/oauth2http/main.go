package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/AmmannChristian/go-oauth2http/cmd/oauth2http/commands"
)

func main() {
	// Cancelling the context aborts in-flight token fetches and requests.
	ctx, stop := signal.NotifyContext(context.Background(),
		os.Interrupt,
		syscall.SIGTERM,
	)
	defer stop()

	if err := commands.Execute(ctx, os.Args); err != nil {
		slog.ErrorContext(ctx, "oauth2http failed", "error", err)
		stop()
		os.Exit(1)
	}
}
