package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"

	"github.com/desertthunder/tunebox/internal/shared"
	"github.com/desertthunder/tunebox/internal/ui"
)

const version = "0.1.0"

func main() {
	logger := shared.NewLogger(nil)
	runner := NewRunner(RunnerOpts{Logger: logger})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := runner.App().Run(ctx, os.Args); err != nil {
		switch {
		case errors.Is(err, context.Canceled):
			os.Exit(130)
		case errors.Is(shared.ErrorKind(err), shared.ErrNotImplemented):
			logger.Warn("not supported by this provider", "error", err)
			os.Exit(0)
		case errors.Is(err, shared.ErrInvalidConfig), errors.Is(err, shared.ErrDatabaseNotFound):
			logger.Error("application error", "error", err)
			os.Stderr.WriteString(ui.Help("run 'tunebox setup' to create the configuration and database") + "\n")
			os.Exit(1)
		default:
			logger.Fatalf("application error: %v", err)
		}
	}
}
