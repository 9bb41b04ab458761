package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/desertthunder/popetl/internal/shared"
	"github.com/urfave/cli/v3"
)

func main() {
	logger := shared.NewLogger(nil)

	runner := NewRunner(RunnerOpts{
		Logger: logger,
		Lookup: os.LookupEnv,
	})

	app := &cli.Command{
		Name:     "popetl",
		Usage:    "Categorize the popularity of recently played Spotify tracks and append them to a database",
		Version:  "0.1.0",
		Commands: runner.register(),
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := app.Run(ctx, os.Args); err != nil {
		logger.Fatalf("application error: %v", err)
	}
}
