package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/iudanet/tmmerge/internal/server/app"
	"github.com/iudanet/tmmerge/internal/server/config"
)

var (
	// Version information set via ldflags during build
	Version   = "dev"
	BuildDate = "unknown"
	GitCommit = "unknown"
)

func main() {
	os.Exit(run())
}

func run() int {
	cfg, err := config.Load(os.Args[1:])
	switch {
	case errors.Is(err, config.ErrHelp):
		return 0
	case errors.Is(err, config.ErrVersion):
		printVersion()
		return 0
	case err != nil:
		fmt.Fprintf(os.Stderr, "configuration error: %v\n", err)
		return 2
	}

	logger := cfg.Logging.NewLogger()
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	logger.Info("tmmerge server starting",
		slog.String("version", Version),
		slog.String("addr", cfg.Server.Address),
		slog.String("db", cfg.Database.Path))

	a, err := app.New(ctx, cfg, logger, Version)
	if err != nil {
		logger.Error("failed to initialize server", slog.Any("error", err))
		return 1
	}

	if err := a.Run(ctx); err != nil {
		logger.Error("server stopped with error", slog.Any("error", err))
		return 1
	}
	logger.Info("server stopped")
	return 0
}

func printVersion() {
	fmt.Printf("tmmerge server\n")
	fmt.Printf("Version:    %s\n", Version)
	fmt.Printf("Build Date: %s\n", BuildDate)
	fmt.Printf("Git Commit: %s\n", GitCommit)
}
