package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/iudanet/tmmerge/internal/client/api"
	"github.com/iudanet/tmmerge/internal/client/auth"
	"github.com/iudanet/tmmerge/internal/client/cli"
	"github.com/iudanet/tmmerge/internal/client/iocli"
	"github.com/iudanet/tmmerge/internal/client/storage/boltdb"
)

var (
	// Version information set via ldflags during build
	Version   = "dev"
	BuildDate = "unknown"
	GitCommit = "unknown"
)

func main() {
	// Логи клиента только предупреждения в stderr, вывод команд идёт в stdout
	level := slog.LevelWarn
	if os.Getenv("TMMERGE_DEBUG") != "" {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	version := fmt.Sprintf("%s (commit %s, built %s)", Version, GitCommit, BuildDate)
	root := cli.NewRootCmd(version, func(opts cli.Options) (*cli.Cli, func() error, error) {
		// Открываем BoltDB storage
		store, err := boltdb.New(ctx, opts.DBPath)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to open database: %w", err)
		}

		client := api.NewClient(opts.ServerURL)
		sessions := auth.NewService(logger, client, store)
		return cli.New(iocli.NewStdio(), client, sessions, store), store.Close, nil
	})

	if err := root.ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		stop()
		os.Exit(1)
	}
}
