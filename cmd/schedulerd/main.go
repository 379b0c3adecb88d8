// Command schedulerd is the Configuration & Bootstrap component (spec
// §4.5): it reads environment-driven parameters, constructs the stream
// worker, and runs until interrupted.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/zar4za/schedule/internal/config"
	"github.com/zar4za/schedule/internal/processor"
	"github.com/zar4za/schedule/internal/solverdriver"
	"github.com/zar4za/schedule/internal/stream"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, "schedulerd:", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.FromEnv()
	if err != nil {
		return fmt.Errorf("loading configuration: %w", err)
	}

	log, err := newLogger(cfg.LogLevel)
	if err != nil {
		return fmt.Errorf("constructing logger: %w", err)
	}
	defer log.Sync() //nolint:errcheck

	rdb := redis.NewClient(&redis.Options{
		Addr: cfg.Addr(),
		DB:   cfg.RedisDB,
	})
	defer rdb.Close()

	solveOpts := solverdriver.Options{
		TimeLimit: cfg.SolveTimeLimit,
		Workers:   cfg.SolveWorkers,
	}
	proc := processor.New(log, solveOpts)
	worker := stream.New(rdb, proc, log, cfg)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := worker.Bootstrap(ctx); err != nil {
		return fmt.Errorf("bootstrapping stream worker: %w", err)
	}

	return worker.Run(ctx)
}

func newLogger(level string) (*zap.Logger, error) {
	if level == "debug" {
		return zap.NewDevelopment()
	}
	return zap.NewProduction()
}
