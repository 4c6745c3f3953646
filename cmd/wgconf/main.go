package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"github.com/exeteres/wgconf/internal/cli"
	"github.com/exeteres/wgconf/internal/cli/config"
)

func main() {
	_ = godotenv.Load()

	logger := log.New(os.Stderr, "wgconf ", log.LstdFlags|log.LUTC)

	cfg, err := config.FromEnv()
	if err != nil {
		logger.Fatalf("config error: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	err = cli.New(cfg, os.Stdin, os.Stdout, logger).Run(ctx, os.Args[1:])
	switch {
	case err == nil:
	case errors.Is(err, cli.ErrCheckFailed):
		stop()
		os.Exit(1)
	case errors.Is(err, cli.ErrUsage):
		_, _ = fmt.Fprintln(os.Stderr, err)
		stop()
		os.Exit(2)
	default:
		logger.Fatalf("error: %v", err)
	}
}
