package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/dharsanguruparan/DockGuard/internal/config"
	"github.com/dharsanguruparan/DockGuard/internal/stack"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	rootCmd := newRootCommand(openStack)
	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "dockguard: %v\n", err)
		os.Exit(1)
	}
}

// openStack connects to the configured Postgres and Redis.
func openStack(ctx context.Context) (Warehouse, func(), error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, nil, err
	}
	st, err := stack.Open(ctx, cfg)
	if err != nil {
		return nil, nil, err
	}
	return st.Engine, st.Close, nil
}
