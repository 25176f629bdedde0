// Package main runs the DockGuard HTTP API and scanner gateway.
package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/dharsanguruparan/DockGuard/internal/api"
	"github.com/dharsanguruparan/DockGuard/internal/config"
	"github.com/dharsanguruparan/DockGuard/internal/s3storage"
	"github.com/dharsanguruparan/DockGuard/internal/stack"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("load config: %v", err)
	}
	st, err := stack.Open(ctx, cfg)
	if err != nil {
		log.Fatalf("open stack: %v", err)
	}
	defer st.Close()

	srv := api.New(cfg, st.Engine, st.Queue)
	if cfg.ManifestExport {
		links, err := s3storage.New(cfg)
		if err != nil {
			log.Fatalf("init storage: %v", err)
		}
		srv.WithManifestLinks(links)
	}
	if err := srv.Run(ctx); err != nil {
		log.Printf("server stopped: %v", err)
		st.Close()
		os.Exit(1)
	}
}
