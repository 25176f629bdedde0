package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/hibiken/asynq"

	"github.com/dharsanguruparan/DockGuard/internal/config"
	"github.com/dharsanguruparan/DockGuard/internal/s3storage"
	"github.com/dharsanguruparan/DockGuard/internal/stack"
	"github.com/dharsanguruparan/DockGuard/internal/worker"
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

	var manifests worker.ManifestStore
	if cfg.ManifestExport {
		store, err := s3storage.New(cfg)
		if err != nil {
			log.Fatalf("init storage: %v", err)
		}
		if err := store.EnsureBucket(ctx); err != nil {
			log.Fatalf("ensure bucket: %v", err)
		}
		manifests = store
	}

	server := asynq.NewServer(stack.RedisClientOpt(cfg), asynq.Config{
		Concurrency: cfg.WorkerConcurrency,
	})
	processor := worker.NewProcessor(st.Engine, manifests)
	mux := processor.Handler()

	go func() {
		<-ctx.Done()
		server.Shutdown()
	}()

	if err := server.Run(mux); err != nil {
		log.Printf("worker stopped: %v", err)
		st.Close()
		os.Exit(1)
	}
}
