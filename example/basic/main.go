package main

import (
	"context"
	"log"
	"os/signal"
	"syscall"

	"github.com/Luciosmic/fieldbench"
)

func main() {
	cfg, err := fieldbench.LoadConfig("../../data/config.yaml")
	if err != nil {
		log.Fatalf("load config: %v", err)
	}

	rt, err := fieldbench.NewBenchRuntime(cfg)
	if err != nil {
		log.Fatalf("build runtime: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := rt.Run(ctx); err != nil && err != context.Canceled {
		log.Fatalf("bench runtime exited: %v", err)
	}
}
