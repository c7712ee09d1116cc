package main

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"

	"github.com/Luciosmic/fieldbench"
)

// printObserver logs each acquired point and the terminal state.
type printObserver struct {
	fieldbench.NopObserver
}

func (printObserver) OnPointAcquired(id uuid.UUID, index int, result fieldbench.ScanPointResult) {
	fmt.Printf("%s point=%d pos=(%.2f, %.2f) x_in_phase=%g\n",
		result.Measurement.CapturedAt.Format(time.RFC3339Nano),
		index,
		result.Position.X,
		result.Position.Y,
		result.Measurement.XInPhase,
	)
}

func (printObserver) OnCompleted(id uuid.UUID) {
	fmt.Printf("scan %s completed\n", id)
}

func (printObserver) OnFailed(id uuid.UUID, reason string) {
	fmt.Printf("scan %s failed: %s\n", id, reason)
}

func main() {
	cfg, err := fieldbench.LoadConfig("../../data/config.yaml")
	if err != nil {
		log.Fatalf("load config: %v", err)
	}

	rt, err := fieldbench.NewBenchRuntime(cfg)
	if err != nil {
		log.Fatalf("build runtime: %v", err)
	}
	rt.Observe(printObserver{})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := rt.Run(ctx); err != nil {
		log.Fatalf("runtime error: %v", err)
	}
}
