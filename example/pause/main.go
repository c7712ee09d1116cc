package main

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/Luciosmic/fieldbench"
)

// Pauses the scan after the fifth point, resumes it two seconds later.
func main() {
	cfg, err := fieldbench.LoadConfig("../../data/config.yaml")
	if err != nil {
		log.Fatalf("load config: %v", err)
	}

	rt, err := fieldbench.NewBenchRuntime(cfg)
	if err != nil {
		log.Fatalf("build runtime: %v", err)
	}

	rt.Subscribe(fieldbench.EventScanPointAcquired, func(evt fieldbench.Event) {
		e, ok := evt.(fieldbench.ScanPointAcquiredEvent)
		if !ok || e.Result.PointIndex != 4 {
			return
		}
		rt.Pause()
		go func() {
			fmt.Println("holding for 2s, stage parked")
			time.Sleep(2 * time.Second)
			rt.Resume()
		}()
	})
	rt.Subscribe(fieldbench.EventScanResumed, func(evt fieldbench.Event) {
		fmt.Println("resumed")
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := rt.Run(ctx); err != nil {
		log.Fatalf("runtime error: %v", err)
	}
}
