package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/Luciosmic/fieldbench"
)

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	cmd := os.Args[1]
	var err error

	switch cmd {
	case "run":
		err = runCommand(os.Args[2:])
	case "validate":
		err = validateCommand(os.Args[2:])
	case "stats":
		err = statsCommand(os.Args[2:])
	case "help", "-h", "--help":
		printUsage()
		return
	default:
		printUsage()
		err = fmt.Errorf("unknown command %q", cmd)
	}

	if err != nil {
		log.Fatalf("fieldbench %s: %v", cmd, err)
	}
}

func runCommand(args []string) error {
	fs := flag.NewFlagSet("run", flag.ExitOnError)
	cfgPath := fs.String("config", "./data/config.yaml", "Path to bench configuration file")
	fly := fs.Bool("fly", false, "Acquire while the stage moves instead of stepping point to point")
	if err := fs.Parse(args); err != nil {
		return err
	}

	cfg, err := fieldbench.LoadConfig(*cfgPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	rt, err := fieldbench.NewBenchRuntime(cfg)
	if err != nil {
		return fmt.Errorf("build runtime: %w", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	rt.Subscribe(fieldbench.EventScanProgress, progressPrinter(cfg.Scan.TotalPoints()))

	if !*fly {
		return rt.Run(ctx)
	}

	if err := rt.Start(ctx); err != nil {
		return err
	}
	scanErr := rt.ExecuteFlyScan(ctx)

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := rt.Shutdown(shutdownCtx); err != nil {
		if scanErr == nil {
			return err
		}
		return fmt.Errorf("%w (shutdown: %v)", scanErr, err)
	}
	return scanErr
}

// progressPrinter throttles progress output to whole-percent steps so large
// grids do not flood the terminal.
func progressPrinter(total int) fieldbench.EventHandler {
	lastPct := -1
	return func(evt fieldbench.Event) {
		p, ok := evt.(fieldbench.ScanProgressEvent)
		if !ok {
			return
		}
		pct := int(p.Fraction * 100)
		if pct == lastPct {
			return
		}
		lastPct = pct
		fmt.Printf("\rscan %3d%% (%d points)", pct, total)
		if pct >= 100 {
			fmt.Println()
		}
	}
}

func validateCommand(args []string) error {
	fs := flag.NewFlagSet("validate", flag.ExitOnError)
	cfgPath := fs.String("config", "./data/config.yaml", "Path to configuration file to validate")
	if err := fs.Parse(args); err != nil {
		return err
	}

	cfg, err := fieldbench.LoadConfig(*cfgPath)
	if err != nil {
		return err
	}

	traj, err := fieldbench.GenerateTrajectory(cfg.Scan)
	if err != nil {
		return err
	}

	fmt.Printf("config %s looks good\n", *cfgPath)
	fmt.Printf("  pattern:        %s\n", cfg.Scan.Pattern)
	fmt.Printf("  grid:           %dx%d (%d points)\n", cfg.Scan.XPoints, cfg.Scan.YPoints, traj.Len())
	fmt.Printf("  path length:    %.1f mm\n", traj.PathLength())
	fmt.Printf("  est. duration:  %s (excl. stage travel)\n", cfg.Scan.EstimatedDuration())
	return nil
}

func statsCommand(args []string) error {
	fs := flag.NewFlagSet("stats", flag.ExitOnError)
	url := fs.String("url", "http://localhost:9100/metrics", "Prometheus metrics endpoint")
	interval := fs.Duration("interval", 2*time.Second, "Refresh interval")
	if err := fs.Parse(args); err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	ticker := time.NewTicker(*interval)
	defer ticker.Stop()

	fmt.Printf("Streaming metrics from %s (Ctrl+C to stop)\n", *url)
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			if err := printMetricsSnapshot(*url); err != nil {
				fmt.Fprintf(os.Stderr, "stats error: %v\n", err)
			}
		}
	}
}

func printMetricsSnapshot(url string) error {
	resp, err := http.Get(url)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("unexpected status %s", resp.Status)
	}

	targets := map[string]float64{
		"bench_scan_points_total":  0,
		"bench_export_rows_total":  0,
		"bench_archive_rows_total": 0,
		"bench_wal_size_bytes":     0,
	}

	scanner := bufio.NewScanner(resp.Body)
	for scanner.Scan() {
		line := scanner.Text()
		if strings.HasPrefix(line, "#") {
			continue
		}
		for key := range targets {
			if strings.HasPrefix(line, key+" ") {
				var value float64
				if _, err := fmt.Sscanf(line, key+" %f", &value); err == nil {
					targets[key] = value
				}
			}
		}
	}
	if err := scanner.Err(); err != nil {
		return err
	}

	fmt.Printf("[%s] points=%g exported=%g archived=%g wal_bytes=%g\n",
		time.Now().Format(time.RFC3339),
		targets["bench_scan_points_total"],
		targets["bench_export_rows_total"],
		targets["bench_archive_rows_total"],
		targets["bench_wal_size_bytes"],
	)
	return nil
}

func printUsage() {
	fmt.Printf(`fieldbench CLI

Usage:
  fieldbench <command> [flags]

Commands:
  run        Execute one scan using the provided config
  validate   Load a config and print the scan preview without running it
  stats      Poll the Prometheus metrics endpoint and print live counters

Examples:
  fieldbench run -config ./data/config.yaml
  fieldbench run -config ./data/config.yaml -fly
  fieldbench validate -config ./data/config.yaml
  fieldbench stats -url http://localhost:9100/metrics -interval 1s
`)
}
