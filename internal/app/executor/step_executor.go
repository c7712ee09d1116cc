package executor

import (
	"errors"
	"fmt"
	"time"

	"github.com/Luciosmic/fieldbench/internal/domain"
	"github.com/Luciosmic/fieldbench/internal/ports"
)

// StepScanExecutor drives a move-settle-measure scan over a generated
// trajectory. It owns the control-flow around the hardware ports and the
// scan aggregate; every state transition the aggregate queues is published
// to the event bus from the executor goroutine, in order.
type StepScanExecutor struct {
	motion ports.MotionPort
	acq    ports.AcquisitionPort
	bus    ports.EventBus
	obs    ports.Observability
}

func NewStepScanExecutor(motion ports.MotionPort, acq ports.AcquisitionPort, bus ports.EventBus, obs ports.Observability) *StepScanExecutor {
	return &StepScanExecutor{motion: motion, acq: acq, bus: bus, obs: obs}
}

// Execute runs the scan to a terminal state. Trajectory generation failures
// return before any transition, leaving the scan PENDING. Hardware failures
// mark the scan FAILED and return the causing error; cancellation via ctl
// marks it CANCELLED and returns nil.
func (x *StepScanExecutor) Execute(scan *domain.Scan, cfg domain.ScanConfig, ctl *Control) error {
	traj, err := domain.GenerateTrajectory(cfg)
	if err != nil {
		return err
	}
	total := traj.Len()

	if err := scan.Start(total); err != nil {
		return err
	}
	x.publish(scan)

	if err := x.acq.ConfigureForUncertainty(cfg.TargetUncertainty); err != nil {
		return x.failScan(scan, fmt.Errorf("configure acquisition: %w", err))
	}

	for i := 0; i < total; i++ {
		if ctl.Cancelled() {
			return x.cancelScan(scan)
		}
		if ctl.Paused() {
			x.bus.Publish(domain.ScanPaused{ScanID: scan.ID(), AtPointIndex: i})
			ctl.WaitIfPaused()
			if ctl.Cancelled() {
				return x.cancelScan(scan)
			}
			x.bus.Publish(domain.ScanResumed{ScanID: scan.ID(), FromPointIndex: i})
		}

		pos := traj.At(i)
		if err := x.motion.MoveTo(pos); err != nil {
			return x.failScan(scan, fmt.Errorf("move to point %d: %w", i, err))
		}
		if err := x.motion.WaitUntilStopped(); err != nil {
			return x.failScan(scan, fmt.Errorf("settle at point %d: %w", i, err))
		}
		if cfg.StabilizationDelay > 0 {
			time.Sleep(cfg.StabilizationDelay)
		}

		batch := make([]domain.Measurement, 0, cfg.Averaging)
		for j := 0; j < cfg.Averaging; j++ {
			t0 := time.Now()
			m, err := x.acq.AcquireSample()
			if err != nil {
				return x.failScan(scan, fmt.Errorf("acquire sample %d at point %d: %w", j, i, err))
			}
			x.obs.ObserveLatency("bench_acquisition_latency_seconds", time.Since(t0).Seconds())
			batch = append(batch, m)
		}
		avg, err := domain.AverageMeasurements(batch)
		if err != nil {
			return x.failScan(scan, fmt.Errorf("average point %d: %w", i, err))
		}

		if err := scan.AddPointResult(domain.ScanPointResult{
			Position:    pos,
			Measurement: avg,
			PointIndex:  i,
		}); err != nil {
			return err
		}
		x.obs.IncCounter("bench_scan_points_total", 1)
		x.publish(scan)
		x.bus.Publish(domain.ScanProgress{ScanID: scan.ID(), Fraction: float64(i+1) / float64(total)})
	}

	// The aggregate auto-completes on the last expected point; this covers
	// the degenerate zero-point trajectory only.
	if !scan.Status().Terminal() {
		if err := scan.Complete(); err != nil {
			return err
		}
		x.publish(scan)
	}
	return nil
}

func (x *StepScanExecutor) publish(scan *domain.Scan) {
	for _, evt := range scan.DrainEvents() {
		x.bus.Publish(evt)
	}
}

func (x *StepScanExecutor) cancelScan(scan *domain.Scan) error {
	if err := scan.Cancel(); err != nil {
		return err
	}
	x.publish(scan)
	x.obs.LogInfo("scan_cancelled", ports.Field{Key: "scan_id", Value: scan.ID()})
	return nil
}

func (x *StepScanExecutor) failScan(scan *domain.Scan, cause error) error {
	x.obs.LogError("scan_failed", cause, ports.Field{Key: "scan_id", Value: scan.ID()})
	if ferr := scan.Fail(cause.Error()); ferr != nil {
		return errors.Join(cause, ferr)
	}
	x.publish(scan)
	return cause
}
