package executor

import (
	"fmt"
	"time"

	"github.com/Luciosmic/fieldbench/internal/domain"
	"github.com/Luciosmic/fieldbench/internal/ports"
)

// FlyScanExecutor acquires continuously while the stage moves between
// trajectory waypoints instead of settling at each one. The final point
// count depends on stage speed and sample latency, so the scan starts with
// an unknown expected count and is completed explicitly.
type FlyScanExecutor struct {
	motion ports.MotionPort
	acq    ports.AcquisitionPort
	bus    ports.EventBus
	obs    ports.Observability

	// sampleInterval paces acquisition during a sweep; zero means the chain's
	// own latency paces it.
	sampleInterval time.Duration
}

func NewFlyScanExecutor(motion ports.MotionPort, acq ports.AcquisitionPort, bus ports.EventBus, obs ports.Observability) *FlyScanExecutor {
	return &FlyScanExecutor{motion: motion, acq: acq, bus: bus, obs: obs}
}

// SetSampleInterval fixes the pacing between in-flight samples.
func (x *FlyScanExecutor) SetSampleInterval(d time.Duration) {
	x.sampleInterval = d
}

func (x *FlyScanExecutor) Execute(scan *domain.Scan, cfg domain.ScanConfig, ctl *Control) error {
	traj, err := domain.GenerateTrajectory(cfg)
	if err != nil {
		return err
	}

	if err := scan.Start(0); err != nil {
		return err
	}
	x.publish(scan)

	if err := x.acq.ConfigureForUncertainty(cfg.TargetUncertainty); err != nil {
		return x.failScan(scan, fmt.Errorf("configure acquisition: %w", err))
	}

	idx := 0
	total := traj.Len()
	for i := 0; i < total; i++ {
		if ctl.Cancelled() {
			return x.cancelScan(scan)
		}
		if ctl.Paused() {
			x.bus.Publish(domain.ScanPaused{ScanID: scan.ID(), AtPointIndex: idx})
			ctl.WaitIfPaused()
			if ctl.Cancelled() {
				return x.cancelScan(scan)
			}
			x.bus.Publish(domain.ScanResumed{ScanID: scan.ID(), FromPointIndex: idx})
		}

		if err := x.motion.MoveTo(traj.At(i)); err != nil {
			return x.failScan(scan, fmt.Errorf("move to waypoint %d: %w", i, err))
		}

		for {
			moving, err := x.motion.IsMoving()
			if err != nil {
				return x.failScan(scan, fmt.Errorf("motion status at waypoint %d: %w", i, err))
			}
			if !moving {
				break
			}
			if ctl.Cancelled() {
				if err := x.motion.Stop(); err != nil {
					x.obs.LogError("stage_stop_failed", err)
				}
				return x.cancelScan(scan)
			}

			t0 := time.Now()
			m, err := x.acq.AcquireSample()
			if err != nil {
				return x.failScan(scan, fmt.Errorf("acquire in flight: %w", err))
			}
			x.obs.ObserveLatency("bench_acquisition_latency_seconds", time.Since(t0).Seconds())

			pos, err := x.motion.CurrentPosition()
			if err != nil {
				return x.failScan(scan, fmt.Errorf("read position in flight: %w", err))
			}

			if err := scan.AddPointResult(domain.ScanPointResult{
				Position:    pos,
				Measurement: m,
				PointIndex:  idx,
			}); err != nil {
				return err
			}
			idx++
			x.obs.IncCounter("bench_scan_points_total", 1)
			x.publish(scan)

			if x.sampleInterval > 0 {
				time.Sleep(x.sampleInterval)
			}
		}
		x.bus.Publish(domain.ScanProgress{ScanID: scan.ID(), Fraction: float64(i+1) / float64(total)})
	}

	if err := scan.Complete(); err != nil {
		return err
	}
	x.publish(scan)
	return nil
}

func (x *FlyScanExecutor) publish(scan *domain.Scan) {
	for _, evt := range scan.DrainEvents() {
		x.bus.Publish(evt)
	}
}

func (x *FlyScanExecutor) cancelScan(scan *domain.Scan) error {
	if err := scan.Cancel(); err != nil {
		return err
	}
	x.publish(scan)
	x.obs.LogInfo("scan_cancelled", ports.Field{Key: "scan_id", Value: scan.ID()})
	return nil
}

func (x *FlyScanExecutor) failScan(scan *domain.Scan, cause error) error {
	x.obs.LogError("scan_failed", cause, ports.Field{Key: "scan_id", Value: scan.ID()})
	if ferr := scan.Fail(cause.Error()); ferr != nil {
		return cause
	}
	x.publish(scan)
	return cause
}
