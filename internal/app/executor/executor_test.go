package executor

import (
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/Luciosmic/fieldbench/internal/adapters/acquisition"
	"github.com/Luciosmic/fieldbench/internal/domain"
	"github.com/Luciosmic/fieldbench/internal/ports"
)

type fakeMotion struct {
	mu       sync.Mutex
	moves    []domain.Position
	pos      domain.Position
	moveErr  error
	moveLeft int // IsMoving returns true this many times per move
	flying   int
}

func (m *fakeMotion) MoveTo(pos domain.Position) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.moveErr != nil {
		return m.moveErr
	}
	m.moves = append(m.moves, pos)
	m.pos = pos
	m.flying = m.moveLeft
	return nil
}

func (m *fakeMotion) WaitUntilStopped() error { return nil }

func (m *fakeMotion) CurrentPosition() (domain.Position, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.pos, nil
}

func (m *fakeMotion) IsMoving() (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.flying > 0 {
		m.flying--
		return true, nil
	}
	return false, nil
}

func (m *fakeMotion) Stop() error                    { return nil }
func (m *fakeMotion) SetSpeed(float64) error         { return nil }
func (m *fakeMotion) Home(string) error              { return nil }
func (m *fakeMotion) AxisLimits() (float64, float64) { return 300, 300 }

type fakeAcq struct {
	mu         sync.Mutex
	samples    int
	failAt     int // fail on the Nth sample, 0 disables
	onSample   func(n int)
	configured float64
}

func (a *fakeAcq) AcquireSample() (domain.Measurement, error) {
	a.mu.Lock()
	a.samples++
	n := a.samples
	failAt := a.failAt
	hook := a.onSample
	a.mu.Unlock()

	if failAt > 0 && n >= failAt {
		return domain.Measurement{}, &ports.AcquisitionError{Op: "sample", Err: errors.New("adc timeout")}
	}
	m, err := domain.NewMeasurement(
		float64(n), 0.1, 0.2, 0.3, 0.4, 0.5,
		time.Now(), 1e-6)
	if hook != nil {
		hook(n)
	}
	return m, err
}

func (a *fakeAcq) ConfigureForUncertainty(target float64) error {
	a.mu.Lock()
	a.configured = target
	a.mu.Unlock()
	return nil
}

func (a *fakeAcq) IsReady() bool { return true }

type recordingBus struct {
	mu     sync.Mutex
	events []domain.Event
	onEvt  func(domain.Event)
}

func (b *recordingBus) Subscribe(string, ports.EventHandler) {}

func (b *recordingBus) Publish(evt domain.Event) {
	b.mu.Lock()
	b.events = append(b.events, evt)
	hook := b.onEvt
	b.mu.Unlock()
	if hook != nil {
		hook(evt)
	}
}

func (b *recordingBus) kinds() []string {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]string, len(b.events))
	for i, e := range b.events {
		out[i] = e.Kind()
	}
	return out
}

func (b *recordingBus) countKind(kind string) int {
	n := 0
	for _, k := range b.kinds() {
		if k == kind {
			n++
		}
	}
	return n
}

type nopObs struct{}

func (nopObs) LogInfo(string, ...ports.Field)            {}
func (nopObs) LogError(string, error, ...ports.Field)    {}
func (nopObs) LogCritical(string, error, ...ports.Field) {}
func (nopObs) IncCounter(string, float64)                {}
func (nopObs) ObserveLatency(string, float64)            {}
func (nopObs) SetGauge(string, float64)                  {}

func serpentineConfig() domain.ScanConfig {
	return domain.ScanConfig{
		XMin: 0, XMax: 10, XPoints: 3,
		YMin: 0, YMax: 10, YPoints: 3,
		Pattern:           domain.PatternSerpentine,
		Averaging:         1,
		TargetUncertainty: 1e-6,
	}
}

func TestStepExecutorRunsSerpentineScan(t *testing.T) {
	motion := &fakeMotion{}
	acq := &fakeAcq{}
	bus := &recordingBus{}
	x := NewStepScanExecutor(motion, acq, bus, nopObs{})

	scan := domain.NewScan()
	if err := x.Execute(scan, serpentineConfig(), NewControl()); err != nil {
		t.Fatalf("execute: %v", err)
	}

	if scan.Status() != domain.StatusCompleted {
		t.Fatalf("status = %s, want COMPLETED", scan.Status())
	}
	points := scan.Points()
	if len(points) != 9 {
		t.Fatalf("got %d points, want 9", len(points))
	}
	// Serpentine reverses odd rows.
	if points[3].Position != (domain.Position{X: 10, Y: 5}) {
		t.Fatalf("point 3 at %+v, want (10, 5)", points[3].Position)
	}
	if points[5].Position != (domain.Position{X: 0, Y: 5}) {
		t.Fatalf("point 5 at %+v, want (0, 5)", points[5].Position)
	}
	if len(motion.moves) != 9 {
		t.Fatalf("stage moved %d times, want 9", len(motion.moves))
	}
	if acq.configured != 1e-6 {
		t.Fatalf("acquisition configured for %g, want 1e-6", acq.configured)
	}

	if n := bus.countKind(domain.EventScanStarted); n != 1 {
		t.Fatalf("%d started events, want 1", n)
	}
	if n := bus.countKind(domain.EventScanPointAcquired); n != 9 {
		t.Fatalf("%d point events, want 9", n)
	}
	if n := bus.countKind(domain.EventScanCompleted); n != 1 {
		t.Fatalf("%d completed events, want 1", n)
	}
	if n := bus.countKind(domain.EventScanProgress); n != 9 {
		t.Fatalf("%d progress events, want 9", n)
	}
}

func TestStepExecutorZeroUncertaintyTargetCompletes(t *testing.T) {
	cfg := serpentineConfig()
	cfg.TargetUncertainty = 0
	if err := cfg.Validate(); err != nil {
		t.Fatalf("config with zero target should validate: %v", err)
	}

	chain := acquisition.NewSimChain(acquisition.WithSeed(7), acquisition.WithSampleLatency(0))
	motion := &fakeMotion{}
	bus := &recordingBus{}
	x := NewStepScanExecutor(motion, chain, bus, nopObs{})

	scan := domain.NewScan()
	if err := x.Execute(scan, cfg, NewControl()); err != nil {
		t.Fatalf("execute with chain-default uncertainty: %v", err)
	}
	if scan.Status() != domain.StatusCompleted {
		t.Fatalf("scan ended %s, want COMPLETED", scan.Status())
	}
	if n := bus.countKind(domain.EventScanFailed); n != 0 {
		t.Fatalf("scan failed %d times, want 0", n)
	}
}

func TestStepExecutorCancelStopsBetweenPoints(t *testing.T) {
	motion := &fakeMotion{}
	bus := &recordingBus{}
	ctl := NewControl()
	acq := &fakeAcq{}
	acq.onSample = func(n int) {
		if n == 2 {
			ctl.Cancel()
		}
	}
	x := NewStepScanExecutor(motion, acq, bus, nopObs{})

	scan := domain.NewScan()
	if err := x.Execute(scan, serpentineConfig(), ctl); err != nil {
		t.Fatalf("execute: %v", err)
	}

	if scan.Status() != domain.StatusCancelled {
		t.Fatalf("status = %s, want CANCELLED", scan.Status())
	}
	if got := len(scan.Points()); got != 2 {
		t.Fatalf("got %d points before cancel, want 2", got)
	}
	if n := bus.countKind(domain.EventScanCancelled); n != 1 {
		t.Fatalf("%d cancelled events, want 1", n)
	}
	if n := bus.countKind(domain.EventScanCompleted); n != 0 {
		t.Fatalf("%d completed events, want 0", n)
	}
}

func TestStepExecutorFailsOnAcquisitionError(t *testing.T) {
	motion := &fakeMotion{}
	acq := &fakeAcq{failAt: 4}
	bus := &recordingBus{}
	x := NewStepScanExecutor(motion, acq, bus, nopObs{})

	scan := domain.NewScan()
	err := x.Execute(scan, serpentineConfig(), NewControl())
	if err == nil {
		t.Fatal("expected acquisition error")
	}
	var acqErr *ports.AcquisitionError
	if !errors.As(err, &acqErr) {
		t.Fatalf("error %v does not wrap AcquisitionError", err)
	}

	if scan.Status() != domain.StatusFailed {
		t.Fatalf("status = %s, want FAILED", scan.Status())
	}
	if snap := scan.Snapshot(); snap.FailureReason == "" {
		t.Fatal("failure reason not recorded")
	}
	if n := bus.countKind(domain.EventScanFailed); n != 1 {
		t.Fatalf("%d failed events, want 1", n)
	}
	// Points before the failure are retained.
	if got := len(scan.Points()); got != 3 {
		t.Fatalf("got %d points before failure, want 3", got)
	}
}

func TestStepExecutorFailsOnMotionError(t *testing.T) {
	motion := &fakeMotion{moveErr: &ports.MotionError{Op: "move", Err: errors.New("limit switch")}}
	acq := &fakeAcq{}
	bus := &recordingBus{}
	x := NewStepScanExecutor(motion, acq, bus, nopObs{})

	scan := domain.NewScan()
	if err := x.Execute(scan, serpentineConfig(), NewControl()); err == nil {
		t.Fatal("expected motion error")
	}
	if scan.Status() != domain.StatusFailed {
		t.Fatalf("status = %s, want FAILED", scan.Status())
	}
}

func TestStepExecutorInvalidConfigLeavesScanPending(t *testing.T) {
	cfg := serpentineConfig()
	cfg.XPoints = 0
	x := NewStepScanExecutor(&fakeMotion{}, &fakeAcq{}, &recordingBus{}, nopObs{})

	scan := domain.NewScan()
	if err := x.Execute(scan, cfg, NewControl()); err == nil {
		t.Fatal("expected validation error")
	}
	if scan.Status() != domain.StatusPending {
		t.Fatalf("status = %s, want PENDING", scan.Status())
	}
}

func TestStepExecutorPauseAndResume(t *testing.T) {
	motion := &fakeMotion{}
	acq := &fakeAcq{}
	ctl := NewControl()

	pausedCh := make(chan struct{}, 1)
	bus := &recordingBus{}
	bus.onEvt = func(evt domain.Event) {
		if evt.Kind() == domain.EventScanPaused {
			select {
			case pausedCh <- struct{}{}:
			default:
			}
		}
	}
	acq.onSample = func(n int) {
		if n == 2 {
			ctl.Pause()
		}
	}

	x := NewStepScanExecutor(motion, acq, bus, nopObs{})
	scan := domain.NewScan()

	errCh := make(chan error, 1)
	go func() { errCh <- x.Execute(scan, serpentineConfig(), ctl) }()

	select {
	case <-pausedCh:
	case <-time.After(5 * time.Second):
		t.Fatal("executor never published a pause")
	}
	ctl.Resume()

	select {
	case err := <-errCh:
		if err != nil {
			t.Fatalf("execute: %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("executor did not finish after resume")
	}

	if scan.Status() != domain.StatusCompleted {
		t.Fatalf("status = %s, want COMPLETED", scan.Status())
	}
	if n := bus.countKind(domain.EventScanPaused); n != 1 {
		t.Fatalf("%d paused events, want 1", n)
	}
	if n := bus.countKind(domain.EventScanResumed); n != 1 {
		t.Fatalf("%d resumed events, want 1", n)
	}
}

func TestFlyExecutorSamplesWhileMoving(t *testing.T) {
	motion := &fakeMotion{moveLeft: 3}
	acq := &fakeAcq{}
	bus := &recordingBus{}
	x := NewFlyScanExecutor(motion, acq, bus, nopObs{})

	cfg := domain.ScanConfig{
		XMin: 0, XMax: 10, XPoints: 2,
		YMin: 0, YMax: 0, YPoints: 1,
		Pattern:           domain.PatternRaster,
		Averaging:         1,
		TargetUncertainty: 1e-6,
	}

	scan := domain.NewScan()
	if err := x.Execute(scan, cfg, NewControl()); err != nil {
		t.Fatalf("execute: %v", err)
	}

	if scan.Status() != domain.StatusCompleted {
		t.Fatalf("status = %s, want COMPLETED", scan.Status())
	}
	// Two waypoints, three in-flight samples each.
	if got := len(scan.Points()); got != 6 {
		t.Fatalf("got %d points, want 6", got)
	}
	points := scan.Points()
	for i, p := range points {
		if p.PointIndex != i {
			t.Fatalf("point %d has index %d", i, p.PointIndex)
		}
	}
	if n := bus.countKind(domain.EventScanCompleted); n != 1 {
		t.Fatalf("%d completed events, want 1", n)
	}
}

func TestControlWaitIfPaused(t *testing.T) {
	ctl := NewControl()
	ctl.Pause()

	released := make(chan bool, 1)
	go func() { released <- ctl.WaitIfPaused() }()

	select {
	case <-released:
		t.Fatal("WaitIfPaused returned while still paused")
	case <-time.After(50 * time.Millisecond):
	}

	ctl.Resume()
	select {
	case waited := <-released:
		if !waited {
			t.Fatal("expected WaitIfPaused to report waiting")
		}
	case <-time.After(5 * time.Second):
		t.Fatal("Resume did not release the wait")
	}
}

func TestControlCancelReleasesPause(t *testing.T) {
	ctl := NewControl()
	ctl.Pause()

	done := make(chan struct{})
	go func() {
		ctl.WaitIfPaused()
		close(done)
	}()

	ctl.Cancel()
	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("Cancel did not release the pause wait")
	}
	if !ctl.Cancelled() {
		t.Fatal("control should report cancelled")
	}
}
