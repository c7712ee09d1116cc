package pipeline

import (
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/Luciosmic/fieldbench/internal/adapters/eventbus"
	"github.com/Luciosmic/fieldbench/internal/adapters/queue"
	"github.com/Luciosmic/fieldbench/internal/domain"
	"github.com/Luciosmic/fieldbench/internal/ports"
)

type mockObs struct {
	mu       sync.Mutex
	errors   []string
	counters map[string]float64
}

func (m *mockObs) LogInfo(string, ...ports.Field) {}
func (m *mockObs) LogError(msg string, _ error, _ ...ports.Field) {
	m.mu.Lock()
	m.errors = append(m.errors, msg)
	m.mu.Unlock()
}
func (m *mockObs) LogCritical(msg string, err error, fields ...ports.Field) {
	m.LogError(msg, err, fields...)
}
func (m *mockObs) IncCounter(name string, v float64) {
	m.mu.Lock()
	if m.counters == nil {
		m.counters = make(map[string]float64)
	}
	m.counters[name] += v
	m.mu.Unlock()
}
func (m *mockObs) ObserveLatency(string, float64) {}
func (m *mockObs) SetGauge(string, float64)       {}

func (m *mockObs) errorCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.errors)
}

type mockWAL struct {
	mu        sync.Mutex
	entries   []ports.QueuedEntry
	committed ports.WALEntryID
	sizes     []int64
	sizeCalls int
}

func (m *mockWAL) Append(e *ports.ArchiveEntry) (ports.WALEntryID, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	id := ports.WALEntryID(len(m.entries) + 1)
	m.entries = append(m.entries, ports.QueuedEntry{ID: id, Entry: e})
	return id, nil
}

func (m *mockWAL) Iterate(from ports.WALEntryID, fn func(ports.WALEntryID, *ports.ArchiveEntry) error) error {
	m.mu.Lock()
	entries := append([]ports.QueuedEntry(nil), m.entries...)
	m.mu.Unlock()
	for _, item := range entries {
		if item.ID < from {
			continue
		}
		if err := fn(item.ID, item.Entry); err != nil {
			return err
		}
	}
	return nil
}

func (m *mockWAL) Commit(upto ports.WALEntryID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if upto > m.committed {
		m.committed = upto
	}
	return nil
}

func (m *mockWAL) Stats() ports.WALStats {
	m.mu.Lock()
	defer m.mu.Unlock()
	var size int64
	if len(m.sizes) > 0 {
		idx := m.sizeCalls
		if idx >= len(m.sizes) {
			idx = len(m.sizes) - 1
		}
		m.sizeCalls++
		size = m.sizes[idx]
	}
	return ports.WALStats{
		OldestUncommitted: m.committed + 1,
		LatestAppended:    ports.WALEntryID(len(m.entries)),
		SizeBytes:         size,
	}
}

type mockSink struct {
	mu      sync.Mutex
	batches [][]*ports.ArchiveEntry
	failN   int
}

func (m *mockSink) WriteBatch(entries []*ports.ArchiveEntry) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failN > 0 {
		m.failN--
		return errors.New("sink unavailable")
	}
	m.batches = append(m.batches, entries)
	return nil
}

func (m *mockSink) Name() string { return "mock" }

func (m *mockSink) total() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, b := range m.batches {
		n += len(b)
	}
	return n
}

type mockExporter struct {
	mu       sync.Mutex
	started  int
	stopped  int
	appended []domain.ScanPointResult
	startErr error
}

func (m *mockExporter) Start(ports.ExportConfig) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.startErr != nil {
		return m.startErr
	}
	m.started++
	return nil
}

func (m *mockExporter) Append(p domain.ScanPointResult) {
	m.mu.Lock()
	m.appended = append(m.appended, p)
	m.mu.Unlock()
}

func (m *mockExporter) Stop() error {
	m.mu.Lock()
	m.stopped++
	m.mu.Unlock()
	return nil
}

func (m *mockExporter) RowsWritten() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.appended)
}

func exportConfig(t *testing.T) ports.ExportConfig {
	t.Helper()
	return ports.ExportConfig{
		OutputDir:    t.TempDir(),
		FilenameBase: "bench",
		Format:       "csv",
		BatchSize:    4,
	}
}

func TestExportServiceFollowsScanLifecycle(t *testing.T) {
	obs := &mockObs{}
	bus := eventbus.NewMemoryBus(obs)
	exp := &mockExporter{}

	svc := NewExportService(exp, obs)
	if err := svc.Configure(exportConfig(t)); err != nil {
		t.Fatalf("configure: %v", err)
	}
	svc.Register(bus)

	id := uuid.New()
	bus.Publish(domain.ScanStarted{ScanID: id, ExpectedPoints: 2})
	bus.Publish(domain.ScanPointAcquired{ScanID: id, Result: domain.ScanPointResult{PointIndex: 0}})
	bus.Publish(domain.ScanPointAcquired{ScanID: id, Result: domain.ScanPointResult{PointIndex: 1}})
	bus.Publish(domain.ScanCompleted{ScanID: id, TotalPoints: 2})

	if exp.started != 1 {
		t.Fatalf("exporter started %d times, want 1", exp.started)
	}
	if len(exp.appended) != 2 {
		t.Fatalf("exporter got %d points, want 2", len(exp.appended))
	}
	if exp.stopped != 1 {
		t.Fatalf("exporter stopped %d times, want 1", exp.stopped)
	}
}

func TestExportServiceStopsOnFailureAndCancel(t *testing.T) {
	obs := &mockObs{}
	bus := eventbus.NewMemoryBus(obs)
	exp := &mockExporter{}

	svc := NewExportService(exp, obs)
	if err := svc.Configure(exportConfig(t)); err != nil {
		t.Fatalf("configure: %v", err)
	}
	svc.Register(bus)

	bus.Publish(domain.ScanFailed{ScanID: uuid.New(), Reason: "adc timeout"})
	bus.Publish(domain.ScanCancelled{ScanID: uuid.New()})

	if exp.stopped != 2 {
		t.Fatalf("exporter stopped %d times, want 2", exp.stopped)
	}
}

func TestExportServiceUnconfiguredLogsAndSkips(t *testing.T) {
	obs := &mockObs{}
	bus := eventbus.NewMemoryBus(obs)
	exp := &mockExporter{}

	NewExportService(exp, obs).Register(bus)
	bus.Publish(domain.ScanStarted{ScanID: uuid.New()})

	if exp.started != 0 {
		t.Fatal("exporter must not start without configuration")
	}
	if obs.errorCount() == 0 {
		t.Fatal("expected a logged error for unconfigured export")
	}
}

func TestExportServiceRejectsInvalidConfig(t *testing.T) {
	svc := NewExportService(&mockExporter{}, &mockObs{})
	err := svc.Configure(ports.ExportConfig{Format: "csv"})
	if err == nil {
		t.Fatal("expected validation error")
	}
}

func TestArchiveRecorderFlushesAndCommits(t *testing.T) {
	obs := &mockObs{}
	wal := &mockWAL{}
	q := queue.NewMemQueue(16)
	sink := &mockSink{}
	pol := ports.ArchivePolicy{
		MaxBatchSize: 4,
		IdleSleep:    time.Millisecond,
		OnQueueFull:  "block",
	}

	rec := NewArchiveRecorder(wal, q, sink, pol, obs)
	bus := eventbus.NewMemoryBus(obs)
	rec.Register(bus)
	if err := rec.Start(); err != nil {
		t.Fatalf("start: %v", err)
	}

	id := uuid.New()
	for i := 0; i < 6; i++ {
		bus.Publish(domain.ScanPointAcquired{
			ScanID: id,
			Result: domain.ScanPointResult{PointIndex: i},
		})
	}
	rec.Stop()

	if got := sink.total(); got != 6 {
		t.Fatalf("sink received %d entries, want 6", got)
	}
	if wal.committed != 6 {
		t.Fatalf("wal committed up to %d, want 6", wal.committed)
	}
}

func TestArchiveRecorderReplaysUncommitted(t *testing.T) {
	obs := &mockObs{}
	wal := &mockWAL{}
	id := uuid.New()
	for i := 0; i < 3; i++ {
		if _, err := wal.Append(&ports.ArchiveEntry{
			ScanID: id,
			Result: domain.ScanPointResult{PointIndex: i},
		}); err != nil {
			t.Fatalf("seed wal: %v", err)
		}
	}
	// First entry already made it to the sink before the crash.
	if err := wal.Commit(1); err != nil {
		t.Fatalf("seed commit: %v", err)
	}

	q := queue.NewMemQueue(16)
	sink := &mockSink{}
	rec := NewArchiveRecorder(wal, q, sink, ports.ArchivePolicy{
		MaxBatchSize: 4,
		IdleSleep:    time.Millisecond,
		OnQueueFull:  "block",
	}, obs)

	if err := rec.Start(); err != nil {
		t.Fatalf("start: %v", err)
	}
	rec.Stop()

	if got := sink.total(); got != 2 {
		t.Fatalf("sink received %d replayed entries, want 2", got)
	}
	if wal.committed != 3 {
		t.Fatalf("wal committed up to %d, want 3", wal.committed)
	}
}

func TestArchiveRecorderKeepsWALOnSinkFailure(t *testing.T) {
	obs := &mockObs{}
	wal := &mockWAL{}
	q := queue.NewMemQueue(16)
	sink := &mockSink{failN: 1}
	rec := NewArchiveRecorder(wal, q, sink, ports.ArchivePolicy{
		MaxBatchSize: 4,
		IdleSleep:    time.Millisecond,
		OnQueueFull:  "block",
	}, obs)

	rec.record(&ports.ArchiveEntry{ScanID: uuid.New(), Result: domain.ScanPointResult{}})

	batch := q.DequeueBatch(4)
	rec.flush(batch)

	if wal.committed != 0 {
		t.Fatalf("wal committed %d after sink failure, want 0", wal.committed)
	}
	if obs.errorCount() == 0 {
		t.Fatal("expected sink failure to be logged")
	}

	// Retry succeeds and commits.
	rec.flush(batch)
	if wal.committed != 1 {
		t.Fatalf("wal committed %d after retry, want 1", wal.committed)
	}
}

func TestWaitForWALCapacityBlockThenSucceed(t *testing.T) {
	wal := &mockWAL{sizes: []int64{150, 50}}
	pol := ports.ArchivePolicy{
		MaxWALSizeBytes: 100,
		OnWALFull:       "block",
		IdleSleep:       time.Millisecond,
	}
	obs := &mockObs{}

	if ok := waitForWALCapacity(wal, pol, obs); !ok {
		t.Fatalf("expected waitForWALCapacity to eventually succeed")
	}
	if wal.sizeCalls < 2 {
		t.Fatalf("expected multiple stats calls, got %d", wal.sizeCalls)
	}
}

func TestWaitForWALCapacityDrop(t *testing.T) {
	wal := &mockWAL{sizes: []int64{200, 200}}
	pol := ports.ArchivePolicy{
		MaxWALSizeBytes: 100,
		OnWALFull:       "drop",
	}
	obs := &mockObs{}

	if ok := waitForWALCapacity(wal, pol, obs); ok {
		t.Fatalf("expected waitForWALCapacity to drop and return false")
	}
	if obs.errorCount() == 0 {
		t.Fatalf("expected error to be logged")
	}
}

func TestEnqueueWithPolicyBlock(t *testing.T) {
	q := queue.NewMemQueue(1)
	pol := ports.ArchivePolicy{
		OnQueueFull: "block",
		IdleSleep:   time.Millisecond,
	}
	obs := &mockObs{}

	if ok := enqueueWithPolicy(q, 1, &ports.ArchiveEntry{}, pol, obs); !ok {
		t.Fatal("first enqueue should succeed")
	}

	done := make(chan bool, 1)
	go func() {
		done <- enqueueWithPolicy(q, 2, &ports.ArchiveEntry{}, pol, obs)
	}()

	time.Sleep(5 * time.Millisecond)
	q.DequeueBatch(1)

	select {
	case ok := <-done:
		if !ok {
			t.Fatal("blocked enqueue should succeed after dequeue")
		}
	case <-time.After(5 * time.Second):
		t.Fatal("blocked enqueue never completed")
	}
}

func TestEnqueueWithPolicyDrop(t *testing.T) {
	q := queue.NewMemQueue(1)
	pol := ports.ArchivePolicy{OnQueueFull: "drop"}
	obs := &mockObs{}

	if ok := enqueueWithPolicy(q, 1, &ports.ArchiveEntry{}, pol, obs); !ok {
		t.Fatal("first enqueue should succeed")
	}
	if ok := enqueueWithPolicy(q, 2, &ports.ArchiveEntry{}, pol, obs); ok {
		t.Fatal("expected enqueueWithPolicy to drop when full")
	}
	if obs.errorCount() == 0 {
		t.Fatal("expected drop to log an error")
	}
}
