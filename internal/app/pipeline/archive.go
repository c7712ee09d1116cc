package pipeline

import (
	"fmt"
	"sync"
	"time"

	"github.com/Luciosmic/fieldbench/internal/domain"
	"github.com/Luciosmic/fieldbench/internal/ports"
)

// ArchiveRecorder mirrors every acquired point into the long-term archive:
// event -> WAL -> bounded queue -> database sink. The WAL entry is written
// before the queue so a crash between acquisition and sink commit replays
// the point on the next start. Sink writes happen on a dedicated flusher
// goroutine in batches; the WAL is committed only after the sink accepted
// the batch.
type ArchiveRecorder struct {
	wal  ports.ResultWAL
	q    ports.ResultQueue
	sink ports.ResultSink
	pol  ports.ArchivePolicy
	obs  ports.Observability

	stopCh chan struct{}
	done   chan struct{}
	once   sync.Once
}

func NewArchiveRecorder(wal ports.ResultWAL, q ports.ResultQueue, sink ports.ResultSink, pol ports.ArchivePolicy, obs ports.Observability) *ArchiveRecorder {
	if pol.IdleSleep <= 0 {
		pol.IdleSleep = 5 * time.Millisecond
	}
	if pol.MaxBatchSize <= 0 {
		pol.MaxBatchSize = 128
	}
	return &ArchiveRecorder{
		wal:    wal,
		q:      q,
		sink:   sink,
		pol:    pol,
		obs:    obs,
		stopCh: make(chan struct{}),
		done:   make(chan struct{}),
	}
}

// Register subscribes the recorder to point events on the given bus.
func (r *ArchiveRecorder) Register(bus ports.EventBus) {
	bus.Subscribe(domain.EventScanPointAcquired, func(evt domain.Event) {
		if e, ok := evt.(domain.ScanPointAcquired); ok {
			r.record(&ports.ArchiveEntry{ScanID: e.ScanID, Result: e.Result})
		}
	})
}

// Start replays uncommitted WAL entries into the queue, then runs the
// flusher until Stop.
func (r *ArchiveRecorder) Start() error {
	if err := r.replay(); err != nil {
		return fmt.Errorf("archive replay: %w", err)
	}
	go r.run()
	return nil
}

// Stop ends the flusher after it drains what is already queued.
func (r *ArchiveRecorder) Stop() {
	r.once.Do(func() { close(r.stopCh) })
	<-r.done
}

func (r *ArchiveRecorder) replay() error {
	from := r.wal.Stats().OldestUncommitted
	var replayed int
	err := r.wal.Iterate(from, func(id ports.WALEntryID, e *ports.ArchiveEntry) error {
		if !enqueueWithPolicy(r.q, id, e, r.pol, r.obs) {
			r.obs.IncCounter("bench_archive_dropped_total", 1)
		}
		replayed++
		return nil
	})
	if err != nil {
		return err
	}
	if replayed > 0 {
		r.obs.LogInfo("archive_replayed",
			ports.Field{Key: "entries", Value: replayed})
	}
	return nil
}

func (r *ArchiveRecorder) record(e *ports.ArchiveEntry) {
	if !waitForWALCapacity(r.wal, r.pol, r.obs) {
		r.obs.IncCounter("bench_archive_dropped_total", 1)
		return
	}

	id, err := r.wal.Append(e)
	if err != nil {
		r.obs.LogCritical("wal_append_failed", err)
		return
	}
	r.obs.SetGauge("bench_wal_size_bytes", float64(r.wal.Stats().SizeBytes))

	if !enqueueWithPolicy(r.q, id, e, r.pol, r.obs) {
		r.obs.IncCounter("bench_archive_dropped_total", 1)
	}
	r.obs.SetGauge("bench_archive_queue_length", float64(r.q.Len()))
}

func (r *ArchiveRecorder) run() {
	defer close(r.done)
	for {
		batch := r.q.DequeueBatch(r.pol.MaxBatchSize)
		if len(batch) == 0 {
			select {
			case <-r.stopCh:
				return
			case <-time.After(r.pol.IdleSleep):
			}
			continue
		}
		r.flush(batch)
	}
}

func (r *ArchiveRecorder) flush(batch []ports.QueuedEntry) {
	out := make([]*ports.ArchiveEntry, 0, len(batch))
	var maxID ports.WALEntryID
	for _, item := range batch {
		out = append(out, item.Entry)
		if item.ID > maxID {
			maxID = item.ID
		}
	}

	if err := r.sink.WriteBatch(out); err != nil {
		// Keep the WAL uncommitted; the batch replays on next start.
		r.obs.LogError("sink_write_failed", err,
			ports.Field{Key: "sink", Value: r.sink.Name()})
		return
	}
	r.obs.IncCounter("bench_archive_rows_total", float64(len(out)))

	if err := r.wal.Commit(maxID); err != nil {
		r.obs.LogError("wal_commit_failed", err)
	}
	r.obs.SetGauge("bench_archive_queue_length", float64(r.q.Len()))
}

func waitForWALCapacity(wal ports.ResultWAL, pol ports.ArchivePolicy, obs ports.Observability) bool {
	if pol.MaxWALSizeBytes <= 0 {
		return true
	}
	sleep := pol.IdleSleep
	if sleep <= 0 {
		sleep = 5 * time.Millisecond
	}

	for {
		stats := wal.Stats()
		if stats.SizeBytes < pol.MaxWALSizeBytes {
			return true
		}

		switch pol.OnWALFull {
		case "block":
			time.Sleep(sleep)
		case "drop":
			obs.LogError("wal_full_drop", fmt.Errorf("size=%d limit=%d", stats.SizeBytes, pol.MaxWALSizeBytes))
			return false
		default:
			obs.LogError("wal_policy_invalid", fmt.Errorf("policy=%s", pol.OnWALFull))
			return false
		}
	}
}

func enqueueWithPolicy(q ports.ResultQueue, id ports.WALEntryID, e *ports.ArchiveEntry, pol ports.ArchivePolicy, obs ports.Observability) bool {
	sleep := pol.IdleSleep
	if sleep <= 0 {
		sleep = 5 * time.Millisecond
	}

	for {
		if ok := q.Enqueue(id, e); ok {
			return true
		}

		switch pol.OnQueueFull {
		case "block":
			time.Sleep(sleep)
		case "drop", "reject":
			obs.LogError("queue_full_drop", fmt.Errorf("queue length exceeded capacity %d", pol.MaxQueueLen))
			return false
		default:
			obs.LogError("queue_policy_invalid", fmt.Errorf("policy=%s", pol.OnQueueFull))
			return false
		}
	}
}
