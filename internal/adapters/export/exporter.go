package export

import (
	"bufio"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	"github.com/Luciosmic/fieldbench/internal/domain"
	"github.com/Luciosmic/fieldbench/internal/ports"
)

type bufferID int

const (
	bufA    bufferID = 0
	bufB    bufferID = 1
	bufNone bufferID = -1
)

const stopJoinTimeout = 5 * time.Second

// StreamExporter persists scan points through a pair of alternating buffers.
// The producer appends into the active buffer under a short lock; when the
// active buffer reaches the batch threshold and no drain is in flight, the
// buffers swap and the filled one is handed to the writer goroutine. The
// producer never waits on disk I/O: if the writer is still draining, the
// active buffer simply grows past the threshold until the next opportunity.
//
// Invariants: at most one buffer is draining at any instant, and no sample
// can land in a buffer after it was swapped out, because the threshold check
// and the swap happen under the same lock as the append.
type StreamExporter struct {
	enc ports.RowEncoder
	obs ports.Observability

	mu        sync.Mutex
	buffers   [2][]ports.ExportRow
	active    bufferID
	draining  bufferID
	accepting bool
	stopped   bool
	index     int
	t0        time.Time
	cfg       ports.ExportConfig

	workCh chan bufferID
	stopCh chan struct{}
	done   chan struct{}

	file *os.File
	w    *bufio.Writer

	rowsWritten atomic.Int64
}

func NewStreamExporter(enc ports.RowEncoder, obs ports.Observability) *StreamExporter {
	return &StreamExporter{
		enc:      enc,
		obs:      obs,
		draining: bufNone,
	}
}

// Start validates the destination, opens the output file, writes the format
// header, and spawns the writer goroutine.
func (e *StreamExporter) Start(cfg ports.ExportConfig) error {
	if err := cfg.Validate(); err != nil {
		return err
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	if e.accepting {
		return &ports.ExportError{Op: "start", Err: fmt.Errorf("exporter already running")}
	}

	now := time.Now()
	filename := fmt.Sprintf("%s_%s.csv", now.Format("2006-01-02_150405"), cfg.FilenameBase)
	path := filepath.Join(cfg.OutputDir, filename)

	f, err := os.Create(path)
	if err != nil {
		return &ports.ExportError{Op: "start", Err: err}
	}
	w := bufio.NewWriterSize(f, 1<<20)
	if err := e.enc.WriteHeader(w, cfg, now); err != nil {
		f.Close()
		return &ports.ExportError{Op: "header", Err: err}
	}

	e.cfg = cfg
	e.file = f
	e.w = w
	e.buffers[bufA] = e.buffers[bufA][:0]
	e.buffers[bufB] = e.buffers[bufB][:0]
	e.active = bufA
	e.draining = bufNone
	e.index = 0
	e.t0 = now
	e.accepting = true
	e.stopped = false
	e.rowsWritten.Store(0)

	e.workCh = make(chan bufferID, 2)
	e.stopCh = make(chan struct{})
	e.done = make(chan struct{})
	go e.writerLoop()

	e.obs.LogInfo("export_started",
		ports.Field{Key: "path", Value: path},
		ports.Field{Key: "format", Value: e.enc.Name()})
	return nil
}

// Append records one point in the active buffer. It never blocks on the
// writer; appends after Stop are dropped.
func (e *StreamExporter) Append(p domain.ScanPointResult) {
	e.mu.Lock()
	if !e.accepting {
		e.mu.Unlock()
		return
	}

	row := ports.ExportRow{
		Index:   e.index,
		RelTime: time.Since(e.t0).Seconds(),
		Point:   p,
	}
	e.index++
	e.buffers[e.active] = append(e.buffers[e.active], row)

	depth := len(e.buffers[e.active])
	signal := bufNone
	if depth >= e.cfg.BatchSize && e.draining == bufNone {
		signal = e.active
		e.draining = e.active
		e.active = 1 - e.active
	} else if e.cfg.MaxBuffered > 0 && depth == e.cfg.MaxBuffered+1 {
		// Writer is persistently behind; growth is unbounded by design but
		// must be visible.
		e.obs.IncCounter("bench_export_backlog_total", 1)
		e.obs.LogError("export_writer_lagging",
			fmt.Errorf("active buffer grew to %d rows (threshold %d)", depth, e.cfg.BatchSize))
	}
	e.obs.SetGauge("bench_export_buffer_depth", float64(depth))
	e.mu.Unlock()

	if signal != bufNone {
		// Capacity 2 and the single-drain guard make this send non-blocking.
		e.workCh <- signal
	}
}

// Stop ends acceptance, lets the writer drain every remaining row, joins it
// with a bounded timeout, then writes the trailer and closes the file.
func (e *StreamExporter) Stop() error {
	e.mu.Lock()
	if e.stopped || e.file == nil {
		e.mu.Unlock()
		return nil
	}
	e.accepting = false
	e.stopped = true
	e.mu.Unlock()

	close(e.stopCh)
	select {
	case <-e.done:
	case <-time.After(stopJoinTimeout):
		e.obs.LogCritical("export_stop_timeout",
			fmt.Errorf("writer did not finish within %s", stopJoinTimeout))
		return &ports.ExportError{Op: "stop", Err: fmt.Errorf("writer join timed out after %s", stopJoinTimeout)}
	}

	var errs []error
	if err := e.enc.WriteTrailer(e.w, int(e.rowsWritten.Load()), time.Now()); err != nil {
		errs = append(errs, &ports.ExportError{Op: "trailer", Err: err})
	}
	if err := e.w.Flush(); err != nil {
		errs = append(errs, &ports.ExportError{Op: "flush", Err: err})
	}
	if err := e.file.Close(); err != nil {
		errs = append(errs, &ports.ExportError{Op: "close", Err: err})
	}
	e.mu.Lock()
	e.file = nil
	e.w = nil
	e.mu.Unlock()

	e.obs.LogInfo("export_stopped",
		ports.Field{Key: "rows", Value: e.rowsWritten.Load()})
	return errors.Join(errs...)
}

// RowsWritten reports rows persisted so far.
func (e *StreamExporter) RowsWritten() int {
	return int(e.rowsWritten.Load())
}

func (e *StreamExporter) writerLoop() {
	defer close(e.done)
	for {
		select {
		case id := <-e.workCh:
			e.drain(id)
		case <-e.stopCh:
			// Finish any exchange already queued, then sweep the rows still
			// sitting in the buffers. The producer stopped before stopCh
			// closed, so nothing new can arrive.
			for {
				select {
				case id := <-e.workCh:
					e.drain(id)
				default:
					e.drainLeftovers()
					return
				}
			}
		}
	}
}

// drain copies the buffer's contents out under the lock, clears it, and
// releases the draining marker before serializing outside the lock.
func (e *StreamExporter) drain(id bufferID) {
	e.mu.Lock()
	rows := make([]ports.ExportRow, len(e.buffers[id]))
	copy(rows, e.buffers[id])
	e.buffers[id] = e.buffers[id][:0]
	e.draining = bufNone
	e.mu.Unlock()

	e.writeRows(rows)
}

func (e *StreamExporter) drainLeftovers() {
	e.mu.Lock()
	var rows []ports.ExportRow
	rows = append(rows, e.buffers[1-e.active]...)
	rows = append(rows, e.buffers[e.active]...)
	e.buffers[bufA] = e.buffers[bufA][:0]
	e.buffers[bufB] = e.buffers[bufB][:0]
	e.draining = bufNone
	e.mu.Unlock()

	e.writeRows(rows)
}

func (e *StreamExporter) writeRows(rows []ports.ExportRow) {
	if len(rows) == 0 {
		return
	}
	start := time.Now()
	chunk := e.cfg.FlushEvery
	if chunk <= 0 {
		chunk = len(rows)
	}
	for lo := 0; lo < len(rows); lo += chunk {
		hi := lo + chunk
		if hi > len(rows) {
			hi = len(rows)
		}
		if err := e.enc.WriteRows(e.w, rows[lo:hi]); err != nil {
			e.obs.IncCounter("bench_export_errors_total", 1)
			e.obs.LogError("export_write_failed", err)
			return
		}
		if err := e.w.Flush(); err != nil {
			e.obs.IncCounter("bench_export_errors_total", 1)
			e.obs.LogError("export_flush_failed", err)
			return
		}
		e.rowsWritten.Add(int64(hi - lo))
		e.obs.IncCounter("bench_export_rows_total", float64(hi-lo))
	}
	e.obs.ObserveLatency("bench_export_drain_seconds", time.Since(start).Seconds())
}

var _ ports.Exporter = (*StreamExporter)(nil)
