package ports

import (
	"fmt"
	"io"
	"os"
	"time"

	"github.com/Luciosmic/fieldbench/internal/domain"
)

// ExportError wraps write or flush failures in the export pipeline. Export
// failures are logged and never roll back already-published point events.
type ExportError struct {
	Op  string
	Err error
}

func (e *ExportError) Error() string { return fmt.Sprintf("export %s: %v", e.Op, e.Err) }
func (e *ExportError) Unwrap() error { return e.Err }

// ExportRow is one persisted sample: its append index, the timestamp
// relative to export start in seconds, and the point itself.
type ExportRow struct {
	Index   int
	RelTime float64
	Point   domain.ScanPointResult
}

// ExportConfig describes the export destination and buffering thresholds.
type ExportConfig struct {
	OutputDir    string            `yaml:"output_dir"`
	FilenameBase string            `yaml:"filename_base"`
	Format       string            `yaml:"format"` // "csv" or "labview"
	Metadata     map[string]string `yaml:"metadata"`

	// BatchSize is the active-buffer threshold that triggers an exchange.
	BatchSize int `yaml:"batch_size"`

	// FlushEvery bounds data loss: the writer flushes to disk after this
	// many rows within a drain.
	FlushEvery int `yaml:"flush_every"`

	// MaxBuffered is a soft limit on active-buffer growth while the writer
	// lags. Exceeding it is logged and counted, never blocked or dropped.
	MaxBuffered int `yaml:"max_buffered"`
}

// Validate checks the destination is usable before a run starts.
func (c ExportConfig) Validate() error {
	if c.OutputDir == "" {
		return &ExportError{Op: "config", Err: fmt.Errorf("output_dir is required")}
	}
	info, err := os.Stat(c.OutputDir)
	if err != nil {
		return &ExportError{Op: "config", Err: fmt.Errorf("output_dir %q: %w", c.OutputDir, err)}
	}
	if !info.IsDir() {
		return &ExportError{Op: "config", Err: fmt.Errorf("output_dir %q is not a directory", c.OutputDir)}
	}
	if c.FilenameBase == "" {
		return &ExportError{Op: "config", Err: fmt.Errorf("filename_base is required")}
	}
	switch c.Format {
	case "csv", "labview":
	default:
		return &ExportError{Op: "config", Err: fmt.Errorf("unknown format %q", c.Format)}
	}
	if c.BatchSize < 1 {
		return &ExportError{Op: "config", Err: fmt.Errorf("batch_size must be >= 1, got %d", c.BatchSize)}
	}
	return nil
}

// RowEncoder serializes drained rows to the destination. The buffering and
// swap protocol above it is format-agnostic; only drain-time serialization
// differs between encoders.
type RowEncoder interface {
	Name() string
	WriteHeader(w io.Writer, cfg ExportConfig, startedAt time.Time) error
	WriteRows(w io.Writer, rows []ExportRow) error
	WriteTrailer(w io.Writer, rowsWritten int, endedAt time.Time) error
}

// Exporter accepts point data in producer time and persists it in writer
// time without blocking the producer on disk I/O.
type Exporter interface {
	Start(cfg ExportConfig) error
	Append(p domain.ScanPointResult)
	Stop() error
	RowsWritten() int
}
