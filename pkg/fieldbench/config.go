package fieldbench

import (
	"github.com/Luciosmic/fieldbench/internal/adapters/acquisition"
	"github.com/Luciosmic/fieldbench/internal/app/config"
	"github.com/Luciosmic/fieldbench/internal/domain"
	"github.com/Luciosmic/fieldbench/internal/ports"
)

// Config re-exports the root configuration struct so downstream projects can
// construct or modify it programmatically.
type Config = config.Config

type (
	// ScanConfig describes one scan: zone, grid, pattern, and timing.
	ScanConfig = domain.ScanConfig
	// Pattern selects trajectory traversal order.
	Pattern = domain.Pattern
	// ExportConfig describes the export destination and buffering.
	ExportConfig = ports.ExportConfig
	// ArchiveConfig enables the WAL-backed database archive.
	ArchiveConfig = config.ArchiveConfig
	// ArchivePolicy tunes WAL/queue thresholds.
	ArchivePolicy = ports.ArchivePolicy
	// MetricsConfig configures the metrics HTTP server.
	MetricsConfig = config.MetricsConfig
	// MotionConfig selects and tunes the stage adapter.
	MotionConfig = config.MotionConfig
	// AcquisitionConfig selects and tunes the acquisition adapter.
	AcquisitionConfig = config.AcquisitionConfig
	// OPCUAConfig holds connection details for the OPC UA acquisition chain.
	OPCUAConfig = acquisition.OPCUAConfig
	// Trajectory is the ordered list of stage positions a scan visits.
	Trajectory = domain.Trajectory
)

// Pattern values.
const (
	PatternRaster     = domain.PatternRaster
	PatternSerpentine = domain.PatternSerpentine
	PatternComb       = domain.PatternComb
)

// LoadConfig loads YAML from disk using the internal config reader.
func LoadConfig(path string) (*Config, error) {
	return config.Load(path)
}

// GenerateTrajectory expands a scan config into the positions it will visit,
// in traversal order. Useful for previewing a scan without running it.
func GenerateTrajectory(cfg ScanConfig) (Trajectory, error) {
	return domain.GenerateTrajectory(cfg)
}
