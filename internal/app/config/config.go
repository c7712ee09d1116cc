package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/Luciosmic/fieldbench/internal/adapters/acquisition"
	"github.com/Luciosmic/fieldbench/internal/domain"
	"github.com/Luciosmic/fieldbench/internal/ports"
)

type Config struct {
	Scan        domain.ScanConfig  `yaml:"scan"`
	Export      ports.ExportConfig `yaml:"export"`
	Archive     ArchiveConfig      `yaml:"archive"`
	Metrics     MetricsConfig      `yaml:"metrics"`
	Motion      MotionConfig       `yaml:"motion"`
	Acquisition AcquisitionConfig  `yaml:"acquisition"`
}

// ArchiveConfig enables the WAL-backed database archive of scan points.
type ArchiveConfig struct {
	Enabled    bool                `yaml:"enabled"`
	ConnString string              `yaml:"conn_string"`
	Table      string              `yaml:"table"`
	WALDir     string              `yaml:"wal_dir"`
	Policy     ports.ArchivePolicy `yaml:"policy"`
}

type MetricsConfig struct {
	Addr string `yaml:"addr"`
}

// MotionConfig selects and tunes the stage adapter.
type MotionConfig struct {
	Mode   string        `yaml:"mode"` // "sim"
	Speed  float64       `yaml:"speed"`
	Settle time.Duration `yaml:"settle"`
	XMax   float64       `yaml:"x_max"`
	YMax   float64       `yaml:"y_max"`
}

// AcquisitionConfig selects and tunes the acquisition adapter.
type AcquisitionConfig struct {
	Mode          string                  `yaml:"mode"` // "sim" or "opcua"
	SampleLatency time.Duration           `yaml:"sample_latency"`
	OPCUA         acquisition.OPCUAConfig `yaml:"opcua"`
}

func Load(path string) (*Config, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var cfg Config
	if err := yaml.Unmarshal(raw, &cfg); err != nil {
		return nil, err
	}

	cfg.applyDefaults()
	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func (c *Config) applyDefaults() {
	if c.Scan.Pattern == "" {
		c.Scan.Pattern = domain.PatternSerpentine
	}
	if c.Scan.Averaging == 0 {
		c.Scan.Averaging = 1
	}
	if c.Scan.StabilizationDelay == 0 {
		c.Scan.StabilizationDelay = 100 * time.Millisecond
	}
	if c.Scan.TargetUncertainty == 0 {
		c.Scan.TargetUncertainty = 1e-5
	}

	if c.Export.Format == "" {
		c.Export.Format = "csv"
	}
	if c.Export.FilenameBase == "" {
		c.Export.FilenameBase = "scan"
	}
	if c.Export.BatchSize == 0 {
		c.Export.BatchSize = 1000
	}
	if c.Export.FlushEvery == 0 {
		c.Export.FlushEvery = 100
	}

	if c.Archive.Policy.MaxWALSizeBytes == 0 {
		c.Archive.Policy.MaxWALSizeBytes = 1 << 30
	}
	if c.Archive.Policy.MaxQueueLen == 0 {
		c.Archive.Policy.MaxQueueLen = 100_000
	}
	if c.Archive.Policy.MaxBatchSize == 0 {
		c.Archive.Policy.MaxBatchSize = 5_000
	}
	if c.Archive.Policy.IdleSleep == 0 {
		c.Archive.Policy.IdleSleep = 5 * time.Millisecond
	}
	if c.Archive.Policy.OnQueueFull == "" {
		c.Archive.Policy.OnQueueFull = "block"
	}
	if c.Archive.Policy.OnWALFull == "" {
		c.Archive.Policy.OnWALFull = "block"
	}
	if c.Archive.Table == "" {
		c.Archive.Table = "scan_points"
	}
	if c.Archive.WALDir == "" {
		c.Archive.WALDir = "./data/wal"
	}

	if c.Metrics.Addr == "" {
		c.Metrics.Addr = ":9100"
	}

	if c.Motion.Mode == "" {
		c.Motion.Mode = "sim"
	}
	if c.Motion.Speed == 0 {
		c.Motion.Speed = 50
	}
	if c.Motion.XMax == 0 {
		c.Motion.XMax = 300
	}
	if c.Motion.YMax == 0 {
		c.Motion.YMax = 300
	}

	if c.Acquisition.Mode == "" {
		c.Acquisition.Mode = "sim"
	}
	if c.Acquisition.SampleLatency == 0 {
		c.Acquisition.SampleLatency = time.Millisecond
	}
	c.Acquisition.OPCUA.ApplyDefaults()
}

func (c *Config) validate() error {
	if err := c.Scan.Validate(); err != nil {
		return fmt.Errorf("scan config: %w", err)
	}
	if c.Export.OutputDir == "" {
		return fmt.Errorf("export.output_dir is required")
	}
	switch c.Export.Format {
	case "csv", "labview":
	default:
		return fmt.Errorf("export.format must be csv or labview, got %q", c.Export.Format)
	}
	if c.Archive.Enabled && c.Archive.ConnString == "" {
		return fmt.Errorf("archive.conn_string is required when archive is enabled")
	}
	switch c.Motion.Mode {
	case "sim":
	default:
		return fmt.Errorf("motion.mode %q is not supported", c.Motion.Mode)
	}
	switch c.Acquisition.Mode {
	case "sim":
	case "opcua":
		if err := c.Acquisition.OPCUA.Validate(); err != nil {
			return fmt.Errorf("acquisition.opcua: %w", err)
		}
	default:
		return fmt.Errorf("acquisition.mode %q is not supported", c.Acquisition.Mode)
	}
	return nil
}
