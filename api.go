package fieldbench

import (
	base "github.com/Luciosmic/fieldbench/pkg/fieldbench"
)

// Type aliases so consumers can import github.com/Luciosmic/fieldbench
// directly.
type (
	Config            = base.Config
	ScanConfig        = base.ScanConfig
	Pattern           = base.Pattern
	ExportConfig      = base.ExportConfig
	ArchiveConfig     = base.ArchiveConfig
	ArchivePolicy     = base.ArchivePolicy
	MetricsConfig     = base.MetricsConfig
	MotionConfig      = base.MotionConfig
	AcquisitionConfig = base.AcquisitionConfig
	OPCUAConfig       = base.OPCUAConfig

	BenchRuntime = base.BenchRuntime
	Option       = base.Option

	MotionPort      = base.MotionPort
	AcquisitionPort = base.AcquisitionPort
	EventBus        = base.EventBus
	EventHandler    = base.EventHandler
	Observability   = base.Observability
	Field           = base.Field
	Exporter        = base.Exporter
	RowEncoder      = base.RowEncoder
	ExportRow       = base.ExportRow
	ResultSink      = base.ResultSink
	ArchiveEntry    = base.ArchiveEntry
	ScanObserver    = base.ScanObserver
	NopObserver     = base.NopObserver

	Event           = base.Event
	Trajectory      = base.Trajectory
	ScanSnapshot    = base.ScanSnapshot
	ScanStatus      = base.ScanStatus
	ScanPointResult = base.ScanPointResult
	Measurement     = base.Measurement
	Position        = base.Position

	ScanStartedEvent       = base.ScanStartedEvent
	ScanPointAcquiredEvent = base.ScanPointAcquiredEvent
	ScanCompletedEvent     = base.ScanCompletedEvent
	ScanFailedEvent        = base.ScanFailedEvent
	ScanCancelledEvent     = base.ScanCancelledEvent
	ScanPausedEvent        = base.ScanPausedEvent
	ScanResumedEvent       = base.ScanResumedEvent
	ScanProgressEvent      = base.ScanProgressEvent

	ValidationError      = base.ValidationError
	StateTransitionError = base.StateTransitionError
	MotionError          = base.MotionError
	AcquisitionError     = base.AcquisitionError
	ExportError          = base.ExportError
)

// Trajectory patterns.
const (
	PatternRaster     = base.PatternRaster
	PatternSerpentine = base.PatternSerpentine
	PatternComb       = base.PatternComb
)

// Scan lifecycle states.
const (
	StatusPending   = base.StatusPending
	StatusRunning   = base.StatusRunning
	StatusCompleted = base.StatusCompleted
	StatusFailed    = base.StatusFailed
	StatusCancelled = base.StatusCancelled
)

// Event kinds accepted by Subscribe.
const (
	EventScanStarted       = base.EventScanStarted
	EventScanPointAcquired = base.EventScanPointAcquired
	EventScanCompleted     = base.EventScanCompleted
	EventScanFailed        = base.EventScanFailed
	EventScanCancelled     = base.EventScanCancelled
	EventScanPaused        = base.EventScanPaused
	EventScanResumed       = base.EventScanResumed
	EventScanProgress      = base.EventScanProgress
)

// Config helpers.
func LoadConfig(path string) (*Config, error) {
	return base.LoadConfig(path)
}

func GenerateTrajectory(cfg ScanConfig) (Trajectory, error) {
	return base.GenerateTrajectory(cfg)
}

// Bench runtime and options.
func NewBenchRuntime(cfg *Config, opts ...Option) (*BenchRuntime, error) {
	return base.NewBenchRuntime(cfg, opts...)
}

func WithMotion(m MotionPort) Option {
	return base.WithMotion(m)
}

func WithAcquisition(a AcquisitionPort) Option {
	return base.WithAcquisition(a)
}

func WithEventBus(b EventBus) Option {
	return base.WithEventBus(b)
}

func WithObservability(obs Observability) Option {
	return base.WithObservability(obs)
}

func WithExporter(e Exporter) Option {
	return base.WithExporter(e)
}

func WithEncoder(enc RowEncoder) Option {
	return base.WithEncoder(enc)
}

func WithResultSink(s ResultSink) Option {
	return base.WithResultSink(s)
}
