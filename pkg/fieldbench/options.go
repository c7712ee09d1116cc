package fieldbench

import (
	"github.com/Luciosmic/fieldbench/internal/adapters/eventbus"
	"github.com/Luciosmic/fieldbench/internal/domain"
	"github.com/Luciosmic/fieldbench/internal/ports"
)

// Port aliases so embedders can implement replacements without importing
// internal packages.
type (
	MotionPort      = ports.MotionPort
	AcquisitionPort = ports.AcquisitionPort
	EventBus        = ports.EventBus
	EventHandler    = ports.EventHandler
	Observability   = ports.Observability
	Field           = ports.Field
	Exporter        = ports.Exporter
	RowEncoder      = ports.RowEncoder
	ExportRow       = ports.ExportRow
	ResultSink      = ports.ResultSink
	ArchiveEntry    = ports.ArchiveEntry
	ScanObserver    = ports.ScanObserver

	Event           = domain.Event
	ScanSnapshot    = domain.ScanSnapshot
	ScanStatus      = domain.ScanStatus
	ScanPointResult = domain.ScanPointResult
	Measurement     = domain.Measurement
	Position        = domain.Position

	ValidationError      = domain.ValidationError
	StateTransitionError = domain.StateTransitionError
	MotionError          = ports.MotionError
	AcquisitionError     = ports.AcquisitionError
	ExportError          = ports.ExportError
)

// NopObserver implements ScanObserver with no-ops; embed it to override only
// the callbacks you care about.
type NopObserver = eventbus.NopObserver

// Event payloads delivered to Subscribe handlers.
type (
	ScanStartedEvent       = domain.ScanStarted
	ScanPointAcquiredEvent = domain.ScanPointAcquired
	ScanCompletedEvent     = domain.ScanCompleted
	ScanFailedEvent        = domain.ScanFailed
	ScanCancelledEvent     = domain.ScanCancelled
	ScanPausedEvent        = domain.ScanPaused
	ScanResumedEvent       = domain.ScanResumed
	ScanProgressEvent      = domain.ScanProgress
)

// Scan lifecycle states.
const (
	StatusPending   = domain.StatusPending
	StatusRunning   = domain.StatusRunning
	StatusCompleted = domain.StatusCompleted
	StatusFailed    = domain.StatusFailed
	StatusCancelled = domain.StatusCancelled
)

// Event kinds accepted by Subscribe.
const (
	EventScanStarted       = domain.EventScanStarted
	EventScanPointAcquired = domain.EventScanPointAcquired
	EventScanCompleted     = domain.EventScanCompleted
	EventScanFailed        = domain.EventScanFailed
	EventScanCancelled     = domain.EventScanCancelled
	EventScanPaused        = domain.EventScanPaused
	EventScanResumed       = domain.EventScanResumed
	EventScanProgress      = domain.EventScanProgress
)

// Option customizes the dependencies used by BenchRuntime.
type Option func(*overrides)

type overrides struct {
	motion   ports.MotionPort
	acq      ports.AcquisitionPort
	bus      ports.EventBus
	obs      ports.Observability
	exporter ports.Exporter
	encoder  ports.RowEncoder
	sink     ports.ResultSink
}

// WithMotion injects a custom stage adapter (real hardware drivers,
// simulators with different kinematics, etc.).
func WithMotion(m MotionPort) Option {
	return func(o *overrides) { o.motion = m }
}

// WithAcquisition injects a custom acquisition chain.
func WithAcquisition(a AcquisitionPort) Option {
	return func(o *overrides) { o.acq = a }
}

// WithEventBus replaces the in-process bus, e.g. to bridge events onto a
// message broker.
func WithEventBus(b EventBus) Option {
	return func(o *overrides) { o.bus = b }
}

// WithObservability plugs in a custom observability backend.
func WithObservability(obs Observability) Option {
	return func(o *overrides) { o.obs = obs }
}

// WithExporter replaces the double-buffered file exporter entirely.
func WithExporter(e Exporter) Option {
	return func(o *overrides) { o.exporter = e }
}

// WithEncoder overrides the row encoder chosen from the configured format.
func WithEncoder(enc RowEncoder) Option {
	return func(o *overrides) { o.encoder = enc }
}

// WithResultSink injects a custom archive sink so points can be mirrored to
// any database or API instead of Postgres.
func WithResultSink(s ResultSink) Option {
	return func(o *overrides) { o.sink = s }
}
