package fieldbench

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log"
	"net/http"
	"sync"
	"time"

	_ "github.com/lib/pq"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/Luciosmic/fieldbench/internal/adapters/acquisition"
	"github.com/Luciosmic/fieldbench/internal/adapters/eventbus"
	"github.com/Luciosmic/fieldbench/internal/adapters/export"
	"github.com/Luciosmic/fieldbench/internal/adapters/motion"
	"github.com/Luciosmic/fieldbench/internal/adapters/observability"
	"github.com/Luciosmic/fieldbench/internal/adapters/queue"
	"github.com/Luciosmic/fieldbench/internal/adapters/sink"
	"github.com/Luciosmic/fieldbench/internal/adapters/wal"
	"github.com/Luciosmic/fieldbench/internal/app/executor"
	"github.com/Luciosmic/fieldbench/internal/app/pipeline"
	"github.com/Luciosmic/fieldbench/internal/domain"
	"github.com/Luciosmic/fieldbench/internal/ports"
)

// BenchRuntime wires the full bench: motion + acquisition adapters, the scan
// executor, the event bus, the double-buffered export pipeline, and the
// optional database archive. It is the embedding surface for Go services and
// the backing of the CLI.
type BenchRuntime struct {
	cfg *Config
	obs ports.Observability
	bus ports.EventBus

	motion   ports.MotionPort
	acq      ports.AcquisitionPort
	exporter ports.Exporter

	exportSvc *pipeline.ExportService
	archive   *pipeline.ArchiveRecorder
	db        *sql.DB

	metricsSrv  *http.Server
	gaugeStopCh chan struct{}
	archiveWAL  ports.ResultWAL
	archiveQ    ports.ResultQueue

	mu   sync.Mutex
	scan *domain.Scan
	ctl  *executor.Control
}

// NewBenchRuntime bootstraps the default adapters (sim or OPC UA acquisition,
// sim stage, file WAL, in-memory queue, Postgres sink, Prometheus
// observability). Options override any dependency.
func NewBenchRuntime(cfg *Config, opts ...Option) (*BenchRuntime, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config is required")
	}

	var ov overrides
	for _, opt := range opts {
		if opt != nil {
			opt(&ov)
		}
	}

	obs := ov.obs
	if obs == nil {
		obs = observability.NewPromObs()
	}

	bus := ov.bus
	if bus == nil {
		bus = eventbus.NewMemoryBus(obs)
	}

	stage := ov.motion
	if stage == nil {
		stage = motion.NewSimStage(
			motion.WithSpeed(cfg.Motion.Speed),
			motion.WithSettle(cfg.Motion.Settle),
			motion.WithLimits(cfg.Motion.XMax, cfg.Motion.YMax),
		)
	}

	acq := ov.acq
	if acq == nil {
		var err error
		acq, err = buildAcquisition(cfg)
		if err != nil {
			return nil, err
		}
	}

	enc := ov.encoder
	if enc == nil {
		switch cfg.Export.Format {
		case "labview":
			enc = export.NewLabViewEncoder()
		default:
			enc = export.NewCSVEncoder()
		}
	}

	exporter := ov.exporter
	if exporter == nil {
		exporter = export.NewStreamExporter(enc, obs)
	}

	rt := &BenchRuntime{
		cfg:      cfg,
		obs:      obs,
		bus:      bus,
		motion:   stage,
		acq:      acq,
		exporter: exporter,
	}

	rt.exportSvc = pipeline.NewExportService(exporter, obs)
	if err := rt.exportSvc.Configure(exportConfigWithScanMetadata(cfg)); err != nil {
		return nil, err
	}
	rt.exportSvc.Register(bus)

	if cfg.Archive.Enabled {
		if err := rt.buildArchive(&ov); err != nil {
			return nil, err
		}
		rt.archive.Register(bus)
	}

	return rt, nil
}

func buildAcquisition(cfg *Config) (ports.AcquisitionPort, error) {
	switch cfg.Acquisition.Mode {
	case "opcua":
		return acquisition.NewOPCUAChain(cfg.Acquisition.OPCUA)
	default:
		return acquisition.NewSimChain(
			acquisition.WithSampleLatency(cfg.Acquisition.SampleLatency),
		), nil
	}
}

func (rt *BenchRuntime) buildArchive(ov *overrides) error {
	w, err := wal.NewFileWAL(rt.cfg.Archive.WALDir)
	if err != nil {
		return err
	}
	q := queue.NewMemQueue(rt.cfg.Archive.Policy.MaxQueueLen)

	snk := ov.sink
	if snk == nil {
		db, err := sql.Open("postgres", rt.cfg.Archive.ConnString)
		if err != nil {
			return err
		}
		rt.db = db
		snk = sink.NewPostgresSink(db, rt.cfg.Archive.Table)
	}

	rt.archiveWAL = w
	rt.archiveQ = q
	rt.archive = pipeline.NewArchiveRecorder(w, q, snk, rt.cfg.Archive.Policy, rt.obs)
	return nil
}

// exportConfigWithScanMetadata copies the configured export destination and
// stamps the scan parameters into the file header metadata.
func exportConfigWithScanMetadata(cfg *Config) ports.ExportConfig {
	out := cfg.Export
	md := make(map[string]string, len(out.Metadata)+6)
	for k, v := range out.Metadata {
		md[k] = v
	}
	md["pattern"] = string(cfg.Scan.Pattern)
	md["grid"] = fmt.Sprintf("%dx%d", cfg.Scan.XPoints, cfg.Scan.YPoints)
	md["zone_x"] = fmt.Sprintf("[%g, %g]", cfg.Scan.XMin, cfg.Scan.XMax)
	md["zone_y"] = fmt.Sprintf("[%g, %g]", cfg.Scan.YMin, cfg.Scan.YMax)
	md["averaging"] = fmt.Sprintf("%d", cfg.Scan.Averaging)
	md["target_uncertainty_volts"] = fmt.Sprintf("%g", cfg.Scan.TargetUncertainty)
	out.Metadata = md
	return out
}

// Start connects hardware where needed, begins the archive flusher, and
// launches the metrics endpoint. It returns immediately.
func (rt *BenchRuntime) Start(ctx context.Context) error {
	if chain, ok := rt.acq.(*acquisition.OPCUAChain); ok {
		if err := chain.Connect(ctx); err != nil {
			return err
		}
	}
	if rt.archive != nil {
		if err := rt.archive.Start(); err != nil {
			return err
		}
	}
	rt.startMetrics()
	return nil
}

// Subscribe registers a raw event listener for the given kind.
func (rt *BenchRuntime) Subscribe(kind string, fn EventHandler) {
	rt.bus.Subscribe(kind, fn)
}

// Observe attaches a typed observer to the scan lifecycle.
func (rt *BenchRuntime) Observe(obs ScanObserver) {
	eventbus.AttachObserver(rt.bus, obs)
}

// ExecuteScan runs one step scan to a terminal state, blocking the caller.
// Cancelling the context cancels the scan cooperatively between points.
func (rt *BenchRuntime) ExecuteScan(ctx context.Context) error {
	return rt.execute(ctx, false)
}

// ExecuteFlyScan runs one fly scan: acquisition continues while the stage
// moves between trajectory waypoints.
func (rt *BenchRuntime) ExecuteFlyScan(ctx context.Context) error {
	return rt.execute(ctx, true)
}

func (rt *BenchRuntime) execute(ctx context.Context, fly bool) error {
	rt.mu.Lock()
	if rt.scan != nil && !rt.scan.Status().Terminal() {
		rt.mu.Unlock()
		return fmt.Errorf("a scan is already in progress")
	}
	scan := domain.NewScan()
	ctl := executor.NewControl()
	rt.scan = scan
	rt.ctl = ctl
	rt.mu.Unlock()

	watchDone := make(chan struct{})
	defer close(watchDone)
	go func() {
		select {
		case <-ctx.Done():
			ctl.Cancel()
		case <-watchDone:
		}
	}()

	if fly {
		x := executor.NewFlyScanExecutor(rt.motion, rt.acq, rt.bus, rt.obs)
		return x.Execute(scan, rt.cfg.Scan, ctl)
	}
	x := executor.NewStepScanExecutor(rt.motion, rt.acq, rt.bus, rt.obs)
	return x.Execute(scan, rt.cfg.Scan, ctl)
}

// Pause requests a hold before the next point of the running scan.
func (rt *BenchRuntime) Pause() {
	rt.mu.Lock()
	ctl := rt.ctl
	rt.mu.Unlock()
	if ctl != nil {
		ctl.Pause()
	}
}

// Resume releases a pause.
func (rt *BenchRuntime) Resume() {
	rt.mu.Lock()
	ctl := rt.ctl
	rt.mu.Unlock()
	if ctl != nil {
		ctl.Resume()
	}
}

// CancelScan requests cooperative termination of the running scan.
func (rt *BenchRuntime) CancelScan() {
	rt.mu.Lock()
	ctl := rt.ctl
	rt.mu.Unlock()
	if ctl != nil {
		ctl.Cancel()
	}
}

// Status reports the current scan's snapshot; ok is false before any scan.
func (rt *BenchRuntime) Status() (ScanSnapshot, bool) {
	rt.mu.Lock()
	defer rt.mu.Unlock()
	if rt.scan == nil {
		return ScanSnapshot{}, false
	}
	return rt.scan.Snapshot(), true
}

// Run starts the runtime, executes one step scan, and shuts down. It is the
// single-shot entrypoint the CLI uses.
func (rt *BenchRuntime) Run(ctx context.Context) error {
	if err := rt.Start(ctx); err != nil {
		return err
	}
	scanErr := rt.ExecuteScan(ctx)

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return errors.Join(scanErr, rt.Shutdown(shutdownCtx))
}

// Shutdown stops the archive flusher, metrics server, exporter, and database
// connection.
func (rt *BenchRuntime) Shutdown(ctx context.Context) error {
	var errs []error

	if rt.gaugeStopCh != nil {
		close(rt.gaugeStopCh)
		rt.gaugeStopCh = nil
	}

	if rt.metricsSrv != nil {
		if err := rt.metricsSrv.Shutdown(ctx); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errs = append(errs, err)
		}
		rt.metricsSrv = nil
	}

	if rt.archive != nil {
		rt.archive.Stop()
	}

	// Safety net for a scan aborted outside the lifecycle events.
	if err := rt.exporter.Stop(); err != nil {
		errs = append(errs, err)
	}

	if chain, ok := rt.acq.(*acquisition.OPCUAChain); ok {
		if err := chain.Close(ctx); err != nil {
			errs = append(errs, err)
		}
	}

	if rt.db != nil {
		if err := rt.db.Close(); err != nil {
			errs = append(errs, err)
		}
		rt.db = nil
	}

	return errors.Join(errs...)
}

func (rt *BenchRuntime) startMetrics() {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	srv := &http.Server{
		Addr:    rt.cfg.Metrics.Addr,
		Handler: mux,
	}
	rt.metricsSrv = srv

	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Printf("metrics server exited: %v", err)
		}
	}()

	if rt.archive != nil {
		rt.gaugeStopCh = make(chan struct{})
		go rt.recordResourceGauges(rt.gaugeStopCh, time.Second)
	}
}

func (rt *BenchRuntime) recordResourceGauges(stop <-chan struct{}, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			rt.obs.SetGauge("bench_wal_size_bytes", float64(rt.archiveWAL.Stats().SizeBytes))
			rt.obs.SetGauge("bench_archive_queue_length", float64(rt.archiveQ.Len()))
		}
	}
}
