package observability

import (
	"fmt"
	"log"
	"strings"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/Luciosmic/fieldbench/internal/ports"
)

type PromObs struct {
	counters map[string]prometheus.Counter
	gauges   map[string]prometheus.Gauge
	histos   map[string]prometheus.Observer
}

// NewPromObs registers the bench metrics on the default registry.
func NewPromObs() *PromObs {
	return NewPromObsWith(prometheus.DefaultRegisterer)
}

// NewPromObsWith registers on the given registerer. Pass a dedicated
// prometheus.NewRegistry() when more than one instance lives in a process;
// registering the same metric names twice on one registry panics.
func NewPromObsWith(reg prometheus.Registerer) *PromObs {
	scanPoints := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "bench_scan_points_total",
		Help: "Total scan points acquired across all scans.",
	})
	exportRows := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "bench_export_rows_total",
		Help: "Total rows persisted by the export writer.",
	})
	exportErrors := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "bench_export_errors_total",
		Help: "Export write or flush failures.",
	})
	exportBacklog := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "bench_export_backlog_total",
		Help: "Times the active export buffer outgrew its soft limit.",
	})
	archiveRows := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "bench_archive_rows_total",
		Help: "Total points committed to the archive sink.",
	})
	archiveDropped := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "bench_archive_dropped_total",
		Help: "Points lost to archive queue backpressure policies.",
	})
	listenerPanics := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "bench_listener_panics_total",
		Help: "Event listeners recovered from a panic.",
	})

	bufferDepth := prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "bench_export_buffer_depth",
		Help: "Rows currently in the active export buffer.",
	})
	queueLen := prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "bench_archive_queue_length",
		Help: "Entries buffered in the archive queue.",
	})
	walSize := prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "bench_wal_size_bytes",
		Help: "Size of the archive WAL on disk.",
	})

	acqLatency := prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "bench_acquisition_latency_seconds",
		Help:    "Latency of a single acquisition sample.",
		Buckets: prometheus.ExponentialBuckets(0.001, 2, 12),
	})
	drainLatency := prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "bench_export_drain_seconds",
		Help:    "Time to serialize and flush one drained export buffer.",
		Buckets: prometheus.ExponentialBuckets(0.001, 2, 12),
	})

	reg.MustRegister(
		scanPoints, exportRows, exportErrors, exportBacklog,
		archiveRows, archiveDropped, listenerPanics,
		bufferDepth, queueLen, walSize,
		acqLatency, drainLatency,
	)

	return &PromObs{
		counters: map[string]prometheus.Counter{
			"bench_scan_points_total":     scanPoints,
			"bench_export_rows_total":     exportRows,
			"bench_export_errors_total":   exportErrors,
			"bench_export_backlog_total":  exportBacklog,
			"bench_archive_rows_total":    archiveRows,
			"bench_archive_dropped_total": archiveDropped,
			"bench_listener_panics_total": listenerPanics,
		},
		gauges: map[string]prometheus.Gauge{
			"bench_export_buffer_depth":  bufferDepth,
			"bench_archive_queue_length": queueLen,
			"bench_wal_size_bytes":       walSize,
		},
		histos: map[string]prometheus.Observer{
			"bench_acquisition_latency_seconds": acqLatency,
			"bench_export_drain_seconds":        drainLatency,
		},
	}
}

func (p *PromObs) LogInfo(msg string, fields ...ports.Field) {
	log.Printf("INFO: %s%s", msg, formatFields(fields))
}

func (p *PromObs) LogError(msg string, err error, fields ...ports.Field) {
	if err != nil {
		log.Printf("ERROR: %s: %v%s", msg, err, formatFields(fields))
	}
}

func (p *PromObs) LogCritical(msg string, err error, fields ...ports.Field) {
	if err != nil {
		log.Printf("CRITICAL: %s: %v%s", msg, err, formatFields(fields))
	}
}

func (p *PromObs) IncCounter(name string, v float64) {
	if c, ok := p.counters[name]; ok {
		c.Add(v)
	}
}

func (p *PromObs) ObserveLatency(name string, seconds float64) {
	if h, ok := p.histos[name]; ok {
		h.Observe(seconds)
	}
}

func (p *PromObs) SetGauge(name string, v float64) {
	if g, ok := p.gauges[name]; ok {
		g.Set(v)
	}
}

func formatFields(fields []ports.Field) string {
	if len(fields) == 0 {
		return ""
	}
	var b strings.Builder
	for _, f := range fields {
		fmt.Fprintf(&b, " %s=%v", f.Key, f.Value)
	}
	return b.String()
}
