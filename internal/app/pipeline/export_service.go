package pipeline

import (
	"fmt"
	"sync"

	"github.com/Luciosmic/fieldbench/internal/domain"
	"github.com/Luciosmic/fieldbench/internal/ports"
)

// ExportService binds an exporter to the scan lifecycle: it starts the file
// on ScanStarted, streams every acquired point, and closes the file on any
// terminal event. Export failures are logged and never propagate back into
// the scan; the scan's own result set stays authoritative.
type ExportService struct {
	exporter ports.Exporter
	obs      ports.Observability

	mu         sync.Mutex
	cfg        ports.ExportConfig
	configured bool
}

func NewExportService(exporter ports.Exporter, obs ports.Observability) *ExportService {
	return &ExportService{exporter: exporter, obs: obs}
}

// Configure validates and stores the destination for subsequent scans.
func (s *ExportService) Configure(cfg ports.ExportConfig) error {
	if err := cfg.Validate(); err != nil {
		return err
	}
	s.mu.Lock()
	s.cfg = cfg
	s.configured = true
	s.mu.Unlock()
	return nil
}

// Register subscribes the service to the scan lifecycle on the given bus.
func (s *ExportService) Register(bus ports.EventBus) {
	bus.Subscribe(domain.EventScanStarted, func(evt domain.Event) {
		e, ok := evt.(domain.ScanStarted)
		if !ok {
			return
		}
		s.mu.Lock()
		cfg := s.cfg
		configured := s.configured
		s.mu.Unlock()
		if !configured {
			s.obs.LogError("export_not_configured",
				fmt.Errorf("scan %s started without an export destination", e.ScanID))
			return
		}
		if err := s.exporter.Start(cfg); err != nil {
			s.obs.LogError("export_start_failed", err,
				ports.Field{Key: "scan_id", Value: e.ScanID})
		}
	})

	bus.Subscribe(domain.EventScanPointAcquired, func(evt domain.Event) {
		if e, ok := evt.(domain.ScanPointAcquired); ok {
			s.exporter.Append(e.Result)
		}
	})

	for _, kind := range []string{
		domain.EventScanCompleted,
		domain.EventScanFailed,
		domain.EventScanCancelled,
	} {
		bus.Subscribe(kind, func(evt domain.Event) {
			if err := s.exporter.Stop(); err != nil {
				s.obs.LogError("export_stop_failed", err)
				return
			}
			s.obs.LogInfo("export_finished",
				ports.Field{Key: "kind", Value: evt.Kind()},
				ports.Field{Key: "rows", Value: s.exporter.RowsWritten()})
		})
	}
}

// RowsWritten reports rows persisted by the underlying exporter.
func (s *ExportService) RowsWritten() int {
	return s.exporter.RowsWritten()
}
