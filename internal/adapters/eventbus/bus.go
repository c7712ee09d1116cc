package eventbus

import (
	"fmt"
	"sync"

	"github.com/google/uuid"

	"github.com/Luciosmic/fieldbench/internal/domain"
	"github.com/Luciosmic/fieldbench/internal/ports"
)

// MemoryBus is the in-process event bus. Fan-out is synchronous and ordered:
// Publish invokes every listener for the event's kind, in subscription
// order, on the publishing goroutine. A panicking listener is recovered and
// logged so it cannot abort the executor or starve later listeners.
type MemoryBus struct {
	mu        sync.RWMutex
	listeners map[string][]ports.EventHandler
	obs       ports.Observability
}

func NewMemoryBus(obs ports.Observability) *MemoryBus {
	return &MemoryBus{
		listeners: make(map[string][]ports.EventHandler),
		obs:       obs,
	}
}

func (b *MemoryBus) Subscribe(kind string, fn ports.EventHandler) {
	if fn == nil {
		return
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	b.listeners[kind] = append(b.listeners[kind], fn)
}

func (b *MemoryBus) Publish(evt domain.Event) {
	if evt == nil {
		return
	}
	b.mu.RLock()
	handlers := b.listeners[evt.Kind()]
	b.mu.RUnlock()

	for _, fn := range handlers {
		b.deliver(evt, fn)
	}
}

func (b *MemoryBus) deliver(evt domain.Event, fn ports.EventHandler) {
	defer func() {
		if r := recover(); r != nil {
			b.obs.IncCounter("bench_listener_panics_total", 1)
			b.obs.LogError("event_listener_panic", fmt.Errorf("%v", r),
				ports.Field{Key: "kind", Value: evt.Kind()})
		}
	}()
	fn(evt)
}

var _ ports.EventBus = (*MemoryBus)(nil)

// AttachObserver bridges a ScanObserver onto the bus so callers can watch a
// scan without handling raw events.
func AttachObserver(bus ports.EventBus, obs ports.ScanObserver) {
	bus.Subscribe(domain.EventScanStarted, func(evt domain.Event) {
		if e, ok := evt.(domain.ScanStarted); ok {
			obs.OnStarted(e.ScanID)
		}
	})
	bus.Subscribe(domain.EventScanPointAcquired, func(evt domain.Event) {
		if e, ok := evt.(domain.ScanPointAcquired); ok {
			obs.OnPointAcquired(e.ScanID, e.Result.PointIndex, e.Result)
		}
	})
	bus.Subscribe(domain.EventScanCompleted, func(evt domain.Event) {
		if e, ok := evt.(domain.ScanCompleted); ok {
			obs.OnCompleted(e.ScanID)
		}
	})
	bus.Subscribe(domain.EventScanFailed, func(evt domain.Event) {
		if e, ok := evt.(domain.ScanFailed); ok {
			obs.OnFailed(e.ScanID, e.Reason)
		}
	})
	bus.Subscribe(domain.EventScanCancelled, func(evt domain.Event) {
		if e, ok := evt.(domain.ScanCancelled); ok {
			obs.OnCancelled(e.ScanID)
		}
	})
	bus.Subscribe(domain.EventScanProgress, func(evt domain.Event) {
		if e, ok := evt.(domain.ScanProgress); ok {
			obs.OnProgress(e.ScanID, e.Fraction)
		}
	})
}

// NopObserver implements ScanObserver with no-ops so callers can embed it
// and override only the hooks they care about.
type NopObserver struct{}

func (NopObserver) OnStarted(uuid.UUID)                                    {}
func (NopObserver) OnPointAcquired(uuid.UUID, int, domain.ScanPointResult) {}
func (NopObserver) OnCompleted(uuid.UUID)                                  {}
func (NopObserver) OnFailed(uuid.UUID, string)                             {}
func (NopObserver) OnCancelled(uuid.UUID)                                  {}
func (NopObserver) OnProgress(uuid.UUID, float64)                          {}

var _ ports.ScanObserver = NopObserver{}
