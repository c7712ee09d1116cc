package ports

import (
	"github.com/google/uuid"

	"github.com/Luciosmic/fieldbench/internal/domain"
)

// EventHandler receives one published event.
type EventHandler func(evt domain.Event)

// EventBus fans lifecycle and per-point events out to listeners. Delivery is
// synchronous and ordered: every listener subscribed to an event's kind is
// invoked, in subscription order, before Publish returns. A panicking
// listener must not prevent delivery to the rest.
type EventBus interface {
	Subscribe(kind string, fn EventHandler)
	Publish(evt domain.Event)
}

// ScanObserver is the listener-facing view of a scan's lifecycle. Adapters
// can bridge an observer onto the event bus so UI or export code never
// touches the executor.
type ScanObserver interface {
	OnStarted(id uuid.UUID)
	OnPointAcquired(id uuid.UUID, index int, result domain.ScanPointResult)
	OnCompleted(id uuid.UUID)
	OnFailed(id uuid.UUID, reason string)
	OnCancelled(id uuid.UUID)
	OnProgress(id uuid.UUID, fraction float64)
}
