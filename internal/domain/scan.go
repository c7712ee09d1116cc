package domain

import (
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
)

// ScanStatus is the lifecycle state of a scan aggregate.
type ScanStatus int

const (
	StatusPending ScanStatus = iota
	StatusRunning
	StatusCompleted
	StatusFailed
	StatusCancelled
)

func (s ScanStatus) String() string {
	switch s {
	case StatusPending:
		return "PENDING"
	case StatusRunning:
		return "RUNNING"
	case StatusCompleted:
		return "COMPLETED"
	case StatusFailed:
		return "FAILED"
	case StatusCancelled:
		return "CANCELLED"
	default:
		return fmt.Sprintf("ScanStatus(%d)", int(s))
	}
}

// Terminal reports whether no further transitions are legal from s.
func (s ScanStatus) Terminal() bool {
	return s == StatusCompleted || s == StatusFailed || s == StatusCancelled
}

// StateTransitionError signals an aggregate method called from an illegal
// state. It indicates a caller bug and is never retried.
type StateTransitionError struct {
	Current   ScanStatus
	Attempted string
}

func (e *StateTransitionError) Error() string {
	return fmt.Sprintf("invalid scan transition: cannot %s while %s", e.Attempted, e.Current)
}

// ScanSnapshot is a read-only view of a scan for cross-thread status queries.
type ScanSnapshot struct {
	ID             uuid.UUID
	Status         ScanStatus
	PointCount     int
	ExpectedPoints int
	StartedAt      time.Time
	EndedAt        time.Time
	FailureReason  string
}

// Scan is the aggregate root for one scan run: it owns the lifecycle state
// machine and the ordered result set, and queues one lifecycle event per
// transition for the executor to publish. Mutation is single-writer (the
// executor goroutine); other goroutines read through Snapshot.
type Scan struct {
	mu sync.Mutex

	id             uuid.UUID
	status         ScanStatus
	points         []ScanPointResult
	expectedPoints int
	startedAt      time.Time
	endedAt        time.Time
	failureReason  string

	events []Event
}

// NewScan creates a scan in PENDING state with a fresh identity.
func NewScan() *Scan {
	return &Scan{id: uuid.New(), status: StatusPending}
}

// ID returns the scan's identity.
func (s *Scan) ID() uuid.UUID { return s.id }

// Status returns the current lifecycle state.
func (s *Scan) Status() ScanStatus {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.status
}

// Points returns a copy of the accumulated results.
func (s *Scan) Points() []ScanPointResult {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]ScanPointResult, len(s.points))
	copy(out, s.points)
	return out
}

// Snapshot returns a consistent read-only view.
func (s *Scan) Snapshot() ScanSnapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return ScanSnapshot{
		ID:             s.id,
		Status:         s.status,
		PointCount:     len(s.points),
		ExpectedPoints: s.expectedPoints,
		StartedAt:      s.startedAt,
		EndedAt:        s.endedAt,
		FailureReason:  s.failureReason,
	}
}

// Start transitions PENDING -> RUNNING and records the expected point count.
func (s *Scan) Start(expectedPoints int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.status != StatusPending {
		return &StateTransitionError{Current: s.status, Attempted: "start"}
	}
	s.status = StatusRunning
	s.expectedPoints = expectedPoints
	s.startedAt = time.Now()
	s.events = append(s.events, ScanStarted{ScanID: s.id, ExpectedPoints: expectedPoints, At: s.startedAt})
	return nil
}

// AddPointResult appends a result while RUNNING. When the accumulated count
// reaches the expected count (and the expected count is known), the scan
// auto-completes so the executor needs no separate finish check after the
// last point.
func (s *Scan) AddPointResult(result ScanPointResult) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.status != StatusRunning {
		return &StateTransitionError{Current: s.status, Attempted: "add point result"}
	}
	s.points = append(s.points, result)
	s.events = append(s.events, ScanPointAcquired{ScanID: s.id, Result: result})

	if s.expectedPoints > 0 && len(s.points) >= s.expectedPoints {
		s.completeLocked()
	}
	return nil
}

// Complete transitions RUNNING -> COMPLETED. It is an idempotent no-op when
// already completed; this is the explicit path for flows with an unknown
// final count, such as fly scans.
func (s *Scan) Complete() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.status == StatusCompleted {
		return nil
	}
	if s.status != StatusRunning {
		return &StateTransitionError{Current: s.status, Attempted: "complete"}
	}
	s.completeLocked()
	return nil
}

func (s *Scan) completeLocked() {
	s.status = StatusCompleted
	s.endedAt = time.Now()
	s.events = append(s.events, ScanCompleted{ScanID: s.id, TotalPoints: len(s.points), At: s.endedAt})
}

// Fail transitions RUNNING -> FAILED and records the reason.
func (s *Scan) Fail(reason string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.status != StatusRunning {
		return &StateTransitionError{Current: s.status, Attempted: "fail"}
	}
	s.status = StatusFailed
	s.failureReason = reason
	s.endedAt = time.Now()
	s.events = append(s.events, ScanFailed{ScanID: s.id, Reason: reason, At: s.endedAt})
	return nil
}

// Cancel is legal from any non-terminal state.
func (s *Scan) Cancel() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.status.Terminal() {
		return &StateTransitionError{Current: s.status, Attempted: "cancel"}
	}
	s.status = StatusCancelled
	s.endedAt = time.Now()
	s.events = append(s.events, ScanCancelled{ScanID: s.id, At: s.endedAt})
	return nil
}

// DrainEvents returns the queued lifecycle events and clears the queue.
// The executor publishes them to the event bus after each transition.
func (s *Scan) DrainEvents() []Event {
	s.mu.Lock()
	defer s.mu.Unlock()
	events := s.events
	s.events = nil
	return events
}
