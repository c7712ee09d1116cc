package domain

import (
	"time"

	"github.com/google/uuid"
)

// Event is a scan lifecycle or progress notification delivered through the
// event bus. Kind is the subscription key.
type Event interface {
	Kind() string
}

const (
	EventScanStarted       = "scanstarted"
	EventScanPointAcquired = "scanpointacquired"
	EventScanCompleted     = "scancompleted"
	EventScanFailed        = "scanfailed"
	EventScanCancelled     = "scancancelled"
	EventScanPaused        = "scanpaused"
	EventScanResumed       = "scanresumed"
	EventScanProgress      = "scanprogress"
)

type ScanStarted struct {
	ScanID         uuid.UUID
	ExpectedPoints int
	At             time.Time
}

func (ScanStarted) Kind() string { return EventScanStarted }

type ScanPointAcquired struct {
	ScanID uuid.UUID
	Result ScanPointResult
}

func (ScanPointAcquired) Kind() string { return EventScanPointAcquired }

type ScanCompleted struct {
	ScanID      uuid.UUID
	TotalPoints int
	At          time.Time
}

func (ScanCompleted) Kind() string { return EventScanCompleted }

type ScanFailed struct {
	ScanID uuid.UUID
	Reason string
	At     time.Time
}

func (ScanFailed) Kind() string { return EventScanFailed }

type ScanCancelled struct {
	ScanID uuid.UUID
	At     time.Time
}

func (ScanCancelled) Kind() string { return EventScanCancelled }

// ScanPaused is published by the executor when it honors a pause request.
type ScanPaused struct {
	ScanID       uuid.UUID
	AtPointIndex int
}

func (ScanPaused) Kind() string { return EventScanPaused }

// ScanResumed is published by the executor when a paused scan continues.
type ScanResumed struct {
	ScanID         uuid.UUID
	FromPointIndex int
}

func (ScanResumed) Kind() string { return EventScanResumed }

// ScanProgress reports the completed fraction of a running scan.
type ScanProgress struct {
	ScanID   uuid.UUID
	Fraction float64
}

func (ScanProgress) Kind() string { return EventScanProgress }
