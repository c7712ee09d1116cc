package ports

import (
	"fmt"

	"github.com/Luciosmic/fieldbench/internal/domain"
)

// MotionError wraps failures from the stage hardware or its driver.
type MotionError struct {
	Op  string
	Err error
}

func (e *MotionError) Error() string { return fmt.Sprintf("motion %s: %v", e.Op, e.Err) }
func (e *MotionError) Unwrap() error { return e.Err }

// MotionPort abstracts the 2-axis stage. How a position is physically
// reached (profiles, acceleration, homing sequences) is the adapter's job.
type MotionPort interface {
	// MoveTo commands a move to the target position. It may return before
	// the stage has stopped; use WaitUntilStopped to block on arrival.
	MoveTo(pos domain.Position) error

	// WaitUntilStopped blocks until the stage reports no motion.
	WaitUntilStopped() error

	CurrentPosition() (domain.Position, error)
	IsMoving() (bool, error)

	// Stop halts motion with deceleration.
	Stop() error

	// SetSpeed sets the target speed in mm/s for subsequent moves.
	SetSpeed(speed float64) error

	// Home runs the hardware homing sequence for "x", "y", or "" for both.
	Home(axis string) error

	// AxisLimits returns the maximum travel (x, y) in mm.
	AxisLimits() (float64, float64)
}
