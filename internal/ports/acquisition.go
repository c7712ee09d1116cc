package ports

import (
	"fmt"

	"github.com/Luciosmic/fieldbench/internal/domain"
)

// AcquisitionError wraps hardware or timeout failures from the ADC chain.
type AcquisitionError struct {
	Op  string
	Err error
}

func (e *AcquisitionError) Error() string { return fmt.Sprintf("acquisition %s: %v", e.Op, e.Err) }
func (e *AcquisitionError) Unwrap() error { return e.Err }

// AcquisitionPort abstracts the analog acquisition chain. Voltage to
// engineering-unit conversion is the adapter's job; the core only sees
// measurements.
type AcquisitionPort interface {
	// AcquireSample blocks for one raw measurement of all six channels.
	AcquireSample() (domain.Measurement, error)

	// ConfigureForUncertainty tunes the chain (gain, oversampling) so single
	// samples meet the target uncertainty in volts. A zero target keeps the
	// chain's current default; negative targets are rejected.
	ConfigureForUncertainty(target float64) error

	// IsReady reports whether the chain is configured and responsive.
	IsReady() bool
}
