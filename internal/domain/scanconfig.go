package domain

import (
	"fmt"
	"strings"
	"time"
)

// Pattern selects the trajectory traversal order.
type Pattern string

const (
	// PatternRaster visits every row left to right.
	PatternRaster Pattern = "raster"
	// PatternSerpentine alternates direction on odd rows to minimize
	// reversal distance between consecutive points.
	PatternSerpentine Pattern = "serpentine"
	// PatternComb traverses column-major: each column fully before the next.
	PatternComb Pattern = "comb"
)

// ValidationError reports every violated configuration invariant, not just
// the first, so an operator can fix a bad config in one pass.
type ValidationError struct {
	Violations []string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid scan config: %s", strings.Join(e.Violations, "; "))
}

// ScanConfig is the immutable description of one step scan: the zone to
// cover, the grid density, the traversal pattern, and per-point timing.
type ScanConfig struct {
	XMin    float64 `yaml:"x_min"`
	XMax    float64 `yaml:"x_max"`
	XPoints int     `yaml:"x_points"`
	YMin    float64 `yaml:"y_min"`
	YMax    float64 `yaml:"y_max"`
	YPoints int     `yaml:"y_points"`

	Pattern Pattern `yaml:"pattern"`

	// StabilizationDelay is the settle time after the stage reports stopped,
	// before acquisition starts.
	StabilizationDelay time.Duration `yaml:"stabilization_delay"`

	// Averaging is the number of raw samples averaged per position.
	Averaging int `yaml:"averaging"`

	// TargetUncertainty in volts; zero means the acquisition chain default.
	TargetUncertainty float64 `yaml:"target_uncertainty"`
}

// Validate checks every invariant and collects all violations.
func (c ScanConfig) Validate() error {
	var v []string

	if c.XPoints < 1 {
		v = append(v, fmt.Sprintf("x_points must be >= 1, got %d", c.XPoints))
	}
	if c.YPoints < 1 {
		v = append(v, fmt.Sprintf("y_points must be >= 1, got %d", c.YPoints))
	}
	if c.XPoints > 1 && c.XMin >= c.XMax {
		v = append(v, fmt.Sprintf("x bounds must be ordered, got [%g, %g]", c.XMin, c.XMax))
	}
	if c.YPoints > 1 && c.YMin >= c.YMax {
		v = append(v, fmt.Sprintf("y bounds must be ordered, got [%g, %g]", c.YMin, c.YMax))
	}
	switch c.Pattern {
	case PatternRaster, PatternSerpentine, PatternComb:
	default:
		v = append(v, fmt.Sprintf("unknown pattern %q", c.Pattern))
	}
	if c.StabilizationDelay < 0 {
		v = append(v, fmt.Sprintf("stabilization_delay must be >= 0, got %s", c.StabilizationDelay))
	}
	if c.Averaging < 1 {
		v = append(v, fmt.Sprintf("averaging must be >= 1, got %d", c.Averaging))
	}
	if c.TargetUncertainty < 0 {
		v = append(v, fmt.Sprintf("target_uncertainty must be >= 0, got %g", c.TargetUncertainty))
	}

	if len(v) > 0 {
		return &ValidationError{Violations: v}
	}
	return nil
}

// TotalPoints is the number of positions the scan will visit.
func (c ScanConfig) TotalPoints() int {
	return c.XPoints * c.YPoints
}

// EstimatedDuration is a rough lower bound: stabilization plus acquisition
// time per point, assuming ~100ms per averaged sample. Motion time is not
// included since it depends on distance and stage speed.
func (c ScanConfig) EstimatedDuration() time.Duration {
	perPoint := c.StabilizationDelay + time.Duration(c.Averaging)*100*time.Millisecond
	return time.Duration(c.TotalPoints()) * perPoint
}
