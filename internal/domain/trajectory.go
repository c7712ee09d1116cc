package domain

// Trajectory is an immutable ordered sequence of positions a scan visits.
type Trajectory struct {
	points []Position
}

// Len returns the number of positions.
func (t Trajectory) Len() int { return len(t.points) }

// At returns the position at the given index.
func (t Trajectory) At(i int) Position { return t.points[i] }

// Points returns a copy of the position sequence.
func (t Trajectory) Points() []Position {
	out := make([]Position, len(t.points))
	copy(out, t.points)
	return out
}

// PathLength is the summed straight-line distance between consecutive points.
func (t Trajectory) PathLength() float64 {
	var total float64
	for i := 1; i < len(t.points); i++ {
		total += t.points[i-1].DistanceTo(t.points[i])
	}
	return total
}

// GenerateTrajectory produces the ordered position sequence for a scan
// configuration. It is deterministic and has no side effects: equal configs
// yield equal trajectories. Output length is always XPoints*YPoints.
func GenerateTrajectory(cfg ScanConfig) (Trajectory, error) {
	if err := cfg.Validate(); err != nil {
		return Trajectory{}, err
	}

	// A single-point axis collapses to its min value for every point.
	var xStep, yStep float64
	if cfg.XPoints > 1 {
		xStep = (cfg.XMax - cfg.XMin) / float64(cfg.XPoints-1)
	}
	if cfg.YPoints > 1 {
		yStep = (cfg.YMax - cfg.YMin) / float64(cfg.YPoints-1)
	}

	points := make([]Position, 0, cfg.XPoints*cfg.YPoints)

	switch cfg.Pattern {
	case PatternRaster:
		for j := 0; j < cfg.YPoints; j++ {
			y := cfg.YMin + float64(j)*yStep
			for i := 0; i < cfg.XPoints; i++ {
				points = append(points, Position{X: cfg.XMin + float64(i)*xStep, Y: y})
			}
		}
	case PatternSerpentine:
		for j := 0; j < cfg.YPoints; j++ {
			y := cfg.YMin + float64(j)*yStep
			if j%2 == 0 {
				for i := 0; i < cfg.XPoints; i++ {
					points = append(points, Position{X: cfg.XMin + float64(i)*xStep, Y: y})
				}
			} else {
				for i := cfg.XPoints - 1; i >= 0; i-- {
					points = append(points, Position{X: cfg.XMin + float64(i)*xStep, Y: y})
				}
			}
		}
	case PatternComb:
		for i := 0; i < cfg.XPoints; i++ {
			x := cfg.XMin + float64(i)*xStep
			for j := 0; j < cfg.YPoints; j++ {
				points = append(points, Position{X: x, Y: cfg.YMin + float64(j)*yStep})
			}
		}
	}

	return Trajectory{points: points}, nil
}
