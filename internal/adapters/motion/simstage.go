package motion

import (
	"fmt"
	"sync"
	"time"

	"github.com/Luciosmic/fieldbench/internal/domain"
	"github.com/Luciosmic/fieldbench/internal/ports"
)

// SimStage models a 2-axis positioning stage in memory. Moves take straight
// lines at the configured speed; a settle delay after each move approximates
// mechanical ringing. Useful for development benches without hardware and
// for executor tests.
type SimStage struct {
	mu       sync.Mutex
	pos      domain.Position
	target   domain.Position
	speed    float64 // mm/s
	settle   time.Duration
	xMax     float64
	yMax     float64
	arriveAt time.Time
}

type SimStageOption func(*SimStage)

func WithSpeed(mmPerSec float64) SimStageOption {
	return func(s *SimStage) { s.speed = mmPerSec }
}

func WithSettle(d time.Duration) SimStageOption {
	return func(s *SimStage) { s.settle = d }
}

func WithLimits(xMax, yMax float64) SimStageOption {
	return func(s *SimStage) { s.xMax, s.yMax = xMax, yMax }
}

func NewSimStage(opts ...SimStageOption) *SimStage {
	s := &SimStage{
		speed:  50,
		settle: 0,
		xMax:   300,
		yMax:   300,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *SimStage) MoveTo(pos domain.Position) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if pos.X < 0 || pos.X > s.xMax || pos.Y < 0 || pos.Y > s.yMax {
		return &ports.MotionError{Op: "move", Err: fmt.Errorf("target (%.3f, %.3f) outside travel (0..%.1f, 0..%.1f)",
			pos.X, pos.Y, s.xMax, s.yMax)}
	}

	dist := s.pos.DistanceTo(pos)
	travel := time.Duration(dist / s.speed * float64(time.Second))
	s.target = pos
	s.arriveAt = time.Now().Add(travel + s.settle)
	return nil
}

func (s *SimStage) WaitUntilStopped() error {
	s.mu.Lock()
	wait := time.Until(s.arriveAt)
	s.mu.Unlock()

	if wait > 0 {
		time.Sleep(wait)
	}

	s.mu.Lock()
	s.pos = s.target
	s.mu.Unlock()
	return nil
}

func (s *SimStage) CurrentPosition() (domain.Position, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if time.Now().After(s.arriveAt) {
		s.pos = s.target
		return s.pos, nil
	}
	// Mid-flight: interpolate linearly toward the target.
	total := s.pos.DistanceTo(s.target)
	if total == 0 {
		return s.pos, nil
	}
	remaining := time.Until(s.arriveAt).Seconds() * s.speed
	frac := 1 - remaining/total
	if frac < 0 {
		frac = 0
	}
	return domain.Position{
		X: s.pos.X + (s.target.X-s.pos.X)*frac,
		Y: s.pos.Y + (s.target.Y-s.pos.Y)*frac,
	}, nil
}

func (s *SimStage) IsMoving() (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return time.Now().Before(s.arriveAt), nil
}

func (s *SimStage) Stop() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if time.Now().Before(s.arriveAt) {
		cur := s.pos // freeze at the committed position
		s.target = cur
		s.arriveAt = time.Now()
	}
	return nil
}

func (s *SimStage) SetSpeed(speed float64) error {
	if speed <= 0 {
		return &ports.MotionError{Op: "speed", Err: fmt.Errorf("speed must be positive, got %f", speed)}
	}
	s.mu.Lock()
	s.speed = speed
	s.mu.Unlock()
	return nil
}

func (s *SimStage) Home(axis string) error {
	switch axis {
	case "", "x", "y":
	default:
		return &ports.MotionError{Op: "home", Err: fmt.Errorf("unknown axis %q", axis)}
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if axis == "" || axis == "x" {
		s.pos.X, s.target.X = 0, 0
	}
	if axis == "" || axis == "y" {
		s.pos.Y, s.target.Y = 0, 0
	}
	s.arriveAt = time.Now()
	return nil
}

func (s *SimStage) AxisLimits() (float64, float64) {
	return s.xMax, s.yMax
}

var _ ports.MotionPort = (*SimStage)(nil)
