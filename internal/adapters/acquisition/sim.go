package acquisition

import (
	"fmt"
	"math/rand"
	"sync"
	"time"

	"github.com/Luciosmic/fieldbench/internal/domain"
	"github.com/Luciosmic/fieldbench/internal/ports"
)

// SimChain produces synthetic lock-in readings: a fixed signal per channel
// plus gaussian noise scaled by the configured uncertainty. Sample latency is
// simulated so executor timing behaves like a real chain.
type SimChain struct {
	mu          sync.Mutex
	rng         *rand.Rand
	signal      [6]float64
	uncertainty float64
	latency     time.Duration
	configured  bool
}

type SimChainOption func(*SimChain)

func WithSignal(levels [6]float64) SimChainOption {
	return func(c *SimChain) { c.signal = levels }
}

func WithSampleLatency(d time.Duration) SimChainOption {
	return func(c *SimChain) { c.latency = d }
}

func WithSeed(seed int64) SimChainOption {
	return func(c *SimChain) { c.rng = rand.New(rand.NewSource(seed)) }
}

func NewSimChain(opts ...SimChainOption) *SimChain {
	c := &SimChain{
		rng:         rand.New(rand.NewSource(time.Now().UnixNano())),
		signal:      [6]float64{0.1, 0.01, 0.2, 0.02, 0.3, 0.03},
		uncertainty: 1e-5,
		latency:     time.Millisecond,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *SimChain) AcquireSample() (domain.Measurement, error) {
	c.mu.Lock()
	if !c.configured {
		c.mu.Unlock()
		return domain.Measurement{}, &ports.AcquisitionError{
			Op:  "sample",
			Err: fmt.Errorf("chain not configured"),
		}
	}
	var v [6]float64
	for i := range v {
		v[i] = c.signal[i] + c.rng.NormFloat64()*c.uncertainty
	}
	u := c.uncertainty
	latency := c.latency
	c.mu.Unlock()

	if latency > 0 {
		time.Sleep(latency)
	}
	return domain.NewMeasurement(v[0], v[1], v[2], v[3], v[4], v[5], time.Now(), u)
}

// ConfigureForUncertainty sets the noise scale. A zero target keeps the
// chain's current setting.
func (c *SimChain) ConfigureForUncertainty(target float64) error {
	if target < 0 {
		return &ports.AcquisitionError{
			Op:  "configure",
			Err: fmt.Errorf("target uncertainty must not be negative, got %g", target),
		}
	}
	c.mu.Lock()
	if target > 0 {
		c.uncertainty = target
	}
	c.configured = true
	c.mu.Unlock()
	return nil
}

func (c *SimChain) IsReady() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.configured
}

var _ ports.AcquisitionPort = (*SimChain)(nil)
