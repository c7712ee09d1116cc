package executor

import "sync"

// Control is the cooperative pause/cancel token shared between a scan's
// caller and its executor goroutine. The executor polls it between points
// only, so hardware operations are never interrupted mid-flight.
type Control struct {
	mu        sync.Mutex
	cond      *sync.Cond
	paused    bool
	cancelled bool
}

func NewControl() *Control {
	c := &Control{}
	c.cond = sync.NewCond(&c.mu)
	return c
}

// Pause requests that the executor hold before the next point.
func (c *Control) Pause() {
	c.mu.Lock()
	c.paused = true
	c.mu.Unlock()
}

// Resume releases a pause.
func (c *Control) Resume() {
	c.mu.Lock()
	c.paused = false
	c.mu.Unlock()
	c.cond.Broadcast()
}

// Cancel requests termination. It also releases any pause wait so the
// executor can observe the cancellation.
func (c *Control) Cancel() {
	c.mu.Lock()
	c.cancelled = true
	c.paused = false
	c.mu.Unlock()
	c.cond.Broadcast()
}

func (c *Control) Cancelled() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.cancelled
}

func (c *Control) Paused() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.paused
}

// WaitIfPaused blocks while paused and not cancelled. It reports whether it
// actually waited.
func (c *Control) WaitIfPaused() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	waited := false
	for c.paused && !c.cancelled {
		waited = true
		c.cond.Wait()
	}
	return waited
}
