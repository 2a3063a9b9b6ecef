package player

import (
	"sync"
	"time"
)

// countdown tracks the remote session's fixed lifetime. Remaining time
// is derived from the recorded start timestamp and the wall clock, not
// from tick counts, so a throttled or suspended process stays correct.
type countdown struct {
	limit    time.Duration
	now      func() time.Time
	onExpire func()

	mu      sync.Mutex
	started time.Time
	running bool
	stop    chan struct{}
}

func newCountdown(limit time.Duration, onExpire func()) *countdown {
	return &countdown{
		limit:    limit,
		now:      time.Now,
		onExpire: onExpire,
	}
}

// Start (re)starts the countdown from the full limit.
func (c *countdown) Start() {
	c.mu.Lock()
	if c.running {
		close(c.stop)
	}
	c.started = c.now()
	c.running = true
	stop := make(chan struct{})
	c.stop = stop
	c.mu.Unlock()

	go c.run(stop)
}

func (c *countdown) run(stop chan struct{}) {
	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()
	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			c.mu.Lock()
			remaining := c.limit - c.now().Sub(c.started)
			expired := remaining <= 0 && c.running && c.stop == stop
			if expired {
				c.running = false
			}
			c.mu.Unlock()
			if expired {
				c.onExpire()
				return
			}
		}
	}
}

// Stop halts the countdown; Remaining reports none until restarted.
func (c *countdown) Stop() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.running {
		close(c.stop)
		c.running = false
	}
}

// Remaining returns whole seconds left, and false when not running.
func (c *countdown) Remaining() (int, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.running {
		return 0, false
	}
	rem := c.limit - c.now().Sub(c.started)
	if rem < 0 {
		rem = 0
	}
	return int(rem / time.Second), true
}
