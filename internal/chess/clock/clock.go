package clock

import (
	"errors"
	"sync"
	"time"

	nchess "github.com/corentings/chess/v2"
	"go.uber.org/zap"
)

// TickInterval is the resolution of both counters.
const TickInterval = 100 * time.Millisecond

// DefaultAllocated is one minute per side.
const DefaultAllocated = time.Minute

var ErrClockRunning = errors.New("clock is running")

// Clock holds two countdown counters in deciseconds. Only the active side's counter runs,
// and the active side flips once per applied move via Switch.
type Clock struct {
	logger *zap.Logger

	mu        sync.Mutex
	allocated int
	increment int
	remaining [2]int
	active    nchess.Color
	running   bool
	expired   bool
	onTimeout func(loser nchess.Color)
	stop      chan struct{}
	manual    bool
}

func New(logger *zap.Logger, allocated, increment time.Duration) *Clock {
	if logger == nil {
		logger = zap.NewNop()
	}
	c := &Clock{
		logger: logger,
		active: nchess.White,
	}
	c.allocated = toDeciseconds(allocated)
	c.increment = toDeciseconds(increment)
	c.remaining = [2]int{c.allocated, c.allocated}
	return c
}

func toDeciseconds(d time.Duration) int {
	if d <= 0 {
		return 0
	}
	return int(d / TickInterval)
}

func index(side nchess.Color) int {
	if side == nchess.Black {
		return 1
	}
	return 0
}

// Enabled reports whether a time control is configured.
func (c *Clock) Enabled() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.allocated > 0
}

// Configure changes allocated time and increment. Refused while the clock runs.
func (c *Clock) Configure(allocated, increment time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.running {
		return ErrClockRunning
	}
	c.allocated = toDeciseconds(allocated)
	c.increment = toDeciseconds(increment)
	c.remaining = [2]int{c.allocated, c.allocated}
	c.expired = false
	return nil
}

// OnTimeout registers the single expiry listener. It is called without the lock held.
func (c *Clock) OnTimeout(fn func(loser nchess.Color)) {
	c.mu.Lock()
	c.onTimeout = fn
	c.mu.Unlock()
}

// Reset refills both counters and makes side the active one. A running clock is stopped.
func (c *Clock) Reset(side nchess.Color) {
	c.Stop()
	c.mu.Lock()
	defer c.mu.Unlock()
	c.remaining = [2]int{c.allocated, c.allocated}
	c.active = side
	c.expired = false
}

// Start begins counting down the active side. No-op when disabled, running or expired.
func (c *Clock) Start() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.running || c.expired || c.allocated == 0 {
		return
	}
	c.running = true
	if c.manual {
		return
	}
	stop := make(chan struct{})
	c.stop = stop
	go c.loop(stop)
}

func (c *Clock) loop(stop chan struct{}) {
	ticker := time.NewTicker(TickInterval)
	defer ticker.Stop()
	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			c.Tick()
		}
	}
}

func (c *Clock) Stop() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.running = false
	if c.stop != nil {
		close(c.stop)
		c.stop = nil
	}
}

// Tick consumes one decisecond of the active side. Reaching zero stops the clock and
// fires the timeout listener once.
func (c *Clock) Tick() {
	c.mu.Lock()
	if !c.running {
		c.mu.Unlock()
		return
	}
	i := index(c.active)
	c.remaining[i]--
	if c.remaining[i] > 0 {
		c.mu.Unlock()
		return
	}
	c.remaining[i] = 0
	c.expired = true
	c.running = false
	if c.stop != nil {
		close(c.stop)
		c.stop = nil
	}
	loser, fn := c.active, c.onTimeout
	c.mu.Unlock()

	c.logger.Info("clock_expired", zap.String("side", loser.String()))
	if fn != nil {
		fn(loser)
	}
}

// Switch credits the increment to the side that just moved and activates the other side.
func (c *Clock) Switch() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.expired {
		return
	}
	if c.allocated > 0 {
		c.remaining[index(c.active)] += c.increment
	}
	c.active = c.active.Other()
}

func (c *Clock) Active() nchess.Color {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.active
}

func (c *Clock) Running() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.running
}

func (c *Clock) Remaining(side nchess.Color) time.Duration {
	c.mu.Lock()
	defer c.mu.Unlock()
	return time.Duration(c.remaining[index(side)]) * TickInterval
}

func (c *Clock) Increment() time.Duration {
	c.mu.Lock()
	defer c.mu.Unlock()
	return time.Duration(c.increment) * TickInterval
}
