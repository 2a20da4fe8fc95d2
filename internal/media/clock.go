package media

import (
	"context"
	"time"
)

// FrameClock abstracts the display-refresh signal driving a render loop.
// Start begins timing, Next blocks until the next tick and reports the
// elapsed time since Start, Stop releases the underlying timer. The
// composer depends only on this interface so render-loop logic can be
// tested with a scripted clock and no real display timing.
type FrameClock interface {
	Start()
	Next(ctx context.Context) (time.Duration, error)
	Stop()
}

// TickerClock ticks at a fixed capture rate using a wall-clock ticker.
type TickerClock struct {
	interval time.Duration
	ticker   *time.Ticker
	started  time.Time
}

// NewTickerClock creates a clock ticking fps times per second.
func NewTickerClock(fps int) *TickerClock {
	if fps <= 0 {
		fps = 30
	}
	return &TickerClock{interval: time.Second / time.Duration(fps)}
}

func (c *TickerClock) Start() {
	c.started = time.Now()
	c.ticker = time.NewTicker(c.interval)
}

func (c *TickerClock) Next(ctx context.Context) (time.Duration, error) {
	select {
	case <-ctx.Done():
		return 0, ctx.Err()
	case <-c.ticker.C:
		return time.Since(c.started), nil
	}
}

func (c *TickerClock) Stop() {
	if c.ticker != nil {
		c.ticker.Stop()
		c.ticker = nil
	}
}
