package timectrl

import (
	"context"
	"sync"
	"time"
)

// Mode describes how the FrameClock paces frames.
type Mode int

const (
	// RealTime paces frames on wall-clock time and reports the measured
	// elapsed time per frame.
	RealTime Mode = iota
	// Accelerated runs frames back to back, each reporting exactly Interval.
	Accelerated
)

func (m Mode) String() string {
	if m == Accelerated {
		return "accelerated"
	}
	return "realtime"
}

// DefaultMaxDt bounds the elapsed time reported for a single real-time
// frame, so a stalled process does not produce one huge step.
const DefaultMaxDt = 250 * time.Millisecond

// Tick is delivered to listeners once per frame.
type Tick struct {
	// Index counts frames from 1.
	Index uint64
	// Dt is the elapsed time of this frame in seconds.
	Dt float64
	// Elapsed is the sum of every Dt so far.
	Elapsed float64
}

// FrameClock drives the per-frame callback and notifies registered
// listeners. It plays the role of the host's display-refresh callback.
type FrameClock struct {
	mu       sync.RWMutex
	Interval time.Duration
	Mode     Mode
	MaxDt    time.Duration

	current   Tick
	listeners []func(Tick)

	now func() time.Time
}

// NewFrameClock constructs a clock that ticks every interval.
func NewFrameClock(interval time.Duration, mode Mode) *FrameClock {
	if interval <= 0 {
		interval = time.Second / 60
	}
	return &FrameClock{
		Interval: interval,
		Mode:     mode,
		MaxDt:    DefaultMaxDt,
		now:      time.Now,
	}
}

// Now returns the most recent tick.
func (c *FrameClock) Now() Tick {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.current
}

// AddListener registers a callback invoked on every frame, in
// registration order, from the goroutine running the clock.
func (c *FrameClock) AddListener(fn func(Tick)) {
	c.mu.Lock()
	c.listeners = append(c.listeners, fn)
	c.mu.Unlock()
}

// Step advances one frame of exactly Interval and notifies listeners.
func (c *FrameClock) Step() Tick {
	return c.advance(c.Interval)
}

func (c *FrameClock) advance(dt time.Duration) Tick {
	c.mu.Lock()
	c.current.Index++
	c.current.Dt = dt.Seconds()
	c.current.Elapsed += c.current.Dt
	tick := c.current
	listeners := append([]func(Tick){}, c.listeners...)
	c.mu.Unlock()

	for _, fn := range listeners {
		fn(tick)
	}
	return tick
}

// Run drives frames until ctx is cancelled or maxFrames frames have run
// (maxFrames <= 0 means no limit). It returns ctx.Err() on cancellation.
func (c *FrameClock) Run(ctx context.Context, maxFrames int) error {
	if c.Mode == Accelerated {
		for n := 0; maxFrames <= 0 || n < maxFrames; n++ {
			if err := ctx.Err(); err != nil {
				return err
			}
			c.Step()
		}
		return nil
	}

	ticker := time.NewTicker(c.Interval)
	defer ticker.Stop()
	last := c.now()
	for n := 0; maxFrames <= 0 || n < maxFrames; n++ {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
		now := c.now()
		dt := now.Sub(last)
		last = now
		if c.MaxDt > 0 && dt > c.MaxDt {
			dt = c.MaxDt
		}
		c.advance(dt)
	}
	return nil
}

// Start runs the clock in a separate goroutine. It returns a channel that
// is closed when the clock stops.
func (c *FrameClock) Start(ctx context.Context, maxFrames int) <-chan struct{} {
	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = c.Run(ctx, maxFrames)
	}()
	return done
}
