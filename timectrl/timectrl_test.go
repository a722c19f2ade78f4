package timectrl

import (
	"context"
	"errors"
	"math"
	"sync/atomic"
	"testing"
	"time"
)

func TestFrameClockStep(t *testing.T) {
	c := NewFrameClock(100*time.Millisecond, Accelerated)

	var seen []Tick
	c.AddListener(func(tk Tick) { seen = append(seen, tk) })

	c.Step()
	got := c.Step()
	if got.Index != 2 || got.Dt != 0.1 || math.Abs(got.Elapsed-0.2) > 1e-12 {
		t.Fatalf("Step() = %+v, want index 2, dt 0.1, elapsed 0.2", got)
	}
	if len(seen) != 2 || seen[0].Index != 1 {
		t.Fatalf("listener saw %+v", seen)
	}
	if now := c.Now(); now != got {
		t.Fatalf("Now() = %+v, want %+v", now, got)
	}
}

func TestFrameClockAcceleratedRun(t *testing.T) {
	c := NewFrameClock(5*time.Millisecond, Accelerated)
	var frames atomic.Int64
	c.AddListener(func(Tick) { frames.Add(1) })

	if err := c.Run(context.Background(), 15); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if got := frames.Load(); got != 15 {
		t.Fatalf("frames = %d, want 15", got)
	}
	if want := 15 * 0.005; math.Abs(c.Now().Elapsed-want) > 1e-12 {
		t.Fatalf("Elapsed = %v, want %v", c.Now().Elapsed, want)
	}
}

func TestFrameClockRealTimeCancel(t *testing.T) {
	c := NewFrameClock(time.Millisecond, RealTime)
	ctx, cancel := context.WithCancel(context.Background())

	c.AddListener(func(tk Tick) {
		if tk.Index == 3 {
			cancel()
		}
	})
	err := c.Run(ctx, 0)
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("Run error = %v, want context.Canceled", err)
	}
	if c.Now().Index < 3 {
		t.Fatalf("Index = %d, want at least 3", c.Now().Index)
	}
}

func TestFrameClockClampsRealTimeDt(t *testing.T) {
	c := NewFrameClock(time.Millisecond, RealTime)
	c.MaxDt = 10 * time.Millisecond

	base := time.Now()
	var calls int
	c.now = func() time.Time {
		calls++
		// every frame appears to take a full second
		return base.Add(time.Duration(calls) * time.Second)
	}
	if err := c.Run(context.Background(), 2); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if dt := c.Now().Dt; dt != 0.01 {
		t.Fatalf("Dt = %v, want clamped 0.01", dt)
	}
}

func TestFrameClockStart(t *testing.T) {
	c := NewFrameClock(time.Millisecond, Accelerated)
	done := c.Start(context.Background(), 4)
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatalf("Start did not finish")
	}
	if c.Now().Index != 4 {
		t.Fatalf("Index = %d, want 4", c.Now().Index)
	}
}
