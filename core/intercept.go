package core

import (
	"errors"
	"fmt"
	"math"

	"github.com/go-gl/mathgl/mgl64"
)

// Solver defaults.
const (
	DefaultMaxInterceptTime = 1000.0
	DefaultInterceptSamples = 256
	MaxBisectIterations     = 50
	BisectTolerance         = 1e-6
)

var (
	// ErrNoIntercept means the target cannot be reached inside the horizon.
	ErrNoIntercept = errors.New("no intercept within horizon")
	// ErrInvalidSpeed means the actor speed is not a positive number.
	ErrInvalidSpeed = errors.New("invalid travel speed")
)

// InterceptParams describes a straight-line, constant-speed rendezvous with
// a target rotating about Center/Axis. Times are in ticks.
type InterceptParams struct {
	Start        mgl64.Vec3
	Target       mgl64.Vec3
	Center       mgl64.Vec3
	Axis         mgl64.Vec3 // zero means +Y
	AngularSpeed float64    // radians per tick
	Speed        float64    // units per tick

	MaxTime float64 // zero means DefaultMaxInterceptTime
	Samples int     // zero means DefaultInterceptSamples
}

// InterceptSolution is the earliest rendezvous found.
type InterceptSolution struct {
	Time    float64
	Point   mgl64.Vec3
	Heading mgl64.Vec3 // unit vector; zero when Point == Start
	// Iterations is the number of bisection steps spent.
	Iterations int
}

// TargetAt returns the target position t ticks from now.
func (p InterceptParams) TargetAt(t float64) mgl64.Vec3 {
	axis := p.Axis
	if axis.Len() < epsilon {
		axis = AxisY
	}
	return RotateAbout(p.Target, p.Center, axis, p.AngularSpeed*t)
}

// gap is the distance still to cover at time t minus what the actor covers.
func (p InterceptParams) gap(t float64) float64 {
	return p.Start.Sub(p.TargetAt(t)).Len() - p.Speed*t
}

// SolveIntercept finds the smallest t in [0, MaxTime] where the actor,
// leaving Start now, meets the target. f(t) is sampled on a uniform grid
// first so the bisection brackets the first sign change rather than an
// arbitrary one.
func SolveIntercept(p InterceptParams) (InterceptSolution, error) {
	if !(p.Speed > 0) || math.IsInf(p.Speed, 0) {
		return InterceptSolution{}, fmt.Errorf("%w: %v", ErrInvalidSpeed, p.Speed)
	}
	maxT := p.MaxTime
	if maxT <= 0 {
		maxT = DefaultMaxInterceptTime
	}
	samples := p.Samples
	if samples <= 0 {
		samples = DefaultInterceptSamples
	}

	lo, flo := 0.0, p.gap(0)
	if flo <= 0 {
		return p.solution(0, 0), nil
	}

	hi, found := 0.0, false
	for i := 1; i <= samples; i++ {
		t := maxT * float64(i) / float64(samples)
		ft := p.gap(t)
		if ft <= 0 {
			hi, found = t, true
			break
		}
		lo, flo = t, ft
	}
	if !found {
		return InterceptSolution{}, fmt.Errorf("%w: horizon %.1f ticks, residual %.3f", ErrNoIntercept, maxT, flo)
	}

	mid, iterations := hi, 0
	for iterations < MaxBisectIterations {
		iterations++
		mid = (lo + hi) / 2
		fm := p.gap(mid)
		if math.Abs(fm) < BisectTolerance {
			break
		}
		if fm > 0 {
			lo = mid
		} else {
			hi = mid
		}
	}
	return p.solution(mid, iterations), nil
}

func (p InterceptParams) solution(t float64, iterations int) InterceptSolution {
	point := p.TargetAt(t)
	var heading mgl64.Vec3
	if d := point.Sub(p.Start); d.Len() > epsilon {
		heading = d.Normalize()
	}
	return InterceptSolution{
		Time:       t,
		Point:      point,
		Heading:    heading,
		Iterations: iterations,
	}
}

// AlignToTick moves sol to the first whole tick n >= sol.Time at which the
// actor can still cover the distance to TargetAt(n). An actor stepping
// once per tick toward that point at |Point-Start|/n per tick arrives on
// the same tick as the target.
func AlignToTick(p InterceptParams, sol InterceptSolution) InterceptSolution {
	first := math.Max(math.Ceil(sol.Time-BisectTolerance), 0)
	maxT := p.MaxTime
	if maxT <= 0 {
		maxT = DefaultMaxInterceptTime
	}
	n := first
	for t := first; t <= math.Ceil(maxT)+1; t++ {
		if p.gap(t) <= BisectTolerance {
			n = t
			break
		}
	}
	return p.solution(n, sol.Iterations)
}
