package core

import (
	"errors"
	"math"
	"math/rand/v2"
	"testing"

	"github.com/go-gl/mathgl/mgl64"
)

func TestNewSurfaceWalkerRejectsBadRadius(t *testing.T) {
	for _, r := range []float64{0, -1, math.NaN(), math.Inf(1)} {
		if _, err := NewSurfaceWalker("earth", r, WalkerConfig{}); !errors.Is(err, ErrInvalidRadius) {
			t.Fatalf("NewSurfaceWalker(radius=%v) error = %v, want ErrInvalidRadius", r, err)
		}
	}
}

func checkOnSurface(t *testing.T, w *SurfaceWalker, step int) {
	t.Helper()
	p := w.Position()
	if d := math.Abs(p.Len() - w.Radius()); d >= 1e-6 {
		t.Fatalf("step %d: ||position| - R| = %v", step, d)
	}
	n := p.Normalize()
	if dot := w.Up().Dot(n); !near(dot, 1, 1e-9) {
		t.Fatalf("step %d: up·normal = %v, want 1", step, dot)
	}
	if dot := w.Rotation().Rotate(Up).Dot(n); !near(dot, 1, 1e-5) {
		t.Fatalf("step %d: local +Y·normal = %v, want 1", step, dot)
	}
	if dot := w.Heading().Dot(n); math.Abs(dot) > 1e-5 {
		t.Fatalf("step %d: heading not tangent, heading·normal = %v", step, dot)
	}
}

func TestSurfaceWalkerStaysOnSphere(t *testing.T) {
	w, err := NewSurfaceWalker("earth", 3.5, WalkerConfig{})
	if err != nil {
		t.Fatalf("NewSurfaceWalker: %v", err)
	}
	rng := rand.New(rand.NewPCG(7, 11))
	for i := 0; i < 20000; i++ {
		in := WalkInput{
			TurnLeft:  rng.IntN(3) == 0,
			TurnRight: rng.IntN(4) == 0,
			Forward:   rng.IntN(2) == 0,
			Back:      rng.IntN(5) == 0,
		}
		w.Step(in, 1.0/60+rng.Float64()*0.02)
		checkOnSurface(t, w, i)
	}
}

func TestSurfaceWalkerQuarterCircle(t *testing.T) {
	const r = 2.0
	w, _ := NewSurfaceWalker("earth", r, WalkerConfig{})
	w.Move(math.Pi * r / 2)
	if want := (mgl64.Vec3{0, 0, r}); !vecNear(w.Position(), want, 1e-9) {
		t.Fatalf("position after a quarter circle = %v, want %v", w.Position(), want)
	}
	if want := (mgl64.Vec3{0, -1, 0}); !vecNear(w.Heading(), want, 1e-9) {
		t.Fatalf("heading after a quarter circle = %v, want %v", w.Heading(), want)
	}

	w.Move(-math.Pi * r / 2)
	if want := (mgl64.Vec3{0, r, 0}); !vecNear(w.Position(), want, 1e-9) {
		t.Fatalf("position after walking back = %v, want %v", w.Position(), want)
	}
}

func TestSurfaceWalkerTurnKeepsPosition(t *testing.T) {
	w, _ := NewSurfaceWalker("earth", 1, WalkerConfig{})
	w.Move(0.4)
	pos := w.Position()

	w.Turn(math.Pi / 2)
	if !vecNear(w.Position(), pos, 1e-12) {
		t.Fatalf("turn moved the walker: %v -> %v", pos, w.Position())
	}
	checkOnSurface(t, w, 0)

	// Turning left from +Z about +Y faces +X.
	w2, _ := NewSurfaceWalker("earth", 1, WalkerConfig{})
	w2.Turn(math.Pi / 2)
	if want := (mgl64.Vec3{1, 0, 0}); !vecNear(w2.Heading(), want, 1e-9) {
		t.Fatalf("heading after a left turn = %v, want %v", w2.Heading(), want)
	}
}

func TestSurfaceWalkerStepUsesSpeeds(t *testing.T) {
	cfg := WalkerConfig{TurnSpeed: 1, MoveSpeed: 2}
	w, _ := NewSurfaceWalker("earth", 10, cfg)

	w.Step(WalkInput{Forward: true}, 0.5)
	// arc length 1 on radius 10
	if want := (mgl64.Vec3{0, 10 * math.Cos(0.1), 10 * math.Sin(0.1)}); !vecNear(w.Position(), want, 1e-9) {
		t.Fatalf("position = %v, want %v", w.Position(), want)
	}

	before := w.Position()
	w.Step(WalkInput{Forward: true, Back: true, TurnLeft: true, TurnRight: true}, 1)
	if !vecNear(w.Position(), before, 1e-12) {
		t.Fatalf("opposing inputs moved the walker")
	}
	w.Step(WalkInput{Forward: true}, 0)
	if !vecNear(w.Position(), before, 1e-12) {
		t.Fatalf("zero dt moved the walker")
	}
}

func TestSurfaceWalkerAttach(t *testing.T) {
	w, _ := NewSurfaceWalker("earth", 1, WalkerConfig{})
	w.Move(0.7)
	dir := w.Position().Normalize()

	if err := w.Attach("mars", 4); err != nil {
		t.Fatalf("Attach: %v", err)
	}
	if w.Body() != "mars" || w.Radius() != 4 {
		t.Fatalf("Attach body=%q radius=%v", w.Body(), w.Radius())
	}
	if !vecNear(w.Position(), dir.Mul(4), 1e-9) {
		t.Fatalf("position after Attach = %v, want %v", w.Position(), dir.Mul(4))
	}
	checkOnSurface(t, w, 0)

	if err := w.Attach("venus", 0); !errors.Is(err, ErrInvalidRadius) {
		t.Fatalf("Attach(radius 0) error = %v, want ErrInvalidRadius", err)
	}
	if w.Body() != "mars" {
		t.Fatalf("failed Attach changed body to %q", w.Body())
	}
}

func TestSurfaceWalkerWorldTransform(t *testing.T) {
	earth := testEarth()
	earth.Angle = 1.2
	bodies := newFakeBodies(earth)

	w, _ := NewSurfaceWalker("earth", earth.BodyRadius, WalkerConfig{})
	world, err := w.WorldTransform(bodies)
	if err != nil {
		t.Fatalf("WorldTransform: %v", err)
	}
	want := OrbitalPosition(earth.OrbitRadius, earth.Angle).Add(mgl64.Vec3{0, earth.BodyRadius, 0})
	if !vecNear(world.Position, want, 1e-9) {
		t.Fatalf("world position = %v, want %v", world.Position, want)
	}

	if _, err := w.WorldTransform(newFakeBodies()); !errors.Is(err, ErrUnknownFrame) {
		t.Fatalf("WorldTransform(no body) error = %v, want ErrUnknownFrame", err)
	}
}
