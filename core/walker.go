package core

import (
	"fmt"
	"math"

	"github.com/go-gl/mathgl/mgl64"

	"github.com/signalsfoundry/orrery/model"
)

// WalkInput is the four logical inputs sampled once per tick.
type WalkInput struct {
	TurnLeft  bool
	TurnRight bool
	Forward   bool
	Back      bool
}

// Idle reports whether no input is held.
func (in WalkInput) Idle() bool {
	return !in.TurnLeft && !in.TurnRight && !in.Forward && !in.Back
}

// WalkerConfig tunes the surface walker. Speeds are per second.
type WalkerConfig struct {
	TurnSpeed float64 // radians per second
	MoveSpeed float64 // arc length per second
	// Tolerance is the allowed drift of |position| from the radius before
	// the position is renormalised.
	Tolerance float64
}

// DefaultWalkerConfig returns the tuning used by the default scene.
func DefaultWalkerConfig() WalkerConfig {
	return WalkerConfig{
		TurnSpeed: math.Pi / 2,
		MoveSpeed: 1.0,
		Tolerance: 1e-9,
	}
}

// ApplyDefaults fills zero or invalid fields from DefaultWalkerConfig.
func (c WalkerConfig) ApplyDefaults() WalkerConfig {
	d := DefaultWalkerConfig()
	if c.TurnSpeed <= 0 {
		c.TurnSpeed = d.TurnSpeed
	}
	if c.MoveSpeed <= 0 {
		c.MoveSpeed = d.MoveSpeed
	}
	if c.Tolerance <= 0 {
		c.Tolerance = d.Tolerance
	}
	return c
}

// SurfaceWalker moves an actor over a sphere centred on a body's local
// origin. Position always has length Radius, local +Y always points along
// the outward normal and local +Z stays tangent to the sphere.
type SurfaceWalker struct {
	cfg WalkerConfig

	body     string
	radius   float64
	position mgl64.Vec3
	rotation mgl64.Quat
	up       mgl64.Vec3
}

// NewSurfaceWalker places a walker on the north pole of body's sphere.
func NewSurfaceWalker(body string, radius float64, cfg WalkerConfig) (*SurfaceWalker, error) {
	if !(radius > 0) || math.IsInf(radius, 0) {
		return nil, fmt.Errorf("%w: %v", ErrInvalidRadius, radius)
	}
	return &SurfaceWalker{
		cfg:      cfg.ApplyDefaults(),
		body:     body,
		radius:   radius,
		position: mgl64.Vec3{0, radius, 0},
		rotation: mgl64.QuatIdent(),
		up:       Up,
	}, nil
}

// Attach moves the walker onto another sphere, keeping its direction from
// the centre and its orientation.
func (w *SurfaceWalker) Attach(body string, radius float64) error {
	if !(radius > 0) || math.IsInf(radius, 0) {
		return fmt.Errorf("%w: %v", ErrInvalidRadius, radius)
	}
	w.body = body
	w.radius = radius
	w.position = w.position.Normalize().Mul(radius)
	w.settle()
	return nil
}

// Step applies one tick of input over dt seconds.
func (w *SurfaceWalker) Step(in WalkInput, dt float64) {
	if dt <= 0 || in.Idle() {
		return
	}
	turn := 0.0
	if in.TurnLeft {
		turn++
	}
	if in.TurnRight {
		turn--
	}
	if turn != 0 {
		w.Turn(turn * w.cfg.TurnSpeed * dt)
	}

	move := 0.0
	if in.Forward {
		move++
	}
	if in.Back {
		move--
	}
	if move != 0 {
		w.Move(move * w.cfg.MoveSpeed * dt)
	}
}

// Turn spins the walker in place about the local normal. Positive angles
// turn left.
func (w *SurfaceWalker) Turn(angle float64) {
	n := w.position.Normalize()
	w.rotation = mgl64.QuatRotate(angle, n).Mul(w.rotation).Normalize()
	w.settle()
}

// Move walks distance along the great circle through the current heading.
// Negative distances walk backwards.
func (w *SurfaceWalker) Move(distance float64) {
	n := w.position.Normalize()
	fwd := w.rotation.Rotate(Forward)
	tangent := fwd.Sub(n.Mul(fwd.Dot(n)))
	if tangent.Len() < epsilon {
		return
	}
	tangent = tangent.Normalize()

	axis := w.position.Cross(tangent)
	if axis.Len() < epsilon {
		return
	}
	q := mgl64.QuatRotate(distance/w.radius, axis.Normalize())
	w.position = q.Rotate(w.position)
	w.rotation = q.Mul(w.rotation).Normalize()
	w.settle()
}

// settle renormalises position on drift and keeps local +Y on the normal.
func (w *SurfaceWalker) settle() {
	if l := w.position.Len(); math.Abs(l-w.radius) > w.cfg.Tolerance && l > epsilon {
		w.position = w.position.Mul(w.radius / l)
	}
	w.up = w.position.Normalize()

	if cur := w.rotation.Rotate(Up); 1-cur.Dot(w.up) > 1e-12 {
		w.rotation = mgl64.QuatBetweenVectors(cur, w.up).Mul(w.rotation).Normalize()
	}
}

// WorldTransform resolves the walker into world space through its body.
func (w *SurfaceWalker) WorldTransform(bodies BodyLookup) (Transform, error) {
	return ToWorld(w.Local(), model.BodyFrameOf(w.body), bodies)
}

// Local is the walker's transform in its body's frame.
func (w *SurfaceWalker) Local() Transform {
	return Transform{Position: w.position, Rotation: w.rotation}
}

func (w *SurfaceWalker) Body() string         { return w.body }
func (w *SurfaceWalker) Radius() float64      { return w.radius }
func (w *SurfaceWalker) Position() mgl64.Vec3 { return w.position }
func (w *SurfaceWalker) Rotation() mgl64.Quat { return w.rotation }
func (w *SurfaceWalker) Up() mgl64.Vec3       { return w.up }
func (w *SurfaceWalker) Heading() mgl64.Vec3  { return w.rotation.Rotate(Forward) }
func (w *SurfaceWalker) Config() WalkerConfig { return w.cfg }
