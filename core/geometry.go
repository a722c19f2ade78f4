package core

import (
	"math"

	"github.com/go-gl/mathgl/mgl64"

	"github.com/signalsfoundry/orrery/model"
)

// TwoPi is one full turn in radians.
const TwoPi = 2 * math.Pi

// Directions shared by every frame in the scene. Actors face local +Z.
var (
	AxisY   = mgl64.Vec3{0, 1, 0}
	Forward = mgl64.Vec3{0, 0, 1}
	Up      = mgl64.Vec3{0, 1, 0}
)

// epsilon below which a vector is treated as zero-length.
const epsilon = 1e-12

// Transform is a rigid transform: rotate, then translate.
type Transform struct {
	Position mgl64.Vec3
	Rotation mgl64.Quat
}

// Identity returns the identity transform.
func Identity() Transform {
	return Transform{Rotation: mgl64.QuatIdent()}
}

// Apply maps p from the transform's local space into its parent space.
func (t Transform) Apply(p mgl64.Vec3) mgl64.Vec3 {
	return t.Rotation.Rotate(p).Add(t.Position)
}

// Compose returns t∘child: a transform expressed in t's local space mapped
// into t's parent space.
func (t Transform) Compose(child Transform) Transform {
	return Transform{
		Position: t.Apply(child.Position),
		Rotation: t.Rotation.Mul(child.Rotation).Normalize(),
	}
}

// Inverse returns the transform mapping parent space back into local space.
func (t Transform) Inverse() Transform {
	inv := t.Rotation.Normalize().Conjugate()
	return Transform{
		Position: inv.Rotate(t.Position.Mul(-1)),
		Rotation: inv,
	}
}

// ApproxEqual reports whether the positions are within eps of each other
// and the rotations describe the same orientation (q and -q are equal).
func (t Transform) ApproxEqual(o Transform, eps float64) bool {
	return t.Position.Sub(o.Position).Len() <= eps &&
		t.Rotation.OrientationEqualThreshold(o.Rotation, eps)
}

// WrapAngle maps a into [0, 2π).
func WrapAngle(a float64) float64 {
	a = math.Mod(a, TwoPi)
	if a < 0 {
		a += TwoPi
	}
	return a
}

// RotateAbout rotates p by angle radians about the axis through center.
func RotateAbout(p, center, axis mgl64.Vec3, angle float64) mgl64.Vec3 {
	if angle == 0 {
		return p
	}
	q := mgl64.QuatRotate(angle, axis.Normalize())
	return q.Rotate(p.Sub(center)).Add(center)
}

// OrbitalPosition is the point at distance radius from the origin in the
// X-Z plane, rotated by angle about +Y.
func OrbitalPosition(radius, angle float64) mgl64.Vec3 {
	return mgl64.QuatRotate(angle, AxisY).Rotate(mgl64.Vec3{radius, 0, 0})
}

// PivotTransform is the orbit pivot of b: a rotation about +Y through the
// centre by the body's current angle.
func PivotTransform(b *model.CelestialBody) Transform {
	return Transform{Rotation: mgl64.QuatRotate(b.Angle, AxisY)}
}

// BodyTransform is the body's local frame: the pivot followed by the
// offset out to the orbit radius.
func BodyTransform(b *model.CelestialBody) Transform {
	return PivotTransform(b).Compose(Transform{
		Position: mgl64.Vec3{b.OrbitRadius, 0, 0},
		Rotation: mgl64.QuatIdent(),
	})
}

// LookRotation returns the orientation whose local +Z points along forward
// and whose local +Y is as close to up as possible.
func LookRotation(forward, up mgl64.Vec3) (mgl64.Quat, bool) {
	if forward.Len() < epsilon {
		return mgl64.QuatIdent(), false
	}
	f := forward.Normalize()
	r := up.Cross(f)
	if r.Len() < 1e-9 {
		// forward is parallel to up; pick any perpendicular reference.
		r = mgl64.Vec3{1, 0, 0}.Cross(f)
		if r.Len() < 1e-9 {
			r = mgl64.Vec3{0, 0, 1}.Cross(f)
		}
	}
	r = r.Normalize()
	u := f.Cross(r)

	m := mgl64.Mat4FromCols(r.Vec4(0), u.Vec4(0), f.Vec4(0), mgl64.Vec4{0, 0, 0, 1})
	return mgl64.Mat4ToQuat(m).Normalize(), true
}

// SlerpShortest interpolates from a to b along the shorter arc.
func SlerpShortest(a, b mgl64.Quat, t float64) mgl64.Quat {
	if a.Dot(b) < 0 {
		b = b.Scale(-1)
	}
	if t <= 0 {
		return a.Normalize()
	}
	if t >= 1 {
		return b.Normalize()
	}
	return mgl64.QuatSlerp(a, b, t).Normalize()
}

// BlendMode selects how the per-tick orientation blend is computed.
type BlendMode int

const (
	// BlendExponential uses 1 - exp(-rate*dt), independent of frame rate.
	BlendExponential BlendMode = iota
	// BlendFixed applies the same fraction every tick.
	BlendFixed
)

// DefaultBlendFraction is the per-frame blend observed at 60 frames/s.
const DefaultBlendFraction = 0.05

// DefaultBlendRate reproduces DefaultBlendFraction per tick at 60 ticks/s.
var DefaultBlendRate = -math.Log(1-DefaultBlendFraction) * 60

// BlendFactor returns the interpolation amount for one tick. Exponential
// mode falls back to the fixed fraction when dt is not positive.
func BlendFactor(mode BlendMode, fraction, rate, dt float64) float64 {
	if mode == BlendExponential && dt > 0 && rate > 0 {
		return 1 - math.Exp(-rate*dt)
	}
	return fraction
}
