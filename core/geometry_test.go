package core

import (
	"math"
	"testing"

	"github.com/go-gl/mathgl/mgl64"
)

func TestOrbitalPositionKeepsRadius(t *testing.T) {
	for _, radius := range []float64{0, 1, 10, 22, 70} {
		for angle := -10.0; angle <= 10; angle += 0.37 {
			p := OrbitalPosition(radius, angle)
			if !near(p.Len(), radius, 1e-6) {
				t.Fatalf("|OrbitalPosition(%v, %v)| = %v, want %v", radius, angle, p.Len(), radius)
			}
			if p.Y() != 0 {
				t.Fatalf("OrbitalPosition(%v, %v).Y = %v, want 0", radius, angle, p.Y())
			}
		}
	}
}

func TestOrbitalPositionIsRightHandedAboutY(t *testing.T) {
	cases := []struct {
		angle float64
		want  mgl64.Vec3
	}{
		{0, mgl64.Vec3{10, 0, 0}},
		{math.Pi / 2, mgl64.Vec3{0, 0, -10}},
		{math.Pi, mgl64.Vec3{-10, 0, 0}},
		{3 * math.Pi / 2, mgl64.Vec3{0, 0, 10}},
	}
	for _, tc := range cases {
		if got := OrbitalPosition(10, tc.angle); !vecNear(got, tc.want, 1e-9) {
			t.Fatalf("OrbitalPosition(10, %v) = %v, want %v", tc.angle, got, tc.want)
		}
	}
}

func TestWrapAngle(t *testing.T) {
	cases := []struct{ in, want float64 }{
		{0, 0},
		{TwoPi, 0},
		{-0.5, TwoPi - 0.5},
		{7, 7 - TwoPi},
		{-13, -13 + 3*TwoPi},
	}
	for _, tc := range cases {
		if got := WrapAngle(tc.in); !near(got, tc.want, 1e-12) {
			t.Fatalf("WrapAngle(%v) = %v, want %v", tc.in, got, tc.want)
		}
	}
}

func TestTransformComposeInverse(t *testing.T) {
	parent := Transform{
		Position: mgl64.Vec3{3, -1, 7},
		Rotation: mgl64.QuatRotate(0.8, mgl64.Vec3{1, 2, 3}.Normalize()),
	}
	child := Transform{
		Position: mgl64.Vec3{-2, 5, 0.5},
		Rotation: mgl64.QuatRotate(-1.3, mgl64.Vec3{0, 1, 0}),
	}

	world := parent.Compose(child)
	back := parent.Inverse().Compose(world)
	if !back.ApproxEqual(child, 1e-9) {
		t.Fatalf("inverse(parent)∘parent∘child = %+v, want %+v", back, child)
	}

	p := mgl64.Vec3{1, 1, 1}
	if got, want := world.Apply(p), parent.Apply(child.Apply(p)); !vecNear(got, want, 1e-9) {
		t.Fatalf("Compose.Apply = %v, want %v", got, want)
	}
	if got := Identity().Compose(child); !got.ApproxEqual(child, 1e-12) {
		t.Fatalf("Identity().Compose(child) = %+v, want %+v", got, child)
	}
}

func TestRotateAboutOffCentre(t *testing.T) {
	center := mgl64.Vec3{5, 0, 0}
	got := RotateAbout(mgl64.Vec3{6, 0, 0}, center, AxisY, math.Pi)
	if want := (mgl64.Vec3{4, 0, 0}); !vecNear(got, want, 1e-9) {
		t.Fatalf("RotateAbout = %v, want %v", got, want)
	}
}

func TestLookRotationPointsForwardAlongDirection(t *testing.T) {
	dirs := []mgl64.Vec3{
		{1, 0, 0},
		{0, 0, -1},
		{3, 4, -2},
		{-0.1, -5, 0.2},
		{0, 1, 0}, // parallel to up
		{0, -2, 0},
	}
	for _, d := range dirs {
		q, ok := LookRotation(d, Up)
		if !ok {
			t.Fatalf("LookRotation(%v) not ok", d)
		}
		if got, want := q.Rotate(Forward), d.Normalize(); !vecNear(got, want, 1e-9) {
			t.Fatalf("LookRotation(%v) forward = %v, want %v", d, got, want)
		}
		if !near(q.Len(), 1, 1e-9) {
			t.Fatalf("LookRotation(%v) not unit: %v", d, q.Len())
		}
	}
}

func TestLookRotationKeepsUpright(t *testing.T) {
	q, _ := LookRotation(mgl64.Vec3{1, 0, 1}, Up)
	if got := q.Rotate(Up); !vecNear(got, Up, 1e-9) {
		t.Fatalf("up after LookRotation = %v, want %v", got, Up)
	}
}

func TestLookRotationZeroDirection(t *testing.T) {
	q, ok := LookRotation(mgl64.Vec3{}, Up)
	if ok {
		t.Fatalf("LookRotation(zero) ok = true, want false")
	}
	if !q.OrientationEqualThreshold(mgl64.QuatIdent(), 1e-12) {
		t.Fatalf("LookRotation(zero) = %v, want identity", q)
	}
}

func TestSlerpShortestEndpoints(t *testing.T) {
	a := mgl64.QuatIdent()
	b := mgl64.QuatRotate(2.5, AxisY)
	if got := SlerpShortest(a, b, 0); !got.OrientationEqualThreshold(a, 1e-9) {
		t.Fatalf("SlerpShortest(t=0) = %v, want %v", got, a)
	}
	if got := SlerpShortest(a, b, 1); !got.OrientationEqualThreshold(b, 1e-9) {
		t.Fatalf("SlerpShortest(t=1) = %v, want %v", got, b)
	}

	// -b is the same orientation; the blend must not take the long way.
	half := SlerpShortest(a, b.Scale(-1), 0.5)
	want := mgl64.QuatRotate(1.25, AxisY)
	if !half.OrientationEqualThreshold(want, 1e-9) {
		t.Fatalf("SlerpShortest(a, -b, 0.5) = %v, want %v", half, want)
	}
}

func TestBlendFactor(t *testing.T) {
	if got := BlendFactor(BlendExponential, DefaultBlendFraction, DefaultBlendRate, 1.0/60); !near(got, DefaultBlendFraction, 1e-12) {
		t.Fatalf("exponential blend at 60 Hz = %v, want %v", got, DefaultBlendFraction)
	}

	// Two half-steps blend as much as one full step.
	half := BlendFactor(BlendExponential, DefaultBlendFraction, DefaultBlendRate, 1.0/120)
	if got := 1 - (1-half)*(1-half); !near(got, DefaultBlendFraction, 1e-12) {
		t.Fatalf("two 120 Hz blends = %v, want %v", got, DefaultBlendFraction)
	}

	if got := BlendFactor(BlendExponential, 0.2, DefaultBlendRate, 0); got != 0.2 {
		t.Fatalf("exponential blend at dt=0 = %v, want fixed 0.2", got)
	}
	if got := BlendFactor(BlendFixed, 0.05, DefaultBlendRate, 1); got != 0.05 {
		t.Fatalf("fixed blend = %v, want 0.05", got)
	}
}
