package core

import (
	"math"

	"github.com/go-gl/mathgl/mgl64"

	"github.com/signalsfoundry/orrery/model"
)

// fakeBodies is an in-memory Bodies implementation for tests.
type fakeBodies struct {
	bodies    map[string]*model.CelestialBody
	order     []string
	notReady  map[string]bool
	unsettled bool
}

func newFakeBodies(bs ...*model.CelestialBody) *fakeBodies {
	f := &fakeBodies{
		bodies:   make(map[string]*model.CelestialBody),
		notReady: make(map[string]bool),
	}
	for _, b := range bs {
		f.bodies[b.ID] = b
		f.order = append(f.order, b.ID)
	}
	return f
}

func (f *fakeBodies) Body(id string) *model.CelestialBody { return f.bodies[id] }

func (f *fakeBodies) Ready(id string) bool {
	_, ok := f.bodies[id]
	return ok && !f.notReady[id]
}

func (f *fakeBodies) ReadyBodies() []*model.CelestialBody {
	out := make([]*model.CelestialBody, 0, len(f.order))
	for _, id := range f.order {
		if f.Ready(id) {
			out = append(out, f.bodies[id])
		}
	}
	return out
}

func (f *fakeBodies) Settled() bool { return !f.unsettled }

func testEarth() *model.CelestialBody {
	return &model.CelestialBody{ID: "earth", Name: "Earth", OrbitRadius: 10, AngularSpeed: 0.01, BodyRadius: 1}
}

func testMars() *model.CelestialBody {
	return &model.CelestialBody{ID: "mars", Name: "Mars", OrbitRadius: 22, AngularSpeed: 0.005, Angle: 2, BodyRadius: 0.8}
}

func vecNear(a, b mgl64.Vec3, eps float64) bool {
	return a.Sub(b).Len() <= eps
}

func near(a, b, eps float64) bool {
	return math.Abs(a-b) <= eps
}

// angleDiff is the unsigned distance between two angles on the circle.
func angleDiff(a, b float64) float64 {
	d := math.Abs(WrapAngle(a) - WrapAngle(b))
	return math.Min(d, TwoPi-d)
}

// fakeExhaust records how the ship drives it.
type fakeExhaust struct {
	visible bool
	toggles int
	updates int
	last    Transform
}

func (e *fakeExhaust) SetVisible(v bool) {
	e.visible = v
	e.toggles++
}

func (e *fakeExhaust) Visible() bool { return e.visible }

func (e *fakeExhaust) Update(dt float64, ship Transform) {
	e.updates++
	e.last = ship
}

func (e *fakeExhaust) Particles() []mgl64.Vec3 {
	return []mgl64.Vec3{e.last.Position}
}
