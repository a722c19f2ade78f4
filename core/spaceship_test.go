package core

import (
	"context"
	"errors"
	"math"
	"testing"

	"github.com/go-gl/mathgl/mgl64"

	"github.com/signalsfoundry/orrery/model"
)

func newShipScene(t *testing.T, cfg ShipConfig) (*SimContext, *fakeBodies, *Spaceship, *fakeExhaust) {
	t.Helper()
	bodies := newFakeBodies(testEarth(), testMars())
	sc := NewSimContext(bodies, nil)
	sc.Orbits.Enabled = true

	ex := &fakeExhaust{}
	ship := NewSpaceship(cfg, WithExhaust(ex))
	if err := ship.PlaceOn(bodies, "earth"); err != nil {
		t.Fatalf("PlaceOn: %v", err)
	}
	sc.Ship = ship
	return sc, bodies, ship, ex
}

func TestPlaceOnParksAtDockPoint(t *testing.T) {
	sc, bodies, ship, _ := newShipScene(t, ShipConfig{})
	if ship.State() != model.StateIdle {
		t.Fatalf("State() = %v, want idle", ship.State())
	}
	if ship.Frame() != model.OrbitFrameOf("earth") {
		t.Fatalf("Frame() = %v, want orbit:earth", ship.Frame())
	}
	world, err := ship.WorldTransform(sc.Bodies)
	if err != nil {
		t.Fatalf("WorldTransform: %v", err)
	}
	if want := (mgl64.Vec3{10, 1.5, 0}); !vecNear(world.Position, want, 1e-9) {
		t.Fatalf("world position = %v, want %v", world.Position, want)
	}

	if err := ship.PlaceOn(bodies, "pluto"); !errors.Is(err, ErrUnknownFrame) {
		t.Fatalf("PlaceOn(unknown) error = %v, want ErrUnknownFrame", err)
	}
}

func TestIdleShipCoRotatesWithBody(t *testing.T) {
	sc, bodies, ship, _ := newShipScene(t, ShipConfig{})
	before, _ := ship.WorldTransform(sc.Bodies)
	for i := 0; i < 25; i++ {
		sc.Orbits.AdvanceAll(bodies.ReadyBodies())
		if ship.Update(sc, 1.0/60) {
			t.Fatalf("idle ship reported a landing")
		}
	}
	after, _ := ship.WorldTransform(sc.Bodies)
	want := mgl64.QuatRotate(25*0.01, AxisY).Rotate(before.Position)
	if !vecNear(after.Position, want, 1e-9) {
		t.Fatalf("idle ship at %v, want %v", after.Position, want)
	}
}

func TestLaunchPreservesWorldTransform(t *testing.T) {
	sc, _, ship, ex := newShipScene(t, ShipConfig{})
	sc.Orbits.AdvanceAll(sc.Bodies.ReadyBodies())

	before, _ := ship.WorldTransform(sc.Bodies)
	sol, err := ship.Launch(context.Background(), sc, "mars")
	if err != nil {
		t.Fatalf("Launch: %v", err)
	}
	after, _ := ship.WorldTransform(sc.Bodies)
	if !after.ApproxEqual(before, 1e-9) {
		t.Fatalf("launch moved the ship: %+v -> %+v", before, after)
	}
	if ship.State() != model.StateTraveling || ship.Frame() != model.WorldFrame() {
		t.Fatalf("after launch state=%v frame=%v, want traveling/world", ship.State(), ship.Frame())
	}
	if ship.Target() != "mars" || ship.Destination() != sol.Point {
		t.Fatalf("target=%q destination=%v, want mars/%v", ship.Target(), ship.Destination(), sol.Point)
	}
	if !ex.Visible() {
		t.Fatalf("exhaust hidden while traveling")
	}
}

func TestLaunchGuardsLeaveStateUnchanged(t *testing.T) {
	cases := []struct {
		name   string
		cfg    ShipConfig
		setup  func(sc *SimContext, b *fakeBodies)
		target string
		want   error
	}{
		{"not settled", ShipConfig{}, func(_ *SimContext, b *fakeBodies) { b.unsettled = true }, "mars", ErrNotReady},
		{"target not ready", ShipConfig{}, func(_ *SimContext, b *fakeBodies) { b.notReady["mars"] = true }, "mars", ErrNotReady},
		{"unknown target", ShipConfig{}, nil, "pluto", ErrNotReady},
		{"same body", ShipConfig{}, nil, "earth", ErrSameBody},
		{"unreachable", ShipConfig{MaxTime: 5}, nil, "mars", ErrNoIntercept},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			sc, bodies, ship, ex := newShipScene(t, tc.cfg)
			if tc.setup != nil {
				tc.setup(sc, bodies)
			}
			local, frame := ship.Local(), ship.Frame()

			_, err := ship.Launch(context.Background(), sc, tc.target)
			if !errors.Is(err, tc.want) {
				t.Fatalf("Launch error = %v, want %v", err, tc.want)
			}
			if ship.State() != model.StateIdle || ship.Frame() != frame || !ship.Local().ApproxEqual(local, 1e-12) {
				t.Fatalf("failed launch changed the ship: state=%v frame=%v", ship.State(), ship.Frame())
			}
			if ex.Visible() {
				t.Fatalf("exhaust visible after a failed launch")
			}
		})
	}
}

func TestLaunchWithoutRegistry(t *testing.T) {
	ship := NewSpaceship(ShipConfig{})
	if _, err := ship.Launch(context.Background(), nil, "mars"); !errors.Is(err, ErrNotReady) {
		t.Fatalf("Launch(nil context) error = %v, want ErrNotReady", err)
	}
}

func TestLaunchWhileTraveling(t *testing.T) {
	sc, _, ship, _ := newShipScene(t, ShipConfig{})
	if _, err := ship.Launch(context.Background(), sc, "mars"); err != nil {
		t.Fatalf("Launch: %v", err)
	}
	dest := ship.Destination()
	if _, err := ship.Launch(context.Background(), sc, "earth"); !errors.Is(err, ErrAlreadyTraveling) {
		t.Fatalf("second Launch error = %v, want ErrAlreadyTraveling", err)
	}
	if ship.Target() != "mars" || ship.Destination() != dest {
		t.Fatalf("second launch retargeted the ship")
	}
}

func TestTravelLandsOnTarget(t *testing.T) {
	sc, bodies, ship, ex := newShipScene(t, ShipConfig{})
	sol, err := ship.Launch(context.Background(), sc, "mars")
	if err != nil {
		t.Fatalf("Launch: %v", err)
	}
	if sol.Time != float64(ship.ArrivalTick()) || ship.Speed() > 0.1+1e-9 {
		t.Fatalf("trip time=%v arrival=%d speed=%v, want a whole tick at no more than 0.1", sol.Time, ship.ArrivalTick(), ship.Speed())
	}

	prev, _ := ship.WorldTransform(sc.Bodies)
	landed := false
	ticks := 0
	for ticks < 2000 && !landed {
		sc.Orbits.AdvanceAll(bodies.ReadyBodies())
		landed = ship.Update(sc, 1.0/60)
		ticks++
		cur, err := ship.WorldTransform(sc.Bodies)
		if err != nil {
			t.Fatalf("WorldTransform: %v", err)
		}
		if d := cur.Position.Sub(prev.Position).Len(); d > 0.1+1e-9 {
			t.Fatalf("tick %d: ship jumped %v units", ticks, d)
		}
		if ticks == 150 && !landed {
			heading := cur.Rotation.Rotate(Forward)
			dir := ship.Destination().Sub(cur.Position).Normalize()
			if heading.Dot(dir) < 0.99 {
				t.Fatalf("heading %v not aligned with travel direction %v", heading, dir)
			}
		}
		prev = cur
	}
	if !landed {
		t.Fatalf("ship did not land within %d ticks (t* = %v)", ticks, sol.Time)
	}
	if ticks != ship.ArrivalTick() {
		t.Fatalf("landed after %d ticks, want %d", ticks, ship.ArrivalTick())
	}

	if ship.State() != model.StateLanded || ship.Body() != "mars" || ship.PastTarget() != "mars" {
		t.Fatalf("after landing state=%v body=%q past=%q", ship.State(), ship.Body(), ship.PastTarget())
	}
	if ship.Frame() != model.OrbitFrameOf("mars") || ship.Target() != "" {
		t.Fatalf("after landing frame=%v target=%q", ship.Frame(), ship.Target())
	}
	if ex.Visible() || ex.updates == 0 {
		t.Fatalf("exhaust visible=%v updates=%d, want hidden after some updates", ex.Visible(), ex.updates)
	}

	mars := bodies.Body("mars")
	if d := ship.Local().Position.Sub(ship.DockPoint(mars)).Len(); d > 1e-6 {
		t.Fatalf("landed %v units from the dock point", d)
	}

	// Parented to the pivot, the ship now follows mars.
	world, _ := ship.WorldTransform(sc.Bodies)
	for i := 0; i < 10; i++ {
		sc.Orbits.AdvanceAll(bodies.ReadyBodies())
	}
	moved, _ := ship.WorldTransform(sc.Bodies)
	if want := mgl64.QuatRotate(10*0.005, AxisY).Rotate(world.Position); !vecNear(moved.Position, want, 1e-9) {
		t.Fatalf("landed ship at %v, want %v", moved.Position, want)
	}
}

func TestFinalApproachFlipsTailFirst(t *testing.T) {
	sc, bodies, ship, _ := newShipScene(t, ShipConfig{})
	if _, err := ship.Launch(context.Background(), sc, "mars"); err != nil {
		t.Fatalf("Launch: %v", err)
	}
	if ship.Side() != TurnRight {
		t.Fatalf("outbound trip flips %v, want right", ship.Side())
	}

	var cruise mgl64.Vec3
	for i := 0; i < 2000; i++ {
		sc.Orbits.AdvanceAll(bodies.ReadyBodies())
		before, _ := ship.WorldTransform(sc.Bodies)
		if ship.Destination().Sub(before.Position).Len() > 0.4 {
			cruise = before.Rotation.Rotate(Forward)
		}
		if ship.Update(sc, 1.0/60) {
			break
		}
		if a := ship.FlipAngle(); a < 0 || a > math.Pi+1e-9 {
			t.Fatalf("tick %d: flip angle %v out of range", i, a)
		}
	}
	if ship.State() != model.StateLanded {
		t.Fatalf("State() = %v, want landed", ship.State())
	}
	if !near(ship.FlipAngle(), math.Pi, 1e-9) {
		t.Fatalf("FlipAngle() = %v, want pi", ship.FlipAngle())
	}
	world, _ := ship.WorldTransform(sc.Bodies)
	if got := world.Rotation.Rotate(Forward); got.Dot(cruise) > -0.99 {
		t.Fatalf("landed facing %v, want opposite of cruise heading %v", got, cruise)
	}

	// Heading sunward flips the other way.
	if _, err := ship.Launch(context.Background(), sc, "earth"); err != nil {
		t.Fatalf("Launch back: %v", err)
	}
	if ship.Side() != TurnLeft || ship.FlipAngle() != 0 {
		t.Fatalf("return trip side=%v flip=%v, want left/0", ship.Side(), ship.FlipAngle())
	}
}

func TestFlipDisabled(t *testing.T) {
	sc, bodies, ship, _ := newShipScene(t, ShipConfig{FlipDistance: -1})
	if _, err := ship.Launch(context.Background(), sc, "mars"); err != nil {
		t.Fatalf("Launch: %v", err)
	}
	for i := 0; i < 2000; i++ {
		sc.Orbits.AdvanceAll(bodies.ReadyBodies())
		if ship.Update(sc, 1.0/60) {
			break
		}
	}
	if ship.State() != model.StateLanded || ship.FlipAngle() != 0 {
		t.Fatalf("state=%v flip=%v, want landed without a flip", ship.State(), ship.FlipAngle())
	}
}

func TestLandingDeferredWhenTargetVanishes(t *testing.T) {
	sc, bodies, ship, _ := newShipScene(t, ShipConfig{})
	if _, err := ship.Launch(context.Background(), sc, "mars"); err != nil {
		t.Fatalf("Launch: %v", err)
	}
	delete(bodies.bodies, "mars")
	for i := 0; i < 2000; i++ {
		if ship.Update(sc, 1.0/60) {
			t.Fatalf("ship landed on a missing body")
		}
	}
	if ship.State() != model.StateTraveling {
		t.Fatalf("State() = %v, want traveling", ship.State())
	}
	world, _ := ship.WorldTransform(sc.Bodies)
	if d := world.Position.Sub(ship.Destination()).Len(); d > 0.1 {
		t.Fatalf("ship holding %v units from the destination", d)
	}
}

func TestToggleAnimationSettlesLandedShip(t *testing.T) {
	sc, bodies, ship, _ := newShipScene(t, ShipConfig{})
	if _, err := ship.Launch(context.Background(), sc, "mars"); err != nil {
		t.Fatalf("Launch: %v", err)
	}
	ship.ToggleAnimation()
	if ship.State() != model.StateTraveling {
		t.Fatalf("toggle during travel changed state to %v", ship.State())
	}
	for i := 0; i < 2000 && !ship.Update(sc, 0); i++ {
		sc.Orbits.AdvanceAll(bodies.ReadyBodies())
	}
	if ship.State() != model.StateLanded {
		t.Fatalf("State() = %v, want landed", ship.State())
	}
	ship.ToggleAnimation()
	if ship.State() != model.StateIdle {
		t.Fatalf("State() after toggle = %v, want idle", ship.State())
	}
}

func TestTravelSpeedFromParams(t *testing.T) {
	sc, _, ship, _ := newShipScene(t, ShipConfig{})
	sc.Params.TravelSpeed = 0.5
	sol, err := ship.Launch(context.Background(), sc, "mars")
	if err != nil {
		t.Fatalf("Launch: %v", err)
	}
	start := mgl64.Vec3{10, 1.5, 0}
	if sol.Time != math.Trunc(sol.Time) {
		t.Fatalf("trip time %v is not a whole tick", sol.Time)
	}
	if got := start.Sub(sol.Point).Len(); got > 0.5*sol.Time+1e-6 {
		t.Fatalf("path length %v does not fit %v ticks at speed 0.5", got, sol.Time)
	}
	if want := start.Sub(sol.Point).Len() / sol.Time; !near(ship.Speed(), want, 1e-12) {
		t.Fatalf("Speed() = %v, want %v", ship.Speed(), want)
	}
}
