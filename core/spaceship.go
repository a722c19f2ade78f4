package core

import (
	"context"
	"fmt"
	"math"

	"github.com/go-gl/mathgl/mgl64"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/signalsfoundry/orrery/internal/logging"
	"github.com/signalsfoundry/orrery/model"
)

const tracerName = "github.com/signalsfoundry/orrery/core"

// Exhaust is the particle effect attached to a ship. It is owned by the
// scene assembly; the ship only toggles it and feeds it elapsed time.
type Exhaust interface {
	SetVisible(visible bool)
	Visible() bool
	Update(dt float64, ship Transform)
}

// ShipConfig tunes travel. Distances are world units, speeds units/tick.
type ShipConfig struct {
	Speed            float64
	LandingThreshold float64
	// DockClearance is the height above a body's radius where the ship
	// parks and where the interception is aimed.
	DockClearance float64
	MaxTime       float64
	// FlipDistance is how far from the destination the ship starts turning
	// tail-first for the final approach. Zero uses the default; a negative
	// value keeps the ship nose-first all the way in.
	FlipDistance float64

	Blend         BlendMode
	BlendFraction float64
	BlendRate     float64
}

// DefaultShipConfig returns the tuning used by the default scene.
func DefaultShipConfig() ShipConfig {
	return ShipConfig{
		Speed:            0.1,
		LandingThreshold: 0.1,
		DockClearance:    0.5,
		MaxTime:          DefaultMaxInterceptTime,
		FlipDistance:     0.4,
		Blend:            BlendExponential,
		BlendFraction:    DefaultBlendFraction,
		BlendRate:        DefaultBlendRate,
	}
}

// ApplyDefaults fills zero or invalid fields from DefaultShipConfig.
func (c ShipConfig) ApplyDefaults() ShipConfig {
	d := DefaultShipConfig()
	if c.Speed <= 0 {
		c.Speed = d.Speed
	}
	if c.LandingThreshold <= 0 {
		c.LandingThreshold = d.LandingThreshold
	}
	if c.DockClearance < 0 {
		c.DockClearance = d.DockClearance
	}
	if c.MaxTime <= 0 {
		c.MaxTime = d.MaxTime
	}
	if c.FlipDistance == 0 {
		c.FlipDistance = d.FlipDistance
	}
	if c.BlendFraction <= 0 || c.BlendFraction > 1 {
		c.BlendFraction = d.BlendFraction
	}
	if c.BlendRate <= 0 {
		c.BlendRate = d.BlendRate
	}
	return c
}

// ShipOption customises a Spaceship.
type ShipOption func(*Spaceship)

// WithExhaust attaches an exhaust effect.
func WithExhaust(e Exhaust) ShipOption {
	return func(s *Spaceship) { s.exhaust = e }
}

// WithShipLogger sets the logger used for state transitions.
func WithShipLogger(l logging.Logger) ShipOption {
	return func(s *Spaceship) {
		if l != nil {
			s.log = l
		}
	}
}

// Spaceship is a traveling actor. Its transform is always expressed in
// exactly one parent frame: an orbit pivot while idle or landed, the
// world while traveling.
type Spaceship struct {
	cfg     ShipConfig
	log     logging.Logger
	exhaust Exhaust

	state model.ActorState
	frame model.Frame
	local Transform

	body        string
	target      string
	destination mgl64.Vec3
	speed       float64
	arrival     int
	ticks       int
	pastTarget  string

	side   TurnSide
	cruise mgl64.Quat
	flip   float64
}

// TurnSide is the direction of the final-approach flip, seen from above.
type TurnSide int

const (
	// TurnRight yaws clockwise about +Y; used when heading outward.
	TurnRight TurnSide = iota
	// TurnLeft yaws counter-clockwise; used when heading sunward.
	TurnLeft
)

func (t TurnSide) String() string {
	if t == TurnLeft {
		return "left"
	}
	return "right"
}

func (t TurnSide) sign() float64 {
	if t == TurnLeft {
		return 1
	}
	return -1
}

// sideFor picks the flip direction for a trip between two orbit radii.
func sideFor(from, to *model.CelestialBody) TurnSide {
	if from != nil && to.OrbitRadius < from.OrbitRadius {
		return TurnLeft
	}
	return TurnRight
}

// NewSpaceship returns an unplaced ship; call PlaceOn before use.
func NewSpaceship(cfg ShipConfig, opts ...ShipOption) *Spaceship {
	s := &Spaceship{
		cfg:   cfg.ApplyDefaults(),
		log:   logging.Noop(),
		frame: model.WorldFrame(),
		local: Identity(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// DockPoint is where a ship parks on b, in b's orbit pivot frame.
func (s *Spaceship) DockPoint(b *model.CelestialBody) mgl64.Vec3 {
	return mgl64.Vec3{b.OrbitRadius, b.BodyRadius + s.cfg.DockClearance, 0}
}

// PlaceOn puts the ship Idle at the dock point of body id.
func (s *Spaceship) PlaceOn(bodies BodyLookup, id string) error {
	var b *model.CelestialBody
	if bodies != nil {
		b = bodies.Body(id)
	}
	if b == nil {
		return fmt.Errorf("%w: %s", ErrUnknownFrame, model.OrbitFrameOf(id))
	}
	s.state = model.StateIdle
	s.frame = model.OrbitFrameOf(id)
	s.local = Transform{Position: s.DockPoint(b), Rotation: mgl64.QuatIdent()}
	s.body = id
	s.target = ""
	s.setExhaust(false)
	return nil
}

// Launch solves the interception toward target and, when one exists,
// detaches the ship into the world frame and starts traveling. On any
// error the ship is left exactly as it was.
func (s *Spaceship) Launch(ctx context.Context, sc *SimContext, target string) (InterceptSolution, error) {
	ctx, span := otel.Tracer(tracerName).Start(ctx, "Spaceship.Launch")
	defer span.End()
	span.SetAttributes(
		attribute.String("ship.body", s.body),
		attribute.String("ship.target", target),
		attribute.String("ship.state", s.state.String()),
	)

	sol, err := s.launch(ctx, sc, target)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return sol, err
	}
	span.SetAttributes(
		attribute.Float64("intercept.time", sol.Time),
		attribute.Int("intercept.iterations", sol.Iterations),
	)
	return sol, nil
}

func (s *Spaceship) launch(ctx context.Context, sc *SimContext, target string) (InterceptSolution, error) {
	if s.state == model.StateTraveling {
		return InterceptSolution{}, fmt.Errorf("%w: toward %s", ErrAlreadyTraveling, s.target)
	}
	if sc == nil || sc.Bodies == nil {
		return InterceptSolution{}, fmt.Errorf("%w: no body registry", ErrNotReady)
	}
	if !sc.Bodies.Settled() || !sc.Bodies.Ready(target) {
		return InterceptSolution{}, fmt.Errorf("%w: %s", ErrNotReady, target)
	}
	if target == s.body {
		return InterceptSolution{}, fmt.Errorf("%w: %s", ErrSameBody, target)
	}
	tb := sc.Bodies.Body(target)
	if tb == nil {
		return InterceptSolution{}, fmt.Errorf("%w: %s", ErrNotReady, target)
	}

	world, err := ToWorld(s.local, s.frame, sc.Bodies)
	if err != nil {
		return InterceptSolution{}, err
	}

	speed := sc.Params.TravelSpeed
	if speed <= 0 {
		speed = s.cfg.Speed
	}
	p := InterceptParams{
		Start:        world.Position,
		Target:       PivotTransform(tb).Apply(s.DockPoint(tb)),
		Axis:         AxisY,
		AngularSpeed: sc.Orbits.EffectiveAngularSpeed(tb),
		Speed:        speed,
		MaxTime:      s.cfg.MaxTime,
	}
	_, solveSpan := otel.Tracer(tracerName).Start(ctx, "SolveIntercept")
	sol, err := SolveIntercept(p)
	solveSpan.End()
	if err != nil {
		return InterceptSolution{}, err
	}
	// Bodies move in whole ticks, so the ship must arrive on one too.
	sol = AlignToTick(p, sol)
	if sol.Time > 0 {
		speed = sol.Point.Sub(world.Position).Len() / sol.Time
	}

	// Hand-off: world transform is preserved, only the parent changes.
	s.local = world
	s.frame = model.WorldFrame()
	s.state = model.StateTraveling
	s.target = target
	s.destination = sol.Point
	s.speed = speed
	s.arrival = int(sol.Time)
	s.ticks = 0
	s.side = sideFor(sc.Bodies.Body(s.body), tb)
	s.cruise = world.Rotation
	s.flip = 0
	s.setExhaust(true)
	if s.exhaust != nil {
		s.exhaust.Update(0, s.local)
	}

	s.log.Info(ctx, "ship launched",
		logging.String("from", s.body),
		logging.String("target", target),
		logging.Float("eta_ticks", sol.Time),
		logging.Float("speed", speed),
		logging.String("flip", s.side.String()),
		logging.Int("iterations", sol.Iterations),
	)
	return sol, nil
}

// Update advances one tick. The first call after Launch is the first
// tick of the trip: Launch aims at where the target will be once the
// bodies have advanced that many times, so callers advance the orbits
// before each Update and skip Update on the tick they launch. Update
// reports true on the tick the ship lands.
func (s *Spaceship) Update(sc *SimContext, dt float64) bool {
	if s.state != model.StateTraveling {
		s.setExhaust(false)
		return false
	}
	s.ticks++

	toDest := s.destination.Sub(s.local.Position)
	if dist := toDest.Len(); dist > epsilon {
		dir := toDest.Mul(1 / dist)
		s.steer(dir, dist, dt)
		s.local.Position = s.local.Position.Add(dir.Mul(math.Min(s.speed, dist)))
	}

	if s.exhaust != nil {
		s.exhaust.Update(dt, s.local)
	}

	if s.ticks >= s.arrival && s.destination.Sub(s.local.Position).Len() <= s.cfg.LandingThreshold {
		return s.land(sc)
	}
	return false
}

// steer turns the ship toward dir while cruising. Inside FlipDistance it
// instead yaws away from its cruise heading, reaching half a turn as the
// remaining distance reaches zero.
func (s *Spaceship) steer(dir mgl64.Vec3, dist, dt float64) {
	if s.cfg.FlipDistance <= 0 || dist > s.cfg.FlipDistance {
		if look, ok := LookRotation(dir, Up); ok {
			alpha := BlendFactor(s.cfg.Blend, s.cfg.BlendFraction, s.cfg.BlendRate, dt)
			s.local.Rotation = SlerpShortest(s.local.Rotation, look, alpha)
		}
		s.cruise = s.local.Rotation
		return
	}
	remaining := math.Max(dist-s.speed, 0)
	s.setFlip(math.Pi * (1 - remaining/s.cfg.FlipDistance))
}

func (s *Spaceship) setFlip(angle float64) {
	s.flip = math.Max(s.flip, math.Min(angle, math.Pi))
	s.local.Rotation = mgl64.QuatRotate(s.side.sign()*s.flip, Up).Mul(s.cruise).Normalize()
}

func (s *Spaceship) land(sc *SimContext) bool {
	var bodies BodyLookup
	if sc != nil && sc.Bodies != nil {
		bodies = sc.Bodies
	}
	if s.cfg.FlipDistance > 0 {
		s.setFlip(math.Pi)
	}
	to := model.OrbitFrameOf(s.target)
	local, err := Reparent(s.local, s.frame, to, bodies)
	if err != nil {
		// Target vanished mid-flight; hold position in the world frame.
		sc.logger().Warn(context.Background(), "landing deferred",
			logging.String("target", s.target),
			logging.Err(err),
		)
		return false
	}
	s.local = local
	s.frame = to
	s.state = model.StateLanded
	s.body = s.target
	s.pastTarget = s.target
	s.target = ""
	s.setExhaust(false)

	s.log.Info(context.Background(), "ship landed", logging.String("body", s.body))
	return true
}

// ToggleAnimation is called when planet animation is switched; a landed
// ship settles back into idle orbit-following.
func (s *Spaceship) ToggleAnimation() {
	if s.state == model.StateLanded {
		s.state = model.StateIdle
	}
}

func (s *Spaceship) setExhaust(visible bool) {
	if s.exhaust != nil && s.exhaust.Visible() != visible {
		s.exhaust.SetVisible(visible)
	}
}

// WorldTransform resolves the ship's transform into world space.
func (s *Spaceship) WorldTransform(bodies BodyLookup) (Transform, error) {
	return ToWorld(s.local, s.frame, bodies)
}

// State returns the travel state.
func (s *Spaceship) State() model.ActorState { return s.state }

// Frame returns the current parent frame.
func (s *Spaceship) Frame() model.Frame { return s.frame }

// Local returns the transform relative to Frame.
func (s *Spaceship) Local() Transform { return s.local }

// Body returns the body the ship last idled or landed on.
func (s *Spaceship) Body() string { return s.body }

// Target returns the active travel target, if any.
func (s *Spaceship) Target() string { return s.target }

// Speed returns the per-tick speed of the active or last trip.
func (s *Spaceship) Speed() float64 { return s.speed }

// ArrivalTick returns how many Updates the active trip takes.
func (s *Spaceship) ArrivalTick() int { return s.arrival }

// FlipAngle returns how far the ship has yawed for its final approach,
// from 0 to pi.
func (s *Spaceship) FlipAngle() float64 { return s.flip }

// Side returns the flip direction of the active or last trip.
func (s *Spaceship) Side() TurnSide { return s.side }

// Destination returns the fixed interception point of the active trip.
func (s *Spaceship) Destination() mgl64.Vec3 { return s.destination }

// PastTarget returns the last body reached by travel.
func (s *Spaceship) PastTarget() string { return s.pastTarget }

// Exhaust returns the attached exhaust effect, if any.
func (s *Spaceship) Exhaust() Exhaust { return s.exhaust }
