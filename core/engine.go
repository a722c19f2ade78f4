package core

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/go-gl/mathgl/mgl64"

	"github.com/signalsfoundry/orrery/internal/logging"
	"github.com/signalsfoundry/orrery/model"
)

// EventKind names something that happened during a tick.
type EventKind string

const (
	EventLaunched       EventKind = "launched"
	EventLanded         EventKind = "landed"
	EventNoIntercept    EventKind = "no_intercept"
	EventLaunchRejected EventKind = "launch_rejected"
	EventAnimation      EventKind = "animation"
)

// Event is emitted by Step and carried on the snapshot of the tick it
// happened in.
type Event struct {
	Kind   EventKind `json:"kind"`
	Body   string    `json:"body,omitempty"`
	Target string    `json:"target,omitempty"`
	// ETA is the solved interception time in ticks for launches.
	ETA    float64 `json:"eta,omitempty"`
	Detail string  `json:"detail,omitempty"`
}

// BodyFrame is a body's published state for one tick.
type BodyFrame struct {
	ID          string
	Name        string
	Transform   Transform
	Angle       float64
	OrbitRadius float64
	BodyRadius  float64
	Color       string
}

// ShipFrame is the ship's published state for one tick.
type ShipFrame struct {
	Transform      Transform
	State          model.ActorState
	Frame          model.Frame
	Body           string
	Target         string
	PastTarget     string
	Destination    mgl64.Vec3
	ExhaustVisible bool
}

// WalkerFrame is the walker's published state for one tick.
type WalkerFrame struct {
	Transform Transform
	Body      string
	Radius    float64
	Up        mgl64.Vec3
}

// Snapshot is the immutable result of one Step. Viewers and the HTTP layer
// only ever see snapshots, never live entities.
type Snapshot struct {
	Index      uint64
	Elapsed    float64
	Camera     model.CameraMode
	Animation  bool
	SpeedScale float64
	Settled    bool

	Bodies    []BodyFrame
	Ship      *ShipFrame
	Walker    *WalkerFrame
	Particles []mgl64.Vec3
	Events    []Event
}

// ParticleSource is implemented by exhaust effects that expose their
// particles in world space.
type ParticleSource interface {
	Particles() []mgl64.Vec3
}

// MetricsRecorder captures per-tick simulation metrics.
type MetricsRecorder interface {
	ObserveTick(d time.Duration)
	RecordLaunch(result string, iterations int)
	RecordLanding(body string)
	SetBodiesReady(n int)
	SetTravelActive(active bool)
}

// Launch results reported to MetricsRecorder.
const (
	LaunchOK          = "ok"
	LaunchNoIntercept = "no_intercept"
	LaunchRejected    = "rejected"
)

// EngineOption customises an Engine.
type EngineOption func(*Engine)

// WithMetricsRecorder wires a metrics recorder into the engine.
func WithMetricsRecorder(m MetricsRecorder) EngineOption {
	return func(e *Engine) { e.metrics = m }
}

// WithEngineLogger sets the engine's logger. By default the context's
// logger is used.
func WithEngineLogger(l logging.Logger) EngineOption {
	return func(e *Engine) {
		if l != nil {
			e.log = l
		}
	}
}

// Engine runs the per-tick update over a SimContext. Step must be called
// from a single goroutine; Enqueue, Latest and AddListener are safe from
// any goroutine.
type Engine struct {
	sc      *SimContext
	log     logging.Logger
	metrics MetricsRecorder

	index   uint64
	elapsed float64

	queueMu sync.Mutex
	queue   []func(*SimContext)

	mu        sync.RWMutex
	latest    Snapshot
	listeners []func(Snapshot)
}

// NewEngine returns an engine driving sc.
func NewEngine(sc *SimContext, opts ...EngineOption) *Engine {
	if sc == nil {
		sc = NewSimContext(nil, nil)
	}
	if sc.Orbits == nil {
		sc.Orbits = NewOrbitModel()
	}
	e := &Engine{
		sc:  sc,
		log: sc.logger(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Context returns the engine's simulation context. Callers outside the
// loop goroutine must use Enqueue to mutate it.
func (e *Engine) Context() *SimContext { return e.sc }

// Enqueue schedules fn to run on the loop goroutine at the start of the
// next Step. Asset loaders use it to attach actors once they are ready.
func (e *Engine) Enqueue(fn func(*SimContext)) {
	if fn == nil {
		return
	}
	e.queueMu.Lock()
	e.queue = append(e.queue, fn)
	e.queueMu.Unlock()
}

// AddListener registers a callback invoked with every published snapshot.
func (e *Engine) AddListener(fn func(Snapshot)) {
	e.mu.Lock()
	e.listeners = append(e.listeners, fn)
	e.mu.Unlock()
}

// Latest returns the most recently published snapshot.
func (e *Engine) Latest() Snapshot {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.latest
}

// Step advances the simulation by one tick of dt seconds using the given
// input and panel values, then publishes and returns the snapshot.
func (e *Engine) Step(ctx context.Context, dt float64, input WalkInput, params Params) Snapshot {
	start := time.Now()
	sc := e.sc
	sc.Params = params

	e.drain()

	var events []Event
	if sc.Orbits.Enabled != params.Animation {
		sc.Orbits.Enabled = params.Animation
		if sc.Ship != nil {
			sc.Ship.ToggleAnimation()
		}
		events = append(events, Event{Kind: EventAnimation, Detail: animationDetail(params.Animation)})
	}
	sc.Orbits.Scale = params.SpeedScale

	var ready []*model.CelestialBody
	if sc.Bodies != nil {
		ready = sc.Bodies.ReadyBodies()
	}
	sc.Orbits.AdvanceAll(ready)

	launched := false
	if params.Launch && sc.Ship != nil {
		ev := e.launch(ctx, params.Target)
		launched = ev.Kind == EventLaunched
		events = append(events, ev)
	}

	// The launch tick is trip time zero; the ship first moves next tick.
	if sc.Ship != nil && !launched {
		from := sc.Ship.Target()
		if sc.Ship.Update(sc, dt) {
			events = append(events, Event{Kind: EventLanded, Body: from})
			if e.metrics != nil {
				e.metrics.RecordLanding(from)
			}
		}
	}

	if sc.Walker != nil {
		sc.Walker.Step(input, dt)
	}

	e.index++
	if dt > 0 {
		e.elapsed += dt
	}
	snap := e.snapshot(ready, events)

	if e.metrics != nil {
		e.metrics.SetBodiesReady(len(ready))
		e.metrics.SetTravelActive(snap.Ship != nil && snap.Ship.State == model.StateTraveling)
		e.metrics.ObserveTick(time.Since(start))
	}

	e.mu.Lock()
	e.latest = snap
	listeners := append([]func(Snapshot){}, e.listeners...)
	e.mu.Unlock()

	for _, fn := range listeners {
		fn(snap)
	}
	return snap
}

func (e *Engine) drain() {
	e.queueMu.Lock()
	queued := e.queue
	e.queue = nil
	e.queueMu.Unlock()
	for _, fn := range queued {
		fn(e.sc)
	}
}

func (e *Engine) launch(ctx context.Context, target string) Event {
	ship := e.sc.Ship
	from := ship.Body()
	sol, err := ship.Launch(ctx, e.sc, target)
	if err == nil {
		if e.metrics != nil {
			e.metrics.RecordLaunch(LaunchOK, sol.Iterations)
		}
		return Event{Kind: EventLaunched, Body: from, Target: target, ETA: sol.Time}
	}

	kind, result := EventLaunchRejected, LaunchRejected
	if errors.Is(err, ErrNoIntercept) {
		kind, result = EventNoIntercept, LaunchNoIntercept
		e.log.Info(ctx, "launch skipped, target unreachable",
			logging.String("from", from),
			logging.String("target", target),
			logging.Err(err),
		)
	} else {
		e.log.Debug(ctx, "launch rejected",
			logging.String("target", target),
			logging.Err(err),
		)
	}
	if e.metrics != nil {
		e.metrics.RecordLaunch(result, 0)
	}
	return Event{Kind: kind, Body: from, Target: target, Detail: err.Error()}
}

func (e *Engine) snapshot(ready []*model.CelestialBody, events []Event) Snapshot {
	sc := e.sc
	snap := Snapshot{
		Index:      e.index,
		Elapsed:    e.elapsed,
		Camera:     sc.Params.Camera,
		Animation:  sc.Orbits.Enabled,
		SpeedScale: sc.Orbits.Scale,
		Events:     events,
	}
	if sc.Bodies != nil {
		snap.Settled = sc.Bodies.Settled()
	}

	snap.Bodies = make([]BodyFrame, 0, len(ready))
	for _, b := range ready {
		snap.Bodies = append(snap.Bodies, BodyFrame{
			ID:          b.ID,
			Name:        b.Name,
			Transform:   BodyTransform(b),
			Angle:       b.Angle,
			OrbitRadius: b.OrbitRadius,
			BodyRadius:  b.BodyRadius,
			Color:       b.Color,
		})
	}

	if ship := sc.Ship; ship != nil {
		if world, err := ship.WorldTransform(sc.Bodies); err == nil {
			sf := &ShipFrame{
				Transform:   world,
				State:       ship.State(),
				Frame:       ship.Frame(),
				Body:        ship.Body(),
				Target:      ship.Target(),
				PastTarget:  ship.PastTarget(),
				Destination: ship.Destination(),
			}
			if ex := ship.Exhaust(); ex != nil {
				sf.ExhaustVisible = ex.Visible()
				if ps, ok := ex.(ParticleSource); ok && sf.ExhaustVisible {
					snap.Particles = ps.Particles()
				}
			}
			snap.Ship = sf
		}
	}

	if w := sc.Walker; w != nil {
		if world, err := w.WorldTransform(sc.Bodies); err == nil {
			snap.Walker = &WalkerFrame{
				Transform: world,
				Body:      w.Body(),
				Radius:    w.Radius(),
				Up:        world.Rotation.Rotate(Up),
			}
		}
	}
	return snap
}

func animationDetail(enabled bool) string {
	if enabled {
		return "on"
	}
	return "off"
}
