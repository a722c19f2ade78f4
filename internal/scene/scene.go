package scene

import (
	"context"
	"fmt"
	"math/rand/v2"

	"github.com/signalsfoundry/orrery/core"
	"github.com/signalsfoundry/orrery/internal/exhaust"
	"github.com/signalsfoundry/orrery/internal/logging"
	"github.com/signalsfoundry/orrery/internal/panel"
	"github.com/signalsfoundry/orrery/kb"
	"github.com/signalsfoundry/orrery/timectrl"
)

// Options tunes scene assembly. The zero value is usable.
type Options struct {
	Assets      AssetLoader
	Concurrency int
	Log         logging.Logger
	Metrics     core.MetricsRecorder
	Ship        core.ShipConfig
	Walker      core.WalkerConfig
	Exhaust     exhaust.Config
	// Rand seeds the starfield and exhaust; nil uses a random source.
	Rand *rand.Rand
}

// Scene owns one running simulation: registry, engine, panel and the
// static starfield. Actors attach themselves on the loop goroutine once
// their home body is ready.
type Scene struct {
	Catalogue Catalogue
	Registry  *kb.Registry
	Engine    *core.Engine
	Panel     *panel.Panel
	Stars     []Star

	opts  Options
	log   logging.Logger
	unsub func()
}

// New validates cat and wires a scene around it. Nothing is loaded until
// Load is called.
func New(cat Catalogue, opts Options) (*Scene, error) {
	cat = cat.ApplyDefaults()
	if err := cat.Validate(); err != nil {
		return nil, err
	}
	log := opts.Log
	if log == nil {
		log = logging.Noop()
	}
	if opts.Rand == nil {
		opts.Rand = rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64()))
	}

	stars, err := Starfield(cat.Stars, opts.Rand)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidCatalogue, err)
	}

	reg := kb.NewRegistry()
	sc := core.NewSimContext(reg, log.With(logging.Component("sim")))
	engineOpts := []core.EngineOption{core.WithEngineLogger(log.With(logging.Component("engine")))}
	if opts.Metrics != nil {
		engineOpts = append(engineOpts, core.WithMetricsRecorder(opts.Metrics))
	}
	engine := core.NewEngine(sc, engineOpts...)

	values := panel.Defaults()
	values.Target = cat.Target
	values.TravelSpeed = cat.Ship.Speed
	p := panel.New(panel.WithValues(values), panel.WithTargetCheck(cat.Has))
	engine.AddListener(p.Observe)

	s := &Scene{
		Catalogue: cat,
		Registry:  reg,
		Engine:    engine,
		Panel:     p,
		Stars:     stars,
		opts:      opts,
		log:       log,
	}
	s.unsub = reg.Subscribe(s.onRegistryEvent)
	return s, nil
}

// Load registers and loads every body. It returns once each body is ready
// or failed, or when ctx is cancelled.
func (s *Scene) Load(ctx context.Context) (LoadResult, error) {
	res, err := LoadBodies(ctx, s.Registry, s.Catalogue, s.opts.Assets, s.opts.Concurrency, s.log)
	if err != nil {
		return res, err
	}
	s.log.Info(ctx, "scene loaded",
		logging.String("scene", s.Catalogue.Name),
		logging.Int("ready", len(res.Ready)),
		logging.Int("failed", len(res.Failed)),
	)
	return res, nil
}

// Step runs one tick with the panel's current values.
func (s *Scene) Step(ctx context.Context, dt float64, input core.WalkInput) core.Snapshot {
	return s.Engine.Step(ctx, dt, input, s.Panel.Params())
}

// Drive steps the scene from every clock tick, reading input once per
// tick. input may be nil.
func (s *Scene) Drive(ctx context.Context, clock *timectrl.FrameClock, input func() core.WalkInput) {
	clock.AddListener(func(t timectrl.Tick) {
		var in core.WalkInput
		if input != nil {
			in = input()
		}
		s.Step(ctx, t.Dt, in)
	})
}

// Close detaches the scene from registry events.
func (s *Scene) Close() {
	if s.unsub != nil {
		s.unsub()
		s.unsub = nil
	}
}

func (s *Scene) onRegistryEvent(ev kb.Event) {
	if ev.Type != kb.EventReady {
		return
	}
	if ev.BodyID == s.Catalogue.Ship.Body {
		s.Engine.Enqueue(s.attachShip)
	}
	if ev.BodyID == s.Catalogue.Walker.Body {
		s.Engine.Enqueue(s.attachWalker)
	}
}

func (s *Scene) attachShip(sc *core.SimContext) {
	if sc.Ship != nil {
		return
	}
	cfg := s.opts.Ship
	if cfg.Speed <= 0 {
		cfg.Speed = s.Catalogue.Ship.Speed
	}
	exCfg := s.opts.Exhaust
	if exCfg.Scale <= 0 {
		exCfg.Scale = s.Catalogue.Ship.Scale
	}
	ex := exhaust.New(exCfg, exhaust.WithRand(rand.New(rand.NewPCG(s.opts.Rand.Uint64(), s.opts.Rand.Uint64()))))
	ship := core.NewSpaceship(cfg,
		core.WithExhaust(ex),
		core.WithShipLogger(s.log.With(logging.Component("ship"))),
	)
	if err := ship.PlaceOn(sc.Bodies, s.Catalogue.Ship.Body); err != nil {
		s.log.Warn(context.Background(), "ship not placed", logging.String("body", s.Catalogue.Ship.Body), logging.Err(err))
		return
	}
	sc.Ship = ship
	s.log.Info(context.Background(), "ship ready", logging.String("body", s.Catalogue.Ship.Body))
}

func (s *Scene) attachWalker(sc *core.SimContext) {
	if sc.Walker != nil {
		return
	}
	id := s.Catalogue.Walker.Body
	b := sc.Bodies.Body(id)
	if b == nil {
		return
	}
	cfg := s.opts.Walker
	if cfg.TurnSpeed <= 0 {
		cfg.TurnSpeed = s.Catalogue.Walker.TurnSpeed
	}
	if cfg.MoveSpeed <= 0 {
		cfg.MoveSpeed = s.Catalogue.Walker.MoveSpeed
	}
	w, err := core.NewSurfaceWalker(id, b.BodyRadius, cfg)
	if err != nil {
		s.log.Warn(context.Background(), "walker not placed", logging.String("body", id), logging.Err(err))
		return
	}
	sc.Walker = w
	s.log.Info(context.Background(), "walker ready", logging.String("body", id))
}

// BodyStatus is a body's load outcome.
type BodyStatus struct {
	ID     string
	Status kb.Status
}

// Statuses reports the load status of every catalogue body, in catalogue
// order.
func (s *Scene) Statuses() []BodyStatus {
	ids := s.Catalogue.IDs()
	out := make([]BodyStatus, 0, len(ids))
	for _, id := range ids {
		st, err := s.Registry.Status(id)
		if err != nil {
			st = kb.StatusPending
		}
		out = append(out, BodyStatus{ID: id, Status: st})
	}
	return out
}

