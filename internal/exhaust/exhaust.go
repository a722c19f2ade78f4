// Package exhaust is the particle effect trailing the ship while it
// travels. Four emitters sit behind the hull; each keeps its particles in
// world space so the stream lags naturally behind a turning ship.
package exhaust

import (
	"math/rand/v2"

	"github.com/go-gl/mathgl/mgl64"

	"github.com/signalsfoundry/orrery/core"
)

// DefaultOffsets are the emitter positions in unscaled ship space.
var DefaultOffsets = []mgl64.Vec3{
	{-1.5, 1, 6.5},
	{1.5, 1, 6.5},
	{-1.5, -1, 6.5},
	{1.5, -1, 6.5},
}

// Config tunes the effect. Speeds are world units per second.
type Config struct {
	// Scale is the ship's model scale, applied to the emitter offsets.
	Scale               float64
	ParticlesPerEmitter int
	BaseSpeed           float64
	SpeedJitter         float64
	// Jitter is the half-width of the per-axis random walk per update.
	Jitter float64
	// MaxDistance is how far a particle may stray from its emitter before
	// it is respawned.
	MaxDistance float64
}

// DefaultConfig matches the ship model used by the default scene.
func DefaultConfig() Config {
	return Config{
		Scale:               0.05,
		ParticlesPerEmitter: 200,
		BaseSpeed:           0.3,
		SpeedJitter:         0.1,
		Jitter:              0.025,
		MaxDistance:         1,
	}
}

// ApplyDefaults fills zero or invalid fields from DefaultConfig.
func (c Config) ApplyDefaults() Config {
	d := DefaultConfig()
	if c.Scale <= 0 {
		c.Scale = d.Scale
	}
	if c.ParticlesPerEmitter <= 0 {
		c.ParticlesPerEmitter = d.ParticlesPerEmitter
	}
	if c.BaseSpeed <= 0 {
		c.BaseSpeed = d.BaseSpeed
	}
	if c.SpeedJitter < 0 {
		c.SpeedJitter = d.SpeedJitter
	}
	if c.Jitter < 0 {
		c.Jitter = d.Jitter
	}
	if c.MaxDistance <= 0 {
		c.MaxDistance = d.MaxDistance
	}
	return c
}

// Option customises an Exhaust.
type Option func(*Exhaust)

// WithRand sets the random source; tests use a seeded one.
func WithRand(r *rand.Rand) Option {
	return func(e *Exhaust) {
		if r != nil {
			e.rng = r
		}
	}
}

// WithOffsets replaces DefaultOffsets.
func WithOffsets(offsets ...mgl64.Vec3) Option {
	return func(e *Exhaust) { e.offsets = offsets }
}

type emitter struct {
	offset    mgl64.Vec3
	world     mgl64.Vec3
	particles []mgl64.Vec3
}

// Exhaust implements core.Exhaust and core.ParticleSource. It is driven
// from the simulation goroutine only.
type Exhaust struct {
	cfg      Config
	rng      *rand.Rand
	offsets  []mgl64.Vec3
	emitters []*emitter
	visible  bool
	primed   bool
}

var (
	_ core.Exhaust        = (*Exhaust)(nil)
	_ core.ParticleSource = (*Exhaust)(nil)
)

// New returns a hidden exhaust with one emitter per offset.
func New(cfg Config, opts ...Option) *Exhaust {
	e := &Exhaust{
		cfg:     cfg.ApplyDefaults(),
		rng:     rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64())),
		offsets: DefaultOffsets,
	}
	for _, opt := range opts {
		opt(e)
	}
	for _, off := range e.offsets {
		e.emitters = append(e.emitters, &emitter{
			offset:    off.Mul(e.cfg.Scale),
			particles: make([]mgl64.Vec3, e.cfg.ParticlesPerEmitter),
		})
	}
	return e
}

func (e *Exhaust) SetVisible(visible bool) {
	e.visible = visible
	if !visible {
		// Respawn along the stream on the next trip.
		e.primed = false
	}
}

func (e *Exhaust) Visible() bool { return e.visible }

// Update moves every particle along the ship's -Z axis by a jittered
// speed*dt, adds a small random walk, and respawns particles that strayed
// too far from their emitter.
func (e *Exhaust) Update(dt float64, ship core.Transform) {
	dir := ship.Rotation.Rotate(core.Forward.Mul(-1)).Normalize()
	for _, em := range e.emitters {
		em.world = ship.Apply(em.offset)
	}

	if !e.primed {
		for _, em := range e.emitters {
			for i := range em.particles {
				em.particles[i] = em.world.Sub(dir.Mul(e.rng.Float64() * 2 * e.cfg.MaxDistance))
			}
		}
		e.primed = true
	}

	for _, em := range e.emitters {
		for i, p := range em.particles {
			speed := (e.cfg.BaseSpeed + e.rng.Float64()*e.cfg.SpeedJitter) * dt
			p = p.Add(dir.Mul(speed)).Add(mgl64.Vec3{
				e.jitter(),
				e.jitter(),
				e.jitter(),
			})
			if p.Sub(em.world).Len() > e.cfg.MaxDistance {
				p = em.world.Sub(dir.Mul(e.rng.Float64() * e.cfg.MaxDistance))
			}
			em.particles[i] = p
		}
	}
}

func (e *Exhaust) jitter() float64 {
	return (e.rng.Float64()*2 - 1) * e.cfg.Jitter
}

// Particles returns a copy of every particle position in world space.
// It is empty until the first Update.
func (e *Exhaust) Particles() []mgl64.Vec3 {
	if !e.primed {
		return nil
	}
	out := make([]mgl64.Vec3, 0, len(e.emitters)*e.cfg.ParticlesPerEmitter)
	for _, em := range e.emitters {
		out = append(out, em.particles...)
	}
	return out
}

// EmitterPositions returns the world positions of the emitters as of the
// last Update.
func (e *Exhaust) EmitterPositions() []mgl64.Vec3 {
	out := make([]mgl64.Vec3, len(e.emitters))
	for i, em := range e.emitters {
		out[i] = em.world
	}
	return out
}

// Config returns the effective configuration.
func (e *Exhaust) Config() Config { return e.cfg }
