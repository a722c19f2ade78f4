package core

import (
	"errors"

	"github.com/signalsfoundry/orrery/internal/logging"
	"github.com/signalsfoundry/orrery/model"
)

var (
	// ErrNotReady is returned when an entity has not finished loading.
	ErrNotReady = errors.New("entity not ready")
	// ErrAlreadyTraveling is returned for a launch while a trip is active.
	ErrAlreadyTraveling = errors.New("actor already traveling")
	// ErrSameBody is returned for a launch toward the body the actor is on.
	ErrSameBody = errors.New("target is the current body")
	// ErrInvalidRadius is returned for a non-positive sphere radius.
	ErrInvalidRadius = errors.New("invalid sphere radius")
)

// Bodies is the registry view the simulation needs. Implementations must be
// safe for concurrent registration; entities are only mutated from the
// simulation goroutine.
type Bodies interface {
	BodyLookup
	Ready(id string) bool
	ReadyBodies() []*model.CelestialBody
	// Settled reports whether every expected body has either loaded or
	// failed. Travel stays gated until then.
	Settled() bool
}

// Params is the once-per-tick snapshot of user-settable values.
type Params struct {
	SpeedScale  float64
	TravelSpeed float64
	Target      string
	Camera      model.CameraMode
	Animation   bool
	// Launch is an edge: true only on the tick a launch was requested.
	Launch bool
}

// SimContext is everything a tick needs. It is owned by the scene
// assembly and handed to the engine; nothing in the core keeps globals.
type SimContext struct {
	Bodies Bodies
	Orbits *OrbitModel
	// Ship and Walker stay nil until their assets are loaded.
	Ship   *Spaceship
	Walker *SurfaceWalker
	Params Params
	Log    logging.Logger
}

// NewSimContext returns a context with a fresh orbit model.
func NewSimContext(bodies Bodies, log logging.Logger) *SimContext {
	if log == nil {
		log = logging.Noop()
	}
	return &SimContext{
		Bodies: bodies,
		Orbits: NewOrbitModel(),
		Log:    log,
	}
}

func (sc *SimContext) logger() logging.Logger {
	if sc == nil || sc.Log == nil {
		return logging.Noop()
	}
	return sc.Log
}
