package core

import (
	"errors"
	"fmt"

	"github.com/signalsfoundry/orrery/model"
)

// ErrUnknownFrame is returned when a frame refers to a body that is not
// registered.
var ErrUnknownFrame = errors.New("unknown reference frame")

// BodyLookup resolves a body by ID, returning nil when absent.
type BodyLookup interface {
	Body(id string) *model.CelestialBody
}

// FrameTransform returns the world transform of frame f.
func FrameTransform(f model.Frame, bodies BodyLookup) (Transform, error) {
	if f.Kind == model.FrameWorld {
		return Identity(), nil
	}
	var b *model.CelestialBody
	if bodies != nil {
		b = bodies.Body(f.BodyID)
	}
	if b == nil {
		return Transform{}, fmt.Errorf("%w: %s", ErrUnknownFrame, f)
	}
	switch f.Kind {
	case model.FrameOrbit:
		return PivotTransform(b), nil
	case model.FrameBody:
		return BodyTransform(b), nil
	default:
		return Transform{}, fmt.Errorf("%w: %s", ErrUnknownFrame, f)
	}
}

// ToWorld maps local, expressed in frame f, into world space.
func ToWorld(local Transform, f model.Frame, bodies BodyLookup) (Transform, error) {
	parent, err := FrameTransform(f, bodies)
	if err != nil {
		return Transform{}, err
	}
	return parent.Compose(local), nil
}

// Reparent re-expresses local from frame `from` into frame `to` so that the
// world transform is unchanged. Both frames are resolved against the same
// body state, so the hand-off happens within a single tick.
func Reparent(local Transform, from, to model.Frame, bodies BodyLookup) (Transform, error) {
	world, err := ToWorld(local, from, bodies)
	if err != nil {
		return Transform{}, err
	}
	parent, err := FrameTransform(to, bodies)
	if err != nil {
		return Transform{}, err
	}
	return parent.Inverse().Compose(world), nil
}
