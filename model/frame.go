package model

import "fmt"

// FrameKind selects the reference frame an actor transform is expressed in.
type FrameKind int

const (
	// FrameWorld is the scene root.
	FrameWorld FrameKind = iota
	// FrameOrbit is the orbit pivot of a body: a rotation about +Y through
	// the centre by the body's current angle.
	FrameOrbit
	// FrameBody is the body's own local frame (pivot followed by the
	// translation out to the orbit radius), centred on the body.
	FrameBody
)

func (k FrameKind) String() string {
	switch k {
	case FrameWorld:
		return "world"
	case FrameOrbit:
		return "orbit"
	case FrameBody:
		return "body"
	default:
		return fmt.Sprintf("FrameKind(%d)", int(k))
	}
}

// Frame is the parent of an actor. Exactly one parent exists at any time.
type Frame struct {
	Kind   FrameKind
	BodyID string
}

// WorldFrame returns the scene root frame.
func WorldFrame() Frame { return Frame{Kind: FrameWorld} }

// OrbitFrameOf returns the orbit pivot frame of body id.
func OrbitFrameOf(id string) Frame { return Frame{Kind: FrameOrbit, BodyID: id} }

// BodyFrameOf returns the local frame centred on body id.
func BodyFrameOf(id string) Frame { return Frame{Kind: FrameBody, BodyID: id} }

func (f Frame) String() string {
	if f.Kind == FrameWorld {
		return f.Kind.String()
	}
	return f.Kind.String() + ":" + f.BodyID
}
