package model

// ActorState is the travel state of a traveling actor.
type ActorState int

const (
	// StateIdle: parented to a body's orbit pivot, co-rotating with it.
	StateIdle ActorState = iota
	// StateTraveling: parented to the world, moving toward a fixed
	// interception point.
	StateTraveling
	// StateLanded: just arrived and re-parented under the target's pivot.
	StateLanded
)

func (s ActorState) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateTraveling:
		return "traveling"
	case StateLanded:
		return "landed"
	default:
		return "unknown"
	}
}

// CameraMode is the panel's camera-follow selection, passed through to
// viewers untouched.
type CameraMode string

const (
	CameraFree   CameraMode = "free"
	CameraShip   CameraMode = "ship"
	CameraWalker CameraMode = "walker"
)

// Valid reports whether m is a known camera mode.
func (m CameraMode) Valid() bool {
	switch m {
	case CameraFree, CameraShip, CameraWalker:
		return true
	}
	return false
}
