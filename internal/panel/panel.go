// Package panel holds the user-settable simulation parameters: the global
// orbit speed multiplier, travel speed, target, camera mode and the
// animation and launch toggles. Every control notifies subscribers when it
// changes. The simulation reads a snapshot once per tick.
package panel

import (
	"errors"
	"fmt"
	"math"
	"sort"
	"sync"

	"github.com/signalsfoundry/orrery/core"
	"github.com/signalsfoundry/orrery/model"
)

// Control ranges.
const (
	MinSpeedScale  = -10.0
	MaxSpeedScale  = 10.0
	MinTravelSpeed = 0.01
	MaxTravelSpeed = 5.0
)

// Control names reported in Change.
const (
	ControlSpeedScale  = "speed_scale"
	ControlTravelSpeed = "travel_speed"
	ControlTarget      = "target"
	ControlCamera      = "camera"
	ControlAnimation   = "animation"
	ControlLaunch      = "launch"
)

var (
	// ErrOutOfRange is returned for a scalar outside its control range.
	ErrOutOfRange = errors.New("value out of range")
	// ErrUnknownTarget is returned for a target the scene does not know.
	ErrUnknownTarget = errors.New("unknown target")
	// ErrInvalidCamera is returned for an unknown camera mode.
	ErrInvalidCamera = errors.New("invalid camera mode")
)

// Values is a snapshot of every control.
type Values struct {
	SpeedScale  float64          `json:"speed_scale"`
	TravelSpeed float64          `json:"travel_speed"`
	Target      string           `json:"target"`
	Camera      model.CameraMode `json:"camera"`
	Animation   bool             `json:"animation"`
	// Launching mirrors the launch toggle: set on request, cleared once
	// the trip ends or the launch is refused.
	Launching bool `json:"launching"`
}

// Defaults returns the values the panel starts with.
func Defaults() Values {
	return Values{
		SpeedScale:  1,
		TravelSpeed: core.DefaultShipConfig().Speed,
		Target:      "jupiter",
		Camera:      model.CameraFree,
	}
}

// Update is a partial change; nil fields are left alone.
type Update struct {
	SpeedScale  *float64          `json:"speed_scale,omitempty"`
	TravelSpeed *float64          `json:"travel_speed,omitempty"`
	Target      *string           `json:"target,omitempty"`
	Camera      *model.CameraMode `json:"camera,omitempty"`
	Animation   *bool             `json:"animation,omitempty"`
	Launch      *bool             `json:"launch,omitempty"`
}

// Change is delivered to subscribers for each control that changed.
type Change struct {
	Control string
	Values  Values
}

// Option customises a Panel.
type Option func(*Panel)

// WithTargetCheck validates targets against the scene's bodies.
func WithTargetCheck(known func(id string) bool) Option {
	return func(p *Panel) { p.known = known }
}

// WithValues overrides the starting values.
func WithValues(v Values) Option {
	return func(p *Panel) { p.v = v }
}

// Panel is safe for concurrent use.
type Panel struct {
	mu            sync.Mutex
	v             Values
	launchPending bool
	known         func(id string) bool

	subs   map[int]func(Change)
	nextID int
}

// New returns a panel holding Defaults.
func New(opts ...Option) *Panel {
	p := &Panel{
		v:    Defaults(),
		subs: make(map[int]func(Change)),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Values returns the current values.
func (p *Panel) Values() Values {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.v
}

// OnChange registers a callback for control changes. It returns an
// unsubscribe function.
func (p *Panel) OnChange(fn func(Change)) (unsubscribe func()) {
	p.mu.Lock()
	defer p.mu.Unlock()
	id := p.nextID
	p.nextID++
	p.subs[id] = fn
	return func() {
		p.mu.Lock()
		defer p.mu.Unlock()
		delete(p.subs, id)
	}
}

func (p *Panel) SetSpeedScale(v float64) error {
	return p.Apply(Update{SpeedScale: &v})
}

func (p *Panel) SetTravelSpeed(v float64) error {
	return p.Apply(Update{TravelSpeed: &v})
}

func (p *Panel) SetTarget(id string) error {
	return p.Apply(Update{Target: &id})
}

func (p *Panel) SetCamera(m model.CameraMode) error {
	return p.Apply(Update{Camera: &m})
}

func (p *Panel) SetAnimation(on bool) error {
	return p.Apply(Update{Animation: &on})
}

// RequestLaunch arms a launch for the next tick.
func (p *Panel) RequestLaunch() error {
	on := true
	return p.Apply(Update{Launch: &on})
}

// Apply validates every field of u and then applies them together; on
// error nothing changes.
func (p *Panel) Apply(u Update) error {
	if err := p.validate(u); err != nil {
		return err
	}

	p.mu.Lock()
	var changed []string
	if u.SpeedScale != nil && *u.SpeedScale != p.v.SpeedScale {
		p.v.SpeedScale = *u.SpeedScale
		changed = append(changed, ControlSpeedScale)
	}
	if u.TravelSpeed != nil && *u.TravelSpeed != p.v.TravelSpeed {
		p.v.TravelSpeed = *u.TravelSpeed
		changed = append(changed, ControlTravelSpeed)
	}
	if u.Target != nil && *u.Target != p.v.Target {
		p.v.Target = *u.Target
		changed = append(changed, ControlTarget)
	}
	if u.Camera != nil && *u.Camera != p.v.Camera {
		p.v.Camera = *u.Camera
		changed = append(changed, ControlCamera)
	}
	if u.Animation != nil && *u.Animation != p.v.Animation {
		p.v.Animation = *u.Animation
		changed = append(changed, ControlAnimation)
	}
	if u.Launch != nil {
		// Re-requesting while already launching is a no-op; clearing the
		// toggle cancels a launch that has not been consumed yet.
		if *u.Launch && !p.v.Launching {
			p.launchPending = true
			p.v.Launching = true
			changed = append(changed, ControlLaunch)
		} else if !*u.Launch && p.v.Launching {
			p.launchPending = false
			p.v.Launching = false
			changed = append(changed, ControlLaunch)
		}
	}
	values := p.v
	subs := p.subscribersLocked()
	p.mu.Unlock()

	for _, c := range changed {
		for _, fn := range subs {
			fn(Change{Control: c, Values: values})
		}
	}
	return nil
}

func (p *Panel) validate(u Update) error {
	if u.SpeedScale != nil {
		v := *u.SpeedScale
		if math.IsNaN(v) || v < MinSpeedScale || v > MaxSpeedScale {
			return fmt.Errorf("%w: %s %v not in [%v, %v]", ErrOutOfRange, ControlSpeedScale, v, MinSpeedScale, MaxSpeedScale)
		}
	}
	if u.TravelSpeed != nil {
		v := *u.TravelSpeed
		if math.IsNaN(v) || v < MinTravelSpeed || v > MaxTravelSpeed {
			return fmt.Errorf("%w: %s %v not in [%v, %v]", ErrOutOfRange, ControlTravelSpeed, v, MinTravelSpeed, MaxTravelSpeed)
		}
	}
	if u.Target != nil {
		if *u.Target == "" || (p.known != nil && !p.known(*u.Target)) {
			return fmt.Errorf("%w: %q", ErrUnknownTarget, *u.Target)
		}
	}
	if u.Camera != nil && !u.Camera.Valid() {
		return fmt.Errorf("%w: %q", ErrInvalidCamera, *u.Camera)
	}
	return nil
}

// Params snapshots the panel for one tick, consuming any pending launch.
func (p *Panel) Params() core.Params {
	p.mu.Lock()
	defer p.mu.Unlock()
	launch := p.launchPending
	p.launchPending = false
	return core.Params{
		SpeedScale:  p.v.SpeedScale,
		TravelSpeed: p.v.TravelSpeed,
		Target:      p.v.Target,
		Camera:      p.v.Camera,
		Animation:   p.v.Animation,
		Launch:      launch,
	}
}

// Observe resets the launch toggle when a trip ends or a launch is
// refused. Wire it as an engine listener.
func (p *Panel) Observe(snap core.Snapshot) {
	for _, ev := range snap.Events {
		switch ev.Kind {
		case core.EventLanded, core.EventNoIntercept, core.EventLaunchRejected:
			off := false
			_ = p.Apply(Update{Launch: &off})
			return
		}
	}
}

func (p *Panel) subscribersLocked() []func(Change) {
	ids := make([]int, 0, len(p.subs))
	for id := range p.subs {
		ids = append(ids, id)
	}
	sort.Ints(ids)
	subs := make([]func(Change), 0, len(ids))
	for _, id := range ids {
		subs = append(subs, p.subs[id])
	}
	return subs
}
