package kb

import (
	"errors"
	"fmt"
	"math"
	"sort"
	"sync"

	"github.com/signalsfoundry/orrery/model"
)

var (
	// ErrBodyExists is returned when a body ID is registered twice.
	ErrBodyExists = errors.New("body already registered")
	// ErrBodyNotFound is returned for an ID that was never registered or
	// expected.
	ErrBodyNotFound = errors.New("body not found")
	// ErrInvalidBody is returned for a body that fails validation.
	ErrInvalidBody = errors.New("invalid body")
)

// Status is the load state of a body.
type Status int

const (
	StatusPending Status = iota
	StatusReady
	StatusFailed
)

func (s Status) String() string {
	switch s {
	case StatusPending:
		return "pending"
	case StatusReady:
		return "ready"
	case StatusFailed:
		return "failed"
	default:
		return fmt.Sprintf("Status(%d)", int(s))
	}
}

// EventType indicates what kind of change happened in the registry.
type EventType int

const (
	EventRegistered EventType = iota
	EventReady
	EventFailed
	// EventSettled fires once, the first time every known body is either
	// ready or failed.
	EventSettled
)

// Event is emitted to subscribers when something interesting happens.
type Event struct {
	Type   EventType
	BodyID string
	Err    error
}

type entry struct {
	body   *model.CelestialBody
	status Status
	err    error
}

// Registry is an in-memory, thread-safe store of celestial bodies and
// their asynchronous load state. Loaders register and resolve bodies from
// any goroutine; the simulation reads ready bodies once per tick.
type Registry struct {
	mu sync.RWMutex

	entries map[string]*entry

	settled     bool
	settledOnce sync.Once
	settledCh   chan struct{}

	subs   map[int]func(Event)
	nextID int
}

// NewRegistry constructs an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		entries:   make(map[string]*entry),
		settledCh: make(chan struct{}),
		subs:      make(map[int]func(Event)),
	}
}

// Validate checks the static invariants of a body.
func Validate(b *model.CelestialBody) error {
	switch {
	case b == nil:
		return fmt.Errorf("%w: nil body", ErrInvalidBody)
	case b.ID == "":
		return fmt.Errorf("%w: empty ID", ErrInvalidBody)
	case !(b.OrbitRadius >= 0) || math.IsInf(b.OrbitRadius, 0):
		return fmt.Errorf("%w: %s orbit radius %v", ErrInvalidBody, b.ID, b.OrbitRadius)
	case !(b.BodyRadius > 0) || math.IsInf(b.BodyRadius, 0):
		return fmt.Errorf("%w: %s body radius %v", ErrInvalidBody, b.ID, b.BodyRadius)
	case math.IsNaN(b.AngularSpeed) || math.IsInf(b.AngularSpeed, 0):
		return fmt.Errorf("%w: %s angular speed %v", ErrInvalidBody, b.ID, b.AngularSpeed)
	}
	return nil
}

// Expect declares IDs that will be registered later. Settled stays false
// until each of them is ready or failed. Settling is a one-way latch, so
// IDs expected afterwards load without reopening it.
func (r *Registry) Expect(ids ...string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, id := range ids {
		if _, ok := r.entries[id]; !ok {
			r.entries[id] = &entry{status: StatusPending}
		}
	}
}

// AddBody registers a pending body. It returns ErrBodyExists if the ID is
// already registered.
func (r *Registry) AddBody(b *model.CelestialBody) error {
	if err := Validate(b); err != nil {
		return err
	}
	r.mu.Lock()
	e, ok := r.entries[b.ID]
	if ok && e.body != nil {
		r.mu.Unlock()
		return fmt.Errorf("%w: %q", ErrBodyExists, b.ID)
	}
	if !ok {
		e = &entry{status: StatusPending}
		r.entries[b.ID] = e
	}
	// store pointer so that the orbit model can update in place
	e.body = b
	subs := r.subscribersLocked()
	r.mu.Unlock()

	notify(subs, Event{Type: EventRegistered, BodyID: b.ID})
	return nil
}

// MarkReady flags a registered body as loaded.
func (r *Registry) MarkReady(id string) error {
	r.mu.Lock()
	e, ok := r.entries[id]
	if !ok || e.body == nil {
		r.mu.Unlock()
		return fmt.Errorf("%w: %q", ErrBodyNotFound, id)
	}
	e.status = StatusReady
	e.err = nil
	events := []Event{{Type: EventReady, BodyID: id}}
	events = append(events, r.checkSettledLocked()...)
	subs := r.subscribersLocked()
	r.mu.Unlock()

	notify(subs, events...)
	return nil
}

// MarkFailed records that a body will never become ready. It accepts IDs
// that were only expected, since a load can fail before registration.
func (r *Registry) MarkFailed(id string, cause error) error {
	r.mu.Lock()
	e, ok := r.entries[id]
	if !ok {
		r.mu.Unlock()
		return fmt.Errorf("%w: %q", ErrBodyNotFound, id)
	}
	e.status = StatusFailed
	e.err = cause
	events := []Event{{Type: EventFailed, BodyID: id, Err: cause}}
	events = append(events, r.checkSettledLocked()...)
	subs := r.subscribersLocked()
	r.mu.Unlock()

	notify(subs, events...)
	return nil
}

func (r *Registry) checkSettledLocked() []Event {
	if r.settled || !r.settledLocked() {
		return nil
	}
	r.settled = true
	r.settledOnce.Do(func() { close(r.settledCh) })
	return []Event{{Type: EventSettled}}
}

func (r *Registry) settledLocked() bool {
	if len(r.entries) == 0 {
		return false
	}
	for _, e := range r.entries {
		if e.status == StatusPending {
			return false
		}
	}
	return true
}

// Settled reports whether the registry has settled: every body known at
// that moment was ready or failed. It agrees with SettledCh.
func (r *Registry) Settled() bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.settled
}

// SettledCh is closed the first time the registry settles.
func (r *Registry) SettledCh() <-chan struct{} {
	return r.settledCh
}

// AllReady reports whether every known body loaded successfully.
func (r *Registry) AllReady() bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if len(r.entries) == 0 {
		return false
	}
	for _, e := range r.entries {
		if e.status != StatusReady {
			return false
		}
	}
	return true
}

// Ready reports whether the body with the given ID is loaded.
func (r *Registry) Ready(id string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, ok := r.entries[id]
	return ok && e.body != nil && e.status == StatusReady
}

// Status returns the load state of id and the failure cause, if any.
func (r *Registry) Status(id string) (Status, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, ok := r.entries[id]
	if !ok {
		return StatusPending, fmt.Errorf("%w: %q", ErrBodyNotFound, id)
	}
	return e.status, e.err
}

// Body returns the registered body with the given ID, or nil if not found.
// Pending bodies are returned too so that frames can still be resolved.
func (r *Registry) Body(id string) *model.CelestialBody {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if e, ok := r.entries[id]; ok {
		return e.body
	}
	return nil
}

// ReadyBodies returns the loaded bodies ordered by orbit radius, then ID.
func (r *Registry) ReadyBodies() []*model.CelestialBody {
	return r.list(func(e *entry) bool { return e.status == StatusReady })
}

// ListBodies returns every registered body ordered by orbit radius, then ID.
func (r *Registry) ListBodies() []*model.CelestialBody {
	return r.list(func(*entry) bool { return true })
}

func (r *Registry) list(keep func(*entry) bool) []*model.CelestialBody {
	r.mu.RLock()
	res := make([]*model.CelestialBody, 0, len(r.entries))
	for _, e := range r.entries {
		if e.body != nil && keep(e) {
			res = append(res, e.body)
		}
	}
	r.mu.RUnlock()

	sort.Slice(res, func(i, j int) bool {
		if res[i].OrbitRadius != res[j].OrbitRadius {
			return res[i].OrbitRadius < res[j].OrbitRadius
		}
		return res[i].ID < res[j].ID
	})
	return res
}

// Subscribe registers a callback for registry events. It returns an
// unsubscribe function that is safe to call more than once.
func (r *Registry) Subscribe(fn func(Event)) (unsubscribe func()) {
	r.mu.Lock()
	defer r.mu.Unlock()
	id := r.nextID
	r.nextID++
	r.subs[id] = fn

	return func() {
		r.mu.Lock()
		defer r.mu.Unlock()
		delete(r.subs, id)
	}
}

func (r *Registry) subscribersLocked() []func(Event) {
	ids := make([]int, 0, len(r.subs))
	for id := range r.subs {
		ids = append(ids, id)
	}
	sort.Ints(ids)
	subs := make([]func(Event), 0, len(ids))
	for _, id := range ids {
		subs = append(subs, r.subs[id])
	}
	return subs
}

// notify runs outside the lock to avoid deadlocks when a subscriber reads
// the registry.
func notify(subs []func(Event), events ...Event) {
	for _, ev := range events {
		for _, sub := range subs {
			sub(ev)
		}
	}
}
