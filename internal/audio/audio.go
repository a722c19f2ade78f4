// Package audio plays short tones for simulation events: a launch, a
// landing and a refused or infeasible launch.
package audio

import (
	"context"
	"fmt"
	"math"
	"sync"
	"time"

	"github.com/gopxl/beep"
	"github.com/gopxl/beep/effects"
	"github.com/gopxl/beep/generators"
	"github.com/gopxl/beep/speaker"

	"github.com/signalsfoundry/orrery/core"
	"github.com/signalsfoundry/orrery/internal/logging"
)

// DefaultSampleRate is the speaker sample rate.
const DefaultSampleRate = beep.SampleRate(44100)

// Note is one tone of a cue. A zero frequency is a rest.
type Note struct {
	Freq     float64
	Duration time.Duration
}

// Cue is a named sequence of notes.
type Cue struct {
	Name   string
	Notes  []Note
	Volume float64
}

// Duration is the total length of the cue.
func (c Cue) Duration() time.Duration {
	var d time.Duration
	for _, n := range c.Notes {
		d += n.Duration
	}
	return d
}

var cues = map[core.EventKind]Cue{
	core.EventLaunched: {
		Name:   "launch",
		Notes:  []Note{{440, 80 * time.Millisecond}, {660, 120 * time.Millisecond}},
		Volume: 0.4,
	},
	core.EventLanded: {
		Name:   "landing",
		Notes:  []Note{{880, 80 * time.Millisecond}, {0, 40 * time.Millisecond}, {660, 80 * time.Millisecond}, {440, 160 * time.Millisecond}},
		Volume: 0.4,
	},
	core.EventNoIntercept: {
		Name:   "no-intercept",
		Notes:  []Note{{220, 150 * time.Millisecond}, {0, 50 * time.Millisecond}, {220, 150 * time.Millisecond}},
		Volume: 0.5,
	},
	core.EventLaunchRejected: {
		Name:   "rejected",
		Notes:  []Note{{180, 120 * time.Millisecond}},
		Volume: 0.5,
	},
}

// CueFor returns the cue played for an event kind. Events without a cue
// report false.
func CueFor(kind core.EventKind) (Cue, bool) {
	c, ok := cues[kind]
	return c, ok
}

// Streamer renders a cue at sample rate sr.
func Streamer(c Cue, sr beep.SampleRate) (beep.Streamer, error) {
	parts := make([]beep.Streamer, 0, len(c.Notes))
	for _, n := range c.Notes {
		samples := sr.N(n.Duration)
		if samples <= 0 {
			continue
		}
		if n.Freq <= 0 {
			parts = append(parts, beep.Silence(samples))
			continue
		}
		tone, err := generators.SineTone(sr, n.Freq)
		if err != nil {
			return nil, fmt.Errorf("cue %s: %w", c.Name, err)
		}
		parts = append(parts, beep.Take(samples, tone))
	}
	return volume(beep.Seq(parts...), c.Volume), nil
}

// volume scales s linearly; zero or less is silent.
func volume(s beep.Streamer, v float64) beep.Streamer {
	if v <= 0 {
		return &effects.Volume{Streamer: s, Base: 2, Silent: true}
	}
	return &effects.Volume{Streamer: s, Base: 2, Volume: math.Log2(v)}
}

// Player plays cues without blocking.
type Player interface {
	Play(c Cue)
}

// Noop discards every cue.
type Noop struct{}

// Play does nothing.
func (Noop) Play(Cue) {}

// Speaker plays cues on the system audio device.
type Speaker struct {
	mu   sync.Mutex
	sr   beep.SampleRate
	log  logging.Logger
	open bool
}

// NewSpeaker initialises the audio device at sample rate sr with a 100ms
// buffer. A zero rate uses DefaultSampleRate.
func NewSpeaker(sr beep.SampleRate, log logging.Logger) (*Speaker, error) {
	if sr <= 0 {
		sr = DefaultSampleRate
	}
	if log == nil {
		log = logging.Noop()
	}
	if err := speaker.Init(sr, sr.N(time.Second/10)); err != nil {
		return nil, fmt.Errorf("init speaker: %w", err)
	}
	return &Speaker{sr: sr, log: log, open: true}, nil
}

// Play queues c on the speaker.
func (s *Speaker) Play(c Cue) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.open {
		return
	}
	st, err := Streamer(c, s.sr)
	if err != nil {
		s.log.Warn(context.Background(), "cue not played", logging.String("cue", c.Name), logging.Err(err))
		return
	}
	speaker.Play(st)
}

// Close releases the audio device. Later cues are dropped.
func (s *Speaker) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.open {
		speaker.Close()
		s.open = false
	}
}

// Listener returns an engine listener that plays the cue for every event
// in a snapshot.
func Listener(p Player) func(core.Snapshot) {
	if p == nil {
		p = Noop{}
	}
	return func(s core.Snapshot) {
		for _, ev := range s.Events {
			if c, ok := CueFor(ev.Kind); ok {
				p.Play(c)
			}
		}
	}
}
