// Package tui is an interactive terminal front end for a scene: a
// top-down viewer plus keyboard control of the walker and the panel.
package tui

import (
	"context"
	"errors"
	"math"

	"github.com/gdamore/tcell/v2"

	"github.com/signalsfoundry/orrery/core"
	"github.com/signalsfoundry/orrery/internal/logging"
	"github.com/signalsfoundry/orrery/internal/panel"
	"github.com/signalsfoundry/orrery/internal/scene"
	"github.com/signalsfoundry/orrery/model"
	"github.com/signalsfoundry/orrery/timectrl"
)

// Panel step sizes for the speed keys.
const (
	speedStep       = 0.5
	travelSpeedStep = 1.25
)

// viewMargin pads the outermost orbit in free camera mode.
const viewMargin = 1.1

// Help lists the key bindings.
const Help = "w/a/s/d or arrows: walk  l: launch  t: target  space: animation  +/-: orbit speed  [/]: travel speed  c: camera  q: quit"

var cameraCycle = []model.CameraMode{model.CameraFree, model.CameraShip, model.CameraWalker}

// App binds a screen to a scene.
type App struct {
	screen  tcell.Screen
	scene   *scene.Scene
	viewer  *Viewer
	latch   *Latch
	log     logging.Logger
	targets []string
}

// Option customises an App.
type Option func(*App)

// WithLogger sets the app logger. Use a file-backed logger; anything
// written to the terminal corrupts the view.
func WithLogger(l logging.Logger) Option {
	return func(a *App) {
		if l != nil {
			a.log = l
		}
	}
}

// WithLatch replaces the default key latch.
func WithLatch(l *Latch) Option {
	return func(a *App) {
		if l != nil {
			a.latch = l
		}
	}
}

// New returns an app drawing sc onto screen. The screen must already be
// initialised.
func New(screen tcell.Screen, sc *scene.Scene, opts ...Option) *App {
	extent := 0.0
	targets := make([]string, 0, len(sc.Catalogue.Bodies))
	for _, b := range sc.Catalogue.Bodies {
		extent = math.Max(extent, b.Distance+b.Scale)
		targets = append(targets, scene.BodyID(b.Name))
	}
	a := &App{
		screen:  screen,
		scene:   sc,
		viewer:  NewViewer(screen, sc.Stars, extent*viewMargin),
		latch:   NewLatch(DefaultHold),
		log:     logging.Noop(),
		targets: targets,
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Viewer returns the app's viewer.
func (a *App) Viewer() *Viewer { return a.viewer }

// Input returns the walker input currently held on the keyboard.
func (a *App) Input() core.WalkInput { return a.latch.Input() }

// HandleKey applies one key press. It reports whether the app should quit.
func (a *App) HandleKey(ev *tcell.EventKey) bool {
	switch ev.Key() {
	case tcell.KeyEscape, tcell.KeyCtrlC:
		return true
	}
	if a.latch.Press(ev) {
		return false
	}
	if ev.Key() != tcell.KeyRune {
		return false
	}

	p := a.scene.Panel
	v := p.Values()
	var err error
	switch ev.Rune() {
	case 'q', 'Q':
		return true
	case 'l', 'L':
		err = p.RequestLaunch()
	case 't', 'T':
		err = p.SetTarget(a.nextTarget(v.Target))
	case ' ':
		err = p.SetAnimation(!v.Animation)
	case '+', '=':
		err = p.SetSpeedScale(math.Min(v.SpeedScale+speedStep, panel.MaxSpeedScale))
	case '-', '_':
		err = p.SetSpeedScale(math.Max(v.SpeedScale-speedStep, panel.MinSpeedScale))
	case ']':
		err = p.SetTravelSpeed(math.Min(v.TravelSpeed*travelSpeedStep, panel.MaxTravelSpeed))
	case '[':
		err = p.SetTravelSpeed(math.Max(v.TravelSpeed/travelSpeedStep, panel.MinTravelSpeed))
	case 'c', 'C':
		err = p.SetCamera(nextCamera(v.Camera))
	}
	if err != nil {
		a.log.Debug(context.Background(), "key ignored", logging.String("key", ev.Name()), logging.Err(err))
	}
	return false
}

func (a *App) nextTarget(current string) string {
	if len(a.targets) == 0 {
		return current
	}
	for i, id := range a.targets {
		if id == current {
			return a.targets[(i+1)%len(a.targets)]
		}
	}
	return a.targets[0]
}

func nextCamera(m model.CameraMode) model.CameraMode {
	for i, c := range cameraCycle {
		if c == m {
			return cameraCycle[(i+1)%len(cameraCycle)]
		}
	}
	return model.CameraFree
}

// Run drives the scene from clock, redrawing after every tick, until ctx
// is cancelled or the user quits. Quitting is not an error.
func (a *App) Run(ctx context.Context, clock *timectrl.FrameClock) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	a.scene.Engine.AddListener(a.viewer.Draw)
	a.scene.Drive(ctx, clock, a.latch.Input)

	go a.pollEvents(ctx, cancel)

	a.log.Info(ctx, "terminal viewer started", logging.Duration("interval", clock.Interval), logging.String("mode", clock.Mode.String()))
	err := clock.Run(ctx, 0)
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

func (a *App) pollEvents(ctx context.Context, cancel context.CancelFunc) {
	for {
		ev := a.screen.PollEvent()
		if ev == nil {
			return
		}
		switch ev := ev.(type) {
		case *tcell.EventKey:
			if a.HandleKey(ev) {
				cancel()
				return
			}
		case *tcell.EventResize:
			a.screen.Sync()
		}
		if ctx.Err() != nil {
			return
		}
	}
}
