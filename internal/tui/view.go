package tui

import (
	"fmt"
	"math"
	"strings"
	"sync"

	"github.com/gdamore/tcell/v2"
	"github.com/go-gl/mathgl/mgl64"
	"github.com/lucasb-eyer/go-colorful"

	"github.com/signalsfoundry/orrery/core"
	"github.com/signalsfoundry/orrery/internal/scene"
	"github.com/signalsfoundry/orrery/model"
)

// followZoom narrows the view when the camera follows an actor.
const followZoom = 6.0

// orbitSamples is the number of points drawn per orbit ring.
const orbitSamples = 96

var (
	styleOrbit    = tcell.StyleDefault.Foreground(tcell.NewRGBColor(60, 60, 80))
	styleParticle = tcell.StyleDefault.Foreground(tcell.NewRGBColor(255, 140, 0))
	styleShip     = tcell.StyleDefault.Foreground(tcell.NewRGBColor(255, 255, 255)).Bold(true)
	styleWalker   = tcell.StyleDefault.Foreground(tcell.NewRGBColor(80, 255, 120)).Bold(true)
	styleStatus   = tcell.StyleDefault.Foreground(tcell.NewRGBColor(200, 200, 200))
	styleEvent    = tcell.StyleDefault.Foreground(tcell.NewRGBColor(255, 220, 120))
)

// Viewer draws snapshots as a top-down projection onto the XZ plane,
// with +X to the right and +Z down the screen. The last row is a status
// line.
type Viewer struct {
	screen tcell.Screen
	stars  []scene.Star
	extent float64

	mu        sync.Mutex
	styles    map[string]tcell.Style
	lastEvent string
}

// NewViewer returns a viewer showing extent world units either side of
// the camera centre in free mode.
func NewViewer(screen tcell.Screen, stars []scene.Star, extent float64) *Viewer {
	if extent <= 0 {
		extent = 1
	}
	return &Viewer{
		screen: screen,
		stars:  stars,
		extent: extent,
		styles: make(map[string]tcell.Style),
	}
}

// projection maps world XZ coordinates to screen cells.
type projection struct {
	centre mgl64.Vec3
	cx, cy int
	sx, sy float64
	w, h   int
}

func (p projection) cell(pos mgl64.Vec3) (int, int, bool) {
	x := p.cx + int(math.Round((pos.X()-p.centre.X())*p.sx))
	y := p.cy + int(math.Round((pos.Z()-p.centre.Z())*p.sy))
	if x < 0 || y < 0 || x >= p.w || y >= p.h {
		return 0, 0, false
	}
	return x, y, true
}

func (v *Viewer) projection(s core.Snapshot) projection {
	w, h := v.screen.Size()
	mapH := h - 1
	if mapH < 1 {
		mapH = 1
	}
	extent := v.extent
	var centre mgl64.Vec3
	switch s.Camera {
	case model.CameraShip:
		if s.Ship != nil {
			centre = s.Ship.Transform.Position
			extent /= followZoom
		}
	case model.CameraWalker:
		if s.Walker != nil {
			centre = s.Walker.Transform.Position
			extent /= followZoom
		}
	}
	// Terminal cells are roughly twice as tall as they are wide.
	sy := float64(mapH) / 2 / extent
	sx := 2 * sy
	if maxSX := float64(w) / 2 / extent; sx > maxSX {
		sx = maxSX
		sy = sx / 2
	}
	return projection{centre: centre, cx: w / 2, cy: mapH / 2, sx: sx, sy: sy, w: w, h: mapH}
}

// Draw renders one snapshot and shows it.
func (v *Viewer) Draw(s core.Snapshot) {
	v.mu.Lock()
	defer v.mu.Unlock()

	if n := len(s.Events); n > 0 {
		v.lastEvent = describeEvent(s.Events[n-1])
	}

	v.screen.Clear()
	p := v.projection(s)

	for _, st := range v.stars {
		if x, y, ok := p.cell(st.Position); ok {
			v.screen.SetContent(x, y, '.', nil, v.style(st.Hex()))
		}
	}
	for _, b := range s.Bodies {
		if b.OrbitRadius <= 0 {
			continue
		}
		for i := 0; i < orbitSamples; i++ {
			pos := core.OrbitalPosition(b.OrbitRadius, 2*math.Pi*float64(i)/orbitSamples)
			if x, y, ok := p.cell(pos); ok {
				v.screen.SetContent(x, y, '·', nil, styleOrbit)
			}
		}
	}
	for _, pt := range s.Particles {
		if x, y, ok := p.cell(pt); ok {
			v.screen.SetContent(x, y, '*', nil, styleParticle)
		}
	}
	for _, b := range s.Bodies {
		if x, y, ok := p.cell(b.Transform.Position); ok {
			v.screen.SetContent(x, y, bodyGlyph(b), nil, v.style(b.Color))
		}
	}
	if s.Walker != nil {
		if x, y, ok := p.cell(s.Walker.Transform.Position); ok {
			v.screen.SetContent(x, y, '@', nil, styleWalker)
		}
	}
	if s.Ship != nil {
		if x, y, ok := p.cell(s.Ship.Transform.Position); ok {
			v.screen.SetContent(x, y, '^', nil, styleShip)
		}
	}

	v.drawStatus(s, p.h)
	v.screen.Show()
}

func (v *Viewer) drawStatus(s core.Snapshot, row int) {
	w, _ := v.screen.Size()
	status := StatusLine(s)
	x := 0
	for _, r := range status {
		if x >= w {
			return
		}
		v.screen.SetContent(x, row, r, nil, styleStatus)
		x++
	}
	if v.lastEvent == "" {
		return
	}
	x++
	for _, r := range v.lastEvent {
		if x >= w {
			return
		}
		v.screen.SetContent(x, row, r, nil, styleEvent)
		x++
	}
}

// StatusLine summarises a snapshot in one line.
func StatusLine(s core.Snapshot) string {
	var b strings.Builder
	fmt.Fprintf(&b, "#%d x%.2f", s.Index, s.SpeedScale)
	if s.Animation {
		b.WriteString(" anim")
	} else {
		b.WriteString(" paused")
	}
	fmt.Fprintf(&b, " cam=%s", s.Camera)
	if s.Ship != nil {
		fmt.Fprintf(&b, " ship=%s", s.Ship.State)
		switch {
		case s.Ship.Target != "":
			fmt.Fprintf(&b, "->%s", s.Ship.Target)
		case s.Ship.Body != "":
			fmt.Fprintf(&b, "@%s", s.Ship.Body)
		}
	}
	if !s.Settled {
		b.WriteString(" loading")
	}
	return b.String()
}

func describeEvent(ev core.Event) string {
	switch ev.Kind {
	case core.EventLaunched:
		return fmt.Sprintf("launched to %s (eta %.0f)", ev.Target, ev.ETA)
	case core.EventLanded:
		return "landed on " + ev.Body
	case core.EventNoIntercept:
		return "no intercept for " + ev.Target
	case core.EventLaunchRejected:
		return "launch rejected: " + ev.Detail
	case core.EventAnimation:
		return "animation " + ev.Detail
	}
	return string(ev.Kind)
}

func bodyGlyph(b core.BodyFrame) rune {
	name := b.Name
	if name == "" {
		name = b.ID
	}
	if name == "" {
		return 'o'
	}
	if b.OrbitRadius <= 0 {
		return 'O'
	}
	return []rune(strings.ToUpper(name))[0]
}

// style returns a cached foreground style for a hex colour, white when the
// colour does not parse.
func (v *Viewer) style(hex string) tcell.Style {
	if st, ok := v.styles[hex]; ok {
		return st
	}
	st := tcell.StyleDefault.Foreground(tcell.ColorWhite)
	if c, err := colorful.Hex(hex); err == nil {
		st = tcell.StyleDefault.Foreground(tcellColor(c))
	}
	v.styles[hex] = st
	return st
}

func tcellColor(c colorful.Color) tcell.Color {
	r, g, b := c.Clamped().RGB255()
	return tcell.NewRGBColor(int32(r), int32(g), int32(b))
}
