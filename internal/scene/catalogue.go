// Package scene assembles a runnable simulation: it reads the body
// catalogue, loads body assets concurrently into the registry, and wires
// the engine, panel and actors together.
package scene

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strings"

	"github.com/lucasb-eyer/go-colorful"
	"github.com/pelletier/go-toml/v2"
	"gopkg.in/yaml.v3"

	"github.com/signalsfoundry/orrery/core"
	"github.com/signalsfoundry/orrery/model"
)

var (
	// ErrInvalidCatalogue is returned when a catalogue fails validation.
	ErrInvalidCatalogue = errors.New("invalid scene catalogue")
	// ErrUnsupportedFormat is returned for an unknown catalogue format.
	ErrUnsupportedFormat = errors.New("unsupported catalogue format")
)

// ShipSpec places the ship at scene start.
type ShipSpec struct {
	Body  string  `json:"body" yaml:"body" toml:"body"`
	Speed float64 `json:"speed" yaml:"speed" toml:"speed"`
	Scale float64 `json:"scale" yaml:"scale" toml:"scale"`
}

// WalkerSpec places the surface walker at scene start.
type WalkerSpec struct {
	Body      string  `json:"body" yaml:"body" toml:"body"`
	TurnSpeed float64 `json:"turn_speed" yaml:"turn_speed" toml:"turn_speed"`
	MoveSpeed float64 `json:"move_speed" yaml:"move_speed" toml:"move_speed"`
}

// StarfieldSpec describes the background stars.
type StarfieldSpec struct {
	Count   int      `json:"count" yaml:"count" toml:"count"`
	Extent  float64  `json:"extent" yaml:"extent" toml:"extent"`
	Palette []string `json:"palette" yaml:"palette" toml:"palette"`
	Seed    uint64   `json:"seed" yaml:"seed" toml:"seed"`
}

// Catalogue is the static description of a scene.
type Catalogue struct {
	Name   string           `json:"name" yaml:"name" toml:"name"`
	Sun    model.BodySpec   `json:"sun" yaml:"sun" toml:"sun"`
	Bodies []model.BodySpec `json:"bodies" yaml:"bodies" toml:"bodies"`
	// Target is the panel's initial travel target.
	Target string        `json:"target" yaml:"target" toml:"target"`
	Ship   ShipSpec      `json:"ship" yaml:"ship" toml:"ship"`
	Walker WalkerSpec    `json:"walker" yaml:"walker" toml:"walker"`
	Stars  StarfieldSpec `json:"stars" yaml:"stars" toml:"stars"`
}

// Orbital speed of the innermost default planet, in radians per tick.
const baseAngularSpeed = 0.01

// DefaultCatalogue returns the sun and the eight planets. Angular speeds
// fall off with distance^1.5 from mercury's.
func DefaultCatalogue() Catalogue {
	planets := []struct {
		name     string
		distance float64
		scale    float64
		color    string
		start    float64
	}{
		{"mercury", 10, 2, "#8c8c8c", 0},
		{"venus", 15, 3, "#e6c27a", 0.8},
		{"earth", 22, 3.5, "#2e6fdb", 1.6},
		{"mars", 29, 2.5, "#c1440e", 2.4},
		{"jupiter", 40, 6, "#d8ca9d", 3.2},
		{"saturn", 50, 5, "#c5ab6e", 4.0},
		{"uranus", 60, 4.5, "#9fd6e0", 4.8},
		{"neptune", 70, 4, "#3f54ba", 5.6},
	}
	cat := Catalogue{
		Name: "solar-system",
		Sun: model.BodySpec{
			Name:  "sun",
			Scale: 10,
			Color: "#ffff00",
		},
		Target: "jupiter",
		Ship:   ShipSpec{Body: "earth", Speed: core.DefaultShipConfig().Speed, Scale: 0.05},
		Walker: WalkerSpec{Body: "earth"},
		Stars:  DefaultStarfieldSpec(),
	}
	for _, p := range planets {
		cat.Bodies = append(cat.Bodies, model.BodySpec{
			Name:         p.name,
			Distance:     p.distance,
			Scale:        p.scale,
			AngularSpeed: baseAngularSpeed * math.Pow(10/p.distance, 1.5),
			StartAngle:   p.start,
			Color:        p.color,
			Model:        filepath.Join(p.name, "scene.gltf"),
		})
	}
	return cat
}

// DefaultStarfieldSpec is 3000 stars spread over a 1000-unit cube.
func DefaultStarfieldSpec() StarfieldSpec {
	return StarfieldSpec{
		Count:   3000,
		Extent:  1000,
		Palette: []string{"#ffffff", "#ffccaa", "#aaccff"},
	}
}

// ApplyDefaults fills unset actor and starfield fields. Bodies are left
// alone.
func (c Catalogue) ApplyDefaults() Catalogue {
	ship := core.DefaultShipConfig()
	walker := core.DefaultWalkerConfig()
	if c.Name == "" {
		c.Name = "scene"
	}
	if c.Ship.Speed <= 0 {
		c.Ship.Speed = ship.Speed
	}
	if c.Ship.Scale <= 0 {
		c.Ship.Scale = 0.05
	}
	if c.Walker.TurnSpeed <= 0 {
		c.Walker.TurnSpeed = walker.TurnSpeed
	}
	if c.Walker.MoveSpeed <= 0 {
		c.Walker.MoveSpeed = walker.MoveSpeed
	}
	stars := DefaultStarfieldSpec()
	if c.Stars.Count <= 0 {
		c.Stars.Count = stars.Count
	}
	if c.Stars.Extent <= 0 {
		c.Stars.Extent = stars.Extent
	}
	if len(c.Stars.Palette) == 0 {
		c.Stars.Palette = stars.Palette
	}
	if c.Target == "" && len(c.Bodies) > 0 {
		c.Target = BodyID(c.Bodies[len(c.Bodies)-1].Name)
	}
	return c
}

// Specs returns every body spec, the sun first when present.
func (c Catalogue) Specs() []model.BodySpec {
	out := make([]model.BodySpec, 0, len(c.Bodies)+1)
	if c.Sun.Name != "" {
		out = append(out, c.Sun)
	}
	return append(out, c.Bodies...)
}

// IDs returns the body IDs in catalogue order.
func (c Catalogue) IDs() []string {
	specs := c.Specs()
	ids := make([]string, len(specs))
	for i, s := range specs {
		ids[i] = BodyID(s.Name)
	}
	return ids
}

// Has reports whether the catalogue defines a body with the given ID.
func (c Catalogue) Has(id string) bool {
	for _, s := range c.Specs() {
		if BodyID(s.Name) == id {
			return true
		}
	}
	return false
}

// Validate checks names, geometry, colours and actor placement.
func (c Catalogue) Validate() error {
	if len(c.Bodies) == 0 {
		return fmt.Errorf("%w: no bodies", ErrInvalidCatalogue)
	}
	seen := make(map[string]bool)
	for _, s := range c.Specs() {
		id := BodyID(s.Name)
		if id == "" {
			return fmt.Errorf("%w: body with empty name", ErrInvalidCatalogue)
		}
		if seen[id] {
			return fmt.Errorf("%w: duplicate body %q", ErrInvalidCatalogue, id)
		}
		seen[id] = true
		if !(s.Distance >= 0) || math.IsInf(s.Distance, 0) {
			return fmt.Errorf("%w: %s distance %v", ErrInvalidCatalogue, id, s.Distance)
		}
		if !(s.Scale > 0) || math.IsInf(s.Scale, 0) {
			return fmt.Errorf("%w: %s scale %v", ErrInvalidCatalogue, id, s.Scale)
		}
		if math.IsNaN(s.AngularSpeed) || math.IsInf(s.AngularSpeed, 0) {
			return fmt.Errorf("%w: %s angular speed %v", ErrInvalidCatalogue, id, s.AngularSpeed)
		}
		if s.Color != "" {
			if _, err := colorful.Hex(s.Color); err != nil {
				return fmt.Errorf("%w: %s colour %q: %v", ErrInvalidCatalogue, id, s.Color, err)
			}
		}
	}
	for _, p := range c.Stars.Palette {
		if _, err := colorful.Hex(p); err != nil {
			return fmt.Errorf("%w: star colour %q: %v", ErrInvalidCatalogue, p, err)
		}
	}
	if c.Ship.Body != "" && !seen[c.Ship.Body] {
		return fmt.Errorf("%w: ship body %q not in catalogue", ErrInvalidCatalogue, c.Ship.Body)
	}
	if c.Walker.Body != "" && !seen[c.Walker.Body] {
		return fmt.Errorf("%w: walker body %q not in catalogue", ErrInvalidCatalogue, c.Walker.Body)
	}
	if c.Target != "" && !seen[c.Target] {
		return fmt.Errorf("%w: target %q not in catalogue", ErrInvalidCatalogue, c.Target)
	}
	return nil
}

// BodyID derives a registry ID from a display name.
func BodyID(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}

// NewBody builds the runtime body for a spec. The bounding radius is half
// the scale, since models are normalised to a unit box before scaling.
func NewBody(s model.BodySpec) *model.CelestialBody {
	return &model.CelestialBody{
		ID:           BodyID(s.Name),
		Name:         s.Name,
		OrbitRadius:  s.Distance,
		AngularSpeed: s.AngularSpeed,
		Angle:        core.WrapAngle(s.StartAngle),
		BodyRadius:   s.Scale / 2,
		Color:        s.Color,
	}
}

// Load reads a catalogue from path. The format is chosen by extension:
// .yaml/.yml, .toml or .json.
func Load(path string) (Catalogue, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Catalogue{}, fmt.Errorf("read catalogue: %w", err)
	}
	return Decode(data, strings.TrimPrefix(filepath.Ext(path), "."))
}

// Decode parses a catalogue in the named format, applies defaults and
// validates it.
func Decode(data []byte, format string) (Catalogue, error) {
	var cat Catalogue
	switch strings.ToLower(format) {
	case "yaml", "yml":
		if err := yaml.Unmarshal(data, &cat); err != nil {
			return Catalogue{}, fmt.Errorf("decode yaml catalogue: %w", err)
		}
	case "toml":
		if err := toml.Unmarshal(data, &cat); err != nil {
			return Catalogue{}, fmt.Errorf("decode toml catalogue: %w", err)
		}
	case "json":
		dec := json.NewDecoder(bytes.NewReader(data))
		dec.DisallowUnknownFields()
		if err := dec.Decode(&cat); err != nil {
			return Catalogue{}, fmt.Errorf("decode json catalogue: %w", err)
		}
	default:
		return Catalogue{}, fmt.Errorf("%w: %q", ErrUnsupportedFormat, format)
	}
	cat = cat.ApplyDefaults()
	if err := cat.Validate(); err != nil {
		return Catalogue{}, err
	}
	return cat, nil
}

// Encode writes the catalogue in the named format.
func Encode(cat Catalogue, format string) ([]byte, error) {
	switch strings.ToLower(format) {
	case "yaml", "yml":
		return yaml.Marshal(cat)
	case "toml":
		return toml.Marshal(cat)
	case "json":
		return json.MarshalIndent(cat, "", "  ")
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedFormat, format)
	}
}
