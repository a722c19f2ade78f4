package scene

import (
	"fmt"
	"math/rand/v2"

	"github.com/go-gl/mathgl/mgl64"
	"github.com/lucasb-eyer/go-colorful"
)

// Star is one background point.
type Star struct {
	Position mgl64.Vec3
	Color    colorful.Color
}

// Hex returns the star colour as "#rrggbb".
func (s Star) Hex() string { return s.Color.Hex() }

// Starfield scatters spec.Count stars uniformly over a cube of side
// spec.Extent centred on the origin, each coloured from the palette. A
// zero spec.Seed draws from rng, or from a random source when rng is nil.
func Starfield(spec StarfieldSpec, rng *rand.Rand) ([]Star, error) {
	if len(spec.Palette) == 0 {
		spec.Palette = DefaultStarfieldSpec().Palette
	}
	palette := make([]colorful.Color, len(spec.Palette))
	for i, hex := range spec.Palette {
		c, err := colorful.Hex(hex)
		if err != nil {
			return nil, fmt.Errorf("star palette %q: %w", hex, err)
		}
		palette[i] = c
	}
	switch {
	case spec.Seed != 0:
		rng = rand.New(rand.NewPCG(spec.Seed, spec.Seed>>1|1))
	case rng == nil:
		rng = rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64()))
	}

	if spec.Count < 0 {
		spec.Count = 0
	}
	half := spec.Extent / 2
	spread := func() float64 { return (rng.Float64()*2 - 1) * half }
	stars := make([]Star, spec.Count)
	for i := range stars {
		stars[i] = Star{
			Position: mgl64.Vec3{spread(), spread(), spread()},
			Color:    palette[rng.IntN(len(palette))],
		}
	}
	return stars, nil
}
