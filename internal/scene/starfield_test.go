package scene

import (
	"math"
	"math/rand/v2"
	"testing"
)

func TestStarfieldBoundsAndPalette(t *testing.T) {
	spec := DefaultStarfieldSpec()
	stars, err := Starfield(spec, rand.New(rand.NewPCG(3, 4)))
	if err != nil {
		t.Fatalf("Starfield: %v", err)
	}
	if len(stars) != 3000 {
		t.Fatalf("len(stars) = %d, want 3000", len(stars))
	}
	allowed := map[string]bool{"#ffffff": true, "#ffccaa": true, "#aaccff": true}
	used := map[string]bool{}
	for i, s := range stars {
		for _, c := range s.Position {
			if math.Abs(c) > 500 {
				t.Fatalf("star %d at %v outside the cube", i, s.Position)
			}
		}
		if !allowed[s.Hex()] {
			t.Fatalf("star %d colour %s not in palette", i, s.Hex())
		}
		used[s.Hex()] = true
	}
	if len(used) != 3 {
		t.Fatalf("palette colours used = %v, want all three", used)
	}
}

func TestStarfieldSeedIsDeterministic(t *testing.T) {
	spec := StarfieldSpec{Count: 50, Extent: 10, Seed: 42}
	a, err := Starfield(spec, nil)
	if err != nil {
		t.Fatalf("Starfield: %v", err)
	}
	b, _ := Starfield(spec, rand.New(rand.NewPCG(9, 9)))
	for i := range a {
		if a[i] != b[i] {
			t.Fatalf("star %d differs between seeded runs", i)
		}
	}
}

func TestStarfieldRejectsBadPalette(t *testing.T) {
	if _, err := Starfield(StarfieldSpec{Count: 1, Extent: 1, Palette: []string{"white"}}, nil); err == nil {
		t.Fatalf("Starfield accepted a non-hex colour")
	}
}
