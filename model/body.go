package model

// CelestialBody is a body on a circular orbit around the shared centre.
// It is created once at scene load and never destroyed during a session;
// only Angle changes while orbit animation is enabled.
type CelestialBody struct {
	ID   string
	Name string

	// OrbitRadius is the distance from the centre (>= 0).
	OrbitRadius float64
	// AngularSpeed is radians per tick at unit speed scale. Sign selects
	// the direction of travel around +Y.
	AngularSpeed float64
	// Angle is the current orbital angle in radians, kept in [0, 2π).
	Angle float64

	// BodyRadius is the bounding radius of the visual, used for surface
	// walking and the docking standoff.
	BodyRadius float64
	// Color is a hex colour ("#rrggbb") used by viewers.
	Color string

	// Visual is an opaque handle owned by the scene assembly.
	Visual any
}

// BodySpec is the static description of a body before it is loaded.
type BodySpec struct {
	Name         string  `json:"name" yaml:"name" toml:"name"`
	Distance     float64 `json:"distance" yaml:"distance" toml:"distance"`
	Scale        float64 `json:"scale" yaml:"scale" toml:"scale"`
	AngularSpeed float64 `json:"angular_speed" yaml:"angular_speed" toml:"angular_speed"`
	StartAngle   float64 `json:"start_angle" yaml:"start_angle" toml:"start_angle"`
	Color        string  `json:"color" yaml:"color" toml:"color"`
	Model        string  `json:"model" yaml:"model" toml:"model"`
}
