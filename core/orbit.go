package core

import "github.com/signalsfoundry/orrery/model"

// OrbitModel advances orbital angles once per tick. The advance is step
// based: Scale is a user multiplier, not simulated time.
type OrbitModel struct {
	// Enabled gates the advance; disabling keeps the accumulated angles.
	Enabled bool
	// Scale multiplies every body's angular speed.
	Scale float64
}

// NewOrbitModel returns a disabled model with unit scale.
func NewOrbitModel() *OrbitModel {
	return &OrbitModel{Scale: 1}
}

// Advance moves b along its orbit by one tick at the given speed scale.
func Advance(b *model.CelestialBody, scale float64) {
	if b == nil {
		return
	}
	b.Angle = WrapAngle(b.Angle + b.AngularSpeed*scale)
}

// AdvanceAll advances every body when the model is enabled and reports
// how many bodies moved.
func (m *OrbitModel) AdvanceAll(bodies []*model.CelestialBody) int {
	if m == nil || !m.Enabled {
		return 0
	}
	n := 0
	for _, b := range bodies {
		if b == nil {
			continue
		}
		Advance(b, m.Scale)
		n++
	}
	return n
}

// EffectiveAngularSpeed is the angle b will gain per tick under the
// current settings; zero while the model is disabled.
func (m *OrbitModel) EffectiveAngularSpeed(b *model.CelestialBody) float64 {
	if m == nil || !m.Enabled || b == nil {
		return 0
	}
	return b.AngularSpeed * m.Scale
}
