package api

import (
	"github.com/go-gl/mathgl/mgl64"

	"github.com/signalsfoundry/orrery/core"
	"github.com/signalsfoundry/orrery/internal/scene"
)

// Vec is a JSON-friendly [x, y, z].
type Vec [3]float64

// Quat is a JSON-friendly [x, y, z, w].
type Quat [4]float64

func toVec(v mgl64.Vec3) Vec { return Vec(v) }

func toQuat(q mgl64.Quat) Quat { return Quat{q.V[0], q.V[1], q.V[2], q.W} }

type TransformDTO struct {
	Position Vec  `json:"position"`
	Rotation Quat `json:"rotation"`
}

func toTransform(t core.Transform) TransformDTO {
	return TransformDTO{Position: toVec(t.Position), Rotation: toQuat(t.Rotation)}
}

type BodyDTO struct {
	ID          string        `json:"id"`
	Name        string        `json:"name,omitempty"`
	Status      string        `json:"status"`
	Transform   *TransformDTO `json:"transform,omitempty"`
	Angle       float64       `json:"angle"`
	OrbitRadius float64       `json:"orbit_radius"`
	BodyRadius  float64       `json:"body_radius"`
	Color       string        `json:"color,omitempty"`
}

type ShipDTO struct {
	TransformDTO
	State          string `json:"state"`
	Frame          string `json:"frame"`
	Body           string `json:"body,omitempty"`
	Target         string `json:"target,omitempty"`
	PastTarget     string `json:"past_target,omitempty"`
	Destination    *Vec   `json:"destination,omitempty"`
	ExhaustVisible bool   `json:"exhaust_visible"`
}

type WalkerDTO struct {
	TransformDTO
	Body   string  `json:"body"`
	Radius float64 `json:"radius"`
	Up     Vec     `json:"up"`
}

// FrameDTO is the wire form of core.Snapshot.
type FrameDTO struct {
	Index      uint64       `json:"index"`
	Elapsed    float64      `json:"elapsed"`
	Camera     string       `json:"camera"`
	Animation  bool         `json:"animation"`
	SpeedScale float64      `json:"speed_scale"`
	Settled    bool         `json:"settled"`
	Bodies     []BodyDTO    `json:"bodies"`
	Ship       *ShipDTO     `json:"ship,omitempty"`
	Walker     *WalkerDTO   `json:"walker,omitempty"`
	Particles  []Vec        `json:"particles,omitempty"`
	Events     []core.Event `json:"events,omitempty"`
}

type StarDTO struct {
	Position Vec    `json:"position"`
	Color    string `json:"color"`
}

// toFrame converts a snapshot. Particles are only included on request
// since they dominate the payload.
func toFrame(s core.Snapshot, particles bool) FrameDTO {
	f := FrameDTO{
		Index:      s.Index,
		Elapsed:    s.Elapsed,
		Camera:     string(s.Camera),
		Animation:  s.Animation,
		SpeedScale: s.SpeedScale,
		Settled:    s.Settled,
		Bodies:     make([]BodyDTO, 0, len(s.Bodies)),
		Events:     s.Events,
	}
	for _, b := range s.Bodies {
		f.Bodies = append(f.Bodies, toBody(b))
	}
	if sh := s.Ship; sh != nil {
		dto := &ShipDTO{
			TransformDTO:   toTransform(sh.Transform),
			State:          sh.State.String(),
			Frame:          sh.Frame.String(),
			Body:           sh.Body,
			Target:         sh.Target,
			PastTarget:     sh.PastTarget,
			ExhaustVisible: sh.ExhaustVisible,
		}
		if sh.Target != "" {
			d := toVec(sh.Destination)
			dto.Destination = &d
		}
		f.Ship = dto
	}
	if w := s.Walker; w != nil {
		f.Walker = &WalkerDTO{
			TransformDTO: toTransform(w.Transform),
			Body:         w.Body,
			Radius:       w.Radius,
			Up:           toVec(w.Up),
		}
	}
	if particles && len(s.Particles) > 0 {
		f.Particles = make([]Vec, len(s.Particles))
		for i, p := range s.Particles {
			f.Particles[i] = toVec(p)
		}
	}
	return f
}

func toBody(b core.BodyFrame) BodyDTO {
	tr := toTransform(b.Transform)
	return BodyDTO{
		ID:          b.ID,
		Name:        b.Name,
		Status:      "ready",
		Transform:   &tr,
		Angle:       b.Angle,
		OrbitRadius: b.OrbitRadius,
		BodyRadius:  b.BodyRadius,
		Color:       b.Color,
	}
}

func toStars(stars []scene.Star) []StarDTO {
	out := make([]StarDTO, len(stars))
	for i, s := range stars {
		out[i] = StarDTO{Position: toVec(s.Position), Color: s.Hex()}
	}
	return out
}
