package core

import (
	"github.com/signalsfoundry/debris-tracking-scene/model"
)

// MotionModel updates a body's position and rotation for a given elapsed time.
type MotionModel interface {
	UpdatePosition(elapsed float64, b *model.BodyDefinition)
}

// OrbitMotionModel moves a body along its circular orbit at TimeScale times
// the elapsed time. With FaceHeading the body turns toward its direction of
// travel; otherwise it tumbles at Tumble radians per elapsed unit.
type OrbitMotionModel struct {
	TimeScale   float64
	FaceHeading bool
	Lookahead   float64
	Tumble      model.Motion
}

// UpdatePosition writes b.Position and b.Rotation.
func (m *OrbitMotionModel) UpdatePosition(elapsed float64, b *model.BodyDefinition) {
	t := elapsed * m.TimeScale
	pos := OrbitalPosition(b.Orbit, t)
	b.Position = pos.Motion()

	if m.FaceHeading {
		b.Rotation = LookRotation(pos, HeadingPoint(b.Orbit, t, m.Lookahead))
		return
	}
	// Tumble runs on unscaled elapsed time.
	b.Rotation = model.Motion{
		X: elapsed * m.Tumble.X,
		Y: elapsed * m.Tumble.Y,
		Z: elapsed * m.Tumble.Z,
	}
}

// NewMotionModel chooses the motion for a body's role. Trackers face their
// heading; the target and background debris tumble.
func NewMotionModel(role model.Role, cfg SceneConfig) MotionModel {
	switch role {
	case model.RoleTracker:
		return &OrbitMotionModel{TimeScale: cfg.TrackerTimeScale, FaceHeading: true, Lookahead: cfg.HeadingLookahead}
	case model.RoleTarget:
		return &OrbitMotionModel{TimeScale: cfg.TargetTimeScale, Tumble: cfg.TargetTumble}
	default:
		return &OrbitMotionModel{TimeScale: cfg.BackgroundTimeScale, Tumble: cfg.BackgroundTumble}
	}
}
