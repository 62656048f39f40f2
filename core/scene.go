package core

import (
	"math"

	"github.com/signalsfoundry/debris-tracking-scene/model"
)

// SceneConfig holds the visual pacing constants. Each role advances along its
// orbit at its time scale times the elapsed time.
type SceneConfig struct {
	TrackerTimeScale    float64 `json:"tracker_time_scale"`
	TargetTimeScale     float64 `json:"target_time_scale"`
	BackgroundTimeScale float64 `json:"background_time_scale"`

	EarthSpinRate float64 `json:"earth_spin_rate"`

	TargetTumble     model.Motion `json:"target_tumble"`
	BackgroundTumble model.Motion `json:"background_tumble"`

	GlowPulseRate      float64 `json:"glow_pulse_rate"`
	GlowPulseAmplitude float64 `json:"glow_pulse_amplitude"`

	HeadingLookahead float64 `json:"heading_lookahead"`

	// MaxFrameDelta caps one frame's delta in seconds. 0 leaves it uncapped.
	MaxFrameDelta float64 `json:"max_frame_delta"`
}

// DefaultSceneConfig returns the stock pacing.
func DefaultSceneConfig() SceneConfig {
	return SceneConfig{
		TrackerTimeScale:    0.4,
		TargetTimeScale:     0.3,
		BackgroundTimeScale: 0.25,
		EarthSpinRate:       0.05,
		TargetTumble:        model.Motion{X: 0.5, Y: 0.3},
		BackgroundTumble:    model.Motion{X: 0.3, Z: 0.2},
		GlowPulseRate:       3,
		GlowPulseAmplitude:  0.2,
		HeadingLookahead:    DefaultHeadingLookahead,
	}
}

// BodyFrame is one body's state in a frame.
type BodyFrame struct {
	ID       string       `json:"id"`
	Handle   int          `json:"handle"`
	Role     model.Role   `json:"role"`
	Position model.Motion `json:"position"`
	Rotation model.Motion `json:"rotation"`
}

// Frame is an immutable snapshot of one computed frame.
type Frame struct {
	Seq           uint64                  `json:"seq"`
	Elapsed       float64                 `json:"elapsed"`
	Delta         float64                 `json:"delta"`
	Playing       bool                    `json:"playing"`
	EarthRotation float64                 `json:"earth_rotation"`
	TargetGlow    float64                 `json:"target_glow"`
	Bodies        []BodyFrame             `json:"bodies"`
	Links         []model.ObservationLink `json:"links"`
	Camera        model.CameraState       `json:"camera"`
	TargetSub     *SubPoint               `json:"target_subpoint,omitempty"`
}

// ActiveLinks counts links currently observing the target.
func (f Frame) ActiveLinks() int {
	n := 0
	for _, l := range f.Links {
		if l.Active {
			n++
		}
	}
	return n
}

// Body returns the frame entry for id.
func (f Frame) Body(id string) (BodyFrame, bool) {
	for _, b := range f.Bodies {
		if b.ID == id {
			return b, true
		}
	}
	return BodyFrame{}, false
}

// SceneState is everything that evolves from frame to frame: the clock, the
// bodies' derived positions and the links. Step is its only mutator, so a
// scene can be advanced and inspected without any renderer or scheduler.
type SceneState struct {
	Clock  SimulationClock
	Bodies []model.BodyDefinition
	Links  []model.ObservationLink
	Aspect float64

	cfg        SceneConfig
	visibility *VisibilityEvaluator
	rig        CameraRig

	models   []MotionModel
	trackers []int // indexes into Bodies, in handle order
	target   int   // index into Bodies, or -1
	seq      uint64
}

// NewSceneState builds the state for the given bodies (in handle order).
// Every tracker gets a link slot whose index is its rank among trackers.
func NewSceneState(bodies []model.BodyDefinition, cfg SceneConfig, ve *VisibilityEvaluator, rig CameraRig) *SceneState {
	if ve == nil {
		ve = NewVisibilityEvaluator()
	}
	s := &SceneState{
		Clock:      NewSimulationClock(),
		Bodies:     append([]model.BodyDefinition(nil), bodies...),
		Aspect:     1,
		cfg:        cfg,
		visibility: ve,
		rig:        rig,
		target:     -1,
	}
	s.models = make([]MotionModel, len(s.Bodies))
	for i, b := range s.Bodies {
		s.models[i] = NewMotionModel(b.Role, cfg)
		switch b.Role {
		case model.RoleTracker:
			s.trackers = append(s.trackers, i)
			s.Links = append(s.Links, model.ObservationLink{
				TrackerID: b.ID,
				Index:     len(s.Links),
				Opacity:   ve.DimOpacity,
			})
		case model.RoleTarget:
			s.target = i
		}
	}
	return s
}

// Step advances the clock by delta seconds (if playing), recomputes every
// body, link and the camera, and returns the frame. A scene without a target
// keeps its links dim.
func (s *SceneState) Step(delta float64, playing bool) Frame {
	if delta < 0 {
		delta = 0
	}
	s.Clock.Playing = playing
	s.Clock.Advance(delta)
	e := s.Clock.Elapsed

	for i := range s.Bodies {
		s.models[i].UpdatePosition(e, &s.Bodies[i])
	}

	if s.target >= 0 {
		targetPos := Vec3FromMotion(s.Bodies[s.target].Position)
		for k, bi := range s.trackers {
			b := s.Bodies[bi]
			s.Links[k] = s.visibility.Evaluate(b.ID, k, Vec3FromMotion(b.Position), targetPos, e, s.Links[k])
		}
	}

	s.seq++
	f := Frame{
		Seq:           s.seq,
		Elapsed:       e,
		Delta:         delta,
		Playing:       playing,
		EarthRotation: e * s.cfg.EarthSpinRate,
		TargetGlow:    1 + math.Sin(e*s.cfg.GlowPulseRate)*s.cfg.GlowPulseAmplitude,
		Bodies:        make([]BodyFrame, len(s.Bodies)),
		Links:         append([]model.ObservationLink(nil), s.Links...),
		Camera:        s.rig.State(e, s.Aspect),
	}
	for i, b := range s.Bodies {
		f.Bodies[i] = BodyFrame{ID: b.ID, Handle: b.Handle, Role: b.Role, Position: b.Position, Rotation: b.Rotation}
	}
	if s.target >= 0 {
		sp := SubPointOf(Vec3FromMotion(s.Bodies[s.target].Position), f.EarthRotation)
		f.TargetSub = &sp
	}
	return f
}
