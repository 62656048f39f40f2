package core

import (
	"math"
	"testing"

	"github.com/signalsfoundry/debris-tracking-scene/kb"
	"github.com/signalsfoundry/debris-tracking-scene/model"
)

func newStockScene(t *testing.T) *SceneState {
	t.Helper()
	store := kb.NewKnowledgeBase()
	if _, err := DefaultScenario(store, 42); err != nil {
		t.Fatalf("DefaultScenario: %v", err)
	}
	return NewSceneState(store.ListBodies(), DefaultSceneConfig(), NewVisibilityEvaluator(), DefaultCameraRig())
}

func TestSceneStepUsesRoleTimeScales(t *testing.T) {
	s := newStockScene(t)
	f := s.Step(2, true)

	cfg := DefaultSceneConfig()
	for _, b := range s.Bodies {
		var scale float64
		switch b.Role {
		case model.RoleTracker:
			scale = cfg.TrackerTimeScale
		case model.RoleTarget:
			scale = cfg.TargetTimeScale
		default:
			scale = cfg.BackgroundTimeScale
		}
		want := OrbitalPosition(b.Orbit, 2*scale).Motion()
		got, ok := f.Body(b.ID)
		if !ok {
			t.Fatalf("frame missing body %s", b.ID)
		}
		if got.Position != want {
			t.Fatalf("%s position = %+v, want %+v", b.ID, got.Position, want)
		}
	}
}

func TestSceneStepDerivedValues(t *testing.T) {
	s := newStockScene(t)
	s.Aspect = 16.0 / 9
	f := s.Step(3, true)

	if f.Seq != 1 || f.Elapsed != 3 || !f.Playing {
		t.Fatalf("frame header = seq %d elapsed %v playing %v", f.Seq, f.Elapsed, f.Playing)
	}
	if math.Abs(f.EarthRotation-0.15) > 1e-12 {
		t.Fatalf("EarthRotation = %v, want 0.15", f.EarthRotation)
	}
	if want := 1 + math.Sin(9)*0.2; math.Abs(f.TargetGlow-want) > 1e-12 {
		t.Fatalf("TargetGlow = %v, want %v", f.TargetGlow, want)
	}
	if f.Camera.Aspect != s.Aspect || math.Abs(f.Camera.Angle-0.24) > 1e-12 {
		t.Fatalf("camera = %+v", f.Camera)
	}

	target, _ := f.Body(DefaultTargetID)
	if want := (model.Motion{X: 1.5, Y: 0.9}); math.Abs(target.Rotation.X-want.X) > 1e-12 || math.Abs(target.Rotation.Y-want.Y) > 1e-12 || target.Rotation.Z != 0 {
		t.Fatalf("target tumble = %+v, want %+v", target.Rotation, want)
	}
	bg, _ := f.Body("bg-01")
	if math.Abs(bg.Rotation.X-0.9) > 1e-12 || math.Abs(bg.Rotation.Z-0.6) > 1e-12 {
		t.Fatalf("background tumble = %+v", bg.Rotation)
	}
	if f.TargetSub == nil {
		t.Fatalf("frame without target sub-point")
	}
	if len(f.Links) != 3 {
		t.Fatalf("links = %d, want 3", len(f.Links))
	}
}

func TestSceneStartsWithAllTrackersInRange(t *testing.T) {
	s := newStockScene(t)
	f := s.Step(0, true)
	if f.ActiveLinks() != 3 {
		t.Fatalf("active links at t=0 = %d, want 3", f.ActiveLinks())
	}
}

// Over one full target revolution every tracker must both see and lose the
// target at least once.
func TestSceneEveryTrackerCrossesThreshold(t *testing.T) {
	s := newStockScene(t)

	cfg := DefaultSceneConfig()
	target := TargetOrbit()
	revolution := target.Period * 2 * math.Pi / cfg.TargetTimeScale
	const steps = 2000

	first := s.Step(0, true)
	prev := make([]bool, len(first.Links))
	for i, l := range first.Links {
		prev[i] = l.Active
	}
	flips := make([]int, len(prev))
	for k := 0; k < steps; k++ {
		f := s.Step(revolution/steps, true)
		for i, l := range f.Links {
			if l.Active != prev[i] {
				flips[i]++
			}
			prev[i] = l.Active
		}
	}
	for i, n := range flips {
		if n == 0 {
			t.Errorf("tracker %d never crossed the range threshold", i)
		}
	}
}

func TestScenePauseFreezesElapsed(t *testing.T) {
	s := newStockScene(t)
	s.Step(1, true)
	before := s.Step(0.5, true)

	// Frames keep coming while paused but nothing moves.
	for i := 0; i < 10; i++ {
		f := s.Step(5, false)
		if f.Elapsed != before.Elapsed {
			t.Fatalf("elapsed advanced while paused: %v -> %v", before.Elapsed, f.Elapsed)
		}
		if f.Bodies[0].Position != before.Bodies[0].Position {
			t.Fatalf("body moved while paused")
		}
		if f.Playing {
			t.Fatalf("paused frame reports playing")
		}
	}

	after := s.Step(0.25, true)
	if math.Abs(after.Elapsed-(before.Elapsed+0.25)) > 1e-12 {
		t.Fatalf("resume jumped: elapsed %v, want %v", after.Elapsed, before.Elapsed+0.25)
	}
}

func TestSceneNegativeDeltaIgnored(t *testing.T) {
	s := newStockScene(t)
	s.Step(1, true)
	f := s.Step(-3, true)
	if f.Elapsed != 1 || f.Delta != 0 {
		t.Fatalf("negative delta changed the clock: elapsed %v delta %v", f.Elapsed, f.Delta)
	}
}

func TestSceneWithoutTargetKeepsLinksDim(t *testing.T) {
	var bodies []model.BodyDefinition
	for i, tr := range TrackerOrbits() {
		bodies = append(bodies, model.BodyDefinition{ID: tr.ID, Handle: i, Role: model.RoleTracker, Orbit: tr.Orbit})
	}
	s := NewSceneState(bodies, DefaultSceneConfig(), nil, DefaultCameraRig())
	f := s.Step(1, true)
	if f.TargetSub != nil {
		t.Fatalf("sub-point without a target")
	}
	for _, l := range f.Links {
		if l.Active || l.Opacity != 0.1 {
			t.Fatalf("link without target = %+v", l)
		}
	}
}

func TestSimulationClockAdvance(t *testing.T) {
	c := NewSimulationClock()
	if c.Elapsed != 0 || !c.Playing {
		t.Fatalf("initial clock = %+v, want (0, playing)", c)
	}
	c.Advance(0.5)
	c.Playing = false
	c.Advance(10)
	c.Playing = true
	c.Advance(-1)
	c.Advance(0.25)
	if c.Elapsed != 0.75 {
		t.Fatalf("Elapsed = %v, want 0.75", c.Elapsed)
	}
}

func TestBuildSceneSetup(t *testing.T) {
	store := kb.NewKnowledgeBase()
	sc, err := DefaultScenario(store, 3)
	if err != nil {
		t.Fatalf("DefaultScenario: %v", err)
	}
	setup := BuildSceneSetup(store.ListBodies(), sc.Stars, DefaultCameraRig().Initial(1))

	if len(setup.Bodies) != 12 {
		t.Fatalf("bodies = %d, want 12", len(setup.Bodies))
	}
	if len(setup.Paths) != 4 {
		t.Fatalf("paths = %d, want trackers + target", len(setup.Paths))
	}
	for _, p := range setup.Paths {
		want := TrackerPathOpacity
		if p.BodyID == DefaultTargetID {
			want = TargetPathOpacity
		}
		if p.Opacity != want || len(p.Points) != DefaultPathSegments+1 {
			t.Fatalf("path %s: opacity %v points %d", p.BodyID, p.Opacity, len(p.Points))
		}
	}
	if len(setup.Links) != 3 || setup.Links[2].Index != 2 || setup.Links[0].Color != "#00d4ff" {
		t.Fatalf("links = %+v", setup.Links)
	}
	if len(setup.Stars) != len(sc.Stars) || setup.EarthRadius != EarthSceneRadius {
		t.Fatalf("stars %d earth %v", len(setup.Stars), setup.EarthRadius)
	}
	if setup.Camera.Position != (model.Motion{X: 0, Y: 20, Z: 35}) {
		t.Fatalf("initial camera = %+v", setup.Camera.Position)
	}
}
