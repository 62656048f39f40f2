package core

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/signalsfoundry/debris-tracking-scene/kb"
	"github.com/signalsfoundry/debris-tracking-scene/model"
)

const (
	DefaultSeed            = 1
	DefaultBackgroundCount = 8
	DefaultTargetID        = "debris-1"
)

// Scenario is what was loaded into the KnowledgeBase, plus the tuning the
// driver needs.
type Scenario struct {
	TrackerIDs    []string
	TargetID      string
	BackgroundIDs []string

	Seed       uint64
	Config     SceneConfig
	Visibility *VisibilityEvaluator
	Stars      []Vec3
}

// DriverOptions returns the options that apply this scenario to a Driver.
func (s *Scenario) DriverOptions() []DriverOption {
	return []DriverOption{
		WithSceneConfig(s.Config),
		WithVisibility(s.Visibility),
		WithStars(s.Stars),
	}
}

// internal JSON shapes – keep them unexported so we’re free to evolve them.
// Absent sections fall back to the stock scene.
type scenarioJSON struct {
	Seed       *uint64         `json:"seed"`
	Trackers   *[]bodyJSON     `json:"trackers"`
	Target     *bodyJSON       `json:"target"`
	Background *backgroundJSON `json:"background"`
	Visibility json.RawMessage `json:"visibility"`
	Pacing     json.RawMessage `json:"pacing"`
	Stars      *starsJSON      `json:"stars"`
}

type bodyJSON struct {
	ID    string            `json:"id"`
	Name  string            `json:"name"`
	Color string            `json:"color"`
	Orbit model.OrbitParams `json:"orbit"`
}

type backgroundJSON struct {
	Count  *int            `json:"count"`
	Color  string          `json:"color"`
	Ranges json.RawMessage `json:"ranges"`
}

type starsJSON struct {
	Samples   *int     `json:"samples"`
	Extent    *float64 `json:"extent"`
	MinRadius *float64 `json:"min_radius"`
}

// LoadScenario reads a JSON scenario from r, registers its bodies in store
// (trackers, then the target, then background debris) and returns a summary.
// Background orbits and the star field are drawn from the scenario seed.
func LoadScenario(store *kb.KnowledgeBase, r io.Reader) (*Scenario, error) {
	var payload scenarioJSON
	if err := json.NewDecoder(r).Decode(&payload); err != nil {
		return nil, fmt.Errorf("LoadScenario: decode failed: %w", err)
	}
	sc, err := buildScenario(store, payload)
	if err != nil {
		return nil, fmt.Errorf("LoadScenario: %w", err)
	}
	return sc, nil
}

// DefaultScenario registers the stock scene: three ATLAS trackers, one
// target and eight background debris drawn from seed.
func DefaultScenario(store *kb.KnowledgeBase, seed uint64) (*Scenario, error) {
	return buildScenario(store, scenarioJSON{Seed: &seed})
}

// LoadScenarioFile loads the scenario at path, or the stock scene drawn
// from seed when path is empty.
func LoadScenarioFile(store *kb.KnowledgeBase, path string, seed uint64) (*Scenario, error) {
	if path == "" {
		return DefaultScenario(store, seed)
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open scenario %q: %w", path, err)
	}
	defer f.Close()
	return LoadScenario(store, f)
}

func buildScenario(store *kb.KnowledgeBase, payload scenarioJSON) (*Scenario, error) {
	if store == nil {
		return nil, fmt.Errorf("knowledge base is nil")
	}

	sc := &Scenario{
		Seed:       DefaultSeed,
		Config:     DefaultSceneConfig(),
		Visibility: NewVisibilityEvaluator(),
	}
	if payload.Seed != nil {
		sc.Seed = *payload.Seed
	}
	if len(payload.Pacing) > 0 {
		if err := json.Unmarshal(payload.Pacing, &sc.Config); err != nil {
			return nil, fmt.Errorf("pacing: %w", err)
		}
	}
	if sc.Config.TrackerTimeScale < 0 || sc.Config.TargetTimeScale < 0 || sc.Config.BackgroundTimeScale < 0 || sc.Config.MaxFrameDelta < 0 {
		return nil, fmt.Errorf("pacing: time scales and max frame delta must be non-negative")
	}
	if len(payload.Visibility) > 0 {
		if err := json.Unmarshal(payload.Visibility, sc.Visibility); err != nil {
			return nil, fmt.Errorf("visibility: %w", err)
		}
	}
	if sc.Visibility.RangeThreshold <= 0 {
		return nil, fmt.Errorf("visibility: range threshold must be positive, got %v", sc.Visibility.RangeThreshold)
	}

	// 1) Trackers
	trackers := defaultTrackerBodies()
	if payload.Trackers != nil {
		trackers = *payload.Trackers
	}
	for _, tb := range trackers {
		if err := addBody(store, tb, model.RoleTracker); err != nil {
			return nil, err
		}
		sc.TrackerIDs = append(sc.TrackerIDs, tb.ID)
	}

	// 2) Target
	target := bodyJSON{ID: DefaultTargetID, Name: "DEBRIS", Color: ColorTarget, Orbit: TargetOrbit()}
	if payload.Target != nil {
		target = *payload.Target
	}
	if err := addBody(store, target, model.RoleTarget); err != nil {
		return nil, err
	}
	sc.TargetID = target.ID

	// 3) Background debris, drawn once.
	rng := NewRand(sc.Seed)
	count := DefaultBackgroundCount
	ranges := DefaultBackgroundRanges()
	bgColor := ColorBackground
	if bg := payload.Background; bg != nil {
		if bg.Count != nil {
			count = *bg.Count
		}
		if bg.Color != "" {
			bgColor = bg.Color
		}
		if len(bg.Ranges) > 0 {
			if err := json.Unmarshal(bg.Ranges, &ranges); err != nil {
				return nil, fmt.Errorf("background ranges: %w", err)
			}
		}
	}
	if count < 0 {
		return nil, fmt.Errorf("background count must be non-negative, got %d", count)
	}
	if count > 0 {
		if err := ranges.Validate(); err != nil {
			return nil, fmt.Errorf("background ranges: %w", err)
		}
	}
	for i := 0; i < count; i++ {
		b := bodyJSON{
			ID:    fmt.Sprintf("bg-%02d", i+1),
			Name:  fmt.Sprintf("DEBRIS-BG-%d", i+1),
			Color: bgColor,
			Orbit: NewBackgroundOrbit(rng, ranges),
		}
		if err := addBody(store, b, model.RoleBackground); err != nil {
			return nil, err
		}
		sc.BackgroundIDs = append(sc.BackgroundIDs, b.ID)
	}

	// 4) Stars, from the same stream after the background draws.
	samples, extent, minRadius := DefaultStarSamples, DefaultStarExtent, DefaultStarMinRadius
	if st := payload.Stars; st != nil {
		if st.Samples != nil {
			samples = *st.Samples
		}
		if st.Extent != nil {
			extent = *st.Extent
		}
		if st.MinRadius != nil {
			minRadius = *st.MinRadius
		}
	}
	if samples > 0 {
		sc.Stars = StarField(rng, samples, extent, minRadius)
	}

	return sc, nil
}

func addBody(store *kb.KnowledgeBase, b bodyJSON, role model.Role) error {
	color := b.Color
	if color == "" {
		color = DefaultColor(role)
	}
	if _, err := ParseColor(color); err != nil {
		return fmt.Errorf("%s %q: %w", role, b.ID, err)
	}
	name := b.Name
	if name == "" {
		name = b.ID
	}
	def := &model.BodyDefinition{
		ID:    b.ID,
		Name:  name,
		Role:  role,
		Color: color,
		Orbit: b.Orbit,
	}
	if err := store.AddBody(def); err != nil {
		return fmt.Errorf("%s: %w", role, err)
	}
	return nil
}

func defaultTrackerBodies() []bodyJSON {
	specs := TrackerOrbits()
	out := make([]bodyJSON, len(specs))
	for i, s := range specs {
		out[i] = bodyJSON{ID: s.ID, Name: s.Name, Color: s.Color, Orbit: s.Orbit}
	}
	return out
}
