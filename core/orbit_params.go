package core

import (
	"fmt"
	"math"
	"math/rand/v2"

	"github.com/signalsfoundry/debris-tracking-scene/model"
)

// TrackerSpec is a hand-placed tracker: its orbit plus display identity.
type TrackerSpec struct {
	ID    string
	Name  string
	Color string
	Orbit model.OrbitParams
}

// TrackerOrbits returns the three ATLAS trackers. Their inclination/RAAN pairs
// are all distinct so the orbital planes visibly diverge.
func TrackerOrbits() []TrackerSpec {
	return []TrackerSpec{
		{ID: "atlas-1", Name: "ATLAS-1", Color: "#00d4ff", Orbit: model.OrbitParams{Radius: 9, Inclination: math.Pi * 0.15, RAAN: 0, Phase: 0, Period: 1}},
		{ID: "atlas-2", Name: "ATLAS-2", Color: "#8b5cf6", Orbit: model.OrbitParams{Radius: 9.5, Inclination: math.Pi * 0.25, RAAN: math.Pi * 0.67, Phase: math.Pi * 0.4, Period: 1}},
		{ID: "atlas-3", Name: "ATLAS-3", Color: "#10b981", Orbit: model.OrbitParams{Radius: 8.5, Inclination: math.Pi * 0.1, RAAN: math.Pi * 1.33, Phase: math.Pi * 0.8, Period: 1}},
	}
}

// TargetOrbit is the orbit of the tracked debris object.
func TargetOrbit() model.OrbitParams {
	return model.OrbitParams{
		Radius:      10.5,
		Inclination: math.Pi * 0.18,
		RAAN:        math.Pi * 0.3,
		Phase:       0,
		Period:      1.2,
	}
}

// BackgroundRanges bounds the uniform draws for untracked debris.
// Inclination is drawn from [-InclinationSpan, InclinationSpan].
type BackgroundRanges struct {
	RadiusMin       float64 `json:"radius_min"`
	RadiusMax       float64 `json:"radius_max"`
	InclinationSpan float64 `json:"inclination_span"`
	PeriodMin       float64 `json:"period_min"`
	PeriodMax       float64 `json:"period_max"`
}

// DefaultBackgroundRanges matches the stock scene.
func DefaultBackgroundRanges() BackgroundRanges {
	return BackgroundRanges{
		RadiusMin:       7,
		RadiusMax:       13,
		InclinationSpan: math.Pi * 0.2,
		PeriodMin:       0.8,
		PeriodMax:       2.3,
	}
}

// Validate checks that every draw would produce an admissible orbit.
func (r BackgroundRanges) Validate() error {
	if r.RadiusMin <= 0 || r.RadiusMax < r.RadiusMin {
		return fmt.Errorf("%w: radius range [%v, %v]", model.ErrInvalidOrbit, r.RadiusMin, r.RadiusMax)
	}
	if r.PeriodMin <= 0 || r.PeriodMax < r.PeriodMin {
		return fmt.Errorf("%w: period range [%v, %v]", model.ErrInvalidOrbit, r.PeriodMin, r.PeriodMax)
	}
	if r.InclinationSpan < 0 {
		return fmt.Errorf("%w: negative inclination span %v", model.ErrInvalidOrbit, r.InclinationSpan)
	}
	return nil
}

// NewBackgroundOrbit draws one background orbit. The values are fixed for the
// lifetime of the body; callers keep the result rather than redrawing.
func NewBackgroundOrbit(rng *rand.Rand, r BackgroundRanges) model.OrbitParams {
	return model.OrbitParams{
		Radius:      r.RadiusMin + rng.Float64()*(r.RadiusMax-r.RadiusMin),
		Inclination: (rng.Float64()*2 - 1) * r.InclinationSpan,
		RAAN:        rng.Float64() * 2 * math.Pi,
		Phase:       rng.Float64() * 2 * math.Pi,
		Period:      r.PeriodMin + rng.Float64()*(r.PeriodMax-r.PeriodMin),
	}
}

// NewRand returns the seedable source used for background draws and the star field.
func NewRand(seed uint64) *rand.Rand {
	return rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))
}
