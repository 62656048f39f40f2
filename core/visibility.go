package core

import (
	"math"

	"github.com/signalsfoundry/debris-tracking-scene/model"
)

// VisibilityEvaluator decides whether a tracker currently observes the target
// and lays out the link and its pulse marker.
type VisibilityEvaluator struct {
	// RangeThreshold is the strict upper bound on tracker–target distance.
	RangeThreshold float64 `json:"range_threshold"`

	// VisibleOpacity and DimOpacity are the link opacities when active / inactive.
	VisibleOpacity float64 `json:"visible_opacity"`
	DimOpacity     float64 `json:"dim_opacity"`

	// PulseRate is pulse sweeps per time unit; PulseOffset staggers links by index.
	PulseRate   float64 `json:"pulse_rate"`
	PulseOffset float64 `json:"pulse_offset"`

	// RequireLineOfSight additionally requires the link to clear the Earth sphere.
	RequireLineOfSight bool `json:"require_line_of_sight"`
}

// NewVisibilityEvaluator returns the evaluator used by the stock scene.
func NewVisibilityEvaluator() *VisibilityEvaluator {
	return &VisibilityEvaluator{
		RangeThreshold: 15,
		VisibleOpacity: 0.6,
		DimOpacity:     0.1,
		PulseRate:      2,
		PulseOffset:    0.3,
	}
}

// CanObserve applies the range rule (and, if enabled, Earth occlusion).
// Coincident positions are observable.
func (ve *VisibilityEvaluator) CanObserve(tracker, target Vec3) bool {
	if tracker.DistanceTo(target) >= ve.RangeThreshold {
		return false
	}
	if ve.RequireLineOfSight && !hasLineOfSight(tracker, target, EarthSceneRadius) {
		return false
	}
	return true
}

// Evaluate recomputes the link from tracker trackerID (the index-th tracker)
// to the target at time t. prev is the link from the previous frame; an
// inactive link keeps prev's endpoints and hides its pulse.
func (ve *VisibilityEvaluator) Evaluate(trackerID string, index int, tracker, target Vec3, t float64, prev model.ObservationLink) model.ObservationLink {
	link := model.ObservationLink{
		TrackerID: trackerID,
		Index:     index,
		EndpointA: prev.EndpointA,
		EndpointB: prev.EndpointB,
	}
	if !ve.CanObserve(tracker, target) {
		link.Opacity = ve.DimOpacity
		return link
	}

	link.Active = true
	link.EndpointA = tracker.Motion()
	link.EndpointB = target.Motion()
	link.Opacity = ve.VisibleOpacity

	pt := PulseParam(t, ve.PulseRate, index, ve.PulseOffset)
	link.Pulse = model.PulseMarker{
		Position: Lerp(tracker, target, pt).Motion(),
		Scale:    PulseScale(pt),
		Visible:  true,
	}
	return link
}

// PulseParam is the pulse position along a link in [0, 1): a forward sweep
// from tracker to target that restarts every 1/rate time units.
func PulseParam(t, rate float64, index int, offset float64) float64 {
	v := math.Mod(t*rate+float64(index)*offset, 1)
	if v < 0 {
		v += 1
	}
	return v
}

// PulseScale grows the marker mid-sweep and returns to 1 at both ends.
func PulseScale(pulseT float64) float64 {
	return 1 + math.Sin(pulseT*math.Pi)*0.5
}
