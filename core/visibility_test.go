package core

import (
	"math"
	"testing"

	"github.com/signalsfoundry/debris-tracking-scene/model"
)

func TestEvaluate_StrictThreshold(t *testing.T) {
	ve := NewVisibilityEvaluator()
	tracker := Vec3{}

	cases := []struct {
		dist   float64
		active bool
	}{
		{20, false},
		{15.000001, false},
		{15, false}, // boundary is inactive under strict <
		{14.999999, true},
		{3, true},
		{0, true}, // coincident counts as active
	}
	for _, tc := range cases {
		link := ve.Evaluate("atlas-1", 0, tracker, Vec3{X: tc.dist}, 0, model.ObservationLink{})
		if link.Active != tc.active {
			t.Errorf("distance %v: active=%v, want %v", tc.dist, link.Active, tc.active)
		}
	}
}

func TestEvaluate_MonotonicInDistance(t *testing.T) {
	ve := NewVisibilityEvaluator()
	flips := 0
	prev := false
	for d := 30.0; d >= 0; d -= 0.25 {
		active := ve.Evaluate("atlas-1", 0, Vec3{}, Vec3{Z: d}, 0, model.ObservationLink{}).Active
		if active != prev {
			flips++
			if d >= ve.RangeThreshold {
				t.Fatalf("flipped to active at distance %v", d)
			}
		}
		prev = active
	}
	if flips != 1 {
		t.Fatalf("expected exactly one flip while approaching, got %d", flips)
	}
}

func TestEvaluate_ActiveLinkLayout(t *testing.T) {
	ve := NewVisibilityEvaluator()
	tracker := Vec3{X: 9}
	target := Vec3{X: 9, Y: 4}
	link := ve.Evaluate("atlas-2", 1, tracker, target, 0.1, model.ObservationLink{})

	if link.TrackerID != "atlas-2" || link.Index != 1 {
		t.Fatalf("identity not carried: %+v", link)
	}
	if link.EndpointA != tracker.Motion() || link.EndpointB != target.Motion() {
		t.Fatalf("endpoints = %+v/%+v", link.EndpointA, link.EndpointB)
	}
	if link.Opacity != ve.VisibleOpacity {
		t.Fatalf("opacity = %v, want %v", link.Opacity, ve.VisibleOpacity)
	}
	if !link.Pulse.Visible {
		t.Fatalf("pulse hidden on active link")
	}
	// pulseT = 2*0.1 + 1*0.3 = 0.5: halfway, at peak scale.
	wantPos := Lerp(tracker, target, 0.5).Motion()
	if math.Abs(link.Pulse.Position.Y-wantPos.Y) > 1e-12 || math.Abs(link.Pulse.Scale-1.5) > 1e-12 {
		t.Fatalf("pulse = %+v, want position %+v scale 1.5", link.Pulse, wantPos)
	}
}

func TestEvaluate_InactiveRetainsEndpoints(t *testing.T) {
	ve := NewVisibilityEvaluator()
	prev := ve.Evaluate("atlas-1", 0, Vec3{X: 1}, Vec3{X: 2}, 0, model.ObservationLink{})
	if !prev.Active {
		t.Fatalf("setup link should be active")
	}

	link := ve.Evaluate("atlas-1", 0, Vec3{X: -20}, Vec3{X: 20}, 0.3, prev)
	if link.Active {
		t.Fatalf("link should be inactive at distance 40")
	}
	if link.EndpointA != prev.EndpointA || link.EndpointB != prev.EndpointB {
		t.Fatalf("endpoints not retained: %+v", link)
	}
	if link.Opacity != ve.DimOpacity {
		t.Fatalf("opacity = %v, want dim %v", link.Opacity, ve.DimOpacity)
	}
	if link.Pulse.Visible {
		t.Fatalf("pulse should be hidden on inactive link")
	}

	fresh := ve.Evaluate("atlas-1", 0, Vec3{X: -20}, Vec3{X: 20}, 0, model.ObservationLink{})
	if fresh.EndpointA != (model.Motion{}) || fresh.EndpointB != (model.Motion{}) {
		t.Fatalf("never-active link should have origin endpoints, got %+v", fresh)
	}
}

func TestEvaluate_LineOfSightOption(t *testing.T) {
	ve := NewVisibilityEvaluator()
	a, b := Vec3{X: 7}, Vec3{X: -7}
	if !ve.CanObserve(a, b) {
		t.Fatalf("range-only rule should accept 14 units")
	}
	ve.RequireLineOfSight = true
	if ve.CanObserve(a, b) {
		t.Fatalf("Earth should block the chord through the origin")
	}
}

func TestPulseParamPeriodic(t *testing.T) {
	for _, tm := range []float64{0.1, 0.33, 1.2, 7.05} {
		for index := 0; index < 3; index++ {
			a := PulseParam(tm, 2, index, 0.3)
			b := PulseParam(tm+0.5, 2, index, 0.3)
			// Compare on the circle so a wrap near 1 does not fail the check.
			d := math.Abs(a - b)
			if d > 1e-9 && math.Abs(d-1) > 1e-9 {
				t.Fatalf("PulseParam(%v, idx %d) = %v, +0.5 gives %v", tm, index, a, b)
			}
			if a < 0 || a >= 1 {
				t.Fatalf("PulseParam out of [0,1): %v", a)
			}
		}
	}
}

func TestPulseParamStaggered(t *testing.T) {
	a := PulseParam(0.1, 2, 0, 0.3)
	b := PulseParam(0.1, 2, 1, 0.3)
	if math.Abs(a-b) < 1e-6 {
		t.Fatalf("links should not pulse in lockstep: %v vs %v", a, b)
	}
}

func TestPulseScaleEnds(t *testing.T) {
	if s := PulseScale(0); math.Abs(s-1) > 1e-12 {
		t.Fatalf("PulseScale(0) = %v, want 1", s)
	}
	if s := PulseScale(1); math.Abs(s-1) > 1e-12 {
		t.Fatalf("PulseScale(1) = %v, want 1", s)
	}
	if s := PulseScale(0.5); math.Abs(s-1.5) > 1e-12 {
		t.Fatalf("PulseScale(0.5) = %v, want 1.5", s)
	}
}
