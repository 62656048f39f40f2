package core

import (
	"math"
	"testing"
)

func TestSubPointEquatorial(t *testing.T) {
	sp := SubPointOf(Vec3{X: 10.5}, 0)
	if math.Abs(sp.LatitudeDeg) > 1e-9 || math.Abs(sp.LongitudeDeg) > 1e-9 {
		t.Fatalf("sub-point = %+v, want (0, 0)", sp)
	}
	wantAlt := 10.5/EarthSceneRadius*EarthEquatorialRadiusKm - EarthEquatorialRadiusKm
	if math.Abs(sp.AltitudeKm-wantAlt) > 1e-6 {
		t.Fatalf("altitude = %v km, want %v", sp.AltitudeKm, wantAlt)
	}
}

func TestSubPointFollowsEarthRotation(t *testing.T) {
	sp := SubPointOf(Vec3{X: 9}, math.Pi/2)
	if math.Abs(sp.LongitudeDeg+90) > 1e-9 {
		t.Fatalf("longitude = %v, want -90 after a quarter turn", sp.LongitudeDeg)
	}
}

func TestSubPointSceneAxes(t *testing.T) {
	// Scene up is the pole.
	if sp := SubPointOf(Vec3{Y: 9}, 0); sp.LatitudeDeg < 89.9 {
		t.Fatalf("latitude under +Y = %v, want ≈90", sp.LatitudeDeg)
	}
	// Scene -Z maps to ECI +Y, 90° east.
	if sp := SubPointOf(Vec3{Z: -9}, 0); math.Abs(sp.LongitudeDeg-90) > 1e-9 {
		t.Fatalf("longitude under -Z = %v, want 90", sp.LongitudeDeg)
	}
}

func TestWrapDegrees(t *testing.T) {
	cases := map[float64]float64{0: 0, 180: 180, -180: 180, 190: -170, -190: 170, 725: 5}
	for in, want := range cases {
		if got := wrapDegrees(in); math.Abs(got-want) > 1e-9 {
			t.Errorf("wrapDegrees(%v) = %v, want %v", in, got, want)
		}
	}
}
