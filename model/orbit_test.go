package model

import (
	"errors"
	"math"
	"testing"
)

func TestOrbitParamsWithDefaults(t *testing.T) {
	o := OrbitParams{Radius: 9}.WithDefaults()
	if o.Period != DefaultPeriod {
		t.Fatalf("Period = %v, want %v", o.Period, DefaultPeriod)
	}

	o = OrbitParams{Radius: 10.5, Period: 1.2}.WithDefaults()
	if o.Period != 1.2 {
		t.Fatalf("explicit period overwritten: %v", o.Period)
	}
}

func TestOrbitParamsValidate(t *testing.T) {
	cases := []struct {
		name string
		o    OrbitParams
		ok   bool
	}{
		{"valid", OrbitParams{Radius: 9, Inclination: 0.4, Period: 1}, true},
		{"zero radius", OrbitParams{Radius: 0, Period: 1}, false},
		{"negative radius", OrbitParams{Radius: -1, Period: 1}, false},
		{"zero period", OrbitParams{Radius: 9, Period: 0}, false},
		{"negative period", OrbitParams{Radius: 9, Period: -2}, false},
		{"nan phase", OrbitParams{Radius: 9, Period: 1, Phase: math.NaN()}, false},
		{"inf raan", OrbitParams{Radius: 9, Period: 1, RAAN: math.Inf(1)}, false},
	}
	for _, tc := range cases {
		err := tc.o.Validate()
		if tc.ok && err != nil {
			t.Errorf("%s: unexpected error %v", tc.name, err)
		}
		if !tc.ok {
			if err == nil {
				t.Errorf("%s: expected error", tc.name)
			} else if !errors.Is(err, ErrInvalidOrbit) {
				t.Errorf("%s: error %v does not wrap ErrInvalidOrbit", tc.name, err)
			}
		}
	}
}

func TestParseRole(t *testing.T) {
	for in, want := range map[string]Role{
		"tracker":    RoleTracker,
		" Target ":   RoleTarget,
		"background": RoleBackground,
		"":           RoleBackground,
	} {
		got, ok := ParseRole(in)
		if !ok || got != want {
			t.Errorf("ParseRole(%q) = %v,%v want %v,true", in, got, ok, want)
		}
	}
	if _, ok := ParseRole("ground-station"); ok {
		t.Errorf("expected unknown role to be rejected")
	}
	if RoleTracker.String() != "tracker" {
		t.Errorf("RoleTracker.String() = %q", RoleTracker.String())
	}
}
