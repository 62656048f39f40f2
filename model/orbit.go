package model

import (
	"errors"
	"fmt"
	"math"
)

// DefaultPeriod is used when a body does not specify an angular period.
const DefaultPeriod = 1.0

// ErrInvalidOrbit is returned when orbit parameters cannot be propagated.
var ErrInvalidOrbit = errors.New("invalid orbit parameters")

// OrbitParams describes a simplified circular orbit. Angles are radians;
// Period is time units per radian of argument, so one full revolution takes
// Period*2π time units.
type OrbitParams struct {
	Radius      float64 `json:"radius"`
	Inclination float64 `json:"inclination"`
	RAAN        float64 `json:"raan"`
	Phase       float64 `json:"phase"`
	Period      float64 `json:"period"`
}

// WithDefaults returns a copy with an unspecified (zero) period replaced by
// DefaultPeriod.
func (o OrbitParams) WithDefaults() OrbitParams {
	if o.Period == 0 {
		o.Period = DefaultPeriod
	}
	return o
}

// Validate reports whether the parameters can be admitted to a scene.
// It requires Radius > 0, Period > 0 and finite angles.
func (o OrbitParams) Validate() error {
	for name, v := range map[string]float64{
		"radius":      o.Radius,
		"inclination": o.Inclination,
		"raan":        o.RAAN,
		"phase":       o.Phase,
		"period":      o.Period,
	} {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return fmt.Errorf("%w: %s is not finite", ErrInvalidOrbit, name)
		}
	}
	if o.Radius <= 0 {
		return fmt.Errorf("%w: radius %v must be positive", ErrInvalidOrbit, o.Radius)
	}
	if o.Period <= 0 {
		return fmt.Errorf("%w: period %v must be positive", ErrInvalidOrbit, o.Period)
	}
	return nil
}
