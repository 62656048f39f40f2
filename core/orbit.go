package core

import (
	"math"

	"github.com/signalsfoundry/debris-tracking-scene/model"
)

const (
	// DefaultPathSegments is the number of chords used for orbit path polylines.
	DefaultPathSegments = 128
	// DefaultHeadingLookahead is how far ahead (in orbit time) a body looks to face its direction of travel.
	DefaultHeadingLookahead = 0.01
)

// OrbitalPosition returns the scene position of a body on a circular orbit at
// orbit time t. The orbit is drawn in the XZ plane, tilted by inclination about
// X and then turned by RAAN about the vertical Y axis. A zero period is treated
// as model.DefaultPeriod.
func OrbitalPosition(o model.OrbitParams, t float64) Vec3 {
	period := o.Period
	if period == 0 {
		period = model.DefaultPeriod
	}
	angle := t/period + o.Phase
	return planePoint(o, angle)
}

func planePoint(o model.OrbitParams, angle float64) Vec3 {
	x := math.Cos(angle) * o.Radius
	z := math.Sin(angle) * o.Radius

	// Inclination about X; y0 is always zero.
	yInclined := -z * math.Sin(o.Inclination)
	zInclined := z * math.Cos(o.Inclination)

	// RAAN about Y.
	sinR, cosR := math.Sincos(o.RAAN)
	return Vec3{
		X: x*cosR + zInclined*sinR,
		Y: yInclined,
		Z: -x*sinR + zInclined*cosR,
	}
}

// OrbitPath samples one closed revolution as segments+1 points; the last point
// repeats the first. Phase is ignored because the path is the same loop for
// every phase. segments <= 0 uses DefaultPathSegments.
func OrbitPath(o model.OrbitParams, segments int) []Vec3 {
	if segments <= 0 {
		segments = DefaultPathSegments
	}
	pts := make([]Vec3, 0, segments+1)
	for i := 0; i <= segments; i++ {
		angle := float64(i) / float64(segments) * 2 * math.Pi
		pts = append(pts, planePoint(o, angle))
	}
	return pts
}

// HeadingPoint is the position a body faces at orbit time t: its own position
// a short lookahead later.
func HeadingPoint(o model.OrbitParams, t, lookahead float64) Vec3 {
	if lookahead <= 0 {
		lookahead = DefaultHeadingLookahead
	}
	return OrbitalPosition(o, t+lookahead)
}

// LookRotation returns Euler angles (pitch about X, yaw about Y, roll 0) that
// turn a body at from so its +Z axis points at to.
func LookRotation(from, to Vec3) model.Motion {
	d := to.Sub(from)
	if d.Norm() == 0 {
		return model.Motion{}
	}
	yaw := math.Atan2(d.X, d.Z)
	pitch := -math.Atan2(d.Y, math.Hypot(d.X, d.Z))
	return model.Motion{X: pitch, Y: yaw}
}
