package core

import (
	"math"

	"github.com/signalsfoundry/debris-tracking-scene/model"
)

// EarthSceneRadius is the radius of the Earth sphere drawn at the scene origin.
const EarthSceneRadius = 5.0

// Vec3 is a point or direction in scene units. Y is up.
type Vec3 struct {
	X, Y, Z float64
}

// Vec3FromMotion converts a stored model position.
func Vec3FromMotion(m model.Motion) Vec3 {
	return Vec3{X: m.X, Y: m.Y, Z: m.Z}
}

// Motion converts v for storage in the model.
func (v Vec3) Motion() model.Motion {
	return model.Motion{X: v.X, Y: v.Y, Z: v.Z}
}

// DistanceTo returns the straight-line distance between two points.
func (v Vec3) DistanceTo(other Vec3) float64 {
	dx := v.X - other.X
	dy := v.Y - other.Y
	dz := v.Z - other.Z
	return math.Sqrt(dx*dx + dy*dy + dz*dz)
}

// Norm returns the Euclidean norm of the vector.
func (v Vec3) Norm() float64 {
	return math.Sqrt(v.X*v.X + v.Y*v.Y + v.Z*v.Z)
}

// Add returns v + other.
func (v Vec3) Add(other Vec3) Vec3 {
	return Vec3{X: v.X + other.X, Y: v.Y + other.Y, Z: v.Z + other.Z}
}

// Sub returns v - other.
func (v Vec3) Sub(other Vec3) Vec3 {
	return Vec3{X: v.X - other.X, Y: v.Y - other.Y, Z: v.Z - other.Z}
}

// Scale returns v * s.
func (v Vec3) Scale(s float64) Vec3 {
	return Vec3{X: v.X * s, Y: v.Y * s, Z: v.Z * s}
}

// Dot returns the dot product of two vectors.
func (v Vec3) Dot(other Vec3) float64 {
	return v.X*other.X + v.Y*other.Y + v.Z*other.Z
}

// Cross returns v × other.
func (v Vec3) Cross(other Vec3) Vec3 {
	return Vec3{
		X: v.Y*other.Z - v.Z*other.Y,
		Y: v.Z*other.X - v.X*other.Z,
		Z: v.X*other.Y - v.Y*other.X,
	}
}

// Normalize returns the unit vector along v, or the zero vector if v is zero.
func (v Vec3) Normalize() Vec3 {
	n := v.Norm()
	if n == 0 {
		return Vec3{}
	}
	return v.Scale(1 / n)
}

// Lerp interpolates from a to b; t=0 yields a and t=1 yields b.
func Lerp(a, b Vec3, t float64) Vec3 {
	return Vec3{
		X: a.X + (b.X-a.X)*t,
		Y: a.Y + (b.Y-a.Y)*t,
		Z: a.Z + (b.Z-a.Z)*t,
	}
}

// hasLineOfSight checks whether the straight segment between p1 and p2
// clears a sphere of the given radius centred at the origin.
func hasLineOfSight(p1, p2 Vec3, radius float64) bool {
	v := p2.Sub(p1)
	a := v.Dot(v)
	if a == 0 {
		// Degenerate case: same point. Outside the sphere counts as visible.
		return p1.Dot(p1) > radius*radius
	}

	// Closest point on the segment to the origin.
	// t* minimises |p1 + t v|^2 over t ∈ ℝ.
	t := -p1.Dot(v) / a
	if t < 0 {
		t = 0
	} else if t > 1 {
		t = 1
	}

	closest := Vec3{
		X: p1.X + v.X*t,
		Y: p1.Y + v.Y*t,
		Z: p1.Z + v.Z*t,
	}
	return closest.Dot(closest) > radius*radius
}
