package core

import (
	"math"

	satellite "github.com/joshuaferrara/go-satellite"
)

// EarthEquatorialRadiusKm is the WGS-84 equatorial radius the scene Earth
// sphere stands in for.
const EarthEquatorialRadiusKm = 6378.137

// SubPoint is the geodetic point directly beneath a body.
type SubPoint struct {
	LatitudeDeg  float64 `json:"lat"`
	LongitudeDeg float64 `json:"lon"`
	AltitudeKm   float64 `json:"alt_km"`
}

// SubPointOf maps a scene position to the point under it on the rotating
// scene Earth. Scene units scale so EarthSceneRadius is the equatorial
// radius; scene Y is the polar axis. earthRotation is the Earth mesh's spin
// angle and plays the role of sidereal time.
func SubPointOf(p Vec3, earthRotation float64) SubPoint {
	const kmPerUnit = EarthEquatorialRadiusKm / EarthSceneRadius

	// Scene (x, y-up, z) to ECI (x, y, z-up) keeping a right-handed frame.
	eci := satellite.Vector3{
		X: p.X * kmPerUnit,
		Y: -p.Z * kmPerUnit,
		Z: p.Y * kmPerUnit,
	}
	alt, _, ll := satellite.ECIToLLA(eci, earthRotation)

	return SubPoint{
		LatitudeDeg:  ll.Latitude * 180 / math.Pi,
		LongitudeDeg: wrapDegrees(ll.Longitude * 180 / math.Pi),
		AltitudeKm:   alt,
	}
}

// wrapDegrees folds an angle into (-180, 180].
func wrapDegrees(d float64) float64 {
	d = math.Mod(d, 360)
	if d > 180 {
		d -= 360
	} else if d <= -180 {
		d += 360
	}
	return d
}
