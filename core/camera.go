package core

import (
	"math"

	"github.com/signalsfoundry/debris-tracking-scene/model"
)

// CameraRig is the fixed orbit the camera follows around the scene origin.
type CameraRig struct {
	OrbitRate       float64 // radians of camera angle per elapsed unit
	Radius          float64
	HeightBase      float64
	HeightAmplitude float64
	HeightRate      float64
	FOV             float64 // vertical, degrees
	Near            float64
	Far             float64
}

// DefaultCameraRig returns the stock slow fly-around.
func DefaultCameraRig() CameraRig {
	return CameraRig{
		OrbitRate:       0.08,
		Radius:          38,
		HeightBase:      18,
		HeightAmplitude: 5,
		HeightRate:      0.15,
		FOV:             60,
		Near:            0.1,
		Far:             1000,
	}
}

// State derives the camera for the given elapsed time. The camera always
// looks at the origin.
func (r CameraRig) State(elapsed, aspect float64) model.CameraState {
	angle := elapsed * r.OrbitRate
	return model.CameraState{
		Angle:           angle,
		Radius:          r.Radius,
		HeightBase:      r.HeightBase,
		HeightAmplitude: r.HeightAmplitude,
		Position: model.Motion{
			X: math.Sin(angle) * r.Radius,
			Y: r.HeightBase + math.Sin(elapsed*r.HeightRate)*r.HeightAmplitude,
			Z: math.Cos(angle) * r.Radius,
		},
		FOV:    r.FOV,
		Aspect: aspect,
		Near:   r.Near,
		Far:    r.Far,
	}
}

// Initial is the camera before the first frame runs.
func (r CameraRig) Initial(aspect float64) model.CameraState {
	cam := r.State(0, aspect)
	cam.Position = model.Motion{X: 0, Y: 20, Z: 35}
	return cam
}

// Project maps a scene point to viewport coordinates (origin top-left, y
// down) for a width×height viewport. depth is the distance along the view
// axis. ok is false for points outside the near/far range; points to the
// side of the frustum still project and callers clip them.
func Project(cam model.CameraState, p Vec3, width, height int) (sx, sy, depth float64, ok bool) {
	if width <= 0 || height <= 0 {
		return 0, 0, 0, false
	}
	eye := Vec3FromMotion(cam.Position)
	forward := Vec3FromMotion(cam.Target).Sub(eye).Normalize()
	right := forward.Cross(Vec3{Y: 1}).Normalize()
	if right == (Vec3{}) {
		// Looking straight up or down; pick any horizontal axis.
		right = Vec3{X: 1}
	}
	up := right.Cross(forward)

	d := p.Sub(eye)
	z := d.Dot(forward)
	if z <= cam.Near || (cam.Far > 0 && z >= cam.Far) {
		return 0, 0, z, false
	}

	aspect := cam.Aspect
	if aspect <= 0 {
		aspect = float64(width) / float64(height)
	}
	tanHalf := math.Tan(cam.FOV * math.Pi / 360)
	ndcX := d.Dot(right) / (z * tanHalf * aspect)
	ndcY := d.Dot(up) / (z * tanHalf)

	sx = (ndcX + 1) / 2 * float64(width)
	sy = (1 - ndcY) / 2 * float64(height)
	return sx, sy, z, true
}
