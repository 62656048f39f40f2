package core

import (
	"math"
	"testing"

	"github.com/signalsfoundry/debris-tracking-scene/model"
)

func TestCameraRigState(t *testing.T) {
	rig := DefaultCameraRig()

	cam := rig.State(0, 2)
	if cam.Position != (model.Motion{X: 0, Y: 18, Z: 38}) {
		t.Fatalf("camera at t=0 = %+v, want (0,18,38)", cam.Position)
	}
	if cam.Target != (model.Motion{}) || cam.Aspect != 2 || cam.FOV != 60 {
		t.Fatalf("camera = %+v", cam)
	}

	e := 10.0
	cam = rig.State(e, 1)
	angle := e * 0.08
	want := model.Motion{X: math.Sin(angle) * 38, Y: 18 + math.Sin(e*0.15)*5, Z: math.Cos(angle) * 38}
	if cam.Position != want {
		t.Fatalf("camera at t=%v = %+v, want %+v", e, cam.Position, want)
	}
	if r := math.Hypot(cam.Position.X, cam.Position.Z); math.Abs(r-38) > 1e-9 {
		t.Fatalf("horizontal radius = %v, want 38", r)
	}
}

func TestCameraHeightStaysInBand(t *testing.T) {
	rig := DefaultCameraRig()
	for e := 0.0; e < 100; e += 0.37 {
		y := rig.State(e, 1).Position.Y
		if y < 13-1e-9 || y > 23+1e-9 {
			t.Fatalf("height %v outside [13, 23] at t=%v", y, e)
		}
	}
}

func TestProjectCentreAndSides(t *testing.T) {
	cam := DefaultCameraRig().State(0, 2) // at (0,18,38) looking at origin
	w, h := 200, 100

	sx, sy, depth, ok := Project(cam, Vec3{}, w, h)
	if !ok {
		t.Fatalf("origin not projected")
	}
	if math.Abs(sx-100) > 1e-9 || math.Abs(sy-50) > 1e-9 {
		t.Fatalf("origin projected to (%v, %v), want centre", sx, sy)
	}
	if want := math.Hypot(18, 38); math.Abs(depth-want) > 1e-9 {
		t.Fatalf("depth = %v, want %v", depth, want)
	}

	rx, _, _, ok := Project(cam, Vec3{X: 5}, w, h)
	if !ok || rx <= sx {
		t.Fatalf("+X should project right of centre: %v", rx)
	}
	_, uy, _, ok := Project(cam, Vec3{Y: 5}, w, h)
	if !ok || uy >= sy {
		t.Fatalf("+Y should project above centre: %v", uy)
	}
}

func TestProjectRejectsBehindCamera(t *testing.T) {
	cam := DefaultCameraRig().State(0, 1)
	if _, _, _, ok := Project(cam, Vec3{Y: 18, Z: 60}, 80, 40); ok {
		t.Fatalf("point behind the camera projected")
	}
	if _, _, _, ok := Project(cam, Vec3{}, 0, 40); ok {
		t.Fatalf("zero-width viewport projected")
	}
}
