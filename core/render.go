package core

import (
	"context"
	"errors"

	"github.com/signalsfoundry/debris-tracking-scene/model"
)

// ErrSurfaceUnavailable is returned by a RenderSurface that cannot draw the
// current frame (closed terminal, no viewers, lost device). The driver skips
// the frame and tries again on the next one.
var ErrSurfaceUnavailable = errors.New("render surface unavailable")

// RenderSurface is the scene graph and renderer the driver draws into.
// Setup is called once on mount with the static geometry; Render once per
// frame. Implementations must not retain the Frame's slices past Render.
type RenderSurface interface {
	Setup(setup SceneSetup) error
	Render(ctx context.Context, f Frame) error
	Resize(width, height int)
	Dispose() error
}

// BodySetup is the static description of one mesh.
type BodySetup struct {
	ID     string     `json:"id"`
	Handle int        `json:"handle"`
	Name   string     `json:"name"`
	Role   model.Role `json:"role"`
	Color  string     `json:"color"`
}

// PathSetup is a closed orbit polyline fixed at mount time.
type PathSetup struct {
	BodyID  string         `json:"body_id"`
	Color   string         `json:"color"`
	Opacity float64        `json:"opacity"`
	Points  []model.Motion `json:"points"`
}

// LinkSetup is a line primitive with two mutable endpoints.
type LinkSetup struct {
	TrackerID string `json:"tracker_id"`
	Index     int    `json:"index"`
	Color     string `json:"color"`
}

// SceneSetup is everything a surface needs to build its scene graph.
type SceneSetup struct {
	EarthRadius float64           `json:"earth_radius"`
	EarthColor  string            `json:"earth_color"`
	Bodies      []BodySetup       `json:"bodies"`
	Paths       []PathSetup       `json:"paths"`
	Links       []LinkSetup       `json:"links"`
	Stars       []model.Motion    `json:"stars"`
	Camera      model.CameraState `json:"camera"`
}

// BuildSceneSetup lays out the static geometry: one mesh per body, orbit
// paths for the trackers and the target, one link line per tracker.
// Background debris gets no path.
func BuildSceneSetup(bodies []model.BodyDefinition, stars []Vec3, camera model.CameraState) SceneSetup {
	setup := SceneSetup{
		EarthRadius: EarthSceneRadius,
		EarthColor:  ColorEarth,
		Camera:      camera,
	}
	for _, b := range bodies {
		color := b.Color
		if color == "" {
			color = DefaultColor(b.Role)
		}
		setup.Bodies = append(setup.Bodies, BodySetup{ID: b.ID, Handle: b.Handle, Name: b.Name, Role: b.Role, Color: color})

		var opacity float64
		switch b.Role {
		case model.RoleTracker:
			opacity = TrackerPathOpacity
			setup.Links = append(setup.Links, LinkSetup{TrackerID: b.ID, Index: len(setup.Links), Color: color})
		case model.RoleTarget:
			opacity = TargetPathOpacity
		default:
			continue
		}
		path := OrbitPath(b.Orbit, DefaultPathSegments)
		pts := make([]model.Motion, len(path))
		for i, p := range path {
			pts[i] = p.Motion()
		}
		setup.Paths = append(setup.Paths, PathSetup{BodyID: b.ID, Color: color, Opacity: opacity, Points: pts})
	}
	setup.Stars = make([]model.Motion, len(stars))
	for i, s := range stars {
		setup.Stars[i] = s.Motion()
	}
	return setup
}
