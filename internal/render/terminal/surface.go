// Package terminal draws the scene into a tcell screen.
package terminal

import (
	"context"
	"fmt"
	"math"
	"sync"

	"github.com/gdamore/tcell/v2"
	"github.com/lucasb-eyer/go-colorful"

	"github.com/signalsfoundry/debris-tracking-scene/core"
	"github.com/signalsfoundry/debris-tracking-scene/model"
)

// CellAspect is how many times taller a terminal cell is than it is wide.
// The driver is given a viewport in half-row units so the camera aspect
// comes out right.
const CellAspect = 2

const (
	runeStar       = '.'
	runePath       = '·'
	runeLinkActive = '•'
	runeLinkDim    = '·'
	runeTracker    = 'A'
	runeTarget     = 'X'
	runeBackground = '*'
	runePulse      = 'o'
	runePulseLarge = 'O'
	runeEarth      = '█'
	runeEarthBand  = '▓'
)

// Viewport converts a screen size in cells to the width/height handed to
// the driver.
func Viewport(cols, rows int) (width, height int) {
	return cols, rows * CellAspect
}

type bodyStyle struct {
	role  model.Role
	name  string
	color colorful.Color
}

type pathStyle struct {
	points []core.Vec3
	color  colorful.Color
}

// Surface implements core.RenderSurface on a tcell screen.
type Surface struct {
	mu       sync.Mutex
	screen   tcell.Screen
	disposed bool

	space       colorful.Color
	earth       colorful.Color
	earthRadius float64
	hud         colorful.Color

	bodies map[string]bodyStyle
	links  map[string]colorful.Color
	paths  []pathStyle
	stars  []core.Vec3

	canvas *canvas
}

// NewSurface wraps an initialised screen. Dispose finalises it.
func NewSurface(screen tcell.Screen) *Surface {
	space, _ := core.ParseColor(core.ColorSpace)
	hud, _ := core.ParseColor("#e5e7eb")
	return &Surface{
		screen: screen,
		space:  space,
		hud:    hud,
		canvas: newCanvas(0, 0, space),
	}
}

// Setup converts the static geometry into draw styles.
func (s *Surface) Setup(setup core.SceneSetup) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.screen == nil || s.disposed {
		return core.ErrSurfaceUnavailable
	}

	earth, err := core.ParseColor(setup.EarthColor)
	if err != nil {
		return fmt.Errorf("earth: %w", err)
	}
	bodies := make(map[string]bodyStyle, len(setup.Bodies))
	for _, b := range setup.Bodies {
		c, err := core.ParseColor(b.Color)
		if err != nil {
			return fmt.Errorf("body %s: %w", b.ID, err)
		}
		bodies[b.ID] = bodyStyle{role: b.Role, name: b.Name, color: c}
	}
	links := make(map[string]colorful.Color, len(setup.Links))
	for _, l := range setup.Links {
		c, err := core.ParseColor(l.Color)
		if err != nil {
			return fmt.Errorf("link %s: %w", l.TrackerID, err)
		}
		links[l.TrackerID] = c
	}
	paths := make([]pathStyle, 0, len(setup.Paths))
	for _, p := range setup.Paths {
		c, err := core.ParseColor(p.Color)
		if err != nil {
			return fmt.Errorf("path %s: %w", p.BodyID, err)
		}
		pts := make([]core.Vec3, len(p.Points))
		for i, m := range p.Points {
			pts[i] = core.Vec3FromMotion(m)
		}
		paths = append(paths, pathStyle{points: pts, color: core.Fade(c, s.space, p.Opacity)})
	}
	stars := make([]core.Vec3, len(setup.Stars))
	for i, m := range setup.Stars {
		stars[i] = core.Vec3FromMotion(m)
	}

	s.earth = earth
	s.earthRadius = setup.EarthRadius
	s.bodies = bodies
	s.links = links
	s.paths = paths
	s.stars = stars
	return nil
}

// Render draws one frame. The viewport is read from the screen each time,
// so Resize only needs to invalidate what is on the terminal.
func (s *Surface) Render(ctx context.Context, f core.Frame) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.screen == nil || s.disposed {
		return core.ErrSurfaceUnavailable
	}
	cols, rows := s.screen.Size()
	if cols <= 0 || rows <= 0 {
		return core.ErrSurfaceUnavailable
	}
	s.draw(f, cols, rows)
	s.canvas.flush(s.screen)
	s.screen.Show()
	return nil
}

// Resize forces a full repaint on the next Show.
func (s *Surface) Resize(width, height int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.screen == nil || s.disposed {
		return
	}
	s.screen.Sync()
}

// Dispose restores the terminal.
func (s *Surface) Dispose() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.disposed {
		return nil
	}
	s.disposed = true
	if s.screen != nil {
		s.screen.Fini()
	}
	return nil
}

// draw must be called with s.mu held.
func (s *Surface) draw(f core.Frame, cols, rows int) {
	c := s.canvas
	c.reset(cols, rows)
	pr := projector{cam: f.Camera, cols: cols, rows: rows}

	for _, st := range s.stars {
		if x, y, d, ok := pr.cell(st); ok {
			c.plot(x, y, runeStar, core.Fade(s.hud, s.space, 0.5), d)
		}
	}

	s.drawEarth(pr, f.EarthRotation)

	for _, p := range s.paths {
		s.drawPolyline(pr, p.points, runePath, p.color)
	}

	for _, l := range f.Links {
		base, ok := s.links[l.TrackerID]
		if !ok {
			continue
		}
		r := runeLinkDim
		if l.Active {
			r = runeLinkActive
		}
		color := core.Fade(base, s.space, l.Opacity)
		a, b := core.Vec3FromMotion(l.EndpointA), core.Vec3FromMotion(l.EndpointB)
		s.drawSegment(pr, a, b, r, color)

		if l.Pulse.Visible {
			if x, y, d, ok := pr.cell(core.Vec3FromMotion(l.Pulse.Position)); ok {
				pulse := runePulse
				if l.Pulse.Scale > 1.25 {
					pulse = runePulseLarge
				}
				c.plot(x, y, pulse, base, d)
			}
		}
	}

	for _, b := range f.Bodies {
		style, ok := s.bodies[b.ID]
		if !ok {
			continue
		}
		x, y, d, ok := pr.cell(core.Vec3FromMotion(b.Position))
		if !ok {
			continue
		}
		switch style.role {
		case model.RoleTracker:
			c.plot(x, y, runeTracker, style.color, d)
			c.text(x+2, y, style.name, core.Fade(style.color, s.space, 0.8))
		case model.RoleTarget:
			c.plot(x, y, runeTarget, glowColor(style.color, s.space, f.TargetGlow), d)
			c.text(x+2, y, style.name, core.Fade(style.color, s.space, 0.8))
		default:
			c.plot(x, y, runeBackground, style.color, d)
		}
	}

	s.drawHUD(f, cols, rows)
}

func (s *Surface) drawEarth(pr projector, rotation float64) {
	if s.earthRadius <= 0 {
		return
	}
	cx, cy, cd, ok := pr.project(core.Vec3{})
	if !ok || cd <= s.earthRadius {
		return
	}
	rx, ry := pr.radius(s.earthRadius, cd)
	if rx <= 0 || ry <= 0 {
		return
	}
	band := core.Fade(s.earth, s.space, 0.7)
	c := s.canvas
	for y := int(math.Floor(cy - ry)); y <= int(math.Ceil(cy+ry)); y++ {
		for x := int(math.Floor(cx - rx)); x <= int(math.Ceil(cx+rx)); x++ {
			nx := (float64(x) + 0.5 - cx) / rx
			ny := (float64(y) + 0.5 - cy) / ry
			rr := nx*nx + ny*ny
			if rr > 1 {
				continue
			}
			nz := math.Sqrt(1 - rr)
			lon := math.Atan2(nx, nz) + rotation
			r, color := runeEarth, s.earth
			if int(math.Floor(lon/(math.Pi/6)))%2 == 0 {
				r, color = runeEarthBand, band
			}
			c.plot(x, y, r, color, cd-s.earthRadius*nz)
		}
	}
}

func (s *Surface) drawPolyline(pr projector, pts []core.Vec3, r rune, color colorful.Color) {
	for i := range pts {
		s.drawSegment(pr, pts[i], pts[(i+1)%len(pts)], r, color)
	}
}

func (s *Surface) drawSegment(pr projector, a, b core.Vec3, r rune, color colorful.Color) {
	ax, ay, ad, okA := pr.cell(a)
	bx, by, bd, okB := pr.cell(b)
	if !okA || !okB {
		return
	}
	s.canvas.line(ax, ay, bx, by, ad, bd, r, color)
}

func (s *Surface) drawHUD(f core.Frame, cols, rows int) {
	state := "playing"
	if !f.Playing {
		state = "paused"
	}
	top := fmt.Sprintf(" t=%.1f  %s  links %d/%d", f.Elapsed, state, f.ActiveLinks(), len(f.Links))
	if f.TargetSub != nil {
		top += fmt.Sprintf("  target %s %s %.0f km",
			formatLat(f.TargetSub.LatitudeDeg), formatLon(f.TargetSub.LongitudeDeg), f.TargetSub.AltitudeKm)
	}
	s.canvas.text(0, 0, truncate(top, cols), s.hud)
	if rows > 1 {
		s.canvas.text(0, rows-1, truncate(" [space] pause/resume  [q] quit", cols), core.Fade(s.hud, s.space, 0.6))
	}
}

// glowColor brightens the target toward white above glow 1 and dims it
// toward the background below.
func glowColor(base, bg colorful.Color, glow float64) colorful.Color {
	switch {
	case glow > 1:
		return base.BlendRgb(colorful.Color{R: 1, G: 1, B: 1}, math.Min((glow-1)*2, 1)).Clamped()
	case glow < 1:
		return core.Fade(base, bg, 1-math.Min((1-glow)*2, 1))
	default:
		return base
	}
}

func formatLat(deg float64) string {
	if deg < 0 {
		return fmt.Sprintf("%.1f°S", -deg)
	}
	return fmt.Sprintf("%.1f°N", deg)
}

func formatLon(deg float64) string {
	if deg < 0 {
		return fmt.Sprintf("%.1f°W", -deg)
	}
	return fmt.Sprintf("%.1f°E", deg)
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) > n {
		return string(r[:n])
	}
	return s
}

// projector maps scene points to cells through the frame's camera.
type projector struct {
	cam        model.CameraState
	cols, rows int
}

// project returns fractional cell coordinates.
func (p projector) project(v core.Vec3) (x, y, depth float64, ok bool) {
	w, h := Viewport(p.cols, p.rows)
	sx, sy, d, ok := core.Project(p.cam, v, w, h)
	if !ok {
		return 0, 0, d, false
	}
	return sx, sy / CellAspect, d, true
}

func (p projector) cell(v core.Vec3) (x, y int, depth float64, ok bool) {
	fx, fy, d, ok := p.project(v)
	if !ok {
		return 0, 0, d, false
	}
	return int(math.Floor(fx)), int(math.Floor(fy)), d, true
}

// radius is the on-screen half extents, in cells, of a sphere of radius r
// at the given depth.
func (p projector) radius(r, depth float64) (rx, ry float64) {
	w, h := Viewport(p.cols, p.rows)
	aspect := p.cam.Aspect
	if aspect <= 0 {
		aspect = float64(w) / float64(h)
	}
	tanHalf := math.Tan(p.cam.FOV * math.Pi / 360)
	if tanHalf <= 0 {
		return 0, 0
	}
	rx = r / (depth * tanHalf * aspect) * float64(w) / 2
	ry = r / (depth * tanHalf) * float64(h) / 2 / CellAspect
	return rx, ry
}
