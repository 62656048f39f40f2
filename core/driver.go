package core

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/signalsfoundry/debris-tracking-scene/internal/logging"
	"github.com/signalsfoundry/debris-tracking-scene/kb"
	"github.com/signalsfoundry/debris-tracking-scene/timectrl"
)

// ErrDisposed is returned when mounting a driver that has been torn down.
var ErrDisposed = errors.New("scene driver disposed")

// DriverState is the lifecycle state of a Driver.
type DriverState int

const (
	DriverStopped DriverState = iota
	DriverRunning
	DriverDisposed
)

func (s DriverState) String() string {
	switch s {
	case DriverRunning:
		return "running"
	case DriverDisposed:
		return "disposed"
	default:
		return "stopped"
	}
}

// FrameRecorder receives per-frame measurements. observability.SceneCollector
// implements it.
type FrameRecorder interface {
	ObserveFrame(compute time.Duration, elapsed float64, playing bool, activeLinks int)
	IncSkippedFrame(reason string)
}

type noopRecorder struct{}

func (noopRecorder) ObserveFrame(time.Duration, float64, bool, int) {}
func (noopRecorder) IncSkippedFrame(string)                         {}

// Driver owns the scene state and runs the per-frame loop on a host-provided
// scheduler: each frame advances the clock (while playing), moves every body,
// re-evaluates the links, aims the camera and renders once.
type Driver struct {
	mu    sync.Mutex
	state DriverState

	kb        *kb.KnowledgeBase
	scheduler timectrl.FrameScheduler
	surface   RenderSurface
	playback  *PlaybackController

	cfg        SceneConfig
	visibility *VisibilityEvaluator
	rig        CameraRig
	stars      []Vec3

	log      logging.Logger
	recorder FrameRecorder
	tracer   trace.Tracer
	now      func() time.Time

	scene      *SceneState
	lastFrame  time.Time
	pending    timectrl.FrameHandle
	hasPending bool
	width      int
	height     int

	latest atomic.Pointer[Frame]
}

// DriverOption customises a Driver.
type DriverOption func(*Driver)

// WithLogger sets the driver's logger.
func WithLogger(l logging.Logger) DriverOption {
	return func(d *Driver) {
		if l != nil {
			d.log = l
		}
	}
}

// WithRecorder sets the frame metrics sink.
func WithRecorder(r FrameRecorder) DriverOption {
	return func(d *Driver) {
		if r != nil {
			d.recorder = r
		}
	}
}

// WithTracer overrides the tracer used for per-frame spans.
func WithTracer(t trace.Tracer) DriverOption {
	return func(d *Driver) {
		if t != nil {
			d.tracer = t
		}
	}
}

// WithSceneConfig overrides the pacing constants.
func WithSceneConfig(cfg SceneConfig) DriverOption {
	return func(d *Driver) { d.cfg = cfg }
}

// WithVisibility overrides the visibility evaluator.
func WithVisibility(ve *VisibilityEvaluator) DriverOption {
	return func(d *Driver) {
		if ve != nil {
			d.visibility = ve
		}
	}
}

// WithCameraRig overrides the camera orbit.
func WithCameraRig(r CameraRig) DriverOption {
	return func(d *Driver) { d.rig = r }
}

// WithStars sets the star field handed to the surface on mount.
func WithStars(stars []Vec3) DriverOption {
	return func(d *Driver) { d.stars = stars }
}

// WithPlayback shares a playback controller with UI input.
func WithPlayback(p *PlaybackController) DriverOption {
	return func(d *Driver) {
		if p != nil {
			d.playback = p
		}
	}
}

// WithNow sets the clock used to stamp the mount time. It should agree with
// the timestamps the scheduler passes to frames.
func WithNow(now func() time.Time) DriverOption {
	return func(d *Driver) {
		if now != nil {
			d.now = now
		}
	}
}

// NewDriver constructs a stopped driver over the bodies registered in store.
// surface and scheduler may be nil; such a driver stays inert.
func NewDriver(store *kb.KnowledgeBase, scheduler timectrl.FrameScheduler, surface RenderSurface, opts ...DriverOption) *Driver {
	d := &Driver{
		kb:         store,
		scheduler:  scheduler,
		surface:    surface,
		playback:   NewPlaybackController(true),
		cfg:        DefaultSceneConfig(),
		visibility: NewVisibilityEvaluator(),
		rig:        DefaultCameraRig(),
		log:        logging.Noop(),
		recorder:   noopRecorder{},
		tracer:     otel.Tracer("github.com/signalsfoundry/debris-tracking-scene/core"),
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Playback returns the controller gating elapsed time.
func (d *Driver) Playback() *PlaybackController { return d.playback }

// State reports the lifecycle state.
func (d *Driver) State() DriverState {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.state
}

// Snapshot returns the most recently computed frame.
func (d *Driver) Snapshot() (Frame, bool) {
	f := d.latest.Load()
	if f == nil {
		return Frame{}, false
	}
	return *f, true
}

// Mount builds the scene on the surface and schedules the first frame. With
// no surface or scheduler, or if the surface fails to set up, the driver
// logs and stays stopped. Mounting a running driver is a no-op.
func (d *Driver) Mount(ctx context.Context, width, height int) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	switch d.state {
	case DriverDisposed:
		return ErrDisposed
	case DriverRunning:
		return nil
	}
	if d.surface == nil || d.scheduler == nil {
		d.log.Warn(ctx, "no render surface or scheduler; scene stays inert",
			logging.Bool("surface", d.surface != nil),
			logging.Bool("scheduler", d.scheduler != nil),
		)
		return nil
	}
	if d.kb == nil {
		return fmt.Errorf("mount: nil knowledge base")
	}

	bodies := d.kb.ListBodies()
	d.scene = NewSceneState(bodies, d.cfg, d.visibility, d.rig)
	d.setViewport(width, height)

	setup := BuildSceneSetup(bodies, d.stars, d.rig.Initial(d.scene.Aspect))
	if err := d.surface.Setup(setup); err != nil {
		d.log.Warn(ctx, "render surface setup failed; scene stays inert", logging.Err(err))
		d.scene = nil
		return nil
	}
	if d.width > 0 && d.height > 0 {
		d.surface.Resize(d.width, d.height)
	}

	d.lastFrame = d.now()
	d.state = DriverRunning
	d.schedule()

	d.log.Info(ctx, "scene mounted",
		logging.Int("bodies", len(bodies)),
		logging.Int("links", len(d.scene.Links)),
		logging.Int("stars", len(setup.Stars)),
	)
	return nil
}

// Tick runs one frame stamped now. The driver passes it to the scheduler;
// hosts with their own loop may call it directly instead.
func (d *Driver) Tick(now time.Time) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.state != DriverRunning {
		return
	}
	d.hasPending = false
	// Running self-schedules unconditionally, whatever happens below.
	defer d.schedule()

	delta := now.Sub(d.lastFrame).Seconds()
	d.lastFrame = now
	if delta < 0 {
		delta = 0
	}
	if d.cfg.MaxFrameDelta > 0 && delta > d.cfg.MaxFrameDelta {
		delta = d.cfg.MaxFrameDelta
	}

	ctx, span := d.tracer.Start(context.Background(), "scene.frame")
	defer span.End()

	start := time.Now()
	frame := d.scene.Step(delta, d.playback.Playing())
	d.publish(ctx, frame)
	d.latest.Store(&frame)

	if err := d.render(ctx, frame); err != nil {
		reason := "error"
		if errors.Is(err, ErrSurfaceUnavailable) {
			reason = "unavailable"
		}
		d.recorder.IncSkippedFrame(reason)
		span.RecordError(err)
		span.SetStatus(codes.Error, "render skipped")
		d.log.Debug(ctx, "frame skipped",
			logging.Any("seq", frame.Seq),
			logging.String("reason", reason),
			logging.Err(err),
		)
	}

	active := frame.ActiveLinks()
	d.recorder.ObserveFrame(time.Since(start), frame.Elapsed, frame.Playing, active)
	span.SetAttributes(
		attribute.Int64("scene.seq", int64(frame.Seq)),
		attribute.Float64("scene.elapsed", frame.Elapsed),
		attribute.Bool("scene.playing", frame.Playing),
		attribute.Int("scene.active_links", active),
	)
}

// Resize updates the camera aspect and the surface size. It never touches
// the clock or bodies, and is a no-op once disposed or without a surface.
func (d *Driver) Resize(width, height int) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.state == DriverDisposed || d.surface == nil {
		return
	}
	if width <= 0 || height <= 0 {
		return
	}
	d.setViewport(width, height)
	d.surface.Resize(width, height)
}

// Dispose cancels the pending frame and releases the surface. Safe to call
// more than once; only the first call returns the surface's error.
func (d *Driver) Dispose() error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.state == DriverDisposed {
		return nil
	}
	if d.hasPending && d.scheduler != nil {
		d.scheduler.CancelFrame(d.pending)
		d.hasPending = false
	}
	d.state = DriverDisposed

	var err error
	if d.surface != nil {
		err = d.surface.Dispose()
		d.surface = nil
	}
	d.log.Info(context.Background(), "scene disposed")
	return err
}

// setViewport must be called with d.mu held.
func (d *Driver) setViewport(width, height int) {
	if width <= 0 || height <= 0 {
		return
	}
	d.width, d.height = width, height
	if d.scene != nil {
		d.scene.Aspect = float64(width) / float64(height)
	}
}

// schedule must be called with d.mu held.
func (d *Driver) schedule() {
	if d.state != DriverRunning || d.hasPending {
		return
	}
	d.pending = d.scheduler.RequestFrame(d.Tick)
	d.hasPending = true
}

// publish mirrors derived state into the knowledge base. KB subscribers run
// here, on the frame goroutine with d.mu held; they must not call back into
// Mount, Resize or Dispose.
func (d *Driver) publish(ctx context.Context, f Frame) {
	for _, b := range f.Bodies {
		if err := d.kb.UpdateBodyState(b.ID, b.Position, b.Rotation); err != nil {
			d.log.Debug(ctx, "body state not stored", logging.String("body_id", b.ID), logging.Err(err))
		}
	}
	for _, l := range f.Links {
		if err := d.kb.UpdateLink(l); err != nil {
			d.log.Debug(ctx, "link not stored", logging.String("tracker_id", l.TrackerID), logging.Err(err))
		}
	}
}

// render calls the surface, turning a panic into ErrSurfaceUnavailable so
// nothing escapes to the scheduler.
func (d *Driver) render(ctx context.Context, f Frame) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("%w: render panic: %v", ErrSurfaceUnavailable, r)
		}
	}()
	return d.surface.Render(ctx, f)
}
