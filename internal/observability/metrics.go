package observability

import (
	"fmt"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/signalsfoundry/debris-tracking-scene/kb"
)

// SceneCollector bundles Prometheus metrics for the frame loop and provides
// a /metrics handler. It satisfies core.FrameRecorder.
type SceneCollector struct {
	gatherer prometheus.Gatherer

	FramesTotal     prometheus.Counter
	FramesSkipped   *prometheus.CounterVec
	FrameCompute    prometheus.Histogram
	ElapsedSeconds  prometheus.Gauge
	Playing         prometheus.Gauge
	ActiveLinks     prometheus.Gauge
	LinkTransitions *prometheus.CounterVec
}

// NewSceneCollector registers scene metrics against the provided registerer,
// defaulting to the global Prometheus registry when nil.
func NewSceneCollector(reg prometheus.Registerer) (*SceneCollector, error) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	gatherer := prometheus.DefaultGatherer
	if g, ok := reg.(prometheus.Gatherer); ok {
		gatherer = g
	}

	frames, err := registerCounter(reg, prometheus.NewCounter(prometheus.CounterOpts{
		Name: "scene_frames_total",
		Help: "Total number of computed scene frames.",
	}), "scene_frames_total")
	if err != nil {
		return nil, err
	}

	skipped := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "scene_frames_skipped_total",
		Help: "Frames computed but not drawn, labeled by reason.",
	}, []string{"reason"})
	skipped, err = registerCounterVec(reg, skipped, "scene_frames_skipped_total")
	if err != nil {
		return nil, err
	}

	compute, err := registerHistogram(reg, prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "scene_frame_compute_seconds",
		Help:    "Time spent computing and rendering one frame.",
		Buckets: []float64{0.0001, 0.00025, 0.0005, 0.001, 0.0025, 0.005, 0.01, 0.016, 0.033, 0.1},
	}), "scene_frame_compute_seconds")
	if err != nil {
		return nil, err
	}

	elapsed, err := registerGauge(reg, prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "scene_elapsed_seconds",
		Help: "Simulation clock elapsed time; frozen while paused.",
	}), "scene_elapsed_seconds")
	if err != nil {
		return nil, err
	}
	playing, err := registerGauge(reg, prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "scene_playing",
		Help: "1 while the animation is playing, 0 while paused.",
	}), "scene_playing")
	if err != nil {
		return nil, err
	}
	active, err := registerGauge(reg, prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "scene_active_links",
		Help: "Number of trackers currently observing the target.",
	}), "scene_active_links")
	if err != nil {
		return nil, err
	}

	transitions := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "scene_link_transitions_total",
		Help: "Observation link state changes, labeled by tracker and direction (acquired|lost).",
	}, []string{"tracker", "direction"})
	transitions, err = registerCounterVec(reg, transitions, "scene_link_transitions_total")
	if err != nil {
		return nil, err
	}

	return &SceneCollector{
		gatherer:        gatherer,
		FramesTotal:     frames,
		FramesSkipped:   skipped,
		FrameCompute:    compute,
		ElapsedSeconds:  elapsed,
		Playing:         playing,
		ActiveLinks:     active,
		LinkTransitions: transitions,
	}, nil
}

// Handler exposes a ready-to-use /metrics handler.
func (c *SceneCollector) Handler() http.Handler {
	gatherer := c.gatherer
	if gatherer == nil {
		gatherer = prometheus.DefaultGatherer
	}
	return promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
}

// ObserveFrame records one computed frame.
func (c *SceneCollector) ObserveFrame(compute time.Duration, elapsed float64, playing bool, activeLinks int) {
	if c == nil {
		return
	}
	c.FramesTotal.Inc()
	c.FrameCompute.Observe(compute.Seconds())
	c.ElapsedSeconds.Set(elapsed)
	if playing {
		c.Playing.Set(1)
	} else {
		c.Playing.Set(0)
	}
	c.ActiveLinks.Set(float64(activeLinks))
}

// IncSkippedFrame counts a frame the render surface did not draw.
func (c *SceneCollector) IncSkippedFrame(reason string) {
	if c == nil || c.FramesSkipped == nil {
		return
	}
	if reason == "" {
		reason = "unknown"
	}
	c.FramesSkipped.WithLabelValues(reason).Inc()
}

// RecordLinkTransition counts a tracker acquiring or losing the target.
func (c *SceneCollector) RecordLinkTransition(trackerID string, acquired bool) {
	if c == nil || c.LinkTransitions == nil {
		return
	}
	direction := "lost"
	if acquired {
		direction = "acquired"
	}
	c.LinkTransitions.WithLabelValues(trackerID, direction).Inc()
}

// HandleEvent is a knowledge-base subscriber that feeds RecordLinkTransition.
func (c *SceneCollector) HandleEvent(ev kb.Event) {
	switch ev.Type {
	case kb.EventLinkAcquired:
		c.RecordLinkTransition(ev.Link.TrackerID, true)
	case kb.EventLinkLost:
		c.RecordLinkTransition(ev.Link.TrackerID, false)
	}
}

func registerCounterVec(reg prometheus.Registerer, vec *prometheus.CounterVec, name string) (*prometheus.CounterVec, error) {
	if err := reg.Register(vec); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			if existing, ok := are.ExistingCollector.(*prometheus.CounterVec); ok {
				return existing, nil
			}
			return nil, fmt.Errorf("collector %s already registered with incompatible type", name)
		}
		return nil, err
	}
	return vec, nil
}

func registerGauge(reg prometheus.Registerer, gauge prometheus.Gauge, name string) (prometheus.Gauge, error) {
	if err := reg.Register(gauge); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			if existing, ok := are.ExistingCollector.(prometheus.Gauge); ok {
				return existing, nil
			}
			return nil, fmt.Errorf("collector %s already registered with incompatible type", name)
		}
		return nil, err
	}
	return gauge, nil
}
