package observability

import (
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// StreamCollector exposes websocket viewer metrics.
type StreamCollector struct {
	gatherer prometheus.Gatherer

	Viewers         prometheus.Gauge
	FramesBroadcast prometheus.Counter
	FramesDropped   prometheus.Counter
	WriteDuration   prometheus.Histogram
}

// NewStreamCollector registers viewer metrics against the provided registerer.
func NewStreamCollector(reg prometheus.Registerer) (*StreamCollector, error) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	gatherer := prometheus.DefaultGatherer
	if g, ok := reg.(prometheus.Gatherer); ok {
		gatherer = g
	}

	viewers := prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "scene_viewers",
		Help: "Number of connected websocket viewers.",
	})
	viewers, err := registerGauge(reg, viewers, "scene_viewers")
	if err != nil {
		return nil, err
	}

	broadcast := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "scene_frames_broadcast_total",
		Help: "Frames queued to at least one viewer.",
	})
	broadcast, err = registerCounter(reg, broadcast, "scene_frames_broadcast_total")
	if err != nil {
		return nil, err
	}

	dropped := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "scene_frames_dropped_total",
		Help: "Per-viewer frames dropped by throttling or a full send buffer.",
	})
	dropped, err = registerCounter(reg, dropped, "scene_frames_dropped_total")
	if err != nil {
		return nil, err
	}

	writes := prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "scene_viewer_write_seconds",
		Help:    "Duration of websocket frame writes.",
		Buckets: []float64{0.0005, 0.001, 0.0025, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25},
	})
	writes, err = registerHistogram(reg, writes, "scene_viewer_write_seconds")
	if err != nil {
		return nil, err
	}

	return &StreamCollector{
		gatherer:        gatherer,
		Viewers:         viewers,
		FramesBroadcast: broadcast,
		FramesDropped:   dropped,
		WriteDuration:   writes,
	}, nil
}

// Gatherer returns the Prometheus gatherer associated with the collector.
func (c *StreamCollector) Gatherer() prometheus.Gatherer {
	if c == nil {
		return nil
	}
	return c.gatherer
}

// SetViewers updates the connected viewer gauge.
func (c *StreamCollector) SetViewers(count int) {
	if c == nil || c.Viewers == nil {
		return
	}
	c.Viewers.Set(float64(count))
}

// IncBroadcast counts a frame handed to the viewers.
func (c *StreamCollector) IncBroadcast() {
	if c == nil || c.FramesBroadcast == nil {
		return
	}
	c.FramesBroadcast.Inc()
}

// IncDropped counts a frame one viewer did not receive.
func (c *StreamCollector) IncDropped() {
	if c == nil || c.FramesDropped == nil {
		return
	}
	c.FramesDropped.Inc()
}

// ObserveWrite records a websocket write duration.
func (c *StreamCollector) ObserveWrite(d time.Duration) {
	if c == nil || c.WriteDuration == nil {
		return
	}
	c.WriteDuration.Observe(d.Seconds())
}

func registerHistogram(reg prometheus.Registerer, hist prometheus.Histogram, name string) (prometheus.Histogram, error) {
	if err := reg.Register(hist); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			if existing, ok := are.ExistingCollector.(prometheus.Histogram); ok {
				return existing, nil
			}
			return nil, fmt.Errorf("collector %s already registered with incompatible type", name)
		}
		return nil, err
	}
	return hist, nil
}

func registerCounter(reg prometheus.Registerer, counter prometheus.Counter, name string) (prometheus.Counter, error) {
	if err := reg.Register(counter); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			if existing, ok := are.ExistingCollector.(prometheus.Counter); ok {
				return existing, nil
			}
			return nil, fmt.Errorf("collector %s already registered with incompatible type", name)
		}
		return nil, err
	}
	return counter, nil
}
