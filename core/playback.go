package core

import "sync/atomic"

// PlaybackController is the single source of truth for whether simulation
// time advances. Input goroutines toggle it; the frame loop reads it. It
// never starts or stops the loop itself.
type PlaybackController struct {
	playing atomic.Bool
}

// NewPlaybackController returns a controller in the given state.
func NewPlaybackController(playing bool) *PlaybackController {
	p := &PlaybackController{}
	p.playing.Store(playing)
	return p
}

// Playing reports whether elapsed time advances.
func (p *PlaybackController) Playing() bool {
	return p.playing.Load()
}

// Toggle flips the state and returns the new value.
func (p *PlaybackController) Toggle() bool {
	for {
		old := p.playing.Load()
		if p.playing.CompareAndSwap(old, !old) {
			return !old
		}
	}
}

// SetPlaying forces the state.
func (p *PlaybackController) SetPlaying(playing bool) {
	p.playing.Store(playing)
}

// SimulationClock is the scene's elapsed time. It starts at (0, playing) and
// only grows while playing.
type SimulationClock struct {
	Elapsed float64
	Playing bool
}

// NewSimulationClock returns a clock at zero, playing.
func NewSimulationClock() SimulationClock {
	return SimulationClock{Playing: true}
}

// Advance adds delta seconds if playing. Non-positive deltas are ignored.
func (c *SimulationClock) Advance(delta float64) {
	if !c.Playing || delta <= 0 {
		return
	}
	c.Elapsed += delta
}
