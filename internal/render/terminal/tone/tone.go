package tone

import (
	"math"
	"sync"
	"time"

	"github.com/gopxl/beep"
	"github.com/gopxl/beep/effects"
	"github.com/gopxl/beep/generators"
	"github.com/gopxl/beep/speaker"

	"github.com/signalsfoundry/debris-tracking-scene/kb"
)

const (
	toneSampleRate = beep.SampleRate(44100)
	toneDuration   = 80 * time.Millisecond

	acquireBaseHz = 660.0
	acquireStepHz = 110.0
	lostHz        = 330.0

	toneVolume = 0.25
)

// Player chirps when a tracker acquires or loses the target. Until
// Initialize succeeds every call is a no-op, so the viewer runs fine on
// machines without an audio device.
type Player struct {
	mu          sync.Mutex
	initialized bool
	mixer       *beep.Mixer
	sr          beep.SampleRate
}

// NewPlayer creates a player with an empty mixer.
func NewPlayer() *Player {
	return &Player{
		mixer: &beep.Mixer{},
		sr:    toneSampleRate,
	}
}

// Initialize opens the speaker and starts the mixer.
func (p *Player) Initialize() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.initialized {
		return nil
	}
	if err := speaker.Init(p.sr, p.sr.N(time.Second/10)); err != nil {
		return err
	}
	speaker.Play(p.mixer)
	p.initialized = true
	return nil
}

// Cleanup silences anything still queued.
func (p *Player) Cleanup() {
	p.mu.Lock()
	defer p.mu.Unlock()

	if !p.initialized {
		return
	}
	speaker.Lock()
	p.mixer.Clear()
	speaker.Unlock()
	p.initialized = false
}

// HandleEvent is a kb subscriber: acquisitions chirp at a pitch per tracker
// index, losses at one low pitch. Other events are ignored.
func (p *Player) HandleEvent(ev kb.Event) {
	var freq float64
	switch ev.Type {
	case kb.EventLinkAcquired:
		freq = Frequency(ev.Link.Index)
	case kb.EventLinkLost:
		freq = lostHz
	default:
		return
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	if !p.initialized {
		return
	}
	s, err := Chirp(p.sr, freq, toneDuration)
	if err != nil {
		return
	}
	speaker.Lock()
	p.mixer.Add(s)
	speaker.Unlock()
}

// Frequency is the acquisition pitch for the tracker at index.
func Frequency(index int) float64 {
	if index < 0 {
		index = 0
	}
	return acquireBaseHz + acquireStepHz*float64(index)
}

// Chirp builds a finite sine chirp of length d at a fixed quiet volume.
func Chirp(sr beep.SampleRate, freq float64, d time.Duration) (beep.Streamer, error) {
	sine, err := generators.SineTone(sr, freq)
	if err != nil {
		return nil, err
	}
	return &effects.Volume{
		Streamer: beep.Take(sr.N(d), sine),
		Base:     2,
		Volume:   math.Log2(toneVolume),
	}, nil
}
