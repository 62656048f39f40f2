package core

import (
	"sync"
	"testing"
)

func TestPlaybackToggle(t *testing.T) {
	p := NewPlaybackController(true)
	if !p.Playing() {
		t.Fatalf("expected playing")
	}
	if p.Toggle() {
		t.Fatalf("first toggle should pause")
	}
	if !p.Toggle() || !p.Playing() {
		t.Fatalf("second toggle should resume")
	}
	p.SetPlaying(false)
	if p.Playing() {
		t.Fatalf("SetPlaying(false) ignored")
	}
}

func TestPlaybackConcurrentToggles(t *testing.T) {
	p := NewPlaybackController(true)
	var wg sync.WaitGroup
	for i := 0; i < 100; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			p.Toggle()
		}()
	}
	wg.Wait()
	// An even number of toggles lands back where it started.
	if !p.Playing() {
		t.Fatalf("100 toggles should leave playback on")
	}
}
