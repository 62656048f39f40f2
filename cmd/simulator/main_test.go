package main

import (
	"bytes"
	"context"
	"strings"
	"testing"
	"time"

	"github.com/signalsfoundry/debris-tracking-scene/internal/logging"
)

// TestIntegration_StockScene runs a short accelerated simulation of the stock
// scene and checks the transcript.
func TestIntegration_StockScene(t *testing.T) {
	var out bytes.Buffer
	opts := options{
		seed:        1,
		duration:    30 * time.Second,
		tick:        50 * time.Millisecond,
		accelerated: true,
		reportEvery: 5,
	}
	if err := run(context.Background(), opts, &out, logging.Noop()); err != nil {
		t.Fatalf("run: %v", err)
	}

	transcript := out.String()
	if !strings.Contains(transcript, "Loaded scenario: 3 trackers, target debris-1, 8 background") {
		t.Fatalf("missing scenario summary:\n%s", transcript)
	}
	if got := strings.Count(transcript, " acquired "); got < 3 {
		t.Fatalf("expected every tracker to acquire the target, got %d acquisitions:\n%s", got, transcript)
	}
	if !strings.Contains(transcript, " lost ") {
		t.Fatalf("expected at least one lost link over 30s:\n%s", transcript)
	}
	if !strings.Contains(transcript, "ATLAS-1") {
		t.Fatalf("tracker names not used:\n%s", transcript)
	}
	if !strings.Contains(transcript, "Simulation complete: 600 frames") {
		t.Fatalf("unexpected frame count:\n%s", transcript)
	}
	if got := strings.Count(transcript, "] links "); got != 6 {
		t.Fatalf("expected 6 summaries at 5s spacing, got %d:\n%s", got, transcript)
	}
}

func TestRunRejectsMissingScenario(t *testing.T) {
	opts := options{scenario: "does-not-exist.json", duration: time.Second, tick: 10 * time.Millisecond, accelerated: true}
	if err := run(context.Background(), opts, &bytes.Buffer{}, logging.Noop()); err == nil {
		t.Fatal("expected an error for a missing scenario file")
	}
}

func TestRunStopsOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	opts := options{seed: 1, duration: 0, tick: 10 * time.Millisecond, accelerated: true}

	finished := make(chan error, 1)
	go func() { finished <- run(ctx, opts, &bytes.Buffer{}, logging.Noop()) }()
	select {
	case err := <-finished:
		if err != nil {
			t.Fatalf("run: %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("run did not return after cancellation")
	}
}
