package terminal

import (
	"testing"

	"github.com/gdamore/tcell/v2"
)

func TestHandleEventToggleAndQuit(t *testing.T) {
	toggles := 0
	c := Controls{TogglePlayback: func() bool { toggles++; return toggles%2 == 0 }}

	if HandleEvent(tcell.NewEventKey(tcell.KeyRune, ' ', tcell.ModNone), c) {
		t.Fatal("space should not quit")
	}
	if HandleEvent(tcell.NewEventKey(tcell.KeyRune, 'p', tcell.ModNone), c) {
		t.Fatal("p should not quit")
	}
	if toggles != 2 {
		t.Errorf("Expected 2 toggles, got %d", toggles)
	}

	for _, ev := range []*tcell.EventKey{
		tcell.NewEventKey(tcell.KeyRune, 'q', tcell.ModNone),
		tcell.NewEventKey(tcell.KeyEscape, 0, tcell.ModNone),
		tcell.NewEventKey(tcell.KeyCtrlC, 0, tcell.ModCtrl),
	} {
		if !HandleEvent(ev, c) {
			t.Errorf("Expected %v to quit", ev.Name())
		}
	}

	// Unbound keys and nil controls are harmless.
	if HandleEvent(tcell.NewEventKey(tcell.KeyRune, 'x', tcell.ModNone), Controls{}) {
		t.Fatal("x should not quit")
	}
	HandleEvent(tcell.NewEventKey(tcell.KeyRune, ' ', tcell.ModNone), Controls{})
}

func TestHandleEventResize(t *testing.T) {
	var gotW, gotH int
	c := Controls{Resize: func(w, h int) { gotW, gotH = w, h }}
	HandleEvent(tcell.NewEventResize(100, 30), c)
	if gotW != 100 || gotH != 30*CellAspect {
		t.Errorf("Resize got %dx%d, want 100x%d", gotW, gotH, 30*CellAspect)
	}
}
