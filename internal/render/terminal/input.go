package terminal

import (
	"context"

	"github.com/gdamore/tcell/v2"
)

// Controls are the viewer actions keyboard and resize events map to.
// Nil fields are skipped.
type Controls struct {
	TogglePlayback func() bool
	Resize         func(width, height int)
}

// PollInput reads screen events until ctx is cancelled, the screen is
// finalised or the user quits. It returns true when the user asked to quit.
func PollInput(ctx context.Context, screen tcell.Screen, c Controls) bool {
	events := make(chan tcell.Event, 16)
	go func() {
		defer close(events)
		for {
			ev := screen.PollEvent()
			if ev == nil {
				return
			}
			select {
			case events <- ev:
			case <-ctx.Done():
				return
			}
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return false
		case ev, ok := <-events:
			if !ok {
				return false
			}
			if HandleEvent(ev, c) {
				return true
			}
		}
	}
}

// HandleEvent applies one event and reports whether it was a quit request.
// Space or p toggles playback; q, Esc and Ctrl-C quit.
func HandleEvent(ev tcell.Event, c Controls) bool {
	switch ev := ev.(type) {
	case *tcell.EventKey:
		switch ev.Key() {
		case tcell.KeyEscape, tcell.KeyCtrlC:
			return true
		case tcell.KeyRune:
			switch ev.Rune() {
			case 'q', 'Q':
				return true
			case ' ', 'p', 'P':
				if c.TogglePlayback != nil {
					c.TogglePlayback()
				}
			}
		}
	case *tcell.EventResize:
		if c.Resize != nil {
			cols, rows := ev.Size()
			c.Resize(Viewport(cols, rows))
		}
	}
	return false
}
