package timectrl

import (
	"sort"
	"sync"
	"time"
)

// FrameHandle identifies a pending frame request so it can be cancelled.
type FrameHandle uint64

// FrameScheduler is the host's display-refresh abstraction. A request fires
// at most once, on the next frame, with that frame's timestamp; callers that
// want a continuous loop request again from inside the callback.
type FrameScheduler interface {
	RequestFrame(fn func(now time.Time)) FrameHandle
	CancelFrame(h FrameHandle)
}

// Mode describes how the FrameLoop advances frame time.
type Mode int

const (
	// RealTime fires frames on a wall-clock ticker and stamps them with wall time.
	RealTime Mode = iota
	// Accelerated fires frames back to back, stepping frame time by Tick.
	Accelerated
)

func (m Mode) String() string {
	if m == Accelerated {
		return "accelerated"
	}
	return "realtime"
}

// FrameLoop drives frame callbacks and notifies registered listeners. All
// callbacks run serially on the loop goroutine. It implements FrameScheduler.
type FrameLoop struct {
	mu        sync.Mutex
	StartTime time.Time
	Tick      time.Duration
	Mode      Mode

	// currentTime is the timestamp of the last fired frame.
	currentTime time.Time

	next      FrameHandle
	pending   map[FrameHandle]func(time.Time)
	listeners []func(time.Time)

	wake     chan struct{}
	stop     chan struct{}
	stopOnce sync.Once
}

// NewFrameLoop constructs a loop. A non-positive tick defaults to ~60 FPS.
func NewFrameLoop(start time.Time, tick time.Duration, mode Mode) *FrameLoop {
	if tick <= 0 {
		tick = 16 * time.Millisecond
	}
	return &FrameLoop{
		StartTime:   start,
		Tick:        tick,
		Mode:        mode,
		currentTime: start,
		pending:     make(map[FrameHandle]func(time.Time)),
		wake:        make(chan struct{}, 1),
		stop:        make(chan struct{}),
	}
}

// Now returns the timestamp of the most recent frame.
func (fl *FrameLoop) Now() time.Time {
	fl.mu.Lock()
	defer fl.mu.Unlock()
	return fl.currentTime
}

// RequestFrame schedules fn for the next frame. Implements FrameScheduler.
func (fl *FrameLoop) RequestFrame(fn func(time.Time)) FrameHandle {
	fl.mu.Lock()
	fl.next++
	h := fl.next
	fl.pending[h] = fn
	fl.mu.Unlock()

	select {
	case fl.wake <- struct{}{}:
	default:
	}
	return h
}

// CancelFrame drops a pending request. Cancelling a fired or unknown handle is a no-op.
func (fl *FrameLoop) CancelFrame(h FrameHandle) {
	fl.mu.Lock()
	delete(fl.pending, h)
	fl.mu.Unlock()
}

// AddListener registers a callback invoked after every frame's requests.
func (fl *FrameLoop) AddListener(fn func(time.Time)) {
	fl.mu.Lock()
	fl.listeners = append(fl.listeners, fn)
	fl.mu.Unlock()
}

// Stop ends the loop started by Start. Safe to call more than once.
func (fl *FrameLoop) Stop() {
	fl.stopOnce.Do(func() { close(fl.stop) })
}

// Start runs the loop for the specified duration (0 = until Stop) in a
// separate goroutine. It returns a channel that is closed when the loop ends.
func (fl *FrameLoop) Start(duration time.Duration) <-chan struct{} {
	done := make(chan struct{})
	go func() {
		defer close(done)

		fl.mu.Lock()
		frameTime := fl.StartTime
		fl.currentTime = frameTime
		fl.mu.Unlock()

		elapsed := time.Duration(0)

		var tickC <-chan time.Time
		if fl.Mode == RealTime {
			ticker := time.NewTicker(fl.Tick)
			defer ticker.Stop()
			tickC = ticker.C
		}

		for {
			if duration > 0 && elapsed >= duration {
				return
			}

			switch fl.Mode {
			case Accelerated:
				// Nothing to draw: park until someone requests a frame.
				if !fl.hasWork() {
					select {
					case <-fl.stop:
						return
					case <-fl.wake:
					}
				}
				select {
				case <-fl.stop:
					return
				default:
				}
				frameTime = frameTime.Add(fl.Tick)
			default:
				select {
				case <-fl.stop:
					return
				case <-tickC:
				}
				frameTime = time.Now()
			}
			elapsed += fl.Tick

			fl.runFrame(frameTime)
		}
	}()
	return done
}

func (fl *FrameLoop) hasWork() bool {
	fl.mu.Lock()
	defer fl.mu.Unlock()
	return len(fl.pending) > 0 || len(fl.listeners) > 0
}

// runFrame fires every request pending at the start of the frame, in request
// order, then the listeners. Requests made during the frame wait for the next one.
func (fl *FrameLoop) runFrame(t time.Time) {
	fl.mu.Lock()
	fl.currentTime = t
	due := fl.pending
	fl.pending = make(map[FrameHandle]func(time.Time))
	listeners := append([]func(time.Time){}, fl.listeners...)
	fl.mu.Unlock()

	runDue(due, t)
	for _, fn := range listeners {
		fn(t)
	}
}

func runDue(due map[FrameHandle]func(time.Time), t time.Time) int {
	handles := make([]FrameHandle, 0, len(due))
	for h := range due {
		handles = append(handles, h)
	}
	sort.Slice(handles, func(i, j int) bool { return handles[i] < handles[j] })
	for _, h := range handles {
		due[h](t)
	}
	return len(handles)
}

// ManualFrameLoop is a FrameScheduler that only fires when stepped. It drives
// scenes deterministically under test and in fixed-step batch runs.
type ManualFrameLoop struct {
	mu      sync.Mutex
	now     time.Time
	next    FrameHandle
	pending map[FrameHandle]func(time.Time)
}

// NewManualFrameLoop returns a loop whose clock starts at start.
func NewManualFrameLoop(start time.Time) *ManualFrameLoop {
	return &ManualFrameLoop{
		now:     start,
		pending: make(map[FrameHandle]func(time.Time)),
	}
}

// RequestFrame implements FrameScheduler.
func (m *ManualFrameLoop) RequestFrame(fn func(time.Time)) FrameHandle {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.next++
	m.pending[m.next] = fn
	return m.next
}

// CancelFrame implements FrameScheduler.
func (m *ManualFrameLoop) CancelFrame(h FrameHandle) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.pending, h)
}

// Now returns the loop's current frame time.
func (m *ManualFrameLoop) Now() time.Time {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.now
}

// Pending reports how many requests wait for the next frame.
func (m *ManualFrameLoop) Pending() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.pending)
}

// Step advances the clock by d and fires one frame. It returns the number of
// callbacks run.
func (m *ManualFrameLoop) Step(d time.Duration) int {
	m.mu.Lock()
	m.now = m.now.Add(d)
	now := m.now
	due := m.pending
	m.pending = make(map[FrameHandle]func(time.Time))
	m.mu.Unlock()

	return runDue(due, now)
}
