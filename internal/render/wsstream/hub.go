// Package wsstream serves computed frames to browser viewers over websockets.
//
// Every viewer first receives a "setup" message with the static scene, then
// one "frame" message per rendered frame, throttled per viewer. Viewers may
// send {"type":"toggle"}, {"type":"play"} or {"type":"pause"} to drive
// playback.
package wsstream

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"golang.org/x/time/rate"

	"github.com/signalsfoundry/debris-tracking-scene/core"
	"github.com/signalsfoundry/debris-tracking-scene/internal/logging"
	"github.com/signalsfoundry/debris-tracking-scene/internal/observability"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = pongWait * 9 / 10
	maxMessageSize = 4096

	// DefaultFrameRate caps frames per second sent to one viewer.
	DefaultFrameRate = 30
	// DefaultSendBuffer is how many encoded frames may queue per viewer
	// before further frames are dropped for it.
	DefaultSendBuffer = 8
)

// Message types on the wire.
const (
	TypeSetup    = "setup"
	TypeFrame    = "frame"
	TypePlayback = "playback"
	TypeToggle   = "toggle"
	TypePlay     = "play"
	TypePause    = "pause"
)

// Message is the envelope for everything the hub sends.
type Message struct {
	Type    string           `json:"type"`
	Setup   *core.SceneSetup `json:"setup,omitempty"`
	Frame   *core.Frame      `json:"frame,omitempty"`
	Playing *bool            `json:"playing,omitempty"`
}

// Command is what viewers send.
type Command struct {
	Type string `json:"type"`
}

// Hub implements core.RenderSurface by broadcasting frames to every
// connected viewer. It is also the http.Handler viewers connect to.
type Hub struct {
	mu       sync.RWMutex
	clients  map[*client]struct{}
	setup    []byte
	width    int
	height   int
	disposed bool

	upgrader   websocket.Upgrader
	playback   *core.PlaybackController
	log        logging.Logger
	metrics    *observability.StreamCollector
	frameRate  rate.Limit
	frameBurst int
	sendBuffer int
}

// Option configures a Hub.
type Option func(*Hub)

// WithLogger sets the hub logger; each viewer gets a session-scoped child.
func WithLogger(l logging.Logger) Option {
	return func(h *Hub) {
		if l != nil {
			h.log = l
		}
	}
}

// WithCollector records viewer metrics.
func WithCollector(c *observability.StreamCollector) Option {
	return func(h *Hub) { h.metrics = c }
}

// WithPlayback lets viewers toggle playback. Without it commands are ignored.
func WithPlayback(p *core.PlaybackController) Option {
	return func(h *Hub) { h.playback = p }
}

// WithFrameRate sets the per-viewer frame limit. A non-positive fps lifts it.
func WithFrameRate(fps float64, burst int) Option {
	return func(h *Hub) {
		if fps <= 0 {
			h.frameRate = rate.Inf
		} else {
			h.frameRate = rate.Limit(fps)
		}
		if burst < 1 {
			burst = 1
		}
		h.frameBurst = burst
	}
}

// WithSendBuffer sets the per-viewer queue length.
func WithSendBuffer(n int) Option {
	return func(h *Hub) {
		if n > 0 {
			h.sendBuffer = n
		}
	}
}

// NewHub creates a hub with no viewers.
func NewHub(opts ...Option) *Hub {
	h := &Hub{
		clients: make(map[*client]struct{}),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 4096,
			CheckOrigin: func(r *http.Request) bool {
				return true
			},
		},
		log:        logging.Noop(),
		frameRate:  rate.Limit(DefaultFrameRate),
		frameBurst: 1,
		sendBuffer: DefaultSendBuffer,
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Viewers returns the number of connected viewers.
func (h *Hub) Viewers() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// Setup encodes the static scene and sends it to everyone already connected.
// Later viewers receive it on connect.
func (h *Hub) Setup(setup core.SceneSetup) error {
	data, err := json.Marshal(Message{Type: TypeSetup, Setup: &setup})
	if err != nil {
		return fmt.Errorf("encode setup: %w", err)
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	if h.disposed {
		return core.ErrSurfaceUnavailable
	}
	h.setup = data
	for c := range h.clients {
		h.enqueue(c, data)
	}
	return nil
}

// Render broadcasts f. It returns core.ErrSurfaceUnavailable when nobody is
// watching. A viewer whose queue is full misses the frame.
func (h *Hub) Render(ctx context.Context, f core.Frame) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	h.mu.RLock()
	defer h.mu.RUnlock()
	if h.disposed || len(h.clients) == 0 {
		return core.ErrSurfaceUnavailable
	}

	data, err := json.Marshal(Message{Type: TypeFrame, Frame: &f})
	if err != nil {
		return fmt.Errorf("encode frame %d: %w", f.Seq, err)
	}

	sent := false
	for c := range h.clients {
		if !c.limiter.Allow() {
			continue
		}
		if h.enqueue(c, data) {
			sent = true
		}
	}
	if sent {
		h.metrics.IncBroadcast()
	}
	return nil
}

// Resize records the driver's viewport. Browser viewers size their own
// canvas, so nothing is sent.
func (h *Hub) Resize(width, height int) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.width, h.height = width, height
}

// Dispose disconnects every viewer and refuses new ones.
func (h *Hub) Dispose() error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.disposed {
		return nil
	}
	h.disposed = true
	for c := range h.clients {
		delete(h.clients, c)
		close(c.send)
	}
	h.metrics.SetViewers(0)
	return nil
}

// ServeHTTP upgrades the request and serves one viewer until it leaves.
func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	h.mu.RLock()
	disposed := h.disposed
	h.mu.RUnlock()
	if disposed {
		http.Error(w, "scene disposed", http.StatusServiceUnavailable)
		return
	}

	ctx, log := logging.WithSessionLogger(r.Context(), h.log)
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Warn(ctx, "websocket upgrade failed", logging.Err(err))
		return
	}

	c := &client{
		conn:    conn,
		send:    make(chan []byte, h.sendBuffer),
		limiter: rate.NewLimiter(h.frameRate, h.frameBurst),
		log:     log,
	}
	if !h.register(c) {
		_ = conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseGoingAway, "scene disposed"),
			time.Now().Add(writeWait))
		_ = conn.Close()
		return
	}
	log.Info(ctx, "viewer connected", logging.String("remote_addr", r.RemoteAddr))

	done := make(chan struct{})
	go func() {
		defer close(done)
		h.writePump(ctx, c)
	}()
	h.readPump(ctx, c)

	h.unregister(c)
	<-done
	log.Info(ctx, "viewer disconnected")
}

func (h *Hub) register(c *client) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.disposed {
		return false
	}
	h.clients[c] = struct{}{}
	if h.setup != nil {
		h.enqueue(c, h.setup)
	}
	h.metrics.SetViewers(len(h.clients))
	return true
}

func (h *Hub) unregister(c *client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.clients[c]; !ok {
		return
	}
	delete(h.clients, c)
	close(c.send)
	h.metrics.SetViewers(len(h.clients))
}

// enqueue must be called with h.mu held (read or write).
func (h *Hub) enqueue(c *client, data []byte) bool {
	select {
	case c.send <- data:
		return true
	default:
		h.metrics.IncDropped()
		return false
	}
}

// readPump handles viewer commands until the connection fails or closes.
func (h *Hub) readPump(ctx context.Context, c *client) {
	c.conn.SetReadLimit(maxMessageSize)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		var cmd Command
		if err := c.conn.ReadJSON(&cmd); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				c.log.Debug(ctx, "viewer read failed", logging.Err(err))
			}
			return
		}
		h.handleCommand(ctx, c, cmd)
	}
}

func (h *Hub) handleCommand(ctx context.Context, c *client, cmd Command) {
	if h.playback == nil {
		c.log.Debug(ctx, "playback command ignored", logging.String("type", cmd.Type))
		return
	}
	var playing bool
	switch cmd.Type {
	case TypeToggle:
		playing = h.playback.Toggle()
	case TypePlay:
		h.playback.SetPlaying(true)
		playing = true
	case TypePause:
		h.playback.SetPlaying(false)
		playing = false
	default:
		c.log.Debug(ctx, "unknown viewer command", logging.String("type", cmd.Type))
		return
	}
	c.log.Info(ctx, "playback changed", logging.Bool("playing", playing))

	data, err := json.Marshal(Message{Type: TypePlayback, Playing: &playing})
	if err != nil {
		return
	}
	h.mu.RLock()
	for other := range h.clients {
		h.enqueue(other, data)
	}
	h.mu.RUnlock()
}

// writePump drains c.send to the socket and keeps the connection alive.
// It exits when c.send is closed or a write fails.
func (h *Hub) writePump(ctx context.Context, c *client) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		_ = c.conn.Close()
	}()

	for {
		select {
		case data, ok := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = c.conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseGoingAway, ""))
				return
			}
			start := time.Now()
			if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
				c.log.Debug(ctx, "viewer write failed", logging.Err(err))
				return
			}
			h.metrics.ObserveWrite(time.Since(start))
		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

type client struct {
	conn    *websocket.Conn
	send    chan []byte
	limiter *rate.Limiter
	log     logging.Logger
}
