package wsstream

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/time/rate"

	"github.com/signalsfoundry/debris-tracking-scene/core"
	"github.com/signalsfoundry/debris-tracking-scene/internal/observability"
	"github.com/signalsfoundry/debris-tracking-scene/model"
)

func testSetup() core.SceneSetup {
	return core.SceneSetup{
		EarthRadius: core.EarthSceneRadius,
		EarthColor:  core.ColorEarth,
		Bodies:      []core.BodySetup{{ID: "debris-1", Role: model.RoleTarget, Color: core.ColorTarget}},
	}
}

func dial(t *testing.T, srv *httptest.Server) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(srv.URL, "http")
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })
	return conn
}

func readMessage(t *testing.T, conn *websocket.Conn) Message {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(5*time.Second)))
	var msg Message
	require.NoError(t, conn.ReadJSON(&msg))
	return msg
}

func TestHubSendsSetupThenFrames(t *testing.T) {
	hub := NewHub(WithFrameRate(0, 1))
	require.NoError(t, hub.Setup(testSetup()))
	srv := httptest.NewServer(hub)
	defer srv.Close()

	conn := dial(t, srv)
	msg := readMessage(t, conn)
	require.Equal(t, TypeSetup, msg.Type)
	require.NotNil(t, msg.Setup)
	assert.Equal(t, "debris-1", msg.Setup.Bodies[0].ID)
	assert.Equal(t, 1, hub.Viewers())

	require.NoError(t, hub.Render(context.Background(), core.Frame{Seq: 7, Elapsed: 1.5, Playing: true}))
	msg = readMessage(t, conn)
	require.Equal(t, TypeFrame, msg.Type)
	require.NotNil(t, msg.Frame)
	assert.Equal(t, uint64(7), msg.Frame.Seq)
	assert.InDelta(t, 1.5, msg.Frame.Elapsed, 1e-12)
}

func TestHubToggleCommand(t *testing.T) {
	playback := core.NewPlaybackController(true)
	hub := NewHub(WithPlayback(playback))
	require.NoError(t, hub.Setup(testSetup()))
	srv := httptest.NewServer(hub)
	defer srv.Close()

	conn := dial(t, srv)
	readMessage(t, conn) // setup

	require.NoError(t, conn.WriteJSON(Command{Type: TypeToggle}))
	msg := readMessage(t, conn)
	require.Equal(t, TypePlayback, msg.Type)
	require.NotNil(t, msg.Playing)
	assert.False(t, *msg.Playing)
	assert.False(t, playback.Playing())

	require.NoError(t, conn.WriteJSON(Command{Type: TypePlay}))
	msg = readMessage(t, conn)
	require.NotNil(t, msg.Playing)
	assert.True(t, *msg.Playing)
	assert.True(t, playback.Playing())
}

func TestHubRenderWithoutViewers(t *testing.T) {
	hub := NewHub()
	err := hub.Render(context.Background(), core.Frame{Seq: 1})
	assert.ErrorIs(t, err, core.ErrSurfaceUnavailable)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.ErrorIs(t, hub.Render(ctx, core.Frame{}), context.Canceled)
}

func TestHubThrottlesAndDrops(t *testing.T) {
	reg := prometheus.NewRegistry()
	metrics, err := observability.NewStreamCollector(reg)
	require.NoError(t, err)
	hub := NewHub(WithCollector(metrics))

	throttled := &client{send: make(chan []byte, 8), limiter: rate.NewLimiter(rate.Every(time.Hour), 1)}
	full := &client{send: make(chan []byte, 1), limiter: rate.NewLimiter(rate.Inf, 1)}
	hub.clients[throttled] = struct{}{}
	hub.clients[full] = struct{}{}

	for i := 1; i <= 3; i++ {
		require.NoError(t, hub.Render(context.Background(), core.Frame{Seq: uint64(i)}))
	}

	assert.Len(t, throttled.send, 1, "only the burst should pass the limiter")
	assert.Len(t, full.send, 1)
	assert.Equal(t, 2.0, testutil.ToFloat64(metrics.FramesDropped))
	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.FramesBroadcast), "frames 2 and 3 reached nobody")

	var first Message
	require.NoError(t, json.Unmarshal(<-full.send, &first))
	assert.Equal(t, uint64(1), first.Frame.Seq)
}

func TestHubDisposeDisconnects(t *testing.T) {
	reg := prometheus.NewRegistry()
	metrics, err := observability.NewStreamCollector(reg)
	require.NoError(t, err)
	hub := NewHub(WithCollector(metrics))
	require.NoError(t, hub.Setup(testSetup()))
	srv := httptest.NewServer(hub)
	defer srv.Close()

	conn := dial(t, srv)
	readMessage(t, conn)
	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.Viewers))

	require.NoError(t, hub.Dispose())
	require.NoError(t, hub.Dispose())
	assert.Equal(t, 0, hub.Viewers())
	assert.Equal(t, 0.0, testutil.ToFloat64(metrics.Viewers))

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(5*time.Second)))
	_, _, err = conn.ReadMessage()
	assert.True(t, websocket.IsCloseError(err, websocket.CloseGoingAway), "got %v", err)

	assert.ErrorIs(t, hub.Setup(testSetup()), core.ErrSurfaceUnavailable)
	assert.ErrorIs(t, hub.Render(context.Background(), core.Frame{}), core.ErrSurfaceUnavailable)

	resp, err := http.Get(srv.URL)
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)
}
