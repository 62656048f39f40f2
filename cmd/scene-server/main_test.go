package main

import (
	"context"
	"encoding/json"
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/signalsfoundry/debris-tracking-scene/core"
	"github.com/signalsfoundry/debris-tracking-scene/internal/logging"
	"github.com/signalsfoundry/debris-tracking-scene/internal/render/wsstream"
)

func TestSceneServerStartupSmoke(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	lis, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	cfg := Config{
		ListenAddress:  lis.Addr().String(),
		MetricsAddress: "",
		Seed:           1,
		TickInterval:   10 * time.Millisecond,
		FrameRate:      0,
		ViewportWidth:  1600,
		ViewportHeight: 900,
	}
	log := logging.New(logging.Config{Level: "warn", Format: "text", Output: io.Discard})

	errCh := make(chan error, 1)
	go func() {
		errCh <- run(ctx, cfg, log, lis)
	}()

	base := "http://" + cfg.ListenAddress
	require.Eventually(t, func() bool {
		resp, err := http.Get(base + "/healthz")
		if err != nil {
			return false
		}
		resp.Body.Close()
		return resp.StatusCode == http.StatusOK
	}, 5*time.Second, 20*time.Millisecond)

	conn, _, err := websocket.DefaultDialer.DialContext(ctx, "ws://"+cfg.ListenAddress+"/ws", nil)
	require.NoError(t, err)
	defer conn.Close()

	read := func() wsstream.Message {
		require.NoError(t, conn.SetReadDeadline(time.Now().Add(5*time.Second)))
		var msg wsstream.Message
		require.NoError(t, conn.ReadJSON(&msg))
		return msg
	}

	msg := read()
	require.Equal(t, wsstream.TypeSetup, msg.Type)
	assert.Len(t, msg.Setup.Bodies, 12)
	assert.Len(t, msg.Setup.Links, 3)

	msg = read()
	require.Equal(t, wsstream.TypeFrame, msg.Type)
	assert.InDelta(t, 1600.0/900.0, msg.Frame.Camera.Aspect, 1e-9)
	assert.NotNil(t, msg.Frame.TargetSub)

	require.NoError(t, conn.WriteJSON(wsstream.Command{Type: wsstream.TypePause}))
	require.Eventually(t, func() bool {
		resp, err := http.Get(base + "/frame")
		if err != nil {
			return false
		}
		defer resp.Body.Close()
		var f core.Frame
		if json.NewDecoder(resp.Body).Decode(&f) != nil {
			return false
		}
		return !f.Playing
	}, 5*time.Second, 20*time.Millisecond)

	resp, err := http.Get(base + "/metrics")
	require.NoError(t, err)
	body, err := io.ReadAll(resp.Body)
	resp.Body.Close()
	require.NoError(t, err)
	assert.Contains(t, string(body), "scene_frames_total")
	assert.Contains(t, string(body), "scene_viewers 1")
	assert.Contains(t, string(body), `scene_link_transitions_total{direction="acquired",tracker="atlas-1"}`)

	cancel()
	select {
	case err := <-errCh:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("server did not shut down")
	}
}

func TestHealthHandlerTracksFrameLoop(t *testing.T) {
	now := time.Date(2025, time.January, 1, 12, 0, 0, 0, time.UTC)
	var last atomic.Int64
	h := healthHandler(&last, time.Second, func() time.Time { return now })

	status := func() int {
		rec := httptest.NewRecorder()
		h(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
		return rec.Code
	}

	assert.Equal(t, http.StatusServiceUnavailable, status(), "before the first frame")

	last.Store(now.Add(-500 * time.Millisecond).UnixNano())
	assert.Equal(t, http.StatusOK, status())

	last.Store(now.Add(-3 * time.Second).UnixNano())
	assert.Equal(t, http.StatusServiceUnavailable, status(), "stalled loop")
}

func TestStallTimeout(t *testing.T) {
	assert.Equal(t, time.Second, stallTimeout(16*time.Millisecond))
	assert.Equal(t, 2*time.Second, stallTimeout(100*time.Millisecond))
}
