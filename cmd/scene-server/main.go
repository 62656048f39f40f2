package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"net"
	"net/http"
	"os"
	"os/signal"
	"sync/atomic"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.opentelemetry.io/otel"

	"github.com/signalsfoundry/debris-tracking-scene/core"
	"github.com/signalsfoundry/debris-tracking-scene/internal/logging"
	"github.com/signalsfoundry/debris-tracking-scene/internal/observability"
	"github.com/signalsfoundry/debris-tracking-scene/internal/render/wsstream"
	"github.com/signalsfoundry/debris-tracking-scene/kb"
	"github.com/signalsfoundry/debris-tracking-scene/timectrl"
)

// Config collects the server's flags.
type Config struct {
	ListenAddress  string
	MetricsAddress string // empty serves /metrics on ListenAddress
	ScenarioPath   string
	Seed           uint64
	TickInterval   time.Duration
	Accelerated    bool
	FrameRate      float64 // per-viewer frames per second
	ViewportWidth  int
	ViewportHeight int
}

func main() {
	var cfg Config
	flag.StringVar(&cfg.ListenAddress, "listen-addr", ":8080", "HTTP address serving /ws, /frame and /healthz")
	flag.StringVar(&cfg.MetricsAddress, "metrics-addr", ":9090", "HTTP address for Prometheus /metrics (empty = same as -listen-addr)")
	flag.StringVar(&cfg.ScenarioPath, "scenario", "", "path to a JSON scenario (empty = stock scene)")
	flag.Uint64Var(&cfg.Seed, "seed", core.DefaultSeed, "seed for the stock scene's background debris and stars")
	flag.DurationVar(&cfg.TickInterval, "tick", 16*time.Millisecond, "frame interval")
	flag.BoolVar(&cfg.Accelerated, "accelerated", false, "fire frames back to back instead of on the wall clock")
	flag.Float64Var(&cfg.FrameRate, "viewer-fps", wsstream.DefaultFrameRate, "max frames per second sent to each viewer (0 = unlimited)")
	flag.IntVar(&cfg.ViewportWidth, "width", 1280, "viewport width used for the camera aspect")
	flag.IntVar(&cfg.ViewportHeight, "height", 720, "viewport height used for the camera aspect")
	flag.Parse()

	log := logging.NewFromEnv()
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	lis, err := net.Listen("tcp", cfg.ListenAddress)
	if err != nil {
		log.Error(ctx, "failed to listen", logging.String("addr", cfg.ListenAddress), logging.Err(err))
		os.Exit(1)
	}
	if err := run(ctx, cfg, log, lis); err != nil {
		log.Error(ctx, "scene server exited", logging.Err(err))
		os.Exit(1)
	}
}

// run serves the scene on lis until ctx is cancelled.
func run(ctx context.Context, cfg Config, log logging.Logger, lis net.Listener) error {
	mode := timectrl.RealTime
	if cfg.Accelerated {
		mode = timectrl.Accelerated
	}

	tracingCfg := observability.TracingConfigFromEnv()
	tracingCfg.Scene = observability.SceneInfo{
		Binary:   "scene-server",
		Scenario: cfg.ScenarioPath,
		Seed:     cfg.Seed,
		Mode:     mode.String(),
	}
	shutdownTracing, err := observability.InitTracing(ctx, tracingCfg, log)
	if err != nil {
		return err
	}
	defer observability.ShutdownWithTimeout(context.Background(), shutdownTracing, log)

	reg := prometheus.NewRegistry()
	sceneMetrics, err := observability.NewSceneCollector(reg)
	if err != nil {
		return err
	}
	streamMetrics, err := observability.NewStreamCollector(reg)
	if err != nil {
		return err
	}

	store := kb.NewKnowledgeBase()
	sc, err := core.LoadScenarioFile(store, cfg.ScenarioPath, cfg.Seed)
	if err != nil {
		return err
	}
	unsubscribe := store.Subscribe(sceneMetrics.HandleEvent)
	defer unsubscribe()
	log.Info(ctx, "loaded scenario",
		logging.Int("trackers", len(sc.TrackerIDs)),
		logging.String("target", sc.TargetID),
		logging.Int("background", len(sc.BackgroundIDs)),
		logging.Any("seed", sc.Seed),
	)

	playback := core.NewPlaybackController(true)
	hub := wsstream.NewHub(
		wsstream.WithLogger(log),
		wsstream.WithCollector(streamMetrics),
		wsstream.WithPlayback(playback),
		wsstream.WithFrameRate(cfg.FrameRate, 1),
	)

	loop := timectrl.NewFrameLoop(time.Now().UTC(), cfg.TickInterval, mode)
	var lastFrame atomic.Int64
	loop.AddListener(func(time.Time) { lastFrame.Store(time.Now().UnixNano()) })

	driverOpts := append(sc.DriverOptions(),
		core.WithLogger(log),
		core.WithRecorder(sceneMetrics),
		core.WithTracer(otel.Tracer("github.com/signalsfoundry/debris-tracking-scene/cmd/scene-server")),
		core.WithPlayback(playback),
		core.WithNow(loop.Now),
	)
	driver := core.NewDriver(store, loop, hub, driverOpts...)
	if err := driver.Mount(ctx, cfg.ViewportWidth, cfg.ViewportHeight); err != nil {
		return err
	}
	loopDone := loop.Start(0)

	mux := http.NewServeMux()
	mux.Handle("/ws", hub)
	mux.HandleFunc("/frame", frameHandler(driver))
	mux.HandleFunc("/healthz", healthHandler(&lastFrame, stallTimeout(loop.Tick), time.Now))
	var metricsSrv *http.Server
	if cfg.MetricsAddress == "" {
		mux.Handle("/metrics", sceneMetrics.Handler())
	} else {
		metricsSrv = serveMetrics(cfg.MetricsAddress, sceneMetrics, log)
	}

	srv := &http.Server{Handler: mux}
	serveErr := make(chan error, 1)
	go func() {
		serveErr <- srv.Serve(lis)
	}()
	log.Info(ctx, "serving scene", logging.String("addr", lis.Addr().String()), logging.String("mode", mode.String()))

	var runErr error
	select {
	case <-ctx.Done():
	case err := <-serveErr:
		if !errors.Is(err, http.ErrServerClosed) {
			runErr = err
		}
	}

	log.Info(context.Background(), "shutting down scene server")
	loop.Stop()
	<-loopDone
	if err := driver.Dispose(); err != nil {
		log.Warn(context.Background(), "dispose failed", logging.Err(err))
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_ = srv.Shutdown(shutdownCtx)
	if metricsSrv != nil {
		_ = metricsSrv.Shutdown(shutdownCtx)
	}
	return runErr
}

// frameHandler serves the latest computed frame as JSON.
func frameHandler(driver *core.Driver) http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		f, ok := driver.Snapshot()
		if !ok {
			http.Error(w, "no frame computed yet", http.StatusServiceUnavailable)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(f)
	}
}

// stallTimeout is how long /healthz tolerates a silent frame loop.
func stallTimeout(tick time.Duration) time.Duration {
	if d := 20 * tick; d > time.Second {
		return d
	}
	return time.Second
}

// healthHandler reports 503 until the frame loop has fired once, and again
// whenever the last frame is older than stallAfter.
func healthHandler(lastFrame *atomic.Int64, stallAfter time.Duration, now func() time.Time) http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		last := lastFrame.Load()
		if last == 0 {
			http.Error(w, "frame loop not started", http.StatusServiceUnavailable)
			return
		}
		if age := now().Sub(time.Unix(0, last)); age > stallAfter {
			http.Error(w, "frame loop stalled for "+age.Round(time.Millisecond).String(), http.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	}
}

func serveMetrics(addr string, collector *observability.SceneCollector, log logging.Logger) *http.Server {
	if collector == nil {
		return nil
	}
	mux := http.NewServeMux()
	mux.Handle("/metrics", collector.Handler())

	srv := &http.Server{
		Addr:    addr,
		Handler: mux,
	}

	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Warn(context.Background(), "metrics server exited", logging.Err(err))
		}
	}()

	log.Info(context.Background(), "serving Prometheus metrics", logging.String("addr", addr))
	return srv
}
