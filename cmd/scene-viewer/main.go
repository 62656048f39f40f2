package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"time"

	"github.com/gdamore/tcell/v2"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/signalsfoundry/debris-tracking-scene/core"
	"github.com/signalsfoundry/debris-tracking-scene/internal/logging"
	"github.com/signalsfoundry/debris-tracking-scene/internal/observability"
	"github.com/signalsfoundry/debris-tracking-scene/internal/render/terminal"
	"github.com/signalsfoundry/debris-tracking-scene/internal/render/terminal/tone"
	"github.com/signalsfoundry/debris-tracking-scene/kb"
	"github.com/signalsfoundry/debris-tracking-scene/timectrl"
)

type options struct {
	scenario    string
	seed        uint64
	tick        time.Duration
	metricsAddr string
	sound       bool
	// logOut receives logs and stdout-exported spans; the terminal is the screen.
	logOut io.Writer
}

func main() {
	var opts options
	flag.StringVar(&opts.scenario, "scenario", "", "path to a JSON scenario (empty = stock scene)")
	flag.Uint64Var(&opts.seed, "seed", core.DefaultSeed, "seed for the stock scene's background debris and stars")
	flag.DurationVar(&opts.tick, "tick", 33*time.Millisecond, "frame interval")
	logFile := flag.String("log-file", "", "write logs and spans here (default discards; the terminal is the screen)")
	flag.StringVar(&opts.metricsAddr, "metrics-addr", "", "HTTP address for Prometheus /metrics (empty = disabled)")
	flag.BoolVar(&opts.sound, "sound", false, "chirp when a tracker acquires or loses the target")
	flag.Parse()

	opts.logOut = io.Discard
	if *logFile != "" {
		f, err := os.OpenFile(*logFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			fmt.Fprintf(os.Stderr, "open log file: %v\n", err)
			os.Exit(1)
		}
		defer f.Close()
		opts.logOut = f
	}
	log := logging.NewFromEnvTo(opts.logOut)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	if err := run(ctx, opts, log); err != nil {
		log.Error(ctx, "viewer exited", logging.Err(err))
		fmt.Fprintf(os.Stderr, "scene-viewer: %v\n", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, opts options, log logging.Logger) error {
	tracingCfg := observability.TracingConfigFromEnv()
	tracingCfg.Output = opts.logOut
	tracingCfg.Scene = observability.SceneInfo{
		Binary:   "scene-viewer",
		Scenario: opts.scenario,
		Seed:     opts.seed,
		Mode:     timectrl.RealTime.String(),
	}
	shutdownTracing, err := observability.InitTracing(ctx, tracingCfg, log)
	if err != nil {
		return err
	}
	defer observability.ShutdownWithTimeout(context.Background(), shutdownTracing, log)

	store := kb.NewKnowledgeBase()
	sc, err := core.LoadScenarioFile(store, opts.scenario, opts.seed)
	if err != nil {
		return err
	}

	var recorder *observability.SceneCollector
	if opts.metricsAddr != "" {
		recorder, err = observability.NewSceneCollector(prometheus.NewRegistry())
		if err != nil {
			return err
		}
		defer store.Subscribe(recorder.HandleEvent)()
		srv := &http.Server{Addr: opts.metricsAddr, Handler: recorder.Handler()}
		go func() {
			if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				log.Warn(ctx, "metrics server exited", logging.Err(err))
			}
		}()
		defer srv.Close()
	}

	if opts.sound {
		tones := tone.NewPlayer()
		if err := tones.Initialize(); err != nil {
			log.Warn(ctx, "audio unavailable; running silent", logging.Err(err))
		} else {
			defer tones.Cleanup()
			defer store.Subscribe(tones.HandleEvent)()
		}
	}

	screen, err := tcell.NewScreen()
	if err != nil {
		return fmt.Errorf("create screen: %w", err)
	}
	if err := screen.Init(); err != nil {
		return fmt.Errorf("init screen: %w", err)
	}
	surface := terminal.NewSurface(screen)

	loop := timectrl.NewFrameLoop(time.Now(), opts.tick, timectrl.RealTime)
	driverOpts := append(sc.DriverOptions(), core.WithLogger(log), core.WithNow(loop.Now))
	if recorder != nil {
		driverOpts = append(driverOpts, core.WithRecorder(recorder))
	}
	driver := core.NewDriver(store, loop, surface, driverOpts...)
	// Dispose finalises the screen, so it must run before anything prints.
	defer driver.Dispose()

	w, h := terminal.Viewport(screen.Size())
	if err := driver.Mount(ctx, w, h); err != nil {
		return err
	}
	loopDone := loop.Start(0)
	defer func() {
		loop.Stop()
		<-loopDone
	}()

	log.Info(ctx, "viewer started", logging.Int("cols", w), logging.Int("rows", h/terminal.CellAspect))
	terminal.PollInput(ctx, screen, terminal.Controls{
		TogglePlayback: driver.Playback().Toggle,
		Resize:         driver.Resize,
	})
	log.Info(ctx, "viewer stopping")
	return nil
}
