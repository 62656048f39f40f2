package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"sync"
	"time"

	"github.com/signalsfoundry/debris-tracking-scene/core"
	"github.com/signalsfoundry/debris-tracking-scene/internal/logging"
	"github.com/signalsfoundry/debris-tracking-scene/kb"
	"github.com/signalsfoundry/debris-tracking-scene/timectrl"
)

type options struct {
	scenario    string
	seed        uint64
	duration    time.Duration
	tick        time.Duration
	accelerated bool
	reportEvery float64
}

func main() {
	var opts options
	flag.StringVar(&opts.scenario, "scenario", "", "path to a JSON scenario (empty = stock scene)")
	flag.Uint64Var(&opts.seed, "seed", core.DefaultSeed, "seed for the stock scene's background debris and stars")
	flag.DurationVar(&opts.duration, "duration", 60*time.Second, "total simulation duration")
	flag.DurationVar(&opts.tick, "tick", 50*time.Millisecond, "frame interval")
	flag.BoolVar(&opts.accelerated, "accelerated", true, "run in accelerated mode (vs real-time)")
	flag.Float64Var(&opts.reportEvery, "report-every", 1, "elapsed seconds between link summaries (0 = transitions only)")
	flag.Parse()

	log := logging.NewFromEnvTo(os.Stderr)
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	if err := run(ctx, opts, os.Stdout, log); err != nil {
		log.Error(ctx, "simulation failed", logging.Err(err))
		os.Exit(1)
	}
}

// run drives the scene headless and prints link transitions and periodic
// summaries to out.
func run(ctx context.Context, opts options, out io.Writer, log logging.Logger) error {
	store := kb.NewKnowledgeBase()
	sc, err := core.LoadScenarioFile(store, opts.scenario, opts.seed)
	if err != nil {
		return err
	}
	fmt.Fprintf(out, "Loaded scenario: %d trackers, target %s, %d background, %d stars\n",
		len(sc.TrackerIDs), sc.TargetID, len(sc.BackgroundIDs), len(sc.Stars))

	mode := timectrl.RealTime
	if opts.accelerated {
		mode = timectrl.Accelerated
	}
	loop := timectrl.NewFrameLoop(time.Now().UTC(), opts.tick, mode)

	rep := newReporter(out, opts.reportEvery)
	unsubscribe := store.Subscribe(rep.HandleEvent)
	defer unsubscribe()

	driverOpts := append(sc.DriverOptions(),
		core.WithLogger(log),
		core.WithNow(loop.Now),
	)
	driver := core.NewDriver(store, loop, rep, driverOpts...)
	if err := driver.Mount(ctx, 16, 9); err != nil {
		return err
	}
	defer driver.Dispose()

	fmt.Fprintf(out, "Starting simulation: duration=%s, tick=%s, mode=%v\n", opts.duration, opts.tick, mode)
	done := loop.Start(opts.duration)
	select {
	case <-done:
	case <-ctx.Done():
		loop.Stop()
		<-done
	}

	frames, transitions := rep.totals()
	fmt.Fprintf(out, "Simulation complete: %d frames, %d link transitions.\n", frames, transitions)
	return nil
}

// reporter is a text RenderSurface. It queues link transitions from the
// knowledge base and prints them stamped with the frame that caused them.
type reporter struct {
	out         io.Writer
	reportEvery float64

	mu          sync.Mutex
	names       map[string]string
	queued      []kb.Event
	nextReport  float64
	frames      int
	transitions int
}

func newReporter(out io.Writer, reportEvery float64) *reporter {
	return &reporter{out: out, reportEvery: reportEvery, names: make(map[string]string)}
}

func (r *reporter) HandleEvent(ev kb.Event) {
	if ev.Type != kb.EventLinkAcquired && ev.Type != kb.EventLinkLost {
		return
	}
	r.mu.Lock()
	r.queued = append(r.queued, ev)
	r.mu.Unlock()
}

func (r *reporter) Setup(setup core.SceneSetup) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, b := range setup.Bodies {
		r.names[b.ID] = b.Name
	}
	return nil
}

func (r *reporter) Render(_ context.Context, f core.Frame) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.frames++
	for _, ev := range r.queued {
		verb := "acquired"
		if ev.Type == kb.EventLinkLost {
			verb = "lost"
		}
		a := core.Vec3FromMotion(ev.Link.EndpointA)
		b := core.Vec3FromMotion(ev.Link.EndpointB)
		fmt.Fprintf(r.out, "[t=%7.2f] %-8s %-8s target (distance %.2f)\n",
			f.Elapsed, r.name(ev.Link.TrackerID), verb, a.DistanceTo(b))
		r.transitions++
	}
	r.queued = r.queued[:0]

	if r.reportEvery > 0 && f.Elapsed >= r.nextReport {
		r.nextReport = f.Elapsed + r.reportEvery
		line := fmt.Sprintf("[t=%7.2f] links %d/%d", f.Elapsed, f.ActiveLinks(), len(f.Links))
		if sp := f.TargetSub; sp != nil {
			line += fmt.Sprintf("  target lat %.1f lon %.1f alt %.0f km", sp.LatitudeDeg, sp.LongitudeDeg, sp.AltitudeKm)
		}
		fmt.Fprintln(r.out, line)
	}
	return nil
}

func (r *reporter) Resize(int, int) {}

func (r *reporter) Dispose() error { return nil }

func (r *reporter) totals() (frames, transitions int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.frames, r.transitions
}

func (r *reporter) name(id string) string {
	if n := r.names[id]; n != "" {
		return n
	}
	return id
}
