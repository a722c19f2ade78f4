package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"math/rand/v2"
	"os"
	"os/signal"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/signalsfoundry/orrery/core"
	"github.com/signalsfoundry/orrery/internal/logging"
	"github.com/signalsfoundry/orrery/internal/observability"
	"github.com/signalsfoundry/orrery/internal/scene"
	"github.com/signalsfoundry/orrery/timectrl"
)

// ErrBadLaunchPlan is returned for a malformed -launch flag.
var ErrBadLaunchPlan = errors.New("bad launch plan")

// Config drives one headless run.
type Config struct {
	ScenePath string
	AssetRoot string
	Frames    int
	Tick      time.Duration
	Speed     float64
	Travel    float64
	Launches  []Launch
	Seed      uint64
}

// Launch schedules a launch toward Target on frame Frame.
type Launch struct {
	Frame  uint64
	Target string
}

// Trip is the outcome of one scripted launch.
type Trip struct {
	Target      string  `json:"target"`
	From        string  `json:"from"`
	Result      string  `json:"result"`
	LaunchFrame uint64  `json:"launch_frame"`
	ETA         float64 `json:"eta,omitempty"`
	LandedFrame uint64  `json:"landed_frame,omitempty"`
	Detail      string  `json:"detail,omitempty"`
}

// Summary reports a finished run.
type Summary struct {
	Scene   string  `json:"scene"`
	Frames  uint64  `json:"frames"`
	Elapsed float64 `json:"elapsed"`
	Ready   int     `json:"bodies_ready"`
	Trips   []Trip  `json:"trips"`
	// ShipBody is where the ship ended up, empty while traveling.
	ShipBody string `json:"ship_body"`
}

func main() {
	cfg := Config{}
	var launches string
	var asJSON bool
	flag.StringVar(&cfg.ScenePath, "scene", "", "scene catalogue (.yaml, .toml or .json); empty uses the built-in solar system")
	flag.StringVar(&cfg.AssetRoot, "assets", "", "directory holding body models; empty skips asset checks")
	flag.IntVar(&cfg.Frames, "frames", 3000, "number of frames to simulate")
	flag.DurationVar(&cfg.Tick, "tick", time.Second/60, "frame interval")
	flag.Float64Var(&cfg.Speed, "speed", 1, "orbit speed multiplier")
	flag.Float64Var(&cfg.Travel, "travel-speed", 0, "ship speed in units per tick (0 keeps the scene's)")
	flag.StringVar(&launches, "launch", "jupiter@10", "comma-separated launches as target@frame")
	flag.Uint64Var(&cfg.Seed, "seed", 1, "random seed")
	flag.BoolVar(&asJSON, "json", false, "print the summary as JSON")
	flag.Parse()

	log := logging.NewFromEnv()
	plan, err := parseLaunches(launches)
	if err != nil {
		fmt.Fprintf(os.Stderr, "%v\n", err)
		os.Exit(2)
	}
	cfg.Launches = plan

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	collector, err := observability.NewSimCollector(nil)
	if err != nil {
		log.Error(ctx, "failed to initialise metrics collector", logging.Err(err))
		os.Exit(1)
	}

	fmt.Fprintf(os.Stderr, "Starting simulation: frames=%d, tick=%s, launches=%d\n", cfg.Frames, cfg.Tick, len(cfg.Launches))
	summary, err := simulate(ctx, cfg, log, collector)
	if err != nil {
		log.Error(ctx, "simulation failed", logging.Err(err))
		os.Exit(1)
	}
	if asJSON {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		_ = enc.Encode(summary)
		return
	}
	printSummary(os.Stdout, summary)
}

// parseLaunches reads "target@frame,target@frame".
func parseLaunches(s string) ([]Launch, error) {
	var out []Launch
	for _, item := range strings.Split(s, ",") {
		item = strings.TrimSpace(item)
		if item == "" {
			continue
		}
		target, frame, ok := strings.Cut(item, "@")
		if !ok || strings.TrimSpace(target) == "" {
			return nil, fmt.Errorf("%w: %q, want target@frame", ErrBadLaunchPlan, item)
		}
		n, err := strconv.ParseUint(strings.TrimSpace(frame), 10, 64)
		if err != nil || n == 0 {
			return nil, fmt.Errorf("%w: %q, frame must be a positive integer", ErrBadLaunchPlan, item)
		}
		out = append(out, Launch{Frame: n, Target: scene.BodyID(target)})
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Frame < out[j].Frame })
	return out, nil
}

// simulate loads the scene, runs cfg.Frames accelerated frames with the
// scripted launches and reports what happened.
func simulate(ctx context.Context, cfg Config, log logging.Logger, metrics core.MetricsRecorder) (Summary, error) {
	if log == nil {
		log = logging.Noop()
	}
	cat := scene.DefaultCatalogue()
	if cfg.ScenePath != "" {
		var err error
		if cat, err = scene.Load(cfg.ScenePath); err != nil {
			return Summary{}, err
		}
	}
	var assets scene.AssetLoader = scene.NopAssetLoader
	if cfg.AssetRoot != "" {
		assets = scene.FileAssetLoader{Root: cfg.AssetRoot}
	}
	sc, err := scene.New(cat, scene.Options{
		Assets:  assets,
		Log:     log,
		Metrics: metrics,
		Rand:    rand.New(rand.NewPCG(cfg.Seed, cfg.Seed+1)),
	})
	if err != nil {
		return Summary{}, err
	}
	defer sc.Close()

	if _, err := sc.Load(ctx); err != nil {
		return Summary{}, err
	}
	if err := sc.Panel.SetAnimation(true); err != nil {
		return Summary{}, err
	}
	if cfg.Speed != 0 {
		if err := sc.Panel.SetSpeedScale(cfg.Speed); err != nil {
			return Summary{}, err
		}
	}
	if cfg.Travel > 0 {
		if err := sc.Panel.SetTravelSpeed(cfg.Travel); err != nil {
			return Summary{}, err
		}
	}
	for _, l := range cfg.Launches {
		if !cat.Has(l.Target) {
			return Summary{}, fmt.Errorf("%w: unknown target %q", ErrBadLaunchPlan, l.Target)
		}
	}

	summary := Summary{Scene: cat.Name}
	open := -1
	sc.Engine.AddListener(func(s core.Snapshot) {
		for _, ev := range s.Events {
			switch ev.Kind {
			case core.EventLaunched:
				summary.Trips = append(summary.Trips, Trip{
					Target: ev.Target, From: ev.Body, Result: core.LaunchOK,
					LaunchFrame: s.Index, ETA: ev.ETA,
				})
				open = len(summary.Trips) - 1
			case core.EventNoIntercept, core.EventLaunchRejected:
				result := core.LaunchRejected
				if ev.Kind == core.EventNoIntercept {
					result = core.LaunchNoIntercept
				}
				summary.Trips = append(summary.Trips, Trip{
					Target: ev.Target, From: ev.Body, Result: result,
					LaunchFrame: s.Index, Detail: ev.Detail,
				})
			case core.EventLanded:
				if open >= 0 {
					summary.Trips[open].LandedFrame = s.Index
					open = -1
				}
				log.Info(ctx, "ship landed", logging.String("body", ev.Body), logging.Int("frame", int(s.Index)))
			}
		}
	})

	clock := timectrl.NewFrameClock(cfg.Tick, timectrl.Accelerated)
	pending := cfg.Launches
	clock.AddListener(func(t timectrl.Tick) {
		for len(pending) > 0 && pending[0].Frame <= t.Index {
			l := pending[0]
			pending = pending[1:]
			if err := sc.Panel.SetTarget(l.Target); err != nil {
				log.Warn(ctx, "scripted target refused", logging.String("target", l.Target), logging.Err(err))
				continue
			}
			if err := sc.Panel.RequestLaunch(); err != nil {
				log.Warn(ctx, "scripted launch refused", logging.Err(err))
			}
		}
	})
	sc.Drive(ctx, clock, nil)

	if err := clock.Run(ctx, cfg.Frames); err != nil {
		return Summary{}, err
	}

	last := sc.Engine.Latest()
	summary.Frames = last.Index
	summary.Elapsed = last.Elapsed
	summary.Ready = len(last.Bodies)
	if last.Ship != nil && last.Ship.Target == "" {
		summary.ShipBody = last.Ship.Body
	}
	return summary, nil
}

func printSummary(w io.Writer, s Summary) {
	fmt.Fprintf(w, "Scene %s: %d frames, %.2fs simulated, %d bodies ready\n", s.Scene, s.Frames, s.Elapsed, s.Ready)
	for _, t := range s.Trips {
		switch {
		case t.Result != core.LaunchOK:
			fmt.Fprintf(w, "↳ %-8s -> %-8s frame %-6d %s (%s)\n", t.From, t.Target, t.LaunchFrame, t.Result, t.Detail)
		case t.LandedFrame > 0:
			fmt.Fprintf(w, "↳ %-8s -> %-8s frame %-6d eta %6.1f landed at frame %d\n", t.From, t.Target, t.LaunchFrame, t.ETA, t.LandedFrame)
		default:
			fmt.Fprintf(w, "↳ %-8s -> %-8s frame %-6d eta %6.1f still traveling\n", t.From, t.Target, t.LaunchFrame, t.ETA)
		}
	}
	if s.ShipBody != "" {
		fmt.Fprintf(w, "Ship parked at %s\n", s.ShipBody)
	}
	fmt.Fprintln(w, "Simulation complete.")
}
