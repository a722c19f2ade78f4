package main

import (
	"context"
	"flag"
	"fmt"
	"math/rand/v2"
	"os"
	"os/signal"
	"time"

	"github.com/gdamore/tcell/v2"

	"github.com/signalsfoundry/orrery/internal/audio"
	"github.com/signalsfoundry/orrery/internal/logging"
	"github.com/signalsfoundry/orrery/internal/scene"
	"github.com/signalsfoundry/orrery/internal/tui"
	"github.com/signalsfoundry/orrery/timectrl"
)

// Config holds the viewer settings parsed from flags.
type Config struct {
	ScenePath string
	AssetRoot string
	Tick      time.Duration
	Sound     bool
	Seed      uint64
}

func main() {
	cfg := Config{}
	help := flag.Bool("keys", false, "print the key bindings and exit")
	flag.StringVar(&cfg.ScenePath, "scene", "", "scene catalogue (.yaml, .toml or .json); empty uses the built-in solar system")
	flag.StringVar(&cfg.AssetRoot, "assets", "", "directory holding body models; empty skips asset checks")
	flag.DurationVar(&cfg.Tick, "tick", time.Second/30, "frame interval")
	flag.BoolVar(&cfg.Sound, "sound", true, "play audio cues")
	flag.Uint64Var(&cfg.Seed, "seed", 0, "random seed for stars and exhaust (0 picks one)")
	flag.Parse()

	if *help {
		fmt.Println(tui.Help)
		return
	}

	// Log lines must never reach the terminal while tcell owns it.
	log, closeLog, err := logging.NewFileFromEnv()
	if err != nil {
		fmt.Fprintf(os.Stderr, "open log file: %v\n", err)
		os.Exit(1)
	}
	defer closeLog()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	screen, err := tcell.NewScreen()
	if err != nil {
		fmt.Fprintf(os.Stderr, "create screen: %v\n", err)
		os.Exit(1)
	}
	if err := screen.Init(); err != nil {
		fmt.Fprintf(os.Stderr, "init screen: %v\n", err)
		os.Exit(1)
	}

	err = run(ctx, cfg, screen, log)
	screen.Fini()
	if err != nil {
		fmt.Fprintf(os.Stderr, "orrery-tui: %v\n", err)
		os.Exit(1)
	}
}

// run loads the scene, attaches the viewer and blocks until the user
// quits or ctx is cancelled. The caller owns the screen.
func run(ctx context.Context, cfg Config, screen tcell.Screen, log logging.Logger) error {
	cat := scene.DefaultCatalogue()
	if cfg.ScenePath != "" {
		var err error
		if cat, err = scene.Load(cfg.ScenePath); err != nil {
			return err
		}
	}
	var assets scene.AssetLoader = scene.NopAssetLoader
	if cfg.AssetRoot != "" {
		assets = scene.FileAssetLoader{Root: cfg.AssetRoot}
	}
	seed := cfg.Seed
	if seed == 0 {
		seed = rand.Uint64()
	}
	sc, err := scene.New(cat, scene.Options{
		Assets: assets,
		Log:    log,
		Rand:   rand.New(rand.NewPCG(seed, ^seed)),
	})
	if err != nil {
		return err
	}
	defer sc.Close()

	if cfg.Sound {
		spk, err := audio.NewSpeaker(audio.DefaultSampleRate, log)
		if err != nil {
			// Non-fatal: the viewer runs without sound.
			log.Warn(ctx, "audio disabled", logging.Err(err))
		} else {
			defer spk.Close()
			sc.Engine.AddListener(audio.Listener(spk))
		}
	}

	go func() {
		if _, err := sc.Load(ctx); err != nil && ctx.Err() == nil {
			log.Warn(ctx, "scene load aborted", logging.Err(err))
		}
	}()

	app := tui.New(screen, sc, tui.WithLogger(log))
	clock := timectrl.NewFrameClock(cfg.Tick, timectrl.RealTime)
	return app.Run(ctx, clock)
}
