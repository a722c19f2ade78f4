package main

import (
	"context"
	"errors"
	"flag"
	"math/rand/v2"
	"net"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/signalsfoundry/orrery/internal/api"
	"github.com/signalsfoundry/orrery/internal/logging"
	"github.com/signalsfoundry/orrery/internal/observability"
	"github.com/signalsfoundry/orrery/internal/scene"
	"github.com/signalsfoundry/orrery/timectrl"
)

// Config holds the server settings parsed from flags.
type Config struct {
	ListenAddress  string
	MetricsAddress string
	ScenePath      string
	AssetRoot      string
	TickInterval   time.Duration
	Accelerated    bool
	FeedRate       float64
	AllowedOrigins []string
	Seed           uint64
}

func main() {
	cfg := Config{}
	var origins string
	flag.StringVar(&cfg.ListenAddress, "addr", ":8080", "HTTP address the API listens on")
	flag.StringVar(&cfg.MetricsAddress, "metrics-addr", "", "separate HTTP address for Prometheus /metrics (empty serves it on the API address)")
	flag.StringVar(&cfg.ScenePath, "scene", "", "scene catalogue (.yaml, .toml or .json); empty uses the built-in solar system")
	flag.StringVar(&cfg.AssetRoot, "assets", "", "directory holding body models; empty skips asset checks")
	flag.DurationVar(&cfg.TickInterval, "tick", time.Second/60, "frame interval")
	flag.BoolVar(&cfg.Accelerated, "accelerated", false, "step frames back to back with a fixed dt")
	flag.Float64Var(&cfg.FeedRate, "feed-rate", api.DefaultFeedRate, "websocket frames per second per client")
	flag.StringVar(&origins, "origins", "", "comma-separated origins allowed by CORS and the websocket feed")
	flag.Uint64Var(&cfg.Seed, "seed", 0, "random seed for stars and exhaust (0 picks one)")
	flag.Parse()
	cfg.AllowedOrigins = splitList(origins)

	log := logging.NewFromEnv()
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	shutdownTracing, err := observability.InitTracing(ctx, observability.TracingConfigFromEnv(), log)
	if err != nil {
		log.Error(ctx, "failed to initialise tracing", logging.Err(err))
		os.Exit(1)
	}
	defer observability.ShutdownWithTimeout(context.Background(), shutdownTracing, log)

	lis, err := net.Listen("tcp", cfg.ListenAddress)
	if err != nil {
		log.Error(ctx, "failed to listen", logging.String("addr", cfg.ListenAddress), logging.Err(err))
		os.Exit(1)
	}

	if err := run(ctx, cfg, log, lis); err != nil {
		log.Error(ctx, "server exited", logging.Err(err))
		os.Exit(1)
	}
}

// run serves the API on lis and drives the scene until ctx is cancelled.
func run(ctx context.Context, cfg Config, log logging.Logger, lis net.Listener) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	collector, err := observability.NewSimCollector(nil)
	if err != nil {
		return err
	}

	cat, err := loadCatalogue(cfg.ScenePath)
	if err != nil {
		return err
	}
	sc, err := scene.New(cat, scene.Options{
		Assets:  assetLoader(cfg.AssetRoot),
		Log:     log,
		Metrics: collector,
		Rand:    newRand(cfg.Seed),
	})
	if err != nil {
		return err
	}
	defer sc.Close()

	mode := timectrl.RealTime
	if cfg.Accelerated {
		mode = timectrl.Accelerated
	}
	clock := timectrl.NewFrameClock(cfg.TickInterval, mode)
	sc.Drive(ctx, clock, nil)

	opts := []api.Option{api.WithLogger(log), api.WithAllowedOrigins(cfg.AllowedOrigins...)}
	if cfg.FeedRate > 0 {
		opts = append(opts, api.WithFeedRate(cfg.FeedRate))
	}
	if cfg.MetricsAddress == "" {
		opts = append(opts, api.WithMetrics(collector))
	}
	srv := &http.Server{
		Handler:           api.New(sc, opts...).Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	var metricsSrv *http.Server
	if cfg.MetricsAddress != "" {
		metricsSrv = serveMetrics(cfg.MetricsAddress, collector, log)
	}

	errCh := make(chan error, 1)
	go func() {
		if err := srv.Serve(lis); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()
	log.Info(ctx, "serving orrery API",
		logging.String("addr", lis.Addr().String()),
		logging.String("scene", cat.Name),
		logging.String("mode", mode.String()),
	)

	go func() {
		if _, err := sc.Load(ctx); err != nil && ctx.Err() == nil {
			log.Warn(ctx, "scene load aborted", logging.Err(err))
		}
	}()
	clockDone := clock.Start(ctx, 0)

	var runErr error
	select {
	case <-ctx.Done():
	case runErr = <-errCh:
		cancel()
	}

	log.Info(context.Background(), "shutting down orrery server")
	shutdownCtx, done := context.WithTimeout(context.Background(), 5*time.Second)
	defer done()
	_ = srv.Shutdown(shutdownCtx)
	if metricsSrv != nil {
		_ = metricsSrv.Shutdown(shutdownCtx)
	}
	<-clockDone
	return runErr
}

func serveMetrics(addr string, collector *observability.SimCollector, log logging.Logger) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", collector.Handler())

	srv := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Warn(context.Background(), "metrics server exited", logging.Err(err))
		}
	}()

	log.Info(context.Background(), "serving Prometheus metrics", logging.String("addr", addr))
	return srv
}

func loadCatalogue(path string) (scene.Catalogue, error) {
	if path == "" {
		return scene.DefaultCatalogue(), nil
	}
	return scene.Load(path)
}

func assetLoader(root string) scene.AssetLoader {
	if root == "" {
		return scene.NopAssetLoader
	}
	return scene.FileAssetLoader{Root: root}
}

func newRand(seed uint64) *rand.Rand {
	if seed == 0 {
		seed = rand.Uint64()
	}
	return rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
