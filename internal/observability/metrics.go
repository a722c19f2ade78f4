package observability

import (
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// SimCollector bundles Prometheus metrics for the simulation loop and the
// HTTP control surface. It implements core.MetricsRecorder.
type SimCollector struct {
	gatherer prometheus.Gatherer

	Ticks               prometheus.Counter
	TickDurations       prometheus.Histogram
	Launches            *prometheus.CounterVec
	InterceptIterations prometheus.Histogram
	Landings            *prometheus.CounterVec
	BodiesReady         prometheus.Gauge
	TravelActive        prometheus.Gauge

	HTTPRequests  *prometheus.CounterVec
	HTTPDurations *prometheus.HistogramVec
}

// NewSimCollector registers the simulation metrics against the provided
// registerer, defaulting to the global Prometheus registry when nil.
// Collectors that are already registered are reused.
func NewSimCollector(reg prometheus.Registerer) (*SimCollector, error) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	gatherer := prometheus.DefaultGatherer
	if g, ok := reg.(prometheus.Gatherer); ok {
		gatherer = g
	}

	ticks, err := registerCounter(reg, prometheus.NewCounter(prometheus.CounterOpts{
		Name: "orrery_ticks_total",
		Help: "Total number of simulation ticks stepped.",
	}), "orrery_ticks_total")
	if err != nil {
		return nil, err
	}
	tickDurations, err := registerHistogram(reg, prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "orrery_tick_duration_seconds",
		Help:    "Wall-clock time spent in one simulation step.",
		Buckets: []float64{0.0001, 0.00025, 0.0005, 0.001, 0.0025, 0.005, 0.01, 0.025, 0.05},
	}), "orrery_tick_duration_seconds")
	if err != nil {
		return nil, err
	}
	launches, err := registerCounterVec(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "orrery_launches_total",
		Help: "Launch attempts, labeled by result (ok, no_intercept, rejected).",
	}, []string{"result"}), "orrery_launches_total")
	if err != nil {
		return nil, err
	}
	iterations, err := registerHistogram(reg, prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "orrery_intercept_iterations",
		Help:    "Bisection iterations used by successful intercept solves.",
		Buckets: []float64{1, 5, 10, 20, 30, 40, 50},
	}), "orrery_intercept_iterations")
	if err != nil {
		return nil, err
	}
	landings, err := registerCounterVec(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "orrery_landings_total",
		Help: "Completed trips, labeled by destination body.",
	}, []string{"body"}), "orrery_landings_total")
	if err != nil {
		return nil, err
	}
	ready, err := registerGauge(reg, prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "orrery_bodies_ready",
		Help: "Current number of bodies that finished loading.",
	}), "orrery_bodies_ready")
	if err != nil {
		return nil, err
	}
	travel, err := registerGauge(reg, prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "orrery_travel_active",
		Help: "1 while the ship is traveling, 0 otherwise.",
	}), "orrery_travel_active")
	if err != nil {
		return nil, err
	}

	requests, err := registerCounterVec(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "orrery_http_requests_total",
		Help: "Handled HTTP requests, labeled by route and status code.",
	}, []string{"route", "code"}), "orrery_http_requests_total")
	if err != nil {
		return nil, err
	}
	durations, err := registerHistogramVec(reg, prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "orrery_http_request_duration_seconds",
		Help:    "HTTP request latency in seconds.",
		Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2, 5},
	}, []string{"route"}), "orrery_http_request_duration_seconds")
	if err != nil {
		return nil, err
	}

	return &SimCollector{
		gatherer:            gatherer,
		Ticks:               ticks,
		TickDurations:       tickDurations,
		Launches:            launches,
		InterceptIterations: iterations,
		Landings:            landings,
		BodiesReady:         ready,
		TravelActive:        travel,
		HTTPRequests:        requests,
		HTTPDurations:       durations,
	}, nil
}

// ObserveTick counts one step and records how long it took.
func (c *SimCollector) ObserveTick(d time.Duration) {
	if c == nil {
		return
	}
	c.Ticks.Inc()
	c.TickDurations.Observe(d.Seconds())
}

// RecordLaunch counts a launch attempt. Iterations are only observed for
// successful solves.
func (c *SimCollector) RecordLaunch(result string, iterations int) {
	if c == nil {
		return
	}
	c.Launches.WithLabelValues(result).Inc()
	if iterations > 0 {
		c.InterceptIterations.Observe(float64(iterations))
	}
}

func (c *SimCollector) RecordLanding(body string) {
	if c == nil {
		return
	}
	c.Landings.WithLabelValues(body).Inc()
}

func (c *SimCollector) SetBodiesReady(n int) {
	if c == nil {
		return
	}
	c.BodiesReady.Set(float64(n))
}

func (c *SimCollector) SetTravelActive(active bool) {
	if c == nil {
		return
	}
	v := 0.0
	if active {
		v = 1
	}
	c.TravelActive.Set(v)
}

// ObserveHTTP records one handled request. Unmatched routes should be
// passed as "unknown" to keep label cardinality bounded.
func (c *SimCollector) ObserveHTTP(route string, code int, d time.Duration) {
	if c == nil {
		return
	}
	if route == "" {
		route = "unknown"
	}
	c.HTTPRequests.WithLabelValues(route, strconv.Itoa(code)).Inc()
	c.HTTPDurations.WithLabelValues(route).Observe(d.Seconds())
}

// Handler exposes a ready-to-use /metrics handler.
func (c *SimCollector) Handler() http.Handler {
	gatherer := c.gatherer
	if gatherer == nil {
		gatherer = prometheus.DefaultGatherer
	}
	return promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
}

func registerCounter(reg prometheus.Registerer, counter prometheus.Counter, name string) (prometheus.Counter, error) {
	if err := reg.Register(counter); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			if existing, ok := are.ExistingCollector.(prometheus.Counter); ok {
				return existing, nil
			}
			return nil, fmt.Errorf("collector %s already registered with incompatible type", name)
		}
		return nil, err
	}
	return counter, nil
}

func registerCounterVec(reg prometheus.Registerer, vec *prometheus.CounterVec, name string) (*prometheus.CounterVec, error) {
	if err := reg.Register(vec); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			if existing, ok := are.ExistingCollector.(*prometheus.CounterVec); ok {
				return existing, nil
			}
			return nil, fmt.Errorf("collector %s already registered with incompatible type", name)
		}
		return nil, err
	}
	return vec, nil
}

func registerHistogram(reg prometheus.Registerer, h prometheus.Histogram, name string) (prometheus.Histogram, error) {
	if err := reg.Register(h); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			if existing, ok := are.ExistingCollector.(prometheus.Histogram); ok {
				return existing, nil
			}
			return nil, fmt.Errorf("collector %s already registered with incompatible type", name)
		}
		return nil, err
	}
	return h, nil
}

func registerHistogramVec(reg prometheus.Registerer, vec *prometheus.HistogramVec, name string) (*prometheus.HistogramVec, error) {
	if err := reg.Register(vec); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			if existing, ok := are.ExistingCollector.(*prometheus.HistogramVec); ok {
				return existing, nil
			}
			return nil, fmt.Errorf("collector %s already registered with incompatible type", name)
		}
		return nil, err
	}
	return vec, nil
}

func registerGauge(reg prometheus.Registerer, gauge prometheus.Gauge, name string) (prometheus.Gauge, error) {
	if err := reg.Register(gauge); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			if existing, ok := are.ExistingCollector.(prometheus.Gauge); ok {
				return existing, nil
			}
			return nil, fmt.Errorf("collector %s already registered with incompatible type", name)
		}
		return nil, err
	}
	return gauge, nil
}
