package observability

import (
	"fmt"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// InterlockingCollector bundles the Prometheus metrics driven by the
// interlocking engine and the train tracker. All recording methods are
// nil-safe so the core packages can run without metrics wired.
type InterlockingCollector struct {
	gatherer prometheus.Gatherer

	GrantsTotal          prometheus.Counter
	ReleasesTotal        prometheus.Counter
	PartialReleasesTotal prometheus.Counter
	StateErrorsTotal     prometheus.Counter

	RequestsQueued prometheus.Gauge
	RoutesOccupied prometheus.Gauge
	RoutesReserved prometheus.Gauge

	TrainDelaySeconds *prometheus.GaugeVec
}

// NewInterlockingCollector registers the interlocking metrics against the
// provided registerer, defaulting to the global Prometheus registry when
// nil. Re-registration of an identical collector is tolerated.
func NewInterlockingCollector(reg prometheus.Registerer) (*InterlockingCollector, error) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	gatherer := prometheus.DefaultGatherer
	if g, ok := reg.(prometheus.Gatherer); ok {
		gatherer = g
	}

	grants, err := registerCounter(reg, prometheus.NewCounter(prometheus.CounterOpts{
		Name: "interlocking_grants_total",
		Help: "Cumulative number of route reservations granted.",
	}), "interlocking_grants_total")
	if err != nil {
		return nil, err
	}
	releases, err := registerCounter(reg, prometheus.NewCounter(prometheus.CounterOpts{
		Name: "interlocking_releases_total",
		Help: "Cumulative number of full route releases.",
	}), "interlocking_releases_total")
	if err != nil {
		return nil, err
	}
	partials, err := registerCounter(reg, prometheus.NewCounter(prometheus.CounterOpts{
		Name: "interlocking_partial_releases_total",
		Help: "Cumulative number of partial route releases at release points.",
	}), "interlocking_partial_releases_total")
	if err != nil {
		return nil, err
	}
	stateErrors, err := registerCounter(reg, prometheus.NewCounter(prometheus.CounterOpts{
		Name: "interlocking_state_errors_total",
		Help: "Cumulative number of engine/tracker desync errors.",
	}), "interlocking_state_errors_total")
	if err != nil {
		return nil, err
	}

	queued, err := registerGauge(reg, prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "interlocking_requests_queued",
		Help: "Route requests currently waiting in FIFO queues.",
	}), "interlocking_requests_queued")
	if err != nil {
		return nil, err
	}
	occupied, err := registerGauge(reg, prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "interlocking_routes_occupied",
		Help: "Routes currently physically occupied by a train.",
	}), "interlocking_routes_occupied")
	if err != nil {
		return nil, err
	}
	reserved, err := registerGauge(reg, prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "interlocking_routes_reserved",
		Help: "Routes currently reserved for future use by a train.",
	}), "interlocking_routes_reserved")
	if err != nil {
		return nil, err
	}

	delay := prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Name: "train_delay_seconds",
		Help: "Current delay versus schedule per train; positive is late.",
	}, []string{"train"})
	delay, err = registerGaugeVec(reg, delay, "train_delay_seconds")
	if err != nil {
		return nil, err
	}

	return &InterlockingCollector{
		gatherer:             gatherer,
		GrantsTotal:          grants,
		ReleasesTotal:        releases,
		PartialReleasesTotal: partials,
		StateErrorsTotal:     stateErrors,
		RequestsQueued:       queued,
		RoutesOccupied:       occupied,
		RoutesReserved:       reserved,
		TrainDelaySeconds:    delay,
	}, nil
}

// Handler exposes a ready-to-use /metrics handler.
func (c *InterlockingCollector) Handler() http.Handler {
	gatherer := prometheus.DefaultGatherer
	if c != nil && c.gatherer != nil {
		gatherer = c.gatherer
	}
	return promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
}

func (c *InterlockingCollector) IncGrants() {
	if c != nil && c.GrantsTotal != nil {
		c.GrantsTotal.Inc()
	}
}

func (c *InterlockingCollector) IncReleases() {
	if c != nil && c.ReleasesTotal != nil {
		c.ReleasesTotal.Inc()
	}
}

func (c *InterlockingCollector) IncPartialReleases() {
	if c != nil && c.PartialReleasesTotal != nil {
		c.PartialReleasesTotal.Inc()
	}
}

func (c *InterlockingCollector) IncStateErrors() {
	if c != nil && c.StateErrorsTotal != nil {
		c.StateErrorsTotal.Inc()
	}
}

// AddQueued adjusts the queued-requests gauge by delta.
func (c *InterlockingCollector) AddQueued(delta int) {
	if c != nil && c.RequestsQueued != nil {
		c.RequestsQueued.Add(float64(delta))
	}
}

func (c *InterlockingCollector) SetOccupied(n int) {
	if c != nil && c.RoutesOccupied != nil {
		c.RoutesOccupied.Set(float64(n))
	}
}

func (c *InterlockingCollector) SetReserved(n int) {
	if c != nil && c.RoutesReserved != nil {
		c.RoutesReserved.Set(float64(n))
	}
}

// SetTrainDelay records the train's current delay in seconds.
func (c *InterlockingCollector) SetTrainDelay(train string, seconds float64) {
	if c != nil && c.TrainDelaySeconds != nil {
		c.TrainDelaySeconds.WithLabelValues(train).Set(seconds)
	}
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

func registerGaugeVec(reg prometheus.Registerer, vec *prometheus.GaugeVec, name string) (*prometheus.GaugeVec, error) {
	if err := reg.Register(vec); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			if existing, ok := are.ExistingCollector.(*prometheus.GaugeVec); ok {
				return existing, nil
			}
			return nil, fmt.Errorf("collector %s already registered with incompatible type", name)
		}
		return nil, err
	}
	return vec, nil
}
