package metrics

import (
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/push"
)

// Metrics holds the counters for one ingestion run. A nil *Metrics is valid
// and records nothing.
type Metrics struct {
	registry      *prometheus.Registry
	httpAttempts  *prometheus.CounterVec
	cacheLookups  *prometheus.CounterVec
	eventsWritten prometheus.Counter
	runDuration   prometheus.Gauge
}

func New() *Metrics {
	m := &Metrics{registry: prometheus.NewRegistry()}

	m.httpAttempts = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "onthisday",
		Name:      "http_attempts_total",
		Help:      "Upstream HTTP attempts by upstream service and outcome",
	}, []string{"upstream", "outcome"})
	m.cacheLookups = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "onthisday",
		Name:      "cache_lookups_total",
		Help:      "Cache lookups by cache name and result",
	}, []string{"cache", "result"})
	m.eventsWritten = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "onthisday",
		Name:      "events_written_total",
		Help:      "Events committed to the document store",
	})
	m.runDuration = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "onthisday",
		Name:      "run_duration_seconds",
		Help:      "Wall time of the last ingestion run",
	})

	m.registry.MustRegister(m.httpAttempts, m.cacheLookups, m.eventsWritten, m.runDuration)
	return m
}

func (m *Metrics) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}

// HTTPAttempt counts one attempt. upstream must come from a small fixed set
// such as "feed" or "wikidata".
func (m *Metrics) HTTPAttempt(upstream, outcome string) {
	if m == nil {
		return
	}
	m.httpAttempts.WithLabelValues(upstream, outcome).Inc()
}

func (m *Metrics) CacheLookup(cache, result string) {
	if m == nil {
		return
	}
	m.cacheLookups.WithLabelValues(cache, result).Inc()
}

func (m *Metrics) EventsWritten(n int) {
	if m == nil {
		return
	}
	m.eventsWritten.Add(float64(n))
}

func (m *Metrics) RunDuration(seconds float64) {
	if m == nil {
		return
	}
	m.runDuration.Set(seconds)
}

// Push sends the registry to a Prometheus Pushgateway under the given job.
func (m *Metrics) Push(url, job string) error {
	if m == nil || url == "" {
		return nil
	}
	if err := push.New(url, job).Gatherer(m.registry).Push(); err != nil {
		return fmt.Errorf("failed to push metrics: %w", err)
	}
	return nil
}
