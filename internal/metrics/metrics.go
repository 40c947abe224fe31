package metrics

import (
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/push"
)

const namespace = "hivekeeper"

// Registry holds every hivekeeper collector. It is separate from the
// default registry so tests and pushes see only our series.
var Registry = prometheus.NewRegistry()

var (
	EventsEmitted = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "events_emitted_total",
			Help:      "Events delivered to a sink",
		},
		[]string{"sink", "kind"},
	)

	SinkFailures = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "sink_failures_total",
			Help:      "Events a sink failed to deliver",
		},
		[]string{"sink"},
	)

	StateTransitions = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "state_transitions_total",
			Help:      "Lifecycle transitions of supervised services",
		},
		[]string{"service", "state"},
	)

	// Counted by the supervisor from relayed child events, so the host that
	// pushes its registry reports the decoys it runs.
	Interactions = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "decoy_interactions_total",
			Help:      "Interactions reported by supervised decoys",
		},
		[]string{"service", "act"},
	)

	RequestCount = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "HTTP requests served, by server and route",
		},
		[]string{"server", "route", "code"},
	)

	RequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "Duration of HTTP requests",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"server", "route"},
	)
)

func init() {
	Registry.MustRegister(
		EventsEmitted,
		SinkFailures,
		StateTransitions,
		Interactions,
		RequestCount,
		RequestDuration,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
}

/**
 * Push the registry to a Prometheus Pushgateway
 * @param {string} url - Pushgateway address, empty means disabled
 * @param {string} job - Job label
 * @param {map[string]string} grouping - Extra grouping labels (e.g. instance)
 * @returns {error} Push failure
 */
func Push(url, job string, grouping map[string]string) error {
	if url == "" {
		return nil
	}
	p := push.New(url, job).Gatherer(Registry)
	for k, v := range grouping {
		p = p.Grouping(k, v)
	}
	if err := p.Add(); err != nil {
		return fmt.Errorf("push metrics to %s: %w", url, err)
	}
	return nil
}
