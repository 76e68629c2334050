// Package metrics exposes the discovery engine's counters to Prometheus.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "serendipity"

// Registry holds every serendipity metric plus the Go runtime ones.
var Registry = prometheus.NewRegistry()

var factory = promauto.With(Registry)

var (
	// SamplesTotal counts location samples by filter decision
	SamplesTotal = factory.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "location_samples_total",
		Help:      "Location samples received, by filter decision.",
	}, []string{"decision"})

	// HeartbeatsTotal counts discovery cycles by outcome: ok, failed or throttled
	HeartbeatsTotal = factory.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "heartbeats_total",
		Help:      "Discovery heartbeats, by outcome.",
	}, []string{"outcome"})

	DiscoveryDuration = factory.NewHistogram(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "discovery_duration_seconds",
		Help:      "Latency of nearby pin queries.",
		Buckets:   prometheus.ExponentialBuckets(0.05, 2, 8),
	})

	NotificationsTotal = factory.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "notifications_total",
		Help:      "Notifications handed to presenters.",
	})

	PassBysTotal = factory.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "pass_bys_total",
		Help:      "Pins passed by without interaction.",
	})

	VisiblePins = factory.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "visible_pins",
		Help:      "Pins visible through the fog at the last location update.",
	})

	ExploredCircles = factory.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "explored_circles",
		Help:      "Size of the explored circle log.",
	})
)

func init() {
	Registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
}

// Handler serves the registry in the Prometheus exposition format.
func Handler() http.Handler {
	return promhttp.HandlerFor(Registry, promhttp.HandlerOpts{Registry: Registry})
}
