// Package metrics exposes Prometheus metrics for ticket processing and
// geographic resolution. All collectors register against a custom registry
// served on /metrics.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Registry is the application's prometheus registry.
var Registry = prometheus.NewRegistry()

var factory = promauto.With(Registry)

// TicketsProcessed counts tickets that went through a processing run,
// labeled by terminal outcome (assigned, unassigned, spam, error).
var TicketsProcessed = factory.NewCounterVec(prometheus.CounterOpts{
	Namespace: "routing",
	Name:      "tickets_processed_total",
	Help:      "Tickets processed, by terminal outcome",
}, []string{"outcome"})

// UnassignedByReason breaks unassigned tickets down by reason code.
var UnassignedByReason = factory.NewCounterVec(prometheus.CounterOpts{
	Namespace: "routing",
	Name:      "unassigned_total",
	Help:      "Unassigned tickets by reason code",
}, []string{"reason"})

// GeoResolutions counts resolver outcomes by the fallback tier that
// produced the coordinates ("unresolved" when every tier failed).
var GeoResolutions = factory.NewCounterVec(prometheus.CounterOpts{
	Namespace: "geocode",
	Name:      "resolutions_total",
	Help:      "Location resolutions by source tier",
}, []string{"source"})

// ProviderErrors counts failed geocoding provider calls. Provider failure
// is recoverable (the offline tiers take over) but worth watching.
var ProviderErrors = factory.NewCounter(prometheus.CounterOpts{
	Namespace: "geocode",
	Name:      "provider_errors_total",
	Help:      "Geocoding provider call failures",
})

// ProviderRequests counts geocoding provider calls that went to the network
// (cache hits excluded).
var ProviderRequests = factory.NewCounter(prometheus.CounterOpts{
	Namespace: "geocode",
	Name:      "provider_requests_total",
	Help:      "Geocoding provider HTTP requests issued",
})

// RunDurationSeconds tracks wall time of full processing runs.
var RunDurationSeconds = factory.NewHistogram(prometheus.HistogramOpts{
	Namespace: "routing",
	Name:      "run_duration_seconds",
	Help:      "Duration of a full ticket processing run",
	Buckets:   []float64{0.1, 0.5, 1, 5, 15, 60, 300, 900},
})

// TicketDurationSeconds tracks per-ticket routing time (analysis excluded).
var TicketDurationSeconds = factory.NewHistogram(prometheus.HistogramOpts{
	Namespace: "routing",
	Name:      "ticket_duration_seconds",
	Help:      "Time to route a single ticket through the engine",
	Buckets:   []float64{0.0001, 0.0005, 0.001, 0.005, 0.025, 0.1, 0.5, 2},
})
