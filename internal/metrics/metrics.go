// Package metrics exposes Prometheus counters for HTTP traffic and booking
// outcomes.
package metrics

import (
	"net/http"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "eventbooking"

var (
	once sync.Once

	httpRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "HTTP requests by route pattern and status code.",
		},
		[]string{"route", "status"},
	)

	bookingOutcomes = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "booking_operations_total",
			Help:      "Reserve and cancel attempts by outcome.",
		},
		[]string{"operation", "outcome"},
	)

	seatsReserved = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "seats_reserved_total",
		Help:      "Seats taken by confirmed bookings.",
	})

	seatsReturned = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "seats_returned_total",
		Help:      "Seats given back by cancellations.",
	})

	cacheLookups = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "event_cache_lookups_total",
			Help:      "Event cache lookups by result.",
		},
		[]string{"result"},
	)
)

// Register registers Prometheus metrics. Safe to call multiple times.
func Register() {
	once.Do(func() {
		prometheus.MustRegister(httpRequests, bookingOutcomes, seatsReserved, seatsReturned, cacheLookups)
	})
}

// Handler serves the default registry in the Prometheus exposition format.
func Handler() http.Handler {
	return promhttp.Handler()
}

// IncHTTP increments the request counter for a route and status.
func IncHTTP(route, status string) {
	httpRequests.WithLabelValues(route, status).Inc()
}

// ObserveBooking records the outcome of a reserve or cancel attempt.
func ObserveBooking(operation, outcome string) {
	bookingOutcomes.WithLabelValues(operation, outcome).Inc()
}

// AddSeatsReserved adds n to the reserved seat counter.
func AddSeatsReserved(n int) {
	seatsReserved.Add(float64(n))
}

// AddSeatsReturned adds n to the returned seat counter.
func AddSeatsReturned(n int) {
	seatsReturned.Add(float64(n))
}

// ObserveCache records a cache hit, miss or error.
func ObserveCache(result string) {
	cacheLookups.WithLabelValues(result).Inc()
}
