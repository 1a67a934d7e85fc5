package metrics

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "roombooking"

var (
	once sync.Once

	windowRejected = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "window_rejected_total",
			Help:      "Count of time windows rejected by validation rule.",
		},
		[]string{"rule"},
	)

	conflicts = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "reservation_conflicts_total",
			Help:      "Count of requests refused because the room was already booked.",
		},
		[]string{"operation"},
	)

	reservations = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "reservations_total",
			Help:      "Count of reservation writes by operation and outcome.",
		},
		[]string{"operation", "result"},
	)

	availabilityDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "availability_query_duration_seconds",
			Help:      "Time to resolve available rooms for a window.",
			Buckets:   []float64{.001, .005, .01, .05, .1, .5, 1},
		},
	)

	roomCache = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "room_cache_total",
			Help:      "Room list cache lookups by result.",
		},
		[]string{"result"},
	)

	httpRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "HTTP API requests by route.",
		},
		[]string{"route"},
	)
)

// Register registers metrics (idempotent).
func Register() {
	once.Do(func() {
		prometheus.MustRegister(windowRejected, conflicts, reservations, availabilityDuration, roomCache, httpRequests)
	})
}

func IncWindowRejected(rule string) {
	windowRejected.WithLabelValues(rule).Inc()
}

func IncConflict(operation string) {
	conflicts.WithLabelValues(operation).Inc()
}

func IncReservation(operation, result string) {
	reservations.WithLabelValues(operation, result).Inc()
}

func ObserveAvailability(d time.Duration) {
	availabilityDuration.Observe(d.Seconds())
}

func IncRoomCache(result string) {
	roomCache.WithLabelValues(result).Inc()
}

func IncHTTP(route string) {
	httpRequests.WithLabelValues(route).Inc()
}
