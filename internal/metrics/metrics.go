// Package metrics exposes Prometheus counters for the booking flow.
package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	once sync.Once

	bookingCreated = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "experience_booking",
			Name:      "booking_created_total",
			Help:      "Count of bookings created.",
		},
	)

	bookingCancelled = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "experience_booking",
			Name:      "booking_cancelled_total",
			Help:      "Count of bookings cancelled.",
		},
	)

	statusChanged = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "experience_booking",
			Name:      "booking_status_changed_total",
			Help:      "Count of booking status transitions by target status.",
		},
		[]string{"status"},
	)

	capacityRejected = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "experience_booking",
			Name:      "booking_capacity_rejected_total",
			Help:      "Count of reservations rejected for insufficient slot capacity.",
		},
	)
)

// Register registers metrics (idempotent).
func Register() {
	once.Do(func() {
		prometheus.MustRegister(bookingCreated, bookingCancelled, statusChanged, capacityRejected)
	})
}

func IncBookingCreated() { bookingCreated.Inc() }

func IncBookingCancelled() { bookingCancelled.Inc() }

func IncStatusChanged(status string) { statusChanged.WithLabelValues(status).Inc() }

func IncCapacityRejected() { capacityRejected.Inc() }
