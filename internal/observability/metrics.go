package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	RequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "seating_requests_total",
			Help: "Total number of requests",
		},
		[]string{"route", "code", "method"},
	)

	DBTxDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "seating_db_tx_seconds",
			Help:    "Duration of DB transactions",
			Buckets: prometheus.DefBuckets,
		},
	)

	SeatsGenerated = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "seating_seats_generated_total",
			Help: "Total seats written by inventory generation",
		},
	)

	SeatGenerationFailures = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "seating_seat_generation_failures_total",
			Help: "Floor plans saved without a seat inventory",
		},
	)

	Reservations = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "seating_reservations_total",
			Help: "Seat status transitions by outcome",
		},
		[]string{"transition", "outcome"},
	)

	ReservationConflicts = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "seating_reservation_conflicts_total",
			Help: "Reservation attempts that lost the compare-and-swap",
		},
	)

	ReservationsExpired = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "seating_reservations_expired_total",
			Help: "Expired reservations returned to AVAILABLE",
		},
	)

	OutboxLag = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "seating_outbox_lag_seconds",
			Help: "Lag of outbox publishing",
		},
	)

	RateLimitExceeded = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "seating_rate_limit_exceeded_total",
			Help: "Total rate limit exceeded",
		},
	)
)
