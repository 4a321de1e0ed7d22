// Package metrics provides Prometheus metrics for the Clover service.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// FeedSyncsTotal tracks feed sync attempts by outcome
	FeedSyncsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "clover",
			Subsystem: "sync",
			Name:      "feeds_total",
			Help:      "Total number of feed sync attempts by outcome",
		},
		[]string{"platform", "status"},
	)

	// FeedSyncDuration tracks how long one feed's fetch-parse-reconcile takes
	FeedSyncDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "clover",
			Subsystem: "sync",
			Name:      "feed_duration_seconds",
			Help:      "Duration of a single feed sync in seconds",
			Buckets:   []float64{0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60},
		},
		[]string{"platform"},
	)

	// EventsReconciled tracks reconciler writes by action
	EventsReconciled = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "clover",
			Subsystem: "sync",
			Name:      "events_reconciled_total",
			Help:      "Total number of calendar events written by the reconciler, by action",
		},
		[]string{"action"},
	)

	// FeedFetchErrors tracks fetch failures by cause
	FeedFetchErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "clover",
			Subsystem: "feed",
			Name:      "fetch_errors_total",
			Help:      "Total number of feed fetch failures by cause",
		},
		[]string{"cause"},
	)

	// BookingsCreated tracks successful direct bookings
	BookingsCreated = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: "clover",
			Subsystem: "booking",
			Name:      "created_total",
			Help:      "Total number of direct bookings created",
		},
	)

	// BookingConflicts tracks bookings rejected for overlapping dates
	BookingConflicts = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: "clover",
			Subsystem: "booking",
			Name:      "conflicts_total",
			Help:      "Total number of booking attempts rejected as conflicts",
		},
	)

	// CalendarExports tracks outbound ICS renders
	CalendarExports = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: "clover",
			Subsystem: "feed",
			Name:      "exports_total",
			Help:      "Total number of outbound calendar exports served",
		},
	)
)
