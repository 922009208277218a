/*
Copyright (C) 2026 El Palenque

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package telemetry

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// APIRequestsTotal counts HTTP requests by method, route and status.
	APIRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "rienda_api_requests_total",
		Help: "Total HTTP API requests.",
	}, []string{"method", "endpoint", "status"})

	// APIRequestDuration observes HTTP request latency.
	APIRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "rienda_api_request_duration_seconds",
		Help:    "HTTP API request duration in seconds.",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "endpoint", "status"})

	// APIActiveConnections gauges in-flight HTTP requests.
	APIActiveConnections = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "rienda_api_active_connections",
		Help: "In-flight HTTP API requests.",
	})

	// DatabaseQueryDuration observes gorm operation latency by table.
	DatabaseQueryDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "rienda_db_query_duration_seconds",
		Help:    "Database operation duration in seconds.",
		Buckets: prometheus.DefBuckets,
	}, []string{"operation", "table"})

	// DatabaseErrorsTotal counts failed database operations.
	DatabaseErrorsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "rienda_db_errors_total",
		Help: "Total database operation errors.",
	}, []string{"operation", "kind"})

	// DatabaseConnectionsActive gauges open connections in the pool.
	DatabaseConnectionsActive = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "rienda_db_connections_active",
		Help: "Open database connections.",
	})

	// TickerPassesTotal counts lifecycle ticker passes.
	TickerPassesTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "rienda_lifecycle_ticker_passes_total",
		Help: "Total lifecycle ticker passes.",
	})

	// TickerErrorsTotal counts failed lifecycle ticker passes.
	TickerErrorsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "rienda_lifecycle_ticker_errors_total",
		Help: "Total lifecycle ticker failures.",
	})

	// SessionTransitionsTotal counts lifecycle state transitions.
	SessionTransitionsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "rienda_session_transitions_total",
		Help: "Total session state transitions.",
	}, []string{"from", "to", "trigger"})

	// ConflictRejectionsTotal counts bookings rejected by the conflict check.
	ConflictRejectionsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "rienda_conflict_rejections_total",
		Help: "Total bookings rejected because the slot was taken.",
	}, []string{"resource"})

	// CalendarCopiedSessionsTotal counts sessions cloned by bulk copy.
	CalendarCopiedSessionsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "rienda_calendar_copied_sessions_total",
		Help: "Total sessions created by calendar bulk copy.",
	})

	// CalendarDeletedSessionsTotal counts sessions removed by bulk delete.
	CalendarDeletedSessionsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "rienda_calendar_deleted_sessions_total",
		Help: "Total sessions removed by calendar bulk delete.",
	})
)

// Handler exposes the Prometheus metrics endpoint.
func Handler() http.Handler {
	return promhttp.Handler()
}
