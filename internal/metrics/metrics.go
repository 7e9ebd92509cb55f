// Waymark - Community Map and Live Location Sharing
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/waymark

// Package metrics provides Prometheus instrumentation for the presence
// pipeline, the HTTP API, DuckDB queries, the change feed, and WebSocket
// fan-out. All collectors are registered via promauto on the default registry
// and exposed at /metrics.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Database metrics
	DBQueryDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "duckdb_query_duration_seconds",
			Help:    "Duration of DuckDB queries in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"operation", "table"},
	)

	DBQueryErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "duckdb_query_errors_total",
			Help: "Total number of DuckDB query errors",
		},
		[]string{"operation", "table"},
	)

	// API endpoint metrics
	APIRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "api_requests_total",
			Help: "Total number of API requests",
		},
		[]string{"method", "endpoint", "status_code"},
	)

	APIRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "api_request_duration_seconds",
			Help:    "API request duration in seconds",
			Buckets: []float64{0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		},
		[]string{"method", "endpoint"},
	)

	// Presence pipeline metrics
	PresencePublishesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "presence_publishes_total",
			Help: "Total number of presence publish attempts",
		},
		[]string{"result"}, // "ok", "invalid", "unauthorized", "error"
	)

	PresenceRetractsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "presence_retracts_total",
			Help: "Total number of presence retractions",
		},
	)

	PresenceSamplesDropped = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "presence_samples_dropped_total",
			Help: "Total number of position samples dropped by interval throttling",
		},
	)

	PresenceActiveUsers = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "presence_active_users",
			Help: "Number of users currently present in the live position store",
		},
	)

	PresenceReconcilesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "presence_reconciles_total",
			Help: "Total number of tracker reconcile cycles",
		},
		[]string{"trigger"}, // "feed", "poll", "initial"
	)

	PresenceFetchFailures = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "presence_fetch_failures_total",
			Help: "Total number of failed presence snapshot fetches",
		},
	)

	PresenceMarkerCommands = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "presence_marker_commands_total",
			Help: "Total number of marker commands emitted by reconciliation",
		},
		[]string{"op"}, // "create", "move", "remove"
	)

	// Change feed metrics
	FeedPublishesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "feed_publishes_total",
			Help: "Total number of change notifications published to the feed",
		},
		[]string{"event_type"},
	)

	FeedPublishErrors = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "feed_publish_errors_total",
			Help: "Total number of failed feed publishes",
		},
	)

	FeedNotificationsReceived = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "feed_notifications_received_total",
			Help: "Total number of change notifications received by subscribers",
		},
		[]string{"event_type"},
	)

	// WebSocket metrics
	WSConnections = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "websocket_connections",
			Help: "Current number of active WebSocket connections",
		},
	)

	WSMessagesSent = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "websocket_messages_sent_total",
			Help: "Total number of WebSocket messages sent",
		},
	)

	WSErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "websocket_errors_total",
			Help: "Total number of WebSocket errors",
		},
		[]string{"error_type"},
	)
)

// RecordDBQuery records query duration and any error for a table operation.
func RecordDBQuery(operation, table string, duration time.Duration, err error) {
	DBQueryDuration.WithLabelValues(operation, table).Observe(duration.Seconds())
	if err != nil {
		DBQueryErrors.WithLabelValues(operation, table).Inc()
	}
}

// RecordAPIRequest records a completed HTTP request.
func RecordAPIRequest(method, endpoint, statusCode string, duration time.Duration) {
	APIRequestsTotal.WithLabelValues(method, endpoint, statusCode).Inc()
	APIRequestDuration.WithLabelValues(method, endpoint).Observe(duration.Seconds())
}

// RecordReconcile records one tracker cycle and its emitted marker commands.
func RecordReconcile(trigger string, creates, moves, removes int) {
	PresenceReconcilesTotal.WithLabelValues(trigger).Inc()
	PresenceMarkerCommands.WithLabelValues("create").Add(float64(creates))
	PresenceMarkerCommands.WithLabelValues("move").Add(float64(moves))
	PresenceMarkerCommands.WithLabelValues("remove").Add(float64(removes))
}

// RecordFeedPublish records one feed publish attempt.
func RecordFeedPublish(eventType string, err error) {
	if err != nil {
		FeedPublishErrors.Inc()
		return
	}
	FeedPublishesTotal.WithLabelValues(eventType).Inc()
}
