// audiopolicyd - audio stream usage policy engine
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package metrics exposes the daemon's Prometheus instrumentation: the
// admin engine's decisions observed through internal/admin's EventBus,
// plus a dispatcher queue-depth gauge that nothing updates.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// ActiveStreamCount is the last count OnActive{Render,Capture}CountChanged
	// reported for usage.
	ActiveStreamCount = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "audiopolicyd_active_stream_count",
			Help: "Current number of active streams for a usage.",
		},
		[]string{"usage"},
	)

	// GainAdjustmentDb is the last gain adjustment (dB) published to the
	// volume sink for usage.
	GainAdjustmentDb = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "audiopolicyd_gain_adjustment_db",
			Help: "Current gain adjustment in dB requested for a usage.",
		},
		[]string{"usage"},
	)

	// PolicyActionsTotal counts every (usage, behavior) the engine has
	// reported to the Policy Action Reporter.
	PolicyActionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "audiopolicyd_policy_actions_total",
			Help: "Total number of policy actions reported, by usage and behavior.",
		},
		[]string{"usage", "behavior"},
	)

	// RenderActivityBitmap and CaptureActivityBitmap mirror the last
	// bitmap dispatched to the Activity Dispatcher.
	RenderActivityBitmap = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "audiopolicyd_render_activity_bitmap",
			Help: "Last render activity bitmap dispatched, as an integer.",
		},
	)
	CaptureActivityBitmap = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "audiopolicyd_capture_activity_bitmap",
			Help: "Last capture activity bitmap dispatched, as an integer.",
		},
	)

	// DispatcherQueueDepth is registered for the number of posted closures
	// waiting on the admin dispatcher's channel. Nothing in this module
	// sets it, so it always reads 0.
	DispatcherQueueDepth = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "audiopolicyd_dispatcher_queue_depth",
			Help: "Number of posted closures currently queued on the admin dispatcher.",
		},
	)

	// HTTPRequestDuration observes internal/httpapi's request latency by
	// method, path, and status code, mirroring the teacher's
	// PrometheusMetrics middleware counters but as a histogram so the
	// admin API's own latency is queryable alongside the engine's metrics.
	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "audiopolicyd_http_request_duration_seconds",
			Help:    "HTTP request duration in seconds, by method, path, and status.",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path", "status"},
	)
)
