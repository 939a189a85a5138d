/*
Copyright (C) 2026 Friends Incode

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
	// APIRequestsTotal counts HTTP requests by method, endpoint, and status.
	APIRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "skald_api_requests_total",
		Help: "Total HTTP requests served.",
	}, []string{"method", "endpoint", "status"})

	// APIRequestDuration tracks HTTP request latency.
	APIRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "skald_api_request_duration_seconds",
		Help:    "HTTP request duration in seconds.",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "endpoint", "status"})

	// APIActiveConnections gauges in-flight HTTP requests.
	APIActiveConnections = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "skald_api_active_connections",
		Help: "In-flight HTTP requests.",
	})

	// OverlayConnections gauges connected overlay sessions.
	OverlayConnections = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "skald_overlay_connections",
		Help: "Connected overlay WebSocket sessions.",
	})

	// JobsDispatched counts jobs promoted to PLAYING.
	JobsDispatched = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "skald_jobs_dispatched_total",
		Help: "Playback jobs dispatched to overlays.",
	}, []string{"guild"})

	// JobsFailed counts jobs that reached FAILED.
	JobsFailed = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "skald_jobs_failed_total",
		Help: "Playback jobs that failed.",
	}, []string{"guild", "reason"})

	// JobsPreempted counts PLAYING jobs suspended by higher priority work.
	JobsPreempted = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "skald_jobs_preempted_total",
		Help: "Playback jobs preempted by higher priority jobs.",
	}, []string{"guild"})

	// WatchdogReleases counts stuck jobs released by the watchdog.
	WatchdogReleases = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "skald_watchdog_releases_total",
		Help: "Playing jobs released after going stale.",
	}, []string{"guild"})

	// PurgedJobs counts terminal jobs removed by retention.
	PurgedJobs = promauto.NewCounter(prometheus.CounterOpts{
		Name: "skald_purged_jobs_total",
		Help: "Terminal playback jobs removed by the purge worker.",
	})

	// PurgedAssets counts expired media assets removed by retention.
	PurgedAssets = promauto.NewCounter(prometheus.CounterOpts{
		Name: "skald_purged_assets_total",
		Help: "Expired media assets removed by the purge worker.",
	})
)

// Handler exposes the metrics endpoint.
func Handler() http.Handler {
	return promhttp.Handler()
}
