// Package observability holds the service-level Prometheus metrics.
package observability

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Refresh outcomes used as metric labels.
const (
	OutcomeSuccess = "success"
	OutcomeFailure = "failure"
)

var (
	refreshCounter = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "gymcore",
		Subsystem: "profiles",
		Name:      "refreshes_total",
		Help:      "Number of profile refreshes grouped by outcome.",
	}, []string{"outcome"})

	refreshDuration = prometheus.NewHistogram(prometheus.HistogramOpts{
		Namespace: "gymcore",
		Subsystem: "profiles",
		Name:      "refresh_duration_seconds",
		Help:      "Time spent fetching events, scoring and persisting a profile.",
		Buckets:   prometheus.ExponentialBuckets(0.005, 2, 10),
	})

	profileRefreshedGauge = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "gymcore",
		Subsystem: "profiles",
		Name:      "last_profile_refreshed_timestamp_seconds",
		Help:      "Unix timestamp of the most recent successful profile refresh.",
	})

	dashboardCounter = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "gymcore",
		Subsystem: "analytics",
		Name:      "dashboards_built_total",
		Help:      "Number of dashboards built grouped by scope.",
	}, []string{"scope"})
)

func init() {
	prometheus.MustRegister(refreshCounter, refreshDuration, profileRefreshedGauge, dashboardCounter)
}

// RecordRefresh counts a refresh attempt and observes its duration.
func RecordRefresh(outcome string, d time.Duration) {
	refreshCounter.WithLabelValues(outcome).Inc()
	refreshDuration.Observe(d.Seconds())
}

// RecordProfileRefreshed updates the refresh watermark gauge.
func RecordProfileRefreshed(ts time.Time) {
	if ts.IsZero() {
		return
	}
	profileRefreshedGauge.Set(float64(ts.Unix()))
}

// RecordDashboardBuilt counts a dashboard build.
func RecordDashboardBuilt(global bool) {
	scope := "gym"
	if global {
		scope = "global"
	}
	dashboardCounter.WithLabelValues(scope).Inc()
}
