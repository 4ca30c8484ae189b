// Package metrics holds the Prometheus collectors for discovery and download activity.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	DiscoveryRuns = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "linkgrab_discovery_runs_total",
			Help: "Total number of page discovery runs, labeled by result.",
		},
		[]string{"result"},
	)
	DiscoveredFiles = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "linkgrab_discovered_files_total",
			Help: "Total number of candidate files found across discovery runs.",
		},
	)
	DiscoveryDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "linkgrab_discovery_duration_seconds",
			Help:    "Duration of discovery runs in seconds.",
			Buckets: prometheus.DefBuckets,
		},
	)
	DownloadItems = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "linkgrab_download_items_total",
			Help: "Total number of processed download items, labeled by outcome.",
		},
		[]string{"status"},
	)
	DownloadBytes = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "linkgrab_download_bytes_total",
			Help: "Total number of bytes written to disk.",
		},
	)
	DownloadItemDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "linkgrab_download_item_duration_seconds",
			Help:    "Duration of individual file downloads in seconds.",
			Buckets: prometheus.ExponentialBuckets(0.05, 2, 12),
		},
	)
	ActiveSessions = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "linkgrab_active_sessions",
			Help: "Number of download sessions currently running.",
		},
	)
	Jobs = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "linkgrab_jobs_total",
			Help: "Total number of finished server jobs, labeled by kind and status.",
		},
		[]string{"kind", "status"},
	)
)

func init() {
	prometheus.MustRegister(DiscoveryRuns)
	prometheus.MustRegister(DiscoveredFiles)
	prometheus.MustRegister(DiscoveryDuration)
	prometheus.MustRegister(DownloadItems)
	prometheus.MustRegister(DownloadBytes)
	prometheus.MustRegister(DownloadItemDuration)
	prometheus.MustRegister(ActiveSessions)
	prometheus.MustRegister(Jobs)
}

// Handler serves the default registry
func Handler() http.Handler {
	return promhttp.Handler()
}
