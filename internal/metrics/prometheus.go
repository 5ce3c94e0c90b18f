// Package metrics exposes Prometheus collectors for scraping runs,
// availability fetches, notifications and reactivations.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	runsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "stock_watcher_runs_total",
			Help: "Orchestration runs by outcome.",
		},
		[]string{"status"},
	)
	runDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "stock_watcher_run_duration_seconds",
			Help:    "Duration of orchestration runs.",
			Buckets: []float64{0.1, 0.5, 1, 2, 5, 10, 30, 60},
		},
		[]string{"status"},
	)
	skusFoundTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "stock_watcher_skus_found_total",
			Help: "SKUs reported in stock and suppressed.",
		},
	)
	fetchTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "stock_watcher_fetch_total",
			Help: "Availability endpoint requests.",
		},
		[]string{"adapter", "status"},
	)
	fetchDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "stock_watcher_fetch_duration_seconds",
			Help:    "Histogram of availability endpoint request durations.",
			Buckets: []float64{0.1, 0.5, 1, 2, 5, 10, 30},
		},
		[]string{"adapter"},
	)
	notificationsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "stock_watcher_notifications_total",
			Help: "Notification sends by channel and result.",
		},
		[]string{"channel", "result"},
	)
	reactivationsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "stock_watcher_reactivations_total",
			Help: "Reactivation link redemptions by result.",
		},
		[]string{"status"},
	)
)

func init() {
	prometheus.MustRegister(
		runsTotal,
		runDuration,
		skusFoundTotal,
		fetchTotal,
		fetchDuration,
		notificationsTotal,
		reactivationsTotal,
	)
}

// RecordRun counts a finished orchestration run.
func RecordRun(status string, found int, duration time.Duration) {
	runsTotal.WithLabelValues(status).Inc()
	runDuration.WithLabelValues(status).Observe(duration.Seconds())
	if found > 0 {
		skusFoundTotal.Add(float64(found))
	}
}

// RecordFetch counts one availability request. A zero status means the
// request never got a response.
func RecordFetch(adapter string, statusCode int, duration time.Duration) {
	fetchTotal.WithLabelValues(adapter, classifyStatus(statusCode)).Inc()
	fetchDuration.WithLabelValues(adapter).Observe(duration.Seconds())
}

func RecordNotification(channel string, sent bool) {
	result := "sent"
	if !sent {
		result = "failed"
	}
	notificationsTotal.WithLabelValues(channel, result).Inc()
}

func RecordReactivation(status string) {
	reactivationsTotal.WithLabelValues(status).Inc()
}

func classifyStatus(statusCode int) string {
	switch {
	case statusCode == 0:
		return "error"
	case statusCode >= 200 && statusCode < 300:
		return "2xx"
	case statusCode >= 300 && statusCode < 400:
		return "3xx"
	case statusCode >= 400 && statusCode < 500:
		return "4xx"
	case statusCode >= 500 && statusCode < 600:
		return "5xx"
	}
	return strconv.Itoa(statusCode)
}

// Handler returns the Prometheus scrape handler.
func Handler() http.Handler {
	return promhttp.Handler()
}
