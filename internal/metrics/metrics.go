package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Worker metrics
var (
	// ItemsProcessed counts the total number of queue items processed by status.
	ItemsProcessed = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "clipforge",
			Name:      "items_processed_total",
			Help:      "Total number of queue items processed",
		},
		[]string{"status"},
	)

	// ProcessingDuration tracks the total time taken per queue item.
	ProcessingDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "clipforge",
			Name:      "item_processing_duration_seconds",
			Help:      "Time taken to process queue items end to end",
			Buckets:   []float64{10, 30, 60, 120, 300, 600},
		},
	)

	// ActiveJobs tracks the number of items currently in flight.
	ActiveJobs = promauto.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "clipforge",
			Name:      "active_jobs",
			Help:      "Number of queue items currently being processed",
		},
	)

	// DownloadDuration tracks the time taken to fetch source videos.
	DownloadDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "clipforge",
			Name:      "download_duration_seconds",
			Help:      "Time taken to download source videos",
			Buckets:   []float64{1, 5, 10, 30, 60, 120},
		},
	)

	// TranscodeDuration tracks FFmpeg encode time by pass.
	TranscodeDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "clipforge",
			Name:      "transcode_duration_seconds",
			Help:      "Time taken for FFmpeg transcode passes",
			Buckets:   []float64{10, 30, 60, 120, 300, 600, 1200},
		},
		[]string{"pass"},
	)

	// UpscaleDuration tracks minimum-height floor enforcement time by method.
	UpscaleDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "clipforge",
			Name:      "upscale_duration_seconds",
			Help:      "Time taken to enforce the minimum height floor",
			Buckets:   []float64{1, 10, 30, 60, 300, 900},
		},
		[]string{"method"},
	)

	// DeliveryDuration tracks the time taken to ship finished files.
	DeliveryDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "clipforge",
			Name:      "delivery_duration_seconds",
			Help:      "Time taken to deliver finished videos",
			Buckets:   []float64{1, 5, 10, 30, 60, 180},
		},
	)

	// Deliveries counts delivery attempts by result.
	Deliveries = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "clipforge",
			Name:      "deliveries_total",
			Help:      "Total number of delivery attempts",
		},
		[]string{"result"},
	)

	// RetriesRecorded counts retry increments persisted to the store.
	RetriesRecorded = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: "clipforge",
			Name:      "retries_recorded_total",
			Help:      "Total number of retry increments recorded",
		},
	)
)

// API metrics
var (
	// HTTPRequestsTotal counts HTTP requests by method, path, and status.
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "clipforge",
			Subsystem: "api",
			Name:      "http_requests_total",
			Help:      "Total number of HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	// AuthFailures counts authentication failures by reason.
	AuthFailures = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "clipforge",
			Subsystem: "api",
			Name:      "auth_failures_total",
			Help:      "Total number of authentication failures",
		},
		[]string{"reason"},
	)

	// ItemsEnqueued counts accepted enqueue requests by source kind.
	ItemsEnqueued = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "clipforge",
			Subsystem: "api",
			Name:      "items_enqueued_total",
			Help:      "Total number of videos enqueued",
		},
		[]string{"source"},
	)
)

// RecordSuccess records a successfully processed queue item.
func RecordSuccess() {
	ItemsProcessed.WithLabelValues("processed").Inc()
}

// RecordFailure records a failed queue item.
func RecordFailure() {
	ItemsProcessed.WithLabelValues("failed").Inc()
}
