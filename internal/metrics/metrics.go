package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// API metrics
var (
	// HTTPRequestsTotal counts HTTP requests by method, path, and status.
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "vidgate",
			Subsystem: "api",
			Name:      "http_requests_total",
			Help:      "Total number of HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	// HTTPRequestDuration tracks HTTP request duration.
	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "vidgate",
			Subsystem: "api",
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request duration in seconds",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"method", "path"},
	)

	// AuthFailures counts credential verification failures by reason.
	AuthFailures = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "vidgate",
			Subsystem: "api",
			Name:      "auth_failures_total",
			Help:      "Total number of credential verification failures",
		},
		[]string{"reason"},
	)
)

// Delivery metrics
var (
	// ManifestRewrites counts manifest rewrite requests by outcome.
	ManifestRewrites = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "vidgate",
			Name:      "manifest_rewrites_total",
			Help:      "Total number of manifest rewrite requests",
		},
		[]string{"status"},
	)

	// SegmentURLsSigned counts signed segment URLs issued.
	SegmentURLsSigned = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: "vidgate",
			Name:      "segment_urls_signed_total",
			Help:      "Total number of signed segment URLs issued",
		},
	)

	// ViewsRecorded counts view record attempts by outcome.
	ViewsRecorded = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "vidgate",
			Name:      "views_recorded_total",
			Help:      "Total number of view record attempts",
		},
		[]string{"status"},
	)

	// SharesIssued counts share tokens issued.
	SharesIssued = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: "vidgate",
			Name:      "shares_issued_total",
			Help:      "Total number of share tokens issued",
		},
	)

	// UploadsTotal counts video uploads by outcome.
	UploadsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "vidgate",
			Name:      "uploads_total",
			Help:      "Total number of video uploads",
		},
		[]string{"status"},
	)

	// TranscodeNotifications counts transcode-trigger dispatches by outcome.
	TranscodeNotifications = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "vidgate",
			Name:      "transcode_notifications_total",
			Help:      "Total number of transcode job notifications",
		},
		[]string{"status"},
	)
)
