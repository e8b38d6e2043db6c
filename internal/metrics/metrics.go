// Package metrics holds the Prometheus collectors exported on /metrics.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "ledger"

// Outcome label values.
const (
	OutcomeImported  = "imported"
	OutcomeDuplicate = "duplicate"
	OutcomeRejected  = "rejected"
	OutcomeAccepted  = "accepted"
	OutcomeFailed    = "failed"
	OutcomeSkipped   = "skipped"
	OutcomeSucceeded = "succeeded"
)

var (
	// UploadsTotal counts uploads by detected format and outcome.
	UploadsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "ingest",
		Name:      "uploads_total",
		Help:      "Uploaded files by detected format and outcome.",
	}, []string{"format", "outcome"})

	// RecordsTotal counts per-record insert outcomes.
	RecordsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "ingest",
		Name:      "records_total",
		Help:      "Parsed records by persistence outcome.",
	}, []string{"outcome"})

	// ClassificationsTotal counts assigned categories per strategy.
	ClassificationsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "ingest",
		Name:      "classifications_total",
		Help:      "Categories assigned at import time.",
	}, []string{"strategy", "category"})

	// UploadDuration observes end-to-end import latency.
	UploadDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: namespace,
		Subsystem: "ingest",
		Name:      "upload_duration_seconds",
		Help:      "Time spent importing one upload.",
		Buckets:   prometheus.DefBuckets,
	})

	// SyncPushesTotal counts rows pushed to downstream sinks.
	SyncPushesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "sync",
		Name:      "pushes_total",
		Help:      "Transactions pushed to a sink by outcome.",
	}, []string{"sink", "outcome"})

	// HTTPRequestsTotal counts API requests by method, route and status.
	HTTPRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "http",
		Name:      "requests_total",
		Help:      "HTTP requests by method, route pattern and status code.",
	}, []string{"method", "route", "status"})
)
