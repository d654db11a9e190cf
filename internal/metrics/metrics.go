// Package metrics holds the Prometheus collectors exported on /metrics.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	Registrations = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "qrattend",
		Name:      "registrations_total",
		Help:      "Staff registration attempts by result.",
	}, []string{"result"})

	Scans = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "qrattend",
		Name:      "scans_total",
		Help:      "Attendance scans by outcome.",
	}, []string{"outcome", "source"})

	ScanDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: "qrattend",
		Name:      "scan_duration_seconds",
		Help:      "Time spent resolving a scan against the ledger.",
		Buckets:   prometheus.DefBuckets,
	})

	AuditEvents = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "qrattend",
		Name:      "audit_events_total",
		Help:      "Scan audit events handled by the consumer.",
	}, []string{"result"})
)
