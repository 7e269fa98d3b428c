package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	once sync.Once

	// ScansTotal counts classification-and-escalation cycles by label.
	ScansTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "qranalyze",
		Subsystem: "scanner",
		Name:      "scans_total",
		Help:      "Total number of URL scans processed, labeled by verdict.",
	}, []string{"label"})

	// ScanDurationSeconds is end-to-end time per scan, including signal collection.
	ScanDurationSeconds = prometheus.NewHistogram(prometheus.HistogramOpts{
		Namespace: "qranalyze",
		Subsystem: "scanner",
		Name:      "scan_duration_seconds",
		Help:      "End-to-end time to collect signals, classify and persist one scan.",
		// Dominated by external lookups, so buckets are coarse.
		Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10, 20},
	})

	// EscalationsTotal counts moves into the warning bucket by trigger.
	EscalationsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "qranalyze",
		Subsystem: "scanner",
		Name:      "escalations_total",
		Help:      "Total number of URLs escalated into the warning bucket, labeled by trigger.",
	}, []string{"trigger"})

	// SignalFailuresTotal counts collector lookups that degraded to an unknown value.
	SignalFailuresTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "qranalyze",
		Subsystem: "scanner",
		Name:      "signal_failures_total",
		Help:      "Total number of signal lookups that failed or timed out, labeled by signal.",
	}, []string{"signal"})

	// ReportsIntakeTotal counts user reports by outcome.
	ReportsIntakeTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "qranalyze",
		Subsystem: "scanner",
		Name:      "reports_intake_total",
		Help:      "Total number of user reports received, labeled by result.",
	}, []string{"result"})
)

// Register registers all metrics with the default registry. Safe to call
// more than once.
func Register() {
	once.Do(func() {
		prometheus.MustRegister(
			ScansTotal,
			ScanDurationSeconds,
			EscalationsTotal,
			SignalFailuresTotal,
			ReportsIntakeTotal,
		)
	})
}
