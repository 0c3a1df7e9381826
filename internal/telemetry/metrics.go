package telemetry

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds the engine counters.
type Metrics struct {
	CounterSessions        *prometheus.CounterVec // by lifecycle event
	CounterSetsLogged      prometheus.Counter
	CounterVolumeLogged    prometheus.Counter
	CounterPersonalRecords *prometheus.CounterVec // by record type
	CounterBackupFailures  prometheus.Counter
	CounterEventFailures   prometheus.Counter
	CounterCorruptDocs     prometheus.Counter
	CounterMigratedRecords *prometheus.CounterVec // by legacy source
	CounterMigrationErrors prometheus.Counter
}

// NewTestMetricsAndRegistry returns metrics on a fresh registry.
func NewTestMetricsAndRegistry() (*Metrics, *prometheus.Registry) {
	reg := prometheus.NewRegistry()
	return NewMetrics("workout", "engine", reg), reg
}

func NewMetrics(namespace, subsystem string, reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)

	return &Metrics{
		CounterSessions: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "sessions_total",
			Help:      "Session lifecycle transitions",
		}, []string{"event"}),
		CounterSetsLogged: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "sets_logged_total",
			Help:      "Number of sets appended to active sessions",
		}),
		CounterVolumeLogged: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "volume_logged_total",
			Help:      "Sum of weight x reps over every logged set",
		}),
		CounterPersonalRecords: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "personal_records_total",
			Help:      "Personal records detected at session completion",
		}, []string{"type"}),
		CounterBackupFailures: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "backup_failures_total",
			Help:      "Snapshot writes that failed after a successful save",
		}),
		CounterEventFailures: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "event_failures_total",
			Help:      "Event log appends that failed",
		}),
		CounterCorruptDocs: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "corrupt_documents_total",
			Help:      "Loads that fell back to empty state",
		}),
		CounterMigratedRecords: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "migrated_records_total",
			Help:      "Legacy records converted into sessions",
		}, []string{"source"}),
		CounterMigrationErrors: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "migration_errors_total",
			Help:      "Legacy records that failed to convert",
		}),
	}
}
