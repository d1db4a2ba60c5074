// Package metrics holds Prometheus metrics for the dispenser service.
package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	once sync.Once

	slotCommands = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "pilldock",
			Name:      "slot_commands_total",
			Help:      "Count of slot commands by command and outcome.",
		},
		[]string{"command", "outcome"},
	)

	journalAppends = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "pilldock",
			Name:      "journal_appends_total",
			Help:      "Count of journal entries appended by status.",
		},
		[]string{"status"},
	)

	journalCleared = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "pilldock",
			Name:      "journal_cleared_total",
			Help:      "Count of full journal clears.",
		},
	)

	syncRefreshes = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "pilldock",
			Name:      "sync_refreshes_total",
			Help:      "Count of derived view refreshes by subtree.",
		},
		[]string{"subtree"},
	)

	syncRefreshErrors = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "pilldock",
			Name:      "sync_refresh_errors_total",
			Help:      "Count of failed view refreshes by subtree.",
		},
		[]string{"subtree"},
	)

	activeSchedules = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "pilldock",
			Name:      "active_schedules",
			Help:      "Number of enabled slots in the derived view.",
		},
	)

	storeConnected = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "pilldock",
			Name:      "store_connected",
			Help:      "Remote store connectivity: 1 connected, 0 disconnected, -1 unknown.",
		},
	)
)

// Register registers metrics (idempotent).
func Register() {
	once.Do(func() {
		storeConnected.Set(-1)
		prometheus.MustRegister(
			slotCommands,
			journalAppends,
			journalCleared,
			syncRefreshes,
			syncRefreshErrors,
			activeSchedules,
			storeConnected,
		)
	})
}

func IncSlotCommand(command, outcome string) {
	slotCommands.WithLabelValues(command, outcome).Inc()
}

func IncJournalAppend(status string) {
	journalAppends.WithLabelValues(status).Inc()
}

func IncJournalCleared() {
	journalCleared.Inc()
}

func IncSyncRefresh(subtree string) {
	syncRefreshes.WithLabelValues(subtree).Inc()
}

func IncSyncRefreshError(subtree string) {
	syncRefreshErrors.WithLabelValues(subtree).Inc()
}

func SetActiveSchedules(n int) {
	activeSchedules.Set(float64(n))
}

func SetStoreConnected(state float64) {
	storeConnected.Set(state)
}
