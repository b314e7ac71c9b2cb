package conversation

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// engineMetrics counts engine activity. All methods are nil-safe so an
// uninstrumented engine pays nothing.
type engineMetrics struct {
	turns         *prometheus.CounterVec
	confirmations *prometheus.CounterVec
	storeFailures prometheus.Counter
}

func newEngineMetrics(reg prometheus.Registerer) *engineMetrics {
	factory := promauto.With(reg)
	return &engineMetrics{
		turns: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "taskd_engine_turns_total",
			Help: "Conversation turns by classified intent.",
		}, []string{"intent"}),
		confirmations: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "taskd_engine_confirmations_total",
			Help: "Confirmation answers by result.",
		}, []string{"result"}),
		storeFailures: factory.NewCounter(prometheus.CounterOpts{
			Name: "taskd_engine_store_failures_total",
			Help: "Task store failures during confirmed mutations.",
		}),
	}
}

func (m *engineMetrics) recordTurn(intentName string) {
	if m == nil {
		return
	}
	m.turns.WithLabelValues(intentName).Inc()
}

func (m *engineMetrics) recordConfirmation(result string) {
	if m == nil {
		return
	}
	m.confirmations.WithLabelValues(result).Inc()
}

func (m *engineMetrics) recordStoreFailure() {
	if m == nil {
		return
	}
	m.storeFailures.Inc()
}
