package mcp

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// metrics instruments tool invocations.
type metrics struct {
	invocations *prometheus.CounterVec
	duration    *prometheus.HistogramVec
}

func newMetrics(reg prometheus.Registerer) *metrics {
	factory := promauto.With(reg)
	return &metrics{
		invocations: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "taskd_mcp_tool_invocations_total",
			Help: "MCP tool invocations by tool name and outcome.",
		}, []string{"tool", "outcome"}),
		duration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "taskd_mcp_tool_duration_seconds",
			Help:    "MCP tool invocation duration in seconds.",
			Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5},
		}, []string{"tool"}),
	}
}

func (m *metrics) record(tool string, start time.Time, err error) {
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	m.invocations.WithLabelValues(tool, outcome).Inc()
	m.duration.WithLabelValues(tool).Observe(time.Since(start).Seconds())
}
