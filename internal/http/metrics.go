package http

import (
	"strconv"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// metrics holds the server's prometheus instruments. Routes are labeled by
// the echo route template, not the raw path, to keep cardinality bounded.
type metrics struct {
	requestsTotal *prometheus.CounterVec
	requestDur    *prometheus.HistogramVec
	chatTurns     *prometheus.CounterVec
}

func newMetrics(reg prometheus.Registerer) *metrics {
	factory := promauto.With(reg)
	return &metrics{
		requestsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "taskd_http_requests_total",
			Help: "HTTP requests by method, route, and status code.",
		}, []string{"method", "route", "status"}),
		requestDur: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "taskd_http_request_duration_seconds",
			Help:    "HTTP request duration in seconds by method and route.",
			Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5},
		}, []string{"method", "route"}),
		chatTurns: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "taskd_chat_turns_total",
			Help: "Chat turns handled, by resulting action.",
		}, []string{"action"}),
	}
}

func (m *metrics) middleware() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			start := time.Now()
			err := next(c)

			route := c.Path()
			if route == "" {
				route = "unmatched"
			}
			method := c.Request().Method
			m.requestsTotal.WithLabelValues(method, route, strconv.Itoa(c.Response().Status)).Inc()
			m.requestDur.WithLabelValues(method, route).Observe(time.Since(start).Seconds())
			return err
		}
	}
}

func (m *metrics) observeChatTurn(action string) {
	if action == "" {
		action = "none"
	}
	m.chatTurns.WithLabelValues(action).Inc()
}
