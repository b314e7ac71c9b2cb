// Package http exposes the task API and the conversational chat endpoint
// over REST.
package http

import (
	"context"
	"crypto/subtle"
	"net/http"
	"strings"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/fernlabs/taskd/internal/conversation"
	"github.com/fernlabs/taskd/internal/dates"
	"github.com/fernlabs/taskd/internal/logging"
	"github.com/fernlabs/taskd/internal/task"
)

// Config holds HTTP server configuration.
type Config struct {
	Addr string
	// AuthToken, when non-empty, gates /api/v1 behind a bearer token.
	AuthToken    string
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

// Server provides the REST and chat endpoints.
type Server struct {
	echo    *echo.Echo
	tasks   task.Store
	engine  *conversation.Engine
	dates   *dates.Normalizer
	log     *logging.Logger
	metrics *metrics
	config  Config
}

// NewServer wires routes and middleware. registry may be nil to use the
// default prometheus registry.
func NewServer(cfg Config, tasks task.Store, engine *conversation.Engine, normalizer *dates.Normalizer, log *logging.Logger, registry *prometheus.Registry) *Server {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	if cfg.ReadTimeout > 0 {
		e.Server.ReadTimeout = cfg.ReadTimeout
	}
	if cfg.WriteTimeout > 0 {
		e.Server.WriteTimeout = cfg.WriteTimeout
	}

	var reg prometheus.Registerer = prometheus.DefaultRegisterer
	var gatherer prometheus.Gatherer = prometheus.DefaultGatherer
	if registry != nil {
		reg = registry
		gatherer = registry
	}

	s := &Server{
		echo:    e,
		tasks:   tasks,
		engine:  engine,
		dates:   normalizer,
		log:     log.Named("http"),
		metrics: newMetrics(reg),
		config:  cfg,
	}

	e.Use(middleware.Recover())
	e.Use(middleware.RequestID())
	e.Use(s.requestLogger())
	e.Use(s.metrics.middleware())

	e.GET("/health", s.handleHealth)
	e.GET("/metrics", echo.WrapHandler(promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})))

	v1 := e.Group("/api/v1")
	if cfg.AuthToken != "" {
		v1.Use(s.bearerAuth())
	}

	v1.GET("/tasks", s.handleListTasks)
	v1.POST("/tasks", s.handleCreateTask)
	v1.GET("/tasks/:id", s.handleGetTask)
	v1.PATCH("/tasks/:id", s.handleUpdateTask)
	v1.DELETE("/tasks/:id", s.handleDeleteTask)
	v1.POST("/tasks/:id/complete", s.handleSetCompleted(true))
	v1.POST("/tasks/:id/uncomplete", s.handleSetCompleted(false))
	v1.POST("/chat", s.handleChat)

	return s
}

func (s *Server) requestLogger() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			start := time.Now()
			err := next(c)

			s.log.Info(c.Request().Context(), "http request",
				zap.String("method", c.Request().Method),
				zap.String("uri", c.Request().RequestURI),
				zap.Int("status", c.Response().Status),
				zap.Duration("duration", time.Since(start)),
				zap.String("request_id", c.Response().Header().Get(echo.HeaderXRequestID)),
			)
			return err
		}
	}
}

// bearerAuth enforces "Authorization: Bearer <token>" with a constant-time
// comparison.
func (s *Server) bearerAuth() echo.MiddlewareFunc {
	want := []byte(s.config.AuthToken)
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			header := c.Request().Header.Get(echo.HeaderAuthorization)
			token, ok := strings.CutPrefix(header, "Bearer ")
			if !ok || subtle.ConstantTimeCompare([]byte(token), want) != 1 {
				return echo.NewHTTPError(http.StatusUnauthorized, "invalid or missing bearer token")
			}
			return next(c)
		}
	}
}

// handleHealth reports liveness.
func (s *Server) handleHealth(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]string{"status": "ok"})
}

// Start begins serving. Blocks until Shutdown or a listener error.
func (s *Server) Start() error {
	s.log.Info(context.Background(), "starting http server", zap.String("addr", s.config.Addr))
	return s.echo.Start(s.config.Addr)
}

// Shutdown drains in-flight requests.
func (s *Server) Shutdown(ctx context.Context) error {
	s.log.Info(ctx, "shutting down http server")
	return s.echo.Shutdown(ctx)
}

// Handler exposes the router for tests.
func (s *Server) Handler() http.Handler { return s.echo }
