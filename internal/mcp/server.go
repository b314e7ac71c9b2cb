// Package mcp exposes the task store and date normalizer as MCP tools so
// agent hosts can manage tasks over the stdio transport.
//
// Built on the MCP SDK (github.com/modelcontextprotocol/go-sdk/mcp).
package mcp

import (
	"context"
	"fmt"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/fernlabs/taskd/internal/dates"
	"github.com/fernlabs/taskd/internal/logging"
	"github.com/fernlabs/taskd/internal/task"
)

// Config configures the MCP server.
type Config struct {
	// Name is the server implementation name (default: "taskd").
	Name string

	// Version is the server version (default: "1.0.0").
	Version string
}

// DefaultConfig returns sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		Name:    "taskd",
		Version: "1.0.0",
	}
}

// Server serves task tools over MCP.
type Server struct {
	mcp     *mcp.Server
	tasks   task.Store
	dates   *dates.Normalizer
	log     *logging.Logger
	metrics *metrics
}

// NewServer wires the tool set. registry may be nil to use the default
// prometheus registry.
func NewServer(cfg *Config, tasks task.Store, normalizer *dates.Normalizer, log *logging.Logger, registry *prometheus.Registry) (*Server, error) {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	if tasks == nil {
		return nil, fmt.Errorf("task store is required")
	}
	if normalizer == nil {
		return nil, fmt.Errorf("date normalizer is required")
	}
	if log == nil {
		log = logging.NewNop()
	}

	var reg prometheus.Registerer = prometheus.DefaultRegisterer
	if registry != nil {
		reg = registry
	}

	s := &Server{
		mcp: mcp.NewServer(&mcp.Implementation{
			Name:    cfg.Name,
			Version: cfg.Version,
		}, nil),
		tasks:   tasks,
		dates:   normalizer,
		log:     log.Named("mcp"),
		metrics: newMetrics(reg),
	}
	s.registerTools()
	return s, nil
}

// Run serves on the stdio transport until ctx is canceled.
func (s *Server) Run(ctx context.Context) error {
	s.log.Info(ctx, "starting mcp server on stdio transport")
	if err := s.mcp.Run(ctx, &mcp.StdioTransport{}); err != nil {
		return fmt.Errorf("mcp server run: %w", err)
	}
	return nil
}

// Underlying exposes the SDK server for in-memory transports in tests.
func (s *Server) Underlying() *mcp.Server { return s.mcp }
