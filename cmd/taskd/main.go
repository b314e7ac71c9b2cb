// Taskd is a conversational task assistant daemon.
//
// This binary starts the taskd HTTP server (REST task API plus the chat
// endpoint) or, with --mcp-stdio, serves the task tools over the MCP stdio
// transport instead.
//
// Configuration is loaded from an optional YAML file and TASKD_* environment
// variables. See internal/config for details.
//
// Usage:
//
//	# Start the HTTP server with defaults
//	taskd
//
//	# Load a config file
//	taskd -config /etc/taskd/config.yaml
//
//	# Serve MCP tools over stdio for an agent host
//	taskd --mcp-stdio
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/fernlabs/taskd/internal/config"
	"github.com/fernlabs/taskd/internal/conversation"
	"github.com/fernlabs/taskd/internal/dates"
	taskhttp "github.com/fernlabs/taskd/internal/http"
	"github.com/fernlabs/taskd/internal/logging"
	"github.com/fernlabs/taskd/internal/mcp"
	"github.com/fernlabs/taskd/internal/task"
)

// Version information (set via ldflags during build)
var (
	version   = "dev"
	gitCommit = "unknown"
	buildDate = "unknown"
)

func main() {
	configPath := flag.String("config", "", "path to config file")
	mcpStdio := flag.Bool("mcp-stdio", false, "serve MCP tools over stdio instead of HTTP")
	flag.Parse()

	if args := flag.Args(); len(args) > 0 {
		switch args[0] {
		case "version":
			printVersion()
			os.Exit(0)
		default:
			fmt.Fprintf(os.Stderr, "Unknown command: %s\n", args[0])
			fmt.Fprintf(os.Stderr, "\nUsage:\n")
			fmt.Fprintf(os.Stderr, "  taskd              Start the taskd daemon\n")
			fmt.Fprintf(os.Stderr, "  taskd --mcp-stdio  Serve MCP tools over stdio\n")
			fmt.Fprintf(os.Stderr, "  taskd version      Show version information\n")
			os.Exit(1)
		}
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		log.Printf("Received signal %v, shutting down gracefully...", sig)
		cancel()
	}()

	if err := run(ctx, *configPath, *mcpStdio); err != nil {
		log.Fatalf("taskd: %v", err)
	}
}

func printVersion() {
	fmt.Printf("taskd\n")
	fmt.Printf("Version:    %s\n", version)
	fmt.Printf("Commit:     %s\n", gitCommit)
	fmt.Printf("Build Date: %s\n", buildDate)
}

// run initializes everything and blocks until ctx is canceled:
//  1. Loads and validates configuration
//  2. Initializes the logger
//  3. Opens the SQLite task store and the session store
//  4. Builds the date normalizer (with optional LLM fallback)
//  5. Wires the conversation engine
//  6. Serves HTTP, or MCP over stdio
func run(ctx context.Context, configPath string, mcpStdio bool) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	logger, err := logging.New(cfg.Logging)
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}
	defer logger.Sync()

	logger.Info(ctx, "starting taskd",
		zap.String("version", version),
		zap.String("addr", cfg.Server.Addr),
		zap.String("storage", cfg.Storage.Path))

	store, err := task.OpenSQLite(cfg.Storage.Path)
	if err != nil {
		return fmt.Errorf("open task store: %w", err)
	}
	defer store.Close()

	sessions, err := conversation.NewSQLiteSessionStore(store.Conn(), cfg.Session.TTL)
	if err != nil {
		return fmt.Errorf("open session store: %w", err)
	}
	go sweepSessions(ctx, sessions, cfg.Session.SweepInterval, logger)

	normalizer := dates.New()
	if cfg.Dates.Fallback.Enabled {
		fb, err := dates.NewLLMFallback(dates.LLMConfig{
			BaseURL: cfg.Dates.Fallback.BaseURL,
			Model:   cfg.Dates.Fallback.Model,
			APIKey:  cfg.Dates.Fallback.APIKey,
			Timeout: cfg.Dates.Fallback.Timeout,
		})
		if err != nil {
			return fmt.Errorf("init date fallback: %w", err)
		}
		normalizer.LLM = fb
		logger.Info(ctx, "date fallback enabled", zap.String("model", cfg.Dates.Fallback.Model))
	}

	if mcpStdio {
		srv, err := mcp.NewServer(nil, store, normalizer, logger, nil)
		if err != nil {
			return fmt.Errorf("init mcp server: %w", err)
		}
		return srv.Run(ctx)
	}

	engine := conversation.NewEngine(store, sessions, normalizer, logger, cfg.Session.IdleTimeout)
	engine.Instrument(prometheus.DefaultRegisterer)
	srv := taskhttp.NewServer(taskhttp.Config{
		Addr:         cfg.Server.Addr,
		AuthToken:    cfg.Server.AuthToken,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}, store, engine, normalizer, logger, nil)

	errCh := make(chan error, 1)
	go func() {
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("http server: %w", err)
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

// sweepSessions deletes expired conversation sessions on an interval.
func sweepSessions(ctx context.Context, sessions *conversation.SQLiteSessionStore, interval time.Duration, logger *logging.Logger) {
	if interval <= 0 {
		return
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			n, err := sessions.Sweep(ctx)
			if err != nil {
				logger.Warn(ctx, "session sweep failed", zap.Error(err))
				continue
			}
			if n > 0 {
				logger.Debug(ctx, "swept expired sessions", zap.Int64("count", n))
			}
		}
	}
}
