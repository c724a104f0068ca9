/*
main.go - Application entry point

PURPOSE:
  Initializes and starts the party balance ledger server.
  Handles configuration, dependency injection, and graceful shutdown.

STARTUP SEQUENCE:
  1. Load configuration (.env, environment)
  2. Parse command-line flags (override environment)
  3. Build the zap logger
  4. Initialize SQLite store (WAL, foreign keys, busy timeout)
  5. Create API handler, start the reconciliation scheduler
  6. Start server with graceful shutdown

COMMAND-LINE FLAGS:
  -port    HTTP server port (env PORT, default 8080)
  -db      SQLite database path (env LEDGER_DB_PATH, default ledger.db)
           Use ":memory:" for in-memory database
  -scenario  Load a demo scenario at startup

ENVIRONMENT:
  PORT, LEDGER_DB_PATH, SQLITE_BUSY_TIMEOUT, SERVER_TIMEOUT, CORS_ORIGINS,
  LOG_LEVEL, LOG_FORMAT, LOG_OUTPUT, AUDIT_ENABLED, AUDIT_INTERVAL.
  See config/config.go for defaults.

GRACEFUL SHUTDOWN:
  On SIGINT/SIGTERM:
  1. Stop the reconciliation scheduler
  2. Stop accepting new connections
  3. Wait for active requests to complete (30s timeout)
  4. Close database connection

SEE ALSO:
  - api/server.go: Router configuration
  - api/handlers.go: HTTP handlers
  - store/sqlite/sqlite.go: Database implementation
*/
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/cableworks/ledger-engine/api"
	"github.com/cableworks/ledger-engine/config"
	"github.com/cableworks/ledger-engine/logger"
	"github.com/cableworks/ledger-engine/store/sqlite"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "server: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}

	// Flags
	port := flag.Int("port", cfg.App.Port, "HTTP server port")
	dbPath := flag.String("db", cfg.DB.Path, "SQLite database path")
	scenario := flag.String("scenario", "", "Demo scenario to load at startup")
	flag.Parse()

	log, err := logger.New(cfg.Logger())
	if err != nil {
		return err
	}
	defer log.Sync()

	// Initialize store
	store, err := sqlite.New(*dbPath, sqlite.WithBusyTimeout(cfg.DB.BusyTimeout))
	if err != nil {
		return fmt.Errorf("failed to initialize database: %w", err)
	}
	defer store.Close()

	handler := api.NewHandler(store, log)
	if *scenario != "" {
		if err := handler.LoadScenarioByID(context.Background(), *scenario); err != nil {
			return err
		}
	}

	handler.Scheduler.Enabled = cfg.Audit.Enabled
	handler.Scheduler.CheckInterval = cfg.Audit.Interval
	handler.Scheduler.Start()
	defer handler.Scheduler.Stop()

	router := api.NewRouter(handler, api.RouterOptions{
		AllowedOrigins: cfg.App.CORSOrigins,
		Logger:         log,
	})

	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", *port),
		Handler:      router,
		ReadTimeout:  cfg.Server.Timeout,
		WriteTimeout: cfg.Server.Timeout,
		IdleTimeout:  60 * time.Second,
	}

	// Start server in goroutine
	errCh := make(chan error, 1)
	go func() {
		log.Info("server starting",
			zap.Int("port", *port),
			zap.String("db", *dbPath),
			zap.Bool("audit", cfg.Audit.Enabled),
		)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	select {
	case sig := <-quit:
		log.Info("shutting down", zap.String("signal", sig.String()))
	case err := <-errCh:
		return fmt.Errorf("server failed: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		return fmt.Errorf("server forced to shutdown: %w", err)
	}

	log.Info("server stopped")
	return nil
}
