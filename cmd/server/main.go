/*
main.go - Application entry point

PURPOSE:
  Initializes and starts the HR engine server. Handles configuration,
  dependency injection, and graceful shutdown.

STARTUP SEQUENCE:
  1. Load configuration (.env, environment, flags)
  2. Build the logger
  3. Open the backend (sqlite, postgres or memory)
  4. Build the services and seed reference data
  5. Configure HTTP router and the recalculation scheduler
  6. Start server with graceful shutdown

COMMAND-LINE FLAGS:
  -port          HTTP server port (default: 8080)
  -db-driver     sqlite | postgres | memory (default: sqlite)
  -db            SQLite database path (default: hr.db)
                 Use ":memory:" for in-memory database
  -database-url  PostgreSQL connection URL
  -log-level     debug | info | warn | error
  -seed          seed reference data on start (default: true)

GRACEFUL SHUTDOWN:
  On SIGINT/SIGTERM:
  1. Stop the scheduler
  2. Stop accepting new connections
  3. Wait for active requests to complete (SHUTDOWN_TIMEOUT)
  4. Close the backend
  5. Exit

EXAMPLES:
  # Run with file database
  ./server -db="./data/hr.db"

  # Run against PostgreSQL
  DATABASE_URL=postgres://hr:hr@localhost:5432/hr ./server -db-driver=postgres

  # Run on different port
  ./server -port=3000

SEE ALSO:
  - config/config.go: All configuration keys
  - api/server.go: Router configuration
  - factory/factory.go: Backend selection and service wiring
*/
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/warp/hr-engine/api"
	"github.com/warp/hr-engine/config"
	"github.com/warp/hr-engine/factory"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load(os.Args[1:])
	if err != nil {
		return err
	}
	logger := config.NewLogger(cfg.Log, os.Stdout)
	slog.SetDefault(logger)

	ctx := context.Background()

	// Initialize backend
	backend, err := factory.OpenBackend(ctx, cfg.Database.Driver, cfg.Database.DSN())
	if err != nil {
		return fmt.Errorf("failed to initialize database: %w", err)
	}
	defer backend.Close()

	svcs := factory.NewServices(backend, factory.Options{
		DefaultEntitlement: cfg.Leave.DefaultEntitlement,
		DefaultCurrency:    cfg.Payroll.DefaultCurrency,
		RecalcWorkers:      cfg.Attendance.RecalcWorkers,
	}, logger)
	if cfg.SeedOnStart {
		if err := svcs.SeedDefaults(ctx); err != nil {
			return err
		}
	}

	handler := api.NewHandler(svcs, logger)
	level, _ := config.ParseLevel(cfg.Log.Level)
	router := api.NewRouter(handler, api.RouterOptions{
		AllowedOrigins:  cfg.Server.AllowedOrigins,
		RequestLogLevel: level,
	})

	scheduler := api.NewRecalcScheduler(svcs, logger, cfg.Attendance.RecalcInterval)
	scheduler.Start()

	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	serveErr := make(chan error, 1)
	go func() {
		logger.Info("server starting",
			"port", cfg.Server.Port,
			"driver", cfg.Database.Driver)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	select {
	case <-quit:
	case err := <-serveErr:
		scheduler.Stop()
		return fmt.Errorf("server failed: %w", err)
	}

	logger.Info("shutting down server")
	scheduler.Stop()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server forced to shutdown: %w", err)
	}

	logger.Info("server stopped")
	return nil
}
