/*
main.go - Application entry point

PURPOSE:
  Initializes and starts the leave dashboard server.
  Handles configuration, dependency injection, and graceful shutdown.

STARTUP SEQUENCE:
  1. Load configuration (.env, environment, flags)
  2. Open the employee table backend (csv, sqlite or postgres)
  3. Load the directory and initialize the leave ledger
  4. Build credentials, token service and router
  5. Start server with graceful shutdown

COMMAND-LINE FLAGS:
  -port    HTTP server port (overrides APP_PORT)
  -data    Employee CSV path (overrides DATA_CSV)

GRACEFUL SHUTDOWN:
  On SIGINT/SIGTERM:
  1. Stop accepting new connections
  2. Wait for active requests to complete (30s timeout)
  3. Close the storage backend
  4. Exit

EXAMPLES:
  # Run against the flat file
  ./server -data=./employee_data.csv

  # Keep the table in SQLite, importing the CSV on first start
  STORAGE_DRIVER=sqlite SQLITE_PATH=./data/leave.db ./server

SEE ALSO:
  - config/config.go: Environment keys
  - api/server.go: Router configuration
*/
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/warp/leave-dashboard/api"
	"github.com/warp/leave-dashboard/auth"
	"github.com/warp/leave-dashboard/config"
	"github.com/warp/leave-dashboard/directory"
	"github.com/warp/leave-dashboard/ledger"
	"github.com/warp/leave-dashboard/store/postgres"
	"github.com/warp/leave-dashboard/store/sqlite"
)

func main() {
	// Flags
	port := flag.Int("port", 0, "HTTP server port (overrides APP_PORT)")
	dataPath := flag.String("data", "", "Employee CSV path (overrides DATA_CSV)")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}
	if *port != 0 {
		cfg.App.Port = *port
	}
	if *dataPath != "" {
		cfg.Storage.DataCSV = *dataPath
	}

	logger := api.NewLogger(os.Stdout, cfg.SlogLevel(), cfg.App.Env)
	slog.SetDefault(logger)

	if err := run(cfg, logger); err != nil {
		logger.Error("server stopped with error", slog.Any("error", err))
		os.Exit(1)
	}
}

func run(cfg *config.Config, logger *slog.Logger) error {
	ctx := context.Background()

	// Initialize storage
	backend, closeBackend, err := openBackend(ctx, cfg)
	if err != nil {
		return fmt.Errorf("failed to initialize storage: %w", err)
	}
	defer closeBackend()

	var opts []directory.Option
	opts = append(opts, directory.WithLogger(logger))
	if cfg.Storage.Driver != config.DriverCSV {
		opts = append(opts, directory.WithSeed(directory.NewCSVFile(cfg.Storage.DataCSV)))
	}
	dir, err := directory.Open(ctx, backend, opts...)
	if err != nil {
		return fmt.Errorf("failed to load employee table: %w", err)
	}

	// Initialize ledger
	l := ledger.New(dir,
		ledger.WithQuota(cfg.Leave.MonthlyQuota),
		ledger.WithLogger(logger),
	)
	if err := l.Initialize(ctx); err != nil {
		return fmt.Errorf("failed to initialize ledger: %w", err)
	}

	creds, err := auth.NewCredentials(dir.EmployeeIDs(), cfg.Auth.AdminUser, cfg.Auth.AdminPassword)
	if err != nil {
		return err
	}
	tokens := auth.NewTokenService(cfg.Auth.JWTSecret, cfg.Auth.TokenTTL)

	// Create router
	handler := api.NewHandler(l, dir, creds, tokens, logger)
	router := api.NewRouter(handler, cfg.App.CORSOrigins)

	// Create server
	server := &http.Server{
		Addr:         cfg.Address(),
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Start server in goroutine
	serveErr := make(chan error, 1)
	go func() {
		logger.Info("server starting",
			slog.String("addr", server.Addr),
			slog.String("storage", cfg.Storage.Driver),
			slog.Int("employees", len(dir.EmployeeIDs())),
		)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	select {
	case <-quit:
	case err := <-serveErr:
		return err
	}

	logger.Info("shutting down server")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server forced to shutdown: %w", err)
	}

	logger.Info("server stopped")
	return nil
}

// openBackend returns the configured employee table backend and its closer.
func openBackend(ctx context.Context, cfg *config.Config) (directory.Backend, func(), error) {
	switch cfg.Storage.Driver {
	case config.DriverSQLite:
		store, err := sqlite.New(cfg.Storage.SQLitePath)
		if err != nil {
			return nil, nil, err
		}
		return store, func() { store.Close() }, nil
	case config.DriverPostgres:
		store, err := postgres.Connect(ctx, cfg.Storage.DatabaseURL)
		if err != nil {
			return nil, nil, err
		}
		return store, store.Close, nil
	default:
		return directory.NewCSVFile(cfg.Storage.DataCSV), func() {}, nil
	}
}
