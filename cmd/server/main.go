/*
main.go - Application entry point

PURPOSE:
  Initializes and starts the settlement engine server.
  Handles configuration, dependency injection, and graceful shutdown.

STARTUP SEQUENCE:
  1. Load configuration (.env, environment, then flags)
  2. Build the structured logger
  3. Initialize SQLite store
  4. Build the settlement engine on the store
  5. Configure HTTP router
  6. Start the overdue scheduler
  7. Start server with graceful shutdown

COMMAND-LINE FLAGS (override the environment):
  -port    HTTP server port (PORT, default: 8080)
  -db      SQLite database path (DB_PATH, default: settlements.db)
           Use ":memory:" for in-memory database
  -strict  Abort a computation on the first employee failure (SETTLEMENT_STRICT)

ENVIRONMENT:
  LOG_LEVEL, LOG_FORMAT, ALLOWED_ORIGINS, RETRIEVAL_TIMEOUT,
  SETTLEMENT_CONCURRENCY, FINALIZE_ABORT_ON_FAILURE, OVERDUE_AFTER.
  See config/config.go.

GRACEFUL SHUTDOWN:
  On SIGINT/SIGTERM:
  1. Stop the overdue scheduler
  2. Stop accepting new connections
  3. Wait for active requests to complete (30s timeout)
  4. Close database connection
  5. Exit

EXAMPLES:
  # Run with file database
  ./server -db="./data/settlements.db"

  # Run with in-memory database and JSON logs
  LOG_FORMAT=json ./server -db=":memory:"

SEE ALSO:
  - api/server.go: Router configuration
  - settlement/engine.go: Engine construction
  - store/sqlite/sqlite.go: Database implementation
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

	"github.com/go-chi/httplog/v3"

	"github.com/warp/settlement-engine/api"
	"github.com/warp/settlement-engine/config"
	"github.com/warp/settlement-engine/settlement"
	"github.com/warp/settlement-engine/store/sqlite"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		os.Exit(1)
	}

	// Flags
	port := flag.Int("port", cfg.App.Port, "HTTP server port")
	dbPath := flag.String("db", cfg.Database.Path, "SQLite database path")
	strict := flag.Bool("strict", cfg.Settlement.Strict, "abort a computation on the first employee failure")
	flag.Parse()

	logger := newLogger(cfg.App)
	slog.SetDefault(logger)

	if err := run(cfg, *port, *dbPath, *strict, logger); err != nil {
		logger.Error("server stopped with error", "error", err)
		os.Exit(1)
	}
}

func run(cfg *config.Config, port int, dbPath string, strict bool, logger *slog.Logger) error {
	// Initialize store
	store, err := sqlite.New(dbPath)
	if err != nil {
		return fmt.Errorf("failed to initialize database: %w", err)
	}
	defer store.Close()

	engine := settlement.NewEngine(store.Dependencies(), settlement.Options{
		Strict:           strict,
		AbortOnFailure:   cfg.Settlement.AbortOnFailure,
		Concurrency:      cfg.Settlement.Concurrency,
		RetrievalTimeout: cfg.Settlement.RetrievalTimeout,
		Logger:           logger,
	})

	handler := api.NewHandler(store, engine, logger)
	router := api.NewRouter(handler, api.RouterOptions{
		AllowedOrigins: cfg.App.AllowedOrigins,
		Logger:         logger,
		LogLevel:       cfg.App.LogLevel,
	})

	scheduler := api.NewOverdueScheduler(store, cfg.Settlement.OverdueAfter, logger)
	scheduler.Start()
	defer scheduler.Stop()

	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", port),
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("server starting", "addr", server.Addr, "db", dbPath, "strict", strict)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	select {
	case err := <-errCh:
		return err
	case <-quit:
	}

	logger.Info("shutting down server")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		return fmt.Errorf("server forced to shutdown: %w", err)
	}

	logger.Info("server stopped")
	return nil
}

// newLogger builds the process logger. JSON output uses the ECS field names
// so access logs and application logs share one schema.
func newLogger(app config.AppConfig) *slog.Logger {
	opts := &slog.HandlerOptions{Level: app.LogLevel}
	var handler slog.Handler
	if app.LogFormat == "json" {
		opts.ReplaceAttr = httplog.SchemaECS.Concise(false).ReplaceAttr
		handler = slog.NewJSONHandler(os.Stdout, opts)
	} else {
		handler = slog.NewTextHandler(os.Stdout, opts)
	}
	return slog.New(handler).With(slog.String("app", "settlement-engine"))
}
