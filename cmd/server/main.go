/*
main.go - Application entry point

PURPOSE:
  Initializes and starts the cashback ledger server.
  Handles configuration, dependency injection, and graceful shutdown.

STARTUP SEQUENCE:
  1. Load configuration from the environment, then apply flags
  2. Build the logger
  3. Load the tier program (PROGRAM_FILE or the embedded default)
  4. Open the SQLite snapshot store, prune old versions if configured
  5. Choose the notifier (Telegram when configured, log otherwise)
  6. Build the engine and load the latest table snapshots
  7. Configure the HTTP router, start the promotion announcer
  8. Start server with graceful shutdown

COMMAND-LINE FLAGS:
  -port    HTTP server port (overrides SERVER_PORT)
  -db      SQLite database path (overrides DB_PATH)
           Use ":memory:" for in-memory database
  -program Tier program YAML (overrides PROGRAM_FILE)

GRACEFUL SHUTDOWN:
  On SIGINT/SIGTERM:
  1. Stop the announcer
  2. Stop accepting new connections
  3. Wait for active requests to complete (SERVER_SHUTDOWN_TIMEOUT)
  4. Close database connection

EXAMPLES:
  ./server -db="./data/cashback.db"
  TELEGRAM_BOT_TOKEN=... TELEGRAM_CHAT_ID=... ./server
  LOG_FORMAT=json ./server -port=3000

SEE ALSO:
  - config/config.go: Environment variables
  - api/server.go: Router configuration
  - store/sqlite/sqlite.go: Snapshot store
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

	"github.com/warp/cashback-engine/api"
	"github.com/warp/cashback-engine/cashback"
	"github.com/warp/cashback-engine/config"
	"github.com/warp/cashback-engine/factory"
	"github.com/warp/cashback-engine/logging"
	"github.com/warp/cashback-engine/notify"
	"github.com/warp/cashback-engine/store/sqlite"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "cashback server: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	// Flags
	port := flag.Int("port", cfg.HTTP.Port, "HTTP server port")
	dbPath := flag.String("db", cfg.Storage.DBPath, "SQLite database path")
	programFile := flag.String("program", cfg.Program.File, "tier program YAML file")
	flag.Parse()

	logger := logging.New(cfg.Logging)
	slog.SetDefault(logger)

	program, err := loadProgram(*programFile)
	if err != nil {
		return err
	}

	// Initialize store
	store, err := sqlite.New(*dbPath)
	if err != nil {
		return fmt.Errorf("initialize database: %w", err)
	}
	defer store.Close()

	if keep := cfg.Storage.SnapshotRetention; keep > 0 {
		for _, table := range []string{cashback.TableCustomers, cashback.TableTransactions, cashback.TablePromotions} {
			removed, err := store.Prune(context.Background(), table, keep)
			if err != nil {
				logger.Warn("prune failed", "table", table, "error", err)
				continue
			}
			if removed > 0 {
				logger.Info("pruned snapshots", "table", table, "removed", removed, "kept", keep)
			}
		}
	}

	telegram := notify.NewTelegram(cfg.Telegram.BotToken, cfg.Telegram.ChatID,
		notify.WithBaseURL(cfg.Telegram.BaseURL))
	if !telegram.Configured() {
		logger.Info("telegram not configured, notifications go to the log")
	}

	engine := cashback.NewEngine(program, cashback.Options{
		Store:         store,
		Notifier:      notify.Select(telegram, logger),
		Logger:        logger,
		NotifyTimeout: cfg.Telegram.NotifyTimeout,
	})
	if err := engine.Load(context.Background()); err != nil {
		return fmt.Errorf("load ledger: %w", err)
	}
	logger.Info("ledger loaded",
		"customers", len(engine.Customers()),
		"transactions", len(engine.Transactions()),
		"promotions", len(engine.Promotions()))

	handler := api.NewHandler(engine, logger).WithStore(store)
	router := api.NewRouter(handler, cfg.HTTP.AllowedOrigins)

	announcer := api.NewPromotionAnnouncer(engine, logger)
	announcer.Enabled = cfg.Scheduler.AnnounceEnabled
	announcer.CheckInterval = cfg.Scheduler.AnnounceInterval
	announcer.Start()
	defer announcer.Stop()

	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", *port),
		Handler:      router,
		ReadTimeout:  cfg.HTTP.ReadTimeout,
		WriteTimeout: cfg.HTTP.WriteTimeout,
		IdleTimeout:  cfg.HTTP.IdleTimeout,
	}

	// Start server in goroutine
	serverErr := make(chan error, 1)
	go func() {
		logger.Info("server starting", "addr", server.Addr, "db", *dbPath)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
		close(serverErr)
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-serverErr:
		if err != nil {
			return fmt.Errorf("server failed: %w", err)
		}
		return nil
	case sig := <-quit:
		logger.Info("shutting down server", "signal", sig.String())
	}

	ctx, cancel := context.WithTimeout(context.Background(), cfg.HTTP.ShutdownTimeout)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		return fmt.Errorf("server forced to shutdown: %w", err)
	}

	logger.Info("server stopped")
	return nil
}

func loadProgram(path string) (cashback.Program, error) {
	if path == "" {
		return factory.Default()
	}
	program, err := factory.NewProgramFactory().LoadFile(path)
	if err != nil {
		return cashback.Program{}, fmt.Errorf("load program %s: %w", path, err)
	}
	return program, nil
}
