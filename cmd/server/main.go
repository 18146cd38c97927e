/*
main.go - Application entry point

PURPOSE:
  Initializes and starts the contribution engine server.
  Handles configuration, dependency injection, and graceful shutdown.

STARTUP SEQUENCE:
  1. Load configuration (file, then flags)
  2. Build the zap logger
  3. Initialize SQLite store
  4. Import the legislation file, if any, and report missing entries
  5. Start the month-close scheduler
  6. Configure HTTP router
  7. Start server with graceful shutdown

COMMANDS:
  serve    Run the HTTP server (default)
  version  Print version information

FLAGS:
  --config       YAML config file
  --port         HTTP server port (default: 8080)
  --db           SQLite database path; ":memory:" for in-memory
  --legislation  YAML or JSON legislation document to import on startup
  --log-level    debug, info, warn, error
  --no-scheduler Disable the month-close scheduler

GRACEFUL SHUTDOWN:
  On SIGINT/SIGTERM:
  1. Stop accepting new connections
  2. Wait for active requests to complete (server.shutdown_timeout)
  3. Close database connection
  4. Exit

EXAMPLES:
  ./server serve --db="./data/contributions.db" --legislation=law.yaml
  ./server --db=":memory:" --port=3000

SEE ALSO:
  - api/server.go: Router configuration
  - config/config.go: Configuration file
  - store/sqlite/sqlite.go: Database implementation
*/
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"github.com/warp/contribution-engine/api"
	"github.com/warp/contribution-engine/config"
	"github.com/warp/contribution-engine/generic"
	"github.com/warp/contribution-engine/store/sqlite"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

const (
	Version   = "0.1.0"
	BuildTime = "dev"
	appName   = "contribution-engine"
)

func main() {
	if err := rootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

type serveFlags struct {
	configPath  string
	port        int
	dbPath      string
	legislation string
	logLevel    string
	noScheduler bool
}

func rootCmd() *cobra.Command {
	var flags serveFlags

	serve := func(cmd *cobra.Command, args []string) error {
		cfg, err := resolveConfig(cmd, flags)
		if err != nil {
			return err
		}
		return run(cfg)
	}

	cmd := &cobra.Command{
		Use:   appName,
		Short: "Social contribution computation server",
		Long: `Computes employer and employee social contributions for a population
from bracket schedules per employment category, with monthly anticipated
withholding or annual lump-sum settlement.`,
		RunE:          serve,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	pf := cmd.PersistentFlags()
	pf.StringVarP(&flags.configPath, "config", "c", "", "Config file path (YAML)")
	pf.IntVar(&flags.port, "port", 8080, "HTTP server port")
	pf.StringVar(&flags.dbPath, "db", "", "SQLite database path")
	pf.StringVar(&flags.legislation, "legislation", "", "Legislation document to import on startup")
	pf.StringVar(&flags.logLevel, "log-level", "info", "Log level (debug, info, warn, error)")
	pf.BoolVar(&flags.noScheduler, "no-scheduler", false, "Disable the month-close scheduler")

	cmd.AddCommand(&cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP server",
		RunE:  serve,
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "%s version %s (build: %s)\n", appName, Version, BuildTime)
		},
	})

	return cmd
}

// resolveConfig loads the config file, then applies the flags the user set.
func resolveConfig(cmd *cobra.Command, flags serveFlags) (*config.Config, error) {
	cfg, err := config.Load(flags.configPath)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}

	override := &config.Config{}
	if cmd.Flags().Changed("port") {
		override.Server.Port = flags.port
	}
	if cmd.Flags().Changed("db") {
		override.Database.Path = flags.dbPath
	}
	if cmd.Flags().Changed("legislation") {
		override.Legislation.File = flags.legislation
	}
	if cmd.Flags().Changed("log-level") {
		override.Log.Level = flags.logLevel
	}
	cfg.Merge(override)
	if flags.noScheduler {
		cfg.Scheduler.Enabled = false
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

func newLogger(cfg config.LogConfig) (*zap.Logger, error) {
	level, err := zapcore.ParseLevel(cfg.Level)
	if err != nil {
		return nil, err
	}
	zc := zap.NewProductionConfig()
	if cfg.Development {
		zc = zap.NewDevelopmentConfig()
	}
	zc.Level = zap.NewAtomicLevelAt(level)
	return zc.Build()
}

func run(cfg *config.Config) error {
	logger, err := newLogger(cfg.Log)
	if err != nil {
		return fmt.Errorf("build logger: %w", err)
	}
	defer logger.Sync()

	// Initialize store
	store, err := sqlite.New(cfg.Database.Path)
	if err != nil {
		return fmt.Errorf("initialize database: %w", err)
	}
	defer store.Close()

	handler := api.NewHandler(store, logger)

	if cfg.Legislation.File != "" {
		if err := importLegislation(context.Background(), handler, cfg.Legislation.File, logger); err != nil {
			return err
		}
	}

	scheduler := api.NewMonthCloseScheduler(handler, logger)
	scheduler.Enabled = cfg.Scheduler.Enabled
	scheduler.CheckInterval = cfg.Scheduler.CheckInterval
	scheduler.Start()
	defer scheduler.Stop()

	router := api.NewRouter(handler, cfg.Server.AllowedOrigins...)

	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	serverErr := make(chan error, 1)
	go func() {
		logger.Info("server starting",
			zap.Int("port", cfg.Server.Port),
			zap.String("db", cfg.Database.Path),
			zap.String("version", Version),
		)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	select {
	case err := <-serverErr:
		return fmt.Errorf("server failed: %w", err)
	case <-quit:
	}

	logger.Info("shutting down server")

	ctx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		return fmt.Errorf("server forced to shutdown: %w", err)
	}

	logger.Info("server stopped")
	return nil
}

// importLegislation stores every snapshot of the file and logs the
// categories each one leaves without a schedule.
func importLegislation(ctx context.Context, h *api.Handler, path string, logger *zap.Logger) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read legislation: %w", err)
	}
	format := strings.TrimPrefix(filepath.Ext(path), ".")

	docs, err := h.LegislationFactory.Split(format, data)
	if err != nil {
		return fmt.Errorf("legislation %s: %w", path, err)
	}
	for _, doc := range docs {
		doc.CreatedAt = time.Now()
		if err := h.Store.SaveLegislation(ctx, doc); err != nil {
			return fmt.Errorf("save legislation %s: %w", doc.ValidFrom, err)
		}
		history, err := h.LegislationFactory.FromDocuments([]generic.LegislationDocument{doc})
		if err != nil {
			return err
		}
		for _, s := range history.Snapshots() {
			api.LogMissingEntries(logger.Named("legislation"), s)
		}
	}

	logger.Info("legislation imported", zap.String("file", path), zap.Int("snapshots", len(docs)))
	return nil
}
