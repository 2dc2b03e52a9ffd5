package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/term"

	"github.com/swipeflow/swipeflow/internal/config"
	"github.com/swipeflow/swipeflow/internal/database"
	"github.com/swipeflow/swipeflow/internal/logging"
	"github.com/swipeflow/swipeflow/internal/server"
	"github.com/swipeflow/swipeflow/internal/siteconfig"
)

// For testing
var newDatabaseFromConfig = database.NewFromConfig

// Server command flags
var (
	serverEnvFile    string
	serverListenAddr string
	serverLogLevel   string
	serverLogFile    string
	debugMode        bool
)

var serverCmd = &cobra.Command{
	Use:   "server",
	Short: "Start the SwipeFlow backend server",
	Long:  `Start the HTTP server for the extension API and the admin API.`,
	Run:   runServer,
}

func init() {
	serverCmd.Flags().StringVar(&serverEnvFile, "env", config.EnvOrDefault("ENV", ".env"), "Path to .env file")
	serverCmd.Flags().StringVar(&serverListenAddr, "addr", config.EnvOrDefault("LISTEN_ADDR", ""), "Address to listen on (overrides env var)")
	serverCmd.Flags().StringVar(&serverLogLevel, "log-level", config.EnvOrDefault("LOG_LEVEL", ""), "Log level: debug, info, warn, error (overrides env var)")
	serverCmd.Flags().StringVar(&serverLogFile, "log-file", config.EnvOrDefault("LOG_FILE", ""), "Path to log file (overrides env var, default: stdout)")
	serverCmd.Flags().BoolVarP(&debugMode, "debug", "v", config.EnvBoolOrDefault("DEBUG", false), "Enable debug logging (overrides log-level)")
}

func runServer(cmd *cobra.Command, args []string) {
	// Load .env when present; a missing file is not an error.
	if _, err := os.Stat(serverEnvFile); err == nil {
		if err := godotenv.Load(serverEnvFile); err != nil {
			fmt.Fprintf(os.Stderr, "Error loading %s: %v\n", serverEnvFile, err)
			osExit(1)
			return
		}
	}

	if serverListenAddr != "" {
		_ = os.Setenv("LISTEN_ADDR", serverListenAddr)
	}
	if serverLogLevel != "" {
		_ = os.Setenv("LOG_LEVEL", serverLogLevel)
	}
	if debugMode {
		_ = os.Setenv("LOG_LEVEL", "debug")
	}
	if serverLogFile != "" {
		_ = os.Setenv("LOG_FILE", serverLogFile)
	}

	cfg, err := config.New()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Configuration error: %v\n", err)
		osExit(1)
		return
	}

	zapLogger, err := logging.NewLogger(cfg.LogLevel, cfg.LogFormat, cfg.LogFile)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Logger error: %v\n", err)
		osExit(1)
		return
	}
	defer func() { _ = zapLogger.Sync() }()

	dbConfig := database.ConfigFromEnv()
	if dbConfig.Driver == database.DriverSQLite && os.Getenv("DATABASE_PATH") == "" {
		dbConfig.Path = cfg.DatabasePath
	}
	dbConfig.MaxOpenConns = cfg.DatabasePoolSize

	db, err := newDatabaseFromConfig(dbConfig)
	if err != nil {
		zapLogger.Fatal("Failed to open database", zap.Error(err))
		return
	}
	defer func() { _ = db.Close() }()

	if cfg.SitesConfigPath != "" {
		if err := siteconfig.Seed(context.Background(), db, cfg.SitesConfigPath, zapLogger); err != nil {
			zapLogger.Fatal("Failed to seed site configurations", zap.Error(err))
			return
		}
	}

	s, err := server.New(cfg, db, zapLogger)
	if err != nil {
		zapLogger.Fatal("Failed to create server", zap.Error(err))
		return
	}

	done := make(chan os.Signal, 1)
	signal.Notify(done, os.Interrupt, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		if err := s.Start(); err != nil && err != http.ErrServerClosed {
			zapLogger.Fatal("Server error", zap.Error(err))
		}
	}()

	zapLogger.Info("Server started", zap.String("addr", cfg.ListenAddr))

	if term.IsTerminal(int(os.Stdout.Fd())) {
		fmt.Println("Press Ctrl+C to stop")
	}

	<-done
	zapLogger.Info("Server shutting down...")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := s.Shutdown(ctx); err != nil {
		zapLogger.Fatal("Server forced to shutdown", zap.Error(err))
	}

	zapLogger.Info("Server exited gracefully")
}
