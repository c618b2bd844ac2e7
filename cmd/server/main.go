package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/pflag"

	"github.com/fenggwsx/RoomGate/internal/auth"
	"github.com/fenggwsx/RoomGate/internal/config"
	"github.com/fenggwsx/RoomGate/internal/metrics"
	"github.com/fenggwsx/RoomGate/internal/server"
	"github.com/fenggwsx/RoomGate/internal/storage/sqlite"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	var (
		configPath   string
		envFile      string
		listenAddr   string
		logLevel     string
		hashPassword string
		noJournal    bool
	)

	flagSet := pflag.NewFlagSet("roomgate-server", pflag.ContinueOnError)
	flagSet.StringVarP(&configPath, "config", "c", "", "YAML file with the socket section (header fields, toggles)")
	flagSet.StringVar(&envFile, "env-file", ".env", "dotenv file loaded before reading ROOMGATE_* variables")
	flagSet.StringVar(&listenAddr, "listen", "", "listen address, overrides ROOMGATE_LISTEN_ADDR")
	flagSet.StringVar(&logLevel, "log-level", "", "debug, info, warn or error, overrides ROOMGATE_LOG_LEVEL")
	flagSet.StringVar(&hashPassword, "hash-password", "", "print a bcrypt hash for ROOMGATE_ADMIN_PASSWORD_HASH and exit")
	flagSet.BoolVar(&noJournal, "no-journal", false, "do not record admissions in the database")

	if err := flagSet.Parse(os.Args[1:]); err != nil {
		if err == pflag.ErrHelp {
			return nil
		}
		return err
	}

	if hashPassword != "" {
		hash, err := auth.HashPassword(hashPassword)
		if err != nil {
			return err
		}
		fmt.Println(hash)
		return nil
	}

	if err := config.LoadDotEnv(envFile); err != nil {
		return fmt.Errorf("load env file: %w", err)
	}

	cfg := config.LoadServerConfig()
	if configPath != "" {
		socket, err := config.LoadSocketFile(configPath, cfg.Socket)
		if err != nil {
			return err
		}
		cfg.Socket = socket
	}
	if listenAddr != "" {
		cfg.ListenAddr = listenAddr
	}
	if logLevel != "" {
		cfg.LogLevel = logLevel
	}

	logger := setupLogger(cfg.LogLevel)

	opts := []server.Option{
		server.WithLogger(logger),
		server.WithMetrics(metrics.NewRoutingMetrics(), prometheus.DefaultGatherer),
	}

	var app *server.App
	if noJournal {
		app = server.NewApp(cfg, nil, opts...)
	} else {
		store, err := sqlite.NewStore(cfg.Database)
		if err != nil {
			return fmt.Errorf("init storage: %w", err)
		}
		defer store.Close()
		app = server.NewApp(cfg, store, opts...)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := app.Run(ctx); err != nil {
		return fmt.Errorf("server shutdown: %w", err)
	}
	return nil
}

func setupLogger(level string) *slog.Logger {
	lvl := slog.LevelInfo
	switch strings.ToLower(level) {
	case "debug":
		lvl = slog.LevelDebug
	case "warn":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	}
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: lvl}))
	slog.SetDefault(logger)
	return logger
}
