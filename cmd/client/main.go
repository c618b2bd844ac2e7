package main

import (
	"fmt"
	"os"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/pflag"

	"github.com/fenggwsx/RoomGate/internal/client"
	"github.com/fenggwsx/RoomGate/internal/config"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	var (
		envFile string
		url     string
		headers []string
	)

	flagSet := pflag.NewFlagSet("roomgate-watch", pflag.ContinueOnError)
	flagSet.StringVar(&envFile, "env-file", ".env", "dotenv file loaded before reading ROOMGATE_* variables")
	flagSet.StringVar(&url, "url", "", "websocket URL, overrides ROOMGATE_SERVER_URL")
	flagSet.StringArrayVarP(&headers, "header", "H", nil, "admission header as name=value (repeatable)")

	if err := flagSet.Parse(os.Args[1:]); err != nil {
		if err == pflag.ErrHelp {
			return nil
		}
		return err
	}

	if err := config.LoadDotEnv(envFile); err != nil {
		return fmt.Errorf("load env file: %w", err)
	}
	cfg := config.LoadClientConfig()
	if url != "" {
		cfg.ServerURL = url
	}

	extra, err := config.ParseHeaderPairs(headers)
	if err != nil {
		return err
	}
	if cfg.Headers == nil {
		cfg.Headers = make(map[string]string, len(extra))
	}
	for name, value := range extra {
		cfg.Headers[name] = value
	}

	program := tea.NewProgram(client.NewApp(cfg), tea.WithAltScreen())
	if _, err := program.Run(); err != nil {
		return fmt.Errorf("watcher exited: %w", err)
	}
	return nil
}
