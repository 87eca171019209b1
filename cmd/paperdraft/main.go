// Package main provides the paperdraft binary entry point.
// Paperdraft is an academic paper drafting assistant that formats
// section notes into prose and answers writing questions over a
// local language model.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"runtime"
	"strings"
	"syscall"
	"time"

	// Register LLM providers via init()
	_ "github.com/c360studio/paperdraft/llm/providers"

	"github.com/spf13/cobra"

	"github.com/c360studio/paperdraft/config"
)

const (
	Version   = "0.1.0"
	BuildTime = "dev"
	appName   = "paperdraft"
)

func main() {
	// Add panic recovery
	defer func() {
		if r := recover(); r != nil {
			buf := make([]byte, 4096)
			n := runtime.Stack(buf, false)
			_, _ = fmt.Fprintf(os.Stderr, "PANIC: %v\nStack trace:\n%s\n", r, string(buf[:n]))
			os.Exit(2)
		}
	}()

	if err := rootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func rootCmd() *cobra.Command {
	var (
		configPath  string
		metricsAddr string
		logLevel    string
	)

	cmd := &cobra.Command{
		Use:   "paperdraft",
		Short: "Academic paper drafting assistant",
		Long: `Paperdraft turns rough section notes into formatted academic
prose using a local language model.

It provides:
- Debounced preview formatting with per-section fallback
- A drafting-focused chat assistant
- Draft persistence with ownership checks

All components communicate over NATS subjects; the presentation layer
publishes edit and chat commands and subscribes to preview updates.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(configPath, metricsAddr, logLevel)
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", "", "Config file path (YAML)")
	cmd.Flags().StringVar(&metricsAddr, "metrics-addr", ":9090", "Prometheus metrics listen address (empty to disable)")
	cmd.Flags().StringVar(&logLevel, "log-level", "info", "Log level (debug, info, warn, error)")

	// Version command
	cmd.AddCommand(&cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("%s version %s (build: %s)\n", appName, Version, BuildTime)
		},
	})

	cmd.AddCommand(configInitCmd())

	return cmd
}

func configInitCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "config-init",
		Short: "Write a default user config file",
		RunE: func(cmd *cobra.Command, args []string) error {
			loader := config.NewLoader(slog.Default())
			if err := loader.EnsureUserConfig(); err != nil {
				return fmt.Errorf("write user config: %w", err)
			}
			fmt.Println("User config file is in place")
			return nil
		},
	}
}

func run(configPath, metricsAddr, logLevel string) error {
	// Print banner
	printBanner()

	// Configure logging
	level := slog.LevelInfo
	switch strings.ToLower(logLevel) {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
	slog.SetDefault(logger)

	// Load configuration
	cfg, err := loadConfig(configPath, logger)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	ctx := context.Background()
	app := NewApp(cfg, logger)
	if err := app.Start(ctx, metricsAddr); err != nil {
		return err
	}

	slog.Info("Paperdraft ready",
		"version", Version,
		"provider", cfg.Model.Provider,
		"endpoint", cfg.Model.Endpoint)

	// Setup signal handling
	signalCtx, signalCancel := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer signalCancel()

	// Block until shutdown signal
	<-signalCtx.Done()
	slog.Info("Received shutdown signal")

	shutdownTimeout := 30 * time.Second
	app.Shutdown(shutdownTimeout)

	slog.Info("Paperdraft shutdown complete")
	return nil
}

func loadConfig(configPath string, logger *slog.Logger) (*config.Config, error) {
	if configPath != "" {
		return config.LoadFromFile(configPath)
	}
	return config.NewLoader(logger).Load()
}

func printBanner() {
	fmt.Println("╔═══════════════════════════════════════════════╗")
	fmt.Println("║           Paperdraft v" + Version + "                    ║")
	fmt.Println("║      Academic Paper Drafting Assistant        ║")
	fmt.Println("╚═══════════════════════════════════════════════╝")
}
