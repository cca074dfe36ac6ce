// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

// Command leveler shows how far a caravan is from level and lets the
// operator recalibrate the tilt sensor it talks to.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"runtime"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/relabs-tech/leveler/internal/app"
	"github.com/relabs-tech/leveler/internal/config"
	"github.com/relabs-tech/leveler/internal/logging"
)

const (
	Version   = "0.1.0"
	BuildTime = "dev"
	appName   = "leveler"
)

func main() {
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
	var configPath string

	cmd := &cobra.Command{
		Use:           appName,
		Short:         "Caravan levelling client",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	cmd.PersistentFlags().StringVarP(&configPath, "config", "c", "leveler_config.txt", "Config file path (KEY=VALUE)")

	cmd.AddCommand(&cobra.Command{
		Use:   "run",
		Short: "Connect to the device, render the views and read console commands",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withConfig(configPath, func(ctx context.Context, cfg *config.Config, logger *slog.Logger) error {
				return app.RunClient(ctx, cfg, logger, os.Stdin, os.Stdout)
			})
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "mock-device",
		Short: "Serve a simulated tilt sensor on MOCK_DEVICE_ADDR",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withConfig(configPath, app.RunMockDevice)
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "monitor",
		Short: "Print tilt messages published on TOPIC_TILT",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withConfig(configPath, func(ctx context.Context, cfg *config.Config, logger *slog.Logger) error {
				return app.RunMonitor(ctx, cfg, logger, os.Stdout)
			})
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("%s version %s (build: %s)\n", appName, Version, BuildTime)
		},
	})

	return cmd
}

// withConfig loads the config, sets up logging and runs fn until SIGINT or
// SIGTERM.
func withConfig(configPath string, fn func(context.Context, *config.Config, *slog.Logger) error) error {
	if err := config.InitGlobal(configPath); err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	cfg := config.Get()

	logger := logging.New(os.Stderr, cfg, Version, appName)
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	return fn(ctx, cfg, logger)
}
