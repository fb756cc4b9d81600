package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/jpalmerr/thermoboard"
	"github.com/jpalmerr/thermoboard/config"
)

const (
	shutdownTimeout = 10 * time.Second
)

// serveCmd starts the web dashboard.
var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the dashboard server",
	Long: `Start the ThermoBoard dashboard server.

The server will:
  - Load configuration from the specified YAML file
  - Start polling the configured device
  - Serve the dashboard UI, JSON API and /metrics on the configured port

The server runs until interrupted (Ctrl+C) or receives SIGTERM.

Example:
  thermoboard serve -c config.yaml
  thermoboard serve -c config.yaml --address 192.168.1.40`,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)
	addConfigFlags(serveCmd)
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	logger := cfg.NewLogger(os.Stderr)

	logger.Info("config loaded",
		"device", cfg.Device.Address,
		"mqtt", cfg.Sinks.MQTT != nil,
		"kafka", cfg.Sinks.Kafka != nil,
	)
	logger.Info("starting server",
		"port", cfg.Port,
		"poll_interval", cfg.PollInterval.Duration().String(),
	)

	b, err := thermoboard.New(cfg.Options(logger)...)
	if err != nil {
		return fmt.Errorf("failed to create board: %w", err)
	}

	// set up context with signal handling - cancel on SIGINT/SIGTERM
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	errChan := make(chan error, 1)
	go func() {
		errChan <- b.Start(ctx)
	}()

	select {
	case err := <-errChan:
		if err != nil {
			return fmt.Errorf("server error: %w", err)
		}
		logger.Info("shutdown complete")
		return nil

	case <-ctx.Done():
		// signal received, wait for graceful shutdown with timeout
		select {
		case err := <-errChan:
			if err != nil {
				return fmt.Errorf("server error: %w", err)
			}
			logger.Info("shutdown complete")
			return nil
		case <-time.After(shutdownTimeout):
			logger.Warn("shutdown timed out",
				"timeout", shutdownTimeout.String(),
				"action", "forcing exit",
			)
			return nil
		}
	}
}

// loadConfig loads the file named by --config, applying --address.
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	configFile, _ := cmd.Flags().GetString("config")
	address, _ := cmd.Flags().GetString("address")
	return config.Load(configFile, config.WithAddress(address))
}
