package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/jpalmerr/thermoboard/internal/device"
)

// validateCmd validates a config file without starting the server.
var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Validate a config file",
	Long: `Validate a ThermoBoard configuration file without starting the server.

This command parses the YAML, expands environment variables, and validates
all fields. It's useful for CI/CD pipelines or pre-deployment checks.

Exit codes:
  0 - Config is valid
  1 - Config is invalid (error details printed to stderr)

Example:
  thermoboard validate -c config.yaml
  thermoboard validate --config /etc/thermoboard/config.yaml`,
	RunE: runValidate,
}

func init() {
	rootCmd.AddCommand(validateCmd)
	addConfigFlags(validateCmd)
}

func runValidate(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}

	endpoint, err := device.EndpointURL(cfg.Device.Address)
	if err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}

	sinks := "none"
	switch {
	case cfg.Sinks.MQTT != nil && cfg.Sinks.Kafka != nil:
		sinks = "mqtt, kafka"
	case cfg.Sinks.MQTT != nil:
		sinks = "mqtt"
	case cfg.Sinks.Kafka != nil:
		sinks = "kafka"
	}

	fmt.Printf("Config is valid!\n")
	fmt.Printf("  Device:        %s\n", endpoint)
	fmt.Printf("  Port:          %d\n", cfg.Port)
	fmt.Printf("  Poll interval: %s\n", cfg.PollInterval.Duration())
	fmt.Printf("  History size:  %d\n", cfg.HistorySize)
	fmt.Printf("  Sinks:         %s\n", sinks)

	return nil
}
