// Package main is the entry point for the thermoboard CLI.
//
// ThermoBoard can be run either as a library (SDK) or as a standalone binary
// with YAML configuration. This CLI provides the standalone binary approach.
//
// Usage:
//
//	thermoboard serve -c config.yaml    # Start the web dashboard
//	thermoboard watch -c config.yaml    # Start the terminal dashboard
//	thermoboard validate -c config.yaml # Validate configuration
//	thermoboard version                 # Show version info
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

// Version information - set at build time via ldflags.
// Example: go build -ldflags "-X main.version=1.0.0"
var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

// rootCmd is the base command when called without subcommands.
var rootCmd = &cobra.Command{
	Use:   "thermoboard",
	Short: "A live dashboard for a networked temperature sensor",
	Long: `ThermoBoard is a live dashboard for a single networked temperature sensor.

It polls the device's /api/temperature endpoint at a fixed interval and
shows the current reading, a history chart and connection errors in a web
UI (with Server-Sent Events and WebSocket updates) or in the terminal.

Quick start:
  1. Create a config file (thermoboard.yaml)
  2. Run: thermoboard serve -c thermoboard.yaml
  3. Open http://localhost:8080 in your browser

Example config:
  port: 8080
  poll_interval: 5s
  history_size: 20
  device:
    address: 172.20.10.2`,
}

// Execute runs the root command.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		// Cobra already prints the error, just exit with code 1
		os.Exit(1)
	}
}

func main() {
	Execute()
}

// versionCmd prints version information.
var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Long:  `Print the version, commit hash, and build date of this thermoboard binary.`,
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("thermoboard %s\n", version)
		fmt.Printf("  commit: %s\n", commit)
		fmt.Printf("  built:  %s\n", date)
	},
}

func init() {
	rootCmd.AddCommand(versionCmd)
}

// addConfigFlags registers the flags shared by serve, watch and validate.
func addConfigFlags(cmd *cobra.Command) {
	cmd.Flags().StringP("config", "c", "", "path to config file (required)")
	cmd.Flags().String("address", "", "device address, overrides device.address in the config file")
	_ = cmd.MarkFlagRequired("config")
}
