package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/jpalmerr/thermoboard"
)

// watchCmd runs the terminal dashboard.
var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Show the dashboard in the terminal",
	Long: `Poll the configured device and show the dashboard in the terminal.

Keys:
  r  refresh now
  q  quit

Logs would corrupt the display, so they are discarded unless --log-file
is given.

Example:
  thermoboard watch -c config.yaml
  thermoboard watch -c config.yaml --log-file thermoboard.log`,
	RunE: runWatch,
}

func init() {
	rootCmd.AddCommand(watchCmd)
	addConfigFlags(watchCmd)
	watchCmd.Flags().String("log-file", "", "append logs to this file")
}

func runWatch(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	var logOut io.Writer = io.Discard
	if path, _ := cmd.Flags().GetString("log-file"); path != "" {
		f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			return fmt.Errorf("failed to open log file: %w", err)
		}
		defer func() { _ = f.Close() }()
		logOut = f
	}
	logger := cfg.NewLogger(logOut)

	b, err := thermoboard.New(cfg.Options(logger)...)
	if err != nil {
		return fmt.Errorf("failed to create board: %w", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := b.Watch(ctx); err != nil {
		return fmt.Errorf("terminal dashboard error: %w", err)
	}
	return nil
}
