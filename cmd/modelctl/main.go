package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"FinScore/internal/di"
	"FinScore/pkg/config"
)

var configPath string

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := rootCmd().ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func rootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:           "modelctl",
		Short:         "Offline training and inspection of FinScore models",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	cmd.PersistentFlags().StringVar(&configPath, "config", "config/config.yaml", "config file path")

	cmd.AddCommand(trainCmd(), trainDecisionCmd(), inspectCmd())
	return cmd
}

// initTooling loads config and wires the offline graph. Callers must Close the result.
func initTooling() (*di.Tooling, error) {
	cfg, err := config.LoadWithEnv(configPath)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	t, err := di.InitializeTooling(cfg)
	if err != nil {
		return nil, fmt.Errorf("initialize: %w", err)
	}
	return t, nil
}
