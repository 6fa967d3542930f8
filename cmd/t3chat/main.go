package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/HamdiBarkous/t3-chat-clone-sub000/internal/config"
)

// Version information (set via ldflags)
var (
	version   = "dev"
	commit    = "none"
	buildDate = "unknown"
)

var cfg *config.Config

func main() {
	rootCmd := &cobra.Command{
		Use:   "t3chat",
		Short: "t3chat - streaming AI chat client",
		Long: `t3chat is a terminal client for a streaming AI chat backend.
It streams responses token by token, shows tool executions as they
happen, and keeps the conversation view consistent across retries
and connection failures.`,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			var err error
			cfg, err = config.Load()
			if err != nil {
				return fmt.Errorf("failed to load config: %w", err)
			}
			return nil
		},
	}

	rootCmd.AddCommand(
		chatCmd(),
		historyCmd(),
		conversationsCmd(),
		sendCmd(),
		configCmd(),
		demoServerCmd(),
		versionCmd(),
	)

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// configCmd shows current configuration
func configCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "config",
		Short: "Show current configuration",
		RunE: func(cmd *cobra.Command, args []string) error {
			fmt.Println("Current configuration:")
			fmt.Println()

			fmt.Println("API:")
			fmt.Printf("  Base URL:   %s\n", cfg.API.BaseURL)
			fmt.Printf("  Timeout:    %ds\n", cfg.API.TimeoutSeconds)
			fmt.Printf("  Msgpack:    %v\n", cfg.API.UseMsgpack)
			fmt.Printf("  Auth Token: %s\n", maskSecret(cfg.API.AuthToken))
			fmt.Println()

			fmt.Println("Chat:")
			fmt.Printf("  Default Model:  %s\n", cfg.Chat.DefaultModel)
			fmt.Printf("  Flush Interval: %dms\n", cfg.Chat.FlushIntervalMs)
			fmt.Printf("  History Limit:  %d\n", cfg.Chat.HistoryLimit)
			fmt.Println()

			fmt.Println("Upload:")
			fmt.Printf("  Max Concurrent: %d\n", cfg.Upload.MaxConcurrent)
			fmt.Println()

			fmt.Println("Telemetry:")
			fmt.Printf("  Tracing: %v\n", cfg.Telemetry.TracingEnabled)

			return nil
		},
	}
}

func versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Show version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("t3chat %s (commit %s, built %s)\n", version, commit, buildDate)
		},
	}
}

func maskSecret(s string) string {
	if s == "" {
		return "(not set)"
	}
	if len(s) <= 8 {
		return "****"
	}
	return s[:4] + "****" + s[len(s)-4:]
}
