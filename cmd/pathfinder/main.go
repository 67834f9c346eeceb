// Package main provides the CLI entry point for Pathfinder, a query
// orchestrator that answers questions with local or cloud LLM backends,
// web search and a bounded tool-using agent.
//
// # Basic Usage
//
// Start the HTTP server:
//
//	pathfinder serve --config pathfinder.yaml
//
// Ask a single question:
//
//	pathfinder ask "¿Cuál es el precio actual del Bitcoin?"
//
// List backends and their availability:
//
//	pathfinder models
//
// # Environment Variables
//
//   - PATHFINDER_CONFIG: path to the configuration file
//   - GOOGLE_API_KEY: enables the Gemini backend in the built-in defaults
package main

import (
	"log/slog"
	"os"

	"github.com/spf13/cobra"
)

// Build information, populated by ldflags:
//
//	go build -ldflags "-X main.version=v1.0.0 -X main.commit=$(git rev-parse HEAD) -X main.date=$(date -u +%Y-%m-%dT%H:%M:%SZ)"
var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

func main() {
	slog.SetDefault(slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	})))

	if err := buildRootCmd().Execute(); err != nil {
		slog.Error("command execution failed", "error", err)
		os.Exit(1)
	}
}

// buildRootCmd creates the root command with all subcommands attached.
func buildRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "pathfinder",
		Short: "Pathfinder - LLM query orchestrator",
		Long: `Pathfinder routes questions to the best available model backend and
answers them directly, through web search, a weather lookup, or a bounded
tool-using agent, degrading gracefully when anything fails.

Supported backends: Ollama, Anthropic, OpenAI, OpenRouter, Google Gemini, AWS Bedrock`,
		Version:      version + " (commit: " + commit + ", built: " + date + ")",
		SilenceUsage: true,
	}

	rootCmd.AddCommand(
		buildServeCmd(),
		buildAskCmd(),
		buildModelsCmd(),
		buildConfigCmd(),
	)
	return rootCmd
}
