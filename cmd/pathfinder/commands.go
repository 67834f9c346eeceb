package main

import (
	"os"
	"strings"

	"github.com/spf13/cobra"
)

const envConfig = "PATHFINDER_CONFIG"

// resolveConfigPath prefers the flag, then PATHFINDER_CONFIG. An empty
// result selects the built-in defaults.
func resolveConfigPath(path string) string {
	if p := strings.TrimSpace(path); p != "" {
		return p
	}
	return strings.TrimSpace(os.Getenv(envConfig))
}

// =============================================================================
// Serve Command
// =============================================================================

func buildServeCmd() *cobra.Command {
	var (
		configPath string
		debug      bool
	)

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP server",
		Long: `Start the Pathfinder HTTP server.

The server will:
1. Load configuration from the given file (or the built-in defaults)
2. Probe every configured backend and start the periodic refresher
3. Register the web_search, web_fetch and weather tools
4. Serve /chat, /busqueda-rapida, /ejemplo-agente, /agente-general,
   /models, /healthz and the metrics endpoint

Graceful shutdown is handled on SIGINT/SIGTERM signals.`,
		Example: `  # Start with the built-in defaults (local Ollama llama3)
  pathfinder serve

  # Start with a config file and debug logging
  pathfinder serve --config /etc/pathfinder/production.yaml --debug`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd.Context(), resolveConfigPath(configPath), debug)
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", "", "Path to YAML configuration file")
	cmd.Flags().BoolVarP(&debug, "debug", "d", false, "Enable debug logging")
	return cmd
}

// =============================================================================
// Ask Command
// =============================================================================

type askOptions struct {
	configPath string
	mode       string
	backend    string
	noInternet bool
	jsonOut    bool
	debug      bool
}

func buildAskCmd() *cobra.Command {
	var opts askOptions

	cmd := &cobra.Command{
		Use:   "ask <question>",
		Short: "Answer one question and exit",
		Example: `  pathfinder ask "¿Qué tiempo hace en Madrid?"
  pathfinder ask --mode agent --backend gemini "¿Quién ganó el último mundial?"
  pathfinder ask --json "qué es Java" | jq .degraded`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			opts.configPath = resolveConfigPath(opts.configPath)
			return runAsk(cmd, strings.Join(args, " "), opts)
		},
	}

	cmd.Flags().StringVarP(&opts.configPath, "config", "c", "", "Path to YAML configuration file")
	cmd.Flags().StringVarP(&opts.mode, "mode", "m", "", "Dispatch mode: agent, search, simple or auto")
	cmd.Flags().StringVarP(&opts.backend, "backend", "b", "", "Backend id to request")
	cmd.Flags().BoolVar(&opts.noInternet, "no-internet", false, "Disallow web access")
	cmd.Flags().BoolVar(&opts.jsonOut, "json", false, "Print the full response envelope as JSON")
	cmd.Flags().BoolVarP(&opts.debug, "debug", "d", false, "Enable debug logging")
	return cmd
}

// =============================================================================
// Models Command
// =============================================================================

func buildModelsCmd() *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:   "models",
		Short: "Probe and list configured backends",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runModels(cmd, resolveConfigPath(configPath))
		},
	}
	cmd.Flags().StringVarP(&configPath, "config", "c", "", "Path to YAML configuration file")
	return cmd
}

// =============================================================================
// Config Commands
// =============================================================================

func buildConfigCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Inspect configuration",
	}
	cmd.AddCommand(buildConfigSchemaCmd(), buildConfigValidateCmd())
	return cmd
}

func buildConfigSchemaCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "schema",
		Short: "Print the configuration JSON Schema",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runConfigSchema(cmd)
		},
	}
}

func buildConfigValidateCmd() *cobra.Command {
	var configPath string
	cmd := &cobra.Command{
		Use:   "validate",
		Short: "Load and validate a configuration file",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runConfigValidate(cmd, resolveConfigPath(configPath))
		},
	}
	cmd.Flags().StringVarP(&configPath, "config", "c", "", "Path to YAML configuration file")
	return cmd
}
