package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/haasonsaas/pathfinder/internal/config"
	"github.com/haasonsaas/pathfinder/internal/server"
	"github.com/haasonsaas/pathfinder/pkg/models"
)

// =============================================================================
// Serve Command Handler
// =============================================================================

// runServe loads configuration, wires the orchestrator and serves HTTP until
// SIGINT or SIGTERM.
func runServe(ctx context.Context, configPath string, debug bool) error {
	cfg, err := loadConfig(configPath)
	if err != nil {
		return err
	}
	logger := newLogger(cfg, os.Stderr, debug)
	logger.Info(ctx, "starting pathfinder",
		"version", version,
		"commit", commit,
		"config", configPath,
		"debug", debug,
	)

	a, err := buildApp(ctx, cfg, logger)
	if err != nil {
		return fmt.Errorf("failed to initialize: %w", err)
	}
	defer func() {
		closeCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := a.Close(closeCtx); err != nil {
			logger.Warn(ctx, "shutdown cleanup failed", "error", err)
		}
	}()
	if err := a.registry.StartRefresher(cfg.Registry.RefreshSchedule); err != nil {
		return err
	}

	srv, err := server.New(server.Config{
		Server:      cfg.Server,
		MetricsPath: cfg.Observability.Metrics.Path,
		Manager:     a.manager,
		Metrics:     a.metrics,
		Gatherer:    a.gatherer,
		Logger:      logger,
	})
	if err != nil {
		return err
	}

	ctx, cancel := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	// In-flight requests must survive the signal so Shutdown can drain them.
	if err := srv.Start(context.WithoutCancel(ctx)); err != nil {
		return err
	}
	logger.Info(ctx, "pathfinder started",
		"addr", srv.Addr(),
		"backends_available", len(a.registry.ListAvailable()),
	)

	<-ctx.Done()
	logger.Info(context.Background(), "shutdown signal received, initiating graceful shutdown")

	if err := srv.Shutdown(context.Background()); err != nil {
		return fmt.Errorf("shutdown failed: %w", err)
	}
	logger.Info(context.Background(), "pathfinder stopped gracefully")
	return nil
}

// =============================================================================
// Ask Command Handler
// =============================================================================

func runAsk(cmd *cobra.Command, question string, opts askOptions) error {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	cfg, err := loadConfig(opts.configPath)
	if err != nil {
		return err
	}
	// Log lines would interleave with the answer on stdout.
	logger := newLogger(cfg, cmd.ErrOrStderr(), opts.debug)

	a, err := buildApp(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer a.Close(context.Background())

	env := a.manager.Resolve(ctx, models.Query{
		Text:            strings.TrimSpace(question),
		Mode:            models.ParseMode(opts.mode),
		BackendID:       strings.TrimSpace(opts.backend),
		InternetAllowed: !opts.noInternet,
	})

	out := cmd.OutOrStdout()
	if opts.jsonOut || !isTerminal(out) {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(env)
	}
	printEnvelope(out, env)
	return nil
}

func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	return ok && term.IsTerminal(int(f.Fd()))
}

func printEnvelope(out io.Writer, env models.ResponseEnvelope) {
	fmt.Fprintln(out, env.Text)
	fmt.Fprintln(out)
	fmt.Fprintf(out, "path: %s", env.DispatchPathUsed)
	if env.DispatchPathClassified != env.DispatchPathUsed {
		fmt.Fprintf(out, " (classified %s)", env.DispatchPathClassified)
	}
	fmt.Fprintf(out, "  backend: %s", firstNonEmpty(env.BackendUsed, "-"))
	if env.BackendSubstituted {
		fmt.Fprintf(out, " (requested %s)", env.BackendRequested)
	}
	fmt.Fprintf(out, "  %dms\n", env.Timing.DurationMs)
	if env.Degraded {
		fmt.Fprintf(out, "degraded: %s\n", env.DegradeReason)
	}
	if env.Trace != nil {
		for i, st := range env.Trace.Steps {
			fmt.Fprintf(out, "  %d. %s(%s)\n", i+1, st.Tool, st.Input)
		}
	}
}

// =============================================================================
// Models Command Handler
// =============================================================================

func runModels(cmd *cobra.Command, configPath string) error {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	cfg, err := loadConfig(configPath)
	if err != nil {
		return err
	}
	a, err := buildApp(ctx, cfg, newLogger(cfg, io.Discard, false))
	if err != nil {
		return err
	}
	defer a.Close(context.Background())

	w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 2, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tKIND\tMODEL\tLOCALITY\tAVAILABLE")
	for _, b := range a.registry.All() {
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%t\n", b.ID, b.Kind, b.Model, b.Locality(), b.Available())
	}
	return w.Flush()
}

// =============================================================================
// Config Command Handlers
// =============================================================================

func runConfigSchema(cmd *cobra.Command) error {
	schema, err := config.JSONSchema()
	if err != nil {
		return err
	}
	out := cmd.OutOrStdout()
	if _, err := out.Write(schema); err != nil {
		return err
	}
	_, err = fmt.Fprintln(out)
	return err
}

func runConfigValidate(cmd *cobra.Command, configPath string) error {
	if configPath == "" {
		return fmt.Errorf("--config or %s is required", envConfig)
	}
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "%s: ok (version %d, %d backends)\n", configPath, cfg.Version, len(cfg.Backends))
	return nil
}
