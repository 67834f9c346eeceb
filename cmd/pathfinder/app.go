package main

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/haasonsaas/pathfinder/internal/agent"
	"github.com/haasonsaas/pathfinder/internal/agent/routing"
	"github.com/haasonsaas/pathfinder/internal/backend"
	"github.com/haasonsaas/pathfinder/internal/config"
	"github.com/haasonsaas/pathfinder/internal/observability"
	"github.com/haasonsaas/pathfinder/internal/orchestrator"
	"github.com/haasonsaas/pathfinder/internal/tools/weather"
	"github.com/haasonsaas/pathfinder/internal/tools/websearch"
)

// app holds the wired components shared by serve, ask and models.
type app struct {
	cfg      *config.Config
	logger   *observability.Logger
	metrics  *observability.Metrics
	tracer   *observability.Tracer
	gatherer prometheus.Gatherer
	registry *backend.Registry
	manager  *orchestrator.Manager

	closers []func(context.Context) error
}

// loadConfig reads path, or returns the built-in defaults when path is empty.
func loadConfig(path string) (*config.Config, error) {
	if path == "" {
		return config.Default(), nil
	}
	cfg, err := config.Load(path)
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	return cfg, nil
}

func newLogger(cfg *config.Config, out io.Writer, debug bool) *observability.Logger {
	level := cfg.Logging.Level
	if debug {
		level = "debug"
	}
	return observability.NewLogger(observability.LogConfig{
		Level:          level,
		Format:         cfg.Logging.Format,
		Output:         out,
		AddSource:      cfg.Logging.AddSource,
		RedactPatterns: cfg.Logging.RedactPatterns,
	})
}

// buildApp wires backends, registry, tools, agent and fallback chain. On
// error everything opened so far is closed again.
func buildApp(ctx context.Context, cfg *config.Config, logger *observability.Logger) (_ *app, err error) {
	a := &app{cfg: cfg, logger: logger}
	defer func() {
		if err != nil {
			_ = a.Close(context.WithoutCancel(ctx))
		}
	}()

	if !cfg.Observability.Metrics.Disabled {
		promReg := prometheus.NewRegistry()
		promReg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
		a.metrics = observability.NewMetrics(promReg)
		a.gatherer = promReg
	}

	if tc := cfg.Observability.Tracing; tc.Enabled {
		tracer, shutdown := observability.NewTracer(observability.TraceConfig{
			ServiceName:    tc.ServiceName,
			ServiceVersion: firstNonEmpty(tc.ServiceVersion, version),
			Environment:    tc.Environment,
			Endpoint:       tc.Endpoint,
			SamplingRate:   tc.SamplingRate,
			Attributes:     tc.Attributes,
			Insecure:       tc.Insecure,
		})
		a.tracer = tracer
		a.closers = append(a.closers, shutdown)
	}

	slogger := logger.Slog()
	backends, err := backend.FromConfigs(ctx, cfg.Backends, backend.FactoryOptions{
		Metrics: a.metrics,
		Tracer:  a.tracer,
		Logger:  slogger,
	})
	if err != nil {
		return nil, err
	}
	registry, err := backend.NewRegistry(ctx, backends, backend.RegistryOptions{
		ProbeWithCompletion: cfg.Registry.ProbeWithCompletion,
		MinProbeInterval:    cfg.Registry.MinProbeInterval,
		ProbeTimeout:        cfg.Registry.ProbeTimeout,
		Logger:              slogger,
	})
	if err != nil {
		return nil, err
	}
	a.registry = registry

	search := websearch.FromConfig(cfg.Search, websearch.SourceOptions{Logger: slogger}).
		WithObservability(a.metrics, a.tracer, slogger)
	weatherClient := weather.NewClient(weather.Config{
		BaseURL:     cfg.Weather.BaseURL,
		DefaultCity: cfg.Weather.DefaultCity,
		Lang:        cfg.Weather.Lang,
		Timeout:     cfg.Weather.Timeout,
	})

	tools := agent.NewToolRegistry()
	if err = tools.Register(websearch.NewWebSearchTool(search)); err != nil {
		return nil, err
	}
	if cfg.Search.FetchEnabled() {
		fetch := websearch.NewWebFetchTool(websearch.FetchConfig{
			MaxChars: cfg.Search.Fetch.MaxChars,
			Timeout:  cfg.Search.Timeout,
		})
		if err = tools.Register(fetch); err != nil {
			return nil, err
		}
	}
	if err = tools.Register(weather.NewTool(weatherClient)); err != nil {
		return nil, err
	}

	toolExec := agent.NewToolExecutor(tools, agent.ToolExecConfig{Timeout: cfg.Agent.ToolTimeout}).
		WithObservability(a.metrics, a.tracer, slogger)
	execOpts := []agent.ExecutorOption{
		agent.WithLogger(slogger),
		agent.WithMetrics(a.metrics),
		agent.WithTracer(a.tracer),
	}
	if cfg.Agent.TraceFile != "" {
		traces, terr := agent.NewJSONLTraceFile(cfg.Agent.TraceFile, agent.WithAppVersion(version))
		if terr != nil {
			return nil, terr
		}
		execOpts = append(execOpts, agent.WithTraceWriter(traces))
		a.closers = append(a.closers, func(context.Context) error { return traces.Close() })
	}
	executor := agent.NewExecutor(toolExec, agent.LoopConfig{
		MaxIterations:    cfg.Agent.MaxIterations,
		MaxDuration:      cfg.Agent.MaxDuration,
		MaxParseRetries:  cfg.Agent.MaxParseRetries,
		ToolTimeout:      cfg.Agent.ToolTimeout,
		ObservationLimit: cfg.Agent.ObservationLimit,
		Language:         agent.ParseLanguage(cfg.Language),
	}, execOpts...)

	manager, err := orchestrator.NewManager(orchestrator.Options{
		Registry: registry,
		Router:   routing.NewRouter(routing.ConfigFrom(cfg), registry),
		Executor: executor,
		Search:   search,
		Weather:  weatherClient,
		Language: cfg.Language,
		Metrics:  a.metrics,
		Tracer:   a.tracer,
		Logger:   logger,
	})
	if err != nil {
		return nil, err
	}
	a.manager = manager
	return a, nil
}

// Close stops the refresher and flushes tracing and trace files.
func (a *app) Close(ctx context.Context) error {
	if a.registry != nil {
		a.registry.Stop()
	}
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](ctx); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
