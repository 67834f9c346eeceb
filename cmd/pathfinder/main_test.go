package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"go.opentelemetry.io/otel"

	"github.com/haasonsaas/pathfinder/internal/backend"
	"github.com/haasonsaas/pathfinder/internal/config"
)

func TestBuildRootCmdIncludesSubcommands(t *testing.T) {
	cmd := buildRootCmd()
	names := map[string]bool{}
	for _, sub := range cmd.Commands() {
		names[sub.Name()] = true
	}
	for _, name := range []string{"serve", "ask", "models", "config"} {
		if !names[name] {
			t.Fatalf("expected subcommand %q to be registered", name)
		}
	}
}

func TestResolveConfigPath(t *testing.T) {
	t.Setenv(envConfig, "/etc/pathfinder.yaml")
	if got := resolveConfigPath(" custom.yaml "); got != "custom.yaml" {
		t.Fatalf("flag path = %q", got)
	}
	if got := resolveConfigPath(""); got != "/etc/pathfinder.yaml" {
		t.Fatalf("env path = %q", got)
	}
	t.Setenv(envConfig, "")
	if got := resolveConfigPath(""); got != "" {
		t.Fatalf("default path = %q", got)
	}
}

func TestConfigSchemaCommand(t *testing.T) {
	cmd := buildRootCmd()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetArgs([]string{"config", "schema"})
	if err := cmd.Execute(); err != nil {
		t.Fatal(err)
	}
	var schema map[string]any
	if err := json.Unmarshal(out.Bytes(), &schema); err != nil {
		t.Fatalf("schema is not JSON: %v", err)
	}
	if !strings.Contains(out.String(), "default_backend") {
		t.Fatal("schema missing default_backend")
	}
}

func TestConfigValidateCommand(t *testing.T) {
	path := filepath.Join(t.TempDir(), "pathfinder.yaml")
	content := "version: 1\nbackends:\n  - id: llama3\n    kind: ollama\n    model: llama3\n"
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatal(err)
	}

	cmd := buildRootCmd()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetArgs([]string{"config", "validate", "--config", path})
	if err := cmd.Execute(); err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(out.String(), "ok (version 1, 1 backends)") {
		t.Fatalf("output = %q", out.String())
	}
}

func TestConfigValidateRequiresPath(t *testing.T) {
	t.Setenv(envConfig, "")
	cmd := buildRootCmd()
	cmd.SetOut(&bytes.Buffer{})
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetArgs([]string{"config", "validate"})
	if err := cmd.Execute(); err == nil {
		t.Fatal("expected error without a config path")
	}
}

func TestBuildAppShutsDownTracerOnError(t *testing.T) {
	prev := otel.GetTracerProvider()
	t.Cleanup(func() { otel.SetTracerProvider(prev) })

	cfg := config.Default()
	cfg.Observability.Metrics.Disabled = true
	cfg.Observability.Tracing = config.TracingConfig{
		Enabled:      true,
		Endpoint:     "127.0.0.1:1",
		Insecure:     true,
		SamplingRate: 1,
	}
	// A cloud backend without a key never passes its probe.
	cfg.Backends = []config.BackendConfig{{ID: "claude", Kind: "anthropic"}}

	a, err := buildApp(context.Background(), cfg, newLogger(cfg, io.Discard, false))
	if !errors.Is(err, backend.ErrNoBackendsConfigured) {
		t.Fatalf("err = %v, want ErrNoBackendsConfigured", err)
	}
	if a != nil {
		t.Fatal("expected nil app on error")
	}
	_, span := otel.Tracer("test").Start(context.Background(), "after-failure")
	defer span.End()
	if span.IsRecording() {
		t.Fatal("tracer provider still recording after failed build")
	}
}
