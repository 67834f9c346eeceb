package config

import (
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestLoadRejectsUnknownFields(t *testing.T) {
	path := writeConfig(t, `
version: 1
server:
  host: 0.0.0.0
  extra: true
backends:
  - id: llama3
    kind: ollama
    model: llama3
`)

	if _, err := Load(path); err == nil {
		t.Fatalf("expected error for unknown field")
	}
}

func TestLoadRequiresVersion(t *testing.T) {
	path := writeConfig(t, `
backends:
  - kind: ollama
    model: llama3
`)

	_, err := Load(path)
	var ve *VersionError
	if !errors.As(err, &ve) {
		t.Fatalf("expected *VersionError, got %v", err)
	}
}

func TestLoadAppliesDefaults(t *testing.T) {
	path := writeConfig(t, `
version: 1
backends:
  - kind: ollama
    model: llama3
  - id: gemini
    kind: google
    model: gemini-2.0-flash
    api_key: k
    temperature: 0.2
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("expected config to load, got %v", err)
	}
	if cfg.Language != "es" || cfg.Server.Port != 5000 {
		t.Errorf("language=%q port=%d", cfg.Language, cfg.Server.Port)
	}
	local := cfg.Backends[0]
	if local.ID != "ollama:llama3" {
		t.Errorf("derived id = %q", local.ID)
	}
	if *local.Temperature != 0.7 || local.MaxTokens != 1000 || local.Timeout != 60*time.Second || local.MaxRetries != 2 {
		t.Errorf("backend defaults = %+v", local)
	}
	if *cfg.Backends[1].Temperature != 0.2 {
		t.Errorf("explicit temperature overwritten: %v", *cfg.Backends[1].Temperature)
	}
	if cfg.Agent.MaxIterations != 3 || cfg.Agent.ObservationLimit != 2000 {
		t.Errorf("agent defaults = %+v", cfg.Agent)
	}
	if cfg.Search.MaxVariants != 3 || cfg.Search.MinResultLength != 50 || cfg.Search.CacheTTL != 5*time.Minute {
		t.Errorf("search defaults = %+v", cfg.Search)
	}
	if !cfg.Search.FetchEnabled() {
		t.Error("web_fetch should default to enabled")
	}
	if cfg.Weather.Lang != "es" || cfg.Weather.DefaultCity != "Quito" {
		t.Errorf("weather defaults = %+v", cfg.Weather)
	}
	if cfg.Registry.RefreshSchedule != "@every 1m" {
		t.Errorf("refresh schedule = %q", cfg.Registry.RefreshSchedule)
	}
}

func TestLoadValidation(t *testing.T) {
	tests := []struct {
		name string
		body string
		want string
	}{
		{
			name: "no backends",
			body: "version: 1\n",
			want: "at least one backend",
		},
		{
			name: "duplicate ids",
			body: `
version: 1
backends:
  - {id: a, kind: ollama}
  - {id: a, kind: openai, api_key: k}
`,
			want: "duplicate id",
		},
		{
			name: "unknown default backend",
			body: `
version: 1
default_backend: missing
backends:
  - {id: a, kind: ollama}
`,
			want: "default_backend",
		},
		{
			name: "rule target",
			body: `
version: 1
backends:
  - {id: a, kind: ollama}
routing:
  rules:
    - name: code
      match: {tags: [code]}
      backend: b
`,
			want: "routing.rules[0]",
		},
		{
			name: "unknown tag",
			body: `
version: 1
backends:
  - {id: a, kind: ollama}
routing:
  rules:
    - match: {tags: [poetry]}
      backend: a
`,
			want: "unknown tag",
		},
		{
			name: "language",
			body: `
version: 1
language: fr
backends:
  - {id: a, kind: ollama}
`,
			want: "language",
		},
		{
			name: "search source",
			body: `
version: 1
backends:
  - {id: a, kind: ollama}
search:
  sources: [bing]
`,
			want: "unknown source",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load(writeConfig(t, tt.body))
			if err == nil {
				t.Fatalf("expected validation error")
			}
			if !strings.Contains(err.Error(), tt.want) {
				t.Fatalf("expected %q in error, got %v", tt.want, err)
			}
		})
	}
}

func TestLoadExpandsEnv(t *testing.T) {
	t.Setenv("PATHFINDER_TEST_KEY", "sk-from-env")
	path := writeConfig(t, `
version: 1
backends:
  - id: gpt
    kind: openai
    api_key: ${PATHFINDER_TEST_KEY}
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Backends[0].APIKey != "sk-from-env" {
		t.Errorf("api key = %q", cfg.Backends[0].APIKey)
	}
}

func TestLoadEnvFallback(t *testing.T) {
	t.Setenv("PATHFINDER_TEST_HOST", "")
	path := writeConfig(t, `
version: 1
server:
  host: ${PATHFINDER_TEST_HOST:-127.0.0.1}
backends:
  - id: llama3
    kind: ollama
    base_url: ${PATHFINDER_TEST_OLLAMA:-http://localhost:11434}
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Server.Host != "127.0.0.1" {
		t.Errorf("host = %q", cfg.Server.Host)
	}
	if cfg.Backends[0].BaseURL != "http://localhost:11434" {
		t.Errorf("base url = %q", cfg.Backends[0].BaseURL)
	}
}

func TestLoadConcatenatesIncludedBackends(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "local.yaml"), []byte("backends:\n  - id: llama3\n    kind: ollama\n"), 0o600); err != nil {
		t.Fatal(err)
	}
	main := filepath.Join(dir, "pathfinder.yaml")
	if err := os.WriteFile(main, []byte("version: 1\n$include: [local.yaml]\nbackends:\n  - id: gemini\n    kind: google\n"), 0o600); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(main)
	if err != nil {
		t.Fatal(err)
	}
	if len(cfg.Backends) != 2 || cfg.Backends[0].ID != "llama3" || cfg.Backends[1].ID != "gemini" {
		t.Fatalf("backends = %+v", cfg.Backends)
	}
}

func TestLoadResolvesIncludes(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "backends.json5"), []byte(`{
  // shared backend list
  backends: [{id: "llama3", kind: "ollama", model: "llama3"}],
}`), 0o600); err != nil {
		t.Fatal(err)
	}
	main := filepath.Join(dir, "pathfinder.yaml")
	if err := os.WriteFile(main, []byte(`
version: 1
$include: backends.json5
agent:
  max_iterations: 5
`), 0o600); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(main)
	if err != nil {
		t.Fatal(err)
	}
	if len(cfg.Backends) != 1 || cfg.Backends[0].ID != "llama3" {
		t.Errorf("backends = %+v", cfg.Backends)
	}
	if cfg.Agent.MaxIterations != 5 {
		t.Errorf("max iterations = %d", cfg.Agent.MaxIterations)
	}
}

func TestLoadDetectsIncludeCycle(t *testing.T) {
	dir := t.TempDir()
	a := filepath.Join(dir, "a.yaml")
	b := filepath.Join(dir, "b.yaml")
	_ = os.WriteFile(a, []byte("$include: b.yaml\nversion: 1\n"), 0o600)
	_ = os.WriteFile(b, []byte("$include: a.yaml\n"), 0o600)

	_, err := Load(a)
	if err == nil || !strings.Contains(err.Error(), "cycle") {
		t.Fatalf("expected include cycle error, got %v", err)
	}
}

func TestDefault(t *testing.T) {
	t.Setenv("GOOGLE_API_KEY", "")
	cfg := Default()
	if len(cfg.Backends) != 1 || cfg.Backends[0].Kind != "ollama" {
		t.Fatalf("backends = %+v", cfg.Backends)
	}
	if err := validate(cfg); err != nil {
		t.Fatalf("default config invalid: %v", err)
	}

	t.Setenv("GOOGLE_API_KEY", "k")
	if cfg := Default(); len(cfg.Backends) != 2 || cfg.Backends[1].Kind != "google" {
		t.Fatalf("backends with key = %+v", cfg.Backends)
	}
}

func TestJSONSchema(t *testing.T) {
	data, err := JSONSchema()
	if err != nil {
		t.Fatal(err)
	}
	var doc map[string]any
	if err := json.Unmarshal(data, &doc); err != nil {
		t.Fatalf("schema is not JSON: %v", err)
	}
	if doc["title"] != "Pathfinder configuration" {
		t.Errorf("title = %v", doc["title"])
	}
	if !strings.Contains(string(data), "Go duration") {
		t.Error("durations are not described as strings")
	}
	for _, field := range []string{"backends", "default_backend", "max_iterations", "no_result_phrases"} {
		if !strings.Contains(string(data), `"`+field+`"`) {
			t.Errorf("schema missing %s", field)
		}
	}
}

func writeConfig(t *testing.T, contents string) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "pathfinder.yaml")
	if err := os.WriteFile(path, []byte(contents), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}
