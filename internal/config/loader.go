package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	json5 "github.com/yosuke-furukawa/json5/encoding/json5"
	"gopkg.in/yaml.v3"
)

// includeKey names files merged underneath the including file. Later
// includes override earlier ones and the including file overrides all.
const includeKey = "$include"

// LoadRaw reads path into a raw map with environment references expanded
// and $include directives resolved. Files ending in .json or .json5 are
// parsed as JSON5, anything else as a single YAML document.
func LoadRaw(path string) (map[string]any, error) {
	if strings.TrimSpace(path) == "" {
		return nil, errors.New("config path is required")
	}
	return loadFile(path, map[string]bool{})
}

func loadFile(path string, stack map[string]bool) (map[string]any, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, err
	}
	if stack[abs] {
		return nil, fmt.Errorf("config include cycle at %s", abs)
	}
	stack[abs] = true
	defer delete(stack, abs)

	data, err := os.ReadFile(abs)
	if err != nil {
		return nil, err
	}
	raw, err := parseRaw([]byte(expandEnv(string(data))), abs)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", filepath.Base(abs), err)
	}

	includes, err := takeIncludes(raw)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", filepath.Base(abs), err)
	}
	merged := map[string]any{}
	for _, inc := range includes {
		if !filepath.IsAbs(inc) {
			inc = filepath.Join(filepath.Dir(abs), inc)
		}
		sub, err := loadFile(inc, stack)
		if err != nil {
			return nil, err
		}
		merged = mergeRaw(merged, sub)
	}
	return mergeRaw(merged, raw), nil
}

var envRef = regexp.MustCompile(`\$\{([A-Za-z_][A-Za-z0-9_]*)(:-([^}]*))?\}`)

// expandEnv replaces ${VAR} references; ${VAR:-fallback} uses fallback when
// VAR is unset or empty. Bare $NAME is left alone so $include survives.
func expandEnv(s string) string {
	return envRef.ReplaceAllStringFunc(s, func(ref string) string {
		m := envRef.FindStringSubmatch(ref)
		if v := os.Getenv(m[1]); v != "" || m[2] == "" {
			return v
		}
		return m[3]
	})
}

func parseRaw(data []byte, path string) (map[string]any, error) {
	var raw map[string]any
	switch strings.ToLower(filepath.Ext(path)) {
	case ".json", ".json5":
		if err := json5.Unmarshal(data, &raw); err != nil {
			return nil, err
		}
	default:
		dec := yaml.NewDecoder(bytes.NewReader(data))
		if err := dec.Decode(&raw); err != nil && !errors.Is(err, io.EOF) {
			return nil, err
		}
		if err := dec.Decode(&struct{}{}); !errors.Is(err, io.EOF) {
			return nil, errors.New("expected a single YAML document")
		}
	}
	if raw == nil {
		raw = map[string]any{}
	}
	return raw, nil
}

func takeIncludes(raw map[string]any) ([]string, error) {
	val, ok := raw[includeKey]
	if !ok {
		return nil, nil
	}
	delete(raw, includeKey)

	var out []string
	switch typed := val.(type) {
	case string:
		out = []string{typed}
	case []any:
		for _, entry := range typed {
			s, ok := entry.(string)
			if !ok {
				return nil, fmt.Errorf("%s entries must be strings", includeKey)
			}
			out = append(out, s)
		}
	default:
		return nil, fmt.Errorf("%s must be a string or a list of strings", includeKey)
	}

	paths := out[:0]
	for _, p := range out {
		if p = strings.TrimSpace(p); p != "" {
			paths = append(paths, p)
		}
	}
	return paths, nil
}

// mergeRaw merges src into dst. Nested maps merge key by key; the backends
// list is concatenated so a shared file can declare common backends.
func mergeRaw(dst, src map[string]any) map[string]any {
	for key, value := range src {
		switch typed := value.(type) {
		case map[string]any:
			if existing, ok := dst[key].(map[string]any); ok {
				dst[key] = mergeRaw(existing, typed)
				continue
			}
		case []any:
			if existing, ok := dst[key].([]any); ok && key == "backends" {
				dst[key] = append(append([]any{}, existing...), typed...)
				continue
			}
		}
		dst[key] = value
	}
	return dst
}

// decodeRawConfig round-trips raw through YAML into Config, rejecting
// unknown keys.
func decodeRawConfig(raw map[string]any) (*Config, error) {
	payload, err := yaml.Marshal(raw)
	if err != nil {
		return nil, fmt.Errorf("failed to serialize config: %w", err)
	}
	var cfg Config
	dec := yaml.NewDecoder(bytes.NewReader(payload))
	dec.KnownFields(true)
	if err := dec.Decode(&cfg); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	return &cfg, nil
}
