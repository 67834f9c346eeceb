// Package observability provides structured logging, Prometheus metrics and
// OpenTelemetry tracing for Pathfinder.
package observability

import (
	"context"
	"io"
	"log/slog"
	"os"
	"regexp"
	"strings"
)

// LogConfig configures the process logger.
type LogConfig struct {
	// Level is one of debug, info, warn, error. Defaults to info.
	Level string
	// Format is json or text. Defaults to json.
	Format string
	// Output defaults to os.Stderr.
	Output io.Writer
	// AddSource includes file and line in records.
	AddSource bool
	// RedactPatterns extends DefaultRedactPatterns.
	RedactPatterns []string
}

type contextKey string

const (
	requestIDKey    contextKey = "request_id"
	backendKey      contextKey = "backend"
	dispatchPathKey contextKey = "dispatch_path"
)

// DefaultRedactPatterns matches credentials that must never reach the logs.
var DefaultRedactPatterns = []string{
	`(?i)(api[_-]?key|apikey|x-subscription-token)[\s:=]+["']?([a-zA-Z0-9_\-]{16,})["']?`,
	`(?i)(bearer|token)[\s:]+([a-zA-Z0-9_\-\.]{16,})`,
	`(?i)(secret|password|passwd)[\s:=]+["']?([^\s"']{8,})["']?`,
	`sk-ant-[a-zA-Z0-9_-]{20,}`,
	`sk-(proj-|or-v1-)?[a-zA-Z0-9_-]{32,}`,
	`AIza[0-9A-Za-z_\-]{35}`,
	`(AKIA|ASIA)[0-9A-Z]{16}`,
	`[?&]key=[a-zA-Z0-9_\-]{16,}`,
}

const redacted = "[REDACTED]"

// Logger wraps slog with request correlation and secret redaction.
type Logger struct {
	logger *slog.Logger
}

// NewLogger builds a Logger from config. Invalid redact patterns are ignored.
func NewLogger(cfg LogConfig) *Logger {
	if cfg.Output == nil {
		cfg.Output = os.Stderr
	}
	opts := &slog.HandlerOptions{Level: ParseLevel(cfg.Level), AddSource: cfg.AddSource}

	var inner slog.Handler
	if strings.EqualFold(cfg.Format, "text") {
		inner = slog.NewTextHandler(cfg.Output, opts)
	} else {
		inner = slog.NewJSONHandler(cfg.Output, opts)
	}

	patterns := make([]*regexp.Regexp, 0, len(DefaultRedactPatterns)+len(cfg.RedactPatterns))
	for _, p := range append(append([]string{}, DefaultRedactPatterns...), cfg.RedactPatterns...) {
		if re, err := regexp.Compile(p); err == nil {
			patterns = append(patterns, re)
		}
	}

	return &Logger{logger: slog.New(&redactHandler{inner: inner, patterns: patterns})}
}

// Slog exposes the underlying redacting slog.Logger for components that take
// a *slog.Logger.
func (l *Logger) Slog() *slog.Logger { return l.logger }

// WithFields returns a logger that adds args to every record.
func (l *Logger) WithFields(args ...any) *Logger {
	return &Logger{logger: l.logger.With(args...)}
}

func (l *Logger) Debug(ctx context.Context, msg string, args ...any) {
	l.log(ctx, slog.LevelDebug, msg, args...)
}

func (l *Logger) Info(ctx context.Context, msg string, args ...any) {
	l.log(ctx, slog.LevelInfo, msg, args...)
}

func (l *Logger) Warn(ctx context.Context, msg string, args ...any) {
	l.log(ctx, slog.LevelWarn, msg, args...)
}

func (l *Logger) Error(ctx context.Context, msg string, args ...any) {
	l.log(ctx, slog.LevelError, msg, args...)
}

func (l *Logger) log(ctx context.Context, level slog.Level, msg string, args ...any) {
	if ctx == nil {
		ctx = context.Background()
	}
	l.logger.Log(ctx, level, msg, args...)
}

// ParseLevel converts a level name to slog.Level, defaulting to info.
func ParseLevel(s string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// redactHandler scrubs secrets from messages and string attributes and
// appends correlation fields found in the context.
type redactHandler struct {
	inner    slog.Handler
	patterns []*regexp.Regexp
}

func (h *redactHandler) Enabled(ctx context.Context, level slog.Level) bool {
	return h.inner.Enabled(ctx, level)
}

func (h *redactHandler) Handle(ctx context.Context, r slog.Record) error {
	out := slog.NewRecord(r.Time, r.Level, h.redact(r.Message), r.PC)
	if ctx != nil {
		for _, key := range []contextKey{requestIDKey, backendKey, dispatchPathKey} {
			if v, ok := ctx.Value(key).(string); ok && v != "" {
				out.AddAttrs(slog.String(string(key), v))
			}
		}
	}
	r.Attrs(func(a slog.Attr) bool {
		out.AddAttrs(h.redactAttr(a))
		return true
	})
	return h.inner.Handle(ctx, out)
}

func (h *redactHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	clean := make([]slog.Attr, len(attrs))
	for i, a := range attrs {
		clean[i] = h.redactAttr(a)
	}
	return &redactHandler{inner: h.inner.WithAttrs(clean), patterns: h.patterns}
}

func (h *redactHandler) WithGroup(name string) slog.Handler {
	return &redactHandler{inner: h.inner.WithGroup(name), patterns: h.patterns}
}

var sensitiveKeys = map[string]bool{
	"api_key":       true,
	"apikey":        true,
	"password":      true,
	"secret":        true,
	"token":         true,
	"authorization": true,
}

func (h *redactHandler) redactAttr(a slog.Attr) slog.Attr {
	if sensitiveKeys[strings.ToLower(strings.ReplaceAll(a.Key, "-", "_"))] {
		return slog.String(a.Key, redacted)
	}
	v := a.Value.Resolve()
	switch v.Kind() {
	case slog.KindString:
		return slog.String(a.Key, h.redact(v.String()))
	case slog.KindGroup:
		group := v.Group()
		clean := make([]any, len(group))
		for i, g := range group {
			clean[i] = h.redactAttr(g)
		}
		return slog.Group(a.Key, clean...)
	case slog.KindAny:
		if err, ok := v.Any().(error); ok {
			return slog.String(a.Key, h.redact(err.Error()))
		}
	}
	return slog.Attr{Key: a.Key, Value: v}
}

func (h *redactHandler) redact(s string) string {
	for _, re := range h.patterns {
		s = re.ReplaceAllString(s, redacted)
	}
	return s
}

// AddRequestID returns a context carrying the request id.
func AddRequestID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, requestIDKey, id)
}

// GetRequestID returns the request id carried by ctx, or "".
func GetRequestID(ctx context.Context) string {
	id, _ := ctx.Value(requestIDKey).(string)
	return id
}

// AddBackend returns a context tagged with the backend handling the request.
func AddBackend(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, backendKey, id)
}

// AddDispatchPath returns a context tagged with the active dispatch path.
func AddDispatchPath(ctx context.Context, path string) context.Context {
	return context.WithValue(ctx, dispatchPathKey, path)
}
