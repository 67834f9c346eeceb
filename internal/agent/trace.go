package agent

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/haasonsaas/pathfinder/internal/observability"
	"github.com/haasonsaas/pathfinder/pkg/models"
)

// TraceWriter persists agent runs for debugging and replay.
type TraceWriter interface {
	WriteRun(ctx context.Context, question string, res *Result, runErr error) error
}

// TraceHeader is the first line of a trace file.
type TraceHeader struct {
	Version     int       `json:"version"`
	SinkID      string    `json:"sink_id"`
	StartedAt   time.Time `json:"started_at"`
	AppVersion  string    `json:"app_version,omitempty"`
	Environment string    `json:"environment,omitempty"`
}

// RunRecord is one line per agent run.
type RunRecord struct {
	RunID     string             `json:"run_id"`
	RequestID string             `json:"request_id,omitempty"`
	Time      time.Time          `json:"time"`
	Question  string             `json:"question"`
	Answer    string             `json:"answer,omitempty"`
	Error     string             `json:"error,omitempty"`
	Trace     *models.AgentTrace `json:"trace"`
}

// JSONLTraceWriter writes a header line followed by one RunRecord per line.
// Each record is flushed immediately.
type JSONLTraceWriter struct {
	mu      sync.Mutex
	w       io.Writer
	file    *os.File
	header  TraceHeader
	started bool
	redact  func(*RunRecord)
}

// TraceOption configures a JSONLTraceWriter.
type TraceOption func(*JSONLTraceWriter)

// WithAppVersion sets the version recorded in the header.
func WithAppVersion(v string) TraceOption {
	return func(t *JSONLTraceWriter) { t.header.AppVersion = v }
}

// WithEnvironment sets the environment recorded in the header.
func WithEnvironment(env string) TraceOption {
	return func(t *JSONLTraceWriter) { t.header.Environment = env }
}

// WithRedactor rewrites each record before it is written.
func WithRedactor(fn func(*RunRecord)) TraceOption {
	return func(t *JSONLTraceWriter) { t.redact = fn }
}

// NewJSONLTraceWriter writes to w.
func NewJSONLTraceWriter(w io.Writer, opts ...TraceOption) *JSONLTraceWriter {
	t := &JSONLTraceWriter{
		w: w,
		header: TraceHeader{
			Version:   1,
			SinkID:    uuid.NewString(),
			StartedAt: time.Now().UTC(),
		},
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// NewJSONLTraceFile appends to the file at path, creating it if needed.
func NewJSONLTraceFile(path string, opts ...TraceOption) (*JSONLTraceWriter, error) {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o600)
	if err != nil {
		return nil, fmt.Errorf("open trace file: %w", err)
	}
	t := NewJSONLTraceWriter(f, opts...)
	t.file = f
	return t, nil
}

// WriteRun implements TraceWriter.
func (t *JSONLTraceWriter) WriteRun(ctx context.Context, question string, res *Result, runErr error) error {
	rec := RunRecord{
		RunID:     uuid.NewString(),
		RequestID: observability.GetRequestID(ctx),
		Time:      time.Now().UTC(),
		Question:  question,
	}
	if res != nil {
		rec.Answer = res.Answer
		rec.Trace = res.Trace.Clone()
	}
	if runErr != nil {
		rec.Error = runErr.Error()
	}
	if t.redact != nil {
		t.redact(&rec)
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	if !t.started {
		if err := t.writeLine(t.header); err != nil {
			return err
		}
		t.started = true
	}
	return t.writeLine(rec)
}

func (t *JSONLTraceWriter) writeLine(v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("encode trace line: %w", err)
	}
	if _, err := t.w.Write(append(data, '\n')); err != nil {
		return fmt.Errorf("write trace line: %w", err)
	}
	if t.file != nil {
		return t.file.Sync()
	}
	return nil
}

// Close closes the underlying file if the writer opened it.
func (t *JSONLTraceWriter) Close() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.file != nil {
		return t.file.Close()
	}
	return nil
}

// ReadTrace parses a trace stream written by JSONLTraceWriter.
func ReadTrace(r io.Reader) (TraceHeader, []RunRecord, error) {
	dec := json.NewDecoder(r)
	var header TraceHeader
	if err := dec.Decode(&header); err != nil {
		return header, nil, fmt.Errorf("read trace header: %w", err)
	}
	if header.Version != 1 {
		return header, nil, fmt.Errorf("unsupported trace version: %d", header.Version)
	}
	var records []RunRecord
	for {
		var rec RunRecord
		err := dec.Decode(&rec)
		if err == io.EOF {
			return header, records, nil
		}
		if err != nil {
			return header, records, err
		}
		records = append(records, rec)
	}
}
