package agent

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/haasonsaas/pathfinder/internal/observability"
	"github.com/haasonsaas/pathfinder/pkg/models"
)

func TestJSONLTraceWriterHeaderOnce(t *testing.T) {
	var buf bytes.Buffer
	w := NewJSONLTraceWriter(&buf, WithEnvironment("test"))
	ctx := observability.AddRequestID(context.Background(), "req-1")

	res := &Result{Answer: "a", Trace: &models.AgentTrace{TerminalReason: models.TerminalFinalAnswer}}
	for i := 0; i < 2; i++ {
		if err := w.WriteRun(ctx, "q", res, nil); err != nil {
			t.Fatal(err)
		}
	}
	if err := w.WriteRun(ctx, "q", &Result{Trace: &models.AgentTrace{}}, errors.New("boom")); err != nil {
		t.Fatal(err)
	}

	if lines := strings.Count(buf.String(), "\n"); lines != 4 {
		t.Fatalf("lines = %d, want header + 3 records", lines)
	}
	header, records, err := ReadTrace(&buf)
	if err != nil {
		t.Fatal(err)
	}
	if header.Environment != "test" || header.SinkID == "" {
		t.Errorf("header = %+v", header)
	}
	if records[0].RequestID != "req-1" || records[0].RunID == records[1].RunID {
		t.Errorf("records = %+v", records[:2])
	}
	if records[2].Error != "boom" {
		t.Errorf("error = %q", records[2].Error)
	}
}

func TestJSONLTraceWriterRedactor(t *testing.T) {
	var buf bytes.Buffer
	w := NewJSONLTraceWriter(&buf, WithRedactor(func(r *RunRecord) { r.Question = "[REDACTED]" }))
	if err := w.WriteRun(context.Background(), "my api key is sk-123", &Result{Trace: &models.AgentTrace{}}, nil); err != nil {
		t.Fatal(err)
	}
	if strings.Contains(buf.String(), "sk-123") {
		t.Error("redactor not applied")
	}
}

func TestJSONLTraceFileAppends(t *testing.T) {
	path := filepath.Join(t.TempDir(), "agent.jsonl")
	w, err := NewJSONLTraceFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if err := w.WriteRun(context.Background(), "q", &Result{Trace: &models.AgentTrace{}}, nil); err != nil {
		t.Fatal(err)
	}
	if err := w.Close(); err != nil {
		t.Fatal(err)
	}

	f, err := os.Open(path)
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()
	if _, records, err := ReadTrace(f); err != nil || len(records) != 1 {
		t.Fatalf("records = %d, err = %v", len(records), err)
	}
}

func TestReadTraceRejectsUnknownVersion(t *testing.T) {
	_, _, err := ReadTrace(strings.NewReader(`{"version":9}` + "\n"))
	if err == nil {
		t.Fatal("expected version error")
	}
}
