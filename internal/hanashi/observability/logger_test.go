package observability_test

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"strings"
	"testing"

	"github.com/bdobrica/Hanashi/common/trace"
	"github.com/bdobrica/Hanashi/internal/hanashi/observability"
)

func TestParseLevel(t *testing.T) {
	tests := map[string]slog.Level{
		"debug":   slog.LevelDebug,
		"WARN":    slog.LevelWarn,
		"warning": slog.LevelWarn,
		"error":   slog.LevelError,
		"":        slog.LevelInfo,
		"verbose": slog.LevelInfo,
	}
	for in, want := range tests {
		if got := observability.ParseLevel(in); got != want {
			t.Errorf("ParseLevel(%q) = %v, want %v", in, got, want)
		}
	}
}

func TestNew_JSONFiltersByLevel(t *testing.T) {
	var buf bytes.Buffer
	logger := observability.New(&buf, "warn", "json")
	logger.Info("dropped")
	logger.Warn("kept", "conversation_id", "c1")

	out := strings.TrimSpace(buf.String())
	if strings.Contains(out, "dropped") {
		t.Fatalf("info line should be filtered at warn level: %s", out)
	}
	var rec map[string]any
	if err := json.Unmarshal([]byte(out), &rec); err != nil {
		t.Fatalf("expected one JSON record, got %q: %v", out, err)
	}
	if rec["msg"] != "kept" || rec["conversation_id"] != "c1" {
		t.Errorf("unexpected record %v", rec)
	}
}

func TestForConversation_CarriesIDs(t *testing.T) {
	var buf bytes.Buffer
	prev := slog.Default()
	slog.SetDefault(observability.New(&buf, "info", "text"))
	t.Cleanup(func() { slog.SetDefault(prev) })

	ctx := trace.WithTraceID(context.Background(), "t_abc")
	observability.ForConversation(ctx, "chat-1").Info("hello")

	out := buf.String()
	if !strings.Contains(out, "trace_id=t_abc") || !strings.Contains(out, "conversation_id=chat-1") {
		t.Errorf("missing ids in %q", out)
	}
}
