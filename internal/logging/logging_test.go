package logging

import (
	"bytes"
	"log/slog"
	"strings"
	"testing"
)

func TestRedactingHandlerRedactsSecretLikeKeys(t *testing.T) {
	var buf bytes.Buffer
	handler := &redactingHandler{base: slog.NewJSONHandler(&buf, nil)}
	logger := slog.New(handler)

	logger.Info("uploading batch",
		slog.String("api_key", "sk-live-secret"),
		slog.String("payer", "aetna"),
	)

	out := buf.String()
	if strings.Contains(out, "sk-live-secret") {
		t.Error("expected api_key value to be redacted")
	}
	if !strings.Contains(out, "[REDACTED]") {
		t.Error("expected [REDACTED] placeholder in output")
	}
	if !strings.Contains(out, "aetna") {
		t.Error("expected non-sensitive attrs to survive")
	}
}

func TestRedactingHandlerPreservesWithAttrs(t *testing.T) {
	var buf bytes.Buffer
	handler := &redactingHandler{base: slog.NewJSONHandler(&buf, nil)}
	logger := slog.New(handler).With(slog.String("token", "abc123"))

	logger.Info("run_started")

	if strings.Contains(buf.String(), "abc123") {
		t.Error("expected token carried via With() to be redacted")
	}
}

func TestSetLevelControlsEnabled(t *testing.T) {
	SetLevel("error")
	if level.Level() != slog.LevelError {
		t.Fatalf("expected level error, got %v", level.Level())
	}
	SetLevel("bogus")
	if level.Level() != slog.LevelInfo {
		t.Fatalf("expected unrecognized level to default to info, got %v", level.Level())
	}
}
