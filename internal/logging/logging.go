// Package logging sets up the pipeline's structured logger, following the
// Setup/SetLevel shape used for slog-based services elsewhere in the pack
// (a package-level slog.LevelVar driving a JSON handler, swappable at
// runtime without rebuilding the logger).
package logging

import (
	"context"
	"log/slog"
	"os"
	"strings"
)

var level = new(slog.LevelVar)

// Setup initializes the process-wide slog logger at the given level
// ("debug", "info", "warn", "error"; anything else defaults to "info") and
// installs it via slog.SetDefault.
func Setup(lvl string) *slog.Logger {
	SetLevel(lvl)
	handler := &redactingHandler{base: slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: level})}
	logger := slog.New(handler)
	slog.SetDefault(logger)
	return logger
}

// SetLevel changes the active log level without recreating the logger.
func SetLevel(lvl string) {
	switch lvl {
	case "debug":
		level.Set(slog.LevelDebug)
	case "warn":
		level.Set(slog.LevelWarn)
	case "error":
		level.Set(slog.LevelError)
	default:
		level.Set(slog.LevelInfo)
	}
}

// redactingHandler replaces the value of every top-level attribute whose key
// names a credential (containing "secret", "password", "token" or "api_key")
// before it reaches the sink. Values themselves are not inspected, and
// attributes nested inside a group are passed through unchanged.
type redactingHandler struct {
	base slog.Handler
}

func (h *redactingHandler) Enabled(ctx context.Context, level slog.Level) bool {
	return h.base.Enabled(ctx, level)
}

func (h *redactingHandler) Handle(ctx context.Context, r slog.Record) error {
	redacted := slog.NewRecord(r.Time, r.Level, r.Message, r.PC)
	r.Attrs(func(a slog.Attr) bool {
		redacted.AddAttrs(redactAttr(a))
		return true
	})
	return h.base.Handle(ctx, redacted)
}

func (h *redactingHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	redacted := make([]slog.Attr, len(attrs))
	for i, a := range attrs {
		redacted[i] = redactAttr(a)
	}
	return &redactingHandler{base: h.base.WithAttrs(redacted)}
}

func (h *redactingHandler) WithGroup(name string) slog.Handler {
	return &redactingHandler{base: h.base.WithGroup(name)}
}

func redactAttr(a slog.Attr) slog.Attr {
	if sensitiveKey(a.Key) {
		return slog.String(a.Key, "[REDACTED]")
	}
	return a
}

func sensitiveKey(key string) bool {
	key = strings.ToLower(key)
	return strings.Contains(key, "secret") || strings.Contains(key, "password") ||
		strings.Contains(key, "token") || strings.Contains(key, "api_key")
}
