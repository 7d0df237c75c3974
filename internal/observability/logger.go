// Package observability provides structured logging with redaction support,
// request ID propagation and OpenTelemetry tracing.
package observability

import (
	"context"
	"io"
	"log/slog"
	"os"
	"strings"
)

// LoggerConfig contains configuration for the logger.
type LoggerConfig struct {
	// Level is shared with the config manager so a reload can change
	// verbosity without rebuilding the handler.
	Level      *slog.LevelVar
	Output     io.Writer
	AddSource  bool
	JSONFormat bool
	// Export, when enabled, also receives every record as an OTLP log.
	Export *LoggerProvider
}

// NewLogger builds a slog.Logger whose string attributes and messages pass
// through redactor. A nil redactor disables redaction.
func NewLogger(cfg LoggerConfig, redactor *Redactor) *slog.Logger {
	level := cfg.Level
	if level == nil {
		level = new(slog.LevelVar)
	}
	out := cfg.Output
	if out == nil {
		out = os.Stdout
	}

	opts := &slog.HandlerOptions{
		Level:       level,
		AddSource:   cfg.AddSource,
		ReplaceAttr: replaceAttr(redactor),
	}

	var handler slog.Handler
	if cfg.JSONFormat {
		handler = slog.NewJSONHandler(out, opts)
	} else {
		handler = slog.NewTextHandler(out, opts)
	}
	if otelLogger := cfg.Export.Logger(); otelLogger != nil {
		handler = newOTelHandler(handler, otelLogger, redactor)
	}
	return slog.New(handler)
}

func replaceAttr(redactor *Redactor) func([]string, slog.Attr) slog.Attr {
	if redactor == nil {
		return nil
	}
	return func(_ []string, a slog.Attr) slog.Attr {
		if SensitiveKey(a.Key) {
			return slog.String(a.Key, "[REDACTED]")
		}
		switch a.Value.Kind() {
		case slog.KindString:
			return slog.String(a.Key, redactor.Redact(a.Value.String()))
		case slog.KindAny:
			if err, ok := a.Value.Any().(error); ok {
				return slog.String(a.Key, redactor.Redact(err.Error()))
			}
		}
		return a
	}
}

// ParseLevel maps a config string to a slog level. Unknown values map to info.
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

// LoggerFromContext returns base annotated with the request ID carried by ctx.
func LoggerFromContext(ctx context.Context, base *slog.Logger) *slog.Logger {
	if base == nil {
		base = slog.Default()
	}
	requestID := RequestIDFromContext(ctx)
	if requestID == "" {
		return base
	}
	return base.With("request_id", requestID)
}
