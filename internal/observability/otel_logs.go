package observability

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel/exporters/otlp/otlplog/otlploggrpc"
	"go.opentelemetry.io/otel/exporters/otlp/otlplog/otlploghttp"
	otellog "go.opentelemetry.io/otel/log"
	"go.opentelemetry.io/otel/log/global"
	sdklog "go.opentelemetry.io/otel/sdk/log"
)

// LogsExportConfig configures OTLP log export.
type LogsExportConfig struct {
	Enabled     bool
	Protocol    string // "grpc" or "http"
	Endpoint    string
	ServiceName string
	Insecure    bool
}

// LoggerProvider wraps the OpenTelemetry logger provider.
type LoggerProvider struct {
	provider *sdklog.LoggerProvider
}

// InitLogsExport installs a global logger provider that batches records to
// an OTLP collector.
func InitLogsExport(ctx context.Context, cfg LogsExportConfig) (*LoggerProvider, error) {
	if !cfg.Enabled {
		return &LoggerProvider{}, nil
	}

	exporter, err := newLogExporter(ctx, cfg)
	if err != nil {
		return nil, err
	}
	res, err := newResource(cfg.ServiceName)
	if err != nil {
		return nil, err
	}

	provider := sdklog.NewLoggerProvider(
		sdklog.WithResource(res),
		sdklog.WithProcessor(sdklog.NewBatchProcessor(exporter)),
	)
	global.SetLoggerProvider(provider)
	return &LoggerProvider{provider: provider}, nil
}

func newLogExporter(ctx context.Context, cfg LogsExportConfig) (sdklog.Exporter, error) {
	switch cfg.Protocol {
	case "", "grpc":
		opts := []otlploggrpc.Option{otlploggrpc.WithEndpoint(cfg.Endpoint)}
		if cfg.Insecure {
			opts = append(opts, otlploggrpc.WithInsecure())
		}
		return otlploggrpc.New(ctx, opts...)
	case "http":
		opts := []otlploghttp.Option{otlploghttp.WithEndpoint(cfg.Endpoint)}
		if cfg.Insecure {
			opts = append(opts, otlploghttp.WithInsecure())
		}
		return otlploghttp.New(ctx, opts...)
	default:
		return nil, fmt.Errorf("unsupported logs protocol: %s", cfg.Protocol)
	}
}

// Logger returns the OpenTelemetry logger, or nil when export is disabled.
func (lp *LoggerProvider) Logger() otellog.Logger {
	if lp == nil || lp.provider == nil {
		return nil
	}
	return lp.provider.Logger(TracerName)
}

// Shutdown flushes pending records.
func (lp *LoggerProvider) Shutdown(ctx context.Context) error {
	if lp == nil || lp.provider == nil {
		return nil
	}
	return lp.provider.Shutdown(ctx)
}

// otelHandler forwards every record to next and mirrors it to an
// OpenTelemetry logger. Trace correlation comes from the span in ctx.
type otelHandler struct {
	next     slog.Handler
	logger   otellog.Logger
	redactor *Redactor
	attrs    []otellog.KeyValue
	prefix   string
}

func newOTelHandler(next slog.Handler, logger otellog.Logger, redactor *Redactor) slog.Handler {
	return &otelHandler{next: next, logger: logger, redactor: redactor}
}

func (h *otelHandler) Enabled(ctx context.Context, level slog.Level) bool {
	return h.next.Enabled(ctx, level)
}

func (h *otelHandler) Handle(ctx context.Context, r slog.Record) error {
	var rec otellog.Record
	rec.SetTimestamp(r.Time)
	rec.SetObservedTimestamp(time.Now())
	rec.SetSeverity(severity(r.Level))
	rec.SetSeverityText(r.Level.String())
	rec.SetBody(otellog.StringValue(h.redact(r.Message)))
	rec.AddAttributes(h.attrs...)
	r.Attrs(func(a slog.Attr) bool {
		rec.AddAttributes(h.convert(h.prefix, a)...)
		return true
	})
	h.logger.Emit(ctx, rec)

	return h.next.Handle(ctx, r)
}

func (h *otelHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	clone := *h
	clone.next = h.next.WithAttrs(attrs)
	clone.attrs = append([]otellog.KeyValue(nil), h.attrs...)
	for _, a := range attrs {
		clone.attrs = append(clone.attrs, h.convert(h.prefix, a)...)
	}
	return &clone
}

func (h *otelHandler) WithGroup(name string) slog.Handler {
	if name == "" {
		return h
	}
	clone := *h
	clone.next = h.next.WithGroup(name)
	clone.prefix = h.prefix + name + "."
	return &clone
}

func (h *otelHandler) redact(s string) string {
	if h.redactor == nil {
		return s
	}
	return h.redactor.Redact(s)
}

// convert flattens a into OpenTelemetry attributes. Groups become dotted keys.
func (h *otelHandler) convert(prefix string, a slog.Attr) []otellog.KeyValue {
	v := a.Value.Resolve()
	key := prefix + a.Key
	if h.redactor != nil && SensitiveKey(a.Key) {
		return []otellog.KeyValue{otellog.String(key, "[REDACTED]")}
	}

	switch v.Kind() {
	case slog.KindGroup:
		var out []otellog.KeyValue
		p := prefix
		if a.Key != "" {
			p = key + "."
		}
		for _, ga := range v.Group() {
			out = append(out, h.convert(p, ga)...)
		}
		return out
	case slog.KindString:
		return []otellog.KeyValue{otellog.String(key, h.redact(v.String()))}
	case slog.KindInt64:
		return []otellog.KeyValue{otellog.Int64(key, v.Int64())}
	case slog.KindUint64:
		return []otellog.KeyValue{otellog.Int64(key, int64(v.Uint64()))}
	case slog.KindFloat64:
		return []otellog.KeyValue{otellog.Float64(key, v.Float64())}
	case slog.KindBool:
		return []otellog.KeyValue{otellog.Bool(key, v.Bool())}
	case slog.KindDuration:
		return []otellog.KeyValue{otellog.String(key, v.Duration().String())}
	case slog.KindTime:
		return []otellog.KeyValue{otellog.String(key, v.Time().Format(time.RFC3339Nano))}
	default:
		if err, ok := v.Any().(error); ok {
			return []otellog.KeyValue{otellog.String(key, h.redact(err.Error()))}
		}
		return []otellog.KeyValue{otellog.String(key, h.redact(fmt.Sprint(v.Any())))}
	}
}

func severity(level slog.Level) otellog.Severity {
	switch {
	case level >= slog.LevelError:
		return otellog.SeverityError
	case level >= slog.LevelWarn:
		return otellog.SeverityWarn
	case level >= slog.LevelInfo:
		return otellog.SeverityInfo
	default:
		return otellog.SeverityDebug
	}
}
