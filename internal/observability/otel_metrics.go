package observability

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetricgrpc"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetrichttp"
	"go.opentelemetry.io/otel/metric"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
)

// MetricsExportConfig configures OTLP metric export.
type MetricsExportConfig struct {
	Enabled     bool
	Protocol    string // "grpc" or "http"
	Endpoint    string
	ServiceName string
	Insecure    bool
	Interval    time.Duration
}

// MeterProvider wraps the OpenTelemetry meter provider.
type MeterProvider struct {
	provider *sdkmetric.MeterProvider
}

// InitMetricsExport installs a global meter provider that pushes to an OTLP
// collector. Prometheus scraping is unaffected.
func InitMetricsExport(ctx context.Context, cfg MetricsExportConfig) (*MeterProvider, error) {
	if !cfg.Enabled {
		return &MeterProvider{}, nil
	}

	exporter, err := newMetricExporter(ctx, cfg)
	if err != nil {
		return nil, err
	}
	res, err := newResource(cfg.ServiceName)
	if err != nil {
		return nil, err
	}

	interval := cfg.Interval
	if interval <= 0 {
		interval = time.Minute
	}
	provider := sdkmetric.NewMeterProvider(
		sdkmetric.WithResource(res),
		sdkmetric.WithReader(sdkmetric.NewPeriodicReader(exporter, sdkmetric.WithInterval(interval))),
	)
	otel.SetMeterProvider(provider)
	return &MeterProvider{provider: provider}, nil
}

func newMetricExporter(ctx context.Context, cfg MetricsExportConfig) (sdkmetric.Exporter, error) {
	switch cfg.Protocol {
	case "", "grpc":
		opts := []otlpmetricgrpc.Option{otlpmetricgrpc.WithEndpoint(cfg.Endpoint)}
		if cfg.Insecure {
			opts = append(opts, otlpmetricgrpc.WithInsecure())
		}
		return otlpmetricgrpc.New(ctx, opts...)
	case "http":
		opts := []otlpmetrichttp.Option{otlpmetrichttp.WithEndpoint(cfg.Endpoint)}
		if cfg.Insecure {
			opts = append(opts, otlpmetrichttp.WithInsecure())
		}
		return otlpmetrichttp.New(ctx, opts...)
	default:
		return nil, fmt.Errorf("unsupported metrics protocol: %s", cfg.Protocol)
	}
}

// Shutdown flushes pending measurements.
func (mp *MeterProvider) Shutdown(ctx context.Context) error {
	if mp == nil || mp.provider == nil {
		return nil
	}
	return mp.provider.Shutdown(ctx)
}

// RecordMemoryOperation records the outcome and latency of a memory
// operation on the global meter. Instruments are looked up per call so a
// provider installed later still receives them.
func RecordMemoryOperation(ctx context.Context, op, result string, d time.Duration) {
	meter := otel.GetMeterProvider().Meter(TracerName)
	attrs := metric.WithAttributes(
		attribute.String("memory.operation", op),
		attribute.String("memory.result", result),
	)

	if count, err := meter.Int64Counter("recall.memory.operations",
		metric.WithDescription("Memory operations by outcome"),
		metric.WithUnit("{operation}"),
	); err == nil {
		count.Add(ctx, 1, attrs)
	}
	if hist, err := meter.Float64Histogram("recall.memory.operation.duration",
		metric.WithDescription("Duration of memory operations"),
		metric.WithUnit("s"),
	); err == nil {
		hist.Record(ctx, d.Seconds(), attrs)
	}
}
