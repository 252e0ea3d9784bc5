package tracing

import (
	"context"
	"fmt"
	"lending-backoffice/internal/config"
	"log/slog"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
	"go.opentelemetry.io/otel/trace"
)

const instrumentationName = "lending-backoffice"

// Tracer returns the tracer used for application spans. It reads the global
// provider on each call so it picks up whatever Init installed.
func Tracer() trace.Tracer {
	return otel.Tracer(instrumentationName)
}

// Init installs a global tracer provider. Spans are exported over OTLP/HTTP
// when tracing is enabled with an endpoint, and discarded otherwise. The
// returned function flushes and stops the provider.
func Init(ctx context.Context, cfg config.TracingConfig, logger *slog.Logger) (func(context.Context) error, error) {
	res, err := resource.New(ctx,
		resource.WithAttributes(
			semconv.ServiceName(cfg.ServiceName),
		),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create tracing resource: %w", err)
	}

	var exporter sdktrace.SpanExporter
	if cfg.Enabled && cfg.Endpoint != "" {
		exporter, err = otlptracehttp.New(ctx,
			otlptracehttp.WithEndpoint(cfg.Endpoint),
			otlptracehttp.WithInsecure(),
		)
		if err != nil {
			return nil, fmt.Errorf("failed to create OTLP exporter: %w", err)
		}
		logger.Info("Tracing configured for OTLP export", "endpoint", cfg.Endpoint)
	} else {
		exporter = noopExporter{}
		logger.Info("Tracing exporter disabled, spans are discarded")
	}

	tp := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exporter),
		sdktrace.WithResource(res),
		sdktrace.WithSampler(sdktrace.ParentBased(sdktrace.TraceIDRatioBased(cfg.SampleRatio))),
	)
	otel.SetTracerProvider(tp)

	return tp.Shutdown, nil
}

type noopExporter struct{}

func (noopExporter) ExportSpans(context.Context, []sdktrace.ReadOnlySpan) error {
	return nil
}

func (noopExporter) Shutdown(context.Context) error {
	return nil
}
