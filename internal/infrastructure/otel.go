package infrastructure

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"time"

	promclient "github.com/prometheus/client_golang/prometheus"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/exporters/prometheus"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/metric/noop"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.28.0"
	"go.opentelemetry.io/otel/trace"

	"firdscli/internal/config"
)

const (
	ServiceName = "firds-extractor"
	MeterName   = "firdscli"
)

// Telemetry holds the tracer and meter providers of one run. Providers are
// passed explicitly to the components that need them; no global provider is
// installed.
type Telemetry struct {
	TracerProvider *sdktrace.TracerProvider
	MeterProvider  metric.MeterProvider
	Registry       *promclient.Registry
	Tracer         trace.Tracer
	Metrics        *PipelineMetrics

	sdkMeterProvider *sdkmetric.MeterProvider
	textfile         string
	logger           *slog.Logger
}

// InitializeTelemetry sets up tracing and metrics. Tracing always records
// spans so trace IDs reach the logs; the exporter only decides whether they
// are also printed. traceOut receives stdout-exported spans (os.Stderr when
// nil).
func InitializeTelemetry(ctx context.Context, cfg config.TelemetryConfig, version string, traceOut io.Writer, logger *slog.Logger) (*Telemetry, error) {
	res := resource.NewWithAttributes(
		semconv.SchemaURL,
		semconv.ServiceName(ServiceName),
		semconv.ServiceVersion(version),
		attribute.String("service.instance.id", generateInstanceID()),
	)

	t := &Telemetry{
		textfile: cfg.MetricsTextfile,
		logger:   logger,
	}

	if err := t.initializeTracing(cfg, res, traceOut); err != nil {
		return nil, fmt.Errorf("failed to initialize tracing: %w", err)
	}
	if err := t.initializeMetrics(cfg, res); err != nil {
		return nil, fmt.Errorf("failed to initialize metrics: %w", err)
	}

	metrics, err := NewPipelineMetrics(t.MeterProvider.Meter(MeterName, metric.WithInstrumentationVersion(version)))
	if err != nil {
		return nil, fmt.Errorf("failed to create pipeline metrics: %w", err)
	}
	t.Metrics = metrics

	logger.DebugContext(ctx, "telemetry_initialized",
		slog.String("trace_exporter", cfg.TraceExporter),
		slog.Bool("metrics_enabled", cfg.MetricsEnabled))

	return t, nil
}

func (t *Telemetry) initializeTracing(cfg config.TelemetryConfig, res *resource.Resource, out io.Writer) error {
	opts := []sdktrace.TracerProviderOption{sdktrace.WithResource(res)}

	switch cfg.TraceExporter {
	case "stdout":
		if out == nil {
			out = os.Stderr
		}
		exporter, err := stdouttrace.New(stdouttrace.WithWriter(out), stdouttrace.WithPrettyPrint())
		if err != nil {
			return fmt.Errorf("failed to create trace exporter: %w", err)
		}
		// Spans are few and the process is short-lived.
		opts = append(opts, sdktrace.WithSyncer(exporter))
	case "none", "":
	default:
		return fmt.Errorf("unsupported trace exporter: %s", cfg.TraceExporter)
	}

	t.TracerProvider = sdktrace.NewTracerProvider(opts...)
	t.Tracer = t.TracerProvider.Tracer(MeterName)
	return nil
}

func (t *Telemetry) initializeMetrics(cfg config.TelemetryConfig, res *resource.Resource) error {
	if !cfg.MetricsEnabled {
		t.MeterProvider = noop.NewMeterProvider()
		return nil
	}

	t.Registry = promclient.NewRegistry()
	exporter, err := prometheus.New(prometheus.WithRegisterer(t.Registry))
	if err != nil {
		return fmt.Errorf("failed to create prometheus exporter: %w", err)
	}

	mp := sdkmetric.NewMeterProvider(
		sdkmetric.WithResource(res),
		sdkmetric.WithReader(exporter),
	)
	t.sdkMeterProvider = mp
	t.MeterProvider = mp
	return nil
}

// StartStep opens a span for a pipeline step
func (t *Telemetry) StartStep(ctx context.Context, name string) (context.Context, trace.Span) {
	return t.Tracer.Start(ctx, "firds."+name, trace.WithAttributes(attribute.String("step.name", name)))
}

// WriteTextfile writes the gathered metrics in the Prometheus text format to
// the configured node-exporter textfile. It is a no-op when metrics or the
// textfile are disabled.
func (t *Telemetry) WriteTextfile() error {
	if t.Registry == nil || t.textfile == "" {
		return nil
	}
	if err := promclient.WriteToTextfile(t.textfile, t.Registry); err != nil {
		return fmt.Errorf("failed to write metrics textfile %s: %w", t.textfile, err)
	}
	return nil
}

// Shutdown flushes and stops the providers
func (t *Telemetry) Shutdown(ctx context.Context) error {
	var errs []error

	if t.TracerProvider != nil {
		if err := t.TracerProvider.Shutdown(ctx); err != nil {
			errs = append(errs, fmt.Errorf("tracer provider shutdown: %w", err))
		}
	}

	if t.sdkMeterProvider != nil {
		if err := t.sdkMeterProvider.Shutdown(ctx); err != nil {
			errs = append(errs, fmt.Errorf("meter provider shutdown: %w", err))
		}
	}

	return errors.Join(errs...)
}

// PipelineMetrics holds the run's instruments
type PipelineMetrics struct {
	RecordsExtracted metric.Int64Counter
	RecordsSkipped   metric.Int64Counter
	StepDuration     metric.Float64Histogram
	StepFailures     metric.Int64Counter
}

// NewPipelineMetrics creates the pipeline instruments on meter
func NewPipelineMetrics(meter metric.Meter) (*PipelineMetrics, error) {
	extracted, err := meter.Int64Counter(
		"firds.records.extracted",
		metric.WithDescription("Instrument records written as rows"),
	)
	if err != nil {
		return nil, err
	}

	skipped, err := meter.Int64Counter(
		"firds.records.skipped",
		metric.WithDescription("Malformed instrument records skipped"),
	)
	if err != nil {
		return nil, err
	}

	duration, err := meter.Float64Histogram(
		"firds.step.duration",
		metric.WithDescription("Pipeline step duration in seconds"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return nil, err
	}

	failures, err := meter.Int64Counter(
		"firds.step.failures",
		metric.WithDescription("Pipeline steps that failed"),
	)
	if err != nil {
		return nil, err
	}

	return &PipelineMetrics{
		RecordsExtracted: extracted,
		RecordsSkipped:   skipped,
		StepDuration:     duration,
		StepFailures:     failures,
	}, nil
}

// RecordStep records a finished step's duration and, on failure, its error
// category
func (m *PipelineMetrics) RecordStep(ctx context.Context, step string, duration time.Duration, errType string) {
	if m == nil {
		return
	}

	status := "success"
	if errType != "" {
		status = "failure"
	}
	m.StepDuration.Record(ctx, duration.Seconds(), metric.WithAttributes(
		attribute.String("step", step),
		attribute.String("status", status),
	))

	if errType != "" {
		m.StepFailures.Add(ctx, 1, metric.WithAttributes(
			attribute.String("step", step),
			attribute.String("error.type", errType),
		))
	}
}

// RecordRecords adds the extractor's totals
func (m *PipelineMetrics) RecordRecords(ctx context.Context, extracted, skipped int64) {
	if m == nil {
		return
	}
	m.RecordsExtracted.Add(ctx, extracted)
	m.RecordsSkipped.Add(ctx, skipped)
}

// generateInstanceID generates a unique instance identifier
func generateInstanceID() string {
	hostname, _ := os.Hostname()
	return fmt.Sprintf("%s-%d", hostname, time.Now().Unix())
}

// TraceIDFromContext extracts trace ID from context for logging correlation
func TraceIDFromContext(ctx context.Context) string {
	spanCtx := trace.SpanContextFromContext(ctx)
	if spanCtx.IsValid() {
		return spanCtx.TraceID().String()
	}
	return ""
}

// RecordError records an error on the current span
func RecordError(ctx context.Context, err error, options ...trace.EventOption) {
	span := trace.SpanFromContext(ctx)
	if !span.IsRecording() {
		return
	}

	span.RecordError(err, options...)
	span.SetStatus(codes.Error, err.Error())
}

// SetSpanAttributes sets attributes on the current span
func SetSpanAttributes(ctx context.Context, attrs ...attribute.KeyValue) {
	span := trace.SpanFromContext(ctx)
	if !span.IsRecording() {
		return
	}
	span.SetAttributes(attrs...)
}
