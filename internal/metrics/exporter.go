package metrics

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetricgrpc"
	"go.opentelemetry.io/otel/metric"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	semconv "go.opentelemetry.io/otel/semconv/v1.24.0"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"

	"daypulse/internal/config"
	"daypulse/internal/models"
)

const serviceName = "daypulse"

// Exporter pushes flush metrics to an OTLP collector
type Exporter struct {
	provider *sdkmetric.MeterProvider

	flushes       metric.Int64Counter
	minutes       metric.Int64Counter
	busyIndex     metric.Float64Histogram
	inputEvents   metric.Int64Counter
	switches      metric.Int64Counter
	droppedEvents metric.Int64Counter
}

// New returns an OTLP exporter when metrics are enabled, otherwise NoOp
func New(ctx context.Context, cfg config.MetricsConfig, version string) (Recorder, error) {
	if !cfg.Enabled {
		return NoOp{}, nil
	}
	if cfg.Endpoint == "" {
		return nil, fmt.Errorf("metrics enabled but endpoint not configured")
	}

	opts := []otlpmetricgrpc.Option{
		otlpmetricgrpc.WithEndpoint(cfg.Endpoint),
	}
	if cfg.Insecure {
		opts = append(opts, otlpmetricgrpc.WithDialOption(grpc.WithTransportCredentials(insecure.NewCredentials())))
		opts = append(opts, otlpmetricgrpc.WithInsecure())
	}

	exp, err := otlpmetricgrpc.New(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("creating OTLP exporter: %w", err)
	}

	res, err := resource.New(ctx,
		resource.WithAttributes(
			semconv.ServiceName(serviceName),
			semconv.ServiceVersion(version),
		),
	)
	if err != nil {
		return nil, fmt.Errorf("creating resource: %w", err)
	}

	provider := sdkmetric.NewMeterProvider(
		sdkmetric.WithReader(sdkmetric.NewPeriodicReader(exp)),
		sdkmetric.WithResource(res),
	)
	otel.SetMeterProvider(provider)

	return newExporter(provider)
}

func newExporter(provider *sdkmetric.MeterProvider) (*Exporter, error) {
	meter := provider.Meter(serviceName)
	e := &Exporter{provider: provider}

	var err error
	if e.flushes, err = meter.Int64Counter(
		"daypulse_flushes_total",
		metric.WithDescription("Minute record writes by result"),
		metric.WithUnit("{flush}"),
	); err != nil {
		return nil, fmt.Errorf("creating flushes counter: %w", err)
	}

	if e.minutes, err = meter.Int64Counter(
		"daypulse_minutes_total",
		metric.WithDescription("Persisted minute records by idle state"),
		metric.WithUnit("{minute}"),
	); err != nil {
		return nil, fmt.Errorf("creating minutes counter: %w", err)
	}

	if e.busyIndex, err = meter.Float64Histogram(
		"daypulse_busy_index",
		metric.WithDescription("Busy index of persisted minute records"),
		metric.WithExplicitBucketBoundaries(0, 10, 20, 30, 40, 50, 60, 70, 80, 90, 100),
	); err != nil {
		return nil, fmt.Errorf("creating busy index histogram: %w", err)
	}

	if e.inputEvents, err = meter.Int64Counter(
		"daypulse_input_events_total",
		metric.WithDescription("Input events by kind"),
		metric.WithUnit("{event}"),
	); err != nil {
		return nil, fmt.Errorf("creating input events counter: %w", err)
	}

	if e.switches, err = meter.Int64Counter(
		"daypulse_window_switches_total",
		metric.WithDescription("Foreground window switches"),
		metric.WithUnit("{switch}"),
	); err != nil {
		return nil, fmt.Errorf("creating window switches counter: %w", err)
	}

	if e.droppedEvents, err = meter.Int64Counter(
		"daypulse_dropped_events_total",
		metric.WithDescription("Input events dropped because the event buffer was full"),
		metric.WithUnit("{event}"),
	); err != nil {
		return nil, fmt.Errorf("creating dropped events counter: %w", err)
	}

	return e, nil
}

func (e *Exporter) FlushSucceeded(ctx context.Context, rec *models.MinuteRecord) {
	e.flushes.Add(ctx, 1, metric.WithAttributes(attribute.String("result", "ok")))
	e.minutes.Add(ctx, 1, metric.WithAttributes(attribute.Bool("idle", rec.IsIdle)))
	e.busyIndex.Record(ctx, rec.BusyIndex)

	e.inputEvents.Add(ctx, rec.MouseClicks, metric.WithAttributes(attribute.String("kind", "click")))
	e.inputEvents.Add(ctx, rec.MouseMoves, metric.WithAttributes(attribute.String("kind", "move")))
	e.inputEvents.Add(ctx, rec.KeyboardPresses, metric.WithAttributes(attribute.String("kind", "key")))
	e.switches.Add(ctx, rec.WindowSwitches)
}

func (e *Exporter) FlushFailed(ctx context.Context) {
	e.flushes.Add(ctx, 1, metric.WithAttributes(attribute.String("result", "failed")))
}

func (e *Exporter) EventsDropped(ctx context.Context, n int64) {
	if n > 0 {
		e.droppedEvents.Add(ctx, n)
	}
}

// Close shuts down the exporter and flushes any pending metrics.
func (e *Exporter) Close(ctx context.Context) error {
	return e.provider.Shutdown(ctx)
}
