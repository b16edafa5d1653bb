package metrics

import (
	"context"

	"go.opentelemetry.io/otel/trace"
	"go.uber.org/fx"

	config "github.com/bryant1410/jsr352/pkg/batch/core/config"
	metrics "github.com/bryant1410/jsr352/pkg/batch/core/metrics"
)

// NewMetricRecorder returns a PrometheusRecorder when metrics are enabled and the no-op
// recorder otherwise.
func NewMetricRecorder(cfg *config.Config) metrics.MetricRecorder {
	if !cfg.Metrics.Enabled {
		return metrics.NewNoOpMetricRecorder()
	}
	return NewPrometheusRecorder(cfg.Metrics.Namespace)
}

// NewFxTracerProvider builds the trace provider and flushes it when the application stops.
func NewFxTracerProvider(lc fx.Lifecycle, cfg *config.Config) (trace.TracerProvider, error) {
	tp, shutdown, err := NewTracerProvider(context.Background(), cfg.Tracing)
	if err != nil {
		return nil, err
	}
	lc.Append(fx.Hook{OnStop: shutdown})
	return tp, nil
}

// Module is an Fx module that provides the configured MetricRecorder and an
// OpenTelemetryTracer as metrics.Tracer.
var Module = fx.Options(
	fx.Provide(NewMetricRecorder),
	fx.Provide(NewFxTracerProvider),
	fx.Provide(fx.Annotate(
		NewOpenTelemetryTracer,
		fx.As(new(metrics.Tracer)),
	)),
)
