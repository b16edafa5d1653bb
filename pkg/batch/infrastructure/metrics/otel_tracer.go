package metrics

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	model "github.com/bryant1410/jsr352/pkg/batch/core/domain/model"
	metrics "github.com/bryant1410/jsr352/pkg/batch/core/metrics"
	logger "github.com/bryant1410/jsr352/pkg/batch/support/util/logger"
)

// InstrumentationName names the tracer the engine's spans are created with.
const InstrumentationName = "github.com/bryant1410/jsr352/pkg/batch"

// OpenTelemetryTracer is an implementation of metrics.Tracer using OpenTelemetry.
type OpenTelemetryTracer struct {
	tracer trace.Tracer
}

// NewOpenTelemetryTracer creates a tracer on tp.
func NewOpenTelemetryTracer(tp trace.TracerProvider) *OpenTelemetryTracer {
	return &OpenTelemetryTracer{tracer: tp.Tracer(InstrumentationName)}
}

// StartJobSpan starts a new span for a JobExecution. The span ends with the status the
// execution holds at that time.
func (t *OpenTelemetryTracer) StartJobSpan(ctx context.Context, execution *model.JobExecution) (context.Context, func()) {
	ctx, span := t.tracer.Start(ctx, "batch.job "+execution.JobName,
		trace.WithAttributes(
			attribute.String("batch.job.name", execution.JobName),
			attribute.String("batch.job.execution_id", execution.ID),
			attribute.String("batch.job.instance_id", execution.JobInstanceID),
			attribute.Int("batch.job.restart_count", execution.RestartCount),
		))
	logger.Debugf("Tracer: started job span for Job '%s'. Execution ID: %s", execution.JobName, execution.ID)
	return ctx, func() {
		span.SetAttributes(
			attribute.String("batch.status", string(execution.Status)),
			attribute.String("batch.exit_status", string(execution.ExitStatus)),
		)
		if execution.Status == model.BatchStatusFailed {
			span.SetStatus(codes.Error, string(execution.ExitStatus))
		}
		span.End()
	}
}

// StartStepSpan starts a new span for a StepExecution.
func (t *OpenTelemetryTracer) StartStepSpan(ctx context.Context, execution *model.StepExecution) (context.Context, func()) {
	ctx, span := t.tracer.Start(ctx, "batch.step "+execution.StepName,
		trace.WithAttributes(
			attribute.String("batch.step.name", execution.StepName),
			attribute.String("batch.step.execution_id", execution.ID),
			attribute.String("batch.job.execution_id", execution.JobExecutionID),
		))
	return ctx, func() {
		span.SetAttributes(
			attribute.String("batch.status", string(execution.Status)),
			attribute.Int("batch.step.read_count", execution.ReadCount),
			attribute.Int("batch.step.write_count", execution.WriteCount),
			attribute.Int("batch.step.commit_count", execution.CommitCount),
			attribute.Int("batch.step.rollback_count", execution.RollbackCount),
		)
		if execution.Status == model.BatchStatusFailed {
			span.SetStatus(codes.Error, string(execution.ExitStatus))
		}
		span.End()
	}
}

// StartChunkSpan starts a span for one chunk transaction.
func (t *OpenTelemetryTracer) StartChunkSpan(ctx context.Context, execution *model.StepExecution, chunk int) (context.Context, func()) {
	ctx, span := t.tracer.Start(ctx, "batch.chunk",
		trace.WithAttributes(
			attribute.String("batch.step.name", execution.StepName),
			attribute.Int("batch.chunk.number", chunk),
		))
	return ctx, func() { span.End() }
}

// RecordError records an error in the current span.
func (t *OpenTelemetryTracer) RecordError(ctx context.Context, module string, err error) {
	span := trace.SpanFromContext(ctx)
	if !span.IsRecording() || err == nil {
		return
	}
	span.RecordError(err, trace.WithAttributes(attribute.String("batch.module", module)))
}

// RecordEvent records an event in the current span.
func (t *OpenTelemetryTracer) RecordEvent(ctx context.Context, name string, attributes map[string]interface{}) {
	span := trace.SpanFromContext(ctx)
	if !span.IsRecording() {
		return
	}
	attrs := make([]attribute.KeyValue, 0, len(attributes))
	for k, v := range attributes {
		switch val := v.(type) {
		case string:
			attrs = append(attrs, attribute.String(k, val))
		case int:
			attrs = append(attrs, attribute.Int(k, val))
		case int64:
			attrs = append(attrs, attribute.Int64(k, val))
		case float64:
			attrs = append(attrs, attribute.Float64(k, val))
		case bool:
			attrs = append(attrs, attribute.Bool(k, val))
		default:
			attrs = append(attrs, attribute.String(k, fmt.Sprint(val)))
		}
	}
	span.AddEvent(name, trace.WithAttributes(attrs...))
}

var _ metrics.Tracer = (*OpenTelemetryTracer)(nil)
