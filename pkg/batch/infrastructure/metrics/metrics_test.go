package metrics_test

import (
	"context"
	"errors"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"

	config "github.com/bryant1410/jsr352/pkg/batch/core/config"
	model "github.com/bryant1410/jsr352/pkg/batch/core/domain/model"
	coremetrics "github.com/bryant1410/jsr352/pkg/batch/core/metrics"
	"github.com/bryant1410/jsr352/pkg/batch/infrastructure/metrics"
)

func finishedJob(t *testing.T, status model.BatchStatus) *model.JobExecution {
	t.Helper()
	ji, err := model.NewJobInstance("report", model.NewJobParameters(), 1)
	require.NoError(t, err)
	je := model.NewJobExecution(ji, model.NewJobParameters())
	require.NoError(t, je.TransitionTo(model.BatchStatusStarted))
	require.NoError(t, je.TransitionTo(status))
	return je
}

func TestPrometheusRecorder_Counters(t *testing.T) {
	r := metrics.NewPrometheusRecorder("test")
	ctx := context.Background()

	r.RecordItemRead(ctx, "load")
	r.RecordItemRead(ctx, "load")
	r.RecordItemFilter(ctx, "load")
	r.RecordItemWrite(ctx, "load", 5)
	r.RecordItemSkip(ctx, "load", "process")
	r.RecordItemRetry(ctx, "load", "write")
	r.RecordChunkCommit(ctx, "load", 5)
	r.RecordChunkRollback(ctx, "load")

	expected := `
# HELP test_step_read_total Total items read by step.
# TYPE test_step_read_total counter
test_step_read_total{step_name="load"} 2
# HELP test_step_write_total Total items written by step.
# TYPE test_step_write_total counter
test_step_write_total{step_name="load"} 5
# HELP test_item_skip_total Total items skipped by step and stage.
# TYPE test_item_skip_total counter
test_item_skip_total{stage="process",step_name="load"} 1
`
	assert.NoError(t, testutil.GatherAndCompare(r.GetRegistry(), strings.NewReader(expected),
		"test_step_read_total", "test_step_write_total", "test_item_skip_total"))

	n, err := testutil.GatherAndCount(r.GetRegistry(),
		"test_step_filter_total", "test_step_commit_total", "test_step_rollback_total", "test_item_retry_total")
	require.NoError(t, err)
	assert.Equal(t, 4, n)
}

func TestPrometheusRecorder_JobAndStepDurations(t *testing.T) {
	r := metrics.NewPrometheusRecorder("")
	ctx := context.Background()
	je := finishedJob(t, model.BatchStatusCompleted)

	r.RecordJobStart(ctx, je)
	r.RecordJobEnd(ctx, je)
	r.RecordDuration(ctx, "job", 2*time.Second, map[string]string{"status": "COMPLETED"})

	se := model.NewStepExecution(je.ID, "load")
	se.MarkStarted()
	se.MarkCompleted()
	r.RecordStepStart(ctx, se)
	r.RecordStepEnd(ctx, se)

	n, err := testutil.GatherAndCount(r.GetRegistry(), "job_duration_seconds", "step_duration_seconds", "operation_duration_seconds")
	require.NoError(t, err)
	assert.Equal(t, 3, n)

	rec := httptest.NewRecorder()
	r.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))
	assert.Contains(t, rec.Body.String(), `job_status_total{job_name="report",status="COMPLETED"} 1`)
}

func TestNewMetricRecorder_DisabledIsNoOp(t *testing.T) {
	cfg := config.NewConfig()
	assert.IsType(t, &coremetrics.NoOpMetricRecorder{}, metrics.NewMetricRecorder(cfg))

	cfg.Metrics.Enabled = true
	assert.IsType(t, &metrics.PrometheusRecorder{}, metrics.NewMetricRecorder(cfg))
}

func setupTracer() (*tracetest.SpanRecorder, *metrics.OpenTelemetryTracer) {
	sr := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(sr))
	return sr, metrics.NewOpenTelemetryTracer(tp)
}

func TestOpenTelemetryTracer_NestedSpans(t *testing.T) {
	sr, tracer := setupTracer()
	je := finishedJob(t, model.BatchStatusFailed)
	se := model.NewStepExecution(je.ID, "load")

	jobCtx, endJob := tracer.StartJobSpan(context.Background(), je)
	stepCtx, endStep := tracer.StartStepSpan(jobCtx, se)
	chunkCtx, endChunk := tracer.StartChunkSpan(stepCtx, se, 1)
	tracer.RecordError(chunkCtx, "ChunkStep", errors.New("write failed"))
	tracer.RecordEvent(chunkCtx, "skip", map[string]interface{}{"stage": "write", "count": 1})
	endChunk()
	endStep()
	endJob()

	spans := sr.Ended()
	require.Len(t, spans, 3)
	chunk, step, job := spans[0], spans[1], spans[2]
	assert.Equal(t, "batch.chunk", chunk.Name())
	assert.Equal(t, "batch.step load", step.Name())
	assert.Equal(t, "batch.job report", job.Name())
	assert.Equal(t, step.SpanContext().SpanID(), chunk.Parent().SpanID())
	assert.Equal(t, job.SpanContext().SpanID(), step.Parent().SpanID())

	require.Len(t, chunk.Events(), 2)
	assert.Equal(t, "exception", chunk.Events()[0].Name)
	assert.Equal(t, "skip", chunk.Events()[1].Name)
	assert.Equal(t, codes.Error, job.Status().Code)
}

func TestNewTracerProvider_Disabled(t *testing.T) {
	tp, shutdown, err := metrics.NewTracerProvider(context.Background(), config.TracingConfig{})
	require.NoError(t, err)
	_, span := tp.Tracer("x").Start(context.Background(), "op")
	assert.False(t, span.IsRecording())
	assert.NoError(t, shutdown(context.Background()))
}
