package metrics

import (
	"context"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	model "github.com/bryant1410/jsr352/pkg/batch/core/domain/model"
	metrics "github.com/bryant1410/jsr352/pkg/batch/core/metrics"
	logger "github.com/bryant1410/jsr352/pkg/batch/support/util/logger"
)

// PrometheusRecorder is a Prometheus implementation of the metrics.MetricRecorder interface.
type PrometheusRecorder struct {
	registry *prometheus.Registry

	// Job Metrics
	jobDurationSeconds *prometheus.HistogramVec
	jobStatusCounter   *prometheus.CounterVec

	// Step Metrics
	stepDurationSeconds *prometheus.HistogramVec
	stepStatusCounter   *prometheus.CounterVec
	stepReadCount       *prometheus.CounterVec
	stepProcessCount    *prometheus.CounterVec
	stepWriteCount      *prometheus.CounterVec
	stepFilterCount     *prometheus.CounterVec
	stepCommitCount     *prometheus.CounterVec
	stepRollbackCount   *prometheus.CounterVec

	// Item Metrics
	itemSkipCounter  *prometheus.CounterVec
	itemRetryCounter *prometheus.CounterVec

	operationDurationSeconds *prometheus.HistogramVec
}

// NewPrometheusRecorder creates a recorder whose metrics are registered, with the Go and process
// collectors, on a registry of its own. namespace prefixes every metric name and may be empty.
func NewPrometheusRecorder(namespace string) *PrometheusRecorder {
	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector())
	registry.MustRegister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	counter := func(name, help string, labels ...string) *prometheus.CounterVec {
		return prometheus.NewCounterVec(prometheus.CounterOpts{Namespace: namespace, Name: name, Help: help}, labels)
	}
	histogram := func(name, help string, labels ...string) *prometheus.HistogramVec {
		return prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      name,
			Help:      help,
			Buckets:   prometheus.DefBuckets,
		}, labels)
	}

	r := &PrometheusRecorder{
		registry:            registry,
		jobDurationSeconds:  histogram("job_duration_seconds", "Duration of batch job executions.", "job_name", "status", "exit_status"),
		jobStatusCounter:    counter("job_status_total", "Total number of batch job executions by status.", "job_name", "status"),
		stepDurationSeconds: histogram("step_duration_seconds", "Duration of batch step executions.", "step_name", "status", "exit_status"),
		stepStatusCounter:   counter("step_status_total", "Total number of batch step executions by status.", "step_name", "status"),
		stepReadCount:       counter("step_read_total", "Total items read by step.", "step_name"),
		stepProcessCount:    counter("step_process_total", "Total items processed by step.", "step_name"),
		stepWriteCount:      counter("step_write_total", "Total items written by step.", "step_name"),
		stepFilterCount:     counter("step_filter_total", "Total items filtered by step.", "step_name"),
		stepCommitCount:     counter("step_commit_total", "Total chunk commits by step.", "step_name"),
		stepRollbackCount:   counter("step_rollback_total", "Total chunk rollbacks by step.", "step_name"),
		itemSkipCounter:     counter("item_skip_total", "Total items skipped by step and stage.", "step_name", "stage"),
		itemRetryCounter:    counter("item_retry_total", "Total retried failures by step and stage.", "step_name", "stage"),
		operationDurationSeconds: histogram("operation_duration_seconds", "Duration of named engine operations.",
			"operation", "status"),
	}

	registry.MustRegister(
		r.jobDurationSeconds,
		r.jobStatusCounter,
		r.stepDurationSeconds,
		r.stepStatusCounter,
		r.stepReadCount,
		r.stepProcessCount,
		r.stepWriteCount,
		r.stepFilterCount,
		r.stepCommitCount,
		r.stepRollbackCount,
		r.itemSkipCounter,
		r.itemRetryCounter,
		r.operationDurationSeconds,
	)
	return r
}

// GetRegistry returns the Prometheus registry.
func (r *PrometheusRecorder) GetRegistry() *prometheus.Registry {
	return r.registry
}

// RecordJobStart records the start of a JobExecution.
func (r *PrometheusRecorder) RecordJobStart(ctx context.Context, execution *model.JobExecution) {
	r.jobStatusCounter.WithLabelValues(execution.JobName, string(execution.Status)).Inc()
	logger.Debugf("Metrics: Job '%s' started.", execution.JobName)
}

// RecordJobEnd records the end of a JobExecution.
func (r *PrometheusRecorder) RecordJobEnd(ctx context.Context, execution *model.JobExecution) {
	r.jobStatusCounter.WithLabelValues(execution.JobName, string(execution.Status)).Inc()
	if execution.EndTime == nil || execution.StartTime.IsZero() {
		return
	}
	duration := execution.EndTime.Sub(execution.StartTime).Seconds()
	r.jobDurationSeconds.WithLabelValues(
		execution.JobName,
		string(execution.Status),
		string(execution.ExitStatus),
	).Observe(duration)

	logger.Debugf("Metrics: Job '%s' ended. Duration: %.3fs", execution.JobName, duration)
}

// RecordStepStart records the start of a StepExecution.
func (r *PrometheusRecorder) RecordStepStart(ctx context.Context, execution *model.StepExecution) {
	r.stepStatusCounter.WithLabelValues(execution.StepName, string(execution.Status)).Inc()
	logger.Debugf("Metrics: Step '%s' started.", execution.StepName)
}

// RecordStepEnd records the end of a StepExecution. Item counters are incremented as items
// flow, so only the status and duration are recorded here.
func (r *PrometheusRecorder) RecordStepEnd(ctx context.Context, execution *model.StepExecution) {
	r.stepStatusCounter.WithLabelValues(execution.StepName, string(execution.Status)).Inc()
	if execution.EndTime == nil || execution.StartTime.IsZero() {
		return
	}
	duration := execution.EndTime.Sub(execution.StartTime).Seconds()
	r.stepDurationSeconds.WithLabelValues(
		execution.StepName,
		string(execution.Status),
		string(execution.ExitStatus),
	).Observe(duration)

	logger.Debugf("Metrics: Step '%s' ended. Duration: %.3fs", execution.StepName, duration)
}

// RecordItemRead records successful item reads.
func (r *PrometheusRecorder) RecordItemRead(ctx context.Context, stepName string) {
	r.stepReadCount.WithLabelValues(stepName).Inc()
}

// RecordItemProcess records successful item processing.
func (r *PrometheusRecorder) RecordItemProcess(ctx context.Context, stepName string) {
	r.stepProcessCount.WithLabelValues(stepName).Inc()
}

// RecordItemFilter records items the processor filtered out.
func (r *PrometheusRecorder) RecordItemFilter(ctx context.Context, stepName string) {
	r.stepFilterCount.WithLabelValues(stepName).Inc()
}

// RecordItemWrite records successful item writes.
func (r *PrometheusRecorder) RecordItemWrite(ctx context.Context, stepName string, count int) {
	r.stepWriteCount.WithLabelValues(stepName).Add(float64(count))
}

// RecordItemSkip records item skips.
func (r *PrometheusRecorder) RecordItemSkip(ctx context.Context, stepName, stage string) {
	r.itemSkipCounter.WithLabelValues(stepName, stage).Inc()
}

// RecordItemRetry records item retries.
func (r *PrometheusRecorder) RecordItemRetry(ctx context.Context, stepName, stage string) {
	r.itemRetryCounter.WithLabelValues(stepName, stage).Inc()
}

// RecordChunkCommit records chunk commits.
func (r *PrometheusRecorder) RecordChunkCommit(ctx context.Context, stepName string, count int) {
	r.stepCommitCount.WithLabelValues(stepName).Inc()
}

// RecordChunkRollback records chunk rollbacks.
func (r *PrometheusRecorder) RecordChunkRollback(ctx context.Context, stepName string) {
	r.stepRollbackCount.WithLabelValues(stepName).Inc()
}

// RecordDuration records the execution time of a named operation. The "status" tag, when
// present, becomes a label; other tags are ignored.
func (r *PrometheusRecorder) RecordDuration(ctx context.Context, name string, duration time.Duration, tags map[string]string) {
	r.operationDurationSeconds.WithLabelValues(name, tags["status"]).Observe(duration.Seconds())
}

var _ metrics.MetricRecorder = (*PrometheusRecorder)(nil)
