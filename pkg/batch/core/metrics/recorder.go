// Package metrics defines the metric and tracing hooks the engine calls while it runs jobs.
// Backends live in infrastructure/metrics; the no-op implementations here are the defaults.
package metrics

import (
	"context"
	"time"

	model "github.com/bryant1410/jsr352/pkg/batch/core/domain/model"
)

// MetricRecorder records metrics about job, step, chunk and item events.
type MetricRecorder interface {
	// RecordJobStart records the start of a JobExecution.
	RecordJobStart(ctx context.Context, execution *model.JobExecution)
	// RecordJobEnd records the end of a JobExecution.
	RecordJobEnd(ctx context.Context, execution *model.JobExecution)
	// RecordStepStart records the start of a StepExecution.
	RecordStepStart(ctx context.Context, execution *model.StepExecution)
	// RecordStepEnd records the end of a StepExecution.
	RecordStepEnd(ctx context.Context, execution *model.StepExecution)

	RecordItemRead(ctx context.Context, stepName string)
	RecordItemProcess(ctx context.Context, stepName string)
	RecordItemFilter(ctx context.Context, stepName string)
	RecordItemWrite(ctx context.Context, stepName string, count int)
	// RecordItemSkip records a skipped item. stage is "read", "process" or "write".
	RecordItemSkip(ctx context.Context, stepName, stage string)
	// RecordItemRetry records a retried failure. stage is "read", "process", "write" or "commit".
	RecordItemRetry(ctx context.Context, stepName, stage string)

	// RecordChunkCommit records a committed chunk of count written items.
	RecordChunkCommit(ctx context.Context, stepName string, count int)
	RecordChunkRollback(ctx context.Context, stepName string)

	// RecordDuration records the length of a named operation.
	RecordDuration(ctx context.Context, name string, duration time.Duration, tags map[string]string)
}
