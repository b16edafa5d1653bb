package metrics

import (
	"context"

	model "github.com/bryant1410/jsr352/pkg/batch/core/domain/model"
)

// Tracer creates spans around job, step and chunk execution.
// The returned function ends the span and should be deferred.
type Tracer interface {
	StartJobSpan(ctx context.Context, execution *model.JobExecution) (context.Context, func())
	StartStepSpan(ctx context.Context, execution *model.StepExecution) (context.Context, func())
	// StartChunkSpan starts a span for one chunk transaction of the step execution.
	StartChunkSpan(ctx context.Context, execution *model.StepExecution, chunk int) (context.Context, func())

	// RecordError records err on the current span.
	RecordError(ctx context.Context, module string, err error)
	// RecordEvent adds an event to the current span.
	RecordEvent(ctx context.Context, name string, attributes map[string]interface{})
}
