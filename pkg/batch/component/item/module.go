package item

import (
	"context"

	"go.uber.org/fx"

	"github.com/bryant1410/jsr352/pkg/batch/component/artifact"
	port "github.com/bryant1410/jsr352/pkg/batch/core/application/port"
)

// Artifact names of the generic item components.
const (
	NoOpItemReaderRef             = "noOpItemReader"
	NoOpItemWriterRef             = "noOpItemWriter"
	PassThroughItemProcessorRef   = "passThroughItemProcessor"
	SequenceItemReaderRef         = "sequenceItemReader"
	ExecutionContextItemWriterRef = "executionContextItemWriter"
)

func executionContextWriterBuilder(ctx context.Context, sc *port.StepContext) (any, error) {
	return artifact.Bound(func() *ExecutionContextItemWriter {
		return NewExecutionContextItemWriter(sc, "")
	})(ctx, sc)
}

// Register binds the generic item components in r.
func Register(r *artifact.Registry) {
	r.Register(NoOpItemReaderRef, artifact.Bound(NewNoOpItemReader))
	r.Register(NoOpItemWriterRef, artifact.Bound(NewNoOpItemWriter))
	r.Register(PassThroughItemProcessorRef, artifact.Bound(NewPassThroughItemProcessor))
	r.Register(SequenceItemReaderRef, artifact.Bound(func() *SequenceItemReader { return NewSequenceItemReader(0) }))
	r.Register(ExecutionContextItemWriterRef, executionContextWriterBuilder)
}

// Module contributes the generic item components to the artifact registry.
var Module = fx.Options(
	artifact.Provide(NoOpItemReaderRef, artifact.Bound(NewNoOpItemReader)),
	artifact.Provide(NoOpItemWriterRef, artifact.Bound(NewNoOpItemWriter)),
	artifact.Provide(PassThroughItemProcessorRef, artifact.Bound(NewPassThroughItemProcessor)),
	artifact.Provide(SequenceItemReaderRef, artifact.Bound(func() *SequenceItemReader { return NewSequenceItemReader(0) })),
	artifact.Provide(ExecutionContextItemWriterRef, executionContextWriterBuilder),
)
