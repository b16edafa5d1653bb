package port

import (
	"context"

	model "github.com/bryant1410/jsr352/pkg/batch/core/domain/model"
)

// PartitionMapper produces the partition plan of a step at run time.
type PartitionMapper interface {
	MapPartitions(ctx context.Context, sc *StepContext) (*model.PartitionPlan, error)
}

// PartitionCollector gathers data inside a partition for the step's analyzer.
// It is called once when the partition finishes.
type PartitionCollector interface {
	CollectPartitionData(ctx context.Context, sc *StepContext) (any, error)
}

// PartitionAnalyzer receives the outcome of every partition, in completion order.
// sc is the context of the partitioned step, so SetExitStatus sets the step's exit status.
type PartitionAnalyzer interface {
	AnalyzeStatus(ctx context.Context, sc *StepContext, batchStatus model.BatchStatus, exitStatus model.ExitStatus) error
}

// CollectorDataAnalyzer receives the data of partition collectors, in completion order.
type CollectorDataAnalyzer interface {
	AnalyzeCollectorData(ctx context.Context, sc *StepContext, data any) error
}

// PartitionReducer brackets the whole partitioned step.
type PartitionReducer interface {
	BeginPartitionedStep(ctx context.Context, sc *StepContext) error
	BeforePartitionedStepCompletion(ctx context.Context, sc *StepContext) error
	RollbackPartitionedStep(ctx context.Context, sc *StepContext) error
	// AfterPartitionedStepCompletion receives the final status of the step.
	AfterPartitionedStepCompletion(ctx context.Context, sc *StepContext, status model.BatchStatus) error
}
