package repository

import (
	"context"

	model "github.com/bryant1410/jsr352/pkg/batch/core/domain/model"
)

// StepExecution stores step executions and their checkpoints.
type StepExecution interface {
	CreateStepExecution(ctx context.Context, execution *model.StepExecution) error
	// UpdateStepExecution stores the counters, status and checkpoint of a step execution
	// and increments its Version.
	UpdateStepExecution(ctx context.Context, execution *model.StepExecution) error
	GetStepExecution(ctx context.Context, stepExecutionID string) (*model.StepExecution, error)
	// GetStepExecutions returns the step executions of a job execution in creation order.
	GetStepExecutions(ctx context.Context, jobExecutionID string) ([]*model.StepExecution, error)
	// FindLatestStepExecution returns the newest execution of stepName across every job
	// execution of the instance.
	FindLatestStepExecution(ctx context.Context, instanceID, stepName string) (*model.StepExecution, error)
	// GetStepExecutionCount counts the executions of stepName across the instance.
	GetStepExecutionCount(ctx context.Context, instanceID, stepName string) (int, error)
}

// PartitionExecution stores the partition records of partitioned steps.
type PartitionExecution interface {
	CreatePartitionExecution(ctx context.Context, execution *model.PartitionExecution) error
	UpdatePartitionExecution(ctx context.Context, execution *model.PartitionExecution) error
	// GetPartitionExecutions returns the partitions of a step execution ordered by index.
	GetPartitionExecutions(ctx context.Context, stepExecutionID string) ([]*model.PartitionExecution, error)
}
