package usecase

import (
	"context"

	model "github.com/bryant1410/jsr352/pkg/batch/core/domain/model"
)

// JobOperator starts, stops, restarts and abandons job executions, and answers queries about them.
// Operations on unknown ids fail with an error matching exception.ErrNotFound; operations that are
// incompatible with the current status fail with exception.ErrInvalidTransition and change nothing.
type JobOperator interface {
	JobExplorer

	// Start creates a new job instance of jobName and launches its first execution.
	// It returns the execution as it was stored before it began to run.
	Start(ctx context.Context, jobName string, params model.JobParameters) (*model.JobExecution, error)

	// Stop requests a running execution to stop. A STARTING execution is stopped at once,
	// a STARTED one moves to STOPPING and stops at its next chunk or element boundary.
	Stop(ctx context.Context, executionID string) error

	// Restart launches a new execution of the instance of the STOPPED or FAILED execution
	// executionID. params override the previous parameters; keys absent from params are inherited.
	Restart(ctx context.Context, executionID string, params model.JobParameters) (*model.JobExecution, error)

	// Abandon marks a STOPPED or FAILED execution ABANDONED.
	Abandon(ctx context.Context, executionID string) error

	// WaitForCompletion blocks until the execution launched by this operator has stored its final
	// status, or ctx is done, and returns the stored execution.
	WaitForCompletion(ctx context.Context, executionID string) (*model.JobExecution, error)
}

// JobExplorer is an interface for querying batch metadata (job definitions, JobInstance,
// JobExecution, StepExecution and PartitionExecution).
type JobExplorer interface {
	// GetJobExecution retrieves a JobExecution by its ID.
	GetJobExecution(ctx context.Context, executionID string) (*model.JobExecution, error)

	// GetStepExecutions retrieves the step executions run by a JobExecution, oldest first.
	GetStepExecutions(ctx context.Context, executionID string) ([]*model.StepExecution, error)

	// GetPartitionExecutions retrieves the partitions of a partitioned StepExecution.
	GetPartitionExecutions(ctx context.Context, stepExecutionID string) ([]*model.PartitionExecution, error)

	// GetParameters retrieves the JobParameters for the specified JobExecution.
	GetParameters(ctx context.Context, executionID string) (model.JobParameters, error)

	// GetJobs retrieves every stored job definition.
	GetJobs(ctx context.Context) ([]*model.JobDefinition, error)

	// GetJobInstances retrieves the instances of jobName, newest first.
	GetJobInstances(ctx context.Context, jobName string) ([]*model.JobInstance, error)

	// GetJobNames retrieves the names of jobs that have at least one instance.
	GetJobNames(ctx context.Context) ([]string, error)

	// GetRunningExecutions retrieves the non-terminal executions of jobName.
	GetRunningExecutions(ctx context.Context, jobName string) ([]*model.JobExecution, error)
}
