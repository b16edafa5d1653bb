package repository

import (
	"context"

	model "github.com/bryant1410/jsr352/pkg/batch/core/domain/model"
)

// JobExecution stores job executions.
type JobExecution interface {
	// CreateJobExecution persists a new execution. It fails with InvalidTransition when the
	// instance already has an execution in a non-terminal status.
	CreateJobExecution(ctx context.Context, execution *model.JobExecution) error
	// CreateJobInstanceWithExecution persists a new instance together with its first execution
	// as one operation. instance.Sequence is assigned from the number of instances of the job.
	// Nothing is stored, and the call fails with InvalidTransition, while an instance of the same
	// job with an equal parameters hash has an execution in a non-terminal status.
	CreateJobInstanceWithExecution(ctx context.Context, instance *model.JobInstance, execution *model.JobExecution) error
	// UpdateJobExecution stores the new state of an execution and increments its Version.
	// A status change the job state machine forbids fails with InvalidTransition and the stored
	// record is left untouched.
	UpdateJobExecution(ctx context.Context, execution *model.JobExecution) error
	GetJobExecution(ctx context.Context, executionID string) (*model.JobExecution, error)
	// GetJobExecutions returns the executions of an instance, oldest first.
	GetJobExecutions(ctx context.Context, instanceID string) ([]*model.JobExecution, error)
	FindLatestJobExecution(ctx context.Context, instanceID string) (*model.JobExecution, error)
	// FindRunningJobExecutions returns the non-terminal executions of jobName.
	FindRunningJobExecutions(ctx context.Context, jobName string) ([]*model.JobExecution, error)
}
