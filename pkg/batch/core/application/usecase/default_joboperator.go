package usecase

import (
	"context"
	"errors"
	"fmt"

	model "github.com/bryant1410/jsr352/pkg/batch/core/domain/model"
	jobRepository "github.com/bryant1410/jsr352/pkg/batch/core/domain/repository"
	"github.com/bryant1410/jsr352/pkg/batch/core/job/restart"
	exception "github.com/bryant1410/jsr352/pkg/batch/support/util/exception"
	logger "github.com/bryant1410/jsr352/pkg/batch/support/util/logger"
)

// DefaultJobOperator is the default implementation of the JobOperator interface.
// It manages batch metadata through a JobRepository and runs executions with a SimpleJobLauncher.
type DefaultJobOperator struct {
	JobExplorer
	jobRepository jobRepository.JobRepository
	jobLauncher   *SimpleJobLauncher
	restarts      *restart.Coordinator
}

// Verify that DefaultJobOperator implements the JobOperator interface.
var _ JobOperator = (*DefaultJobOperator)(nil)

// NewDefaultJobOperator creates a new instance of DefaultJobOperator.
func NewDefaultJobOperator(repo jobRepository.JobRepository, explorer JobExplorer, launcher *SimpleJobLauncher, restarts *restart.Coordinator) *DefaultJobOperator {
	return &DefaultJobOperator{
		JobExplorer:   explorer,
		jobRepository: repo,
		jobLauncher:   launcher,
		restarts:      restarts,
	}
}

// Start creates a new JobInstance of jobName and launches its first execution.
// This is an implementation of the JobOperator interface.
func (o *DefaultJobOperator) Start(ctx context.Context, jobName string, params model.JobParameters) (*model.JobExecution, error) {
	logger.Infof("JobOperator: Start method called. Job Name: %s, Parameters: %s", jobName, params.String())

	def, err := o.jobRepository.GetJob(ctx, jobName)
	if err != nil {
		return nil, exception.NewBatchError("job_operator", fmt.Sprintf("Start processing error: Failed to load job definition '%s'", jobName), err, false, false)
	}
	if err := def.Validate(); err != nil {
		return nil, err
	}

	instance, err := model.NewJobInstance(jobName, params, 0)
	if err != nil {
		return nil, exception.NewValidationError("job_operator", "Start processing error: job parameters cannot be hashed", err)
	}
	execution := model.NewJobExecution(instance, params)
	// The repository rejects the pair while an instance with the same parameters is running.
	if err := o.jobRepository.CreateJobInstanceWithExecution(ctx, instance, execution); err != nil {
		if errors.Is(err, exception.ErrInvalidTransition) {
			return nil, err
		}
		return nil, exception.NewBatchError("job_operator", fmt.Sprintf("Start processing error: Failed to save new JobInstance and JobExecution for '%s'", jobName), err, false, false)
	}
	logger.Infof("Created JobInstance (ID: %s, Sequence: %d) and JobExecution (ID: %s) of Job '%s'.", instance.ID, instance.Sequence, execution.ID, jobName)

	snapshot := execution.Copy()
	o.jobLauncher.Launch(ctx, execution, def)
	return snapshot, nil
}

// Restart restarts the specified JobExecution.
// This is an implementation of the JobOperator interface.
func (o *DefaultJobOperator) Restart(ctx context.Context, executionID string, params model.JobParameters) (*model.JobExecution, error) {
	logger.Infof("JobOperator: Restart method called. Execution ID: %s", executionID)

	execution, def, err := o.restarts.Prepare(ctx, executionID, params)
	if err != nil {
		logger.Warnf("JobOperator: Restart of JobExecution (ID: %s) rejected: %v", executionID, err)
		return nil, err
	}
	snapshot := execution.Copy()
	o.jobLauncher.Launch(ctx, execution, def)

	logger.Infof("Restart of Job '%s' (Execution ID: %s) started. New execution ID: %s", def.Name, executionID, execution.ID)
	return snapshot, nil
}

// Stop stops the specified JobExecution.
// This is an implementation of the JobOperator interface.
func (o *DefaultJobOperator) Stop(ctx context.Context, executionID string) error {
	logger.Infof("JobOperator: Stop method called. Execution ID: %s", executionID)

	// The runner may move the execution from STARTING to STARTED between the read and the
	// write; the second attempt sees the new status.
	var err error
	for attempt := 0; attempt < 2; attempt++ {
		if err = o.requestStop(ctx, executionID); !errors.Is(err, exception.ErrInvalidTransition) || attempt > 0 {
			break
		}
	}
	return err
}

func (o *DefaultJobOperator) requestStop(ctx context.Context, executionID string) error {
	jobExecution, err := o.jobRepository.GetJobExecution(ctx, executionID)
	if err != nil {
		return exception.NewBatchError("job_operator", fmt.Sprintf("Stop processing error: Failed to load JobExecution (ID: %s)", executionID), err, false, false)
	}

	var target model.BatchStatus
	switch jobExecution.Status {
	case model.BatchStatusStarting:
		// Nothing is running yet.
		target = model.BatchStatusStopped
	case model.BatchStatusStarted, model.BatchStatusStopping:
		target = model.BatchStatusStopping
	default:
		logger.Warnf("JobExecution (ID: %s) cannot be stopped as it is already in a finished state (%s).", executionID, jobExecution.Status)
		return exception.NewInvalidTransitionError("job_operator",
			fmt.Sprintf("Stop processing error: JobExecution (ID: %s) is already in a finished state (%s)", executionID, jobExecution.Status))
	}

	if err := jobExecution.TransitionTo(target); err != nil {
		return err
	}
	if err := o.jobRepository.UpdateJobExecution(ctx, jobExecution); err != nil {
		if errors.Is(err, exception.ErrInvalidTransition) {
			return err
		}
		return exception.NewBatchError("job_operator", fmt.Sprintf("Stop processing error: Failed to update JobExecution (ID: %s) status", executionID), err, false, false)
	}
	logger.Infof("Updated JobExecution (ID: %s) status to %s.", executionID, target)

	if !o.jobLauncher.Cancel(executionID) {
		logger.Warnf("No running job found for JobExecution (ID: %s). The stop request is recorded only.", executionID)
		return nil
	}
	logger.Infof("Sent stop signal for JobExecution (ID: %s).", executionID)
	return nil
}

// Abandon abandons the specified JobExecution.
// This is an implementation of the JobOperator interface.
func (o *DefaultJobOperator) Abandon(ctx context.Context, executionID string) error {
	logger.Infof("JobOperator: Abandon method called. Execution ID: %s", executionID)

	jobExecution, err := o.jobRepository.GetJobExecution(ctx, executionID)
	if err != nil {
		return exception.NewBatchError("job_operator", fmt.Sprintf("Abandon processing error: Failed to load JobExecution (ID: %s)", executionID), err, false, false)
	}
	if _, running := o.jobLauncher.Done(executionID); running {
		return exception.NewInvalidTransitionError("job_operator",
			fmt.Sprintf("Abandon processing error: JobExecution (ID: %s) is still running (%s)", executionID, jobExecution.Status))
	}
	// Only STOPPED and FAILED executions can be abandoned (JSR-352 compliant).
	if !jobExecution.Status.IsRestartable() {
		logger.Warnf("JobExecution (ID: %s) cannot be abandoned in status %s.", executionID, jobExecution.Status)
		return exception.NewInvalidTransitionError("job_operator",
			fmt.Sprintf("Abandon processing error: JobExecution (ID: %s) is %s, only STOPPED or FAILED executions can be abandoned", executionID, jobExecution.Status))
	}
	if err := jobExecution.TransitionTo(model.BatchStatusAbandoned); err != nil {
		return err
	}
	if err := o.jobRepository.UpdateJobExecution(ctx, jobExecution); err != nil {
		if errors.Is(err, exception.ErrInvalidTransition) {
			return err
		}
		return exception.NewBatchError("job_operator", fmt.Sprintf("Abandon processing error: Failed to update JobExecution (ID: %s) status", executionID), err, false, false)
	}

	logger.Infof("Successfully abandoned JobExecution (ID: %s).", executionID)
	return nil
}

// WaitForCompletion waits for an execution launched by this operator to finish.
// This is an implementation of the JobOperator interface.
func (o *DefaultJobOperator) WaitForCompletion(ctx context.Context, executionID string) (*model.JobExecution, error) {
	if done, ok := o.jobLauncher.Done(executionID); ok {
		select {
		case <-done:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	return o.GetJobExecution(ctx, executionID)
}
