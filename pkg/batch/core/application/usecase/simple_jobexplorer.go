package usecase

import (
	"context"
	"fmt"

	model "github.com/bryant1410/jsr352/pkg/batch/core/domain/model"
	job "github.com/bryant1410/jsr352/pkg/batch/core/domain/repository"
	exception "github.com/bryant1410/jsr352/pkg/batch/support/util/exception"
	logger "github.com/bryant1410/jsr352/pkg/batch/support/util/logger"
)

// SimpleJobExplorer is a simple implementation of the JobExplorer interface.
// It queries batch metadata using a JobRepository.
type SimpleJobExplorer struct {
	jobRepository job.JobRepository
}

// Verify that SimpleJobExplorer implements the JobExplorer interface.
var _ JobExplorer = (*SimpleJobExplorer)(nil)

// NewSimpleJobExplorer creates a new instance of SimpleJobExplorer.
func NewSimpleJobExplorer(jobRepository job.JobRepository) *SimpleJobExplorer {
	return &SimpleJobExplorer{
		jobRepository: jobRepository,
	}
}

// GetJobExecution retrieves a JobExecution by its ID.
func (e *SimpleJobExplorer) GetJobExecution(ctx context.Context, executionID string) (*model.JobExecution, error) {
	logger.Debugf("JobExplorer: GetJobExecution method called. Execution ID: %s", executionID)
	jobExecution, err := e.jobRepository.GetJobExecution(ctx, executionID)
	if err != nil {
		return nil, exception.NewBatchError("job_explorer", fmt.Sprintf("Failed to retrieve JobExecution (ID: %s)", executionID), err, false, false)
	}
	return jobExecution, nil
}

// GetStepExecutions retrieves the step executions of a JobExecution.
func (e *SimpleJobExplorer) GetStepExecutions(ctx context.Context, executionID string) ([]*model.StepExecution, error) {
	logger.Debugf("JobExplorer: GetStepExecutions method called. Execution ID: %s", executionID)
	steps, err := e.jobRepository.GetStepExecutions(ctx, executionID)
	if err != nil {
		return nil, exception.NewBatchError("job_explorer", fmt.Sprintf("Failed to retrieve StepExecutions of JobExecution (ID: %s)", executionID), err, false, false)
	}
	logger.Debugf("Retrieved %d StepExecutions of JobExecution (ID: %s).", len(steps), executionID)
	return steps, nil
}

// GetPartitionExecutions retrieves the partitions of a StepExecution.
func (e *SimpleJobExplorer) GetPartitionExecutions(ctx context.Context, stepExecutionID string) ([]*model.PartitionExecution, error) {
	logger.Debugf("JobExplorer: GetPartitionExecutions method called. Step Execution ID: %s", stepExecutionID)
	partitions, err := e.jobRepository.GetPartitionExecutions(ctx, stepExecutionID)
	if err != nil {
		return nil, exception.NewBatchError("job_explorer", fmt.Sprintf("Failed to retrieve PartitionExecutions of StepExecution (ID: %s)", stepExecutionID), err, false, false)
	}
	return partitions, nil
}

// GetParameters retrieves the JobParameters for the specified JobExecution.
func (e *SimpleJobExplorer) GetParameters(ctx context.Context, executionID string) (model.JobParameters, error) {
	jobExecution, err := e.GetJobExecution(ctx, executionID)
	if err != nil {
		return model.NewJobParameters(), err
	}
	return jobExecution.Parameters, nil
}

// GetJobs retrieves every stored job definition.
func (e *SimpleJobExplorer) GetJobs(ctx context.Context) ([]*model.JobDefinition, error) {
	jobs, err := e.jobRepository.GetJobs(ctx)
	if err != nil {
		return nil, exception.NewBatchError("job_explorer", "Failed to retrieve job definitions", err, false, false)
	}
	return jobs, nil
}

// GetJobInstances retrieves the instances of jobName. A name that is neither defined nor has
// instances is reported as not found.
func (e *SimpleJobExplorer) GetJobInstances(ctx context.Context, jobName string) ([]*model.JobInstance, error) {
	logger.Debugf("JobExplorer: GetJobInstances method called. Job Name: %s", jobName)
	instances, err := e.jobRepository.GetJobInstances(ctx, jobName)
	if err != nil {
		return nil, exception.NewBatchError("job_explorer", fmt.Sprintf("Failed to retrieve JobInstances of job '%s'", jobName), err, false, false)
	}
	if len(instances) > 0 {
		return instances, nil
	}
	if _, err := e.jobRepository.GetJob(ctx, jobName); err != nil {
		return nil, exception.NewBatchError("job_explorer", fmt.Sprintf("Failed to retrieve JobInstances of job '%s'", jobName), err, false, false)
	}
	return instances, nil
}

// GetJobNames retrieves the names of jobs with instances.
func (e *SimpleJobExplorer) GetJobNames(ctx context.Context) ([]string, error) {
	jobNames, err := e.jobRepository.GetJobNames(ctx)
	if err != nil {
		return nil, exception.NewBatchError("job_explorer", "Failed to retrieve job names", err, false, false)
	}
	logger.Debugf("Retrieved %d job names.", len(jobNames))
	return jobNames, nil
}

// GetRunningExecutions retrieves the non-terminal executions of jobName.
func (e *SimpleJobExplorer) GetRunningExecutions(ctx context.Context, jobName string) ([]*model.JobExecution, error) {
	executions, err := e.jobRepository.FindRunningJobExecutions(ctx, jobName)
	if err != nil {
		return nil, exception.NewBatchError("job_explorer", fmt.Sprintf("Failed to retrieve running executions of job '%s'", jobName), err, false, false)
	}
	return executions, nil
}
