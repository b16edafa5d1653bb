// Package restart validates restart requests and prepares the execution that resumes a stopped or
// failed job instance.
package restart

import (
	"context"
	"errors"
	"fmt"

	model "github.com/bryant1410/jsr352/pkg/batch/core/domain/model"
	repository "github.com/bryant1410/jsr352/pkg/batch/core/domain/repository"
	exception "github.com/bryant1410/jsr352/pkg/batch/support/util/exception"
	logger "github.com/bryant1410/jsr352/pkg/batch/support/util/logger"
)

const module = "RestartCoordinator"

// Coordinator prepares restart executions. Steps then resume from their own stored checkpoints
// when the job runner finds their previous executions.
type Coordinator struct {
	repo repository.JobRepository
}

// NewCoordinator creates a Coordinator.
func NewCoordinator(repo repository.JobRepository) *Coordinator {
	return &Coordinator{repo: repo}
}

// Prepare creates and stores the execution restarting executionID with params merged over its
// parameters, and returns it with the job definition to run.
//
// The previous execution must be the latest of its instance and STOPPED or FAILED, and neither the
// job nor any step it left unfinished may be declared non-restartable. Rejected requests leave
// every stored record untouched.
func (c *Coordinator) Prepare(ctx context.Context, executionID string, params model.JobParameters) (*model.JobExecution, *model.JobDefinition, error) {
	prev, err := c.repo.GetJobExecution(ctx, executionID)
	if err != nil {
		return nil, nil, err
	}
	latest, err := c.repo.FindLatestJobExecution(ctx, prev.JobInstanceID)
	if err != nil {
		return nil, nil, err
	}
	if latest.ID != prev.ID {
		return nil, nil, exception.NewRestartNotAllowedError(module,
			fmt.Sprintf("execution %s is not the latest execution of its instance (latest is %s)", prev.ID, latest.ID), nil)
	}
	if !prev.Status.IsRestartable() {
		return nil, nil, exception.NewRestartNotAllowedError(module,
			fmt.Sprintf("execution %s is %s, only STOPPED or FAILED executions can be restarted", prev.ID, prev.Status),
			exception.ErrInvalidTransition)
	}

	def, err := c.repo.GetJob(ctx, prev.JobName)
	if err != nil {
		return nil, nil, err
	}
	if !def.IsRestartable() {
		return nil, nil, exception.NewRestartNotAllowedError(module, fmt.Sprintf("job '%s' is not restartable", def.Name), nil)
	}

	position, err := c.restartPosition(ctx, prev, def)
	if err != nil {
		return nil, nil, err
	}

	instance, err := c.repo.GetJobInstance(ctx, prev.JobInstanceID)
	if err != nil {
		return nil, nil, err
	}
	next := model.NewJobExecution(instance, prev.Parameters.Merge(params))
	next.RestartPosition = position
	next.RestartCount = prev.RestartCount + 1
	next.PreviousExecutionID = prev.ID
	if err := c.repo.CreateJobExecution(ctx, next); err != nil {
		return nil, nil, err
	}
	logger.Infof("RestartCoordinator: Prepared restart %d of job '%s' at element '%s'. Previous execution ID: %s, new execution ID: %s",
		next.RestartCount, prev.JobName, position, prev.ID, next.ID)
	return next, def, nil
}

// restartPosition returns the top-level element enclosing the first unfinished step of prev,
// or the position stored on prev when every step it ran completed.
func (c *Coordinator) restartPosition(ctx context.Context, prev *model.JobExecution, def *model.JobDefinition) (string, error) {
	steps, err := c.repo.GetStepExecutions(ctx, prev.ID)
	if err != nil && !errors.Is(err, exception.ErrNotFound) {
		return "", err
	}
	position := ""
	for _, se := range steps {
		if se.Status == model.BatchStatusCompleted {
			continue
		}
		stepDef, ok := def.FindStep(se.StepName)
		if !ok {
			return "", exception.NewRestartNotAllowedError(module,
				fmt.Sprintf("step '%s' of execution %s is no longer part of job '%s'", se.StepName, prev.ID, def.Name), nil)
		}
		if !stepDef.IsRestartable() {
			return "", exception.NewRestartNotAllowedError(module,
				fmt.Sprintf("step '%s' is not restartable (status %s in execution %s)", se.StepName, se.Status, prev.ID), nil)
		}
		if position == "" {
			position, _ = def.TopLevelElementOf(se.StepName)
		}
	}
	if position == "" {
		position = prev.RestartPosition
	}
	return position, nil
}
