// Package tasklet runs plain steps that call a single Tasklet instead of processing items.
package tasklet

import (
	"context"
	"errors"

	port "github.com/bryant1410/jsr352/pkg/batch/core/application/port"
	model "github.com/bryant1410/jsr352/pkg/batch/core/domain/model"
	metrics "github.com/bryant1410/jsr352/pkg/batch/core/metrics"
	"github.com/bryant1410/jsr352/pkg/batch/engine/step/scope"
	exception "github.com/bryant1410/jsr352/pkg/batch/support/util/exception"
	logger "github.com/bryant1410/jsr352/pkg/batch/support/util/logger"
)

const module = "TaskletStep"

// TaskletStep runs one step or partition execution of a tasklet step.
type TaskletStep struct {
	tasklet port.Tasklet
	tracer  metrics.Tracer
}

// NewTaskletStep creates a new TaskletStep instance. tracer may be nil.
func NewTaskletStep(tasklet port.Tasklet, tracer metrics.Tracer) *TaskletStep {
	if tracer == nil {
		tracer = metrics.NewNoOpTracer()
	}
	return &TaskletStep{tasklet: tasklet, tracer: tracer}
}

// Build resolves the tasklet of sc.Definition and creates the TaskletStep.
func Build(ctx context.Context, sc *port.StepContext, svc scope.Services) (*TaskletStep, error) {
	t, err := scope.Artifact[port.Tasklet](ctx, svc.Artifacts, sc.Definition.TaskletRef, "tasklet", sc)
	if err != nil {
		return nil, err
	}
	return NewTaskletStep(t, svc.Tracer), nil
}

// Execute runs the tasklet. When ctx is cancelled while it runs, a Stoppable tasklet is asked to
// stop and the step ends STOPPED once Execute returns. A non-empty exit status returned by the
// tasklet becomes the exit status of the execution.
func (s *TaskletStep) Execute(ctx context.Context, sc *port.StepContext) (model.BatchStatus, error) {
	name := sc.StepExecution.StepName
	logger.Infof("TaskletStep '%s' executing.", name)

	done := make(chan struct{})
	defer close(done)
	if stoppable, ok := s.tasklet.(port.Stoppable); ok {
		go func() {
			select {
			case <-ctx.Done():
				logger.Infof("TaskletStep '%s': Stop requested, notifying tasklet.", name)
				if err := stoppable.Stop(context.WithoutCancel(ctx)); err != nil {
					logger.Warnf("TaskletStep '%s': Tasklet stop failed: %v", name, err)
				}
			case <-done:
			}
		}()
	}

	exitStatus, err := s.tasklet.Execute(ctx, sc)
	if exitStatus != "" {
		sc.SetExitStatus(exitStatus)
	}
	stopped := ctx.Err() != nil

	switch {
	case err != nil && stopped && errors.Is(err, context.Canceled):
		return model.BatchStatusStopped, nil
	case err != nil:
		s.tracer.RecordError(context.WithoutCancel(ctx), module, err)
		logger.Errorf("TaskletStep '%s' failed: %v", name, err)
		if exception.IsBatchError(err) {
			return model.BatchStatusFailed, err
		}
		return model.BatchStatusFailed, exception.NewBatchError(module, "tasklet '"+name+"' failed", err, false, false)
	case stopped:
		logger.Infof("TaskletStep '%s' stopped.", name)
		return model.BatchStatusStopped, nil
	default:
		logger.Infof("TaskletStep '%s' completed with exit status %s.", name, sc.ExitStatus())
		return model.BatchStatusCompleted, nil
	}
}
