// Package step runs one execution of a step definition: it creates and persists the
// StepExecution record, brackets the work with step listeners, and dispatches to the chunk,
// tasklet or partition implementation.
package step

import (
	"context"
	"fmt"
	"time"

	port "github.com/bryant1410/jsr352/pkg/batch/core/application/port"
	model "github.com/bryant1410/jsr352/pkg/batch/core/domain/model"
	"github.com/bryant1410/jsr352/pkg/batch/engine/step/item"
	"github.com/bryant1410/jsr352/pkg/batch/engine/step/partition"
	"github.com/bryant1410/jsr352/pkg/batch/engine/step/scope"
	"github.com/bryant1410/jsr352/pkg/batch/engine/step/tasklet"
	exception "github.com/bryant1410/jsr352/pkg/batch/support/util/exception"
	logger "github.com/bryant1410/jsr352/pkg/batch/support/util/logger"
)

const module = "StepExecutor"

// Executor runs step executions with a shared set of engine services.
type Executor struct {
	svc scope.Services
}

// NewExecutor creates an Executor. Unset optional services get their no-op defaults.
func NewExecutor(svc scope.Services) *Executor {
	return &Executor{svc: svc.WithDefaults()}
}

// Request describes one step execution to run.
type Request struct {
	JobExecution  *model.JobExecution
	JobDefinition *model.JobDefinition
	Step          *model.StepDefinition
	// Prior is the latest execution of the step in the job instance, or nil. An incomplete prior
	// execution is resumed from its checkpoint and persistent user data.
	Prior *model.StepExecution
}

// Execute runs the step of req and returns its persisted execution record.
//
// The returned record is in a terminal status. An error is returned when the step FAILED; it is
// the failure that caused it. A stop request is observed through ctx and ends the step STOPPED
// without error.
func (e *Executor) Execute(ctx context.Context, req Request) (*model.StepExecution, error) {
	def := req.Step
	cbCtx := context.WithoutCancel(ctx)
	se := model.NewStepExecution(req.JobExecution.ID, def.Name)

	resume := req.Prior != nil && req.Prior.Status != model.BatchStatusCompleted
	if resume {
		if req.Prior.Checkpoint != nil {
			se.Checkpoint = req.Prior.Checkpoint.Copy()
			se.StepMetrics = req.Prior.Checkpoint.Metrics
		}
		se.PersistentData = req.Prior.PersistentData.Copy()
		logger.Infof("StepExecutor: Resuming step '%s' from execution %s. Execution ID: %s", def.Name, req.Prior.ID, se.ID)
	}
	if err := e.svc.Repository.CreateStepExecution(cbCtx, se); err != nil {
		return nil, exception.NewRepositoryError(module, fmt.Sprintf("failed to create execution of step '%s'", def.Name), err, false)
	}

	ctx, endSpan := e.svc.Tracer.StartStepSpan(ctx, se)
	defer endSpan()
	started := time.Now()

	se.MarkStarted()
	if err := e.svc.Repository.UpdateStepExecution(cbCtx, se); err != nil {
		return se, e.fail(cbCtx, se, exception.NewRepositoryError(module, "failed to mark step started", err, false))
	}
	e.svc.Recorder.RecordStepStart(cbCtx, se)
	logger.Infof("StepExecutor: Step '%s' started. Execution ID: %s", def.Name, se.ID)

	sc := port.NewStepContext(req.JobExecution, req.JobDefinition, def, se, scope.MergeProperties(nil, def.Properties),
		func(ctx context.Context) error { return e.svc.Repository.UpdateStepExecution(ctx, se) })

	listeners, err := scope.ResolveListeners(cbCtx, e.svc.Artifacts, def.Listeners, sc)
	if err != nil {
		return se, e.fail(cbCtx, se, err)
	}
	for _, l := range listeners.Step {
		l.BeforeStep(cbCtx, se)
	}

	var status model.BatchStatus
	if def.Partition != nil {
		var prior *model.StepExecution
		if resume {
			prior = req.Prior
		}
		status, err = partition.NewCoordinator(e.svc, e.runPartition).Execute(ctx, sc, prior)
	} else {
		status, err = e.run(ctx, sc, listeners)
	}

	if err != nil {
		e.svc.Tracer.RecordError(ctx, module, err)
		se.MarkFailed(err)
	} else {
		se.Finish(status)
	}

	for _, l := range listeners.Step {
		l.AfterStep(cbCtx, se)
	}
	if uerr := e.svc.Repository.UpdateStepExecution(cbCtx, se); uerr != nil {
		logger.Errorf("StepExecutor: Failed to persist final state of step '%s': %v", def.Name, uerr)
		if err == nil {
			err = exception.NewRepositoryError(module, "failed to persist final step state", uerr, false)
			se.MarkFailed(err)
		}
	}
	e.svc.Recorder.RecordStepEnd(cbCtx, se)
	e.svc.Recorder.RecordDuration(cbCtx, "step", time.Since(started), map[string]string{"step": def.Name, "status": string(se.Status)})
	logger.Infof("StepExecutor: Step '%s' finished with status %s (exit status %s). Execution ID: %s", def.Name, se.Status, se.ExitStatus, se.ID)
	return se, err
}

// run executes the chunk or tasklet work of sc.
func (e *Executor) run(ctx context.Context, sc *port.StepContext, listeners *scope.Listeners) (model.BatchStatus, error) {
	cbCtx := context.WithoutCancel(ctx)
	if sc.Definition.Chunk != nil {
		s, err := item.Build(cbCtx, sc, e.svc, listeners)
		if err != nil {
			return model.BatchStatusFailed, err
		}
		return s.Execute(ctx, sc)
	}
	s, err := tasklet.Build(cbCtx, sc, e.svc)
	if err != nil {
		return model.BatchStatusFailed, err
	}
	return s.Execute(ctx, sc)
}

// runPartition runs one partition with its own instances of the step's chunk-level listeners.
// Step listeners are only called for the partitioned step as a whole.
func (e *Executor) runPartition(ctx context.Context, psc *port.StepContext) (model.BatchStatus, error) {
	listeners, err := scope.ResolveListeners(context.WithoutCancel(ctx), e.svc.Artifacts, psc.Definition.Listeners, psc)
	if err != nil {
		return model.BatchStatusFailed, err
	}
	listeners.Step = nil
	return e.run(ctx, psc, listeners)
}

func (e *Executor) fail(ctx context.Context, se *model.StepExecution, err error) error {
	se.MarkFailed(err)
	if uerr := e.svc.Repository.UpdateStepExecution(ctx, se); uerr != nil {
		logger.Errorf("StepExecutor: Failed to persist failure of step '%s': %v", se.StepName, uerr)
	}
	e.svc.Recorder.RecordStepEnd(ctx, se)
	logger.Errorf("StepExecutor: Step '%s' failed: %v. Execution ID: %s", se.StepName, err, se.ID)
	return err
}
