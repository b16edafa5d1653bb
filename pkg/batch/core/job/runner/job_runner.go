// Package runner drives one job execution through its element graph: steps run through the step
// executor, decisions through decider artifacts, splits run their flows in parallel, and the
// transitions of each element choose what runs next.
package runner

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/hashicorp/go-multierror"
	"golang.org/x/sync/errgroup"

	port "github.com/bryant1410/jsr352/pkg/batch/core/application/port"
	model "github.com/bryant1410/jsr352/pkg/batch/core/domain/model"
	"github.com/bryant1410/jsr352/pkg/batch/engine/step"
	"github.com/bryant1410/jsr352/pkg/batch/engine/step/scope"
	exception "github.com/bryant1410/jsr352/pkg/batch/support/util/exception"
	logger "github.com/bryant1410/jsr352/pkg/batch/support/util/logger"
)

const module = "JobRunner"

// JobRunner runs job executions.
type JobRunner struct {
	svc   scope.Services
	steps *step.Executor
}

// NewJobRunner creates a JobRunner. Unset optional services get their no-op defaults.
func NewJobRunner(svc scope.Services) *JobRunner {
	svc = svc.WithDefaults()
	return &JobRunner{svc: svc, steps: step.NewExecutor(svc)}
}

// result is the outcome of running an element or a sequence of elements.
type result struct {
	status model.BatchStatus
	// exit drives the transitions of the element that produced the result.
	exit model.ExitStatus
	// executions are the step executions a following decision is handed.
	executions []*model.StepExecution
	err        error
	// ended is set when an end, fail or stop transition finished the job.
	ended     bool
	jobExit   model.ExitStatus
	restartAt string
}

// jobRun is the state shared by the elements of one job execution.
type jobRun struct {
	je  *model.JobExecution
	def *model.JobDefinition
}

// Run executes je, a STARTING execution of def, and returns once its terminal status is stored.
//
// A stop request is delivered by cancelling ctx; it is observed before each element and inside
// running steps. An execution that was stopped before it could start is left as it is. The
// returned error is the failure that ended the job FAILED, or a repository failure.
func (r *JobRunner) Run(ctx context.Context, je *model.JobExecution, def *model.JobDefinition) error {
	cbCtx := context.WithoutCancel(ctx)
	if err := je.TransitionTo(model.BatchStatusStarted); err != nil {
		return err
	}
	if err := r.svc.Repository.UpdateJobExecution(cbCtx, je); err != nil {
		if errors.Is(err, exception.ErrInvalidTransition) {
			if stored, getErr := r.svc.Repository.GetJobExecution(cbCtx, je.ID); getErr == nil {
				*je = *stored
			}
			logger.Infof("JobRunner: Job '%s' was stopped before it started. Execution ID: %s", je.JobName, je.ID)
			return nil
		}
		return exception.NewRepositoryError(module, "failed to mark job execution started", err, false)
	}

	ctx, endSpan := r.svc.Tracer.StartJobSpan(ctx, je)
	defer endSpan()
	started := time.Now()
	r.svc.Recorder.RecordJobStart(cbCtx, je)
	logger.Infof("JobRunner: Job '%s' started (restart count %d). Execution ID: %s", je.JobName, je.RestartCount, je.ID)

	var res result
	listeners, err := scope.ResolveJobListeners(cbCtx, r.svc.Artifacts, def.Listeners, port.NewJobContext(je, def))
	if err != nil {
		res = result{status: model.BatchStatusFailed, err: err}
	} else {
		for _, l := range listeners {
			l.BeforeJob(cbCtx, je)
		}
		run := &jobRun{je: je, def: def}
		res = r.walk(ctx, run, def.Elements, je.RestartPosition)
	}

	if res.status == model.BatchStatusStopped && je.Status == model.BatchStatusStarted {
		// the stored state machine only reaches STOPPED through STOPPING
		if err := je.TransitionTo(model.BatchStatusStopping); err == nil {
			if err := r.svc.Repository.UpdateJobExecution(cbCtx, je); err != nil {
				logger.Warnf("JobRunner: Failed to persist STOPPING for job '%s': %v", je.JobName, err)
			}
		}
	}
	r.finish(je, res)
	for _, l := range listeners {
		l.AfterJob(cbCtx, je)
	}

	var persistErr error
	if err := r.svc.Repository.UpdateJobExecution(cbCtx, je); err != nil {
		logger.Errorf("JobRunner: Failed to persist final status %s of job '%s': %v", je.Status, je.JobName, err)
		persistErr = exception.NewRepositoryError(module, "failed to persist final job status", err, false)
	}
	r.svc.Recorder.RecordJobEnd(cbCtx, je)
	r.svc.Recorder.RecordDuration(cbCtx, "job", time.Since(started), map[string]string{"job": je.JobName, "status": string(je.Status)})
	logger.Infof("JobRunner: Job '%s' finished with status %s (exit status %s). Execution ID: %s", je.JobName, je.Status, je.ExitStatus, je.ID)

	if persistErr != nil {
		return persistErr
	}
	if je.Status == model.BatchStatusFailed {
		return res.err
	}
	return nil
}

// finish moves je to the terminal status of res.
func (r *JobRunner) finish(je *model.JobExecution, res result) {
	var err error
	switch res.status {
	case model.BatchStatusStopped:
		err = je.TransitionTo(model.BatchStatusStopped)
		if res.restartAt != "" {
			je.RestartPosition = res.restartAt
		}
	case model.BatchStatusFailed:
		if res.err == nil {
			res.err = exception.NewBatchError(module, "job ended by a fail transition", nil, false, false)
		}
		err = je.MarkFailed(res.err)
	default:
		err = je.TransitionTo(model.BatchStatusCompleted)
	}
	if err != nil {
		logger.Errorf("JobRunner: %v", err)
	}
	if res.ended && res.jobExit != "" {
		je.ExitStatus = res.jobExit
	}
}

// walk runs elements starting at startID, or at the first element when startID is empty or unknown.
func (r *JobRunner) walk(ctx context.Context, run *jobRun, elements []model.Element, startID string) result {
	index := make(map[string]int, len(elements))
	for i, e := range elements {
		index[e.ID()] = i
	}
	jump := func(from, to string) (int, *result) {
		if i, ok := index[to]; ok {
			return i, nil
		}
		err := exception.NewValidationError(module, fmt.Sprintf("element '%s' continues at unknown element '%s'", from, to), nil)
		return -1, &result{status: model.BatchStatusFailed, err: err}
	}

	pos := 0
	if startID != "" {
		if i, ok := index[startID]; ok {
			pos = i
			logger.Infof("JobRunner: Job '%s' resumes at element '%s'.", run.je.JobName, startID)
		} else {
			logger.Warnf("JobRunner: Restart position '%s' is not an element of job '%s', starting at the first element.", startID, run.je.JobName)
		}
	}

	var last result
	last.status = model.BatchStatusCompleted
	for pos >= 0 && pos < len(elements) {
		e := elements[pos]
		if ctx.Err() != nil {
			logger.Infof("JobRunner: Stop requested before element '%s' of job '%s'.", e.ID(), run.je.JobName)
			return result{status: model.BatchStatusStopped, executions: last.executions}
		}

		out := r.runElement(ctx, run, e, last.executions)
		if out.ended {
			return out
		}

		if t, ok := matchTransition(e.ElementTransitions(), out.exit); ok {
			logger.Debugf("JobRunner: Element '%s' exit status %s matched transition on '%s' (%s).", e.ID(), out.exit, t.On, t.Action)
			switch t.Action {
			case model.ActionNext:
				var bad *result
				if pos, bad = jump(e.ID(), t.To); bad != nil {
					return *bad
				}
				last = out
				continue
			case model.ActionEnd:
				return result{status: model.BatchStatusCompleted, exit: out.exit, executions: out.executions, ended: true, jobExit: model.ExitStatus(t.ExitStatus)}
			case model.ActionFail:
				err := out.err
				if err == nil {
					err = exception.NewBatchError(module, fmt.Sprintf("element '%s' ended the job with a fail transition on exit status %s", e.ID(), out.exit), nil, false, false)
				}
				return result{status: model.BatchStatusFailed, exit: out.exit, executions: out.executions, err: err, ended: true, jobExit: model.ExitStatus(t.ExitStatus)}
			case model.ActionStop:
				return result{status: model.BatchStatusStopped, exit: out.exit, executions: out.executions, ended: true, jobExit: model.ExitStatus(t.ExitStatus), restartAt: t.RestartAt}
			}
		}

		switch out.status {
		case model.BatchStatusFailed, model.BatchStatusStopped:
			return out
		}
		last = out
		switch {
		case e.NextID() != "":
			var bad *result
			if pos, bad = jump(e.ID(), e.NextID()); bad != nil {
				return *bad
			}
		case len(e.ElementTransitions()) == 0:
			pos++
		default:
			pos = -1
		}
	}
	return last
}

func (r *JobRunner) runElement(ctx context.Context, run *jobRun, e model.Element, previous []*model.StepExecution) result {
	switch {
	case e.Step != nil:
		return r.runStep(ctx, run, e.Step)
	case e.Flow != nil:
		return r.walk(ctx, run, e.Flow.Elements, "")
	case e.Split != nil:
		return r.runSplit(ctx, run, e.Split)
	case e.Decision != nil:
		return r.decide(ctx, run, e.Decision, previous)
	default:
		return result{status: model.BatchStatusFailed, err: exception.NewValidationError(module, "empty element", nil)}
	}
}

func (r *JobRunner) runStep(ctx context.Context, run *jobRun, def *model.StepDefinition) result {
	cbCtx := context.WithoutCancel(ctx)
	failed := func(err error) result { return result{status: model.BatchStatusFailed, exit: model.ExitStatus(model.BatchStatusFailed), err: err} }

	prior, err := r.svc.Repository.FindLatestStepExecution(cbCtx, run.je.JobInstanceID, def.Name)
	if err != nil && !errors.Is(err, exception.ErrNotFound) {
		return failed(exception.NewRepositoryError(module, fmt.Sprintf("failed to look up previous executions of step '%s'", def.Name), err, false))
	}
	if prior != nil && prior.Status == model.BatchStatusCompleted && !def.AllowStartIfComplete {
		logger.Infof("JobRunner: Step '%s' already completed in execution %s, skipping.", def.Name, prior.JobExecutionID)
		return result{status: model.BatchStatusCompleted, exit: prior.ExitStatus, executions: []*model.StepExecution{prior}}
	}
	if def.StartLimit > 0 {
		count, err := r.svc.Repository.GetStepExecutionCount(cbCtx, run.je.JobInstanceID, def.Name)
		if err != nil {
			return failed(exception.NewRepositoryError(module, fmt.Sprintf("failed to count executions of step '%s'", def.Name), err, false))
		}
		if count >= def.StartLimit {
			return failed(exception.NewRestartNotAllowedError(module, fmt.Sprintf("step '%s' reached its start limit of %d", def.Name, def.StartLimit), nil))
		}
	}

	se, err := r.steps.Execute(ctx, step.Request{JobExecution: run.je, JobDefinition: run.def, Step: def, Prior: prior})
	if se == nil {
		return failed(err)
	}
	return result{status: se.Status, exit: se.ExitStatus, executions: []*model.StepExecution{se}, err: err}
}

// runSplit runs every flow of split concurrently and waits for all of them. The split fails when
// any flow fails, and stops when any flow stops and none failed.
func (r *JobRunner) runSplit(ctx context.Context, run *jobRun, split *model.SplitDefinition) result {
	results := make([]result, len(split.Flows))
	var g errgroup.Group
	for i := range split.Flows {
		flow := []model.Element{{Flow: &split.Flows[i]}}
		g.Go(func() error {
			results[i] = r.walk(ctx, run, flow, "")
			return nil
		})
	}
	_ = g.Wait()

	combined := result{status: model.BatchStatusCompleted}
	var errs *multierror.Error
	for _, res := range results {
		combined.executions = append(combined.executions, res.executions...)
		if res.err != nil {
			errs = multierror.Append(errs, res.err)
		}
		if res.status.Severity() > combined.status.Severity() {
			combined.status = res.status
		}
		if res.ended && !combined.ended {
			combined.ended = true
			combined.jobExit = res.jobExit
			combined.restartAt = res.restartAt
		}
	}
	combined.err = errs.ErrorOrNil()
	combined.exit = combined.status.ToExitStatus()
	logger.Infof("JobRunner: Split '%s' finished with status %s.", split.ID, combined.status)
	return combined
}

func (r *JobRunner) decide(ctx context.Context, run *jobRun, d *model.DecisionDefinition, previous []*model.StepExecution) result {
	cbCtx := context.WithoutCancel(ctx)
	sc := port.NewJobContext(run.je, run.def)
	sc.Properties = scope.MergeProperties(run.def.Properties, d.Properties)
	decider, err := scope.Artifact[port.Decider](cbCtx, r.svc.Artifacts, d.DeciderRef, "decider", sc)
	if err != nil {
		return result{status: model.BatchStatusFailed, err: err}
	}
	exit, err := decider.Decide(cbCtx, previous)
	if err != nil {
		return result{status: model.BatchStatusFailed, err: exception.NewBatchError(module, fmt.Sprintf("decider of decision '%s' failed", d.ID), err, false, false)}
	}
	logger.Infof("JobRunner: Decision '%s' decided exit status %s.", d.ID, exit)
	return result{status: model.BatchStatusCompleted, exit: exit, executions: previous}
}
