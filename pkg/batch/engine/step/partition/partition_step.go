// Package partition runs partitioned steps: the work of one step is split into partitions that run
// concurrently, each with its own execution record, and their outcomes are combined into the
// outcome of the step.
package partition

import (
	"context"
	"fmt"

	"github.com/hashicorp/go-multierror"
	"golang.org/x/sync/semaphore"

	port "github.com/bryant1410/jsr352/pkg/batch/core/application/port"
	model "github.com/bryant1410/jsr352/pkg/batch/core/domain/model"
	"github.com/bryant1410/jsr352/pkg/batch/engine/step/scope"
	exception "github.com/bryant1410/jsr352/pkg/batch/support/util/exception"
	logger "github.com/bryant1410/jsr352/pkg/batch/support/util/logger"
)

const module = "PartitionStep"

// Runner executes the chunk or tasklet work of one partition and returns its status.
type Runner func(ctx context.Context, sc *port.StepContext) (model.BatchStatus, error)

// Coordinator runs partitioned steps on the shared pool.
type Coordinator struct {
	svc scope.Services
	run Runner
}

// NewCoordinator creates a coordinator that runs each partition with run.
func NewCoordinator(svc scope.Services, run Runner) *Coordinator {
	return &Coordinator{svc: svc.WithDefaults(), run: run}
}

// completion is the outcome of one partition, sent to the aggregation loop.
type completion struct {
	pe      *model.PartitionExecution
	ran     bool
	data    any
	hasData bool
	err     error
}

// partitionedStep holds the artifacts of one execution of a partitioned step.
type partitionedStep struct {
	sc           *port.StepContext
	def          *model.PartitionDefinition
	reducer      port.PartitionReducer
	analyzer     port.PartitionAnalyzer
	dataAnalyzer port.CollectorDataAnalyzer
}

// Execute runs the partitioned step of sc. prior is the step execution this one restarts, or nil.
//
// Partitions finish in any order; each completion is handled by a single loop that first sees the
// partition record persisted and then passes collector data and status to the analyzer. A failed
// partition fails the step unless the step allows failures; other partitions keep running.
// An analyzer error cancels the partitions still running.
func (c *Coordinator) Execute(ctx context.Context, sc *port.StepContext, prior *model.StepExecution) (model.BatchStatus, error) {
	se := sc.StepExecution
	cbCtx := context.WithoutCancel(ctx)
	ps, err := c.resolve(cbCtx, sc)
	if err != nil {
		return model.BatchStatusFailed, err
	}

	if ps.reducer != nil {
		if err := ps.reducer.BeginPartitionedStep(cbCtx, sc); err != nil {
			return c.finish(cbCtx, ps, model.BatchStatusFailed, exception.NewBatchError(module, "partition reducer failed to begin", err, false, false))
		}
	}

	partitions, err := c.plan(cbCtx, ps, prior)
	if err != nil {
		return c.finish(cbCtx, ps, model.BatchStatusFailed, err)
	}

	se.StepMetrics = model.StepMetrics{}
	var pending []*model.PartitionExecution
	for _, pe := range partitions {
		if pe.Status == model.BatchStatusCompleted {
			se.StepMetrics.Add(pe.StepMetrics)
			continue
		}
		pending = append(pending, pe)
	}
	threads := len(partitions)
	if ps.def.Plan != nil {
		threads = ps.def.Plan.EffectiveThreads()
	}
	if threads <= 0 || threads > len(pending) {
		threads = len(pending)
	}
	logger.Infof("PartitionStep '%s': Running %d of %d partitions on %d threads. Execution ID: %s", se.StepName, len(pending), len(partitions), threads, se.ID)

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	events := make(chan *completion, len(pending))
	c.launch(runCtx, ps, pending, threads, events)

	var (
		failures    *multierror.Error
		analyzerErr error
		outcome     = model.BatchStatusCompleted
	)
	for received := 0; received < len(pending); received++ {
		ev := <-events
		pe := ev.pe
		if !ev.ran {
			pe.Finish(model.BatchStatusStopped)
		}
		se.StepMetrics.Add(pe.StepMetrics)
		if err := c.svc.Repository.UpdatePartitionExecution(cbCtx, pe); err != nil {
			// The analyzer only sees partitions whose record is stored.
			logger.Errorf("PartitionStep '%s': Failed to persist partition %d, skipping analysis: %v", se.StepName, pe.PartitionIndex, err)
			failures = multierror.Append(failures, exception.NewRepositoryError(module, fmt.Sprintf("failed to persist partition %d", pe.PartitionIndex), err, false))
			outcome = model.BatchStatusFailed
			continue
		}
		logger.Infof("PartitionStep '%s': Partition %d finished with status %s (%d/%d).", se.StepName, pe.PartitionIndex, pe.Status, received+1, len(pending))

		switch pe.Status {
		case model.BatchStatusFailed:
			if ev.err != nil {
				failures = multierror.Append(failures, fmt.Errorf("partition %d: %w", pe.PartitionIndex, ev.err))
			} else {
				failures = multierror.Append(failures, fmt.Errorf("partition %d failed", pe.PartitionIndex))
			}
			if !ps.def.AllowFailures {
				outcome = model.BatchStatusFailed
			}
		case model.BatchStatusStopped:
			if outcome != model.BatchStatusFailed {
				outcome = model.BatchStatusStopped
			}
		}

		if analyzerErr == nil {
			analyzerErr = c.analyze(cbCtx, ps, ev)
			if analyzerErr != nil {
				logger.Errorf("PartitionStep '%s': Partition analyzer failed, cancelling remaining partitions: %v", se.StepName, analyzerErr)
				cancel()
			}
		}
	}

	switch {
	case analyzerErr != nil:
		return c.finish(cbCtx, ps, model.BatchStatusFailed, exception.NewBatchError(module, "partition analyzer failed", analyzerErr, false, false))
	case outcome == model.BatchStatusFailed:
		return c.finish(cbCtx, ps, model.BatchStatusFailed, exception.NewBatchError(module, "one or more partitions failed", failures.ErrorOrNil(), false, false))
	case ctx.Err() != nil:
		return c.finish(cbCtx, ps, model.BatchStatusStopped, nil)
	}
	if failures != nil {
		logger.Warnf("PartitionStep '%s': Completed with allowed partition failures: %v", se.StepName, failures)
	}
	return c.finish(cbCtx, ps, outcome, nil)
}

func (c *Coordinator) resolve(ctx context.Context, sc *port.StepContext) (*partitionedStep, error) {
	def := sc.Definition.Partition
	if def == nil {
		return nil, exception.NewValidationError(module, fmt.Sprintf("step '%s' is not partitioned", sc.StepName()), nil)
	}
	ps := &partitionedStep{sc: sc, def: def}
	var err error
	if ps.reducer, err = scope.OptionalArtifact[port.PartitionReducer](ctx, c.svc.Artifacts, def.ReducerRef, "partition reducer", sc); err != nil {
		return nil, err
	}
	if def.AnalyzerRef != "" {
		a, err := c.svc.Artifacts.Create(ctx, def.AnalyzerRef, sc)
		if err != nil {
			return nil, exception.NewValidationError(module, fmt.Sprintf("cannot create partition analyzer '%s'", def.AnalyzerRef), err)
		}
		ps.analyzer, _ = a.(port.PartitionAnalyzer)
		ps.dataAnalyzer, _ = a.(port.CollectorDataAnalyzer)
		if ps.analyzer == nil && ps.dataAnalyzer == nil {
			return nil, exception.NewValidationError(module, fmt.Sprintf("artifact '%s' (%T) is not a partition analyzer", def.AnalyzerRef, a), nil)
		}
	}
	return ps, nil
}

// plan returns the partition records of this execution, already created in the repository.
// A restart reuses the partitions of prior unless the plan is overridden; completed partitions
// are carried over as COMPLETED and the others resume from their last checkpoint.
func (c *Coordinator) plan(ctx context.Context, ps *partitionedStep, prior *model.StepExecution) ([]*model.PartitionExecution, error) {
	se := ps.sc.StepExecution
	plan := ps.def.Plan
	if ps.def.MapperRef != "" {
		mapper, err := scope.Artifact[port.PartitionMapper](ctx, c.svc.Artifacts, ps.def.MapperRef, "partition mapper", ps.sc)
		if err != nil {
			return nil, err
		}
		if plan, err = mapper.MapPartitions(ctx, ps.sc); err != nil {
			return nil, exception.NewBatchError(module, "partition mapper failed", err, false, false)
		}
	}
	if plan == nil || plan.Partitions <= 0 {
		return nil, exception.NewValidationError(module, fmt.Sprintf("step '%s' has no partitions to run", se.StepName), nil)
	}

	var previous []*model.PartitionExecution
	if prior != nil && !plan.Override {
		var err error
		if previous, err = c.svc.Repository.GetPartitionExecutions(ctx, prior.ID); err != nil {
			return nil, exception.NewRepositoryError(module, "failed to load partitions of previous execution", err, false)
		}
	}

	var partitions []*model.PartitionExecution
	if len(previous) > 0 {
		logger.Infof("PartitionStep '%s': Reusing the plan of %d partitions from step execution %s.", se.StepName, len(previous), prior.ID)
		for _, old := range previous {
			pe := model.NewPartitionExecution(se, old.PartitionIndex, old.Plan)
			if old.Checkpoint != nil {
				pe.Checkpoint = old.Checkpoint.Copy()
				pe.StepMetrics = old.Checkpoint.Metrics
			}
			pe.PersistentData = old.PersistentData.Copy()
			if old.Status == model.BatchStatusCompleted {
				pe.StepMetrics = old.StepMetrics
				pe.ExitStatus = old.ExitStatus
				pe.Finish(model.BatchStatusCompleted)
			}
			partitions = append(partitions, pe)
		}
	} else {
		for i := 0; i < plan.Partitions; i++ {
			partitions = append(partitions, model.NewPartitionExecution(se, i, plan.PartitionProperties(i)))
		}
	}

	for _, pe := range partitions {
		if err := c.svc.Repository.CreatePartitionExecution(ctx, pe); err != nil {
			return nil, exception.NewRepositoryError(module, "failed to create partition execution", err, false)
		}
	}
	return partitions, nil
}

// launch submits every pending partition to the pool. At most threads of them run at once.
// Exactly one completion is sent on events per partition, including partitions that never start.
func (c *Coordinator) launch(ctx context.Context, ps *partitionedStep, pending []*model.PartitionExecution, threads int, events chan<- *completion) {
	sem := semaphore.NewWeighted(int64(max(threads, 1)))
	for _, pe := range pending {
		ev := &completion{pe: pe}
		h, err := c.svc.Pool.Submit(ctx, func(taskCtx context.Context) error {
			if err := sem.Acquire(taskCtx, 1); err != nil {
				return err
			}
			defer sem.Release(1)
			if taskCtx.Err() != nil {
				return taskCtx.Err()
			}
			ev.ran = true
			c.runPartition(taskCtx, ps, ev)
			return nil
		})
		if err != nil {
			ev.ran = true
			ev.err = err
			pe.MarkFailed(err)
			events <- ev
			continue
		}
		go func() {
			<-h.Done()
			events <- ev
		}()
	}
}

func (c *Coordinator) runPartition(ctx context.Context, ps *partitionedStep, ev *completion) {
	pe := ev.pe
	parent := ps.sc
	cbCtx := context.WithoutCancel(ctx)

	pe.MarkStarted()
	if err := c.svc.Repository.UpdatePartitionExecution(cbCtx, pe); err != nil {
		ev.err = exception.NewRepositoryError(module, "failed to mark partition started", err, false)
		pe.MarkFailed(ev.err)
		return
	}

	psc := port.NewStepContext(parent.JobExecution, parent.JobDefinition, parent.Definition, &pe.StepExecution,
		scope.MergeProperties(parent.Properties, pe.Plan),
		func(ctx context.Context) error { return c.svc.Repository.UpdatePartitionExecution(ctx, pe) })
	psc.Partition = pe

	status, err := c.run(ctx, psc)
	if err != nil {
		ev.err = err
		pe.MarkFailed(err)
	} else {
		pe.Finish(status)
	}

	if ps.def.CollectorRef != "" {
		collector, cerr := scope.Artifact[port.PartitionCollector](cbCtx, c.svc.Artifacts, ps.def.CollectorRef, "partition collector", psc)
		if cerr == nil {
			ev.data, cerr = collector.CollectPartitionData(cbCtx, psc)
			ev.hasData = cerr == nil
		}
		if cerr != nil {
			logger.Errorf("PartitionStep '%s': Collector failed in partition %d: %v", parent.StepName(), pe.PartitionIndex, cerr)
			if ev.err == nil {
				ev.err = cerr
			}
			pe.MarkFailed(cerr)
		}
	}
}

func (c *Coordinator) analyze(ctx context.Context, ps *partitionedStep, ev *completion) error {
	if ps.dataAnalyzer != nil && ev.hasData {
		if err := ps.dataAnalyzer.AnalyzeCollectorData(ctx, ps.sc, ev.data); err != nil {
			return err
		}
	}
	if ps.analyzer != nil {
		return ps.analyzer.AnalyzeStatus(ctx, ps.sc, ev.pe.Status, ev.pe.ExitStatus)
	}
	return nil
}

// finish runs the reducer completion callbacks and returns the final status of the step.
func (c *Coordinator) finish(ctx context.Context, ps *partitionedStep, status model.BatchStatus, cause error) (model.BatchStatus, error) {
	name := ps.sc.StepName()
	if ps.reducer != nil && status != model.BatchStatusFailed {
		if err := ps.reducer.BeforePartitionedStepCompletion(ctx, ps.sc); err != nil {
			status = model.BatchStatusFailed
			cause = exception.NewBatchError(module, "partition reducer failed before completion", err, false, false)
		}
	}
	if ps.reducer != nil && status == model.BatchStatusFailed {
		if err := ps.reducer.RollbackPartitionedStep(ctx, ps.sc); err != nil {
			logger.Errorf("PartitionStep '%s': Partition reducer rollback failed: %v", name, err)
		}
	}
	if ps.reducer != nil {
		if err := ps.reducer.AfterPartitionedStepCompletion(ctx, ps.sc, status); err != nil {
			logger.Errorf("PartitionStep '%s': Partition reducer failed after completion: %v", name, err)
			if status != model.BatchStatusFailed {
				status = model.BatchStatusFailed
				cause = exception.NewBatchError(module, "partition reducer failed after completion", err, false, false)
			}
		}
	}
	logger.Infof("PartitionStep '%s' finished with status %s.", name, status)
	return status, cause
}
