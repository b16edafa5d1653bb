// Package item runs chunk-oriented steps: items are read and processed one at a time, collected
// into a chunk and written in one transaction, with a checkpoint persisted after every commit.
package item

import (
	"context"
	"errors"

	port "github.com/bryant1410/jsr352/pkg/batch/core/application/port"
	model "github.com/bryant1410/jsr352/pkg/batch/core/domain/model"
	metrics "github.com/bryant1410/jsr352/pkg/batch/core/metrics"
	tx "github.com/bryant1410/jsr352/pkg/batch/core/tx"
	"github.com/bryant1410/jsr352/pkg/batch/engine/checkpoint"
	"github.com/bryant1410/jsr352/pkg/batch/engine/step/policy"
	"github.com/bryant1410/jsr352/pkg/batch/engine/step/scope"
	exception "github.com/bryant1410/jsr352/pkg/batch/support/util/exception"
	logger "github.com/bryant1410/jsr352/pkg/batch/support/util/logger"
)

const module = "ChunkStep"

// Params are the collaborators of a ChunkStep. Processor, Checkpoint, Mapper and Listeners are optional.
type Params struct {
	Definition *model.ChunkDefinition
	Reader     port.ItemReader
	Processor  port.ItemProcessor
	Writer     port.ItemWriter
	Checkpoint port.CheckpointAlgorithm
	Mapper     port.ExceptionMapper
	Listeners  *scope.Listeners
	TxManager  tx.TransactionManager
	Recorder   metrics.MetricRecorder
	Tracer     metrics.Tracer
	Clock      checkpoint.Clock
}

// ChunkStep runs one step or partition execution of a chunk step.
// A ChunkStep is used for a single execution and is not safe for concurrent use.
type ChunkStep struct {
	reader    port.ItemReader
	processor port.ItemProcessor
	writer    port.ItemWriter
	listeners *scope.Listeners
	txManager tx.TransactionManager
	tracker   *checkpoint.Tracker
	policy    *policy.Evaluator
	recorder  metrics.MetricRecorder
	tracer    metrics.Tracer

	// readByExecution counts the items read by this execution, restarts excluded.
	readByExecution int
}

type chunkOutcome int

const (
	chunkCommitted chunkOutcome = iota
	chunkEndOfData
	chunkStopped
	chunkRetry
)

type itemOutcome int

const (
	itemOK itemOutcome = iota
	itemSkipped
	itemRetryChunk
)

// NewChunkStep creates a ChunkStep from resolved artifacts.
func NewChunkStep(p Params) *ChunkStep {
	if p.Listeners == nil {
		p.Listeners = &scope.Listeners{}
	}
	if p.TxManager == nil {
		p.TxManager = tx.NewNoopTransactionManager()
	}
	if p.Recorder == nil {
		p.Recorder = metrics.NewNoOpMetricRecorder()
	}
	if p.Tracer == nil {
		p.Tracer = metrics.NewNoOpTracer()
	}
	var opts []checkpoint.Option
	if p.Clock != nil {
		opts = append(opts, checkpoint.WithClock(p.Clock))
	}
	return &ChunkStep{
		reader:    p.Reader,
		processor: p.Processor,
		writer:    p.Writer,
		listeners: p.Listeners,
		txManager: p.TxManager,
		tracker:   checkpoint.NewTracker(checkpoint.PolicyFor(p.Definition, p.Checkpoint), opts...),
		policy:    policy.NewEvaluator(policy.ConfigFor(p.Definition, p.Mapper)),
		recorder:  p.Recorder,
		tracer:    p.Tracer,
	}
}

// Build resolves the chunk artifacts of sc.Definition and creates the ChunkStep.
func Build(ctx context.Context, sc *port.StepContext, svc scope.Services, listeners *scope.Listeners) (*ChunkStep, error) {
	def := sc.Definition.Chunk
	if def == nil {
		return nil, exception.NewValidationError(module, "step '"+sc.StepName()+"' is not a chunk step", nil)
	}
	f := svc.Artifacts
	reader, err := scope.Artifact[port.ItemReader](ctx, f, def.ReaderRef, "item reader", sc)
	if err != nil {
		return nil, err
	}
	processor, err := scope.OptionalArtifact[port.ItemProcessor](ctx, f, def.ProcessorRef, "item processor", sc)
	if err != nil {
		return nil, err
	}
	writer, err := scope.Artifact[port.ItemWriter](ctx, f, def.WriterRef, "item writer", sc)
	if err != nil {
		return nil, err
	}
	var algorithm port.CheckpointAlgorithm
	if def.CheckpointPolicy == model.CheckpointPolicyCustom {
		algorithm, err = scope.Artifact[port.CheckpointAlgorithm](ctx, f, def.CheckpointAlgorithmRef, "checkpoint algorithm", sc)
		if err != nil {
			return nil, err
		}
	}
	mapper, err := scope.OptionalArtifact[port.ExceptionMapper](ctx, f, def.ExceptionMapperRef, "exception mapper", sc)
	if err != nil {
		return nil, err
	}
	svc = svc.WithDefaults()
	return NewChunkStep(Params{
		Definition: def,
		Reader:     reader,
		Processor:  processor,
		Writer:     writer,
		Checkpoint: algorithm,
		Mapper:     mapper,
		Listeners:  listeners,
		TxManager:  svc.TxManager,
		Recorder:   svc.Recorder,
		Tracer:     svc.Tracer,
	}), nil
}

// Execute processes chunks until the reader is exhausted, a stop is requested through ctx, or a
// failure is not skipped or retried. It returns the resulting status of the execution; on FAILED
// the error is returned too. The execution's Checkpoint is the state to open the reader and
// writer from and is replaced after every commit.
func (s *ChunkStep) Execute(ctx context.Context, sc *port.StepContext) (model.BatchStatus, error) {
	se := sc.StepExecution
	cbCtx := context.WithoutCancel(ctx)

	if se.Checkpoint != nil {
		logger.Infof("ChunkStep '%s': Restoring from checkpoint (%d items in last chunk).", se.StepName, se.Checkpoint.ItemCount)
	}
	if err := s.open(cbCtx, se.Checkpoint); err != nil {
		return model.BatchStatusFailed, err
	}

	status, runErr := s.run(ctx, sc)

	if err := s.close(cbCtx); err != nil {
		if runErr == nil {
			return model.BatchStatusFailed, err
		}
		logger.Warnf("ChunkStep '%s': Close failed after error: %v", se.StepName, err)
	}
	return status, runErr
}

func (s *ChunkStep) run(ctx context.Context, sc *port.StepContext) (model.BatchStatus, error) {
	se := sc.StepExecution
	for chunk := 1; ; chunk++ {
		if ctx.Err() != nil {
			logger.Infof("ChunkStep '%s': Stop requested before chunk %d.", se.StepName, chunk)
			return model.BatchStatusStopped, nil
		}
		outcome, err := s.runChunk(ctx, sc, chunk)
		if err != nil {
			return model.BatchStatusFailed, err
		}
		switch outcome {
		case chunkEndOfData:
			logger.Infof("ChunkStep '%s': Completed (read=%d, write=%d, commit=%d).", se.StepName, se.ReadCount, se.WriteCount, se.CommitCount)
			return model.BatchStatusCompleted, nil
		case chunkStopped:
			logger.Infof("ChunkStep '%s': Stopped after chunk %d.", se.StepName, chunk)
			return model.BatchStatusStopped, nil
		case chunkRetry:
			if err := s.reopen(context.WithoutCancel(ctx), se.Checkpoint); err != nil {
				return model.BatchStatusFailed, err
			}
		}
	}
}

// runChunk runs one chunk transaction. ctx is only watched for a stop request; components are
// called with a context that is never cancelled.
func (s *ChunkStep) runChunk(ctx context.Context, sc *port.StepContext, chunk int) (chunkOutcome, error) {
	se := sc.StepExecution
	cbCtx, endSpan := s.tracer.StartChunkSpan(context.WithoutCancel(ctx), se, chunk)
	defer endSpan()

	t, err := s.txManager.Begin(cbCtx)
	if err != nil {
		return 0, exception.NewTransactionError(module, "failed to begin chunk transaction", err)
	}
	if err := s.tracker.Begin(cbCtx); err != nil {
		return 0, s.abort(cbCtx, se, t, exception.NewItemError(module, "checkpoint algorithm failed to begin chunk", err))
	}
	for _, l := range s.listeners.Chunk {
		l.BeforeChunk(cbCtx, se)
	}

	var outputs []any
	eof, stopping := false, false
	for {
		if ctx.Err() != nil {
			stopping = true
			break
		}
		item, err := s.read(cbCtx)
		if errors.Is(err, port.ErrNoMoreItems) {
			eof = true
			break
		}
		if err != nil {
			d := s.policy.Evaluate(policy.StageRead, err)
			switch d.Action {
			case policy.ActionSkip:
				se.ReadSkipCount++
				s.recorder.RecordItemSkip(cbCtx, se.StepName, string(policy.StageRead))
				for _, l := range s.listeners.Skip {
					l.OnSkipRead(cbCtx, err)
				}
				logger.Warnf("ChunkStep '%s': Item read skipped (%s): %v", se.StepName, s.policy, err)
				continue
			case policy.ActionRetryWithoutRollback, policy.ActionRetry:
				s.notifyRetryRead(cbCtx, se, err)
				if d.Action == policy.ActionRetry {
					return chunkRetry, s.rollback(cbCtx, se, t, err)
				}
				continue
			default:
				return 0, s.abort(cbCtx, se, t, exception.NewItemError(module, "failed to read item", err))
			}
		}

		se.ReadCount++
		s.readByExecution++
		s.tracker.ItemRead()
		s.recorder.RecordItemRead(cbCtx, se.StepName)

		out, outcome, err := s.process(cbCtx, se, item)
		if outcome == itemRetryChunk {
			return chunkRetry, s.rollback(cbCtx, se, t, err)
		}
		if err != nil {
			return 0, s.abort(cbCtx, se, t, err)
		}
		if outcome == itemOK {
			if out == nil {
				se.FilterCount++
				s.recorder.RecordItemFilter(cbCtx, se.StepName)
			} else {
				outputs = append(outputs, out)
			}
		}

		ready, err := s.tracker.Decide(cbCtx)
		if err != nil {
			return 0, s.abort(cbCtx, se, t, exception.NewItemError(module, "checkpoint algorithm failed", err))
		}
		if ready {
			break
		}
	}

	if s.tracker.Items() == 0 && len(outputs) == 0 && !(eof && checkpoint.CommitAtEndOfData(s.readByExecution)) {
		if err := s.txManager.Rollback(cbCtx, t); err != nil {
			logger.Warnf("ChunkStep '%s': Failed to release empty chunk transaction: %v", se.StepName, err)
		}
		if stopping {
			return chunkStopped, nil
		}
		return chunkEndOfData, nil
	}

	committed := false
	if len(outputs) > 0 {
		outcome, rescanned, err := s.write(cbCtx, se, t, outputs)
		if err != nil {
			return 0, err
		}
		if outcome == itemRetryChunk {
			return chunkRetry, nil
		}
		committed = rescanned
	}

	readerState, err := s.reader.CheckpointInfo(cbCtx)
	if err != nil {
		return 0, s.abortUnlessCommitted(cbCtx, se, t, committed, exception.NewItemError(module, "reader failed to provide checkpoint", err))
	}
	writerState, err := s.writer.CheckpointInfo(cbCtx)
	if err != nil {
		return 0, s.abortUnlessCommitted(cbCtx, se, t, committed, exception.NewItemError(module, "writer failed to provide checkpoint", err))
	}

	if !committed {
		if err := s.txManager.Commit(cbCtx, t); err != nil {
			d := s.policy.Evaluate(policy.StageCommit, err)
			s.countRollback(cbCtx, se, err)
			if d.Action == policy.ActionRetry || d.Action == policy.ActionRetryWithoutRollback {
				s.recorder.RecordItemRetry(cbCtx, se.StepName, string(policy.StageCommit))
				logger.Warnf("ChunkStep '%s': Commit failed, retrying chunk (%s): %v", se.StepName, s.policy, err)
				return chunkRetry, nil
			}
			return 0, exception.NewTransactionError(module, "failed to commit chunk", err)
		}
		se.CommitCount++
	}

	se.Checkpoint = &model.Checkpoint{
		ReaderState: readerState,
		WriterState: writerState,
		ItemCount:   s.tracker.Items(),
		Metrics:     se.StepMetrics,
	}
	if err := sc.Persist(cbCtx); err != nil {
		return 0, exception.NewRepositoryError(module, "failed to persist checkpoint", err, false)
	}
	s.recorder.RecordChunkCommit(cbCtx, se.StepName, len(outputs))
	if err := s.tracker.End(cbCtx); err != nil {
		return 0, exception.NewItemError(module, "checkpoint algorithm failed to end chunk", err)
	}
	for _, l := range s.listeners.Chunk {
		l.AfterChunk(cbCtx, se)
	}
	logger.Debugf("ChunkStep '%s': Chunk %d committed (%d items).", se.StepName, chunk, len(outputs))

	switch {
	case eof:
		return chunkEndOfData, nil
	case stopping:
		return chunkStopped, nil
	default:
		return chunkCommitted, nil
	}
}

func (s *ChunkStep) read(ctx context.Context) (any, error) {
	for _, l := range s.listeners.Read {
		l.BeforeRead(ctx)
	}
	item, err := s.reader.ReadItem(ctx)
	if err != nil {
		if !errors.Is(err, port.ErrNoMoreItems) {
			s.tracer.RecordError(ctx, module, err)
			for _, l := range s.listeners.Read {
				l.OnReadError(ctx, err)
			}
		}
		return nil, err
	}
	for _, l := range s.listeners.Read {
		l.AfterRead(ctx, item)
	}
	return item, nil
}

// process runs the processor on item, retrying in place when the failure allows it.
func (s *ChunkStep) process(ctx context.Context, se *model.StepExecution, item any) (any, itemOutcome, error) {
	if s.processor == nil {
		return item, itemOK, nil
	}
	for {
		for _, l := range s.listeners.Process {
			l.BeforeProcess(ctx, item)
		}
		out, err := s.processor.ProcessItem(ctx, item)
		if err == nil {
			for _, l := range s.listeners.Process {
				l.AfterProcess(ctx, item, out)
			}
			s.recorder.RecordItemProcess(ctx, se.StepName)
			return out, itemOK, nil
		}

		s.tracer.RecordError(ctx, module, err)
		for _, l := range s.listeners.Process {
			l.OnProcessError(ctx, item, err)
		}
		d := s.policy.Evaluate(policy.StageProcess, err)
		switch d.Action {
		case policy.ActionSkip:
			se.ProcessSkipCount++
			s.recorder.RecordItemSkip(ctx, se.StepName, string(policy.StageProcess))
			for _, l := range s.listeners.Skip {
				l.OnSkipProcess(ctx, item, err)
			}
			logger.Warnf("ChunkStep '%s': Item process skipped (%s): %v", se.StepName, s.policy, err)
			return nil, itemSkipped, nil
		case policy.ActionRetryWithoutRollback, policy.ActionRetry:
			s.recorder.RecordItemRetry(ctx, se.StepName, string(policy.StageProcess))
			for _, l := range s.listeners.Retry {
				l.OnRetryProcess(ctx, item, err)
			}
			logger.Warnf("ChunkStep '%s': Item process failed, retrying (%s): %v", se.StepName, s.policy, err)
			if d.Action == policy.ActionRetry {
				return nil, itemRetryChunk, err
			}
		default:
			return nil, 0, exception.NewItemError(module, "failed to process item", err)
		}
	}
}

// write writes items in t. rescanned reports that the chunk transaction was replaced by one
// transaction per item, all of which are already finished.
func (s *ChunkStep) write(ctx context.Context, se *model.StepExecution, t tx.Tx, items []any) (outcome itemOutcome, rescanned bool, err error) {
	for {
		werr := s.writeItems(ctx, se, t, items)
		if werr == nil {
			return itemOK, false, nil
		}
		d := s.policy.Evaluate(policy.StageWrite, werr)
		switch {
		case d.Action == policy.ActionSkip && !d.Rollback:
			se.WriteSkipCount++
			s.notifySkipWrite(ctx, se, items, werr)
			return itemSkipped, false, nil
		case d.Action == policy.ActionSkip:
			logger.Warnf("ChunkStep '%s': Chunk write failed with a skippable error, writing %d items one by one: %v", se.StepName, len(items), werr)
			s.policy.ReleaseSkip()
			if err := s.rollback(ctx, se, t, werr); err != nil {
				return 0, false, err
			}
			if err := s.rescan(ctx, se, items); err != nil {
				return 0, false, err
			}
			return itemOK, true, nil
		case d.Action == policy.ActionRetryWithoutRollback:
			s.notifyRetryWrite(ctx, se, items, werr)
		case d.Action == policy.ActionRetry:
			s.notifyRetryWrite(ctx, se, items, werr)
			return itemRetryChunk, false, s.rollback(ctx, se, t, werr)
		default:
			return 0, false, s.abort(ctx, se, t, exception.NewItemError(module, "failed to write items", werr))
		}
	}
}

func (s *ChunkStep) writeItems(ctx context.Context, se *model.StepExecution, t tx.Tx, items []any) error {
	for _, l := range s.listeners.Write {
		l.BeforeWrite(ctx, items)
	}
	if err := s.writer.WriteItems(ctx, t, items); err != nil {
		s.tracer.RecordError(ctx, module, err)
		for _, l := range s.listeners.Write {
			l.OnWriteError(ctx, items, err)
		}
		return err
	}
	for _, l := range s.listeners.Write {
		l.AfterWrite(ctx, items)
	}
	se.WriteCount += len(items)
	s.recorder.RecordItemWrite(ctx, se.StepName, len(items))
	return nil
}

// rescan writes each item of a rolled back chunk in its own transaction, skipping the items
// whose write fails with a skippable error.
func (s *ChunkStep) rescan(ctx context.Context, se *model.StepExecution, items []any) error {
	for _, item := range items {
		one := []any{item}
		t, err := s.txManager.Begin(ctx)
		if err != nil {
			return exception.NewTransactionError(module, "failed to begin item transaction", err)
		}
		werr := s.writeItems(ctx, se, t, one)
		if werr == nil {
			if err := s.txManager.Commit(ctx, t); err != nil {
				return exception.NewTransactionError(module, "failed to commit item transaction", err)
			}
			se.CommitCount++
			continue
		}
		if err := s.txManager.Rollback(ctx, t); err != nil {
			return exception.NewTransactionError(module, "failed to roll back item transaction", err)
		}
		d := s.policy.Evaluate(policy.StageWrite, werr)
		if d.Action != policy.ActionSkip {
			return exception.NewItemError(module, "failed to write item", werr)
		}
		se.WriteSkipCount++
		s.notifySkipWrite(ctx, se, one, werr)
	}
	return nil
}

// rollback rolls back t as part of handling cause.
func (s *ChunkStep) rollback(ctx context.Context, se *model.StepExecution, t tx.Tx, cause error) error {
	s.countRollback(ctx, se, cause)
	if err := s.txManager.Rollback(ctx, t); err != nil {
		return exception.NewTransactionError(module, "failed to roll back chunk", err)
	}
	return nil
}

func (s *ChunkStep) countRollback(ctx context.Context, se *model.StepExecution, cause error) {
	se.RollbackCount++
	s.recorder.RecordChunkRollback(ctx, se.StepName)
	for _, l := range s.listeners.Error {
		l.OnChunkError(ctx, se, cause)
	}
}

// abort rolls back the chunk and returns failure, the error that fails the step.
func (s *ChunkStep) abort(ctx context.Context, se *model.StepExecution, t tx.Tx, failure error) error {
	logger.Errorf("ChunkStep '%s': Chunk failed (%s): %v", se.StepName, s.policy, failure)
	s.tracer.RecordError(ctx, module, failure)
	if err := s.rollback(ctx, se, t, failure); err != nil {
		logger.Errorf("ChunkStep '%s': %v", se.StepName, err)
	}
	return failure
}

func (s *ChunkStep) abortUnlessCommitted(ctx context.Context, se *model.StepExecution, t tx.Tx, committed bool, failure error) error {
	if committed {
		s.tracer.RecordError(ctx, module, failure)
		return failure
	}
	return s.abort(ctx, se, t, failure)
}

func (s *ChunkStep) notifyRetryRead(ctx context.Context, se *model.StepExecution, err error) {
	s.recorder.RecordItemRetry(ctx, se.StepName, string(policy.StageRead))
	for _, l := range s.listeners.Retry {
		l.OnRetryRead(ctx, err)
	}
	logger.Warnf("ChunkStep '%s': Item read failed, retrying (%s): %v", se.StepName, s.policy, err)
}

func (s *ChunkStep) notifyRetryWrite(ctx context.Context, se *model.StepExecution, items []any, err error) {
	s.recorder.RecordItemRetry(ctx, se.StepName, string(policy.StageWrite))
	for _, l := range s.listeners.Retry {
		l.OnRetryWrite(ctx, items, err)
	}
	logger.Warnf("ChunkStep '%s': Chunk write failed, retrying (%s): %v", se.StepName, s.policy, err)
}

func (s *ChunkStep) notifySkipWrite(ctx context.Context, se *model.StepExecution, items []any, err error) {
	s.recorder.RecordItemSkip(ctx, se.StepName, string(policy.StageWrite))
	for _, l := range s.listeners.Skip {
		l.OnSkipWrite(ctx, items, err)
	}
	logger.Warnf("ChunkStep '%s': Item write skipped (%s): %v", se.StepName, s.policy, err)
}

func (s *ChunkStep) open(ctx context.Context, cp *model.Checkpoint) error {
	var readerState, writerState model.ExecutionContext
	if cp != nil {
		readerState, writerState = cp.ReaderState, cp.WriterState
	}
	if err := s.reader.Open(ctx, readerState); err != nil {
		return exception.NewItemError(module, "failed to open reader", err)
	}
	if err := s.writer.Open(ctx, writerState); err != nil {
		if cerr := s.reader.Close(ctx); cerr != nil {
			logger.Warnf("ChunkStep: Failed to close reader: %v", cerr)
		}
		return exception.NewItemError(module, "failed to open writer", err)
	}
	return nil
}

func (s *ChunkStep) close(ctx context.Context) error {
	rerr := s.reader.Close(ctx)
	werr := s.writer.Close(ctx)
	if rerr != nil {
		return exception.NewItemError(module, "failed to close reader", rerr)
	}
	if werr != nil {
		return exception.NewItemError(module, "failed to close writer", werr)
	}
	return nil
}

// reopen positions the reader and writer back at cp after a rolled back chunk.
func (s *ChunkStep) reopen(ctx context.Context, cp *model.Checkpoint) error {
	if err := s.close(ctx); err != nil {
		logger.Warnf("ChunkStep: Close before retry failed: %v", err)
	}
	return s.open(ctx, cp)
}
