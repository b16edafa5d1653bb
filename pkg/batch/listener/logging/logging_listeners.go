// Package logging provides listener artifacts that write job, step, chunk and item events to
// the batch logger.
package logging

import (
	"context"

	port "github.com/bryant1410/jsr352/pkg/batch/core/application/port"
	model "github.com/bryant1410/jsr352/pkg/batch/core/domain/model"
	logger "github.com/bryant1410/jsr352/pkg/batch/support/util/logger"
)

// --- Job Execution Listener ---

type LoggingJobListener struct{}

func NewLoggingJobListener() *LoggingJobListener {
	return &LoggingJobListener{}
}

func (l *LoggingJobListener) BeforeJob(ctx context.Context, jobExecution *model.JobExecution) {
	logger.Infof("JobExecutionListener: BeforeJob - JobName: %s, ID: %s, Params: %s", jobExecution.JobName, jobExecution.ID, jobExecution.Parameters)
}

func (l *LoggingJobListener) AfterJob(ctx context.Context, jobExecution *model.JobExecution) {
	logger.Infof("JobExecutionListener: AfterJob - JobName: %s, Status: %s, ExitStatus: %s", jobExecution.JobName, jobExecution.Status, jobExecution.ExitStatus)
}

var _ port.JobExecutionListener = (*LoggingJobListener)(nil)

// --- Step Execution Listener ---

type LoggingStepListener struct{}

func NewLoggingStepListener() *LoggingStepListener {
	return &LoggingStepListener{}
}

func (l *LoggingStepListener) BeforeStep(ctx context.Context, stepExecution *model.StepExecution) {
	logger.Infof("StepExecutionListener: BeforeStep - StepName: %s, ID: %s", stepExecution.StepName, stepExecution.ID)
}

func (l *LoggingStepListener) AfterStep(ctx context.Context, stepExecution *model.StepExecution) {
	logger.Infof("StepExecutionListener: AfterStep - StepName: %s, Status: %s, ExitStatus: %s, Read: %d, Write: %d, Commit: %d, Rollback: %d, Skip: %d",
		stepExecution.StepName, stepExecution.Status, stepExecution.ExitStatus,
		stepExecution.ReadCount, stepExecution.WriteCount, stepExecution.CommitCount, stepExecution.RollbackCount,
		stepExecution.SkipCount())
}

var _ port.StepExecutionListener = (*LoggingStepListener)(nil)

// --- Chunk Listener ---

type LoggingChunkListener struct{}

func NewLoggingChunkListener() *LoggingChunkListener {
	return &LoggingChunkListener{}
}

func (l *LoggingChunkListener) BeforeChunk(ctx context.Context, stepExecution *model.StepExecution) {
	logger.Debugf("ChunkListener: BeforeChunk - StepName: %s", stepExecution.StepName)
}

func (l *LoggingChunkListener) AfterChunk(ctx context.Context, stepExecution *model.StepExecution) {
	logger.Debugf("ChunkListener: AfterChunk - StepName: %s, Read: %d, Write: %d", stepExecution.StepName, stepExecution.ReadCount, stepExecution.WriteCount)
}

func (l *LoggingChunkListener) OnChunkError(ctx context.Context, stepExecution *model.StepExecution, err error) {
	logger.Warnf("ChunkListener: OnChunkError - StepName: %s, rolling back: %v", stepExecution.StepName, err)
}

var (
	_ port.ChunkListener      = (*LoggingChunkListener)(nil)
	_ port.ChunkErrorListener = (*LoggingChunkListener)(nil)
)

// --- Item Listener ---

// LoggingItemListener logs item failures. Successful reads, process calls and writes are
// logged at DEBUG.
type LoggingItemListener struct{}

func NewLoggingItemListener() *LoggingItemListener {
	return &LoggingItemListener{}
}

func (l *LoggingItemListener) BeforeRead(ctx context.Context) {}

func (l *LoggingItemListener) AfterRead(ctx context.Context, item any) {
	logger.Debugf("ItemReadListener: AfterRead - Item: %+v", item)
}

func (l *LoggingItemListener) OnReadError(ctx context.Context, err error) {
	logger.Errorf("ItemReadListener: OnReadError - %v", err)
}

func (l *LoggingItemListener) BeforeProcess(ctx context.Context, item any) {}

func (l *LoggingItemListener) AfterProcess(ctx context.Context, item, result any) {
	if result == nil {
		logger.Debugf("ItemProcessListener: AfterProcess - Item filtered: %+v", item)
	}
}

func (l *LoggingItemListener) OnProcessError(ctx context.Context, item any, err error) {
	logger.Errorf("ItemProcessListener: OnProcessError - Item: %+v, Error: %v", item, err)
}

func (l *LoggingItemListener) BeforeWrite(ctx context.Context, items []any) {}

func (l *LoggingItemListener) AfterWrite(ctx context.Context, items []any) {
	logger.Debugf("ItemWriteListener: AfterWrite - Items count: %d", len(items))
}

func (l *LoggingItemListener) OnWriteError(ctx context.Context, items []any, err error) {
	logger.Errorf("ItemWriteListener: OnWriteError - Items count: %d, Error: %v", len(items), err)
}

var (
	_ port.ItemReadListener    = (*LoggingItemListener)(nil)
	_ port.ItemProcessListener = (*LoggingItemListener)(nil)
	_ port.ItemWriteListener   = (*LoggingItemListener)(nil)
)

// --- Skip Listener ---

type LoggingSkipListener struct{}

func NewLoggingSkipListener() *LoggingSkipListener {
	return &LoggingSkipListener{}
}

func (l *LoggingSkipListener) OnSkipRead(ctx context.Context, err error) {
	logger.Warnf("SkipListener: OnSkipRead - Skipping item due to error: %v", err)
}

func (l *LoggingSkipListener) OnSkipProcess(ctx context.Context, item any, err error) {
	logger.Warnf("SkipListener: OnSkipProcess - Skipping item: %+v, Error: %v", item, err)
}

func (l *LoggingSkipListener) OnSkipWrite(ctx context.Context, items []any, err error) {
	logger.Warnf("SkipListener: OnSkipWrite - Skipping %d items, Error: %v", len(items), err)
}

var _ port.SkipListener = (*LoggingSkipListener)(nil)

// --- Retry Listener ---

type LoggingRetryListener struct{}

func NewLoggingRetryListener() *LoggingRetryListener {
	return &LoggingRetryListener{}
}

func (l *LoggingRetryListener) OnRetryRead(ctx context.Context, err error) {
	logger.Warnf("RetryListener: OnRetryRead - Retrying read operation due to error: %v", err)
}

func (l *LoggingRetryListener) OnRetryProcess(ctx context.Context, item any, err error) {
	logger.Warnf("RetryListener: OnRetryProcess - Retrying process operation for item: %+v, Error: %v", item, err)
}

func (l *LoggingRetryListener) OnRetryWrite(ctx context.Context, items []any, err error) {
	logger.Warnf("RetryListener: OnRetryWrite - Retrying write operation for %d items, Error: %v", len(items), err)
}

var _ port.RetryListener = (*LoggingRetryListener)(nil)
