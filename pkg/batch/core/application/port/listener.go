package port

import (
	"context"

	model "github.com/bryant1410/jsr352/pkg/batch/core/domain/model"
)

type JobExecutionListener interface {
	BeforeJob(ctx context.Context, jobExecution *model.JobExecution)
	AfterJob(ctx context.Context, jobExecution *model.JobExecution)
}

type StepExecutionListener interface {
	BeforeStep(ctx context.Context, stepExecution *model.StepExecution)
	AfterStep(ctx context.Context, stepExecution *model.StepExecution)
}

type ChunkListener interface {
	BeforeChunk(ctx context.Context, stepExecution *model.StepExecution)
	AfterChunk(ctx context.Context, stepExecution *model.StepExecution)
}

// ChunkErrorListener is told about a chunk that is being rolled back.
type ChunkErrorListener interface {
	OnChunkError(ctx context.Context, stepExecution *model.StepExecution, err error)
}

type ItemReadListener interface {
	BeforeRead(ctx context.Context)
	AfterRead(ctx context.Context, item any)
	OnReadError(ctx context.Context, err error)
}

type ItemProcessListener interface {
	BeforeProcess(ctx context.Context, item any)
	AfterProcess(ctx context.Context, item, result any)
	OnProcessError(ctx context.Context, item any, err error)
}

type ItemWriteListener interface {
	BeforeWrite(ctx context.Context, items []any)
	AfterWrite(ctx context.Context, items []any)
	OnWriteError(ctx context.Context, items []any, err error)
}

// SkipListener is told about every skipped failure.
type SkipListener interface {
	OnSkipRead(ctx context.Context, err error)
	OnSkipProcess(ctx context.Context, item any, err error)
	OnSkipWrite(ctx context.Context, items []any, err error)
}

// RetryListener is told about every failure about to be retried.
type RetryListener interface {
	OnRetryRead(ctx context.Context, err error)
	OnRetryProcess(ctx context.Context, item any, err error)
	OnRetryWrite(ctx context.Context, items []any, err error)
}
