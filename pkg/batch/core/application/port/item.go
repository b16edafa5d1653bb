// Package port declares the capabilities the engine expects from user-supplied components.
// Each interface is narrow; a component implements only the ones it needs and the engine
// discovers optional capabilities with type assertions.
package port

import (
	"context"
	"errors"
	"time"

	model "github.com/bryant1410/jsr352/pkg/batch/core/domain/model"
	tx "github.com/bryant1410/jsr352/pkg/batch/core/tx"
)

// ErrNoMoreItems is returned by ItemReader.ReadItem when the input is exhausted.
var ErrNoMoreItems = errors.New("no more items to read")

// ItemReader reads the items of a chunk step one at a time.
type ItemReader interface {
	// Open prepares the reader. checkpoint is the state returned by CheckpointInfo at the last
	// committed chunk of a previous execution, or nil on a first start.
	Open(ctx context.Context, checkpoint model.ExecutionContext) error
	// ReadItem returns the next item, or ErrNoMoreItems.
	ReadItem(ctx context.Context) (any, error)
	// CheckpointInfo returns the state needed to resume after the items read so far.
	CheckpointInfo(ctx context.Context) (model.ExecutionContext, error)
	Close(ctx context.Context) error
}

// ItemProcessor transforms an item. A nil result filters the item out of the chunk.
type ItemProcessor interface {
	ProcessItem(ctx context.Context, item any) (any, error)
}

// ItemWriter writes the items of a chunk inside the chunk transaction.
type ItemWriter interface {
	// Open prepares the writer. checkpoint has the same meaning as for ItemReader.Open.
	Open(ctx context.Context, checkpoint model.ExecutionContext) error
	WriteItems(ctx context.Context, tx tx.Tx, items []any) error
	CheckpointInfo(ctx context.Context) (model.ExecutionContext, error)
	Close(ctx context.Context) error
}

// Tasklet is a step that runs once instead of processing items.
type Tasklet interface {
	Execute(ctx context.Context, sc *StepContext) (model.ExitStatus, error)
}

// Stoppable is implemented by tasklets that can be asked to finish early.
type Stoppable interface {
	Stop(ctx context.Context) error
}

// CheckpointAlgorithm decides chunk boundaries for a custom checkpoint policy.
type CheckpointAlgorithm interface {
	IsReadyToCheckpoint(ctx context.Context) (bool, error)
}

// CheckpointLifecycle is implemented by checkpoint algorithms that want to know when a chunk
// starts and when it has been committed.
type CheckpointLifecycle interface {
	BeginCheckpoint(ctx context.Context) error
	EndCheckpoint(ctx context.Context) error
}

// CheckpointTimeout is implemented by checkpoint algorithms that bound the chunk duration.
// A zero duration means no limit.
type CheckpointTimeout interface {
	CheckpointTimeout(ctx context.Context) (time.Duration, error)
}

// Decider chooses the exit status that drives the transitions of a decision element.
// executions are the step executions of the element that ran just before the decision.
type Decider interface {
	Decide(ctx context.Context, executions []*model.StepExecution) (model.ExitStatus, error)
}

// ExceptionMapper adds error classes to a failure before skip and retry rules are applied.
// The returned classes are considered more specific than the error's own lineage.
type ExceptionMapper interface {
	MapException(err error) []string
}
