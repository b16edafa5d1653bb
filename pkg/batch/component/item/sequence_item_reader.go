package item

import (
	"context"
	"errors"
	"fmt"

	port "github.com/bryant1410/jsr352/pkg/batch/core/application/port"
	model "github.com/bryant1410/jsr352/pkg/batch/core/domain/model"
	"github.com/bryant1410/jsr352/pkg/batch/support/util/exception"
	"github.com/bryant1410/jsr352/pkg/batch/support/util/logger"
)

// readPositionKey is the checkpoint key holding the number of items already read.
const readPositionKey = "reader.position"

// ErrInjectedReadFailure is wrapped by the error SequenceItemReader returns at FailAt.
var ErrInjectedReadFailure = errors.New("injected read failure")

// SequenceItemReader reads the integers 1..Count. It checkpoints its position, so a restarted
// execution resumes after the last committed item.
//
// FailAt, when positive, makes the read of that item fail once per execution. It exists to
// exercise restart and skip handling.
type SequenceItemReader struct {
	Count  int `batch:"count"`
	FailAt int `batch:"fail.at"`

	position int
	failed   bool
}

// NewSequenceItemReader creates a reader of count items.
func NewSequenceItemReader(count int) *SequenceItemReader {
	return &SequenceItemReader{Count: count}
}

// Open restores the read position from checkpoint.
func (r *SequenceItemReader) Open(ctx context.Context, checkpoint model.ExecutionContext) error {
	r.position = 0
	if pos, ok := checkpoint.GetInt(readPositionKey); ok {
		r.position = pos
		logger.Infof("SequenceItemReader: Resuming after item %d of %d.", pos, r.Count)
	}
	return nil
}

func (r *SequenceItemReader) ReadItem(ctx context.Context) (any, error) {
	if r.position >= r.Count {
		return nil, port.ErrNoMoreItems
	}
	next := r.position + 1
	if next == r.FailAt && !r.failed {
		r.failed = true
		return nil, exception.NewItemError("SequenceItemReader", fmt.Sprintf("item %d", next), ErrInjectedReadFailure)
	}
	r.position = next
	return next, nil
}

func (r *SequenceItemReader) CheckpointInfo(ctx context.Context) (model.ExecutionContext, error) {
	ec := model.NewExecutionContext()
	ec.Put(readPositionKey, r.position)
	return ec, nil
}

func (r *SequenceItemReader) Close(ctx context.Context) error {
	return nil
}

var _ port.ItemReader = (*SequenceItemReader)(nil)
