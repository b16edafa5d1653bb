package item

import (
	"context"
	"reflect"

	port "github.com/bryant1410/jsr352/pkg/batch/core/application/port"
	model "github.com/bryant1410/jsr352/pkg/batch/core/domain/model"
	tx "github.com/bryant1410/jsr352/pkg/batch/core/tx"
	logger "github.com/bryant1410/jsr352/pkg/batch/support/util/logger"
)

// DefaultWriteCountKey is the key ExecutionContextItemWriter counts under when none is configured.
const DefaultWriteCountKey = "writer.write_count"

// ExecutionContextItemWriter is an ItemWriter that counts the items written in the step's
// persistent data. The count is part of the writer checkpoint, so it survives restarts.
// It is primarily used for testing and debugging.
type ExecutionContextItemWriter struct {
	Key string `batch:"key"`

	sc    *port.StepContext
	count int
}

// NewExecutionContextItemWriter creates a writer bound to sc. key may be empty.
func NewExecutionContextItemWriter(sc *port.StepContext, key string) *ExecutionContextItemWriter {
	return &ExecutionContextItemWriter{sc: sc, Key: key}
}

func (w *ExecutionContextItemWriter) key() string {
	if w.Key == "" {
		return DefaultWriteCountKey
	}
	return w.Key
}

// Open restores the count from checkpoint.
func (w *ExecutionContextItemWriter) Open(ctx context.Context, checkpoint model.ExecutionContext) error {
	w.count, _ = checkpoint.GetInt(w.key())
	return nil
}

// WriteItems adds the number of items to the count.
func (w *ExecutionContextItemWriter) WriteItems(ctx context.Context, t tx.Tx, items []any) error {
	w.count += len(items)
	if w.sc != nil {
		if data := w.sc.PersistentData(); data != nil {
			data.Put(w.key(), w.count)
		}
	}
	logger.Debugf("ExecutionContextItemWriter: Updated '%s' to %d.", w.key(), w.count)
	for i, item := range items {
		logger.Debugf("Item %d: Type=%s, Value=%+v", i, reflect.TypeOf(item), item)
	}
	return nil
}

func (w *ExecutionContextItemWriter) CheckpointInfo(ctx context.Context) (model.ExecutionContext, error) {
	ec := model.NewExecutionContext()
	ec.Put(w.key(), w.count)
	return ec, nil
}

func (w *ExecutionContextItemWriter) Close(ctx context.Context) error {
	return nil
}

// Count returns the number of items written so far.
func (w *ExecutionContextItemWriter) Count() int {
	return w.count
}

var _ port.ItemWriter = (*ExecutionContextItemWriter)(nil)
