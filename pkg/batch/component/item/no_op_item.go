// Package item provides generic item readers, processors and writers for chunk steps.
package item

import (
	"context"

	port "github.com/bryant1410/jsr352/pkg/batch/core/application/port"
	model "github.com/bryant1410/jsr352/pkg/batch/core/domain/model"
	tx "github.com/bryant1410/jsr352/pkg/batch/core/tx"
	"github.com/bryant1410/jsr352/pkg/batch/support/util/logger"
)

// NoOpItemReader is a [port.ItemReader] whose input is always exhausted.
type NoOpItemReader struct{}

// NewNoOpItemReader creates a new instance of [NoOpItemReader].
func NewNoOpItemReader() *NoOpItemReader {
	return &NoOpItemReader{}
}

func (r *NoOpItemReader) Open(ctx context.Context, checkpoint model.ExecutionContext) error {
	logger.Debugf("NoOpItemReader: Open called.")
	return nil
}

// ReadItem always returns [port.ErrNoMoreItems].
func (r *NoOpItemReader) ReadItem(ctx context.Context) (any, error) {
	return nil, port.ErrNoMoreItems
}

func (r *NoOpItemReader) CheckpointInfo(ctx context.Context) (model.ExecutionContext, error) {
	return nil, nil
}

func (r *NoOpItemReader) Close(ctx context.Context) error {
	logger.Debugf("NoOpItemReader: Close called.")
	return nil
}

// NoOpItemWriter is a [port.ItemWriter] that discards every item.
type NoOpItemWriter struct{}

// NewNoOpItemWriter creates a new instance of [NoOpItemWriter].
func NewNoOpItemWriter() *NoOpItemWriter {
	return &NoOpItemWriter{}
}

func (w *NoOpItemWriter) Open(ctx context.Context, checkpoint model.ExecutionContext) error {
	return nil
}

func (w *NoOpItemWriter) WriteItems(ctx context.Context, t tx.Tx, items []any) error {
	logger.Debugf("NoOpItemWriter: Write called with %d items.", len(items))
	return nil
}

func (w *NoOpItemWriter) CheckpointInfo(ctx context.Context) (model.ExecutionContext, error) {
	return nil, nil
}

func (w *NoOpItemWriter) Close(ctx context.Context) error {
	return nil
}

var (
	_ port.ItemReader = (*NoOpItemReader)(nil)
	_ port.ItemWriter = (*NoOpItemWriter)(nil)
)
