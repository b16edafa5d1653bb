package item

import (
	"context"

	port "github.com/bryant1410/jsr352/pkg/batch/core/application/port"
	"github.com/bryant1410/jsr352/pkg/batch/support/util/logger"
)

// PassThroughItemProcessor is a [port.ItemProcessor] that returns every item unchanged.
type PassThroughItemProcessor struct{}

// NewPassThroughItemProcessor creates a new instance of [PassThroughItemProcessor].
func NewPassThroughItemProcessor() *PassThroughItemProcessor {
	return &PassThroughItemProcessor{}
}

// ProcessItem returns item as is.
func (p *PassThroughItemProcessor) ProcessItem(ctx context.Context, item any) (any, error) {
	logger.Debugf("PassThroughItemProcessor: Processing item: %+v", item)
	return item, nil
}

var _ port.ItemProcessor = (*PassThroughItemProcessor)(nil)
