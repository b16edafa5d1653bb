// Package partitioner provides partition mappers for partitioned steps.
package partitioner

import (
	"context"
	"fmt"
	"strconv"

	"github.com/bryant1410/jsr352/pkg/batch/component/artifact"
	port "github.com/bryant1410/jsr352/pkg/batch/core/application/port"
	model "github.com/bryant1410/jsr352/pkg/batch/core/domain/model"
	"github.com/bryant1410/jsr352/pkg/batch/support/util/exception"
	logger "github.com/bryant1410/jsr352/pkg/batch/support/util/logger"
)

// GridPartitionMapperRef is the artifact name GridPartitionMapper is registered under.
const GridPartitionMapperRef = "gridPartitionMapper"

// Property keys set on every partition by GridPartitionMapper.
const (
	PartitionIndexKey = "partition.index"
	PartitionCountKey = "partition.count"
)

// GridPartitionMapper splits a step into GridSize partitions. Each partition receives its index
// and the partition count as properties, so readers can select their share of the input.
type GridPartitionMapper struct {
	GridSize int  `batch:"gridSize"`
	Threads  int  `batch:"threads"`
	Override bool `batch:"override"`
}

// NewGridPartitionMapper creates a mapper of gridSize partitions.
func NewGridPartitionMapper(gridSize int) *GridPartitionMapper {
	return &GridPartitionMapper{GridSize: gridSize}
}

// MapPartitions implements port.PartitionMapper.
func (m *GridPartitionMapper) MapPartitions(ctx context.Context, sc *port.StepContext) (*model.PartitionPlan, error) {
	if m.GridSize <= 0 {
		return nil, exception.NewValidationError("GridPartitionMapper", fmt.Sprintf("gridSize must be positive, got %d", m.GridSize), nil)
	}
	logger.Debugf("GridPartitionMapper: Generating %d partitions for step '%s'.", m.GridSize, sc.StepName())
	plan := &model.PartitionPlan{
		Partitions: m.GridSize,
		Threads:    m.Threads,
		Override:   m.Override,
		Properties: make([]map[string]string, m.GridSize),
	}
	for i := range plan.Properties {
		plan.Properties[i] = map[string]string{
			PartitionIndexKey: strconv.Itoa(i),
			PartitionCountKey: strconv.Itoa(m.GridSize),
		}
	}
	return plan, nil
}

var _ port.PartitionMapper = (*GridPartitionMapper)(nil)

// Module registers GridPartitionMapper.
var Module = artifact.Provide(GridPartitionMapperRef, artifact.Bound(func() *GridPartitionMapper {
	return NewGridPartitionMapper(0)
}))
