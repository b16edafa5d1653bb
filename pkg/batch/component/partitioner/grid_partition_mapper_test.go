package partitioner_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bryant1410/jsr352/pkg/batch/component/partitioner"
	port "github.com/bryant1410/jsr352/pkg/batch/core/application/port"
	model "github.com/bryant1410/jsr352/pkg/batch/core/domain/model"
	"github.com/bryant1410/jsr352/pkg/batch/support/util/exception"
)

func TestGridPartitionMapperPlan(t *testing.T) {
	m := partitioner.NewGridPartitionMapper(3)
	m.Threads = 2
	sc := port.NewStepContext(nil, nil, &model.StepDefinition{Name: "p"}, nil, nil, nil)

	plan, err := m.MapPartitions(context.Background(), sc)
	require.NoError(t, err)
	assert.Equal(t, 3, plan.Partitions)
	assert.Equal(t, 2, plan.EffectiveThreads())
	assert.Equal(t, "1", plan.PartitionProperties(1)[partitioner.PartitionIndexKey])
	assert.Equal(t, "3", plan.PartitionProperties(2)[partitioner.PartitionCountKey])
}

func TestGridPartitionMapperRejectsEmptyGrid(t *testing.T) {
	sc := port.NewStepContext(nil, nil, &model.StepDefinition{Name: "p"}, nil, nil, nil)
	_, err := partitioner.NewGridPartitionMapper(0).MapPartitions(context.Background(), sc)
	assert.ErrorIs(t, err, exception.ErrValidation)
}
