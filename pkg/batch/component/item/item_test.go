package item_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bryant1410/jsr352/pkg/batch/component/artifact"
	"github.com/bryant1410/jsr352/pkg/batch/component/item"
	port "github.com/bryant1410/jsr352/pkg/batch/core/application/port"
	model "github.com/bryant1410/jsr352/pkg/batch/core/domain/model"
)

func readAll(t *testing.T, r port.ItemReader) []any {
	t.Helper()
	var out []any
	for {
		v, err := r.ReadItem(context.Background())
		if err == port.ErrNoMoreItems {
			return out
		}
		require.NoError(t, err)
		out = append(out, v)
	}
}

func TestSequenceReaderResumesFromCheckpoint(t *testing.T) {
	ctx := context.Background()
	r := item.NewSequenceItemReader(5)
	require.NoError(t, r.Open(ctx, nil))

	for i := 1; i <= 2; i++ {
		v, err := r.ReadItem(ctx)
		require.NoError(t, err)
		assert.Equal(t, i, v)
	}
	cp, err := r.CheckpointInfo(ctx)
	require.NoError(t, err)

	restarted := item.NewSequenceItemReader(5)
	require.NoError(t, restarted.Open(ctx, cp))
	assert.Equal(t, []any{3, 4, 5}, readAll(t, restarted))
}

func TestSequenceReaderFailsOnceAtConfiguredItem(t *testing.T) {
	ctx := context.Background()
	r := item.NewSequenceItemReader(3)
	r.FailAt = 2
	require.NoError(t, r.Open(ctx, nil))

	_, err := r.ReadItem(ctx)
	require.NoError(t, err)
	_, err = r.ReadItem(ctx)
	assert.ErrorIs(t, err, item.ErrInjectedReadFailure)

	v, err := r.ReadItem(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, v)
}

func TestExecutionContextWriterCountsIntoPersistentData(t *testing.T) {
	ctx := context.Background()
	se := model.NewStepExecution("je-1", "count")
	sc := port.NewStepContext(nil, nil, nil, se, map[string]string{"key": "written"}, nil)

	r := artifact.NewRegistry()
	item.Register(r)
	a, err := r.Create(ctx, item.ExecutionContextItemWriterRef, sc)
	require.NoError(t, err)
	w := a.(*item.ExecutionContextItemWriter)

	require.NoError(t, w.Open(ctx, nil))
	require.NoError(t, w.WriteItems(ctx, nil, []any{1, 2, 3}))
	require.NoError(t, w.WriteItems(ctx, nil, []any{4}))

	v, ok := se.PersistentData.GetInt("written")
	require.True(t, ok)
	assert.Equal(t, 4, v)

	cp, err := w.CheckpointInfo(ctx)
	require.NoError(t, err)
	resumed := item.NewExecutionContextItemWriter(nil, "written")
	require.NoError(t, resumed.Open(ctx, cp))
	assert.Equal(t, 4, resumed.Count())
}

func TestRegisterBindsSequenceReaderProperties(t *testing.T) {
	r := artifact.NewRegistry()
	item.Register(r)
	sc := port.NewStepContext(nil, nil, nil, nil, map[string]string{"count": "2"}, nil)

	a, err := r.Create(context.Background(), item.SequenceItemReaderRef, sc)
	require.NoError(t, err)
	reader := a.(port.ItemReader)
	require.NoError(t, reader.Open(context.Background(), nil))
	assert.Equal(t, []any{1, 2}, readAll(t, reader))
}

func TestNoOpComponents(t *testing.T) {
	ctx := context.Background()
	_, err := item.NewNoOpItemReader().ReadItem(ctx)
	assert.ErrorIs(t, err, port.ErrNoMoreItems)

	out, err := item.NewPassThroughItemProcessor().ProcessItem(ctx, "x")
	require.NoError(t, err)
	assert.Equal(t, "x", out)

	assert.NoError(t, item.NewNoOpItemWriter().WriteItems(ctx, nil, []any{1}))
}
