package checkpoint_test

import (
	"context"
	"testing"
	"time"

	model "github.com/bryant1410/jsr352/pkg/batch/core/domain/model"
	"github.com/bryant1410/jsr352/pkg/batch/engine/checkpoint"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type fakeClock struct{ t time.Time }

func (c *fakeClock) now() time.Time          { return c.t }
func (c *fakeClock) advance(d time.Duration) { c.t = c.t.Add(d) }

func TestItemThreshold(t *testing.T) {
	ctx := context.Background()
	for _, k := range []int{1, 3, 10} {
		tr := checkpoint.NewTracker(checkpoint.Policy{ItemCount: k})
		require.NoError(t, tr.Begin(ctx))
		commits := 0
		for i := 1; i <= k; i++ {
			tr.ItemRead()
			ready, err := tr.Decide(ctx)
			require.NoError(t, err)
			if ready {
				commits++
				assert.Equal(t, k, i, "commit must happen exactly at item %d", k)
			}
		}
		assert.Equal(t, 1, commits)
	}
}

func TestDefaultItemCount(t *testing.T) {
	ctx := context.Background()
	tr := checkpoint.NewTracker(checkpoint.PolicyFor(&model.ChunkDefinition{}, nil))
	require.NoError(t, tr.Begin(ctx))
	for i := 0; i < model.DefaultItemCount-1; i++ {
		tr.ItemRead()
	}
	ready, _ := tr.Decide(ctx)
	assert.False(t, ready)
	tr.ItemRead()
	ready, _ = tr.Decide(ctx)
	assert.True(t, ready)
}

func TestTimeLimitTriggersFirst(t *testing.T) {
	ctx := context.Background()
	clock := &fakeClock{t: time.Unix(0, 0)}
	tr := checkpoint.NewTracker(checkpoint.Policy{ItemCount: 100, TimeLimit: time.Second}, checkpoint.WithClock(clock.now))
	require.NoError(t, tr.Begin(ctx))
	tr.ItemRead()
	ready, _ := tr.Decide(ctx)
	assert.False(t, ready)

	clock.advance(time.Second)
	ready, _ = tr.Decide(ctx)
	assert.True(t, ready)

	require.NoError(t, tr.Begin(ctx))
	assert.Equal(t, 0, tr.Items())
	ready, _ = tr.Decide(ctx)
	assert.False(t, ready)
}

type mockAlgorithm struct{ mock.Mock }

func (m *mockAlgorithm) IsReadyToCheckpoint(ctx context.Context) (bool, error) {
	args := m.Called(ctx)
	return args.Bool(0), args.Error(1)
}

func (m *mockAlgorithm) BeginCheckpoint(ctx context.Context) error { return m.Called(ctx).Error(0) }
func (m *mockAlgorithm) EndCheckpoint(ctx context.Context) error   { return m.Called(ctx).Error(0) }

func TestCustomAlgorithmOverridesItemCount(t *testing.T) {
	ctx := context.Background()
	algo := &mockAlgorithm{}
	algo.On("BeginCheckpoint", ctx).Return(nil).Once()
	algo.On("IsReadyToCheckpoint", ctx).Return(false, nil).Once()
	algo.On("IsReadyToCheckpoint", ctx).Return(true, nil).Once()
	algo.On("EndCheckpoint", ctx).Return(nil).Once()

	tr := checkpoint.NewTracker(checkpoint.PolicyFor(&model.ChunkDefinition{
		ItemCount:        1,
		CheckpointPolicy: model.CheckpointPolicyCustom,
	}, algo))
	require.NoError(t, tr.Begin(ctx))
	tr.ItemRead()
	ready, err := tr.Decide(ctx)
	require.NoError(t, err)
	assert.False(t, ready, "item count is ignored with a custom algorithm")
	tr.ItemRead()
	ready, err = tr.Decide(ctx)
	require.NoError(t, err)
	assert.True(t, ready)
	require.NoError(t, tr.End(ctx))
	algo.AssertExpectations(t)
}

type timedAlgorithm struct {
	timeout time.Duration
}

func (timedAlgorithm) IsReadyToCheckpoint(ctx context.Context) (bool, error) { return false, nil }

func (a timedAlgorithm) CheckpointTimeout(ctx context.Context) (time.Duration, error) {
	return a.timeout, nil
}

func TestCustomAlgorithmOverridesTimeLimit(t *testing.T) {
	ctx := context.Background()
	clock := &fakeClock{t: time.Unix(0, 0)}
	algo := &mockAlgorithm{}
	algo.On("BeginCheckpoint", ctx).Return(nil)
	algo.On("IsReadyToCheckpoint", ctx).Return(false, nil)

	tr := checkpoint.NewTracker(checkpoint.PolicyFor(&model.ChunkDefinition{
		TimeLimit:        time.Second,
		CheckpointPolicy: model.CheckpointPolicyCustom,
	}, algo), checkpoint.WithClock(clock.now))
	require.NoError(t, tr.Begin(ctx))
	tr.ItemRead()
	clock.advance(2 * time.Second)
	ready, err := tr.Decide(ctx)
	require.NoError(t, err)
	assert.False(t, ready, "the step time limit does not apply to a custom algorithm")
}

func TestCustomAlgorithmTimeout(t *testing.T) {
	ctx := context.Background()
	clock := &fakeClock{t: time.Unix(0, 0)}
	tr := checkpoint.NewTracker(checkpoint.PolicyFor(&model.ChunkDefinition{
		TimeLimit:        time.Hour,
		CheckpointPolicy: model.CheckpointPolicyCustom,
	}, timedAlgorithm{timeout: 3 * time.Second}), checkpoint.WithClock(clock.now))
	require.NoError(t, tr.Begin(ctx))
	tr.ItemRead()
	clock.advance(2 * time.Second)
	ready, _ := tr.Decide(ctx)
	assert.False(t, ready)
	clock.advance(time.Second)
	ready, _ = tr.Decide(ctx)
	assert.True(t, ready)
}

func TestCommitAtEndOfData(t *testing.T) {
	assert.False(t, checkpoint.CommitAtEndOfData(0))
	assert.True(t, checkpoint.CommitAtEndOfData(1))
}
