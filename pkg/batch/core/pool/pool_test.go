package pool_test

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/bryant1410/jsr352/pkg/batch/core/pool"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPoolBoundsConcurrency(t *testing.T) {
	p := pool.New(pool.WithSize(2))
	var running, peak atomic.Int32

	handles := make([]*pool.Handle, 0, 6)
	for i := 0; i < 6; i++ {
		h, err := p.Submit(context.Background(), func(ctx context.Context) error {
			n := running.Add(1)
			for {
				old := peak.Load()
				if n <= old || peak.CompareAndSwap(old, n) {
					break
				}
			}
			time.Sleep(10 * time.Millisecond)
			running.Add(-1)
			return nil
		})
		require.NoError(t, err)
		handles = append(handles, h)
	}
	for _, h := range handles {
		assert.NoError(t, h.Wait(context.Background()))
	}
	assert.LessOrEqual(t, peak.Load(), int32(2))
	assert.NoError(t, p.Shutdown(context.Background()))
}

func TestHandleReturnsTaskError(t *testing.T) {
	p := pool.New()
	boom := errors.New("boom")
	h, err := p.Submit(context.Background(), func(ctx context.Context) error { return boom })
	require.NoError(t, err)
	assert.ErrorIs(t, h.Wait(context.Background()), boom)
}

func TestCancelBeforeStart(t *testing.T) {
	p := pool.New(pool.WithSize(1))
	release := make(chan struct{})
	started := make(chan struct{})
	blocker, err := p.Submit(context.Background(), func(ctx context.Context) error {
		close(started)
		<-release
		return nil
	})
	require.NoError(t, err)
	<-started

	var ran atomic.Bool
	queued, err := p.Submit(context.Background(), func(ctx context.Context) error {
		ran.Store(true)
		return nil
	})
	require.NoError(t, err)
	queued.Cancel()
	assert.ErrorIs(t, queued.Wait(context.Background()), context.Canceled)

	close(release)
	assert.NoError(t, blocker.Wait(context.Background()))
	assert.False(t, ran.Load())
}

func TestSubmitAfterShutdown(t *testing.T) {
	p := pool.New()
	require.NoError(t, p.Shutdown(context.Background()))
	_, err := p.Submit(context.Background(), func(ctx context.Context) error { return nil })
	assert.ErrorIs(t, err, pool.ErrPoolClosed)
}
