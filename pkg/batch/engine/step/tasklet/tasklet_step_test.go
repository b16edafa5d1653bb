package tasklet_test

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	port "github.com/bryant1410/jsr352/pkg/batch/core/application/port"
	model "github.com/bryant1410/jsr352/pkg/batch/core/domain/model"
	"github.com/bryant1410/jsr352/pkg/batch/engine/step/tasklet"
)

type taskletFunc func(ctx context.Context, sc *port.StepContext) (model.ExitStatus, error)

func (f taskletFunc) Execute(ctx context.Context, sc *port.StepContext) (model.ExitStatus, error) {
	return f(ctx, sc)
}

// blockingTasklet runs until Stop is called.
type blockingTasklet struct {
	started chan struct{}
	stop    chan struct{}
}

func (b *blockingTasklet) Execute(ctx context.Context, sc *port.StepContext) (model.ExitStatus, error) {
	close(b.started)
	<-b.stop
	return "", nil
}

func (b *blockingTasklet) Stop(ctx context.Context) error {
	close(b.stop)
	return nil
}

func newContext() *port.StepContext {
	se := model.NewStepExecution("job-exec", "plain")
	se.MarkStarted()
	return port.NewStepContext(nil, nil, &model.StepDefinition{Name: "plain", TaskletRef: "t"}, se, nil, nil)
}

func TestTaskletStepCompletesWithCustomExitStatus(t *testing.T) {
	sc := newContext()
	step := tasklet.NewTaskletStep(taskletFunc(func(ctx context.Context, sc *port.StepContext) (model.ExitStatus, error) {
		return "DONE", nil
	}), nil)

	status, err := step.Execute(context.Background(), sc)
	require.NoError(t, err)
	assert.Equal(t, model.BatchStatusCompleted, status)
	assert.Equal(t, model.ExitStatus("DONE"), sc.ExitStatus())
}

func TestTaskletStepFailure(t *testing.T) {
	sc := newContext()
	boom := errors.New("boom")
	step := tasklet.NewTaskletStep(taskletFunc(func(ctx context.Context, sc *port.StepContext) (model.ExitStatus, error) {
		return "", boom
	}), nil)

	status, err := step.Execute(context.Background(), sc)
	assert.Equal(t, model.BatchStatusFailed, status)
	assert.ErrorIs(t, err, boom)
}

func TestTaskletStepStopCallsStoppable(t *testing.T) {
	sc := newContext()
	b := &blockingTasklet{started: make(chan struct{}), stop: make(chan struct{})}
	ctx, cancel := context.WithCancel(context.Background())

	go func() {
		<-b.started
		cancel()
	}()

	status, err := tasklet.NewTaskletStep(b, nil).Execute(ctx, sc)
	require.NoError(t, err)
	assert.Equal(t, model.BatchStatusStopped, status)
}

func TestTaskletStepCancelledContextError(t *testing.T) {
	sc := newContext()
	ctx, cancel := context.WithCancel(context.Background())
	step := tasklet.NewTaskletStep(taskletFunc(func(ctx context.Context, sc *port.StepContext) (model.ExitStatus, error) {
		cancel()
		return "", ctx.Err()
	}), nil)

	status, err := step.Execute(ctx, sc)
	require.NoError(t, err)
	assert.Equal(t, model.BatchStatusStopped, status)
}
