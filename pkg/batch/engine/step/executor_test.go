package step_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bryant1410/jsr352/pkg/batch/component/artifact"
	model "github.com/bryant1410/jsr352/pkg/batch/core/domain/model"
	"github.com/bryant1410/jsr352/pkg/batch/engine/step"
	"github.com/bryant1410/jsr352/pkg/batch/engine/step/scope"
	"github.com/bryant1410/jsr352/pkg/batch/infrastructure/repository/inmemory"
	batchtest "github.com/bryant1410/jsr352/pkg/batch/test"
	exception "github.com/bryant1410/jsr352/pkg/batch/support/util/exception"
)

type harness struct {
	repo     *inmemory.InMemoryJobRepository
	sink     *batchtest.Sink
	executor *step.Executor
}

func newHarness() *harness {
	repo := inmemory.NewInMemoryJobRepository()
	sink := batchtest.NewSink()
	registry := artifact.NewRegistry()
	batchtest.Register(registry, sink)
	return &harness{
		repo:     repo,
		sink:     sink,
		executor: step.NewExecutor(scope.Services{Repository: repo, Artifacts: registry}),
	}
}

func TestTaskletStepIsPersistedWithListenerCallbacks(t *testing.T) {
	h := newHarness()
	def := batchtest.TaskletStep("s1", map[string]string{"exit.status": "DONE_WELL"})
	def.Listeners = []string{batchtest.RecorderRef}
	_, je := batchtest.NewJobRun(t, h.repo, "job", model.NewJobParameters())

	se, err := h.executor.Execute(context.Background(), step.Request{JobExecution: je, JobDefinition: batchtest.Job("job", def), Step: def})
	require.NoError(t, err)
	assert.Equal(t, model.BatchStatusCompleted, se.Status)
	assert.Equal(t, model.ExitStatus("DONE_WELL"), se.ExitStatus)
	assert.Equal(t, []string{"before-step:s1", "after-step:s1:COMPLETED"}, h.sink.Events())

	stored, err := h.repo.GetStepExecution(context.Background(), se.ID)
	require.NoError(t, err)
	assert.Equal(t, model.BatchStatusCompleted, stored.Status)
	assert.NotNil(t, stored.EndTime)
}

func TestFailedStepRecordsFailure(t *testing.T) {
	h := newHarness()
	def := batchtest.TaskletStep("s1", map[string]string{"tasklet.fail": "true"})
	_, je := batchtest.NewJobRun(t, h.repo, "job", model.NewJobParameters())

	se, err := h.executor.Execute(context.Background(), step.Request{JobExecution: je, Step: def})
	require.Error(t, err)
	assert.Equal(t, model.BatchStatusFailed, se.Status)

	stored, err := h.repo.GetStepExecution(context.Background(), se.ID)
	require.NoError(t, err)
	assert.Equal(t, model.BatchStatusFailed, stored.Status)
	require.Len(t, stored.Failures, 1)
	assert.Contains(t, stored.Failures[0], "tasklet of step 's1' failed")
}

func TestUnknownArtifactFailsStepWithValidationError(t *testing.T) {
	h := newHarness()
	def := &model.StepDefinition{Name: "s1", TaskletRef: "nope"}
	_, je := batchtest.NewJobRun(t, h.repo, "job", model.NewJobParameters())

	se, err := h.executor.Execute(context.Background(), step.Request{JobExecution: je, Step: def})
	require.Error(t, err)
	assert.ErrorIs(t, err, exception.ErrValidation)
	assert.Equal(t, model.BatchStatusFailed, se.Status)
}

func TestChunkStepResumesFromPriorCheckpoint(t *testing.T) {
	h := newHarness()
	ctx := context.Background()
	def := batchtest.ChunkStep("s1", 10, nil)
	ji, je := batchtest.NewJobRun(t, h.repo, "job", batchtest.NewTestJobParameters(map[string]interface{}{"reader.fail.at": 13}))

	first, err := h.executor.Execute(ctx, step.Request{JobExecution: je, Step: def})
	require.Error(t, err)
	assert.Equal(t, model.BatchStatusFailed, first.Status)
	assert.Equal(t, 13, first.ReadCount)
	assert.Equal(t, 10, first.WriteCount)
	assert.Equal(t, 1, first.CommitCount)

	require.NoError(t, je.TransitionTo(model.BatchStatusStarted))
	require.NoError(t, je.MarkFailed(err))
	require.NoError(t, h.repo.UpdateJobExecution(ctx, je))
	restart := model.NewJobExecution(ji, model.NewJobParameters())
	require.NoError(t, h.repo.CreateJobExecution(ctx, restart))

	prior, err := h.repo.FindLatestStepExecution(ctx, ji.ID, "s1")
	require.NoError(t, err)
	second, err := h.executor.Execute(ctx, step.Request{JobExecution: restart, Step: def, Prior: prior})
	require.NoError(t, err)
	assert.Equal(t, model.BatchStatusCompleted, second.Status)
	assert.Equal(t, 20, second.ReadCount)
	assert.Equal(t, 20, second.WriteCount)
	assert.Equal(t, 3, second.CommitCount)

	written := h.sink.Written()
	require.Len(t, written, 20)
	assert.Equal(t, 10, written[10])
}

func TestCompletedPriorStartsFresh(t *testing.T) {
	h := newHarness()
	def := batchtest.ChunkStep("s1", 10, map[string]string{"reader.limit": "5"})
	_, je := batchtest.NewJobRun(t, h.repo, "job", model.NewJobParameters())
	prior := model.NewStepExecution("old", "s1")
	prior.Checkpoint = &model.Checkpoint{ReaderState: model.ExecutionContext{"position": 5}}
	prior.Finish(model.BatchStatusCompleted)

	se, err := h.executor.Execute(context.Background(), step.Request{JobExecution: je, Step: def, Prior: prior})
	require.NoError(t, err)
	assert.Equal(t, 5, se.ReadCount)
}

func TestPartitionedChunkStep(t *testing.T) {
	h := newHarness()
	def := batchtest.ChunkStep("s1", 3, nil)
	def.Listeners = []string{batchtest.RecorderRef}
	def.Partition = &model.PartitionDefinition{
		Plan: &model.PartitionPlan{Partitions: 3, Threads: 2, Properties: []map[string]string{
			{"reader.limit": "4"}, {"reader.limit": "5"}, {"reader.limit": "6"},
		}},
		AnalyzerRef: batchtest.AnalyzerRef,
	}
	def.Properties = map[string]string{"analyzer.expected": "3"}
	_, je := batchtest.NewJobRun(t, h.repo, "job", model.NewJobParameters())

	se, err := h.executor.Execute(context.Background(), step.Request{JobExecution: je, Step: def})
	require.NoError(t, err)
	assert.Equal(t, model.BatchStatusCompleted, se.Status)
	assert.Equal(t, model.ExitStatus("PARTITIONS_3"), se.ExitStatus)
	assert.Equal(t, 15, se.ReadCount)
	assert.Equal(t, 15, se.WriteCount)
	assert.Len(t, h.sink.Written(), 15)
	assert.Equal(t, []string{"before-step:s1", "after-step:s1:COMPLETED"}, h.sink.Events())

	parts, err := h.repo.GetPartitionExecutions(context.Background(), se.ID)
	require.NoError(t, err)
	require.Len(t, parts, 3)
	assert.Equal(t, 4, parts[0].ReadCount)
	assert.Equal(t, 6, parts[2].ReadCount)
}

func TestStopRequestEndsStepStopped(t *testing.T) {
	h := newHarness()
	def := &model.StepDefinition{Name: "s1", TaskletRef: batchtest.BlockingTaskletRef}
	_, je := batchtest.NewJobRun(t, h.repo, "job", model.NewJobParameters())
	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		<-h.sink.Started()
		cancel()
	}()

	se, err := h.executor.Execute(ctx, step.Request{JobExecution: je, Step: def})
	require.NoError(t, err)
	assert.Equal(t, model.BatchStatusStopped, se.Status)
}
