package inmemory_test

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bryant1410/jsr352/pkg/batch/core/domain/model"
	"github.com/bryant1410/jsr352/pkg/batch/core/domain/repository"
	"github.com/bryant1410/jsr352/pkg/batch/infrastructure/repository/inmemory"
	"github.com/bryant1410/jsr352/pkg/batch/support/util/exception"
)

func sampleJob(name string) *model.JobDefinition {
	return &model.JobDefinition{
		Name: name,
		Elements: []model.Element{
			{Step: &model.StepDefinition{Name: "step1", Chunk: &model.ChunkDefinition{ReaderRef: "r", WriterRef: "w", ItemCount: 5}}},
		},
	}
}

func newExecution(t *testing.T, repo *inmemory.InMemoryJobRepository, jobName string, params model.JobParameters) (*model.JobInstance, *model.JobExecution) {
	t.Helper()
	ctx := context.Background()
	ji, err := model.NewJobInstance(jobName, params, 1)
	require.NoError(t, err)
	require.NoError(t, repo.CreateJobInstance(ctx, ji))
	je := model.NewJobExecution(ji, params)
	require.NoError(t, repo.CreateJobExecution(ctx, je))
	return ji, je
}

func TestJobDefinitions(t *testing.T) {
	ctx := context.Background()
	repo := inmemory.NewInMemoryJobRepository()

	require.NoError(t, repo.AddJob(ctx, sampleJob("b")))
	require.NoError(t, repo.AddJob(ctx, sampleJob("a")))

	jobs, err := repo.GetJobs(ctx)
	require.NoError(t, err)
	require.Len(t, jobs, 2)
	assert.Equal(t, "a", jobs[0].Name)

	def, err := repo.GetJob(ctx, "b")
	require.NoError(t, err)
	assert.Equal(t, 5, def.Elements[0].Step.Chunk.ItemCount)

	require.NoError(t, repo.RemoveJob(ctx, "b"))
	require.NoError(t, repo.RemoveJob(ctx, "b"))
	_, err = repo.GetJob(ctx, "b")
	assert.ErrorIs(t, err, exception.ErrNotFound)
	assert.ErrorIs(t, err, repository.ErrJobNotFound)

	err = repo.AddJob(ctx, &model.JobDefinition{Name: "empty"})
	assert.ErrorIs(t, err, exception.ErrValidation)
}

func TestCreateJobExecutionRejectsSecondRunningExecution(t *testing.T) {
	ctx := context.Background()
	repo := inmemory.NewInMemoryJobRepository()
	ji, je := newExecution(t, repo, "job", model.NewJobParameters())

	second := model.NewJobExecution(ji, model.NewJobParameters())
	err := repo.CreateJobExecution(ctx, second)
	assert.ErrorIs(t, err, exception.ErrInvalidTransition)

	require.NoError(t, je.TransitionTo(model.BatchStatusStarted))
	require.NoError(t, repo.UpdateJobExecution(ctx, je))
	require.NoError(t, je.TransitionTo(model.BatchStatusFailed))
	require.NoError(t, repo.UpdateJobExecution(ctx, je))

	require.NoError(t, repo.CreateJobExecution(ctx, second))
	latest, err := repo.FindLatestJobExecution(ctx, ji.ID)
	require.NoError(t, err)
	assert.Equal(t, second.ID, latest.ID)

	all, err := repo.GetJobExecutions(ctx, ji.ID)
	require.NoError(t, err)
	require.Len(t, all, 2)
	assert.Equal(t, je.ID, all[0].ID)
}

func TestCreateJobInstanceWithExecutionRejectsLiveDuplicate(t *testing.T) {
	ctx := context.Background()
	repo := inmemory.NewInMemoryJobRepository()
	params := model.JobParametersOf(map[string]string{"run": "1"})

	const starters = 16
	var (
		wg       sync.WaitGroup
		mu       sync.Mutex
		created  []*model.JobExecution
		rejected int
	)
	for i := 0; i < starters; i++ {
		ji, err := model.NewJobInstance("job", params, 0)
		require.NoError(t, err)
		je := model.NewJobExecution(ji, params)
		wg.Add(1)
		go func() {
			defer wg.Done()
			err := repo.CreateJobInstanceWithExecution(ctx, ji, je)
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				assert.ErrorIs(t, err, exception.ErrInvalidTransition)
				rejected++
				return
			}
			created = append(created, je)
		}()
	}
	wg.Wait()
	require.Len(t, created, 1)
	assert.Equal(t, starters-1, rejected)
	count, err := repo.GetJobInstanceCount(ctx, "job")
	require.NoError(t, err)
	assert.Equal(t, 1, count)

	other, err := model.NewJobInstance("job", model.JobParametersOf(map[string]string{"run": "2"}), 0)
	require.NoError(t, err)
	require.NoError(t, repo.CreateJobInstanceWithExecution(ctx, other, model.NewJobExecution(other, other.Parameters)))
	assert.Equal(t, 2, other.Sequence)

	je := created[0]
	require.NoError(t, je.TransitionTo(model.BatchStatusStarted))
	require.NoError(t, repo.UpdateJobExecution(ctx, je))
	require.NoError(t, je.TransitionTo(model.BatchStatusCompleted))
	require.NoError(t, repo.UpdateJobExecution(ctx, je))

	again, err := model.NewJobInstance("job", params, 0)
	require.NoError(t, err)
	require.NoError(t, repo.CreateJobInstanceWithExecution(ctx, again, model.NewJobExecution(again, params)))
	assert.Equal(t, 3, again.Sequence)
	found, err := repo.FindJobInstanceByJobNameAndParameters(ctx, "job", params)
	require.NoError(t, err)
	assert.Equal(t, again.ID, found.ID)
}

func TestTerminalJobExecutionIsImmutable(t *testing.T) {
	ctx := context.Background()
	repo := inmemory.NewInMemoryJobRepository()
	_, je := newExecution(t, repo, "job", model.NewJobParameters())
	require.NoError(t, je.TransitionTo(model.BatchStatusStarted))
	require.NoError(t, repo.UpdateJobExecution(ctx, je))
	require.NoError(t, je.TransitionTo(model.BatchStatusCompleted))
	require.NoError(t, repo.UpdateJobExecution(ctx, je))

	je.ExitStatus = "REWRITTEN"
	err := repo.UpdateJobExecution(ctx, je)
	assert.ErrorIs(t, err, exception.ErrInvalidTransition)

	stored, err := repo.GetJobExecution(ctx, je.ID)
	require.NoError(t, err)
	assert.Equal(t, model.BatchStatusCompleted, stored.Status)
	assert.Equal(t, model.ExitStatus("COMPLETED"), stored.ExitStatus)
	assert.Equal(t, 2, stored.Version)
}

func TestUpdateJobExecutionRejectsIllegalTransition(t *testing.T) {
	ctx := context.Background()
	repo := inmemory.NewInMemoryJobRepository()
	_, je := newExecution(t, repo, "job", model.NewJobParameters())

	require.NoError(t, je.TransitionTo(model.BatchStatusStarted))
	require.NoError(t, repo.UpdateJobExecution(ctx, je))
	assert.Equal(t, 1, je.Version)

	je.Status = model.BatchStatusAbandoned
	err := repo.UpdateJobExecution(ctx, je)
	assert.ErrorIs(t, err, exception.ErrInvalidTransition)

	stored, err := repo.GetJobExecution(ctx, je.ID)
	require.NoError(t, err)
	assert.Equal(t, model.BatchStatusStarted, stored.Status)
	assert.Equal(t, 1, stored.Version)
}

func TestReturnedRecordsAreCopies(t *testing.T) {
	ctx := context.Background()
	repo := inmemory.NewInMemoryJobRepository()
	_, je := newExecution(t, repo, "job", model.NewJobParameters())

	got, err := repo.GetJobExecution(ctx, je.ID)
	require.NoError(t, err)
	got.Status = model.BatchStatusCompleted
	got.Failures.Add("mutated")

	again, err := repo.GetJobExecution(ctx, je.ID)
	require.NoError(t, err)
	assert.Equal(t, model.BatchStatusStarting, again.Status)
	assert.Empty(t, again.Failures)
}

func TestFindJobInstanceByParameters(t *testing.T) {
	ctx := context.Background()
	repo := inmemory.NewInMemoryJobRepository()
	params := model.JobParametersOf(map[string]string{"date": "2024-01-01"})
	ji, _ := newExecution(t, repo, "job", params)

	found, err := repo.FindJobInstanceByJobNameAndParameters(ctx, "job", model.JobParametersOf(map[string]string{"date": "2024-01-01"}))
	require.NoError(t, err)
	assert.Equal(t, ji.ID, found.ID)

	_, err = repo.FindJobInstanceByJobNameAndParameters(ctx, "job", model.JobParametersOf(map[string]string{"date": "2024-01-02"}))
	assert.ErrorIs(t, err, repository.ErrJobInstanceNotFound)

	names, err := repo.GetJobNames(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"job"}, names)
	count, err := repo.GetJobInstanceCount(ctx, "job")
	require.NoError(t, err)
	assert.Equal(t, 1, count)
}

func TestStepExecutionCheckpointRoundTrip(t *testing.T) {
	ctx := context.Background()
	repo := inmemory.NewInMemoryJobRepository()
	ji, je := newExecution(t, repo, "job", model.NewJobParameters())

	se := model.NewStepExecution(je.ID, "step1")
	require.NoError(t, repo.CreateStepExecution(ctx, se))

	se.ReadCount = 10
	se.Checkpoint = &model.Checkpoint{
		ReaderState: model.ExecutionContext{"pos": 10},
		ItemCount:   10,
		Metrics:     model.StepMetrics{ReadCount: 10, WriteCount: 10, CommitCount: 1},
	}
	require.NoError(t, repo.UpdateStepExecution(ctx, se))
	assert.Equal(t, 1, se.Version)

	latest, err := repo.FindLatestStepExecution(ctx, ji.ID, "step1")
	require.NoError(t, err)
	require.NotNil(t, latest.Checkpoint)
	assert.EqualValues(t, 10, latest.Checkpoint.ReaderState["pos"])
	assert.Equal(t, 1, latest.Checkpoint.Metrics.CommitCount)

	count, err := repo.GetStepExecutionCount(ctx, ji.ID, "step1")
	require.NoError(t, err)
	assert.Equal(t, 1, count)

	_, err = repo.FindLatestStepExecution(ctx, ji.ID, "other")
	assert.ErrorIs(t, err, repository.ErrStepExecutionNotFound)

	se.Checkpoint.ReaderState["bad"] = make(chan int)
	assert.Error(t, repo.UpdateStepExecution(ctx, se))
}

func TestPartitionExecutionsOrderedByIndex(t *testing.T) {
	ctx := context.Background()
	repo := inmemory.NewInMemoryJobRepository()
	_, je := newExecution(t, repo, "job", model.NewJobParameters())
	se := model.NewStepExecution(je.ID, "step1")
	require.NoError(t, repo.CreateStepExecution(ctx, se))

	for _, i := range []int{2, 0, 1} {
		pe := model.NewPartitionExecution(se, i, map[string]string{"partition": "p"})
		require.NoError(t, repo.CreatePartitionExecution(ctx, pe))
	}
	parts, err := repo.GetPartitionExecutions(ctx, se.ID)
	require.NoError(t, err)
	require.Len(t, parts, 3)
	for i, pe := range parts {
		assert.Equal(t, i, pe.PartitionIndex)
	}

	_, err = repo.GetPartitionExecutions(ctx, "missing")
	assert.ErrorIs(t, err, exception.ErrNotFound)
}

func TestConcurrentUpdatesIncrementVersion(t *testing.T) {
	ctx := context.Background()
	repo := inmemory.NewInMemoryJobRepository()
	_, je := newExecution(t, repo, "job", model.NewJobParameters())
	se := model.NewStepExecution(je.ID, "step1")
	require.NoError(t, repo.CreateStepExecution(ctx, se))

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			cp := se.Copy()
			assert.NoError(t, repo.UpdateStepExecution(ctx, cp))
		}()
	}
	wg.Wait()

	stored, err := repo.GetStepExecution(ctx, se.ID)
	require.NoError(t, err)
	assert.Equal(t, 20, stored.Version)
}
