package runner_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bryant1410/jsr352/pkg/batch/component/artifact"
	model "github.com/bryant1410/jsr352/pkg/batch/core/domain/model"
	"github.com/bryant1410/jsr352/pkg/batch/core/job/runner"
	"github.com/bryant1410/jsr352/pkg/batch/engine/step/scope"
	"github.com/bryant1410/jsr352/pkg/batch/infrastructure/repository/inmemory"
	exception "github.com/bryant1410/jsr352/pkg/batch/support/util/exception"
	batchtest "github.com/bryant1410/jsr352/pkg/batch/test"
)

type harness struct {
	repo   *inmemory.InMemoryJobRepository
	sink   *batchtest.Sink
	runner *runner.JobRunner
}

func newHarness() *harness {
	repo := inmemory.NewInMemoryJobRepository()
	sink := batchtest.NewSink()
	registry := artifact.NewRegistry()
	batchtest.Register(registry, sink)
	return &harness{
		repo:   repo,
		sink:   sink,
		runner: runner.NewJobRunner(scope.Services{Repository: repo, Artifacts: registry}),
	}
}

func (h *harness) stored(t *testing.T, id string) *model.JobExecution {
	t.Helper()
	je, err := h.repo.GetJobExecution(context.Background(), id)
	require.NoError(t, err)
	return je
}

func (h *harness) stepNames(t *testing.T, jobExecutionID string) []string {
	t.Helper()
	steps, err := h.repo.GetStepExecutions(context.Background(), jobExecutionID)
	require.NoError(t, err)
	names := make([]string, 0, len(steps))
	for _, se := range steps {
		names = append(names, se.StepName)
	}
	return names
}

func exit(status string) map[string]string { return map[string]string{"exit.status": status} }

func withTransitions(def *model.StepDefinition, ts ...model.Transition) *model.StepDefinition {
	def.Transitions = ts
	return def
}

func TestStepsRunInListOrder(t *testing.T) {
	h := newHarness()
	def := batchtest.Job("job", batchtest.TaskletStep("s1", exit("ONE")), batchtest.TaskletStep("s2", nil))
	def.Listeners = []string{batchtest.RecorderRef}
	_, je := batchtest.NewJobRun(t, h.repo, "job", model.NewJobParameters())

	require.NoError(t, h.runner.Run(context.Background(), je, def))

	stored := h.stored(t, je.ID)
	assert.Equal(t, model.BatchStatusCompleted, stored.Status)
	assert.Equal(t, model.ExitStatus("COMPLETED"), stored.ExitStatus)
	assert.NotNil(t, stored.EndTime)
	assert.Equal(t, []string{"s1", "s2"}, h.stepNames(t, je.ID))
	assert.Equal(t, []string{"before-job", "after-job:COMPLETED"}, h.sink.Events())
}

func TestEndTransitionCompletesJobWithExitStatus(t *testing.T) {
	h := newHarness()
	s1 := withTransitions(batchtest.TaskletStep("s1", exit("DONE")),
		model.Transition{On: "DON?", Action: model.ActionEnd, ExitStatus: "EARLY"})
	def := batchtest.Job("job", s1, batchtest.TaskletStep("s2", nil))
	_, je := batchtest.NewJobRun(t, h.repo, "job", model.NewJobParameters())

	require.NoError(t, h.runner.Run(context.Background(), je, def))

	stored := h.stored(t, je.ID)
	assert.Equal(t, model.BatchStatusCompleted, stored.Status)
	assert.Equal(t, model.ExitStatus("EARLY"), stored.ExitStatus)
	assert.Equal(t, []string{"s1"}, h.stepNames(t, je.ID))
}

func TestFailTransitionFailsJob(t *testing.T) {
	h := newHarness()
	s1 := withTransitions(batchtest.TaskletStep("s1", exit("BAD")),
		model.Transition{On: "BAD", Action: model.ActionFail, ExitStatus: "REJECTED"})
	def := batchtest.Job("job", s1, batchtest.TaskletStep("s2", nil))
	_, je := batchtest.NewJobRun(t, h.repo, "job", model.NewJobParameters())

	require.Error(t, h.runner.Run(context.Background(), je, def))

	stored := h.stored(t, je.ID)
	assert.Equal(t, model.BatchStatusFailed, stored.Status)
	assert.Equal(t, model.ExitStatus("REJECTED"), stored.ExitStatus)
	assert.Len(t, stored.Failures, 1)
	assert.Equal(t, []string{"s1"}, h.stepNames(t, je.ID))
}

func TestStopTransitionStoresRestartPosition(t *testing.T) {
	h := newHarness()
	s1 := withTransitions(batchtest.TaskletStep("s1", exit("PAUSE")),
		model.Transition{On: "PAUSE", Action: model.ActionStop, RestartAt: "s2"})
	def := batchtest.Job("job", s1, batchtest.TaskletStep("s2", nil))
	_, je := batchtest.NewJobRun(t, h.repo, "job", model.NewJobParameters())

	require.NoError(t, h.runner.Run(context.Background(), je, def))

	stored := h.stored(t, je.ID)
	assert.Equal(t, model.BatchStatusStopped, stored.Status)
	assert.Equal(t, "s2", stored.RestartPosition)
	assert.Equal(t, []string{"s1"}, h.stepNames(t, je.ID))
}

func TestNextTransitionJumpsToTarget(t *testing.T) {
	h := newHarness()
	s1 := withTransitions(batchtest.TaskletStep("s1", exit("SKIP")),
		model.Transition{On: "SKIP", Action: model.ActionNext, To: "s3"},
		model.Transition{On: "*", Action: model.ActionNext, To: "s2"})
	def := batchtest.Job("job", s1, batchtest.TaskletStep("s2", nil), batchtest.TaskletStep("s3", nil))
	_, je := batchtest.NewJobRun(t, h.repo, "job", model.NewJobParameters())

	require.NoError(t, h.runner.Run(context.Background(), je, def))
	assert.Equal(t, []string{"s1", "s3"}, h.stepNames(t, je.ID))
}

func TestFailedStepFailsJob(t *testing.T) {
	h := newHarness()
	def := batchtest.Job("job", batchtest.TaskletStep("s1", map[string]string{"tasklet.fail": "true"}), batchtest.TaskletStep("s2", nil))
	def.Listeners = []string{batchtest.RecorderRef}
	_, je := batchtest.NewJobRun(t, h.repo, "job", model.NewJobParameters())

	err := h.runner.Run(context.Background(), je, def)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "tasklet of step 's1' failed")

	stored := h.stored(t, je.ID)
	assert.Equal(t, model.BatchStatusFailed, stored.Status)
	assert.Equal(t, model.ExitStatus("FAILED"), stored.ExitStatus)
	assert.NotEmpty(t, stored.Failures)
	assert.Equal(t, []string{"s1"}, h.stepNames(t, je.ID))
	assert.Equal(t, []string{"before-job", "after-job:FAILED"}, h.sink.Events())
}

func TestRerunSkipsCompletedSteps(t *testing.T) {
	h := newHarness()
	ctx := context.Background()
	params := model.NewJobParameters()
	first := batchtest.Job("job", batchtest.TaskletStep("s1", nil), batchtest.TaskletStep("s2", map[string]string{"tasklet.fail": "true"}))
	ji, je := batchtest.NewJobRun(t, h.repo, "job", params)
	require.Error(t, h.runner.Run(ctx, je, first))

	second := batchtest.Job("job", batchtest.TaskletStep("s1", nil), batchtest.TaskletStep("s2", nil))
	je2 := model.NewJobExecution(ji, params)
	require.NoError(t, h.repo.CreateJobExecution(ctx, je2))
	require.NoError(t, h.runner.Run(ctx, je2, second))

	assert.Equal(t, model.BatchStatusCompleted, h.stored(t, je2.ID).Status)
	assert.Equal(t, []string{"s2"}, h.stepNames(t, je2.ID))
}

func TestAllowStartIfCompleteRerunsCompletedStep(t *testing.T) {
	h := newHarness()
	ctx := context.Background()
	params := model.NewJobParameters()
	s1 := batchtest.TaskletStep("s1", nil)
	s1.AllowStartIfComplete = true
	ji, je := batchtest.NewJobRun(t, h.repo, "job", params)
	require.Error(t, h.runner.Run(ctx, je, batchtest.Job("job", s1, batchtest.TaskletStep("s2", map[string]string{"tasklet.fail": "true"}))))

	je2 := model.NewJobExecution(ji, params)
	require.NoError(t, h.repo.CreateJobExecution(ctx, je2))
	require.NoError(t, h.runner.Run(ctx, je2, batchtest.Job("job", s1, batchtest.TaskletStep("s2", nil))))
	assert.Equal(t, []string{"s1", "s2"}, h.stepNames(t, je2.ID))
}

func TestStartLimitFailsStepOnceReached(t *testing.T) {
	h := newHarness()
	ctx := context.Background()
	params := model.NewJobParameters()
	s1 := batchtest.TaskletStep("s1", map[string]string{"tasklet.fail": "true"})
	s1.StartLimit = 1
	def := batchtest.Job("job", s1)
	ji, je := batchtest.NewJobRun(t, h.repo, "job", params)
	require.Error(t, h.runner.Run(ctx, je, def))

	je2 := model.NewJobExecution(ji, params)
	require.NoError(t, h.repo.CreateJobExecution(ctx, je2))
	err := h.runner.Run(ctx, je2, def)
	require.Error(t, err)
	assert.ErrorIs(t, err, exception.ErrRestartNotAllowed)
	assert.Equal(t, model.BatchStatusFailed, h.stored(t, je2.ID).Status)
	assert.Empty(t, h.stepNames(t, je2.ID))
}

func TestSplitRunsEveryFlowBeforeContinuing(t *testing.T) {
	h := newHarness()
	split := &model.SplitDefinition{
		ID: "split",
		Flows: []model.FlowDefinition{
			{ID: "f1", Elements: []model.Element{{Step: batchtest.TaskletStep("a", nil)}}},
			{ID: "f2", Elements: []model.Element{{Step: batchtest.TaskletStep("b", nil)}, {Step: batchtest.TaskletStep("b2", nil)}}},
		},
		Next: "c",
	}
	def := &model.JobDefinition{Name: "job", Elements: []model.Element{{Split: split}, {Step: batchtest.TaskletStep("c", nil)}}}
	_, je := batchtest.NewJobRun(t, h.repo, "job", model.NewJobParameters())

	require.NoError(t, h.runner.Run(context.Background(), je, def))

	names := h.stepNames(t, je.ID)
	assert.ElementsMatch(t, []string{"a", "b", "b2", "c"}, names)
	assert.Equal(t, "c", names[len(names)-1])
	assert.Equal(t, model.BatchStatusCompleted, h.stored(t, je.ID).Status)
}

func TestFailedFlowFailsSplit(t *testing.T) {
	h := newHarness()
	split := &model.SplitDefinition{
		ID: "split",
		Flows: []model.FlowDefinition{
			{ID: "f1", Elements: []model.Element{{Step: batchtest.TaskletStep("a", nil)}}},
			{ID: "f2", Elements: []model.Element{{Step: batchtest.TaskletStep("b", map[string]string{"tasklet.fail": "true"})}}},
		},
		Next: "c",
	}
	def := &model.JobDefinition{Name: "job", Elements: []model.Element{{Split: split}, {Step: batchtest.TaskletStep("c", nil)}}}
	_, je := batchtest.NewJobRun(t, h.repo, "job", model.NewJobParameters())

	require.Error(t, h.runner.Run(context.Background(), je, def))
	assert.Equal(t, model.BatchStatusFailed, h.stored(t, je.ID).Status)
	assert.ElementsMatch(t, []string{"a", "b"}, h.stepNames(t, je.ID))
}

func TestDecisionRoutesOnPreviousExitStatus(t *testing.T) {
	h := newHarness()
	decision := &model.DecisionDefinition{
		ID:         "d",
		DeciderRef: batchtest.DeciderRef,
		Transitions: []model.Transition{
			{On: "DECIDED_GREEN", Action: model.ActionNext, To: "ok"},
			{On: "*", Action: model.ActionNext, To: "bad"},
		},
	}
	bad := withTransitions(batchtest.TaskletStep("bad", nil), model.Transition{On: "*", Action: model.ActionEnd})
	def := &model.JobDefinition{Name: "job", Elements: []model.Element{
		{Step: batchtest.TaskletStep("s1", exit("GREEN"))},
		{Decision: decision},
		{Step: bad},
		{Step: batchtest.TaskletStep("ok", nil)},
	}}
	_, je := batchtest.NewJobRun(t, h.repo, "job", model.NewJobParameters())

	require.NoError(t, h.runner.Run(context.Background(), je, def))
	assert.Equal(t, []string{"s1", "ok"}, h.stepNames(t, je.ID))
}

func TestDecisionPropertiesReachDecider(t *testing.T) {
	h := newHarness()
	decision := &model.DecisionDefinition{
		ID:          "d",
		DeciderRef:  batchtest.DeciderRef,
		Properties:  map[string]string{"decider.exit": "FORCED"},
		Transitions: []model.Transition{{On: "FORCED", Action: model.ActionEnd, ExitStatus: "FORCED_END"}},
	}
	def := &model.JobDefinition{Name: "job", Elements: []model.Element{
		{Step: batchtest.TaskletStep("s1", nil)},
		{Decision: decision},
		{Step: batchtest.TaskletStep("s2", nil)},
	}}
	_, je := batchtest.NewJobRun(t, h.repo, "job", model.NewJobParameters())

	require.NoError(t, h.runner.Run(context.Background(), je, def))
	stored := h.stored(t, je.ID)
	assert.Equal(t, model.ExitStatus("FORCED_END"), stored.ExitStatus)
	assert.Equal(t, []string{"s1"}, h.stepNames(t, je.ID))
}

func TestRestartPositionSkipsEarlierElements(t *testing.T) {
	h := newHarness()
	def := batchtest.Job("job", batchtest.TaskletStep("s1", nil), batchtest.TaskletStep("s2", nil))
	_, je := batchtest.NewJobRun(t, h.repo, "job", model.NewJobParameters())
	je.RestartPosition = "s2"

	require.NoError(t, h.runner.Run(context.Background(), je, def))
	assert.Equal(t, []string{"s2"}, h.stepNames(t, je.ID))
}

func TestCancelledContextStopsBeforeFirstElement(t *testing.T) {
	h := newHarness()
	def := batchtest.Job("job", batchtest.TaskletStep("s1", nil))
	_, je := batchtest.NewJobRun(t, h.repo, "job", model.NewJobParameters())
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	require.NoError(t, h.runner.Run(ctx, je, def))
	assert.Equal(t, model.BatchStatusStopped, h.stored(t, je.ID).Status)
	assert.Empty(t, h.stepNames(t, je.ID))
}

func TestStopDuringStepStopsJob(t *testing.T) {
	h := newHarness()
	def := batchtest.Job("job", &model.StepDefinition{Name: "s1", TaskletRef: batchtest.BlockingTaskletRef}, batchtest.TaskletStep("s2", nil))
	_, je := batchtest.NewJobRun(t, h.repo, "job", model.NewJobParameters())
	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		<-h.sink.Started()
		cancel()
	}()

	require.NoError(t, h.runner.Run(ctx, je, def))
	assert.Equal(t, model.BatchStatusStopped, h.stored(t, je.ID).Status)
	assert.Equal(t, []string{"s1"}, h.stepNames(t, je.ID))
}

func TestExecutionStoppedBeforeStartIsLeftAlone(t *testing.T) {
	h := newHarness()
	ctx := context.Background()
	def := batchtest.Job("job", batchtest.TaskletStep("s1", nil))
	_, je := batchtest.NewJobRun(t, h.repo, "job", model.NewJobParameters())

	stopped := je.Copy()
	require.NoError(t, stopped.TransitionTo(model.BatchStatusStopped))
	require.NoError(t, h.repo.UpdateJobExecution(ctx, stopped))

	require.NoError(t, h.runner.Run(ctx, je, def))
	assert.Equal(t, model.BatchStatusStopped, je.Status)
	assert.Empty(t, h.stepNames(t, je.ID))
}
