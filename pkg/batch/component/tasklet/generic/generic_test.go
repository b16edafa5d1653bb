package generic_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bryant1410/jsr352/pkg/batch/component/artifact"
	"github.com/bryant1410/jsr352/pkg/batch/component/tasklet/generic"
	port "github.com/bryant1410/jsr352/pkg/batch/core/application/port"
	model "github.com/bryant1410/jsr352/pkg/batch/core/domain/model"
	"github.com/bryant1410/jsr352/pkg/batch/support/util/exception"
)

func stepContext(restarts int, props map[string]string) (*port.StepContext, *model.StepExecution) {
	je := &model.JobExecution{ID: "je-1", Parameters: model.NewJobParameters(), RestartCount: restarts}
	se := model.NewStepExecution(je.ID, "write")
	return port.NewStepContext(je, nil, &model.StepDefinition{Name: "write"}, se, props, nil), se
}

func TestExecutionContextWriterTaskletWritesTypedValues(t *testing.T) {
	sc, se := stepContext(0, map[string]string{
		"count.int":          "10",
		"report.name.string": "daily",
		"ratio.float":        "0.5",
		"ok.bool":            "true",
		"untyped":            "x",
	})

	status, err := generic.NewExecutionContextWriterTasklet().Execute(context.Background(), sc)
	require.NoError(t, err)
	assert.Equal(t, model.ExitStatusCompleted, status)

	count, _ := se.PersistentData.GetInt("count")
	assert.Equal(t, 10, count)
	name, ok := se.PersistentData.GetNested("report.name")
	require.True(t, ok)
	assert.Equal(t, "daily", name)
	assert.Equal(t, 0.5, se.PersistentData["ratio"])
	_, ok = se.PersistentData.Get("untyped")
	assert.False(t, ok)
}

func TestExecutionContextWriterTaskletRejectsBadValue(t *testing.T) {
	sc, _ := stepContext(0, map[string]string{"count.int": "ten"})
	status, err := generic.NewExecutionContextWriterTasklet().Execute(context.Background(), sc)
	assert.ErrorIs(t, err, exception.ErrValidation)
	assert.Equal(t, model.ExitStatusFailed, status)
}

func TestFailingTaskletFailsUntilRestarted(t *testing.T) {
	r := artifact.NewRegistry()
	generic.Register(r)

	for restarts, wantErr := range []bool{true, true, false} {
		sc, _ := stepContext(restarts, map[string]string{"failCount": "2"})
		a, err := r.Create(context.Background(), generic.FailingTaskletRef, sc)
		require.NoError(t, err)

		_, err = a.(port.Tasklet).Execute(context.Background(), sc)
		if wantErr {
			assert.ErrorIs(t, err, generic.ErrInjectedFailure, "run %d", restarts)
		} else {
			assert.NoError(t, err, "run %d", restarts)
		}
	}
}
