package flow_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bryant1410/jsr352/pkg/batch/component/flow"
	port "github.com/bryant1410/jsr352/pkg/batch/core/application/port"
	model "github.com/bryant1410/jsr352/pkg/batch/core/domain/model"
)

func stepWith(key string, value any) *model.StepExecution {
	se := model.NewStepExecution("je-1", "prev")
	se.PersistentData.PutNested(key, value)
	return se
}

func decider(t *testing.T, props map[string]string) port.Decider {
	t.Helper()
	sc := port.NewStepContext(nil, nil, nil, nil, props, nil)
	a, err := flow.Builder(context.Background(), sc)
	require.NoError(t, err)
	return a.(port.Decider)
}

func TestConditionalDeciderMatch(t *testing.T) {
	d := decider(t, map[string]string{"conditionKey": "result.code", "expectedValue": "42", "matchStatus": "GO"})

	status, err := d.Decide(context.Background(), []*model.StepExecution{stepWith("result.code", 42)})
	require.NoError(t, err)
	assert.Equal(t, model.ExitStatus("GO"), status)

	status, err = d.Decide(context.Background(), []*model.StepExecution{stepWith("result.code", 7)})
	require.NoError(t, err)
	assert.Equal(t, model.ExitStatusFailed, status)
}

func TestConditionalDeciderMissingKeyUsesDefault(t *testing.T) {
	d := decider(t, map[string]string{"conditionKey": "absent", "defaultStatus": "SKIPPED"})

	status, err := d.Decide(context.Background(), []*model.StepExecution{model.NewStepExecution("je-1", "prev")})
	require.NoError(t, err)
	assert.Equal(t, model.ExitStatus("SKIPPED"), status)
}

func TestConditionalDeciderStaticStatus(t *testing.T) {
	d := decider(t, map[string]string{"exit.status": "ALWAYS"})

	status, err := d.Decide(context.Background(), nil)
	require.NoError(t, err)
	assert.Equal(t, model.ExitStatus("ALWAYS"), status)
}
