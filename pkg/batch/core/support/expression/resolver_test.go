package expression_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	port "github.com/bryant1410/jsr352/pkg/batch/core/application/port"
	model "github.com/bryant1410/jsr352/pkg/batch/core/domain/model"
	"github.com/bryant1410/jsr352/pkg/batch/core/support/expression"
)

func stepContext() *port.StepContext {
	je := &model.JobExecution{Parameters: model.JobParametersOf(map[string]string{"date": "2026-10-14"})}
	def := &model.JobDefinition{Name: "report", Properties: map[string]string{"region": "eu"}}
	sc := port.NewStepContext(je, def, &model.StepDefinition{Name: "load"}, nil, nil, nil)
	parent := model.NewStepExecution("je-1", "load")
	sc.Partition = model.NewPartitionExecution(parent, 1, map[string]string{"shard": "7"})
	return sc
}

func TestResolveReferences(t *testing.T) {
	sc := stepContext()
	cases := map[string]string{
		"plain":                                  "plain",
		"#{jobParameters['date']}":               "2026-10-14",
		"out/#{jobProperties['region']}/x.csv":   "out/eu/x.csv",
		"#{partitionPlan['shard']}":              "7",
		"#{jobParameters['missing']}?:fallback;": "fallback",
		"#{jobParameters['missing']}":            "",
		"#{ jobParameters['date'] }-#{partitionPlan['shard']}": "2026-10-14-7",
	}
	for in, want := range cases {
		assert.Equal(t, want, expression.Resolve(in, sc), in)
	}
}

func TestResolveWithoutContextUsesDefaults(t *testing.T) {
	assert.Equal(t, "10", expression.Resolve("#{jobParameters['limit']}?:10;", nil))
	assert.False(t, expression.HasReference("#{unknown['x']}"))
}
