package app_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/fx"
	"go.uber.org/fx/fxtest"

	"github.com/bryant1410/jsr352/example/chunkstop/internal/app"
	usecase "github.com/bryant1410/jsr352/pkg/batch/core/application/usecase"
	config "github.com/bryant1410/jsr352/pkg/batch/core/config"
	model "github.com/bryant1410/jsr352/pkg/batch/core/domain/model"
)

const testConfig = `
batch:
  chunk_size: 5
system:
  logging:
    level: WARN
`

func countJob() *model.JobDefinition {
	return &model.JobDefinition{
		Name: "count",
		Elements: []model.Element{
			{Step: &model.StepDefinition{
				Name:       "countStep",
				Next:       "flakyStep",
				Properties: map[string]string{"count": "7", "key": "written"},
				Listeners:  []string{"loggingStepListener", "loggingChunkListener"},
				Chunk: &model.ChunkDefinition{
					ReaderRef:    "sequenceItemReader",
					ProcessorRef: "passThroughItemProcessor",
					WriterRef:    "executionContextItemWriter",
					ItemCount:    3,
				},
			}},
			{Step: &model.StepDefinition{
				Name:       "flakyStep",
				TaskletRef: "failingTasklet",
				Properties: map[string]string{"failCount": "1"},
			}},
		},
	}
}

func TestApplicationRunsAndRestartsJob(t *testing.T) {
	var operator usecase.JobOperator
	fxApp := fxtest.New(t, append(
		app.Options([]byte(testConfig), "", config.RepositoryTypeInMemory, countJob()),
		fx.Populate(&operator),
	)...)
	fxApp.RequireStart()
	defer fxApp.RequireStop()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	je, err := operator.Start(ctx, "count", model.NewJobParameters())
	require.NoError(t, err)
	first, err := operator.WaitForCompletion(ctx, je.ID)
	require.NoError(t, err)
	assert.Equal(t, model.BatchStatusFailed, first.Status)

	steps, err := operator.GetStepExecutions(ctx, first.ID)
	require.NoError(t, err)
	require.Len(t, steps, 2)
	assert.Equal(t, 7, steps[0].WriteCount)
	written, _ := steps[0].PersistentData.GetInt("written")
	assert.Equal(t, 7, written)

	re, err := operator.Restart(ctx, first.ID, model.NewJobParameters())
	require.NoError(t, err)
	second, err := operator.WaitForCompletion(ctx, re.ID)
	require.NoError(t, err)
	assert.Equal(t, model.BatchStatusCompleted, second.Status)

	steps, err = operator.GetStepExecutions(ctx, second.ID)
	require.NoError(t, err)
	require.Len(t, steps, 1)
	assert.Equal(t, "flakyStep", steps[0].StepName)
}
