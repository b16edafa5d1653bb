package test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	model "github.com/bryant1410/jsr352/pkg/batch/core/domain/model"
	repository "github.com/bryant1410/jsr352/pkg/batch/core/domain/repository"
)

// NewTestJobParameters creates JobParameters for testing.
func NewTestJobParameters(params map[string]interface{}) model.JobParameters {
	jp := model.NewJobParameters()
	for k, v := range params {
		jp.Put(k, v)
	}
	return jp
}

// NewJobRun creates and stores a job instance of jobName and its first STARTING execution.
func NewJobRun(t *testing.T, repo repository.JobRepository, jobName string, params model.JobParameters) (*model.JobInstance, *model.JobExecution) {
	t.Helper()
	ctx := context.Background()
	ji, err := model.NewJobInstance(jobName, params, 1)
	require.NoError(t, err)
	require.NoError(t, repo.CreateJobInstance(ctx, ji))
	je := model.NewJobExecution(ji, params)
	require.NoError(t, repo.CreateJobExecution(ctx, je))
	return ji, je
}

// ChunkStep returns a chunk step definition reading with NumberReader and writing with NumberWriter.
func ChunkStep(name string, itemCount int, props map[string]string) *model.StepDefinition {
	return &model.StepDefinition{
		Name:       name,
		Properties: props,
		Chunk: &model.ChunkDefinition{
			ReaderRef: NumberReaderRef,
			WriterRef: NumberWriterRef,
			ItemCount: itemCount,
		},
	}
}

// TaskletStep returns a step definition running ExitStatusTasklet.
func TaskletStep(name string, props map[string]string) *model.StepDefinition {
	return &model.StepDefinition{Name: name, TaskletRef: ExitTaskletRef, Properties: props}
}

// Job returns a job definition running steps in list order.
func Job(name string, steps ...*model.StepDefinition) *model.JobDefinition {
	def := &model.JobDefinition{Name: name}
	for _, s := range steps {
		def.Elements = append(def.Elements, model.Element{Step: s})
	}
	return def
}
