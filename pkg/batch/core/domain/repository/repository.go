// Package repository defines the contract of the job repository: the durable store of job
// definitions, execution records and checkpoints that every other part of the engine depends on.
//
// Every mutation is atomic per record key. Concurrent updates of the same record serialize and
// the update that finishes last wins. Lookups of unknown ids fail with an error matching both
// exception.ErrNotFound and the sentinel of the missing record type.
package repository

import (
	"context"
	"errors"

	model "github.com/bryant1410/jsr352/pkg/batch/core/domain/model"
	"github.com/bryant1410/jsr352/pkg/batch/support/util/exception"
)

var (
	// ErrJobNotFound is returned when no job definition has the requested name.
	ErrJobNotFound = errors.New("job definition not found")
	// ErrJobInstanceNotFound is returned when a JobInstance is not found.
	ErrJobInstanceNotFound = errors.New("job instance not found")
	// ErrJobExecutionNotFound is returned when a JobExecution is not found.
	ErrJobExecutionNotFound = errors.New("job execution not found")
	// ErrStepExecutionNotFound is returned when a StepExecution is not found.
	ErrStepExecutionNotFound = errors.New("step execution not found")
	// ErrPartitionExecutionNotFound is returned when a PartitionExecution is not found.
	ErrPartitionExecutionNotFound = errors.New("partition execution not found")
)

func init() {
	exception.RegisterErrorType("ErrJobNotFound", ErrJobNotFound)
	exception.RegisterErrorType("ErrJobInstanceNotFound", ErrJobInstanceNotFound)
	exception.RegisterErrorType("ErrJobExecutionNotFound", ErrJobExecutionNotFound)
	exception.RegisterErrorType("ErrStepExecutionNotFound", ErrStepExecutionNotFound)
	exception.RegisterErrorType("ErrPartitionExecutionNotFound", ErrPartitionExecutionNotFound)
}

// NotFound builds the error backends return for a missing record.
func NotFound(module string, sentinel error, id string) error {
	return exception.NewNotFoundError(module, sentinel.Error()+": "+id, sentinel)
}

// JobDefinitions stores resolved job graphs.
type JobDefinitions interface {
	// AddJob stores def after validating it, replacing any definition with the same name.
	AddJob(ctx context.Context, def *model.JobDefinition) error
	// RemoveJob deletes the definition named jobName. Unknown names are ignored.
	RemoveJob(ctx context.Context, jobName string) error
	// GetJobs returns all stored definitions.
	GetJobs(ctx context.Context) ([]*model.JobDefinition, error)
	// GetJob returns the definition named jobName.
	GetJob(ctx context.Context, jobName string) (*model.JobDefinition, error)
}

// JobRepository is the interface for persisting and managing batch execution metadata.
// It embeds smaller repository interfaces to separate concerns.
type JobRepository interface {
	JobDefinitions
	JobInstance
	JobExecution
	StepExecution
	PartitionExecution

	// Close releases resources (such as database connections) used by the repository.
	Close() error
}
