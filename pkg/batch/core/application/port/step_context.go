package port

import (
	"context"
	"errors"

	model "github.com/bryant1410/jsr352/pkg/batch/core/domain/model"
)

// StepContext is the scope object handed to every artifact created for one step or partition
// execution. It lives exactly as long as that execution.
type StepContext struct {
	JobExecution  *model.JobExecution
	JobDefinition *model.JobDefinition
	// StepExecution is the record of the running step, or of the partition when Partition is set.
	// It is nil for job-level artifacts.
	StepExecution *model.StepExecution
	Definition    *model.StepDefinition
	// Partition is set while running one partition of a partitioned step.
	Partition *model.PartitionExecution
	// Properties are the step properties overlaid with the partition plan properties.
	Properties map[string]string
	// TransientUserData is free for artifacts of the same execution to share; it is never persisted.
	TransientUserData any

	persist func(ctx context.Context) error
}

// NewStepContext creates the context of a step or partition execution. persist stores the
// execution record and may be nil.
func NewStepContext(je *model.JobExecution, jobDef *model.JobDefinition, def *model.StepDefinition, se *model.StepExecution, props map[string]string, persist func(ctx context.Context) error) *StepContext {
	return &StepContext{
		JobExecution:  je,
		JobDefinition: jobDef,
		StepExecution: se,
		Definition:    def,
		Properties:    props,
		persist:       persist,
	}
}

// NewJobContext creates the context of job-level artifacts such as job listeners and deciders.
func NewJobContext(je *model.JobExecution, jobDef *model.JobDefinition) *StepContext {
	return &StepContext{JobExecution: je, JobDefinition: jobDef, Properties: jobDef.Properties}
}

// StepName returns the name of the running step, or "" for a job context.
func (sc *StepContext) StepName() string {
	if sc.Definition == nil {
		return ""
	}
	return sc.Definition.Name
}

// Property returns a property value.
func (sc *StepContext) Property(key string) (string, bool) {
	v, ok := sc.Properties[key]
	return v, ok
}

// Parameters returns the job parameters of the running execution.
func (sc *StepContext) Parameters() model.JobParameters {
	if sc.JobExecution == nil {
		return model.NewJobParameters()
	}
	return sc.JobExecution.Parameters
}

// SetExitStatus sets the exit status of the step execution.
func (sc *StepContext) SetExitStatus(status model.ExitStatus) {
	if sc.StepExecution != nil {
		sc.StepExecution.ExitStatus = status
	}
}

// ExitStatus returns the current exit status of the step execution.
func (sc *StepContext) ExitStatus() model.ExitStatus {
	if sc.StepExecution == nil {
		return ""
	}
	return sc.StepExecution.ExitStatus
}

// PersistentData returns the user data persisted with the step execution.
func (sc *StepContext) PersistentData() model.ExecutionContext {
	if sc.StepExecution == nil {
		return nil
	}
	if sc.StepExecution.PersistentData == nil {
		sc.StepExecution.PersistentData = model.NewExecutionContext()
	}
	return sc.StepExecution.PersistentData
}

// Persist stores the step execution record immediately.
func (sc *StepContext) Persist(ctx context.Context) error {
	if sc.persist == nil {
		return errors.New("step context has no backing store")
	}
	return sc.persist(ctx)
}

// ArtifactFactory creates user components by their logical name. The returned value implements
// one or more of the interfaces in this package. Each call returns an instance scoped to sc.
type ArtifactFactory interface {
	Create(ctx context.Context, ref string, sc *StepContext) (any, error)
}
