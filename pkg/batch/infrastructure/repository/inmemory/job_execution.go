package inmemory

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/bryant1410/jsr352/pkg/batch/core/domain/model"
	"github.com/bryant1410/jsr352/pkg/batch/core/domain/repository"
	"github.com/bryant1410/jsr352/pkg/batch/support/util/exception"
)

// CreateJobExecution persists a new JobExecution.
// It fails with InvalidTransition when the instance already has a non-terminal execution.
func (r *InMemoryJobRepository) CreateJobExecution(ctx context.Context, execution *model.JobExecution) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.jobInstances[execution.JobInstanceID]; !ok {
		return repository.NotFound(module, repository.ErrJobInstanceNotFound, execution.JobInstanceID)
	}
	if _, exists := r.jobExecutions[execution.ID]; exists {
		return exception.NewRepositoryError(module, "JobExecution with ID "+execution.ID+" already exists", nil, false)
	}
	for _, rec := range r.jobExecutions {
		if rec.execution.JobInstanceID == execution.JobInstanceID && !rec.execution.Status.IsTerminal() {
			return exception.NewInvalidTransitionError(module, fmt.Sprintf("job instance %s already has execution %s in status %s",
				execution.JobInstanceID, rec.execution.ID, rec.execution.Status))
		}
	}
	r.jobExecutions[execution.ID] = &jobExecutionRecord{seq: r.nextSeq(), execution: execution.Copy()}
	return nil
}

// CreateJobInstanceWithExecution persists a new JobInstance and its first JobExecution under one lock.
func (r *InMemoryJobRepository) CreateJobInstanceWithExecution(ctx context.Context, instance *model.JobInstance, execution *model.JobExecution) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.jobInstances[instance.ID]; exists {
		return exception.NewRepositoryError(module, "JobInstance with ID "+instance.ID+" already exists", nil, false)
	}
	if _, exists := r.jobExecutions[execution.ID]; exists {
		return exception.NewRepositoryError(module, "JobExecution with ID "+execution.ID+" already exists", nil, false)
	}
	count := 0
	for _, rec := range r.jobInstances {
		if rec.instance.JobName == instance.JobName {
			count++
		}
	}
	for _, rec := range r.jobExecutions {
		je := rec.execution
		if je.Status.IsTerminal() {
			continue
		}
		if ji, ok := r.jobInstances[je.JobInstanceID]; ok && ji.instance.JobName == instance.JobName && ji.instance.ParametersHash == instance.ParametersHash {
			return exception.NewInvalidTransitionError(module, fmt.Sprintf("job instance %s of job '%s' with the same parameters is already running in execution %s (status %s)",
				je.JobInstanceID, instance.JobName, je.ID, je.Status))
		}
	}
	instance.Sequence = count + 1
	execution.JobInstanceID = instance.ID
	r.jobInstances[instance.ID] = &instanceRecord{seq: r.nextSeq(), instance: copyInstance(instance)}
	r.jobExecutions[execution.ID] = &jobExecutionRecord{seq: r.nextSeq(), execution: execution.Copy()}
	return nil
}

// UpdateJobExecution updates an existing JobExecution and increments its Version.
func (r *InMemoryJobRepository) UpdateJobExecution(ctx context.Context, execution *model.JobExecution) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	rec, ok := r.jobExecutions[execution.ID]
	if !ok {
		return repository.NotFound(module, repository.ErrJobExecutionNotFound, execution.ID)
	}
	if !rec.execution.Status.CanTransitionTo(execution.Status) {
		return exception.NewInvalidTransitionError(module, fmt.Sprintf("job execution %s cannot move from %s to %s",
			execution.ID, rec.execution.Status, execution.Status))
	}
	execution.Version = rec.execution.Version + 1
	execution.LastUpdated = time.Now()
	rec.execution = execution.Copy()
	return nil
}

// GetJobExecution finds a JobExecution by its ID.
func (r *InMemoryJobRepository) GetJobExecution(ctx context.Context, executionID string) (*model.JobExecution, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	rec, ok := r.jobExecutions[executionID]
	if !ok {
		return nil, repository.NotFound(module, repository.ErrJobExecutionNotFound, executionID)
	}
	return rec.execution.Copy(), nil
}

// GetJobExecutions returns the executions of an instance, oldest first.
func (r *InMemoryJobRepository) GetJobExecutions(ctx context.Context, instanceID string) ([]*model.JobExecution, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if _, ok := r.jobInstances[instanceID]; !ok {
		return nil, repository.NotFound(module, repository.ErrJobInstanceNotFound, instanceID)
	}
	return r.executionsOf(instanceID), nil
}

func (r *InMemoryJobRepository) executionsOf(instanceID string) []*model.JobExecution {
	var recs []*jobExecutionRecord
	for _, rec := range r.jobExecutions {
		if rec.execution.JobInstanceID == instanceID {
			recs = append(recs, rec)
		}
	}
	sort.Slice(recs, func(i, j int) bool { return recs[i].seq < recs[j].seq })
	out := make([]*model.JobExecution, 0, len(recs))
	for _, rec := range recs {
		out = append(out, rec.execution.Copy())
	}
	return out
}

// FindLatestJobExecution returns the most recently created execution of an instance.
func (r *InMemoryJobRepository) FindLatestJobExecution(ctx context.Context, instanceID string) (*model.JobExecution, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	executions := r.executionsOf(instanceID)
	if len(executions) == 0 {
		return nil, repository.NotFound(module, repository.ErrJobExecutionNotFound, "latest of instance "+instanceID)
	}
	return executions[len(executions)-1], nil
}

// FindRunningJobExecutions returns the non-terminal executions of jobName, oldest first.
func (r *InMemoryJobRepository) FindRunningJobExecutions(ctx context.Context, jobName string) ([]*model.JobExecution, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var recs []*jobExecutionRecord
	for _, rec := range r.jobExecutions {
		if rec.execution.JobName == jobName && !rec.execution.Status.IsTerminal() {
			recs = append(recs, rec)
		}
	}
	sort.Slice(recs, func(i, j int) bool { return recs[i].seq < recs[j].seq })
	out := make([]*model.JobExecution, 0, len(recs))
	for _, rec := range recs {
		out = append(out, rec.execution.Copy())
	}
	return out, nil
}
