package inmemory

import (
	"context"
	"sort"
	"time"

	"github.com/bryant1410/jsr352/pkg/batch/core/domain/model"
	"github.com/bryant1410/jsr352/pkg/batch/core/domain/repository"
	"github.com/bryant1410/jsr352/pkg/batch/support/util/exception"
)

// CreateStepExecution persists a new StepExecution.
func (r *InMemoryJobRepository) CreateStepExecution(ctx context.Context, execution *model.StepExecution) error {
	cp, err := model.EncodeCheckpoint(execution.Checkpoint)
	if err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	je, ok := r.jobExecutions[execution.JobExecutionID]
	if !ok {
		return repository.NotFound(module, repository.ErrJobExecutionNotFound, execution.JobExecutionID)
	}
	if _, exists := r.stepExecutions[execution.ID]; exists {
		return exception.NewRepositoryError(module, "StepExecution with ID "+execution.ID+" already exists", nil, false)
	}
	r.stepExecutions[execution.ID] = &stepRecord{
		seq:        r.nextSeq(),
		instanceID: je.execution.JobInstanceID,
		execution:  stripCheckpoint(execution),
		checkpoint: cp,
	}
	return nil
}

// UpdateStepExecution stores the counters, status and checkpoint of a StepExecution.
func (r *InMemoryJobRepository) UpdateStepExecution(ctx context.Context, execution *model.StepExecution) error {
	cp, err := model.EncodeCheckpoint(execution.Checkpoint)
	if err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	rec, ok := r.stepExecutions[execution.ID]
	if !ok {
		return repository.NotFound(module, repository.ErrStepExecutionNotFound, execution.ID)
	}
	execution.Version = rec.execution.Version + 1
	execution.LastUpdated = time.Now()
	rec.execution = stripCheckpoint(execution)
	rec.checkpoint = cp
	return nil
}

// GetStepExecution finds a StepExecution by its ID.
func (r *InMemoryJobRepository) GetStepExecution(ctx context.Context, stepExecutionID string) (*model.StepExecution, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	rec, ok := r.stepExecutions[stepExecutionID]
	if !ok {
		return nil, repository.NotFound(module, repository.ErrStepExecutionNotFound, stepExecutionID)
	}
	return rec.load()
}

// GetStepExecutions returns the step executions of a job execution in creation order.
func (r *InMemoryJobRepository) GetStepExecutions(ctx context.Context, jobExecutionID string) ([]*model.StepExecution, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if _, ok := r.jobExecutions[jobExecutionID]; !ok {
		return nil, repository.NotFound(module, repository.ErrJobExecutionNotFound, jobExecutionID)
	}
	return r.collectSteps(func(rec *stepRecord) bool { return rec.execution.JobExecutionID == jobExecutionID })
}

// FindLatestStepExecution returns the newest execution of stepName across the instance.
func (r *InMemoryJobRepository) FindLatestStepExecution(ctx context.Context, instanceID, stepName string) (*model.StepExecution, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	steps, err := r.collectSteps(func(rec *stepRecord) bool {
		return rec.instanceID == instanceID && rec.execution.StepName == stepName
	})
	if err != nil {
		return nil, err
	}
	if len(steps) == 0 {
		return nil, repository.NotFound(module, repository.ErrStepExecutionNotFound, stepName)
	}
	return steps[len(steps)-1], nil
}

// GetStepExecutionCount counts the executions of stepName across the instance.
func (r *InMemoryJobRepository) GetStepExecutionCount(ctx context.Context, instanceID, stepName string) (int, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	count := 0
	for _, rec := range r.stepExecutions {
		if rec.instanceID == instanceID && rec.execution.StepName == stepName {
			count++
		}
	}
	return count, nil
}

func (r *InMemoryJobRepository) collectSteps(match func(*stepRecord) bool) ([]*model.StepExecution, error) {
	var recs []*stepRecord
	for _, rec := range r.stepExecutions {
		if match(rec) {
			recs = append(recs, rec)
		}
	}
	sort.Slice(recs, func(i, j int) bool { return recs[i].seq < recs[j].seq })
	out := make([]*model.StepExecution, 0, len(recs))
	for _, rec := range recs {
		se, err := rec.load()
		if err != nil {
			return nil, err
		}
		out = append(out, se)
	}
	return out, nil
}

func (rec *stepRecord) load() (*model.StepExecution, error) {
	cp, err := model.DecodeCheckpoint(rec.checkpoint)
	if err != nil {
		return nil, err
	}
	se := rec.execution.Copy()
	se.Checkpoint = cp
	return se, nil
}

func stripCheckpoint(se *model.StepExecution) *model.StepExecution {
	cp := se.Copy()
	cp.Checkpoint = nil
	return cp
}

// CreatePartitionExecution persists a new partition record of a step execution.
func (r *InMemoryJobRepository) CreatePartitionExecution(ctx context.Context, execution *model.PartitionExecution) error {
	cp, err := model.EncodeCheckpoint(execution.Checkpoint)
	if err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.stepExecutions[execution.StepExecutionID]; !ok {
		return repository.NotFound(module, repository.ErrStepExecutionNotFound, execution.StepExecutionID)
	}
	if _, exists := r.partitions[execution.ID]; exists {
		return exception.NewRepositoryError(module, "PartitionExecution with ID "+execution.ID+" already exists", nil, false)
	}
	r.partitions[execution.ID] = &partitionRecord{execution: stripPartitionCheckpoint(execution), checkpoint: cp}
	return nil
}

// UpdatePartitionExecution stores the new state of a partition record.
func (r *InMemoryJobRepository) UpdatePartitionExecution(ctx context.Context, execution *model.PartitionExecution) error {
	cp, err := model.EncodeCheckpoint(execution.Checkpoint)
	if err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	rec, ok := r.partitions[execution.ID]
	if !ok {
		return repository.NotFound(module, repository.ErrPartitionExecutionNotFound, execution.ID)
	}
	execution.Version = rec.execution.Version + 1
	execution.LastUpdated = time.Now()
	rec.execution = stripPartitionCheckpoint(execution)
	rec.checkpoint = cp
	return nil
}

// GetPartitionExecutions returns the partitions of a step execution ordered by index.
func (r *InMemoryJobRepository) GetPartitionExecutions(ctx context.Context, stepExecutionID string) ([]*model.PartitionExecution, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if _, ok := r.stepExecutions[stepExecutionID]; !ok {
		return nil, repository.NotFound(module, repository.ErrStepExecutionNotFound, stepExecutionID)
	}
	var out []*model.PartitionExecution
	for _, rec := range r.partitions {
		if rec.execution.StepExecutionID != stepExecutionID {
			continue
		}
		cp, err := model.DecodeCheckpoint(rec.checkpoint)
		if err != nil {
			return nil, err
		}
		pe := rec.execution.Copy()
		pe.Checkpoint = cp
		out = append(out, pe)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].PartitionIndex < out[j].PartitionIndex })
	return out, nil
}

func stripPartitionCheckpoint(pe *model.PartitionExecution) *model.PartitionExecution {
	cp := pe.Copy()
	cp.Checkpoint = nil
	return cp
}
