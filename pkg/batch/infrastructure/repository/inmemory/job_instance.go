package inmemory

import (
	"context"
	"sort"

	"github.com/bryant1410/jsr352/pkg/batch/core/domain/model"
	"github.com/bryant1410/jsr352/pkg/batch/core/domain/repository"
	"github.com/bryant1410/jsr352/pkg/batch/support/util/exception"
)

// CreateJobInstance persists a new JobInstance.
func (r *InMemoryJobRepository) CreateJobInstance(ctx context.Context, instance *model.JobInstance) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.jobInstances[instance.ID]; exists {
		return exception.NewRepositoryError(module, "JobInstance with ID "+instance.ID+" already exists", nil, false)
	}
	r.jobInstances[instance.ID] = &instanceRecord{seq: r.nextSeq(), instance: copyInstance(instance)}
	return nil
}

// GetJobInstance finds a JobInstance by its ID.
func (r *InMemoryJobRepository) GetJobInstance(ctx context.Context, instanceID string) (*model.JobInstance, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	rec, ok := r.jobInstances[instanceID]
	if !ok {
		return nil, repository.NotFound(module, repository.ErrJobInstanceNotFound, instanceID)
	}
	return copyInstance(rec.instance), nil
}

// GetJobInstances returns the instances of jobName, newest first.
func (r *InMemoryJobRepository) GetJobInstances(ctx context.Context, jobName string) ([]*model.JobInstance, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.instancesOf(jobName), nil
}

func (r *InMemoryJobRepository) instancesOf(jobName string) []*model.JobInstance {
	var recs []*instanceRecord
	for _, rec := range r.jobInstances {
		if rec.instance.JobName == jobName {
			recs = append(recs, rec)
		}
	}
	sort.Slice(recs, func(i, j int) bool { return recs[i].seq > recs[j].seq })
	out := make([]*model.JobInstance, 0, len(recs))
	for _, rec := range recs {
		out = append(out, copyInstance(rec.instance))
	}
	return out
}

// FindJobInstanceByJobNameAndParameters finds the newest JobInstance by job name and parameters hash.
func (r *InMemoryJobRepository) FindJobInstanceByJobNameAndParameters(ctx context.Context, jobName string, params model.JobParameters) (*model.JobInstance, error) {
	hash, err := params.Hash()
	if err != nil {
		return nil, exception.NewValidationError(module, "job parameters cannot be hashed", err)
	}
	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, ji := range r.instancesOf(jobName) {
		if ji.ParametersHash == hash {
			return ji, nil
		}
	}
	return nil, repository.NotFound(module, repository.ErrJobInstanceNotFound, jobName)
}

// GetJobNames returns the sorted distinct names of jobs with at least one instance.
func (r *InMemoryJobRepository) GetJobNames(ctx context.Context) ([]string, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	uniqueNames := make(map[string]struct{})
	for _, rec := range r.jobInstances {
		uniqueNames[rec.instance.JobName] = struct{}{}
	}
	names := make([]string, 0, len(uniqueNames))
	for name := range uniqueNames {
		names = append(names, name)
	}
	sort.Strings(names)
	return names, nil
}

// GetJobInstanceCount returns the count of JobInstances for a given job name.
func (r *InMemoryJobRepository) GetJobInstanceCount(ctx context.Context, jobName string) (int, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	count := 0
	for _, rec := range r.jobInstances {
		if rec.instance.JobName == jobName {
			count++
		}
	}
	return count, nil
}

func copyInstance(ji *model.JobInstance) *model.JobInstance {
	cp := *ji
	cp.Parameters = ji.Parameters.Copy()
	return &cp
}
