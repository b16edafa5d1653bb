// Package inmemory provides an in-memory implementation of the JobRepository interface.
// It stores all job-related data in maps within memory, suitable for testing and
// scenarios where persistence is not required.
package inmemory

import (
	"context"
	"encoding/json"
	"sort"
	"sync"

	"github.com/bryant1410/jsr352/pkg/batch/core/domain/model"
	"github.com/bryant1410/jsr352/pkg/batch/core/domain/repository"
	"github.com/bryant1410/jsr352/pkg/batch/support/util/exception"
)

const module = "InMemoryJobRepository"

// InMemoryJobRepository is an in-memory implementation of the JobRepository interface.
// Records are copied on the way in and out so callers never share state with the store.
// Checkpoints are kept in their encoded form, which also rejects state that cannot be persisted.
type InMemoryJobRepository struct {
	mu sync.RWMutex

	seq            int64
	jobs           map[string][]byte
	jobInstances   map[string]*instanceRecord
	jobExecutions  map[string]*jobExecutionRecord
	stepExecutions map[string]*stepRecord
	partitions     map[string]*partitionRecord
}

type instanceRecord struct {
	seq      int64
	instance *model.JobInstance
}

type jobExecutionRecord struct {
	seq       int64
	execution *model.JobExecution
}

type stepRecord struct {
	seq        int64
	instanceID string
	execution  *model.StepExecution
	checkpoint []byte
}

type partitionRecord struct {
	execution  *model.PartitionExecution
	checkpoint []byte
}

var _ repository.JobRepository = (*InMemoryJobRepository)(nil)

// NewInMemoryJobRepository creates and initializes a new instance of InMemoryJobRepository.
func NewInMemoryJobRepository() *InMemoryJobRepository {
	return &InMemoryJobRepository{
		jobs:           make(map[string][]byte),
		jobInstances:   make(map[string]*instanceRecord),
		jobExecutions:  make(map[string]*jobExecutionRecord),
		stepExecutions: make(map[string]*stepRecord),
		partitions:     make(map[string]*partitionRecord),
	}
}

func (r *InMemoryJobRepository) nextSeq() int64 {
	r.seq++
	return r.seq
}

// AddJob stores a validated job definition, replacing any definition with the same name.
func (r *InMemoryJobRepository) AddJob(ctx context.Context, def *model.JobDefinition) error {
	if err := def.Validate(); err != nil {
		return err
	}
	data, err := json.Marshal(def)
	if err != nil {
		return exception.NewValidationError(module, "job definition cannot be encoded", err)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.jobs[def.Name] = data
	return nil
}

// RemoveJob removes a job definition. Removing an unknown job is not an error.
func (r *InMemoryJobRepository) RemoveJob(ctx context.Context, jobName string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.jobs, jobName)
	return nil
}

// GetJobs returns every job definition ordered by name.
func (r *InMemoryJobRepository) GetJobs(ctx context.Context) ([]*model.JobDefinition, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.jobs))
	for name := range r.jobs {
		names = append(names, name)
	}
	sort.Strings(names)
	defs := make([]*model.JobDefinition, 0, len(names))
	for _, name := range names {
		def, err := decodeJob(r.jobs[name])
		if err != nil {
			return nil, err
		}
		defs = append(defs, def)
	}
	return defs, nil
}

// GetJob returns the job definition named jobName.
func (r *InMemoryJobRepository) GetJob(ctx context.Context, jobName string) (*model.JobDefinition, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	data, ok := r.jobs[jobName]
	if !ok {
		return nil, repository.NotFound(module, repository.ErrJobNotFound, jobName)
	}
	return decodeJob(data)
}

func decodeJob(data []byte) (*model.JobDefinition, error) {
	var def model.JobDefinition
	if err := json.Unmarshal(data, &def); err != nil {
		return nil, exception.NewRepositoryError(module, "stored job definition is corrupt", err, false)
	}
	return &def, nil
}

// Close releases resources used by the repository.
// As an in-memory repository, it holds no external resources, so this method always returns nil.
func (r *InMemoryJobRepository) Close() error {
	return nil
}
