package sql

import (
	"context"
	"errors"

	"gorm.io/gorm"

	"github.com/bryant1410/jsr352/pkg/batch/core/domain/model"
	"github.com/bryant1410/jsr352/pkg/batch/core/domain/repository"
	"github.com/bryant1410/jsr352/pkg/batch/support/util/exception"
)

const newestInstanceFirst = "instance_sequence DESC, seq DESC"

// CreateJobInstance persists a new JobInstance.
func (r *SQLJobRepository) CreateJobInstance(ctx context.Context, instance *model.JobInstance) error {
	entity := fromDomainJobInstance(instance)
	err := r.run(ctx, "CreateJobInstance", func(db *gorm.DB) error {
		return db.Create(entity).Error
	})
	return wrap("failed to create job instance "+instance.ID, err)
}

// GetJobInstance finds a JobInstance by its ID.
func (r *SQLJobRepository) GetJobInstance(ctx context.Context, instanceID string) (*model.JobInstance, error) {
	var entity JobInstanceEntity
	err := r.run(ctx, "GetJobInstance", func(db *gorm.DB) error {
		return firstByID(db, &entity, instanceID, repository.ErrJobInstanceNotFound)
	})
	if err != nil {
		return nil, wrap("failed to load job instance "+instanceID, err)
	}
	return toDomainJobInstance(&entity), nil
}

// GetJobInstances returns the instances of jobName, newest first.
func (r *SQLJobRepository) GetJobInstances(ctx context.Context, jobName string) ([]*model.JobInstance, error) {
	var entities []JobInstanceEntity
	err := r.run(ctx, "GetJobInstances", func(db *gorm.DB) error {
		return db.Where("job_name = ?", jobName).Order(newestInstanceFirst).Find(&entities).Error
	})
	if err != nil {
		return nil, wrap("failed to list job instances of "+jobName, err)
	}
	out := make([]*model.JobInstance, 0, len(entities))
	for i := range entities {
		out = append(out, toDomainJobInstance(&entities[i]))
	}
	return out, nil
}

// FindJobInstanceByJobNameAndParameters finds the newest JobInstance by job name and parameters hash.
func (r *SQLJobRepository) FindJobInstanceByJobNameAndParameters(ctx context.Context, jobName string, params model.JobParameters) (*model.JobInstance, error) {
	hash, err := params.Hash()
	if err != nil {
		return nil, exception.NewValidationError(module, "job parameters cannot be hashed", err)
	}
	var entity JobInstanceEntity
	err = r.run(ctx, "FindJobInstanceByJobNameAndParameters", func(db *gorm.DB) error {
		err := db.Where("job_name = ? AND parameters_hash = ?", jobName, hash).
			Order(newestInstanceFirst).
			Take(&entity).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return repository.NotFound(module, repository.ErrJobInstanceNotFound, jobName)
		}
		return err
	})
	if err != nil {
		return nil, wrap("failed to find job instance of "+jobName, err)
	}
	return toDomainJobInstance(&entity), nil
}

// GetJobNames returns the sorted distinct names of jobs with at least one instance.
func (r *SQLJobRepository) GetJobNames(ctx context.Context) ([]string, error) {
	var names []string
	err := r.run(ctx, "GetJobNames", func(db *gorm.DB) error {
		return db.Model(&JobInstanceEntity{}).Distinct("job_name").Order("job_name").Pluck("job_name", &names).Error
	})
	if err != nil {
		return nil, wrap("failed to list job names", err)
	}
	if names == nil {
		names = []string{}
	}
	return names, nil
}

// GetJobInstanceCount returns the count of JobInstances for a given job name.
func (r *SQLJobRepository) GetJobInstanceCount(ctx context.Context, jobName string) (int, error) {
	var count int64
	err := r.run(ctx, "GetJobInstanceCount", func(db *gorm.DB) error {
		return db.Model(&JobInstanceEntity{}).Where("job_name = ?", jobName).Count(&count).Error
	})
	if err != nil {
		return 0, wrap("failed to count job instances of "+jobName, err)
	}
	return int(count), nil
}
