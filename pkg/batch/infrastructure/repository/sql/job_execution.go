package sql

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"

	"github.com/bryant1410/jsr352/pkg/batch/core/domain/model"
	"github.com/bryant1410/jsr352/pkg/batch/core/domain/repository"
	"github.com/bryant1410/jsr352/pkg/batch/support/util/exception"
)

var terminalStatuses = []string{
	string(model.BatchStatusCompleted),
	string(model.BatchStatusFailed),
	string(model.BatchStatusStopped),
	string(model.BatchStatusAbandoned),
}

// CreateJobExecution persists a new JobExecution.
// It fails with InvalidTransition when the instance already has a non-terminal execution.
func (r *SQLJobRepository) CreateJobExecution(ctx context.Context, execution *model.JobExecution) error {
	entity := fromDomainJobExecution(execution)
	err := r.inTx(ctx, "CreateJobExecution", func(tx *gorm.DB) error {
		var instance JobInstanceEntity
		if err := firstByID(lockForUpdate(tx), &instance, execution.JobInstanceID, repository.ErrJobInstanceNotFound); err != nil {
			return err
		}
		var running JobExecutionEntity
		err := tx.Where("job_instance_id = ? AND status NOT IN ?", execution.JobInstanceID, terminalStatuses).
			Take(&running).Error
		switch {
		case err == nil:
			return exception.NewInvalidTransitionError(module, fmt.Sprintf("job instance %s already has execution %s in status %s",
				execution.JobInstanceID, running.ID, running.Status))
		case !errors.Is(err, gorm.ErrRecordNotFound):
			return err
		}
		return tx.Create(entity).Error
	})
	return wrap("failed to create job execution "+execution.ID, err)
}

// CreateJobInstanceWithExecution persists a new JobInstance and its first JobExecution in one
// transaction. Concurrent starts of the same job serialize on the job definition row.
func (r *SQLJobRepository) CreateJobInstanceWithExecution(ctx context.Context, instance *model.JobInstance, execution *model.JobExecution) error {
	err := r.inTx(ctx, "CreateJobInstanceWithExecution", func(tx *gorm.DB) error {
		var def JobDefinitionEntity
		err := lockForUpdate(tx).Where("name = ?", instance.JobName).Take(&def).Error
		if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
			return err
		}

		sameParams := tx.Model(&JobInstanceEntity{}).Select("id").
			Where("job_name = ? AND parameters_hash = ?", instance.JobName, instance.ParametersHash)
		var running JobExecutionEntity
		err = tx.Where("job_instance_id IN (?) AND status NOT IN ?", sameParams, terminalStatuses).Take(&running).Error
		switch {
		case err == nil:
			return exception.NewInvalidTransitionError(module, fmt.Sprintf("job instance %s of job '%s' with the same parameters is already running in execution %s (status %s)",
				running.JobInstanceID, instance.JobName, running.ID, running.Status))
		case !errors.Is(err, gorm.ErrRecordNotFound):
			return err
		}

		var count int64
		if err := tx.Model(&JobInstanceEntity{}).Where("job_name = ?", instance.JobName).Count(&count).Error; err != nil {
			return err
		}
		instance.Sequence = int(count) + 1
		execution.JobInstanceID = instance.ID
		if err := tx.Create(fromDomainJobInstance(instance)).Error; err != nil {
			return err
		}
		return tx.Create(fromDomainJobExecution(execution)).Error
	})
	return wrap("failed to create job instance "+instance.ID+" with its first execution", err)
}

// UpdateJobExecution updates an existing JobExecution and increments its Version.
func (r *SQLJobRepository) UpdateJobExecution(ctx context.Context, execution *model.JobExecution) error {
	entity := fromDomainJobExecution(execution)
	entity.LastUpdated = time.Now()
	err := r.inTx(ctx, "UpdateJobExecution", func(tx *gorm.DB) error {
		var stored JobExecutionEntity
		if err := firstByID(lockForUpdate(tx), &stored, execution.ID, repository.ErrJobExecutionNotFound); err != nil {
			return err
		}
		from := model.BatchStatus(stored.Status)
		if !from.CanTransitionTo(execution.Status) {
			return exception.NewInvalidTransitionError(module, fmt.Sprintf("job execution %s cannot move from %s to %s",
				execution.ID, from, execution.Status))
		}
		entity.Seq = stored.Seq
		entity.Version = stored.Version + 1
		return tx.Save(entity).Error
	})
	if err != nil {
		return wrap("failed to update job execution "+execution.ID, err)
	}
	execution.Version = entity.Version
	execution.LastUpdated = entity.LastUpdated
	return nil
}

// GetJobExecution finds a JobExecution by its ID.
func (r *SQLJobRepository) GetJobExecution(ctx context.Context, executionID string) (*model.JobExecution, error) {
	var entity JobExecutionEntity
	err := r.run(ctx, "GetJobExecution", func(db *gorm.DB) error {
		return firstByID(db, &entity, executionID, repository.ErrJobExecutionNotFound)
	})
	if err != nil {
		return nil, wrap("failed to load job execution "+executionID, err)
	}
	return toDomainJobExecution(&entity), nil
}

// GetJobExecutions returns the executions of an instance, oldest first.
func (r *SQLJobRepository) GetJobExecutions(ctx context.Context, instanceID string) ([]*model.JobExecution, error) {
	var entities []JobExecutionEntity
	err := r.run(ctx, "GetJobExecutions", func(db *gorm.DB) error {
		var instance JobInstanceEntity
		if err := firstByID(db, &instance, instanceID, repository.ErrJobInstanceNotFound); err != nil {
			return err
		}
		return db.Where("job_instance_id = ?", instanceID).Order("seq").Find(&entities).Error
	})
	if err != nil {
		return nil, wrap("failed to list job executions of instance "+instanceID, err)
	}
	return toDomainJobExecutions(entities), nil
}

// FindLatestJobExecution returns the most recently created execution of an instance.
func (r *SQLJobRepository) FindLatestJobExecution(ctx context.Context, instanceID string) (*model.JobExecution, error) {
	var entity JobExecutionEntity
	err := r.run(ctx, "FindLatestJobExecution", func(db *gorm.DB) error {
		err := db.Where("job_instance_id = ?", instanceID).Order("seq DESC").Take(&entity).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return repository.NotFound(module, repository.ErrJobExecutionNotFound, "latest of instance "+instanceID)
		}
		return err
	})
	if err != nil {
		return nil, wrap("failed to find latest job execution of instance "+instanceID, err)
	}
	return toDomainJobExecution(&entity), nil
}

// FindRunningJobExecutions returns the non-terminal executions of jobName, oldest first.
func (r *SQLJobRepository) FindRunningJobExecutions(ctx context.Context, jobName string) ([]*model.JobExecution, error) {
	var entities []JobExecutionEntity
	err := r.run(ctx, "FindRunningJobExecutions", func(db *gorm.DB) error {
		return db.Where("job_name = ? AND status NOT IN ?", jobName, terminalStatuses).Order("seq").Find(&entities).Error
	})
	if err != nil {
		return nil, wrap("failed to find running executions of "+jobName, err)
	}
	return toDomainJobExecutions(entities), nil
}

func toDomainJobExecutions(entities []JobExecutionEntity) []*model.JobExecution {
	out := make([]*model.JobExecution, 0, len(entities))
	for i := range entities {
		out = append(out, toDomainJobExecution(&entities[i]))
	}
	return out
}
