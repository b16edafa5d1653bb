package sql

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"

	"github.com/bryant1410/jsr352/pkg/batch/core/domain/model"
	"github.com/bryant1410/jsr352/pkg/batch/core/domain/repository"
	"github.com/bryant1410/jsr352/pkg/batch/support/util/exception"
)

// CreateStepExecution persists a new StepExecution.
func (r *SQLJobRepository) CreateStepExecution(ctx context.Context, execution *model.StepExecution) error {
	cols, err := fromDomainStep(execution)
	if err != nil {
		return err
	}
	entity := &StepExecutionEntity{StepColumns: cols}
	err = r.inTx(ctx, "CreateStepExecution", func(tx *gorm.DB) error {
		var je JobExecutionEntity
		if err := firstByID(tx, &je, execution.JobExecutionID, repository.ErrJobExecutionNotFound); err != nil {
			return err
		}
		entity.JobInstanceID = je.JobInstanceID
		return tx.Create(entity).Error
	})
	return wrap("failed to create step execution "+execution.ID, err)
}

// UpdateStepExecution stores the counters, status and checkpoint of a StepExecution.
func (r *SQLJobRepository) UpdateStepExecution(ctx context.Context, execution *model.StepExecution) error {
	cols, err := fromDomainStep(execution)
	if err != nil {
		return err
	}
	cols.LastUpdated = time.Now()
	entity := &StepExecutionEntity{StepColumns: cols}
	err = r.inTx(ctx, "UpdateStepExecution", func(tx *gorm.DB) error {
		var stored StepExecutionEntity
		if err := firstByID(lockForUpdate(tx), &stored, execution.ID, repository.ErrStepExecutionNotFound); err != nil {
			return err
		}
		entity.Seq = stored.Seq
		entity.JobInstanceID = stored.JobInstanceID
		entity.Version = stored.Version + 1
		return tx.Save(entity).Error
	})
	if err != nil {
		return wrap("failed to update step execution "+execution.ID, err)
	}
	execution.Version = entity.Version
	execution.LastUpdated = entity.LastUpdated
	return nil
}

// GetStepExecution finds a StepExecution by its ID.
func (r *SQLJobRepository) GetStepExecution(ctx context.Context, stepExecutionID string) (*model.StepExecution, error) {
	var entity StepExecutionEntity
	err := r.run(ctx, "GetStepExecution", func(db *gorm.DB) error {
		return firstByID(db, &entity, stepExecutionID, repository.ErrStepExecutionNotFound)
	})
	if err != nil {
		return nil, wrap("failed to load step execution "+stepExecutionID, err)
	}
	return decodeStep(&entity)
}

// GetStepExecutions returns the step executions of a job execution in creation order.
func (r *SQLJobRepository) GetStepExecutions(ctx context.Context, jobExecutionID string) ([]*model.StepExecution, error) {
	var entities []StepExecutionEntity
	err := r.run(ctx, "GetStepExecutions", func(db *gorm.DB) error {
		var je JobExecutionEntity
		if err := firstByID(db, &je, jobExecutionID, repository.ErrJobExecutionNotFound); err != nil {
			return err
		}
		return db.Where("job_execution_id = ?", jobExecutionID).Order("seq").Find(&entities).Error
	})
	if err != nil {
		return nil, wrap("failed to list step executions of "+jobExecutionID, err)
	}
	out := make([]*model.StepExecution, 0, len(entities))
	for i := range entities {
		se, err := decodeStep(&entities[i])
		if err != nil {
			return nil, err
		}
		out = append(out, se)
	}
	return out, nil
}

// FindLatestStepExecution returns the newest execution of stepName across the instance.
func (r *SQLJobRepository) FindLatestStepExecution(ctx context.Context, instanceID, stepName string) (*model.StepExecution, error) {
	var entity StepExecutionEntity
	err := r.run(ctx, "FindLatestStepExecution", func(db *gorm.DB) error {
		err := db.Where("job_instance_id = ? AND step_name = ?", instanceID, stepName).Order("seq DESC").Take(&entity).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return repository.NotFound(module, repository.ErrStepExecutionNotFound, stepName)
		}
		return err
	})
	if err != nil {
		return nil, wrap("failed to find latest execution of step "+stepName, err)
	}
	return decodeStep(&entity)
}

// GetStepExecutionCount counts the executions of stepName across the instance.
func (r *SQLJobRepository) GetStepExecutionCount(ctx context.Context, instanceID, stepName string) (int, error) {
	var count int64
	err := r.run(ctx, "GetStepExecutionCount", func(db *gorm.DB) error {
		return db.Model(&StepExecutionEntity{}).
			Where("job_instance_id = ? AND step_name = ?", instanceID, stepName).
			Count(&count).Error
	})
	if err != nil {
		return 0, wrap("failed to count executions of step "+stepName, err)
	}
	return int(count), nil
}

func decodeStep(entity *StepExecutionEntity) (*model.StepExecution, error) {
	se, err := toDomainStep(&entity.StepColumns)
	if err != nil {
		return nil, exception.NewRepositoryError(module, "stored checkpoint of step execution "+entity.ID+" is corrupt", err, false)
	}
	return se, nil
}

// CreatePartitionExecution persists a new partition record of a step execution.
func (r *SQLJobRepository) CreatePartitionExecution(ctx context.Context, execution *model.PartitionExecution) error {
	entity, err := fromDomainPartition(execution)
	if err != nil {
		return err
	}
	err = r.inTx(ctx, "CreatePartitionExecution", func(tx *gorm.DB) error {
		var parent StepExecutionEntity
		if err := firstByID(tx, &parent, execution.StepExecutionID, repository.ErrStepExecutionNotFound); err != nil {
			return err
		}
		return tx.Create(entity).Error
	})
	return wrap("failed to create partition execution "+execution.ID, err)
}

// UpdatePartitionExecution stores the new state of a partition record.
func (r *SQLJobRepository) UpdatePartitionExecution(ctx context.Context, execution *model.PartitionExecution) error {
	entity, err := fromDomainPartition(execution)
	if err != nil {
		return err
	}
	entity.LastUpdated = time.Now()
	err = r.inTx(ctx, "UpdatePartitionExecution", func(tx *gorm.DB) error {
		var stored PartitionExecutionEntity
		if err := firstByID(lockForUpdate(tx), &stored, execution.ID, repository.ErrPartitionExecutionNotFound); err != nil {
			return err
		}
		entity.Seq = stored.Seq
		entity.Version = stored.Version + 1
		return tx.Save(entity).Error
	})
	if err != nil {
		return wrap("failed to update partition execution "+execution.ID, err)
	}
	execution.Version = entity.Version
	execution.LastUpdated = entity.LastUpdated
	return nil
}

// GetPartitionExecutions returns the partitions of a step execution ordered by index.
func (r *SQLJobRepository) GetPartitionExecutions(ctx context.Context, stepExecutionID string) ([]*model.PartitionExecution, error) {
	var entities []PartitionExecutionEntity
	err := r.run(ctx, "GetPartitionExecutions", func(db *gorm.DB) error {
		var parent StepExecutionEntity
		if err := firstByID(db, &parent, stepExecutionID, repository.ErrStepExecutionNotFound); err != nil {
			return err
		}
		return db.Where("step_execution_id = ?", stepExecutionID).Order("partition_index").Find(&entities).Error
	})
	if err != nil {
		return nil, wrap("failed to list partitions of "+stepExecutionID, err)
	}
	out := make([]*model.PartitionExecution, 0, len(entities))
	for i := range entities {
		pe, err := toDomainPartition(&entities[i])
		if err != nil {
			return nil, exception.NewRepositoryError(module, "stored partition "+entities[i].ID+" is corrupt", err, false)
		}
		out = append(out, pe)
	}
	return out, nil
}
