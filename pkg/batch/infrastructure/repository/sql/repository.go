// Package sql implements repository.JobRepository on a relational database through GORM.
// The schema is created by the embedded golang-migrate migrations for sqlite, mysql and
// postgres. Record updates take a row lock inside a transaction so concurrent writers of the
// same record serialize; transient driver failures are retried.
package sql

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/avast/retry-go"
	lru "github.com/hashicorp/golang-lru"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	gormadapter "github.com/bryant1410/jsr352/pkg/batch/adapter/database/gorm"
	config "github.com/bryant1410/jsr352/pkg/batch/core/config"
	"github.com/bryant1410/jsr352/pkg/batch/core/domain/model"
	"github.com/bryant1410/jsr352/pkg/batch/core/domain/repository"
	"github.com/bryant1410/jsr352/pkg/batch/support/util/exception"
	"github.com/bryant1410/jsr352/pkg/batch/support/util/logger"
)

const module = "SQLJobRepository"

// SQLJobRepository is a GORM-backed implementation of repository.JobRepository.
type SQLJobRepository struct {
	db    *gorm.DB
	retry config.RetryConfig
	defs  *lru.Cache
}

var _ repository.JobRepository = (*SQLJobRepository)(nil)

// NewSQLJobRepository creates a repository on db. The schema must already exist; see Migrate.
func NewSQLJobRepository(db *gorm.DB, cfg *config.RepositoryConfig) (*SQLJobRepository, error) {
	if db == nil {
		return nil, exception.NewValidationError(module, "database connection is required", nil)
	}
	retryCfg := config.NewConfig().Repository.Retry
	cacheSize := 128
	if cfg != nil {
		retryCfg = cfg.Retry
		if cfg.DefinitionCacheSize > 0 {
			cacheSize = cfg.DefinitionCacheSize
		}
	}
	cache, err := lru.New(cacheSize)
	if err != nil {
		return nil, exception.NewValidationError(module, "invalid definition cache size", err)
	}
	return &SQLJobRepository{db: db, retry: retryCfg, defs: cache}, nil
}

// run executes op, retrying while it fails with a transient database error.
func (r *SQLJobRepository) run(ctx context.Context, what string, op func(db *gorm.DB) error) error {
	opts := gormadapter.RetryOptions(ctx, r.retry, func(n uint, err error) {
		logger.Warnf("%s: %s failed (attempt %d), retrying: %v", module, what, n+1, err)
	})
	opts = append(opts, retry.RetryIf(func(err error) bool { return isTransient(err) }))
	return retry.Do(func() error {
		return op(r.db.WithContext(ctx))
	}, opts...)
}

// inTx runs fn in a database transaction with the retry policy of run.
func (r *SQLJobRepository) inTx(ctx context.Context, what string, fn func(tx *gorm.DB) error) error {
	return r.run(ctx, what, func(db *gorm.DB) error {
		return db.Transaction(fn)
	})
}

// lockForUpdate selects a row with an exclusive lock. Dialects without row locks ignore it.
func lockForUpdate(tx *gorm.DB) *gorm.DB {
	return tx.Clauses(clause.Locking{Strength: "UPDATE"})
}

// firstByID loads the row with the given id into dest, mapping a miss to NotFound.
func firstByID(db *gorm.DB, dest interface{}, id string, sentinel error) error {
	err := db.Where("id = ?", id).Take(dest).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return repository.NotFound(module, sentinel, id)
	}
	return err
}

// AddJob stores a validated job definition, replacing any definition with the same name.
func (r *SQLJobRepository) AddJob(ctx context.Context, def *model.JobDefinition) error {
	if err := def.Validate(); err != nil {
		return err
	}
	data, err := json.Marshal(def)
	if err != nil {
		return exception.NewValidationError(module, "job definition cannot be encoded", err)
	}
	entity := &JobDefinitionEntity{Name: def.Name, Definition: string(data), LastUpdated: time.Now().UTC()}
	err = r.run(ctx, "AddJob", func(db *gorm.DB) error {
		return db.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "name"}},
			DoUpdates: clause.AssignmentColumns([]string{"definition", "last_updated"}),
		}).Create(entity).Error
	})
	if err != nil {
		return wrap("failed to store job definition "+def.Name, err)
	}
	r.defs.Remove(def.Name)
	return nil
}

// RemoveJob removes a job definition. Removing an unknown job is not an error.
func (r *SQLJobRepository) RemoveJob(ctx context.Context, jobName string) error {
	err := r.run(ctx, "RemoveJob", func(db *gorm.DB) error {
		return db.Where("name = ?", jobName).Delete(&JobDefinitionEntity{}).Error
	})
	r.defs.Remove(jobName)
	if err != nil {
		return wrap("failed to remove job definition "+jobName, err)
	}
	return nil
}

// GetJobs returns every job definition ordered by name.
func (r *SQLJobRepository) GetJobs(ctx context.Context) ([]*model.JobDefinition, error) {
	var entities []JobDefinitionEntity
	err := r.run(ctx, "GetJobs", func(db *gorm.DB) error {
		return db.Order("name").Find(&entities).Error
	})
	if err != nil {
		return nil, wrap("failed to list job definitions", err)
	}
	defs := make([]*model.JobDefinition, 0, len(entities))
	for i := range entities {
		def, err := r.decodeJob(&entities[i])
		if err != nil {
			return nil, err
		}
		defs = append(defs, def)
	}
	return defs, nil
}

// GetJob returns the job definition named jobName. Decoded definitions are cached.
func (r *SQLJobRepository) GetJob(ctx context.Context, jobName string) (*model.JobDefinition, error) {
	if cached, ok := r.defs.Get(jobName); ok {
		return decodeJob(cached.([]byte))
	}
	var entity JobDefinitionEntity
	err := r.run(ctx, "GetJob", func(db *gorm.DB) error {
		err := db.Where("name = ?", jobName).Take(&entity).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return repository.NotFound(module, repository.ErrJobNotFound, jobName)
		}
		return err
	})
	if err != nil {
		return nil, wrap("failed to load job definition "+jobName, err)
	}
	return r.decodeJob(&entity)
}

func (r *SQLJobRepository) decodeJob(entity *JobDefinitionEntity) (*model.JobDefinition, error) {
	data := []byte(entity.Definition)
	def, err := decodeJob(data)
	if err != nil {
		return nil, err
	}
	r.defs.Add(entity.Name, data)
	return def, nil
}

func decodeJob(data []byte) (*model.JobDefinition, error) {
	var def model.JobDefinition
	if err := json.Unmarshal(data, &def); err != nil {
		return nil, exception.NewRepositoryError(module, "stored job definition is corrupt", err, false)
	}
	return &def, nil
}

// Close is a no-op. The connection belongs to the DBProvider that opened it.
func (r *SQLJobRepository) Close() error {
	r.defs.Purge()
	return nil
}
