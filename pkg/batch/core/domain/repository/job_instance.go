package repository

import (
	"context"

	model "github.com/bryant1410/jsr352/pkg/batch/core/domain/model"
)

// JobInstance stores job instances. Instances are never updated once created.
type JobInstance interface {
	CreateJobInstance(ctx context.Context, instance *model.JobInstance) error
	GetJobInstance(ctx context.Context, instanceID string) (*model.JobInstance, error)
	// GetJobInstances returns the instances of jobName, newest first.
	GetJobInstances(ctx context.Context, jobName string) ([]*model.JobInstance, error)
	// FindJobInstanceByJobNameAndParameters returns the newest instance of jobName whose
	// parameters hash equals the hash of params.
	FindJobInstanceByJobNameAndParameters(ctx context.Context, jobName string, params model.JobParameters) (*model.JobInstance, error)
	// GetJobNames lists the names of jobs that have at least one instance.
	GetJobNames(ctx context.Context) ([]string, error)
	GetJobInstanceCount(ctx context.Context, jobName string) (int, error)
}
