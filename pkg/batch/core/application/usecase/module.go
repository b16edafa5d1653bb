package usecase

import (
	"context"

	"go.uber.org/fx"

	model "github.com/bryant1410/jsr352/pkg/batch/core/domain/model"
	repository "github.com/bryant1410/jsr352/pkg/batch/core/domain/repository"
	"github.com/bryant1410/jsr352/pkg/batch/core/job/restart"
	logger "github.com/bryant1410/jsr352/pkg/batch/support/util/logger"
)

// JobsGroup is the value group job definitions are provided in.
const JobsGroup = `group:"batch_jobs"`

// ProvideJob contributes a job definition that is added to the repository on start.
func ProvideJob(def *model.JobDefinition) fx.Option {
	return fx.Provide(fx.Annotate(
		func() *model.JobDefinition { return def },
		fx.ResultTags(JobsGroup),
	))
}

type registerJobsParams struct {
	fx.In
	Lifecycle  fx.Lifecycle
	Repository repository.JobRepository
	Jobs       []*model.JobDefinition `group:"batch_jobs"`
	Launcher   *SimpleJobLauncher
}

// registerJobs adds the provided job definitions when the application starts and stops running
// executions when it stops.
func registerJobs(p registerJobsParams) {
	p.Lifecycle.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			for _, def := range p.Jobs {
				if err := p.Repository.AddJob(ctx, def); err != nil {
					return err
				}
				logger.Infof("JobOperator: Registered job '%s'.", def.Name)
			}
			return nil
		},
		OnStop: p.Launcher.Shutdown,
	})
}

// Module is the Fx module for JobLauncher, JobOperator, and JobExplorer.
var Module = fx.Options(
	// Provide JobExplorer
	fx.Provide(fx.Annotate(
		NewSimpleJobExplorer,
		fx.As(new(JobExplorer)),
	)),
	fx.Provide(NewSimpleJobLauncher),
	fx.Provide(func(launcher *SimpleJobLauncher) JobLauncher { return launcher }),
	restart.Module,
	// Provide JobOperator
	fx.Provide(fx.Annotate(
		NewDefaultJobOperator,
		fx.As(new(JobOperator)),
	)),
	fx.Invoke(registerJobs),
)
