package runner

import (
	"go.uber.org/fx"

	port "github.com/bryant1410/jsr352/pkg/batch/core/application/port"
	repository "github.com/bryant1410/jsr352/pkg/batch/core/domain/repository"
	metrics "github.com/bryant1410/jsr352/pkg/batch/core/metrics"
	"github.com/bryant1410/jsr352/pkg/batch/core/pool"
	tx "github.com/bryant1410/jsr352/pkg/batch/core/tx"
	"github.com/bryant1410/jsr352/pkg/batch/engine/step/scope"
)

// JobRunnerParams defines dependencies for JobRunner. Everything but the repository and the
// artifact factory is optional.
type JobRunnerParams struct {
	fx.In
	JobRepository repository.JobRepository
	Artifacts     port.ArtifactFactory
	TxManager     tx.TransactionManager  `optional:"true"`
	Recorder      metrics.MetricRecorder `optional:"true"`
	Tracer        metrics.Tracer         `optional:"true"`
	Pool          *pool.Pool             `optional:"true"`
}

// NewServices collects the engine services from the container.
func NewServices(p JobRunnerParams) scope.Services {
	return scope.Services{
		Repository: p.JobRepository,
		Artifacts:  p.Artifacts,
		TxManager:  p.TxManager,
		Recorder:   p.Recorder,
		Tracer:     p.Tracer,
		Pool:       p.Pool,
	}.WithDefaults()
}

// Module provides the engine services and the JobRunner.
var Module = fx.Options(
	fx.Provide(NewServices),
	fx.Provide(NewJobRunner),
)
