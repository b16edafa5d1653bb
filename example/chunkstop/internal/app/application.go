// Package app assembles the chunkstop application from the batch modules.
package app

import (
	"go.uber.org/fx"

	"github.com/bryant1410/jsr352/pkg/batch/component/artifact"
	"github.com/bryant1410/jsr352/pkg/batch/component/flow"
	"github.com/bryant1410/jsr352/pkg/batch/component/item"
	"github.com/bryant1410/jsr352/pkg/batch/component/partitioner"
	"github.com/bryant1410/jsr352/pkg/batch/component/step/reader"
	"github.com/bryant1410/jsr352/pkg/batch/component/step/writer"
	"github.com/bryant1410/jsr352/pkg/batch/component/tasklet/generic"
	usecase "github.com/bryant1410/jsr352/pkg/batch/core/application/usecase"
	config "github.com/bryant1410/jsr352/pkg/batch/core/config"
	model "github.com/bryant1410/jsr352/pkg/batch/core/domain/model"
	"github.com/bryant1410/jsr352/pkg/batch/core/job/runner"
	"github.com/bryant1410/jsr352/pkg/batch/infrastructure/metrics"
	"github.com/bryant1410/jsr352/pkg/batch/infrastructure/repository"
	"github.com/bryant1410/jsr352/pkg/batch/listener/logging"
	logger "github.com/bryant1410/jsr352/pkg/batch/support/util/logger"
)

// Options returns the fx options of the application. repositoryType selects the JobRepository
// backend and must match the loaded configuration.
func Options(embeddedConfig []byte, envFilePath, repositoryType string, jobs ...*model.JobDefinition) []fx.Option {
	opts := []fx.Option{
		logger.Module,
		fx.Supply(config.EmbeddedConfig(embeddedConfig)),
		fx.Supply(fx.Annotated{Name: "envFilePath", Target: envFilePath}),
		config.Module,
		// The repository must be started before job definitions are registered.
		repository.Module(repositoryType),
		metrics.Module,
		artifact.Module,
		item.Module,
		generic.Module,
		flow.Module,
		partitioner.Module,
		logging.Module,
		runner.Module,
		usecase.Module,
	}
	if repositoryType == config.RepositoryTypeSQL {
		opts = append(opts, reader.Module, writer.Module)
	}
	for _, def := range jobs {
		opts = append(opts, usecase.ProvideJob(def))
	}
	return opts
}
