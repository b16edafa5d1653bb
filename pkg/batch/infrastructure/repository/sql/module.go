package sql

import (
	"context"

	"go.uber.org/fx"
	"gorm.io/gorm"

	gormadapter "github.com/bryant1410/jsr352/pkg/batch/adapter/database/gorm"
	_ "github.com/bryant1410/jsr352/pkg/batch/adapter/database/gorm/mysql"
	_ "github.com/bryant1410/jsr352/pkg/batch/adapter/database/gorm/postgres"
	_ "github.com/bryant1410/jsr352/pkg/batch/adapter/database/gorm/sqlite"
	config "github.com/bryant1410/jsr352/pkg/batch/core/config"
	repository "github.com/bryant1410/jsr352/pkg/batch/core/domain/repository"
)

type migrateParams struct {
	fx.In
	Lifecycle fx.Lifecycle
	DB        *gorm.DB
	Config    *config.RepositoryConfig
}

// migrateOnStart applies the schema migrations before any job is registered when
// repository.migrate is enabled.
func migrateOnStart(p migrateParams) {
	if !p.Config.Migrate {
		return
	}
	p.Lifecycle.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			return Migrate(ctx, p.DB, p.Config.Database.Type)
		},
	})
}

// Module provides SQLJobRepository as repository.JobRepository together with the GORM
// connection and transaction manager it runs on.
var Module = fx.Options(
	gormadapter.Module,
	fx.Invoke(migrateOnStart),
	fx.Provide(
		fx.Annotate(
			NewSQLJobRepository,
			fx.As(new(repository.JobRepository)),
		),
	),
)
