package gorm

import (
	"context"

	"go.uber.org/fx"
	"gorm.io/gorm"

	tx "github.com/bryant1410/jsr352/pkg/batch/core/tx"
	"github.com/bryant1410/jsr352/pkg/batch/support/util/logger"
)

// NewGormDB opens the repository connection and closes it when the application stops.
func NewGormDB(lc fx.Lifecycle, provider *DBProvider) (*gorm.DB, error) {
	db, err := provider.DB(context.Background())
	if err != nil {
		return nil, err
	}
	lc.Append(fx.Hook{
		OnStop: func(ctx context.Context) error {
			logger.Infof("Closing DB connection (%s).", provider.Type())
			return provider.Close()
		},
	})
	return db, nil
}

// Module provides the DBProvider, the *gorm.DB and a GORM-backed tx.TransactionManager.
// Import the dialect subpackages that should be available.
var Module = fx.Options(
	fx.Provide(NewDBProvider),
	fx.Provide(NewGormDB),
	fx.Provide(fx.Annotate(
		func(db *gorm.DB) *GormTransactionManager { return NewGormTransactionManager(db, nil) },
		fx.As(new(tx.TransactionManager)),
	)),
)
