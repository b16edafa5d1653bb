package reader

import (
	"context"

	"go.uber.org/fx"
	"gorm.io/gorm"

	"github.com/bryant1410/jsr352/pkg/batch/component/artifact"
	port "github.com/bryant1410/jsr352/pkg/batch/core/application/port"
)

// SQLCursorReaderRef is the artifact name SQLCursorReader is registered under.
const SQLCursorReaderRef = "sqlCursorReader"

// Builder returns a Builder of SQLCursorReaders on db, bound to the step properties.
func Builder(db *gorm.DB) artifact.Builder {
	return func(ctx context.Context, sc *port.StepContext) (any, error) {
		return artifact.Bound(func() *SQLCursorReader { return NewSQLCursorReader(db, "") })(ctx, sc)
	}
}

// Module registers SQLCursorReader on the application database.
var Module = fx.Provide(fx.Annotate(
	func(db *gorm.DB) artifact.Registration {
		return artifact.Registration{Name: SQLCursorReaderRef, Builder: Builder(db)}
	},
	fx.ResultTags(artifact.Group),
))
