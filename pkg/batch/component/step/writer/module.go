package writer

import (
	"context"

	"go.uber.org/fx"
	"gorm.io/gorm"

	"github.com/bryant1410/jsr352/pkg/batch/component/artifact"
	port "github.com/bryant1410/jsr352/pkg/batch/core/application/port"
)

// SQLBulkWriterRef is the artifact name SQLBulkWriter is registered under.
const SQLBulkWriterRef = "sqlBulkWriter"

// Builder returns a Builder of SQLBulkWriters on db, bound to the step properties.
func Builder(db *gorm.DB) artifact.Builder {
	return func(ctx context.Context, sc *port.StepContext) (any, error) {
		return artifact.Bound(func() *SQLBulkWriter { return NewSQLBulkWriter(db, "") })(ctx, sc)
	}
}

// Module registers SQLBulkWriter on the application database.
var Module = fx.Provide(fx.Annotate(
	func(db *gorm.DB) artifact.Registration {
		return artifact.Registration{Name: SQLBulkWriterRef, Builder: Builder(db)}
	},
	fx.ResultTags(artifact.Group),
))
