// Package reader provides database item readers.
package reader

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"gorm.io/gorm"

	port "github.com/bryant1410/jsr352/pkg/batch/core/application/port"
	model "github.com/bryant1410/jsr352/pkg/batch/core/domain/model"
	"github.com/bryant1410/jsr352/pkg/batch/support/util/exception"
	"github.com/bryant1410/jsr352/pkg/batch/support/util/logger"
)

const module = "SQLCursorReader"

// readCountKey is the checkpoint key holding the number of rows already read.
const readCountKey = "reader.readCount"

// SQLCursorReader reads the rows of a query one at a time as map[string]any items.
//
// The query must return rows in a stable order. On restart, the rows read before the last
// checkpoint are skipped on the open cursor, so the query needs no dialect-specific OFFSET.
type SQLCursorReader struct {
	Query string `batch:"query"`

	db        *gorm.DB
	rows      *sql.Rows
	readCount int
}

// NewSQLCursorReader creates a reader of query on db.
func NewSQLCursorReader(db *gorm.DB, query string) *SQLCursorReader {
	return &SQLCursorReader{db: db, Query: query}
}

// Open executes the query and skips the rows recorded in checkpoint.
func (r *SQLCursorReader) Open(ctx context.Context, checkpoint model.ExecutionContext) error {
	if r.Query == "" {
		return exception.NewValidationError(module, "property 'query' is required", nil)
	}
	start, _ := checkpoint.GetInt(readCountKey)

	rows, err := r.db.WithContext(ctx).Raw(r.Query).Rows()
	if err != nil {
		return exception.NewItemError(module, "failed to execute query", err)
	}
	r.rows = rows
	r.readCount = 0
	for r.readCount < start {
		if !rows.Next() {
			return exception.NewItemError(module, fmt.Sprintf("input ended after %d of %d checkpointed rows", r.readCount, start), rows.Err())
		}
		r.readCount++
	}
	if start > 0 {
		logger.Infof("%s: Resuming after row %d.", module, start)
	}
	return nil
}

// ReadItem returns the next row as a map of column name to value.
func (r *SQLCursorReader) ReadItem(ctx context.Context) (any, error) {
	if r.rows == nil {
		return nil, exception.NewItemError(module, "reader not opened or already closed", errors.New("reader not initialized"))
	}
	if !r.rows.Next() {
		if err := r.rows.Err(); err != nil {
			return nil, exception.NewItemError(module, "error during row iteration", err)
		}
		return nil, port.ErrNoMoreItems
	}
	row := make(map[string]interface{})
	if err := r.db.ScanRows(r.rows, &row); err != nil {
		return nil, exception.NewItemError(module, "failed to scan row", err)
	}
	r.readCount++
	return row, nil
}

func (r *SQLCursorReader) CheckpointInfo(ctx context.Context) (model.ExecutionContext, error) {
	ec := model.NewExecutionContext()
	ec.Put(readCountKey, r.readCount)
	return ec, nil
}

// Close releases the cursor.
func (r *SQLCursorReader) Close(ctx context.Context) error {
	if r.rows == nil {
		return nil
	}
	err := r.rows.Close()
	r.rows = nil
	if err != nil {
		return exception.NewItemError(module, "failed to close rows", err)
	}
	return nil
}

var _ port.ItemReader = (*SQLCursorReader)(nil)
