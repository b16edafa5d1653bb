// Package writer provides database item writers.
package writer

import (
	"context"
	"fmt"
	"strings"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	gormadapter "github.com/bryant1410/jsr352/pkg/batch/adapter/database/gorm"
	port "github.com/bryant1410/jsr352/pkg/batch/core/application/port"
	model "github.com/bryant1410/jsr352/pkg/batch/core/domain/model"
	"github.com/bryant1410/jsr352/pkg/batch/core/tx"
	"github.com/bryant1410/jsr352/pkg/batch/support/util/exception"
	"github.com/bryant1410/jsr352/pkg/batch/support/util/logger"
)

const module = "SQLBulkWriter"

// SQLBulkWriter inserts map[string]any items into a table inside the chunk transaction.
//
// With ConflictColumns set, rows that collide are updated (UpdateColumns) or ignored when
// UpdateColumns is empty. The chunk transaction must come from a GORM transaction manager;
// without it the writer uses its own connection and loses atomicity with the checkpoint.
type SQLBulkWriter struct {
	Table           string `batch:"table"`
	BulkSize        int    `batch:"bulkSize"`
	ConflictColumns string `batch:"conflictColumns"`
	UpdateColumns   string `batch:"updateColumns"`

	db *gorm.DB
}

// NewSQLBulkWriter creates a writer of table on db.
func NewSQLBulkWriter(db *gorm.DB, table string) *SQLBulkWriter {
	return &SQLBulkWriter{db: db, Table: table, BulkSize: 100}
}

func (w *SQLBulkWriter) Open(ctx context.Context, checkpoint model.ExecutionContext) error {
	if w.Table == "" {
		return exception.NewValidationError(module, "property 'table' is required", nil)
	}
	if w.BulkSize <= 0 {
		w.BulkSize = 100
	}
	return nil
}

// WriteItems inserts items, which must all be map[string]any.
func (w *SQLBulkWriter) WriteItems(ctx context.Context, t tx.Tx, items []any) error {
	if len(items) == 0 {
		return nil
	}
	rows := make([]map[string]interface{}, 0, len(items))
	for i, item := range items {
		row, ok := item.(map[string]interface{})
		if !ok {
			return exception.NewItemError(module, fmt.Sprintf("item %d is %T, not map[string]any", i, item), nil)
		}
		rows = append(rows, row)
	}

	db, ok := gormadapter.TxDB(t)
	if !ok {
		logger.Warnf("%s: Chunk transaction is not a GORM transaction. Writing to '%s' outside of it.", module, w.Table)
		db = w.db
	}
	db = db.WithContext(ctx).Table(w.Table)
	if conflict := splitColumns(w.ConflictColumns); len(conflict) > 0 {
		oc := clause.OnConflict{}
		for _, c := range conflict {
			oc.Columns = append(oc.Columns, clause.Column{Name: c})
		}
		if update := splitColumns(w.UpdateColumns); len(update) > 0 {
			oc.DoUpdates = clause.AssignmentColumns(update)
		} else {
			oc.DoNothing = true
		}
		db = db.Clauses(oc)
	}
	if err := db.CreateInBatches(rows, w.BulkSize).Error; err != nil {
		return exception.NewItemError(module, fmt.Sprintf("failed to write %d rows to '%s'", len(rows), w.Table), err)
	}
	logger.Debugf("%s: Wrote %d rows to '%s'.", module, len(rows), w.Table)
	return nil
}

func (w *SQLBulkWriter) CheckpointInfo(ctx context.Context) (model.ExecutionContext, error) {
	return nil, nil
}

func (w *SQLBulkWriter) Close(ctx context.Context) error {
	return nil
}

func splitColumns(s string) []string {
	var out []string
	for _, c := range strings.Split(s, ",") {
		if c = strings.TrimSpace(c); c != "" {
			out = append(out, c)
		}
	}
	return out
}

var _ port.ItemWriter = (*SQLBulkWriter)(nil)
