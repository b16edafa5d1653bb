package gorm

import (
	"context"
	"database/sql"
	"errors"

	"gorm.io/gorm"

	tx "github.com/bryant1410/jsr352/pkg/batch/core/tx"
	"github.com/bryant1410/jsr352/pkg/batch/support/util/exception"
)

// GormTx is a database transaction handed to item writers. Writers that persist through GORM
// obtain it with TxDB.
type GormTx struct {
	tx.BaseTx
	db *gorm.DB
}

// DB returns the transaction's session.
func (t *GormTx) DB() *gorm.DB {
	return t.db
}

// TxDB returns the GORM session of t when t was started by a GormTransactionManager.
func TxDB(t tx.Tx) (*gorm.DB, bool) {
	gt, ok := t.(*GormTx)
	if !ok {
		return nil, false
	}
	return gt.db, true
}

// GormTransactionManager implements tx.TransactionManager on a GORM connection.
type GormTransactionManager struct {
	db   *gorm.DB
	opts *sql.TxOptions
}

var _ tx.TransactionManager = (*GormTransactionManager)(nil)

// NewGormTransactionManager creates a transaction manager on db. opts may be nil.
func NewGormTransactionManager(db *gorm.DB, opts *sql.TxOptions) *GormTransactionManager {
	return &GormTransactionManager{db: db, opts: opts}
}

// Begin implements tx.TransactionManager.
func (m *GormTransactionManager) Begin(ctx context.Context) (tx.Tx, error) {
	var session *gorm.DB
	if m.opts != nil {
		session = m.db.WithContext(ctx).Begin(m.opts)
	} else {
		session = m.db.WithContext(ctx).Begin()
	}
	if session.Error != nil {
		return nil, exception.NewTransactionError("GormTransactionManager", "failed to begin transaction", session.Error)
	}
	return &GormTx{db: session}, nil
}

// Commit implements tx.TransactionManager. A rollback-only transaction is rolled back and
// tx.ErrRollbackOnly returned.
func (m *GormTransactionManager) Commit(ctx context.Context, t tx.Tx) error {
	gt, err := m.own(t)
	if err != nil {
		return err
	}
	if err := gt.Finish(); err != nil {
		return err
	}
	if gt.IsRollbackOnly() {
		if err := gt.db.Rollback().Error; err != nil {
			return exception.NewTransactionError("GormTransactionManager", "failed to roll back rollback-only transaction", err)
		}
		return tx.ErrRollbackOnly
	}
	if err := gt.db.Commit().Error; err != nil {
		return exception.NewTransactionError("GormTransactionManager", "failed to commit transaction", err)
	}
	return nil
}

// Rollback implements tx.TransactionManager.
func (m *GormTransactionManager) Rollback(ctx context.Context, t tx.Tx) error {
	gt, err := m.own(t)
	if err != nil {
		return err
	}
	if err := gt.Finish(); err != nil {
		return err
	}
	if err := gt.db.Rollback().Error; err != nil && !errors.Is(err, sql.ErrTxDone) {
		return exception.NewTransactionError("GormTransactionManager", "failed to roll back transaction", err)
	}
	return nil
}

func (m *GormTransactionManager) own(t tx.Tx) (*GormTx, error) {
	gt, ok := t.(*GormTx)
	if !ok {
		return nil, exception.NewTransactionError("GormTransactionManager", "transaction was not started by GormTransactionManager", nil)
	}
	return gt, nil
}
