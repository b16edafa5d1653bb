// Package tx defines the transaction boundary the chunk processor brackets each chunk with.
// Implementations backed by a database live in the adapter layer; NoopTransactionManager serves
// steps that write to no transactional resource.
package tx

import (
	"context"
	"errors"
	"sync/atomic"
)

// ErrTransactionClosed is returned when a finished transaction is committed or rolled back again.
var ErrTransactionClosed = errors.New("transaction already completed")

// Tx represents an ongoing transaction.
type Tx interface {
	// SetRollbackOnly marks the transaction so that Commit rolls it back instead.
	SetRollbackOnly()
	// IsRollbackOnly reports whether SetRollbackOnly was called.
	IsRollbackOnly() bool
}

// TransactionManager manages the lifecycle of transactions (begin, commit, rollback).
type TransactionManager interface {
	// Begin starts a new transaction.
	Begin(ctx context.Context) (Tx, error)
	// Commit commits tx. A rollback-only transaction is rolled back and ErrRollbackOnly is returned.
	Commit(ctx context.Context, tx Tx) error
	// Rollback undoes tx.
	Rollback(ctx context.Context, tx Tx) error
}

// ErrRollbackOnly is returned by Commit for a transaction marked rollback-only.
var ErrRollbackOnly = errors.New("transaction is marked rollback-only")

// BaseTx carries the rollback-only flag and completion state shared by Tx implementations.
type BaseTx struct {
	rollbackOnly atomic.Bool
	done         atomic.Bool
}

// SetRollbackOnly implements Tx.
func (t *BaseTx) SetRollbackOnly() { t.rollbackOnly.Store(true) }

// IsRollbackOnly implements Tx.
func (t *BaseTx) IsRollbackOnly() bool { return t.rollbackOnly.Load() }

// Finish marks the transaction completed. It returns ErrTransactionClosed when it already was.
func (t *BaseTx) Finish() error {
	if !t.done.CompareAndSwap(false, true) {
		return ErrTransactionClosed
	}
	return nil
}

// NoopTransactionManager issues transactions that hold no resource.
type NoopTransactionManager struct{}

// NewNoopTransactionManager creates a new NoopTransactionManager.
func NewNoopTransactionManager() TransactionManager {
	return &NoopTransactionManager{}
}

type noopTx struct {
	BaseTx
}

// Begin implements TransactionManager.
func (m *NoopTransactionManager) Begin(ctx context.Context) (Tx, error) {
	return &noopTx{}, nil
}

// Commit implements TransactionManager.
func (m *NoopTransactionManager) Commit(ctx context.Context, t Tx) error {
	nt, ok := t.(*noopTx)
	if !ok {
		return errors.New("transaction was not started by NoopTransactionManager")
	}
	if err := nt.Finish(); err != nil {
		return err
	}
	if nt.IsRollbackOnly() {
		return ErrRollbackOnly
	}
	return nil
}

// Rollback implements TransactionManager.
func (m *NoopTransactionManager) Rollback(ctx context.Context, t Tx) error {
	nt, ok := t.(*noopTx)
	if !ok {
		return errors.New("transaction was not started by NoopTransactionManager")
	}
	return nt.Finish()
}
