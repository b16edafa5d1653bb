package test

import (
	"context"

	"github.com/stretchr/testify/mock"

	tx "github.com/bryant1410/jsr352/pkg/batch/core/tx"
)

// MockTx is a mock implementation of tx.Tx.
type MockTx struct {
	tx.BaseTx
}

// MockTransactionManager is a testify mock of tx.TransactionManager.
// Begin returns a fresh *MockTx unless the expectation supplies another Tx.
type MockTransactionManager struct {
	mock.Mock
}

// Begin implements tx.TransactionManager.
func (m *MockTransactionManager) Begin(ctx context.Context) (tx.Tx, error) {
	args := m.Called(ctx)
	if t, ok := args.Get(0).(tx.Tx); ok {
		return t, args.Error(1)
	}
	if args.Error(1) != nil {
		return nil, args.Error(1)
	}
	return &MockTx{}, nil
}

// Commit implements tx.TransactionManager.
func (m *MockTransactionManager) Commit(ctx context.Context, t tx.Tx) error {
	return m.Called(ctx, t).Error(0)
}

// Rollback implements tx.TransactionManager.
func (m *MockTransactionManager) Rollback(ctx context.Context, t tx.Tx) error {
	return m.Called(ctx, t).Error(0)
}
