package exception_test

import (
	"errors"
	"fmt"
	"testing"

	"github.com/bryant1410/jsr352/pkg/batch/support/util/exception"

	"github.com/stretchr/testify/assert"
)

// Custom error type for testing reflection and type matching
type CustomError struct {
	Msg string
}

func (e *CustomError) Error() string {
	return fmt.Sprintf("CustomError: %s", e.Msg)
}

func TestNewBatchError(t *testing.T) {
	originalErr := errors.New("db connection refused")
	be := exception.NewBatchError("db", "failed to connect", originalErr, false, true)

	assert.Equal(t, "db", be.Module)
	assert.Equal(t, "failed to connect", be.Message)
	assert.Equal(t, originalErr, be.Unwrap())
	assert.True(t, be.IsRetryable())
	assert.False(t, be.IsSkippable())
	assert.Contains(t, be.Error(), "[db] failed to connect: db connection refused")
	assert.NotEmpty(t, be.StackTrace)
}

func TestNewBatchErrorf(t *testing.T) {
	be1 := exception.NewBatchErrorf("reader", "item %d not found", 10)
	assert.False(t, be1.IsRetryable())
	assert.False(t, be1.IsSkippable())
	assert.Nil(t, be1.Unwrap())
	assert.Contains(t, be1.Error(), "[reader] item 10 not found")

	// A single trailing bool is interpreted as isRetryable.
	be2 := exception.NewBatchErrorf("net", "timeout occurred", true)
	assert.True(t, be2.IsRetryable())
	assert.False(t, be2.IsSkippable())

	be3 := exception.NewBatchErrorf("item", "data error in item %d", 5, true, false)
	assert.False(t, be3.IsRetryable())
	assert.True(t, be3.IsSkippable())

	originalErr := errors.New("data format error")
	be4 := exception.NewBatchErrorf("proc", "format error", true, true, originalErr)
	assert.True(t, be4.IsRetryable())
	assert.True(t, be4.IsSkippable())
	assert.Equal(t, originalErr, be4.Unwrap())
}

func TestFailureKinds(t *testing.T) {
	cases := []struct {
		err  error
		kind error
	}{
		{exception.NewValidationError("m", "bad definition", nil), exception.ErrValidation},
		{exception.NewItemError("m", "reader failed", errors.New("x")), exception.ErrItem},
		{exception.NewTransactionError("m", "commit failed", nil), exception.ErrTransaction},
		{exception.NewRestartNotAllowedError("m", "not restartable", nil), exception.ErrRestartNotAllowed},
		{exception.NewRepositoryError("m", "db down", nil, false), exception.ErrRepository},
		{exception.NewInvalidTransitionError("m", "already running"), exception.ErrInvalidTransition},
		{exception.NewNotFoundError("m", "unknown id", nil), exception.ErrNotFound},
	}
	for _, c := range cases {
		assert.ErrorIs(t, c.err, c.kind, c.err.Error())
		wrapped := fmt.Errorf("outer: %w", c.err)
		assert.ErrorIs(t, wrapped, c.kind)
	}

	// The kind does not leak to unrelated sentinels.
	assert.NotErrorIs(t, exception.NewItemError("m", "x", nil), exception.ErrValidation)
}

func TestRestartNotAllowedCausedByStatus(t *testing.T) {
	err := exception.NewRestartNotAllowedError("restart", "execution is still running", exception.ErrInvalidTransition)
	assert.ErrorIs(t, err, exception.ErrRestartNotAllowed)
	assert.ErrorIs(t, err, exception.ErrInvalidTransition)
}

func TestRepositoryErrorTransient(t *testing.T) {
	assert.True(t, exception.IsTemporary(exception.NewRepositoryError("repo", "busy", nil, true)))
	assert.False(t, exception.IsTemporary(exception.NewRepositoryError("repo", "schema", nil, false)))
	assert.True(t, exception.IsTemporary(errors.New("i/o timeout")))
	assert.False(t, exception.IsTemporary(nil))
}

func TestClassLineage(t *testing.T) {
	exception.RegisterErrorClass("test.RuntimeException", "")
	exception.RegisterErrorClass("test.ArithmeticException", "test.RuntimeException")

	err := exception.NewClassedError("test.ArithmeticException", "divide by zero", nil)
	assert.Equal(t, []string{"test.ArithmeticException", "test.RuntimeException", exception.RootErrorClass}, exception.ClassLineage(err))

	// Wrapping puts the outer error's class first.
	wrapped := exception.NewItemError("processor", "process failed", err)
	assert.Equal(t, []string{"ItemFailure", "test.ArithmeticException", "test.RuntimeException", exception.RootErrorClass}, exception.ClassLineage(wrapped))

	// fmt wrappers contribute their Go type name.
	lineage := exception.ClassLineage(fmt.Errorf("ctx: %w", &CustomError{Msg: "boom"}))
	assert.Contains(t, lineage, "*exception_test.CustomError")
	assert.Equal(t, exception.RootErrorClass, lineage[len(lineage)-1])

	assert.Nil(t, exception.ClassLineage(nil))
}

func TestRegisterErrorClassRejectsCycles(t *testing.T) {
	exception.RegisterErrorClass("test.A", "")
	exception.RegisterErrorClass("test.B", "test.A")
	assert.Panics(t, func() { exception.RegisterErrorClass("test.A", "test.B") })
}

func TestIsErrorOfType(t *testing.T) {
	exception.RegisterErrorClass("test.IOException", "")
	err := fmt.Errorf("wrap: %w", exception.NewClassedError("test.IOException", "disk", nil))

	assert.True(t, exception.IsErrorOfType(err, "test.IOException"))
	assert.True(t, exception.IsErrorOfType(err, "disk"))
	assert.True(t, exception.IsErrorOfType(&CustomError{Msg: "x"}, "exception_test.CustomError"))
	assert.False(t, exception.IsErrorOfType(err, "test.Unrelated"))
	assert.True(t, exception.IsErrorTypeRegistered("test.IOException"))
	assert.True(t, exception.IsErrorTypeRegistered("sql.ErrNoRows"))
}

func TestExtractErrorMessage(t *testing.T) {
	assert.Equal(t, "", exception.ExtractErrorMessage(nil))
	assert.Equal(t, "clean", exception.ExtractErrorMessage(exception.NewBatchError("m", "clean", errors.New("x"), false, false)))
	assert.Equal(t, "plain", exception.ExtractErrorMessage(errors.New("plain")))
}
