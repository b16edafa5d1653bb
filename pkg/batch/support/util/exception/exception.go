// Package exception provides the error types and classification helpers used by the batch engine.
// Errors carry a failure kind (validation, item, transaction, restart, repository, transition,
// not-found) that callers match with errors.Is, and an error class used by skip/retry policies.
package exception

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"reflect"
	"runtime"
	"strings"
	"sync"
)

// Failure kinds. A *BatchError created with one of the New*Error constructors matches its kind
// through errors.Is.
var (
	// ErrValidation marks bad job, step or partition configuration detected before execution.
	ErrValidation = errors.New("ValidationFailure")
	// ErrItem marks a failure raised by a reader, processor or writer during a chunk.
	ErrItem = errors.New("ItemFailure")
	// ErrTransaction marks a begin, commit or rollback failure.
	ErrTransaction = errors.New("TransactionFailure")
	// ErrRestartNotAllowed marks a rejected restart request.
	ErrRestartNotAllowed = errors.New("RestartNotAllowed")
	// ErrRepository marks an unavailable or failing job repository.
	ErrRepository = errors.New("RepositoryFailure")
	// ErrInvalidTransition marks an operation incompatible with the current status.
	ErrInvalidTransition = errors.New("InvalidTransition")
	// ErrNotFound marks an unknown execution, instance, step or job id.
	ErrNotFound = errors.New("NotFound")
)

// errorRegistry maps error names referenced in job definitions to sentinel error instances.
var errorRegistry = make(map[string]error)

// registryMutex protects access to errorRegistry.
var registryMutex sync.RWMutex

// RegisterErrorType registers a sentinel error under name.
// Registered names may be used in skippable/retryable/no-rollback include and exclude lists.
// If prototype is nil or name is empty, this function will panic.
func RegisterErrorType(name string, prototype error) {
	registryMutex.Lock()
	defer registryMutex.Unlock()

	if name == "" {
		panic("Error type name cannot be empty")
	}
	if prototype == nil {
		panic(fmt.Sprintf("Cannot register nil prototype for name: %s", name))
	}

	errorRegistry[name] = prototype
}

// IsErrorTypeRegistered checks if the specified error type or class name is registered.
func IsErrorTypeRegistered(name string) bool {
	registryMutex.RLock()
	defer registryMutex.RUnlock()
	if _, ok := errorRegistry[name]; ok {
		return true
	}
	_, ok := classParents[name]
	return ok
}

// BatchError is a custom error type that occurs during batch processing.
// It holds the module where the error occurred, a message, the wrapped original error,
// the failure kind and flags indicating whether it is retryable or skippable.
type BatchError struct {
	// Module indicates the module where the error occurred (e.g., "reader", "ChunkStep", "SQLJobRepository.UpdateStepExecution").
	Module string
	// Message is a concise description of the error.
	Message string
	// OriginalErr is the wrapped original error.
	OriginalErr error
	// Kind is one of the failure kind sentinels, or nil.
	Kind error
	// isRetryable indicates whether this error is retryable.
	isRetryable bool
	// isSkippable indicates whether this error is skippable.
	isSkippable bool
	// StackTrace is the stack trace at the time of the error (for debugging).
	StackTrace string
}

// NewBatchError creates a new BatchError instance without a failure kind.
func NewBatchError(module, message string, originalErr error, isSkippable, isRetryable bool) *BatchError {
	return &BatchError{
		Module:      module,
		Message:     message,
		OriginalErr: originalErr,
		isRetryable: isRetryable,
		isSkippable: isSkippable,
		StackTrace:  captureStack(),
	}
}

// NewBatchErrorf creates a new BatchError instance using a format string.
// Optional flags and an error are extracted from the end of the variadic arguments 'a'
// in the order: [isSkippable bool], [isRetryable bool], [originalErr error].
// The remaining arguments are used for fmt.Sprintf.
//
// Examples:
// NewBatchErrorf("reader", "Failed to read item: %s", "item_id_123", true, true, io.EOF)
// -> message: "Failed to read item: item_id_123", isSkippable: true, isRetryable: true, originalErr: io.EOF
func NewBatchErrorf(module, format string, a ...interface{}) *BatchError {
	var originalErr error
	isRetryable := false
	isSkippable := false
	args := a

	if len(args) > 0 {
		if err, ok := args[len(args)-1].(error); ok {
			originalErr = err
			args = args[:len(args)-1]
		}
	}
	if len(args) > 0 {
		if b, ok := args[len(args)-1].(bool); ok {
			isRetryable = b
			args = args[:len(args)-1]
		}
	}
	if len(args) > 0 {
		if b, ok := args[len(args)-1].(bool); ok {
			isSkippable = b
			args = args[:len(args)-1]
		}
	}

	return &BatchError{
		Module:      module,
		Message:     fmt.Sprintf(format, args...),
		OriginalErr: originalErr,
		isRetryable: isRetryable,
		isSkippable: isSkippable,
		StackTrace:  captureStack(),
	}
}

func newKindError(kind error, module, message string, originalErr error) *BatchError {
	e := NewBatchError(module, message, originalErr, false, false)
	e.Kind = kind
	return e
}

// NewValidationError creates a ValidationFailure. It is fatal and never retried.
func NewValidationError(module, message string, originalErr error) *BatchError {
	return newKindError(ErrValidation, module, message, originalErr)
}

// NewItemError creates an ItemFailure wrapping a reader, processor or writer error.
func NewItemError(module, message string, originalErr error) *BatchError {
	return newKindError(ErrItem, module, message, originalErr)
}

// NewTransactionError creates a TransactionFailure.
func NewTransactionError(module, message string, originalErr error) *BatchError {
	return newKindError(ErrTransaction, module, message, originalErr)
}

// NewRestartNotAllowedError creates a RestartNotAllowed failure.
// Pass ErrInvalidTransition as originalErr when the rejection is caused by the execution status.
func NewRestartNotAllowedError(module, message string, originalErr error) *BatchError {
	return newKindError(ErrRestartNotAllowed, module, message, originalErr)
}

// NewRepositoryError creates a RepositoryFailure. transient marks errors worth retrying.
func NewRepositoryError(module, message string, originalErr error, transient bool) *BatchError {
	e := newKindError(ErrRepository, module, message, originalErr)
	e.isRetryable = transient
	return e
}

// NewInvalidTransitionError creates an InvalidTransition failure.
func NewInvalidTransitionError(module, message string) *BatchError {
	return newKindError(ErrInvalidTransition, module, message, nil)
}

// NewNotFoundError creates a NotFound failure wrapping the repository sentinel, if any.
func NewNotFoundError(module, message string, originalErr error) *BatchError {
	return newKindError(ErrNotFound, module, message, originalErr)
}

func captureStack() string {
	buf := make([]byte, 2048)
	n := runtime.Stack(buf, false)
	return string(buf[:n])
}

// Error implements the error interface.
func (e *BatchError) Error() string {
	if e.OriginalErr != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Module, e.Message, e.OriginalErr)
	}
	return fmt.Sprintf("[%s] %s", e.Module, e.Message)
}

// Unwrap returns the original error for errors.Unwrap.
func (e *BatchError) Unwrap() error {
	return e.OriginalErr
}

// Is reports whether target is this error's failure kind.
func (e *BatchError) Is(target error) bool {
	return e.Kind != nil && target == e.Kind
}

// ErrorClass returns the failure kind name, or "" when the error has no kind.
func (e *BatchError) ErrorClass() string {
	if e.Kind == nil {
		return ""
	}
	return e.Kind.Error()
}

// IsRetryable returns whether this error is retryable.
func (e *BatchError) IsRetryable() bool {
	return e.isRetryable
}

// IsSkippable returns whether this error is skippable.
func (e *BatchError) IsSkippable() bool {
	return e.isSkippable
}

// IsBatchError determines if the given error is of type BatchError.
func IsBatchError(err error) bool {
	var be *BatchError
	return errors.As(err, &be)
}

// IsTemporary determines if an error is temporary (e.g., network error, busy database).
// If the chain contains a BatchError, its IsRetryable flag takes precedence.
func IsTemporary(err error) bool {
	if err == nil {
		return false
	}
	var be *BatchError
	if errors.As(err, &be) {
		return be.IsRetryable()
	}
	errStr := err.Error()
	return strings.Contains(errStr, "timeout") ||
		strings.Contains(errStr, "connection refused")
}

// IsErrorOfType checks if an error matches a class name, a registered sentinel name,
// a Go type name (e.g., "*net.OpError") or a substring of an error message.
func IsErrorOfType(err error, errorTypeName string) bool {
	if err == nil {
		return false
	}

	for _, class := range ClassLineage(err) {
		if class == errorTypeName {
			return true
		}
	}

	registryMutex.RLock()
	targetError, ok := errorRegistry[errorTypeName]
	registryMutex.RUnlock()
	if ok && errors.Is(err, targetError) {
		return true
	}

	for currentErr := err; currentErr != nil; currentErr = errors.Unwrap(currentErr) {
		if strings.Contains(currentErr.Error(), errorTypeName) {
			return true
		}
		errType := reflect.TypeOf(currentErr)
		if errType != nil {
			if errType.String() == errorTypeName || (errType.Kind() == reflect.Ptr && errType.Elem().String() == errorTypeName) {
				return true
			}
		}
	}

	return false
}

func init() {
	RegisterErrorType("io.EOF", errors.New("io.EOF"))
	RegisterErrorType("context.DeadlineExceeded", context.DeadlineExceeded)
	RegisterErrorType("context.Canceled", context.Canceled)
	RegisterErrorType("sql.ErrNoRows", sql.ErrNoRows)

	for _, kind := range []error{ErrValidation, ErrItem, ErrTransaction, ErrRestartNotAllowed, ErrRepository, ErrInvalidTransition, ErrNotFound} {
		RegisterErrorClass(kind.Error(), "")
	}
}

// ExtractErrorMessage extracts the error message string from an error.
// For BatchError, it returns the cleaner Message field.
func ExtractErrorMessage(err error) string {
	if err == nil {
		return ""
	}
	if be, ok := err.(*BatchError); ok {
		return be.Message
	}
	return err.Error()
}
