package policy_test

import (
	"errors"
	"fmt"
	"testing"

	model "github.com/bryant1410/jsr352/pkg/batch/core/domain/model"
	"github.com/bryant1410/jsr352/pkg/batch/engine/step/policy"
	"github.com/bryant1410/jsr352/pkg/batch/support/util/exception"

	"github.com/stretchr/testify/assert"
)

func init() {
	exception.RegisterErrorClass("policy.Exception", "")
	exception.RegisterErrorClass("policy.RuntimeException", "policy.Exception")
	exception.RegisterErrorClass("policy.ArithmeticException", "policy.RuntimeException")
	exception.RegisterErrorClass("policy.IOException", "policy.Exception")
	exception.RegisterErrorClass("policy.FileNotFoundException", "policy.IOException")
}

func classed(class string) error {
	return exception.NewClassedError(class, "test failure", nil)
}

func TestSkipWithinLimit(t *testing.T) {
	ev := policy.NewEvaluator(policy.Config{
		SkipLimit: 2,
		Skippable: model.ExceptionFilter{Include: []string{"policy.RuntimeException"}},
	})
	for i := 0; i < 2; i++ {
		d := ev.Evaluate(policy.StageProcess, classed("policy.ArithmeticException"))
		assert.Equal(t, policy.ActionSkip, d.Action)
		assert.False(t, d.Rollback)
	}
	// The third skippable failure exceeds the limit.
	assert.Equal(t, policy.ActionFail, ev.Evaluate(policy.StageRead, classed("policy.ArithmeticException")).Action)
	assert.Equal(t, 2, ev.SkipCount())
}

func TestUnlimitedSkips(t *testing.T) {
	ev := policy.NewEvaluator(policy.Config{Skippable: model.ExceptionFilter{Include: []string{"policy.Exception"}}})
	for i := 0; i < 100; i++ {
		assert.Equal(t, policy.ActionSkip, ev.Evaluate(policy.StageRead, classed("policy.IOException")).Action)
	}
}

func TestIncludeExcludeSpecificity(t *testing.T) {
	filter := model.ExceptionFilter{
		Include: []string{"policy.Exception", "policy.FileNotFoundException"},
		Exclude: []string{"policy.IOException"},
	}
	ev := policy.NewEvaluator(policy.Config{Skippable: filter})

	// Exact include beats the superclass exclude.
	assert.Equal(t, policy.ActionSkip, ev.Evaluate(policy.StageRead, classed("policy.FileNotFoundException")).Action)
	// The nearer exclude beats the farther include.
	assert.Equal(t, policy.ActionFail, ev.Evaluate(policy.StageRead, classed("policy.IOException")).Action)
	// Unrelated subclass of the include.
	assert.Equal(t, policy.ActionSkip, ev.Evaluate(policy.StageRead, classed("policy.RuntimeException")).Action)
	// Not included at all.
	assert.Equal(t, policy.ActionFail, ev.Evaluate(policy.StageRead, errors.New("plain")).Action)
}

func TestExcludeWinsAtEqualDepth(t *testing.T) {
	ev := policy.NewEvaluator(policy.Config{Skippable: model.ExceptionFilter{
		Include: []string{"policy.IOException"},
		Exclude: []string{"policy.IOException"},
	}})
	assert.Equal(t, policy.ActionFail, ev.Evaluate(policy.StageRead, classed("policy.IOException")).Action)
}

func TestRetryIsConsideredFirst(t *testing.T) {
	ev := policy.NewEvaluator(policy.Config{
		RetryLimit: 1,
		Retryable:  model.ExceptionFilter{Include: []string{"policy.IOException"}},
		Skippable:  model.ExceptionFilter{Include: []string{"policy.IOException"}},
	})
	d := ev.Evaluate(policy.StageWrite, classed("policy.IOException"))
	assert.Equal(t, policy.ActionRetry, d.Action)
	assert.True(t, d.Rollback)
	// Retry limit exhausted forces FAIL even though the failure is skippable.
	assert.Equal(t, policy.ActionFail, ev.Evaluate(policy.StageWrite, classed("policy.IOException")).Action)
	assert.Equal(t, 1, ev.RetryCount())
}

func TestRetryWithoutRollback(t *testing.T) {
	ev := policy.NewEvaluator(policy.Config{
		Retryable:  model.ExceptionFilter{Include: []string{"policy.Exception"}},
		NoRollback: model.ExceptionFilter{Include: []string{"policy.ArithmeticException"}},
	})
	d := ev.Evaluate(policy.StageProcess, classed("policy.ArithmeticException"))
	assert.Equal(t, policy.ActionRetryWithoutRollback, d.Action)
	assert.False(t, d.Rollback)

	d = ev.Evaluate(policy.StageProcess, classed("policy.IOException"))
	assert.Equal(t, policy.ActionRetry, d.Action)
	assert.True(t, d.Rollback)
}

func TestWriteSkipRollback(t *testing.T) {
	ev := policy.NewEvaluator(policy.Config{
		Skippable:  model.ExceptionFilter{Include: []string{"policy.Exception"}},
		NoRollback: model.ExceptionFilter{Include: []string{"policy.ArithmeticException"}},
	})
	d := ev.Evaluate(policy.StageWrite, classed("policy.IOException"))
	assert.Equal(t, policy.ActionSkip, d.Action)
	assert.True(t, d.Rollback)

	d = ev.Evaluate(policy.StageWrite, classed("policy.ArithmeticException"))
	assert.Equal(t, policy.ActionSkip, d.Action)
	assert.False(t, d.Rollback)
}

func TestCommitStageOnlyRetriesOrFails(t *testing.T) {
	ev := policy.NewEvaluator(policy.Config{
		Skippable: model.ExceptionFilter{Include: []string{"policy.Exception"}},
	})
	assert.Equal(t, policy.ActionFail, ev.Evaluate(policy.StageCommit, classed("policy.IOException")).Action)

	ev = policy.NewEvaluator(policy.Config{
		Retryable: model.ExceptionFilter{Include: []string{"policy.Exception"}},
	})
	assert.Equal(t, policy.ActionRetry, ev.Evaluate(policy.StageCommit, classed("policy.IOException")).Action)
}

func TestWrappedErrorsUseInnerClass(t *testing.T) {
	ev := policy.NewEvaluator(policy.Config{
		Skippable: model.ExceptionFilter{Include: []string{"policy.IOException"}},
	})
	err := fmt.Errorf("reading row 5: %w", classed("policy.FileNotFoundException"))
	assert.Equal(t, policy.ActionSkip, ev.Evaluate(policy.StageRead, err).Action)
}

type mapper struct{}

func (mapper) MapException(err error) []string {
	if err.Error() == "disk full" {
		return []string{"policy.IOException"}
	}
	return nil
}

func TestExceptionMapperPrependsClasses(t *testing.T) {
	ev := policy.NewEvaluator(policy.Config{
		Skippable: model.ExceptionFilter{Include: []string{"policy.IOException"}},
		Mapper:    mapper{},
	})
	assert.Equal(t, policy.ActionSkip, ev.Evaluate(policy.StageWrite, errors.New("disk full")).Action)
	assert.Equal(t, policy.ActionFail, ev.Evaluate(policy.StageWrite, errors.New("other")).Action)
}

func TestBatchErrorFlagsActAsIncludes(t *testing.T) {
	ev := policy.NewEvaluator(policy.Config{})
	err := exception.NewBatchError("reader", "bad row", nil, true, false)
	assert.Equal(t, policy.ActionSkip, ev.Evaluate(policy.StageRead, err).Action)

	ev = policy.NewEvaluator(policy.Config{Skippable: model.ExceptionFilter{Exclude: []string{exception.RootErrorClass}}})
	assert.Equal(t, policy.ActionFail, ev.Evaluate(policy.StageRead, err).Action)
}

func TestValidationAndRepositoryFailuresAlwaysFail(t *testing.T) {
	ev := policy.NewEvaluator(policy.Config{
		Skippable: model.ExceptionFilter{Include: []string{exception.RootErrorClass}},
		Retryable: model.ExceptionFilter{Include: []string{exception.RootErrorClass}},
	})
	assert.Equal(t, policy.ActionFail, ev.Evaluate(policy.StageRead, exception.NewValidationError("m", "bad", nil)).Action)
	assert.Equal(t, policy.ActionFail, ev.Evaluate(policy.StageWrite, exception.NewRepositoryError("m", "down", nil, true)).Action)
}
