// Package policy classifies chunk failures into skip, retry or fail decisions.
package policy

import (
	"errors"
	"fmt"

	port "github.com/bryant1410/jsr352/pkg/batch/core/application/port"
	model "github.com/bryant1410/jsr352/pkg/batch/core/domain/model"
	"github.com/bryant1410/jsr352/pkg/batch/support/util/exception"
)

// Stage is the chunk phase in which a failure was raised.
type Stage string

const (
	StageRead    Stage = "read"
	StageProcess Stage = "process"
	StageWrite   Stage = "write"
	StageCommit  Stage = "commit"
)

// Action is the outcome of evaluating a failure.
type Action int

const (
	ActionFail Action = iota
	ActionSkip
	ActionRetry
	ActionRetryWithoutRollback
)

func (a Action) String() string {
	switch a {
	case ActionSkip:
		return "SKIP"
	case ActionRetry:
		return "RETRY"
	case ActionRetryWithoutRollback:
		return "RETRY_WITHOUT_ROLLBACK"
	default:
		return "FAIL"
	}
}

// Decision is what the chunk processor does with a failure.
// Rollback tells whether the chunk transaction has to be rolled back first.
type Decision struct {
	Action   Action
	Rollback bool
}

// Config is the failure handling configuration of a chunk step.
// A limit of zero or less means unlimited.
type Config struct {
	SkipLimit  int
	RetryLimit int
	Skippable  model.ExceptionFilter
	Retryable  model.ExceptionFilter
	NoRollback model.ExceptionFilter
	Mapper     port.ExceptionMapper
}

// ConfigFor builds the configuration of a chunk definition. mapper may be nil.
func ConfigFor(def *model.ChunkDefinition, mapper port.ExceptionMapper) Config {
	return Config{
		SkipLimit:  def.SkipLimit,
		RetryLimit: def.RetryLimit,
		Skippable:  def.Skippable,
		Retryable:  def.Retryable,
		NoRollback: def.NoRollback,
		Mapper:     mapper,
	}
}

// Evaluator applies a Config to the failures of one step or partition execution.
// Skip and retry counts accumulate over the whole execution. It is not safe for concurrent use.
type Evaluator struct {
	cfg     Config
	skips   int
	retries int
}

// NewEvaluator creates an evaluator with zeroed counts.
func NewEvaluator(cfg Config) *Evaluator {
	return &Evaluator{cfg: cfg}
}

// Evaluate classifies err raised in stage.
//
// Retry rules are considered first; a retryable failure is retried with rollback, or without it
// when it is also a no-rollback failure. A commit failure can only be retried. Otherwise a
// skippable failure of the read, process or write stage is skipped; a skipped write needs a
// rollback unless the failure is a no-rollback one. Exhausting the retry or skip limit, and
// every other failure, yields FAIL.
func (e *Evaluator) Evaluate(stage Stage, err error) Decision {
	if err == nil {
		return Decision{Action: ActionFail, Rollback: true}
	}
	if errors.Is(err, exception.ErrValidation) || errors.Is(err, exception.ErrRepository) {
		return Decision{Action: ActionFail, Rollback: true}
	}

	lineage := e.lineage(err)
	noRollback := matches(e.cfg.NoRollback, lineage, false)

	if matches(e.cfg.Retryable, lineage, flagged(err, (*exception.BatchError).IsRetryable)) {
		if e.cfg.RetryLimit > 0 && e.retries >= e.cfg.RetryLimit {
			// exhausted retries fail the step even when the error is also skippable
			return Decision{Action: ActionFail, Rollback: true}
		}
		e.retries++
		if noRollback {
			return Decision{Action: ActionRetryWithoutRollback, Rollback: false}
		}
		return Decision{Action: ActionRetry, Rollback: true}
	}

	if stage == StageCommit {
		return Decision{Action: ActionFail, Rollback: true}
	}

	if matches(e.cfg.Skippable, lineage, flagged(err, (*exception.BatchError).IsSkippable)) {
		if e.cfg.SkipLimit > 0 && e.skips >= e.cfg.SkipLimit {
			return Decision{Action: ActionFail, Rollback: true}
		}
		e.skips++
		return Decision{Action: ActionSkip, Rollback: stage == StageWrite && !noRollback}
	}

	return Decision{Action: ActionFail, Rollback: true}
}

// IsNoRollback reports whether err is declared a no-rollback failure.
func (e *Evaluator) IsNoRollback(err error) bool {
	return matches(e.cfg.NoRollback, e.lineage(err), false)
}

// ReleaseSkip gives back one SKIP decision. The chunk processor calls it when a skipped write
// is resolved item by item, so only the items actually skipped count against the limit.
func (e *Evaluator) ReleaseSkip() {
	if e.skips > 0 {
		e.skips--
	}
}

// SkipCount returns the number of SKIP decisions made so far.
func (e *Evaluator) SkipCount() int { return e.skips }

// RetryCount returns the number of RETRY decisions made so far.
func (e *Evaluator) RetryCount() int { return e.retries }

// String describes the evaluator state for log messages.
func (e *Evaluator) String() string {
	return fmt.Sprintf("skips=%d/%d retries=%d/%d", e.skips, e.cfg.SkipLimit, e.retries, e.cfg.RetryLimit)
}

func (e *Evaluator) lineage(err error) []string {
	lineage := exception.ClassLineage(err)
	if e.cfg.Mapper == nil {
		return lineage
	}
	mapped := e.cfg.Mapper.MapException(err)
	if len(mapped) == 0 {
		return lineage
	}
	return append(append([]string(nil), mapped...), lineage...)
}

// flagged reports whether a BatchError in the chain carries the flag read by get.
func flagged(err error, get func(*exception.BatchError) bool) bool {
	var be *exception.BatchError
	return errors.As(err, &be) && get(be)
}

// matches reports whether lineage is selected by filter. The nearest include must be strictly
// more specific than the nearest exclude, so an exclude wins at equal depth. implicitInclude
// counts as an include less specific than any listed class.
func matches(filter model.ExceptionFilter, lineage []string, implicitInclude bool) bool {
	if len(lineage) == 0 {
		return false
	}
	notFound := len(lineage) + 1
	include := depthOf(filter.Include, lineage, notFound)
	if implicitInclude && include == notFound {
		include = len(lineage)
	}
	if include == notFound {
		return false
	}
	exclude := depthOf(filter.Exclude, lineage, notFound)
	return include < exclude
}

func depthOf(classes []string, lineage []string, notFound int) int {
	for depth, class := range lineage {
		for _, c := range classes {
			if c == class {
				return depth
			}
		}
	}
	return notFound
}
