// Package flow provides deciders for decision elements.
package flow

import (
	"context"
	"fmt"

	"github.com/bryant1410/jsr352/pkg/batch/component/artifact"
	port "github.com/bryant1410/jsr352/pkg/batch/core/application/port"
	model "github.com/bryant1410/jsr352/pkg/batch/core/domain/model"
	logger "github.com/bryant1410/jsr352/pkg/batch/support/util/logger"
)

// ConditionalDeciderRef is the artifact name ConditionalDecider is registered under.
const ConditionalDeciderRef = "conditionalDecider"

// ConditionalDecider compares a value written to the persistent data of the previous step
// executions with an expected value.
//
// Properties:
//   - conditionKey: dotted key looked up in the persistent data, newest execution first.
//   - expectedValue: the value compared with, as a string.
//   - matchStatus: returned on a match, COMPLETED by default.
//   - defaultStatus: returned otherwise, FAILED by default.
//   - exit.status: returned unconditionally when conditionKey is empty.
type ConditionalDecider struct {
	ConditionKey  string `batch:"conditionKey"`
	ExpectedValue string `batch:"expectedValue"`
	MatchStatus   string `batch:"matchStatus"`
	DefaultStatus string `batch:"defaultStatus"`
	StaticStatus  string `batch:"exit.status"`
}

// NewConditionalDecider creates a decider with the default statuses.
func NewConditionalDecider() *ConditionalDecider {
	return &ConditionalDecider{
		MatchStatus:   string(model.ExitStatusCompleted),
		DefaultStatus: string(model.ExitStatusFailed),
	}
}

// Decide implements port.Decider.
func (d *ConditionalDecider) Decide(ctx context.Context, executions []*model.StepExecution) (model.ExitStatus, error) {
	if d.ConditionKey == "" {
		if d.StaticStatus != "" {
			logger.Debugf("ConditionalDecider: determined exit status '%s' from static property.", d.StaticStatus)
			return model.ExitStatus(d.StaticStatus), nil
		}
		logger.Warnf("ConditionalDecider: conditionKey is not set. Returning default status '%s'.", d.DefaultStatus)
		return model.ExitStatus(d.DefaultStatus), nil
	}

	for i := len(executions) - 1; i >= 0; i-- {
		data := executions[i].PersistentData
		if data == nil {
			continue
		}
		actual, ok := data.GetNested(d.ConditionKey)
		if !ok {
			continue
		}
		if fmt.Sprintf("%v", actual) == d.ExpectedValue {
			logger.Infof("ConditionalDecider: Condition matched ('%v' == '%s'). Returning '%s'.", actual, d.ExpectedValue, d.MatchStatus)
			return model.ExitStatus(d.MatchStatus), nil
		}
		logger.Infof("ConditionalDecider: Condition did not match ('%v' != '%s'). Returning '%s'.", actual, d.ExpectedValue, d.DefaultStatus)
		return model.ExitStatus(d.DefaultStatus), nil
	}

	logger.Warnf("ConditionalDecider: Key '%s' not found in %d step executions. Returning default status '%s'.", d.ConditionKey, len(executions), d.DefaultStatus)
	return model.ExitStatus(d.DefaultStatus), nil
}

var _ port.Decider = (*ConditionalDecider)(nil)

// Builder creates a ConditionalDecider bound to the decision's properties.
var Builder = artifact.Bound(NewConditionalDecider)

// Module registers ConditionalDecider.
var Module = artifact.Provide(ConditionalDeciderRef, Builder)
