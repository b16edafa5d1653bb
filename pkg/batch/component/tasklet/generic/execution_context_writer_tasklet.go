// Package generic provides general-purpose tasklets.
package generic

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	port "github.com/bryant1410/jsr352/pkg/batch/core/application/port"
	model "github.com/bryant1410/jsr352/pkg/batch/core/domain/model"
	exception "github.com/bryant1410/jsr352/pkg/batch/support/util/exception"
	logger "github.com/bryant1410/jsr352/pkg/batch/support/util/logger"
)

// ExecutionContextWriterTasklet writes the step properties named "<key>.<type>" to the
// persistent data of the step execution. type is one of string, int, float, bool. Keys may be
// dotted, in which case nested maps are created.
//
// Example properties:
//   - "count.int": "10"
//   - "report.name.string": "daily"
type ExecutionContextWriterTasklet struct{}

// NewExecutionContextWriterTasklet creates a new ExecutionContextWriterTasklet.
func NewExecutionContextWriterTasklet() *ExecutionContextWriterTasklet {
	return &ExecutionContextWriterTasklet{}
}

// Execute implements port.Tasklet.
func (t *ExecutionContextWriterTasklet) Execute(ctx context.Context, sc *port.StepContext) (model.ExitStatus, error) {
	data := sc.PersistentData()
	if data == nil {
		return model.ExitStatusFailed, exception.NewValidationError("ExecutionContextWriterTasklet", "tasklet must run inside a step", nil)
	}
	logger.Infof("ExecutionContextWriterTasklet: Writing %d properties of step '%s'.", len(sc.Properties), sc.StepName())

	for keyWithType, raw := range sc.Properties {
		dot := strings.LastIndex(keyWithType, ".")
		if dot <= 0 {
			logger.Warnf("ExecutionContextWriterTasklet: Property key '%s' is not in 'key.type' format. Skipping.", keyWithType)
			continue
		}
		key, typ := keyWithType[:dot], strings.ToLower(keyWithType[dot+1:])

		var value interface{}
		var err error
		switch typ {
		case "string":
			value = raw
		case "int":
			value, err = strconv.Atoi(raw)
		case "float", "float64":
			value, err = strconv.ParseFloat(raw, 64)
		case "bool":
			value, err = strconv.ParseBool(raw)
		default:
			logger.Warnf("ExecutionContextWriterTasklet: Unknown type '%s' for key '%s'. Skipping.", typ, key)
			continue
		}
		if err != nil {
			return model.ExitStatusFailed, exception.NewValidationError("ExecutionContextWriterTasklet",
				fmt.Sprintf("cannot convert '%s' to %s for key '%s'", raw, typ, key), err)
		}
		data.PutNested(key, value)
	}
	return model.ExitStatusCompleted, nil
}

var _ port.Tasklet = (*ExecutionContextWriterTasklet)(nil)
