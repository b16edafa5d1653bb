package generic

import (
	"context"
	"errors"
	"math/rand"

	port "github.com/bryant1410/jsr352/pkg/batch/core/application/port"
	model "github.com/bryant1410/jsr352/pkg/batch/core/domain/model"
	exception "github.com/bryant1410/jsr352/pkg/batch/support/util/exception"
	logger "github.com/bryant1410/jsr352/pkg/batch/support/util/logger"
)

// ErrInjectedFailure is wrapped by the errors FailingTasklet returns.
var ErrInjectedFailure = errors.New("injected tasklet failure")

// FailingTasklet fails the first FailCount executions of a job instance and completes on the
// restarts after that. With FailCount zero it fails with probability FailRate instead.
// It is used to exercise restart handling.
type FailingTasklet struct {
	FailCount int     `batch:"failCount"`
	FailRate  float64 `batch:"failRate"`

	rand func() float64
}

// NewFailingTasklet creates a tasklet that never fails until configured.
func NewFailingTasklet() *FailingTasklet {
	return &FailingTasklet{rand: rand.Float64}
}

// Execute implements port.Tasklet.
func (t *FailingTasklet) Execute(ctx context.Context, sc *port.StepContext) (model.ExitStatus, error) {
	run := 0
	if sc.JobExecution != nil {
		run = sc.JobExecution.RestartCount
	}

	var fail bool
	if t.FailCount > 0 {
		fail = run < t.FailCount
	} else {
		fail = t.FailRate > 0 && t.rand() < t.FailRate
	}
	if fail {
		logger.Warnf("FailingTasklet: Failing step '%s' on run %d.", sc.StepName(), run+1)
		return model.ExitStatusFailed, exception.NewBatchError("FailingTasklet", "step failed on purpose", ErrInjectedFailure, false, false)
	}
	logger.Infof("FailingTasklet: Step '%s' completed on run %d.", sc.StepName(), run+1)
	return model.ExitStatusCompleted, nil
}

var _ port.Tasklet = (*FailingTasklet)(nil)
