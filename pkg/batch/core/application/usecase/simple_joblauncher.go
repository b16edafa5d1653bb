package usecase

import (
	"context"
	"sync"

	model "github.com/bryant1410/jsr352/pkg/batch/core/domain/model"
	"github.com/bryant1410/jsr352/pkg/batch/core/job/runner"
	logger "github.com/bryant1410/jsr352/pkg/batch/support/util/logger"
)

// JobLauncher runs stored STARTING executions in the background.
type JobLauncher interface {
	// Launch starts running je, an execution of def, and returns without waiting for it.
	Launch(ctx context.Context, je *model.JobExecution, def *model.JobDefinition)
}

// activeJob is the bookkeeping of one execution running in the background.
type activeJob struct {
	cancel context.CancelFunc
	done   chan struct{}
}

// SimpleJobLauncher implements JobLauncher for local execution, one goroutine per execution.
type SimpleJobLauncher struct {
	jobRunner *runner.JobRunner
	// activeJobs holds the running executions by id.
	activeJobs map[string]*activeJob
	mu         sync.Mutex
	wg         sync.WaitGroup
}

// Verify that SimpleJobLauncher implements the JobLauncher interface.
var _ JobLauncher = (*SimpleJobLauncher)(nil)

// NewSimpleJobLauncher creates a new SimpleJobLauncher.
func NewSimpleJobLauncher(jobRunner *runner.JobRunner) *SimpleJobLauncher {
	return &SimpleJobLauncher{
		jobRunner:  jobRunner,
		activeJobs: make(map[string]*activeJob),
	}
}

// Launch launches a job execution. The execution keeps running after ctx is cancelled; it is
// stopped through Cancel or Shutdown.
func (l *SimpleJobLauncher) Launch(ctx context.Context, je *model.JobExecution, def *model.JobDefinition) {
	jobCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	job := &activeJob{cancel: cancel, done: make(chan struct{})}

	l.mu.Lock()
	l.activeJobs[je.ID] = job
	l.mu.Unlock()
	logger.Debugf("Registered CancelFunc for JobExecution (ID: %s).", je.ID)

	l.wg.Add(1)
	go func() {
		defer l.wg.Done()
		defer close(job.done)
		defer l.unregister(je.ID)
		defer cancel()
		if err := l.jobRunner.Run(jobCtx, je, def); err != nil {
			logger.Warnf("JobLauncher: Job '%s' (Execution ID: %s) ended with error: %v", je.JobName, je.ID, err)
		}
	}()
	logger.Infof("Launched Job '%s' (Execution ID: %s, Job Instance ID: %s).", je.JobName, je.ID, je.JobInstanceID)
}

// Cancel delivers a stop request to a running execution. It reports whether the execution was
// running in this launcher.
func (l *SimpleJobLauncher) Cancel(executionID string) bool {
	l.mu.Lock()
	job, ok := l.activeJobs[executionID]
	l.mu.Unlock()
	if !ok {
		return false
	}
	job.cancel()
	return true
}

// Done returns a channel closed once the execution has stored its final status, and false when
// the execution is not running in this launcher.
func (l *SimpleJobLauncher) Done(executionID string) (<-chan struct{}, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	job, ok := l.activeJobs[executionID]
	if !ok {
		return nil, false
	}
	return job.done, true
}

// Shutdown stops every running execution and waits for them to finish, or for ctx to be done.
func (l *SimpleJobLauncher) Shutdown(ctx context.Context) error {
	l.mu.Lock()
	for id, job := range l.activeJobs {
		logger.Infof("JobLauncher: Stopping JobExecution (ID: %s) for shutdown.", id)
		job.cancel()
	}
	l.mu.Unlock()

	finished := make(chan struct{})
	go func() {
		l.wg.Wait()
		close(finished)
	}()
	select {
	case <-finished:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (l *SimpleJobLauncher) unregister(executionID string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	delete(l.activeJobs, executionID)
	logger.Debugf("Unregistered CancelFunc for JobExecution (ID: %s).", executionID)
}
