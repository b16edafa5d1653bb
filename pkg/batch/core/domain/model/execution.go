package model

import (
	"fmt"
	"time"

	"github.com/bryant1410/jsr352/pkg/batch/support/util/exception"
)

// JobInstance is one logical lineage of executions of a job.
type JobInstance struct {
	ID             string
	JobName        string
	Sequence       int
	Parameters     JobParameters
	ParametersHash string
	CreateTime     time.Time
}

// NewJobInstance creates a JobInstance for jobName. sequence distinguishes separate
// non-restart invocations of the same job name and parameters.
func NewJobInstance(jobName string, params JobParameters, sequence int) (*JobInstance, error) {
	hash, err := params.Hash()
	if err != nil {
		return nil, err
	}
	return &JobInstance{
		ID:             NewID(),
		JobName:        jobName,
		Sequence:       sequence,
		Parameters:     params.Copy(),
		ParametersHash: hash,
		CreateTime:     time.Now(),
	}, nil
}

// JobExecution is one attempt to run a JobInstance.
type JobExecution struct {
	ID                  string
	JobInstanceID       string
	JobName             string
	Parameters          JobParameters
	Status              BatchStatus
	ExitStatus          ExitStatus
	CreateTime          time.Time
	StartTime           time.Time
	EndTime             *time.Time
	LastUpdated         time.Time
	// RestartPosition is the top-level element this execution starts at. An execution ended by a
	// stop transition with a restart target stores that target here for the next restart.
	RestartPosition     string
	RestartCount        int
	PreviousExecutionID string
	Failures            FailureList
	Version             int
}

// NewJobExecution creates a STARTING execution of instance.
func NewJobExecution(instance *JobInstance, params JobParameters) *JobExecution {
	now := time.Now()
	return &JobExecution{
		ID:            NewID(),
		JobInstanceID: instance.ID,
		JobName:       instance.JobName,
		Parameters:    params.Copy(),
		Status:        BatchStatusStarting,
		ExitStatus:    BatchStatusStarting.ToExitStatus(),
		CreateTime:    now,
		LastUpdated:   now,
		Failures:      make(FailureList, 0),
	}
}

// TransitionTo moves the execution to next following the job state machine.
// It returns an InvalidTransition failure and leaves the execution unchanged when the move is illegal.
// The exit status follows the batch status unless it was set to a custom value.
func (je *JobExecution) TransitionTo(next BatchStatus) error {
	if !je.Status.CanTransitionTo(next) {
		return exception.NewInvalidTransitionError("JobExecution", fmt.Sprintf("cannot move job execution %s from %s to %s", je.ID, je.Status, next))
	}
	if je.ExitStatus == "" || je.ExitStatus.IsDefault() {
		je.ExitStatus = next.ToExitStatus()
	}
	je.Status = next
	now := time.Now()
	switch next {
	case BatchStatusStarted:
		if je.StartTime.IsZero() {
			je.StartTime = now
		}
	case BatchStatusStopped, BatchStatusFailed, BatchStatusCompleted:
		je.EndTime = &now
	case BatchStatusAbandoned:
		if je.EndTime == nil {
			je.EndTime = &now
		}
	}
	je.LastUpdated = now
	return nil
}

// MarkFailed moves the execution to FAILED and records err.
func (je *JobExecution) MarkFailed(err error) error {
	if err != nil {
		je.AddFailureException(err)
	}
	return je.TransitionTo(BatchStatusFailed)
}

// AddFailureException records err on the execution.
func (je *JobExecution) AddFailureException(err error) {
	if err == nil {
		return
	}
	je.Failures.Add(err.Error())
}

// Copy returns a copy that shares no mutable state with je.
func (je *JobExecution) Copy() *JobExecution {
	cp := *je
	cp.Parameters = je.Parameters.Copy()
	cp.Failures = append(FailureList(nil), je.Failures...)
	if je.EndTime != nil {
		t := *je.EndTime
		cp.EndTime = &t
	}
	return &cp
}

// StepMetrics are the counters of a step or partition execution.
type StepMetrics struct {
	ReadCount        int `json:"read_count"`
	WriteCount       int `json:"write_count"`
	CommitCount      int `json:"commit_count"`
	RollbackCount    int `json:"rollback_count"`
	FilterCount      int `json:"filter_count"`
	ReadSkipCount    int `json:"read_skip_count"`
	ProcessSkipCount int `json:"process_skip_count"`
	WriteSkipCount   int `json:"write_skip_count"`
}

// Add accumulates other into m.
func (m *StepMetrics) Add(other StepMetrics) {
	m.ReadCount += other.ReadCount
	m.WriteCount += other.WriteCount
	m.CommitCount += other.CommitCount
	m.RollbackCount += other.RollbackCount
	m.FilterCount += other.FilterCount
	m.ReadSkipCount += other.ReadSkipCount
	m.ProcessSkipCount += other.ProcessSkipCount
	m.WriteSkipCount += other.WriteSkipCount
}

// SkipCount is the total of read, process and write skips.
func (m StepMetrics) SkipCount() int {
	return m.ReadSkipCount + m.ProcessSkipCount + m.WriteSkipCount
}

// StepExecution is one execution of one step within a JobExecution.
type StepExecution struct {
	ID             string
	JobExecutionID string
	StepName       string
	Status         BatchStatus
	ExitStatus     ExitStatus
	StartTime      time.Time
	EndTime        *time.Time
	StepMetrics
	Checkpoint     *Checkpoint
	PersistentData ExecutionContext
	Failures       FailureList
	Version        int
	LastUpdated    time.Time
}

// NewStepExecution creates a STARTING execution of stepName within jobExecutionID.
func NewStepExecution(jobExecutionID, stepName string) *StepExecution {
	now := time.Now()
	return &StepExecution{
		ID:             NewID(),
		JobExecutionID: jobExecutionID,
		StepName:       stepName,
		Status:         BatchStatusStarting,
		ExitStatus:     BatchStatusStarting.ToExitStatus(),
		PersistentData: NewExecutionContext(),
		Failures:       make(FailureList, 0),
		LastUpdated:    now,
	}
}

// MarkStarted moves the step to STARTED.
func (se *StepExecution) MarkStarted() {
	se.setStatus(BatchStatusStarted)
	se.StartTime = time.Now()
}

// MarkCompleted moves the step to COMPLETED.
func (se *StepExecution) MarkCompleted() { se.finish(BatchStatusCompleted) }

// MarkStopped moves the step to STOPPED.
func (se *StepExecution) MarkStopped() { se.finish(BatchStatusStopped) }

// MarkFailed moves the step to FAILED and records err.
func (se *StepExecution) MarkFailed(err error) {
	se.AddFailureException(err)
	se.finish(BatchStatusFailed)
}

// Finish moves the step to a terminal status.
func (se *StepExecution) Finish(status BatchStatus) { se.finish(status) }

func (se *StepExecution) finish(status BatchStatus) {
	se.setStatus(status)
	now := time.Now()
	se.EndTime = &now
}

func (se *StepExecution) setStatus(status BatchStatus) {
	if se.ExitStatus == "" || se.ExitStatus.IsDefault() {
		se.ExitStatus = status.ToExitStatus()
	}
	se.Status = status
	se.LastUpdated = time.Now()
}

// AddFailureException records err on the execution.
func (se *StepExecution) AddFailureException(err error) {
	if err == nil {
		return
	}
	se.Failures.Add(err.Error())
}

// Copy returns a copy that shares no mutable state with se.
func (se *StepExecution) Copy() *StepExecution {
	cp := *se
	cp.PersistentData = se.PersistentData.Copy()
	cp.Failures = append(FailureList(nil), se.Failures...)
	if se.Checkpoint != nil {
		cp.Checkpoint = se.Checkpoint.Copy()
	}
	if se.EndTime != nil {
		t := *se.EndTime
		cp.EndTime = &t
	}
	return &cp
}

// PartitionExecution is the record of one partition of a partitioned step.
// It embeds a StepExecution so the chunk machinery runs on it unchanged; its JobExecutionID is
// the enclosing job execution and StepExecutionID the enclosing step execution.
type PartitionExecution struct {
	StepExecution
	StepExecutionID string
	PartitionIndex  int
	Plan            map[string]string
}

// NewPartitionExecution creates a STARTING partition record for parent.
func NewPartitionExecution(parent *StepExecution, index int, plan map[string]string) *PartitionExecution {
	se := NewStepExecution(parent.JobExecutionID, PartitionName(parent.StepName, index))
	planCopy := make(map[string]string, len(plan))
	for k, v := range plan {
		planCopy[k] = v
	}
	return &PartitionExecution{
		StepExecution:   *se,
		StepExecutionID: parent.ID,
		PartitionIndex:  index,
		Plan:            planCopy,
	}
}

// Copy returns a copy that shares no mutable state with pe.
func (pe *PartitionExecution) Copy() *PartitionExecution {
	cp := *pe
	cp.StepExecution = *pe.StepExecution.Copy()
	cp.Plan = make(map[string]string, len(pe.Plan))
	for k, v := range pe.Plan {
		cp.Plan[k] = v
	}
	return &cp
}

// PartitionName is the step name used by the records of partition index of stepName.
func PartitionName(stepName string, index int) string {
	return fmt.Sprintf("%s:partition%d", stepName, index)
}
