package sql

import (
	"encoding/json"
	"time"

	"github.com/bryant1410/jsr352/pkg/batch/core/domain/model"
)

// JobDefinitionEntity stores a job definition as JSON.
type JobDefinitionEntity struct {
	Name        string `gorm:"column:name;primaryKey"`
	Definition  string `gorm:"column:definition"`
	LastUpdated time.Time
}

func (JobDefinitionEntity) TableName() string {
	return "batch_job_definition"
}

// JobInstanceEntity is a schema model used for persistence.
type JobInstanceEntity struct {
	Seq            int64  `gorm:"column:seq;primaryKey;autoIncrement"`
	ID             string `gorm:"column:id"`
	JobName        string
	Sequence       int `gorm:"column:instance_sequence"`
	Parameters     model.JobParameters
	ParametersHash string
	CreateTime     time.Time
}

func (JobInstanceEntity) TableName() string {
	return "batch_job_instance"
}

// JobExecutionEntity is a schema model used for persistence.
type JobExecutionEntity struct {
	Seq                 int64  `gorm:"column:seq;primaryKey;autoIncrement"`
	ID                  string `gorm:"column:id"`
	JobInstanceID       string
	JobName             string
	Parameters          model.JobParameters
	Status              string
	ExitStatus          string
	CreateTime          time.Time
	StartTime           *time.Time
	EndTime             *time.Time
	LastUpdated         time.Time
	RestartPosition     string
	RestartCount        int
	PreviousExecutionID string
	Failures            model.FailureList
	Version             int
}

func (JobExecutionEntity) TableName() string {
	return "batch_job_execution"
}

// StepColumns are the columns shared by step and partition executions.
type StepColumns struct {
	ID               string `gorm:"column:id"`
	JobExecutionID   string
	StepName         string
	Status           string
	ExitStatus       string
	StartTime        *time.Time
	EndTime          *time.Time
	ReadCount        int
	WriteCount       int
	CommitCount      int
	RollbackCount    int
	FilterCount      int
	ReadSkipCount    int
	ProcessSkipCount int
	WriteSkipCount   int
	Checkpoint       *string
	PersistentData   model.ExecutionContext
	Failures         model.FailureList
	Version          int
	LastUpdated      time.Time
}

// StepExecutionEntity is a schema model used for persistence.
type StepExecutionEntity struct {
	Seq           int64 `gorm:"column:seq;primaryKey;autoIncrement"`
	StepColumns   `gorm:"embedded"`
	JobInstanceID string
}

func (StepExecutionEntity) TableName() string {
	return "batch_step_execution"
}

// PartitionExecutionEntity is a schema model used for persistence.
type PartitionExecutionEntity struct {
	Seq             int64 `gorm:"column:seq;primaryKey;autoIncrement"`
	StepColumns     `gorm:"embedded"`
	StepExecutionID string
	PartitionIndex  int
	Plan            string
}

func (PartitionExecutionEntity) TableName() string {
	return "batch_partition_execution"
}

// --- Mapper functions ---

func fromDomainJobInstance(ji *model.JobInstance) *JobInstanceEntity {
	return &JobInstanceEntity{
		ID:             ji.ID,
		JobName:        ji.JobName,
		Sequence:       ji.Sequence,
		Parameters:     ji.Parameters.Copy(),
		ParametersHash: ji.ParametersHash,
		CreateTime:     ji.CreateTime,
	}
}

func toDomainJobInstance(entity *JobInstanceEntity) *model.JobInstance {
	return &model.JobInstance{
		ID:             entity.ID,
		JobName:        entity.JobName,
		Sequence:       entity.Sequence,
		Parameters:     entity.Parameters,
		ParametersHash: entity.ParametersHash,
		CreateTime:     entity.CreateTime,
	}
}

func fromDomainJobExecution(je *model.JobExecution) *JobExecutionEntity {
	return &JobExecutionEntity{
		ID:                  je.ID,
		JobInstanceID:       je.JobInstanceID,
		JobName:             je.JobName,
		Parameters:          je.Parameters.Copy(),
		Status:              string(je.Status),
		ExitStatus:          string(je.ExitStatus),
		CreateTime:          je.CreateTime,
		StartTime:           timePtr(je.StartTime),
		EndTime:             je.EndTime,
		LastUpdated:         je.LastUpdated,
		RestartPosition:     je.RestartPosition,
		RestartCount:        je.RestartCount,
		PreviousExecutionID: je.PreviousExecutionID,
		Failures:            nonNilFailures(je.Failures),
		Version:             je.Version,
	}
}

func toDomainJobExecution(entity *JobExecutionEntity) *model.JobExecution {
	return &model.JobExecution{
		ID:                  entity.ID,
		JobInstanceID:       entity.JobInstanceID,
		JobName:             entity.JobName,
		Parameters:          entity.Parameters,
		Status:              model.BatchStatus(entity.Status),
		ExitStatus:          model.ExitStatus(entity.ExitStatus),
		CreateTime:          entity.CreateTime,
		StartTime:           timeValue(entity.StartTime),
		EndTime:             entity.EndTime,
		LastUpdated:         entity.LastUpdated,
		RestartPosition:     entity.RestartPosition,
		RestartCount:        entity.RestartCount,
		PreviousExecutionID: entity.PreviousExecutionID,
		Failures:            nonNilFailures(entity.Failures),
		Version:             entity.Version,
	}
}

func fromDomainStep(se *model.StepExecution) (StepColumns, error) {
	cp, err := model.EncodeCheckpoint(se.Checkpoint)
	if err != nil {
		return StepColumns{}, err
	}
	var checkpoint *string
	if cp != nil {
		s := string(cp)
		checkpoint = &s
	}
	data := se.PersistentData
	if data == nil {
		data = model.NewExecutionContext()
	}
	return StepColumns{
		ID:               se.ID,
		JobExecutionID:   se.JobExecutionID,
		StepName:         se.StepName,
		Status:           string(se.Status),
		ExitStatus:       string(se.ExitStatus),
		StartTime:        timePtr(se.StartTime),
		EndTime:          se.EndTime,
		ReadCount:        se.ReadCount,
		WriteCount:       se.WriteCount,
		CommitCount:      se.CommitCount,
		RollbackCount:    se.RollbackCount,
		FilterCount:      se.FilterCount,
		ReadSkipCount:    se.ReadSkipCount,
		ProcessSkipCount: se.ProcessSkipCount,
		WriteSkipCount:   se.WriteSkipCount,
		Checkpoint:       checkpoint,
		PersistentData:   data.Copy(),
		Failures:         nonNilFailures(se.Failures),
		Version:          se.Version,
		LastUpdated:      se.LastUpdated,
	}, nil
}

func toDomainStep(c *StepColumns) (*model.StepExecution, error) {
	var raw []byte
	if c.Checkpoint != nil {
		raw = []byte(*c.Checkpoint)
	}
	cp, err := model.DecodeCheckpoint(raw)
	if err != nil {
		return nil, err
	}
	data := c.PersistentData
	if data == nil {
		data = model.NewExecutionContext()
	}
	return &model.StepExecution{
		ID:             c.ID,
		JobExecutionID: c.JobExecutionID,
		StepName:       c.StepName,
		Status:         model.BatchStatus(c.Status),
		ExitStatus:     model.ExitStatus(c.ExitStatus),
		StartTime:      timeValue(c.StartTime),
		EndTime:        c.EndTime,
		StepMetrics: model.StepMetrics{
			ReadCount:        c.ReadCount,
			WriteCount:       c.WriteCount,
			CommitCount:      c.CommitCount,
			RollbackCount:    c.RollbackCount,
			FilterCount:      c.FilterCount,
			ReadSkipCount:    c.ReadSkipCount,
			ProcessSkipCount: c.ProcessSkipCount,
			WriteSkipCount:   c.WriteSkipCount,
		},
		Checkpoint:     cp,
		PersistentData: data,
		Failures:       nonNilFailures(c.Failures),
		Version:        c.Version,
		LastUpdated:    c.LastUpdated,
	}, nil
}

func fromDomainPartition(pe *model.PartitionExecution) (*PartitionExecutionEntity, error) {
	cols, err := fromDomainStep(&pe.StepExecution)
	if err != nil {
		return nil, err
	}
	props := pe.Plan
	if props == nil {
		props = map[string]string{}
	}
	plan, err := json.Marshal(props)
	if err != nil {
		return nil, err
	}
	return &PartitionExecutionEntity{
		StepColumns:     cols,
		StepExecutionID: pe.StepExecutionID,
		PartitionIndex:  pe.PartitionIndex,
		Plan:            string(plan),
	}, nil
}

func toDomainPartition(entity *PartitionExecutionEntity) (*model.PartitionExecution, error) {
	se, err := toDomainStep(&entity.StepColumns)
	if err != nil {
		return nil, err
	}
	var plan map[string]string
	if entity.Plan != "" {
		if err := json.Unmarshal([]byte(entity.Plan), &plan); err != nil {
			return nil, err
		}
	}
	if plan == nil {
		plan = make(map[string]string)
	}
	return &model.PartitionExecution{
		StepExecution:   *se,
		StepExecutionID: entity.StepExecutionID,
		PartitionIndex:  entity.PartitionIndex,
		Plan:            plan,
	}, nil
}

func timePtr(t time.Time) *time.Time {
	if t.IsZero() {
		return nil
	}
	return &t
}

func timeValue(t *time.Time) time.Time {
	if t == nil {
		return time.Time{}
	}
	return *t
}

func nonNilFailures(fl model.FailureList) model.FailureList {
	if fl == nil {
		return make(model.FailureList, 0)
	}
	return append(model.FailureList(nil), fl...)
}
