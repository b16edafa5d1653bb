// Package test provides artifacts, record factories and mocks shared by the engine's tests.
package test

import (
	"context"
	"fmt"
	"sync"

	"github.com/bryant1410/jsr352/pkg/batch/component/artifact"
	port "github.com/bryant1410/jsr352/pkg/batch/core/application/port"
	model "github.com/bryant1410/jsr352/pkg/batch/core/domain/model"
	tx "github.com/bryant1410/jsr352/pkg/batch/core/tx"
)

// Artifact names registered by Register.
const (
	NumberReaderRef      = "numberReader"
	NumberWriterRef      = "numberWriter"
	DoublingProcessorRef = "doublingProcessor"
	ExitTaskletRef       = "exitStatusTasklet"
	BlockingTaskletRef   = "blockingTasklet"
	AnalyzerRef          = "exitStatusAnalyzer"
	CollectorRef         = "partitionCollector"
	RecorderRef          = "recordingListener"
	DeciderRef           = "exitDecider"
)

// Sink collects the items written by NumberWriter instances and the events of RecordingListener.
// It is safe for concurrent use.
type Sink struct {
	mu      sync.Mutex
	written []int
	events  []string
	started chan struct{}
	once    sync.Once
}

// NewSink creates an empty Sink.
func NewSink() *Sink { return &Sink{started: make(chan struct{})} }

// Written returns the items written so far.
func (s *Sink) Written() []int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]int(nil), s.written...)
}

// Events returns the listener events recorded so far.
func (s *Sink) Events() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.events...)
}

// Started is closed once a blocking tasklet begins running.
func (s *Sink) Started() <-chan struct{} { return s.started }

func (s *Sink) record(event string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, event)
}

// Register binds every shared artifact to r. Instances write into sink.
func Register(r *artifact.Registry, sink *Sink) {
	r.Register(NumberReaderRef, artifact.Bound(func() *NumberReader { return &NumberReader{Limit: 20, FailAt: -1} }))
	r.Register(NumberWriterRef, artifact.Bound(func() *NumberWriter { return &NumberWriter{FailAt: -1, sink: sink} }))
	r.RegisterInstance(DoublingProcessorRef, port.ItemProcessor(doubling{}))
	r.Register(ExitTaskletRef, artifact.Bound(func() *ExitStatusTasklet { return &ExitStatusTasklet{} }))
	r.Register(BlockingTaskletRef, func(context.Context, *port.StepContext) (any, error) {
		return &blockingTasklet{sink: sink, stop: make(chan struct{})}, nil
	})
	r.Register(AnalyzerRef, artifact.Bound(func() *ExitStatusAnalyzer { return &ExitStatusAnalyzer{Expected: 1} }))
	r.Register(CollectorRef, func(context.Context, *port.StepContext) (any, error) { return partitionCollector{}, nil })
	r.Register(DeciderRef, artifact.Bound(func() *ExitDecider { return &ExitDecider{} }))
	r.Register(RecorderRef, func(context.Context, *port.StepContext) (any, error) { return &RecordingListener{sink: sink}, nil })
}

// NumberReader reads the integers from 0 up to Limit and fails when asked for FailAt.
// Its checkpoint is the next position to read.
type NumberReader struct {
	Limit  int `batch:"reader.limit"`
	FailAt int `batch:"reader.fail.at"`
	pos    int
}

// Open implements port.ItemReader.
func (r *NumberReader) Open(ctx context.Context, cp model.ExecutionContext) error {
	r.pos = 0
	if cp != nil {
		r.pos = asInt(cp["position"])
	}
	return nil
}

// ReadItem implements port.ItemReader.
func (r *NumberReader) ReadItem(ctx context.Context) (any, error) {
	if r.pos >= r.Limit {
		return nil, port.ErrNoMoreItems
	}
	if r.pos == r.FailAt {
		return nil, fmt.Errorf("reader failing at item %d", r.pos)
	}
	v := r.pos
	r.pos++
	return v, nil
}

// CheckpointInfo implements port.ItemReader.
func (r *NumberReader) CheckpointInfo(ctx context.Context) (model.ExecutionContext, error) {
	return model.ExecutionContext{"position": r.pos}, nil
}

// Close implements port.ItemReader.
func (r *NumberReader) Close(ctx context.Context) error { return nil }

// NumberWriter appends items to its Sink and fails any chunk containing FailAt.
type NumberWriter struct {
	FailAt int `batch:"writer.fail.at"`
	sink   *Sink
}

// Open implements port.ItemWriter.
func (w *NumberWriter) Open(ctx context.Context, cp model.ExecutionContext) error { return nil }

// WriteItems implements port.ItemWriter.
func (w *NumberWriter) WriteItems(ctx context.Context, t tx.Tx, items []any) error {
	values := make([]int, 0, len(items))
	for _, item := range items {
		v := asInt(item)
		if v == w.FailAt {
			return fmt.Errorf("writer failing at item %d", v)
		}
		values = append(values, v)
	}
	w.sink.mu.Lock()
	w.sink.written = append(w.sink.written, values...)
	w.sink.mu.Unlock()
	return nil
}

// CheckpointInfo implements port.ItemWriter.
func (w *NumberWriter) CheckpointInfo(ctx context.Context) (model.ExecutionContext, error) {
	return nil, nil
}

// Close implements port.ItemWriter.
func (w *NumberWriter) Close(ctx context.Context) error { return nil }

type doubling struct{}

func (doubling) ProcessItem(ctx context.Context, item any) (any, error) {
	return asInt(item) * 2, nil
}

// ExitStatusTasklet returns ExitStatus, or fails when Fail is set.
type ExitStatusTasklet struct {
	ExitStatus string `batch:"exit.status"`
	Fail       bool   `batch:"tasklet.fail"`
}

// Execute implements port.Tasklet.
func (t *ExitStatusTasklet) Execute(ctx context.Context, sc *port.StepContext) (model.ExitStatus, error) {
	if t.Fail {
		return "", fmt.Errorf("tasklet of step '%s' failed", sc.StepName())
	}
	return model.ExitStatus(t.ExitStatus), nil
}

// blockingTasklet runs until it is stopped.
type blockingTasklet struct {
	sink *Sink
	stop chan struct{}
	once sync.Once
}

func (t *blockingTasklet) Execute(ctx context.Context, sc *port.StepContext) (model.ExitStatus, error) {
	t.sink.once.Do(func() { close(t.sink.started) })
	<-t.stop
	return "", nil
}

func (t *blockingTasklet) Stop(ctx context.Context) error {
	t.once.Do(func() { close(t.stop) })
	return nil
}

// ExitStatusAnalyzer sets the step exit status to PARTITIONS_<n> once Expected partitions have
// been analyzed.
type ExitStatusAnalyzer struct {
	Expected int `batch:"analyzer.expected"`
	seen     int
	data     []any
}

// AnalyzeStatus implements port.PartitionAnalyzer.
func (a *ExitStatusAnalyzer) AnalyzeStatus(ctx context.Context, sc *port.StepContext, bs model.BatchStatus, es model.ExitStatus) error {
	a.seen++
	if a.seen == a.Expected {
		sc.SetExitStatus(model.ExitStatus(fmt.Sprintf("PARTITIONS_%d", a.seen)))
	}
	return nil
}

// AnalyzeCollectorData implements port.CollectorDataAnalyzer.
func (a *ExitStatusAnalyzer) AnalyzeCollectorData(ctx context.Context, sc *port.StepContext, data any) error {
	a.data = append(a.data, data)
	return nil
}

// ExitDecider decides Exit when it is set, and DECIDED_<exit status> of the last execution it is
// given otherwise.
type ExitDecider struct {
	Exit string `batch:"decider.exit"`
}

// Decide implements port.Decider.
func (d *ExitDecider) Decide(ctx context.Context, executions []*model.StepExecution) (model.ExitStatus, error) {
	if d.Exit != "" {
		return model.ExitStatus(d.Exit), nil
	}
	if len(executions) == 0 {
		return "DECIDED_NONE", nil
	}
	return model.ExitStatus("DECIDED_" + string(executions[len(executions)-1].ExitStatus)), nil
}

type partitionCollector struct{}

func (partitionCollector) CollectPartitionData(ctx context.Context, sc *port.StepContext) (any, error) {
	return sc.StepExecution.WriteCount, nil
}

// RecordingListener records job and step callbacks as "before-job", "after-job:<status>",
// "before-step:<name>" and "after-step:<name>:<status>".
type RecordingListener struct {
	sink *Sink
}

// BeforeJob implements port.JobExecutionListener.
func (l *RecordingListener) BeforeJob(ctx context.Context, je *model.JobExecution) {
	l.sink.record("before-job")
}

// AfterJob implements port.JobExecutionListener.
func (l *RecordingListener) AfterJob(ctx context.Context, je *model.JobExecution) {
	l.sink.record("after-job:" + string(je.Status))
}

// BeforeStep implements port.StepExecutionListener.
func (l *RecordingListener) BeforeStep(ctx context.Context, se *model.StepExecution) {
	l.sink.record("before-step:" + se.StepName)
}

// AfterStep implements port.StepExecutionListener.
func (l *RecordingListener) AfterStep(ctx context.Context, se *model.StepExecution) {
	l.sink.record("after-step:" + se.StepName + ":" + string(se.Status))
}

func asInt(v any) int {
	switch t := v.(type) {
	case int:
		return t
	case int64:
		return int(t)
	case float64:
		return int(t)
	default:
		return 0
	}
}
