// Package scope resolves the artifacts of one step or partition execution and carries the
// engine services they run with.
package scope

import (
	"context"
	"fmt"

	port "github.com/bryant1410/jsr352/pkg/batch/core/application/port"
	repository "github.com/bryant1410/jsr352/pkg/batch/core/domain/repository"
	metrics "github.com/bryant1410/jsr352/pkg/batch/core/metrics"
	"github.com/bryant1410/jsr352/pkg/batch/core/pool"
	tx "github.com/bryant1410/jsr352/pkg/batch/core/tx"
	"github.com/bryant1410/jsr352/pkg/batch/support/util/exception"
)

// Services are the engine collaborators shared by every step execution.
type Services struct {
	Repository repository.JobRepository
	Artifacts  port.ArtifactFactory
	TxManager  tx.TransactionManager
	Recorder   metrics.MetricRecorder
	Tracer     metrics.Tracer
	Pool       *pool.Pool
}

// WithDefaults fills unset optional services with their no-op versions.
func (s Services) WithDefaults() Services {
	if s.TxManager == nil {
		s.TxManager = tx.NewNoopTransactionManager()
	}
	if s.Recorder == nil {
		s.Recorder = metrics.NewNoOpMetricRecorder()
	}
	if s.Tracer == nil {
		s.Tracer = metrics.NewNoOpTracer()
	}
	if s.Pool == nil {
		s.Pool = pool.New()
	}
	return s
}

// Artifact creates the artifact ref and checks it implements T. kind names the role in errors.
func Artifact[T any](ctx context.Context, f port.ArtifactFactory, ref, kind string, sc *port.StepContext) (T, error) {
	var zero T
	a, err := f.Create(ctx, ref, sc)
	if err != nil {
		return zero, exception.NewValidationError("scope", fmt.Sprintf("cannot create %s '%s'", kind, ref), err)
	}
	t, ok := a.(T)
	if !ok {
		return zero, exception.NewValidationError("scope", fmt.Sprintf("artifact '%s' (%T) is not a %s", ref, a, kind), nil)
	}
	return t, nil
}

// OptionalArtifact is Artifact for optional roles; an empty ref yields the zero value.
func OptionalArtifact[T any](ctx context.Context, f port.ArtifactFactory, ref, kind string, sc *port.StepContext) (T, error) {
	var zero T
	if ref == "" {
		return zero, nil
	}
	return Artifact[T](ctx, f, ref, kind, sc)
}

// Listeners are the listener artifacts of a step, grouped by capability.
// One artifact appears in every group whose interface it implements.
type Listeners struct {
	Step    []port.StepExecutionListener
	Chunk   []port.ChunkListener
	Error   []port.ChunkErrorListener
	Read    []port.ItemReadListener
	Process []port.ItemProcessListener
	Write   []port.ItemWriteListener
	Skip    []port.SkipListener
	Retry   []port.RetryListener
}

// ResolveListeners creates every listener in refs for sc. Each must implement at least one listener interface.
func ResolveListeners(ctx context.Context, f port.ArtifactFactory, refs []string, sc *port.StepContext) (*Listeners, error) {
	l := &Listeners{}
	for _, ref := range refs {
		a, err := f.Create(ctx, ref, sc)
		if err != nil {
			return nil, exception.NewValidationError("scope", fmt.Sprintf("cannot create listener '%s'", ref), err)
		}
		if !l.add(a) {
			return nil, exception.NewValidationError("scope", fmt.Sprintf("artifact '%s' (%T) implements no step listener interface", ref, a), nil)
		}
	}
	return l, nil
}

func (l *Listeners) add(a any) bool {
	matched := false
	if v, ok := a.(port.StepExecutionListener); ok {
		l.Step = append(l.Step, v)
		matched = true
	}
	if v, ok := a.(port.ChunkListener); ok {
		l.Chunk = append(l.Chunk, v)
		matched = true
	}
	if v, ok := a.(port.ChunkErrorListener); ok {
		l.Error = append(l.Error, v)
		matched = true
	}
	if v, ok := a.(port.ItemReadListener); ok {
		l.Read = append(l.Read, v)
		matched = true
	}
	if v, ok := a.(port.ItemProcessListener); ok {
		l.Process = append(l.Process, v)
		matched = true
	}
	if v, ok := a.(port.ItemWriteListener); ok {
		l.Write = append(l.Write, v)
		matched = true
	}
	if v, ok := a.(port.SkipListener); ok {
		l.Skip = append(l.Skip, v)
		matched = true
	}
	if v, ok := a.(port.RetryListener); ok {
		l.Retry = append(l.Retry, v)
		matched = true
	}
	return matched
}

// ResolveJobListeners creates the job listeners in refs.
func ResolveJobListeners(ctx context.Context, f port.ArtifactFactory, refs []string, sc *port.StepContext) ([]port.JobExecutionListener, error) {
	out := make([]port.JobExecutionListener, 0, len(refs))
	for _, ref := range refs {
		l, err := Artifact[port.JobExecutionListener](ctx, f, ref, "job listener", sc)
		if err != nil {
			return nil, err
		}
		out = append(out, l)
	}
	return out, nil
}

// MergeProperties overlays overrides on base into a new map.
func MergeProperties(base, overrides map[string]string) map[string]string {
	out := make(map[string]string, len(base)+len(overrides))
	for k, v := range base {
		out[k] = v
	}
	for k, v := range overrides {
		out[k] = v
	}
	return out
}
