package logging

import (
	"context"

	"go.uber.org/fx"

	port "github.com/bryant1410/jsr352/pkg/batch/core/application/port"
	"github.com/bryant1410/jsr352/pkg/batch/component/artifact"
)

// Artifact names the logging listeners are registered under.
const (
	JobListenerRef   = "loggingJobListener"
	StepListenerRef  = "loggingStepListener"
	ChunkListenerRef = "loggingChunkListener"
	ItemListenerRef  = "loggingItemListener"
	SkipListenerRef  = "loggingSkipListener"
	RetryListenerRef = "loggingRetryListener"
)

func stateless(v any) artifact.Builder {
	return func(context.Context, *port.StepContext) (any, error) { return v, nil }
}

// Register binds every logging listener in r.
func Register(r *artifact.Registry) {
	r.Register(JobListenerRef, stateless(NewLoggingJobListener()))
	r.Register(StepListenerRef, stateless(NewLoggingStepListener()))
	r.Register(ChunkListenerRef, stateless(NewLoggingChunkListener()))
	r.Register(ItemListenerRef, stateless(NewLoggingItemListener()))
	r.Register(SkipListenerRef, stateless(NewLoggingSkipListener()))
	r.Register(RetryListenerRef, stateless(NewLoggingRetryListener()))
}

// Module contributes the logging listeners to the artifact registry.
var Module = fx.Options(
	artifact.Provide(JobListenerRef, stateless(NewLoggingJobListener())),
	artifact.Provide(StepListenerRef, stateless(NewLoggingStepListener())),
	artifact.Provide(ChunkListenerRef, stateless(NewLoggingChunkListener())),
	artifact.Provide(ItemListenerRef, stateless(NewLoggingItemListener())),
	artifact.Provide(SkipListenerRef, stateless(NewLoggingSkipListener())),
	artifact.Provide(RetryListenerRef, stateless(NewLoggingRetryListener())),
)
