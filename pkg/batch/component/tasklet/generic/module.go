package generic

import (
	"go.uber.org/fx"

	"github.com/bryant1410/jsr352/pkg/batch/component/artifact"
)

// Artifact names of the generic tasklets.
const (
	ExecutionContextWriterTaskletRef = "executionContextWriterTasklet"
	FailingTaskletRef                = "failingTasklet"
)

// Register binds the generic tasklets in r.
func Register(r *artifact.Registry) {
	r.Register(ExecutionContextWriterTaskletRef, artifact.Bound(NewExecutionContextWriterTasklet))
	r.Register(FailingTaskletRef, artifact.Bound(NewFailingTasklet))
}

// Module contributes the generic tasklets to the artifact registry.
var Module = fx.Options(
	artifact.Provide(ExecutionContextWriterTaskletRef, artifact.Bound(NewExecutionContextWriterTasklet)),
	artifact.Provide(FailingTaskletRef, artifact.Bound(NewFailingTasklet)),
)
