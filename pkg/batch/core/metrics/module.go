package metrics

import (
	"go.uber.org/fx"
)

// NoOpModule provides the no-op MetricRecorder and Tracer, for applications that run without
// the infrastructure metrics module.
var NoOpModule = fx.Options(
	fx.Provide(NewNoOpMetricRecorder),
	fx.Provide(NewNoOpTracer),
)
