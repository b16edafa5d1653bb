package restart

import "go.uber.org/fx"

// Module provides the restart Coordinator.
var Module = fx.Provide(NewCoordinator)
