package artifact

import (
	"go.uber.org/fx"

	port "github.com/bryant1410/jsr352/pkg/batch/core/application/port"
)

// Group is the fx value group Registrations are collected from.
const Group = `group:"batch_artifacts"`

type registryParams struct {
	fx.In
	Registrations []Registration `group:"batch_artifacts"`
}

func newRegistry(p registryParams) *Registry {
	return NewRegistry(p.Registrations...)
}

// Provide contributes an artifact registration to the fx graph.
func Provide(name string, b Builder) fx.Option {
	return fx.Provide(fx.Annotate(
		func() Registration { return Registration{Name: name, Builder: b} },
		fx.ResultTags(Group),
	))
}

// Module provides the Registry, also as the engine's port.ArtifactFactory.
var Module = fx.Options(
	fx.Provide(newRegistry),
	fx.Provide(func(r *Registry) port.ArtifactFactory { return r }),
)
