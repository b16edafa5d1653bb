// Package artifact resolves the logical artifact names used in job definitions to instances.
//
// Every name is bound to a Builder. Builders are called once per step or partition execution, so
// an artifact never outlives the StepContext it was created for.
package artifact

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"

	port "github.com/bryant1410/jsr352/pkg/batch/core/application/port"
	"github.com/bryant1410/jsr352/pkg/batch/core/support/expression"
	"github.com/bryant1410/jsr352/pkg/batch/support/util/configbinder"
	exception "github.com/bryant1410/jsr352/pkg/batch/support/util/exception"
	logger "github.com/bryant1410/jsr352/pkg/batch/support/util/logger"
)

const module = "ArtifactRegistry"

// ErrArtifactNotFound is returned by Create for names that have no builder.
var ErrArtifactNotFound = errors.New("artifact not registered")

// Builder creates one artifact instance scoped to sc.
type Builder func(ctx context.Context, sc *port.StepContext) (any, error)

// Registration binds a name to a Builder. Registrations provided to the fx group Group are
// collected by Module.
type Registration struct {
	Name    string
	Builder Builder
}

// Registry is a concurrency-safe name to Builder map implementing port.ArtifactFactory.
type Registry struct {
	mu       sync.RWMutex
	builders map[string]Builder
}

// NewRegistry creates a registry holding regs.
func NewRegistry(regs ...Registration) *Registry {
	r := &Registry{builders: make(map[string]Builder, len(regs))}
	for _, reg := range regs {
		r.Register(reg.Name, reg.Builder)
	}
	return r
}

// Register binds name to b, replacing any previous builder.
func (r *Registry) Register(name string, b Builder) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.builders[name]; exists {
		logger.Warnf("ArtifactRegistry: Replacing builder for artifact '%s'.", name)
	}
	r.builders[name] = b
	logger.Debugf("ArtifactRegistry: Registered artifact '%s'.", name)
}

// RegisterInstance binds name to a builder that always returns v. Use it only for stateless artifacts.
func (r *Registry) RegisterInstance(name string, v any) {
	r.Register(name, func(context.Context, *port.StepContext) (any, error) { return v, nil })
}

// Create implements port.ArtifactFactory.
func (r *Registry) Create(ctx context.Context, ref string, sc *port.StepContext) (any, error) {
	r.mu.RLock()
	b, ok := r.builders[ref]
	r.mu.RUnlock()
	if !ok {
		return nil, exception.NewValidationError(module, fmt.Sprintf("no artifact named '%s'", ref), ErrArtifactNotFound)
	}
	a, err := b(ctx, sc)
	if err != nil {
		return nil, fmt.Errorf("building artifact '%s': %w", ref, err)
	}
	if a == nil {
		return nil, exception.NewValidationError(module, fmt.Sprintf("builder of artifact '%s' returned nil", ref), nil)
	}
	return a, nil
}

// Names lists the registered names in sorted order.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.builders))
	for name := range r.builders {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Bound returns a Builder that creates a fresh T with newT and binds onto it the job parameters
// of sc overlaid with its properties, using configbinder. #{...} references in property values
// are substituted first.
func Bound[T any](newT func() T) Builder {
	return func(ctx context.Context, sc *port.StepContext) (any, error) {
		v := newT()
		if sc == nil {
			return v, nil
		}
		values := sc.Parameters().Strings()
		for k, p := range sc.Properties {
			values[k] = expression.Resolve(p, sc)
		}
		if err := configbinder.BindProperties(values, v); err != nil {
			return nil, exception.NewValidationError(module, "cannot bind artifact properties", err)
		}
		return v, nil
	}
}

var _ port.ArtifactFactory = (*Registry)(nil)
