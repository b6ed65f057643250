// Package registry implements the Task Registry (C10) and Configurable
// Class Registry (C11): the same polymorphic-by-name pattern, a type
// descriptor table keyed by (rootKind, name), used both to resolve a task's
// `type` field to a concrete factory and to do the same for controls and
// managers (§4.7, §9).
package registry

import (
	"fmt"
	"sync"

	"github.com/go-playground/validator/v10"

	"github.com/cameleer-io/cameleer/internal/cameleer/cerrors"
)

// RootKind partitions the registry: each root owns its own name->factory
// table, and unregistering a root clears only its partition (§4.7).
type RootKind string

const (
	RootTask    RootKind = "task"
	RootControl RootKind = "control"
	RootManager RootKind = "manager"
)

// Factory constructs a concrete instance from a raw, not-yet-typed
// configuration value. The registry is agnostic to what raw holds beyond
// "one raw value in, one instance or error out"; the YAML config provider
// passes a task's raw `with` block.
type Factory func(raw any) (any, error)

// entry pairs a factory with the schema (if any) used to validate
// type-specific configuration beyond the base schema.
type entry struct {
	factory        Factory
	extendedSchema any
}

// Registry is safe for concurrent registration and instantiation.
type Registry struct {
	mu         sync.RWMutex
	partitions map[RootKind]map[string]entry
	validate   *validator.Validate
}

func New() *Registry {
	return &Registry{
		partitions: make(map[RootKind]map[string]entry),
		validate:   validator.New(),
	}
}

// Register adds a name->factory mapping under root. Fails on a duplicate
// name unless forceOverride is set (§4.7).
func (r *Registry) Register(root RootKind, name string, factory Factory, extendedSchema any, forceOverride bool) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	part, ok := r.partitions[root]
	if !ok {
		part = make(map[string]entry)
		r.partitions[root] = part
	}
	if _, exists := part[name]; exists && !forceOverride {
		return cerrors.New(cerrors.KindConfigInvalid, name, nil,
			fmt.Sprintf("%s %q already registered", root, name))
	}
	part[name] = entry{factory: factory, extendedSchema: extendedSchema}
	return nil
}

// Unregister clears every registration under root (§4.7: "Unregistering a
// root clears its partition").
func (r *Registry) Unregister(root RootKind) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.partitions, root)
}

func (r *Registry) lookup(root RootKind, name string) (entry, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	part, ok := r.partitions[root]
	if !ok {
		return entry{}, false
	}
	e, ok := part[name]
	return e, ok
}

// Instantiate validates baseConfig against its schema (if it implements
// validator tags), locates the factory by name under root, optionally
// validates extendedConfig against that entry's extended schema, and
// constructs with raw (§4.7: "validate against the base schema, locate the
// class by its type field..., validate against that class's extended
// schema, and construct").
func (r *Registry) Instantiate(root RootKind, name string, baseConfig any, extendedConfig any, raw any) (any, error) {
	if baseConfig != nil {
		if err := r.validate.Struct(baseConfig); err != nil {
			return nil, cerrors.New(cerrors.KindConfigInvalid, name, err, "base config validation failed")
		}
	}

	e, ok := r.lookup(root, name)
	if !ok {
		return nil, cerrors.New(cerrors.KindConfigInvalid, name, nil,
			fmt.Sprintf("no %s registered with name %q", root, name))
	}

	if e.extendedSchema != nil && extendedConfig != nil {
		if err := r.validate.Struct(extendedConfig); err != nil {
			return nil, cerrors.New(cerrors.KindConfigInvalid, name, err, "extended config validation failed")
		}
	}

	instance, err := e.factory(raw)
	if err != nil {
		return nil, cerrors.New(cerrors.KindConfigInvalid, name, err, "construction failed")
	}
	return instance, nil
}

// Names lists every registered name under root, for diagnostics.
func (r *Registry) Names(root RootKind) []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	part := r.partitions[root]
	out := make([]string, 0, len(part))
	for name := range part {
		out = append(out, name)
	}
	return out
}
