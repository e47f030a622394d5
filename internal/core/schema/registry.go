package schema

import (
	"sync"

	"github.com/cespare/xxhash/v2"
	"github.com/pkg/errors"

	"github.com/zeusync/scenekit/internal/core/snapshot"
)

var (
	ErrAlreadyRegistered = errors.New("component type already registered")
	ErrNotRegistered     = errors.New("component type not registered")
	ErrInvalidTag        = errors.New("invalid component tag")
)

type TypeName string

// TypeSchema describes one serializable component type. Implementations are produced by
// Register; callers never implement it.
type TypeSchema interface {
	Tag() TypeName
	// ID is the xxhash64 of the tag. It is stable across processes.
	ID() uint64
	Relationships() int

	Write(w *snapshot.Writer) (int, error)
	Load(l *snapshot.Loader) (int, error)
	LoadContinuous(l *snapshot.ContinuousLoader) (int, error)
}

type SchemaRegistry interface {
	RegisterType(schema TypeSchema) error
	UnregisterType(tag TypeName) error
	GetType(tag TypeName) (TypeSchema, error)
	ListTypes() []TypeName
}

var _ SchemaRegistry = (*Registry)(nil)

// Registry is the closed registration table of component types a process can snapshot.
// Types are driven in registration order.
type Registry struct {
	mu    sync.RWMutex
	types map[TypeName]TypeSchema
	order []TypeName
}

func NewRegistry() *Registry {
	return &Registry{types: make(map[TypeName]TypeSchema)}
}

// Register adds component type T under tag. The remaps declare which fields of T hold
// entity references that a continuous load must rewrite.
func Register[T any](reg *Registry, tag string, remaps ...snapshot.Remap[T]) error {
	return reg.RegisterType(&componentType[T]{
		tag:    TypeName(tag),
		id:     xxhash.Sum64String(tag),
		remaps: remaps,
	})
}

// MustRegister is Register that panics, for tables built at init time.
func MustRegister[T any](reg *Registry, tag string, remaps ...snapshot.Remap[T]) {
	if err := Register(reg, tag, remaps...); err != nil {
		panic(err)
	}
}

func (r *Registry) RegisterType(schema TypeSchema) error {
	tag := schema.Tag()
	if tag == "" || tag == snapshot.EntitiesSection {
		return errors.Wrapf(ErrInvalidTag, "%q", tag)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.types[tag]; exists {
		return errors.Wrapf(ErrAlreadyRegistered, "%q", tag)
	}
	for _, other := range r.types {
		if other.ID() == schema.ID() {
			return errors.Wrapf(ErrAlreadyRegistered, "%q collides with %q", tag, other.Tag())
		}
	}
	r.types[tag] = schema
	r.order = append(r.order, tag)
	return nil
}

func (r *Registry) UnregisterType(tag TypeName) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.types[tag]; !exists {
		return errors.Wrapf(ErrNotRegistered, "%q", tag)
	}
	delete(r.types, tag)
	for i, name := range r.order {
		if name == tag {
			r.order = append(r.order[:i], r.order[i+1:]...)
			break
		}
	}
	return nil
}

func (r *Registry) GetType(tag TypeName) (TypeSchema, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	schema, exists := r.types[tag]
	if !exists {
		return nil, errors.Wrapf(ErrNotRegistered, "%q", tag)
	}
	return schema, nil
}

// ListTypes returns the registered tags in registration order.
func (r *Registry) ListTypes() []TypeName {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return append([]TypeName(nil), r.order...)
}

func (r *Registry) snapshotTypes() []TypeSchema {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]TypeSchema, 0, len(r.order))
	for _, tag := range r.order {
		out = append(out, r.types[tag])
	}
	return out
}

// WriteAll writes every registered type and returns the total number of components written.
func (r *Registry) WriteAll(w *snapshot.Writer) (int, error) {
	total := 0
	for _, t := range r.snapshotTypes() {
		n, err := t.Write(w)
		total += n
		if err != nil {
			return total, err
		}
	}
	return total, nil
}

// LoadAll reads every registered type into a fresh loader.
func (r *Registry) LoadAll(l *snapshot.Loader) (int, error) {
	total := 0
	for _, t := range r.snapshotTypes() {
		n, err := t.Load(l)
		total += n
		if err != nil {
			return total, err
		}
	}
	return total, nil
}

// LoadAllContinuous reads every registered type into a continuous loader, remapping the
// declared relationship fields.
func (r *Registry) LoadAllContinuous(l *snapshot.ContinuousLoader) (int, error) {
	total := 0
	for _, t := range r.snapshotTypes() {
		n, err := t.LoadContinuous(l)
		total += n
		if err != nil {
			return total, err
		}
	}
	return total, nil
}

type componentType[T any] struct {
	tag    TypeName
	id     uint64
	remaps []snapshot.Remap[T]
}

func (c *componentType[T]) Tag() TypeName      { return c.tag }
func (c *componentType[T]) ID() uint64         { return c.id }
func (c *componentType[T]) Relationships() int { return len(c.remaps) }

func (c *componentType[T]) Write(w *snapshot.Writer) (int, error) {
	return snapshot.WriteComponent[T](w, string(c.tag))
}

func (c *componentType[T]) Load(l *snapshot.Loader) (int, error) {
	return snapshot.LoadComponent[T](l, string(c.tag))
}

func (c *componentType[T]) LoadContinuous(l *snapshot.ContinuousLoader) (int, error) {
	return snapshot.ReadComponent(l, string(c.tag), c.remaps...)
}
