package ecs

import "reflect"

// pool is the type-erased view of a component storage the registry needs for
// entity destruction and bookkeeping.
type pool interface {
	has(Entity) bool
	remove(Entity) bool
	len() int
	clear()
}

// Registry stores entities and their components.
//
// A Registry is not safe for concurrent use. Callers that share one across goroutines
// must serialize access themselves.
type Registry struct {
	versions []uint32
	alive    []bool
	free     []uint32
	size     int
	pools    map[reflect.Type]pool
}

// NewRegistry creates an empty Registry.
func NewRegistry() *Registry {
	return &Registry{
		pools: make(map[reflect.Type]pool),
	}
}

// Create allocates a new entity. Destroyed slots are recycled with a bumped version.
func (r *Registry) Create() Entity {
	var idx uint32
	if n := len(r.free); n > 0 {
		idx = r.free[n-1]
		r.free = r.free[:n-1]
	} else {
		if uint32(len(r.versions)) > maxIndex {
			panic("ecs: entity index space exhausted")
		}
		idx = uint32(len(r.versions))
		r.versions = append(r.versions, 0)
		r.alive = append(r.alive, false)
	}
	r.alive[idx] = true
	r.size++
	return newEntity(idx, r.versions[idx])
}

// Valid reports whether e refers to a live entity of this registry.
func (r *Registry) Valid(e Entity) bool {
	if e == Null {
		return false
	}
	idx := e.Index()
	return int(idx) < len(r.versions) && r.alive[idx] && r.versions[idx] == e.Version()
}

// Destroy removes the entity and all of its components. It returns false if e is not valid.
func (r *Registry) Destroy(e Entity) bool {
	if !r.Valid(e) {
		return false
	}
	for _, p := range r.pools {
		p.remove(e)
	}
	idx := e.Index()
	r.alive[idx] = false
	r.versions[idx]++
	r.free = append(r.free, idx)
	r.size--
	return true
}

// Len returns the number of live entities.
func (r *Registry) Len() int {
	return r.size
}

// Entities returns the live entities in slot order.
func (r *Registry) Entities() []Entity {
	out := make([]Entity, 0, r.size)
	r.Each(func(e Entity) { out = append(out, e) })
	return out
}

// Each calls fn for every live entity in slot order.
func (r *Registry) Each(fn func(Entity)) {
	for idx, ok := range r.alive {
		if ok {
			fn(newEntity(uint32(idx), r.versions[idx]))
		}
	}
}

// Orphan reports whether e is valid and holds no component at all.
func (r *Registry) Orphan(e Entity) bool {
	if !r.Valid(e) {
		return false
	}
	for _, p := range r.pools {
		if p.has(e) {
			return false
		}
	}
	return true
}

// Clear destroys every entity. Slot versions survive so old handles stay invalid.
func (r *Registry) Clear() {
	for _, p := range r.pools {
		p.clear()
	}
	r.free = r.free[:0]
	for idx := len(r.alive) - 1; idx >= 0; idx-- {
		if r.alive[idx] {
			r.alive[idx] = false
			r.versions[idx]++
		}
		r.free = append(r.free, uint32(idx))
	}
	r.size = 0
}
