package ecs

// SetComponent assigns v as the T component of e, replacing any previous value.
// It returns false if e is not a live entity.
func SetComponent[T any](r *Registry, e Entity, v T) bool {
	if !r.Valid(e) {
		return false
	}
	assure[T](r).set(e, v)
	return true
}

// GetComponent returns a pointer to the T component of e. The pointer is invalidated by
// any later insertion or removal of T components.
func GetComponent[T any](r *Registry, e Entity) (*T, bool) {
	s := lookup[T](r)
	if s == nil {
		return nil, false
	}
	return s.get(e)
}

// HasComponent reports whether e holds a T component.
func HasComponent[T any](r *Registry, e Entity) bool {
	s := lookup[T](r)
	return s != nil && s.has(e)
}

// RemoveComponent detaches the T component from e.
func RemoveComponent[T any](r *Registry, e Entity) bool {
	s := lookup[T](r)
	return s != nil && s.remove(e)
}

// Count returns the number of T components in the registry.
func Count[T any](r *Registry) int {
	s := lookup[T](r)
	if s == nil {
		return 0
	}
	return s.len()
}

// View returns the entities holding T, in storage order.
func View[T any](r *Registry) []Entity {
	s := lookup[T](r)
	if s == nil {
		return nil
	}
	out := make([]Entity, len(s.dense))
	copy(out, s.dense)
	return out
}

// Each calls fn for every T component in storage order. fn must not add or remove T components.
func Each[T any](r *Registry, fn func(Entity, *T)) {
	s := lookup[T](r)
	if s == nil {
		return
	}
	for i, e := range s.dense {
		fn(e, &s.data[i])
	}
}
