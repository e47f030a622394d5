package ecs

import "reflect"

const absent = -1

// storage is a sparse set mapping entity slots to densely packed component values.
type storage[T any] struct {
	sparse []int
	dense  []Entity
	data   []T
}

func (s *storage[T]) index(e Entity) int {
	idx := int(e.Index())
	if e == Null || idx >= len(s.sparse) {
		return absent
	}
	pos := s.sparse[idx]
	if pos == absent || s.dense[pos] != e {
		return absent
	}
	return pos
}

func (s *storage[T]) has(e Entity) bool {
	return s.index(e) != absent
}

func (s *storage[T]) get(e Entity) (*T, bool) {
	pos := s.index(e)
	if pos == absent {
		return nil, false
	}
	return &s.data[pos], true
}

func (s *storage[T]) set(e Entity, v T) *T {
	if pos := s.index(e); pos != absent {
		s.data[pos] = v
		return &s.data[pos]
	}
	idx := int(e.Index())
	for len(s.sparse) <= idx {
		s.sparse = append(s.sparse, absent)
	}
	s.sparse[idx] = len(s.dense)
	s.dense = append(s.dense, e)
	s.data = append(s.data, v)
	return &s.data[len(s.data)-1]
}

// remove swaps the last element into the freed position.
func (s *storage[T]) remove(e Entity) bool {
	pos := s.index(e)
	if pos == absent {
		return false
	}
	last := len(s.dense) - 1
	moved := s.dense[last]
	s.dense[pos] = moved
	s.data[pos] = s.data[last]
	s.sparse[moved.Index()] = pos
	s.sparse[e.Index()] = absent

	var zero T
	s.data[last] = zero
	s.dense = s.dense[:last]
	s.data = s.data[:last]
	return true
}

func (s *storage[T]) len() int {
	return len(s.dense)
}

func (s *storage[T]) clear() {
	for i := range s.sparse {
		s.sparse[i] = absent
	}
	clear(s.data)
	s.dense = s.dense[:0]
	s.data = s.data[:0]
}

func typeOf[T any]() reflect.Type {
	return reflect.TypeOf((*T)(nil)).Elem()
}

// lookup returns the storage for T, or nil if no T was ever assigned.
func lookup[T any](r *Registry) *storage[T] {
	p, ok := r.pools[typeOf[T]()]
	if !ok {
		return nil
	}
	return p.(*storage[T])
}

func assure[T any](r *Registry) *storage[T] {
	if s := lookup[T](r); s != nil {
		return s
	}
	s := &storage[T]{}
	r.pools[typeOf[T]()] = s
	return s
}
