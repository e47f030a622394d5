package snapshot

import "github.com/zeusync/scenekit/internal/core/ecs"

// Mapper translates entity ids found in a stream into destination ids for one
// continuous-load session.
type Mapper struct {
	ids    map[ecs.Entity]ecs.Entity
	reg    *ecs.Registry
	strict bool
}

// Map returns the destination id for e. Null maps to Null. Ids that were not part of the
// snapshot are returned unchanged, or rejected with an UnknownEntityError in strict mode
// when they are not alive in the destination registry either.
func (m *Mapper) Map(e ecs.Entity) (ecs.Entity, error) {
	if e == ecs.Null {
		return e, nil
	}
	if to, ok := m.ids[e]; ok {
		return to, nil
	}
	if m.strict && !m.reg.Valid(e) {
		return e, &UnknownEntityError{Entity: e}
	}
	return e, nil
}

// Remap rewrites the relationship fields of one decoded component value.
type Remap[T any] func(c *T, m *Mapper) error

// Field declares a single entity-valued field as a relationship.
func Field[T any](field func(c *T) *ecs.Entity) Remap[T] {
	return func(c *T, m *Mapper) error {
		p := field(c)
		mapped, err := m.Map(*p)
		if err != nil {
			return err
		}
		*p = mapped
		return nil
	}
}

// Slice declares a slice of entities as relationships. Elements are rewritten in place.
func Slice[T any](field func(c *T) []ecs.Entity) Remap[T] {
	return func(c *T, m *Mapper) error {
		ents := field(c)
		for i := range ents {
			mapped, err := m.Map(ents[i])
			if err != nil {
				return err
			}
			ents[i] = mapped
		}
		return nil
	}
}
