package snapshot

import (
	"github.com/zeusync/scenekit/internal/core/ecs"
	"github.com/zeusync/scenekit/pkg/encoding"
)

type sessionState uint8

const (
	stateCreated sessionState = iota
	stateEntitiesConsumed
	stateClosed
)

func (s sessionState) check(tag string) error {
	switch s {
	case stateCreated:
		return misuse("read %q before the entities section", tag)
	case stateClosed:
		return misuse("read %q on a closed loader", tag)
	}
	return checkTag(tag)
}

// Loader populates an empty registry from a stream. Every stream entity gets a freshly
// allocated entity; relationship fields are not rewritten.
type Loader struct {
	src     encoding.SectionReader
	reg     *ecs.Registry
	ids     map[ecs.Entity]ecs.Entity
	created []ecs.Entity
	state   sessionState
}

// NewLoader consumes the entities section of src and creates one entity per entry, in
// stream order. Null or repeated ids and a missing entities section are decode errors; on
// error the registry is left untouched.
func NewLoader(src encoding.SectionReader, reg *ecs.Registry) (*Loader, error) {
	streamIDs, err := decodeEntities(src, false)
	if err != nil {
		return nil, err
	}

	l := &Loader{
		src:     src,
		reg:     reg,
		ids:     make(map[ecs.Entity]ecs.Entity, len(streamIDs)),
		created: make([]ecs.Entity, len(streamIDs)),
		state:   stateEntitiesConsumed,
	}
	for i, id := range streamIDs {
		e := reg.Create()
		l.ids[id] = e
		l.created[i] = e
	}
	return l, nil
}

// Created returns the entities allocated by this load, in stream order.
func (l *Loader) Created() []ecs.Entity {
	return append([]ecs.Entity(nil), l.created...)
}

// Close ends the session. Created entities stay in the registry.
func (l *Loader) Close() error {
	if l == nil || l.state != stateEntitiesConsumed {
		return misuse("close on an inactive loader")
	}
	l.state = stateClosed
	l.ids = nil
	return nil
}

// LoadComponent reads the section named tag and assigns each value to the entity created for
// its stream id. An absent section is not an error and loads nothing. The section is fully
// decoded and checked before any component is assigned.
func LoadComponent[T any](l *Loader, tag string) (int, error) {
	if l == nil {
		return 0, misuse("read %q on a nil loader", tag)
	}
	if err := l.state.check(tag); err != nil {
		return 0, err
	}
	entries, ok, err := decodeEntries[T](tag, l.src)
	if err != nil || !ok {
		return 0, err
	}

	targets := make([]ecs.Entity, len(entries))
	for i := range entries {
		e, found := l.ids[entries[i].Entity]
		if !found {
			return 0, &UnknownEntityError{Section: tag, Index: i, Entity: entries[i].Entity}
		}
		targets[i] = e
	}
	for i := range entries {
		ecs.SetComponent(l.reg, targets[i], entries[i].Value)
	}
	return len(entries), nil
}
