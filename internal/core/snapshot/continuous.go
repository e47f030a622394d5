package snapshot

import (
	"github.com/pkg/errors"

	"github.com/zeusync/scenekit/internal/core/ecs"
	"github.com/zeusync/scenekit/pkg/encoding"
)

// Option configures a ContinuousLoader.
type Option func(*options)

type options struct {
	strict bool
}

// WithStrictReferences makes relationship fields that point outside the snapshot fail unless
// they name a live entity of the destination registry. By default such values pass through
// unchanged.
func WithStrictReferences() Option {
	return func(o *options) { o.strict = true }
}

// ContinuousLoader populates a live registry from a stream. Stream entities are mapped to
// newly allocated entities and declared relationship fields are rewritten through that
// identity map. Each loader is one session with its own map; loading the same stream twice
// through two loaders yields two disjoint entity sets.
type ContinuousLoader struct {
	src     encoding.SectionReader
	reg     *ecs.Registry
	mapper  *Mapper
	created []ecs.Entity
	state   sessionState
}

// NewContinuousLoader consumes the entities section of src, allocating one entity per
// distinct stream id. On error the registry is left untouched.
func NewContinuousLoader(src encoding.SectionReader, reg *ecs.Registry, opts ...Option) (*ContinuousLoader, error) {
	var o options
	for _, opt := range opts {
		opt(&o)
	}

	streamIDs, err := decodeEntities(src, true)
	if err != nil {
		return nil, err
	}

	l := &ContinuousLoader{
		src: src,
		reg: reg,
		mapper: &Mapper{
			ids:    make(map[ecs.Entity]ecs.Entity, len(streamIDs)),
			reg:    reg,
			strict: o.strict,
		},
		created: make([]ecs.Entity, len(streamIDs)),
		state:   stateEntitiesConsumed,
	}
	for i, id := range streamIDs {
		e := reg.Create()
		l.mapper.ids[id] = e
		l.created[i] = e
	}
	return l, nil
}

// Resolve returns the destination entity allocated for a stream id in this session.
func (l *ContinuousLoader) Resolve(streamID ecs.Entity) (ecs.Entity, bool) {
	if l == nil || l.state != stateEntitiesConsumed {
		return ecs.Null, false
	}
	e, ok := l.mapper.ids[streamID]
	return e, ok
}

// Created returns the entities allocated by this session, in stream order.
func (l *ContinuousLoader) Created() []ecs.Entity {
	return append([]ecs.Entity(nil), l.created...)
}

// Close ends the session and drops its identity map.
func (l *ContinuousLoader) Close() error {
	if l == nil || l.state != stateEntitiesConsumed {
		return misuse("close on an inactive loader")
	}
	l.state = stateClosed
	l.mapper = nil
	return nil
}

// ReadComponent reads the section named tag. Each owner is translated through the session's
// identity map, the declared relationship fields are rewritten, then the value is assigned.
// An absent section loads nothing. The section is fully decoded and remapped before any
// component is assigned.
func ReadComponent[T any](l *ContinuousLoader, tag string, remaps ...Remap[T]) (int, error) {
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
		e, found := l.mapper.ids[entries[i].Entity]
		if !found {
			return 0, &UnknownEntityError{Section: tag, Index: i, Entity: entries[i].Entity}
		}
		targets[i] = e
		for _, remap := range remaps {
			if err = remap(&entries[i].Value, l.mapper); err != nil {
				var unknown *UnknownEntityError
				if errors.As(err, &unknown) {
					unknown.Section, unknown.Index = tag, i
					return 0, unknown
				}
				return 0, &DecodeError{Section: tag, Index: i, Err: err}
			}
		}
	}
	for i := range entries {
		ecs.SetComponent(l.reg, targets[i], entries[i].Value)
	}
	return len(entries), nil
}
