package snapshot

import (
	"github.com/zeusync/scenekit/internal/core/ecs"
	"github.com/zeusync/scenekit/pkg/encoding"
)

// EntitiesSection is the reserved name of the section listing the covered entities.
const EntitiesSection = "entities"

// entry is one (entity, value) pair of a component section.
type entry[T any] struct {
	Entity ecs.Entity `json:"entity" yaml:"entity"`
	Value  T          `json:"value" yaml:"value"`
}

func checkTag(tag string) error {
	if tag == "" || tag == EntitiesSection {
		return misuse("invalid component tag %q", tag)
	}
	return nil
}

// decodeEntries decodes a whole component section before anything touches the registry.
func decodeEntries[T any](tag string, src encoding.SectionReader) ([]entry[T], bool, error) {
	sec, ok := src.Section(tag)
	if !ok {
		return nil, false, nil
	}
	out := make([]entry[T], sec.Len())
	for i := range out {
		var in wireEntry[T]
		if err := sec.Decode(i, &in); err != nil {
			return nil, true, &DecodeError{Section: tag, Index: i, Err: err}
		}
		if in.Entity == nil || in.Value == nil {
			return nil, true, &DecodeError{Section: tag, Index: i, Err: errIncompleteEntry}
		}
		out[i] = entry[T]{Entity: *in.Entity, Value: *in.Value}
	}
	return out, true, nil
}

// wireEntry tells a missing or null field apart from a zero one.
type wireEntry[T any] struct {
	Entity *ecs.Entity `json:"entity" yaml:"entity"`
	Value  *T          `json:"value" yaml:"value"`
}

// decodeEntities reads the entities section and rejects null and repeated ids.
func decodeEntities(src encoding.SectionReader, allowRepeat bool) ([]ecs.Entity, error) {
	sec, ok := src.Section(EntitiesSection)
	if !ok {
		return nil, &DecodeError{Section: EntitiesSection, Index: -1, Err: errMissingSection}
	}
	ids := make([]ecs.Entity, 0, sec.Len())
	seen := make(map[ecs.Entity]struct{}, sec.Len())
	for i := 0; i < sec.Len(); i++ {
		var id ecs.Entity
		if err := sec.Decode(i, &id); err != nil {
			return nil, &DecodeError{Section: EntitiesSection, Index: i, Err: err}
		}
		if id == ecs.Null {
			return nil, &DecodeError{Section: EntitiesSection, Index: i, Err: errNullEntity}
		}
		if _, dup := seen[id]; dup {
			if allowRepeat {
				continue
			}
			return nil, &DecodeError{Section: EntitiesSection, Index: i, Err: errDuplicate}
		}
		seen[id] = struct{}{}
		ids = append(ids, id)
	}
	return ids, nil
}
