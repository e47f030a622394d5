package snapshot

import (
	"github.com/zeusync/scenekit/internal/core/ecs"
	"github.com/zeusync/scenekit/pkg/encoding"
)

// Writer serializes the live state of a registry, or of an explicit entity subset, into a
// structured stream. It never mutates the registry.
type Writer struct {
	dst     encoding.SectionWriter
	reg     *ecs.Registry
	subset  []ecs.Entity
	partial bool
	written map[string]struct{}
	closed  bool
}

// NewWriter covers every live entity of reg and writes the entities section.
func NewWriter(dst encoding.SectionWriter, reg *ecs.Registry) (*Writer, error) {
	w := &Writer{dst: dst, reg: reg, written: make(map[string]struct{})}
	if err := w.writeEntities(reg.Entities()); err != nil {
		return nil, err
	}
	return w, nil
}

// NewSubsetWriter covers exactly ents and writes the entities section. Every entity must be
// valid in reg; repeated entities are written once.
func NewSubsetWriter(dst encoding.SectionWriter, reg *ecs.Registry, ents []ecs.Entity) (*Writer, error) {
	subset := make([]ecs.Entity, 0, len(ents))
	seen := make(map[ecs.Entity]struct{}, len(ents))
	for _, e := range ents {
		if !reg.Valid(e) {
			return nil, misuse("entity %s is not alive", e)
		}
		if _, dup := seen[e]; dup {
			continue
		}
		seen[e] = struct{}{}
		subset = append(subset, e)
	}

	w := &Writer{dst: dst, reg: reg, subset: subset, partial: true, written: make(map[string]struct{})}
	if err := w.writeEntities(subset); err != nil {
		return nil, err
	}
	return w, nil
}

func (w *Writer) writeEntities(ents []ecs.Entity) error {
	if err := w.dst.BeginSection(EntitiesSection); err != nil {
		return streamErr("write entities", err)
	}
	for _, e := range ents {
		if err := w.dst.Value(e); err != nil {
			return streamErr("write entities", err)
		}
	}
	return streamErr("write entities", w.dst.EndSection())
}

// Covered returns the entities this writer serializes.
func (w *Writer) Covered() []ecs.Entity {
	if w.partial {
		return append([]ecs.Entity(nil), w.subset...)
	}
	return w.reg.Entities()
}

// Close finishes the document. The writer cannot be used afterwards.
func (w *Writer) Close() error {
	if w == nil || w.closed {
		return misuse("writer already closed")
	}
	w.closed = true
	return streamErr("close", w.dst.Close())
}

// WriteComponent appends the T components of every covered entity under tag and returns
// how many were written. Nothing is emitted when no covered entity holds a T.
// Each tag may be written once per writer; a repeat is reported as ErrMisuse.
func WriteComponent[T any](w *Writer, tag string) (int, error) {
	if w == nil || w.closed {
		return 0, misuse("write %q on a closed writer", tag)
	}
	if err := checkTag(tag); err != nil {
		return 0, err
	}
	if _, dup := w.written[tag]; dup {
		return 0, misuse("component tag %q written twice", tag)
	}
	w.written[tag] = struct{}{}

	var entries []entry[T]
	if w.partial {
		for _, e := range w.subset {
			if v, ok := ecs.GetComponent[T](w.reg, e); ok {
				entries = append(entries, entry[T]{Entity: e, Value: *v})
			}
		}
	} else {
		ecs.Each(w.reg, func(e ecs.Entity, v *T) {
			entries = append(entries, entry[T]{Entity: e, Value: *v})
		})
	}
	if len(entries) == 0 {
		return 0, nil
	}

	op := "write " + tag
	if err := w.dst.BeginSection(tag); err != nil {
		return 0, streamErr(op, err)
	}
	for i := range entries {
		if err := w.dst.Value(&entries[i]); err != nil {
			return i, streamErr(op, err)
		}
	}
	if err := w.dst.EndSection(); err != nil {
		return len(entries), streamErr(op, err)
	}
	return len(entries), nil
}
