package ecs

import "strconv"

// Entity is an opaque, registry-scoped handle. The low 32 bits hold the slot index,
// the high 32 bits hold the slot generation so recycled slots never alias old handles.
type Entity uint64

// Null denotes "no entity". It is never returned by Registry.Create.
const Null Entity = ^Entity(0)

// maxIndex is reserved: an index of all ones would collide with Null.
const maxIndex = ^uint32(0) - 1

func newEntity(index, version uint32) Entity {
	return Entity(uint64(version)<<32 | uint64(index))
}

// Index returns the slot index of the entity.
func (e Entity) Index() uint32 { return uint32(e) }

// Version returns the generation of the entity's slot.
func (e Entity) Version() uint32 { return uint32(e >> 32) }

// IsNull reports whether e is the Null handle.
func (e Entity) IsNull() bool { return e == Null }

func (e Entity) String() string {
	if e == Null {
		return "null"
	}
	return strconv.FormatUint(uint64(e.Index()), 10) + "v" + strconv.FormatUint(uint64(e.Version()), 10)
}
