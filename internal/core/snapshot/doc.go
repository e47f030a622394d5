// Package snapshot writes ECS registries to structured streams and reads them back.
//
// A stream starts with an "entities" section listing the covered entities, followed by
// one section per component tag holding {"entity", "value"} pairs. Sections of component
// types with no instances are never written, and readers treat a missing section as zero
// instances.
//
// Three archives are provided:
//
//   - Writer serializes a whole registry or an explicit entity subset.
//   - Loader fills an empty registry, allocating a new entity per stream entity.
//   - ContinuousLoader fills a live registry, remapping declared relationship fields
//     (see Field and Slice) to the entities it allocates.
//
// Component types are generic parameters of WriteComponent, LoadComponent and
// ReadComponent; the schema package builds a registration table on top of them.
package snapshot
