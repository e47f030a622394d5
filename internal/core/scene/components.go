package scene

import (
	"github.com/zeusync/scenekit/internal/core/ecs"
	"github.com/zeusync/scenekit/internal/core/schema"
	"github.com/zeusync/scenekit/internal/core/snapshot"
)

// Section tags of the built-in components.
const (
	TagName      = "name"
	TagRelation  = "relation"
	TagTransform = "transform_component"
)

type Name struct {
	Name string `json:"name" yaml:"name"`
}

// Relation links an entity to its parent. Parent is Null for roots.
type Relation struct {
	Parent ecs.Entity `json:"parent" yaml:"parent"`
}

type Vec3 struct {
	X float32 `json:"x" yaml:"x"`
	Y float32 `json:"y" yaml:"y"`
	Z float32 `json:"z" yaml:"z"`
}

type Quat struct {
	X float32 `json:"x" yaml:"x"`
	Y float32 `json:"y" yaml:"y"`
	Z float32 `json:"z" yaml:"z"`
	W float32 `json:"w" yaml:"w"`
}

type Transform struct {
	Position Vec3 `json:"position" yaml:"position"`
	Rotation Quat `json:"rotation" yaml:"rotation"`
	Scale    Vec3 `json:"scale" yaml:"scale"`
}

// IdentityTransform sits at the origin with unit scale.
func IdentityTransform() Transform {
	return Transform{Rotation: Quat{W: 1}, Scale: Vec3{X: 1, Y: 1, Z: 1}}
}

// MarkDelete flags an entity for removal at the next Sweep. Runtime only.
type MarkDelete struct {
	Destroy bool
}

// Touched records the frame an entity was last created or loaded in. Runtime only.
type Touched struct {
	Frame uint64
}

// DefaultTypes returns the registration table of the built-in serialized components.
func DefaultTypes() *schema.Registry {
	types := schema.NewRegistry()
	schema.MustRegister(types, TagRelation, snapshot.Field(func(r *Relation) *ecs.Entity { return &r.Parent }))
	schema.MustRegister[Transform](types, TagTransform)
	schema.MustRegister[Name](types, TagName)
	return types
}
