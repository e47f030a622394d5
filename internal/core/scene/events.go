package scene

import "github.com/zeusync/scenekit/internal/core/ecs"

const (
	EventSaved              = "scene.saved"
	EventLoaded             = "scene.loaded"
	EventEntityCloned       = "entity.cloned"
	EventPrefabInstantiated = "prefab.instantiated"
	eventSource             = "scene"
)

type SavedEvent struct {
	Format     string
	Entities   int
	Components int
	// Bytes is the encoded size written to the destination.
	Bytes int
}

type LoadedEvent struct {
	Format     string
	Fresh      bool
	Created    []ecs.Entity
	Components int
	Frame      uint64
}

type ClonedEvent struct {
	Source ecs.Entity
	Clone  ecs.Entity
}

type InstantiatedEvent struct {
	PrefabID string
	Name     string
	Created  []ecs.Entity
}
