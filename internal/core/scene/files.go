package scene

import (
	"os"

	"github.com/pkg/errors"

	"github.com/zeusync/scenekit/internal/core/ecs"
)

// SaveEntitiesToFile writes ents to path, truncating any existing file.
func (s *Scene) SaveEntitiesToFile(path string, ents []ecs.Entity) (err error) {
	f, err := os.Create(path)
	if err != nil {
		return errors.Wrapf(err, "create %s", path)
	}
	defer func() {
		if cerr := f.Close(); cerr != nil && err == nil {
			err = errors.Wrapf(cerr, "close %s", path)
		}
	}()
	return s.Serialize(f, ents)
}

func (s *Scene) SaveEntityToFile(path string, e ecs.Entity) error {
	return s.SaveEntitiesToFile(path, []ecs.Entity{e})
}

// LoadEntitiesFromFile adds the entities stored at path to the scene. An empty file loads
// nothing and returns ErrEmptyStream.
func (s *Scene) LoadEntitiesFromFile(path string) ([]ecs.Entity, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrapf(err, "open %s", path)
	}
	defer f.Close()

	created, err := s.Deserialize(f)
	if err != nil {
		return created, errors.Wrapf(err, "load %s", path)
	}
	return created, nil
}

// LoadEntityFromFile returns the first entity stored at path, or Null when the file holds
// an empty snapshot.
func (s *Scene) LoadEntityFromFile(path string) (ecs.Entity, error) {
	created, err := s.LoadEntitiesFromFile(path)
	if err != nil {
		return ecs.Null, err
	}
	if len(created) == 0 {
		return ecs.Null, nil
	}
	return created[0], nil
}
