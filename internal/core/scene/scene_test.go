package scene

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zeusync/scenekit/internal/core/ecs"
	"github.com/zeusync/scenekit/internal/core/events/bus"
	"github.com/zeusync/scenekit/internal/core/observability/log"
	"github.com/zeusync/scenekit/internal/core/prefab"
	"github.com/zeusync/scenekit/internal/core/snapshot"
	"github.com/zeusync/scenekit/pkg/encoding"
)

func newScenes() map[string]*Scene {
	return map[string]*Scene{
		"json": New(WithFormat(encoding.JSON)),
		"yaml": New(WithFormat(encoding.YAML)),
	}
}

func buildHierarchy(s *Scene) (root, child ecs.Entity) {
	root = s.CreateEntity("root")
	child = s.CreateEntity("child")
	ecs.SetComponent(s.Registry(), child, Relation{Parent: root})
	ecs.SetComponent(s.Registry(), child, Transform{
		Position: Vec3{X: 1, Y: 2, Z: 3},
		Rotation: Quat{W: 1},
		Scale:    Vec3{X: 2, Y: 2, Z: 2},
	})
	return root, child
}

func TestDefaultTypes(t *testing.T) {
	types := DefaultTypes()
	assert.Len(t, types.ListTypes(), 3)
	rel, err := types.GetType(TagRelation)
	require.NoError(t, err)
	assert.Equal(t, 1, rel.Relationships())
}

func TestCloneScenario(t *testing.T) {
	for name, s := range newScenes() {
		t.Run(name, func(t *testing.T) {
			reg := s.Registry()
			root, child := buildHierarchy(s)
			before := reg.Len()

			clone, err := s.Clone(child)
			require.NoError(t, err)
			assert.Equal(t, before+1, reg.Len())
			assert.NotEqual(t, child, clone)

			gotName, ok := ecs.GetComponent[Name](reg, clone)
			require.True(t, ok)
			assert.Equal(t, "child", gotName.Name)

			rel, ok := ecs.GetComponent[Relation](reg, clone)
			require.True(t, ok)
			assert.Equal(t, root, rel.Parent, "a parent outside the clone keeps pointing at the original")

			want, _ := ecs.GetComponent[Transform](reg, child)
			got, ok := ecs.GetComponent[Transform](reg, clone)
			require.True(t, ok)
			assert.Equal(t, *want, *got)

			assert.True(t, ecs.HasComponent[MarkDelete](reg, clone))
			assert.True(t, ecs.HasComponent[Touched](reg, clone))
		})
	}
}

func TestCloneRootEntity(t *testing.T) {
	for name, s := range newScenes() {
		t.Run(name, func(t *testing.T) {
			reg := s.Registry()
			src := s.CreateEntity("X")

			clone, err := s.Clone(src)
			require.NoError(t, err)
			assert.Equal(t, 2, reg.Len())
			assert.NotEqual(t, src, clone)
			assert.True(t, reg.Valid(src))

			gotName, ok := ecs.GetComponent[Name](reg, clone)
			require.True(t, ok)
			assert.Equal(t, "X", gotName.Name)

			rel, ok := ecs.GetComponent[Relation](reg, clone)
			require.True(t, ok)
			assert.Equal(t, ecs.Null, rel.Parent)
		})
	}
}

func TestCloneDeadEntity(t *testing.T) {
	s := New()
	e := s.CreateEntity("gone")
	s.Registry().Destroy(e)
	_, err := s.Clone(e)
	assert.ErrorIs(t, err, ErrNoEntity)
}

func TestDeserializeRemapsHierarchy(t *testing.T) {
	for name, s := range newScenes() {
		t.Run(name, func(t *testing.T) {
			root, child := buildHierarchy(s)

			var buf bytes.Buffer
			require.NoError(t, s.Serialize(&buf, []ecs.Entity{root, child}))

			s.Clock().Advance()
			s.Clock().Advance()
			first, err := s.Deserialize(bytes.NewReader(buf.Bytes()))
			require.NoError(t, err)
			second, err := s.Deserialize(bytes.NewReader(buf.Bytes()))
			require.NoError(t, err)

			require.Len(t, first, 2)
			require.Len(t, second, 2)
			assert.Equal(t, 6, s.Registry().Len())

			for _, created := range [][]ecs.Entity{first, second} {
				rel, ok := ecs.GetComponent[Relation](s.Registry(), created[1])
				require.True(t, ok)
				assert.Equal(t, created[0], rel.Parent)

				rootRel, ok := ecs.GetComponent[Relation](s.Registry(), created[0])
				require.True(t, ok)
				assert.Equal(t, ecs.Null, rootRel.Parent)

				touched, ok := ecs.GetComponent[Touched](s.Registry(), created[0])
				require.True(t, ok)
				assert.Equal(t, uint64(2), touched.Frame)
			}
		})
	}
}

func TestMarkDeleteIsNotSerialized(t *testing.T) {
	s := New()
	e := s.CreateEntity("doomed")
	s.MarkForDeletion(e)

	var buf bytes.Buffer
	require.NoError(t, s.SerializeAll(&buf))
	assert.NotContains(t, buf.String(), "Destroy")

	created, err := s.Deserialize(&buf)
	require.NoError(t, err)
	md, ok := ecs.GetComponent[MarkDelete](s.Registry(), created[0])
	require.True(t, ok)
	assert.False(t, md.Destroy)

	assert.Equal(t, 1, s.Sweep())
	assert.False(t, s.Registry().Valid(e))
	assert.True(t, s.Registry().Valid(created[0]))
}

func TestLoadFreshReplacesScene(t *testing.T) {
	source := New(WithFormat(encoding.YAML))
	_, _ = buildHierarchy(source)
	var buf bytes.Buffer
	require.NoError(t, source.SerializeAll(&buf))

	target := New(WithFormat(encoding.YAML))
	stale := target.CreateEntity("stale")
	created, err := target.LoadFresh(&buf)
	require.NoError(t, err)

	assert.False(t, target.Registry().Valid(stale))
	assert.Equal(t, 2, target.Registry().Len())
	names := make([]string, 0, len(created))
	for _, e := range created {
		n, ok := ecs.GetComponent[Name](target.Registry(), e)
		require.True(t, ok)
		names = append(names, n.Name)
	}
	assert.Equal(t, []string{"root", "child"}, names)
}

func TestLoadFreshKeepsSceneOnMalformedInput(t *testing.T) {
	inputs := map[string]string{
		"unparsable":     "not json",
		"no entities":    `{"name":[]}`,
		"null id":        `{"entities":[18446744073709551615]}`,
		"repeated id":    `{"entities":[1,1]}`,
		"unknown owner":  `{"entities":[1],"name":[{"entity":7,"value":{"name":"x"}}]}`,
		"mistyped value": `{"entities":[1],"name":[{"entity":1,"value":{"name":3}}]}`,
	}
	for name, in := range inputs {
		t.Run(name, func(t *testing.T) {
			s := New()
			e := s.CreateEntity("kept")
			_, err := s.LoadFresh(strings.NewReader(in))
			assert.ErrorIs(t, err, snapshot.ErrDecode)
			assert.True(t, s.Registry().Valid(e))
			assert.Equal(t, 1, s.Registry().Len())
			n, ok := ecs.GetComponent[Name](s.Registry(), e)
			require.True(t, ok)
			assert.Equal(t, "kept", n.Name)
		})
	}
}

func TestEmptyStream(t *testing.T) {
	s := New()
	_, err := s.Deserialize(strings.NewReader(""))
	assert.ErrorIs(t, err, ErrEmptyStream)
	_, err = s.LoadFresh(&bytes.Buffer{})
	assert.ErrorIs(t, err, ErrEmptyStream)
}

func TestDeserializeErrors(t *testing.T) {
	s := New()
	_, err := s.Deserialize(strings.NewReader(`{"entities":[1],"name":[{"entity":2,"value":{"name":"x"}}]}`))
	assert.ErrorIs(t, err, snapshot.ErrUnknownEntity)
	assert.ErrorIs(t, err, snapshot.ErrDecode)

	_, err = s.Deserialize(strings.NewReader(`{"name":[]}`))
	assert.ErrorIs(t, err, snapshot.ErrDecode)
}

func TestStrictScene(t *testing.T) {
	s := New(WithStrictReferences())
	doc := `{"entities":[0],"relation":[{"entity":0,"value":{"parent":77}}]}`
	_, err := s.Deserialize(strings.NewReader(doc))
	assert.ErrorIs(t, err, snapshot.ErrUnknownEntity)

	lenient := New()
	created, err := lenient.Deserialize(strings.NewReader(doc))
	require.NoError(t, err)
	rel, _ := ecs.GetComponent[Relation](lenient.Registry(), created[0])
	assert.Equal(t, ecs.Entity(77), rel.Parent)
}

func TestFileHelpers(t *testing.T) {
	dir := t.TempDir()
	s := New()
	root, child := buildHierarchy(s)

	path := filepath.Join(dir, "pair.json")
	require.NoError(t, s.SaveEntitiesToFile(path, []ecs.Entity{root, child}))
	created, err := s.LoadEntitiesFromFile(path)
	require.NoError(t, err)
	assert.Len(t, created, 2)

	single := filepath.Join(dir, "single.json")
	require.NoError(t, s.SaveEntityToFile(single, child))
	e, err := s.LoadEntityFromFile(single)
	require.NoError(t, err)
	n, ok := ecs.GetComponent[Name](s.Registry(), e)
	require.True(t, ok)
	assert.Equal(t, "child", n.Name)

	empty := filepath.Join(dir, "empty.json")
	require.NoError(t, os.WriteFile(empty, nil, 0o644))
	_, err = s.LoadEntitiesFromFile(empty)
	assert.ErrorIs(t, err, ErrEmptyStream)

	_, err = s.LoadEntitiesFromFile(filepath.Join(dir, "missing.json"))
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestPrefabRoundTrip(t *testing.T) {
	lib, err := prefab.Open(context.Background(), t.TempDir(), log.Nop())
	require.NoError(t, err)

	author := New(WithFormat(encoding.YAML))
	root, child := buildHierarchy(author)
	p, err := author.SavePrefab(lib, "pair", []ecs.Entity{root, child})
	require.NoError(t, err)
	assert.Equal(t, "yaml", p.Format)

	s := New()
	first, err := s.Instantiate(p)
	require.NoError(t, err)
	second, err := s.Instantiate(p)
	require.NoError(t, err)
	require.Len(t, first, 2)
	require.Len(t, second, 2)
	assert.Equal(t, 4, s.Registry().Len())

	rel, _ := ecs.GetComponent[Relation](s.Registry(), second[1])
	assert.Equal(t, second[0], rel.Parent)

	p.Data = append(p.Data, '\n')
	_, err = s.Instantiate(p)
	assert.ErrorIs(t, err, prefab.ErrCorrupt)
}

func TestEventsArePublished(t *testing.T) {
	b := bus.New()
	s := New(WithBus(b))
	var got []string
	for _, typ := range []string{EventSaved, EventLoaded, EventEntityCloned} {
		_, err := b.Subscribe(typ, func(e bus.Event) error {
			got = append(got, e.Type())
			return nil
		})
		require.NoError(t, err)
	}

	var cloned ClonedEvent
	_, err := b.Subscribe(EventEntityCloned, func(e bus.Event) error {
		cloned = e.Data().(ClonedEvent)
		return nil
	})
	require.NoError(t, err)
	var saved SavedEvent
	_, err = b.Subscribe(EventSaved, func(e bus.Event) error {
		saved = e.Data().(SavedEvent)
		return nil
	})
	require.NoError(t, err)

	e := s.CreateEntity("hero")
	var buf bytes.Buffer
	require.NoError(t, s.SerializeAll(&buf))
	assert.Equal(t, buf.Len(), saved.Bytes)
	assert.Equal(t, 1, saved.Entities)
	assert.Equal(t, 3, saved.Components)
	_, err = s.Deserialize(&buf)
	require.NoError(t, err)
	c, err := s.Clone(e)
	require.NoError(t, err)

	assert.Equal(t, []string{EventSaved, EventLoaded, EventEntityCloned}, got)
	assert.Equal(t, ClonedEvent{Source: e, Clone: c}, cloned)
}
