package schema

import (
	"bytes"
	"testing"

	"github.com/cespare/xxhash/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zeusync/scenekit/internal/core/ecs"
	"github.com/zeusync/scenekit/internal/core/snapshot"
	"github.com/zeusync/scenekit/pkg/encoding"
)

type health struct {
	HP int `json:"hp" yaml:"hp"`
}

type follow struct {
	Target ecs.Entity `json:"target" yaml:"target"`
}

func newTestRegistry(t *testing.T) *Registry {
	t.Helper()
	reg := NewRegistry()
	require.NoError(t, Register[health](reg, "health"))
	require.NoError(t, Register(reg, "follow", snapshot.Field(func(f *follow) *ecs.Entity { return &f.Target })))
	return reg
}

func TestRegisterAndLookup(t *testing.T) {
	reg := newTestRegistry(t)

	assert.Equal(t, []TypeName{"health", "follow"}, reg.ListTypes())

	typ, err := reg.GetType("follow")
	require.NoError(t, err)
	assert.Equal(t, TypeName("follow"), typ.Tag())
	assert.Equal(t, xxhash.Sum64String("follow"), typ.ID())
	assert.Equal(t, 1, typ.Relationships())

	_, err = reg.GetType("missing")
	assert.ErrorIs(t, err, ErrNotRegistered)
}

func TestRegisterRejectsBadTags(t *testing.T) {
	reg := newTestRegistry(t)

	assert.ErrorIs(t, Register[health](reg, "health"), ErrAlreadyRegistered)
	assert.ErrorIs(t, Register[health](reg, ""), ErrInvalidTag)
	assert.ErrorIs(t, Register[health](reg, snapshot.EntitiesSection), ErrInvalidTag)
	assert.Panics(t, func() { MustRegister[health](reg, "health") })
}

func TestUnregisterType(t *testing.T) {
	reg := newTestRegistry(t)

	require.NoError(t, reg.UnregisterType("health"))
	assert.Equal(t, []TypeName{"follow"}, reg.ListTypes())
	assert.ErrorIs(t, reg.UnregisterType("health"), ErrNotRegistered)
	require.NoError(t, Register[health](reg, "health"))
	assert.Equal(t, []TypeName{"follow", "health"}, reg.ListTypes())
}

func TestDriveAllTypes(t *testing.T) {
	types := newTestRegistry(t)

	src := ecs.NewRegistry()
	leader := src.Create()
	ecs.SetComponent(src, leader, health{HP: 10})
	follower := src.Create()
	ecs.SetComponent(src, follower, health{HP: 3})
	ecs.SetComponent(src, follower, follow{Target: leader})

	var buf bytes.Buffer
	w, err := snapshot.NewWriter(encoding.JSON.NewWriter(&buf), src)
	require.NoError(t, err)
	n, err := types.WriteAll(w)
	require.NoError(t, err)
	assert.Equal(t, 3, n)
	require.NoError(t, w.Close())

	t.Run("fresh", func(t *testing.T) {
		dst := ecs.NewRegistry()
		in, err := snapshot.Open(encoding.JSON, bytes.NewReader(buf.Bytes()))
		require.NoError(t, err)
		l, err := snapshot.NewLoader(in, dst)
		require.NoError(t, err)
		n, err := types.LoadAll(l)
		require.NoError(t, err)
		assert.Equal(t, 3, n)
		assert.Equal(t, 2, ecs.Count[health](dst))
	})

	t.Run("continuous", func(t *testing.T) {
		dst := ecs.NewRegistry()
		dst.Create()
		in, err := snapshot.Open(encoding.JSON, bytes.NewReader(buf.Bytes()))
		require.NoError(t, err)
		l, err := snapshot.NewContinuousLoader(in, dst)
		require.NoError(t, err)
		n, err := types.LoadAllContinuous(l)
		require.NoError(t, err)
		assert.Equal(t, 3, n)

		newLeader, _ := l.Resolve(leader)
		newFollower, _ := l.Resolve(follower)
		f, ok := ecs.GetComponent[follow](dst, newFollower)
		require.True(t, ok)
		assert.Equal(t, newLeader, f.Target)
	})
}
