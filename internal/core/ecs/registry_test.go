package ecs

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type position struct{ X, Y float32 }

type health struct{ Current, Max int }

func TestCreateEntity(t *testing.T) {
	r := NewRegistry()
	e0 := r.Create()
	e1 := r.Create()

	assert.Equal(t, uint32(0), e0.Index())
	assert.Equal(t, uint32(1), e1.Index())
	assert.True(t, r.Valid(e0))
	assert.True(t, r.Valid(e1))
	assert.Equal(t, 2, r.Len())
	assert.False(t, e0.IsNull())
}

func TestNullIsNeverValid(t *testing.T) {
	r := NewRegistry()
	r.Create()
	assert.False(t, r.Valid(Null))
	assert.True(t, Null.IsNull())
	assert.Equal(t, "null", Null.String())
}

func TestDestroyRecyclesWithNewVersion(t *testing.T) {
	r := NewRegistry()
	e := r.Create()
	require.True(t, SetComponent(r, e, position{X: 1}))

	require.True(t, r.Destroy(e))
	assert.False(t, r.Valid(e))
	assert.False(t, r.Destroy(e))
	assert.False(t, HasComponent[position](r, e))

	recycled := r.Create()
	assert.Equal(t, e.Index(), recycled.Index())
	assert.Equal(t, e.Version()+1, recycled.Version())
	assert.False(t, HasComponent[position](r, recycled))
}

func TestSetGetRemoveComponent(t *testing.T) {
	r := NewRegistry()
	e := r.Create()

	_, ok := GetComponent[position](r, e)
	assert.False(t, ok)

	require.True(t, SetComponent(r, e, position{X: 1, Y: 2}))
	p, ok := GetComponent[position](r, e)
	require.True(t, ok)
	assert.Equal(t, position{X: 1, Y: 2}, *p)

	p.X = 5
	p, _ = GetComponent[position](r, e)
	assert.Equal(t, float32(5), p.X)

	require.True(t, SetComponent(r, e, position{X: 9}))
	assert.Equal(t, 1, Count[position](r))

	assert.True(t, RemoveComponent[position](r, e))
	assert.False(t, RemoveComponent[position](r, e))
	assert.Equal(t, 0, Count[position](r))
}

func TestSetComponentOnDeadEntity(t *testing.T) {
	r := NewRegistry()
	e := r.Create()
	r.Destroy(e)
	assert.False(t, SetComponent(r, e, health{Current: 1}))
	assert.Equal(t, 0, Count[health](r))
}

func TestRemoveKeepsOtherEntitiesReachable(t *testing.T) {
	r := NewRegistry()
	a, b, c := r.Create(), r.Create(), r.Create()
	SetComponent(r, a, health{Current: 1})
	SetComponent(r, b, health{Current: 2})
	SetComponent(r, c, health{Current: 3})

	RemoveComponent[health](r, a)

	hb, ok := GetComponent[health](r, b)
	require.True(t, ok)
	assert.Equal(t, 2, hb.Current)
	hc, ok := GetComponent[health](r, c)
	require.True(t, ok)
	assert.Equal(t, 3, hc.Current)
	assert.ElementsMatch(t, []Entity{b, c}, View[health](r))
}

func TestEachVisitsLiveEntitiesInSlotOrder(t *testing.T) {
	r := NewRegistry()
	a, b, c := r.Create(), r.Create(), r.Create()
	r.Destroy(b)

	assert.Equal(t, []Entity{a, c}, r.Entities())

	sum := 0
	SetComponent(r, a, health{Current: 4})
	SetComponent(r, c, health{Current: 6})
	Each(r, func(_ Entity, h *health) { sum += h.Current })
	assert.Equal(t, 10, sum)
}

func TestOrphan(t *testing.T) {
	r := NewRegistry()
	e := r.Create()
	assert.True(t, r.Orphan(e))
	SetComponent(r, e, position{})
	assert.False(t, r.Orphan(e))
}

func TestClearInvalidatesHandles(t *testing.T) {
	r := NewRegistry()
	a := r.Create()
	SetComponent(r, a, position{X: 1})
	r.Create()

	r.Clear()
	assert.Equal(t, 0, r.Len())
	assert.False(t, r.Valid(a))
	assert.Equal(t, 0, Count[position](r))

	n := r.Create()
	assert.Equal(t, uint32(0), n.Index())
	assert.NotEqual(t, a, n)
}
