package realtime_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"chat_backend/internal/realtime"
)

func TestRegistryRegisterAndLookup(t *testing.T) {
	reg := realtime.NewRegistry()
	c1 := newConn("c1")

	prev, displaced := reg.Register("u1", c1)
	assert.False(t, displaced)
	assert.Empty(t, prev)

	got, ok := reg.Lookup("u1")
	assert.True(t, ok)
	assert.Equal(t, "c1", got.ID())

	_, ok = reg.Lookup("u2")
	assert.False(t, ok)
}

func TestRegistryReconnectReplaces(t *testing.T) {
	reg := realtime.NewRegistry()
	old, fresh := newConn("old"), newConn("new")

	reg.Register("u1", old)
	prev, displaced := reg.Register("u1", fresh)
	assert.True(t, displaced)
	assert.Equal(t, "old", prev)

	got, _ := reg.Lookup("u1")
	assert.Equal(t, "new", got.ID())

	user, ok := reg.UserOf(old)
	assert.True(t, ok)
	assert.Equal(t, "u1", user)

	// A late disconnect of the replaced connection keeps the newer one.
	_, removed := reg.Unregister(old)
	assert.False(t, removed)
	got, ok = reg.Lookup("u1")
	assert.True(t, ok)
	assert.Equal(t, "new", got.ID())
	assert.Equal(t, []string{"u1"}, reg.Snapshot())

	user, removed = reg.Unregister(fresh)
	assert.True(t, removed)
	assert.Equal(t, "u1", user)
	assert.Empty(t, reg.Snapshot())
}

func TestRegistryRegisterSameConnTwice(t *testing.T) {
	reg := realtime.NewRegistry()
	c := newConn("c1")
	reg.Register("u1", c)
	_, displaced := reg.Register("u1", c)
	assert.False(t, displaced)
}

func TestRegistryAnonymousAttach(t *testing.T) {
	reg := realtime.NewRegistry()
	anon := newConn("anon")
	reg.Attach(anon)
	reg.Register("u1", newConn("c1"))

	assert.Equal(t, 2, reg.Len())
	assert.Equal(t, []string{"u1"}, reg.Snapshot())
	_, ok := reg.UserOf(anon)
	assert.False(t, ok)

	_, removed := reg.Unregister(anon)
	assert.False(t, removed)
	assert.Equal(t, 1, reg.Len())
}

func TestRegistrySnapshotSorted(t *testing.T) {
	reg := realtime.NewRegistry()
	reg.Register("zed", newConn("c1"))
	reg.Register("amy", newConn("c2"))
	reg.Register("max", newConn("c3"))
	assert.Equal(t, []string{"amy", "max", "zed"}, reg.Snapshot())
	assert.Len(t, reg.Connections(), 3)
}

func TestIsAnonymous(t *testing.T) {
	for _, id := range []string{"", "undefined", "null"} {
		assert.True(t, realtime.IsAnonymous(id), id)
	}
	assert.False(t, realtime.IsAnonymous("u1"))
}
