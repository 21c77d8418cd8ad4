package store_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"chat_backend/internal/config"
	"chat_backend/internal/domain"
	"chat_backend/internal/store"
)

// backends returns every store implementation that runs without external
// services.
func backends() map[string]config.DatabaseConfig {
	return map[string]config.DatabaseConfig{
		"memory": {Driver: "memory"},
		"sqlite": {Driver: "sqlite", DSN: ":memory:"},
	}
}

func forEachBackend(t *testing.T, fn func(t *testing.T, st domain.Store)) {
	for name, cfg := range backends() {
		t.Run(name, func(t *testing.T) {
			st, err := store.Open(cfg)
			require.NoError(t, err)
			t.Cleanup(func() { st.Close() })
			fn(t, st)
		})
	}
}

var base = time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

func direct(id, from, to string, offset int) *domain.Message {
	at := base.Add(time.Duration(offset) * time.Second)
	return &domain.Message{
		ID: id, SenderID: from, ReceiverID: to, Text: "text " + id,
		Status: domain.StatusSent, CreatedAt: at, UpdatedAt: at,
	}
}

func TestOpenUnknownDriver(t *testing.T) {
	_, err := store.Open(config.DatabaseConfig{Driver: "mongo"})
	assert.Error(t, err)

	_, err = store.Open(config.DatabaseConfig{Driver: "sqlite"})
	assert.Error(t, err)
}

func TestMessagesCreateAndList(t *testing.T) {
	forEachBackend(t, func(t *testing.T, st domain.Store) {
		ctx := context.Background()
		msgs := st.Messages()

		require.NoError(t, msgs.Create(ctx, direct("m1", "u1", "u2", 0)))
		require.NoError(t, msgs.Create(ctx, direct("m2", "u2", "u1", 1)))
		require.NoError(t, msgs.Create(ctx, direct("m3", "u1", "u3", 2)))
		require.NoError(t, msgs.Create(ctx, &domain.Message{
			ID: "g-m1", SenderID: "u1", GroupID: "g1", Text: "room", Status: domain.StatusSent,
			CreatedAt: base.Add(3 * time.Second), UpdatedAt: base.Add(3 * time.Second),
		}))

		assert.Error(t, msgs.Create(ctx, direct("m1", "u1", "u2", 9)))

		got, err := msgs.GetByID(ctx, "m2")
		require.NoError(t, err)
		require.NotNil(t, got)
		assert.Equal(t, "u2", got.SenderID)
		assert.Equal(t, domain.StatusSent, got.Status)
		assert.False(t, got.IsEdited)

		missing, err := msgs.GetByID(ctx, "nope")
		assert.NoError(t, err)
		assert.Nil(t, missing)

		peer, err := msgs.ListByPeer(ctx, "u1", "u2")
		require.NoError(t, err)
		require.Len(t, peer, 2)
		assert.Equal(t, "m1", peer[0].ID)
		assert.Equal(t, "m2", peer[1].ID)

		room, err := msgs.ListByGroup(ctx, "g1")
		require.NoError(t, err)
		require.Len(t, room, 1)
		assert.Equal(t, "g1", room[0].GroupID)
	})
}

func TestMessagesStatusIsForwardOnly(t *testing.T) {
	forEachBackend(t, func(t *testing.T, st domain.Store) {
		ctx := context.Background()
		msgs := st.Messages()
		require.NoError(t, msgs.Create(ctx, direct("m1", "u1", "u2", 0)))

		changed, err := msgs.UpdateStatus(ctx, "m1", domain.StatusDelivered)
		require.NoError(t, err)
		assert.True(t, changed)

		changed, err = msgs.UpdateStatus(ctx, "m1", domain.StatusSent)
		require.NoError(t, err)
		assert.False(t, changed)

		changed, err = msgs.UpdateStatus(ctx, "m1", domain.StatusDelivered)
		require.NoError(t, err)
		assert.False(t, changed)

		changed, err = msgs.UpdateStatus(ctx, "nope", domain.StatusRead)
		require.NoError(t, err)
		assert.False(t, changed)

		got, _ := msgs.GetByID(ctx, "m1")
		assert.Equal(t, domain.StatusDelivered, got.Status)
	})
}

func TestMessagesMarkReadFrom(t *testing.T) {
	forEachBackend(t, func(t *testing.T, st domain.Store) {
		ctx := context.Background()
		msgs := st.Messages()
		require.NoError(t, msgs.Create(ctx, direct("m1", "u1", "u2", 0)))
		require.NoError(t, msgs.Create(ctx, direct("m2", "u1", "u2", 1)))
		require.NoError(t, msgs.Create(ctx, direct("m3", "u2", "u1", 2)))

		n, err := msgs.MarkReadFrom(ctx, "u1", "u2")
		require.NoError(t, err)
		assert.Equal(t, int64(2), n)

		n, err = msgs.MarkReadFrom(ctx, "u1", "u2")
		require.NoError(t, err)
		assert.Zero(t, n)

		other, _ := msgs.GetByID(ctx, "m3")
		assert.Equal(t, domain.StatusSent, other.Status)
		read, _ := msgs.GetByID(ctx, "m2")
		assert.Equal(t, domain.StatusRead, read.Status)
	})
}

func TestMessagesEditAndDelete(t *testing.T) {
	forEachBackend(t, func(t *testing.T, st domain.Store) {
		ctx := context.Background()
		msgs := st.Messages()
		require.NoError(t, msgs.Create(ctx, direct("m1", "u1", "u2", 0)))

		edited, err := msgs.UpdateText(ctx, "m1", "changed")
		require.NoError(t, err)
		require.NotNil(t, edited)
		assert.Equal(t, "changed", edited.Text)
		assert.True(t, edited.IsEdited)

		deleted, err := msgs.Delete(ctx, "m1")
		require.NoError(t, err)
		require.NotNil(t, deleted)
		assert.Equal(t, "changed", deleted.Text)

		again, err := msgs.Delete(ctx, "m1")
		assert.NoError(t, err)
		assert.Nil(t, again)

		stale, err := msgs.UpdateText(ctx, "m1", "ghost")
		assert.NoError(t, err)
		assert.Nil(t, stale)
	})
}

func TestGroupsLifecycle(t *testing.T) {
	forEachBackend(t, func(t *testing.T, st domain.Store) {
		ctx := context.Background()
		groups := st.Groups()

		g1 := &domain.Group{ID: "g1", Name: "one", AdminID: "u1", Members: []string{"u1", "u2"}, CreatedAt: base}
		g2 := &domain.Group{ID: "g2", Name: "two", AdminID: "u2", Members: []string{"u2", "u3"}, CreatedAt: base.Add(time.Minute)}
		require.NoError(t, groups.Create(ctx, g1))
		require.NoError(t, groups.Create(ctx, g2))

		got, err := groups.GetByID(ctx, "g1")
		require.NoError(t, err)
		require.NotNil(t, got)
		assert.Equal(t, "one", got.Name)
		assert.Equal(t, []string{"u1", "u2"}, got.Members)

		missing, err := groups.GetByID(ctx, "nope")
		assert.NoError(t, err)
		assert.Nil(t, missing)

		mine, err := groups.ListByMember(ctx, "u2")
		require.NoError(t, err)
		require.Len(t, mine, 2)
		assert.Equal(t, "g1", mine[0].ID)
		assert.Equal(t, "g2", mine[1].ID)

		got.Name = "renamed"
		got.Members = []string{"u1", "u4"}
		require.NoError(t, groups.Update(ctx, got))

		updated, _ := groups.GetByID(ctx, "g1")
		assert.Equal(t, "renamed", updated.Name)
		assert.Equal(t, []string{"u1", "u4"}, updated.Members)

		mine, _ = groups.ListByMember(ctx, "u2")
		require.Len(t, mine, 1)
		assert.Equal(t, "g2", mine[0].ID)

		err = groups.Update(ctx, &domain.Group{ID: "nope", Name: "x", AdminID: "u1"})
		assert.ErrorIs(t, err, domain.ErrNotFound)

		ok, err := groups.Delete(ctx, "g1")
		require.NoError(t, err)
		assert.True(t, ok)
		ok, err = groups.Delete(ctx, "g1")
		require.NoError(t, err)
		assert.False(t, ok)

		gone, _ := groups.GetByID(ctx, "g1")
		assert.Nil(t, gone)
		mine, _ = groups.ListByMember(ctx, "u4")
		assert.Empty(t, mine)
	})
}
