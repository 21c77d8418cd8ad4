package realtime_test

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"chat_backend/internal/domain"
	"chat_backend/internal/realtime"
	"chat_backend/internal/store/memory"
)

func newTestDelivery() (*realtime.Delivery, *realtime.Registry, *memory.Store) {
	st := memory.NewStore()
	reg := realtime.NewRegistry()
	return realtime.NewDelivery(st.Messages(), reg, 10), reg, st
}

func TestDeliveryOnCreateInitialStatus(t *testing.T) {
	ctx := context.Background()
	d, reg, st := newTestDelivery()

	offline := &domain.Message{SenderID: "u1", ReceiverID: "u2", Text: "hi"}
	require.NoError(t, d.OnCreate(ctx, offline))
	assert.NotEmpty(t, offline.ID)
	assert.Equal(t, domain.StatusSent, offline.Status)
	assert.False(t, offline.CreatedAt.IsZero())

	reg.Register("u2", newConn("c2"))
	online := &domain.Message{SenderID: "u1", ReceiverID: "u2", Text: "hi again"}
	require.NoError(t, d.OnCreate(ctx, online))
	assert.Equal(t, domain.StatusDelivered, online.Status)

	group := &domain.Message{SenderID: "u1", GroupID: "g1", Image: "pic.png"}
	require.NoError(t, d.OnCreate(ctx, group))
	assert.Equal(t, domain.StatusSent, group.Status)

	stored, err := st.Messages().GetByID(ctx, online.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusDelivered, stored.Status)
}

func TestDeliveryOnCreateRejects(t *testing.T) {
	ctx := context.Background()
	d, _, _ := newTestDelivery()

	tests := []struct {
		name string
		msg  *domain.Message
	}{
		{"Empty", &domain.Message{SenderID: "u1", ReceiverID: "u2"}},
		{"NoTarget", &domain.Message{SenderID: "u1", Text: "x"}},
		{"BothTargets", &domain.Message{SenderID: "u1", ReceiverID: "u2", GroupID: "g1", Text: "x"}},
		{"TooLong", &domain.Message{SenderID: "u1", ReceiverID: "u2", Text: strings.Repeat("é", 11)}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := d.OnCreate(ctx, tt.msg)
			assert.ErrorIs(t, err, domain.ErrInvalidInput)
		})
	}

	ok := &domain.Message{SenderID: "u1", ReceiverID: "u2", Text: strings.Repeat("é", 10)}
	assert.NoError(t, d.OnCreate(ctx, ok))
}

func TestDeliveryAdvanceIsForwardOnly(t *testing.T) {
	ctx := context.Background()
	d, _, st := newTestDelivery()

	m := &domain.Message{SenderID: "u1", ReceiverID: "u2", Text: "hi"}
	require.NoError(t, d.OnCreate(ctx, m))

	changed, err := d.Advance(ctx, m.ID, domain.StatusRead)
	require.NoError(t, err)
	assert.True(t, changed)

	changed, err = d.Advance(ctx, m.ID, domain.StatusDelivered)
	require.NoError(t, err)
	assert.False(t, changed)

	changed, err = d.Advance(ctx, m.ID, domain.StatusRead)
	require.NoError(t, err)
	assert.False(t, changed)

	stored, _ := st.Messages().GetByID(ctx, m.ID)
	assert.Equal(t, domain.StatusRead, stored.Status)

	_, err = d.Advance(ctx, m.ID, domain.MessageStatus("seen"))
	assert.ErrorIs(t, err, domain.ErrInvalidInput)

	changed, err = d.Advance(ctx, "missing", domain.StatusRead)
	require.NoError(t, err)
	assert.False(t, changed)
}

func TestDeliveryOnMarkRead(t *testing.T) {
	ctx := context.Background()
	d, _, st := newTestDelivery()

	for _, text := range []string{"a", "b"} {
		require.NoError(t, d.OnCreate(ctx, &domain.Message{SenderID: "u1", ReceiverID: "u2", Text: text}))
	}
	reply := &domain.Message{SenderID: "u2", ReceiverID: "u1", Text: "c"}
	require.NoError(t, d.OnCreate(ctx, reply))

	n, err := d.OnMarkRead(ctx, "u2", "u1")
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)

	n, err = d.OnMarkRead(ctx, "u2", "u1")
	require.NoError(t, err)
	assert.Zero(t, n)

	stored, _ := st.Messages().GetByID(ctx, reply.ID)
	assert.Equal(t, domain.StatusSent, stored.Status)
}

func TestDeliveryEditAndDelete(t *testing.T) {
	ctx := context.Background()
	d, _, _ := newTestDelivery()

	m := &domain.Message{SenderID: "u1", ReceiverID: "u2", Text: "hi"}
	require.NoError(t, d.OnCreate(ctx, m))

	_, err := d.OnEdit(ctx, "u2", m.ID, "hijacked")
	assert.ErrorIs(t, err, domain.ErrForbidden)

	_, err = d.OnEdit(ctx, "u1", m.ID, strings.Repeat("x", 11))
	assert.ErrorIs(t, err, domain.ErrInvalidInput)

	edited, err := d.OnEdit(ctx, "u1", m.ID, "hello")
	require.NoError(t, err)
	assert.Equal(t, "hello", edited.Text)
	assert.True(t, edited.IsEdited)

	_, err = d.OnDelete(ctx, "u2", m.ID)
	assert.ErrorIs(t, err, domain.ErrForbidden)

	deleted, err := d.OnDelete(ctx, "u1", m.ID)
	require.NoError(t, err)
	assert.Equal(t, m.ID, deleted.ID)

	again, err := d.OnDelete(ctx, "u1", m.ID)
	assert.NoError(t, err)
	assert.Nil(t, again)

	stale, err := d.OnEdit(ctx, "u1", m.ID, "too late")
	assert.NoError(t, err)
	assert.Nil(t, stale)
}
