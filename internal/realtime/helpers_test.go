package realtime_test

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"chat_backend/internal/domain"
	"chat_backend/internal/realtime"
	"chat_backend/internal/store/memory"
)

// fakeConn records what the core sends to it.
type fakeConn struct {
	id string

	mu     sync.Mutex
	events []realtime.Outbound
	full   bool
	closed bool
}

func newConn(id string) *fakeConn {
	return &fakeConn{id: id}
}

func (f *fakeConn) ID() string { return f.id }

func (f *fakeConn) Send(ev realtime.Outbound) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.closed {
		return realtime.ErrConnClosed
	}
	if f.full {
		return realtime.ErrSendBufferFull
	}
	f.events = append(f.events, ev)
	return nil
}

func (f *fakeConn) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.closed {
		return realtime.ErrConnClosed
	}
	f.closed = true
	return nil
}

func (f *fakeConn) setFull(full bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.full = full
}

func (f *fakeConn) isClosed() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.closed
}

// received returns the events of the given wire type, or all events when
// typ is empty.
func (f *fakeConn) received(typ string) []realtime.Outbound {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []realtime.Outbound
	for _, ev := range f.events {
		if typ == "" || ev.Type() == typ {
			out = append(out, ev)
		}
	}
	return out
}

func (f *fakeConn) clear() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.events = nil
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestRouter(t *testing.T) (*realtime.Router, *memory.Store) {
	t.Helper()
	st := memory.NewStore()
	return realtime.NewRouter(st, discardLogger(), realtime.Options{MaxTextChars: 5000}), st
}

func connect(t *testing.T, r *realtime.Router, connID, userID string) *fakeConn {
	t.Helper()
	c := newConn(connID)
	require.NoError(t, r.Handle(context.Background(), c, realtime.Connect{UserID: userID}))
	return c
}

func createGroup(t *testing.T, st *memory.Store, id, admin string, members ...string) *domain.Group {
	t.Helper()
	g := &domain.Group{ID: id, Name: id, AdminID: admin, Members: append([]string{admin}, members...)}
	require.NoError(t, st.Groups().Create(context.Background(), g))
	return g
}

type failingMessages struct {
	domain.MessageRepository
}

func (failingMessages) Create(context.Context, *domain.Message) error {
	return errors.New("database is down")
}

// failingStore keeps groups working but refuses to persist messages.
type failingStore struct {
	*memory.Store
}

func (s failingStore) Messages() domain.MessageRepository {
	return failingMessages{s.Store.Messages()}
}
