package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"chat_backend/internal/domain"
)

// Store is an in-memory implementation of domain.Store. It is safe for
// concurrent use and intended for tests and single-process development runs.
type Store struct {
	mu       sync.RWMutex
	messages map[string]*domain.Message
	groups   map[string]*domain.Group
	seq      map[string]int64 // message id -> insertion order
	next     int64
	now      func() time.Time
}

func NewStore() *Store {
	return &Store{
		messages: make(map[string]*domain.Message),
		groups:   make(map[string]*domain.Group),
		seq:      make(map[string]int64),
		now:      time.Now,
	}
}

var _ domain.Store = (*Store)(nil)

func (s *Store) Messages() domain.MessageRepository { return (*messageRepo)(s) }
func (s *Store) Groups() domain.GroupRepository     { return (*groupRepo)(s) }
func (s *Store) Close() error                       { return nil }

type messageRepo Store

func copyMessage(m *domain.Message) *domain.Message {
	cp := *m
	return &cp
}

func (r *messageRepo) Create(_ context.Context, m *domain.Message) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.messages[m.ID]; ok {
		return domain.ErrConflict
	}
	r.messages[m.ID] = copyMessage(m)
	r.next++
	r.seq[m.ID] = r.next
	return nil
}

func (r *messageRepo) GetByID(_ context.Context, id string) (*domain.Message, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	m, ok := r.messages[id]
	if !ok {
		return nil, nil
	}
	return copyMessage(m), nil
}

// list returns matching messages in insertion order. Callers hold the lock.
func (r *messageRepo) list(match func(*domain.Message) bool) []*domain.Message {
	var out []*domain.Message
	for _, m := range r.messages {
		if match(m) {
			out = append(out, copyMessage(m))
		}
	}
	sort.Slice(out, func(i, j int) bool { return r.seq[out[i].ID] < r.seq[out[j].ID] })
	return out
}

func (r *messageRepo) ListByPeer(_ context.Context, userID, peerID string) ([]*domain.Message, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.list(func(m *domain.Message) bool {
		if m.IsGroup() {
			return false
		}
		return (m.SenderID == userID && m.ReceiverID == peerID) ||
			(m.SenderID == peerID && m.ReceiverID == userID)
	}), nil
}

func (r *messageRepo) ListByGroup(_ context.Context, groupID string) ([]*domain.Message, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.list(func(m *domain.Message) bool { return m.GroupID == groupID }), nil
}

func (r *messageRepo) UpdateStatus(_ context.Context, id string, status domain.MessageStatus) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	m, ok := r.messages[id]
	if !ok || !m.Status.Advances(status) {
		return false, nil
	}
	m.Status = status
	m.UpdatedAt = r.now().UTC()
	return true, nil
}

func (r *messageRepo) MarkReadFrom(_ context.Context, senderID, receiverID string) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var n int64
	for _, m := range r.messages {
		if m.IsGroup() || m.SenderID != senderID || m.ReceiverID != receiverID {
			continue
		}
		if m.Status.Advances(domain.StatusRead) {
			m.Status = domain.StatusRead
			m.UpdatedAt = r.now().UTC()
			n++
		}
	}
	return n, nil
}

func (r *messageRepo) UpdateText(_ context.Context, id, text string) (*domain.Message, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	m, ok := r.messages[id]
	if !ok {
		return nil, nil
	}
	m.Text = text
	m.IsEdited = true
	m.UpdatedAt = r.now().UTC()
	return copyMessage(m), nil
}

func (r *messageRepo) Delete(_ context.Context, id string) (*domain.Message, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	m, ok := r.messages[id]
	if !ok {
		return nil, nil
	}
	delete(r.messages, id)
	delete(r.seq, id)
	return m, nil
}

type groupRepo Store

func copyGroup(g *domain.Group) *domain.Group {
	cp := *g
	cp.Members = append([]string(nil), g.Members...)
	return &cp
}

func (r *groupRepo) Create(_ context.Context, g *domain.Group) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.groups[g.ID]; ok {
		return domain.ErrConflict
	}
	r.groups[g.ID] = copyGroup(g)
	return nil
}

func (r *groupRepo) GetByID(_ context.Context, id string) (*domain.Group, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	g, ok := r.groups[id]
	if !ok {
		return nil, nil
	}
	return copyGroup(g), nil
}

func (r *groupRepo) ListByMember(_ context.Context, userID string) ([]*domain.Group, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []*domain.Group
	for _, g := range r.groups {
		if g.HasMember(userID) {
			out = append(out, copyGroup(g))
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID < out[j].ID
		}
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out, nil
}

func (r *groupRepo) Update(_ context.Context, g *domain.Group) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.groups[g.ID]; !ok {
		return domain.ErrNotFound
	}
	r.groups[g.ID] = copyGroup(g)
	return nil
}

func (r *groupRepo) Delete(_ context.Context, id string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.groups[id]; !ok {
		return false, nil
	}
	delete(r.groups, id)
	return true, nil
}
