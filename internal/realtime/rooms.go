package realtime

import (
	"context"
	"fmt"
	"sync"

	"chat_backend/internal/domain"
)

// GroupLister is the part of the group store used for connect-time sync.
type GroupLister interface {
	ListByMember(ctx context.Context, userID string) ([]*domain.Group, error)
}

// Rooms maps group rooms to the connections subscribed to them. Membership
// is connection-scoped: a connection that goes away must be removed with
// Leave.
type Rooms struct {
	mu     sync.RWMutex
	rooms  map[string]map[string]Conn     // room id -> conn id -> conn
	byConn map[string]map[string]struct{} // conn id -> room ids
}

func NewRooms() *Rooms {
	return &Rooms{
		rooms:  make(map[string]map[string]Conn),
		byConn: make(map[string]map[string]struct{}),
	}
}

// SyncOnConnect subscribes c to the room of every group userID belongs to,
// as recorded in the store at this moment. It returns the number of rooms
// joined.
func (r *Rooms) SyncOnConnect(ctx context.Context, groups GroupLister, c Conn, userID string) (int, error) {
	gs, err := groups.ListByMember(ctx, userID)
	if err != nil {
		return 0, fmt.Errorf("list groups for %s: %w", userID, err)
	}
	for _, g := range gs {
		r.Subscribe(c, g.ID)
	}
	return len(gs), nil
}

// Subscribe adds c to room. It reports whether c was not subscribed before.
func (r *Rooms) Subscribe(c Conn, room string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	members := r.rooms[room]
	if members == nil {
		members = make(map[string]Conn)
		r.rooms[room] = members
	}
	if _, ok := members[c.ID()]; ok {
		return false
	}
	members[c.ID()] = c

	joined := r.byConn[c.ID()]
	if joined == nil {
		joined = make(map[string]struct{})
		r.byConn[c.ID()] = joined
	}
	joined[room] = struct{}{}
	return true
}

// Unsubscribe removes c from room. It reports whether c was subscribed.
func (r *Rooms) Unsubscribe(c Conn, room string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.unsubscribeLocked(c.ID(), room)
}

func (r *Rooms) unsubscribeLocked(connID, room string) bool {
	members, ok := r.rooms[room]
	if !ok {
		return false
	}
	if _, ok := members[connID]; !ok {
		return false
	}
	delete(members, connID)
	if len(members) == 0 {
		delete(r.rooms, room)
	}
	if joined, ok := r.byConn[connID]; ok {
		delete(joined, room)
		if len(joined) == 0 {
			delete(r.byConn, connID)
		}
	}
	return true
}

// Leave removes c from every room and returns the rooms it left.
func (r *Rooms) Leave(c Conn) []string {
	r.mu.Lock()
	defer r.mu.Unlock()

	joined := r.byConn[c.ID()]
	left := make([]string, 0, len(joined))
	for room := range joined {
		left = append(left, room)
	}
	for _, room := range left {
		r.unsubscribeLocked(c.ID(), room)
	}
	return left
}

// Drop removes room entirely, returning the connections that were in it.
func (r *Rooms) Drop(room string) []Conn {
	r.mu.Lock()
	defer r.mu.Unlock()

	members := r.rooms[room]
	out := make([]Conn, 0, len(members))
	for id, c := range members {
		out = append(out, c)
		if joined, ok := r.byConn[id]; ok {
			delete(joined, room)
			if len(joined) == 0 {
				delete(r.byConn, id)
			}
		}
	}
	delete(r.rooms, room)
	return out
}

// IsSubscribed reports whether c is in room.
func (r *Rooms) IsSubscribed(c Conn, room string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.rooms[room][c.ID()]
	return ok
}

// Members returns a snapshot of the connections subscribed to room.
func (r *Rooms) Members(room string) []Conn {
	r.mu.RLock()
	defer r.mu.RUnlock()

	members := r.rooms[room]
	out := make([]Conn, 0, len(members))
	for _, c := range members {
		out = append(out, c)
	}
	return out
}

// RoomsOf returns the rooms c is subscribed to.
func (r *Rooms) RoomsOf(c Conn) []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	joined := r.byConn[c.ID()]
	out := make([]string, 0, len(joined))
	for room := range joined {
		out = append(out, room)
	}
	return out
}

// Broadcast sends ev to every connection in room except the one with id
// exceptID, and returns how many connections it was handed to. The member
// set is snapshotted before sending so no lock is held during Send.
func (r *Rooms) Broadcast(room string, ev Outbound, exceptID string, onErr func(Conn, error)) int {
	sent := 0
	for _, c := range r.Members(room) {
		if c.ID() == exceptID {
			continue
		}
		if err := c.Send(ev); err != nil {
			if onErr != nil {
				onErr(c, err)
			}
			continue
		}
		sent++
	}
	return sent
}
