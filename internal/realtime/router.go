package realtime

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"chat_backend/internal/domain"
)

// Router is the single dispatch point of the core. Transports feed it
// inbound events per connection; it computes the fan-out set from the
// presence registry and the room manager and applies state transitions
// through Delivery.
//
// Persistence happens before fan-out. If the store write fails the event is
// dropped and nothing is broadcast.
type Router struct {
	log      *slog.Logger
	presence *Registry
	rooms    *Rooms
	delivery *Delivery
	typing   *TypingRelay
	groups   domain.GroupRepository
}

// Options tune the router.
type Options struct {
	MaxTextChars int
}

func NewRouter(store domain.Store, logger *slog.Logger, opts Options) *Router {
	if logger == nil {
		logger = slog.Default()
	}
	presence := NewRegistry()
	rooms := NewRooms()
	return &Router{
		log:      logger,
		presence: presence,
		rooms:    rooms,
		delivery: NewDelivery(store.Messages(), presence, opts.MaxTextChars),
		typing:   NewTypingRelay(presence, rooms),
		groups:   store.Groups(),
	}
}

func (r *Router) Presence() *Registry { return r.presence }
func (r *Router) Rooms() *Rooms       { return r.rooms }
func (r *Router) Delivery() *Delivery { return r.delivery }

// Handle processes one inbound event from c to completion. The returned
// error explains why an event was dropped; it is never sent back to c.
func (r *Router) Handle(ctx context.Context, c Conn, ev Inbound) error {
	switch e := ev.(type) {
	case Connect:
		return r.connect(ctx, c, e.UserID)
	case Disconnect:
		r.disconnect(c)
		return nil
	}

	userID, ok := r.presence.UserOf(c)
	if !ok {
		return fmt.Errorf("%T: %w", ev, ErrAnonymous)
	}

	switch e := ev.(type) {
	case SendDirect:
		if e.SenderID != "" && e.SenderID != userID {
			return fmt.Errorf("%w: senderId does not match connection", domain.ErrForbidden)
		}
		_, err := r.SendDirect(ctx, userID, e.ReceiverID, e.Text, e.Image)
		return err
	case SendGroup:
		if e.SenderID != "" && e.SenderID != userID {
			return fmt.Errorf("%w: senderId does not match connection", domain.ErrForbidden)
		}
		_, err := r.sendGroup(ctx, userID, c.ID(), e.GroupID, e.Text, e.Image)
		return err
	case Typing:
		_, err := r.typing.Relay(c, userID, e)
		return err
	case MarkRead:
		return r.markRead(ctx, userID, e)
	case EditMessage:
		return r.edit(ctx, userID, e)
	case DeleteMessage:
		return r.delete(ctx, userID, e)
	case JoinRoom:
		return r.joinRoom(ctx, c, userID, e.RoomID)
	default:
		return fmt.Errorf("%w: unhandled event %T", ErrMalformedEvent, ev)
	}
}

func (r *Router) connect(ctx context.Context, c Conn, userID string) error {
	if IsAnonymous(userID) {
		r.presence.Attach(c)
		r.emit(c, OnlineUsers{UserIDs: r.presence.Snapshot()})
		r.log.Debug("anonymous connection attached", "conn", c.ID())
		return nil
	}

	if prev, displaced := r.presence.Register(userID, c); displaced {
		r.log.Debug("connection displaced", "user", userID, "conn", prev, "by", c.ID())
	}
	n, err := r.rooms.SyncOnConnect(ctx, r.groups, c, userID)
	r.broadcastPresence()
	if err != nil {
		return fmt.Errorf("sync rooms: %w", err)
	}
	r.log.Info("user connected", "user", userID, "conn", c.ID(), "rooms", n)
	return nil
}

func (r *Router) disconnect(c Conn) {
	left := r.rooms.Leave(c)
	userID, removed := r.presence.Unregister(c)
	r.broadcastPresence()
	if removed {
		r.log.Info("user disconnected", "user", userID, "conn", c.ID(), "rooms", len(left))
	}
}

func (r *Router) broadcastPresence() {
	ev := OnlineUsers{UserIDs: r.presence.Snapshot()}
	for _, c := range r.presence.Connections() {
		r.emit(c, ev)
	}
}

// SendDirect persists a direct message from senderID and pushes it to the
// recipient's connection when there is one.
func (r *Router) SendDirect(ctx context.Context, senderID, receiverID, text, image string) (*domain.Message, error) {
	m := &domain.Message{SenderID: senderID, ReceiverID: receiverID, Text: text, Image: image}
	if err := r.delivery.OnCreate(ctx, m); err != nil {
		return nil, err
	}
	if peer, ok := r.presence.Lookup(receiverID); ok {
		r.emit(peer, NewDirectMessage{Message: m})
	}
	return m, nil
}

// SendGroup persists a group message and broadcasts it to the group's room,
// leaving out the sender's own reachable connection.
func (r *Router) SendGroup(ctx context.Context, senderID, groupID, text, image string) (*domain.Message, error) {
	except := ""
	if c, ok := r.presence.Lookup(senderID); ok {
		except = c.ID()
	}
	return r.sendGroup(ctx, senderID, except, groupID, text, image)
}

func (r *Router) sendGroup(ctx context.Context, senderID, exceptConn, groupID, text, image string) (*domain.Message, error) {
	g, err := r.groups.GetByID(ctx, groupID)
	if err != nil {
		return nil, fmt.Errorf("get group: %w", err)
	}
	if g == nil {
		return nil, fmt.Errorf("group %s: %w", groupID, domain.ErrNotFound)
	}
	if !g.HasMember(senderID) {
		return nil, fmt.Errorf("group %s: %w", groupID, ErrNotMember)
	}

	m := &domain.Message{SenderID: senderID, GroupID: groupID, Text: text, Image: image}
	if err := r.delivery.OnCreate(ctx, m); err != nil {
		return nil, err
	}
	r.rooms.Broadcast(groupID, NewRoomMessage{Message: m}, exceptConn, r.logSendErr)
	return m, nil
}

func (r *Router) markRead(ctx context.Context, readerID string, e MarkRead) error {
	n, err := r.delivery.OnMarkRead(ctx, readerID, e.PeerID)
	if err != nil {
		return err
	}
	r.log.Debug("messages read", "reader", readerID, "peer", e.PeerID, "count", n)
	if peer, ok := r.presence.Lookup(e.PeerID); ok {
		r.emit(peer, ReadReceipt{ConversationID: e.ConversationID, ReaderID: readerID})
	}
	return nil
}

func (r *Router) edit(ctx context.Context, userID string, e EditMessage) error {
	m, err := r.delivery.OnEdit(ctx, userID, e.MessageID, e.NewText)
	if err != nil || m == nil {
		return err
	}
	r.fanOut(m, MessageUpdated{Message: m})
	return nil
}

func (r *Router) delete(ctx context.Context, userID string, e DeleteMessage) error {
	m, err := r.delivery.OnDelete(ctx, userID, e.MessageID)
	if err != nil || m == nil {
		return err
	}
	r.fanOut(m, MessageDeleted{MessageID: m.ID, GroupID: m.GroupID})
	return nil
}

// fanOut delivers a mutation notice for m: the whole room for a group
// message, otherwise the sender's and receiver's connections individually.
func (r *Router) fanOut(m *domain.Message, ev Outbound) {
	if m.IsGroup() {
		r.rooms.Broadcast(m.GroupID, ev, "", r.logSendErr)
		return
	}
	targets := []string{m.ReceiverID}
	if m.SenderID != m.ReceiverID {
		targets = append(targets, m.SenderID)
	}
	for _, uid := range targets {
		if c, ok := r.presence.Lookup(uid); ok {
			r.emit(c, ev)
		}
	}
}

func (r *Router) joinRoom(ctx context.Context, c Conn, userID, roomID string) error {
	g, err := r.groups.GetByID(ctx, roomID)
	if err != nil {
		return fmt.Errorf("get group: %w", err)
	}
	if g == nil {
		return nil
	}
	if !g.HasMember(userID) {
		return fmt.Errorf("room %s: %w", roomID, ErrNotMember)
	}
	r.rooms.Subscribe(c, g.ID)
	return nil
}

// GroupCreated subscribes the reachable connections of g's members to its
// room and tells them about the new group.
func (r *Router) GroupCreated(ctx context.Context, g *domain.Group) {
	r.syncMembers(g, ChangeCreated, g.Members)
}

// GroupUpdated re-applies membership for g: current members are subscribed
// and told about the update, removed members are unsubscribed and told the
// group is gone for them.
func (r *Router) GroupUpdated(ctx context.Context, g *domain.Group, removed []string) {
	r.syncMembers(g, ChangeUpdated, g.Members)
	for _, uid := range removed {
		c, ok := r.presence.Lookup(uid)
		if !ok {
			continue
		}
		r.rooms.Unsubscribe(c, g.ID)
		r.emit(c, RoomMembershipChanged{Change: ChangeDeleted, GroupID: g.ID})
	}
}

// GroupDeleted notifies reachable members and drops the room.
func (r *Router) GroupDeleted(ctx context.Context, g *domain.Group) {
	ev := RoomMembershipChanged{Change: ChangeDeleted, GroupID: g.ID}
	notified := make(map[string]struct{})
	for _, uid := range g.Members {
		if c, ok := r.presence.Lookup(uid); ok {
			r.emit(c, ev)
			notified[c.ID()] = struct{}{}
		}
	}
	for _, c := range r.rooms.Drop(g.ID) {
		if _, ok := notified[c.ID()]; !ok {
			r.emit(c, ev)
		}
	}
}

func (r *Router) syncMembers(g *domain.Group, change MembershipChange, members []string) {
	ev := RoomMembershipChanged{Change: change, GroupID: g.ID, Group: g}
	for _, uid := range members {
		c, ok := r.presence.Lookup(uid)
		if !ok {
			continue
		}
		r.rooms.Subscribe(c, g.ID)
		r.emit(c, ev)
	}
}

// Shutdown closes every live connection. Transports observe the close and
// raise Disconnect as usual.
func (r *Router) Shutdown() {
	for _, c := range r.presence.Connections() {
		if err := c.Close(); err != nil && !errors.Is(err, ErrConnClosed) {
			r.log.Warn("close connection", "conn", c.ID(), "err", err)
		}
	}
}

func (r *Router) emit(c Conn, ev Outbound) {
	if err := c.Send(ev); err != nil {
		r.logSendErr(c, err)
	}
}

func (r *Router) logSendErr(c Conn, err error) {
	r.log.Warn("drop outbound event", "conn", c.ID(), "err", err)
}
