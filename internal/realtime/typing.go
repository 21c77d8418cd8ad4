package realtime

import "fmt"

// TypingRelay forwards typing signals as they arrive. It keeps no state, has
// no timers and does not deduplicate; receivers expire stale indicators
// themselves.
type TypingRelay struct {
	presence *Registry
	rooms    *Rooms
}

func NewTypingRelay(presence *Registry, rooms *Rooms) *TypingRelay {
	return &TypingRelay{presence: presence, rooms: rooms}
}

// Relay sends sig from c (owned by senderID) to the peer of a direct
// conversation, or to the rest of the room for a group conversation. It
// returns how many connections received the signal.
func (t *TypingRelay) Relay(c Conn, senderID string, sig Typing) (int, error) {
	out := TypingSignal{ConversationID: sig.ConversationID, SenderID: senderID, Active: sig.Active}

	if sig.PeerID != "" {
		peer, ok := t.presence.Lookup(sig.PeerID)
		if !ok {
			return 0, nil
		}
		if err := peer.Send(out); err != nil {
			return 0, fmt.Errorf("relay typing to %s: %w", sig.PeerID, err)
		}
		return 1, nil
	}

	if !t.rooms.IsSubscribed(c, sig.ConversationID) {
		return 0, fmt.Errorf("%w: %s", ErrNotMember, sig.ConversationID)
	}
	return t.rooms.Broadcast(sig.ConversationID, out, c.ID(), nil), nil
}
