package realtime

import (
	"encoding/json"
	"fmt"
	"strings"

	"chat_backend/internal/domain"
)

// Wire names of inbound events.
const (
	evSendDirect  = "send-direct"
	evSendGroup   = "send-group"
	evTypingStart = "typing-start"
	evTypingStop  = "typing-stop"
	evMarkRead    = "mark-read"
	evEditMessage = "edit-message"
	evDelete      = "delete-message"
	evJoinRoom    = "join-room"
)

// Inbound is the closed set of events a connection can feed into the router.
// Every implementation lives in this file; Router.Handle switches over all of
// them.
type Inbound interface {
	inbound()
}

// Connect is raised by the transport once a connection is upgraded. UserID is
// empty (or a sentinel) for anonymous connections.
type Connect struct {
	UserID string
}

// Disconnect is raised by the transport when the connection goes away.
type Disconnect struct{}

type SendDirect struct {
	SenderID   string `json:"senderId"`
	ReceiverID string `json:"receiverId"`
	Text       string `json:"text"`
	Image      string `json:"image"`
}

type SendGroup struct {
	SenderID string `json:"senderId"`
	GroupID  string `json:"groupId"`
	Text     string `json:"text"`
	Image    string `json:"image"`
}

// Typing carries both typing-start and typing-stop. PeerID is set for direct
// conversations and empty for group ones, in which case ConversationID is
// the group (room) identity.
type Typing struct {
	ConversationID string `json:"conversationId"`
	PeerID         string `json:"peerId"`
	Active         bool   `json:"-"`
}

type MarkRead struct {
	ConversationID string `json:"conversationId"`
	PeerID         string `json:"peerId"`
}

type EditMessage struct {
	MessageID string `json:"messageId"`
	NewText   string `json:"newText"`
}

type DeleteMessage struct {
	MessageID string `json:"messageId"`
}

type JoinRoom struct {
	RoomID string `json:"roomId"`
}

func (Connect) inbound()       {}
func (Disconnect) inbound()    {}
func (SendDirect) inbound()    {}
func (SendGroup) inbound()     {}
func (Typing) inbound()        {}
func (MarkRead) inbound()      {}
func (EditMessage) inbound()   {}
func (DeleteMessage) inbound() {}
func (JoinRoom) inbound()      {}

type frame struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// DecodeInbound parses one wire frame of the form {"type": ..., "payload": ...}.
// Connect and Disconnect are lifecycle events and cannot arrive on the wire.
func DecodeInbound(data []byte) (Inbound, error) {
	var f frame
	if err := json.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedEvent, err)
	}

	var (
		ev     Inbound
		target any
	)
	switch f.Type {
	case evSendDirect:
		v := &SendDirect{}
		target, ev = v, v
	case evSendGroup:
		v := &SendGroup{}
		target, ev = v, v
	case evTypingStart, evTypingStop:
		v := &Typing{Active: f.Type == evTypingStart}
		target, ev = v, v
	case evMarkRead:
		v := &MarkRead{}
		target, ev = v, v
	case evEditMessage:
		v := &EditMessage{}
		target, ev = v, v
	case evDelete:
		v := &DeleteMessage{}
		target, ev = v, v
	case evJoinRoom:
		v := &JoinRoom{}
		target, ev = v, v
	default:
		return nil, fmt.Errorf("%w: unknown event type %q", ErrMalformedEvent, f.Type)
	}

	if len(f.Payload) == 0 {
		return nil, fmt.Errorf("%w: %s without payload", ErrMalformedEvent, f.Type)
	}
	if err := json.Unmarshal(f.Payload, target); err != nil {
		return nil, fmt.Errorf("%w: %s payload: %v", ErrMalformedEvent, f.Type, err)
	}
	if err := validate(ev); err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrMalformedEvent, f.Type, err)
	}
	return deref(ev), nil
}

func validate(ev Inbound) error {
	switch e := ev.(type) {
	case *SendDirect:
		if strings.TrimSpace(e.ReceiverID) == "" {
			return fmt.Errorf("receiverId is required")
		}
		if e.Text == "" && e.Image == "" {
			return fmt.Errorf("text or image is required")
		}
	case *SendGroup:
		if strings.TrimSpace(e.GroupID) == "" {
			return fmt.Errorf("groupId is required")
		}
		if e.Text == "" && e.Image == "" {
			return fmt.Errorf("text or image is required")
		}
	case *Typing:
		if e.ConversationID == "" && e.PeerID == "" {
			return fmt.Errorf("conversationId or peerId is required")
		}
	case *MarkRead:
		if e.PeerID == "" {
			return fmt.Errorf("peerId is required")
		}
	case *EditMessage:
		if e.MessageID == "" || e.NewText == "" {
			return fmt.Errorf("messageId and newText are required")
		}
	case *DeleteMessage:
		if e.MessageID == "" {
			return fmt.Errorf("messageId is required")
		}
	case *JoinRoom:
		if e.RoomID == "" {
			return fmt.Errorf("roomId is required")
		}
	}
	return nil
}

// deref turns the pointer used for unmarshalling back into a value variant.
func deref(ev Inbound) Inbound {
	switch e := ev.(type) {
	case *SendDirect:
		return *e
	case *SendGroup:
		return *e
	case *Typing:
		return *e
	case *MarkRead:
		return *e
	case *EditMessage:
		return *e
	case *DeleteMessage:
		return *e
	case *JoinRoom:
		return *e
	}
	return ev
}

// Outbound is the closed set of events the core emits to connections.
type Outbound interface {
	Type() string
}

// OnlineUsers is the full snapshot of identified, reachable users.
type OnlineUsers struct {
	UserIDs []string `json:"userIds"`
}

type NewDirectMessage struct {
	Message *domain.Message `json:"message"`
}

type NewRoomMessage struct {
	Message *domain.Message `json:"message"`
}

type TypingSignal struct {
	ConversationID string `json:"conversationId"`
	SenderID       string `json:"senderId"`
	Active         bool   `json:"active"`
}

// ReadReceipt tells a sender that ReaderID has read the conversation.
type ReadReceipt struct {
	ConversationID string `json:"conversationId"`
	ReaderID       string `json:"readerId"`
}

type MessageUpdated struct {
	Message *domain.Message `json:"message"`
}

type MessageDeleted struct {
	MessageID string `json:"messageId"`
	GroupID   string `json:"groupId,omitempty"`
}

// MembershipChange names what happened to a group.
type MembershipChange string

const (
	ChangeCreated MembershipChange = "created"
	ChangeUpdated MembershipChange = "updated"
	ChangeDeleted MembershipChange = "deleted"
)

type RoomMembershipChanged struct {
	Change  MembershipChange `json:"change"`
	GroupID string           `json:"groupId"`
	Group   *domain.Group    `json:"group,omitempty"`
}

func (OnlineUsers) Type() string      { return "online-users" }
func (NewDirectMessage) Type() string { return "new-direct-message" }
func (NewRoomMessage) Type() string   { return "new-room-message" }
func (ReadReceipt) Type() string      { return "read-receipt" }
func (MessageUpdated) Type() string   { return "message-updated" }
func (MessageDeleted) Type() string   { return "message-deleted" }

func (RoomMembershipChanged) Type() string { return "room-membership-changed" }

func (t TypingSignal) Type() string {
	if t.Active {
		return evTypingStart
	}
	return evTypingStop
}

// EncodeOutbound renders an outbound event as a wire frame.
func EncodeOutbound(ev Outbound) ([]byte, error) {
	payload, err := json.Marshal(ev)
	if err != nil {
		return nil, fmt.Errorf("encode %s: %w", ev.Type(), err)
	}
	return json.Marshal(frame{Type: ev.Type(), Payload: payload})
}
