package domain

import "time"

// MessageStatus is the delivery lifecycle of a direct message.
type MessageStatus string

const (
	StatusSent      MessageStatus = "sent"
	StatusDelivered MessageStatus = "delivered"
	StatusRead      MessageStatus = "read"
)

// Rank orders statuses so that transitions can be checked for direction.
// Unknown values rank below sent.
func (s MessageStatus) Rank() int {
	switch s {
	case StatusSent:
		return 1
	case StatusDelivered:
		return 2
	case StatusRead:
		return 3
	}
	return 0
}

// Valid reports whether s is one of the known statuses.
func (s MessageStatus) Valid() bool { return s.Rank() > 0 }

// Advances reports whether moving from s to next is a forward transition.
func (s MessageStatus) Advances(next MessageStatus) bool {
	return next.Valid() && next.Rank() > s.Rank()
}

// Message is a chat message. Exactly one of ReceiverID and GroupID is set.
type Message struct {
	ID         string        `db:"id" json:"id"`
	SenderID   string        `db:"sender_id" json:"senderId"`
	ReceiverID string        `db:"receiver_id" json:"receiverId,omitempty"`
	GroupID    string        `db:"group_id" json:"groupId,omitempty"`
	Text       string        `db:"text" json:"text,omitempty"`
	Image      string        `db:"image" json:"image,omitempty"`
	Status     MessageStatus `db:"status" json:"status"`
	IsEdited   bool          `db:"is_edited" json:"isEdited"`
	CreatedAt  time.Time     `db:"created_at" json:"createdAt"`
	UpdatedAt  time.Time     `db:"updated_at" json:"updatedAt"`
}

// IsGroup reports whether the message is addressed to a group room.
func (m *Message) IsGroup() bool { return m.GroupID != "" }

// Group is a group conversation. Its ID doubles as the room identity.
type Group struct {
	ID         string    `db:"id" json:"id"`
	Name       string    `db:"name" json:"name"`
	AdminID    string    `db:"admin_id" json:"adminId"`
	ProfilePic string    `db:"profile_pic" json:"profilePic,omitempty"`
	Members    []string  `json:"members"`
	CreatedAt  time.Time `db:"created_at" json:"createdAt"`
}

// HasMember reports whether userID is in the group's member list.
func (g *Group) HasMember(userID string) bool {
	for _, m := range g.Members {
		if m == userID {
			return true
		}
	}
	return false
}
