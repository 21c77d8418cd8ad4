package domain

import (
	"context"
)

// MessageRepository defines persistence operations for messages.
//
// Single-row reads return (nil, nil) when the row does not exist. Mutations
// on a missing row return a nil message or false rather than an error.
type MessageRepository interface {
	Create(ctx context.Context, m *Message) error
	GetByID(ctx context.Context, id string) (*Message, error)
	ListByPeer(ctx context.Context, userID, peerID string) ([]*Message, error)
	ListByGroup(ctx context.Context, groupID string) ([]*Message, error)
	// UpdateStatus moves a message to status only if that is a forward
	// transition. It reports whether a row changed.
	UpdateStatus(ctx context.Context, id string, status MessageStatus) (bool, error)
	// MarkReadFrom advances every direct message from senderID to receiverID
	// that is not yet read and returns how many rows changed.
	MarkReadFrom(ctx context.Context, senderID, receiverID string) (int64, error)
	UpdateText(ctx context.Context, id, text string) (*Message, error)
	Delete(ctx context.Context, id string) (*Message, error)
}

// GroupRepository defines persistence operations for groups and membership.
type GroupRepository interface {
	Create(ctx context.Context, g *Group) error
	GetByID(ctx context.Context, id string) (*Group, error)
	ListByMember(ctx context.Context, userID string) ([]*Group, error)
	Update(ctx context.Context, g *Group) error
	Delete(ctx context.Context, id string) (bool, error)
}

// Store bundles the repositories of one backing database.
type Store interface {
	Messages() MessageRepository
	Groups() GroupRepository
	Close() error
}
