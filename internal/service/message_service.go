package service

import (
	"context"
	"fmt"

	"chat_backend/internal/domain"
)

// MessageService serves conversation history. Sending and mutating messages
// goes through the realtime router so that fan-out happens.
type MessageService struct {
	messages domain.MessageRepository
	groups   domain.GroupRepository
}

func NewMessageService(messages domain.MessageRepository, groups domain.GroupRepository) *MessageService {
	return &MessageService{messages: messages, groups: groups}
}

// DirectHistory returns the messages exchanged between userID and peerID,
// oldest first.
func (s *MessageService) DirectHistory(ctx context.Context, userID, peerID string) ([]*domain.Message, error) {
	if peerID == "" {
		return nil, fmt.Errorf("%w: peer is required", domain.ErrInvalidInput)
	}
	msgs, err := s.messages.ListByPeer(ctx, userID, peerID)
	if err != nil {
		return nil, fmt.Errorf("list messages: %w", err)
	}
	return msgs, nil
}

// GroupHistory returns the messages of a group userID belongs to.
func (s *MessageService) GroupHistory(ctx context.Context, groupID, userID string) ([]*domain.Message, error) {
	g, err := s.groups.GetByID(ctx, groupID)
	if err != nil {
		return nil, fmt.Errorf("get group: %w", err)
	}
	if g == nil {
		return nil, domain.ErrNotFound
	}
	if !g.HasMember(userID) {
		return nil, domain.ErrForbidden
	}
	msgs, err := s.messages.ListByGroup(ctx, groupID)
	if err != nil {
		return nil, fmt.Errorf("list messages: %w", err)
	}
	return msgs, nil
}
