package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"chat_backend/internal/domain"
)

// MembershipNotifier is told about group changes after they are stored so
// that live connections can follow them. The realtime router implements it.
type MembershipNotifier interface {
	GroupCreated(ctx context.Context, g *domain.Group)
	GroupUpdated(ctx context.Context, g *domain.Group, removed []string)
	GroupDeleted(ctx context.Context, g *domain.Group)
}

type GroupService struct {
	groups   domain.GroupRepository
	notifier MembershipNotifier
	now      func() time.Time
	newID    func() string
}

func NewGroupService(groups domain.GroupRepository, notifier MembershipNotifier) *GroupService {
	return &GroupService{
		groups:   groups,
		notifier: notifier,
		now:      time.Now,
		newID:    uuid.NewString,
	}
}

type GroupInput struct {
	Name       string
	ProfilePic string
	Members    []string
}

// uniqueMembers puts first at the front and drops blanks and duplicates.
func uniqueMembers(first string, ids []string) []string {
	out := make([]string, 0, len(ids)+1)
	seen := map[string]struct{}{first: {}}
	out = append(out, first)
	for _, id := range ids {
		id = strings.TrimSpace(id)
		if id == "" {
			continue
		}
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}

// CreateGroup stores a new group administered by creatorID, who is always a
// member, then subscribes the members' live connections.
func (s *GroupService) CreateGroup(ctx context.Context, in GroupInput, creatorID string) (*domain.Group, error) {
	name := strings.TrimSpace(in.Name)
	if name == "" {
		return nil, fmt.Errorf("%w: group name is required", domain.ErrInvalidInput)
	}
	if creatorID == "" {
		return nil, fmt.Errorf("%w: creator is required", domain.ErrInvalidInput)
	}

	g := &domain.Group{
		ID:         s.newID(),
		Name:       name,
		AdminID:    creatorID,
		ProfilePic: in.ProfilePic,
		Members:    uniqueMembers(creatorID, in.Members),
		CreatedAt:  s.now().UTC(),
	}
	if err := s.groups.Create(ctx, g); err != nil {
		return nil, fmt.Errorf("create group: %w", err)
	}
	s.notifier.GroupCreated(ctx, g)
	return g, nil
}

func (s *GroupService) adminGroup(ctx context.Context, groupID, callerID string) (*domain.Group, error) {
	g, err := s.groups.GetByID(ctx, groupID)
	if err != nil {
		return nil, fmt.Errorf("get group: %w", err)
	}
	if g == nil {
		return nil, domain.ErrNotFound
	}
	if g.AdminID != callerID {
		return nil, domain.ErrForbidden
	}
	return g, nil
}

// UpdateGroup replaces the name, picture and member list of a group. Only
// the admin may do it and the admin stays a member.
func (s *GroupService) UpdateGroup(ctx context.Context, groupID string, in GroupInput, callerID string) (*domain.Group, error) {
	g, err := s.adminGroup(ctx, groupID, callerID)
	if err != nil {
		return nil, err
	}

	updated := *g
	if name := strings.TrimSpace(in.Name); name != "" {
		updated.Name = name
	}
	if in.ProfilePic != "" {
		updated.ProfilePic = in.ProfilePic
	}
	if in.Members != nil {
		updated.Members = uniqueMembers(g.AdminID, in.Members)
	}

	var removed []string
	for _, uid := range g.Members {
		if !updated.HasMember(uid) {
			removed = append(removed, uid)
		}
	}

	if err := s.groups.Update(ctx, &updated); err != nil {
		return nil, fmt.Errorf("update group: %w", err)
	}
	s.notifier.GroupUpdated(ctx, &updated, removed)
	return &updated, nil
}

func (s *GroupService) DeleteGroup(ctx context.Context, groupID, callerID string) error {
	g, err := s.adminGroup(ctx, groupID, callerID)
	if err != nil {
		return err
	}
	ok, err := s.groups.Delete(ctx, groupID)
	if err != nil {
		return fmt.Errorf("delete group: %w", err)
	}
	if !ok {
		return domain.ErrNotFound
	}
	s.notifier.GroupDeleted(ctx, g)
	return nil
}

func (s *GroupService) ListGroups(ctx context.Context, userID string) ([]*domain.Group, error) {
	return s.groups.ListByMember(ctx, userID)
}

// GetGroup returns the group if userID is a member of it.
func (s *GroupService) GetGroup(ctx context.Context, groupID, userID string) (*domain.Group, error) {
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
	return g, nil
}

// IsClientError reports whether err comes from bad input or missing rights
// rather than from the store.
func IsClientError(err error) bool {
	return errors.Is(err, domain.ErrInvalidInput) ||
		errors.Is(err, domain.ErrForbidden) ||
		errors.Is(err, domain.ErrNotFound) ||
		errors.Is(err, domain.ErrConflict)
}
