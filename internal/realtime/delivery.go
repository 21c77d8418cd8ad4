package realtime

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"chat_backend/internal/domain"
)

// Delivery owns the status lifecycle of messages (sent -> delivered -> read)
// and the edit/delete mutation path. The store holds the authoritative copy;
// Delivery only decides transitions.
type Delivery struct {
	messages domain.MessageRepository
	presence *Registry

	// MaxTextChars bounds message text in runes. Zero disables the check.
	MaxTextChars int

	newID func() string
	now   func() time.Time
}

func NewDelivery(messages domain.MessageRepository, presence *Registry, maxTextChars int) *Delivery {
	return &Delivery{
		messages:     messages,
		presence:     presence,
		MaxTextChars: maxTextChars,
		newID:        uuid.NewString,
		now:          time.Now,
	}
}

func (d *Delivery) checkText(text string) error {
	if d.MaxTextChars > 0 && len([]rune(text)) > d.MaxTextChars {
		return fmt.Errorf("%w: text exceeds %d characters", domain.ErrInvalidInput, d.MaxTextChars)
	}
	return nil
}

// OnCreate assigns an identity and initial status to m and persists it. A
// direct message starts as delivered when its recipient is reachable right
// now and as sent otherwise. Group messages keep the nominal sent status.
func (d *Delivery) OnCreate(ctx context.Context, m *domain.Message) error {
	if m.Text == "" && m.Image == "" {
		return fmt.Errorf("%w: message needs text or image", domain.ErrInvalidInput)
	}
	if (m.ReceiverID == "") == (m.GroupID == "") {
		return fmt.Errorf("%w: message needs exactly one of receiver or group", domain.ErrInvalidInput)
	}
	if err := d.checkText(m.Text); err != nil {
		return err
	}

	if m.ID == "" {
		m.ID = d.newID()
	}
	m.Status = domain.StatusSent
	if !m.IsGroup() {
		if _, ok := d.presence.Lookup(m.ReceiverID); ok {
			m.Status = domain.StatusDelivered
		}
	}
	m.IsEdited = false
	now := d.now().UTC()
	m.CreatedAt, m.UpdatedAt = now, now

	if err := d.messages.Create(ctx, m); err != nil {
		return fmt.Errorf("create message: %w", err)
	}
	return nil
}

// Advance moves a direct message forward to status. Backward or repeated
// transitions are ignored and reported as false.
func (d *Delivery) Advance(ctx context.Context, messageID string, status domain.MessageStatus) (bool, error) {
	if !status.Valid() {
		return false, fmt.Errorf("%w: unknown status %q", domain.ErrInvalidInput, status)
	}
	changed, err := d.messages.UpdateStatus(ctx, messageID, status)
	if err != nil {
		return false, fmt.Errorf("update status: %w", err)
	}
	return changed, nil
}

// OnMarkRead marks every message counterpartID sent to readerID, and that is
// not read yet, as read in one bulk transition.
func (d *Delivery) OnMarkRead(ctx context.Context, readerID, counterpartID string) (int64, error) {
	n, err := d.messages.MarkReadFrom(ctx, counterpartID, readerID)
	if err != nil {
		return 0, fmt.Errorf("mark read: %w", err)
	}
	return n, nil
}

// OnEdit replaces the text of a message sent by editorID and flags it as
// edited. A message that no longer exists yields (nil, nil).
func (d *Delivery) OnEdit(ctx context.Context, editorID, messageID, text string) (*domain.Message, error) {
	if err := d.checkText(text); err != nil {
		return nil, err
	}
	m, err := d.owned(ctx, editorID, messageID)
	if err != nil || m == nil {
		return nil, err
	}
	updated, err := d.messages.UpdateText(ctx, messageID, text)
	if err != nil {
		return nil, fmt.Errorf("update text: %w", err)
	}
	return updated, nil
}

// OnDelete removes a message sent by deleterID from the store and returns the
// removed copy. A message that no longer exists yields (nil, nil).
func (d *Delivery) OnDelete(ctx context.Context, deleterID, messageID string) (*domain.Message, error) {
	m, err := d.owned(ctx, deleterID, messageID)
	if err != nil || m == nil {
		return nil, err
	}
	deleted, err := d.messages.Delete(ctx, messageID)
	if err != nil {
		return nil, fmt.Errorf("delete message: %w", err)
	}
	return deleted, nil
}

func (d *Delivery) owned(ctx context.Context, userID, messageID string) (*domain.Message, error) {
	m, err := d.messages.GetByID(ctx, messageID)
	if err != nil {
		return nil, fmt.Errorf("get message: %w", err)
	}
	if m == nil {
		return nil, nil
	}
	if m.SenderID != userID {
		return nil, fmt.Errorf("%w: message %s belongs to another sender", domain.ErrForbidden, messageID)
	}
	return m, nil
}
