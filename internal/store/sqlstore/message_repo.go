package sqlstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"chat_backend/internal/domain"
)

const messageColumns = `id, sender_id, receiver_id, group_id, text, image, status, is_edited, created_at, updated_at`

type MessageRepo struct {
	db  *sql.DB
	q   func(string) string
	now func() time.Time
}

var _ domain.MessageRepository = (*MessageRepo)(nil)

type rowScanner interface {
	Scan(dest ...any) error
}

func scanMessage(row rowScanner) (*domain.Message, error) {
	m := &domain.Message{}
	var status string
	if err := row.Scan(
		&m.ID,
		&m.SenderID,
		&m.ReceiverID,
		&m.GroupID,
		&m.Text,
		&m.Image,
		&status,
		&m.IsEdited,
		&m.CreatedAt,
		&m.UpdatedAt,
	); err != nil {
		return nil, err
	}
	m.Status = domain.MessageStatus(status)
	return m, nil
}

// scanOne maps sql.ErrNoRows to (nil, nil).
func scanOne(row *sql.Row, what string) (*domain.Message, error) {
	m, err := scanMessage(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("%s: %w", what, err)
	}
	return m, nil
}

func (r *MessageRepo) Create(ctx context.Context, m *domain.Message) error {
	if m.CreatedAt.IsZero() {
		m.CreatedAt = r.now().UTC()
	}
	if m.UpdatedAt.IsZero() {
		m.UpdatedAt = m.CreatedAt
	}
	if m.Status == "" {
		m.Status = domain.StatusSent
	}
	_, err := r.db.ExecContext(ctx, r.q(`
		INSERT INTO messages (`+messageColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`),
		m.ID,
		m.SenderID,
		m.ReceiverID,
		m.GroupID,
		m.Text,
		m.Image,
		string(m.Status),
		m.IsEdited,
		m.CreatedAt,
		m.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert message: %w", err)
	}
	return nil
}

func (r *MessageRepo) GetByID(ctx context.Context, id string) (*domain.Message, error) {
	row := r.db.QueryRowContext(ctx, r.q(`SELECT `+messageColumns+` FROM messages WHERE id = ?`), id)
	return scanOne(row, "get message")
}

func (r *MessageRepo) list(ctx context.Context, query string, args ...any) ([]*domain.Message, error) {
	rows, err := r.db.QueryContext(ctx, r.q(query), args...)
	if err != nil {
		return nil, fmt.Errorf("list messages: %w", err)
	}
	defer rows.Close()

	var res []*domain.Message
	for rows.Next() {
		m, err := scanMessage(rows)
		if err != nil {
			return nil, fmt.Errorf("scan message: %w", err)
		}
		res = append(res, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list messages: %w", err)
	}
	return res, nil
}

func (r *MessageRepo) ListByPeer(ctx context.Context, userID, peerID string) ([]*domain.Message, error) {
	return r.list(ctx, `
		SELECT `+messageColumns+`
		FROM messages
		WHERE group_id = ''
		  AND ((sender_id = ? AND receiver_id = ?) OR (sender_id = ? AND receiver_id = ?))
		ORDER BY created_at ASC, id ASC
	`, userID, peerID, peerID, userID)
}

func (r *MessageRepo) ListByGroup(ctx context.Context, groupID string) ([]*domain.Message, error) {
	return r.list(ctx, `
		SELECT `+messageColumns+`
		FROM messages
		WHERE group_id = ?
		ORDER BY created_at ASC, id ASC
	`, groupID)
}

// statusRank mirrors domain.MessageStatus.Rank in SQL so the forward-only
// rule holds even under concurrent writers.
const statusRank = `CASE status WHEN 'sent' THEN 1 WHEN 'delivered' THEN 2 WHEN 'read' THEN 3 ELSE 0 END`

func (r *MessageRepo) UpdateStatus(ctx context.Context, id string, status domain.MessageStatus) (bool, error) {
	res, err := r.db.ExecContext(ctx, r.q(`
		UPDATE messages SET status = ?, updated_at = ?
		WHERE id = ? AND group_id = '' AND `+statusRank+` < ?
	`), string(status), r.now().UTC(), id, status.Rank())
	if err != nil {
		return false, fmt.Errorf("update status: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("rows affected: %w", err)
	}
	return n > 0, nil
}

func (r *MessageRepo) MarkReadFrom(ctx context.Context, senderID, receiverID string) (int64, error) {
	res, err := r.db.ExecContext(ctx, r.q(`
		UPDATE messages SET status = ?, updated_at = ?
		WHERE sender_id = ? AND receiver_id = ? AND group_id = '' AND status <> ?
	`), string(domain.StatusRead), r.now().UTC(), senderID, receiverID, string(domain.StatusRead))
	if err != nil {
		return 0, fmt.Errorf("mark read: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("rows affected: %w", err)
	}
	return n, nil
}

func (r *MessageRepo) UpdateText(ctx context.Context, id, text string) (*domain.Message, error) {
	row := r.db.QueryRowContext(ctx, r.q(`
		UPDATE messages SET text = ?, is_edited = ?, updated_at = ?
		WHERE id = ?
		RETURNING `+messageColumns), text, true, r.now().UTC(), id)
	return scanOne(row, "update text")
}

func (r *MessageRepo) Delete(ctx context.Context, id string) (*domain.Message, error) {
	row := r.db.QueryRowContext(ctx, r.q(`DELETE FROM messages WHERE id = ? RETURNING `+messageColumns), id)
	return scanOne(row, "delete message")
}
