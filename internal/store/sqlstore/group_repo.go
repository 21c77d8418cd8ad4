package sqlstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"chat_backend/internal/domain"
)

type GroupRepo struct {
	db  *sql.DB
	q   func(string) string
	now func() time.Time
}

var _ domain.GroupRepository = (*GroupRepo)(nil)

func (r *GroupRepo) Create(ctx context.Context, g *domain.Group) error {
	if g.CreatedAt.IsZero() {
		g.CreatedAt = r.now().UTC()
	}
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, r.q(`
		INSERT INTO chat_groups (id, name, admin_id, profile_pic, created_at)
		VALUES (?, ?, ?, ?, ?)
	`), g.ID, g.Name, g.AdminID, g.ProfilePic, g.CreatedAt); err != nil {
		return fmt.Errorf("insert group: %w", err)
	}
	if err := r.insertMembers(ctx, tx, g); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

func (r *GroupRepo) insertMembers(ctx context.Context, tx *sql.Tx, g *domain.Group) error {
	for i, uid := range g.Members {
		if _, err := tx.ExecContext(ctx, r.q(`
			INSERT INTO group_members (group_id, user_id, seq) VALUES (?, ?, ?)
		`), g.ID, uid, i); err != nil {
			return fmt.Errorf("insert member: %w", err)
		}
	}
	return nil
}

func (r *GroupRepo) members(ctx context.Context, groupID string) ([]string, error) {
	rows, err := r.db.QueryContext(ctx, r.q(`
		SELECT user_id FROM group_members WHERE group_id = ? ORDER BY seq ASC
	`), groupID)
	if err != nil {
		return nil, fmt.Errorf("list members: %w", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan member: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

func (r *GroupRepo) GetByID(ctx context.Context, id string) (*domain.Group, error) {
	g := &domain.Group{}
	err := r.db.QueryRowContext(ctx, r.q(`
		SELECT id, name, admin_id, profile_pic, created_at FROM chat_groups WHERE id = ?
	`), id).Scan(&g.ID, &g.Name, &g.AdminID, &g.ProfilePic, &g.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get group: %w", err)
	}
	if g.Members, err = r.members(ctx, g.ID); err != nil {
		return nil, err
	}
	return g, nil
}

func (r *GroupRepo) ListByMember(ctx context.Context, userID string) ([]*domain.Group, error) {
	rows, err := r.db.QueryContext(ctx, r.q(`
		SELECT g.id, g.name, g.admin_id, g.profile_pic, g.created_at
		FROM chat_groups g
		JOIN group_members m ON m.group_id = g.id
		WHERE m.user_id = ?
		ORDER BY g.created_at ASC, g.id ASC
	`), userID)
	if err != nil {
		return nil, fmt.Errorf("list groups: %w", err)
	}

	var groups []*domain.Group
	for rows.Next() {
		g := &domain.Group{}
		if err := rows.Scan(&g.ID, &g.Name, &g.AdminID, &g.ProfilePic, &g.CreatedAt); err != nil {
			rows.Close()
			return nil, fmt.Errorf("scan group: %w", err)
		}
		groups = append(groups, g)
	}
	err = rows.Err()
	rows.Close()
	if err != nil {
		return nil, fmt.Errorf("list groups: %w", err)
	}

	for _, g := range groups {
		if g.Members, err = r.members(ctx, g.ID); err != nil {
			return nil, err
		}
	}
	return groups, nil
}

func (r *GroupRepo) Update(ctx context.Context, g *domain.Group) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx, r.q(`
		UPDATE chat_groups SET name = ?, admin_id = ?, profile_pic = ? WHERE id = ?
	`), g.Name, g.AdminID, g.ProfilePic, g.ID)
	if err != nil {
		return fmt.Errorf("update group: %w", err)
	}
	if n, err := res.RowsAffected(); err != nil {
		return fmt.Errorf("rows affected: %w", err)
	} else if n == 0 {
		return domain.ErrNotFound
	}

	if _, err := tx.ExecContext(ctx, r.q(`DELETE FROM group_members WHERE group_id = ?`), g.ID); err != nil {
		return fmt.Errorf("clear members: %w", err)
	}
	if err := r.insertMembers(ctx, tx, g); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

func (r *GroupRepo) Delete(ctx context.Context, id string) (bool, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return false, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, r.q(`DELETE FROM group_members WHERE group_id = ?`), id); err != nil {
		return false, fmt.Errorf("delete members: %w", err)
	}
	res, err := tx.ExecContext(ctx, r.q(`DELETE FROM chat_groups WHERE id = ?`), id)
	if err != nil {
		return false, fmt.Errorf("delete group: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("rows affected: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return false, fmt.Errorf("commit: %w", err)
	}
	return n > 0, nil
}
