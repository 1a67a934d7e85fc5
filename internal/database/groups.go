package database

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"roombooking/internal/models"
)

// GetGroup returns a group with its members.
func (db *DB) GetGroup(ctx context.Context, id int64) (*models.Group, error) {
	var (
		g       models.Group
		created sql.NullTime
	)
	err := db.QueryRowContext(ctx, `SELECT id, name, created_at FROM study_groups WHERE id = ?`, id).
		Scan(&g.ID, &g.Name, &created)
	if err != nil {
		return nil, translate(err)
	}
	g.CreatedAt = created.Time

	members, err := db.groupMembers(ctx, []int64{id})
	if err != nil {
		return nil, err
	}
	g.Members = members[id]
	if g.Members == nil {
		g.Members = []string{}
	}
	return &g, nil
}

// GroupsForUser returns every group userCode belongs to.
func (db *DB) GroupsForUser(ctx context.Context, userCode string) ([]models.Group, error) {
	rows, err := db.QueryContext(ctx, `
		SELECT g.id, g.name, g.created_at FROM study_groups g
		JOIN group_members m ON m.group_id = g.id
		WHERE m.user_code = ?
		ORDER BY g.id`, userCode)
	if err != nil {
		return nil, fmt.Errorf("failed to query groups: %w", err)
	}
	defer rows.Close()

	groups := make([]models.Group, 0)
	ids := make([]int64, 0)
	for rows.Next() {
		var (
			g       models.Group
			created sql.NullTime
		)
		if err := rows.Scan(&g.ID, &g.Name, &created); err != nil {
			return nil, err
		}
		g.CreatedAt = created.Time
		groups = append(groups, g)
		ids = append(ids, g.ID)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	members, err := db.groupMembers(ctx, ids)
	if err != nil {
		return nil, err
	}
	for i := range groups {
		groups[i].Members = members[groups[i].ID]
	}
	return groups, nil
}

// CreateGroup creates a group whose first member is founderCode.
func (db *DB) CreateGroup(ctx context.Context, name, founderCode string) (*models.Group, error) {
	now := time.Now()
	g := &models.Group{Name: name, Members: []string{founderCode}, CreatedAt: now}
	err := db.withTx(ctx, func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx, `INSERT INTO study_groups (name, created_at) VALUES (?, ?)`, name, now)
		if err != nil {
			return err
		}
		if g.ID, err = res.LastInsertId(); err != nil {
			return err
		}
		_, err = tx.ExecContext(ctx, `INSERT INTO group_members (group_id, user_code) VALUES (?, ?)`, g.ID, founderCode)
		return translate(err)
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create group: %w", err)
	}
	return g, nil
}

// AddGroupMember adds userCode to a group. Capacity is enforced by the caller.
func (db *DB) AddGroupMember(ctx context.Context, groupID int64, userCode string) error {
	_, err := db.ExecContext(ctx, `INSERT INTO group_members (group_id, user_code) VALUES (?, ?)`, groupID, userCode)
	return translate(err)
}

func (db *DB) groupMembers(ctx context.Context, ids []int64) (map[int64][]string, error) {
	out := make(map[int64][]string, len(ids))
	if len(ids) == 0 {
		return out, nil
	}

	placeholders := strings.TrimSuffix(strings.Repeat("?,", len(ids)), ",")
	args := make([]interface{}, len(ids))
	for i, id := range ids {
		args[i] = id
	}
	rows, err := db.QueryContext(ctx, `
		SELECT group_id, user_code FROM group_members
		WHERE group_id IN (`+placeholders+`)
		ORDER BY joined_at, user_code`, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query group members: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			id   int64
			code string
		)
		if err := rows.Scan(&id, &code); err != nil {
			return nil, err
		}
		out[id] = append(out[id], code)
	}
	return out, rows.Err()
}
