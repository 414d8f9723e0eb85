package sqlstore

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/mmynk/groupsplit/internal/models"
)

type groupRow struct {
	ID          string         `db:"id"`
	Name        string         `db:"name"`
	Description sql.NullString `db:"description"`
	CreatedAt   int64          `db:"created_at"`
}

type memberRow struct {
	GroupID  string `db:"group_id"`
	UserID   string `db:"user_id"`
	Username string `db:"username"`
}

func (r *groupRow) toModel() *models.Group {
	return &models.Group{
		ID:          r.ID,
		Name:        r.Name,
		Description: r.Description.String,
		CreatedAt:   time.Unix(0, r.CreatedAt).UTC(),
		Members:     []models.UserRef{},
	}
}

func nullable(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

// CreateGroup inserts a group and its initial members in one transaction.
func (s *Store) CreateGroup(ctx context.Context, group *models.Group) error {
	if group.ID == "" {
		group.ID = uuid.New().String()
	}
	if group.CreatedAt.IsZero() {
		group.CreatedAt = time.Now().UTC()
	}

	return s.withTx(ctx, func(tx *Store) error {
		_, err := tx.exec(ctx,
			"INSERT INTO groups (id, name, description, created_at) VALUES (?, ?, ?, ?)",
			group.ID, group.Name, nullable(group.Description), group.CreatedAt.UnixNano(),
		)
		if err != nil {
			return fmt.Errorf("failed to insert group: %w", err)
		}

		for _, m := range group.Members {
			if err := tx.AddGroupMember(ctx, group.ID, m.ID); err != nil {
				return err
			}
		}
		return nil
	})
}

// GetGroup retrieves a group by ID with its members ordered by username.
func (s *Store) GetGroup(ctx context.Context, groupID string) (*models.Group, error) {
	var row groupRow
	err := s.get(ctx, &row, "SELECT id, name, description, created_at FROM groups WHERE id = ?", groupID)
	if err != nil {
		return nil, notFound(err, "group", groupID)
	}

	group := row.toModel()
	var members []memberRow
	err = s.selectAll(ctx, &members,
		`SELECT gm.group_id, gm.user_id, u.username
		 FROM group_members gm JOIN users u ON u.id = gm.user_id
		 WHERE gm.group_id = ? ORDER BY u.username`,
		groupID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to get group members: %w", err)
	}
	for _, m := range members {
		group.Members = append(group.Members, models.UserRef{ID: m.UserID, Username: m.Username})
	}
	return group, nil
}

// ListGroups retrieves all groups in creation order.
func (s *Store) ListGroups(ctx context.Context) ([]*models.Group, error) {
	var rows []groupRow
	if err := s.selectAll(ctx, &rows, "SELECT id, name, description, created_at FROM groups ORDER BY created_at, id"); err != nil {
		return nil, fmt.Errorf("failed to list groups: %w", err)
	}

	var members []memberRow
	err := s.selectAll(ctx, &members,
		`SELECT gm.group_id, gm.user_id, u.username
		 FROM group_members gm JOIN users u ON u.id = gm.user_id
		 ORDER BY u.username`,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list group members: %w", err)
	}

	groups := make([]*models.Group, len(rows))
	byID := make(map[string]*models.Group, len(rows))
	for i := range rows {
		groups[i] = rows[i].toModel()
		byID[groups[i].ID] = groups[i]
	}
	for _, m := range members {
		if g, ok := byID[m.GroupID]; ok {
			g.Members = append(g.Members, models.UserRef{ID: m.UserID, Username: m.Username})
		}
	}
	return groups, nil
}

// UpdateGroup changes a group's name and description.
func (s *Store) UpdateGroup(ctx context.Context, group *models.Group) error {
	res, err := s.exec(ctx,
		"UPDATE groups SET name = ?, description = ? WHERE id = ?",
		group.Name, nullable(group.Description), group.ID,
	)
	if err != nil {
		return fmt.Errorf("failed to update group: %w", err)
	}
	return requireAffected(res, "group", group.ID)
}

// DeleteGroup removes a group with its memberships and expenses.
func (s *Store) DeleteGroup(ctx context.Context, groupID string) error {
	return s.withTx(ctx, func(tx *Store) error {
		steps := []string{
			"DELETE FROM expense_splits WHERE expense_id IN (SELECT id FROM expenses WHERE group_id = ?)",
			"DELETE FROM expenses WHERE group_id = ?",
			"DELETE FROM group_members WHERE group_id = ?",
		}
		for _, q := range steps {
			if _, err := tx.exec(ctx, q, groupID); err != nil {
				return fmt.Errorf("failed to delete group contents: %w", err)
			}
		}

		res, err := tx.exec(ctx, "DELETE FROM groups WHERE id = ?", groupID)
		if err != nil {
			return fmt.Errorf("failed to delete group: %w", err)
		}
		return requireAffected(res, "group", groupID)
	})
}

// AddGroupMember adds a member; an existing membership is left untouched.
func (s *Store) AddGroupMember(ctx context.Context, groupID, userID string) error {
	_, err := s.exec(ctx,
		"INSERT INTO group_members (group_id, user_id) VALUES (?, ?) ON CONFLICT DO NOTHING",
		groupID, userID,
	)
	if err != nil {
		return fmt.Errorf("failed to add group member: %w", err)
	}
	return nil
}

// RemoveGroupMember removes a membership if present.
func (s *Store) RemoveGroupMember(ctx context.Context, groupID, userID string) error {
	_, err := s.exec(ctx, "DELETE FROM group_members WHERE group_id = ? AND user_id = ?", groupID, userID)
	if err != nil {
		return fmt.Errorf("failed to remove group member: %w", err)
	}
	return nil
}

// IsGroupMember reports whether userID currently belongs to groupID.
func (s *Store) IsGroupMember(ctx context.Context, groupID, userID string) (bool, error) {
	var n int
	err := s.get(ctx, &n, "SELECT COUNT(*) FROM group_members WHERE group_id = ? AND user_id = ?", groupID, userID)
	if err != nil {
		return false, fmt.Errorf("failed to check group membership: %w", err)
	}
	return n > 0, nil
}

// ListGroupIDsForUser returns the groups userID belongs to.
func (s *Store) ListGroupIDsForUser(ctx context.Context, userID string) ([]string, error) {
	ids := []string{}
	if err := s.selectAll(ctx, &ids, "SELECT group_id FROM group_members WHERE user_id = ? ORDER BY group_id", userID); err != nil {
		return nil, fmt.Errorf("failed to list groups for user: %w", err)
	}
	return ids, nil
}
