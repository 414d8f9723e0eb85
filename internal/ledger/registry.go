package ledger

import (
	"context"
	"errors"
	"fmt"

	"github.com/mmynk/groupsplit/internal/models"
	"github.com/mmynk/groupsplit/internal/storage"
	"github.com/mmynk/groupsplit/internal/validation"
)

// Registry owns groups and their member sets.
type Registry struct {
	store storage.Store
	clock *Clock
}

// NewRegistry creates a Registry over store.
func NewRegistry(store storage.Store, clock *Clock) *Registry {
	return &Registry{store: store, clock: clock}
}

// GroupInput carries the editable fields of a group.
type GroupInput struct {
	Name        string
	Description string
	// Members are usernames. Only used on create.
	Members []string
}

func (in GroupInput) check() error {
	return validation.First(
		validation.Required("name", in.Name),
		validation.MaxLength("name", in.Name, validation.MaxTextLength),
	)
}

// CreateGroup creates a group with the given initial members.
// Unknown usernames are reported against the members field.
func (r *Registry) CreateGroup(ctx context.Context, in GroupInput) (*models.Group, error) {
	if err := in.check(); err != nil {
		return nil, err
	}

	var group *models.Group
	err := r.store.WithinTx(ctx, func(ctx context.Context, tx storage.Store) error {
		members, err := resolveUsers(ctx, tx, "members", dedupe(in.Members))
		if err != nil {
			return err
		}

		group = &models.Group{
			Name:        in.Name,
			Description: in.Description,
			Members:     members,
			CreatedAt:   r.clock.Now(),
		}
		if err := tx.CreateGroup(ctx, group); err != nil {
			return err
		}

		// Re-read for username ordering.
		group, err = tx.GetGroup(ctx, group.ID)
		return err
	})
	if err != nil {
		return nil, err
	}
	return group, nil
}

// Get returns the group with its current members.
func (r *Registry) Get(ctx context.Context, groupID string) (*models.Group, error) {
	return r.store.GetGroup(ctx, groupID)
}

// List returns every group.
func (r *Registry) List(ctx context.Context) ([]*models.Group, error) {
	return r.store.ListGroups(ctx)
}

// Update changes a group's name and description. Members are untouched.
func (r *Registry) Update(ctx context.Context, groupID string, in GroupInput) (*models.Group, error) {
	if err := in.check(); err != nil {
		return nil, err
	}

	var group *models.Group
	err := r.store.WithinTx(ctx, func(ctx context.Context, tx storage.Store) error {
		err := tx.UpdateGroup(ctx, &models.Group{ID: groupID, Name: in.Name, Description: in.Description})
		if err != nil {
			return err
		}
		group, err = tx.GetGroup(ctx, groupID)
		return err
	})
	if err != nil {
		return nil, err
	}
	return group, nil
}

// Delete removes a group and every expense recorded against it.
func (r *Registry) Delete(ctx context.Context, groupID string) error {
	return r.store.DeleteGroup(ctx, groupID)
}

// AddMember adds userID to the group. Adding an existing member is a no-op.
func (r *Registry) AddMember(ctx context.Context, groupID, userID string) error {
	return r.store.WithinTx(ctx, func(ctx context.Context, tx storage.Store) error {
		if _, err := tx.GetGroup(ctx, groupID); err != nil {
			return err
		}
		if _, err := tx.GetUserByID(ctx, userID); err != nil {
			return err
		}
		return tx.AddGroupMember(ctx, groupID, userID)
	})
}

// RemoveMember removes userID from the group. Removing a non-member is a
// no-op. Expenses already recorded are left as they are.
func (r *Registry) RemoveMember(ctx context.Context, groupID, userID string) error {
	return r.store.WithinTx(ctx, func(ctx context.Context, tx storage.Store) error {
		if _, err := tx.GetGroup(ctx, groupID); err != nil {
			return err
		}
		return tx.RemoveGroupMember(ctx, groupID, userID)
	})
}

// IsMember reports current membership.
func (r *Registry) IsMember(ctx context.Context, groupID, userID string) (bool, error) {
	return r.store.IsGroupMember(ctx, groupID, userID)
}

// Members returns the current member set ordered by username.
func (r *Registry) Members(ctx context.Context, groupID string) ([]models.UserRef, error) {
	group, err := r.store.GetGroup(ctx, groupID)
	if err != nil {
		return nil, err
	}
	return group.Members, nil
}

// GroupsFor returns the IDs of every group userID belongs to.
func (r *Registry) GroupsFor(ctx context.Context, userID string) ([]string, error) {
	return r.store.ListGroupIDsForUser(ctx, userID)
}

// ResolveUser looks up a user by username, reporting an unknown username as a
// validation error on field.
func (r *Registry) ResolveUser(ctx context.Context, field, username string) (models.UserRef, error) {
	users, err := resolveUsers(ctx, r.store, field, []string{username})
	if err != nil {
		return models.UserRef{}, err
	}
	return users[0], nil
}

// resolveUsers maps usernames to references, preserving order. The first
// unknown username fails the whole lookup.
func resolveUsers(ctx context.Context, users storage.UserStore, field string, usernames []string) ([]models.UserRef, error) {
	found, err := users.GetUsersByUsernames(ctx, usernames)
	if err != nil {
		return nil, err
	}

	refs := make([]models.UserRef, 0, len(usernames))
	for _, name := range usernames {
		u, ok := found[name]
		if !ok {
			return nil, validation.Newf(field, "Object with username=%s does not exist.", name)
		}
		refs = append(refs, u.Ref())
	}
	return refs, nil
}

// dedupe drops repeated entries, keeping first occurrences in order.
func dedupe(values []string) []string {
	seen := make(map[string]struct{}, len(values))
	out := make([]string, 0, len(values))
	for _, v := range values {
		if _, ok := seen[v]; ok {
			continue
		}
		seen[v] = struct{}{}
		out = append(out, v)
	}
	return out
}

// groupFor loads a group for a write, reporting an unknown ID on the group field.
func groupFor(ctx context.Context, groups storage.GroupStore, groupID string) (*models.Group, error) {
	group, err := groups.GetGroup(ctx, groupID)
	if errors.Is(err, storage.ErrNotFound) {
		return nil, validation.Newf("group", "Object with id=%s does not exist.", groupID)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load group: %w", err)
	}
	return group, nil
}
