package service

import (
	"context"
	"log/slog"

	"connectrpc.com/connect"

	"github.com/mmynk/groupsplit/internal/events"
	"github.com/mmynk/groupsplit/internal/ledger"
	"github.com/mmynk/groupsplit/internal/metrics"
	"github.com/mmynk/groupsplit/internal/models"
	"github.com/mmynk/groupsplit/pkg/api"
)

// GroupService implements the Connect GroupService.
// Every method expects an authenticated caller.
type GroupService struct {
	registry  *ledger.Registry
	publisher events.Publisher
	metrics   *metrics.Metrics
}

var _ api.GroupServiceHandler = (*GroupService)(nil)

// NewGroupService creates a new GroupService.
func NewGroupService(registry *ledger.Registry, publisher events.Publisher, m *metrics.Metrics) *GroupService {
	return &GroupService{registry: registry, publisher: publisher, metrics: m}
}

// CreateGroup creates a new group. The caller is not added implicitly.
func (s *GroupService) CreateGroup(ctx context.Context, req *connect.Request[api.CreateGroupRequest]) (*connect.Response[api.CreateGroupResponse], error) {
	p, err := caller(ctx)
	if err != nil {
		return nil, err
	}
	slog.Info("CreateGroup request received",
		"name", req.Msg.Name,
		"members_count", len(req.Msg.Members),
		"user_id", p.UserID,
	)

	group, err := s.registry.CreateGroup(ctx, ledger.GroupInput{
		Name:        req.Msg.Name,
		Description: req.Msg.Description,
		Members:     req.Msg.Members,
	})
	if err != nil {
		slog.Warn("CreateGroup failed", "error", err)
		return nil, toConnectError(s.metrics, err)
	}

	slog.Info("Group created", "group_id", group.ID)
	return connect.NewResponse(&api.CreateGroupResponse{Group: toAPIGroup(group)}), nil
}

// GetGroup retrieves a group by ID.
func (s *GroupService) GetGroup(ctx context.Context, req *connect.Request[api.GetGroupRequest]) (*connect.Response[api.GetGroupResponse], error) {
	if _, err := caller(ctx); err != nil {
		return nil, err
	}

	group, err := s.registry.Get(ctx, req.Msg.GroupID)
	if err != nil {
		slog.Warn("GetGroup failed", "group_id", req.Msg.GroupID, "error", err)
		return nil, toConnectError(s.metrics, err)
	}

	return connect.NewResponse(&api.GetGroupResponse{Group: toAPIGroup(group)}), nil
}

// ListGroups retrieves all groups.
func (s *GroupService) ListGroups(ctx context.Context, req *connect.Request[api.ListGroupsRequest]) (*connect.Response[api.ListGroupsResponse], error) {
	if _, err := caller(ctx); err != nil {
		return nil, err
	}

	groups, err := s.registry.List(ctx)
	if err != nil {
		return nil, toConnectError(s.metrics, err)
	}

	out := make([]*api.Group, len(groups))
	for i, g := range groups {
		out[i] = toAPIGroup(g)
	}

	slog.Debug("ListGroups successful", "count", len(groups))
	return connect.NewResponse(&api.ListGroupsResponse{Groups: out}), nil
}

// UpdateGroup replaces a group's name and description.
func (s *GroupService) UpdateGroup(ctx context.Context, req *connect.Request[api.UpdateGroupRequest]) (*connect.Response[api.UpdateGroupResponse], error) {
	if _, err := caller(ctx); err != nil {
		return nil, err
	}
	slog.Info("UpdateGroup request received", "group_id", req.Msg.GroupID, "name", req.Msg.Name)

	group, err := s.registry.Update(ctx, req.Msg.GroupID, ledger.GroupInput{
		Name:        req.Msg.Name,
		Description: req.Msg.Description,
	})
	if err != nil {
		slog.Warn("UpdateGroup failed", "group_id", req.Msg.GroupID, "error", err)
		return nil, toConnectError(s.metrics, err)
	}

	return connect.NewResponse(&api.UpdateGroupResponse{Group: toAPIGroup(group)}), nil
}

// DeleteGroup removes a group and its expenses.
func (s *GroupService) DeleteGroup(ctx context.Context, req *connect.Request[api.DeleteGroupRequest]) (*connect.Response[api.DeleteGroupResponse], error) {
	p, err := caller(ctx)
	if err != nil {
		return nil, err
	}
	slog.Info("DeleteGroup request received", "group_id", req.Msg.GroupID, "user_id", p.UserID)

	if err := s.registry.Delete(ctx, req.Msg.GroupID); err != nil {
		slog.Warn("DeleteGroup failed", "group_id", req.Msg.GroupID, "error", err)
		return nil, toConnectError(s.metrics, err)
	}

	publish(ctx, s.publisher, events.NewGroupDeleted(p.UserID, req.Msg.GroupID))
	slog.Info("Group deleted", "group_id", req.Msg.GroupID)
	return connect.NewResponse(&api.DeleteGroupResponse{}), nil
}

// AddMember adds a user to a group by username. Adding a member twice is a no-op.
func (s *GroupService) AddMember(ctx context.Context, req *connect.Request[api.AddMemberRequest]) (*connect.Response[api.AddMemberResponse], error) {
	group, err := s.changeMembership(ctx, req.Msg.GroupID, req.Msg.Username, s.registry.AddMember)
	if err != nil {
		return nil, err
	}
	return connect.NewResponse(&api.AddMemberResponse{Group: toAPIGroup(group)}), nil
}

// RemoveMember removes a user from a group. Expenses they are part of stay as recorded.
func (s *GroupService) RemoveMember(ctx context.Context, req *connect.Request[api.RemoveMemberRequest]) (*connect.Response[api.RemoveMemberResponse], error) {
	group, err := s.changeMembership(ctx, req.Msg.GroupID, req.Msg.Username, s.registry.RemoveMember)
	if err != nil {
		return nil, err
	}
	return connect.NewResponse(&api.RemoveMemberResponse{Group: toAPIGroup(group)}), nil
}

func (s *GroupService) changeMembership(
	ctx context.Context,
	groupID, username string,
	change func(ctx context.Context, groupID, userID string) error,
) (*models.Group, error) {
	if _, err := caller(ctx); err != nil {
		return nil, err
	}

	user, err := s.registry.ResolveUser(ctx, "username", username)
	if err != nil {
		return nil, toConnectError(s.metrics, err)
	}
	if err := change(ctx, groupID, user.ID); err != nil {
		slog.Warn("Membership change failed", "group_id", groupID, "username", username, "error", err)
		return nil, toConnectError(s.metrics, err)
	}

	group, err := s.registry.Get(ctx, groupID)
	if err != nil {
		return nil, toConnectError(s.metrics, err)
	}
	slog.Info("Membership changed", "group_id", groupID, "username", username, "members_count", len(group.Members))
	return group, nil
}

// publish sends event and logs, never returns, a failure.
func publish(ctx context.Context, p events.Publisher, event *events.Event) {
	if err := p.Publish(ctx, event); err != nil {
		slog.Error("Failed to publish event", "type", event.Type, "error", err)
	}
}
