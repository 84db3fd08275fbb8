package member

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/google/uuid"

	"codecollab/internal/capabilities"
	"codecollab/internal/config"
	"codecollab/internal/domain"
	"codecollab/internal/domain/models"
	"codecollab/internal/feed"
)

// maxUserSearchResults caps the invite-dialog directory search.
const maxUserSearchResults = 20

// Service implements the membership workflow: workspace lifecycle,
// invites, leaving, and removal. Unlike the per-session Resolver, the
// service is workspace-agnostic and reads member documents directly,
// since workflow calls are rare compared to mutation-path role checks.
type Service struct {
	client feed.Client
	caps   *capabilities.Registry
	logger *slog.Logger

	newID func() string
	now   func() time.Time
}

// NewService creates the membership service.
func NewService(client feed.Client, caps *capabilities.Registry, logger *slog.Logger) *Service {
	return &Service{
		client: client,
		caps:   caps,
		logger: logger,
		newID:  uuid.NewString,
		now:    time.Now,
	}
}

// CreateWorkspaceRequest names a new workspace. Visibility defaults to
// private when omitted.
type CreateWorkspaceRequest struct {
	Name       string            `json:"name"`
	Visibility models.Visibility `json:"visibility,omitempty"`
}

func (r *CreateWorkspaceRequest) validate() error {
	return validation.ValidateStruct(r,
		validation.Field(&r.Name, validation.Required, validation.Length(1, config.MaxWorkspaceNameLength)),
		validation.Field(&r.Visibility, validation.In(models.VisibilityPublic, models.VisibilityPrivate)),
	)
}

// CreateWorkspace creates a workspace and enrolls the creator as its
// owner, carrying the creator's profile into the member record.
func (s *Service) CreateWorkspace(ctx context.Context, userID string, req *CreateWorkspaceRequest) (*models.Workspace, error) {
	if err := req.validate(); err != nil {
		return nil, fmt.Errorf("%w: %s", domain.ErrValidation, err.Error())
	}

	visibility := req.Visibility
	if visibility == "" {
		visibility = models.VisibilityPrivate
	}
	ws := &models.Workspace{
		ID:         s.newID(),
		Name:       req.Name,
		Visibility: visibility,
		CreatedBy:  userID,
		CreatedAt:  s.now().UTC(),
	}
	if err := s.client.Put(ctx, feed.Workspaces(), ws.ID, ws.Fields()); err != nil {
		return nil, err
	}

	m := &models.Member{UserID: userID, Role: models.RoleOwner}
	if profile, err := s.userProfile(ctx, userID); err == nil {
		m.DisplayName = profile.DisplayName
		m.PhotoURL = profile.PhotoURL
	}
	if err := s.client.Put(ctx, feed.MembersOf(ws.ID), userID, m.Fields()); err != nil {
		return nil, fmt.Errorf("enroll owner: %w", err)
	}

	s.logger.Info("workspace created", "workspace_id", ws.ID, "name", ws.Name, "owner", userID)
	return ws, nil
}

// UpdateWorkspaceRequest carries the mutable workspace fields. Nil
// fields are left untouched.
type UpdateWorkspaceRequest struct {
	Name       *string            `json:"name,omitempty"`
	Visibility *models.Visibility `json:"visibility,omitempty"`
}

// UpdateWorkspace changes a workspace's name and/or visibility.
func (s *Service) UpdateWorkspace(ctx context.Context, userID, workspaceID string, req *UpdateWorkspaceRequest) error {
	if err := s.requireAction(ctx, workspaceID, userID, capabilities.ActionWorkspaceUpdate); err != nil {
		return err
	}
	fields := map[string]any{}
	if req.Name != nil {
		if err := validation.Validate(*req.Name, validation.Required, validation.Length(1, config.MaxWorkspaceNameLength)); err != nil {
			return fmt.Errorf("%w: name %s", domain.ErrValidation, err.Error())
		}
		fields["name"] = *req.Name
	}
	if req.Visibility != nil {
		if !req.Visibility.Valid() {
			return fmt.Errorf("%w: visibility must be public or private", domain.ErrValidation)
		}
		fields["visibility"] = string(*req.Visibility)
	}
	if len(fields) == 0 {
		return fmt.Errorf("%w: nothing to update", domain.ErrValidation)
	}
	return s.client.Put(ctx, feed.Workspaces(), workspaceID, fields)
}

// GetWorkspace returns one workspace.
func (s *Service) GetWorkspace(ctx context.Context, workspaceID string) (*models.Workspace, error) {
	fields, err := s.client.Get(ctx, feed.Workspaces(), workspaceID)
	if err != nil {
		return nil, err
	}
	return models.WorkspaceFromDoc(workspaceID, fields), nil
}

// DeleteWorkspace removes the workspace and everything scoped to it:
// folders, files, messages, members, then the workspace document. Best
// effort, first error reported after attempting the rest.
func (s *Service) DeleteWorkspace(ctx context.Context, userID, workspaceID string) error {
	if err := s.requireAction(ctx, workspaceID, userID, capabilities.ActionWorkspaceDelete); err != nil {
		return err
	}

	var firstErr error
	record := func(err error) {
		if err != nil && firstErr == nil {
			firstErr = err
		}
	}

	for _, collection := range []string{feed.FoldersOf(workspaceID), feed.FilesOf(workspaceID), feed.MembersOf(workspaceID)} {
		snaps, err := s.client.List(ctx, collection)
		if err != nil {
			record(err)
			continue
		}
		for _, snap := range snaps {
			record(s.client.Delete(ctx, collection, snap.DocID))
		}
	}

	// Messages live in one global collection, filtered by workspace.
	msgs, err := s.client.List(ctx, feed.Messages())
	if err != nil {
		record(err)
	} else {
		for _, snap := range msgs {
			if m := models.MessageFromDoc(snap.DocID, snap.Fields); m.WorkspaceID == workspaceID {
				record(s.client.Delete(ctx, feed.Messages(), snap.DocID))
			}
		}
	}

	record(s.client.Delete(ctx, feed.Workspaces(), workspaceID))
	if firstErr == nil {
		s.logger.Info("workspace deleted", "workspace_id", workspaceID, "by", userID)
	}
	return firstErr
}

// ListWorkspacesFor returns the workspaces the user belongs to.
func (s *Service) ListWorkspacesFor(ctx context.Context, userID string) ([]*models.Workspace, error) {
	snaps, err := s.client.List(ctx, feed.Workspaces())
	if err != nil {
		return nil, err
	}
	workspaces := []*models.Workspace{}
	for _, snap := range snaps {
		if _, err := s.client.Get(ctx, feed.MembersOf(snap.DocID), userID); err != nil {
			continue
		}
		workspaces = append(workspaces, models.WorkspaceFromDoc(snap.DocID, snap.Fields))
	}
	return workspaces, nil
}

// ListMembers returns the workspace's members ordered by display name.
// The caller must be a member with read access.
func (s *Service) ListMembers(ctx context.Context, callerID, workspaceID string) ([]*models.Member, error) {
	if err := s.requireAction(ctx, workspaceID, callerID, capabilities.ActionRead); err != nil {
		return nil, err
	}
	return s.listMembers(ctx, workspaceID)
}

func (s *Service) listMembers(ctx context.Context, workspaceID string) ([]*models.Member, error) {
	snaps, err := s.client.List(ctx, feed.MembersOf(workspaceID))
	if err != nil {
		return nil, err
	}
	members := make([]*models.Member, 0, len(snaps))
	for _, snap := range snaps {
		members = append(members, models.MemberFromDoc(snap.DocID, snap.Fields))
	}
	sort.Slice(members, func(i, j int) bool {
		if members[i].DisplayName != members[j].DisplayName {
			return members[i].DisplayName < members[j].DisplayName
		}
		return members[i].UserID < members[j].UserID
	})
	return members, nil
}

// Invite appends a pending invite to the invitee's user document. No
// member record is created until the invite is accepted.
func (s *Service) Invite(ctx context.Context, inviterID, workspaceID, inviteeID string) error {
	if err := s.requireAction(ctx, workspaceID, inviterID, capabilities.ActionMemberInvite); err != nil {
		return err
	}
	if _, err := s.client.Get(ctx, feed.MembersOf(workspaceID), inviteeID); err == nil {
		return &domain.ConflictError{
			Message:      "user is already a member",
			ResourceType: "member",
			ResourceID:   inviteeID,
		}
	}

	ws, err := s.GetWorkspace(ctx, workspaceID)
	if err != nil {
		return err
	}
	user, err := s.userProfile(ctx, inviteeID)
	if err != nil {
		return err
	}
	for _, inv := range user.Invites {
		if inv.WorkspaceID == workspaceID {
			return &domain.ConflictError{
				Message:      "user already has a pending invite",
				ResourceType: "invite",
				ResourceID:   workspaceID,
			}
		}
	}

	user.Invites = append(user.Invites, models.Invite{
		WorkspaceID:   workspaceID,
		WorkspaceName: ws.Name,
		InvitedBy:     inviterID,
	})
	if err := s.client.Put(ctx, feed.Users(), inviteeID, user.Fields()); err != nil {
		return err
	}
	s.logger.Info("invite sent", "workspace_id", workspaceID, "invitee", inviteeID, "by", inviterID)
	return nil
}

// ListInvites returns the user's pending invites.
func (s *Service) ListInvites(ctx context.Context, userID string) ([]models.Invite, error) {
	user, err := s.userProfile(ctx, userID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return []models.Invite{}, nil
		}
		return nil, err
	}
	return user.Invites, nil
}

// AcceptInvite turns a pending invite into a contributor membership and
// removes the invite.
func (s *Service) AcceptInvite(ctx context.Context, userID, workspaceID string) error {
	user, err := s.userProfile(ctx, userID)
	if err != nil {
		return err
	}
	remaining, found := removeInvite(user.Invites, workspaceID)
	if !found {
		return fmt.Errorf("%w: no invite for workspace %s", domain.ErrNotFound, workspaceID)
	}

	m := &models.Member{
		UserID:      userID,
		Role:        models.RoleContributor,
		DisplayName: user.DisplayName,
		PhotoURL:    user.PhotoURL,
	}
	if err := s.client.Put(ctx, feed.MembersOf(workspaceID), userID, m.Fields()); err != nil {
		return err
	}

	user.Invites = remaining
	if err := s.client.Put(ctx, feed.Users(), userID, user.Fields()); err != nil {
		return err
	}
	s.logger.Info("invite accepted", "workspace_id", workspaceID, "user", userID)
	return nil
}

// DeclineInvite removes a pending invite without creating a membership.
func (s *Service) DeclineInvite(ctx context.Context, userID, workspaceID string) error {
	user, err := s.userProfile(ctx, userID)
	if err != nil {
		return err
	}
	remaining, found := removeInvite(user.Invites, workspaceID)
	if !found {
		return fmt.Errorf("%w: no invite for workspace %s", domain.ErrNotFound, workspaceID)
	}
	user.Invites = remaining
	return s.client.Put(ctx, feed.Users(), userID, user.Fields())
}

// Leave removes the caller's own membership. The sole owner cannot
// leave; ownership must be handed off or the workspace deleted.
func (s *Service) Leave(ctx context.Context, userID, workspaceID string) error {
	role, err := s.resolveRole(ctx, workspaceID, userID)
	if err != nil {
		return err
	}
	if role == models.RoleNone {
		return fmt.Errorf("%w: not a member of workspace %s", domain.ErrUnauthorized, workspaceID)
	}
	if role == models.RoleOwner {
		owners, err := s.countOwners(ctx, workspaceID)
		if err != nil {
			return err
		}
		if owners <= 1 {
			return fmt.Errorf("%w: the sole owner cannot leave the workspace", domain.ErrValidation)
		}
	}
	return s.client.Delete(ctx, feed.MembersOf(workspaceID), userID)
}

// RemoveMember removes another member. Owners cannot be removed; they
// leave on their own or delete the workspace.
func (s *Service) RemoveMember(ctx context.Context, callerID, workspaceID, targetID string) error {
	if err := s.requireAction(ctx, workspaceID, callerID, capabilities.ActionMemberRemove); err != nil {
		return err
	}
	fields, err := s.client.Get(ctx, feed.MembersOf(workspaceID), targetID)
	if err != nil {
		return err
	}
	if models.MemberFromDoc(targetID, fields).Role == models.RoleOwner {
		return fmt.Errorf("%w: owners cannot be removed", domain.ErrValidation)
	}
	if err := s.client.Delete(ctx, feed.MembersOf(workspaceID), targetID); err != nil {
		return err
	}
	s.logger.Info("member removed", "workspace_id", workspaceID, "member", targetID, "by", callerID)
	return nil
}

// SearchUsers returns directory entries whose email starts with the
// prefix, for the invite dialog.
func (s *Service) SearchUsers(ctx context.Context, emailPrefix string) ([]*models.User, error) {
	if strings.TrimSpace(emailPrefix) == "" {
		return nil, fmt.Errorf("%w: search prefix is required", domain.ErrValidation)
	}
	snaps, err := s.client.List(ctx, feed.Users())
	if err != nil {
		return nil, err
	}
	users := []*models.User{}
	for _, snap := range snaps {
		u := models.UserFromDoc(snap.DocID, snap.Fields)
		if strings.HasPrefix(strings.ToLower(u.Email), strings.ToLower(emailPrefix)) {
			users = append(users, u)
			if len(users) == maxUserSearchResults {
				break
			}
		}
	}
	return users, nil
}

func (s *Service) userProfile(ctx context.Context, userID string) (*models.User, error) {
	fields, err := s.client.Get(ctx, feed.Users(), userID)
	if err != nil {
		return nil, err
	}
	return models.UserFromDoc(userID, fields), nil
}

func (s *Service) resolveRole(ctx context.Context, workspaceID, userID string) (models.Role, error) {
	fields, err := s.client.Get(ctx, feed.MembersOf(workspaceID), userID)
	if errors.Is(err, domain.ErrNotFound) {
		return models.RoleNone, nil
	}
	if err != nil {
		return models.RoleNone, err
	}
	return models.MemberFromDoc(userID, fields).Role, nil
}

func (s *Service) requireAction(ctx context.Context, workspaceID, userID string, action capabilities.Action) error {
	role, err := s.resolveRole(ctx, workspaceID, userID)
	if err != nil {
		return err
	}
	if role == models.RoleNone {
		return fmt.Errorf("%w: not a member of workspace %s", domain.ErrUnauthorized, workspaceID)
	}
	if !s.caps.Can(role, action) {
		return fmt.Errorf("%w: role %s cannot %s", domain.ErrForbidden, role, action)
	}
	return nil
}

func (s *Service) countOwners(ctx context.Context, workspaceID string) (int, error) {
	members, err := s.listMembers(ctx, workspaceID)
	if err != nil {
		return 0, err
	}
	owners := 0
	for _, m := range members {
		if m.Role == models.RoleOwner {
			owners++
		}
	}
	return owners, nil
}

func removeInvite(invites []models.Invite, workspaceID string) ([]models.Invite, bool) {
	out := invites[:0]
	found := false
	for _, inv := range invites {
		if inv.WorkspaceID == workspaceID {
			found = true
			continue
		}
		out = append(out, inv)
	}
	return out, found
}
