package tree

import (
	"context"
	"fmt"
	"log/slog"
	"regexp"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/google/uuid"

	"codecollab/internal/capabilities"
	"codecollab/internal/config"
	"codecollab/internal/domain"
	"codecollab/internal/domain/models"
	"codecollab/internal/feed"
)

// RoleSource resolves a user's current role in the engine's workspace.
type RoleSource interface {
	Resolve(userID string) models.Role
}

// Engine issues tree mutations against the remote store. Every operation
// validates locally first: role, target existence, and structural rules
// are all checked against the mirror before any remote call, so cheap
// failures never leave the process. Remote failures are returned to the
// caller and never retried here.
//
// The engine does not touch the mirror directly. Successful writes come
// back through the change feed like everyone else's.
type Engine struct {
	workspaceID string
	store       *Store
	client      feed.Client
	caps        *capabilities.Registry
	roles       RoleSource
	logger      *slog.Logger

	newID func() string
	now   func() time.Time
}

// NewEngine creates a mutation engine for one workspace.
func NewEngine(workspaceID string, store *Store, client feed.Client, caps *capabilities.Registry, roles RoleSource, logger *slog.Logger) *Engine {
	return &Engine{
		workspaceID: workspaceID,
		store:       store,
		client:      client,
		caps:        caps,
		roles:       roles,
		logger:      logger,
		newID:       uuid.NewString,
		now:         time.Now,
	}
}

// CreateNodeRequest creates a folder or file.
type CreateNodeRequest struct {
	Kind     models.NodeKind `json:"kind"`
	Name     string          `json:"name"`
	ParentID string          `json:"parent_id,omitempty"`
}

var nodeNamePattern = regexp.MustCompile(`^[^/]+$`)

func (r *CreateNodeRequest) validate() error {
	return validation.ValidateStruct(r,
		validation.Field(&r.Kind, validation.Required, validation.In(models.NodeFolder, models.NodeFile)),
		validation.Field(&r.Name,
			validation.Required,
			validation.Length(1, config.MaxNodeNameLength),
			validation.Match(nodeNamePattern).Error("name cannot contain slashes"),
		),
	)
}

// CreateNode creates a folder or an empty file under the given parent
// (empty ParentID for the root level).
func (e *Engine) CreateNode(ctx context.Context, userID string, req *CreateNodeRequest) (*models.Node, error) {
	if err := e.requireAction(userID, capabilities.ActionNodeCreate); err != nil {
		return nil, err
	}
	if err := req.validate(); err != nil {
		return nil, fmt.Errorf("%w: %s", domain.ErrValidation, err.Error())
	}
	if err := e.validateParent(req.ParentID); err != nil {
		return nil, err
	}

	node := &models.Node{
		ID:          e.newID(),
		WorkspaceID: e.workspaceID,
		Kind:        req.Kind,
		Name:        req.Name,
		ParentID:    req.ParentID,
		CreatedBy:   userID,
		CreatedAt:   e.now().UTC(),
	}
	node.UpdatedAt = node.CreatedAt
	if err := e.client.Put(ctx, e.collectionFor(node.Kind), node.ID, node.Fields()); err != nil {
		return nil, err
	}

	e.logger.Info("node created",
		"workspace_id", e.workspaceID,
		"node_id", node.ID,
		"kind", node.Kind,
		"name", node.Name,
	)
	return node, nil
}

// RenameNode changes a node's name. Last write wins; concurrent renames
// are not detected.
func (e *Engine) RenameNode(ctx context.Context, userID, nodeID, newName string) error {
	if err := e.requireAction(userID, capabilities.ActionNodeRename); err != nil {
		return err
	}
	if err := validation.Validate(newName,
		validation.Required,
		validation.Length(1, config.MaxNodeNameLength),
		validation.Match(nodeNamePattern).Error("name cannot contain slashes"),
	); err != nil {
		return fmt.Errorf("%w: name %s", domain.ErrValidation, err.Error())
	}

	node, ok := e.store.Get(nodeID)
	if !ok {
		return fmt.Errorf("%w: node %s", domain.ErrNotFound, nodeID)
	}
	return e.client.Put(ctx, e.collectionFor(node.Kind), nodeID, map[string]any{
		"name":      newName,
		"updatedAt": models.Timestamp(e.now()),
	})
}

// MoveNode reparents a node (empty newParentID moves it to the root).
// Moving a folder into itself or into its own descendant is rejected
// before any remote call; on success only the parent reference and the
// update timestamp are written.
func (e *Engine) MoveNode(ctx context.Context, userID, nodeID, newParentID string) error {
	if err := e.requireAction(userID, capabilities.ActionNodeMove); err != nil {
		return err
	}
	node, ok := e.store.Get(nodeID)
	if !ok {
		return fmt.Errorf("%w: node %s", domain.ErrNotFound, nodeID)
	}
	if newParentID == nodeID {
		return fmt.Errorf("%w: cannot move a node into itself", domain.ErrValidation)
	}
	if err := e.validateParent(newParentID); err != nil {
		return err
	}
	if node.IsFolder() && e.store.IsDescendant(newParentID, nodeID) {
		return fmt.Errorf("%w: cannot move a folder into its own descendant", domain.ErrValidation)
	}

	parentField := "folderId"
	if node.IsFolder() {
		parentField = "parentFolderId"
	}
	return e.client.Put(ctx, e.collectionFor(node.Kind), nodeID, map[string]any{
		parentField: newParentID,
		"updatedAt": models.Timestamp(e.now()),
	})
}

// DeleteNode deletes a file, or a folder and everything under it. The
// cascade walks a snapshot of the mirror taken at start, deletes best
// effort without rollback, and reports the first failure after
// attempting the rest.
func (e *Engine) DeleteNode(ctx context.Context, userID, nodeID string) error {
	if err := e.requireAction(userID, capabilities.ActionNodeDelete); err != nil {
		return err
	}
	node, ok := e.store.Get(nodeID)
	if !ok {
		return fmt.Errorf("%w: node %s", domain.ErrNotFound, nodeID)
	}

	if !node.IsFolder() {
		return e.client.Delete(ctx, feed.FilesOf(e.workspaceID), nodeID)
	}

	var firstErr error
	descendants := e.store.SnapshotDescendants(nodeID)
	for _, d := range descendants {
		if err := e.client.Delete(ctx, e.collectionFor(d.Kind), d.ID); err != nil {
			e.logger.Warn("cascade delete failed for descendant",
				"workspace_id", e.workspaceID,
				"node_id", d.ID,
				"name", d.Name,
				"error", err,
			)
			if firstErr == nil {
				firstErr = fmt.Errorf("delete descendant %q: %w", d.Name, err)
			}
		}
	}
	if err := e.client.Delete(ctx, feed.FoldersOf(e.workspaceID), nodeID); err != nil {
		if firstErr == nil {
			firstErr = err
		}
	}
	if firstErr == nil {
		e.logger.Info("folder deleted",
			"workspace_id", e.workspaceID,
			"node_id", nodeID,
			"name", node.Name,
			"descendants", len(descendants),
		)
	}
	return firstErr
}

// requireAction distinguishes non-members (unauthorized) from members
// whose role lacks the capability (forbidden).
func (e *Engine) requireAction(userID string, action capabilities.Action) error {
	role := e.roles.Resolve(userID)
	if role == models.RoleNone {
		return fmt.Errorf("%w: not a member of workspace %s", domain.ErrUnauthorized, e.workspaceID)
	}
	if !e.caps.Can(role, action) {
		return fmt.Errorf("%w: role %s cannot %s", domain.ErrForbidden, role, action)
	}
	return nil
}

// validateParent accepts the root (empty ID) or an existing folder.
func (e *Engine) validateParent(parentID string) error {
	if parentID == "" {
		return nil
	}
	parent, ok := e.store.Get(parentID)
	if !ok {
		return fmt.Errorf("%w: parent folder %s", domain.ErrNotFound, parentID)
	}
	if !parent.IsFolder() {
		return fmt.Errorf("%w: parent %s is not a folder", domain.ErrValidation, parentID)
	}
	return nil
}

func (e *Engine) collectionFor(kind models.NodeKind) string {
	if kind == models.NodeFolder {
		return feed.FoldersOf(e.workspaceID)
	}
	return feed.FilesOf(e.workspaceID)
}
