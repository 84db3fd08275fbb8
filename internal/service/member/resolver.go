// Package member covers workspace membership: the live role resolver used
// by every write path, and the membership workflow (workspaces, invites,
// leaving, removal).
package member

import (
	"context"
	"log/slog"
	"sync"

	"codecollab/internal/domain/models"
	"codecollab/internal/feed"
)

// Resolver keeps a live view of one workspace's member roles, fed by a
// members-collection subscription. Role changes made elsewhere take
// effect on the next Resolve call, without reconnecting.
type Resolver struct {
	workspaceID string
	logger      *slog.Logger

	mu    sync.RWMutex
	roles map[string]models.Role

	unsub feed.Unsubscribe
}

// NewResolver subscribes to the workspace's members collection and tracks
// roles until Close.
func NewResolver(ctx context.Context, client feed.Client, workspaceID string, logger *slog.Logger) (*Resolver, error) {
	r := &Resolver{
		workspaceID: workspaceID,
		logger:      logger,
		roles:       make(map[string]models.Role),
	}
	unsub, err := client.Subscribe(ctx, feed.MembersOf(workspaceID), r.apply, func(err error) {
		logger.Warn("member subscription failed", "workspace_id", workspaceID, "error", err)
	})
	if err != nil {
		return nil, err
	}
	r.unsub = unsub
	return r, nil
}

func (r *Resolver) apply(snap feed.Snapshot) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if snap.Deleted {
		delete(r.roles, snap.DocID)
		return
	}
	m := models.MemberFromDoc(snap.DocID, snap.Fields)
	r.roles[m.UserID] = m.Role
}

// Resolve returns the user's current role, or RoleNone for non-members.
func (r *Resolver) Resolve(userID string) models.Role {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.roles[userID]
}

// Close tears down the subscription.
func (r *Resolver) Close() {
	if r.unsub != nil {
		r.unsub()
	}
}
