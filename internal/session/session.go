// Package session wires one open workspace together: the feed
// subscriptions, the live role resolver, the tree mirror, the mutation
// engine, the autosave coordinator, and the chat channel.
package session

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"codecollab/internal/capabilities"
	"codecollab/internal/domain"
	"codecollab/internal/domain/models"
	"codecollab/internal/feed"
	"codecollab/internal/service/ai"
	"codecollab/internal/service/autosave"
	"codecollab/internal/service/chat"
	"codecollab/internal/service/member"
	"codecollab/internal/service/tree"
)

// Session is one open workspace. All fields are ready once Open returns
// and stay valid until Close.
type Session struct {
	WorkspaceID string

	Tree     *tree.Store
	Engine   *tree.Engine
	Autosave *autosave.Coordinator
	Chat     *chat.Service
	ChatLog  *chat.Log

	resolver *member.Resolver
	caps     *capabilities.Registry
	unsubs   []feed.Unsubscribe
	logger   *slog.Logger
}

// Open subscribes to the workspace's collections and builds its
// components. The workspace must exist.
func Open(ctx context.Context, client feed.Client, caps *capabilities.Registry, completer ai.Completer, workspaceID string, autosaveWindow time.Duration, logger *slog.Logger) (*Session, error) {
	if _, err := client.Get(ctx, feed.Workspaces(), workspaceID); err != nil {
		return nil, fmt.Errorf("open workspace %s: %w", workspaceID, err)
	}

	resolver, err := member.NewResolver(ctx, client, workspaceID, logger)
	if err != nil {
		return nil, err
	}

	s := &Session{
		WorkspaceID: workspaceID,
		Tree:        tree.NewStore(workspaceID),
		ChatLog:     chat.NewLog(workspaceID),
		resolver:    resolver,
		caps:        caps,
		logger:      logger,
	}
	s.Engine = tree.NewEngine(workspaceID, s.Tree, client, caps, resolver, logger)
	s.Autosave = autosave.New(workspaceID, client, resolver, caps, autosaveWindow, nil, logger)
	s.Chat = chat.NewService(workspaceID, client, caps, resolver, completer, logger)

	onError := func(err error) {
		logger.Warn("workspace subscription failed", "workspace_id", workspaceID, "error", err)
	}
	subscriptions := []struct {
		collection string
		onSnapshot feed.SnapshotFunc
	}{
		{feed.FoldersOf(workspaceID), s.Tree.ApplySnapshot},
		{feed.FilesOf(workspaceID), func(snap feed.Snapshot) {
			s.Tree.ApplySnapshot(snap)
			s.Autosave.ApplyRemote(snap)
		}},
		{feed.Messages(), s.ChatLog.ApplySnapshot},
	}
	for _, sub := range subscriptions {
		unsub, err := client.Subscribe(ctx, sub.collection, sub.onSnapshot, onError)
		if err != nil {
			s.Close()
			return nil, fmt.Errorf("subscribe %s: %w", sub.collection, err)
		}
		s.unsubs = append(s.unsubs, unsub)
	}

	logger.Info("workspace session opened", "workspace_id", workspaceID)
	return s, nil
}

// RequireRead verifies the user may read this workspace: a member whose
// role grants reads. Non-members get ErrUnauthorized, matching the write
// paths' treatment of RoleNone.
func (s *Session) RequireRead(userID string) error {
	role := s.resolver.Resolve(userID)
	if role == models.RoleNone {
		return fmt.Errorf("%w: user %s is not a member of workspace %s", domain.ErrUnauthorized, userID, s.WorkspaceID)
	}
	if !s.caps.Can(role, capabilities.ActionRead) {
		return fmt.Errorf("%w: role %s cannot read workspace %s", domain.ErrForbidden, role, s.WorkspaceID)
	}
	return nil
}

// Close tears the session down: subscriptions, the resolver, and pending
// autosave timers. Buffered edits are discarded, not flushed.
func (s *Session) Close() {
	for _, unsub := range s.unsubs {
		unsub()
	}
	s.unsubs = nil
	s.resolver.Close()
	s.Autosave.Close()
	s.logger.Info("workspace session closed", "workspace_id", s.WorkspaceID)
}
