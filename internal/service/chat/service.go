// Package chat implements a workspace's message channel. Messages live in
// one global append-only collection filtered by workspace, ordered by a
// server-assigned timestamp. A message mentioning the agent with "@"
// additionally triggers an asynchronous AI reply.
package chat

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/google/uuid"

	"codecollab/internal/capabilities"
	"codecollab/internal/config"
	"codecollab/internal/domain"
	"codecollab/internal/domain/models"
	"codecollab/internal/feed"
	"codecollab/internal/service/ai"
)

// Apology is the fixed reply persisted when the completion backend
// fails. The failure itself is only logged.
const Apology = "Sorry, I couldn't process that request."

// aiReplyTimeout bounds the asynchronous completion call.
const aiReplyTimeout = 30 * time.Second

// RoleSource resolves a user's current role in the chat's workspace.
type RoleSource interface {
	Resolve(userID string) models.Role
}

// Service is the chat channel for one workspace.
type Service struct {
	workspaceID string
	client      feed.Client
	caps        *capabilities.Registry
	roles       RoleSource
	completer   ai.Completer
	logger      *slog.Logger

	newID func() string
	now   func() time.Time

	// Timestamps are server-assigned and must order the log even when
	// sends race within clock resolution.
	tsMu   sync.Mutex
	lastTS time.Time

	// pending counts in-flight AI replies so Wait can drain them.
	pending sync.WaitGroup
}

// NewService creates the chat service for one workspace.
func NewService(workspaceID string, client feed.Client, caps *capabilities.Registry, roles RoleSource, completer ai.Completer, logger *slog.Logger) *Service {
	return &Service{
		workspaceID: workspaceID,
		client:      client,
		caps:        caps,
		roles:       roles,
		completer:   completer,
		logger:      logger,
		newID:       uuid.NewString,
		now:         time.Now,
	}
}

// Send persists the author's message, and when the text carries an agent
// directive, kicks off an asynchronous AI reply. The directive is the
// substring after the first "@", trimmed; the visible message keeps the
// full original text.
func (s *Service) Send(ctx context.Context, userID, authorName, text string) (*models.Message, error) {
	if err := s.requireAction(userID, capabilities.ActionChatSend); err != nil {
		return nil, err
	}
	if err := validation.Validate(text, validation.Required, validation.Length(1, config.MaxMessageLength)); err != nil {
		return nil, fmt.Errorf("%w: message %s", domain.ErrValidation, err.Error())
	}
	if strings.TrimSpace(text) == "" {
		return nil, fmt.Errorf("%w: message is blank", domain.ErrValidation)
	}

	msg := &models.Message{
		ID:          s.newID(),
		WorkspaceID: s.workspaceID,
		AuthorID:    userID,
		AuthorName:  authorName,
		Body:        text,
		CreatedAt:   s.nextTimestamp(),
	}
	if err := s.client.Put(ctx, feed.Messages(), msg.ID, msg.Fields()); err != nil {
		return nil, err
	}

	if directive := ParseDirective(text); directive != "" {
		s.pending.Add(1)
		go s.reply(directive)
	}
	return msg, nil
}

// ParseDirective extracts the agent directive from a message: everything
// after the first "@", trimmed. Empty means no directive.
func ParseDirective(text string) string {
	i := strings.Index(text, "@")
	if i < 0 {
		return ""
	}
	return strings.TrimSpace(text[i+1:])
}

// reply runs the completion call and persists the result as the agent.
// Backend failures degrade to the fixed apology; feed failures are only
// logged, since there is no caller left to report to.
func (s *Service) reply(directive string) {
	defer s.pending.Done()

	ctx, cancel := context.WithTimeout(context.Background(), aiReplyTimeout)
	defer cancel()

	body, err := s.completer.Complete(ctx, directive)
	if err != nil {
		s.logger.Warn("ai completion failed",
			"workspace_id", s.workspaceID,
			"error", err,
		)
		body = Apology
	}

	msg := &models.Message{
		ID:          s.newID(),
		WorkspaceID: s.workspaceID,
		AuthorID:    models.AIAgentID,
		AuthorName:  "AI",
		Body:        body,
		CreatedAt:   s.nextTimestamp(),
	}
	if err := s.client.Put(ctx, feed.Messages(), msg.ID, msg.Fields()); err != nil {
		s.logger.Warn("persisting ai reply failed",
			"workspace_id", s.workspaceID,
			"error", err,
		)
	}
}

// History returns the workspace's messages ordered by timestamp.
func (s *Service) History(ctx context.Context) ([]*models.Message, error) {
	snaps, err := s.client.List(ctx, feed.Messages())
	if err != nil {
		return nil, err
	}
	messages := []*models.Message{}
	for _, snap := range snaps {
		if m := models.MessageFromDoc(snap.DocID, snap.Fields); m.WorkspaceID == s.workspaceID {
			messages = append(messages, m)
		}
	}
	sortMessages(messages)
	return messages, nil
}

// Clear bulk-deletes the workspace's messages. Not atomic: other clients
// may observe a partially cleared log, and sends racing the clear
// survive. First error is reported after attempting the rest.
func (s *Service) Clear(ctx context.Context, userID string) error {
	if err := s.requireAction(userID, capabilities.ActionChatClear); err != nil {
		return err
	}
	snaps, err := s.client.List(ctx, feed.Messages())
	if err != nil {
		return err
	}

	var firstErr error
	deleted := 0
	for _, snap := range snaps {
		if m := models.MessageFromDoc(snap.DocID, snap.Fields); m.WorkspaceID != s.workspaceID {
			continue
		}
		if err := s.client.Delete(ctx, feed.Messages(), snap.DocID); err != nil {
			if firstErr == nil {
				firstErr = err
			}
			continue
		}
		deleted++
	}
	s.logger.Info("chat cleared",
		"workspace_id", s.workspaceID,
		"deleted", deleted,
		"by", userID,
	)
	return firstErr
}

// Wait blocks until in-flight AI replies have finished. Used by session
// teardown and tests.
func (s *Service) Wait() {
	s.pending.Wait()
}

func (s *Service) requireAction(userID string, action capabilities.Action) error {
	role := s.roles.Resolve(userID)
	if role == models.RoleNone {
		return fmt.Errorf("%w: not a member of workspace %s", domain.ErrUnauthorized, s.workspaceID)
	}
	if !s.caps.Can(role, action) {
		return fmt.Errorf("%w: role %s cannot %s", domain.ErrForbidden, role, action)
	}
	return nil
}

// nextTimestamp assigns a strictly increasing server timestamp.
func (s *Service) nextTimestamp() time.Time {
	s.tsMu.Lock()
	defer s.tsMu.Unlock()
	ts := s.now().UTC()
	if !ts.After(s.lastTS) {
		ts = s.lastTS.Add(time.Nanosecond)
	}
	s.lastTS = ts
	return ts
}
