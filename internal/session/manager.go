package session

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"codecollab/internal/capabilities"
	"codecollab/internal/feed"
	"codecollab/internal/service/ai"
)

// Manager hands out at most one session per workspace, opening lazily on
// first use.
type Manager struct {
	client         feed.Client
	caps           *capabilities.Registry
	completer      ai.Completer
	autosaveWindow time.Duration
	logger         *slog.Logger

	mu       sync.Mutex
	sessions map[string]*Session
}

// NewManager creates an empty session manager.
func NewManager(client feed.Client, caps *capabilities.Registry, completer ai.Completer, autosaveWindow time.Duration, logger *slog.Logger) *Manager {
	return &Manager{
		client:         client,
		caps:           caps,
		completer:      completer,
		autosaveWindow: autosaveWindow,
		logger:         logger,
		sessions:       make(map[string]*Session),
	}
}

// Get returns the workspace's session, opening it if needed.
func (m *Manager) Get(ctx context.Context, workspaceID string) (*Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if s, ok := m.sessions[workspaceID]; ok {
		return s, nil
	}
	s, err := Open(ctx, m.client, m.caps, m.completer, workspaceID, m.autosaveWindow, m.logger)
	if err != nil {
		return nil, err
	}
	m.sessions[workspaceID] = s
	return s, nil
}

// Close tears down one workspace's session, if open.
func (m *Manager) Close(workspaceID string) {
	m.mu.Lock()
	s, ok := m.sessions[workspaceID]
	delete(m.sessions, workspaceID)
	m.mu.Unlock()
	if ok {
		s.Close()
	}
}

// CloseAll tears down every open session.
func (m *Manager) CloseAll() {
	m.mu.Lock()
	sessions := make([]*Session, 0, len(m.sessions))
	for _, s := range m.sessions {
		sessions = append(sessions, s)
	}
	m.sessions = make(map[string]*Session)
	m.mu.Unlock()
	for _, s := range sessions {
		s.Close()
	}
}
