package chat

import (
	"sort"
	"sync"

	"codecollab/internal/domain/models"
	"codecollab/internal/feed"
)

// Log is a live in-memory mirror of one workspace's messages, fed by a
// messages-collection subscription. The collection is global, so the log
// filters by workspace as snapshots arrive.
type Log struct {
	workspaceID string

	mu       sync.RWMutex
	messages map[string]*models.Message
}

// NewLog creates an empty log for the workspace.
func NewLog(workspaceID string) *Log {
	return &Log{
		workspaceID: workspaceID,
		messages:    make(map[string]*models.Message),
	}
}

// ApplySnapshot reconciles one feed event into the log.
func (l *Log) ApplySnapshot(snap feed.Snapshot) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if snap.Deleted {
		delete(l.messages, snap.DocID)
		return
	}
	m := models.MessageFromDoc(snap.DocID, snap.Fields)
	if m.WorkspaceID != l.workspaceID {
		return
	}
	l.messages[m.ID] = m
}

// Messages returns the log ordered by timestamp.
func (l *Log) Messages() []*models.Message {
	l.mu.RLock()
	defer l.mu.RUnlock()
	out := make([]*models.Message, 0, len(l.messages))
	for _, m := range l.messages {
		cp := *m
		out = append(out, &cp)
	}
	sortMessages(out)
	return out
}

// Len returns the number of messages in the log.
func (l *Log) Len() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.messages)
}

func sortMessages(messages []*models.Message) {
	sort.Slice(messages, func(i, j int) bool {
		if !messages[i].CreatedAt.Equal(messages[j].CreatedAt) {
			return messages[i].CreatedAt.Before(messages[j].CreatedAt)
		}
		return messages[i].ID < messages[j].ID
	})
}
