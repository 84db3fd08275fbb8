// Package autosave debounces file edits into remote writes. Keystrokes
// land in a per-file buffer; after a quiet window the buffer is flushed in
// one write. At most one write per file is in flight, and snapshots that
// merely echo our own last write are suppressed instead of re-applied.
package autosave

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"codecollab/internal/capabilities"
	"codecollab/internal/config"
	"codecollab/internal/domain"
	"codecollab/internal/domain/models"
	"codecollab/internal/feed"
)

// RoleSource resolves a user's current role in the coordinator's
// workspace.
type RoleSource interface {
	Resolve(userID string) models.Role
}

// ChangeFunc is notified when a remote edit (not an echo of our own
// write) replaces a file's buffer.
type ChangeFunc func(fileID, content string)

// Coordinator owns the autosave state for one workspace's open files.
type Coordinator struct {
	workspaceID string
	client      feed.Client
	roles       RoleSource
	caps        *capabilities.Registry
	logger      *slog.Logger
	window      time.Duration
	onChange    ChangeFunc
	now         func() time.Time

	mu     sync.Mutex
	files  map[string]*fileState
	closed bool
}

// fileState tracks one open file. gen increments on every buffer change;
// a timer fire or write completion carrying a stale gen is ignored, which
// is what collapses rapid edits into a single write.
type fileState struct {
	pending     string
	dirty       bool
	gen         uint64
	inFlight    bool
	lastWritten string
	wrote       bool
	timer       *time.Timer
}

// New creates a coordinator. A non-positive window falls back to the
// configured default. onChange may be nil.
func New(workspaceID string, client feed.Client, roles RoleSource, caps *capabilities.Registry, window time.Duration, onChange ChangeFunc, logger *slog.Logger) *Coordinator {
	if window <= 0 {
		window = config.DefaultAutosaveWindow
	}
	return &Coordinator{
		workspaceID: workspaceID,
		client:      client,
		roles:       roles,
		caps:        caps,
		logger:      logger,
		window:      window,
		onChange:    onChange,
		now:         time.Now,
		files:       make(map[string]*fileState),
	}
}

// Edit replaces the file's pending buffer and restarts the quiet-window
// timer. The write itself happens later, off the caller's path.
func (c *Coordinator) Edit(userID, fileID, content string) error {
	role := c.roles.Resolve(userID)
	if role == models.RoleNone {
		return fmt.Errorf("%w: not a member of workspace %s", domain.ErrUnauthorized, c.workspaceID)
	}
	if !c.caps.Can(role, capabilities.ActionFileEdit) {
		return fmt.Errorf("%w: role %s cannot edit files", domain.ErrForbidden, role)
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return fmt.Errorf("%w: autosave coordinator closed", domain.ErrValidation)
	}
	fs := c.files[fileID]
	if fs == nil {
		fs = &fileState{}
		c.files[fileID] = fs
	}
	fs.pending = content
	fs.dirty = true
	fs.gen++
	c.scheduleLocked(fileID, fs)
	return nil
}

// Content returns the file's current buffer.
func (c *Coordinator) Content(fileID string) (string, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	fs, ok := c.files[fileID]
	if !ok {
		return "", false
	}
	return fs.pending, true
}

// CloseFile drops the file's autosave state. Any pending buffer is
// discarded without a final flush; an in-flight write is left to finish.
func (c *Coordinator) CloseFile(fileID string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	fs, ok := c.files[fileID]
	if !ok {
		return
	}
	if fs.timer != nil {
		fs.timer.Stop()
	}
	delete(c.files, fileID)
}

// ApplyRemote reconciles a file snapshot from the feed. An echo of the
// coordinator's own last write is suppressed; any other content replaces
// the local buffer (last write wins) and cancels the pending flush.
func (c *Coordinator) ApplyRemote(snap feed.Snapshot) {
	c.mu.Lock()
	fs, ok := c.files[snap.DocID]
	if !ok {
		c.mu.Unlock()
		return
	}
	if snap.Deleted {
		if fs.timer != nil {
			fs.timer.Stop()
		}
		delete(c.files, snap.DocID)
		c.mu.Unlock()
		return
	}

	content, _ := snap.Fields["content"].(string)
	if fs.wrote && content == fs.lastWritten {
		c.mu.Unlock()
		return
	}
	fs.pending = content
	fs.dirty = false
	fs.gen++
	if fs.timer != nil {
		fs.timer.Stop()
	}
	onChange := c.onChange
	c.mu.Unlock()

	if onChange != nil {
		onChange(snap.DocID, content)
	}
}

// Close cancels every pending timer. In-flight writes finish on their
// own; nothing further is scheduled.
func (c *Coordinator) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closed = true
	for _, fs := range c.files {
		if fs.timer != nil {
			fs.timer.Stop()
		}
	}
	c.files = make(map[string]*fileState)
}

// scheduleLocked (re)arms the quiet-window timer for the file's current
// generation. Called with c.mu held.
func (c *Coordinator) scheduleLocked(fileID string, fs *fileState) {
	if fs.timer != nil {
		fs.timer.Stop()
	}
	gen := fs.gen
	fs.timer = time.AfterFunc(c.window, func() { c.fire(fileID, gen) })
}

// fire runs when a quiet window elapses. A stale generation means more
// edits arrived after this timer was armed; their own timer handles them.
func (c *Coordinator) fire(fileID string, gen uint64) {
	c.mu.Lock()
	fs, ok := c.files[fileID]
	if !ok || c.closed || fs.gen != gen || !fs.dirty {
		c.mu.Unlock()
		return
	}
	if fs.inFlight {
		// One write at a time; try again after another window.
		c.scheduleLocked(fileID, fs)
		c.mu.Unlock()
		return
	}
	content := fs.pending
	fs.dirty = false
	fs.inFlight = true
	c.mu.Unlock()

	go c.flush(fileID, gen, content)
}

// flush performs the remote write. Failures are logged, not retried; the
// buffer stays as-is and the next edit starts a fresh cycle.
func (c *Coordinator) flush(fileID string, gen uint64, content string) {
	err := c.client.Put(context.Background(), feed.FilesOf(c.workspaceID), fileID, map[string]any{
		"content":   content,
		"updatedAt": models.Timestamp(c.now()),
	})

	c.mu.Lock()
	defer c.mu.Unlock()
	fs, ok := c.files[fileID]
	if !ok {
		return
	}
	fs.inFlight = false
	if err != nil {
		c.logger.Warn("autosave write failed",
			"workspace_id", c.workspaceID,
			"file_id", fileID,
			"error", err,
		)
		return
	}
	fs.lastWritten = content
	fs.wrote = true
	if fs.dirty && fs.gen != gen {
		// Edits landed while the write was in flight; their timer is
		// already armed, nothing to do here.
		c.logger.Debug("autosave coalesced edits during flush", "file_id", fileID)
	}
}
