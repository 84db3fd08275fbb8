package autosave

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"codecollab/internal/capabilities"
	"codecollab/internal/domain"
	"codecollab/internal/domain/models"
	"codecollab/internal/feed"
	"codecollab/internal/feed/memfeed"
)

const testWindow = 25 * time.Millisecond

type roleMap map[string]models.Role

func (m roleMap) Resolve(userID string) models.Role { return m[userID] }

// recordClient captures Put calls and can fail or block them on demand.
type recordClient struct {
	mu       sync.Mutex
	contents []string
	failNext error
	block    chan struct{} // when set, Put waits for a receive
}

func (c *recordClient) Put(ctx context.Context, collection, docID string, fields map[string]any) error {
	c.mu.Lock()
	block := c.block
	c.mu.Unlock()
	if block != nil {
		<-block
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.failNext != nil {
		err := c.failNext
		c.failNext = nil
		return err
	}
	content, _ := fields["content"].(string)
	c.contents = append(c.contents, content)
	return nil
}

func (c *recordClient) writes() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]string(nil), c.contents...)
}

func (c *recordClient) Subscribe(ctx context.Context, collection string, onSnapshot feed.SnapshotFunc, onError feed.ErrorFunc) (feed.Unsubscribe, error) {
	return func() {}, nil
}
func (c *recordClient) Get(ctx context.Context, collection, docID string) (map[string]any, error) {
	return nil, domain.ErrNotFound
}
func (c *recordClient) List(ctx context.Context, collection string) ([]feed.Snapshot, error) {
	return nil, nil
}
func (c *recordClient) Delete(ctx context.Context, collection, docID string) error { return nil }

func newTestCoordinator(t *testing.T, client feed.Client, roles roleMap, onChange ChangeFunc) *Coordinator {
	t.Helper()
	caps, err := capabilities.NewRegistry()
	if err != nil {
		t.Fatalf("NewRegistry: %v", err)
	}
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	c := New("ws1", client, roles, caps, testWindow, onChange, logger)
	t.Cleanup(c.Close)
	return c
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("condition not reached in time")
}

func TestRapidEditsCollapseToOneWrite(t *testing.T) {
	client := &recordClient{}
	c := newTestCoordinator(t, client, roleMap{"alice": models.RoleContributor}, nil)

	for _, content := range []string{"x", "xy", "xyz"} {
		if err := c.Edit("alice", "f1", content); err != nil {
			t.Fatalf("Edit(%q): %v", content, err)
		}
	}

	waitFor(t, func() bool { return len(client.writes()) == 1 })
	if got := client.writes(); got[0] != "xyz" {
		t.Errorf("written content = %q, want xyz", got[0])
	}

	// Quiet afterwards: no second write for the same buffer.
	time.Sleep(3 * testWindow)
	if got := client.writes(); len(got) != 1 {
		t.Errorf("writes = %v, want exactly one", got)
	}
}

func TestEchoSuppression(t *testing.T) {
	client := &recordClient{}
	var mu sync.Mutex
	var changes []string
	onChange := func(fileID, content string) {
		mu.Lock()
		changes = append(changes, content)
		mu.Unlock()
	}
	c := newTestCoordinator(t, client, roleMap{"alice": models.RoleOwner}, onChange)

	if err := c.Edit("alice", "f1", "hello"); err != nil {
		t.Fatalf("Edit: %v", err)
	}
	waitFor(t, func() bool { return len(client.writes()) == 1 })

	// Our own write coming back on the feed is silent.
	c.ApplyRemote(feed.Snapshot{DocID: "f1", Fields: map[string]any{"content": "hello"}})
	mu.Lock()
	n := len(changes)
	mu.Unlock()
	if n != 0 {
		t.Fatalf("echo produced %d change callbacks, want 0", n)
	}

	// A genuinely different remote edit replaces the buffer.
	c.ApplyRemote(feed.Snapshot{DocID: "f1", Fields: map[string]any{"content": "theirs"}})
	mu.Lock()
	got := append([]string(nil), changes...)
	mu.Unlock()
	if len(got) != 1 || got[0] != "theirs" {
		t.Fatalf("changes = %v, want [theirs]", got)
	}
	if content, _ := c.Content("f1"); content != "theirs" {
		t.Errorf("buffer = %q, want theirs", content)
	}

	// The remote content is not dirty; nothing further is written.
	time.Sleep(3 * testWindow)
	if got := client.writes(); len(got) != 1 {
		t.Errorf("writes = %v, want exactly one", got)
	}
}

func TestCloseFileDiscardsPendingWithoutFlush(t *testing.T) {
	client := &recordClient{}
	c := newTestCoordinator(t, client, roleMap{"alice": models.RoleOwner}, nil)

	if err := c.Edit("alice", "f1", "unsaved"); err != nil {
		t.Fatalf("Edit: %v", err)
	}
	c.CloseFile("f1")

	time.Sleep(3 * testWindow)
	if got := client.writes(); len(got) != 0 {
		t.Errorf("writes after CloseFile = %v, want none", got)
	}
	if _, ok := c.Content("f1"); ok {
		t.Error("file state survived CloseFile")
	}
}

func TestEditsDuringInFlightWriteCoalesce(t *testing.T) {
	block := make(chan struct{})
	client := &recordClient{block: block}
	c := newTestCoordinator(t, client, roleMap{"alice": models.RoleOwner}, nil)

	if err := c.Edit("alice", "f1", "a"); err != nil {
		t.Fatalf("Edit: %v", err)
	}
	// Let the window elapse so the first write is in flight and parked
	// on the blocked client, then keep typing.
	time.Sleep(2 * testWindow)
	if err := c.Edit("alice", "f1", "ab"); err != nil {
		t.Fatalf("Edit: %v", err)
	}
	if err := c.Edit("alice", "f1", "abc"); err != nil {
		t.Fatalf("Edit: %v", err)
	}

	block <- struct{}{} // release the first write
	waitFor(t, func() bool { return len(client.writes()) == 1 })

	block <- struct{}{} // release the coalesced second write
	waitFor(t, func() bool { return len(client.writes()) == 2 })

	got := client.writes()
	if got[0] != "a" || got[1] != "abc" {
		t.Errorf("writes = %v, want [a abc]", got)
	}
}

func TestWriteFailureRetriedOnlyOnNextEdit(t *testing.T) {
	client := &recordClient{failNext: errors.New("store down")}
	c := newTestCoordinator(t, client, roleMap{"alice": models.RoleOwner}, nil)

	if err := c.Edit("alice", "f1", "draft"); err != nil {
		t.Fatalf("Edit: %v", err)
	}
	// The failed write records nothing and must not self-retry.
	time.Sleep(4 * testWindow)
	if got := client.writes(); len(got) != 0 {
		t.Fatalf("writes after failure = %v, want none", got)
	}

	if err := c.Edit("alice", "f1", "draft2"); err != nil {
		t.Fatalf("Edit: %v", err)
	}
	waitFor(t, func() bool { return len(client.writes()) == 1 })
	if got := client.writes(); got[0] != "draft2" {
		t.Errorf("retried content = %q, want draft2", got[0])
	}
}

func TestEditPermissions(t *testing.T) {
	client := &recordClient{}
	c := newTestCoordinator(t, client, roleMap{"eve": models.RoleViewer}, nil)

	if err := c.Edit("eve", "f1", "nope"); !errors.Is(err, domain.ErrForbidden) {
		t.Errorf("viewer edit = %v, want ErrForbidden", err)
	}
	if err := c.Edit("stranger", "f1", "nope"); !errors.Is(err, domain.ErrUnauthorized) {
		t.Errorf("non-member edit = %v, want ErrUnauthorized", err)
	}
	time.Sleep(2 * testWindow)
	if got := client.writes(); len(got) != 0 {
		t.Errorf("writes = %v, want none", got)
	}
}

func TestFlushStampsUpdatedAt(t *testing.T) {
	ctx := context.Background()
	store := memfeed.New()
	c := newTestCoordinator(t, store, roleMap{"alice": models.RoleOwner}, nil)

	if err := c.Edit("alice", "f1", "package main"); err != nil {
		t.Fatalf("Edit: %v", err)
	}
	waitFor(t, func() bool {
		fields, err := store.Get(ctx, feed.FilesOf("ws1"), "f1")
		return err == nil && fields["content"] == "package main"
	})

	fields, err := store.Get(ctx, feed.FilesOf("ws1"), "f1")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if node := models.FileFromDoc("ws1", "f1", fields); node.UpdatedAt.IsZero() {
		t.Error("flush did not stamp updatedAt")
	}
}
