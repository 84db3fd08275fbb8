package handler

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"codecollab/internal/capabilities"
	"codecollab/internal/domain/models"
	"codecollab/internal/feed"
	"codecollab/internal/feed/memfeed"
	"codecollab/internal/httputil"
	"codecollab/internal/session"
)

type stubCompleter struct{}

func (stubCompleter) Complete(ctx context.Context, prompt string) (string, error) {
	return "stub reply", nil
}

func newTestSessions(t *testing.T) (*session.Manager, *memfeed.Store) {
	t.Helper()
	caps, err := capabilities.NewRegistry()
	if err != nil {
		t.Fatalf("NewRegistry: %v", err)
	}
	store := memfeed.New()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	m := session.NewManager(store, caps, stubCompleter{}, 20*time.Millisecond, logger)
	t.Cleanup(m.CloseAll)
	return m, store
}

func seedWorkspace(t *testing.T, store *memfeed.Store, workspaceID string) {
	t.Helper()
	ctx := context.Background()
	ws := &models.Workspace{ID: workspaceID, Name: "proj", Visibility: models.VisibilityPrivate, CreatedBy: "alice"}
	if err := store.Put(ctx, feed.Workspaces(), workspaceID, ws.Fields()); err != nil {
		t.Fatalf("seed workspace: %v", err)
	}
	m := &models.Member{UserID: "alice", Role: models.RoleOwner, DisplayName: "Alice"}
	if err := store.Put(ctx, feed.MembersOf(workspaceID), "alice", m.Fields()); err != nil {
		t.Fatalf("seed member: %v", err)
	}
	folder := &models.Node{ID: "d1", WorkspaceID: workspaceID, Kind: models.NodeFolder, Name: "plans"}
	if err := store.Put(ctx, feed.FoldersOf(workspaceID), folder.ID, folder.Fields()); err != nil {
		t.Fatalf("seed folder: %v", err)
	}
}

func getTree(h *NodeHandler, workspaceID, userID string) *httptest.ResponseRecorder {
	r := httptest.NewRequest(http.MethodGet, "/api/workspaces/"+workspaceID+"/tree", nil)
	r.SetPathValue("id", workspaceID)
	r = httputil.WithUserID(r, userID)
	rec := httptest.NewRecorder()
	h.GetTree(rec, r)
	return rec
}

func TestGetTreeRequiresMembership(t *testing.T) {
	sessions, store := newTestSessions(t)
	seedWorkspace(t, store, "ws1")
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	h := NewNodeHandler(sessions, logger)

	// Members read the tree once the role and folder replays land.
	deadline := time.Now().Add(2 * time.Second)
	var rec *httptest.ResponseRecorder
	for {
		rec = getTree(h, "ws1", "alice")
		if (rec.Code == http.StatusOK && strings.Contains(rec.Body.String(), "plans")) || time.Now().After(deadline) {
			break
		}
		time.Sleep(5 * time.Millisecond)
	}
	if rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), "plans") {
		t.Fatalf("owner GetTree = %d %s, want 200 with seeded folder", rec.Code, rec.Body)
	}

	// An authenticated non-member gets nothing, not the tree.
	rec = getTree(h, "ws1", "mallory")
	if rec.Code != http.StatusUnauthorized {
		t.Errorf("non-member GetTree status = %d, want 401 (body %s)", rec.Code, rec.Body)
	}
	if strings.Contains(rec.Body.String(), "plans") {
		t.Errorf("non-member response leaked tree contents: %s", rec.Body)
	}
}
