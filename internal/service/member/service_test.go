package member

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"codecollab/internal/capabilities"
	"codecollab/internal/domain"
	"codecollab/internal/domain/models"
	"codecollab/internal/feed"
	"codecollab/internal/feed/memfeed"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestService(t *testing.T) (*Service, *memfeed.Store) {
	t.Helper()
	caps, err := capabilities.NewRegistry()
	if err != nil {
		t.Fatalf("NewRegistry: %v", err)
	}
	store := memfeed.New()
	return NewService(store, caps, testLogger()), store
}

func seedUser(t *testing.T, store *memfeed.Store, u *models.User) {
	t.Helper()
	if err := store.Put(context.Background(), feed.Users(), u.ID, u.Fields()); err != nil {
		t.Fatalf("seed user %s: %v", u.ID, err)
	}
}

func seedMember(t *testing.T, store *memfeed.Store, workspaceID string, m *models.Member) {
	t.Helper()
	if err := store.Put(context.Background(), feed.MembersOf(workspaceID), m.UserID, m.Fields()); err != nil {
		t.Fatalf("seed member %s: %v", m.UserID, err)
	}
}

func TestCreateWorkspaceEnrollsOwner(t *testing.T) {
	ctx := context.Background()
	svc, store := newTestService(t)
	seedUser(t, store, &models.User{ID: "alice", Email: "alice@example.com", DisplayName: "Alice"})

	ws, err := svc.CreateWorkspace(ctx, "alice", &CreateWorkspaceRequest{Name: "proj"})
	if err != nil {
		t.Fatalf("CreateWorkspace: %v", err)
	}
	if ws.Name != "proj" || ws.CreatedBy != "alice" {
		t.Errorf("workspace = %+v", ws)
	}

	fields, err := store.Get(ctx, feed.MembersOf(ws.ID), "alice")
	if err != nil {
		t.Fatalf("owner member missing: %v", err)
	}
	m := models.MemberFromDoc("alice", fields)
	if m.Role != models.RoleOwner || m.DisplayName != "Alice" {
		t.Errorf("owner member = %+v", m)
	}
}

func TestCreateWorkspaceValidation(t *testing.T) {
	svc, _ := newTestService(t)
	if _, err := svc.CreateWorkspace(context.Background(), "alice", &CreateWorkspaceRequest{}); !errors.Is(err, domain.ErrValidation) {
		t.Errorf("CreateWorkspace with empty name = %v, want ErrValidation", err)
	}
}

func TestInviteAcceptDecline(t *testing.T) {
	ctx := context.Background()
	svc, store := newTestService(t)
	seedUser(t, store, &models.User{ID: "alice", Email: "alice@example.com", DisplayName: "Alice"})
	seedUser(t, store, &models.User{ID: "bob", Email: "bob@example.com", DisplayName: "Bob"})

	ws, err := svc.CreateWorkspace(ctx, "alice", &CreateWorkspaceRequest{Name: "proj"})
	if err != nil {
		t.Fatalf("CreateWorkspace: %v", err)
	}

	if err := svc.Invite(ctx, "alice", ws.ID, "bob"); err != nil {
		t.Fatalf("Invite: %v", err)
	}
	invites, err := svc.ListInvites(ctx, "bob")
	if err != nil || len(invites) != 1 {
		t.Fatalf("ListInvites = %v, %v; want one invite", invites, err)
	}
	if invites[0].WorkspaceName != "proj" || invites[0].InvitedBy != "alice" {
		t.Errorf("invite = %+v", invites[0])
	}

	// No membership until acceptance.
	if _, err := store.Get(ctx, feed.MembersOf(ws.ID), "bob"); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("bob already a member before accepting: %v", err)
	}

	// Duplicate invite rejected.
	if err := svc.Invite(ctx, "alice", ws.ID, "bob"); !errors.Is(err, domain.ErrConflict) {
		t.Errorf("duplicate invite = %v, want ErrConflict", err)
	}

	if err := svc.AcceptInvite(ctx, "bob", ws.ID); err != nil {
		t.Fatalf("AcceptInvite: %v", err)
	}
	fields, err := store.Get(ctx, feed.MembersOf(ws.ID), "bob")
	if err != nil {
		t.Fatalf("member after accept: %v", err)
	}
	if m := models.MemberFromDoc("bob", fields); m.Role != models.RoleContributor {
		t.Errorf("accepted role = %s, want contributor", m.Role)
	}
	if invites, _ := svc.ListInvites(ctx, "bob"); len(invites) != 0 {
		t.Errorf("invites after accept = %+v, want none", invites)
	}

	// Decline flow: fresh invite to carol, declined.
	seedUser(t, store, &models.User{ID: "carol", Email: "carol@example.com", DisplayName: "Carol"})
	if err := svc.Invite(ctx, "alice", ws.ID, "carol"); err != nil {
		t.Fatalf("Invite carol: %v", err)
	}
	if err := svc.DeclineInvite(ctx, "carol", ws.ID); err != nil {
		t.Fatalf("DeclineInvite: %v", err)
	}
	if _, err := store.Get(ctx, feed.MembersOf(ws.ID), "carol"); !errors.Is(err, domain.ErrNotFound) {
		t.Errorf("carol became a member after declining: %v", err)
	}
	if invites, _ := svc.ListInvites(ctx, "carol"); len(invites) != 0 {
		t.Errorf("invites after decline = %+v, want none", invites)
	}

	if err := svc.AcceptInvite(ctx, "carol", ws.ID); !errors.Is(err, domain.ErrNotFound) {
		t.Errorf("accepting a declined invite = %v, want ErrNotFound", err)
	}
}

func TestInviteRequiresCapability(t *testing.T) {
	ctx := context.Background()
	svc, store := newTestService(t)
	seedUser(t, store, &models.User{ID: "bob", Email: "bob@example.com"})
	seedMember(t, store, "ws1", &models.Member{UserID: "eve", Role: models.RoleViewer})
	if err := store.Put(ctx, feed.Workspaces(), "ws1", (&models.Workspace{ID: "ws1", Name: "proj"}).Fields()); err != nil {
		t.Fatalf("seed workspace: %v", err)
	}

	if err := svc.Invite(ctx, "eve", "ws1", "bob"); !errors.Is(err, domain.ErrForbidden) {
		t.Errorf("viewer invite = %v, want ErrForbidden", err)
	}
	if err := svc.Invite(ctx, "stranger", "ws1", "bob"); !errors.Is(err, domain.ErrUnauthorized) {
		t.Errorf("non-member invite = %v, want ErrUnauthorized", err)
	}
}

func TestSoleOwnerCannotLeave(t *testing.T) {
	ctx := context.Background()
	svc, store := newTestService(t)
	seedMember(t, store, "ws1", &models.Member{UserID: "alice", Role: models.RoleOwner})
	seedMember(t, store, "ws1", &models.Member{UserID: "bob", Role: models.RoleContributor})

	if err := svc.Leave(ctx, "alice", "ws1"); !errors.Is(err, domain.ErrValidation) {
		t.Errorf("sole owner leave = %v, want ErrValidation", err)
	}

	// A second owner frees the first to go.
	seedMember(t, store, "ws1", &models.Member{UserID: "carol", Role: models.RoleOwner})
	if err := svc.Leave(ctx, "alice", "ws1"); err != nil {
		t.Fatalf("leave with co-owner: %v", err)
	}
	if _, err := store.Get(ctx, feed.MembersOf("ws1"), "alice"); !errors.Is(err, domain.ErrNotFound) {
		t.Errorf("alice still a member after leaving: %v", err)
	}

	if err := svc.Leave(ctx, "bob", "ws1"); err != nil {
		t.Fatalf("contributor leave: %v", err)
	}
}

func TestRemoveMember(t *testing.T) {
	ctx := context.Background()
	svc, store := newTestService(t)
	seedMember(t, store, "ws1", &models.Member{UserID: "alice", Role: models.RoleOwner})
	seedMember(t, store, "ws1", &models.Member{UserID: "bob", Role: models.RoleContributor})
	seedMember(t, store, "ws1", &models.Member{UserID: "carol", Role: models.RoleOwner})

	if err := svc.RemoveMember(ctx, "bob", "ws1", "alice"); !errors.Is(err, domain.ErrForbidden) {
		t.Errorf("contributor removing member = %v, want ErrForbidden", err)
	}
	if err := svc.RemoveMember(ctx, "alice", "ws1", "carol"); !errors.Is(err, domain.ErrValidation) {
		t.Errorf("removing an owner = %v, want ErrValidation", err)
	}
	if err := svc.RemoveMember(ctx, "alice", "ws1", "bob"); err != nil {
		t.Fatalf("RemoveMember: %v", err)
	}
	if _, err := store.Get(ctx, feed.MembersOf("ws1"), "bob"); !errors.Is(err, domain.ErrNotFound) {
		t.Errorf("bob still a member: %v", err)
	}
}

func TestDeleteWorkspaceCascades(t *testing.T) {
	ctx := context.Background()
	svc, store := newTestService(t)
	seedMember(t, store, "ws1", &models.Member{UserID: "alice", Role: models.RoleOwner})
	if err := store.Put(ctx, feed.Workspaces(), "ws1", (&models.Workspace{ID: "ws1", Name: "proj"}).Fields()); err != nil {
		t.Fatalf("seed workspace: %v", err)
	}
	if err := store.Put(ctx, feed.FoldersOf("ws1"), "A", map[string]any{"name": "a"}); err != nil {
		t.Fatalf("seed folder: %v", err)
	}
	if err := store.Put(ctx, feed.FilesOf("ws1"), "f1", map[string]any{"name": "x.go"}); err != nil {
		t.Fatalf("seed file: %v", err)
	}
	msg := &models.Message{ID: "m1", WorkspaceID: "ws1", AuthorID: "alice", Body: "hi"}
	if err := store.Put(ctx, feed.Messages(), msg.ID, msg.Fields()); err != nil {
		t.Fatalf("seed message: %v", err)
	}
	other := &models.Message{ID: "m2", WorkspaceID: "ws2", AuthorID: "zed", Body: "keep"}
	if err := store.Put(ctx, feed.Messages(), other.ID, other.Fields()); err != nil {
		t.Fatalf("seed other message: %v", err)
	}

	if err := svc.DeleteWorkspace(ctx, "bob", "ws1"); !errors.Is(err, domain.ErrUnauthorized) {
		t.Fatalf("non-member delete = %v, want ErrUnauthorized", err)
	}
	if err := svc.DeleteWorkspace(ctx, "alice", "ws1"); err != nil {
		t.Fatalf("DeleteWorkspace: %v", err)
	}

	for _, collection := range []string{feed.FoldersOf("ws1"), feed.FilesOf("ws1"), feed.MembersOf("ws1")} {
		if snaps, _ := store.List(ctx, collection); len(snaps) != 0 {
			t.Errorf("%s has %d docs after cascade", collection, len(snaps))
		}
	}
	if _, err := store.Get(ctx, feed.Workspaces(), "ws1"); !errors.Is(err, domain.ErrNotFound) {
		t.Errorf("workspace doc survived: %v", err)
	}
	if _, err := store.Get(ctx, feed.Messages(), "m2"); err != nil {
		t.Errorf("message of another workspace was deleted: %v", err)
	}
}

func TestSearchUsers(t *testing.T) {
	ctx := context.Background()
	svc, store := newTestService(t)
	seedUser(t, store, &models.User{ID: "u1", Email: "alice@example.com"})
	seedUser(t, store, &models.User{ID: "u2", Email: "albert@example.com"})
	seedUser(t, store, &models.User{ID: "u3", Email: "bob@example.com"})

	users, err := svc.SearchUsers(ctx, "AL")
	if err != nil {
		t.Fatalf("SearchUsers: %v", err)
	}
	if len(users) != 2 {
		t.Errorf("SearchUsers(AL) = %d users, want 2", len(users))
	}
	if _, err := svc.SearchUsers(ctx, "  "); !errors.Is(err, domain.ErrValidation) {
		t.Errorf("blank prefix = %v, want ErrValidation", err)
	}
}

func TestResolverTracksLiveChanges(t *testing.T) {
	ctx := context.Background()
	_, store := newTestService(t)
	seedMember(t, store, "ws1", &models.Member{UserID: "alice", Role: models.RoleViewer})

	r, err := NewResolver(ctx, store, "ws1", testLogger())
	if err != nil {
		t.Fatalf("NewResolver: %v", err)
	}
	defer r.Close()

	waitForRole(t, r, "alice", models.RoleViewer)
	if got := r.Resolve("nobody"); got != models.RoleNone {
		t.Errorf("Resolve(nobody) = %q, want RoleNone", got)
	}

	// Promotion lands without reconnecting.
	seedMember(t, store, "ws1", &models.Member{UserID: "alice", Role: models.RoleOwner})
	waitForRole(t, r, "alice", models.RoleOwner)

	// Removal revokes.
	if err := store.Delete(ctx, feed.MembersOf("ws1"), "alice"); err != nil {
		t.Fatalf("delete member: %v", err)
	}
	waitForRole(t, r, "alice", models.RoleNone)
}

func waitForRole(t *testing.T, r *Resolver, userID string, want models.Role) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if r.Resolve(userID) == want {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("Resolve(%s) never became %q", userID, want)
}

func TestWorkspaceVisibility(t *testing.T) {
	ctx := context.Background()
	svc, _ := newTestService(t)

	// Omitted visibility defaults to private.
	ws, err := svc.CreateWorkspace(ctx, "alice", &CreateWorkspaceRequest{Name: "proj"})
	if err != nil {
		t.Fatalf("CreateWorkspace: %v", err)
	}
	if ws.Visibility != models.VisibilityPrivate {
		t.Errorf("default visibility = %q, want private", ws.Visibility)
	}

	pub, err := svc.CreateWorkspace(ctx, "alice", &CreateWorkspaceRequest{Name: "open", Visibility: models.VisibilityPublic})
	if err != nil {
		t.Fatalf("CreateWorkspace public: %v", err)
	}
	got, err := svc.GetWorkspace(ctx, pub.ID)
	if err != nil {
		t.Fatalf("GetWorkspace: %v", err)
	}
	if got.Visibility != models.VisibilityPublic {
		t.Errorf("stored visibility = %q, want public", got.Visibility)
	}

	if _, err := svc.CreateWorkspace(ctx, "alice", &CreateWorkspaceRequest{Name: "bad", Visibility: "hidden"}); !errors.Is(err, domain.ErrValidation) {
		t.Errorf("CreateWorkspace with bogus visibility = %v, want ErrValidation", err)
	}

	// Flipping visibility leaves the name alone.
	vis := models.VisibilityPublic
	if err := svc.UpdateWorkspace(ctx, "alice", ws.ID, &UpdateWorkspaceRequest{Visibility: &vis}); err != nil {
		t.Fatalf("UpdateWorkspace visibility: %v", err)
	}
	got, err = svc.GetWorkspace(ctx, ws.ID)
	if err != nil {
		t.Fatalf("GetWorkspace: %v", err)
	}
	if got.Visibility != models.VisibilityPublic || got.Name != "proj" {
		t.Errorf("after visibility update = %+v", got)
	}

	// Renaming leaves visibility alone.
	name := "renamed"
	if err := svc.UpdateWorkspace(ctx, "alice", ws.ID, &UpdateWorkspaceRequest{Name: &name}); err != nil {
		t.Fatalf("UpdateWorkspace name: %v", err)
	}
	got, err = svc.GetWorkspace(ctx, ws.ID)
	if err != nil {
		t.Fatalf("GetWorkspace: %v", err)
	}
	if got.Name != "renamed" || got.Visibility != models.VisibilityPublic {
		t.Errorf("after rename = %+v", got)
	}

	if err := svc.UpdateWorkspace(ctx, "alice", ws.ID, &UpdateWorkspaceRequest{}); !errors.Is(err, domain.ErrValidation) {
		t.Errorf("empty update = %v, want ErrValidation", err)
	}
}

func TestListMembersRequiresMembership(t *testing.T) {
	ctx := context.Background()
	svc, store := newTestService(t)

	ws, err := svc.CreateWorkspace(ctx, "alice", &CreateWorkspaceRequest{Name: "proj"})
	if err != nil {
		t.Fatalf("CreateWorkspace: %v", err)
	}
	seedMember(t, store, ws.ID, &models.Member{UserID: "bob", Role: models.RoleViewer, DisplayName: "Bob"})

	members, err := svc.ListMembers(ctx, "alice", ws.ID)
	if err != nil || len(members) != 2 {
		t.Fatalf("ListMembers as owner = %v, %v; want two members", members, err)
	}
	if _, err := svc.ListMembers(ctx, "bob", ws.ID); err != nil {
		t.Errorf("ListMembers as viewer = %v, want nil", err)
	}
	if _, err := svc.ListMembers(ctx, "mallory", ws.ID); !errors.Is(err, domain.ErrUnauthorized) {
		t.Errorf("ListMembers as non-member = %v, want ErrUnauthorized", err)
	}
}
