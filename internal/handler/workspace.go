package handler

import (
	"log/slog"
	"net/http"

	"codecollab/internal/httputil"
	"codecollab/internal/service/member"
	"codecollab/internal/session"
)

// WorkspaceHandler handles workspace lifecycle and membership requests.
type WorkspaceHandler struct {
	members  *member.Service
	sessions *session.Manager
	logger   *slog.Logger
}

// NewWorkspaceHandler creates a new workspace handler
func NewWorkspaceHandler(members *member.Service, sessions *session.Manager, logger *slog.Logger) *WorkspaceHandler {
	return &WorkspaceHandler{
		members:  members,
		sessions: sessions,
		logger:   logger,
	}
}

// ListWorkspaces lists the caller's workspaces
// GET /api/workspaces
func (h *WorkspaceHandler) ListWorkspaces(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}
	workspaces, err := h.members.ListWorkspacesFor(r.Context(), userID)
	if err != nil {
		handleError(w, err)
		return
	}
	httputil.RespondJSON(w, http.StatusOK, workspaces)
}

// CreateWorkspace creates a workspace owned by the caller
// POST /api/workspaces
func (h *WorkspaceHandler) CreateWorkspace(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}
	var req member.CreateWorkspaceRequest
	if err := httputil.ParseJSON(w, r, &req); err != nil {
		httputil.RespondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	ws, err := h.members.CreateWorkspace(r.Context(), userID, &req)
	if err != nil {
		handleError(w, err)
		return
	}
	httputil.RespondJSON(w, http.StatusCreated, ws)
}

// GetWorkspace returns one workspace
// GET /api/workspaces/{id}
func (h *WorkspaceHandler) GetWorkspace(w http.ResponseWriter, r *http.Request) {
	if _, ok := requireUser(w, r); !ok {
		return
	}
	ws, err := h.members.GetWorkspace(r.Context(), r.PathValue("id"))
	if err != nil {
		handleError(w, err)
		return
	}
	httputil.RespondJSON(w, http.StatusOK, ws)
}

// UpdateWorkspace changes a workspace's name and/or visibility
// PATCH /api/workspaces/{id}
func (h *WorkspaceHandler) UpdateWorkspace(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}
	var req member.UpdateWorkspaceRequest
	if err := httputil.ParseJSON(w, r, &req); err != nil {
		httputil.RespondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if err := h.members.UpdateWorkspace(r.Context(), userID, r.PathValue("id"), &req); err != nil {
		handleError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// DeleteWorkspace deletes a workspace and everything in it
// DELETE /api/workspaces/{id}
func (h *WorkspaceHandler) DeleteWorkspace(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}
	workspaceID := r.PathValue("id")
	if err := h.members.DeleteWorkspace(r.Context(), userID, workspaceID); err != nil {
		handleError(w, err)
		return
	}
	// The session, if open, mirrors a workspace that no longer exists.
	h.sessions.Close(workspaceID)
	w.WriteHeader(http.StatusNoContent)
}

// ListMembers lists a workspace's members
// GET /api/workspaces/{id}/members
func (h *WorkspaceHandler) ListMembers(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}
	members, err := h.members.ListMembers(r.Context(), userID, r.PathValue("id"))
	if err != nil {
		handleError(w, err)
		return
	}
	httputil.RespondJSON(w, http.StatusOK, members)
}

// RemoveMember removes a member from a workspace
// DELETE /api/workspaces/{id}/members/{userID}
func (h *WorkspaceHandler) RemoveMember(w http.ResponseWriter, r *http.Request) {
	callerID, ok := requireUser(w, r)
	if !ok {
		return
	}
	if err := h.members.RemoveMember(r.Context(), callerID, r.PathValue("id"), r.PathValue("userID")); err != nil {
		handleError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// Leave removes the caller's own membership
// POST /api/workspaces/{id}/leave
func (h *WorkspaceHandler) Leave(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}
	if err := h.members.Leave(r.Context(), userID, r.PathValue("id")); err != nil {
		handleError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// Invite invites a user to a workspace
// POST /api/workspaces/{id}/invites
func (h *WorkspaceHandler) Invite(w http.ResponseWriter, r *http.Request) {
	inviterID, ok := requireUser(w, r)
	if !ok {
		return
	}
	var req struct {
		UserID string `json:"user_id"`
	}
	if err := httputil.ParseJSON(w, r, &req); err != nil || req.UserID == "" {
		httputil.RespondError(w, http.StatusBadRequest, "user_id is required")
		return
	}
	if err := h.members.Invite(r.Context(), inviterID, r.PathValue("id"), req.UserID); err != nil {
		handleError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// SearchUsers searches the user directory by email prefix
// GET /api/users/search?q=prefix
func (h *WorkspaceHandler) SearchUsers(w http.ResponseWriter, r *http.Request) {
	if _, ok := requireUser(w, r); !ok {
		return
	}
	users, err := h.members.SearchUsers(r.Context(), r.URL.Query().Get("q"))
	if err != nil {
		handleError(w, err)
		return
	}
	httputil.RespondJSON(w, http.StatusOK, users)
}
