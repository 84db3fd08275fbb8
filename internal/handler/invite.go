package handler

import (
	"log/slog"
	"net/http"

	"codecollab/internal/httputil"
	"codecollab/internal/service/member"
)

// InviteHandler handles the caller's pending invites.
type InviteHandler struct {
	members *member.Service
	logger  *slog.Logger
}

// NewInviteHandler creates a new invite handler
func NewInviteHandler(members *member.Service, logger *slog.Logger) *InviteHandler {
	return &InviteHandler{members: members, logger: logger}
}

// ListInvites lists the caller's pending invites
// GET /api/users/me/invites
func (h *InviteHandler) ListInvites(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}
	invites, err := h.members.ListInvites(r.Context(), userID)
	if err != nil {
		handleError(w, err)
		return
	}
	httputil.RespondJSON(w, http.StatusOK, invites)
}

// Accept accepts an invite, enrolling the caller as a contributor
// POST /api/users/me/invites/{workspaceID}/accept
func (h *InviteHandler) Accept(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}
	if err := h.members.AcceptInvite(r.Context(), userID, r.PathValue("workspaceID")); err != nil {
		handleError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// Decline declines an invite
// POST /api/users/me/invites/{workspaceID}/decline
func (h *InviteHandler) Decline(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}
	if err := h.members.DeclineInvite(r.Context(), userID, r.PathValue("workspaceID")); err != nil {
		handleError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
