package handler

import (
	"log/slog"
	"net/http"

	"codecollab/internal/httputil"
	"codecollab/internal/session"
)

// MessageHandler handles the workspace chat channel.
type MessageHandler struct {
	sessions *session.Manager
	logger   *slog.Logger
}

// NewMessageHandler creates a new message handler
func NewMessageHandler(sessions *session.Manager, logger *slog.Logger) *MessageHandler {
	return &MessageHandler{sessions: sessions, logger: logger}
}

// List returns the workspace's messages in order
// GET /api/workspaces/{id}/messages
func (h *MessageHandler) List(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}
	s, err := h.sessions.Get(r.Context(), r.PathValue("id"))
	if err != nil {
		handleError(w, err)
		return
	}
	if err := s.RequireRead(userID); err != nil {
		handleError(w, err)
		return
	}
	httputil.RespondJSON(w, http.StatusOK, s.ChatLog.Messages())
}

// Send posts a message; an @-directive additionally triggers an async AI
// reply that arrives on the feed
// POST /api/workspaces/{id}/messages
func (h *MessageHandler) Send(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}
	s, err := h.sessions.Get(r.Context(), r.PathValue("id"))
	if err != nil {
		handleError(w, err)
		return
	}
	var req struct {
		AuthorName string `json:"author_name"`
		Text       string `json:"text"`
	}
	if err := httputil.ParseJSON(w, r, &req); err != nil {
		httputil.RespondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	msg, err := s.Chat.Send(r.Context(), userID, req.AuthorName, req.Text)
	if err != nil {
		handleError(w, err)
		return
	}
	httputil.RespondJSON(w, http.StatusCreated, msg)
}

// Clear bulk-deletes the workspace's messages
// DELETE /api/workspaces/{id}/messages
func (h *MessageHandler) Clear(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}
	s, err := h.sessions.Get(r.Context(), r.PathValue("id"))
	if err != nil {
		handleError(w, err)
		return
	}
	if err := s.Chat.Clear(r.Context(), userID); err != nil {
		handleError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
