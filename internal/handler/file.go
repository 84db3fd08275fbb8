package handler

import (
	"log/slog"
	"net/http"

	"codecollab/internal/httputil"
	"codecollab/internal/session"
)

// FileHandler handles file content reads and debounced edits.
type FileHandler struct {
	sessions *session.Manager
	logger   *slog.Logger
}

// NewFileHandler creates a new file handler
func NewFileHandler(sessions *session.Manager, logger *slog.Logger) *FileHandler {
	return &FileHandler{sessions: sessions, logger: logger}
}

type fileContentResponse struct {
	FileID  string `json:"file_id"`
	Content string `json:"content"`
}

// GetContent returns a file's current content: the local buffer when the
// file is open in the autosave coordinator, the mirrored remote content
// otherwise
// GET /api/workspaces/{id}/files/{fileID}/content
func (h *FileHandler) GetContent(w http.ResponseWriter, r *http.Request) {
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
	fileID := r.PathValue("fileID")

	if content, open := s.Autosave.Content(fileID); open {
		httputil.RespondJSON(w, http.StatusOK, fileContentResponse{FileID: fileID, Content: content})
		return
	}
	node, ok := s.Tree.Get(fileID)
	if !ok || node.IsFolder() {
		httputil.RespondError(w, http.StatusNotFound, "file not found")
		return
	}
	httputil.RespondJSON(w, http.StatusOK, fileContentResponse{FileID: fileID, Content: node.Content})
}

// Edit buffers new file content for debounced autosave
// PUT /api/workspaces/{id}/files/{fileID}/content
func (h *FileHandler) Edit(w http.ResponseWriter, r *http.Request) {
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
		Content string `json:"content"`
	}
	if err := httputil.ParseJSON(w, r, &req); err != nil {
		httputil.RespondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	fileID := r.PathValue("fileID")
	if node, ok := s.Tree.Get(fileID); !ok || node.IsFolder() {
		httputil.RespondError(w, http.StatusNotFound, "file not found")
		return
	}
	if err := s.Autosave.Edit(userID, fileID, req.Content); err != nil {
		handleError(w, err)
		return
	}
	// Accepted into the buffer; the remote write happens after the quiet
	// window.
	w.WriteHeader(http.StatusAccepted)
}

// Close drops a file's autosave state without flushing
// POST /api/workspaces/{id}/files/{fileID}/close
func (h *FileHandler) Close(w http.ResponseWriter, r *http.Request) {
	if _, ok := requireUser(w, r); !ok {
		return
	}
	s, err := h.sessions.Get(r.Context(), r.PathValue("id"))
	if err != nil {
		handleError(w, err)
		return
	}
	s.Autosave.CloseFile(r.PathValue("fileID"))
	w.WriteHeader(http.StatusNoContent)
}
