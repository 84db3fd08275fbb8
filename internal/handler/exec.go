package handler

import (
	"log/slog"
	"net/http"

	"codecollab/internal/httputil"
	"codecollab/internal/service/exec"
	"codecollab/internal/session"
)

// ExecHandler runs code snippets for the editor's run panel.
type ExecHandler struct {
	runner   exec.Runner
	sessions *session.Manager
	logger   *slog.Logger
}

// NewExecHandler creates a new exec handler. runner may be nil when no
// execution backend is configured.
func NewExecHandler(runner exec.Runner, sessions *session.Manager, logger *slog.Logger) *ExecHandler {
	return &ExecHandler{runner: runner, sessions: sessions, logger: logger}
}

// Run executes a snippet and returns its output
// POST /api/workspaces/{id}/exec
func (h *ExecHandler) Run(w http.ResponseWriter, r *http.Request) {
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
	if h.runner == nil {
		httputil.RespondError(w, http.StatusNotImplemented, "code execution is not configured")
		return
	}
	var req struct {
		Language string `json:"language"`
		Source   string `json:"source"`
	}
	if err := httputil.ParseJSON(w, r, &req); err != nil {
		httputil.RespondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Language == "" {
		httputil.RespondError(w, http.StatusBadRequest, "language is required")
		return
	}
	result, err := h.runner.Execute(r.Context(), req.Language, req.Source)
	if err != nil {
		h.logger.Error("execution failed", "error", err)
		handleError(w, err)
		return
	}
	httputil.RespondJSON(w, http.StatusOK, result)
}
