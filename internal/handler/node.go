package handler

import (
	"log/slog"
	"net/http"
	"time"

	"codecollab/internal/httputil"
	"codecollab/internal/service/tree"
	"codecollab/internal/session"
)

// NodeHandler handles tree reads and mutations through workspace
// sessions.
type NodeHandler struct {
	sessions *session.Manager
	logger   *slog.Logger
}

// NewNodeHandler creates a new node handler
func NewNodeHandler(sessions *session.Manager, logger *slog.Logger) *NodeHandler {
	return &NodeHandler{sessions: sessions, logger: logger}
}

// FolderTreeNode is a folder in the tree response with nested children.
type FolderTreeNode struct {
	ID        string            `json:"id"`
	Name      string            `json:"name"`
	CreatedAt time.Time         `json:"created_at"`
	Folders   []*FolderTreeNode `json:"folders"`
	Files     []FileTreeNode    `json:"files"`
}

// FileTreeNode is a file in the tree response (metadata only, no content).
type FileTreeNode struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	CreatedBy string    `json:"created_by"`
	CreatedAt time.Time `json:"created_at"`
}

// TreeResponse is the root level of a workspace tree.
type TreeResponse struct {
	Folders []*FolderTreeNode `json:"folders"`
	Files   []FileTreeNode    `json:"files"`
}

// GetTree returns the workspace's nested folder/file tree
// GET /api/workspaces/{id}/tree
func (h *NodeHandler) GetTree(w http.ResponseWriter, r *http.Request) {
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
	folders, files := buildLevel(s, "")
	httputil.RespondJSON(w, http.StatusOK, &TreeResponse{Folders: folders, Files: files})
}

func buildLevel(s *session.Session, parentID string) ([]*FolderTreeNode, []FileTreeNode) {
	folders := []*FolderTreeNode{}
	files := []FileTreeNode{}
	for _, node := range s.Tree.ChildrenOf(parentID) {
		if node.IsFolder() {
			childFolders, childFiles := buildLevel(s, node.ID)
			folders = append(folders, &FolderTreeNode{
				ID:        node.ID,
				Name:      node.Name,
				CreatedAt: node.CreatedAt,
				Folders:   childFolders,
				Files:     childFiles,
			})
			continue
		}
		files = append(files, FileTreeNode{
			ID:        node.ID,
			Name:      node.Name,
			CreatedBy: node.CreatedBy,
			CreatedAt: node.CreatedAt,
		})
	}
	return folders, files
}

// CreateNode creates a folder or file
// POST /api/workspaces/{id}/nodes
func (h *NodeHandler) CreateNode(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}
	s, err := h.sessions.Get(r.Context(), r.PathValue("id"))
	if err != nil {
		handleError(w, err)
		return
	}
	var req tree.CreateNodeRequest
	if err := httputil.ParseJSON(w, r, &req); err != nil {
		httputil.RespondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	node, err := s.Engine.CreateNode(r.Context(), userID, &req)
	if err != nil {
		handleError(w, err)
		return
	}
	httputil.RespondJSON(w, http.StatusCreated, node)
}

// UpdateNodeRequest renames and/or moves a node. ParentID is tri-state:
// absent leaves the parent alone, null moves to the root, a value moves
// under that folder.
type UpdateNodeRequest struct {
	Name     *string                 `json:"name,omitempty"`
	ParentID httputil.OptionalString `json:"parent_id"`
}

// UpdateNode renames and/or moves a node
// PATCH /api/workspaces/{id}/nodes/{nodeID}
func (h *NodeHandler) UpdateNode(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}
	s, err := h.sessions.Get(r.Context(), r.PathValue("id"))
	if err != nil {
		handleError(w, err)
		return
	}
	var req UpdateNodeRequest
	if err := httputil.ParseJSON(w, r, &req); err != nil {
		httputil.RespondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	nodeID := r.PathValue("nodeID")

	if req.Name != nil {
		if err := s.Engine.RenameNode(r.Context(), userID, nodeID, *req.Name); err != nil {
			handleError(w, err)
			return
		}
	}
	if req.ParentID.Present {
		newParent := ""
		if req.ParentID.Value != nil {
			newParent = *req.ParentID.Value
		}
		if err := s.Engine.MoveNode(r.Context(), userID, nodeID, newParent); err != nil {
			handleError(w, err)
			return
		}
	}
	w.WriteHeader(http.StatusNoContent)
}

// DeleteNode deletes a file, or a folder with everything under it
// DELETE /api/workspaces/{id}/nodes/{nodeID}
func (h *NodeHandler) DeleteNode(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}
	s, err := h.sessions.Get(r.Context(), r.PathValue("id"))
	if err != nil {
		handleError(w, err)
		return
	}
	if err := s.Engine.DeleteNode(r.Context(), userID, r.PathValue("nodeID")); err != nil {
		handleError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// GetPath returns a node's ancestor chain, root first
// GET /api/workspaces/{id}/nodes/{nodeID}/path
func (h *NodeHandler) GetPath(w http.ResponseWriter, r *http.Request) {
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
	chain := s.Tree.PathAncestors(r.PathValue("nodeID"))
	if len(chain) == 0 {
		httputil.RespondError(w, http.StatusNotFound, "node not found")
		return
	}
	path := make([]map[string]any, 0, len(chain))
	for _, node := range chain {
		path = append(path, map[string]any{
			"id":   node.ID,
			"name": node.Name,
			"kind": node.Kind,
		})
	}
	httputil.RespondJSON(w, http.StatusOK, path)
}
