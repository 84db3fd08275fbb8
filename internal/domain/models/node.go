package models

import "time"

// NodeKind discriminates folders from files in the workspace tree.
type NodeKind string

const (
	NodeFolder NodeKind = "folder"
	NodeFile   NodeKind = "file"
)

// Node is a single entry in a workspace tree: a folder or a file. Folders
// and files live in separate feed collections but share tree semantics, so
// the tree store handles them through one type. ParentID is empty for
// root-level nodes. Content is populated for files only.
type Node struct {
	ID          string    `json:"id"`
	WorkspaceID string    `json:"workspace_id"`
	Kind        NodeKind  `json:"kind"`
	Name        string    `json:"name"`
	ParentID    string    `json:"parent_id,omitempty"`
	CreatedBy   string    `json:"created_by"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
	Content     string    `json:"content,omitempty"`
}

// IsFolder reports whether the node is a folder.
func (n *Node) IsFolder() bool { return n.Kind == NodeFolder }

// Fields converts the node to a document field map for its collection.
// Folders store their parent under parentFolderId; files under folderId.
func (n *Node) Fields() map[string]any {
	fields := map[string]any{
		"name":      n.Name,
		"createdBy": n.CreatedBy,
		"createdAt": timeField(n.CreatedAt),
		"updatedAt": timeField(n.UpdatedAt),
	}
	if n.Kind == NodeFolder {
		fields["parentFolderId"] = n.ParentID
	} else {
		fields["folderId"] = n.ParentID
		fields["workspaceId"] = n.WorkspaceID
		fields["content"] = n.Content
	}
	return fields
}

// FolderFromDoc builds a folder Node from a document snapshot.
func FolderFromDoc(workspaceID, id string, fields map[string]any) *Node {
	return &Node{
		ID:          id,
		WorkspaceID: workspaceID,
		Kind:        NodeFolder,
		Name:        fieldString(fields, "name"),
		ParentID:    fieldString(fields, "parentFolderId"),
		CreatedBy:   fieldString(fields, "createdBy"),
		CreatedAt:   fieldTime(fields, "createdAt"),
		UpdatedAt:   fieldTime(fields, "updatedAt"),
	}
}

// FileFromDoc builds a file Node from a document snapshot.
func FileFromDoc(workspaceID, id string, fields map[string]any) *Node {
	return &Node{
		ID:          id,
		WorkspaceID: workspaceID,
		Kind:        NodeFile,
		Name:        fieldString(fields, "name"),
		ParentID:    fieldString(fields, "folderId"),
		CreatedBy:   fieldString(fields, "createdBy"),
		CreatedAt:   fieldTime(fields, "createdAt"),
		UpdatedAt:   fieldTime(fields, "updatedAt"),
		Content:     fieldString(fields, "content"),
	}
}
