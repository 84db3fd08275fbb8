package models

import "time"

// Visibility controls whether a workspace is discoverable outside its
// member list.
type Visibility string

const (
	VisibilityPublic  Visibility = "public"
	VisibilityPrivate Visibility = "private"
)

// ParseVisibility normalizes a raw visibility string. Anything that is
// not explicitly public is private.
func ParseVisibility(raw string) Visibility {
	if Visibility(raw) == VisibilityPublic {
		return VisibilityPublic
	}
	return VisibilityPrivate
}

// Valid reports whether the value names a real visibility level.
func (v Visibility) Valid() bool {
	return v == VisibilityPublic || v == VisibilityPrivate
}

// Workspace is the top-level container for a shared file tree.
type Workspace struct {
	ID         string     `json:"id"`
	Name       string     `json:"name"`
	Visibility Visibility `json:"visibility"`
	CreatedBy  string     `json:"created_by"`
	CreatedAt  time.Time  `json:"created_at"`
}

// Fields converts the workspace to a document field map.
func (w *Workspace) Fields() map[string]any {
	return map[string]any{
		"name":       w.Name,
		"visibility": string(w.Visibility),
		"createdBy":  w.CreatedBy,
		"createdAt":  timeField(w.CreatedAt),
	}
}

// WorkspaceFromDoc builds a Workspace from a document snapshot.
func WorkspaceFromDoc(id string, fields map[string]any) *Workspace {
	return &Workspace{
		ID:         id,
		Name:       fieldString(fields, "name"),
		Visibility: ParseVisibility(fieldString(fields, "visibility")),
		CreatedBy:  fieldString(fields, "createdBy"),
		CreatedAt:  fieldTime(fields, "createdAt"),
	}
}

// Member is a user's membership record within a workspace. The document ID
// in the members collection is the user ID, so membership lookups are a
// single get.
type Member struct {
	UserID      string `json:"user_id"`
	Role        Role   `json:"role"`
	DisplayName string `json:"display_name"`
	PhotoURL    string `json:"photo_url,omitempty"`
}

// Fields converts the member to a document field map.
func (m *Member) Fields() map[string]any {
	return map[string]any{
		"userId":      m.UserID,
		"role":        string(m.Role),
		"displayName": m.DisplayName,
		"photoURL":    m.PhotoURL,
	}
}

// MemberFromDoc builds a Member from a document snapshot.
func MemberFromDoc(id string, fields map[string]any) *Member {
	userID := fieldString(fields, "userId")
	if userID == "" {
		userID = id
	}
	return &Member{
		UserID:      userID,
		Role:        ParseRole(fieldString(fields, "role")),
		DisplayName: fieldString(fields, "displayName"),
		PhotoURL:    fieldString(fields, "photoURL"),
	}
}

// Invite is a pending invitation to join a workspace, stored on the
// invitee's user document.
type Invite struct {
	WorkspaceID   string `json:"workspace_id"`
	WorkspaceName string `json:"workspace_name"`
	InvitedBy     string `json:"invited_by"`
}

// User is a user profile document. Invites are embedded as a list of
// workspace IDs with display metadata.
type User struct {
	ID          string   `json:"id"`
	Email       string   `json:"email"`
	DisplayName string   `json:"display_name"`
	PhotoURL    string   `json:"photo_url,omitempty"`
	Invites     []Invite `json:"invites"`
}

// Fields converts the user to a document field map.
func (u *User) Fields() map[string]any {
	invites := make([]any, 0, len(u.Invites))
	for _, inv := range u.Invites {
		invites = append(invites, map[string]any{
			"workspaceId":   inv.WorkspaceID,
			"workspaceName": inv.WorkspaceName,
			"invitedBy":     inv.InvitedBy,
		})
	}
	return map[string]any{
		"email":       u.Email,
		"displayName": u.DisplayName,
		"photoURL":    u.PhotoURL,
		"invites":     invites,
	}
}

// UserFromDoc builds a User from a document snapshot.
func UserFromDoc(id string, fields map[string]any) *User {
	u := &User{
		ID:          id,
		Email:       fieldString(fields, "email"),
		DisplayName: fieldString(fields, "displayName"),
		PhotoURL:    fieldString(fields, "photoURL"),
		Invites:     []Invite{},
	}
	raw, ok := fields["invites"].([]any)
	if !ok {
		return u
	}
	for _, e := range raw {
		m, ok := e.(map[string]any)
		if !ok {
			continue
		}
		u.Invites = append(u.Invites, Invite{
			WorkspaceID:   fieldString(m, "workspaceId"),
			WorkspaceName: fieldString(m, "workspaceName"),
			InvitedBy:     fieldString(m, "invitedBy"),
		})
	}
	return u
}
