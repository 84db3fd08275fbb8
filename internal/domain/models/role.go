package models

// Role is a member's permission level within a workspace.
type Role string

const (
	RoleOwner       Role = "owner"
	RoleContributor Role = "contributor"
	RoleViewer      Role = "viewer"

	// RoleNone is the resolved role for users with no membership record.
	RoleNone Role = ""
)

// ParseRole normalizes a raw role string from a member document. Unknown
// values degrade to viewer rather than failing, so a malformed member
// record never grants write access.
func ParseRole(raw string) Role {
	switch Role(raw) {
	case RoleOwner, RoleContributor, RoleViewer:
		return Role(raw)
	case RoleNone:
		return RoleNone
	default:
		return RoleViewer
	}
}

// CanWrite reports whether the role permits tree and content mutations.
func (r Role) CanWrite() bool {
	return r == RoleOwner || r == RoleContributor
}

// Valid reports whether the role names a real membership level.
func (r Role) Valid() bool {
	return r == RoleOwner || r == RoleContributor || r == RoleViewer
}
