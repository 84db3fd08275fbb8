// Package capabilities maps workspace roles to the actions they permit.
// The matrix is data, not code: it loads from an embedded YAML file so
// role policy changes never touch the services that enforce it.
package capabilities

import (
	"embed"
	"fmt"
	"sync"

	"gopkg.in/yaml.v3"

	"codecollab/internal/domain/models"
)

//go:embed config/*.yaml
var configFiles embed.FS

// Action names a permission-gated operation.
type Action string

const (
	ActionRead            Action = "read"
	ActionNodeCreate      Action = "node.create"
	ActionNodeRename      Action = "node.rename"
	ActionNodeMove        Action = "node.move"
	ActionNodeDelete      Action = "node.delete"
	ActionFileEdit        Action = "file.edit"
	ActionWorkspaceUpdate Action = "workspace.update"
	ActionWorkspaceDelete Action = "workspace.delete"
	ActionMemberInvite    Action = "member.invite"
	ActionMemberRemove    Action = "member.remove"
	ActionChatSend        Action = "chat.send"
	ActionChatClear       Action = "chat.clear"
)

type roleEntry struct {
	ID      string   `yaml:"id"`
	Actions []string `yaml:"actions"`
}

type rolesFile struct {
	Roles []roleEntry `yaml:"roles"`
}

// Registry answers "may this role perform this action" from the embedded
// capability matrix.
type Registry struct {
	mu    sync.RWMutex
	roles map[models.Role]map[Action]struct{}
}

// NewRegistry loads the embedded role capability file.
func NewRegistry() (*Registry, error) {
	data, err := configFiles.ReadFile("config/roles.yaml")
	if err != nil {
		return nil, fmt.Errorf("read roles.yaml: %w", err)
	}
	return newRegistry(data)
}

func newRegistry(data []byte) (*Registry, error) {
	var file rolesFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("unmarshal roles.yaml: %w", err)
	}

	roles := make(map[models.Role]map[Action]struct{}, len(file.Roles))
	for _, entry := range file.Roles {
		// No ParseRole here: a typoed id must fail startup, not degrade
		// to viewer and hand that block's grants to the wrong role.
		role := models.Role(entry.ID)
		if !role.Valid() {
			return nil, fmt.Errorf("roles.yaml: unknown role %q", entry.ID)
		}
		actions := make(map[Action]struct{}, len(entry.Actions))
		for _, a := range entry.Actions {
			actions[Action(a)] = struct{}{}
		}
		roles[role] = actions
	}
	return &Registry{roles: roles}, nil
}

// Can reports whether the role permits the action. Unknown roles and
// unknown actions are denied.
func (r *Registry) Can(role models.Role, action Action) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	actions, ok := r.roles[role]
	if !ok {
		return false
	}
	_, ok = actions[action]
	return ok
}

// Actions returns the actions granted to a role, for diagnostics.
func (r *Registry) Actions(role models.Role) []Action {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Action, 0, len(r.roles[role]))
	for a := range r.roles[role] {
		out = append(out, a)
	}
	return out
}
