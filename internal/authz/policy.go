package authz

import (
	"fmt"
	"os"
	"slices"

	"github.com/funnelhq/funnel360/internal/models"
	"gopkg.in/yaml.v3"
)

// Permission represents an authorized action
type Permission string

const (
	PermClientsRead    Permission = "clients:read"
	PermManageClients  Permission = "manage-clients"
	PermProjectsRead   Permission = "projects:read"
	PermManageProjects Permission = "manage-projects"
	PermTeamRead       Permission = "team:read"
	PermManageTeam     Permission = "manage-team"
)

// AllPermissions lists every permission the service checks.
var AllPermissions = []Permission{
	PermClientsRead,
	PermManageClients,
	PermProjectsRead,
	PermManageProjects,
	PermTeamRead,
	PermManageTeam,
}

// Policy maps roles to the permissions they grant.
type Policy struct {
	Roles map[models.Role][]Permission `yaml:"roles"`
}

// DefaultPolicy returns the built-in policy.
func DefaultPolicy() *Policy {
	read := []Permission{PermClientsRead, PermProjectsRead, PermTeamRead}

	return &Policy{
		Roles: map[models.Role][]Permission{
			models.RoleOwner: slices.Clone(AllPermissions),
			models.RoleAdmin: slices.Clone(AllPermissions),
			models.RoleMember: append(slices.Clone(read),
				PermManageClients,
				PermManageProjects,
			),
			models.RoleViewer: read,
		},
	}
}

// LoadPolicy reads a YAML policy file.
func LoadPolicy(path string) (*Policy, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read policy file: %w", err)
	}
	return ParsePolicy(data)
}

// ParsePolicy decodes and validates a YAML policy.
func ParsePolicy(data []byte) (*Policy, error) {
	var policy Policy
	if err := yaml.Unmarshal(data, &policy); err != nil {
		return nil, fmt.Errorf("failed to parse policy: %w", err)
	}
	if err := policy.Validate(); err != nil {
		return nil, err
	}
	return &policy, nil
}

// Validate rejects unknown roles and permissions so typos fail at startup
// instead of silently denying access.
func (p *Policy) Validate() error {
	if len(p.Roles) == 0 {
		return fmt.Errorf("policy defines no roles")
	}
	for role, perms := range p.Roles {
		if !role.Valid() {
			return fmt.Errorf("policy: unknown role %q", role)
		}
		for _, perm := range perms {
			if !slices.Contains(AllPermissions, perm) {
				return fmt.Errorf("policy: role %s has unknown permission %q", role, perm)
			}
		}
	}
	return nil
}

// Allows reports whether role grants perm.
func (p *Policy) Allows(role models.Role, perm Permission) bool {
	perms, ok := p.Roles[role]
	if !ok {
		return false
	}
	return slices.Contains(perms, perm)
}
