package domain

import (
	"fmt"
	"strings"
)

// Role enumerates platform roles.
type Role string

const (
	RoleAdmin     Role = "ADMIN"
	RoleReviewer  Role = "REVIEWER"
	RolePublisher Role = "PUBLISHER"
)

// AllRoles lists every role the platform knows about.
var AllRoles = []Role{RoleAdmin, RoleReviewer, RolePublisher}

// Valid reports whether r is a known role.
func (r Role) Valid() bool {
	for _, known := range AllRoles {
		if r == known {
			return true
		}
	}
	return false
}

// ParseRole resolves a role name, case-insensitively.
func ParseRole(name string) (Role, error) {
	role := Role(strings.ToUpper(strings.TrimSpace(name)))
	if !role.Valid() {
		return "", fmt.Errorf("%w: unknown role %q", ErrInvalidInput, name)
	}
	return role, nil
}

// RoleCapabilities maps each role to the capabilities a session of that role
// may request. It is the single source of truth for role defaults.
type RoleCapabilities map[Role]CapabilitySet

// DefaultRoleCapabilities returns the built-in mapping.
func DefaultRoleCapabilities() RoleCapabilities {
	return RoleCapabilities{
		RoleAdmin:     FullCapabilitySet(),
		RoleReviewer:  NewCapabilitySet(CapabilityRead, CapabilityUpdate),
		RolePublisher: FullCapabilitySet(),
	}
}

// For returns the default set for role. Unknown roles get the empty set.
func (m RoleCapabilities) For(role Role) CapabilitySet {
	if m == nil || !role.Valid() {
		return 0
	}
	return m[role]
}

// Validate fails when the mapping is not total over AllRoles.
func (m RoleCapabilities) Validate() error {
	var missing []string
	for _, role := range AllRoles {
		if _, ok := m[role]; !ok {
			missing = append(missing, string(role))
		}
	}
	if len(missing) > 0 {
		return fmt.Errorf("role capability mapping incomplete: missing %s", strings.Join(missing, ", "))
	}
	for role := range m {
		if !role.Valid() {
			return fmt.Errorf("role capability mapping has unknown role %q", role)
		}
	}
	return nil
}
