package types

import "strings"

// Role is a coarse-grained permission tag attached to a user.
type Role string

// Supported roles. There is no hierarchy between them.
const (
	RoleAdmin Role = "admin"
	RoleUser  Role = "user"
)

// Roles lists every supported role.
var Roles = []Role{RoleAdmin, RoleUser}

// Valid reports whether r is one of the supported roles.
func (r Role) Valid() bool {
	switch r {
	case RoleAdmin, RoleUser:
		return true
	default:
		return false
	}
}

// ParseRole converts a raw string into a Role. ok is false for unknown values.
func ParseRole(raw string) (Role, bool) {
	role := Role(strings.TrimSpace(raw))
	return role, role.Valid()
}
