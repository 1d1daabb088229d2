package permission

import (
	"strings"
)

// Role is the active application role of a session.
type Role string

const (
	// RoleNone is the role of a session that has not selected or been granted one.
	RoleNone Role = "NONE"
	// RoleArtist publishes work.
	RoleArtist Role = "ARTIST"
	// RoleBuyer purchases work.
	RoleBuyer Role = "BUYER"
	// RoleAdmin administers the marketplace.
	RoleAdmin Role = "ADMIN"
)

// DefaultRoles lists the built-in roles in registration order.
var DefaultRoles = []Role{RoleNone, RoleArtist, RoleBuyer, RoleAdmin}

// ParseRole normalizes s into a Role. Empty input maps to [RoleNone].
func ParseRole(s string) Role {
	s = strings.ToUpper(strings.TrimSpace(s))
	if s == "" {
		return RoleNone
	}
	return Role(s)
}

// IsSet reports whether r names a role other than [RoleNone].
func (r Role) IsSet() bool {
	return r != "" && r != RoleNone
}

func (r Role) String() string {
	if r == "" {
		return string(RoleNone)
	}
	return string(r)
}
