package domain

import "strings"

type Role string

const (
	RoleEditor     Role = "Editor"
	RoleAdmin      Role = "Admin"
	RoleSuperAdmin Role = "SuperAdmin"
)

// DefaultRole is given to self-registered users.
const DefaultRole = RoleEditor

// Level orders roles: Editor(1) < Admin(2) < SuperAdmin(3). Unknown roles are 0.
func (r Role) Level() int {
	switch r {
	case RoleEditor:
		return 1
	case RoleAdmin:
		return 2
	case RoleSuperAdmin:
		return 3
	}
	return 0
}

func (r Role) Valid() bool { return r.Level() > 0 }

// ParseRole accepts role names case-insensitively.
func ParseRole(s string) (Role, bool) {
	for _, r := range []Role{RoleEditor, RoleAdmin, RoleSuperAdmin} {
		if strings.EqualFold(string(r), strings.TrimSpace(s)) {
			return r, true
		}
	}
	return "", false
}

// Authorize reports whether a holder of role may perform an operation requiring required.
func Authorize(role, required Role) bool {
	return role.Valid() && role.Level() >= required.Level()
}
