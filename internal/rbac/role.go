package rbac

import (
	"fmt"

	"github.com/atelierhub/portal/pkg/cerr"
)

// Role is the access tier assigned to an authenticated identity.
type Role string

const (
	RoleAdmin      Role = "admin"
	RoleTeamMember Role = "team_member"
	RoleClient     Role = "client"
)

// Roles lists every declared role. Order is not significant.
var Roles = []Role{RoleAdmin, RoleTeamMember, RoleClient}

// ParseRole converts an untyped string from an I/O boundary into a Role.
// Unrecognized values are rejected rather than propagated inward.
func ParseRole(s string) (Role, error) {
	switch Role(s) {
	case RoleAdmin, RoleTeamMember, RoleClient:
		return Role(s), nil
	}
	return "", cerr.NewError(cerr.InvalidArgument, fmt.Sprintf("unknown role %q", s), nil)
}

func IsAdmin(role Role) bool      { return role == RoleAdmin }
func IsTeamMember(role Role) bool { return role == RoleTeamMember }
func IsClient(role Role) bool     { return role == RoleClient }

// HasAnyRole reports whether role is one of roles. An empty role (no
// authenticated identity) never matches.
func HasAnyRole(role Role, roles ...Role) bool {
	if role == "" {
		return false
	}
	for _, r := range roles {
		if role == r {
			return true
		}
	}
	return false
}
