package rbac

import "fmt"

// Policy maps each role to the set of permissions it holds. A Policy is
// built once at startup and read-only afterwards, so it is safe to share
// across requests without locking. Guards take the policy as an explicit
// dependency so tests can substitute alternate tables.
type Policy struct {
	grants map[Role]map[Permission]struct{}
}

// NewPolicy builds a Policy from a role→permissions declaration.
func NewPolicy(grants map[Role][]Permission) *Policy {
	p := &Policy{grants: make(map[Role]map[Permission]struct{}, len(grants))}
	for role, perms := range grants {
		set := make(map[Permission]struct{}, len(perms))
		for _, perm := range perms {
			set[perm] = struct{}{}
		}
		p.grants[role] = set
	}
	return p
}

// DefaultPolicy returns the product permission table.
//
// Clients are categorically denied task mutation: PermManageAllTasks is
// never granted to RoleClient.
func DefaultPolicy() *Policy {
	return NewPolicy(map[Role][]Permission{
		RoleAdmin: {
			PermViewAllProjects,
			PermCreateProjects,
			PermManageProjects,
			PermManageAllTasks,
			PermCommentOnTasks,
			PermUploadFiles,
			PermApproveDeliverables,
			PermManageUsers,
			PermManageOrganizations,
			PermManageFeatureFlags,
			PermViewActivity,
		},
		RoleTeamMember: {
			PermViewAllProjects,
			PermManageAllTasks,
			PermCommentOnTasks,
			PermUploadFiles,
			PermViewActivity,
		},
		RoleClient: {
			PermCommentOnTasks,
			PermUploadFiles,
			PermApproveDeliverables,
		},
	})
}

// Allows reports whether role holds perm. An empty role (unauthenticated)
// is a valid input and always yields false; a denial is a normal return
// value, never an error.
func (p *Policy) Allows(role Role, perm Permission) bool {
	if role == "" {
		return false
	}
	set, ok := p.grants[role]
	if !ok {
		return false
	}
	_, ok = set[perm]
	return ok
}

// RolesFor returns the roles granted perm, in the fixed Roles order.
func (p *Policy) RolesFor(perm Permission) []Role {
	var roles []Role
	for _, role := range Roles {
		if p.Allows(role, perm) {
			roles = append(roles, role)
		}
	}
	return roles
}

// Validate checks referential closure: every granted permission must come
// from the declared permission enumeration, and every role must be declared.
func (p *Policy) Validate() error {
	declared := make(map[Permission]struct{}, len(Permissions))
	for _, perm := range Permissions {
		declared[perm] = struct{}{}
	}
	knownRoles := make(map[Role]struct{}, len(Roles))
	for _, role := range Roles {
		knownRoles[role] = struct{}{}
	}
	for role, set := range p.grants {
		if _, ok := knownRoles[role]; !ok {
			return fmt.Errorf("policy grants permissions to undeclared role %q", role)
		}
		for perm := range set {
			if _, ok := declared[perm]; !ok {
				return fmt.Errorf("policy grants undeclared permission %q to role %q", perm, role)
			}
		}
	}
	return nil
}
