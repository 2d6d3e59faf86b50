package authroles

import (
	domainauth "github.com/coursekit/admin-api/internal/domain/auth"
)

// StaticRoleMapper grants the admin role to members of a configured group.
// Everyone else who makes it through the identity provider is a regular user.
type StaticRoleMapper struct {
	AdminGroup string
}

func (m StaticRoleMapper) Map(groups []string) domainauth.Role {
	for _, g := range groups {
		if m.AdminGroup != "" && g == m.AdminGroup {
			return domainauth.RoleAdmin
		}
	}
	return domainauth.RoleUser
}
