package models

import (
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// Role represents an association role held by a member
type Role string

const (
	RoleAdmin               Role = "admin"
	RoleChairperson         Role = "chairperson"
	RoleViceChairman        Role = "vice_chairman"
	RoleSecretary           Role = "secretary"
	RoleViceSecretary       Role = "vice_secretary"
	RoleTreasurer           Role = "treasurer"
	RoleOrganizingSecretary Role = "organizing_secretary"
	RoleCoordinator         Role = "coordinator"
	RoleCommitteeMember     Role = "committee_member"
	RolePatron              Role = "patron"
	RoleMember              Role = "member"
)

// rolePrecedence lists roles from most to least senior.
var rolePrecedence = []Role{
	RoleAdmin,
	RoleChairperson,
	RoleViceChairman,
	RoleSecretary,
	RoleViceSecretary,
	RoleTreasurer,
	RoleOrganizingSecretary,
	RoleCoordinator,
	RoleCommitteeMember,
	RolePatron,
	RoleMember,
}

// AllRoles returns every known role ordered by seniority
func AllRoles() []Role {
	out := make([]Role, len(rolePrecedence))
	copy(out, rolePrecedence)
	return out
}

// IsValid checks if the role is part of the enumerated set
func (r Role) IsValid() bool {
	for _, known := range rolePrecedence {
		if r == known {
			return true
		}
	}
	return false
}

// IsElevated reports whether the role is anything other than the base member role
func (r Role) IsElevated() bool {
	return r.IsValid() && r != RoleMember
}

// IsOfficial reports whether the role is an officer/committee role.
// Official roles are exactly the elevated roles.
func (r Role) IsOfficial() bool {
	return r.IsElevated()
}

// DisplayName returns the human-readable role name, e.g. "Vice Chairman"
func (r Role) DisplayName() string {
	// Casers are stateful, so one is built per call.
	return cases.Title(language.English).String(strings.ReplaceAll(string(r), "_", " "))
}

func (r Role) rank() int {
	for i, known := range rolePrecedence {
		if r == known {
			return i
		}
	}
	return len(rolePrecedence)
}

// OfficialRoles returns all roles that may be granted through assign_official_role
func OfficialRoles() []Role {
	var out []Role
	for _, r := range rolePrecedence {
		if r.IsOfficial() {
			out = append(out, r)
		}
	}
	return out
}
