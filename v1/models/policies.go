package models

// ActionPolicy is the minimum authorization for one action.
// An empty AllowedRoles means any elevated role is accepted.
type ActionPolicy struct {
	AllowedRoles []Role
	// AdminOnly is enforced by the lifecycle service after target checks,
	// so a self-targeted request reports a conflict before a permission error.
	AdminOnly bool
}

var actionPolicies = map[ActionName]ActionPolicy{
	ActionLogAction:          {},
	ActionSuspendMember:      {},
	ActionRejectMember:       {},
	ActionDeleteMember:       {AdminOnly: true},
	ActionApproveUser:        {},
	ActionApprovePayment:     {},
	ActionAssignOfficialRole: {AllowedRoles: []Role{RoleAdmin, RoleChairperson}},
}

// PolicyFor returns the authorization policy for an action
func PolicyFor(name ActionName) (ActionPolicy, bool) {
	policy, ok := actionPolicies[name]
	return policy, ok
}

// Permits reports whether the actor passes the policy's role gate
func (p ActionPolicy) Permits(actor Actor) bool {
	if len(p.AllowedRoles) > 0 {
		return actor.HasAnyRole(p.AllowedRoles...)
	}
	return actor.IsElevated()
}
