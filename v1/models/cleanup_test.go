package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultCleanupPlan(t *testing.T) {
	plan := DefaultCleanupPlan()
	require.NoError(t, plan.Validate())

	last := plan[len(plan)-1]
	assert.Equal(t, "delete_owned:user_roles.user_id", last.Name())

	seenNullOut := false
	for _, step := range plan[:len(plan)-1] {
		if step.Op == CleanupNullForeignKey {
			seenNullOut = true
		} else {
			assert.False(t, seenNullOut, "owned deletes run before attribution null-outs: %s", step.Name())
		}
	}

	required := map[string]bool{}
	for _, step := range plan {
		if !step.Optional {
			required[step.Name()] = true
		}
	}
	assert.True(t, required["delete_owned:notifications.user_id"])
	assert.True(t, required["null_foreign_key:audit_logs.actor_id"])
}

func TestCleanupPlan_Validate(t *testing.T) {
	tests := []struct {
		name string
		plan CleanupPlan
	}{
		{"empty", CleanupPlan{}},
		{"injection in relation", CleanupPlan{
			{Relation: "votes; DROP TABLE profiles", Column: "member_id", Op: CleanupDeleteOwned},
			roleOwnershipStep,
		}},
		{"bad op", CleanupPlan{
			{Relation: "votes", Column: "member_id", Op: "truncate"},
			roleOwnershipStep,
		}},
		{"roles not last", CleanupPlan{
			roleOwnershipStep,
			{Relation: "votes", Column: "member_id", Op: CleanupDeleteOwned},
		}},
		{"optional role step", CleanupPlan{
			{Relation: "user_roles", Column: "user_id", Op: CleanupDeleteOwned, Optional: true},
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Error(t, tt.plan.Validate())
		})
	}
}
