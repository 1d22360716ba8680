package models

import (
	"fmt"
	"regexp"
)

// CleanupOp is the kind of operation a cleanup step performs
type CleanupOp string

const (
	// CleanupDeleteOwned deletes rows the member owns outright
	CleanupDeleteOwned CleanupOp = "delete_owned"
	// CleanupNullForeignKey clears an attribution column on rows the member only touched
	CleanupNullForeignKey CleanupOp = "null_foreign_key"
)

var identifierPattern = regexp.MustCompile(`^[a-z_][a-z0-9_]*$`)

// CleanupStep is one delete-or-null-out operation against one dependent relation
type CleanupStep struct {
	Relation string    `yaml:"relation" json:"relation"`
	Column   string    `yaml:"column" json:"column"`
	Op       CleanupOp `yaml:"op" json:"op"`
	// Optional steps succeed when the relation or column does not exist
	Optional bool `yaml:"optional" json:"optional"`
}

// Name identifies the step in logs and error details, e.g. "delete_owned:votes.member_id"
func (s CleanupStep) Name() string {
	return fmt.Sprintf("%s:%s.%s", s.Op, s.Relation, s.Column)
}

// Validate checks the step's identifiers and operation
func (s CleanupStep) Validate() error {
	if !identifierPattern.MatchString(s.Relation) {
		return fmt.Errorf("invalid relation name %q", s.Relation)
	}
	if !identifierPattern.MatchString(s.Column) {
		return fmt.Errorf("invalid column name %q", s.Column)
	}
	switch s.Op {
	case CleanupDeleteOwned, CleanupNullForeignKey:
		return nil
	default:
		return fmt.Errorf("invalid cleanup op %q for %s.%s", s.Op, s.Relation, s.Column)
	}
}

// CleanupPlan is the ordered list of steps run before a member is permanently deleted
type CleanupPlan []CleanupStep

// roleOwnershipStep removes the member's own role rows; it always runs last
var roleOwnershipStep = CleanupStep{Relation: "user_roles", Column: "user_id", Op: CleanupDeleteOwned}

func owned(relation, column string, optional bool) CleanupStep {
	return CleanupStep{Relation: relation, Column: column, Op: CleanupDeleteOwned, Optional: optional}
}

func nullOut(relation, column string, optional bool) CleanupStep {
	return CleanupStep{Relation: relation, Column: column, Op: CleanupNullForeignKey, Optional: optional}
}

// DefaultCleanupPlan returns the built-in cleanup order
func DefaultCleanupPlan() CleanupPlan {
	return CleanupPlan{
		owned("contributions", "member_id", true),
		owned("mpesa_transactions", "member_id", true),
		owned("pesapal_transactions", "member_id", true),
		owned("welfare_transactions", "member_id", true),
		owned("discipline_records", "member_id", true),
		owned("meeting_attendance", "member_id", true),
		owned("votes", "member_id", true),
		owned("messages", "sender_id", true),
		owned("messages", "recipient_id", true),
		owned("notification_preferences", "user_id", true),
		owned("notifications", "user_id", false),

		nullOut("welfare_cases", "created_by", true),
		nullOut("announcements", "created_by", true),
		nullOut("meetings", "created_by", true),
		nullOut("discipline_records", "recorded_by", true),
		nullOut("contributions", "recorded_by", true),
		nullOut("audit_logs", "actor_id", false),
		nullOut("profiles", "deleted_by", false),
		nullOut("user_roles", "assigned_by", false),

		roleOwnershipStep,
	}
}

// Validate checks every step and that the member's role rows are cleared last
func (p CleanupPlan) Validate() error {
	if len(p) == 0 {
		return fmt.Errorf("cleanup plan is empty")
	}
	for i, step := range p {
		if err := step.Validate(); err != nil {
			return fmt.Errorf("step %d: %w", i, err)
		}
	}
	last := p[len(p)-1]
	if last.Relation != roleOwnershipStep.Relation || last.Column != roleOwnershipStep.Column ||
		last.Op != roleOwnershipStep.Op || last.Optional {
		return fmt.Errorf("last cleanup step must be the required %s", roleOwnershipStep.Name())
	}
	return nil
}
