package models

import (
	"strings"
	"time"
)

// MemberStatus represents the lifecycle status of a member profile
type MemberStatus string

const (
	MemberStatusPending   MemberStatus = "pending"
	MemberStatusActive    MemberStatus = "active"
	MemberStatusDormant   MemberStatus = "dormant"
	MemberStatusSuspended MemberStatus = "suspended"
)

// Redaction placeholders written over personal data on rejection
const (
	RedactedFullName    = "Deleted Member"
	RedactedIDNumber    = "DELETED"
	RedactedEmail       = "deleted@redacted.invalid"
	RedactedLocation    = "REDACTED"
	RedactedOccupation  = "REDACTED"
	RedactedPhonePrefix = "deleted_"
)

// Profile represents a person registered with the association.
// The ID is the identity provider's user ID.
type Profile struct {
	ID                  string       `gorm:"primarykey;type:varchar(64)" json:"id"`
	MembershipNumber    *string      `gorm:"column:membership_number;uniqueIndex" json:"membership_number"`
	FullName            string       `gorm:"column:full_name;not null" json:"full_name"`
	Phone               string       `gorm:"column:phone;uniqueIndex;not null" json:"phone"`
	Email               *string      `gorm:"column:email" json:"email"`
	IDNumber            *string      `gorm:"column:id_number" json:"id_number"`
	Location            *string      `gorm:"column:location" json:"location"`
	Occupation          *string      `gorm:"column:occupation" json:"occupation"`
	Status              MemberStatus `gorm:"column:status;type:varchar(20);not null" json:"status"`
	RegistrationFeePaid bool         `gorm:"column:registration_fee_paid;not null" json:"registration_fee_paid"`
	SoftDeleted         bool         `gorm:"column:soft_deleted;not null" json:"soft_deleted"`
	DeletedAt           *time.Time   `gorm:"column:deleted_at" json:"deleted_at"`
	DeletedBy           *string      `gorm:"column:deleted_by" json:"deleted_by"`
	BaseModel
}

// TableName sets the table name for the Profile model
func (Profile) TableName() string {
	return "profiles"
}

// MembershipNumberOrID returns the membership number, falling back to the raw ID
func (p *Profile) MembershipNumberOrID() string {
	if p.MembershipNumber != nil && strings.TrimSpace(*p.MembershipNumber) != "" {
		return *p.MembershipNumber
	}
	return p.ID
}

// DeletionConfirmation is the text an admin must type to permanently delete this profile
func (p *Profile) DeletionConfirmation() string {
	return strings.ToUpper("DELETE " + p.MembershipNumberOrID())
}

// ConfirmsDeletion reports whether the supplied text matches DeletionConfirmation exactly, ignoring case
func (p *Profile) ConfirmsDeletion(confirmation string) bool {
	return strings.ToUpper(confirmation) == p.DeletionConfirmation()
}

// RedactedPhone derives a unique placeholder phone number from the profile ID
func RedactedPhone(id string) string {
	short := id
	if len(short) > 8 {
		short = short[:8]
	}
	return RedactedPhonePrefix + short
}

// RedactionUpdates returns the column updates that suspend the profile and erase personal data.
// The membership number is unique, so it is released rather than overwritten.
func RedactionUpdates(id, actorID string, at time.Time) map[string]interface{} {
	return map[string]interface{}{
		"status":            MemberStatusSuspended,
		"soft_deleted":      true,
		"deleted_at":        at,
		"deleted_by":        actorID,
		"full_name":         RedactedFullName,
		"id_number":         RedactedIDNumber,
		"email":             RedactedEmail,
		"location":          RedactedLocation,
		"occupation":        RedactedOccupation,
		"membership_number": nil,
		"phone":             RedactedPhone(id),
	}
}

// SuspensionUpdates suspends the profile and clears any earlier soft deletion markers
func SuspensionUpdates() map[string]interface{} {
	return map[string]interface{}{
		"status":       MemberStatusSuspended,
		"soft_deleted": false,
		"deleted_at":   nil,
		"deleted_by":   nil,
	}
}

// ApprovalUpdates activates the profile and clears soft deletion markers
func ApprovalUpdates() map[string]interface{} {
	return map[string]interface{}{
		"status":       MemberStatusActive,
		"soft_deleted": false,
		"deleted_at":   nil,
		"deleted_by":   nil,
	}
}

// MissingEligibility returns the first unmet condition for holding an official role, or "" when eligible
func (p *Profile) MissingEligibility() string {
	switch {
	case p.Status != MemberStatusActive:
		return "member must be active"
	case !p.RegistrationFeePaid:
		return "registration fee must be paid"
	case isBlank(p.MembershipNumber):
		return "membership number is required"
	case strings.TrimSpace(p.FullName) == "":
		return "full name is required"
	case strings.TrimSpace(p.Phone) == "":
		return "phone is required"
	case isBlank(p.IDNumber):
		return "ID number is required"
	}
	return ""
}

func isBlank(s *string) bool {
	return s == nil || strings.TrimSpace(*s) == ""
}
