package models

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// Audit actions written by the lifecycle service
const (
	AuditMemberSuspended          = "member_suspended"
	AuditMemberRejected           = "member_rejected"
	AuditMemberPermanentlyDeleted = "member_permanently_deleted"
	AuditUserApproved             = "user_approved"
	AuditPaymentApproved          = "payment_approved"
	AuditOfficialRoleAssigned     = "official_role_assigned"
)

// Entity types referenced by audit entries
const (
	EntityTypeProfile = "profile"
	EntityTypePayment = "payment"
	EntityTypeRole    = "user_role"
)

// AuditLog is an immutable record of an administrative action.
// ActorID is nulled when the actor is permanently deleted.
type AuditLog struct {
	ID         string         `gorm:"primarykey;type:varchar(36)" json:"id"`
	ActorID    *string        `gorm:"column:actor_id;type:varchar(64);index:idx_audit_logs_actor_id" json:"actor_id"`
	ActorRole  string         `gorm:"column:actor_role;type:varchar(32);not null" json:"actor_role"`
	Action     string         `gorm:"column:action;type:varchar(100);not null;index:idx_audit_logs_action" json:"action"`
	EntityType string         `gorm:"column:entity_type;type:varchar(50);not null" json:"entity_type"`
	EntityID   *string        `gorm:"column:entity_id;type:varchar(64);index:idx_audit_logs_entity_id" json:"entity_id"`
	Details    datatypes.JSON `gorm:"column:details" json:"details"`
	CreatedAt  time.Time      `gorm:"column:created_at;not null;index:idx_audit_logs_created_at" json:"created_at"`
}

// TableName sets the table name for AuditLog model
func (AuditLog) TableName() string {
	return "audit_logs"
}

// BeforeCreate hook to set default values
func (l *AuditLog) BeforeCreate(tx *gorm.DB) error {
	if l.ID == "" {
		l.ID = uuid.New().String()
	}
	if l.CreatedAt.IsZero() {
		l.CreatedAt = time.Now().UTC()
	}
	if len(l.Details) == 0 {
		l.Details = datatypes.JSON("{}")
	}
	return nil
}

// Validate performs validation checks matching the database constraints
func (l *AuditLog) Validate() error {
	if l.Action == "" {
		return fmt.Errorf("action is required")
	}
	if l.EntityType == "" {
		return fmt.Errorf("entity_type is required")
	}
	if l.ActorRole == "" {
		return fmt.Errorf("actor_role is required")
	}
	if len(l.Details) > 0 && !json.Valid(l.Details) {
		return fmt.Errorf("details must be valid JSON")
	}
	return nil
}

// DetailsMap decodes the details payload
func (l *AuditLog) DetailsMap() map[string]interface{} {
	out := map[string]interface{}{}
	if len(l.Details) == 0 {
		return out
	}
	_ = json.Unmarshal(l.Details, &out)
	return out
}

// Audit log page size bounds
const (
	DefaultAuditPageSize = 50
	MaxAuditPageSize     = 100
)

// AuditLogFilter narrows an audit log query
type AuditLogFilter struct {
	Action   string
	ActorID  string
	EntityID string
	Limit    int
	Offset   int
}

// Normalized applies the default page size, the page size cap and a non-negative offset
func (f AuditLogFilter) Normalized() AuditLogFilter {
	if f.Limit <= 0 {
		f.Limit = DefaultAuditPageSize
	}
	if f.Limit > MaxAuditPageSize {
		f.Limit = MaxAuditPageSize
	}
	if f.Offset < 0 {
		f.Offset = 0
	}
	return f
}
