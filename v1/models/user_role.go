package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// UserRole assigns one role to one member. (user_id, role) is unique.
type UserRole struct {
	ID         string    `gorm:"primarykey;type:varchar(36)" json:"id"`
	UserID     string    `gorm:"column:user_id;type:varchar(64);not null;uniqueIndex:idx_user_roles_user_role" json:"user_id"`
	Role       Role      `gorm:"column:role;type:varchar(32);not null;uniqueIndex:idx_user_roles_user_role" json:"role"`
	AssignedBy *string   `gorm:"column:assigned_by;type:varchar(64)" json:"assigned_by"`
	CreatedAt  time.Time `gorm:"column:created_at" json:"created_at"`
}

// TableName sets the table name for the UserRole model
func (UserRole) TableName() string {
	return "user_roles"
}

// BeforeCreate generates the ID and timestamp
func (r *UserRole) BeforeCreate(tx *gorm.DB) error {
	if r.ID == "" {
		r.ID = uuid.New().String()
	}
	if r.CreatedAt.IsZero() {
		r.CreatedAt = time.Now()
	}
	return nil
}
