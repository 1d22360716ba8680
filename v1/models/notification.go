package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// NotificationType identifies the kind of member notification
type NotificationType string

const (
	NotificationAccountSuspended   NotificationType = "account_suspended"
	NotificationMembershipRejected NotificationType = "membership_rejected"
	NotificationMembershipApproved NotificationType = "membership_approved"
	NotificationRoleAssignment     NotificationType = "role_assignment"
)

// ChannelInApp is the only delivery channel used by lifecycle notifications
const ChannelInApp = "in_app"

// Notification is a message delivered to a member through the real-time feed
type Notification struct {
	ID        string           `gorm:"primarykey;type:varchar(36)" json:"id"`
	UserID    string           `gorm:"column:user_id;type:varchar(64);not null;index:idx_notifications_user_id" json:"user_id"`
	Title     string           `gorm:"column:title;not null" json:"title"`
	Message   string           `gorm:"column:message;not null" json:"message"`
	Type      NotificationType `gorm:"column:type;type:varchar(50);not null" json:"type"`
	Read      bool             `gorm:"column:read;not null" json:"read"`
	ActionURL *string          `gorm:"column:action_url" json:"action_url"`
	Channels  datatypes.JSON   `gorm:"column:channels" json:"channels"`
	CreatedAt time.Time        `gorm:"column:created_at;not null" json:"created_at"`
}

// TableName sets the table name for Notification model
func (Notification) TableName() string {
	return "notifications"
}

// BeforeCreate generates the ID and timestamp
func (n *Notification) BeforeCreate(tx *gorm.DB) error {
	if n.ID == "" {
		n.ID = uuid.New().String()
	}
	if n.CreatedAt.IsZero() {
		n.CreatedAt = time.Now().UTC()
	}
	return nil
}

// Notice is the content of a notification before it is addressed to a member
type Notice struct {
	Title     string
	Message   string
	Type      NotificationType
	ActionURL string
}
