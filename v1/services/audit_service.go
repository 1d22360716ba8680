package services

import (
	"context"
	"encoding/json"

	apperrors "github.com/turuturustars/turuturustars-sub001/pkg/errors"
	"github.com/turuturustars/turuturustars-sub001/v1/models"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// AuditService writes and reads administrative audit entries
type AuditService struct {
	db *gorm.DB
}

// NewAuditService creates a new audit service
func NewAuditService(db *gorm.DB) *AuditService {
	return &AuditService{db: db}
}

// Record appends an audit entry attributed to the actor
func (s *AuditService) Record(ctx context.Context, actor models.Actor, action, entityType string, entityID *string, details map[string]interface{}) (*models.AuditLog, error) {
	if details == nil {
		details = map[string]interface{}{}
	}
	payload, err := json.Marshal(details)
	if err != nil {
		return nil, apperrors.ValidationErrorWithDetails("INVALID_DETAILS", "details must be JSON serializable",
			map[string]interface{}{"reason": err.Error()})
	}

	actorID := actor.UserID()
	entry := &models.AuditLog{
		ActorID:    &actorID,
		ActorRole:  string(actor.PrimaryRole()),
		Action:     action,
		EntityType: entityType,
		EntityID:   entityID,
		Details:    datatypes.JSON(payload),
	}
	if err := entry.Validate(); err != nil {
		return nil, apperrors.ValidationError("INVALID_AUDIT_ENTRY", err.Error())
	}

	if err := s.db.WithContext(ctx).Create(entry).Error; err != nil {
		return nil, apperrors.DatabaseError("write audit log", err)
	}
	return entry, nil
}

// List returns audit entries newest first with the total matching count
func (s *AuditService) List(ctx context.Context, filter models.AuditLogFilter) ([]models.AuditLog, int64, error) {
	filter = filter.Normalized()
	query := s.db.WithContext(ctx).Model(&models.AuditLog{})
	if filter.Action != "" {
		query = query.Where("action = ?", filter.Action)
	}
	if filter.ActorID != "" {
		query = query.Where("actor_id = ?", filter.ActorID)
	}
	if filter.EntityID != "" {
		query = query.Where("entity_id = ?", filter.EntityID)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, apperrors.DatabaseError("count audit logs", err)
	}

	var logs []models.AuditLog
	if err := query.Order("created_at DESC").Limit(filter.Limit).Offset(filter.Offset).Find(&logs).Error; err != nil {
		return nil, 0, apperrors.DatabaseError("list audit logs", err)
	}
	return logs, total, nil
}
