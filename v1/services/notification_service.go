package services

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	apperrors "github.com/turuturustars/turuturustars-sub001/pkg/errors"
	"github.com/turuturustars/turuturustars-sub001/pkg/monitoring"
	"github.com/turuturustars/turuturustars-sub001/shared/redis"
	"github.com/turuturustars/turuturustars-sub001/v1/models"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// NotificationService inserts member notifications and announces them on the event stream
type NotificationService struct {
	db        *gorm.DB
	publisher redis.EventPublisher
}

// NewNotificationService creates a new notification service
func NewNotificationService(db *gorm.DB, publisher redis.EventPublisher) *NotificationService {
	if publisher == nil {
		publisher = redis.NoopPublisher{}
	}
	return &NotificationService{db: db, publisher: publisher}
}

// Notify stores an in-app notification for the user
func (s *NotificationService) Notify(ctx context.Context, userID string, notice models.Notice) (*models.Notification, error) {
	channels, _ := json.Marshal([]string{models.ChannelInApp})

	notification := &models.Notification{
		UserID:   userID,
		Title:    notice.Title,
		Message:  notice.Message,
		Type:     notice.Type,
		Channels: datatypes.JSON(channels),
	}
	if notice.ActionURL != "" {
		url := notice.ActionURL
		notification.ActionURL = &url
	}

	if err := s.db.WithContext(ctx).Create(notification).Error; err != nil {
		return nil, apperrors.DatabaseError("insert notification", err)
	}

	publishEvent(ctx, s.publisher, redis.EventNotificationCreated, map[string]interface{}{
		"notification_id": notification.ID,
		"user_id":         userID,
		"type":            string(notice.Type),
	})

	return notification, nil
}

// publishEvent sends an event and only logs failures
func publishEvent(ctx context.Context, publisher redis.EventPublisher, eventType string, payload map[string]interface{}) {
	start := time.Now()
	err := publisher.Publish(ctx, eventType, payload)
	monitoring.RecordExternalCall(ctx, "event_stream", eventType, time.Since(start), err)
	if err != nil {
		slog.Warn("Failed to publish lifecycle event", "event", eventType, "error", err)
	}
}
