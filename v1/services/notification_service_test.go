package services

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/turuturustars/turuturustars-sub001/shared/redis"
	"github.com/turuturustars/turuturustars-sub001/v1/models"
)

type recordedEvent struct {
	eventType string
	payload   map[string]interface{}
}

type recordingPublisher struct {
	mu     sync.Mutex
	events []recordedEvent
	err    error
}

func (p *recordingPublisher) Publish(_ context.Context, eventType string, payload map[string]interface{}) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, recordedEvent{eventType: eventType, payload: payload})
	return p.err
}

func (p *recordingPublisher) types() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]string, 0, len(p.events))
	for _, e := range p.events {
		out = append(out, e.eventType)
	}
	return out
}

func TestNotificationService_Notify(t *testing.T) {
	db := SetupSQLiteTestDB(t)
	publisher := &recordingPublisher{}
	service := NewNotificationService(db, publisher)

	n, err := service.Notify(context.Background(), "member-1", models.Notice{
		Title:     "Membership Approved",
		Message:   "Welcome",
		Type:      models.NotificationMembershipApproved,
		ActionURL: "/dashboard",
	})
	require.NoError(t, err)

	var stored models.Notification
	require.NoError(t, db.First(&stored, "id = ?", n.ID).Error)
	assert.Equal(t, "member-1", stored.UserID)
	assert.Equal(t, models.NotificationMembershipApproved, stored.Type)
	assert.False(t, stored.Read)
	require.NotNil(t, stored.ActionURL)
	assert.Equal(t, "/dashboard", *stored.ActionURL)

	var channels []string
	require.NoError(t, json.Unmarshal(stored.Channels, &channels))
	assert.Equal(t, []string{models.ChannelInApp}, channels)

	assert.Equal(t, []string{redis.EventNotificationCreated}, publisher.types())
	assert.Equal(t, n.ID, publisher.events[0].payload["notification_id"])
}

func TestNotificationService_PublishFailureIsNotFatal(t *testing.T) {
	db := SetupSQLiteTestDB(t)
	publisher := &recordingPublisher{err: errors.New("stream unavailable")}
	service := NewNotificationService(db, publisher)

	_, err := service.Notify(context.Background(), "member-1", models.Notice{
		Title: "Membership Suspended", Message: "x", Type: models.NotificationAccountSuspended,
	})
	require.NoError(t, err)

	var count int64
	db.Model(&models.Notification{}).Where("user_id = ?", "member-1").Count(&count)
	assert.Equal(t, int64(1), count)
}
