package services

import (
	"context"
	"log/slog"

	apperrors "github.com/turuturustars/turuturustars-sub001/pkg/errors"
	"github.com/turuturustars/turuturustars-sub001/v1/models"
	"gorm.io/gorm"
)

// ActorService resolves an authenticated identity into an Actor with roles
type ActorService struct {
	db *gorm.DB
}

// NewActorService creates a new actor service
func NewActorService(db *gorm.DB) *ActorService {
	return &ActorService{db: db}
}

// RolesOf returns the valid roles assigned to a user
func (s *ActorService) RolesOf(ctx context.Context, userID string) ([]models.Role, error) {
	return loadRoles(s.db.WithContext(ctx), userID)
}

// ResolveActor loads the caller's roles and returns an immutable Actor.
// A caller without any role is rejected.
func (s *ActorService) ResolveActor(ctx context.Context, user *models.AuthenticatedUser) (models.Actor, error) {
	if user == nil || user.UserID == "" {
		return models.Actor{}, apperrors.UnauthorizedError("Invalid or missing authorization")
	}

	roles, err := s.RolesOf(ctx, user.UserID)
	if err != nil {
		return models.Actor{}, err
	}
	if len(roles) == 0 {
		slog.Warn("Caller has no roles", "userId", user.UserID)
		return models.Actor{}, apperrors.InsufficientRolesError()
	}

	return models.NewActor(user.UserID, user.Email, roles), nil
}

func loadRoles(db *gorm.DB, userID string) ([]models.Role, error) {
	var rows []models.UserRole
	if err := db.Where("user_id = ?", userID).Find(&rows).Error; err != nil {
		return nil, apperrors.DatabaseError("load role assignments", err)
	}

	roles := make([]models.Role, 0, len(rows))
	for _, row := range rows {
		if !row.Role.IsValid() {
			slog.Warn("Ignoring unknown role assignment", "userId", userID, "role", row.Role)
			continue
		}
		roles = append(roles, row.Role)
	}
	return roles, nil
}
