package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/turuturustars/turuturustars-sub001/idp"
	apperrors "github.com/turuturustars/turuturustars-sub001/pkg/errors"
	"github.com/turuturustars/turuturustars-sub001/pkg/monitoring"
	"github.com/turuturustars/turuturustars-sub001/shared/redis"
	"github.com/turuturustars/turuturustars-sub001/v1/models"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

const (
	defaultSuspensionMessage = "Your membership has been suspended. Please contact the association officials for more information."
	defaultRejectionMessage  = "Your membership application has been rejected. Please contact the association officials for more information."
	approvalMessage          = "Your membership has been approved. Welcome to the association!"
)

// ActionResult holds the action-specific fields echoed back to the caller
type ActionResult map[string]interface{}

// LifecycleService applies administrative state transitions to member records
type LifecycleService struct {
	db            *gorm.DB
	audit         *AuditService
	notifications *NotificationService
	cleanup       *CleanupRunner
	users         idp.UserManager
	events        redis.EventPublisher
	now           func() time.Time
}

// NewLifecycleService creates a new lifecycle service
func NewLifecycleService(db *gorm.DB, audit *AuditService, notifications *NotificationService,
	cleanup *CleanupRunner, users idp.UserManager, events redis.EventPublisher) *LifecycleService {
	if events == nil {
		events = redis.NoopPublisher{}
	}
	return &LifecycleService{
		db:            db,
		audit:         audit,
		notifications: notifications,
		cleanup:       cleanup,
		users:         users,
		events:        events,
		now:           time.Now,
	}
}

// Authorize applies the action's role gate
func (s *LifecycleService) Authorize(actor models.Actor, action models.Action) error {
	policy, ok := models.PolicyFor(action.Name())
	if !ok {
		return apperrors.ValidationError("UNKNOWN_ACTION", fmt.Sprintf("Unknown action: %s", action.Name()))
	}
	if !policy.Permits(actor) {
		slog.Warn("Action denied by role policy",
			"actorId", actor.UserID(),
			"action", action.Name(),
			"roles", actor.Roles())
		return apperrors.ForbiddenError(fmt.Sprintf("Insufficient permissions for %s", action.Name()))
	}
	return nil
}

// Execute authorizes, validates and dispatches one action
func (s *LifecycleService) Execute(ctx context.Context, actor models.Actor, action models.Action) (ActionResult, error) {
	if err := s.Authorize(actor, action); err != nil {
		return nil, err
	}
	if err := models.ValidateAction(action); err != nil {
		return nil, err
	}

	ctx, span := monitoring.Tracer().Start(ctx, "lifecycle."+string(action.Name()))
	defer span.End()
	span.SetAttributes(
		attribute.String("actor.id", actor.UserID()),
		attribute.String("actor.role", string(actor.PrimaryRole())),
	)

	var (
		result ActionResult
		err    error
	)
	switch a := action.(type) {
	case models.LogAction:
		result, err = s.logAction(ctx, actor, a)
	case models.SuspendMember:
		result, err = s.suspendMember(ctx, actor, a)
	case models.RejectMember:
		result, err = s.rejectMember(ctx, actor, a)
	case models.DeleteMember:
		result, err = s.deleteMember(ctx, actor, a)
	case models.ApproveUser:
		result, err = s.approveUser(ctx, actor, a)
	case models.ApprovePayment:
		result, err = s.approvePayment(ctx, actor, a)
	case models.AssignOfficialRole:
		result, err = s.assignOfficialRole(ctx, actor, a)
	default:
		err = apperrors.InternalError(fmt.Sprintf("no handler for action %s", action.Name()))
	}

	monitoring.RecordLifecycleAction(ctx, string(action.Name()), err == nil)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}
	return result, nil
}

func (s *LifecycleService) logAction(ctx context.Context, actor models.Actor, a models.LogAction) (ActionResult, error) {
	if _, err := s.audit.Record(ctx, actor, a.Event, a.EntityType, a.EntityID, a.Details); err != nil {
		return nil, err
	}
	return ActionResult{}, nil
}

func (s *LifecycleService) suspendMember(ctx context.Context, actor models.Actor, a models.SuspendMember) (ActionResult, error) {
	if _, err := s.loadProfile(ctx, a.MemberID); err != nil {
		return nil, err
	}

	if err := s.updateProfile(ctx, a.MemberID, models.SuspensionUpdates(), "suspend member"); err != nil {
		return nil, err
	}

	s.notify(ctx, a.MemberID, models.Notice{
		Title:   "Membership Suspended",
		Message: messageOrDefault(a.Reason, defaultSuspensionMessage),
		Type:    models.NotificationAccountSuspended,
	})
	s.recordAudit(ctx, actor, models.AuditMemberSuspended, models.EntityTypeProfile, a.MemberID, map[string]interface{}{
		"reason": a.Reason,
	})
	publishEvent(ctx, s.events, redis.EventMemberPrefix+"suspended", map[string]interface{}{
		"member_id": a.MemberID,
		"actor_id":  actor.UserID(),
	})

	slog.Info("Member suspended", "memberId", a.MemberID, "actorId", actor.UserID())
	return ActionResult{"member_id": a.MemberID, "status": models.MemberStatusSuspended}, nil
}

func (s *LifecycleService) rejectMember(ctx context.Context, actor models.Actor, a models.RejectMember) (ActionResult, error) {
	if a.DeleteAccount {
		return s.rejectAndDelete(ctx, actor, a)
	}

	if _, err := s.loadProfile(ctx, a.MemberID); err != nil {
		return nil, err
	}

	if err := s.updateProfile(ctx, a.MemberID, models.RedactionUpdates(a.MemberID, actor.UserID(), s.now().UTC()), "redact member"); err != nil {
		return nil, err
	}

	if err := s.db.WithContext(ctx).
		Where("user_id = ? AND role <> ?", a.MemberID, models.RoleMember).
		Delete(&models.UserRole{}).Error; err != nil {
		return nil, apperrors.DatabaseError("remove official roles", err)
	}

	s.notify(ctx, a.MemberID, models.Notice{
		Title:   "Membership Application Rejected",
		Message: messageOrDefault(a.Reason, defaultRejectionMessage),
		Type:    models.NotificationMembershipRejected,
	})

	s.recordRejection(ctx, actor, a)
	return ActionResult{
		"member_id": a.MemberID,
		"status":    models.MemberStatusSuspended,
		"deleted":   false,
	}, nil
}

// rejectAndDelete removes the member outright instead of redacting first.
// Nothing is written to the profile until the identity provider account is gone,
// so a failed attempt can be repeated with the original confirmation.
func (s *LifecycleService) rejectAndDelete(ctx context.Context, actor models.Actor, a models.RejectMember) (ActionResult, error) {
	profile, err := s.checkPermanentDelete(ctx, actor, a.MemberID, a.Confirmation, a.Force)
	if err != nil {
		return nil, err
	}

	if err := s.permanentlyDelete(ctx, actor, profile, a.Force); err != nil {
		return nil, err
	}

	s.recordRejection(ctx, actor, a)
	return ActionResult{
		"member_id":       a.MemberID,
		"status":          models.MemberStatusSuspended,
		"deleted":         true,
		"deleted_profile": profile,
	}, nil
}

func (s *LifecycleService) recordRejection(ctx context.Context, actor models.Actor, a models.RejectMember) {
	s.recordAudit(ctx, actor, models.AuditMemberRejected, models.EntityTypeProfile, a.MemberID, map[string]interface{}{
		"reason":         a.Reason,
		"delete_account": a.DeleteAccount,
		"force":          a.Force,
	})
	publishEvent(ctx, s.events, redis.EventMemberPrefix+"rejected", map[string]interface{}{
		"member_id": a.MemberID,
		"actor_id":  actor.UserID(),
		"deleted":   a.DeleteAccount,
	})

	slog.Info("Member rejected", "memberId", a.MemberID, "actorId", actor.UserID(), "deleted", a.DeleteAccount)
}

func (s *LifecycleService) deleteMember(ctx context.Context, actor models.Actor, a models.DeleteMember) (ActionResult, error) {
	profile, err := s.checkPermanentDelete(ctx, actor, a.MemberID, a.Confirmation, a.Force)
	if err != nil {
		return nil, err
	}

	if err := s.permanentlyDelete(ctx, actor, profile, a.Force); err != nil {
		return nil, err
	}

	return ActionResult{"member_id": a.MemberID, "deleted_profile": profile}, nil
}

// checkPermanentDelete runs every precondition of a permanent delete without mutating anything.
// It returns the pre-deletion profile snapshot.
func (s *LifecycleService) checkPermanentDelete(ctx context.Context, actor models.Actor, memberID, confirmation string, force bool) (*models.Profile, error) {
	if memberID == actor.UserID() {
		return nil, apperrors.ConflictError("You cannot permanently delete your own account")
	}
	if !actor.IsAdmin() {
		slog.Warn("Permanent delete denied for non-admin", "actorId", actor.UserID(), "memberId", memberID)
		return nil, apperrors.ForbiddenError("Only admins can permanently delete members")
	}

	profile, err := s.loadProfile(ctx, memberID)
	if err != nil {
		return nil, err
	}

	if !profile.ConfirmsDeletion(confirmation) {
		return nil, apperrors.ValidationErrorWithDetails("CONFIRMATION_MISMATCH",
			"Confirmation text does not match",
			map[string]interface{}{"expected": profile.DeletionConfirmation()})
	}

	roles, err := loadRoles(s.db.WithContext(ctx), memberID)
	if err != nil {
		return nil, err
	}
	var official []models.Role
	for _, r := range roles {
		if r.IsOfficial() {
			official = append(official, r)
		}
	}
	if len(official) > 0 && !force {
		conflict := apperrors.ConflictError("Member holds an official role. Suspend the member first or retry with force=true")
		return nil, conflict.WithDetail("official_roles", official)
	}

	return profile, nil
}

// permanentlyDelete removes dependents, the identity provider account and the profile row
func (s *LifecycleService) permanentlyDelete(ctx context.Context, actor models.Actor, profile *models.Profile, force bool) error {
	report, err := s.cleanup.Run(ctx, profile.ID)
	if err != nil {
		return err
	}

	start := time.Now()
	err = s.users.DeleteUser(ctx, profile.ID)
	monitoring.RecordExternalCall(ctx, "idp", "delete_user", time.Since(start), err)
	switch {
	case errors.Is(err, idp.ErrUserNotFound):
		slog.Warn("Identity provider user already absent", "memberId", profile.ID)
	case err != nil:
		slog.Error("Failed to delete identity provider user", "memberId", profile.ID, "error", err)
		return apperrors.NewAPIErrorWithCause(apperrors.ErrorTypeInternal, "IDP_DELETE_FAILED",
			"Failed to delete user account", http.StatusInternalServerError, err)
	}

	// The provider does not always cascade to the profile row.
	if err := s.db.WithContext(ctx).Where("id = ?", profile.ID).Delete(&models.Profile{}).Error; err != nil {
		return apperrors.DatabaseError("delete profile", err)
	}

	s.recordAudit(ctx, actor, models.AuditMemberPermanentlyDeleted, models.EntityTypeProfile, profile.ID, map[string]interface{}{
		"full_name":         profile.FullName,
		"membership_number": profile.MembershipNumber,
		"email":             profile.Email,
		"phone":             profile.Phone,
		"force":             force,
		"skipped_steps":     report.Skipped(),
	})
	publishEvent(ctx, s.events, redis.EventMemberPrefix+"permanently_deleted", map[string]interface{}{
		"member_id": profile.ID,
		"actor_id":  actor.UserID(),
	})

	slog.Info("Member permanently deleted", "memberId", profile.ID, "actorId", actor.UserID(), "force", force)
	return nil
}

func (s *LifecycleService) approveUser(ctx context.Context, actor models.Actor, a models.ApproveUser) (ActionResult, error) {
	if _, err := s.loadProfile(ctx, a.UserID); err != nil {
		return nil, err
	}

	if err := s.updateProfile(ctx, a.UserID, models.ApprovalUpdates(), "approve member"); err != nil {
		return nil, err
	}

	s.notify(ctx, a.UserID, models.Notice{
		Title:   "Membership Approved",
		Message: approvalMessage,
		Type:    models.NotificationMembershipApproved,
	})
	s.recordAudit(ctx, actor, models.AuditUserApproved, models.EntityTypeProfile, a.UserID, nil)
	publishEvent(ctx, s.events, redis.EventMemberPrefix+"approved", map[string]interface{}{
		"member_id": a.UserID,
		"actor_id":  actor.UserID(),
	})

	return ActionResult{"user_id": a.UserID, "status": models.MemberStatusActive}, nil
}

func (s *LifecycleService) approvePayment(ctx context.Context, actor models.Actor, a models.ApprovePayment) (ActionResult, error) {
	paymentID := a.PaymentID
	if _, err := s.audit.Record(ctx, actor, models.AuditPaymentApproved, models.EntityTypePayment, &paymentID, nil); err != nil {
		return nil, err
	}
	return ActionResult{"payment_id": a.PaymentID}, nil
}

func (s *LifecycleService) assignOfficialRole(ctx context.Context, actor models.Actor, a models.AssignOfficialRole) (ActionResult, error) {
	if !a.Role.IsOfficial() {
		return nil, apperrors.ValidationErrorWithDetails("INVALID_ROLE", fmt.Sprintf("Invalid role: %s", a.Role),
			map[string]interface{}{"role": a.Role, "allowed": models.OfficialRoles()})
	}
	if a.Role == models.RoleAdmin && !actor.IsAdmin() {
		return nil, apperrors.ForbiddenError("Only admins can assign the admin role")
	}

	profile, err := s.loadProfile(ctx, a.UserID)
	if err != nil {
		return nil, err
	}
	if reason := profile.MissingEligibility(); reason != "" {
		return nil, apperrors.ValidationErrorWithDetails("NOT_ELIGIBLE",
			fmt.Sprintf("Member is not eligible for an official role: %s", reason),
			map[string]interface{}{"reason": reason})
	}

	assignedBy := actor.UserID()
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		base := &models.UserRole{UserID: a.UserID, Role: models.RoleMember}
		if err := tx.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "user_id"}, {Name: "role"}},
			DoNothing: true,
		}).Create(base).Error; err != nil {
			return fmt.Errorf("ensure member role: %w", err)
		}

		if err := tx.Where("user_id = ? AND role <> ?", a.UserID, models.RoleMember).
			Delete(&models.UserRole{}).Error; err != nil {
			return fmt.Errorf("clear official roles: %w", err)
		}

		official := &models.UserRole{UserID: a.UserID, Role: a.Role, AssignedBy: &assignedBy}
		if err := tx.Create(official).Error; err != nil {
			return fmt.Errorf("insert official role: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, apperrors.DatabaseError("assign official role", err)
	}

	s.notify(ctx, a.UserID, models.Notice{
		Title:   "Official Role Assigned",
		Message: fmt.Sprintf("You have been assigned the official role of %s.", a.Role.DisplayName()),
		Type:    models.NotificationRoleAssignment,
	})
	s.recordAudit(ctx, actor, models.AuditOfficialRoleAssigned, models.EntityTypeRole, a.UserID, map[string]interface{}{
		"role": a.Role,
	})
	publishEvent(ctx, s.events, redis.EventMemberPrefix+"role_assigned", map[string]interface{}{
		"member_id": a.UserID,
		"actor_id":  actor.UserID(),
		"role":      string(a.Role),
	})

	slog.Info("Official role assigned", "memberId", a.UserID, "role", a.Role, "actorId", actor.UserID())
	return ActionResult{"user_id": a.UserID, "role": a.Role}, nil
}

func (s *LifecycleService) loadProfile(ctx context.Context, id string) (*models.Profile, error) {
	var profile models.Profile
	if err := s.db.WithContext(ctx).Where("id = ?", id).First(&profile).Error; err != nil {
		return nil, apperrors.HandleDatabaseError(err, "load profile", "Member profile")
	}
	return &profile, nil
}

func (s *LifecycleService) updateProfile(ctx context.Context, id string, updates map[string]interface{}, operation string) error {
	if err := s.db.WithContext(ctx).Model(&models.Profile{}).Where("id = ?", id).Updates(updates).Error; err != nil {
		return apperrors.DatabaseError(operation, err)
	}
	return nil
}

// notify sends a member notification; failures are logged and do not fail the action
func (s *LifecycleService) notify(ctx context.Context, userID string, notice models.Notice) {
	if _, err := s.notifications.Notify(ctx, userID, notice); err != nil {
		slog.Error("Failed to send member notification", "memberId", userID, "type", notice.Type, "error", err)
	}
}

// recordAudit writes the audit entry of an already applied transition; failures are logged
func (s *LifecycleService) recordAudit(ctx context.Context, actor models.Actor, action, entityType, entityID string, details map[string]interface{}) {
	id := entityID
	if _, err := s.audit.Record(ctx, actor, action, entityType, &id, details); err != nil {
		slog.Error("Failed to write audit log", "action", action, "entityId", entityID, "error", err)
	}
}

func messageOrDefault(reason, fallback string) string {
	if reason == "" {
		return fallback
	}
	return reason
}
