package services

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"github.com/turuturustars/turuturustars-sub001/idp"
	apperrors "github.com/turuturustars/turuturustars-sub001/pkg/errors"
	"github.com/turuturustars/turuturustars-sub001/v1/models"
	"gorm.io/gorm"
)

var (
	adminActor     = models.NewActor("admin-1", "admin@example.org", []models.Role{models.RoleMember, models.RoleAdmin})
	chairActor     = models.NewActor("chair-1", "", []models.Role{models.RoleMember, models.RoleChairperson})
	secretaryActor = models.NewActor("sec-1", "", []models.Role{models.RoleMember, models.RoleSecretary})
	memberActor    = models.NewActor("plain-1", "", []models.Role{models.RoleMember})
)

type lifecycleFixture struct {
	db      *gorm.DB
	users   *MockUserManager
	service *LifecycleService
}

func newLifecycleFixture(t *testing.T) *lifecycleFixture {
	t.Helper()
	db := SetupSQLiteTestDB(t)
	users := new(MockUserManager)
	service := NewTestLifecycleService(t, db, users)
	service.now = func() time.Time { return time.Date(2026, 5, 4, 9, 30, 0, 0, time.UTC) }
	return &lifecycleFixture{db: db, users: users, service: service}
}

func (f *lifecycleFixture) profile(t *testing.T, id string) *models.Profile {
	t.Helper()
	var p models.Profile
	err := f.db.Where("id = ?", id).First(&p).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil
	}
	require.NoError(t, err)
	return &p
}

func (f *lifecycleFixture) roles(t *testing.T, id string) []models.Role {
	t.Helper()
	roles, err := loadRoles(f.db, id)
	require.NoError(t, err)
	return roles
}

func (f *lifecycleFixture) auditEntries(t *testing.T, action string) []models.AuditLog {
	t.Helper()
	var logs []models.AuditLog
	require.NoError(t, f.db.Where("action = ?", action).Find(&logs).Error)
	return logs
}

func (f *lifecycleFixture) notifications(t *testing.T, userID string) []models.Notification {
	t.Helper()
	var out []models.Notification
	require.NoError(t, f.db.Where("user_id = ?", userID).Find(&out).Error)
	return out
}

// seedDependents writes one row referencing memberID into every dependent relation
func (f *lifecycleFixture) seedDependents(t *testing.T, memberID string) {
	t.Helper()
	statements := []string{
		`INSERT INTO contributions (id, member_id, recorded_by, amount) VALUES (?, ?, ?, 100)`,
		`INSERT INTO mpesa_transactions (id, member_id, amount) VALUES (?, ?, 50)`,
		`INSERT INTO welfare_transactions (id, member_id, amount) VALUES (?, ?, 20)`,
		`INSERT INTO welfare_cases (id, title, created_by) VALUES (?, 'Bereavement', ?)`,
		`INSERT INTO discipline_records (id, member_id, recorded_by, description) VALUES (?, ?, ?, 'Late')`,
		`INSERT INTO meetings (id, title, created_by) VALUES (?, 'AGM', ?)`,
		`INSERT INTO meeting_attendance (id, meeting_id, member_id) VALUES (?, 'mt-1', ?)`,
		`INSERT INTO votes (id, motion, member_id) VALUES (?, 'Raise dues', ?)`,
		`INSERT INTO messages (id, sender_id, recipient_id, body) VALUES (?, ?, ?, 'hi')`,
		`INSERT INTO notification_preferences (id, user_id, channel) VALUES (?, ?, 'sms')`,
		`INSERT INTO announcements (id, title, created_by) VALUES (?, 'Notice', ?)`,
	}
	for i, stmt := range statements {
		args := []interface{}{fmt.Sprintf("%s-dep-%d", memberID, i)}
		for n := strings.Count(stmt, "?") - 1; n > 0; n-- {
			args = append(args, memberID)
		}
		require.NoError(t, f.db.Exec(stmt, args...).Error, stmt)
	}
	_, err := f.service.notifications.Notify(context.Background(), memberID, models.Notice{
		Title: "Welcome", Message: "Welcome aboard", Type: models.NotificationMembershipApproved,
	})
	require.NoError(t, err)
}

// dependentReferences counts rows referencing memberID across every relation the cleanup plan touches
func (f *lifecycleFixture) dependentReferences(t *testing.T, memberID string) int64 {
	t.Helper()
	var total int64
	for _, step := range models.DefaultCleanupPlan() {
		if !f.db.Migrator().HasTable(step.Relation) {
			continue
		}
		var n int64
		require.NoError(t, f.db.Table(step.Relation).Where(step.Column+" = ?", memberID).Count(&n).Error)
		total += n
	}
	return total
}

func requireAPIError(t *testing.T, err error, status int, code string) *apperrors.APIError {
	t.Helper()
	require.Error(t, err)
	apiErr := apperrors.GetAPIError(err)
	require.NotNil(t, apiErr, "expected APIError, got %v", err)
	assert.Equal(t, status, apiErr.HTTPStatus)
	if code != "" {
		assert.Equal(t, code, apiErr.Code)
	}
	return apiErr
}

func TestLifecycleService_Authorization(t *testing.T) {
	f := newLifecycleFixture(t)
	ctx := context.Background()

	t.Run("member cannot run any action", func(t *testing.T) {
		actions := []models.Action{
			models.LogAction{Event: "x", EntityType: "y"},
			models.SuspendMember{MemberID: "m-1"},
			models.RejectMember{MemberID: "m-1"},
			models.RejectMember{MemberID: "m-1", DeleteAccount: true, Confirmation: "DELETE TS-1", Force: true},
			models.DeleteMember{MemberID: "m-1", Confirmation: "DELETE TS-1", Force: true},
			models.DeleteMember{MemberID: "plain-1", Confirmation: "DELETE PLAIN-1"},
			models.ApproveUser{UserID: "m-1"},
			models.ApprovePayment{PaymentID: "p-1"},
			models.AssignOfficialRole{UserID: "m-1", Role: models.RoleTreasurer},
		}
		for _, action := range actions {
			_, err := f.service.Execute(ctx, memberActor, action)
			requireAPIError(t, err, http.StatusForbidden, "INSUFFICIENT_PERMISSIONS")
		}
	})

	t.Run("authorization precedes validation", func(t *testing.T) {
		_, err := f.service.Execute(ctx, memberActor, models.SuspendMember{})
		requireAPIError(t, err, http.StatusForbidden, "")
	})

	t.Run("secretary cannot assign roles", func(t *testing.T) {
		_, err := f.service.Execute(ctx, secretaryActor, models.AssignOfficialRole{UserID: "m-1", Role: models.RoleTreasurer})
		requireAPIError(t, err, http.StatusForbidden, "")
	})

	t.Run("missing fields are reported", func(t *testing.T) {
		_, err := f.service.Execute(ctx, secretaryActor, models.SuspendMember{})
		apiErr := requireAPIError(t, err, http.StatusBadRequest, "INVALID_FIELD")
		assert.Equal(t, "member_id", apiErr.Details["field"])
	})

	t.Run("no side effects on denial", func(t *testing.T) {
		var count int64
		f.db.Model(&models.AuditLog{}).Count(&count)
		assert.Zero(t, count)
	})
}

func TestLifecycleService_LogAction(t *testing.T) {
	f := newLifecycleFixture(t)
	entityID := "meeting-7"

	result, err := f.service.Execute(context.Background(), secretaryActor, models.LogAction{
		Event:      "minutes_published",
		EntityType: "meeting",
		EntityID:   &entityID,
		Details:    map[string]interface{}{"pages": 3},
	})
	require.NoError(t, err)
	assert.Empty(t, result)

	logs := f.auditEntries(t, "minutes_published")
	require.Len(t, logs, 1)
	assert.Equal(t, "secretary", logs[0].ActorRole)
	assert.Equal(t, "meeting-7", *logs[0].EntityID)
	assert.EqualValues(t, 3, logs[0].DetailsMap()["pages"])
}

func TestLifecycleService_SuspendMember(t *testing.T) {
	f := newLifecycleFixture(t)
	ctx := context.Background()
	SeedProfile(t, f.db, EligibleProfile("m-1", "TS-001"), models.RoleMember)

	result, err := f.service.Execute(ctx, secretaryActor, models.SuspendMember{MemberID: "m-1", Reason: "Unpaid dues"})
	require.NoError(t, err)
	assert.Equal(t, "m-1", result["member_id"])
	assert.Equal(t, models.MemberStatusSuspended, result["status"])

	p := f.profile(t, "m-1")
	assert.Equal(t, models.MemberStatusSuspended, p.Status)
	assert.False(t, p.SoftDeleted)
	assert.Equal(t, "Member m-1", p.FullName, "suspension keeps personal data")

	notes := f.notifications(t, "m-1")
	require.Len(t, notes, 1)
	assert.Equal(t, "Membership Suspended", notes[0].Title)
	assert.Equal(t, "Unpaid dues", notes[0].Message)
	assert.Equal(t, models.NotificationAccountSuspended, notes[0].Type)

	logs := f.auditEntries(t, models.AuditMemberSuspended)
	require.Len(t, logs, 1)
	assert.Equal(t, "m-1", *logs[0].EntityID)

	t.Run("default message", func(t *testing.T) {
		SeedProfile(t, f.db, EligibleProfile("m-2", "TS-002"))
		_, err := f.service.Execute(ctx, secretaryActor, models.SuspendMember{MemberID: "m-2"})
		require.NoError(t, err)
		assert.Equal(t, defaultSuspensionMessage, f.notifications(t, "m-2")[0].Message)
	})

	t.Run("repeat suspension still audits", func(t *testing.T) {
		_, err := f.service.Execute(ctx, secretaryActor, models.SuspendMember{MemberID: "m-1"})
		require.NoError(t, err)
		assert.Equal(t, models.MemberStatusSuspended, f.profile(t, "m-1").Status)
		assert.Len(t, f.notifications(t, "m-1"), 2)
		assert.Len(t, f.auditEntries(t, models.AuditMemberSuspended), 3)
	})

	t.Run("unknown member", func(t *testing.T) {
		_, err := f.service.Execute(ctx, secretaryActor, models.SuspendMember{MemberID: "nobody"})
		requireAPIError(t, err, http.StatusNotFound, "")
	})
}

func TestLifecycleService_RejectMember(t *testing.T) {
	f := newLifecycleFixture(t)
	ctx := context.Background()
	SeedProfile(t, f.db, EligibleProfile("applicant-123456789", "TS-010"), models.RoleMember, models.RoleCoordinator)

	result, err := f.service.Execute(ctx, chairActor, models.RejectMember{MemberID: "applicant-123456789", Reason: "Incomplete documents"})
	require.NoError(t, err)
	assert.Equal(t, false, result["deleted"])
	assert.Equal(t, models.MemberStatusSuspended, result["status"])

	p := f.profile(t, "applicant-123456789")
	require.NotNil(t, p)
	assert.Equal(t, models.MemberStatusSuspended, p.Status)
	assert.True(t, p.SoftDeleted)
	require.NotNil(t, p.DeletedAt)
	assert.True(t, p.DeletedAt.Equal(time.Date(2026, 5, 4, 9, 30, 0, 0, time.UTC)))
	assert.Equal(t, "chair-1", *p.DeletedBy)
	assert.Equal(t, models.RedactedFullName, p.FullName)
	assert.Equal(t, models.RedactedIDNumber, *p.IDNumber)
	assert.Equal(t, "deleted_applican", p.Phone)
	assert.Equal(t, models.RedactedEmail, *p.Email)
	assert.Equal(t, models.RedactedLocation, *p.Location)
	assert.Equal(t, models.RedactedOccupation, *p.Occupation)
	assert.Nil(t, p.MembershipNumber)

	assert.Equal(t, []models.Role{models.RoleMember}, f.roles(t, "applicant-123456789"))

	notes := f.notifications(t, "applicant-123456789")
	require.Len(t, notes, 1)
	assert.Equal(t, "Membership Application Rejected", notes[0].Title)
	assert.Equal(t, models.NotificationMembershipRejected, notes[0].Type)

	logs := f.auditEntries(t, models.AuditMemberRejected)
	require.Len(t, logs, 1)
	details := logs[0].DetailsMap()
	assert.Equal(t, "Incomplete documents", details["reason"])
	assert.Equal(t, false, details["delete_account"])

	f.users.AssertNotCalled(t, "DeleteUser", mock.Anything, mock.Anything)
}

func TestLifecycleService_RejectMemberWithDeletion(t *testing.T) {
	t.Run("confirmation mismatch leaves the profile untouched", func(t *testing.T) {
		f := newLifecycleFixture(t)
		SeedProfile(t, f.db, EligibleProfile("m-1", "TS-020"), models.RoleMember)
		f.seedDependents(t, "m-1")
		before := f.dependentReferences(t, "m-1")
		require.NotZero(t, before)

		_, err := f.service.Execute(context.Background(), adminActor, models.RejectMember{
			MemberID: "m-1", DeleteAccount: true, Confirmation: "DELETE TS-999",
		})
		apiErr := requireAPIError(t, err, http.StatusBadRequest, "CONFIRMATION_MISMATCH")
		assert.Equal(t, "DELETE TS-020", apiErr.Details["expected"])

		p := f.profile(t, "m-1")
		assert.Equal(t, models.MemberStatusActive, p.Status)
		assert.Equal(t, "Member m-1", p.FullName)
		assert.Equal(t, before, f.dependentReferences(t, "m-1"))
	})

	t.Run("non-admin cannot delete", func(t *testing.T) {
		f := newLifecycleFixture(t)
		SeedProfile(t, f.db, EligibleProfile("m-1", "TS-021"), models.RoleMember)

		_, err := f.service.Execute(context.Background(), chairActor, models.RejectMember{
			MemberID: "m-1", DeleteAccount: true, Confirmation: "DELETE TS-021",
		})
		requireAPIError(t, err, http.StatusForbidden, "")
		assert.False(t, f.profile(t, "m-1").SoftDeleted)
	})

	t.Run("removes the member", func(t *testing.T) {
		f := newLifecycleFixture(t)
		SeedProfile(t, f.db, EligibleProfile("m-1", "TS-022"), models.RoleMember)
		f.users.On("DeleteUser", mock.Anything, "m-1").Return(nil).Once()

		result, err := f.service.Execute(context.Background(), adminActor, models.RejectMember{
			MemberID: "m-1", DeleteAccount: true, Confirmation: "delete ts-022",
		})
		require.NoError(t, err)
		assert.Equal(t, true, result["deleted"])
		assert.Nil(t, f.profile(t, "m-1"))
		assert.Empty(t, f.roles(t, "m-1"))

		deleted := f.auditEntries(t, models.AuditMemberPermanentlyDeleted)
		require.Len(t, deleted, 1)
		assert.Equal(t, "Member m-1", deleted[0].DetailsMap()["full_name"], "audit keeps the original personal data")
		assert.Len(t, f.auditEntries(t, models.AuditMemberRejected), 1)
		f.users.AssertExpectations(t)
	})
}

func TestLifecycleService_RejectMemberWithDeletionRetry(t *testing.T) {
	f := newLifecycleFixture(t)
	ctx := context.Background()
	SeedProfile(t, f.db, EligibleProfile("m-1", "TS-070"), models.RoleMember)
	request := models.RejectMember{MemberID: "m-1", Reason: "Duplicate account", DeleteAccount: true, Confirmation: "DELETE TS-070"}

	f.users.On("DeleteUser", mock.Anything, "m-1").Return(errors.New("status code: 502")).Once()
	_, err := f.service.Execute(ctx, adminActor, request)
	requireAPIError(t, err, http.StatusInternalServerError, "IDP_DELETE_FAILED")

	p := f.profile(t, "m-1")
	require.NotNil(t, p)
	assert.Equal(t, "Member m-1", p.FullName)
	assert.False(t, p.SoftDeleted)
	require.NotNil(t, p.MembershipNumber)
	assert.Equal(t, "TS-070", *p.MembershipNumber)
	assert.Empty(t, f.auditEntries(t, models.AuditMemberRejected))

	f.users.On("DeleteUser", mock.Anything, "m-1").Return(nil).Once()
	result, err := f.service.Execute(ctx, adminActor, request)
	require.NoError(t, err)
	assert.Equal(t, true, result["deleted"])
	assert.Nil(t, f.profile(t, "m-1"))

	rejected := f.auditEntries(t, models.AuditMemberRejected)
	require.Len(t, rejected, 1)
	assert.Equal(t, "Duplicate account", rejected[0].DetailsMap()["reason"])
	assert.Equal(t, true, rejected[0].DetailsMap()["delete_account"])
	require.Len(t, f.auditEntries(t, models.AuditMemberPermanentlyDeleted), 1)
	f.users.AssertExpectations(t)
}

func TestLifecycleService_DeleteMember(t *testing.T) {
	ctx := context.Background()

	t.Run("self delete is a conflict even for non-admins", func(t *testing.T) {
		f := newLifecycleFixture(t)
		_, err := f.service.Execute(ctx, adminActor, models.DeleteMember{MemberID: "admin-1", Confirmation: "DELETE admin-1"})
		requireAPIError(t, err, http.StatusConflict, "")

		_, err = f.service.Execute(ctx, chairActor, models.DeleteMember{MemberID: "chair-1"})
		requireAPIError(t, err, http.StatusConflict, "")
	})

	t.Run("non-admin is forbidden", func(t *testing.T) {
		f := newLifecycleFixture(t)
		SeedProfile(t, f.db, EligibleProfile("m-1", "TS-030"), models.RoleMember)
		f.seedDependents(t, "m-1")
		before := f.dependentReferences(t, "m-1")

		_, err := f.service.Execute(ctx, chairActor, models.DeleteMember{MemberID: "m-1", Confirmation: "DELETE TS-030"})
		requireAPIError(t, err, http.StatusForbidden, "")

		p := f.profile(t, "m-1")
		require.NotNil(t, p)
		assert.Equal(t, models.MemberStatusActive, p.Status)
		assert.Equal(t, "Member m-1", p.FullName)
		assert.Equal(t, []models.Role{models.RoleMember}, f.roles(t, "m-1"))
		assert.Equal(t, before, f.dependentReferences(t, "m-1"))
		var audits int64
		require.NoError(t, f.db.Model(&models.AuditLog{}).Count(&audits).Error)
		assert.Zero(t, audits)
		f.users.AssertNotCalled(t, "DeleteUser", mock.Anything, mock.Anything)
	})

	t.Run("unknown member", func(t *testing.T) {
		f := newLifecycleFixture(t)
		_, err := f.service.Execute(ctx, adminActor, models.DeleteMember{MemberID: "ghost", Confirmation: "DELETE GHOST"})
		requireAPIError(t, err, http.StatusNotFound, "")
	})

	t.Run("confirmation falls back to the id", func(t *testing.T) {
		f := newLifecycleFixture(t)
		p := EligibleProfile("abc-1", "")
		p.MembershipNumber = nil
		SeedProfile(t, f.db, p, models.RoleMember)

		_, err := f.service.Execute(ctx, adminActor, models.DeleteMember{MemberID: "abc-1", Confirmation: "DELETE TS-1"})
		apiErr := requireAPIError(t, err, http.StatusBadRequest, "CONFIRMATION_MISMATCH")
		assert.Equal(t, "DELETE ABC-1", apiErr.Details["expected"])

		f.users.On("DeleteUser", mock.Anything, "abc-1").Return(nil).Once()
		_, err = f.service.Execute(ctx, adminActor, models.DeleteMember{MemberID: "abc-1", Confirmation: " delete abc-1"})
		requireAPIError(t, err, http.StatusBadRequest, "CONFIRMATION_MISMATCH")

		_, err = f.service.Execute(ctx, adminActor, models.DeleteMember{MemberID: "abc-1", Confirmation: "delete abc-1"})
		require.NoError(t, err)
		assert.Nil(t, f.profile(t, "abc-1"))
	})

	t.Run("official role requires force", func(t *testing.T) {
		f := newLifecycleFixture(t)
		SeedProfile(t, f.db, EligibleProfile("tr-1", "TS-040"), models.RoleMember, models.RoleTreasurer)
		f.seedDependents(t, "tr-1")
		before := f.dependentReferences(t, "tr-1")

		_, err := f.service.Execute(ctx, adminActor, models.DeleteMember{MemberID: "tr-1", Confirmation: "DELETE TS-040"})
		requireAPIError(t, err, http.StatusConflict, "")
		assert.NotNil(t, f.profile(t, "tr-1"))
		assert.Len(t, f.roles(t, "tr-1"), 2)
		assert.Equal(t, before, f.dependentReferences(t, "tr-1"))

		f.users.On("DeleteUser", mock.Anything, "tr-1").Return(nil).Once()
		result, err := f.service.Execute(ctx, adminActor, models.DeleteMember{MemberID: "tr-1", Confirmation: "DELETE TS-040", Force: true})
		require.NoError(t, err)

		snapshot, ok := result["deleted_profile"].(*models.Profile)
		require.True(t, ok)
		assert.Equal(t, "Member tr-1", snapshot.FullName)
		assert.Nil(t, f.profile(t, "tr-1"))
		assert.Empty(t, f.roles(t, "tr-1"))
		assert.Zero(t, f.dependentReferences(t, "tr-1"))

		logs := f.auditEntries(t, models.AuditMemberPermanentlyDeleted)
		require.Len(t, logs, 1)
		details := logs[0].DetailsMap()
		assert.Equal(t, "TS-040", details["membership_number"])
		assert.Equal(t, true, details["force"])
		assert.Equal(t, []interface{}{"delete_owned:pesapal_transactions.member_id"}, details["skipped_steps"])
	})

	t.Run("missing identity provider user is tolerated", func(t *testing.T) {
		f := newLifecycleFixture(t)
		SeedProfile(t, f.db, EligibleProfile("m-1", "TS-050"), models.RoleMember)
		f.users.On("DeleteUser", mock.Anything, "m-1").Return(idp.ErrUserNotFound).Once()

		_, err := f.service.Execute(ctx, adminActor, models.DeleteMember{MemberID: "m-1", Confirmation: "DELETE TS-050"})
		require.NoError(t, err)
		assert.Nil(t, f.profile(t, "m-1"))
	})

	t.Run("identity provider failure keeps the profile", func(t *testing.T) {
		f := newLifecycleFixture(t)
		SeedProfile(t, f.db, EligibleProfile("m-1", "TS-060"), models.RoleMember)
		f.users.On("DeleteUser", mock.Anything, "m-1").Return(errors.New("status code: 502")).Once()

		_, err := f.service.Execute(ctx, adminActor, models.DeleteMember{MemberID: "m-1", Confirmation: "DELETE TS-060"})
		requireAPIError(t, err, http.StatusInternalServerError, "IDP_DELETE_FAILED")
		assert.NotNil(t, f.profile(t, "m-1"))
		assert.Empty(t, f.auditEntries(t, models.AuditMemberPermanentlyDeleted))

		// Cleanup is idempotent, so the same request can be retried.
		f.users.On("DeleteUser", mock.Anything, "m-1").Return(nil).Once()
		_, err = f.service.Execute(ctx, adminActor, models.DeleteMember{MemberID: "m-1", Confirmation: "DELETE TS-060"})
		require.NoError(t, err)
		assert.Nil(t, f.profile(t, "m-1"))
		f.users.AssertExpectations(t)
	})
}

func TestLifecycleService_ApproveUser(t *testing.T) {
	f := newLifecycleFixture(t)
	p := EligibleProfile("m-1", "TS-070")
	p.Status = models.MemberStatusPending
	SeedProfile(t, f.db, p, models.RoleMember)

	result, err := f.service.Execute(context.Background(), secretaryActor, models.ApproveUser{UserID: "m-1"})
	require.NoError(t, err)
	assert.Equal(t, "m-1", result["user_id"])
	assert.Equal(t, models.MemberStatusActive, result["status"])

	assert.Equal(t, models.MemberStatusActive, f.profile(t, "m-1").Status)
	notes := f.notifications(t, "m-1")
	require.Len(t, notes, 1)
	assert.Equal(t, models.NotificationMembershipApproved, notes[0].Type)
	assert.Len(t, f.auditEntries(t, models.AuditUserApproved), 1)

	_, err = f.service.Execute(context.Background(), secretaryActor, models.ApproveUser{UserID: "missing"})
	requireAPIError(t, err, http.StatusNotFound, "")
}

func TestLifecycleService_ApprovePayment(t *testing.T) {
	f := newLifecycleFixture(t)
	treasurer := models.NewActor("tr-1", "", []models.Role{models.RoleTreasurer})

	result, err := f.service.Execute(context.Background(), treasurer, models.ApprovePayment{PaymentID: "pay-42"})
	require.NoError(t, err)
	assert.Equal(t, "pay-42", result["payment_id"])

	logs := f.auditEntries(t, models.AuditPaymentApproved)
	require.Len(t, logs, 1)
	assert.Equal(t, models.EntityTypePayment, logs[0].EntityType)
	assert.Equal(t, "pay-42", *logs[0].EntityID)
	assert.Equal(t, "treasurer", logs[0].ActorRole)
}

func TestLifecycleService_AssignOfficialRole(t *testing.T) {
	ctx := context.Background()

	t.Run("replaces the previous official role", func(t *testing.T) {
		f := newLifecycleFixture(t)
		SeedProfile(t, f.db, EligibleProfile("m-1", "TS-080"), models.RoleSecretary)

		result, err := f.service.Execute(ctx, chairActor, models.AssignOfficialRole{UserID: "m-1", Role: models.RoleViceChairman})
		require.NoError(t, err)
		assert.Equal(t, models.RoleViceChairman, result["role"])
		assert.ElementsMatch(t, []models.Role{models.RoleMember, models.RoleViceChairman}, f.roles(t, "m-1"))

		var assigned models.UserRole
		require.NoError(t, f.db.Where("user_id = ? AND role = ?", "m-1", models.RoleViceChairman).First(&assigned).Error)
		require.NotNil(t, assigned.AssignedBy)
		assert.Equal(t, "chair-1", *assigned.AssignedBy)

		notes := f.notifications(t, "m-1")
		require.Len(t, notes, 1)
		assert.Equal(t, "You have been assigned the official role of Vice Chairman.", notes[0].Message)
		assert.Equal(t, models.NotificationRoleAssignment, notes[0].Type)

		logs := f.auditEntries(t, models.AuditOfficialRoleAssigned)
		require.Len(t, logs, 1)
		assert.Equal(t, "vice_chairman", logs[0].DetailsMap()["role"])

		_, err = f.service.Execute(ctx, adminActor, models.AssignOfficialRole{UserID: "m-1", Role: models.RoleViceChairman})
		require.NoError(t, err)
		assert.Len(t, f.roles(t, "m-1"), 2, "reassignment leaves exactly one official role")
	})

	t.Run("member is not an official role", func(t *testing.T) {
		f := newLifecycleFixture(t)
		_, err := f.service.Execute(ctx, adminActor, models.AssignOfficialRole{UserID: "m-1", Role: models.RoleMember})
		requireAPIError(t, err, http.StatusBadRequest, "INVALID_ROLE")

		_, err = f.service.Execute(ctx, adminActor, models.AssignOfficialRole{UserID: "m-1", Role: models.Role("king")})
		requireAPIError(t, err, http.StatusBadRequest, "INVALID_ROLE")
	})

	t.Run("only admins grant admin", func(t *testing.T) {
		f := newLifecycleFixture(t)
		SeedProfile(t, f.db, EligibleProfile("m-1", "TS-081"), models.RoleMember)

		_, err := f.service.Execute(ctx, chairActor, models.AssignOfficialRole{UserID: "m-1", Role: models.RoleAdmin})
		requireAPIError(t, err, http.StatusForbidden, "")

		_, err = f.service.Execute(ctx, adminActor, models.AssignOfficialRole{UserID: "m-1", Role: models.RoleAdmin})
		require.NoError(t, err)
	})

	t.Run("eligibility", func(t *testing.T) {
		f := newLifecycleFixture(t)
		unpaid := EligibleProfile("m-2", "TS-082")
		unpaid.RegistrationFeePaid = false
		SeedProfile(t, f.db, unpaid, models.RoleMember)

		_, err := f.service.Execute(ctx, chairActor, models.AssignOfficialRole{UserID: "m-2", Role: models.RoleTreasurer})
		apiErr := requireAPIError(t, err, http.StatusBadRequest, "NOT_ELIGIBLE")
		assert.Equal(t, "registration fee must be paid", apiErr.Details["reason"])
		assert.Equal(t, []models.Role{models.RoleMember}, f.roles(t, "m-2"))

		_, err = f.service.Execute(ctx, chairActor, models.AssignOfficialRole{UserID: "ghost", Role: models.RoleTreasurer})
		requireAPIError(t, err, http.StatusNotFound, "")
	})
}

func TestLifecycleService_MemberLifecycleAlias(t *testing.T) {
	f := newLifecycleFixture(t)
	SeedProfile(t, f.db, EligibleProfile("m-1", "TS-090"), models.RoleMember)

	action, err := models.DecodeAction([]byte(`{"action":"member_lifecycle","mode":"suspend","member_id":"m-1"}`))
	require.NoError(t, err)

	result, err := f.service.Execute(context.Background(), secretaryActor, action)
	require.NoError(t, err)
	assert.Equal(t, models.MemberStatusSuspended, result["status"])
	assert.Equal(t, models.MemberStatusSuspended, f.profile(t, "m-1").Status)
}
