package services

import (
	"context"
	"testing"

	"github.com/stretchr/testify/mock"
	"github.com/turuturustars/turuturustars-sub001/idp"
	"github.com/turuturustars/turuturustars-sub001/v1/models"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// dependentTables mirrors the relations owned by other subsystems that reference a member.
// pesapal_transactions is left out so optional steps are exercised against a missing table.
var dependentTables = []string{
	`CREATE TABLE contributions (id TEXT PRIMARY KEY, member_id TEXT, recorded_by TEXT, amount REAL)`,
	`CREATE TABLE mpesa_transactions (id TEXT PRIMARY KEY, member_id TEXT, amount REAL)`,
	`CREATE TABLE welfare_transactions (id TEXT PRIMARY KEY, member_id TEXT, amount REAL)`,
	`CREATE TABLE welfare_cases (id TEXT PRIMARY KEY, title TEXT, created_by TEXT)`,
	`CREATE TABLE discipline_records (id TEXT PRIMARY KEY, member_id TEXT, recorded_by TEXT, description TEXT)`,
	`CREATE TABLE meetings (id TEXT PRIMARY KEY, title TEXT, created_by TEXT)`,
	`CREATE TABLE meeting_attendance (id TEXT PRIMARY KEY, meeting_id TEXT, member_id TEXT)`,
	`CREATE TABLE votes (id TEXT PRIMARY KEY, motion TEXT, member_id TEXT)`,
	`CREATE TABLE messages (id TEXT PRIMARY KEY, sender_id TEXT, recipient_id TEXT, body TEXT)`,
	`CREATE TABLE notification_preferences (id TEXT PRIMARY KEY, user_id TEXT, channel TEXT)`,
	`CREATE TABLE announcements (id TEXT PRIMARY KEY, title TEXT, created_by TEXT)`,
}

// SetupSQLiteTestDB creates an in-memory SQLite database with the lifecycle schema
// and the dependent relations used by the cleanup plan.
//
// The pool is capped at one connection so every query sees the same in-memory database.
//
// Exported for use in handler tests
func SetupSQLiteTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		DisableForeignKeyConstraintWhenMigrating: true,
		Logger:                                   logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("failed to open sqlite test database: %v", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("failed to get sqlite handle: %v", err)
	}
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	if err := db.AutoMigrate(
		&models.Profile{},
		&models.UserRole{},
		&models.AuditLog{},
		&models.Notification{},
	); err != nil {
		t.Fatalf("failed to migrate sqlite test database: %v", err)
	}

	for _, ddl := range dependentTables {
		if err := db.Exec(ddl).Error; err != nil {
			t.Fatalf("failed to create dependent table: %v", err)
		}
	}

	return db
}

// SeedProfile inserts a profile and its role assignments
//
// Exported for use in handler tests
func SeedProfile(t *testing.T, db *gorm.DB, profile models.Profile, roles ...models.Role) *models.Profile {
	t.Helper()
	if err := db.Create(&profile).Error; err != nil {
		t.Fatalf("failed to seed profile %s: %v", profile.ID, err)
	}
	for _, role := range roles {
		if err := db.Create(&models.UserRole{UserID: profile.ID, Role: role}).Error; err != nil {
			t.Fatalf("failed to seed role %s for %s: %v", role, profile.ID, err)
		}
	}
	return &profile
}

// EligibleProfile returns an active, fully registered profile
func EligibleProfile(id, membershipNumber string) models.Profile {
	number := membershipNumber
	email := id + "@example.org"
	idNumber := "ID-" + id
	location := "Turuturu"
	return models.Profile{
		ID:                  id,
		MembershipNumber:    &number,
		FullName:            "Member " + id,
		Phone:               "+2547" + id,
		Email:               &email,
		IDNumber:            &idNumber,
		Location:            &location,
		Status:              models.MemberStatusActive,
		RegistrationFeePaid: true,
	}
}

// MockUserManager is a mock implementation of idp.UserManager
type MockUserManager struct {
	mock.Mock
}

func (m *MockUserManager) GetUser(ctx context.Context, userID string) (*idp.UserInfo, error) {
	args := m.Called(ctx, userID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*idp.UserInfo), args.Error(1)
}

func (m *MockUserManager) DeleteUser(ctx context.Context, userID string) error {
	args := m.Called(ctx, userID)
	return args.Error(0)
}

// NewTestLifecycleService wires a lifecycle service over db with the default cleanup plan
//
// Exported for use in handler tests
func NewTestLifecycleService(t *testing.T, db *gorm.DB, users idp.UserManager) *LifecycleService {
	t.Helper()
	runner, err := NewCleanupRunner(db, models.DefaultCleanupPlan())
	if err != nil {
		t.Fatalf("failed to build cleanup runner: %v", err)
	}
	return NewLifecycleService(db, NewAuditService(db), NewNotificationService(db, nil), runner, users, nil)
}
