package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/jackc/pgx/v5/pgconn"
	apperrors "github.com/turuturustars/turuturustars-sub001/pkg/errors"
	"github.com/turuturustars/turuturustars-sub001/pkg/monitoring"
	"github.com/turuturustars/turuturustars-sub001/v1/models"
	"go.opentelemetry.io/otel/attribute"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Cleanup step outcomes
const (
	CleanupOutcomeDeleted = "deleted"
	CleanupOutcomeNulled  = "nulled"
	CleanupOutcomeSkipped = "skipped"
	CleanupOutcomeFailed  = "failed"
)

// Postgres SQLSTATE codes for a missing relation or column
const (
	pgUndefinedTable  = "42P01"
	pgUndefinedColumn = "42703"
)

var sqliteMissingRelation = []string{"no such table", "no such column"}

// IsRelationNotFound reports whether err means the referenced table or column does not exist
func IsRelationNotFound(err error) bool {
	if err == nil {
		return false
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == pgUndefinedTable || pgErr.Code == pgUndefinedColumn
	}
	msg := strings.ToLower(err.Error())
	for _, signature := range sqliteMissingRelation {
		if strings.Contains(msg, signature) {
			return true
		}
	}
	return false
}

// CleanupStepResult is the outcome of one executed step
type CleanupStepResult struct {
	Step         string `json:"step"`
	Outcome      string `json:"outcome"`
	RowsAffected int64  `json:"rows_affected"`
}

// CleanupReport lists the outcome of every executed step in order
type CleanupReport struct {
	Steps []CleanupStepResult `json:"steps"`
}

// Skipped returns the names of optional steps skipped because their relation is missing
func (r *CleanupReport) Skipped() []string {
	var out []string
	for _, s := range r.Steps {
		if s.Outcome == CleanupOutcomeSkipped {
			out = append(out, s.Step)
		}
	}
	return out
}

// CleanupRunner removes or detaches every dependent record of a member.
// Steps run one statement at a time without a surrounding transaction;
// each is idempotent so a partially applied run can be repeated.
type CleanupRunner struct {
	db   *gorm.DB
	plan models.CleanupPlan
}

// NewCleanupRunner validates the plan and creates a runner
func NewCleanupRunner(db *gorm.DB, plan models.CleanupPlan) (*CleanupRunner, error) {
	if err := plan.Validate(); err != nil {
		return nil, err
	}
	own := make(models.CleanupPlan, len(plan))
	copy(own, plan)
	return &CleanupRunner{db: db, plan: own}, nil
}

// Plan returns a copy of the configured plan
func (r *CleanupRunner) Plan() models.CleanupPlan {
	out := make(models.CleanupPlan, len(r.plan))
	copy(out, r.plan)
	return out
}

// Run executes the plan for memberID, stopping at the first non-tolerated failure
func (r *CleanupRunner) Run(ctx context.Context, memberID string) (*CleanupReport, error) {
	ctx, span := monitoring.Tracer().Start(ctx, "cleanup.run")
	defer span.End()
	span.SetAttributes(attribute.String("member.id", memberID), attribute.Int("cleanup.steps", len(r.plan)))

	report := &CleanupReport{}
	for _, step := range r.plan {
		rows, err := r.execute(ctx, step, memberID)
		if err != nil {
			if step.Optional && IsRelationNotFound(err) {
				slog.Info("Skipping cleanup step for missing relation", "step", step.Name(), "memberId", memberID)
				monitoring.RecordCleanupStep(ctx, step.Relation, CleanupOutcomeSkipped)
				report.Steps = append(report.Steps, CleanupStepResult{Step: step.Name(), Outcome: CleanupOutcomeSkipped})
				continue
			}
			slog.Error("Cleanup step failed", "step", step.Name(), "memberId", memberID, "error", err)
			monitoring.RecordCleanupStep(ctx, step.Relation, CleanupOutcomeFailed)
			span.RecordError(err)
			return report, apperrors.CleanupFailedError(step.Name(), err)
		}

		outcome := CleanupOutcomeDeleted
		if step.Op == models.CleanupNullForeignKey {
			outcome = CleanupOutcomeNulled
		}
		monitoring.RecordCleanupStep(ctx, step.Relation, outcome)
		report.Steps = append(report.Steps, CleanupStepResult{Step: step.Name(), Outcome: outcome, RowsAffected: rows})
	}
	return report, nil
}

func (r *CleanupRunner) execute(ctx context.Context, step models.CleanupStep, memberID string) (int64, error) {
	table := clause.Table{Name: step.Relation}
	column := clause.Column{Name: step.Column}

	var result *gorm.DB
	switch step.Op {
	case models.CleanupDeleteOwned:
		result = r.db.WithContext(ctx).Exec("DELETE FROM ? WHERE ? = ?", table, column, memberID)
	case models.CleanupNullForeignKey:
		result = r.db.WithContext(ctx).Exec("UPDATE ? SET ? = NULL WHERE ? = ?", table, column, column, memberID)
	default:
		return 0, fmt.Errorf("unsupported cleanup op %q", step.Op)
	}
	return result.RowsAffected, result.Error
}
