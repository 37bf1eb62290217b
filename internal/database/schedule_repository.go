package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/example/learncore/pkg/models"
)

// ScheduleRepository handles database operations for review schedules
type ScheduleRepository struct{}

// NewScheduleRepository creates a new repository instance
func NewScheduleRepository() *ScheduleRepository {
	return &ScheduleRepository{}
}

// Get returns the schedule for a (user, item) pair, nil when the item has
// never been scheduled.
func (r *ScheduleRepository) Get(ctx context.Context, tx *sqlx.Tx, userID, itemID string) (*models.ReviewSchedule, error) {
	var s models.ReviewSchedule
	err := sqlx.GetContext(ctx, queryer(tx), &s,
		"SELECT * FROM review_schedules WHERE user_id = $1 AND item_id = $2", userID, itemID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get review schedule: %v", err)
	}
	return &s, nil
}

// Insert creates the first schedule for a pair.
func (r *ScheduleRepository) Insert(ctx context.Context, tx *sqlx.Tx, s *models.ReviewSchedule) error {
	query := `
		INSERT INTO review_schedules (
			user_id, item_id, interval_days, ease_factor, last_grade,
			next_review_date, created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $7)
	`
	_, err := queryer(tx).ExecContext(ctx, query,
		s.UserID, s.ItemID, s.IntervalDays, s.EaseFactor, s.LastGrade,
		s.NextReviewDate, s.UpdatedAt)
	if err != nil {
		if IsUniqueViolation(err) {
			return err
		}
		return fmt.Errorf("failed to insert review schedule: %v", err)
	}
	return nil
}

// Update rewrites the schedule for a pair. Runs inside the same
// transaction as the guarded mastery update, which carries the
// optimistic-concurrency check for both.
func (r *ScheduleRepository) Update(ctx context.Context, tx *sqlx.Tx, s *models.ReviewSchedule) error {
	query := `
		UPDATE review_schedules SET
			interval_days = $1,
			ease_factor = $2,
			last_grade = $3,
			next_review_date = $4,
			updated_at = $5
		WHERE user_id = $6 AND item_id = $7
	`
	res, err := queryer(tx).ExecContext(ctx, query,
		s.IntervalDays, s.EaseFactor, s.LastGrade, s.NextReviewDate, s.UpdatedAt,
		s.UserID, s.ItemID)
	if err != nil {
		return fmt.Errorf("failed to update review schedule: %v", err)
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %v", err)
	}
	if rows == 0 {
		return fmt.Errorf("review schedule not found for user %s item %s", s.UserID, s.ItemID)
	}
	return nil
}

// DueForUser returns schedules with next_review_date <= asOf, earliest
// first. Final overdue-ness ordering is applied by the srs package.
func (r *ScheduleRepository) DueForUser(ctx context.Context, userID string, asOf time.Time, limit int) ([]models.ReviewSchedule, error) {
	var schedules []models.ReviewSchedule
	err := sqlx.SelectContext(ctx, queryer(nil), &schedules, `
		SELECT * FROM review_schedules
		WHERE user_id = $1 AND next_review_date <= $2
		ORDER BY next_review_date ASC
		LIMIT $3
	`, userID, asOf, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to get due schedules: %v", err)
	}
	return schedules, nil
}

// CountDueForUser returns how many items are due, used by the reminder digest.
func (r *ScheduleRepository) CountDueForUser(ctx context.Context, userID string, asOf time.Time) (int, error) {
	var count int
	err := sqlx.GetContext(ctx, queryer(nil), &count, `
		SELECT COUNT(*) FROM review_schedules
		WHERE user_id = $1 AND next_review_date <= $2
	`, userID, asOf)
	if err != nil {
		return 0, fmt.Errorf("failed to count due schedules: %v", err)
	}
	return count, nil
}
