package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/example/learncore/pkg/models"
)

// AttemptRepository handles the append-only attempt log. The log doubles
// as the idempotency ledger: the unique key on idempotency_key plus the
// recorded result columns let a replayed submission be answered verbatim.
type AttemptRepository struct{}

// NewAttemptRepository creates a new repository instance
func NewAttemptRepository() *AttemptRepository {
	return &AttemptRepository{}
}

// Insert appends one attempt. A unique-constraint violation (checked with
// IsUniqueViolation) means the idempotency key was already applied.
func (r *AttemptRepository) Insert(ctx context.Context, tx *sqlx.Tx, a *models.Attempt) error {
	query := `
		INSERT INTO attempts (
			user_id, item_id, grade, correctness, confidence, idempotency_key,
			probability, status_bucket, interval_days, next_review_date, created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
	`
	res, err := queryer(tx).ExecContext(ctx, query,
		a.UserID,
		a.ItemID,
		a.Grade,
		a.Correctness,
		a.Confidence,
		a.IdempotencyKey,
		a.Probability,
		a.StatusBucket,
		a.IntervalDays,
		a.NextReviewDate,
		a.CreatedAt,
	)
	if err != nil {
		if IsUniqueViolation(err) {
			return err
		}
		return fmt.Errorf("failed to insert attempt: %v", err)
	}
	if id, err := res.LastInsertId(); err == nil {
		a.ID = id
	}
	return nil
}

// GetByIdempotencyKey returns the attempt previously applied under key,
// or nil when the key is unseen.
func (r *AttemptRepository) GetByIdempotencyKey(ctx context.Context, tx *sqlx.Tx, key string) (*models.Attempt, error) {
	var a models.Attempt
	err := sqlx.GetContext(ctx, queryer(tx), &a,
		"SELECT * FROM attempts WHERE idempotency_key = $1", key)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get attempt by key: %v", err)
	}
	return &a, nil
}

// ListForUserItem returns the attempt history for one (user, item) pair,
// newest first.
func (r *AttemptRepository) ListForUserItem(ctx context.Context, userID, itemID string, limit int) ([]models.Attempt, error) {
	var attempts []models.Attempt
	err := sqlx.SelectContext(ctx, queryer(nil), &attempts, `
		SELECT * FROM attempts
		WHERE user_id = $1 AND item_id = $2
		ORDER BY created_at DESC, id DESC
		LIMIT $3
	`, userID, itemID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list attempts: %v", err)
	}
	return attempts, nil
}
