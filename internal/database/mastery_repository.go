package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/example/learncore/pkg/models"
)

// MasteryRepository handles database operations for mastery edges
type MasteryRepository struct{}

// NewMasteryRepository creates a new repository instance
func NewMasteryRepository() *MasteryRepository {
	return &MasteryRepository{}
}

// Get returns the mastery edge for a (user, item) pair, nil when the user
// has never attempted the item.
func (r *MasteryRepository) Get(ctx context.Context, tx *sqlx.Tx, userID, itemID string) (*models.MasteryEdge, error) {
	var edge models.MasteryEdge
	err := sqlx.GetContext(ctx, queryer(tx), &edge,
		"SELECT * FROM mastery_edges WHERE user_id = $1 AND item_id = $2", userID, itemID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get mastery edge: %v", err)
	}
	return &edge, nil
}

// Insert creates the first mastery edge for a pair. A unique violation
// means another writer created it concurrently; the caller retries.
func (r *MasteryRepository) Insert(ctx context.Context, tx *sqlx.Tx, edge *models.MasteryEdge) error {
	query := `
		INSERT INTO mastery_edges (user_id, item_id, probability, attempt_count, updated_at, created_at)
		VALUES ($1, $2, $3, $4, $5, $5)
	`
	_, err := queryer(tx).ExecContext(ctx, query,
		edge.UserID, edge.ItemID, edge.Probability, edge.AttemptCount, edge.UpdatedAt)
	if err != nil {
		if IsUniqueViolation(err) {
			return err
		}
		return fmt.Errorf("failed to insert mastery edge: %v", err)
	}
	return nil
}

// UpdateGuarded applies a read-modify-write result only if attempt_count
// is still the value the caller read. Returns false when another update
// won the race and the caller must re-read and re-apply.
func (r *MasteryRepository) UpdateGuarded(ctx context.Context, tx *sqlx.Tx, edge *models.MasteryEdge, priorAttemptCount int) (bool, error) {
	query := `
		UPDATE mastery_edges SET
			probability = $1,
			attempt_count = $2,
			updated_at = $3
		WHERE user_id = $4 AND item_id = $5 AND attempt_count = $6
	`
	res, err := queryer(tx).ExecContext(ctx, query,
		edge.Probability, edge.AttemptCount, edge.UpdatedAt,
		edge.UserID, edge.ItemID, priorAttemptCount)
	if err != nil {
		return false, fmt.Errorf("failed to update mastery edge: %v", err)
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to get rows affected: %v", err)
	}
	return rows > 0, nil
}

// EdgesForUser returns all mastery edges of a user keyed by item id.
func (r *MasteryRepository) EdgesForUser(ctx context.Context, userID string) (map[string]models.MasteryEdge, error) {
	var edges []models.MasteryEdge
	err := sqlx.SelectContext(ctx, queryer(nil), &edges,
		"SELECT * FROM mastery_edges WHERE user_id = $1", userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list mastery edges: %v", err)
	}
	out := make(map[string]models.MasteryEdge, len(edges))
	for _, e := range edges {
		out[e.ItemID] = e
	}
	return out, nil
}

// CountForUser returns how many items the user has ever attempted.
// Zero triggers the recommender's cold-start path.
func (r *MasteryRepository) CountForUser(ctx context.Context, userID string) (int, error) {
	var count int
	err := sqlx.GetContext(ctx, queryer(nil), &count,
		"SELECT COUNT(*) FROM mastery_edges WHERE user_id = $1", userID)
	if err != nil {
		return 0, fmt.Errorf("failed to count mastery edges: %v", err)
	}
	return count, nil
}
