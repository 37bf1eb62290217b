package models

import "time"

// Grade is the learner's self-graded recall quality for one attempt.
type Grade string

const (
	GradeAgain Grade = "again"
	GradeHard  Grade = "hard"
	GradeGood  Grade = "good"
	GradeEasy  Grade = "easy"
)

// Valid reports whether g is one of the four known grades.
func (g Grade) Valid() bool {
	switch g {
	case GradeAgain, GradeHard, GradeGood, GradeEasy:
		return true
	}
	return false
}

// Attempt is one graded answer from a learner. The log is append-only:
// rows are never updated or deleted, and the unique idempotency key makes
// re-submission of the same attempt a no-op.
//
// The result columns capture what the engine computed when the attempt was
// first applied, so a replayed submission returns the exact same answer.
type Attempt struct {
	ID             int64     `json:"id" db:"id"`
	UserID         string    `json:"user_id" db:"user_id"`
	ItemID         string    `json:"item_id" db:"item_id"`
	Grade          Grade     `json:"grade" db:"grade"`
	Correctness    float64   `json:"correctness" db:"correctness"` // 0.0 - 1.0
	Confidence     float64   `json:"confidence" db:"confidence"`   // 0.0 - 1.0, self-reported
	IdempotencyKey string    `json:"idempotency_key" db:"idempotency_key"`
	Probability    float64   `json:"probability" db:"probability"`
	StatusBucket   string    `json:"status_bucket" db:"status_bucket"`
	IntervalDays   int       `json:"interval_days" db:"interval_days"`
	NextReviewDate time.Time `json:"next_review_date" db:"next_review_date"`
	CreatedAt      time.Time `json:"created_at" db:"created_at"`
}
