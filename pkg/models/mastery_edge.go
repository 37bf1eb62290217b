package models

import "time"

// Status buckets derived from the mastery probability.
const (
	StatusPassed   = "passed"
	StatusRetry    = "retry"
	StatusScaffold = "scaffold"
)

// MasteryEdge tracks one learner's command of one item as a probability
// in [0,1]. Created on the first attempt, updated on every subsequent one,
// never deleted. AttemptCount doubles as the optimistic-concurrency version:
// an update only lands if the count it read is still current.
type MasteryEdge struct {
	ID           int64     `json:"id" db:"id"`
	UserID       string    `json:"user_id" db:"user_id"`
	ItemID       string    `json:"item_id" db:"item_id"`
	Probability  float64   `json:"probability" db:"probability"`
	AttemptCount int       `json:"attempt_count" db:"attempt_count"`
	UpdatedAt    time.Time `json:"updated_at" db:"updated_at"`
	CreatedAt    time.Time `json:"created_at" db:"created_at"`
}
