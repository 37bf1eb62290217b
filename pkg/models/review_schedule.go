package models

import "time"

// ReviewSchedule holds the spaced-repetition state for one (user, item)
// pair: the current interval, the per-item ease factor and the date the
// item next becomes due. Created on the first graded attempt.
type ReviewSchedule struct {
	ID             int64     `json:"id" db:"id"`
	UserID         string    `json:"user_id" db:"user_id"`
	ItemID         string    `json:"item_id" db:"item_id"`
	IntervalDays   int       `json:"interval_days" db:"interval_days"` // always >= 1
	EaseFactor     float64   `json:"ease_factor" db:"ease_factor"`     // default 2.5, floor 1.3
	LastGrade      Grade     `json:"last_grade" db:"last_grade"`
	NextReviewDate time.Time `json:"next_review_date" db:"next_review_date"`
	CreatedAt      time.Time `json:"created_at" db:"created_at"`
	UpdatedAt      time.Time `json:"updated_at" db:"updated_at"`
}
