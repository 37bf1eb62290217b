// Package srs computes review timing: grade-driven interval growth with a
// per-item ease factor, and the overdue-first ordering of the due set.
package srs

import (
	"math"
	"sort"
	"time"

	"github.com/example/learncore/pkg/models"
)

// Config holds the interval-transition constants.
type Config struct {
	MaxIntervalDays int     // ceiling for any interval
	DefaultEase     float64 // ease for a first schedule
	MinEase         float64 // ease never drops below this
	HardMultiplier  float64 // interval multiplier for "hard"
	EasyBonus       float64 // extra multiplier on top of ease for "easy"
}

// DefaultConfig returns the default scheduling constants.
func DefaultConfig() Config {
	return Config{
		MaxIntervalDays: 365,
		DefaultEase:     2.5,
		MinEase:         1.3, // Не опускаем ниже 1.3
		HardMultiplier:  1.2,
		EasyBonus:       1.3,
	}
}

// Scheduler computes next-review timing from grades.
type Scheduler struct {
	cfg Config
}

// New creates a scheduler. A zero MaxIntervalDays falls back to defaults.
func New(cfg Config) *Scheduler {
	if cfg.MaxIntervalDays <= 0 {
		cfg = DefaultConfig()
	}
	return &Scheduler{cfg: cfg}
}

// Config returns the scheduler's constants.
func (s *Scheduler) Config() Config { return s.cfg }

// NextInterval computes the interval after one graded review.
// priorInterval <= 0 means a first-ever schedule, which always starts at
// one day regardless of grade.
func (s *Scheduler) NextInterval(grade models.Grade, priorInterval int, ease float64) int {
	if priorInterval <= 0 {
		return 1
	}
	if ease < s.cfg.MinEase {
		ease = s.cfg.MinEase
	}

	var next int
	switch grade {
	case models.GradeAgain:
		// Reset to a day, independent of the prior interval
		next = 1
	case models.GradeHard:
		next = int(math.Round(float64(priorInterval) * s.cfg.HardMultiplier))
		if next < 1 {
			next = 1
		}
	case models.GradeGood:
		next = int(math.Round(float64(priorInterval) * ease))
	case models.GradeEasy:
		next = int(math.Round(float64(priorInterval) * ease * s.cfg.EasyBonus))
	default:
		next = priorInterval
	}

	if next < 1 {
		next = 1
	}
	if next > s.cfg.MaxIntervalDays {
		next = s.cfg.MaxIntervalDays
	}
	return next
}

// NextEase nudges the ease factor after a review, floored at MinEase.
// "good" leaves it alone so the stored ease stays a per-item property
// rather than drifting on every success.
func (s *Scheduler) NextEase(grade models.Grade, ease float64) float64 {
	if ease <= 0 {
		ease = s.cfg.DefaultEase
	}
	switch grade {
	case models.GradeAgain:
		ease -= 0.20
	case models.GradeHard:
		ease -= 0.15
	case models.GradeEasy:
		ease += 0.15
	}
	if ease < s.cfg.MinEase {
		ease = s.cfg.MinEase
	}
	return ease
}

// Schedule computes the full transition for one attempt. prior may be nil
// for a first graded attempt.
func (s *Scheduler) Schedule(prior *models.ReviewSchedule, grade models.Grade, asOf time.Time) (intervalDays int, nextReview time.Time, ease float64) {
	priorInterval := 0
	ease = s.cfg.DefaultEase
	if prior != nil {
		priorInterval = prior.IntervalDays
		ease = prior.EaseFactor
	}
	intervalDays = s.NextInterval(grade, priorInterval, ease)
	ease = s.NextEase(grade, ease)
	nextReview = asOf.AddDate(0, 0, intervalDays)
	return intervalDays, nextReview, ease
}

// DaysOverdue returns whole days elapsed past the review date, negative
// when the item is not yet due.
func DaysOverdue(asOf time.Time, nextReview time.Time) int {
	return int(math.Floor(asOf.Sub(nextReview).Hours() / 24))
}

// SortDue orders due schedules most-overdue first; equal overdue-day
// counts from different base dates are stabilized by earliest due date.
func SortDue(schedules []models.ReviewSchedule, asOf time.Time) {
	sort.SliceStable(schedules, func(i, j int) bool {
		oi := DaysOverdue(asOf, schedules[i].NextReviewDate)
		oj := DaysOverdue(asOf, schedules[j].NextReviewDate)
		if oi != oj {
			return oi > oj
		}
		return schedules[i].NextReviewDate.Before(schedules[j].NextReviewDate)
	})
}
