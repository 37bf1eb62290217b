// Package mastery owns the per-(user, item) mastery probability: a
// bounded exponential moving average toward each attempt's correctness,
// with forgetting simulated at read time instead of by a background job.
package mastery

import (
	"math"
	"time"

	"github.com/example/learncore/pkg/models"
)

// Config holds the update-rule constants. All of them are tunable
// configuration; none are per-item.
type Config struct {
	// BaseRate is the first-attempt learning rate; the effective rate
	// decays as BaseRate / (1 + BaseRate*attempts).
	BaseRate float64
	// MinRate floors the effective rate so evidence never stops mattering.
	MinRate float64
	// InitialProbability is the prior before any attempt.
	InitialProbability float64
	// Baseline is what a fully forgotten probability decays toward.
	Baseline float64
	// HalfLife controls decay-on-read: after one half-life past updated_at,
	// the read value has moved halfway from stored toward Baseline.
	HalfLife time.Duration
	// PassThreshold / RetryThreshold split probabilities into buckets.
	PassThreshold  float64
	RetryThreshold float64
}

// DefaultConfig returns the default update-rule constants.
func DefaultConfig() Config {
	return Config{
		BaseRate:           0.35,
		MinRate:            0.05,
		InitialProbability: 0.0,
		Baseline:           0.30,
		HalfLife:           30 * 24 * time.Hour,
		PassThreshold:      0.80,
		RetryThreshold:     0.50,
	}
}

// Tracker applies the bounded, idempotent mastery update rule.
type Tracker struct {
	cfg Config
}

// New creates a tracker. A zero HalfLife falls back to defaults.
func New(cfg Config) *Tracker {
	if cfg.HalfLife <= 0 {
		cfg = DefaultConfig()
	}
	return &Tracker{cfg: cfg}
}

// Config returns the tracker's constants.
func (t *Tracker) Config() Config { return t.cfg }

// Apply folds one attempt's correctness into the edge and returns the new
// probability. The prior is first decayed to the moment of the attempt,
// so a long gap is corrected exactly once, at the next real write.
// nil prior means a first attempt.
func (t *Tracker) Apply(prior *models.MasteryEdge, correctness float64, asOf time.Time) float64 {
	p := t.DecayedProbability(prior, asOf)

	attempts := 0
	if prior != nil {
		attempts = prior.AttemptCount
	}
	rate := t.cfg.BaseRate / (1 + t.cfg.BaseRate*float64(attempts))
	if rate < t.cfg.MinRate {
		rate = t.cfg.MinRate
	}

	return clamp01(p + rate*(clamp01(correctness)-p))
}

// DecayedProbability is the read-path value: the stored probability pulled
// toward Baseline by elapsed time, without mutating stored state.
func (t *Tracker) DecayedProbability(edge *models.MasteryEdge, asOf time.Time) float64 {
	if edge == nil {
		return t.cfg.InitialProbability
	}
	elapsed := asOf.Sub(edge.UpdatedAt)
	if elapsed <= t.cfg.HalfLife {
		return clamp01(edge.Probability)
	}
	halves := float64(elapsed) / float64(t.cfg.HalfLife)
	decayed := t.cfg.Baseline + (clamp01(edge.Probability)-t.cfg.Baseline)*math.Pow(0.5, halves)
	return clamp01(decayed)
}

// Bucket maps a probability to its status bucket.
func (t *Tracker) Bucket(p float64) string {
	switch {
	case p >= t.cfg.PassThreshold:
		return models.StatusPassed
	case p >= t.cfg.RetryThreshold:
		return models.StatusRetry
	default:
		return models.StatusScaffold
	}
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
