// Package engine is the external surface of the learning-progress core:
// submitAttempt, recommendNext and resolveMentions. It owns transaction
// scope and the idempotency guarantee across the mastery and schedule
// updates.
package engine

import (
	"context"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/example/learncore/internal/apperr"
	"github.com/example/learncore/internal/cache"
	"github.com/example/learncore/internal/database"
	"github.com/example/learncore/internal/logger"
	"github.com/example/learncore/internal/mastery"
	"github.com/example/learncore/internal/recommend"
	"github.com/example/learncore/internal/resolver"
	"github.com/example/learncore/internal/srs"
	"github.com/example/learncore/pkg/models"
)

// ItemSource is the slice of the graph store the service reads directly:
// reference checks on submit, plus item metadata for the detail view.
type ItemSource interface {
	ItemExists(ctx context.Context, id string) (bool, error)
	GetItem(ctx context.Context, id string) (*models.Item, error)
	SimilarItems(ctx context.Context, id string, limit int) ([]models.Item, error)
}

// Config bounds the service's retries and timeouts.
type Config struct {
	MaxTxRetries int           // optimistic-conflict retries per submit
	OpTimeout    time.Duration // per-call store budget
	DefaultK     int
	MaxK         int
}

// DefaultConfig returns the default service bounds.
func DefaultConfig() Config {
	return Config{
		MaxTxRetries: 3,
		OpTimeout:    5 * time.Second,
		DefaultK:     5,
		MaxK:         50,
	}
}

// Service wires the four components behind the three external operations.
type Service struct {
	attempts  *database.AttemptRepository
	masteries *database.MasteryRepository
	schedules *database.ScheduleRepository
	items     ItemSource

	tracker     *mastery.Tracker
	scheduler   *srs.Scheduler
	recommender *recommend.Engine
	resolver    *resolver.Resolver
	cache       *cache.RecommendCache

	cfg Config
	log *logger.Logger
}

// New assembles the service.
func New(
	attempts *database.AttemptRepository,
	masteries *database.MasteryRepository,
	schedules *database.ScheduleRepository,
	items ItemSource,
	tracker *mastery.Tracker,
	scheduler *srs.Scheduler,
	recommender *recommend.Engine,
	res *resolver.Resolver,
	recCache *cache.RecommendCache,
	cfg Config,
	log *logger.Logger,
) *Service {
	if cfg.MaxTxRetries <= 0 {
		cfg = DefaultConfig()
	}
	return &Service{
		attempts:    attempts,
		masteries:   masteries,
		schedules:   schedules,
		items:       items,
		tracker:     tracker,
		scheduler:   scheduler,
		recommender: recommender,
		resolver:    res,
		cache:       recCache,
		cfg:         cfg,
		log:         log.With("component", "engine"),
	}
}

// SubmitAttemptRequest is one validated attempt submission.
type SubmitAttemptRequest struct {
	UserID         string  `json:"user_id"`
	ItemID         string  `json:"item_id"`
	Grade          string  `json:"grade"`
	Correctness    float64 `json:"correctness"`
	Confidence     float64 `json:"confidence"`
	IdempotencyKey string  `json:"idempotency_key"`
}

// SubmitAttemptResult is what the learner-facing caller needs back.
type SubmitAttemptResult struct {
	Probability      float64   `json:"probability"`
	StatusBucket     string    `json:"status_bucket"`
	NextIntervalDays int       `json:"next_interval_days"`
	NextReviewDate   time.Time `json:"next_review_date"`
}

func (s *Service) validateSubmit(req SubmitAttemptRequest) error {
	if req.UserID == "" {
		return apperr.New(apperr.Validation, "user id is empty")
	}
	if req.ItemID == "" {
		return apperr.New(apperr.Validation, "item id is empty")
	}
	if req.IdempotencyKey == "" {
		return apperr.New(apperr.Validation, "idempotency key is empty")
	}
	if !models.Grade(req.Grade).Valid() {
		return apperr.Newf(apperr.Validation, "unknown grade %q", req.Grade)
	}
	if req.Correctness < 0 || req.Correctness > 1 {
		return apperr.Newf(apperr.Validation, "correctness %v out of [0,1]", req.Correctness)
	}
	if req.Confidence < 0 || req.Confidence > 1 {
		return apperr.Newf(apperr.Validation, "confidence %v out of [0,1]", req.Confidence)
	}
	return nil
}

// SubmitAttempt applies one graded attempt to mastery and schedule in a
// single transaction. Re-submitting the same idempotency key returns the
// originally computed result with no further state change. Lost optimistic
// races are retried whole, bounded by MaxTxRetries.
func (s *Service) SubmitAttempt(ctx context.Context, req SubmitAttemptRequest) (*SubmitAttemptResult, error) {
	if err := s.validateSubmit(req); err != nil {
		return nil, err
	}
	ctx, cancel := context.WithTimeout(ctx, s.cfg.OpTimeout)
	defer cancel()

	exists, err := s.items.ItemExists(ctx, req.ItemID)
	if err != nil {
		return nil, err
	}
	if !exists {
		return nil, apperr.Newf(apperr.NotFound, "item %s not found", req.ItemID)
	}

	for try := 0; try < s.cfg.MaxTxRetries; try++ {
		result, retry, err := s.submitOnce(ctx, req)
		if err != nil {
			return nil, err
		}
		if !retry {
			s.cache.Invalidate(ctx, req.UserID)
			return result, nil
		}
		s.log.Debug("optimistic conflict, retrying", "user_id", req.UserID, "item_id", req.ItemID, "try", try+1)
	}
	return nil, apperr.Newf(apperr.ConcurrencyConflict,
		"submit attempt for user %s item %s: retries exhausted", req.UserID, req.ItemID)
}

// submitOnce runs one transactional application. retry=true means an
// optimistic conflict was detected and the whole thing should rerun.
func (s *Service) submitOnce(ctx context.Context, req SubmitAttemptRequest) (result *SubmitAttemptResult, retry bool, err error) {
	tx, err := database.DB.BeginTxx(ctx, nil)
	if err != nil {
		return nil, false, apperr.Wrap(apperr.StorageUnavailable, "begin transaction", err)
	}
	defer func() {
		if tx != nil {
			_ = tx.Rollback()
		}
	}()

	// Replay check: the attempt log is the idempotency ledger
	if prior, err := s.attempts.GetByIdempotencyKey(ctx, tx, req.IdempotencyKey); err != nil {
		return nil, false, apperr.Wrap(apperr.StorageUnavailable, "idempotency lookup", err)
	} else if prior != nil {
		return resultFromAttempt(prior), false, nil
	}

	now := time.Now().UTC()

	edge, err := s.masteries.Get(ctx, tx, req.UserID, req.ItemID)
	if err != nil {
		return nil, false, apperr.Wrap(apperr.StorageUnavailable, "mastery read", err)
	}
	schedule, err := s.schedules.Get(ctx, tx, req.UserID, req.ItemID)
	if err != nil {
		return nil, false, apperr.Wrap(apperr.StorageUnavailable, "schedule read", err)
	}

	probability := s.tracker.Apply(edge, req.Correctness, now)
	bucket := s.tracker.Bucket(probability)
	intervalDays, nextReview, ease := s.scheduler.Schedule(schedule, models.Grade(req.Grade), now)

	attempt := &models.Attempt{
		UserID:         req.UserID,
		ItemID:         req.ItemID,
		Grade:          models.Grade(req.Grade),
		Correctness:    req.Correctness,
		Confidence:     req.Confidence,
		IdempotencyKey: req.IdempotencyKey,
		Probability:    probability,
		StatusBucket:   bucket,
		IntervalDays:   intervalDays,
		NextReviewDate: nextReview,
		CreatedAt:      now,
	}
	if err := s.attempts.Insert(ctx, tx, attempt); err != nil {
		if database.IsUniqueViolation(err) {
			// A concurrent duplicate submission committed first; answer
			// from its recorded result
			_ = tx.Rollback()
			tx = nil
			winner, err := s.attempts.GetByIdempotencyKey(ctx, nil, req.IdempotencyKey)
			if err != nil || winner == nil {
				return nil, false, apperr.Wrap(apperr.StorageUnavailable, "replay lookup", err)
			}
			return resultFromAttempt(winner), false, nil
		}
		return nil, false, apperr.Wrap(apperr.StorageUnavailable, "attempt insert", err)
	}

	if retry, err := s.writeMastery(ctx, tx, edge, req, probability, now); err != nil || retry {
		return nil, retry, err
	}
	if retry, err := s.writeSchedule(ctx, tx, schedule, req, intervalDays, ease, nextReview, now); err != nil || retry {
		return nil, retry, err
	}

	if err := tx.Commit(); err != nil {
		tx = nil
		return nil, false, apperr.Wrap(apperr.StorageUnavailable, "commit", err)
	}
	tx = nil
	return resultFromAttempt(attempt), false, nil
}

func (s *Service) writeMastery(ctx context.Context, tx *sqlx.Tx, prior *models.MasteryEdge, req SubmitAttemptRequest, probability float64, now time.Time) (retry bool, err error) {
	if prior == nil {
		edge := &models.MasteryEdge{
			UserID:       req.UserID,
			ItemID:       req.ItemID,
			Probability:  probability,
			AttemptCount: 1,
			UpdatedAt:    now,
		}
		if err := s.masteries.Insert(ctx, tx, edge); err != nil {
			if database.IsUniqueViolation(err) {
				return true, nil
			}
			return false, apperr.Wrap(apperr.StorageUnavailable, "mastery insert", err)
		}
		return false, nil
	}

	updated := &models.MasteryEdge{
		UserID:       req.UserID,
		ItemID:       req.ItemID,
		Probability:  probability,
		AttemptCount: prior.AttemptCount + 1,
		UpdatedAt:    now,
	}
	ok, err := s.masteries.UpdateGuarded(ctx, tx, updated, prior.AttemptCount)
	if err != nil {
		return false, apperr.Wrap(apperr.StorageUnavailable, "mastery update", err)
	}
	return !ok, nil
}

func (s *Service) writeSchedule(ctx context.Context, tx *sqlx.Tx, prior *models.ReviewSchedule, req SubmitAttemptRequest, intervalDays int, ease float64, nextReview, now time.Time) (retry bool, err error) {
	if prior == nil {
		sched := &models.ReviewSchedule{
			UserID:         req.UserID,
			ItemID:         req.ItemID,
			IntervalDays:   intervalDays,
			EaseFactor:     ease,
			LastGrade:      models.Grade(req.Grade),
			NextReviewDate: nextReview,
			UpdatedAt:      now,
		}
		if err := s.schedules.Insert(ctx, tx, sched); err != nil {
			if database.IsUniqueViolation(err) {
				return true, nil
			}
			return false, apperr.Wrap(apperr.StorageUnavailable, "schedule insert", err)
		}
		return false, nil
	}

	prior.IntervalDays = intervalDays
	prior.EaseFactor = ease
	prior.LastGrade = models.Grade(req.Grade)
	prior.NextReviewDate = nextReview
	prior.UpdatedAt = now
	if err := s.schedules.Update(ctx, tx, prior); err != nil {
		return false, apperr.Wrap(apperr.StorageUnavailable, "schedule update", err)
	}
	return false, nil
}

func resultFromAttempt(a *models.Attempt) *SubmitAttemptResult {
	return &SubmitAttemptResult{
		Probability:      a.Probability,
		StatusBucket:     a.StatusBucket,
		NextIntervalDays: a.IntervalDays,
		NextReviewDate:   a.NextReviewDate,
	}
}

// RecommendNext returns up to k ranked study candidates, read through the
// optional cache.
func (s *Service) RecommendNext(ctx context.Context, userID string, k int, levelHint string) ([]models.Recommendation, error) {
	if userID == "" {
		return nil, apperr.New(apperr.Validation, "user id is empty")
	}
	if k <= 0 {
		k = s.cfg.DefaultK
	}
	if k > s.cfg.MaxK {
		k = s.cfg.MaxK
	}
	ctx, cancel := context.WithTimeout(ctx, s.cfg.OpTimeout)
	defer cancel()

	if recs, ok := s.cache.Get(ctx, userID, k, levelHint); ok {
		return recs, nil
	}
	recs, err := s.recommender.Recommend(ctx, userID, k, levelHint)
	if err != nil {
		return nil, err
	}
	s.cache.Set(ctx, userID, k, levelHint, recs)
	return recs, nil
}

// ResolveMentions links a compiled lesson's mentions to graph nodes.
func (s *Service) ResolveMentions(ctx context.Context, mentions []models.Mention) ([]models.Resolution, error) {
	ctx, cancel := context.WithTimeout(ctx, s.cfg.OpTimeout)
	defer cancel()
	return s.resolver.ResolveBatch(ctx, mentions)
}

// Bounds for the item detail view.
const (
	historyLimit = 20
	similarLimit = 10
)

// ProgressSummary is a learner's headline numbers.
type ProgressSummary struct {
	ItemsAttempted int `json:"items_attempted"`
	DueReviews     int `json:"due_reviews"`
}

// Progress reports how many items the user has ever attempted and how
// many are currently due.
func (s *Service) Progress(ctx context.Context, userID string) (*ProgressSummary, error) {
	if userID == "" {
		return nil, apperr.New(apperr.Validation, "user id is empty")
	}
	ctx, cancel := context.WithTimeout(ctx, s.cfg.OpTimeout)
	defer cancel()

	attempted, err := s.masteries.CountForUser(ctx, userID)
	if err != nil {
		return nil, apperr.Wrap(apperr.StorageUnavailable, "progress: mastery count", err)
	}
	due, err := s.schedules.CountDueForUser(ctx, userID, time.Now().UTC())
	if err != nil {
		return nil, apperr.Wrap(apperr.StorageUnavailable, "progress: due count", err)
	}
	return &ProgressSummary{ItemsAttempted: attempted, DueReviews: due}, nil
}

// ItemDetail bundles an item with the caller's attempt history and the
// items linked to it by similarity.
type ItemDetail struct {
	Item     models.Item      `json:"item"`
	Attempts []models.Attempt `json:"attempts"`
	Similar  []models.Item    `json:"similar"`
}

// ItemHistory returns the detail view for one item: the item itself, the
// user's recent attempts on it (newest first) and its similar items.
func (s *Service) ItemHistory(ctx context.Context, userID, itemID string) (*ItemDetail, error) {
	if userID == "" {
		return nil, apperr.New(apperr.Validation, "user id is empty")
	}
	if itemID == "" {
		return nil, apperr.New(apperr.Validation, "item id is empty")
	}
	ctx, cancel := context.WithTimeout(ctx, s.cfg.OpTimeout)
	defer cancel()

	item, err := s.items.GetItem(ctx, itemID)
	if err != nil {
		return nil, err
	}
	attempts, err := s.attempts.ListForUserItem(ctx, userID, itemID, historyLimit)
	if err != nil {
		return nil, apperr.Wrap(apperr.StorageUnavailable, "item history: attempts", err)
	}
	similar, err := s.items.SimilarItems(ctx, itemID, similarLimit)
	if err != nil {
		return nil, err
	}
	return &ItemDetail{Item: *item, Attempts: attempts, Similar: similar}, nil
}
