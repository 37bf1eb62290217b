// Package recommend merges due reviews, newly eligible items and the
// curriculum fallback into one ranked study list. It is a stateless
// read-combiner: every call works from fresh store reads, and a slightly
// stale mastery read is acceptable by policy.
package recommend

import (
	"context"
	"math"
	"time"

	"github.com/example/learncore/internal/apperr"
	"github.com/example/learncore/internal/logger"
	"github.com/example/learncore/internal/mastery"
	"github.com/example/learncore/internal/srs"
	"github.com/example/learncore/pkg/models"
)

// Catalog is the slice of the graph store the recommender reads.
type Catalog interface {
	ListItemsByCurriculum(ctx context.Context, level string, limit int) ([]models.Item, error)
	PrerequisiteMap(ctx context.Context, ids []string) (map[string][]string, error)
	ItemsByID(ctx context.Context, ids []string) (map[string]models.Item, error)
}

// MasterySource reads a user's mastery edges.
type MasterySource interface {
	EdgesForUser(ctx context.Context, userID string) (map[string]models.MasteryEdge, error)
}

// ScheduleSource reads a user's due reviews.
type ScheduleSource interface {
	DueForUser(ctx context.Context, userID string, asOf time.Time, limit int) ([]models.ReviewSchedule, error)
}

// Config bounds and tunes the ranking.
type Config struct {
	EligibilityThreshold float64 // decayed mastery a prerequisite must reach
	DiversityFraction    float64 // max fraction of k from one domain in a row
	CandidateLimit       int     // curriculum fetch bound
	MaxPrereqDepth       int     // ancestor-walk bound for cycle defense
}

// DefaultConfig returns the default ranking constants.
func DefaultConfig() Config {
	return Config{
		EligibilityThreshold: 0.60,
		DiversityFraction:    0.40,
		CandidateLimit:       500,
		MaxPrereqDepth:       25,
	}
}

// Engine answers "what should this learner study next".
type Engine struct {
	catalog   Catalog
	masteries MasterySource
	schedules ScheduleSource
	tracker   *mastery.Tracker
	cfg       Config
	log       *logger.Logger
}

// New creates an engine over the three read sources.
func New(catalog Catalog, masteries MasterySource, schedules ScheduleSource, tracker *mastery.Tracker, cfg Config, log *logger.Logger) *Engine {
	if cfg.CandidateLimit <= 0 {
		cfg = DefaultConfig()
	}
	return &Engine{
		catalog:   catalog,
		masteries: masteries,
		schedules: schedules,
		tracker:   tracker,
		cfg:       cfg,
		log:       log.With("component", "recommend"),
	}
}

// Recommend returns up to k ranked candidates for the user.
func (e *Engine) Recommend(ctx context.Context, userID string, k int, levelHint string) ([]models.Recommendation, error) {
	return e.recommendAt(ctx, userID, k, levelHint, time.Now().UTC())
}

func (e *Engine) recommendAt(ctx context.Context, userID string, k int, levelHint string, asOf time.Time) ([]models.Recommendation, error) {
	if userID == "" {
		return nil, apperr.New(apperr.Validation, "user id is empty")
	}
	if k <= 0 {
		return nil, apperr.Newf(apperr.Validation, "k must be positive, got %d", k)
	}

	edges, err := e.masteries.EdgesForUser(ctx, userID)
	if err != nil {
		return nil, apperr.Wrap(apperr.StorageUnavailable, "recommend: mastery read", err)
	}

	// Cold start: no history at all, curriculum fallback unconditionally
	if len(edges) == 0 {
		recs, err := e.fallback(ctx, levelHint, k, make(map[string]bool), edges)
		if err != nil {
			return nil, err
		}
		return e.applyDiversity(ctx, recs, k)
	}

	var ranked []models.Recommendation
	seen := make(map[string]bool)

	// Pool 1: due reviews, most overdue first
	due, err := e.schedules.DueForUser(ctx, userID, asOf, k*3)
	if err != nil {
		return nil, apperr.Wrap(apperr.StorageUnavailable, "recommend: due read", err)
	}
	srs.SortDue(due, asOf)
	for _, d := range due {
		if !seen[d.ItemID] {
			seen[d.ItemID] = true
			ranked = append(ranked, models.Recommendation{ItemID: d.ItemID, Reason: models.ReasonOverdue})
		}
	}

	// Pool 2: unattempted items whose prerequisites are all mastered
	if len(ranked) < k {
		eligible, err := e.eligibleNewItems(ctx, edges, asOf, seen)
		if err != nil {
			return nil, err
		}
		ranked = append(ranked, eligible...)
	}

	// Pool 3: curriculum fallback fills whatever is left
	if len(ranked) < k {
		fill, err := e.fallback(ctx, levelHint, k-len(ranked), seen, edges)
		if err != nil {
			return nil, err
		}
		ranked = append(ranked, fill...)
	}

	// Diversity is applied over the whole merged pool, not the top k: a
	// demoted same-domain run can pull an alternative from beyond the cut
	out, err := e.applyDiversity(ctx, ranked, k)
	if err != nil {
		return nil, err
	}
	if len(out) > k {
		out = out[:k]
	}
	return out, nil
}

// eligibleNewItems walks the curriculum in order and keeps unattempted
// items whose every direct prerequisite has decayed mastery at or above
// the threshold. Items sitting inside a prerequisite cycle are never
// eligible; the bounded walk guarantees termination on bad data.
func (e *Engine) eligibleNewItems(ctx context.Context, edges map[string]models.MasteryEdge, asOf time.Time, seen map[string]bool) ([]models.Recommendation, error) {
	items, err := e.catalog.ListItemsByCurriculum(ctx, "", e.cfg.CandidateLimit)
	if err != nil {
		return nil, err
	}

	var unseen []models.Item
	ids := make([]string, 0, len(items))
	for _, it := range items {
		if _, attempted := edges[it.ID]; attempted || seen[it.ID] {
			continue
		}
		unseen = append(unseen, it)
		ids = append(ids, it.ID)
	}
	if len(unseen) == 0 {
		return nil, nil
	}

	prereqs, err := e.catalog.PrerequisiteMap(ctx, ids)
	if err != nil {
		return nil, err
	}

	var out []models.Recommendation
	for _, it := range unseen {
		direct := prereqs[it.ID]
		if !e.allMastered(direct, edges, asOf) {
			continue
		}
		if len(direct) > 0 {
			inCycle, err := e.inPrerequisiteCycle(ctx, it.ID)
			if err != nil {
				return nil, err
			}
			if inCycle {
				e.log.Warn("prerequisite cycle detected, item treated as never eligible", "item_id", it.ID)
				continue
			}
		}
		seen[it.ID] = true
		out = append(out, models.Recommendation{ItemID: it.ID, Reason: models.ReasonPrerequisiteMet})
	}
	return out, nil
}

func (e *Engine) allMastered(prereqIDs []string, edges map[string]models.MasteryEdge, asOf time.Time) bool {
	for _, id := range prereqIDs {
		edge, ok := edges[id]
		if !ok {
			return false
		}
		if e.tracker.DecayedProbability(&edge, asOf) < e.cfg.EligibilityThreshold {
			return false
		}
	}
	return true
}

// inPrerequisiteCycle walks the ancestor set breadth-first with a visited
// set and a depth cap. Acyclicity is enforced externally; this is defense
// against bad data, not routine validation.
func (e *Engine) inPrerequisiteCycle(ctx context.Context, itemID string) (bool, error) {
	visited := map[string]bool{itemID: true}
	frontier := []string{itemID}

	for depth := 0; depth < e.cfg.MaxPrereqDepth && len(frontier) > 0; depth++ {
		parents, err := e.catalog.PrerequisiteMap(ctx, frontier)
		if err != nil {
			return false, err
		}
		var next []string
		for _, ids := range parents {
			for _, id := range ids {
				if id == itemID {
					return true, nil
				}
				if !visited[id] {
					visited[id] = true
					next = append(next, id)
				}
			}
		}
		frontier = next
	}
	// Depth cap hit with ancestors remaining: suspicious data, treat as cyclic
	return len(frontier) > 0, nil
}

// fallback returns items at the hinted level in curriculum order,
// skipping anything already selected. Items the user has already
// attempted are held back: their timing belongs to the due set, so they
// re-enter here only when nothing else can fill the request.
func (e *Engine) fallback(ctx context.Context, levelHint string, n int, seen map[string]bool, edges map[string]models.MasteryEdge) ([]models.Recommendation, error) {
	items, err := e.catalog.ListItemsByCurriculum(ctx, levelHint, e.cfg.CandidateLimit)
	if err != nil {
		return nil, err
	}
	if len(items) == 0 && levelHint != "" {
		// Hinted level unknown or empty: fall back to the whole curriculum
		items, err = e.catalog.ListItemsByCurriculum(ctx, "", e.cfg.CandidateLimit)
		if err != nil {
			return nil, err
		}
	}

	var out []models.Recommendation
	take := func(skipAttempted bool) {
		for _, it := range items {
			if len(out) >= n {
				return
			}
			if seen[it.ID] {
				continue
			}
			if skipAttempted {
				if _, attempted := edges[it.ID]; attempted {
					continue
				}
			}
			seen[it.ID] = true
			out = append(out, models.Recommendation{ItemID: it.ID, Reason: models.ReasonCurriculumFallback})
		}
	}
	take(true)
	if len(out) < n {
		take(false)
	}
	return out, nil
}

// applyDiversity demotes candidates that would extend a same-domain run
// past the configured fraction of k, when a different-domain alternative
// ranks anywhere below them.
func (e *Engine) applyDiversity(ctx context.Context, ranked []models.Recommendation, k int) ([]models.Recommendation, error) {
	if len(ranked) <= 1 {
		return ranked, nil
	}
	maxRun := int(math.Ceil(e.cfg.DiversityFraction * float64(k)))
	if maxRun < 1 {
		maxRun = 1
	}

	ids := make([]string, len(ranked))
	for i, r := range ranked {
		ids[i] = r.ItemID
	}
	items, err := e.catalog.ItemsByID(ctx, ids)
	if err != nil {
		return nil, apperr.Wrap(apperr.StorageUnavailable, "recommend: item metadata", err)
	}
	domain := func(r models.Recommendation) string {
		return items[r.ItemID].Domain
	}

	out := make([]models.Recommendation, 0, len(ranked))
	rest := append([]models.Recommendation(nil), ranked...)
	run := 0
	for len(rest) > 0 {
		pick := 0
		if run >= maxRun && len(out) > 0 {
			last := domain(out[len(out)-1])
			for i, c := range rest {
				if domain(c) != last {
					pick = i
					break
				}
			}
			// All remaining share the domain: the run just continues
		}
		c := rest[pick]
		rest = append(rest[:pick], rest[pick+1:]...)
		if len(out) > 0 && domain(c) == domain(out[len(out)-1]) {
			run++
		} else {
			run = 1
		}
		out = append(out, c)
	}
	return out, nil
}
