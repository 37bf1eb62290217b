// Package resolver links mentions extracted from generated content to
// canonical item nodes in the graph, creating review-pending nodes for
// mentions nothing matches.
package resolver

import (
	"context"
	"errors"
	"unicode/utf8"

	"github.com/agnivade/levenshtein"
	"github.com/google/uuid"

	"github.com/example/learncore/internal/apperr"
	"github.com/example/learncore/internal/graph"
	"github.com/example/learncore/internal/logger"
	"github.com/example/learncore/pkg/models"
)

// NodeStore is the slice of the graph store the resolver needs.
type NodeStore interface {
	FindByCanonical(ctx context.Context, kind, canonical string) (*models.Item, error)
	CandidatesByKind(ctx context.Context, kind string, limit int) ([]models.Item, error)
	CreatePending(ctx context.Context, item *models.Item) error
}

// Config bounds the fuzzy-match stage.
type Config struct {
	MaxCandidates    int // candidate fetch size for fuzzy matching
	ShortFormLen     int // forms at or below this rune count allow distance 1
	MaxEditDistance  int // distance ceiling for longer forms
	ShortMaxDistance int
}

// DefaultConfig returns the default resolver bounds.
func DefaultConfig() Config {
	return Config{
		MaxCandidates:    200,
		ShortFormLen:     4,
		ShortMaxDistance: 1,
		MaxEditDistance:  2,
	}
}

// Resolver finds or creates the canonical node for a mention.
type Resolver struct {
	store NodeStore
	cfg   Config
	log   *logger.Logger
}

// New creates a resolver over a node store.
func New(store NodeStore, cfg Config, log *logger.Logger) *Resolver {
	if cfg.MaxCandidates <= 0 {
		cfg = DefaultConfig()
	}
	return &Resolver{store: store, cfg: cfg, log: log.With("component", "resolver")}
}

// Resolve maps one mention to a node id. Resolution is idempotent: the
// same normalized mention always lands on the same node, and a concurrent
// creation race is settled by the store's uniqueness constraint with the
// loser re-fetching the winner.
func (r *Resolver) Resolve(ctx context.Context, m models.Mention) (models.Resolution, error) {
	if m.Text == "" {
		return models.Resolution{}, apperr.New(apperr.Validation, "mention text is empty")
	}
	if !models.ValidKind(m.Kind) {
		return models.Resolution{}, apperr.Newf(apperr.Validation, "unknown mention kind %q", m.Kind)
	}

	surface := m.Text
	if m.Hints.Lemma != "" {
		surface = m.Hints.Lemma
	}
	canonical := Canonicalize(surface)
	if canonical == "" {
		return models.Resolution{}, apperr.New(apperr.Validation, "mention normalizes to nothing")
	}

	// Exact match on the canonical form
	if node, err := r.store.FindByCanonical(ctx, m.Kind, canonical); err != nil {
		return models.Resolution{}, err
	} else if node != nil {
		return models.Resolution{NodeID: node.ID}, nil
	}

	// Bounded fuzzy match against same-kind nodes
	if node, err := r.fuzzyMatch(ctx, m.Kind, canonical); err != nil {
		return models.Resolution{}, err
	} else if node != nil {
		return models.Resolution{NodeID: node.ID}, nil
	}

	// Total miss: create a node pending human review
	pending := &models.Item{
		ID:            uuid.NewString(),
		Kind:          m.Kind,
		CanonicalForm: canonical,
		Display:       m.Text,
		Position:      -1,
		NeedsReview:   true,
	}
	err := r.store.CreatePending(ctx, pending)
	if err == nil {
		r.log.Info("created pending node", "kind", m.Kind, "canonical", canonical, "node_id", pending.ID)
		return models.Resolution{NodeID: pending.ID, Created: true}, nil
	}
	if !errors.Is(err, graph.ErrCanonicalExists) {
		return models.Resolution{}, err
	}

	// Lost the creation race: the winner's node is committed, fetch it
	node, err := r.store.FindByCanonical(ctx, m.Kind, canonical)
	if err != nil {
		return models.Resolution{}, err
	}
	if node == nil {
		return models.Resolution{}, apperr.Newf(apperr.StorageUnavailable,
			"canonical %q taken but not readable", canonical)
	}
	return models.Resolution{NodeID: node.ID}, nil
}

// ResolveBatch resolves a compiled lesson's mentions in order. The first
// storage failure aborts the whole batch: the caller retries it entirely,
// which is safe because creation is idempotent per canonical form.
func (r *Resolver) ResolveBatch(ctx context.Context, mentions []models.Mention) ([]models.Resolution, error) {
	out := make([]models.Resolution, 0, len(mentions))
	for _, m := range mentions {
		res, err := r.Resolve(ctx, m)
		if err != nil {
			return nil, apperr.Wrap(apperr.KindOf(err), "resolve batch", err)
		}
		out = append(out, res)
	}
	return out, nil
}

func (r *Resolver) fuzzyMatch(ctx context.Context, kind, canonical string) (*models.Item, error) {
	candidates, err := r.store.CandidatesByKind(ctx, kind, r.cfg.MaxCandidates)
	if err != nil {
		return nil, err
	}

	maxDist := r.cfg.MaxEditDistance
	if utf8.RuneCountInString(canonical) <= r.cfg.ShortFormLen {
		maxDist = r.cfg.ShortMaxDistance
	}

	var best *models.Item
	bestDist := maxDist + 1
	for i := range candidates {
		c := &candidates[i]
		d := levenshtein.ComputeDistance(canonical, c.CanonicalForm)
		// Ties resolved by lexicographic canonical form for stability
		if d < bestDist || (d == bestDist && best != nil && c.CanonicalForm < best.CanonicalForm) {
			best = c
			bestDist = d
		}
	}
	if best == nil || bestDist > maxDist {
		return nil, nil
	}
	return best, nil
}
