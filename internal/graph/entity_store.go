package graph

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"

	"github.com/example/learncore/internal/apperr"
	"github.com/example/learncore/pkg/models"
)

// ErrCanonicalExists signals that a concurrent creator won the race for a
// (kind, canonical_form) pair. The resolver re-fetches the winner.
var ErrCanonicalExists = errors.New("graph: canonical form already exists")

// FindByCanonical returns the node owning a (kind, canonical_form) pair,
// nil when no such node exists. Pending nodes are matched too: a mention
// resolved before curation must keep mapping to the same node.
func (s *Store) FindByCanonical(ctx context.Context, kind, canonical string) (*models.Item, error) {
	session := s.readSession(ctx)
	defer session.Close(ctx)

	out, err := session.ExecuteRead(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		res, err := tx.Run(ctx, `
MATCH (i:Item {kind: $kind, canonical_form: $canonical})
RETURN `+itemReturn, map[string]any{"kind": kind, "canonical": canonical})
		if err != nil {
			return nil, err
		}
		if !res.Next(ctx) {
			return nil, res.Err()
		}
		item := itemFromRecord(res.Record())
		return &item, nil
	})
	if err != nil {
		return nil, apperr.Wrap(apperr.StorageUnavailable, "graph: find by canonical", err)
	}
	if out == nil {
		return nil, nil
	}
	return out.(*models.Item), nil
}

// CandidatesByKind returns same-kind nodes for bounded fuzzy matching.
func (s *Store) CandidatesByKind(ctx context.Context, kind string, limit int) ([]models.Item, error) {
	session := s.readSession(ctx)
	defer session.Close(ctx)

	out, err := session.ExecuteRead(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		res, err := tx.Run(ctx, `
MATCH (i:Item {kind: $kind})
RETURN `+itemReturn+`
LIMIT $limit`, map[string]any{"kind": kind, "limit": limit})
		if err != nil {
			return nil, err
		}
		var items []models.Item
		for res.Next(ctx) {
			items = append(items, itemFromRecord(res.Record()))
		}
		return items, res.Err()
	})
	if err != nil {
		return nil, apperr.Wrap(apperr.StorageUnavailable, "graph: candidates by kind", err)
	}
	return out.([]models.Item), nil
}

// CreatePending creates a new node flagged needs_review=true. Uses CREATE,
// not MERGE: losing a concurrent race must surface as the constraint
// violation mapped to ErrCanonicalExists so the caller can re-fetch the
// winner instead of erroring out.
func (s *Store) CreatePending(ctx context.Context, item *models.Item) error {
	session := s.writeSession(ctx)
	defer session.Close(ctx)

	_, err := session.ExecuteWrite(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		res, err := tx.Run(ctx, `
CREATE (i:Item {
	id: $id,
	kind: $kind,
	canonical_form: $canonical,
	display: $display,
	level: '',
	domain: '',
	position: -1,
	needs_review: true,
	created_at: $created_at
})`, map[string]any{
			"id":         item.ID,
			"kind":       item.Kind,
			"canonical":  item.CanonicalForm,
			"display":    item.Display,
			"created_at": time.Now().UTC().Format(time.RFC3339Nano),
		})
		if err != nil {
			return nil, err
		}
		return nil, consumeErr(ctx, res)
	})
	if err != nil {
		if isConstraintViolation(err) {
			return ErrCanonicalExists
		}
		return apperr.Wrap(apperr.StorageUnavailable, "graph: create pending item", err)
	}
	return nil
}

func isConstraintViolation(err error) bool {
	var neoErr *neo4j.Neo4jError
	if errors.As(err, &neoErr) {
		return strings.Contains(neoErr.Code, "ConstraintValidationFailed")
	}
	return false
}
