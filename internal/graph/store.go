package graph

import (
	"context"
	"time"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"

	"github.com/example/learncore/internal/apperr"
	"github.com/example/learncore/internal/logger"
	"github.com/example/learncore/pkg/models"
)

// Store exposes the catalogue queries the engine needs. All methods are
// single round trips; prerequisite traversal beyond one hop is driven by
// the recommender so it can keep its own visited-set bound.
type Store struct {
	client *Client
	log    *logger.Logger
}

// NewStore creates a store over an established client.
func NewStore(client *Client, log *logger.Logger) *Store {
	return &Store{client: client, log: log.With("store", "graph")}
}

func (s *Store) readSession(ctx context.Context) neo4j.SessionWithContext {
	return s.client.Driver.NewSession(ctx, neo4j.SessionConfig{
		AccessMode:   neo4j.AccessModeRead,
		DatabaseName: s.client.Database,
	})
}

func (s *Store) writeSession(ctx context.Context) neo4j.SessionWithContext {
	return s.client.Driver.NewSession(ctx, neo4j.SessionConfig{
		AccessMode:   neo4j.AccessModeWrite,
		DatabaseName: s.client.Database,
	})
}

const itemReturn = `i.id AS id, i.kind AS kind, i.level AS level, i.domain AS domain,
       i.position AS position, i.canonical_form AS canonical_form,
       i.display AS display, i.needs_review AS needs_review`

func itemFromRecord(rec *neo4j.Record) models.Item {
	get := func(key string) any {
		v, _ := rec.Get(key)
		return v
	}
	str := func(key string) string {
		if v, ok := get(key).(string); ok {
			return v
		}
		return ""
	}
	item := models.Item{
		ID:            str("id"),
		Kind:          str("kind"),
		Level:         str("level"),
		Domain:        str("domain"),
		CanonicalForm: str("canonical_form"),
		Display:       str("display"),
	}
	if v, ok := get("position").(int64); ok {
		item.Position = int(v)
	}
	if v, ok := get("needs_review").(bool); ok {
		item.NeedsReview = v
	}
	return item
}

// GetItem returns one item by id, or a NotFound error.
func (s *Store) GetItem(ctx context.Context, id string) (*models.Item, error) {
	session := s.readSession(ctx)
	defer session.Close(ctx)

	out, err := session.ExecuteRead(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		res, err := tx.Run(ctx, `MATCH (i:Item {id: $id}) RETURN `+itemReturn, map[string]any{"id": id})
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
		return nil, apperr.Wrap(apperr.StorageUnavailable, "graph: get item", err)
	}
	if out == nil {
		return nil, apperr.Newf(apperr.NotFound, "item %s not found", id)
	}
	return out.(*models.Item), nil
}

// ItemExists reports whether an item id is known to the graph.
func (s *Store) ItemExists(ctx context.Context, id string) (bool, error) {
	session := s.readSession(ctx)
	defer session.Close(ctx)

	out, err := session.ExecuteRead(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		res, err := tx.Run(ctx, `MATCH (i:Item {id: $id}) RETURN count(i) > 0 AS exists`,
			map[string]any{"id": id})
		if err != nil {
			return nil, err
		}
		rec, err := res.Single(ctx)
		if err != nil {
			return nil, err
		}
		v, _ := rec.Get("exists")
		exists, _ := v.(bool)
		return exists, nil
	})
	if err != nil {
		return false, apperr.Wrap(apperr.StorageUnavailable, "graph: item exists", err)
	}
	return out.(bool), nil
}

// ItemsByID returns the items for the given ids, keyed by id. Unknown ids
// are simply absent from the result.
func (s *Store) ItemsByID(ctx context.Context, ids []string) (map[string]models.Item, error) {
	if len(ids) == 0 {
		return map[string]models.Item{}, nil
	}
	session := s.readSession(ctx)
	defer session.Close(ctx)

	out, err := session.ExecuteRead(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		res, err := tx.Run(ctx, `
UNWIND $ids AS wanted
MATCH (i:Item {id: wanted})
RETURN `+itemReturn, map[string]any{"ids": ids})
		if err != nil {
			return nil, err
		}
		items := make(map[string]models.Item, len(ids))
		for res.Next(ctx) {
			item := itemFromRecord(res.Record())
			items[item.ID] = item
		}
		return items, res.Err()
	})
	if err != nil {
		return nil, apperr.Wrap(apperr.StorageUnavailable, "graph: items by id", err)
	}
	return out.(map[string]models.Item), nil
}

// ListItemsByCurriculum returns curated items in curriculum order,
// optionally restricted to one level. Pending entities (negative
// position, needs_review) never appear.
func (s *Store) ListItemsByCurriculum(ctx context.Context, level string, limit int) ([]models.Item, error) {
	session := s.readSession(ctx)
	defer session.Close(ctx)

	out, err := session.ExecuteRead(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		res, err := tx.Run(ctx, `
MATCH (i:Item)
WHERE i.needs_review = false AND i.position >= 0
  AND ($level = '' OR i.level = $level)
RETURN `+itemReturn+`
ORDER BY i.position ASC
LIMIT $limit`, map[string]any{"level": level, "limit": limit})
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
		return nil, apperr.Wrap(apperr.StorageUnavailable, "graph: list curriculum", err)
	}
	return out.([]models.Item), nil
}

// PrerequisiteMap returns the direct prerequisite ids for each of the
// given item ids in one round trip.
func (s *Store) PrerequisiteMap(ctx context.Context, ids []string) (map[string][]string, error) {
	if len(ids) == 0 {
		return map[string][]string{}, nil
	}
	session := s.readSession(ctx)
	defer session.Close(ctx)

	out, err := session.ExecuteRead(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		res, err := tx.Run(ctx, `
UNWIND $ids AS wanted
MATCH (i:Item {id: wanted})-[:REQUIRES]->(p:Item)
RETURN wanted AS id, collect(p.id) AS prereqs`, map[string]any{"ids": ids})
		if err != nil {
			return nil, err
		}
		prereqs := make(map[string][]string, len(ids))
		for res.Next(ctx) {
			rec := res.Record()
			idVal, _ := rec.Get("id")
			listVal, _ := rec.Get("prereqs")
			id, _ := idVal.(string)
			raw, _ := listVal.([]any)
			list := make([]string, 0, len(raw))
			for _, p := range raw {
				if sID, ok := p.(string); ok {
					list = append(list, sID)
				}
			}
			prereqs[id] = list
		}
		return prereqs, res.Err()
	})
	if err != nil {
		return nil, apperr.Wrap(apperr.StorageUnavailable, "graph: prerequisite map", err)
	}
	return out.(map[string][]string), nil
}

// SimilarItems returns items connected by a SIMILAR_TO edge in either
// direction.
func (s *Store) SimilarItems(ctx context.Context, id string, limit int) ([]models.Item, error) {
	session := s.readSession(ctx)
	defer session.Close(ctx)

	out, err := session.ExecuteRead(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		res, err := tx.Run(ctx, `
MATCH (:Item {id: $id})-[:SIMILAR_TO]-(i:Item)
RETURN DISTINCT `+itemReturn+`
LIMIT $limit`, map[string]any{"id": id, "limit": limit})
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
		return nil, apperr.Wrap(apperr.StorageUnavailable, "graph: similar items", err)
	}
	return out.([]models.Item), nil
}

// UpsertItem merges a curated item by (kind, canonical_form). Used by the
// importer; re-running an import converges instead of duplicating.
func (s *Store) UpsertItem(ctx context.Context, item *models.Item) (string, error) {
	session := s.writeSession(ctx)
	defer session.Close(ctx)

	out, err := session.ExecuteWrite(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		res, err := tx.Run(ctx, `
MERGE (i:Item {kind: $kind, canonical_form: $canonical})
ON CREATE SET i.id = $id, i.created_at = $created_at
SET i.level = $level,
    i.domain = $domain,
    i.position = $position,
    i.display = $display,
    i.needs_review = false
RETURN i.id AS id`, map[string]any{
			"kind":       item.Kind,
			"canonical":  item.CanonicalForm,
			"id":         item.ID,
			"level":      item.Level,
			"domain":     item.Domain,
			"position":   item.Position,
			"display":    item.Display,
			"created_at": time.Now().UTC().Format(time.RFC3339Nano),
		})
		if err != nil {
			return nil, err
		}
		rec, err := res.Single(ctx)
		if err != nil {
			return nil, err
		}
		v, _ := rec.Get("id")
		id, _ := v.(string)
		return id, nil
	})
	if err != nil {
		return "", apperr.Wrap(apperr.StorageUnavailable, "graph: upsert item", err)
	}
	return out.(string), nil
}

// LinkPrerequisite merges a REQUIRES edge from an item to a prerequisite
// identified by canonical form within the same kind.
func (s *Store) LinkPrerequisite(ctx context.Context, itemID, kind, prereqCanonical string) error {
	return s.mergeLink(ctx, itemID, kind, prereqCanonical, "REQUIRES")
}

// LinkSimilar merges a SIMILAR_TO edge.
func (s *Store) LinkSimilar(ctx context.Context, itemID, kind, otherCanonical string) error {
	return s.mergeLink(ctx, itemID, kind, otherCanonical, "SIMILAR_TO")
}

func (s *Store) mergeLink(ctx context.Context, itemID, kind, targetCanonical, rel string) error {
	session := s.writeSession(ctx)
	defer session.Close(ctx)

	query := `
MATCH (a:Item {id: $id})
MATCH (b:Item {kind: $kind, canonical_form: $canonical})
MERGE (a)-[:` + rel + `]->(b)`

	_, err := session.ExecuteWrite(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		res, err := tx.Run(ctx, query, map[string]any{
			"id": itemID, "kind": kind, "canonical": targetCanonical,
		})
		if err != nil {
			return nil, err
		}
		return nil, consumeErr(ctx, res)
	})
	if err != nil {
		return apperr.Wrap(apperr.StorageUnavailable, "graph: merge link", err)
	}
	return nil
}

func consumeErr(ctx context.Context, res neo4j.ResultWithContext) error {
	_, err := res.Consume(ctx)
	return err
}
