package models

import "time"

// Item kinds as used by the content pipeline.
const (
	KindWord       = "word"
	KindGrammar    = "grammar"
	KindCompetency = "competency"
)

// Item is an atomic learning objective stored in the graph.
// Items are created by content authoring or the importer; this core never
// mutates them, except for creating pending ones during entity resolution.
type Item struct {
	ID            string    `json:"id"`
	Kind          string    `json:"kind"`
	Level         string    `json:"level"`    // CEFR-style level, e.g. "A1"
	Domain        string    `json:"domain"`   // skill domain, e.g. "vocabulary"
	Position      int       `json:"position"` // curriculum sequence number, -1 for pending items
	CanonicalForm string    `json:"canonical_form"`
	Display       string    `json:"display"`
	NeedsReview   bool      `json:"needs_review"`
	CreatedAt     time.Time `json:"created_at"`
}

// ValidKind reports whether k is a known item kind.
func ValidKind(k string) bool {
	return k == KindWord || k == KindGrammar || k == KindCompetency
}
