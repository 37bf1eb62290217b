package models

// Reasons attached to recommended items.
const (
	ReasonOverdue            = "overdue"
	ReasonPrerequisiteMet    = "prerequisite_met"
	ReasonCurriculumFallback = "curriculum_fallback"
)

// Recommendation is one ranked study candidate.
type Recommendation struct {
	ItemID string `json:"item_id"`
	Reason string `json:"reason"`
}
