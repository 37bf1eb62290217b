package models

// MentionHints carries optional normalization hints supplied by the
// content pipeline alongside a mention's surface text.
type MentionHints struct {
	Lemma string `json:"lemma,omitempty"` // dictionary form, preferred over the surface text
}

// Mention is a lexical or grammatical reference extracted from generated
// content, to be linked to a canonical graph node.
type Mention struct {
	Text  string       `json:"text"`
	Kind  string       `json:"kind"`
	Hints MentionHints `json:"hints"`
}

// Resolution is the outcome of resolving one mention.
type Resolution struct {
	NodeID  string `json:"node_id"`
	Created bool   `json:"created"`
}
