// Package knowledge implements the typed node/edge graph of facts derived
// from experience, with confidence scores, capacity eviction and cycle-safe
// traversal.
package knowledge

import (
	"strings"
	"time"
	"unicode"

	"golang.org/x/text/unicode/norm"
)

// Kind classifies a knowledge node.
type Kind string

const (
	KindFact      Kind = "fact"
	KindPattern   Kind = "pattern"
	KindHeuristic Kind = "heuristic"
)

// Valid reports whether the kind is one of the known values.
func (k Kind) Valid() bool {
	switch k {
	case KindFact, KindPattern, KindHeuristic:
		return true
	}
	return false
}

// Relation classifies an edge between two nodes.
type Relation string

const (
	RelationSupports    Relation = "supports"
	RelationContradicts Relation = "contradicts"
	RelationDerivedFrom Relation = "derivedFrom"
	RelationRelatedTo   Relation = "relatedTo"
)

// Valid reports whether the relation is one of the known values.
func (r Relation) Valid() bool {
	switch r {
	case RelationSupports, RelationContradicts, RelationDerivedFrom, RelationRelatedTo:
		return true
	}
	return false
}

// Schedule holds the FSRS memory state for a node. It is populated and
// mutated only by the scheduler.
type Schedule struct {
	Stability      float64   `json:"stability"`
	Difficulty     float64   `json:"difficulty"`
	Retrievability float64   `json:"retrievability"`
	DueAt          time.Time `json:"due_at"`
	ReviewCount    int       `json:"review_count"`
	Lapses         int       `json:"lapses"`
}

// Node is one durable fact, pattern or heuristic.
type Node struct {
	ID             string    `json:"id"`
	Kind           Kind      `json:"kind"`
	Content        string    `json:"content"`
	Confidence     float64   `json:"confidence"`
	CreatedAt      time.Time `json:"created_at"`
	LastReviewedAt time.Time `json:"last_reviewed_at,omitzero"`
	Schedule       *Schedule `json:"schedule,omitempty"`
}

// Edge links two nodes by ID. Edges are weak references: evicting either
// endpoint removes the edge.
type Edge struct {
	FromID   string   `json:"from_id"`
	ToID     string   `json:"to_id"`
	Relation Relation `json:"relation"`
	Weight   float64  `json:"weight"`
}

// normalizeContent converts content to the canonical form used as the merge
// key: Unicode NFKC, lower-cased, whitespace collapsed.
func normalizeContent(s string) string {
	s = norm.NFKC.String(s)
	s = strings.ToLower(strings.TrimSpace(s))

	var b strings.Builder
	prevSpace := false
	for _, r := range s {
		if unicode.IsSpace(r) {
			if !prevSpace {
				b.WriteRune(' ')
				prevSpace = true
			}
		} else {
			b.WriteRune(r)
			prevSpace = false
		}
	}
	return b.String()
}

func mergeKey(kind Kind, content string) string {
	return string(kind) + "\x00" + normalizeContent(content)
}
