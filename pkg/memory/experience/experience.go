// Package experience implements the bounded, queryable log of task episodes
// that feeds the rest of the memory core.
package experience

import (
	"time"
)

// Outcome classifies how an episode ended.
type Outcome string

const (
	OutcomeSuccess Outcome = "success"
	OutcomeFailure Outcome = "failure"
	OutcomePartial Outcome = "partial"
)

// Valid reports whether the outcome is one of the known values.
func (o Outcome) Valid() bool {
	switch o {
	case OutcomeSuccess, OutcomeFailure, OutcomePartial:
		return true
	}
	return false
}

// Entry is one recorded agent episode. Entries are immutable once written;
// identity is the store-assigned monotonic ID.
type Entry struct {
	ID            uint64    `json:"id"`
	SessionID     string    `json:"session_id"`
	Timestamp     time.Time `json:"timestamp"`
	Agent         string    `json:"agent,omitempty"`
	Action        string    `json:"action"`
	ToolsUsed     []string  `json:"tools_used,omitempty"`
	Outcome       Outcome   `json:"outcome"`
	Tags          []string  `json:"tags,omitempty"`
	PayloadDigest string    `json:"payload_digest,omitempty"`
}

// Filter selects entries for Query. Zero-valued fields match everything.
type Filter struct {
	SessionID string
	TagsAny   []string
	Outcome   Outcome
	Since     time.Time
}

func (f Filter) matches(e Entry) bool {
	if f.SessionID != "" && e.SessionID != f.SessionID {
		return false
	}
	if f.Outcome != "" && e.Outcome != f.Outcome {
		return false
	}
	if !f.Since.IsZero() && e.Timestamp.Before(f.Since) {
		return false
	}
	if len(f.TagsAny) > 0 {
		found := false
		for _, want := range f.TagsAny {
			for _, tag := range e.Tags {
				if tag == want {
					found = true
					break
				}
			}
			if found {
				break
			}
		}
		if !found {
			return false
		}
	}
	return true
}
