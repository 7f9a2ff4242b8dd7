// Package adapters exposes the memory core through thin, serializable
// request/response types. Adapters only translate; every rule (validation,
// capacity, ordering) lives in the stores they wrap.
package adapters

import (
	"time"

	"github.com/XiaoConstantine/mnemo-go/pkg/memory"
	"github.com/XiaoConstantine/mnemo-go/pkg/memory/experience"
)

// ExperienceAdapter wraps the experience log.
type ExperienceAdapter struct {
	core *memory.Core
}

// NewExperienceAdapter creates an adapter over the core's experience store.
func NewExperienceAdapter(core *memory.Core) *ExperienceAdapter {
	return &ExperienceAdapter{core: core}
}

// RecordRequest describes one experience to store.
type RecordRequest struct {
	SessionID     string    `json:"session_id"`
	Agent         string    `json:"agent,omitempty"`
	Action        string    `json:"action"`
	ToolsUsed     []string  `json:"tools_used,omitempty"`
	Outcome       string    `json:"outcome"`
	Tags          []string  `json:"tags,omitempty"`
	Timestamp     time.Time `json:"timestamp,omitzero"`
	PayloadDigest string    `json:"payload_digest,omitempty"`
}

// RecordResponse carries the assigned entry ID.
type RecordResponse struct {
	ID uint64 `json:"id"`
}

// Record stores an experience and feeds the pattern detector.
func (a *ExperienceAdapter) Record(req RecordRequest) (RecordResponse, error) {
	id, err := a.core.RecordExperience(experience.Entry{
		SessionID:     req.SessionID,
		Agent:         req.Agent,
		Action:        req.Action,
		ToolsUsed:     req.ToolsUsed,
		Outcome:       experience.Outcome(req.Outcome),
		Tags:          req.Tags,
		Timestamp:     req.Timestamp,
		PayloadDigest: req.PayloadDigest,
	})
	if err != nil {
		return RecordResponse{}, err
	}
	return RecordResponse{ID: id}, nil
}

// QueryRequest filters stored experiences. Zero-value fields match
// everything.
type QueryRequest struct {
	SessionID string    `json:"session_id,omitempty"`
	TagsAny   []string  `json:"tags_any,omitempty"`
	Outcome   string    `json:"outcome,omitempty"`
	Since     time.Time `json:"since,omitzero"`
	Limit     int       `json:"limit,omitempty"`
	Offset    int       `json:"offset,omitempty"`
}

// QueryResponse lists matching entries, newest first.
type QueryResponse struct {
	Entries []experience.Entry `json:"entries"`
}

// Query returns matching experiences with the store's limit clamp applied.
func (a *ExperienceAdapter) Query(req QueryRequest) QueryResponse {
	entries := a.core.Experiences.Query(experience.Filter{
		SessionID: req.SessionID,
		TagsAny:   req.TagsAny,
		Outcome:   experience.Outcome(req.Outcome),
		Since:     req.Since,
	}, req.Limit, req.Offset)
	return QueryResponse{Entries: entries}
}

// CountResponse tallies stored experiences.
type CountResponse struct {
	Total     int            `json:"total"`
	ByOutcome map[string]int `json:"by_outcome"`
}

// Count returns the totals per outcome.
func (a *ExperienceAdapter) Count() CountResponse {
	byOutcome := make(map[string]int, 3)
	for outcome, n := range a.core.Experiences.CountByOutcome() {
		byOutcome[string(outcome)] = n
	}
	return CountResponse{
		Total:     a.core.Experiences.Count(),
		ByOutcome: byOutcome,
	}
}
