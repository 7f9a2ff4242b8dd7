package adapters

import (
	"time"

	"github.com/XiaoConstantine/mnemo-go/pkg/memory"
)

// PatternAdapter wraps the pattern detector.
type PatternAdapter struct {
	core *memory.Core
}

// NewPatternAdapter creates an adapter over the core's pattern detector.
func NewPatternAdapter(core *memory.Core) *PatternAdapter {
	return &PatternAdapter{core: core}
}

// ObserveRequest feeds an action sequence into a session's window without
// going through the experience log.
type ObserveRequest struct {
	SessionID string    `json:"session_id"`
	Actions   []string  `json:"actions"`
	Timestamp time.Time `json:"timestamp,omitzero"`
}

// Observe feeds the sequence to the detector.
func (a *PatternAdapter) Observe(req ObserveRequest) {
	ts := req.Timestamp
	if ts.IsZero() {
		ts = time.Now()
	}
	a.core.Patterns.Observe(req.SessionID, req.Actions, ts)
}

// PromoteRequest triggers a promotion sweep. A zero Now means the current
// time.
type PromoteRequest struct {
	Now time.Time `json:"now,omitzero"`
}

// PromotedPattern is one promotion result.
type PromotedPattern struct {
	NodeID     string   `json:"node_id"`
	Signature  []string `json:"signature"`
	Support    int      `json:"support"`
	Confidence float64  `json:"confidence"`
}

// PromoteResponse lists the patterns promoted by the sweep.
type PromoteResponse struct {
	Promoted []PromotedPattern `json:"promoted"`
}

// Promote runs a sweep and turns recurring sequences into knowledge nodes.
func (a *PatternAdapter) Promote(req PromoteRequest) (PromoteResponse, error) {
	now := req.Now
	if now.IsZero() {
		now = time.Now()
	}

	promotions, err := a.core.PromotePatterns(now)
	resp := PromoteResponse{Promoted: make([]PromotedPattern, 0, len(promotions))}
	for _, p := range promotions {
		resp.Promoted = append(resp.Promoted, PromotedPattern{
			NodeID:     p.NodeID,
			Signature:  p.Pattern.Signature,
			Support:    p.Pattern.Support,
			Confidence: p.Pattern.Confidence,
		})
	}
	return resp, err
}

// WorkingSetSize reports the candidate count, mainly for diagnostics.
func (a *PatternAdapter) WorkingSetSize() int {
	return a.core.Patterns.WorkingSetSize()
}
