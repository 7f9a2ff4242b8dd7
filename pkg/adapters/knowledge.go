package adapters

import (
	"time"

	"github.com/XiaoConstantine/mnemo-go/pkg/memory"
	"github.com/XiaoConstantine/mnemo-go/pkg/memory/knowledge"
	"github.com/XiaoConstantine/mnemo-go/pkg/memory/scheduler"
)

// KnowledgeAdapter wraps the knowledge graph and its review scheduling.
type KnowledgeAdapter struct {
	core *memory.Core
}

// NewKnowledgeAdapter creates an adapter over the core's knowledge graph.
func NewKnowledgeAdapter(core *memory.Core) *KnowledgeAdapter {
	return &KnowledgeAdapter{core: core}
}

// UpsertNodeRequest inserts or merges one node.
type UpsertNodeRequest struct {
	Kind       string  `json:"kind"`
	Content    string  `json:"content"`
	Confidence float64 `json:"confidence"`
}

// UpsertNodeResponse carries the node ID, whether fresh or merged into.
type UpsertNodeResponse struct {
	NodeID string `json:"node_id"`
}

// UpsertNode inserts a node or merges into an existing one with the same
// kind and normalized content.
func (a *KnowledgeAdapter) UpsertNode(req UpsertNodeRequest) (UpsertNodeResponse, error) {
	id, err := a.core.Knowledge.UpsertNode(knowledge.Kind(req.Kind), req.Content, req.Confidence)
	if err != nil {
		return UpsertNodeResponse{}, err
	}
	return UpsertNodeResponse{NodeID: id}, nil
}

// AddEdgeRequest links two existing nodes.
type AddEdgeRequest struct {
	FromID   string  `json:"from_id"`
	ToID     string  `json:"to_id"`
	Relation string  `json:"relation"`
	Weight   float64 `json:"weight"`
}

// AddEdge upserts the (from, to, relation) edge.
func (a *KnowledgeAdapter) AddEdge(req AddEdgeRequest) error {
	return a.core.Knowledge.AddEdge(req.FromID, req.ToID, knowledge.Relation(req.Relation), req.Weight)
}

// NeighborsRequest asks for direct neighbors, optionally by relation.
type NeighborsRequest struct {
	NodeID   string `json:"node_id"`
	Relation string `json:"relation,omitempty"`
}

// NodesResponse lists nodes.
type NodesResponse struct {
	Nodes []knowledge.Node `json:"nodes"`
}

// Neighbors returns nodes connected in either direction.
func (a *KnowledgeAdapter) Neighbors(req NeighborsRequest) (NodesResponse, error) {
	nodes, err := a.core.Knowledge.Neighbors(req.NodeID, knowledge.Relation(req.Relation))
	if err != nil {
		return NodesResponse{}, err
	}
	return NodesResponse{Nodes: nodes}, nil
}

// TraverseRequest asks for a bounded breadth-first walk from a start node.
type TraverseRequest struct {
	StartID   string   `json:"start_id"`
	MaxDepth  int      `json:"max_depth"`
	Relations []string `json:"relations,omitempty"`
}

// Traverse walks outgoing edges up to MaxDepth hops, start node included.
func (a *KnowledgeAdapter) Traverse(req TraverseRequest) (NodesResponse, error) {
	relations := make([]knowledge.Relation, 0, len(req.Relations))
	for _, r := range req.Relations {
		relations = append(relations, knowledge.Relation(r))
	}

	nodes, err := a.core.Knowledge.Traverse(req.StartID, req.MaxDepth, relations...)
	if err != nil {
		return NodesResponse{}, err
	}
	return NodesResponse{Nodes: nodes}, nil
}

// ReviewRequest grades one scheduled node.
type ReviewRequest struct {
	NodeID string    `json:"node_id"`
	Grade  string    `json:"grade"`
	Now    time.Time `json:"now,omitzero"`
}

// ReviewResponse carries the updated schedule.
type ReviewResponse struct {
	Schedule knowledge.Schedule `json:"schedule"`
}

// Review applies a graded review. A zero Now means the current time.
func (a *KnowledgeAdapter) Review(req ReviewRequest) (ReviewResponse, error) {
	now := req.Now
	if now.IsZero() {
		now = time.Now()
	}

	sched, err := a.core.ReviewKnowledge(req.NodeID, scheduler.Grade(req.Grade), now)
	if err != nil {
		return ReviewResponse{}, err
	}
	return ReviewResponse{Schedule: sched}, nil
}

// DueRequest asks for nodes due for review.
type DueRequest struct {
	Now   time.Time `json:"now,omitzero"`
	Limit int       `json:"limit,omitempty"`
}

// Due returns due nodes, most overdue first. With the scheduler disabled
// the list is always empty.
func (a *KnowledgeAdapter) Due(req DueRequest) NodesResponse {
	now := req.Now
	if now.IsZero() {
		now = time.Now()
	}
	return NodesResponse{Nodes: a.core.DueForReview(now, req.Limit)}
}
