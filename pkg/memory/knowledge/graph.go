package knowledge

import (
	"context"
	"encoding/json"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/XiaoConstantine/mnemo-go/pkg/config"
	"github.com/XiaoConstantine/mnemo-go/pkg/errors"
	"github.com/XiaoConstantine/mnemo-go/pkg/logging"
	"github.com/XiaoConstantine/mnemo-go/pkg/persist"
)

// Component is the snapshot unit name used with persist.Store.
const Component = "knowledge"

// Graph is the bounded knowledge graph. Nodes merge by kind plus normalized
// content; edges are weak references that cascade away with their endpoints.
type Graph struct {
	mu    sync.RWMutex
	cfg   config.KnowledgeConfig
	nodes map[string]*Node
	byKey map[string]string // merge key -> node id
	edges map[string]Edge   // edge key -> edge

	persistStore persist.Store
	degraded     bool
	logger       *logging.Logger
	now          func() time.Time
}

// Option configures a Graph.
type Option func(*Graph)

// WithPersistence attaches a snapshot backend.
func WithPersistence(p persist.Store) Option {
	return func(g *Graph) {
		g.persistStore = p
	}
}

// WithLogger overrides the global logger.
func WithLogger(l *logging.Logger) Option {
	return func(g *Graph) {
		g.logger = l
	}
}

// WithClock overrides the time source used for CreatedAt stamps.
func WithClock(now func() time.Time) Option {
	return func(g *Graph) {
		g.now = now
	}
}

type snapshot struct {
	Nodes []Node `json:"nodes"`
	Edges []Edge `json:"edges"`
}

// NewGraph creates a knowledge graph. A missing snapshot starts the graph
// empty; a corrupt one is logged and ignored.
func NewGraph(cfg config.KnowledgeConfig, opts ...Option) *Graph {
	g := &Graph{
		cfg:   cfg,
		nodes: make(map[string]*Node),
		byKey: make(map[string]string),
		edges: make(map[string]Edge),
		now:   time.Now,
	}
	for _, opt := range opts {
		opt(g)
	}
	if g.logger == nil {
		g.logger = logging.GetLogger()
	}
	g.load()
	return g
}

func (g *Graph) load() {
	if g.persistStore == nil {
		return
	}

	data, err := g.persistStore.Load(Component)
	if err != nil {
		if errors.CodeOf(err) != errors.ResourceNotFound {
			g.logger.Warn(context.Background(), "knowledge: snapshot load failed, starting empty: %v", err)
		}
		return
	}

	var snap snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		g.logger.Warn(context.Background(), "knowledge: corrupt snapshot, starting empty: %v", err)
		return
	}

	for i := range snap.Nodes {
		node := snap.Nodes[i]
		g.nodes[node.ID] = &node
		g.byKey[mergeKey(node.Kind, node.Content)] = node.ID
	}
	for _, e := range snap.Edges {
		// Skip edges whose endpoints did not survive the snapshot.
		if _, ok := g.nodes[e.FromID]; !ok {
			continue
		}
		if _, ok := g.nodes[e.ToID]; !ok {
			continue
		}
		g.edges[edgeKey(e.FromID, e.ToID, e.Relation)] = e
	}
}

func (g *Graph) flush() {
	if g.persistStore == nil || g.degraded {
		return
	}

	data, err := json.Marshal(g.snapshotLocked())
	if err == nil {
		err = g.persistStore.Save(Component, data)
	}
	if err != nil {
		g.degraded = true
		g.logger.Warn(context.Background(),
			"knowledge: snapshot save failed, continuing memory-only: %v",
			errors.Wrap(err, errors.StorageFailed, "snapshot save failed"))
	}
}

func (g *Graph) snapshotLocked() snapshot {
	snap := snapshot{
		Nodes: make([]Node, 0, len(g.nodes)),
		Edges: make([]Edge, 0, len(g.edges)),
	}
	for _, n := range g.nodes {
		snap.Nodes = append(snap.Nodes, *n)
	}
	for _, e := range g.edges {
		snap.Edges = append(snap.Edges, e)
	}
	sort.Slice(snap.Nodes, func(i, j int) bool { return snap.Nodes[i].ID < snap.Nodes[j].ID })
	sort.Slice(snap.Edges, func(i, j int) bool {
		return edgeKey(snap.Edges[i].FromID, snap.Edges[i].ToID, snap.Edges[i].Relation) <
			edgeKey(snap.Edges[j].FromID, snap.Edges[j].ToID, snap.Edges[j].Relation)
	})
	return snap
}

func edgeKey(from, to string, relation Relation) string {
	return from + "\x00" + to + "\x00" + string(relation)
}

// UpsertNode inserts a node or merges it into an existing one with the same
// kind and normalized content. On merge the confidence moves toward 1 via
// c' = c + (1-c)*increment; it never decreases here (only Decay lowers it).
// Returns the node ID.
func (g *Graph) UpsertNode(kind Kind, content string, confidence float64) (string, error) {
	if !kind.Valid() {
		return "", errors.WithFields(
			errors.New(errors.ValidationFailed, "unknown node kind"),
			errors.Fields{"kind": string(kind)},
		)
	}
	if normalizeContent(content) == "" {
		return "", errors.New(errors.ValidationFailed, "node content must not be empty")
	}
	if confidence < 0 || confidence > 1 {
		return "", errors.WithFields(
			errors.New(errors.ValidationFailed, "confidence must be in [0, 1]"),
			errors.Fields{"confidence": confidence},
		)
	}

	g.mu.Lock()
	defer g.mu.Unlock()

	key := mergeKey(kind, content)
	if id, ok := g.byKey[key]; ok {
		node := g.nodes[id]
		node.Confidence += (1 - node.Confidence) * g.cfg.ConfidenceIncrement
		if node.Confidence > 1 {
			node.Confidence = 1
		}
		g.flush()
		return id, nil
	}

	node := &Node{
		ID:         uuid.NewString(),
		Kind:       kind,
		Content:    content,
		Confidence: confidence,
		CreatedAt:  g.now(),
	}
	g.nodes[node.ID] = node
	g.byKey[key] = node.ID

	for len(g.nodes) > g.cfg.MaxNodes {
		g.evictWeakestLocked()
	}

	g.flush()
	return node.ID, nil
}

// evictWeakestLocked removes the node with the lowest confidence, breaking
// ties by oldest review time (creation time if never reviewed), and cascades
// to all incident edges.
func (g *Graph) evictWeakestLocked() {
	var victim *Node
	for _, n := range g.nodes {
		if victim == nil || weakerThan(n, victim) {
			victim = n
		}
	}
	if victim == nil {
		return
	}
	g.removeNodeLocked(victim.ID)
	g.logger.Debug(context.Background(), "knowledge: evicted node %s (confidence %.3f)", victim.ID, victim.Confidence)
}

func weakerThan(a, b *Node) bool {
	if a.Confidence != b.Confidence {
		return a.Confidence < b.Confidence
	}
	at, bt := reviewedOrCreated(a), reviewedOrCreated(b)
	if !at.Equal(bt) {
		return at.Before(bt)
	}
	return a.ID < b.ID
}

func reviewedOrCreated(n *Node) time.Time {
	if !n.LastReviewedAt.IsZero() {
		return n.LastReviewedAt
	}
	return n.CreatedAt
}

func (g *Graph) removeNodeLocked(id string) {
	node, ok := g.nodes[id]
	if !ok {
		return
	}
	delete(g.nodes, id)
	delete(g.byKey, mergeKey(node.Kind, node.Content))

	for key, e := range g.edges {
		if e.FromID == id || e.ToID == id {
			delete(g.edges, key)
		}
	}
}

// DeleteNode explicitly removes a node and all its incident edges.
func (g *Graph) DeleteNode(id string) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	if _, ok := g.nodes[id]; !ok {
		return nodeNotFound(id)
	}
	g.removeNodeLocked(id)
	g.flush()
	return nil
}

// Decay multiplies every node's confidence by the configured decay factor
// and returns the number of nodes touched. This is the only path by which
// confidence decreases.
func (g *Graph) Decay() int {
	g.mu.Lock()
	defer g.mu.Unlock()

	for _, n := range g.nodes {
		n.Confidence *= g.cfg.DecayFactor
	}
	touched := len(g.nodes)
	if touched > 0 {
		g.flush()
	}
	return touched
}

// AddEdge links two existing nodes. The (from, to, relation) triple is
// unique; repeating it overwrites the weight.
func (g *Graph) AddEdge(from, to string, relation Relation, weight float64) error {
	if !relation.Valid() {
		return errors.WithFields(
			errors.New(errors.ValidationFailed, "unknown edge relation"),
			errors.Fields{"relation": string(relation)},
		)
	}

	g.mu.Lock()
	defer g.mu.Unlock()

	if _, ok := g.nodes[from]; !ok {
		return nodeNotFound(from)
	}
	if _, ok := g.nodes[to]; !ok {
		return nodeNotFound(to)
	}

	g.edges[edgeKey(from, to, relation)] = Edge{
		FromID:   from,
		ToID:     to,
		Relation: relation,
		Weight:   weight,
	}
	g.flush()
	return nil
}

// Neighbors returns the nodes connected to id by any edge, in either
// direction, optionally filtered by relation (empty means any).
func (g *Graph) Neighbors(id string, relation Relation) ([]Node, error) {
	g.mu.RLock()
	defer g.mu.RUnlock()

	if _, ok := g.nodes[id]; !ok {
		return nil, nodeNotFound(id)
	}

	seen := make(map[string]bool)
	var out []Node
	for _, e := range g.edges {
		if relation != "" && e.Relation != relation {
			continue
		}
		var other string
		switch id {
		case e.FromID:
			other = e.ToID
		case e.ToID:
			other = e.FromID
		default:
			continue
		}
		if seen[other] {
			continue
		}
		seen[other] = true
		if n, ok := g.nodes[other]; ok {
			out = append(out, copyNode(n))
		}
	}

	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

// Traverse walks outgoing edges breadth-first from startID, up to maxDepth
// hops, optionally restricted to the given relations. The start node is
// included at depth zero. The walk carries an explicit visited set, so
// cyclic edges terminate and each node appears at most once.
func (g *Graph) Traverse(startID string, maxDepth int, relations ...Relation) ([]Node, error) {
	g.mu.RLock()
	defer g.mu.RUnlock()

	start, ok := g.nodes[startID]
	if !ok {
		return nil, nodeNotFound(startID)
	}

	allowed := make(map[Relation]bool, len(relations))
	for _, r := range relations {
		allowed[r] = true
	}

	visited := map[string]bool{startID: true}
	out := []Node{copyNode(start)}
	frontier := []string{startID}

	for depth := 0; depth < maxDepth && len(frontier) > 0; depth++ {
		var next []string
		for _, id := range frontier {
			for _, to := range g.outgoingLocked(id, allowed) {
				if visited[to] {
					continue
				}
				visited[to] = true
				out = append(out, copyNode(g.nodes[to]))
				next = append(next, to)
			}
		}
		frontier = next
	}

	return out, nil
}

// outgoingLocked returns the sorted targets of id's outgoing edges that pass
// the relation filter.
func (g *Graph) outgoingLocked(id string, allowed map[Relation]bool) []string {
	var targets []string
	for _, e := range g.edges {
		if e.FromID != id {
			continue
		}
		if len(allowed) > 0 && !allowed[e.Relation] {
			continue
		}
		targets = append(targets, e.ToID)
	}
	sort.Strings(targets)
	return targets
}

// Node returns a copy of the node with the given ID.
func (g *Graph) Node(id string) (Node, error) {
	g.mu.RLock()
	defer g.mu.RUnlock()

	n, ok := g.nodes[id]
	if !ok {
		return Node{}, nodeNotFound(id)
	}
	return copyNode(n), nil
}

// Nodes returns a copy of every node, sorted by ID.
func (g *Graph) Nodes() []Node {
	g.mu.RLock()
	defer g.mu.RUnlock()

	out := make([]Node, 0, len(g.nodes))
	for _, n := range g.nodes {
		out = append(out, copyNode(n))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// SetSchedule stores the scheduler state for a node. A non-zero reviewedAt
// also stamps LastReviewedAt. Only the scheduler calls this.
func (g *Graph) SetSchedule(id string, sched *Schedule, reviewedAt time.Time) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	n, ok := g.nodes[id]
	if !ok {
		return nodeNotFound(id)
	}

	if sched != nil {
		copied := *sched
		n.Schedule = &copied
	} else {
		n.Schedule = nil
	}
	if !reviewedAt.IsZero() {
		n.LastReviewedAt = reviewedAt
	}
	g.flush()
	return nil
}

// NodeCount returns the number of nodes.
func (g *Graph) NodeCount() int {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return len(g.nodes)
}

// EdgeCount returns the number of edges.
func (g *Graph) EdgeCount() int {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return len(g.edges)
}

// Flush forces a snapshot save.
func (g *Graph) Flush() error {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.persistStore == nil {
		return nil
	}

	data, err := json.Marshal(g.snapshotLocked())
	if err != nil {
		return errors.Wrap(err, errors.StorageFailed, "failed to marshal knowledge snapshot")
	}
	if err := g.persistStore.Save(Component, data); err != nil {
		return errors.Wrap(err, errors.StorageFailed, "failed to save knowledge snapshot")
	}
	g.degraded = false
	return nil
}

func copyNode(n *Node) Node {
	out := *n
	if n.Schedule != nil {
		sched := *n.Schedule
		out.Schedule = &sched
	}
	return out
}

func nodeNotFound(id string) error {
	return errors.WithFields(
		errors.New(errors.ResourceNotFound, "knowledge node not found"),
		errors.Fields{"node_id": id},
	)
}
