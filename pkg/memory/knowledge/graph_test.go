package knowledge

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/XiaoConstantine/mnemo-go/pkg/config"
	"github.com/XiaoConstantine/mnemo-go/pkg/errors"
	"github.com/XiaoConstantine/mnemo-go/pkg/persist"
)

func testConfig() config.KnowledgeConfig {
	return config.KnowledgeConfig{
		MaxNodes:            4,
		ConfidenceIncrement: 0.1,
		DecayFactor:         0.5,
	}
}

func TestUpsertNodeValidation(t *testing.T) {
	g := NewGraph(testConfig())

	tests := []struct {
		name       string
		kind       Kind
		content    string
		confidence float64
	}{
		{name: "unknown kind", kind: "rumor", content: "x", confidence: 0.5},
		{name: "empty content", kind: KindFact, content: "   ", confidence: 0.5},
		{name: "confidence above one", kind: KindFact, content: "x", confidence: 1.5},
		{name: "negative confidence", kind: KindFact, content: "x", confidence: -0.1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := g.UpsertNode(tt.kind, tt.content, tt.confidence)
			require.Error(t, err)
			assert.Equal(t, errors.ValidationFailed, errors.CodeOf(err))
		})
	}
}

func TestIdempotentUpsert(t *testing.T) {
	g := NewGraph(testConfig())

	id1, err := g.UpsertNode(KindFact, "tests pass after gofmt", 0.5)
	require.NoError(t, err)

	id2, err := g.UpsertNode(KindFact, "tests pass after gofmt", 0.5)
	require.NoError(t, err)

	assert.Equal(t, id1, id2, "same kind+content must merge, not duplicate")
	assert.Equal(t, 1, g.NodeCount())

	node, err := g.Node(id1)
	require.NoError(t, err)
	// c' = 0.5 + (1-0.5)*0.1
	assert.InDelta(t, 0.55, node.Confidence, 1e-9)
	assert.Greater(t, node.Confidence, 0.5, "confidence strictly increases on merge")
	assert.LessOrEqual(t, node.Confidence, 1.0)
}

func TestUpsertMergesNormalizedContent(t *testing.T) {
	g := NewGraph(testConfig())

	id1, err := g.UpsertNode(KindHeuristic, "Run  Gofmt\tFirst", 0.4)
	require.NoError(t, err)
	id2, err := g.UpsertNode(KindHeuristic, "run gofmt first", 0.4)
	require.NoError(t, err)

	assert.Equal(t, id1, id2)
	assert.Equal(t, 1, g.NodeCount())
}

func TestUpsertDifferentKindsStaySeparate(t *testing.T) {
	g := NewGraph(testConfig())

	id1, err := g.UpsertNode(KindFact, "same words", 0.5)
	require.NoError(t, err)
	id2, err := g.UpsertNode(KindHeuristic, "same words", 0.5)
	require.NoError(t, err)

	assert.NotEqual(t, id1, id2)
	assert.Equal(t, 2, g.NodeCount())
}

func TestConfidenceNeverExceedsOne(t *testing.T) {
	g := NewGraph(config.KnowledgeConfig{MaxNodes: 10, ConfidenceIncrement: 0.9, DecayFactor: 0.9})

	id, err := g.UpsertNode(KindFact, "x", 0.99)
	require.NoError(t, err)

	for i := 0; i < 10; i++ {
		_, err := g.UpsertNode(KindFact, "x", 0.99)
		require.NoError(t, err)
	}

	node, err := g.Node(id)
	require.NoError(t, err)
	assert.LessOrEqual(t, node.Confidence, 1.0)
}

func TestDecay(t *testing.T) {
	g := NewGraph(testConfig()) // DecayFactor 0.5

	id, err := g.UpsertNode(KindFact, "x", 0.8)
	require.NoError(t, err)

	touched := g.Decay()
	assert.Equal(t, 1, touched)

	node, err := g.Node(id)
	require.NoError(t, err)
	assert.InDelta(t, 0.4, node.Confidence, 1e-9)
}

func TestAddEdge(t *testing.T) {
	g := NewGraph(testConfig())
	a, _ := g.UpsertNode(KindFact, "a", 0.5)
	b, _ := g.UpsertNode(KindFact, "b", 0.5)

	t.Run("valid edge", func(t *testing.T) {
		require.NoError(t, g.AddEdge(a, b, RelationSupports, 1.0))
		assert.Equal(t, 1, g.EdgeCount())
	})

	t.Run("missing endpoint", func(t *testing.T) {
		err := g.AddEdge(a, "ghost", RelationSupports, 1.0)
		require.Error(t, err)
		assert.Equal(t, errors.ResourceNotFound, errors.CodeOf(err))

		err = g.AddEdge("ghost", b, RelationSupports, 1.0)
		assert.Equal(t, errors.ResourceNotFound, errors.CodeOf(err))
	})

	t.Run("invalid relation", func(t *testing.T) {
		err := g.AddEdge(a, b, "disputes", 1.0)
		assert.Equal(t, errors.ValidationFailed, errors.CodeOf(err))
	})

	t.Run("repeat upserts weight", func(t *testing.T) {
		require.NoError(t, g.AddEdge(a, b, RelationSupports, 0.25))
		assert.Equal(t, 1, g.EdgeCount(), "no duplicate parallel edges")
	})
}

func TestNeighbors(t *testing.T) {
	g := NewGraph(config.KnowledgeConfig{MaxNodes: 10, ConfidenceIncrement: 0.1, DecayFactor: 0.9})
	a, _ := g.UpsertNode(KindFact, "a", 0.5)
	b, _ := g.UpsertNode(KindFact, "b", 0.5)
	c, _ := g.UpsertNode(KindFact, "c", 0.5)

	require.NoError(t, g.AddEdge(a, b, RelationSupports, 1.0))
	require.NoError(t, g.AddEdge(c, a, RelationContradicts, 1.0))

	t.Run("all relations, both directions", func(t *testing.T) {
		got, err := g.Neighbors(a, "")
		require.NoError(t, err)
		assert.Len(t, got, 2)
	})

	t.Run("relation filter", func(t *testing.T) {
		got, err := g.Neighbors(a, RelationSupports)
		require.NoError(t, err)
		require.Len(t, got, 1)
		assert.Equal(t, b, got[0].ID)
	})

	t.Run("unknown node", func(t *testing.T) {
		_, err := g.Neighbors("ghost", "")
		assert.Equal(t, errors.ResourceNotFound, errors.CodeOf(err))
	})
}

func TestTraverse(t *testing.T) {
	g := NewGraph(config.KnowledgeConfig{MaxNodes: 10, ConfidenceIncrement: 0.1, DecayFactor: 0.9})
	a, _ := g.UpsertNode(KindFact, "a", 0.5)
	b, _ := g.UpsertNode(KindFact, "b", 0.5)
	c, _ := g.UpsertNode(KindFact, "c", 0.5)
	d, _ := g.UpsertNode(KindFact, "d", 0.5)

	require.NoError(t, g.AddEdge(a, b, RelationDerivedFrom, 1.0))
	require.NoError(t, g.AddEdge(b, c, RelationDerivedFrom, 1.0))
	require.NoError(t, g.AddEdge(c, a, RelationDerivedFrom, 1.0)) // cycle
	require.NoError(t, g.AddEdge(b, d, RelationSupports, 1.0))

	t.Run("includes start at depth zero", func(t *testing.T) {
		got, err := g.Traverse(a, 0)
		require.NoError(t, err)
		require.Len(t, got, 1)
		assert.Equal(t, a, got[0].ID)
	})

	t.Run("cycle terminates and visits each node once", func(t *testing.T) {
		got, err := g.Traverse(a, 10)
		require.NoError(t, err)
		assert.Len(t, got, 4)

		seen := make(map[string]int)
		for _, n := range got {
			seen[n.ID]++
		}
		for id, count := range seen {
			assert.Equal(t, 1, count, "node %s visited more than once", id)
		}
	})

	t.Run("depth bound", func(t *testing.T) {
		got, err := g.Traverse(a, 1)
		require.NoError(t, err)
		require.Len(t, got, 2)
		assert.Equal(t, a, got[0].ID)
		assert.Equal(t, b, got[1].ID)
	})

	t.Run("relation filter", func(t *testing.T) {
		got, err := g.Traverse(a, 10, RelationDerivedFrom)
		require.NoError(t, err)
		assert.Len(t, got, 3, "supports edge to d is filtered out")
	})

	t.Run("missing start", func(t *testing.T) {
		_, err := g.Traverse("ghost", 3)
		assert.Equal(t, errors.ResourceNotFound, errors.CodeOf(err))
	})
}

func TestCapEvictsWeakestWithCascade(t *testing.T) {
	g := NewGraph(testConfig()) // MaxNodes = 4

	weak, _ := g.UpsertNode(KindFact, "weak", 0.1)
	n1, _ := g.UpsertNode(KindFact, "n1", 0.8)
	n2, _ := g.UpsertNode(KindFact, "n2", 0.7)
	n3, _ := g.UpsertNode(KindFact, "n3", 0.6)

	require.NoError(t, g.AddEdge(n1, weak, RelationSupports, 1.0))
	require.NoError(t, g.AddEdge(weak, n2, RelationRelatedTo, 1.0))
	require.NoError(t, g.AddEdge(n1, n2, RelationSupports, 1.0))

	// Fifth insert pushes past the cap; the weakest node goes.
	_, err := g.UpsertNode(KindFact, "n4", 0.9)
	require.NoError(t, err)

	assert.Equal(t, 4, g.NodeCount())
	_, err = g.Node(weak)
	assert.Equal(t, errors.ResourceNotFound, errors.CodeOf(err))

	// Cascade removed both incident edges, kept the unrelated one.
	assert.Equal(t, 1, g.EdgeCount())

	// Neighbors never returns a dangling reference.
	got, err := g.Neighbors(n1, "")
	require.NoError(t, err)
	for _, n := range got {
		assert.NotEqual(t, weak, n.ID)
	}
	_ = n3
}

func TestEvictionTieBreaksByOldest(t *testing.T) {
	now := time.Date(2026, 8, 1, 0, 0, 0, 0, time.UTC)
	tick := 0
	clock := func() time.Time {
		tick++
		return now.Add(time.Duration(tick) * time.Second)
	}

	g := NewGraph(config.KnowledgeConfig{MaxNodes: 2, ConfidenceIncrement: 0.1, DecayFactor: 0.9}, WithClock(clock))

	older, _ := g.UpsertNode(KindFact, "older", 0.5)
	newer, _ := g.UpsertNode(KindFact, "newer", 0.5)

	_, err := g.UpsertNode(KindFact, "third", 0.9)
	require.NoError(t, err)

	_, err = g.Node(older)
	assert.Equal(t, errors.ResourceNotFound, errors.CodeOf(err), "older of equal-confidence pair is evicted")
	_, err = g.Node(newer)
	assert.NoError(t, err)
}

func TestDeleteNode(t *testing.T) {
	g := NewGraph(testConfig())
	a, _ := g.UpsertNode(KindFact, "a", 0.5)
	b, _ := g.UpsertNode(KindFact, "b", 0.5)
	require.NoError(t, g.AddEdge(a, b, RelationSupports, 1.0))

	require.NoError(t, g.DeleteNode(b))
	assert.Equal(t, 0, g.EdgeCount())
	assert.Equal(t, errors.ResourceNotFound, errors.CodeOf(g.DeleteNode(b)))
}

func TestSetSchedule(t *testing.T) {
	g := NewGraph(testConfig())
	id, _ := g.UpsertNode(KindPattern, "a -> b", 0.75)

	now := time.Date(2026, 8, 25, 10, 0, 0, 0, time.UTC)
	sched := &Schedule{Stability: 1, Difficulty: 5, Retrievability: 1, DueAt: now}

	require.NoError(t, g.SetSchedule(id, sched, now))

	node, err := g.Node(id)
	require.NoError(t, err)
	require.NotNil(t, node.Schedule)
	assert.Equal(t, 1.0, node.Schedule.Stability)
	assert.Equal(t, now, node.LastReviewedAt)

	// The stored schedule is a copy, not an alias.
	sched.Stability = 99
	node, _ = g.Node(id)
	assert.Equal(t, 1.0, node.Schedule.Stability)

	assert.Equal(t, errors.ResourceNotFound, errors.CodeOf(g.SetSchedule("ghost", sched, now)))
}

func TestRoundTrip(t *testing.T) {
	backend := persist.NewMemoryStore()

	g := NewGraph(testConfig(), WithPersistence(backend))
	a, _ := g.UpsertNode(KindFact, "a", 0.5)
	b, _ := g.UpsertNode(KindPattern, "b", 0.6)
	require.NoError(t, g.AddEdge(a, b, RelationDerivedFrom, 0.8))

	reloaded := NewGraph(testConfig(), WithPersistence(backend))

	assert.Equal(t, g.NodeCount(), reloaded.NodeCount())
	assert.Equal(t, g.EdgeCount(), reloaded.EdgeCount())

	node, err := reloaded.Node(a)
	require.NoError(t, err)
	assert.Equal(t, KindFact, node.Kind)
	assert.Equal(t, "a", node.Content)
	assert.InDelta(t, 0.5, node.Confidence, 1e-9)

	// Merge-by-content still works after reload.
	id, err := reloaded.UpsertNode(KindFact, "a", 0.5)
	require.NoError(t, err)
	assert.Equal(t, a, id)

	got, err := reloaded.Neighbors(a, RelationDerivedFrom)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, b, got[0].ID)
}

func TestCorruptSnapshotStartsEmpty(t *testing.T) {
	backend := persist.NewMemoryStore()
	require.NoError(t, backend.Save(Component, []byte("[oops")))

	g := NewGraph(testConfig(), WithPersistence(backend))
	assert.Equal(t, 0, g.NodeCount())

	_, err := g.UpsertNode(KindFact, "works", 0.5)
	assert.NoError(t, err)
}

func TestNormalizeContent(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"Hello  World", "hello world"},
		{"  padded\t\ttabs  ", "padded tabs"},
		{"ＦＵＬＬＷＩＤＴＨ", "fullwidth"}, // NFKC folds fullwidth forms
		{"", ""},
	}

	for _, tt := range tests {
		t.Run(fmt.Sprintf("%q", tt.in), func(t *testing.T) {
			assert.Equal(t, tt.want, normalizeContent(tt.in))
		})
	}
}
