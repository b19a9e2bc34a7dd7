package dependencies

import (
	"bytes"
	"errors"
	"sync"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/platinummonkey/schemacompat/pkg/observability"
	"github.com/platinummonkey/schemacompat/pkg/schema"
)

func node(subject string) NodeID {
	return NewNodeID(subject, "1.0.0")
}

func mustEdge(t *testing.T, g *DependencyGraph, from, to NodeID) {
	t.Helper()
	require.NoError(t, g.AddEdge(Edge{From: from, To: to, Relation: RelationReferences}))
}

// chain builds a -> b -> c.
func chain(t *testing.T) (*DependencyGraph, NodeID, NodeID, NodeID) {
	t.Helper()
	g := NewDependencyGraph()
	a, b, c := node("a"), node("b"), node("c")
	mustEdge(t, g, a, b)
	mustEdge(t, g, b, c)
	return g, a, b, c
}

func TestNewNodeID(t *testing.T) {
	tests := []struct {
		subject, version string
		want             NodeID
	}{
		{"users", "1.0.0", NodeID{"users", "1.0.0"}},
		{"users", "1.0", NodeID{"users", "1.0.0"}},
		{"users", "v2.1.0", NodeID{"users", "2.1.0"}},
		{"users", "", NodeID{"users", LatestVersion}},
		{"users", "LATEST", NodeID{"users", LatestVersion}},
		{"users", "not-a-version", NodeID{"users", "not-a-version"}},
	}

	for _, tt := range tests {
		t.Run(tt.subject+"@"+tt.version, func(t *testing.T) {
			assert.Equal(t, tt.want, NewNodeID(tt.subject, tt.version))
		})
	}
}

func TestParseNodeID(t *testing.T) {
	id, err := ParseNodeID("com.acme/users@1.2.0")
	require.NoError(t, err)
	assert.Equal(t, NodeID{"com.acme/users", "1.2.0"}, id)
	assert.Equal(t, "com.acme/users@1.2.0", id.String())

	_, err = ParseNodeID("users")
	assert.Error(t, err)
	_, err = ParseNodeID("@1.0.0")
	assert.Error(t, err)
}

func TestNodeID_Less(t *testing.T) {
	assert.True(t, NewNodeID("a", "2.0.0").Less(NewNodeID("b", "1.0.0")))
	assert.True(t, NewNodeID("a", "1.2.0").Less(NewNodeID("a", "1.10.0")))
	assert.True(t, NewNodeID("a", "1.0.0-rc.1").Less(NewNodeID("a", "1.0.0")))
	assert.True(t, NewNodeID("a", "9.0.0").Less(NewNodeID("a", "")))
	assert.False(t, NewNodeID("a", "").Less(NewNodeID("a", "9.0.0")))
	assert.False(t, NewNodeID("a", "1.0.0").Less(NewNodeID("a", "1.0.0")))
}

func TestNodeOf(t *testing.T) {
	doc, err := schema.ParseString(schema.FormatJSONSchema, "users", "1.2.3", `{"type": "object"}`)
	require.NoError(t, err)
	assert.Equal(t, NodeID{"users", "1.2.3"}, NodeOf(doc))
}

func TestDependencyGraph_AddEdge(t *testing.T) {
	g := NewDependencyGraph()

	err := g.AddEdge(Edge{From: node("user"), To: node("common"), Relation: RelationImports})
	if err != nil {
		t.Fatalf("AddEdge failed: %v", err)
	}
	if !g.HasNode(node("user")) || !g.HasNode(node("common")) {
		t.Fatal("Expected both endpoints to be added as nodes")
	}

	edges := g.Edges()
	if len(edges) != 1 {
		t.Fatalf("Expected 1 edge, got %d", len(edges))
	}
	if edges[0].Relation != RelationImports {
		t.Errorf("Expected relation imports, got %s", edges[0].Relation)
	}

	if err := g.AddEdge(Edge{From: node("user"), To: node("common"), Relation: "inherits"}); err == nil {
		t.Error("Expected error for unknown relation")
	}
	if err := g.AddEdge(Edge{From: NodeID{}, To: node("common"), Relation: RelationReferences}); err == nil {
		t.Error("Expected error for empty subject")
	}
	if err := g.AddNode(NodeID{Version: "1.0.0"}); err == nil {
		t.Error("Expected error for node without subject")
	}
}

func TestDependencyGraph_RemoveEdgeAndNode(t *testing.T) {
	g, a, b, c := chain(t)

	assert.True(t, g.RemoveEdge(a, b))
	assert.False(t, g.RemoveEdge(a, b))
	assert.Empty(t, g.DirectDependencies(a))
	assert.Empty(t, g.DirectDependents(b))

	mustEdge(t, g, a, b)
	assert.True(t, g.RemoveNode(b))
	assert.False(t, g.RemoveNode(b))
	assert.False(t, g.HasNode(b))
	assert.Empty(t, g.DirectDependencies(a))
	assert.Empty(t, g.DirectDependents(c))
	assert.Equal(t, []NodeID{a, c}, g.Nodes())
}

func TestDependencyGraph_TransitiveDependencies(t *testing.T) {
	g, a, b, c := chain(t)
	d := node("d")
	mustEdge(t, g, a, d)

	assert.Equal(t, []NodeID{b, c, d}, g.TransitiveDependencies(a))
	assert.Equal(t, []NodeID{c}, g.TransitiveDependencies(b))
	assert.Empty(t, g.TransitiveDependencies(c))
	assert.Empty(t, g.TransitiveDependencies(node("missing")))
}

func TestDependencyGraph_TransitiveDependents(t *testing.T) {
	g, a, b, c := chain(t)

	assert.Equal(t, []NodeID{b, a}, g.TransitiveDependents(c))
	assert.Equal(t, []NodeID{a}, g.TransitiveDependents(b))
	assert.Empty(t, g.TransitiveDependents(a))
}

func TestDependencyGraph_TransitiveDependentsTerminateOnCycle(t *testing.T) {
	g := NewDependencyGraph()
	a, b := node("a"), node("b")
	mustEdge(t, g, a, b)
	mustEdge(t, g, b, a)

	assert.Equal(t, []NodeID{b}, g.TransitiveDependents(a))
	assert.Equal(t, []NodeID{a}, g.TransitiveDependencies(b))
}

func TestDependencyGraph_RootsAndLeaves(t *testing.T) {
	g, a, _, c := chain(t)
	lone := node("lone")
	require.NoError(t, g.AddNode(lone))

	assert.Equal(t, []NodeID{a, lone}, g.Roots())
	assert.Equal(t, []NodeID{c, lone}, g.Leaves())
}

func TestDependencyGraph_ShortestPath(t *testing.T) {
	g, a, b, c := chain(t)
	mustEdge(t, g, a, c)

	assert.Equal(t, []NodeID{a, c}, g.ShortestPath(a, c))
	assert.Equal(t, []NodeID{b, c}, g.ShortestPath(b, c))
	assert.Equal(t, []NodeID{a}, g.ShortestPath(a, a))
	assert.Nil(t, g.ShortestPath(c, a))
	assert.True(t, g.HasPath(a, c))
	assert.False(t, g.HasPath(c, a))
	assert.False(t, g.HasPath(node("missing"), a))
}

func TestDependencyGraph_DetectCycles(t *testing.T) {
	t.Run("acyclic", func(t *testing.T) {
		g, _, _, _ := chain(t)
		assert.Empty(t, g.DetectCycles())
	})

	t.Run("mutual reference", func(t *testing.T) {
		g := NewDependencyGraph()
		a, b := node("a"), node("b")
		mustEdge(t, g, b, a)
		mustEdge(t, g, a, b)

		cycles := g.DetectCycles()
		require.Len(t, cycles, 1)
		assert.Equal(t, []NodeID{a, b}, cycles[0])
	})

	t.Run("rotated to smallest node", func(t *testing.T) {
		g := NewDependencyGraph()
		a, b, c := node("a"), node("b"), node("c")
		mustEdge(t, g, c, a)
		mustEdge(t, g, a, b)
		mustEdge(t, g, b, c)

		cycles := g.DetectCycles()
		require.Len(t, cycles, 1)
		assert.Equal(t, []NodeID{a, b, c}, cycles[0])
	})

	t.Run("self reference", func(t *testing.T) {
		g := NewDependencyGraph()
		a := node("a")
		mustEdge(t, g, a, a)

		cycles := g.DetectCycles()
		require.Len(t, cycles, 1)
		assert.Equal(t, []NodeID{a}, cycles[0])
	})

	t.Run("independent cycles", func(t *testing.T) {
		g := NewDependencyGraph()
		mustEdge(t, g, node("a"), node("b"))
		mustEdge(t, g, node("b"), node("a"))
		mustEdge(t, g, node("x"), node("y"))
		mustEdge(t, g, node("y"), node("x"))

		cycles := g.DetectCycles()
		require.Len(t, cycles, 2)
		assert.Equal(t, []NodeID{node("a"), node("b")}, cycles[0])
		assert.Equal(t, []NodeID{node("x"), node("y")}, cycles[1])
	})
}

func TestDependencyGraph_DetectCyclesReportsMetricsAndLogs(t *testing.T) {
	var buf bytes.Buffer
	metrics := observability.NewMetrics(prometheus.NewRegistry())
	g := NewDependencyGraph(
		WithLogger(observability.NewLogger(observability.DebugLevel, &buf)),
		WithMetrics(metrics),
	)
	mustEdge(t, g, node("a"), node("b"))
	mustEdge(t, g, node("b"), node("a"))

	g.DetectCycles()

	assert.Equal(t, float64(1), testutil.ToFloat64(metrics.DependencyCycles))
	assert.Contains(t, buf.String(), "dependency cycle detected")
	assert.Contains(t, buf.String(), "a@1.0.0 -> b@1.0.0 -> a@1.0.0")
}

func TestDependencyGraph_MigrationPath(t *testing.T) {
	g, a, b, c := chain(t)

	order, err := g.MigrationPath([]NodeID{a, b, c})
	require.NoError(t, err)
	assert.Equal(t, []NodeID{c, b, a}, order)

	// Only edges inside the subset constrain the order.
	order, err = g.MigrationPath([]NodeID{a, c})
	require.NoError(t, err)
	assert.Equal(t, []NodeID{a, c}, order)
}

func TestDependencyGraph_MigrationPathTieBreak(t *testing.T) {
	g := NewDependencyGraph()
	base := node("base")
	zeta, alpha := node("zeta"), node("alpha")
	alphaV2 := NewNodeID("alpha", "2.0.0")
	alphaV10 := NewNodeID("alpha", "10.0.0")
	for _, n := range []NodeID{zeta, alphaV10, alpha, alphaV2} {
		mustEdge(t, g, n, base)
	}

	order, err := g.MigrationPath([]NodeID{zeta, alphaV10, base, alphaV2, alpha})
	require.NoError(t, err)
	assert.Equal(t, []NodeID{base, alpha, alphaV2, alphaV10, zeta}, order)
}

func TestDependencyGraph_MigrationPathCycle(t *testing.T) {
	g := NewDependencyGraph()
	a, b, c := node("a"), node("b"), node("c")
	mustEdge(t, g, a, b)
	mustEdge(t, g, b, a)
	mustEdge(t, g, c, a)

	order, err := g.MigrationPath([]NodeID{a, b, c})
	assert.Nil(t, order)
	require.Error(t, err)
	assert.True(t, errors.Is(err, schema.ErrStructural))

	var cycleErr *CycleError
	require.ErrorAs(t, err, &cycleErr)
	require.Len(t, cycleErr.Cycles, 1)
	assert.Equal(t, []NodeID{a, b}, cycleErr.Cycles[0])
	assert.Contains(t, err.Error(), "a@1.0.0 -> b@1.0.0 -> a@1.0.0")
}

func TestDependencyGraph_MigrationPathUnknownNodes(t *testing.T) {
	g := NewDependencyGraph()
	order, err := g.MigrationPath([]NodeID{node("b"), node("a")})
	require.NoError(t, err)
	assert.Equal(t, []NodeID{node("a"), node("b")}, order)
}

func TestDependencyGraph_ConcurrentAccess(t *testing.T) {
	g := NewDependencyGraph()
	root := node("root")

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			from := NewNodeID("svc", "1.0."+string(rune('0'+i%10)))
			_ = g.AddEdge(Edge{From: from, To: root, Relation: RelationReferences})
			g.TransitiveDependents(root)
			g.DetectCycles()
		}(i)
	}
	wg.Wait()

	assert.Len(t, g.DirectDependents(root), 10)
}
