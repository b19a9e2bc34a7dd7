package dependencies

import (
	"encoding/json"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func nodeIDs(g CytoscapeGraph) []string {
	ids := make([]string, len(g.Nodes))
	for i, n := range g.Nodes {
		ids[i] = n.Data.ID
	}
	return ids
}

func edgeTypes(g CytoscapeGraph) map[string]string {
	types := make(map[string]string, len(g.Edges))
	for _, e := range g.Edges {
		types[e.Data.ID] = e.Data.Type
	}
	return types
}

func TestCytoscapeView_TransitiveDependencies(t *testing.T) {
	g, a, _, _ := chain(t)

	view := g.CytoscapeView(a, DefaultViewOptions())

	assert.Equal(t, []string{"a@1.0.0", "b@1.0.0", "c@1.0.0"}, nodeIDs(view))
	assert.Equal(t, "current", view.Nodes[0].Data.Type)
	assert.Equal(t, "dependency", view.Nodes[1].Data.Type)
	assert.Equal(t, map[string]string{
		"a@1.0.0->b@1.0.0": "direct",
		"b@1.0.0->c@1.0.0": "transitive",
	}, edgeTypes(view))
}

func TestCytoscapeView_DirectOnly(t *testing.T) {
	g, a, _, _ := chain(t)

	view := g.CytoscapeView(a, ViewOptions{Direction: DirectionDependencies, Transitive: false})

	assert.Equal(t, []string{"a@1.0.0", "b@1.0.0"}, nodeIDs(view))
	assert.Len(t, view.Edges, 1)
}

func TestCytoscapeView_MaxDepth(t *testing.T) {
	g, a, _, c := chain(t)
	mustEdge(t, g, c, node("d"))

	view := g.CytoscapeView(a, ViewOptions{Direction: DirectionDependencies, Transitive: true, MaxDepth: 2})
	assert.Equal(t, []string{"a@1.0.0", "b@1.0.0", "c@1.0.0"}, nodeIDs(view))
}

func TestCytoscapeView_Dependents(t *testing.T) {
	g, _, b, _ := chain(t)

	view := g.CytoscapeView(b, ViewOptions{Direction: DirectionBoth, Transitive: true, MaxDepth: -1})

	assert.ElementsMatch(t, []string{"b@1.0.0", "c@1.0.0", "a@1.0.0"}, nodeIDs(view))
	types := edgeTypes(view)
	assert.Equal(t, "direct", types["b@1.0.0->c@1.0.0"])
	assert.Equal(t, "depends-on", types["a@1.0.0->b@1.0.0"])
	for _, n := range view.Nodes {
		if n.Data.ID == "a@1.0.0" {
			assert.Equal(t, "dependent", n.Data.Type)
		}
	}
}

func TestCytoscapeView_CycleTerminates(t *testing.T) {
	g := NewDependencyGraph()
	mustEdge(t, g, node("a"), node("b"))
	mustEdge(t, g, node("b"), node("a"))

	view := g.CytoscapeView(node("a"), DefaultViewOptions())
	assert.Equal(t, []string{"a@1.0.0", "b@1.0.0"}, nodeIDs(view))
	assert.Len(t, view.Edges, 2)
}

func TestToCytoscape_JSON(t *testing.T) {
	g := NewDependencyGraph()
	require.NoError(t, g.AddEdge(Edge{From: node("orders"), To: node("money"), Relation: RelationImports}))

	data, err := json.Marshal(g.ToCytoscape())
	require.NoError(t, err)

	var decoded CytoscapeGraph
	require.NoError(t, json.Unmarshal(data, &decoded))
	require.Len(t, decoded.Nodes, 2)
	require.Len(t, decoded.Edges, 1)
	assert.Equal(t, "money", decoded.Nodes[0].Data.Name)
	assert.Equal(t, "schema", decoded.Nodes[0].Data.Type)
	assert.Equal(t, "orders@1.0.0", decoded.Edges[0].Data.Source)
	assert.Equal(t, "money@1.0.0", decoded.Edges[0].Data.Target)
	assert.Equal(t, "imports", decoded.Edges[0].Data.Relation)
}

func TestToCytoscape_EmptyGraph(t *testing.T) {
	data, err := json.Marshal(NewDependencyGraph().ToCytoscape())
	require.NoError(t, err)
	assert.JSONEq(t, `{"nodes": [], "edges": []}`, string(data))
}

func TestToDOT(t *testing.T) {
	g, _, _, _ := chain(t)
	mustEdge(t, g, node("x"), node("y"))
	mustEdge(t, g, node("y"), node("x"))

	dot := g.ToDOT()

	assert.True(t, strings.HasPrefix(dot, "digraph dependencies {\n"))
	assert.True(t, strings.HasSuffix(dot, "}\n"))
	assert.Contains(t, dot, `"a@1.0.0" -> "b@1.0.0" [label="references"];`)
	assert.Contains(t, dot, `"a@1.0.0" [label="a\n1.0.0", style="rounded,filled", fillcolor=lightblue];`)
	assert.Contains(t, dot, `"x@1.0.0" [label="x\n1.0.0", style="rounded,filled", fillcolor=lightcoral];`)
}

func TestEscapeDOT(t *testing.T) {
	assert.Equal(t, `say \"hi\"\n\\`, escapeDOT("say \"hi\"\n\\"))
}
