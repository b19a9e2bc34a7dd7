package dependencies

import (
	"fmt"
	"strings"
)

// CytoscapeNode represents a node in Cytoscape.js format
type CytoscapeNode struct {
	Data CytoscapeNodeData `json:"data"`
}

// CytoscapeNodeData contains node data for Cytoscape.js
type CytoscapeNodeData struct {
	ID      string `json:"id"`
	Name    string `json:"name"`
	Version string `json:"version"`
	Type    string `json:"type"` // "current", "dependency", "dependent", "schema"
}

// CytoscapeEdge represents an edge in Cytoscape.js format
type CytoscapeEdge struct {
	Data CytoscapeEdgeData `json:"data"`
}

// CytoscapeEdgeData contains edge data for Cytoscape.js
type CytoscapeEdgeData struct {
	ID       string `json:"id"`
	Source   string `json:"source"`
	Target   string `json:"target"`
	Type     string `json:"type,omitempty"` // "direct", "transitive", "depends-on"
	Relation string `json:"relation,omitempty"`
}

// CytoscapeGraph represents the complete graph in Cytoscape.js format
type CytoscapeGraph struct {
	Nodes []CytoscapeNode `json:"nodes"`
	Edges []CytoscapeEdge `json:"edges"`
}

// Direction selects which side of a node a view includes.
type Direction string

const (
	DirectionDependencies Direction = "dependencies"
	DirectionDependents   Direction = "dependents"
	DirectionBoth         Direction = "both"
)

// ViewOptions shapes a Cytoscape view centred on one node.
type ViewOptions struct {
	Direction Direction
	// Transitive follows dependencies past the first hop.
	Transitive bool
	// MaxDepth bounds transitive dependency expansion. Negative means unlimited.
	MaxDepth int
}

// DefaultViewOptions shows every transitive dependency of the node.
func DefaultViewOptions() ViewOptions {
	return ViewOptions{Direction: DirectionDependencies, Transitive: true, MaxDepth: -1}
}

// ToCytoscape exports the whole graph in Cytoscape.js format.
func (g *DependencyGraph) ToCytoscape() CytoscapeGraph {
	g.mu.RLock()
	defer g.mu.RUnlock()

	cyto := CytoscapeGraph{
		Nodes: make([]CytoscapeNode, 0, len(g.nodes)),
		Edges: make([]CytoscapeEdge, 0),
	}
	for _, id := range g.nodesLocked() {
		cyto.Nodes = append(cyto.Nodes, cytoscapeNode(id, "schema"))
		for _, to := range sortedKeys(g.out[id]) {
			cyto.Edges = append(cyto.Edges, cytoscapeEdge(id, to, "direct", g.out[id][to]))
		}
	}
	return cyto
}

// CytoscapeView builds a Cytoscape.js graph centred on id.
func (g *DependencyGraph) CytoscapeView(id NodeID, opts ViewOptions) CytoscapeGraph {
	g.mu.RLock()
	defer g.mu.RUnlock()

	cyto := CytoscapeGraph{
		Nodes: []CytoscapeNode{cytoscapeNode(id, "current")},
		Edges: make([]CytoscapeEdge, 0),
	}
	visited := map[NodeID]bool{id: true}

	if opts.Direction == DirectionDependencies || opts.Direction == DirectionBoth || opts.Direction == "" {
		maxDepth := opts.MaxDepth
		if !opts.Transitive {
			maxDepth = 1
		}
		g.addDependencies(&cyto, id, visited, maxDepth, 0)
	}

	if opts.Direction == DirectionDependents || opts.Direction == DirectionBoth {
		g.addDependents(&cyto, id, visited)
	}

	return cyto
}

// addDependencies adds the dependencies of id, recursing until maxDepth.
func (g *DependencyGraph) addDependencies(cyto *CytoscapeGraph, id NodeID, visited map[NodeID]bool, maxDepth, depth int) {
	if maxDepth >= 0 && depth >= maxDepth {
		return
	}

	for _, dep := range sortedKeys(g.out[id]) {
		if !visited[dep] {
			cyto.Nodes = append(cyto.Nodes, cytoscapeNode(dep, "dependency"))
			visited[dep] = true
			g.addDependencies(cyto, dep, visited, maxDepth, depth+1)
		}

		edgeType := "direct"
		if depth > 0 {
			edgeType = "transitive"
		}
		cyto.Edges = append(cyto.Edges, cytoscapeEdge(id, dep, edgeType, g.out[id][dep]))
	}
}

// addDependents adds the nodes that reference id directly.
func (g *DependencyGraph) addDependents(cyto *CytoscapeGraph, id NodeID, visited map[NodeID]bool) {
	for _, dependent := range sortedKeys(g.in[id]) {
		if !visited[dependent] {
			cyto.Nodes = append(cyto.Nodes, cytoscapeNode(dependent, "dependent"))
			visited[dependent] = true
		}
		cyto.Edges = append(cyto.Edges, cytoscapeEdge(dependent, id, "depends-on", g.in[id][dependent]))
	}
}

func cytoscapeNode(id NodeID, nodeType string) CytoscapeNode {
	return CytoscapeNode{Data: CytoscapeNodeData{
		ID:      id.String(),
		Name:    id.Subject,
		Version: id.Version,
		Type:    nodeType,
	}}
}

func cytoscapeEdge(from, to NodeID, edgeType string, relation Relation) CytoscapeEdge {
	return CytoscapeEdge{Data: CytoscapeEdgeData{
		ID:       from.String() + "->" + to.String(),
		Source:   from.String(),
		Target:   to.String(),
		Type:     edgeType,
		Relation: string(relation),
	}}
}

// ToDOT renders the graph in Graphviz DOT format. Nodes on a cycle are
// highlighted.
func (g *DependencyGraph) ToDOT() string {
	g.mu.RLock()
	defer g.mu.RUnlock()

	nodes := g.nodesLocked()
	onCycle := make(map[NodeID]bool)
	for _, cycle := range g.cyclesLocked(nodes, nil) {
		for _, id := range cycle {
			onCycle[id] = true
		}
	}

	var b strings.Builder
	b.WriteString("digraph dependencies {\n")
	b.WriteString("  rankdir=LR;\n")
	b.WriteString("  node [shape=box, style=rounded];\n")

	for _, id := range nodes {
		fill := "lightblue"
		if onCycle[id] {
			fill = "lightcoral"
		}
		label := id.Subject + "\n" + id.Version
		fmt.Fprintf(&b, "  %q [label=\"%s\", style=\"rounded,filled\", fillcolor=%s];\n",
			id.String(), escapeDOT(label), fill)
	}
	for _, from := range nodes {
		for _, to := range sortedKeys(g.out[from]) {
			fmt.Fprintf(&b, "  %q -> %q [label=\"%s\"];\n", from.String(), to.String(), escapeDOT(string(g.out[from][to])))
		}
	}

	b.WriteString("}\n")
	return b.String()
}

func escapeDOT(s string) string {
	return strings.NewReplacer(`\`, `\\`, `"`, `\"`, "\n", `\n`).Replace(s)
}
