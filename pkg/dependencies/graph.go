package dependencies

import (
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/platinummonkey/schemacompat/pkg/observability"
	"github.com/platinummonkey/schemacompat/pkg/schema"
)

// LatestVersion marks a symbolic node that follows the newest version of a subject.
const LatestVersion = "latest"

// Relation describes why one schema depends on another.
type Relation string

const (
	RelationReferences Relation = "references"
	RelationImports    Relation = "imports"
	RelationExtends    Relation = "extends"

	// RelationLatest links a subject's latest node to the newest concrete version of
	// that subject. The graph maintains these edges itself.
	RelationLatest Relation = "latest"
)

// Valid reports whether r is a relation callers may add.
func (r Relation) Valid() bool {
	switch r {
	case RelationReferences, RelationImports, RelationExtends:
		return true
	}
	return false
}

// NodeID identifies a schema in the graph by subject and version.
type NodeID struct {
	Subject string `json:"subject"`
	Version string `json:"version"`
}

// NewNodeID returns the node for subject at version. An empty version is the
// symbolic latest node; semantic versions are normalized so "1.0" and "1.0.0" name
// the same node.
func NewNodeID(subject, version string) NodeID {
	switch {
	case version == "" || strings.EqualFold(version, LatestVersion):
		version = LatestVersion
	default:
		if v, err := schema.ParseVersion(version); err == nil {
			version = v.String()
		}
	}
	return NodeID{Subject: subject, Version: version}
}

// NodeOf returns the node for a parsed document.
func NodeOf(doc *schema.Document) NodeID {
	return NodeID{Subject: doc.Subject(), Version: doc.Version().String()}
}

// ParseNodeID parses the subject@version form produced by String.
func ParseNodeID(s string) (NodeID, error) {
	idx := strings.LastIndexByte(s, '@')
	if idx <= 0 {
		return NodeID{}, fmt.Errorf("invalid node id %q: expected subject@version", s)
	}
	return NewNodeID(s[:idx], s[idx+1:]), nil
}

func (n NodeID) String() string {
	return n.Subject + "@" + n.Version
}

// IsLatest reports whether n is a symbolic latest node.
func (n NodeID) IsLatest() bool {
	return n.Version == LatestVersion
}

// Less orders nodes by subject, then by semantic version. Symbolic latest nodes sort
// after every concrete version of their subject; unparsable versions compare as
// strings.
func (n NodeID) Less(other NodeID) bool {
	if n.Subject != other.Subject {
		return n.Subject < other.Subject
	}
	if n.IsLatest() || other.IsLatest() {
		return !n.IsLatest() && other.IsLatest()
	}
	a, errA := schema.ParseVersion(n.Version)
	b, errB := schema.ParseVersion(other.Version)
	if errA == nil && errB == nil {
		if c := a.Compare(b); c != 0 {
			return c < 0
		}
	}
	return n.Version < other.Version
}

func sortNodes(nodes []NodeID) []NodeID {
	sort.Slice(nodes, func(i, j int) bool { return nodes[i].Less(nodes[j]) })
	return nodes
}

// Edge is a directed dependency: From depends on To.
type Edge struct {
	From     NodeID   `json:"from"`
	To       NodeID   `json:"to"`
	Relation Relation `json:"relation"`
}

// Option configures a DependencyGraph
type Option func(*DependencyGraph)

// WithLogger sets the graph logger
func WithLogger(logger *observability.Logger) Option {
	return func(g *DependencyGraph) {
		if logger != nil {
			g.logger = logger
		}
	}
}

// WithMetrics publishes the number of detected cycles into m.
func WithMetrics(m *observability.Metrics) Option {
	return func(g *DependencyGraph) {
		g.metrics = m
	}
}

// DependencyGraph is a directed graph of schema references. Adjacency is kept in
// both directions so dependents are as cheap to walk as dependencies. It is safe for
// concurrent use; the caller keeps it in sync with the registry.
type DependencyGraph struct {
	mu    sync.RWMutex
	nodes map[NodeID]struct{}
	out   map[NodeID]map[NodeID]Relation // node -> what it depends on
	in    map[NodeID]map[NodeID]Relation // node -> what depends on it
	// versions holds the concrete nodes of each subject.
	versions map[string]map[NodeID]struct{}

	logger  *observability.Logger
	metrics *observability.Metrics
}

// NewDependencyGraph creates an empty dependency graph
func NewDependencyGraph(opts ...Option) *DependencyGraph {
	g := &DependencyGraph{
		nodes:    make(map[NodeID]struct{}),
		out:      make(map[NodeID]map[NodeID]Relation),
		in:       make(map[NodeID]map[NodeID]Relation),
		versions: make(map[string]map[NodeID]struct{}),
		logger:   observability.NopLogger(),
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// AddNode adds a node to the graph. Adding an existing node is a no-op.
func (g *DependencyGraph) AddNode(id NodeID) error {
	if id.Subject == "" {
		return fmt.Errorf("node has empty subject")
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	g.addNodeLocked(id)
	return nil
}

func (g *DependencyGraph) addNodeLocked(id NodeID) {
	if _, ok := g.nodes[id]; ok {
		return
	}
	g.nodes[id] = struct{}{}
	g.out[id] = make(map[NodeID]Relation)
	g.in[id] = make(map[NodeID]Relation)
	if !id.IsLatest() {
		if g.versions[id.Subject] == nil {
			g.versions[id.Subject] = make(map[NodeID]struct{})
		}
		g.versions[id.Subject][id] = struct{}{}
	}
	g.relinkLatestLocked(id.Subject)
}

// relinkLatestLocked points subject's latest node, if present, at the newest
// concrete version of subject.
func (g *DependencyGraph) relinkLatestLocked(subject string) {
	latest := NewNodeID(subject, LatestVersion)
	if _, ok := g.nodes[latest]; !ok {
		return
	}
	for to, rel := range g.out[latest] {
		if rel == RelationLatest {
			delete(g.out[latest], to)
			delete(g.in[to], latest)
		}
	}

	var newest NodeID
	found := false
	for id := range g.versions[subject] {
		if !found || newest.Less(id) {
			newest, found = id, true
		}
	}
	if found {
		g.out[latest][newest] = RelationLatest
		g.in[newest][latest] = RelationLatest
	}
}

// resolveLocked returns the concrete node a latest node currently points at.
func (g *DependencyGraph) resolveLocked(id NodeID) (NodeID, bool) {
	if !id.IsLatest() {
		return id, false
	}
	for to, rel := range g.out[id] {
		if rel == RelationLatest {
			return to, true
		}
	}
	return NodeID{}, false
}

// dependenciesOf returns what id references, with latest nodes replaced by the
// version they resolve to.
func (g *DependencyGraph) dependenciesOf(id NodeID) []NodeID {
	set := make(map[NodeID]Relation, len(g.out[id]))
	for to, rel := range g.out[id] {
		if target, ok := g.resolveLocked(to); ok && rel != RelationLatest {
			set[target] = rel
			continue
		}
		set[to] = rel
	}
	return sortedKeys(set)
}

// dependentsOf returns what references id. A reference to a subject's latest node
// counts as a reference to the newest version of that subject.
func (g *DependencyGraph) dependentsOf(id NodeID) []NodeID {
	set := make(map[NodeID]Relation, len(g.in[id]))
	for from, rel := range g.in[id] {
		if rel == RelationLatest {
			for dependent, r := range g.in[from] {
				set[dependent] = r
			}
			continue
		}
		set[from] = rel
	}
	return sortedKeys(set)
}

// AddEdge records that e.From depends on e.To, adding both nodes if needed. Adding
// an existing edge replaces its relation.
func (g *DependencyGraph) AddEdge(e Edge) error {
	if e.From.Subject == "" || e.To.Subject == "" {
		return fmt.Errorf("edge %s -> %s has an empty subject", e.From, e.To)
	}
	if !e.Relation.Valid() {
		return fmt.Errorf("edge %s -> %s has unknown relation %q", e.From, e.To, e.Relation)
	}

	g.mu.Lock()
	defer g.mu.Unlock()
	g.addNodeLocked(e.From)
	g.addNodeLocked(e.To)
	g.out[e.From][e.To] = e.Relation
	g.in[e.To][e.From] = e.Relation
	return nil
}

// RemoveEdge deletes the edge from -> to and reports whether it existed.
func (g *DependencyGraph) RemoveEdge(from, to NodeID) bool {
	g.mu.Lock()
	defer g.mu.Unlock()

	if _, ok := g.out[from][to]; !ok {
		return false
	}
	delete(g.out[from], to)
	delete(g.in[to], from)
	return true
}

// RemoveNode deletes a node and every edge touching it.
func (g *DependencyGraph) RemoveNode(id NodeID) bool {
	g.mu.Lock()
	defer g.mu.Unlock()

	if _, ok := g.nodes[id]; !ok {
		return false
	}
	for to := range g.out[id] {
		delete(g.in[to], id)
	}
	for from := range g.in[id] {
		delete(g.out[from], id)
	}
	delete(g.out, id)
	delete(g.in, id)
	delete(g.nodes, id)
	if !id.IsLatest() {
		delete(g.versions[id.Subject], id)
		g.relinkLatestLocked(id.Subject)
	}
	return true
}

// HasNode reports whether id is in the graph.
func (g *DependencyGraph) HasNode(id NodeID) bool {
	g.mu.RLock()
	defer g.mu.RUnlock()
	_, ok := g.nodes[id]
	return ok
}

// Nodes returns every node, sorted.
func (g *DependencyGraph) Nodes() []NodeID {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.nodesLocked()
}

func (g *DependencyGraph) nodesLocked() []NodeID {
	nodes := make([]NodeID, 0, len(g.nodes))
	for id := range g.nodes {
		nodes = append(nodes, id)
	}
	return sortNodes(nodes)
}

// Edges returns every edge, sorted by source then target.
func (g *DependencyGraph) Edges() []Edge {
	g.mu.RLock()
	defer g.mu.RUnlock()

	var edges []Edge
	for _, from := range g.nodesLocked() {
		for _, to := range sortedKeys(g.out[from]) {
			edges = append(edges, Edge{From: from, To: to, Relation: g.out[from][to]})
		}
	}
	return edges
}

// DirectDependencies returns the nodes id references, as declared.
func (g *DependencyGraph) DirectDependencies(id NodeID) []NodeID {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return sortedKeys(g.out[id])
}

// DirectDependents returns the nodes that reference id, including those that
// reference its subject's latest node while id is the newest version.
func (g *DependencyGraph) DirectDependents(id NodeID) []NodeID {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.dependentsOf(id)
}

// TransitiveDependencies returns every node reachable from id by following
// references, in depth-first order. id itself is excluded.
func (g *DependencyGraph) TransitiveDependencies(id NodeID) []NodeID {
	g.mu.RLock()
	defer g.mu.RUnlock()

	visited := map[NodeID]bool{id: true}
	var result []NodeID

	var traverse func(NodeID)
	traverse = func(n NodeID) {
		for _, dep := range sortedKeys(g.out[n]) {
			if visited[dep] {
				continue
			}
			visited[dep] = true
			result = append(result, dep)
			traverse(dep)
		}
	}
	traverse(id)

	return result
}

// TransitiveDependents returns every node that directly or indirectly references
// id, nearest first. This is the impact radius of a breaking change to id.
func (g *DependencyGraph) TransitiveDependents(id NodeID) []NodeID {
	g.mu.RLock()
	defer g.mu.RUnlock()
	nodes, _ := g.dependentsLocked(id)
	return nodes
}

// dependentsLocked walks incoming edges breadth first and returns the dependents
// together with the depth each was first reached at.
func (g *DependencyGraph) dependentsLocked(id NodeID) ([]NodeID, map[NodeID]int) {
	depth := map[NodeID]int{id: 0}
	var result []NodeID

	queue := []NodeID{id}
	for len(queue) > 0 {
		n := queue[0]
		queue = queue[1:]
		for _, dependent := range g.dependentsOf(n) {
			if _, seen := depth[dependent]; seen {
				continue
			}
			depth[dependent] = depth[n] + 1
			result = append(result, dependent)
			queue = append(queue, dependent)
		}
	}

	delete(depth, id)
	return result, depth
}

// Roots returns the nodes nothing depends on.
func (g *DependencyGraph) Roots() []NodeID {
	g.mu.RLock()
	defer g.mu.RUnlock()

	var roots []NodeID
	for _, id := range g.nodesLocked() {
		if len(g.in[id]) == 0 {
			roots = append(roots, id)
		}
	}
	return roots
}

// Leaves returns the nodes that depend on nothing.
func (g *DependencyGraph) Leaves() []NodeID {
	g.mu.RLock()
	defer g.mu.RUnlock()

	var leaves []NodeID
	for _, id := range g.nodesLocked() {
		if len(g.out[id]) == 0 {
			leaves = append(leaves, id)
		}
	}
	return leaves
}

// HasPath reports whether from depends on to, directly or transitively.
func (g *DependencyGraph) HasPath(from, to NodeID) bool {
	return g.ShortestPath(from, to) != nil
}

// ShortestPath returns the shortest chain of references from -> ... -> to, or nil
// when to is unreachable. A node trivially reaches itself.
func (g *DependencyGraph) ShortestPath(from, to NodeID) []NodeID {
	g.mu.RLock()
	defer g.mu.RUnlock()

	if _, ok := g.nodes[from]; !ok {
		return nil
	}
	if from == to {
		return []NodeID{from}
	}

	parent := map[NodeID]NodeID{from: from}
	queue := []NodeID{from}
	for len(queue) > 0 {
		n := queue[0]
		queue = queue[1:]
		for _, next := range sortedKeys(g.out[n]) {
			if _, seen := parent[next]; seen {
				continue
			}
			parent[next] = n
			if next == to {
				path := []NodeID{to}
				for cur := n; cur != from; cur = parent[cur] {
					path = append(path, cur)
				}
				path = append(path, from)
				for i, j := 0, len(path)-1; i < j; i, j = i+1, j-1 {
					path[i], path[j] = path[j], path[i]
				}
				return path
			}
			queue = append(queue, next)
		}
	}
	return nil
}

// DetectCycles returns the reference cycles in the graph. Each cycle is reported
// once, rotated to start at its smallest node. Cycles are legal in some formats but
// are logged as warnings so they get reviewed.
func (g *DependencyGraph) DetectCycles() [][]NodeID {
	g.mu.RLock()
	nodes := g.nodesLocked()
	cycles := g.cyclesLocked(nodes, nil)
	g.mu.RUnlock()

	g.metrics.SetDependencyCycles(len(cycles))
	for _, cycle := range cycles {
		g.logger.WithField("cycle", formatCycle(cycle)).Warn("dependency cycle detected")
	}
	return cycles
}

// cyclesLocked runs a depth-first search with a recursion stack over nodes. When
// within is non-nil only edges between members of within are followed.
func (g *DependencyGraph) cyclesLocked(nodes []NodeID, within map[NodeID]bool) [][]NodeID {
	visited := make(map[NodeID]bool)
	onStack := make(map[NodeID]int)
	var stack []NodeID
	seen := make(map[string]bool)
	var cycles [][]NodeID

	var visit func(NodeID)
	visit = func(n NodeID) {
		visited[n] = true
		onStack[n] = len(stack)
		stack = append(stack, n)

		for _, dep := range g.dependenciesOf(n) {
			if within != nil && !within[dep] {
				continue
			}
			if idx, ok := onStack[dep]; ok {
				cycle := canonicalCycle(stack[idx:])
				if key := formatCycle(cycle); !seen[key] {
					seen[key] = true
					cycles = append(cycles, cycle)
				}
				continue
			}
			if !visited[dep] {
				visit(dep)
			}
		}

		stack = stack[:len(stack)-1]
		delete(onStack, n)
	}

	for _, n := range nodes {
		if !visited[n] {
			visit(n)
		}
	}
	return cycles
}

// MigrationPath orders the affected nodes so every node comes after the nodes it
// depends on. Ties are broken by subject, then semantic version. Only edges between
// affected nodes constrain the order. If those edges form a cycle no total order
// exists and a *CycleError carrying the cycles is returned instead.
func (g *DependencyGraph) MigrationPath(affected []NodeID) ([]NodeID, error) {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.migrationPathLocked(affected)
}

func (g *DependencyGraph) migrationPathLocked(affected []NodeID) ([]NodeID, error) {
	members := make(map[NodeID]bool, len(affected))
	for _, id := range affected {
		members[id] = true
	}

	// pending counts the unresolved dependencies of each node inside the subset.
	pending := make(map[NodeID]int, len(members))
	var ready []NodeID
	for id := range members {
		for _, dep := range g.dependenciesOf(id) {
			if members[dep] {
				pending[id]++
			}
		}
		if pending[id] == 0 {
			ready = append(ready, id)
		}
	}
	sortNodes(ready)

	order := make([]NodeID, 0, len(members))
	for len(ready) > 0 {
		n := ready[0]
		ready = ready[1:]
		order = append(order, n)

		for _, dependent := range g.dependentsOf(n) {
			if !members[dependent] || dependent == n {
				continue
			}
			pending[dependent]--
			if pending[dependent] == 0 {
				ready = insertSorted(ready, dependent)
			}
		}
	}

	if len(order) < len(members) {
		var blocked []NodeID
		for id := range members {
			if pending[id] > 0 {
				blocked = append(blocked, id)
			}
		}
		return nil, &CycleError{Cycles: g.cyclesLocked(sortNodes(blocked), members)}
	}
	return order, nil
}

func insertSorted(nodes []NodeID, id NodeID) []NodeID {
	i := sort.Search(len(nodes), func(i int) bool { return id.Less(nodes[i]) })
	nodes = append(nodes, NodeID{})
	copy(nodes[i+1:], nodes[i:])
	nodes[i] = id
	return nodes
}

func sortedKeys(m map[NodeID]Relation) []NodeID {
	if len(m) == 0 {
		return nil
	}
	keys := make([]NodeID, 0, len(m))
	for id := range m {
		keys = append(keys, id)
	}
	return sortNodes(keys)
}

// canonicalCycle rotates a cycle so it starts at its smallest node.
func canonicalCycle(cycle []NodeID) []NodeID {
	start := 0
	for i := range cycle {
		if cycle[i].Less(cycle[start]) {
			start = i
		}
	}
	out := make([]NodeID, 0, len(cycle))
	out = append(out, cycle[start:]...)
	out = append(out, cycle[:start]...)
	return out
}

func formatCycle(cycle []NodeID) string {
	parts := make([]string, 0, len(cycle)+1)
	for _, id := range cycle {
		parts = append(parts, id.String())
	}
	if len(cycle) > 0 {
		parts = append(parts, cycle[0].String())
	}
	return strings.Join(parts, " -> ")
}
