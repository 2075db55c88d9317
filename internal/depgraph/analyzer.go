package depgraph

import (
	"sort"
	"strings"

	"gonum.org/v1/gonum/graph"
	"gonum.org/v1/gonum/graph/simple"
	"gonum.org/v1/gonum/graph/topo"

	"github.com/efebarandurmaz/importgraph/internal/ir"
)

// Graph is an acyclic module dependency graph together with its derived
// structures. It is immutable once Assemble returns it.
type Graph struct {
	include  Include
	registry *ir.Registry

	nodes    []string
	ids      map[string]int64
	category map[string]ir.Category
	succ     map[string][]string
	inDegree map[string]int
	edges    []Edge

	dg        *simple.DirectedGraph
	topLevel  []string
	hierarchy []HierarchyEntry
	stats     GraphStats
}

// Assemble builds the graph of scan restricted to the included categories.
// Nodes are added in sorted canopy-key order and successors keep the order
// of the canopy. Any cycle among the included nodes is a *ir.StructuralError
// listing every elementary cycle.
func Assemble(scan *ir.Scan, include Include) (*Graph, error) {
	if !include.Any() {
		return nil, &ir.ConfigurationError{
			Field:  "graph.include",
			Reason: "at least one of common, uncommon or custom must be included",
		}
	}
	if scan == nil || scan.Canopy == nil || scan.Registry == nil {
		return nil, &ir.ConfigurationError{Field: "scan", Reason: "scan has not been built"}
	}

	g := &Graph{
		include:  include,
		registry: scan.Registry,
		ids:      make(map[string]int64),
		category: make(map[string]ir.Category),
		succ:     make(map[string][]string),
		inDegree: make(map[string]int),
		dg:       simple.NewDirectedGraph(),
	}

	admit := func(id string) (ir.Category, bool) {
		c, ok := scan.CategoryOf(id)
		return c, ok && include.Allows(c)
	}

	var selfLoops []string
	for _, key := range scan.Canopy.Keys() {
		c, ok := admit(key)
		if !ok {
			continue
		}
		g.addNode(key, c)
		for _, dep := range scan.Canopy.Deps(key) {
			dc, ok := admit(dep)
			if !ok {
				continue
			}
			g.addNode(dep, dc)
			if !g.addEdge(key, dep) {
				continue
			}
			if key == dep {
				selfLoops = append(selfLoops, key)
			}
		}
	}

	if cycles := g.cycles(selfLoops); len(cycles) > 0 {
		return nil, &ir.StructuralError{Cycles: cycles}
	}

	g.deriveTopLevel()
	g.deriveHierarchy()
	g.computeStats()
	return g, nil
}

func (g *Graph) addNode(id string, c ir.Category) {
	if _, ok := g.ids[id]; ok {
		return
	}
	nid := int64(len(g.nodes))
	g.ids[id] = nid
	g.nodes = append(g.nodes, id)
	g.category[id] = c
	g.dg.AddNode(simple.Node(nid))
}

// addEdge reports whether the edge is new.
func (g *Graph) addEdge(from, to string) bool {
	if g.HasEdge(from, to) {
		return false
	}
	g.succ[from] = append(g.succ[from], to)
	g.inDegree[to]++
	g.edges = append(g.edges, Edge{From: from, To: to})
	if from != to {
		// simple.DirectedGraph does not accept self edges; those are
		// reported as cycles separately.
		g.dg.SetEdge(g.dg.NewEdge(simple.Node(g.ids[from]), simple.Node(g.ids[to])))
	}
	return true
}

// cycles returns every elementary cycle, each rotated to start at its
// smallest module name, ordered by length and then by name.
func (g *Graph) cycles(selfLoops []string) [][]string {
	var out [][]string
	for _, n := range selfLoops {
		out = append(out, []string{n})
	}
	for _, c := range topo.DirectedCyclesIn(g.dg) {
		if len(c) > 1 && c[0].ID() == c[len(c)-1].ID() {
			c = c[:len(c)-1]
		}
		names := make([]string, len(c))
		for i, n := range c {
			names[i] = g.nodes[n.ID()]
		}
		out = append(out, rotateToMin(names))
	}
	sort.Slice(out, func(i, j int) bool {
		if len(out[i]) != len(out[j]) {
			return len(out[i]) < len(out[j])
		}
		return strings.Join(out[i], "\x00") < strings.Join(out[j], "\x00")
	})
	return out
}

func rotateToMin(cycle []string) []string {
	minIdx := 0
	for i, n := range cycle {
		if n < cycle[minIdx] {
			minIdx = i
		}
	}
	return append(append([]string(nil), cycle[minIdx:]...), cycle[:minIdx]...)
}

func (g *Graph) deriveTopLevel() {
	for _, n := range g.nodes {
		if g.inDegree[n] == 0 {
			g.topLevel = append(g.topLevel, n)
		}
	}
}

// deriveHierarchy walks the registry's custom modules in first-seen order.
// Every one that is a node gets an entry, even without successors.
func (g *Graph) deriveHierarchy() {
	for _, m := range g.registry.Names(ir.Custom) {
		if !g.HasNode(m) {
			continue
		}
		g.hierarchy = append(g.hierarchy, HierarchyEntry{
			Module:     m,
			Successors: append([]string{}, g.succ[m]...),
		})
	}
}

// Nodes returns the node identifiers in insertion order.
func (g *Graph) Nodes() []string { return append([]string(nil), g.nodes...) }

// Edges returns the edges in insertion order.
func (g *Graph) Edges() []Edge { return append([]Edge(nil), g.edges...) }

// Successors returns the direct successors of n in insertion order.
func (g *Graph) Successors(n string) []string { return append([]string(nil), g.succ[n]...) }

func (g *Graph) HasNode(n string) bool {
	_, ok := g.ids[n]
	return ok
}

func (g *Graph) HasEdge(from, to string) bool {
	for _, s := range g.succ[from] {
		if s == to {
			return true
		}
	}
	return false
}

func (g *Graph) InDegree(n string) int { return g.inDegree[n] }

func (g *Graph) OutDegree(n string) int { return len(g.succ[n]) }

// CategoryOf returns the import category of node n.
func (g *Graph) CategoryOf(n string) (ir.Category, bool) {
	c, ok := g.category[n]
	return c, ok
}

// TopLevel returns the nodes nothing else in the graph imports, in node
// order.
func (g *Graph) TopLevel() []string { return append([]string(nil), g.topLevel...) }

// IsTopLevel reports whether n has no incoming edges.
func (g *Graph) IsTopLevel(n string) bool { return g.HasNode(n) && g.inDegree[n] == 0 }

// Hierarchy returns the successor lists of the custom modules that are
// nodes, in registry order.
func (g *Graph) Hierarchy() []HierarchyEntry {
	out := make([]HierarchyEntry, len(g.hierarchy))
	for i, e := range g.hierarchy {
		out[i] = HierarchyEntry{Module: e.Module, Successors: append([]string{}, e.Successors...)}
	}
	return out
}

// Include returns the category filter the graph was assembled with.
func (g *Graph) Include() Include { return g.include }

// Registry returns the scan registry the graph was assembled from.
func (g *Graph) Registry() *ir.Registry { return g.registry }

func (g *Graph) Stats() GraphStats { return g.stats }

// NodeList returns every node with its category and top-level flag.
func (g *Graph) NodeList() []Node {
	out := make([]Node, len(g.nodes))
	for i, n := range g.nodes {
		out[i] = Node{ID: n, Category: g.category[n], TopLevel: g.inDegree[n] == 0}
	}
	return out
}

// TopologicalOrder lists the nodes so that every module precedes the
// modules it imports. Ties are broken by insertion order.
func (g *Graph) TopologicalOrder() []string {
	sorted, err := topo.SortStabilized(g.dg, func(nodes []graph.Node) {
		sort.Slice(nodes, func(i, j int) bool { return nodes[i].ID() < nodes[j].ID() })
	})
	if err != nil {
		// Assemble rejects cyclic graphs.
		panic("depgraph: topological sort of accepted graph failed: " + err.Error())
	}
	out := make([]string, len(sorted))
	for i, n := range sorted {
		out[i] = g.nodes[n.ID()]
	}
	return out
}

// computeStats computes graph metrics
func (g *Graph) computeStats() {
	s := GraphStats{
		TotalNodes:     len(g.nodes),
		TotalEdges:     len(g.edges),
		CategoryCounts: make(map[ir.Category]int, len(ir.Categories)),
		TopLevelCount:  len(g.topLevel),
	}
	for _, n := range g.nodes {
		s.CategoryCounts[g.category[n]]++
		if out := len(g.succ[n]); out > s.MaxFanOut {
			s.MaxFanOut = out
			s.HotspotNode = n
		}
		if in := g.inDegree[n]; in > s.MaxFanIn {
			s.MaxFanIn = in
			s.MostImported = n
		}
	}
	s.ConnectedComponents = g.countComponents()
	s.LongestChain = g.longestChain()
	g.stats = s
}

// countComponents counts weakly connected components via union-find
func (g *Graph) countComponents() int {
	parent := make(map[string]string)
	var find func(string) string
	find = func(x string) string {
		if parent[x] == "" {
			parent[x] = x
		}
		if parent[x] != x {
			parent[x] = find(parent[x])
		}
		return parent[x]
	}
	union := func(a, b string) {
		fa, fb := find(a), find(b)
		if fa != fb {
			parent[fa] = fb
		}
	}

	for _, n := range g.nodes {
		find(n)
	}
	for _, e := range g.edges {
		union(e.From, e.To)
	}

	roots := make(map[string]bool)
	for _, n := range g.nodes {
		roots[find(n)] = true
	}
	return len(roots)
}

// longestChain is the number of edges on the longest path, computed over
// the reverse topological order.
func (g *Graph) longestChain() int {
	order := g.TopologicalOrder()
	depth := make(map[string]int, len(order))
	longest := 0
	for i := len(order) - 1; i >= 0; i-- {
		n := order[i]
		for _, s := range g.succ[n] {
			if d := depth[s] + 1; d > depth[n] {
				depth[n] = d
			}
		}
		if depth[n] > longest {
			longest = depth[n]
		}
	}
	return longest
}
