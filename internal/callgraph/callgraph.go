package callgraph

import (
	"sort"

	"sable/internal/mir"
	"sable/internal/types"
)

// CallGraph is the direct-call graph of the local crate: one node per local
// function with a body, one edge per direct call terminator. Node order is
// deterministic (sorted def ids), so SCC iteration is too.
type CallGraph struct {
	defs  []types.DefID
	index map[types.DefID]NodeIndex
	edges [][]NodeIndex
}

// NodeIndex identifies a node of the call graph.
type NodeIndex int

// Build constructs the call graph of the given body map. Calls into
// functions without a local body still get a node so SCC membership stays
// meaningful, but contribute no outgoing edges.
func Build(bodies map[types.DefID]*mir.Body) *CallGraph {
	g := &CallGraph{index: make(map[types.DefID]NodeIndex)}

	defs := make([]types.DefID, 0, len(bodies))
	for def := range bodies {
		defs = append(defs, def)
	}
	sort.Slice(defs, func(i, j int) bool {
		if defs[i].Crate != defs[j].Crate {
			return defs[i].Crate < defs[j].Crate
		}
		return defs[i].Index < defs[j].Index
	})
	for _, def := range defs {
		g.addNode(def)
	}

	for _, def := range defs {
		body := bodies[def]
		from := g.index[def]
		for bb := range body.Blocks {
			term := body.Blocks[bb].Terminator
			if term == nil {
				continue
			}
			callee, _, ok := mir.DirectCallee(term.Kind)
			if !ok {
				continue
			}
			g.edges[from] = append(g.edges[from], g.addNode(callee))
		}
	}
	return g
}

func (g *CallGraph) addNode(def types.DefID) NodeIndex {
	if idx, ok := g.index[def]; ok {
		return idx
	}
	idx := NodeIndex(len(g.defs))
	g.defs = append(g.defs, def)
	g.index[def] = idx
	g.edges = append(g.edges, nil)
	return idx
}

// Len returns the node count.
func (g *CallGraph) Len() int { return len(g.defs) }

// DefID returns the function a node stands for.
func (g *CallGraph) DefID(node NodeIndex) types.DefID { return g.defs[node] }

// SCCIter returns the strongly-connected components in topological order,
// callees before callers, so inlining processes leaves first.
func (g *CallGraph) SCCIter() [][]NodeIndex {
	t := &tarjan{
		graph:   g,
		indexOf: make([]int, len(g.defs)),
		lowlink: make([]int, len(g.defs)),
		onStack: make([]bool, len(g.defs)),
	}
	for i := range t.indexOf {
		t.indexOf[i] = -1
	}
	for v := NodeIndex(0); int(v) < len(g.defs); v++ {
		if t.indexOf[v] < 0 {
			t.strongConnect(v)
		}
	}
	// Tarjan emits each component before any component that calls into
	// it, which is exactly the leaves-first order the inliner wants.
	return t.sccs
}

type tarjan struct {
	graph   *CallGraph
	counter int
	indexOf []int
	lowlink []int
	onStack []bool
	stack   []NodeIndex
	sccs    [][]NodeIndex
}

func (t *tarjan) strongConnect(v NodeIndex) {
	t.indexOf[v] = t.counter
	t.lowlink[v] = t.counter
	t.counter++
	t.stack = append(t.stack, v)
	t.onStack[v] = true

	for _, w := range t.graph.edges[v] {
		if t.indexOf[w] < 0 {
			t.strongConnect(w)
			if t.lowlink[w] < t.lowlink[v] {
				t.lowlink[v] = t.lowlink[w]
			}
		} else if t.onStack[w] && t.indexOf[w] < t.lowlink[v] {
			t.lowlink[v] = t.indexOf[w]
		}
	}

	if t.lowlink[v] == t.indexOf[v] {
		var scc []NodeIndex
		for {
			w := t.stack[len(t.stack)-1]
			t.stack = t.stack[:len(t.stack)-1]
			t.onStack[w] = false
			scc = append(scc, w)
			if w == v {
				break
			}
		}
		t.sccs = append(t.sccs, scc)
	}
}
