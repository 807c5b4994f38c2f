package passes

import (
	"fmt"
	"math/big"
	"sort"

	"github.com/regelum-go/regelum/diag"
	"github.com/regelum-go/regelum/ir"
)

// SDF solves the synchronous-dataflow balance equations over the subgraph
// of nodes carrying at least one rated port: for every edge u.out -> v.in,
// q(u)*produce(u->v) must equal q(v)*consume(u->v). It uses exact
// rationals (math/big.Rat) rather than floating point so that an
// inconsistent cycle is detected by equality, not by an epsilon guess —
// no example in the corpus ports a rational-arithmetic library, and the
// balance equations are exactly the domain math.Rat exists for, so the
// standard library is the right tool here rather than a gap to fill.
type SDF struct{}

func (SDF) Name() string { return "SDFPass" }

type sdfEdge struct {
	u, v       string
	produce    *big.Rat
	consume    *big.Rat
}

func (SDF) Run(g *ir.Graph, sink *diag.Sink) {
	qualifies := make(map[string]bool)
	for id, ni := range g.Nodes {
		for _, p := range ni.Inputs {
			if p.Rate != nil {
				qualifies[id] = true
			}
		}
		for _, p := range ni.Outputs {
			if p.Rate != nil {
				qualifies[id] = true
			}
		}
	}
	if len(qualifies) == 0 {
		return
	}

	undirected := make(map[string][]sdfEdge)
	var edges []sdfEdge
	for _, e := range g.Edges {
		if !qualifies[e.SrcNode] || !qualifies[e.DstNode] {
			continue
		}
		srcPort := g.Nodes[e.SrcNode].Outputs[e.SrcPort]
		dstPort := g.Nodes[e.DstNode].Inputs[e.DstPort]
		ed := sdfEdge{u: e.SrcNode, v: e.DstNode, produce: rateOf(srcPort.Rate), consume: rateOf(dstPort.Rate)}
		edges = append(edges, ed)
		undirected[e.SrcNode] = append(undirected[e.SrcNode], ed)
		undirected[e.DstNode] = append(undirected[e.DstNode], ed)
	}

	nodes := make([]string, 0, len(qualifies))
	for id := range qualifies {
		nodes = append(nodes, id)
	}
	sort.Strings(nodes)

	visited := make(map[string]bool, len(nodes))
	for _, seed := range nodes {
		if visited[seed] {
			continue
		}
		component := collectComponent(seed, undirected, visited)
		q, inconsistent := solveComponent(component, undirected)
		if inconsistent {
			sort.Strings(component)
			sink.Error("SDF001", fmt.Sprintf("inconsistent firing counts in multi-rate subgraph %v", component), component[0])
			continue
		}
		if !allNormalizedToOne(q) {
			sort.Strings(component)
			sink.Warning("SDF001", fmt.Sprintf("multi-rate subgraph %v requires a multi-rate schedule (single-clock execution assumes all firing counts are 1)", component), component[0])
		}
	}
}

func rateOf(r *int) *big.Rat {
	if r == nil {
		return big.NewRat(1, 1)
	}
	return big.NewRat(int64(*r), 1)
}

func collectComponent(seed string, undirected map[string][]sdfEdge, visited map[string]bool) []string {
	var component []string
	queue := []string{seed}
	visited[seed] = true
	for len(queue) > 0 {
		u := queue[0]
		queue = queue[1:]
		component = append(component, u)
		for _, e := range undirected[u] {
			next := e.v
			if next == u {
				next = e.u
			}
			if !visited[next] {
				visited[next] = true
				queue = append(queue, next)
			}
		}
	}
	return component
}

// solveComponent assigns a firing count to every node in component by
// relaxing the balance equations along every edge until a fixed point (or
// an edge disagrees with an already-assigned value, the inconsistency the
// pass reports).
func solveComponent(component []string, undirected map[string][]sdfEdge) (map[string]*big.Rat, bool) {
	q := make(map[string]*big.Rat, len(component))
	if len(component) == 0 {
		return q, false
	}
	sort.Strings(component)
	q[component[0]] = big.NewRat(1, 1)

	for pass := 0; pass < len(component)+1; pass++ {
		changed := false
		for _, u := range component {
			for _, e := range undirected[u] {
				qu, uKnown := q[e.u]
				qv, vKnown := q[e.v]
				switch {
				case uKnown && !vKnown:
					q[e.v] = new(big.Rat).Quo(new(big.Rat).Mul(qu, e.produce), e.consume)
					changed = true
				case vKnown && !uKnown:
					q[e.u] = new(big.Rat).Quo(new(big.Rat).Mul(qv, e.consume), e.produce)
					changed = true
				case uKnown && vKnown:
					expected := new(big.Rat).Quo(new(big.Rat).Mul(qu, e.produce), e.consume)
					if expected.Cmp(qv) != 0 {
						return q, true
					}
				}
			}
		}
		if !changed {
			break
		}
	}
	return q, false
}

func allNormalizedToOne(q map[string]*big.Rat) bool {
	one := big.NewRat(1, 1)
	for _, v := range q {
		if v.Cmp(one) != 0 {
			return false
		}
	}
	return true
}
