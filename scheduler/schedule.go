// Package scheduler turns a compiled ir.Graph into an ordered execution
// schedule and drives it tick by tick: per-tick prepare/apply-externals/
// propose/resolve/commit phases, with a bounded microstep fixed-point loop
// for any node group that forms an instant-dependency cycle.
package scheduler

import (
	"sort"

	"github.com/regelum-go/regelum/internal/scc"
	"github.com/regelum-go/regelum/ir"
)

// Block is one unit of the execution schedule: either a single node with no
// self-dependency (runs once per tick) or a group of nodes forming an
// instant-dependency cycle (runs inside the microstep loop).
type Block struct {
	Members        []string
	NeedsMicrostep bool
}

// Schedule is the ordered list of blocks the runtime executes every tick.
type Schedule struct {
	Blocks []Block
}

// Build computes the execution schedule for g. Two graphs are derived from
// the same edge set for two different purposes:
//
//   - adj_full orders nodes for topological execution: a delay-output edge
//     is reversed, because its consumer reads the producer's buffer as it
//     stood at the START of the tick (the prefill), so the consumer may run
//     before the producer without seeing a stale value — this is an
//     inter-tick ordering constraint, not a same-tick data dependency.
//   - adj_scc identifies genuine same-tick (instant) dependency cycles. A
//     delay edge carries no same-tick dependency at all — spec's Ownership
//     section is explicit that a delay buffer is written at commit and read
//     at the next tick's prefill — so it is excluded here entirely rather
//     than reversed. Folding a reversed delay edge into this graph would
//     manufacture a same-tick self-loop out of the single most common
//     stateful pattern (a node reading its own delayed output), forcing it
//     through the microstep loop where it does not actually converge: the
//     node's own output lags its delay-buffer update by exactly one
//     iteration forever, since the read and the write that depends on it
//     are pinned to opposite ends of the same Step call. adj_scc is further
//     restricted by every node's no_instant_loop contract, then handed to
//     Tarjan for SCC decomposition.
//
// The condensation DAG (built from adj_full, so inter-tick buffer ordering
// is still respected) is topologically sorted with a deterministic Kahn
// scan — the ready queue is always broken by ascending SCC index, so two
// graphs with the same edges always produce the same schedule regardless of
// Go's map iteration order.
func Build(g *ir.Graph) (*Schedule, error) {
	nodeIDs := sortedIDs(g)

	adjFull := make(map[string][]string)
	adjInstant := make(map[string][]string)
	for _, e := range g.Edges {
		if srcPort, ok := g.Nodes[e.SrcNode].Outputs[e.SrcPort]; ok && srcPort.IsDelayOutput {
			adjFull[e.DstNode] = append(adjFull[e.DstNode], e.SrcNode)
			continue
		}
		adjFull[e.SrcNode] = append(adjFull[e.SrcNode], e.DstNode)
		adjInstant[e.SrcNode] = append(adjInstant[e.SrcNode], e.DstNode)
	}

	noInstantLoop := make(map[string]bool, len(g.Nodes))
	for id, ni := range g.Nodes {
		for _, r := range ni.Reactions {
			if r.Contract != nil && r.Contract.NoInstantLoop {
				noInstantLoop[id] = true
			}
		}
	}

	adjSCC := make(map[string][]string)
	for u, succs := range adjInstant {
		for _, v := range succs {
			if noInstantLoop[v] {
				continue
			}
			adjSCC[u] = append(adjSCC[u], v)
		}
	}

	sccGraph := scc.Graph{Nodes: nodeIDs, Adj: scc.SortedAdj(adjSCC)}
	components, index := scc.Tarjan(sccGraph)

	// Build the condensation DAG from adj_full (not adj_scc — the
	// no_instant_loop restriction only governs which edges count toward
	// cycle detection, not the topological ordering constraint itself).
	condAdj := make(map[int]map[int]struct{})
	for u, succs := range adjFull {
		cu := index[u]
		for _, v := range succs {
			cv := index[v]
			if cu == cv {
				continue
			}
			if condAdj[cu] == nil {
				condAdj[cu] = make(map[int]struct{})
			}
			condAdj[cu][cv] = struct{}{}
		}
	}

	indegree := make([]int, len(components))
	for _, succs := range condAdj {
		for cv := range succs {
			indegree[cv]++
		}
	}

	var ready []int
	for ci := range components {
		if indegree[ci] == 0 {
			ready = append(ready, ci)
		}
	}

	var order []int
	for len(ready) > 0 {
		sort.Ints(ready)
		next := ready[0]
		ready = ready[1:]
		order = append(order, next)
		succIDs := make([]int, 0, len(condAdj[next]))
		for cv := range condAdj[next] {
			succIDs = append(succIDs, cv)
		}
		sort.Ints(succIDs)
		for _, cv := range succIDs {
			indegree[cv]--
			if indegree[cv] == 0 {
				ready = append(ready, cv)
			}
		}
	}

	sched := &Schedule{}
	for _, ci := range order {
		members := append([]string(nil), components[ci].Members...)
		sort.Strings(members)
		needsMicrostep := len(members) > 1
		if !needsMicrostep {
			if has(adjSCC[members[0]], members[0]) {
				needsMicrostep = true
			}
		}
		sched.Blocks = append(sched.Blocks, Block{Members: members, NeedsMicrostep: needsMicrostep})
	}
	return sched, nil
}

func has(list []string, s string) bool {
	for _, x := range list {
		if x == s {
			return true
		}
	}
	return false
}

func sortedIDs(g *ir.Graph) []string {
	ids := make([]string, 0, len(g.Nodes))
	for id := range g.Nodes {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// microstepLimit is the minimum of the runtime's global microstep cap and
// every participating reaction's declared non-Zeno limit (0 meaning "use
// the global cap").
func microstepLimit(g *ir.Graph, members []string) int {
	limit := g.Config.MaxMicrosteps
	if limit <= 0 {
		limit = 20
	}
	for _, id := range members {
		for _, r := range g.Nodes[id].Reactions {
			if r.NonZenoLimit > 0 && r.NonZenoLimit < limit {
				limit = r.NonZenoLimit
			}
		}
	}
	return limit
}
