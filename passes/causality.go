package passes

import (
	"fmt"
	"sort"
	"strings"

	"github.com/regelum-go/regelum/diag"
	"github.com/regelum-go/regelum/internal/scc"
	"github.com/regelum-go/regelum/interp"
	"github.com/regelum-go/regelum/ir"
	"github.com/regelum-go/regelum/node"
	"github.com/regelum-go/regelum/ternary"
	"github.com/regelum-go/regelum/value"
)

// Causality builds the instant-dependency graph (reactions, state
// variables, and ports as vertices), finds its strongly connected
// components, and proves each one either terminates by construction or
// flags why it cannot.
type Causality struct{}

func (Causality) Name() string { return "CausalityPass" }

const (
	reactionPrefix = "R:"
	varPrefix      = "V:"
	portPrefix     = "P:"
)

type causalGraph struct {
	adj         map[string][]string
	reactionOf  map[string]*ir.ReactionInfo
	reactionNode map[string]*ir.NodeInfo
}

func (Causality) Run(g *ir.Graph, sink *diag.Sink) {
	cg := buildCausalGraph(g)

	gr := scc.Graph{Nodes: scc.SortedNodes(cg.adj), Adj: scc.SortedAdj(cg.adj)}
	components, _ := scc.Tarjan(gr)

	for _, comp := range components {
		members := comp.Members
		if len(members) > 1 {
			checkSCC(g, cg, members, sink, false)
			continue
		}
		elem := members[0]
		if !containsString(cg.adj[elem], elem) {
			continue // not a self-loop: a trivial, acyclic singleton
		}
		if !strings.HasPrefix(elem, reactionPrefix) {
			continue // matches the original implementation's behavior: a
			// self-loop on a bare port/variable vertex (never produced by
			// this graph's construction) is not diagnosed.
		}
		ni := cg.reactionNode[elem]
		if ni.Kind != node.KindCore {
			sink.Error("CAUS002", fmt.Sprintf("self-loop on non-core reaction %s", stripPrefix(elem)), stripPrefix(elem))
			continue
		}
		checkSCC(g, cg, members, sink, true)
	}
}

func containsString(ss []string, s string) bool {
	for _, v := range ss {
		if v == s {
			return true
		}
	}
	return false
}

func stripPrefix(id string) string {
	if i := strings.IndexByte(id, ':'); i >= 0 {
		return id[i+1:]
	}
	return id
}

// buildCausalGraph constructs the instant-dependency graph described in
// the causality pass: edges from input ports and non-delay-buffer
// variables to the reactions that read them (skipped when the reading
// reaction's contract declares no_instant_loop), from reactions to the
// variables and non-delay output ports they write, and from producer
// output ports to consumer input ports (skipped for delay outputs). The
// synthetic reaction of an external or continuous node is treated as
// reading every input and writing every output of its node.
func buildCausalGraph(g *ir.Graph) *causalGraph {
	cg := &causalGraph{
		adj:          make(map[string][]string),
		reactionOf:   make(map[string]*ir.ReactionInfo),
		reactionNode: make(map[string]*ir.NodeInfo),
	}
	add := func(from, to string) { cg.adj[from] = append(cg.adj[from], to) }

	for _, nodeID := range sortedNodeIDs(g) {
		ni := g.Nodes[nodeID]
		for _, r := range ni.Reactions {
			rid := reactionPrefix + r.ID
			cg.reactionOf[rid] = r
			cg.reactionNode[rid] = ni
			noLoop := r.Contract != nil && r.Contract.NoInstantLoop

			if ni.Kind != node.KindCore {
				for _, pn := range sortedPortNames(ni.Inputs) {
					if !noLoop {
						add(portPrefix+nodeID+"."+pn, rid)
					}
				}
				for _, pn := range sortedPortNames(ni.Outputs) {
					add(rid, portPrefix+nodeID+"."+pn)
				}
				continue
			}

			for _, localName := range sortedSet(r.ReadSet) {
				if _, isInput := ni.Inputs[localName]; isInput {
					pid := portPrefix + nodeID + "." + localName
					if !noLoop {
						add(pid, rid)
					}
					continue
				}
				if v, ok := ni.Vars[localName]; ok && !v.IsDelayBuffer {
					vid := varPrefix + v.Name
					if !noLoop {
						add(vid, rid)
					}
				}
			}

			for _, localName := range sortedSet(r.WriteSet) {
				if v, ok := ni.Vars[localName]; ok {
					add(rid, varPrefix+v.Name)
				}
			}
			if r.OutputPort != "" {
				if p, ok := ni.Outputs[r.OutputPort]; ok && !p.IsDelayOutput {
					add(rid, portPrefix+nodeID+"."+r.OutputPort)
				}
			}
		}
	}

	for _, e := range g.Edges {
		srcNode, ok := g.Nodes[e.SrcNode]
		if !ok {
			continue
		}
		srcPort, ok := srcNode.Outputs[e.SrcPort]
		if !ok || srcPort.IsDelayOutput {
			continue
		}
		add(portPrefix+e.SrcID(), portPrefix+e.DstID())
	}

	return cg
}

func sortedSet(m map[string]struct{}) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

// checkSCC applies the four-rule decision procedure to one non-trivial (or
// self-looping singleton) SCC.
func checkSCC(g *ir.Graph, cg *causalGraph, members []string, sink *diag.Sink, selfLoop bool) {
	loc := sccLocation(members)

	var reactionIDs []string
	for _, m := range members {
		if strings.HasPrefix(m, reactionPrefix) {
			reactionIDs = append(reactionIDs, m)
		}
	}
	sort.Strings(reactionIDs)

	for _, rid := range reactionIDs {
		if cg.reactionNode[rid].Kind == node.KindExternal || cg.reactionNode[rid].Kind == node.KindContinuous {
			sink.Error("CAUS001", fmt.Sprintf("algebraic cycle involving opaque code: %s", loc), loc)
			return
		}
	}

	for _, m := range members {
		if !strings.HasPrefix(m, varPrefix) {
			continue
		}
		v := g.Variables[stripPrefix(m)]
		if v != nil && v.Policy != nil && !v.Policy.IsMonotone() {
			sink.Error("CAUS004", fmt.Sprintf("SCC touches non-monotone variable %s: %s", v.Name, loc), loc)
			return
		}
	}

	for _, rid := range reactionIDs {
		if cg.reactionOf[rid].NonZenoRank != "" {
			return // rule 3: accept on declared non-Zeno rank
		}
	}

	if err := constructiveCheck(g, cg, members); err != nil {
		code := "CAUS003"
		if selfLoop {
			sink.Error(code, fmt.Sprintf("non-constructive self-loop %s: %v", loc, err), loc)
		} else {
			sink.Error(code, fmt.Sprintf("non-constructive cycle %s: %v", loc, err), loc)
		}
	}
}

func sccLocation(members []string) string {
	out := make([]string, len(members))
	for i, m := range members {
		out[i] = stripPrefix(m)
	}
	sort.Strings(out)
	return strings.Join(out, ",")
}

// constructiveCheck runs the three-valued fixed-point iteration over one
// SCC: every member starts at Bottom, outside-SCC dependencies use the
// declared baseline (variable init, port default, or Absent), and success
// requires every SCC variable/port to reach Present within the iteration
// budget.
func constructiveCheck(g *ir.Graph, cg *causalGraph, members []string) error {
	memberSet := make(map[string]struct{}, len(members))
	for _, m := range members {
		memberSet[m] = struct{}{}
	}

	budget, unbounded := heightBudget(g, members)
	if unbounded {
		budget = 20
	}

	env := make(map[string]ternary.V3)
	for _, m := range members {
		env[m] = ternary.BottomV
	}

	resolve := func(localName string, ni *ir.NodeInfo, nodeID string) ternary.V3 {
		if _, isInput := ni.Inputs[localName]; isInput {
			pid := portPrefix + nodeID + "." + localName
			if _, inSCC := memberSet[pid]; inSCC {
				return env[pid]
			}
			p := ni.Inputs[localName]
			if p.HasDefault {
				return ternary.FromConcrete(p.Default)
			}
			return ternary.AbsentV()
		}
		if v, ok := ni.Vars[localName]; ok {
			vid := varPrefix + v.Name
			if _, inSCC := memberSet[vid]; inSCC {
				return env[vid]
			}
			if v.HasInit {
				return ternary.FromConcrete(v.Init)
			}
			return ternary.AbsentV()
		}
		return ternary.AbsentV()
	}

	for iter := 0; iter < budget; iter++ {
		changed := false
		for _, m := range members {
			if !strings.HasPrefix(m, reactionPrefix) {
				continue
			}
			r := cg.reactionOf[m]
			ni := cg.reactionNode[m]
			nodeID := r.NodeID

			envV3 := make(interp.EnvV3, len(r.ReadSet))
			for name := range r.ReadSet {
				envV3[name] = resolve(name, ni, nodeID)
			}

			if r.OutputPort != "" {
				val := interp.EvalV3(r.Ast, envV3)
				pid := portPrefix + nodeID + "." + r.OutputPort
				if _, inSCC := memberSet[pid]; inSCC {
					grew, err := joinInto(env, pid, val)
					if err != nil {
						return fmt.Errorf("%s: %v", stripPrefix(pid), err)
					}
					if grew {
						changed = true
					}
				}
			}
			for stateName, expr := range r.Writes {
				v, ok := ni.Vars[stateName]
				if !ok {
					continue
				}
				vid := varPrefix + v.Name
				if _, inSCC := memberSet[vid]; !inSCC {
					continue
				}
				val := interp.EvalV3(expr, envV3)
				grew, err := joinInto(env, vid, val)
				if err != nil {
					return fmt.Errorf("%s: %v", stripPrefix(vid), err)
				}
				if grew {
					changed = true
				}
			}
		}
		if !changed {
			break
		}
	}

	for _, m := range members {
		if strings.HasPrefix(m, reactionPrefix) {
			continue
		}
		if !env[m].IsPresent() {
			return fmt.Errorf("%s did not converge to Present (%s)", stripPrefix(m), env[m])
		}
	}
	return nil
}

func joinInto(env map[string]ternary.V3, key string, val ternary.V3) (bool, error) {
	joined, err := ternary.Join(env[key], val)
	if err != nil {
		// A genuine conflict is failure, not silent fallback: the caller
		// aborts the constructive check with this error.
		return false, err
	}
	before := env[key]
	env[key] = joined
	return before.Presence() != joined.Presence() || !value.Equal(presentValue(before), presentValue(joined)), nil
}

func presentValue(v ternary.V3) value.Value {
	if v.IsPresent() {
		return v.Value()
	}
	return value.Absent
}

// heightBudget sums HeightBound() across every state variable member of
// the SCC; unbounded is true if any member's policy has no bound, in
// which case the caller falls back to the constant 20-iteration cap.
func heightBudget(g *ir.Graph, members []string) (sum int, unbounded bool) {
	for _, m := range members {
		if !strings.HasPrefix(m, varPrefix) {
			continue
		}
		v := g.Variables[stripPrefix(m)]
		if v == nil || v.Policy == nil {
			continue
		}
		bound, ok := v.Policy.HeightBound()
		if !ok {
			return 0, true
		}
		sum += bound
	}
	return 1 + sum, false
}
