// Package ir defines the typed, frozen intermediate representation the
// static passes and the scheduler operate over. Building it from a live
// graph (build_ir) is a purely descriptive lowering: nothing in the IR
// refers to runtime objects except through stable string identifiers.
package ir

import (
	"fmt"
	"sort"
	"strings"

	"github.com/regelum-go/regelum/dslx"
	"github.com/regelum-go/regelum/node"
	"github.com/regelum-go/regelum/value"
	"github.com/regelum-go/regelum/variables"
)

// Edge is a directed connection from an output port to an input port.
type Edge struct {
	SrcNode, SrcPort string
	DstNode, DstPort string
}

func (e Edge) SrcID() string { return e.SrcNode + "." + e.SrcPort }
func (e Edge) DstID() string { return e.DstNode + "." + e.DstPort }

// PortInfo is the IR's descriptive copy of a node.Port.
type PortInfo struct {
	Name           string
	Type           string
	HasDefault     bool
	Default        value.Value
	Rate           *int
	IsDelayOutput  bool
	DelayStateName string
}

// TypeChecked reports whether t is a declared, checkable type name (empty
// and "Any" both mean "unchecked").
func (p *PortInfo) TypeChecked() bool { return p.Type != "" && p.Type != "Any" }

// ReactionInfo is the IR's descriptive copy of a node.Reaction, carrying
// the read/write sets the compiler needs without holding onto the live
// node.
type ReactionInfo struct {
	ID           string // unique within the owning node
	NodeID       string
	Ast          dslx.Expr
	OutputPort   string
	Writes       map[string]dslx.Expr
	ReadSet      map[string]struct{}
	WriteSet     map[string]struct{}
	NonZenoRank  string
	NonZenoLimit int
	Contract     *node.Contract
}

// NodeInfo is the IR's descriptive copy of a node.Node.
type NodeInfo struct {
	ID        string
	Kind      node.Kind
	Inputs    map[string]*PortInfo
	Outputs   map[string]*PortInfo
	Reactions []*ReactionInfo
	// Vars maps a state cell's node-local name (as it appears in a
	// ReactionInfo's ReadSet/WriteSet) to the owning global variable. Empty
	// for External and Continuous nodes.
	Vars map[string]*variables.Variable
}

// Config carries the compile-time configuration recognized by the core
// (spec §6): mode, the microstep cap, and tickwise_mode.
type Config struct {
	Mode          string // "strict" or "pragmatic"
	MaxMicrosteps int
	TickwiseMode  bool
}

func (c Config) Strict() bool { return c.Mode == "strict" }

// Graph is the frozen IR snapshot: nodes, edges, variables, and the active
// configuration, all referenced by stable identifiers.
type Graph struct {
	Nodes     map[string]*NodeInfo
	Edges     []Edge
	Variables map[string]*variables.Variable
	Config    Config
}

// Build performs the descriptive lowering from a live set of node.Node
// plus the edges connecting them into a frozen Graph.
func Build(nodes map[string]node.Node, edges []Edge, cfg Config) (*Graph, error) {
	g := &Graph{
		Nodes:     make(map[string]*NodeInfo, len(nodes)),
		Edges:     append([]Edge(nil), edges...),
		Variables: make(map[string]*variables.Variable),
		Config:    cfg,
	}

	for id, n := range nodes {
		ni := &NodeInfo{
			ID:      id,
			Kind:    n.Kind(),
			Inputs:  make(map[string]*PortInfo, len(n.Inputs())),
			Outputs: make(map[string]*PortInfo, len(n.Outputs())),
		}
		for name, p := range n.Inputs() {
			ni.Inputs[name] = &PortInfo{Name: name, Type: p.Type, HasDefault: p.HasDefault, Default: p.Default, Rate: p.Rate}
		}
		for name, p := range n.Outputs() {
			ni.Outputs[name] = &PortInfo{
				Name: name, Type: p.Type, Rate: p.Rate,
				IsDelayOutput: p.IsDelayOutput, DelayStateName: p.DelayStateName,
			}
		}
		for i, r := range n.Reactions() {
			ri := &ReactionInfo{
				ID:           fmt.Sprintf("%s#%d:%s", id, i, r.Name),
				NodeID:       id,
				Ast:          r.Ast,
				OutputPort:   r.OutputName,
				Writes:       r.Writes,
				NonZenoRank:  r.NonZenoRank,
				NonZenoLimit: r.NonZenoLimit,
				Contract:     r.Contract,
			}
			ri.ReadSet = r.ReadSet
			ri.WriteSet = r.WriteSet
			ni.Reactions = append(ni.Reactions, ri)
		}
		ni.Vars = n.StateVars()
		g.Nodes[id] = ni

		for _, v := range n.StateVars() {
			if existing, ok := g.Variables[v.Name]; ok && existing != v {
				return nil, fmt.Errorf("ir: duplicate variable name %q", v.Name)
			}
			g.Variables[v.Name] = v
		}
	}

	return g, nil
}

// DOT renders g as a Graphviz dot graph: one box per node labelled with
// its id and kind, one edge per connection (dashed for a delay output). This is a debugging aid over the compiled IR,
// not a façade visualization feature — it exposes nothing the compiler
// doesn't already compute.
func DOT(g *Graph) string {
	var sb strings.Builder
	sb.WriteString("digraph regelum {\n")
	sb.WriteString("  rankdir=LR;\n")

	ids := make([]string, 0, len(g.Nodes))
	for id := range g.Nodes {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	for _, id := range ids {
		ni := g.Nodes[id]
		label := fmt.Sprintf("%s\\n[%s]", id, ni.Kind)
		sb.WriteString(fmt.Sprintf("  %q [shape=box label=%q];\n", id, label))
	}
	for _, e := range g.Edges {
		style := ""
		if di, ok := g.Nodes[e.SrcNode]; ok {
			if pi, ok := di.Outputs[e.SrcPort]; ok && pi.IsDelayOutput {
				style = " [style=dashed label=delay]"
			}
		}
		sb.WriteString(fmt.Sprintf("  %q -> %q%s;\n", e.SrcNode, e.DstNode, style))
	}
	sb.WriteString("}\n")
	return sb.String()
}
