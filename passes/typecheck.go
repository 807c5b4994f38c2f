package passes

import (
	"fmt"

	"github.com/regelum-go/regelum/diag"
	"github.com/regelum-go/regelum/ir"
)

// TypeCheck warns on a declared-type mismatch across an edge; an
// undeclared (or "Any") type on either end suppresses the check.
type TypeCheck struct{}

func (TypeCheck) Name() string { return "TypeCheckPass" }

func (TypeCheck) Run(g *ir.Graph, sink *diag.Sink) {
	for _, e := range g.Edges {
		srcNode, ok := g.Nodes[e.SrcNode]
		if !ok {
			continue
		}
		dstNode, ok := g.Nodes[e.DstNode]
		if !ok {
			continue
		}
		srcPort, ok := srcNode.Outputs[e.SrcPort]
		if !ok {
			continue
		}
		dstPort, ok := dstNode.Inputs[e.DstPort]
		if !ok {
			continue
		}
		if !srcPort.TypeChecked() || !dstPort.TypeChecked() {
			continue
		}
		if srcPort.Type != dstPort.Type {
			sink.Warning("TYPE001",
				fmt.Sprintf("type mismatch: %s (%s) -> %s (%s)", e.SrcID(), srcPort.Type, e.DstID(), dstPort.Type),
				e.SrcNode)
		}
	}
}
