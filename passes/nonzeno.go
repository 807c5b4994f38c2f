package passes

import (
	"fmt"

	"github.com/regelum-go/regelum/diag"
	"github.com/regelum-go/regelum/ir"
)

// NonZeno flags a reaction that both reads and writes the same non-delay
// state variable without declaring a non-Zeno rank — such a reaction can
// fire itself forever within one tick with no termination certificate.
type NonZeno struct{}

func (NonZeno) Name() string { return "NonZenoPass" }

func (NonZeno) Run(g *ir.Graph, sink *diag.Sink) {
	for _, nodeID := range sortedNodeIDs(g) {
		ni := g.Nodes[nodeID]
		for _, r := range ni.Reactions {
			if r.NonZenoRank != "" {
				continue
			}
			for localName := range r.WriteSet {
				if _, reads := r.ReadSet[localName]; !reads {
					continue
				}
				v, ok := ni.Vars[localName]
				if !ok || v.IsDelayBuffer {
					continue
				}
				sink.Error("ZEN001", fmt.Sprintf("reaction %s reads and writes %q without a declared non-Zeno rank", r.ID, v.Name), r.ID)
			}
		}
	}
}
