package passes

import (
	"fmt"

	"github.com/regelum-go/regelum/diag"
	"github.com/regelum-go/regelum/ir"
	"github.com/regelum-go/regelum/node"
)

// Continuous checks the discrete-port contract every continuous wrapper
// must satisfy: a "dt" input with a positive default, and "state"/"y"
// outputs.
type Continuous struct{}

func (Continuous) Name() string { return "ContinuousPass" }

func (Continuous) Run(g *ir.Graph, sink *diag.Sink) {
	for _, nodeID := range sortedNodeIDs(g) {
		ni := g.Nodes[nodeID]
		if ni.Kind != node.KindContinuous {
			continue
		}
		dt, ok := ni.Inputs["dt"]
		if !ok || !dt.HasDefault || !isPositive(dt.Default) {
			sink.Error("CT001", fmt.Sprintf("continuous node %q must declare a \"dt\" input with a positive default", nodeID), nodeID)
		}
		if _, ok := ni.Outputs["state"]; !ok {
			sink.Error("CT002", fmt.Sprintf("continuous node %q must declare a \"state\" output", nodeID), nodeID)
		}
		if _, ok := ni.Outputs["y"]; !ok {
			sink.Error("CT003", fmt.Sprintf("continuous node %q must declare a \"y\" output", nodeID), nodeID)
		}
	}
}

func isPositive(v interface{}) bool {
	switch n := v.(type) {
	case float64:
		return n > 0
	case float32:
		return n > 0
	case int:
		return n > 0
	case int64:
		return n > 0
	default:
		return false
	}
}
