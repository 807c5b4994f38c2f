package passes

import (
	"fmt"

	"github.com/regelum-go/regelum/diag"
	"github.com/regelum-go/regelum/ir"
	"github.com/regelum-go/regelum/variables"
)

// WriteConflict counts distinct writer reactions per state variable and
// flags multiwriter situations the variable's policy does not tolerate.
type WriteConflict struct{}

func (WriteConflict) Name() string { return "WriteConflictPass" }

func (WriteConflict) Run(g *ir.Graph, sink *diag.Sink) {
	writers := make(map[string]map[string]struct{}) // global var name -> set of reaction IDs

	for _, nodeID := range sortedNodeIDs(g) {
		ni := g.Nodes[nodeID]
		for _, r := range ni.Reactions {
			for localName := range r.WriteSet {
				v, ok := ni.Vars[localName]
				if !ok {
					continue
				}
				if writers[v.Name] == nil {
					writers[v.Name] = make(map[string]struct{})
				}
				writers[v.Name][r.ID] = struct{}{}
			}
		}
	}

	for _, varName := range sortedMapKeys(writers) {
		count := len(writers[varName])
		if count < 2 {
			continue
		}
		v := g.Variables[varName]
		if v == nil || v.Policy == nil {
			continue
		}
		if v.Policy.AllowsMultiwriter() {
			continue
		}
		switch v.Policy.(type) {
		case variables.LWWPolicyT:
			msg := fmt.Sprintf("variable %q has %d writers under a last-writer-wins policy", varName, count)
			if g.Config.Strict() {
				sink.Error("WRITE002", msg, varName)
			} else {
				sink.Warning("WRITE002", msg, varName)
			}
		default:
			sink.Error("WRITE001", fmt.Sprintf("variable %q has %d writers under a single-writer policy", varName, count), varName)
		}
	}
}

