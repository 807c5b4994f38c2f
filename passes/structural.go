package passes

import (
	"fmt"
	"sort"

	"github.com/regelum-go/regelum/diag"
	"github.com/regelum-go/regelum/ir"
)

// Structural checks every input port has exactly zero-or-one producer and,
// if zero, a default.
type Structural struct{}

func (Structural) Name() string { return "StructuralPass" }

func (Structural) Run(g *ir.Graph, sink *diag.Sink) {
	producers := make(map[string]int)
	for _, e := range g.Edges {
		producers[e.DstID()]++
	}

	for _, nodeID := range sortedNodeIDs(g) {
		ni := g.Nodes[nodeID]
		for _, portName := range sortedPortNames(ni.Inputs) {
			p := ni.Inputs[portName]
			id := nodeID + "." + portName
			count := producers[id]
			switch {
			case count == 0 && !p.HasDefault:
				sink.Error("STRUCT001", fmt.Sprintf("input %q has no producer and no default", id), id)
			case count >= 2:
				sink.Error("STRUCT002", fmt.Sprintf("input %q has %d producer edges (fan-in)", id, count), id)
			}
		}
	}
}

func sortedNodeIDs(g *ir.Graph) []string {
	ids := make([]string, 0, len(g.Nodes))
	for id := range g.Nodes {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

func sortedPortNames[V any](m map[string]V) []string { return sortedMapKeys(m) }

// sortedMapKeys returns m's keys in sorted order — used throughout passes
// to turn map iteration into a deterministic sequence.
func sortedMapKeys[V any](m map[string]V) []string {
	names := make([]string, 0, len(m))
	for n := range m {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}
