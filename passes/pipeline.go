// Package passes implements the compiler's static analysis passes: each
// one inspects the frozen IR and annotates a diag.Sink, never mutating the
// IR's semantics. Compilation succeeds iff the sink accumulates no error
// diagnostic across every pass.
package passes

import (
	"github.com/regelum-go/regelum/diag"
	"github.com/regelum-go/regelum/ir"
)

// Pass is one static analysis stage.
type Pass interface {
	Name() string
	Run(g *ir.Graph, sink *diag.Sink)
}

// Pipeline is the fixed pass order the compiler runs, matching the
// specification's enumeration: Structural, TypeCheck, WriteConflict,
// Causality, Init, NonZeno, Continuous, SDF.
func Pipeline() []Pass {
	return []Pass{
		Structural{},
		TypeCheck{},
		WriteConflict{},
		Causality{},
		Init{},
		NonZeno{},
		Continuous{},
		SDF{},
	}
}

// Run executes every pass in Pipeline order against g, returning the
// accumulated diagnostics sink. Every pass always runs, even after an
// earlier pass records an error — the report should surface everything
// wrong with the graph in one compile, not stop at the first failure.
func Run(g *ir.Graph) *diag.Sink {
	sink := diag.NewSink()
	for _, p := range Pipeline() {
		p.Run(g, sink)
	}
	return sink
}
