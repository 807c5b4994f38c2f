package passes

import (
	"fmt"

	"github.com/regelum-go/regelum/diag"
	"github.com/regelum-go/regelum/ir"
)

// Init enforces, in strict mode, that every state variable declares an
// initial value and that every delay buffer declares an explicit default.
// In pragmatic mode a missing init is permitted (the variable reads as
// Absent until first written).
type Init struct{}

func (Init) Name() string { return "InitPass" }

func (Init) Run(g *ir.Graph, sink *diag.Sink) {
	if !g.Config.Strict() {
		return
	}
	for _, name := range sortedMapKeys(g.Variables) {
		v := g.Variables[name]
		if v.HasInit {
			continue
		}
		if v.IsDelayBuffer {
			sink.Error("INIT002", fmt.Sprintf("delay buffer %q has no explicit default", name), name)
		} else {
			sink.Error("INIT001", fmt.Sprintf("variable %q has no initial value", name), name)
		}
	}
}
