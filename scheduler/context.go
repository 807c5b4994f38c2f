package scheduler

import (
	"github.com/regelum-go/regelum/node"
	"github.com/regelum-go/regelum/value"
	"github.com/regelum-go/regelum/variables"
)

// nodeCtx is the node.IntentContext a single node.Step call sees. It reads
// and writes through the runtime's shared port-value map (the "running
// snapshot" spec §4.6 describes), while variable reads/writes go through
// whichever baseline map the caller supplies: the committed store directly
// for a singleton block, or a microstep loop's per-iteration working copy
// for an SCC block. Every write is appended to intents rather than applied
// in place — committing state is the resolve/commit phases' job, never the
// node's.
type nodeCtx struct {
	rt      *Runtime
	nodeID  string
	vars    map[string]value.Value
	intents *[]variables.Intent
}

func (c *nodeCtx) Read(p *node.Port) value.Value {
	return c.rt.readPort(p)
}

func (c *nodeCtx) Write(p *node.Port, v value.Value) {
	c.rt.portState[p.ID()] = v
}

func (c *nodeCtx) ReadVar(name string) value.Value {
	if v, ok := c.vars[name]; ok {
		return v
	}
	if vr, ok := c.rt.g.Variables[name]; ok {
		return vr.Init
	}
	return value.Absent
}

func (c *nodeCtx) WriteVar(name string, v value.Value) {
	vr := c.rt.g.Variables[name]
	*c.intents = append(*c.intents, variables.Intent{Variable: vr, Producer: c.nodeID, Value: v})
}

var _ node.IntentContext = (*nodeCtx)(nil)
