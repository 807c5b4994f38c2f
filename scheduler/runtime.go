package scheduler

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/regelum-go/regelum/internal/rerrors"
	"github.com/regelum-go/regelum/internal/rlog"
	"github.com/regelum-go/regelum/ir"
	"github.com/regelum-go/regelum/node"
	"github.com/regelum-go/regelum/value"
	"github.com/regelum-go/regelum/variables"
)

// Snapshot is the observable state of a runtime immediately after a tick:
// the committed variable store, the last tick's port values, the logical
// time, and the tick counter.
type Snapshot struct {
	Tick      int64
	Time      float64
	Variables map[string]value.Value
	Ports     map[string]value.Value
}

// Runtime executes a compiled Schedule against a set of live nodes. It owns
// the two pieces of state the scheduler's context API mutates on the
// node's behalf: the persistent variable store (across ticks) and the
// tick-scoped port-value map (reset every tick).
type Runtime struct {
	g          *ir.Graph
	nodesByID  map[string]node.Node
	schedule   *Schedule
	log        *rlog.Logger
	committed    map[string]value.Value
	portState    map[string]value.Value
	prevPorts    map[string]value.Value
	overrides    map[string]value.Value
	producerOf   map[string]string
	tick         int64
	logicalTime  float64
}

// New constructs a Runtime from a compiled graph, its schedule, and the
// live node set keyed by node id (the same map passed to ir.Build).
func New(g *ir.Graph, nodes map[string]node.Node, sched *Schedule, log *rlog.Logger) *Runtime {
	if log == nil {
		log = rlog.Default
	}
	committed := make(map[string]value.Value, len(g.Variables))
	for name, v := range g.Variables {
		committed[name] = v.Init
	}
	producerOf := make(map[string]string, len(g.Edges))
	for _, e := range g.Edges {
		producerOf[e.DstID()] = e.SrcID()
	}
	return &Runtime{
		g:          g,
		nodesByID:  nodes,
		schedule:   sched,
		log:        log,
		committed:  committed,
		producerOf: producerOf,
		prevPorts:  make(map[string]value.Value),
	}
}

// Variables returns a copy of the current committed variable store,
// keyed by global variable name.
func (rt *Runtime) Variables() map[string]value.Value {
	out := make(map[string]value.Value, len(rt.committed))
	for k, v := range rt.committed {
		out[k] = v
	}
	return out
}

// RunTick executes one synchronous tick: prepare, apply externals, propose
// (driving every schedule block, including any microstep loops, to a fixed
// point), resolve, and commit. overrides forces specific port values this
// tick (keyed by "nodeID.portName"); dt, if non-nil, is additionally
// written to every node's "dt" input lacking an explicit override and
// advances the runtime's logical clock on commit.
func (rt *Runtime) RunTick(ctx context.Context, overrides map[string]value.Value, dt *float64) (Snapshot, error) {
	correlationID := uuid.NewString()
	if err := ctx.Err(); err != nil {
		return Snapshot{}, err
	}

	rt.portState = make(map[string]value.Value)
	rt.overrides = make(map[string]value.Value, len(overrides))
	for k, v := range overrides {
		rt.overrides[k] = v
	}

	rt.prepare()
	rt.applyExternals(dt)

	var tickIntents []variables.Intent
	for _, block := range rt.schedule.Blocks {
		if err := ctx.Err(); err != nil {
			return Snapshot{}, err
		}
		if !block.NeedsMicrostep {
			nid := block.Members[0]
			c := &nodeCtx{rt: rt, nodeID: nid, vars: rt.committed, intents: &tickIntents}
			if err := rt.step(nid, c); err != nil {
				return Snapshot{}, err
			}
			continue
		}
		iterIntents, err := rt.runMicrostep(correlationID, block)
		if err != nil {
			return Snapshot{}, err
		}
		tickIntents = append(tickIntents, iterIntents...)
	}

	updates, err := resolveStep(tickIntents)
	if err != nil {
		return Snapshot{}, err
	}
	for name, v := range updates {
		rt.committed[name] = v
	}
	rt.tick++
	if dt != nil {
		rt.logicalTime += *dt
	}
	rt.log.TickCommitted(correlationID, rt.tick, len(updates))

	rt.prevPorts = rt.portState

	return rt.snapshot(), nil
}

func (rt *Runtime) step(nodeID string, ctx node.IntentContext) error {
	n := rt.nodesByID[nodeID]
	if err := n.Step(ctx); err != nil {
		if n.Kind() == node.KindContinuous {
			return &rerrors.IntegratorError{SystemID: nodeID, Cause: err}
		}
		return fmt.Errorf("node %q: %w", nodeID, err)
	}
	return nil
}

// prepare clears all port state and prefills every delay-output port with
// its backing buffer's current committed value (or initial value on the
// first tick).
func (rt *Runtime) prepare() {
	for id, ni := range rt.g.Nodes {
		for pname, pinfo := range ni.Outputs {
			if !pinfo.IsDelayOutput {
				continue
			}
			v, ok := ni.Vars[pinfo.DelayStateName]
			if !ok {
				continue
			}
			val, ok := rt.committed[v.Name]
			if !ok {
				val = v.Init
			}
			rt.portState[id+"."+pname] = val
		}
	}
}

// applyExternals folds a caller-supplied global dt into every node's "dt"
// input that doesn't already have an explicit override.
func (rt *Runtime) applyExternals(dt *float64) {
	if dt == nil {
		return
	}
	for id, ni := range rt.g.Nodes {
		if _, ok := ni.Inputs["dt"]; !ok {
			continue
		}
		portID := id + ".dt"
		if _, already := rt.overrides[portID]; !already {
			rt.overrides[portID] = *dt
		}
	}
}

// readPort resolves an input port's value for the current propose phase.
// In tickwise_mode (spec §6), every edge behaves like an implicit delay:
// a consumer only ever sees the producer's value as committed at the end
// of the *previous* tick, never a same-tick write, so the lookup goes
// through rt.prevPorts instead of the live rt.portState.
func (rt *Runtime) readPort(p *node.Port) value.Value {
	dstID := p.ID()
	if v, ok := rt.overrides[dstID]; ok {
		return v
	}
	if srcID, ok := rt.producerOf[dstID]; ok {
		if rt.g.Config.TickwiseMode {
			if v, ok := rt.prevPorts[srcID]; ok {
				return v
			}
		} else if v, ok := rt.portState[srcID]; ok {
			return v
		}
	}
	if p.HasDefault {
		return p.Default
	}
	return value.Absent
}

func (rt *Runtime) snapshot() Snapshot {
	ports := make(map[string]value.Value, len(rt.portState))
	for k, v := range rt.portState {
		ports[k] = v
	}
	return Snapshot{Tick: rt.tick, Time: rt.logicalTime, Variables: rt.Variables(), Ports: ports}
}

// resolveStep groups intents by variable and invokes each variable's
// policy merge, producing the tick's committed-updates map.
func resolveStep(intents []variables.Intent) (map[string]value.Value, error) {
	grouped := make(map[string][]variables.Intent)
	for _, it := range intents {
		grouped[it.Variable.Name] = append(grouped[it.Variable.Name], it)
	}
	out := make(map[string]value.Value, len(grouped))
	for name, its := range grouped {
		sorted := variables.SortIntents(its)
		val, err := sorted[0].Variable.Policy.Merge(sorted)
		if err != nil {
			return nil, &rerrors.PolicyError{Variable: name, Cause: err}
		}
		out[name] = val
	}
	return out, nil
}
