// Package regelum is the façade through which external collaborators
// (pipeline sugar, node libraries, CLIs) consume the analysis-and-
// execution core: register nodes, wire ports, compile, and run ticks
// (spec §6). It owns nothing the core packages don't already implement —
// it is a thin construction-order wrapper over ir.Build, passes.Run,
// scheduler.Build, and scheduler.New/RunTick.
package regelum

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/regelum-go/regelum/diag"
	"github.com/regelum-go/regelum/internal/rerrors"
	"github.com/regelum-go/regelum/internal/rlog"
	"github.com/regelum-go/regelum/ir"
	"github.com/regelum-go/regelum/node"
	"github.com/regelum-go/regelum/passes"
	"github.com/regelum-go/regelum/scheduler"
	"github.com/regelum-go/regelum/value"
)

// Option configures a Runtime at construction time.
type Option func(*Runtime)

// WithMode sets the compile mode: "strict" (default) or "pragmatic".
func WithMode(mode string) Option {
	return func(r *Runtime) { r.cfg.Mode = mode }
}

// WithMaxMicrosteps overrides the default per-SCC iteration cap (20).
func WithMaxMicrosteps(n int) Option {
	return func(r *Runtime) { r.cfg.MaxMicrosteps = n }
}

// WithTickwiseMode enables tickwise_mode: the runtime serves only the
// previous tick's snapshot of every output to consumers, effectively
// inserting an implicit delay on every edge.
func WithTickwiseMode(on bool) Option {
	return func(r *Runtime) { r.cfg.TickwiseMode = on }
}

// WithLogger overrides the ambient structured logger (default: stderr).
func WithLogger(l *rlog.Logger) Option {
	return func(r *Runtime) { r.log = l }
}

// New constructs an empty Runtime in strict mode with a 20-step microstep
// cap, ready for RegisterNode/Connect calls.
func New(opts ...Option) *Runtime {
	r := &Runtime{
		nodes: make(map[string]node.Node),
		cfg:   ir.Config{Mode: "strict", MaxMicrosteps: 20},
	}
	for _, opt := range opts {
		opt(r)
	}
	if r.log == nil {
		r.log = rlog.Default
	}
	return r
}

// Runtime is a graph under construction (RegisterNode/Connect), and, once
// Compile succeeds, the compiled execution engine (RunTick/Variables).
// Calling RegisterNode or Connect after a successful Compile is rejected:
// the IR is a frozen snapshot (spec §3 Ownership) and the core has no
// dynamic-graph-mutation story (spec §1 Non-goals).
type Runtime struct {
	nodes    map[string]node.Node
	edges    []ir.Edge
	cfg      ir.Config
	log      *rlog.Logger
	compiled bool
	g        *ir.Graph
	engine   *scheduler.Runtime
}

// RegisterNode adds n to the graph under construction. The node's ID must
// be unique; a duplicate raises GraphError (spec §7).
func (r *Runtime) RegisterNode(n node.Node) error {
	if r.compiled {
		return &rerrors.GraphError{NodeID: n.ID(), Reason: "cannot register a node after Compile"}
	}
	if _, exists := r.nodes[n.ID()]; exists {
		return &rerrors.GraphError{NodeID: n.ID(), Reason: "node already registered"}
	}
	r.nodes[n.ID()] = n
	return nil
}

// Connect adds a directed edge from an output port to an input port.
// Ports are named "nodeID.portName"; fan-out (multiple edges from one
// output) is permitted, fan-in is checked at Compile (StructuralPass).
func (r *Runtime) Connect(srcPort, dstPort string) error {
	if r.compiled {
		return &rerrors.GraphError{Reason: "cannot connect after Compile"}
	}
	srcNode, srcName, err := splitPortID(srcPort)
	if err != nil {
		return err
	}
	dstNode, dstName, err := splitPortID(dstPort)
	if err != nil {
		return err
	}
	r.edges = append(r.edges, ir.Edge{SrcNode: srcNode, SrcPort: srcName, DstNode: dstNode, DstPort: dstName})
	return nil
}

func splitPortID(portID string) (nodeID, portName string, err error) {
	i := strings.LastIndex(portID, ".")
	if i <= 0 || i == len(portID)-1 {
		return "", "", fmt.Errorf("regelum: malformed port id %q, want \"nodeID.portName\"", portID)
	}
	return portID[:i], portID[i+1:], nil
}

// CompileResult reports a compile attempt's outcome and the full
// diagnostic report, in the order the pass pipeline recorded it.
type CompileResult struct {
	Success     bool
	Diagnostics []diag.Diagnostic
}

// Compile lowers the registered nodes and edges to IR, runs the static
// pass pipeline, and — iff no error diagnostic was recorded — builds the
// execution schedule and the tick-executing engine. Once Compile
// succeeds, RunTick and Variables become usable; the graph can no longer
// be mutated.
func (r *Runtime) Compile(ctx context.Context) (CompileResult, error) {
	if r.compiled {
		return CompileResult{}, fmt.Errorf("regelum: already compiled")
	}
	if err := ctx.Err(); err != nil {
		return CompileResult{}, err
	}

	g, err := ir.Build(r.nodes, r.edges, r.cfg)
	if err != nil {
		return CompileResult{}, err
	}

	correlationID := uuid.NewString()
	r.log.CompileStart(correlationID, len(g.Nodes))
	sink := passes.Run(g)
	result := CompileResult{Success: !sink.HasErrors(), Diagnostics: sink.Diagnostics()}
	r.log.CompileEnd(correlationID, result.Success, countErrors(result.Diagnostics))
	if !result.Success {
		return result, nil
	}

	if err := ctx.Err(); err != nil {
		return result, err
	}

	sched, err := scheduler.Build(g)
	if err != nil {
		return result, err
	}

	r.g = g
	r.engine = scheduler.New(g, r.nodes, sched, r.log)
	r.compiled = true
	return result, nil
}

func countErrors(ds []diag.Diagnostic) int {
	n := 0
	for _, d := range ds {
		if d.Severity == diag.Error {
			n++
		}
	}
	return n
}

// RunTick executes one synchronous tick against the compiled graph.
// Compile must have succeeded first. overrides keys are "nodeID.portName".
func (r *Runtime) RunTick(ctx context.Context, overrides map[string]value.Value, dt *float64) (scheduler.Snapshot, error) {
	if !r.compiled {
		return scheduler.Snapshot{}, fmt.Errorf("regelum: RunTick called before a successful Compile")
	}
	return r.engine.RunTick(ctx, overrides, dt)
}

// Variables returns a copy of the compiled engine's current committed
// variable store. Compile must have succeeded first.
func (r *Runtime) Variables() map[string]value.Value {
	if !r.compiled {
		return nil
	}
	return r.engine.Variables()
}

// Graph exposes the frozen IR built by a successful Compile, e.g. for
// ir.DOT debug rendering. Returns nil before Compile succeeds.
func (r *Runtime) Graph() *ir.Graph {
	return r.g
}
