package node

import (
	"fmt"

	"github.com/google/uuid"
	"github.com/regelum-go/regelum/dslx"
	"github.com/regelum-go/regelum/interp"
	"github.com/regelum-go/regelum/value"
	"github.com/regelum-go/regelum/variables"
)

// ReactionCtx is passed to a reaction's build function. It intercepts
// state writes the way the teacher language's BoundState.set does: the
// author calls Set(name, expr) any number of times before returning the
// reaction's (optional) output expression, and those writes are recorded
// against the reaction being compiled rather than applied immediately.
type ReactionCtx struct {
	writes map[string]dslx.Expr
}

// Set records a write of expr to the named state cell. Writing the same
// name twice within one reaction keeps only the last expression — the
// author is expected to compose a single update expression per reaction
// per state, the way the source language's descriptor pattern does.
func (rc *ReactionCtx) Set(stateName string, expr dslx.Expr) {
	rc.writes[stateName] = expr
}

// ReactionOption configures a reaction at AddReaction time.
type ReactionOption func(*Reaction)

// WithNonZenoRank declares that this reaction's repeated firing within a
// tick is bounded by the lattice height of the named state cell,
// certifying termination of the microstep loop for any SCC it
// participates in without requiring the constructive check.
func WithNonZenoRank(stateName string, limit int) ReactionOption {
	return func(r *Reaction) {
		r.NonZenoRank = stateName
		r.NonZenoLimit = limit
	}
}

// CoreNode is a reactive-core node: it owns state cells and one or more
// compiled reactions.
type CoreNode struct {
	base
	reactions          []*Reaction
	stateVars          map[string]*variables.Variable
	delayCount         int
	pendingDelayWrites []delayWrite
}

// NewCoreNode constructs an empty reactive-core node.
func NewCoreNode(id string) *CoreNode {
	return &CoreNode{base: newBase(id), stateVars: make(map[string]*variables.Variable)}
}

func (n *CoreNode) Kind() Kind                               { return KindCore }
func (n *CoreNode) Reactions() []*Reaction                    { return n.reactions }
func (n *CoreNode) StateVars() map[string]*variables.Variable { return n.stateVars }
func (n *CoreNode) Contract() *Contract                       { return nil }

// AddInput declares an input port with no default; StructuralPass flags it
// unless an edge supplies a producer.
func (n *CoreNode) AddInput(name string) *Port { return n.addInput(name) }

// AddInputDefault declares an input port with a default value.
func (n *CoreNode) AddInputDefault(name string, def value.Value) *Port {
	return n.addInputDefault(name, def)
}

// AddOutput declares an output port.
func (n *CoreNode) AddOutput(name string) *Port { return n.addOutput(name) }

// AddState declares a named state cell with an explicit initial value.
func (n *CoreNode) AddState(name string, init value.Value, policy variables.WritePolicy) *variables.Variable {
	v := variables.NewVariable(n.id+"."+name, init, policy)
	n.stateVars[name] = v
	return v
}

// AddUninitState declares a state cell with no initial value; InitPass in
// strict mode reports every such cell as an error.
func (n *CoreNode) AddUninitState(name string, policy variables.WritePolicy) *variables.Variable {
	v := variables.NewUninitVariable(n.id+"."+name, policy)
	n.stateVars[name] = v
	return v
}

// AddReaction compiles one reaction: it invokes build with a fresh
// ReactionCtx, lowers any Delay occurrences in the returned expression and
// in every intercepted write, computes the reaction's read/write sets, and
// — when the reaction's top-level expression is a direct read of a
// delay-buffer state — marks the reaction's output port as a delay
// output.
func (n *CoreNode) AddReaction(name string, build func(rc *ReactionCtx) dslx.Expr, opts ...ReactionOption) error {
	rc := &ReactionCtx{writes: make(map[string]dslx.Expr)}
	ast := build(rc)
	if ast == nil {
		ast = dslx.NewConst(value.Absent)
	}

	n.pendingDelayWrites = nil
	ast = n.lowerExpr(ast, name)
	writes := make(map[string]dslx.Expr, len(rc.writes))
	for stateName, expr := range rc.writes {
		writes[stateName] = n.lowerExpr(expr, name)
	}
	for _, dw := range n.pendingDelayWrites {
		writes[dw.stateName] = dw.expr
	}
	n.pendingDelayWrites = nil

	outputName := ""
	if _, ok := n.outputs["out"]; ok {
		outputName = "out"
	} else if len(n.outputs) == 1 {
		for only := range n.outputs {
			outputName = only
		}
	}

	r := &Reaction{
		Name:       name,
		Ast:        ast,
		OutputName: outputName,
		Writes:     writes,
	}
	for _, opt := range opts {
		opt(r)
	}

	r.ReadSet = make(map[string]struct{})
	for v := range dslx.FreeVars(ast) {
		r.ReadSet[v] = struct{}{}
	}
	for _, expr := range writes {
		for v := range dslx.FreeVars(expr) {
			r.ReadSet[v] = struct{}{}
		}
	}
	r.WriteSet = make(map[string]struct{}, len(writes))
	for stateName := range writes {
		r.WriteSet[stateName] = struct{}{}
	}

	if outputName != "" {
		if v, ok := ast.(dslx.Var); ok {
			if sv, ok := n.stateVars[v.Name]; ok && sv.IsDelayBuffer {
				n.outputs[outputName].IsDelayOutput = true
				n.outputs[outputName].DelayStateName = v.Name
			}
		}
	}

	n.reactions = append(n.reactions, r)
	return nil
}

// lowerExpr replaces every Delay(inner, default) occurrence with a Var
// read of a freshly allocated anonymous delay-buffer state, recording a
// write of that state to the (recursively lowered) inner expression —
// exactly the source language's Stage-3 lowering, generalized to Go.
func (n *CoreNode) lowerExpr(expr dslx.Expr, reactionName string) dslx.Expr {
	switch e := expr.(type) {
	case dslx.Delay:
		stateName := n.registerDelayState(e.Default, reactionName)
		rhs := n.lowerExpr(e.Inner, reactionName)
		n.recordDelayWrite(stateName, rhs)
		return dslx.NewVar(stateName)
	case dslx.If:
		return dslx.NewIf(
			n.lowerExpr(e.Cond, reactionName),
			n.lowerExpr(e.Then, reactionName),
			n.lowerExpr(e.Else, reactionName),
		)
	case dslx.BinOp:
		return dslx.BinaryOp(e.Op, n.lowerExpr(e.Left, reactionName), n.lowerExpr(e.Right, reactionName))
	case dslx.Cmp:
		return dslx.Compare(e.Op, n.lowerExpr(e.Left, reactionName), n.lowerExpr(e.Right, reactionName))
	default:
		return expr
	}
}

// registerDelayState allocates a fresh anonymous local state name backing
// one Delay occurrence; every call registers a new delay-buffer state. The local name embeds the reaction name plus a uuid suffix
// so anonymous buffers from different reactions never collide even if a
// reaction is recompiled.
func (n *CoreNode) registerDelayState(def value.Value, reactionName string) string {
	localName := fmt.Sprintf("__delay_%s_%d_%s", reactionName, n.delayCount, uuid.NewString()[:8])
	n.delayCount++
	n.stateVars[localName] = &variables.Variable{
		Name:          n.id + "." + localName,
		Init:          def,
		HasInit:       true,
		Policy:        variables.ErrorPolicy(),
		IsDelayBuffer: true,
	}
	return localName
}

func (n *CoreNode) recordDelayWrite(stateName string, rhs dslx.Expr) {
	// The write is attached to the reaction currently being compiled via
	// its returned writes map; since lowerExpr runs before AddReaction
	// assembles the final writes map, store it in a side table merged in.
	n.pendingDelayWrites = append(n.pendingDelayWrites, delayWrite{stateName: stateName, expr: rhs})
}

type delayWrite struct {
	stateName string
	expr      dslx.Expr
}

// Step runs every compiled reaction in declaration order, building each
// reaction's local environment from exactly its read set (fetched from
// input ports, state variables, or falling back to Absent), evaluating
// its output and state-write expressions, and forwarding the results to
// ctx.
func (n *CoreNode) Step(ctx IntentContext) error {
	for _, r := range n.reactions {
		env := make(interp.Env, len(r.ReadSet))
		for name := range r.ReadSet {
			if p, ok := n.inputs[name]; ok {
				env[name] = ctx.Read(p)
				continue
			}
			if sv, ok := n.stateVars[name]; ok {
				env[name] = ctx.ReadVar(sv.Name)
				continue
			}
			env[name] = value.Absent
		}

		result, err := interp.Eval(r.Ast, env)
		if err != nil {
			return fmt.Errorf("node %q reaction %q: %w", n.id, r.Name, err)
		}
		if r.OutputName != "" {
			if p, ok := n.outputs[r.OutputName]; ok {
				ctx.Write(p, result)
			}
		}
		for stateName, expr := range r.Writes {
			val, err := interp.Eval(expr, env)
			if err != nil {
				return fmt.Errorf("node %q reaction %q write %q: %w", n.id, r.Name, stateName, err)
			}
			sv, ok := n.stateVars[stateName]
			if !ok {
				return fmt.Errorf("node %q reaction %q writes undeclared state %q", n.id, r.Name, stateName)
			}
			ctx.WriteVar(sv.Name, val)
		}
	}
	return nil
}
