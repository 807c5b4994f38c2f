package node

import "github.com/regelum-go/regelum/variables"

// StepFunc is the user-supplied black-box step routine wrapped by an
// ExternalNode.
type StepFunc func(ctx Context) error

// ExternalNode exposes a user-written step procedure. It declares ports
// like a CoreNode, but the compiler treats the body as opaque: the
// declared Contract is the only signal available to the causality and
// scheduling passes. External nodes never own state variables directly —
// a black box with hidden state cannot participate in WriteConflictPass or
// the constructive causality check, which is exactly why its contract
// defaults to NoInstantLoop.
type ExternalNode struct {
	base
	contract Contract
	step     StepFunc
}

// NewExternalNode constructs an external node with the given step routine
// and contract.
func NewExternalNode(id string, contract Contract, step StepFunc) *ExternalNode {
	return &ExternalNode{base: newBase(id), contract: contract, step: step}
}

func (n *ExternalNode) Kind() Kind                               { return KindExternal }
func (n *ExternalNode) Contract() *Contract                      { return &n.contract }
func (n *ExternalNode) StateVars() map[string]*variables.Variable { return nil }

// AddInput declares an input port with no default.
func (n *ExternalNode) AddInput(name string) *Port { return n.addInput(name) }

// AddInputDefault declares an input port with a default value.
func (n *ExternalNode) AddInputDefault(name string, def interface{}) *Port {
	return n.addInputDefault(name, def)
}

// AddOutput declares an output port.
func (n *ExternalNode) AddOutput(name string) *Port { return n.addOutput(name) }

// Reactions reports a single synthetic reaction standing in for the
// opaque step routine, carrying the node's contract so the causality pass
// can apply its no_instant_loop rule uniformly across node kinds.
func (n *ExternalNode) Reactions() []*Reaction {
	return []*Reaction{{Name: "step", Contract: &n.contract}}
}

// Step invokes the wrapped routine. The IntentContext is accepted to
// satisfy node.Node, but external nodes never read or write state
// variables directly through it — they only use the Context half (Read/
// Write on ports).
func (n *ExternalNode) Step(ctx IntentContext) error {
	return n.step(ctx)
}
