// Package node defines the node and port abstractions: reactive-core nodes
// (with compiled reactions and state cells), external black-box nodes
// (with a declared contract), continuous nodes (embedding a differential
// system), and the ports that connect them.
package node

import (
	"github.com/regelum-go/regelum/dslx"
	"github.com/regelum-go/regelum/value"
)

// Direction is input or output.
type Direction int

const (
	Input Direction = iota
	Output
)

// Port belongs to exactly one node. An output port may additionally be
// flagged as a delay output, with a back-reference to the state cell that
// backs it (set by CoreNode's reaction compilation, not by callers).
type Port struct {
	Name       string
	NodeID     string
	Dir        Direction
	HasDefault bool
	Default    value.Value
	Rate       *int // firings per macro-step; nil = unrated

	// Type is the port's declared type name for TypeCheckPass; "" and "Any"
	// both mean "unchecked".
	Type string

	IsDelayOutput  bool
	DelayStateName string
}

// WithType declares p's type name for TypeCheckPass and returns p for
// chaining. Leaving it unset (or "Any") suppresses the check on any edge
// touching this port.
func (p *Port) WithType(name string) *Port {
	p.Type = name
	return p
}

// NewInputPort builds an input port with no default (the compiler will
// flag it under STRUCT001 unless an edge connects it).
func NewInputPort(nodeID, name string) *Port {
	return &Port{Name: name, NodeID: nodeID, Dir: Input}
}

// NewInputPortDefault builds an input port carrying a default value used
// when no producer writes to it in a given tick.
func NewInputPortDefault(nodeID, name string, def value.Value) *Port {
	return &Port{Name: name, NodeID: nodeID, Dir: Input, HasDefault: true, Default: def}
}

// NewOutputPort builds an output port.
func NewOutputPort(nodeID, name string) *Port {
	return &Port{Name: name, NodeID: nodeID, Dir: Output}
}

// WithRate sets the port's firing rate for multi-rate (SDF) analysis and
// returns the same port for chaining.
func (p *Port) WithRate(rate int) *Port {
	p.Rate = &rate
	return p
}

// ID is the stable (nodeID, portName) identifier used throughout the IR
// and passes.
func (p *Port) ID() string { return p.NodeID + "." + p.Name }

// Contract is the only signal available to the causality and scheduling
// passes about an external node's black-box step routine.
type Contract struct {
	Deterministic  bool
	NoSideEffects  bool
	Monotone       bool
	NoInstantLoop  bool
	MaxLatencyMS   *int
}

// DefaultContract is the conservative default: deterministic, pure,
// non-monotone, and barred from instantaneous cycles.
func DefaultContract() Contract {
	return Contract{Deterministic: true, NoSideEffects: true, Monotone: false, NoInstantLoop: true}
}

// UnsafeContract marks an external node as making no guarantees at all —
// ported from the original implementation's `unsafe(reason)` decorator.
// An unsafe node can never be exempted from CAUS001 even inside an
// otherwise-trivial SCC, because the causality pass cannot assume
// anything about its behavior.
func UnsafeContract(reason string) Contract {
	return Contract{Deterministic: false, NoSideEffects: false, Monotone: false, NoInstantLoop: false}
}

// Reaction belongs to one node. Ast is the produced output expression (if
// any); Writes maps state names to their update expressions. For a
// reactive-core node, ReadSet/WriteSet are computed once by
// CoreNode.AddReaction from the free variables of Ast and of the Writes
// expressions, and from the domain of Writes.
type Reaction struct {
	Name       string
	Ast        dslx.Expr
	OutputName string // empty if this reaction produces no output
	Writes     map[string]dslx.Expr

	ReadSet  map[string]struct{}
	WriteSet map[string]struct{}

	// NonZenoRank names a state cell whose value strictly progresses along
	// its policy's height during microstep iteration, certifying
	// termination. Empty if undeclared.
	NonZenoRank  string
	NonZenoLimit int // 0 means "use the runtime default"

	// Contract is non-nil only for the synthetic reaction standing in for
	// an External or Continuous node's opaque step routine; it lets the
	// causality pass apply the no_instant_loop rule uniformly across node
	// kinds.
	Contract *Contract
}
