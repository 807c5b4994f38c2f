package node

import "github.com/regelum-go/regelum/variables"

// Kind distinguishes the three node variants recognized by the static
// passes and the scheduler.
type Kind int

const (
	// KindCore is a reactive-core node: zero or more compiled reactions,
	// owning any declared state cells.
	KindCore Kind = iota
	// KindExternal is a user-supplied step routine treated as a black box,
	// described only by its Contract.
	KindExternal
	// KindContinuous wraps a continuous.System behind discrete ports.
	KindContinuous
)

func (k Kind) String() string {
	switch k {
	case KindCore:
		return "core"
	case KindExternal:
		return "external"
	case KindContinuous:
		return "continuous"
	default:
		return "unknown"
	}
}

// Node is the common interface the scheduler and the IR builder consume.
// Its identity is stable and user-supplied (via the ID given at
// construction) and lives until the runtime holding it is dropped.
type Node interface {
	ID() string
	Kind() Kind
	Inputs() map[string]*Port
	Outputs() map[string]*Port
	// Reactions lists the node's compiled reactions for IR/causality
	// purposes. External and continuous nodes report a single synthetic
	// reaction standing in for their opaque step routine.
	Reactions() []*Reaction
	// StateVars lists the state variables this node owns (empty for
	// External and Continuous nodes).
	StateVars() map[string]*variables.Variable
	// Contract is non-nil only for External nodes; nil elsewhere.
	Contract() *Contract
	// Step executes one firing of the node against ctx.
	Step(ctx IntentContext) error
}

// base holds the port bookkeeping shared by every node kind.
type base struct {
	id      string
	inputs  map[string]*Port
	outputs map[string]*Port
}

func newBase(id string) base {
	return base{id: id, inputs: make(map[string]*Port), outputs: make(map[string]*Port)}
}

func (b *base) ID() string                    { return b.id }
func (b *base) Inputs() map[string]*Port      { return b.inputs }
func (b *base) Outputs() map[string]*Port     { return b.outputs }

func (b *base) addInput(name string) *Port {
	p := NewInputPort(b.id, name)
	b.inputs[name] = p
	return p
}

func (b *base) addInputDefault(name string, def interface{}) *Port {
	p := NewInputPortDefault(b.id, name, def)
	b.inputs[name] = p
	return p
}

func (b *base) addOutput(name string) *Port {
	p := NewOutputPort(b.id, name)
	b.outputs[name] = p
	return p
}
