package node

import "github.com/regelum-go/regelum/value"

// Context is what a node's Step sees during the propose phase: it can
// read input ports (resolved to a producer's value, a snapshot, a
// default, or Absent) and write output ports.
type Context interface {
	Read(port *Port) value.Value
	Write(port *Port, v value.Value)
}

// IntentContext extends Context with access to state variables. Reading
// returns the scheduler's working copy for this tick (falling back to the
// variable's initial value); writing appends an Intent tagged with the
// calling node's identity rather than mutating committed state directly.
type IntentContext interface {
	Context
	ReadVar(name string) value.Value
	WriteVar(name string, v value.Value)
}
