// Package continuous implements the fixed-step integrator used to advance
// continuous-time subsystems (dx/dt = f(t, x, u), y = h(t, x, u)) and the
// hybrid bridge that plugs them into the discrete synchronous tick.
package continuous

import (
	"fmt"
	"sort"
)

const (
	// Euler integrates with a single first-order step.
	Euler = "euler"
	// RK4 integrates with the standard four-stage Runge-Kutta method.
	RK4 = "rk4"

	// DefaultMaxStep bounds dt for a System that does not declare its own.
	DefaultMaxStep = 0.01
)

// State is a named vector of floats — the continuous state or the
// control/output record passed across the discrete/continuous boundary.
type State map[string]float64

// Clone returns an independent copy of s.
func (s State) Clone() State {
	out := make(State, len(s))
	for k, v := range s {
		out[k] = v
	}
	return out
}

// System is a single continuous-time subsystem: dx/dt = f(t, x, u),
// y = h(t, x, u), with named states and an initial condition.
type System interface {
	// ID is the stable identifier used to key runtime state and traces.
	ID() string
	// StateNames lists the declared continuous state names, in the order
	// InitialState returns their values.
	StateNames() []string
	// InitialState returns the t=0 state vector.
	InitialState() State
	// Derivative computes dx/dt given the current time, state, and
	// control input. The returned map's key set must equal StateNames
	// exactly.
	Derivative(t float64, x State, u State) State
	// Outputs computes y = h(t, x, u).
	Outputs(t float64, x State, u State) State
	// Integrator names which fixed-step method to use: Euler or RK4.
	Integrator() string
	// MaxStep bounds dt for this system; 0 means DefaultMaxStep.
	MaxStep() float64
}

// IntegratorError is raised when a derivative's key set does not match a
// system's declared states, or when dt exceeds a system's MaxStep.
type IntegratorError struct {
	NodeID string
	Reason string
}

func (e *IntegratorError) Error() string {
	return fmt.Sprintf("continuous: node %q: %s", e.NodeID, e.Reason)
}

// TraceSample is one recorded (t, outputs) pair.
type TraceSample struct {
	T       float64
	Outputs State
}

// ring is a capped ring buffer of TraceSample, oldest overwritten first.
type ring struct {
	buf   []TraceSample
	start int
	count int
}

func newRing(cap int) *ring {
	if cap <= 0 {
		cap = 1
	}
	return &ring{buf: make([]TraceSample, cap)}
}

func (r *ring) push(s TraceSample) {
	idx := (r.start + r.count) % len(r.buf)
	r.buf[idx] = s
	if r.count < len(r.buf) {
		r.count++
	} else {
		r.start = (r.start + 1) % len(r.buf)
	}
}

func (r *ring) samples() []TraceSample {
	out := make([]TraceSample, 0, r.count)
	for i := 0; i < r.count; i++ {
		out = append(out, r.buf[(r.start+i)%len(r.buf)])
	}
	return out
}

// Runtime advances one or more System instances by a fixed step dt per
// call, keeping each system's state vector, last-seen control inputs, and
// a capped trace of its outputs.
type Runtime struct {
	systems    map[string]System
	state      map[string]State
	lastInputs map[string]State
	traces     map[string]*ring
	traceCap   int
	t          float64
}

// NewRuntime constructs an empty Runtime. traceCap bounds the per-node
// ring buffer of recorded output samples; a value <= 0 defaults to 1.
func NewRuntime(traceCap int) *Runtime {
	return &Runtime{
		systems:    make(map[string]System),
		state:      make(map[string]State),
		lastInputs: make(map[string]State),
		traces:     make(map[string]*ring),
		traceCap:   traceCap,
	}
}

// AddSystem registers sys, seeding its state at t=0 and recording an
// initial trace sample.
func (rt *Runtime) AddSystem(sys System) error {
	if _, exists := rt.systems[sys.ID()]; exists {
		return fmt.Errorf("continuous: node %q already added", sys.ID())
	}
	rt.systems[sys.ID()] = sys
	init := sys.InitialState()
	rt.state[sys.ID()] = init
	rt.lastInputs[sys.ID()] = State{}
	rt.traces[sys.ID()] = newRing(rt.traceCap)
	rt.traces[sys.ID()].push(TraceSample{T: rt.t, Outputs: sys.Outputs(rt.t, init, State{})})
	return nil
}

func checkDerivativeKeys(sys System, deriv State) error {
	expected := make(map[string]struct{}, len(sys.StateNames()))
	for _, n := range sys.StateNames() {
		expected[n] = struct{}{}
	}
	var missing, extra []string
	for n := range expected {
		if _, ok := deriv[n]; !ok {
			missing = append(missing, n)
		}
	}
	for n := range deriv {
		if _, ok := expected[n]; !ok {
			extra = append(extra, n)
		}
	}
	if len(missing) == 0 && len(extra) == 0 {
		return nil
	}
	sort.Strings(missing)
	sort.Strings(extra)
	msg := ""
	if len(missing) > 0 {
		msg += fmt.Sprintf("missing %v", missing)
	}
	if len(extra) > 0 {
		if msg != "" {
			msg += "; "
		}
		msg += fmt.Sprintf("unexpected %v", extra)
	}
	return &IntegratorError{NodeID: sys.ID(), Reason: "derivative must define exactly the declared states (" + msg + ")"}
}

func combine(base, delta State, scale float64) State {
	out := make(State, len(base))
	for name, v := range base {
		out[name] = v + scale*delta[name]
	}
	return out
}

func (rt *Runtime) derivative(sys System, t float64, x, u State) (State, error) {
	d := sys.Derivative(t, x, u)
	if err := checkDerivativeKeys(sys, d); err != nil {
		return nil, err
	}
	return d, nil
}

func (rt *Runtime) eulerStep(sys System, t, dt float64, x, u State) (State, error) {
	d, err := rt.derivative(sys, t, x, u)
	if err != nil {
		return nil, err
	}
	return combine(x, d, dt), nil
}

func (rt *Runtime) rk4Step(sys System, t, dt float64, x, u State) (State, error) {
	k1, err := rt.derivative(sys, t, x, u)
	if err != nil {
		return nil, err
	}
	k2State := combine(x, k1, dt*0.5)
	k2, err := rt.derivative(sys, t+dt*0.5, k2State, u)
	if err != nil {
		return nil, err
	}
	k3State := combine(x, k2, dt*0.5)
	k3, err := rt.derivative(sys, t+dt*0.5, k3State, u)
	if err != nil {
		return nil, err
	}
	k4State := combine(x, k3, dt)
	k4, err := rt.derivative(sys, t+dt, k4State, u)
	if err != nil {
		return nil, err
	}
	out := make(State, len(x))
	for name, v := range x {
		delta := k1[name] + 2*k2[name] + 2*k3[name] + k4[name]
		out[name] = v + (dt/6.0)*delta
	}
	return out, nil
}

// Step advances every registered system by dt, using each system's
// control input from controls (falling back to the last-seen input if
// absent). dt must be positive and must not exceed any participating
// system's MaxStep.
func (rt *Runtime) Step(dt float64, controls map[string]State) error {
	if dt <= 0 {
		return fmt.Errorf("continuous: dt must be positive for integration, got %v", dt)
	}
	if len(rt.systems) == 0 {
		return nil
	}
	nextT := rt.t + dt
	newStates := make(map[string]State, len(rt.systems))
	for id, sys := range rt.systems {
		u, ok := controls[id]
		if !ok {
			u = rt.lastInputs[id]
		}
		rt.lastInputs[id] = u

		maxStep := sys.MaxStep()
		if maxStep <= 0 {
			maxStep = DefaultMaxStep
		}
		if dt > maxStep {
			return &IntegratorError{NodeID: id, Reason: fmt.Sprintf("dt=%v exceeds max_step=%v", dt, maxStep)}
		}

		var (
			updated State
			err     error
		)
		if sys.Integrator() == Euler {
			updated, err = rt.eulerStep(sys, rt.t, dt, rt.state[id], u)
		} else {
			updated, err = rt.rk4Step(sys, rt.t, dt, rt.state[id], u)
		}
		if err != nil {
			return err
		}
		newStates[id] = updated
	}
	for id, updated := range newStates {
		rt.state[id] = updated
		sys := rt.systems[id]
		outputs := sys.Outputs(nextT, updated, rt.lastInputs[id])
		rt.traces[id].push(TraceSample{T: nextT, Outputs: outputs})
	}
	rt.t = nextT
	return nil
}

// UpdateLastInputs records u as the most recent control input for id
// without advancing time — used by the hybrid wrapper when a tick
// supplies dt <= 0 (update last-seen input only, no integration).
func (rt *Runtime) UpdateLastInputs(id string, u State) {
	rt.lastInputs[id] = u
}

// State returns a copy of id's current state vector.
func (rt *Runtime) State(id string) (State, error) {
	s, ok := rt.state[id]
	if !ok {
		return nil, fmt.Errorf("continuous: node %q not found in runtime", id)
	}
	return s.Clone(), nil
}

// Outputs returns id's outputs at the runtime's current time, using its
// last-seen control input.
func (rt *Runtime) Outputs(id string) (State, error) {
	sys, ok := rt.systems[id]
	if !ok {
		return nil, fmt.Errorf("continuous: node %q not found in runtime", id)
	}
	return sys.Outputs(rt.t, rt.state[id], rt.lastInputs[id]), nil
}

// Trace returns the capped history of (t, outputs) samples recorded for
// id, oldest first.
func (rt *Runtime) Trace(id string) ([]TraceSample, error) {
	r, ok := rt.traces[id]
	if !ok {
		return nil, fmt.Errorf("continuous: node %q not found in runtime", id)
	}
	return r.samples(), nil
}

// Time returns the runtime's current logical time.
func (rt *Runtime) Time() float64 { return rt.t }
