package node

import (
	"github.com/regelum-go/regelum/continuous"
	"github.com/regelum-go/regelum/value"
	"github.com/regelum-go/regelum/variables"
)

// ContinuousWrapper embeds exactly one continuous.System behind discrete
// ports: input "dt" (control over the integration step, with a positive
// default), input "u" (a record of control values, or a scalar promoted
// to {u: v}), and outputs "state" (the full state record) and "y" (the
// output record).
type ContinuousWrapper struct {
	base
	inner   continuous.System
	rt      *continuous.Runtime
	uName   string
}

// NewContinuousWrapper constructs a ContinuousWrapper around inner with
// the given default dt (must be positive) and trace capacity.
func NewContinuousWrapper(id string, inner continuous.System, defaultDt float64, traceCap int) *ContinuousWrapper {
	w := &ContinuousWrapper{base: newBase(id), inner: inner, rt: continuous.NewRuntime(traceCap), uName: "u"}
	w.addInputDefault("dt", defaultDt)
	w.addInputDefault("u", continuous.State{})
	w.addOutput("state")
	w.addOutput("y")
	_ = w.rt.AddSystem(inner)
	return w
}

func (w *ContinuousWrapper) Kind() Kind                               { return KindContinuous }
func (w *ContinuousWrapper) Contract() *Contract                      { return nil }
func (w *ContinuousWrapper) StateVars() map[string]*variables.Variable { return nil }

func (w *ContinuousWrapper) Reactions() []*Reaction {
	noLoop := Contract{NoInstantLoop: true}
	return []*Reaction{{Name: "integrate", Contract: &noLoop}}
}

// Trace exposes the inner system's capped output history.
func (w *ContinuousWrapper) Trace() ([]continuous.TraceSample, error) {
	return w.rt.Trace(w.inner.ID())
}

func asState(v value.Value) continuous.State {
	if value.IsAbsent(v) {
		return continuous.State{}
	}
	switch s := v.(type) {
	case continuous.State:
		return s
	case map[string]float64:
		return continuous.State(s)
	case float64:
		return continuous.State{"u": s}
	case int:
		return continuous.State{"u": float64(s)}
	default:
		return continuous.State{}
	}
}

func (w *ContinuousWrapper) Step(ctx IntentContext) error {
	dt, u := w.readDtAndU(ctx)
	if dt > 0 {
		if err := w.rt.Step(dt, map[string]continuous.State{w.inner.ID(): u}); err != nil {
			return err
		}
	} else {
		w.rt.UpdateLastInputs(w.inner.ID(), u)
	}
	return w.writeStateAndY(ctx)
}

func (w *ContinuousWrapper) readDtAndU(ctx IntentContext) (float64, continuous.State) {
	dtVal := ctx.Read(w.inputs["dt"])
	dt := 0.0
	if !value.IsAbsent(dtVal) {
		dt = toFloat(dtVal)
	}
	u := asState(ctx.Read(w.inputs[w.uName]))
	return dt, u
}

func (w *ContinuousWrapper) writeStateAndY(ctx IntentContext) error {
	state, err := w.rt.State(w.inner.ID())
	if err != nil {
		return err
	}
	outputs, err := w.rt.Outputs(w.inner.ID())
	if err != nil {
		return err
	}
	ctx.Write(w.outputs["state"], state)
	ctx.Write(w.outputs["y"], outputs)
	return nil
}

func toFloat(v value.Value) float64 {
	switch n := v.(type) {
	case float64:
		return n
	case float32:
		return float64(n)
	case int:
		return float64(n)
	case int64:
		return float64(n)
	default:
		return 0
	}
}

// HybridContinuousWrapper adds zero-order hold on "u" across ticks: the
// last non-Absent value read is held and reused whenever a tick's "u"
// input is Absent, starting from an explicit initial held value.
type HybridContinuousWrapper struct {
	ContinuousWrapper
	held continuous.State
}

// NewHybridContinuousWrapper constructs a hybrid continuous wrapper with
// the given initial held control value.
func NewHybridContinuousWrapper(id string, inner continuous.System, defaultDt float64, holdInit continuous.State, traceCap int) *HybridContinuousWrapper {
	w := &HybridContinuousWrapper{ContinuousWrapper: *NewContinuousWrapper(id, inner, defaultDt, traceCap)}
	if holdInit == nil {
		holdInit = continuous.State{}
	}
	w.held = holdInit
	return w
}

func (w *HybridContinuousWrapper) Step(ctx IntentContext) error {
	dtVal := ctx.Read(w.inputs["dt"])
	dt := 0.0
	if !value.IsAbsent(dtVal) {
		dt = toFloat(dtVal)
	}

	uVal := ctx.Read(w.inputs[w.uName])
	u := w.held
	if !value.IsAbsent(uVal) {
		u = asState(uVal)
		w.held = u
	}

	if dt > 0 {
		if err := w.rt.Step(dt, map[string]continuous.State{w.inner.ID(): u}); err != nil {
			return err
		}
	} else {
		w.rt.UpdateLastInputs(w.inner.ID(), u)
	}
	return w.writeStateAndY(ctx)
}
