// Package interp implements the two evaluators sharing the expression
// tree's structure: a concrete evaluator over value.Value, used by the
// runtime, and a three-valued evaluator over ternary.V3, used by the
// causality pass's constructive fixed-point check.
package interp

import (
	"errors"
	"fmt"

	"github.com/regelum-go/regelum/dslx"
	"github.com/regelum-go/regelum/ternary"
	"github.com/regelum-go/regelum/value"
)

// ErrUnloweredDelay is returned (concrete evaluator) or panics with this
// error (three-valued evaluator, to keep the tree-walk simple) when a
// Delay node survives to evaluation time. Delay must always be lowered to
// a Var referencing a delay-buffer state before interpretation; this is a
// fatal internal compiler error, never a user-triggerable condition.
var ErrUnloweredDelay = errors.New("interp: unlowered Delay reached the interpreter")

// Env is the concrete evaluation environment: variable/port name to
// value.Value. A missing name evaluates to value.Absent.
type Env map[string]value.Value

// Eval evaluates expr against env using strict, two-valued semantics:
// Const yields its literal; Var looks up env, defaulting to Absent;
// Cmp/BinOp are strict (Absent operand forces an Absent result); If
// short-circuits on a present boolean condition and yields Absent when
// the condition itself is Absent.
func Eval(expr dslx.Expr, env Env) (value.Value, error) {
	switch e := expr.(type) {
	case dslx.Const:
		return e.V, nil

	case dslx.Var:
		v, ok := env[e.Name]
		if !ok {
			return value.Absent, nil
		}
		return v, nil

	case dslx.If:
		cond, err := Eval(e.Cond, env)
		if err != nil {
			return nil, err
		}
		if value.IsAbsent(cond) {
			return value.Absent, nil
		}
		b, ok := cond.(bool)
		if !ok {
			return nil, fmt.Errorf("interp: If condition evaluated to non-bool %T", cond)
		}
		if b {
			return Eval(e.Then, env)
		}
		return Eval(e.Else, env)

	case dslx.BinOp:
		l, err := Eval(e.Left, env)
		if err != nil {
			return nil, err
		}
		r, err := Eval(e.Right, env)
		if err != nil {
			return nil, err
		}
		if value.IsAbsent(l) || value.IsAbsent(r) {
			return value.Absent, nil
		}
		return evalBinOp(e.Op, l, r)

	case dslx.Cmp:
		l, err := Eval(e.Left, env)
		if err != nil {
			return nil, err
		}
		r, err := Eval(e.Right, env)
		if err != nil {
			return nil, err
		}
		if value.IsAbsent(l) || value.IsAbsent(r) {
			return value.Absent, nil
		}
		return evalCmp(e.Op, l, r)

	case dslx.Delay:
		return nil, ErrUnloweredDelay

	default:
		return nil, fmt.Errorf("interp: unknown expression type %T", expr)
	}
}

func asFloat(v value.Value) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	}
	return 0, false
}

func evalBinOp(op dslx.BinOpKind, l, r value.Value) (value.Value, error) {
	lf, lok := asFloat(l)
	rf, rok := asFloat(r)
	if !lok || !rok {
		return nil, fmt.Errorf("interp: BinOp %q requires numeric operands, got %T and %T", op, l, r)
	}
	switch op {
	case dslx.Add:
		return numLike(l, lf+rf), nil
	case dslx.Sub:
		return numLike(l, lf-rf), nil
	case dslx.Mul:
		return numLike(l, lf*rf), nil
	case dslx.Div:
		if rf == 0 {
			return nil, fmt.Errorf("interp: division by zero")
		}
		return numLike(l, lf/rf), nil
	case dslx.Min:
		if lf < rf {
			return numLike(l, lf), nil
		}
		return numLike(r, rf), nil
	case dslx.Max:
		if lf > rf {
			return numLike(l, lf), nil
		}
		return numLike(r, rf), nil
	default:
		return nil, fmt.Errorf("interp: unknown BinOp %q", op)
	}
}

// numLike returns an int when `like` is an int and f is integral, and a
// float64 otherwise. Callers pass the left operand (for min/max, the
// chosen operand) as `like`, so with int operands `A(emits 10) -> B(+5) ->
// C observes 15` prints as 15, not 15.0.
func numLike(like value.Value, f float64) value.Value {
	if _, ok := like.(int); ok && f == float64(int(f)) {
		return int(f)
	}
	return f
}

func evalCmp(op dslx.CmpKind, l, r value.Value) (value.Value, error) {
	lf, lok := asFloat(l)
	rf, rok := asFloat(r)
	if lok && rok {
		switch op {
		case dslx.Lt:
			return lf < rf, nil
		case dslx.Le:
			return lf <= rf, nil
		case dslx.Eq:
			return lf == rf, nil
		case dslx.Gt:
			return lf > rf, nil
		case dslx.Ge:
			return lf >= rf, nil
		}
	}
	if op == dslx.Eq {
		return value.Equal(l, r), nil
	}
	return nil, fmt.Errorf("interp: Cmp %q requires numeric operands, got %T and %T", op, l, r)
}

// EnvV3 is the three-valued evaluation environment.
type EnvV3 map[string]ternary.V3

// EvalV3 evaluates expr in three-valued mode, as used by the causality
// pass's constructive fixed-point check. The propagation rules:
//
//   - any operand Bottom (with one exception below) yields Bottom;
//   - any operand Absent (and no Bottom) yields Absent for strict
//     operators;
//   - two Present operands yield Present of the computed result.
//
// The exception: If(Bottom, then, else) joins then and else — if both are
// equal Present or both Absent, that is the result; otherwise Bottom. This
// makes evaluation monotone in sqsubseteq, which is what guarantees the
// constructive check's fixed-point iteration converges.
func EvalV3(expr dslx.Expr, env EnvV3) ternary.V3 {
	switch e := expr.(type) {
	case dslx.Const:
		return ternary.Present(e.V)

	case dslx.Var:
		v, ok := env[e.Name]
		if !ok {
			return ternary.BottomV
		}
		return v

	case dslx.If:
		cond := EvalV3(e.Cond, env)
		switch cond.Presence() {
		case ternary.Bottom:
			t := EvalV3(e.Then, env)
			el := EvalV3(e.Else, env)
			joined, err := ternary.Join(t, el)
			if err == nil && t.IsPresent() && el.IsPresent() {
				return joined
			}
			if t.IsAbsent() && el.IsAbsent() {
				return ternary.AbsentV()
			}
			return ternary.BottomV
		case ternary.AbsentP:
			return ternary.AbsentV()
		default:
			b, ok := cond.Value().(bool)
			if !ok {
				return ternary.BottomV
			}
			if b {
				return EvalV3(e.Then, env)
			}
			return EvalV3(e.Else, env)
		}

	case dslx.BinOp:
		l := EvalV3(e.Left, env)
		r := EvalV3(e.Right, env)
		if l.IsBottom() || r.IsBottom() {
			return ternary.BottomV
		}
		if l.IsAbsent() || r.IsAbsent() {
			return ternary.AbsentV()
		}
		res, err := evalBinOp(e.Op, l.Value(), r.Value())
		if err != nil {
			return ternary.BottomV
		}
		return ternary.Present(res)

	case dslx.Cmp:
		l := EvalV3(e.Left, env)
		r := EvalV3(e.Right, env)
		if l.IsBottom() || r.IsBottom() {
			return ternary.BottomV
		}
		if l.IsAbsent() || r.IsAbsent() {
			return ternary.AbsentV()
		}
		res, err := evalCmp(e.Op, l.Value(), r.Value())
		if err != nil {
			return ternary.BottomV
		}
		return ternary.Present(res)

	case dslx.Delay:
		panic(ErrUnloweredDelay)

	default:
		return ternary.BottomV
	}
}
