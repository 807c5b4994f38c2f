package interp_test

import (
	"testing"

	"github.com/regelum-go/regelum/dslx"
	"github.com/regelum-go/regelum/interp"
	"github.com/regelum-go/regelum/ternary"
	"github.com/regelum-go/regelum/value"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEvalConst(t *testing.T) {
	v, err := interp.Eval(dslx.NewConst(3.0), nil)
	require.NoError(t, err)
	assert.Equal(t, 3.0, v)
}

func TestEvalVarMissingIsAbsent(t *testing.T) {
	v, err := interp.Eval(dslx.NewVar("x"), interp.Env{})
	require.NoError(t, err)
	assert.True(t, value.IsAbsent(v))
}

func TestEvalBinOpStrictOnAbsent(t *testing.T) {
	expr := dslx.Sum(dslx.NewVar("x"), dslx.NewConst(1.0))
	v, err := interp.Eval(expr, interp.Env{})
	require.NoError(t, err)
	assert.True(t, value.IsAbsent(v))
}

func TestEvalArithmetic(t *testing.T) {
	env := interp.Env{"x": 10.0, "y": 4.0}
	cases := []struct {
		name string
		expr dslx.Expr
		want value.Value
	}{
		{"add", dslx.Sum(dslx.NewVar("x"), dslx.NewVar("y")), 14.0},
		{"sub", dslx.Minus(dslx.NewVar("x"), dslx.NewVar("y")), 6.0},
		{"mul", dslx.Times(dslx.NewVar("x"), dslx.NewVar("y")), 40.0},
		{"div", dslx.Divide(dslx.NewVar("x"), dslx.NewVar("y")), 2.5},
		{"min", dslx.MinOf(dslx.NewVar("x"), dslx.NewVar("y")), 4.0},
		{"max", dslx.MaxOf(dslx.NewVar("x"), dslx.NewVar("y")), 10.0},
	}
	for _, c := range cases {
		got, err := interp.Eval(c.expr, env)
		require.NoError(t, err, c.name)
		assert.Equal(t, c.want, got, c.name)
	}
}

func TestEvalDivideByZeroErrors(t *testing.T) {
	_, err := interp.Eval(dslx.Divide(dslx.NewConst(1.0), dslx.NewConst(0.0)), interp.Env{})
	require.Error(t, err)
}

func TestEvalComparison(t *testing.T) {
	env := interp.Env{"x": 1.0, "y": 2.0}
	got, err := interp.Eval(dslx.LessThan(dslx.NewVar("x"), dslx.NewVar("y")), env)
	require.NoError(t, err)
	assert.Equal(t, true, got)
}

func TestEvalIfShortCircuits(t *testing.T) {
	expr := dslx.NewIf(dslx.NewConst(true), dslx.NewConst(1.0), dslx.NewConst(2.0))
	got, err := interp.Eval(expr, interp.Env{})
	require.NoError(t, err)
	assert.Equal(t, 1.0, got)
}

func TestEvalIfAbsentConditionIsAbsent(t *testing.T) {
	expr := dslx.NewIf(dslx.NewVar("cond"), dslx.NewConst(1.0), dslx.NewConst(2.0))
	got, err := interp.Eval(expr, interp.Env{})
	require.NoError(t, err)
	assert.True(t, value.IsAbsent(got))
}

func TestEvalUnloweredDelayErrors(t *testing.T) {
	_, err := interp.Eval(dslx.NewDelay(dslx.NewVar("x"), 0.0), interp.Env{})
	require.ErrorIs(t, err, interp.ErrUnloweredDelay)
}

func TestEvalV3BottomPropagatesThroughBinOp(t *testing.T) {
	expr := dslx.Sum(dslx.NewVar("x"), dslx.NewConst(1.0))
	got := interp.EvalV3(expr, interp.EnvV3{})
	assert.True(t, got.IsBottom())
}

func TestEvalV3PresentOperandsYieldPresent(t *testing.T) {
	env := interp.EnvV3{"x": ternary.Present(2.0)}
	expr := dslx.Sum(dslx.NewVar("x"), dslx.NewConst(1.0))
	got := interp.EvalV3(expr, env)
	require.True(t, got.IsPresent())
	assert.Equal(t, 3.0, got.Value())
}

func TestEvalV3IfBottomConditionJoinsEqualBranches(t *testing.T) {
	env := interp.EnvV3{}
	expr := dslx.NewIf(dslx.NewVar("cond"), dslx.NewConst(5.0), dslx.NewConst(5.0))
	got := interp.EvalV3(expr, env)
	require.True(t, got.IsPresent())
	assert.Equal(t, 5.0, got.Value())
}

func TestEvalV3IfBottomConditionDivergentBranchesStayBottom(t *testing.T) {
	env := interp.EnvV3{}
	expr := dslx.NewIf(dslx.NewVar("cond"), dslx.NewConst(5.0), dslx.NewConst(6.0))
	got := interp.EvalV3(expr, env)
	assert.True(t, got.IsBottom())
}

func TestEvalV3IfBottomConditionBothAbsentIsAbsent(t *testing.T) {
	env := interp.EnvV3{"absent1": ternary.AbsentV(), "absent2": ternary.AbsentV()}
	expr := dslx.NewIf(dslx.NewVar("cond"), dslx.NewVar("absent1"), dslx.NewVar("absent2"))
	got := interp.EvalV3(expr, env)
	assert.True(t, got.IsAbsent())
}

func TestEvalV3UnloweredDelayPanics(t *testing.T) {
	assert.Panics(t, func() {
		interp.EvalV3(dslx.NewDelay(dslx.NewVar("x"), 0.0), interp.EnvV3{})
	})
}
