package regelum_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/regelum-go/regelum"
	"github.com/regelum-go/regelum/dslx"
	"github.com/regelum-go/regelum/node"
	"github.com/regelum-go/regelum/variables"
)

func counterNode(id string, stateName string, init, step float64) *node.CoreNode {
	n := node.NewCoreNode(id)
	n.AddOutput("out")
	n.AddState(stateName, init, variables.ErrorPolicy())
	_ = n.AddReaction("accumulate", func(rc *node.ReactionCtx) dslx.Expr {
		rc.Set(stateName, dslx.Sum(dslx.NewVar(stateName), dslx.NewConst(step)))
		return dslx.NewVar(stateName)
	}, node.WithNonZenoRank(stateName, 0))
	return n
}

// TestVariablesSnapshotIsUnaffectedByLaterTicks exercises spec.md §8's
// commit-atomicity property: a snapshot taken by Variables() before a tick
// reflects exactly the prior commit, and never observes a later tick's
// writes, because Variables() returns a copy of the committed store rather
// than a live view into it.
func TestVariablesSnapshotIsUnaffectedByLaterTicks(t *testing.T) {
	rt := regelum.New()
	require.NoError(t, rt.RegisterNode(counterNode("A", "count", 0, 1)))

	_, err := rt.Compile(context.Background())
	require.NoError(t, err)

	before := rt.Variables()
	assert.Equal(t, 0.0, before["A.count"])

	_, err = rt.RunTick(context.Background(), nil, nil)
	require.NoError(t, err)

	after := rt.Variables()
	assert.Equal(t, 1.0, after["A.count"])
	assert.Equal(t, 0.0, before["A.count"], "a snapshot taken before the tick must not be mutated by it")
}

// TestRunTickCommitsAllTouchedVariablesTogether exercises spec.md §8's
// commit-atomicity property from the other direction: every variable a
// tick's reactions touch becomes visible through Variables() together, as
// of the same commit point, never some updated and others still pending.
func TestRunTickCommitsAllTouchedVariablesTogether(t *testing.T) {
	rt := regelum.New()
	require.NoError(t, rt.RegisterNode(counterNode("A", "x", 1, 1)))
	require.NoError(t, rt.RegisterNode(counterNode("B", "y", 10, 2)))

	_, err := rt.Compile(context.Background())
	require.NoError(t, err)

	_, err = rt.RunTick(context.Background(), nil, nil)
	require.NoError(t, err)

	vars := rt.Variables()
	assert.Equal(t, 2.0, vars["A.x"])
	assert.Equal(t, 12.0, vars["B.y"])
}

// TestRunTickIsDeterministicAcrossIdenticalRuns exercises spec.md §8's
// full-tick determinism property: two freshly compiled runtimes, wired
// identically and driven with identical overrides, must commit the exact
// same variables and ports on every tick.
func TestRunTickIsDeterministicAcrossIdenticalRuns(t *testing.T) {
	build := func(t *testing.T) *regelum.Runtime {
		t.Helper()
		rt := regelum.New()
		require.NoError(t, rt.RegisterNode(counterNode("A", "count", 0, 3)))
		require.NoError(t, rt.RegisterNode(sinkNode("B")))
		require.NoError(t, rt.Connect("A.out", "B.in"))
		_, err := rt.Compile(context.Background())
		require.NoError(t, err)
		return rt
	}

	rt1 := build(t)
	rt2 := build(t)

	for i := 0; i < 3; i++ {
		snap1, err := rt1.RunTick(context.Background(), nil, nil)
		require.NoError(t, err)
		snap2, err := rt2.RunTick(context.Background(), nil, nil)
		require.NoError(t, err)

		assert.Equal(t, snap1.Ports, snap2.Ports, "tick %d ports diverged", i)
		assert.Equal(t, rt1.Variables(), rt2.Variables(), "tick %d variables diverged", i)
	}
}
