package passes_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/regelum-go/regelum/diag"
	"github.com/regelum-go/regelum/dslx"
	"github.com/regelum-go/regelum/ir"
	"github.com/regelum-go/regelum/node"
	"github.com/regelum-go/regelum/passes"
	"github.com/regelum-go/regelum/value"
	"github.com/regelum-go/regelum/variables"
)

func hasCode(sink *diag.Sink, code string) bool {
	for _, d := range sink.Diagnostics() {
		if d.Code == code {
			return true
		}
	}
	return false
}

func TestStructuralFanInRejection(t *testing.T) {
	a := node.NewCoreNode("a")
	a.AddOutput("out")
	require.NoError(t, a.AddReaction("emit", func(rc *node.ReactionCtx) dslx.Expr { return dslx.NewConst(1) }))
	b := node.NewCoreNode("b")
	b.AddOutput("out")
	require.NoError(t, b.AddReaction("emit", func(rc *node.ReactionCtx) dslx.Expr { return dslx.NewConst(2) }))
	c := node.NewCoreNode("c")
	c.AddInput("in")

	nodes := map[string]node.Node{"a": a, "b": b, "c": c}
	edges := []ir.Edge{
		{SrcNode: "a", SrcPort: "out", DstNode: "c", DstPort: "in"},
		{SrcNode: "b", SrcPort: "out", DstNode: "c", DstPort: "in"},
	}
	g, err := ir.Build(nodes, edges, ir.Config{Mode: "strict"})
	require.NoError(t, err)

	sink := passes.Run(g)
	assert.True(t, hasCode(sink, "STRUCT002"))
	assert.True(t, sink.HasErrors())
}

func TestStructuralUnconnectedWithoutDefaultRejection(t *testing.T) {
	a := node.NewCoreNode("a")
	a.AddInput("in")

	g, err := ir.Build(map[string]node.Node{"a": a}, nil, ir.Config{Mode: "strict"})
	require.NoError(t, err)

	sink := passes.Run(g)
	assert.True(t, hasCode(sink, "STRUCT001"))
}

func TestDelaySelfLoopNeverFlagsCausality(t *testing.T) {
	a := node.NewCoreNode("a")
	a.AddInput("x")
	a.AddOutput("out")
	require.NoError(t, a.AddReaction("emit", func(rc *node.ReactionCtx) dslx.Expr {
		return dslx.NewDelay(dslx.NewVar("x"), -1)
	}))

	edges := []ir.Edge{{SrcNode: "a", SrcPort: "out", DstNode: "a", DstPort: "x"}}
	g, err := ir.Build(map[string]node.Node{"a": a}, edges, ir.Config{Mode: "strict"})
	require.NoError(t, err)

	sink := passes.Run(g)
	assert.False(t, hasCode(sink, "CAUS002"))
	assert.False(t, hasCode(sink, "CAUS003"))
}

func TestNonConstructiveSelfLoopEmitsCAUS003(t *testing.T) {
	a := node.NewCoreNode("a")
	a.AddState("val", 0, variables.ErrorPolicy())
	require.NoError(t, a.AddReaction("update", func(rc *node.ReactionCtx) dslx.Expr {
		rc.Set("val", dslx.NewIf(dslx.Compare(dslx.Gt, dslx.NewVar("val"), dslx.NewConst(0)), dslx.NewConst(0), dslx.NewConst(1)))
		return nil
	}))

	g, err := ir.Build(map[string]node.Node{"a": a}, nil, ir.Config{Mode: "strict"})
	require.NoError(t, err)

	sink := passes.Run(g)
	assert.True(t, hasCode(sink, "CAUS003"))
}

func TestWriteConflictErrorPolicyMultiwriter(t *testing.T) {
	shared := variables.NewVariable("shared", 0, variables.ErrorPolicy())
	a := &twoWriterNode{id: "a", shared: shared}
	g, err := ir.Build(map[string]node.Node{"a": a}, nil, ir.Config{Mode: "strict"})
	require.NoError(t, err)

	sink := passes.Run(g)
	assert.True(t, hasCode(sink, "WRITE001"))
}

func TestContinuousPassRequiresDtStateY(t *testing.T) {
	// A real ContinuousWrapper always satisfies its own contract by
	// construction, so the violation is synthesized directly here.
	fc := &fakeContinuousNode{id: "c", inputs: map[string]*node.Port{}, outputs: map[string]*node.Port{}}
	g, err := ir.Build(map[string]node.Node{"c": fc}, nil, ir.Config{Mode: "strict"})
	require.NoError(t, err)

	sink := passes.Run(g)
	assert.True(t, hasCode(sink, "CT001"))
	assert.True(t, hasCode(sink, "CT002"))
	assert.True(t, hasCode(sink, "CT003"))
}

func TestSDFInconsistencyTwoNodeCycle(t *testing.T) {
	a := &fakeNode{id: "a", kind: node.KindCore,
		inputs:  map[string]*node.Port{"in": {Name: "in", NodeID: "a", Dir: node.Input}},
		outputs: map[string]*node.Port{"out": {Name: "out", NodeID: "a", Dir: node.Output, Rate: intp(2)}},
	}
	b := &fakeNode{id: "b", kind: node.KindCore,
		inputs:  map[string]*node.Port{"in": {Name: "in", NodeID: "b", Dir: node.Input, Rate: intp(1)}},
		outputs: map[string]*node.Port{"out": {Name: "out", NodeID: "b", Dir: node.Output, Rate: intp(1)}},
	}
	a.inputs["in"].Rate = intp(1)

	edges := []ir.Edge{
		{SrcNode: "a", SrcPort: "out", DstNode: "b", DstPort: "in"},
		{SrcNode: "b", SrcPort: "out", DstNode: "a", DstPort: "in"},
	}
	g, err := ir.Build(map[string]node.Node{"a": a, "b": b}, edges, ir.Config{Mode: "strict"})
	require.NoError(t, err)

	sink := passes.Run(g)
	assert.True(t, hasCode(sink, "SDF001"))
}

func intp(v int) *int { return &v }

type twoWriterNode struct {
	id     string
	shared *variables.Variable
}

func (n *twoWriterNode) ID() string            { return n.id }
func (n *twoWriterNode) Kind() node.Kind       { return node.KindCore }
func (n *twoWriterNode) Inputs() map[string]*node.Port  { return nil }
func (n *twoWriterNode) Outputs() map[string]*node.Port { return nil }
func (n *twoWriterNode) Reactions() []*node.Reaction {
	return []*node.Reaction{
		{Name: "r1", Ast: dslx.NewConst(value.Absent), Writes: map[string]dslx.Expr{"shared": dslx.NewConst(1)}, WriteSet: map[string]struct{}{"shared": {}}},
		{Name: "r2", Ast: dslx.NewConst(value.Absent), Writes: map[string]dslx.Expr{"shared": dslx.NewConst(2)}, WriteSet: map[string]struct{}{"shared": {}}},
	}
}
func (n *twoWriterNode) StateVars() map[string]*variables.Variable {
	return map[string]*variables.Variable{"shared": n.shared}
}
func (n *twoWriterNode) Contract() *node.Contract      { return nil }
func (n *twoWriterNode) Step(ctx node.IntentContext) error { return nil }

type fakeContinuousNode struct {
	id      string
	inputs  map[string]*node.Port
	outputs map[string]*node.Port
}

func (n *fakeContinuousNode) ID() string                               { return n.id }
func (n *fakeContinuousNode) Kind() node.Kind                          { return node.KindContinuous }
func (n *fakeContinuousNode) Inputs() map[string]*node.Port            { return n.inputs }
func (n *fakeContinuousNode) Outputs() map[string]*node.Port           { return n.outputs }
func (n *fakeContinuousNode) Reactions() []*node.Reaction              { return nil }
func (n *fakeContinuousNode) StateVars() map[string]*variables.Variable { return nil }
func (n *fakeContinuousNode) Contract() *node.Contract                 { return nil }
func (n *fakeContinuousNode) Step(ctx node.IntentContext) error        { return nil }

type fakeNode struct {
	id      string
	kind    node.Kind
	inputs  map[string]*node.Port
	outputs map[string]*node.Port
	vars    map[string]*variables.Variable
}

func (f *fakeNode) ID() string                               { return f.id }
func (f *fakeNode) Kind() node.Kind                          { return f.kind }
func (f *fakeNode) Inputs() map[string]*node.Port            { return f.inputs }
func (f *fakeNode) Outputs() map[string]*node.Port           { return f.outputs }
func (f *fakeNode) Reactions() []*node.Reaction              { return nil }
func (f *fakeNode) StateVars() map[string]*variables.Variable { return f.vars }
func (f *fakeNode) Contract() *node.Contract                 { return nil }
func (f *fakeNode) Step(ctx node.IntentContext) error        { return nil }
