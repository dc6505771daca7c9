package callgraph

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"sable/internal/mir"
	"sable/internal/types"
)

func leafBody() *mir.Body {
	body := &mir.Body{
		ReturnTy:         types.Unit(),
		VisibilityScopes: []mir.VisibilityScopeData{{}},
	}
	body.Blocks = []mir.BasicBlockData{{
		Terminator: &mir.Terminator{Kind: &mir.ReturnTerm{}},
	}}
	return body
}

func callerBody(callees ...types.DefID) *mir.Body {
	body := &mir.Body{
		ReturnTy:         types.Unit(),
		VisibilityScopes: []mir.VisibilityScopeData{{}},
	}
	for i, callee := range callees {
		body.TempDecls = append(body.TempDecls, mir.TempDecl{Ty: types.Unit()})
		body.Blocks = append(body.Blocks, mir.BasicBlockData{
			Terminator: &mir.Terminator{Kind: &mir.CallTerm{
				Func: &mir.ConstantOperand{Constant: mir.Constant{
					Ty:      &types.FnDefType{Def: callee},
					Literal: &mir.ItemLiteral{Def: callee},
				}},
				Destination: &mir.CallDestination{
					Lvalue: mir.Temp(mir.TempID(i)),
					Target: mir.BlockID(len(callees)),
				},
			}},
		})
	}
	body.Blocks = append(body.Blocks, mir.BasicBlockData{
		Terminator: &mir.Terminator{Kind: &mir.ReturnTerm{}},
	})
	return body
}

func TestSCCsComeOutLeavesFirst(t *testing.T) {
	a := types.DefID{Index: 0}
	b := types.DefID{Index: 1}
	c := types.DefID{Index: 2}

	// a -> b -> c; c is a leaf.
	bodies := map[types.DefID]*mir.Body{
		a: callerBody(b),
		b: callerBody(c),
		c: leafBody(),
	}

	graph := Build(bodies)
	sccs := graph.SCCIter()
	require.Len(t, sccs, 3)

	order := make([]types.DefID, 0, 3)
	for _, scc := range sccs {
		require.Len(t, scc, 1)
		order = append(order, graph.DefID(scc[0]))
	}
	assert.Equal(t, []types.DefID{c, b, a}, order)
}

func TestMutualRecursionGroupsIntoOneSCC(t *testing.T) {
	f := types.DefID{Index: 0}
	g := types.DefID{Index: 1}
	main := types.DefID{Index: 2}

	bodies := map[types.DefID]*mir.Body{
		f:    callerBody(g),
		g:    callerBody(f),
		main: callerBody(f),
	}

	graph := Build(bodies)
	sccs := graph.SCCIter()
	require.Len(t, sccs, 2)

	assert.Len(t, sccs[0], 2, "the f/g cycle forms one SCC, emitted before its caller")
	members := map[types.DefID]bool{}
	for _, node := range sccs[0] {
		members[graph.DefID(node)] = true
	}
	assert.True(t, members[f] && members[g])

	require.Len(t, sccs[1], 1)
	assert.Equal(t, main, graph.DefID(sccs[1][0]))
}

func TestForeignCalleesGetNodesWithoutEdges(t *testing.T) {
	local := types.DefID{Index: 0}
	foreign := types.DefID{Crate: 1, Index: 3}

	bodies := map[types.DefID]*mir.Body{
		local: callerBody(foreign),
	}

	graph := Build(bodies)
	assert.Equal(t, 2, graph.Len())

	sccs := graph.SCCIter()
	require.Len(t, sccs, 2)
	assert.Equal(t, foreign, graph.DefID(sccs[0][0]), "the body-less callee is a leaf")
	assert.Equal(t, local, graph.DefID(sccs[1][0]))
}

func TestIndirectCallsAddNoEdges(t *testing.T) {
	local := types.DefID{Index: 0}
	body := leafBody()
	body.TempDecls = []mir.TempDecl{{Ty: types.Unit()}, {Ty: types.Unit()}}
	body.Blocks = append([]mir.BasicBlockData{{
		Terminator: &mir.Terminator{Kind: &mir.CallTerm{
			Func:        mir.Consume(mir.Temp(0)),
			Destination: &mir.CallDestination{Lvalue: mir.Temp(1), Target: 1},
		}},
	}}, body.Blocks...)

	graph := Build(map[types.DefID]*mir.Body{local: body})
	assert.Equal(t, 1, graph.Len())
}
