package opt

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"sable/internal/mir"
	"sable/internal/types"
)

func TestGotoChainsCollapse(t *testing.T) {
	body := newBody(types.Unit())
	body.Blocks = []mir.BasicBlockData{
		block(&mir.GotoTerm{Target: 1}),
		block(&mir.GotoTerm{Target: 2}),
		block(&mir.GotoTerm{Target: 3}),
		block(&mir.ReturnTerm{}),
	}

	NewCfgSimplifier(body).Simplify()
	RemoveDeadBlocks(body)

	assert.Len(t, body.Blocks, 1)
	_, isReturn := body.Blocks[0].Terminator.Kind.(*mir.ReturnTerm)
	assert.True(t, isReturn)
	validateBody(t, body)
}

func TestSinglePredecessorMerge(t *testing.T) {
	body := newBody(types.Int(32))
	body.Blocks = []mir.BasicBlockData{
		block(&mir.GotoTerm{Target: 1},
			assign(&mir.ReturnPointer{}, use(intConst(1)))),
		block(&mir.ReturnTerm{},
			assign(&mir.ReturnPointer{}, use(intConst(2)))),
	}

	NewCfgSimplifier(body).Simplify()
	RemoveDeadBlocks(body)

	assert.Len(t, body.Blocks, 1)
	assert.Len(t, body.Blocks[0].Statements, 2)
}

func TestSharedSuccessorIsNotMerged(t *testing.T) {
	body := newBody(types.Int(32))
	body.Blocks = []mir.BasicBlockData{
		block(&mir.IfTerm{Cond: mir.BlockPair{Cond: intConst(1), Then: 1, Else: 2}}),
		block(&mir.GotoTerm{Target: 3}, assign(&mir.ReturnPointer{}, use(intConst(1)))),
		block(&mir.GotoTerm{Target: 3}, assign(&mir.ReturnPointer{}, use(intConst(2)))),
		block(&mir.ReturnTerm{}, assign(&mir.ReturnPointer{}, use(intConst(3)))),
	}

	NewCfgSimplifier(body).Simplify()
	RemoveDeadBlocks(body)

	// bb3 has two predecessors and statements: it must not be duplicated
	// or merged away.
	assert.Len(t, body.Blocks, 4)
	validateBody(t, body)
}

func TestRemoveDeadBlocksKeepsEntryAtZero(t *testing.T) {
	body := newBody(types.Unit())
	body.Blocks = []mir.BasicBlockData{
		block(&mir.GotoTerm{Target: 2}),
		block(&mir.ReturnTerm{}, assign(&mir.ReturnPointer{}, use(intConst(9)))), // dead
		block(&mir.ReturnTerm{}),
	}

	RemoveDeadBlocks(body)

	assert.Len(t, body.Blocks, 2)
	goto_, ok := body.Blocks[0].Terminator.Kind.(*mir.GotoTerm)
	assert.True(t, ok)
	assert.Equal(t, mir.BlockID(1), goto_.Target, "surviving targets are renumbered densely")
	validateBody(t, body)
}

func TestUnwindEdgesKeepBlocksAlive(t *testing.T) {
	body := newBody(types.Unit())
	body.VarDecls = []mir.VarDecl{{Ty: &types.AdtType{Name: "G", Size: 8, HasDtor: true}, SourceInfo: testInfo()}}
	body.Blocks = []mir.BasicBlockData{
		block(&mir.DropTerm{Location: mir.Var(0), Target: 1, Unwind: blockRef(2)}),
		block(&mir.ReturnTerm{}),
		cleanupBlock(&mir.ResumeTerm{}),
	}

	RemoveDeadBlocks(body)

	assert.Len(t, body.Blocks, 3, "cleanup blocks reached by unwind edges are live")
	validateBody(t, body)
}

func TestCleanupBlocksAreNotMergedIntoNormalFlow(t *testing.T) {
	body := newBody(types.Unit())
	body.Blocks = []mir.BasicBlockData{
		block(&mir.GotoTerm{Target: 1}),
		block(&mir.ReturnTerm{}),
	}
	// A cleanup chain: goto into a cleanup continuation.
	body.Blocks = append(body.Blocks,
		cleanupBlock(&mir.GotoTerm{Target: 3}),
		cleanupBlock(&mir.ResumeTerm{}, assign(&mir.ReturnPointer{}, use(intConst(1)))),
	)
	// Keep the chain reachable through a call's cleanup edge.
	body.TempDecls = []mir.TempDecl{{Ty: types.Unit()}}
	body.Blocks[0] = block(&mir.CallTerm{
		Func:        fnRef(types.DefID{Index: 9}, nil, types.AbiSable),
		Destination: &mir.CallDestination{Lvalue: mir.Temp(0), Target: 1},
		Cleanup:     blockRef(2),
	})

	NewCfgSimplifier(body).Simplify()
	RemoveDeadBlocks(body)
	validateBody(t, body)
}
