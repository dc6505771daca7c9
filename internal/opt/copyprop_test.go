package opt

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"sable/internal/mir"
	"sable/internal/types"
)

func TestCopyPropForwardsWithinBlock(t *testing.T) {
	body := newBody(types.Int(32))
	body.VarDecls = []mir.VarDecl{{Ty: types.Int(32), Name: "x", SourceInfo: testInfo()}}
	body.TempDecls = []mir.TempDecl{{Ty: types.Int(32)}}
	body.Blocks = []mir.BasicBlockData{
		block(&mir.ReturnTerm{},
			assign(mir.Temp(0), use(mir.Consume(mir.Var(0)))),
			assign(&mir.ReturnPointer{}, use(mir.Consume(mir.Temp(0))))),
	}

	changed := CopyPropagation{}.RunOnBody(newTestContext(), Source{}, body)
	assert.True(t, changed)

	final := body.Blocks[0].Statements[1].Kind.(*mir.AssignStmt)
	useRv := final.Rvalue.(*mir.UseRvalue)
	consume := useRv.Operand.(*mir.ConsumeOperand)
	_, isVar := consume.Lvalue.(*mir.VarLvalue)
	assert.True(t, isVar, "the temp read is replaced by the var it copied")

	// The now-dead copy is nopped out.
	_, isNop := body.Blocks[0].Statements[0].Kind.(*mir.NopStmt)
	assert.True(t, isNop)
}

func TestCopyPropStopsAtReassignment(t *testing.T) {
	body := newBody(types.Int(32))
	body.VarDecls = []mir.VarDecl{{Ty: types.Int(32), Name: "x", SourceInfo: testInfo()}}
	body.TempDecls = []mir.TempDecl{{Ty: types.Int(32)}}
	body.Blocks = []mir.BasicBlockData{
		block(&mir.ReturnTerm{},
			assign(mir.Temp(0), use(mir.Consume(mir.Var(0)))),
			assign(mir.Var(0), use(intConst(5))),
			assign(&mir.ReturnPointer{}, use(mir.Consume(mir.Temp(0))))),
	}

	CopyPropagation{}.RunOnBody(newTestContext(), Source{}, body)

	final := body.Blocks[0].Statements[2].Kind.(*mir.AssignStmt)
	useRv := final.Rvalue.(*mir.UseRvalue)
	consume := useRv.Operand.(*mir.ConsumeOperand)
	_, isTemp := consume.Lvalue.(*mir.TempLvalue)
	assert.True(t, isTemp, "a clobbered source must not be forwarded")
}

func TestConstantsForwardAcrossBlocks(t *testing.T) {
	body := newBody(types.Int(32))
	body.TempDecls = []mir.TempDecl{{Ty: types.Int(32)}}
	body.Blocks = []mir.BasicBlockData{
		block(&mir.GotoTerm{Target: 1},
			assign(mir.Temp(0), use(intConst(7)))),
		block(&mir.ReturnTerm{},
			assign(&mir.ReturnPointer{}, use(mir.Consume(mir.Temp(0))))),
	}

	changed := CopyPropagation{}.RunOnBody(newTestContext(), Source{}, body)
	assert.True(t, changed)

	final := body.Blocks[1].Statements[0].Kind.(*mir.AssignStmt)
	useRv := final.Rvalue.(*mir.UseRvalue)
	konst, ok := useRv.Operand.(*mir.ConstantOperand)
	assert.True(t, ok, "a single-def constant temp is forwarded across blocks")
	if ok {
		assert.Equal(t, int64(7), konst.Constant.Literal.(*mir.ValueLiteral).Value)
	}
}

func TestMultiplyWrittenTempIsNotConstantForwarded(t *testing.T) {
	body := newBody(types.Int(32))
	body.TempDecls = []mir.TempDecl{{Ty: types.Int(32)}}
	body.Blocks = []mir.BasicBlockData{
		block(&mir.GotoTerm{Target: 1},
			assign(mir.Temp(0), use(intConst(7))),
			assign(mir.Temp(0), use(intConst(8)))),
		block(&mir.ReturnTerm{},
			assign(&mir.ReturnPointer{}, use(mir.Consume(mir.Temp(0))))),
	}

	CopyPropagation{}.RunOnBody(newTestContext(), Source{}, body)

	final := body.Blocks[1].Statements[0].Kind.(*mir.AssignStmt)
	useRv := final.Rvalue.(*mir.UseRvalue)
	_, isConsume := useRv.Operand.(*mir.ConsumeOperand)
	assert.True(t, isConsume, "two writes disqualify cross-block forwarding")
}
