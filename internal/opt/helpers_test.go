package opt

import (
	"testing"

	"sable/internal/mir"
	"sable/internal/session"
	"sable/internal/types"
)

// Shared builders for pass tests: bodies are assembled by hand the same way
// the frontend lowers them, with one root scope and dense slots.

func newTestContext() *session.Context {
	ctx := session.NewContext(session.Options{MIROptLevel: 2})
	ctx.SourceMap.Grow(1000)
	return ctx
}

func testSpan() mir.Span { return mir.Span{Lo: 10, Hi: 20} }

func testInfo() mir.SourceInfo { return mir.SourceInfo{Span: testSpan(), Scope: mir.ArgScope} }

func newBody(ret types.Type) *mir.Body {
	return &mir.Body{
		ReturnTy:         ret,
		Span:             mir.Span{Lo: 1, Hi: 100},
		VisibilityScopes: []mir.VisibilityScopeData{{Span: mir.Span{Lo: 1, Hi: 100}}},
	}
}

func block(term mir.TerminatorKind, stmts ...mir.Statement) mir.BasicBlockData {
	return mir.BasicBlockData{
		Statements: stmts,
		Terminator: &mir.Terminator{SourceInfo: testInfo(), Kind: term},
	}
}

func cleanupBlock(term mir.TerminatorKind, stmts ...mir.Statement) mir.BasicBlockData {
	data := block(term, stmts...)
	data.IsCleanup = true
	return data
}

func assign(lv mir.Lvalue, rv mir.Rvalue) mir.Statement {
	return mir.Statement{SourceInfo: testInfo(), Kind: &mir.AssignStmt{Lvalue: lv, Rvalue: rv}}
}

func use(op mir.Operand) mir.Rvalue { return &mir.UseRvalue{Operand: op} }

func intConst(value int64) mir.Operand {
	return &mir.ConstantOperand{Constant: mir.Constant{
		Span:    testSpan(),
		Ty:      types.Int(32),
		Literal: &mir.ValueLiteral{Value: value},
	}}
}

func fnRef(def types.DefID, substs types.GenericArgs, abi types.Abi) mir.Operand {
	return &mir.ConstantOperand{Constant: mir.Constant{
		Span:    testSpan(),
		Ty:      &types.FnDefType{Def: def, Substs: substs, Abi: abi},
		Literal: &mir.ItemLiteral{Def: def, Substs: substs},
	}}
}

func callTerm(def types.DefID, substs types.GenericArgs, args []mir.Operand, dest mir.Lvalue, target mir.BlockID, cleanup *mir.BlockID) mir.TerminatorKind {
	return &mir.CallTerm{
		Func:        fnRef(def, substs, types.AbiSable),
		Args:        args,
		Destination: &mir.CallDestination{Lvalue: dest, Target: target},
		Cleanup:     cleanup,
	}
}

func blockRef(id mir.BlockID) *mir.BlockID { return &id }

func runInline(ctx *session.Context, bodies map[types.DefID]*mir.Body) {
	(&Inline{}).RunPass(ctx, bodies, nil)
}

func countCalls(body *mir.Body) int {
	count := 0
	for bb := range body.Blocks {
		if body.Blocks[bb].Terminator == nil {
			continue
		}
		if _, ok := body.Blocks[bb].Terminator.Kind.(*mir.CallTerm); ok {
			count++
		}
	}
	return count
}

func callTargets(body *mir.Body) []types.DefID {
	var targets []types.DefID
	for bb := range body.Blocks {
		term := body.Blocks[bb].Terminator
		if term == nil {
			continue
		}
		if def, _, ok := mir.DirectCallee(term.Kind); ok {
			targets = append(targets, def)
		}
	}
	return targets
}

// validateBody asserts the structural invariants every accepted inlining
// must preserve.
func validateBody(t *testing.T, body *mir.Body) {
	t.Helper()

	for bb := range body.Blocks {
		block := &body.Blocks[bb]
		term := block.Terminator
		if term == nil {
			t.Errorf("bb%d has no terminator", bb)
			continue
		}
		for _, succ := range term.Kind.Successors() {
			if int(succ) >= len(body.Blocks) || succ < 0 {
				t.Errorf("bb%d branches to nonexistent bb%d", bb, succ)
			}
		}

		// Populated unwind edges on non-cleanup blocks must target
		// cleanup blocks.
		if !block.IsCleanup {
			var unwind *mir.BlockID
			switch kind := term.Kind.(type) {
			case *mir.DropTerm:
				unwind = kind.Unwind
			case *mir.DropAndReplaceTerm:
				unwind = kind.Unwind
			case *mir.CallTerm:
				unwind = kind.Cleanup
			case *mir.AssertTerm:
				unwind = kind.Cleanup
			}
			if unwind != nil && !body.Blocks[*unwind].IsCleanup {
				t.Errorf("bb%d unwinds to non-cleanup bb%d", bb, *unwind)
			}
		}

		for i := range block.Statements {
			validateSourceInfo(t, body, block.Statements[i].SourceInfo)
			validateStatementLvalues(t, body, block.Statements[i].Kind)
		}
		validateSourceInfo(t, body, term.SourceInfo)
		validateTerminatorLvalues(t, body, term.Kind)
	}

	// Scope forest: parents resolve to lower indices.
	for i, scope := range body.VisibilityScopes {
		if scope.ParentScope != nil {
			if int(*scope.ParentScope) >= i {
				t.Errorf("scope %d has parent %d, not a lower index", i, *scope.ParentScope)
			}
		}
	}

	// Cleanup-reachability closure.
	for bb := range body.Blocks {
		if !body.Blocks[bb].IsCleanup {
			continue
		}
		worklist := []mir.BlockID{mir.BlockID(bb)}
		seen := map[mir.BlockID]bool{mir.BlockID(bb): true}
		for len(worklist) > 0 {
			current := worklist[len(worklist)-1]
			worklist = worklist[:len(worklist)-1]
			if !body.Blocks[current].IsCleanup {
				t.Errorf("non-cleanup bb%d reachable from cleanup bb%d", current, bb)
				continue
			}
			if body.Blocks[current].Terminator == nil {
				continue
			}
			for _, succ := range body.Blocks[current].Terminator.Kind.Successors() {
				if !seen[succ] {
					seen[succ] = true
					worklist = append(worklist, succ)
				}
			}
		}
	}
}

func validateSourceInfo(t *testing.T, body *mir.Body, si mir.SourceInfo) {
	t.Helper()
	if int(si.Scope) >= len(body.VisibilityScopes) {
		t.Errorf("source info references nonexistent scope %d", si.Scope)
	}
}

func validateStatementLvalues(t *testing.T, body *mir.Body, kind mir.StatementKind) {
	t.Helper()
	switch s := kind.(type) {
	case *mir.AssignStmt:
		validateLvalue(t, body, s.Lvalue)
		validateRvalueLvalues(t, body, s.Rvalue)
	case *mir.StorageLiveStmt:
		validateLvalue(t, body, s.Lvalue)
	case *mir.StorageDeadStmt:
		validateLvalue(t, body, s.Lvalue)
	case *mir.SetDiscriminantStmt:
		validateLvalue(t, body, s.Lvalue)
	}
}

func validateRvalueLvalues(t *testing.T, body *mir.Body, rv mir.Rvalue) {
	t.Helper()
	switch r := rv.(type) {
	case *mir.UseRvalue:
		validateOperand(t, body, r.Operand)
	case *mir.RefRvalue:
		validateLvalue(t, body, r.Lvalue)
	case *mir.CastRvalue:
		validateOperand(t, body, r.Op)
	case *mir.BinaryOpRvalue:
		validateOperand(t, body, r.Left)
		validateOperand(t, body, r.Right)
	case *mir.UnaryOpRvalue:
		validateOperand(t, body, r.Operand)
	case *mir.AggregateRvalue:
		for _, op := range r.Operands {
			validateOperand(t, body, op)
		}
	}
}

func validateTerminatorLvalues(t *testing.T, body *mir.Body, kind mir.TerminatorKind) {
	t.Helper()
	switch k := kind.(type) {
	case *mir.IfTerm:
		validateOperand(t, body, k.Cond.Cond)
	case *mir.SwitchTerm:
		validateLvalue(t, body, k.Discr)
	case *mir.SwitchIntTerm:
		validateLvalue(t, body, k.Discr)
	case *mir.DropTerm:
		validateLvalue(t, body, k.Location)
	case *mir.DropAndReplaceTerm:
		validateLvalue(t, body, k.Location)
		validateOperand(t, body, k.Value)
	case *mir.CallTerm:
		validateOperand(t, body, k.Func)
		for _, arg := range k.Args {
			validateOperand(t, body, arg)
		}
		if k.Destination != nil {
			validateLvalue(t, body, k.Destination.Lvalue)
		}
	case *mir.AssertTerm:
		validateOperand(t, body, k.Cond)
	}
}

func validateOperand(t *testing.T, body *mir.Body, op mir.Operand) {
	t.Helper()
	if consume, ok := op.(*mir.ConsumeOperand); ok {
		validateLvalue(t, body, consume.Lvalue)
	}
}

func validateLvalue(t *testing.T, body *mir.Body, lv mir.Lvalue) {
	t.Helper()
	switch l := lv.(type) {
	case *mir.VarLvalue:
		if int(l.Index) >= len(body.VarDecls) {
			t.Errorf("reference to nonexistent var%d", l.Index)
		}
	case *mir.TempLvalue:
		if int(l.Index) >= len(body.TempDecls) {
			t.Errorf("reference to nonexistent tmp%d", l.Index)
		}
	case *mir.ArgLvalue:
		if int(l.Index) >= len(body.ArgDecls) {
			t.Errorf("reference to nonexistent arg%d", l.Index)
		}
	case *mir.Projection:
		validateLvalue(t, body, l.Base)
		if idx, ok := l.Elem.(*mir.IndexElem); ok {
			validateOperand(t, body, idx.Operand)
		}
	}
}
