package opt

import (
	"sable/internal/errors"
	"sable/internal/mir"
	"sable/internal/session"
	"sable/internal/types"
)

// Integration of one callee CFG into one caller CFG: blocks are appended
// behind the caller's and every index the callee carried — blocks, locals,
// scopes, promoted constants — is rewritten into the caller's index spaces.

// inlineCall splices callee (an already-specialized copy the integrator may
// consume) into caller at cs. Returns false, leaving the caller untouched,
// for self-calls and diverging callsites.
func (inl *Inliner) inlineCall(cs CallSite, caller *mir.Body, callee *mir.Body) bool {
	// Don't inline a function into itself.
	if cs.Caller == cs.Callee {
		return false
	}

	closeTask := inl.ctx.DepGraph.InTask(cs.Caller)
	defer closeTask()

	call, ok := caller.Block(cs.BB).Terminator.Kind.(*mir.CallTerm)
	if !ok || call.Destination == nil {
		// Diverging calls are not handled; the callsite keeps its
		// terminator.
		return false
	}

	log.Debugf("inlined %s into %s", inl.ctx.Name(cs.Callee), inl.ctx.Name(cs.Caller))

	isBoxFree := inl.ctx.LangItems.BoxFree != nil && *inl.ctx.LangItems.BoxFree == cs.Callee

	sm := inl.ctx.SourceMap

	// Scope integration: callee root scopes nest under the callsite's
	// scope so the callee's debug info appears inside the caller's frame.
	scopeMap := make([]mir.ScopeID, 0, len(callee.VisibilityScopes))
	for _, scope := range callee.VisibilityScopes {
		if scope.ParentScope == nil {
			parent := cs.Location.Scope
			scope.ParentScope = &parent
			scope.Span = callee.Span
		} else {
			parent := scopeMap[*scope.ParentScope]
			scope.ParentScope = &parent
		}
		if !sm.IsValid(scope.Span) {
			scope.Span = cs.Location.Span
		}
		caller.VisibilityScopes = append(caller.VisibilityScopes, scope)
		scopeMap = append(scopeMap, mir.ScopeID(len(caller.VisibilityScopes)-1))
	}

	varMap := make([]mir.VarID, 0, len(callee.VarDecls))
	for _, v := range callee.VarDecls {
		v.SourceInfo.Scope = scopeMap[v.SourceInfo.Scope]
		if !sm.IsValid(v.SourceInfo.Span) {
			v.SourceInfo.Span = cs.Location.Span
		}
		caller.VarDecls = append(caller.VarDecls, v)
		varMap = append(varMap, mir.VarID(len(caller.VarDecls)-1))
	}

	tmpMap := make([]mir.TempID, 0, len(callee.TempDecls))
	for _, t := range callee.TempDecls {
		caller.TempDecls = append(caller.TempDecls, t)
		tmpMap = append(tmpMap, mir.TempID(len(caller.TempDecls)-1))
	}

	promotedMap := make([]mir.PromotedID, 0, len(callee.Promoted))
	for _, p := range callee.Promoted {
		caller.Promoted = append(caller.Promoted, p)
		promotedMap = append(promotedMap, mir.PromotedID(len(caller.Promoted)-1))
	}

	destLv := call.Destination.Lvalue
	returnBlock := call.Destination.Target
	cleanup := call.Cleanup

	// If the call is something like `a[*i] = f(i)`, duplicating `a[*i]`
	// into the callee could evaluate it twice with different results if
	// the callee writes to `i`. Borrow the destination once and store
	// through the borrow instead.
	var dest mir.Lvalue
	if destNeedsBorrow(destLv) {
		log.Debugf("creating temp for return destination")
		ty := types.MutRef(mir.LvalueTy(caller, inl.ctx.StaticTy, destLv))
		tmp := caller.NewTemp(ty)
		borrow := mir.Statement{
			SourceInfo: cs.Location,
			Kind: &mir.AssignStmt{
				Lvalue: mir.Temp(tmp),
				Rvalue: &mir.RefRvalue{Kind: mir.BorrowMut, Lvalue: destLv},
			},
		}
		caller.Block(cs.BB).Statements = append(caller.Block(cs.BB).Statements, borrow)
		dest = mir.Deref(mir.Temp(tmp))
	} else {
		dest = destLv
	}

	var args []mir.Operand
	if isBoxFree {
		if len(call.Args) != 1 {
			errors.Bug("box_free called with %d arguments", len(call.Args))
		}
		consume, ok := call.Args[0].(*mir.ConsumeOperand)
		if !ok {
			errors.Bug("constant arg to box_free")
		}
		ptrTy := mir.OperandTy(caller, inl.ctx.StaticTy, call.Args[0])
		args = []mir.Operand{inl.castBoxFreeArg(consume.Lvalue, ptrTy, cs, caller)}
	} else {
		args = inl.makeCallArgs(call.Args, cs, caller)
	}

	offset := len(caller.Blocks)
	integrator := &Integrator{
		ctx:          inl.ctx,
		blockIdx:     offset,
		args:         args,
		varMap:       varMap,
		tmpMap:       tmpMap,
		scopeMap:     scopeMap,
		promotedMap:  promotedMap,
		callsite:     cs,
		destination:  dest,
		returnBlock:  returnBlock,
		cleanupBlock: cleanup,
	}

	for bb := range callee.Blocks {
		block := callee.Blocks[bb]
		integrator.visitBlock(&block)
		caller.Blocks = append(caller.Blocks, block)
	}

	caller.Block(cs.BB).Terminator = &mir.Terminator{
		SourceInfo: cs.Location,
		Kind:       &mir.GotoTerm{Target: mir.BlockID(offset)},
	}

	// Clean up the assignments integration introduced; this also raises
	// the caller's own chance of being inlined.
	log.Debugf("running copy propagation on %s", inl.ctx.Name(cs.Caller))
	CopyPropagation{}.RunOnBody(inl.ctx, Source{Def: cs.Caller}, caller)

	return true
}

// destNeedsBorrow reports whether storing through dest from inlined code
// could observe a different location than the original call would have:
// true for statics (the callee may write the same static) and for any
// projection that re-evaluates a pointer or index.
func destNeedsBorrow(lv mir.Lvalue) bool {
	switch l := lv.(type) {
	case *mir.Projection:
		switch l.Elem.(type) {
		case *mir.DerefElem, *mir.IndexElem:
			return true
		}
		return destNeedsBorrow(l.Base)
	case *mir.StaticLvalue:
		return true
	}
	return false
}

// makeCallArgs materializes argument operands as caller temporaries, so
// rewriting an argument use inside the callee never duplicates an effectful
// read. Operands that already are temporaries pass through.
func (inl *Inliner) makeCallArgs(operands []mir.Operand, cs CallSite, caller *mir.Body) []mir.Operand {
	args := make([]mir.Operand, len(operands))
	for i, op := range operands {
		if consume, ok := op.(*mir.ConsumeOperand); ok {
			if _, ok := consume.Lvalue.(*mir.TempLvalue); ok {
				// Reuse the operand if it's a temporary already.
				args[i] = op
				continue
			}
		}

		log.Debugf("creating temp for argument %d", i)
		ty := mir.OperandTy(caller, inl.ctx.StaticTy, op)
		tmp := caller.NewTemp(ty)
		stmt := mir.Statement{
			SourceInfo: cs.Location,
			Kind: &mir.AssignStmt{
				Lvalue: mir.Temp(tmp),
				Rvalue: &mir.UseRvalue{Operand: op},
			},
		}
		caller.Block(cs.BB).Statements = append(caller.Block(cs.BB).Statements, stmt)
		args[i] = mir.Consume(mir.Temp(tmp))
	}
	return args
}

// castBoxFreeArg bridges the gap between box_free's declared signature
// (a raw pointer) and the box its callsites actually pass: take a mutable
// reference to the box's contents and cast it to the raw pointer type.
func (inl *Inliner) castBoxFreeArg(arg mir.Lvalue, ptrTy types.Type, cs CallSite, caller *mir.Body) mir.Operand {
	var pointee types.Type
	switch t := ptrTy.(type) {
	case *types.BoxType:
		pointee = t.Elem
	case *types.RawPtrType:
		pointee = t.Elem
	case *types.RefType:
		pointee = t.Elem
	default:
		errors.Bug("invalid type %s for call to box_free", ptrTy)
	}

	refTy := types.MutRef(pointee)
	refTmp := caller.NewTemp(refTy)
	refStmt := mir.Statement{
		SourceInfo: cs.Location,
		Kind: &mir.AssignStmt{
			Lvalue: mir.Temp(refTmp),
			Rvalue: &mir.RefRvalue{Kind: mir.BorrowMut, Lvalue: mir.Deref(arg)},
		},
	}
	caller.Block(cs.BB).Statements = append(caller.Block(cs.BB).Statements, refStmt)

	rawTy := types.MutPtr(pointee)
	castTmp := caller.NewTemp(rawTy)
	castStmt := mir.Statement{
		SourceInfo: cs.Location,
		Kind: &mir.AssignStmt{
			Lvalue: mir.Temp(castTmp),
			Rvalue: &mir.CastRvalue{Kind: mir.CastMisc, Op: mir.Consume(mir.Temp(refTmp)), Ty: rawTy},
		},
	}
	caller.Block(cs.BB).Statements = append(caller.Block(cs.BB).Statements, castStmt)

	return mir.Consume(mir.Temp(castTmp))
}

// Integrator rewrites one callee block at a time into the caller's index
// spaces: block ids shift by blockIdx, locals and scopes go through the
// remap tables, the return slot becomes the call's destination, argument
// slots become the materialized argument operands, and return/resume edges
// reroute to the caller's continuation blocks.
type Integrator struct {
	ctx            *session.Context
	blockIdx       int
	args           []mir.Operand
	varMap         []mir.VarID
	tmpMap         []mir.TempID
	scopeMap       []mir.ScopeID
	promotedMap    []mir.PromotedID
	callsite       CallSite
	destination    mir.Lvalue
	returnBlock    mir.BlockID
	cleanupBlock   *mir.BlockID
	inCleanupBlock bool
}

func (in *Integrator) updateTarget(target mir.BlockID) mir.BlockID {
	return target + mir.BlockID(in.blockIdx)
}

func (in *Integrator) updateSpan(span mir.Span) mir.Span {
	if in.ctx.SourceMap.IsValid(span) {
		return span
	}
	return in.callsite.Location.Span
}

func (in *Integrator) visitBlock(block *mir.BasicBlockData) {
	in.inCleanupBlock = block.IsCleanup
	for i := range block.Statements {
		in.visitStatement(&block.Statements[i])
	}
	if block.Terminator != nil {
		in.visitTerminator(block.Terminator)
	}
	in.inCleanupBlock = false
}

func (in *Integrator) visitSourceInfo(si *mir.SourceInfo) {
	si.Span = in.updateSpan(si.Span)
	si.Scope = in.scopeMap[si.Scope]
}

func (in *Integrator) visitStatement(stmt *mir.Statement) {
	in.visitSourceInfo(&stmt.SourceInfo)
	switch kind := stmt.Kind.(type) {
	case *mir.AssignStmt:
		kind.Lvalue = in.visitLvalue(kind.Lvalue)
		kind.Rvalue = in.visitRvalue(kind.Rvalue)
	case *mir.StorageLiveStmt:
		kind.Lvalue = in.visitLvalue(kind.Lvalue)
	case *mir.StorageDeadStmt:
		kind.Lvalue = in.visitLvalue(kind.Lvalue)
	case *mir.SetDiscriminantStmt:
		kind.Lvalue = in.visitLvalue(kind.Lvalue)
	}
}

func (in *Integrator) visitLvalue(lv mir.Lvalue) mir.Lvalue {
	switch l := lv.(type) {
	case *mir.VarLvalue:
		return mir.Var(in.varMap[l.Index])
	case *mir.TempLvalue:
		return mir.Temp(in.tmpMap[l.Index])
	case *mir.ReturnPointer:
		return mir.CopyLvalue(in.destination)
	case *mir.ArgLvalue:
		if consume, ok := in.args[l.Index].(*mir.ConsumeOperand); ok {
			return mir.CopyLvalue(consume.Lvalue)
		}
		errors.Bug("arg operand arg%d is not an lvalue use", l.Index)
	case *mir.Projection:
		return &mir.Projection{
			Base: in.visitLvalue(l.Base),
			Elem: in.visitProjectionElem(l.Elem),
		}
	}
	return lv
}

func (in *Integrator) visitProjectionElem(elem mir.ProjectionElem) mir.ProjectionElem {
	if idx, ok := elem.(*mir.IndexElem); ok {
		return &mir.IndexElem{Operand: in.visitOperand(idx.Operand)}
	}
	return elem
}

func (in *Integrator) visitOperand(op mir.Operand) mir.Operand {
	switch o := op.(type) {
	case *mir.ConsumeOperand:
		// A consumed argument slot is replaced by the argument operand
		// itself, preserving constants.
		if arg, ok := o.Lvalue.(*mir.ArgLvalue); ok {
			return mir.CopyOperand(in.args[arg.Index])
		}
		return mir.Consume(in.visitLvalue(o.Lvalue))
	case *mir.ConstantOperand:
		konst := o.Constant
		konst.Span = in.updateSpan(konst.Span)
		if promoted, ok := konst.Literal.(*mir.PromotedLiteral); ok {
			konst.Literal = &mir.PromotedLiteral{Index: in.promotedMap[promoted.Index]}
		}
		return &mir.ConstantOperand{Constant: konst}
	}
	return op
}

func (in *Integrator) visitRvalue(rv mir.Rvalue) mir.Rvalue {
	switch r := rv.(type) {
	case *mir.UseRvalue:
		r.Operand = in.visitOperand(r.Operand)
	case *mir.RefRvalue:
		r.Lvalue = in.visitLvalue(r.Lvalue)
	case *mir.CastRvalue:
		r.Op = in.visitOperand(r.Op)
	case *mir.BinaryOpRvalue:
		r.Left = in.visitOperand(r.Left)
		r.Right = in.visitOperand(r.Right)
	case *mir.UnaryOpRvalue:
		r.Operand = in.visitOperand(r.Operand)
	case *mir.AggregateRvalue:
		for i, op := range r.Operands {
			r.Operands[i] = in.visitOperand(op)
		}
	}
	return rv
}

func (in *Integrator) visitTerminator(term *mir.Terminator) {
	in.visitSourceInfo(&term.SourceInfo)

	switch kind := term.Kind.(type) {
	case *mir.GotoTerm:
		kind.Target = in.updateTarget(kind.Target)

	case *mir.IfTerm:
		kind.Cond.Cond = in.visitOperand(kind.Cond.Cond)
		kind.Cond.Then = in.updateTarget(kind.Cond.Then)
		kind.Cond.Else = in.updateTarget(kind.Cond.Else)

	case *mir.SwitchTerm:
		kind.Discr = in.visitLvalue(kind.Discr)
		for i, target := range kind.Targets {
			kind.Targets[i] = in.updateTarget(target)
		}

	case *mir.SwitchIntTerm:
		kind.Discr = in.visitLvalue(kind.Discr)
		for i, target := range kind.Targets {
			kind.Targets[i] = in.updateTarget(target)
		}

	case *mir.DropTerm:
		kind.Location = in.visitLvalue(kind.Location)
		kind.Target = in.updateTarget(kind.Target)
		kind.Unwind = in.updateUnwind(kind.Unwind)

	case *mir.DropAndReplaceTerm:
		kind.Location = in.visitLvalue(kind.Location)
		kind.Value = in.visitOperand(kind.Value)
		kind.Target = in.updateTarget(kind.Target)
		kind.Unwind = in.updateUnwind(kind.Unwind)

	case *mir.CallTerm:
		kind.Func = in.visitOperand(kind.Func)
		for i, arg := range kind.Args {
			kind.Args[i] = in.visitOperand(arg)
		}
		if kind.Destination != nil {
			kind.Destination.Lvalue = in.visitLvalue(kind.Destination.Lvalue)
			kind.Destination.Target = in.updateTarget(kind.Destination.Target)
		}
		kind.Cleanup = in.updateUnwind(kind.Cleanup)

	case *mir.AssertTerm:
		kind.Cond = in.visitOperand(kind.Cond)
		kind.Target = in.updateTarget(kind.Target)
		kind.Cleanup = in.updateUnwind(kind.Cleanup)

	case *mir.ReturnTerm:
		term.Kind = &mir.GotoTerm{Target: in.returnBlock}

	case *mir.ResumeTerm:
		if in.cleanupBlock != nil {
			term.Kind = &mir.GotoTerm{Target: *in.cleanupBlock}
		}
	}
}

// updateUnwind relocates a present unwind edge by the block offset. An
// absent edge outside a callee cleanup block is routed to the original
// call's cleanup block; inside callee cleanup it stays absent.
func (in *Integrator) updateUnwind(unwind *mir.BlockID) *mir.BlockID {
	if unwind != nil {
		target := in.updateTarget(*unwind)
		return &target
	}
	if in.inCleanupBlock || in.cleanupBlock == nil {
		return nil
	}
	target := *in.cleanupBlock
	return &target
}
