package mir

import (
	"sable/internal/types"
)

// Subst returns a structurally independent copy of body with every stored
// type substituted under args. The input body is not modified; callers keep
// the generic original and integrate the specialized copy.
func Subst(body *Body, args types.GenericArgs) *Body {
	c := cloner{args: args}
	return c.body(body)
}

// Clone returns a deep copy of body with types unchanged.
func Clone(body *Body) *Body {
	c := cloner{}
	return c.body(body)
}

type cloner struct {
	args types.GenericArgs
}

func (c *cloner) ty(t types.Type) types.Type {
	if t == nil {
		return nil
	}
	return types.Subst(t, c.args)
}

func (c *cloner) body(b *Body) *Body {
	out := &Body{
		Blocks:           make([]BasicBlockData, len(b.Blocks)),
		VisibilityScopes: make([]VisibilityScopeData, len(b.VisibilityScopes)),
		Promoted:         make([]*Body, len(b.Promoted)),
		VarDecls:         make([]VarDecl, len(b.VarDecls)),
		TempDecls:        make([]TempDecl, len(b.TempDecls)),
		ArgDecls:         make([]ArgDecl, len(b.ArgDecls)),
		UpvarDecls:       make([]UpvarDecl, len(b.UpvarDecls)),
		ReturnTy:         c.ty(b.ReturnTy),
		Span:             b.Span,
	}
	copy(out.UpvarDecls, b.UpvarDecls)
	for i, scope := range b.VisibilityScopes {
		if scope.ParentScope != nil {
			parent := *scope.ParentScope
			scope.ParentScope = &parent
		}
		out.VisibilityScopes[i] = scope
	}
	for i, p := range b.Promoted {
		out.Promoted[i] = c.body(p)
	}
	for i, v := range b.VarDecls {
		v.Ty = c.ty(v.Ty)
		out.VarDecls[i] = v
	}
	for i, t := range b.TempDecls {
		t.Ty = c.ty(t.Ty)
		out.TempDecls[i] = t
	}
	for i, a := range b.ArgDecls {
		a.Ty = c.ty(a.Ty)
		out.ArgDecls[i] = a
	}
	for i := range b.Blocks {
		out.Blocks[i] = c.block(&b.Blocks[i])
	}
	return out
}

func (c *cloner) block(b *BasicBlockData) BasicBlockData {
	out := BasicBlockData{
		Statements: make([]Statement, len(b.Statements)),
		IsCleanup:  b.IsCleanup,
	}
	for i, s := range b.Statements {
		out.Statements[i] = Statement{SourceInfo: s.SourceInfo, Kind: c.statementKind(s.Kind)}
	}
	if b.Terminator != nil {
		out.Terminator = &Terminator{
			SourceInfo: b.Terminator.SourceInfo,
			Kind:       c.terminatorKind(b.Terminator.Kind),
		}
	}
	return out
}

func (c *cloner) statementKind(kind StatementKind) StatementKind {
	switch s := kind.(type) {
	case *AssignStmt:
		return &AssignStmt{Lvalue: c.lvalue(s.Lvalue), Rvalue: c.rvalue(s.Rvalue)}
	case *StorageLiveStmt:
		return &StorageLiveStmt{Lvalue: c.lvalue(s.Lvalue)}
	case *StorageDeadStmt:
		return &StorageDeadStmt{Lvalue: c.lvalue(s.Lvalue)}
	case *SetDiscriminantStmt:
		return &SetDiscriminantStmt{Lvalue: c.lvalue(s.Lvalue), Variant: s.Variant}
	case *NopStmt:
		return &NopStmt{}
	}
	return kind
}

func (c *cloner) terminatorKind(kind TerminatorKind) TerminatorKind {
	switch t := kind.(type) {
	case *GotoTerm:
		return &GotoTerm{Target: t.Target}
	case *IfTerm:
		return &IfTerm{Cond: BlockPair{Cond: c.operand(t.Cond.Cond), Then: t.Cond.Then, Else: t.Cond.Else}}
	case *SwitchTerm:
		targets := make([]BlockID, len(t.Targets))
		copy(targets, t.Targets)
		return &SwitchTerm{Discr: c.lvalue(t.Discr), Targets: targets}
	case *SwitchIntTerm:
		values := make([]int64, len(t.Values))
		copy(values, t.Values)
		targets := make([]BlockID, len(t.Targets))
		copy(targets, t.Targets)
		return &SwitchIntTerm{Discr: c.lvalue(t.Discr), Values: values, Targets: targets}
	case *DropTerm:
		return &DropTerm{Location: c.lvalue(t.Location), Target: t.Target, Unwind: copyBlockRef(t.Unwind)}
	case *DropAndReplaceTerm:
		return &DropAndReplaceTerm{
			Location: c.lvalue(t.Location),
			Value:    c.operand(t.Value),
			Target:   t.Target,
			Unwind:   copyBlockRef(t.Unwind),
		}
	case *CallTerm:
		args := make([]Operand, len(t.Args))
		for i, a := range t.Args {
			args[i] = c.operand(a)
		}
		var dest *CallDestination
		if t.Destination != nil {
			dest = &CallDestination{Lvalue: c.lvalue(t.Destination.Lvalue), Target: t.Destination.Target}
		}
		return &CallTerm{Func: c.operand(t.Func), Args: args, Destination: dest, Cleanup: copyBlockRef(t.Cleanup)}
	case *AssertTerm:
		return &AssertTerm{
			Cond:     c.operand(t.Cond),
			Expected: t.Expected,
			Msg:      t.Msg,
			Target:   t.Target,
			Cleanup:  copyBlockRef(t.Cleanup),
		}
	case *ReturnTerm:
		return &ReturnTerm{}
	case *ResumeTerm:
		return &ResumeTerm{}
	case *UnreachableTerm:
		return &UnreachableTerm{}
	}
	return kind
}

func copyBlockRef(b *BlockID) *BlockID {
	if b == nil {
		return nil
	}
	id := *b
	return &id
}

func (c *cloner) lvalue(lv Lvalue) Lvalue {
	switch l := lv.(type) {
	case *Projection:
		return &Projection{Base: c.lvalue(l.Base), Elem: c.projectionElem(l.Elem)}
	default:
		return CopyLvalue(lv)
	}
}

func (c *cloner) projectionElem(elem ProjectionElem) ProjectionElem {
	switch e := elem.(type) {
	case *FieldElem:
		return &FieldElem{Field: e.Field, Ty: c.ty(e.Ty)}
	case *IndexElem:
		return &IndexElem{Operand: c.operand(e.Operand)}
	default:
		return copyProjectionElem(elem)
	}
}

func (c *cloner) operand(op Operand) Operand {
	switch o := op.(type) {
	case *ConsumeOperand:
		return &ConsumeOperand{Lvalue: c.lvalue(o.Lvalue)}
	case *ConstantOperand:
		konst := Constant{
			Span:    o.Constant.Span,
			Ty:      c.ty(o.Constant.Ty),
			Literal: c.literal(o.Constant.Literal),
		}
		return &ConstantOperand{Constant: konst}
	}
	return op
}

func (c *cloner) literal(lit Literal) Literal {
	switch l := lit.(type) {
	case *ItemLiteral:
		substs := make(types.GenericArgs, len(l.Substs))
		for i, s := range l.Substs {
			substs[i] = c.ty(s)
		}
		return &ItemLiteral{Def: l.Def, Substs: substs}
	default:
		return copyLiteral(lit)
	}
}

func (c *cloner) rvalue(rv Rvalue) Rvalue {
	switch r := rv.(type) {
	case *UseRvalue:
		return &UseRvalue{Operand: c.operand(r.Operand)}
	case *RefRvalue:
		return &RefRvalue{Kind: r.Kind, Lvalue: c.lvalue(r.Lvalue)}
	case *CastRvalue:
		return &CastRvalue{Kind: r.Kind, Op: c.operand(r.Op), Ty: c.ty(r.Ty)}
	case *BinaryOpRvalue:
		return &BinaryOpRvalue{Op: r.Op, Left: c.operand(r.Left), Right: c.operand(r.Right)}
	case *UnaryOpRvalue:
		return &UnaryOpRvalue{Op: r.Op, Operand: c.operand(r.Operand)}
	case *AggregateRvalue:
		ops := make([]Operand, len(r.Operands))
		for i, o := range r.Operands {
			ops[i] = c.operand(o)
		}
		return &AggregateRvalue{Ty: c.ty(r.Ty), Operands: ops}
	}
	return rv
}
