package opt

import (
	"sable/internal/mir"
	"sable/internal/session"
)

// CopyPropagation forwards `tmpN = use(x)` copies into later reads of tmpN
// within the same block, then nops out copies nothing reads anymore. The
// integrator runs it after every inlining to clean up the argument and
// destination temporaries integration introduces.
type CopyPropagation struct{}

func (CopyPropagation) Name() string { return "CopyPropagation" }

func (CopyPropagation) Description() string {
	return "Forwards local copies of temporaries into their uses"
}

// RunOnBody applies the pass to a single body. Returns true if changes were
// made.
func (cp CopyPropagation) RunOnBody(ctx *session.Context, src Source, body *mir.Body) bool {
	changed := false
	for bb := range body.Blocks {
		if cp.propagateBlock(&body.Blocks[bb]) {
			changed = true
		}
	}
	if cp.forwardConstants(body) {
		changed = true
	}
	if cp.removeDeadCopies(body) {
		changed = true
	}
	return changed
}

// forwardConstants replaces reads of temporaries that are assigned exactly
// one constant, anywhere in the body; a constant read is position
// independent, so this is safe across blocks.
func (cp CopyPropagation) forwardConstants(body *mir.Body) bool {
	writes := countTempWrites(body)

	consts := make(map[mir.TempID]mir.Operand)
	for bb := range body.Blocks {
		for i := range body.Blocks[bb].Statements {
			assign, ok := body.Blocks[bb].Statements[i].Kind.(*mir.AssignStmt)
			if !ok {
				continue
			}
			tmp, ok := assign.Lvalue.(*mir.TempLvalue)
			if !ok || writes[tmp.Index] != 1 {
				continue
			}
			if use, ok := assign.Rvalue.(*mir.UseRvalue); ok {
				if _, ok := use.Operand.(*mir.ConstantOperand); ok {
					consts[tmp.Index] = use.Operand
				}
			}
		}
	}
	if len(consts) == 0 {
		return false
	}

	changed := false
	substitute := func(op mir.Operand) mir.Operand {
		consume, ok := op.(*mir.ConsumeOperand)
		if !ok {
			return op
		}
		tmp, ok := consume.Lvalue.(*mir.TempLvalue)
		if !ok {
			return op
		}
		if src, ok := consts[tmp.Index]; ok {
			changed = true
			return mir.CopyOperand(src)
		}
		return op
	}
	for bb := range body.Blocks {
		block := &body.Blocks[bb]
		for i := range block.Statements {
			cp.rewriteStatementOperands(&block.Statements[i], substitute)
		}
		if block.Terminator != nil {
			cp.rewriteTerminatorOperands(block.Terminator, substitute)
		}
	}
	return changed
}

// countTempWrites counts every mutation of each temporary: assignments,
// discriminant writes, call destinations and drop locations.
func countTempWrites(body *mir.Body) map[mir.TempID]int {
	writes := make(map[mir.TempID]int)
	record := func(lv mir.Lvalue) {
		if tmp, ok := rootLvalue(lv).(*mir.TempLvalue); ok {
			writes[tmp.Index]++
		}
	}
	for bb := range body.Blocks {
		block := &body.Blocks[bb]
		for i := range block.Statements {
			switch kind := block.Statements[i].Kind.(type) {
			case *mir.AssignStmt:
				record(kind.Lvalue)
			case *mir.SetDiscriminantStmt:
				record(kind.Lvalue)
			}
		}
		if block.Terminator == nil {
			continue
		}
		switch kind := block.Terminator.Kind.(type) {
		case *mir.CallTerm:
			if kind.Destination != nil {
				record(kind.Destination.Lvalue)
			}
		case *mir.DropTerm:
			record(kind.Location)
		case *mir.DropAndReplaceTerm:
			record(kind.Location)
		}
	}
	return writes
}

// propagateBlock walks one block forward, tracking which temporaries
// currently hold a plain copy of another operand.
func (cp CopyPropagation) propagateBlock(block *mir.BasicBlockData) bool {
	env := make(map[mir.TempID]mir.Operand)
	changed := false

	substitute := func(op mir.Operand) mir.Operand {
		consume, ok := op.(*mir.ConsumeOperand)
		if !ok {
			return op
		}
		tmp, ok := consume.Lvalue.(*mir.TempLvalue)
		if !ok {
			return op
		}
		if src, ok := env[tmp.Index]; ok {
			changed = true
			return mir.CopyOperand(src)
		}
		return op
	}

	for i := range block.Statements {
		stmt := &block.Statements[i]
		cp.rewriteStatementOperands(stmt, substitute)

		assign, ok := stmt.Kind.(*mir.AssignStmt)
		if !ok {
			if dead, ok := stmt.Kind.(*mir.StorageDeadStmt); ok {
				cp.invalidate(env, dead.Lvalue)
			}
			continue
		}

		cp.invalidate(env, assign.Lvalue)

		tmp, ok := assign.Lvalue.(*mir.TempLvalue)
		if !ok {
			continue
		}
		if use, ok := assign.Rvalue.(*mir.UseRvalue); ok && copyableSource(use.Operand) {
			if consume, ok := use.Operand.(*mir.ConsumeOperand); ok && sameRoot(consume.Lvalue, assign.Lvalue) {
				continue
			}
			env[tmp.Index] = use.Operand
		}
	}

	if block.Terminator != nil {
		cp.rewriteTerminatorOperands(block.Terminator, substitute)
	}
	return changed
}

// copyableSource limits propagation to operands whose value cannot change
// between the copy and its use within one block: constants and reads of
// unprojected locals (projections may read through pointers).
func copyableSource(op mir.Operand) bool {
	switch o := op.(type) {
	case *mir.ConstantOperand:
		return true
	case *mir.ConsumeOperand:
		switch o.Lvalue.(type) {
		case *mir.VarLvalue, *mir.TempLvalue, *mir.ArgLvalue:
			return true
		}
	}
	return false
}

// invalidate drops every mapping reading or stored in the root local of lv.
func (cp CopyPropagation) invalidate(env map[mir.TempID]mir.Operand, lv mir.Lvalue) {
	root := rootLvalue(lv)
	for tmp, src := range env {
		if sameRoot(root, &mir.TempLvalue{Index: tmp}) {
			delete(env, tmp)
			continue
		}
		if consume, ok := src.(*mir.ConsumeOperand); ok && sameRoot(root, rootLvalue(consume.Lvalue)) {
			delete(env, tmp)
		}
	}
}

func rootLvalue(lv mir.Lvalue) mir.Lvalue {
	for {
		proj, ok := lv.(*mir.Projection)
		if !ok {
			return lv
		}
		lv = proj.Base
	}
}

func sameRoot(a, b mir.Lvalue) bool {
	switch av := a.(type) {
	case *mir.VarLvalue:
		bv, ok := b.(*mir.VarLvalue)
		return ok && av.Index == bv.Index
	case *mir.TempLvalue:
		bv, ok := b.(*mir.TempLvalue)
		return ok && av.Index == bv.Index
	case *mir.ArgLvalue:
		bv, ok := b.(*mir.ArgLvalue)
		return ok && av.Index == bv.Index
	case *mir.ReturnPointer:
		_, ok := b.(*mir.ReturnPointer)
		return ok
	case *mir.StaticLvalue:
		bv, ok := b.(*mir.StaticLvalue)
		return ok && av.Def == bv.Def
	}
	return false
}

func (cp CopyPropagation) rewriteStatementOperands(stmt *mir.Statement, f func(mir.Operand) mir.Operand) {
	switch kind := stmt.Kind.(type) {
	case *mir.AssignStmt:
		kind.Lvalue = rewriteLvalueOperands(kind.Lvalue, f)
		kind.Rvalue = rewriteRvalueOperands(kind.Rvalue, f)
	}
}

func (cp CopyPropagation) rewriteTerminatorOperands(term *mir.Terminator, f func(mir.Operand) mir.Operand) {
	switch kind := term.Kind.(type) {
	case *mir.IfTerm:
		kind.Cond.Cond = f(kind.Cond.Cond)
	case *mir.DropAndReplaceTerm:
		kind.Value = f(kind.Value)
	case *mir.CallTerm:
		kind.Func = f(kind.Func)
		for i, arg := range kind.Args {
			kind.Args[i] = f(arg)
		}
	case *mir.AssertTerm:
		kind.Cond = f(kind.Cond)
	}
}

func rewriteLvalueOperands(lv mir.Lvalue, f func(mir.Operand) mir.Operand) mir.Lvalue {
	proj, ok := lv.(*mir.Projection)
	if !ok {
		return lv
	}
	base := rewriteLvalueOperands(proj.Base, f)
	elem := proj.Elem
	if idx, ok := elem.(*mir.IndexElem); ok {
		elem = &mir.IndexElem{Operand: f(idx.Operand)}
	}
	return &mir.Projection{Base: base, Elem: elem}
}

func rewriteRvalueOperands(rv mir.Rvalue, f func(mir.Operand) mir.Operand) mir.Rvalue {
	switch r := rv.(type) {
	case *mir.UseRvalue:
		r.Operand = f(r.Operand)
	case *mir.RefRvalue:
		r.Lvalue = rewriteLvalueOperands(r.Lvalue, f)
	case *mir.CastRvalue:
		r.Op = f(r.Op)
	case *mir.BinaryOpRvalue:
		r.Left = f(r.Left)
		r.Right = f(r.Right)
	case *mir.UnaryOpRvalue:
		r.Operand = f(r.Operand)
	case *mir.AggregateRvalue:
		for i, op := range r.Operands {
			r.Operands[i] = f(op)
		}
	}
	return rv
}

// removeDeadCopies nops out copy assignments into temporaries no statement
// or terminator reads anymore.
func (cp CopyPropagation) removeDeadCopies(body *mir.Body) bool {
	uses := countTempReads(body)
	changed := false
	for bb := range body.Blocks {
		block := &body.Blocks[bb]
		for i := range block.Statements {
			assign, ok := block.Statements[i].Kind.(*mir.AssignStmt)
			if !ok {
				continue
			}
			tmp, ok := assign.Lvalue.(*mir.TempLvalue)
			if !ok {
				continue
			}
			if _, ok := assign.Rvalue.(*mir.UseRvalue); !ok {
				continue
			}
			if uses[tmp.Index] == 0 {
				block.Statements[i].MakeNop()
				changed = true
			}
		}
	}
	return changed
}

// countTempReads counts every read of each temporary across the body.
// Writes (assignment destinations) do not count, but reads inside a
// destination's projections do.
func countTempReads(body *mir.Body) map[mir.TempID]int {
	uses := make(map[mir.TempID]int)

	var countLvalue func(lv mir.Lvalue, asRead bool)
	var countOperand func(op mir.Operand)

	countLvalue = func(lv mir.Lvalue, asRead bool) {
		switch l := lv.(type) {
		case *mir.TempLvalue:
			if asRead {
				uses[l.Index]++
			}
		case *mir.Projection:
			// The base of a projected write is still read to locate
			// the destination.
			countLvalue(l.Base, true)
			if idx, ok := l.Elem.(*mir.IndexElem); ok {
				countOperand(idx.Operand)
			}
		}
	}
	countOperand = func(op mir.Operand) {
		if consume, ok := op.(*mir.ConsumeOperand); ok {
			countLvalue(consume.Lvalue, true)
		}
	}

	for bb := range body.Blocks {
		block := &body.Blocks[bb]
		for i := range block.Statements {
			switch kind := block.Statements[i].Kind.(type) {
			case *mir.AssignStmt:
				countLvalue(kind.Lvalue, false)
				switch r := kind.Rvalue.(type) {
				case *mir.UseRvalue:
					countOperand(r.Operand)
				case *mir.RefRvalue:
					countLvalue(r.Lvalue, true)
				case *mir.CastRvalue:
					countOperand(r.Op)
				case *mir.BinaryOpRvalue:
					countOperand(r.Left)
					countOperand(r.Right)
				case *mir.UnaryOpRvalue:
					countOperand(r.Operand)
				case *mir.AggregateRvalue:
					for _, op := range r.Operands {
						countOperand(op)
					}
				}
			case *mir.StorageLiveStmt:
				// Storage markers keep their slot alive but do not read it.
			case *mir.StorageDeadStmt:
			case *mir.SetDiscriminantStmt:
				countLvalue(kind.Lvalue, false)
			}
		}
		if block.Terminator == nil {
			continue
		}
		switch kind := block.Terminator.Kind.(type) {
		case *mir.IfTerm:
			countOperand(kind.Cond.Cond)
		case *mir.SwitchTerm:
			countLvalue(kind.Discr, true)
		case *mir.SwitchIntTerm:
			countLvalue(kind.Discr, true)
		case *mir.DropTerm:
			countLvalue(kind.Location, true)
		case *mir.DropAndReplaceTerm:
			countLvalue(kind.Location, true)
			countOperand(kind.Value)
		case *mir.CallTerm:
			countOperand(kind.Func)
			for _, arg := range kind.Args {
				countOperand(arg)
			}
			if kind.Destination != nil {
				countLvalue(kind.Destination.Lvalue, false)
			}
		case *mir.AssertTerm:
			countOperand(kind.Cond)
		}
	}
	return uses
}
