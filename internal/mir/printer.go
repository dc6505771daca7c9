package mir

import (
	"fmt"
	"strings"

	"sable/internal/types"
)

// Printer renders bodies in the textual MIR notation the grammar package
// parses, except that promoted sub-bodies are printed as
// `promoted N = fn ...` lines, which the grammar has no rule for. Output is
// deterministic for a given body.
type Printer struct {
	indent int
	output strings.Builder
}

// NewPrinter creates a new MIR printer.
func NewPrinter() *Printer {
	return &Printer{}
}

// Print returns the textual form of a single body under the given header
// name (usually the function's path).
func Print(name string, body *Body) string {
	p := NewPrinter()
	p.printBody(name, body)
	return p.output.String()
}

func (p *Printer) writeIndent() {
	for i := 0; i < p.indent; i++ {
		p.output.WriteString("    ")
	}
}

func (p *Printer) writeLine(format string, args ...interface{}) {
	p.writeIndent()
	p.output.WriteString(fmt.Sprintf(format, args...))
	p.output.WriteString("\n")
}

func (p *Printer) printBody(name string, body *Body) {
	var sig strings.Builder
	for i, arg := range body.ArgDecls {
		if i > 0 {
			sig.WriteString(", ")
		}
		fmt.Fprintf(&sig, "arg%d: %s", i, arg.Ty)
	}
	ret := "()"
	if body.ReturnTy != nil {
		ret = body.ReturnTy.String()
	}
	p.writeLine("fn %s(%s) -> %s {", name, sig.String(), ret)
	p.indent++

	for i, v := range body.VarDecls {
		if v.Name != "" {
			p.writeLine("var var%d: %s; // %s", i, v.Ty, v.Name)
		} else {
			p.writeLine("var var%d: %s;", i, v.Ty)
		}
	}
	for i, t := range body.TempDecls {
		p.writeLine("tmp tmp%d: %s;", i, t.Ty)
	}
	for i, promoted := range body.Promoted {
		p.writeLine("promoted %d = %s", i, strings.TrimSpace(Print(fmt.Sprintf("%s::promoted%d", name, i), promoted)))
	}

	for bb := range body.Blocks {
		p.printBlock(BlockID(bb), &body.Blocks[bb])
	}

	p.indent--
	p.writeLine("}")
}

func (p *Printer) printBlock(id BlockID, block *BasicBlockData) {
	if block.IsCleanup {
		p.writeLine("bb%d (cleanup): {", id)
	} else {
		p.writeLine("bb%d: {", id)
	}
	p.indent++
	for i := range block.Statements {
		p.printStatement(&block.Statements[i])
	}
	if block.Terminator != nil {
		p.writeLine("%s;", FormatTerminator(block.Terminator.Kind))
	}
	p.indent--
	p.writeLine("}")
}

func (p *Printer) printStatement(s *Statement) {
	switch kind := s.Kind.(type) {
	case *AssignStmt:
		p.writeLine("%s = %s;", FormatLvalue(kind.Lvalue), FormatRvalue(kind.Rvalue))
	case *StorageLiveStmt:
		p.writeLine("live(%s);", FormatLvalue(kind.Lvalue))
	case *StorageDeadStmt:
		p.writeLine("dead(%s);", FormatLvalue(kind.Lvalue))
	case *SetDiscriminantStmt:
		p.writeLine("discriminant(%s) = %d;", FormatLvalue(kind.Lvalue), kind.Variant)
	case *NopStmt:
		p.writeLine("nop;")
	}
}

// FormatLvalue renders an lvalue.
func FormatLvalue(lv Lvalue) string {
	switch l := lv.(type) {
	case *VarLvalue:
		return fmt.Sprintf("var%d", l.Index)
	case *TempLvalue:
		return fmt.Sprintf("tmp%d", l.Index)
	case *ArgLvalue:
		return fmt.Sprintf("arg%d", l.Index)
	case *ReturnPointer:
		return "ret"
	case *StaticLvalue:
		return fmt.Sprintf("static %s", l.Def)
	case *Projection:
		switch e := l.Elem.(type) {
		case *DerefElem:
			return fmt.Sprintf("(*%s)", FormatLvalue(l.Base))
		case *FieldElem:
			return fmt.Sprintf("%s.%d", FormatLvalue(l.Base), e.Field)
		case *IndexElem:
			return fmt.Sprintf("%s[%s]", FormatLvalue(l.Base), FormatOperand(e.Operand))
		}
	}
	return "?"
}

// FormatOperand renders an operand.
func FormatOperand(op Operand) string {
	switch o := op.(type) {
	case *ConsumeOperand:
		return "move " + FormatLvalue(o.Lvalue)
	case *ConstantOperand:
		return formatConstant(o.Constant)
	}
	return "?"
}

func formatConstant(c Constant) string {
	switch lit := c.Literal.(type) {
	case *ValueLiteral:
		if c.Ty != nil {
			return fmt.Sprintf("const %d: %s", lit.Value, c.Ty)
		}
		return fmt.Sprintf("const %d", lit.Value)
	case *ItemLiteral:
		return fmt.Sprintf("const item %s%s", lit.Def, lit.Substs)
	case *PromotedLiteral:
		return fmt.Sprintf("const promoted(%d)", lit.Index)
	}
	return "const ?"
}

// FormatRvalue renders an rvalue.
func FormatRvalue(rv Rvalue) string {
	switch r := rv.(type) {
	case *UseRvalue:
		return fmt.Sprintf("use(%s)", FormatOperand(r.Operand))
	case *RefRvalue:
		if r.Kind == BorrowMut {
			return "&mut " + FormatLvalue(r.Lvalue)
		}
		return "&" + FormatLvalue(r.Lvalue)
	case *CastRvalue:
		return fmt.Sprintf("cast(%s as %s)", FormatOperand(r.Op), r.Ty)
	case *BinaryOpRvalue:
		return fmt.Sprintf("binop(%s, %s, %s)", r.Op, FormatOperand(r.Left), FormatOperand(r.Right))
	case *UnaryOpRvalue:
		return fmt.Sprintf("unop(%s, %s)", r.Op, FormatOperand(r.Operand))
	case *AggregateRvalue:
		parts := make([]string, len(r.Operands))
		for i, o := range r.Operands {
			parts[i] = FormatOperand(o)
		}
		return fmt.Sprintf("aggregate %s (%s)", r.Ty, strings.Join(parts, ", "))
	}
	return "?"
}

// FormatTerminator renders a terminator kind without the trailing
// semicolon.
func FormatTerminator(kind TerminatorKind) string {
	switch t := kind.(type) {
	case *GotoTerm:
		return fmt.Sprintf("goto -> bb%d", t.Target)
	case *IfTerm:
		return fmt.Sprintf("if(%s) -> [bb%d, bb%d]", FormatOperand(t.Cond.Cond), t.Cond.Then, t.Cond.Else)
	case *SwitchTerm:
		return fmt.Sprintf("switch(%s) -> [%s]", FormatLvalue(t.Discr), formatTargets(t.Targets))
	case *SwitchIntTerm:
		values := make([]string, len(t.Values))
		for i, v := range t.Values {
			values[i] = fmt.Sprintf("%d", v)
		}
		return fmt.Sprintf("switchInt(%s) [%s] -> [%s]",
			FormatLvalue(t.Discr), strings.Join(values, ", "), formatTargets(t.Targets))
	case *DropTerm:
		return fmt.Sprintf("drop(%s) -> bb%d%s", FormatLvalue(t.Location), t.Target, formatUnwind("unwind", t.Unwind))
	case *DropAndReplaceTerm:
		return fmt.Sprintf("replace(%s <- %s) -> bb%d%s",
			FormatLvalue(t.Location), FormatOperand(t.Value), t.Target, formatUnwind("unwind", t.Unwind))
	case *CallTerm:
		args := make([]string, len(t.Args))
		for i, a := range t.Args {
			args[i] = FormatOperand(a)
		}
		call := fmt.Sprintf("call %s(%s)", formatCallFunc(t.Func), strings.Join(args, ", "))
		if t.Destination != nil {
			call = fmt.Sprintf("%s = %s -> bb%d", FormatLvalue(t.Destination.Lvalue), call, t.Destination.Target)
		}
		return call + formatUnwind("cleanup", t.Cleanup)
	case *AssertTerm:
		return fmt.Sprintf("assert(%s, expected %t, %q) -> bb%d%s",
			FormatOperand(t.Cond), t.Expected, t.Msg, t.Target, formatUnwind("cleanup", t.Cleanup))
	case *ReturnTerm:
		return "return"
	case *ResumeTerm:
		return "resume"
	case *UnreachableTerm:
		return "unreachable"
	}
	return "?"
}

func formatCallFunc(op Operand) string {
	if konst, ok := op.(*ConstantOperand); ok {
		if fn, ok := konst.Constant.Ty.(*types.FnDefType); ok {
			return fmt.Sprintf("%s%s", fn.Def, fn.Substs)
		}
	}
	return FormatOperand(op)
}

func formatTargets(targets []BlockID) string {
	parts := make([]string, len(targets))
	for i, t := range targets {
		parts[i] = fmt.Sprintf("bb%d", t)
	}
	return strings.Join(parts, ", ")
}

func formatUnwind(label string, b *BlockID) string {
	if b == nil {
		return ""
	}
	return fmt.Sprintf(" %s bb%d", label, *b)
}
