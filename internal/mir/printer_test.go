package mir

import (
	"strings"
	"testing"

	"sable/internal/types"
)

func TestPrintSmallFunction(t *testing.T) {
	body := &Body{
		ReturnTy:         types.Int(32),
		VisibilityScopes: []VisibilityScopeData{{}},
		ArgDecls:         []ArgDecl{{Ty: types.Int(32), Name: "x"}},
		TempDecls:        []TempDecl{{Ty: types.Int(32)}},
	}
	body.Blocks = []BasicBlockData{
		{
			Statements: []Statement{
				{Kind: &AssignStmt{Lvalue: Temp(0), Rvalue: &UseRvalue{Operand: Consume(Arg(0))}}},
				{Kind: &AssignStmt{Lvalue: &ReturnPointer{}, Rvalue: &UseRvalue{Operand: Consume(Temp(0))}}},
			},
			Terminator: &Terminator{Kind: &GotoTerm{Target: 1}},
		},
		{Terminator: &Terminator{Kind: &ReturnTerm{}}},
	}

	out := Print("mirror", body)

	for _, want := range []string{
		"fn mirror(arg0: i32) -> i32 {",
		"tmp tmp0: i32;",
		"bb0: {",
		"tmp0 = use(move arg0);",
		"ret = use(move tmp0);",
		"goto -> bb1;",
		"bb1: {",
		"return;",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("printed MIR missing %q:\n%s", want, out)
		}
	}
}

func TestPrintTerminators(t *testing.T) {
	unwind := BlockID(2)

	cases := []struct {
		kind TerminatorKind
		want string
	}{
		{&GotoTerm{Target: 4}, "goto -> bb4"},
		{&IfTerm{Cond: BlockPair{Cond: Consume(Temp(0)), Then: 1, Else: 2}}, "if(move tmp0) -> [bb1, bb2]"},
		{&SwitchIntTerm{Discr: Var(0), Values: []int64{0, 1}, Targets: []BlockID{1, 2, 3}},
			"switchInt(var0) [0, 1] -> [bb1, bb2, bb3]"},
		{&DropTerm{Location: Var(1), Target: 1, Unwind: &unwind}, "drop(var1) -> bb1 unwind bb2"},
		{&AssertTerm{Cond: Consume(Temp(3)), Expected: true, Msg: "index out of bounds", Target: 5},
			`assert(move tmp3, expected true, "index out of bounds") -> bb5`},
		{&ReturnTerm{}, "return"},
		{&ResumeTerm{}, "resume"},
		{&UnreachableTerm{}, "unreachable"},
	}
	for _, c := range cases {
		if got := FormatTerminator(c.kind); got != c.want {
			t.Errorf("FormatTerminator(%T) = %q, want %q", c.kind, got, c.want)
		}
	}
}

func TestPrintLvaluesAndOperands(t *testing.T) {
	indexed := &Projection{Base: Var(0), Elem: &IndexElem{Operand: Consume(Deref(Var(1)))}}
	if got := FormatLvalue(indexed); got != "var0[move (*var1)]" {
		t.Errorf("projection formatting: %q", got)
	}

	field := &Projection{Base: Arg(0), Elem: &FieldElem{Field: 2, Ty: types.Int(32)}}
	if got := FormatLvalue(field); got != "arg0.2" {
		t.Errorf("field formatting: %q", got)
	}

	konst := &ConstantOperand{Constant: Constant{Ty: types.Int(32), Literal: &ValueLiteral{Value: -3}}}
	if got := FormatOperand(konst); got != "const -3: i32" {
		t.Errorf("constant formatting: %q", got)
	}

	promoted := &ConstantOperand{Constant: Constant{Literal: &PromotedLiteral{Index: 1}}}
	if got := FormatOperand(promoted); got != "const promoted(1)" {
		t.Errorf("promoted formatting: %q", got)
	}
}

func TestPrintCleanupBlocks(t *testing.T) {
	body := &Body{
		ReturnTy:         types.Unit(),
		VisibilityScopes: []VisibilityScopeData{{}},
	}
	body.Blocks = []BasicBlockData{
		{Terminator: &Terminator{Kind: &ReturnTerm{}}},
		{IsCleanup: true, Terminator: &Terminator{Kind: &ResumeTerm{}}},
	}

	out := Print("f", body)
	if !strings.Contains(out, "bb1 (cleanup): {") {
		t.Errorf("cleanup marker missing:\n%s", out)
	}
}
