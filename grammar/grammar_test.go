package grammar

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"sable/internal/mir"
	"sable/internal/opt"
	"sable/internal/session"
	"sable/internal/types"
)

const identityProgram = `// generic identity and its caller
#[inline]
fn id<T>(x: T) -> T {
    var var0: T;
    bb0: {
        var0 = use(move arg0);
        goto -> bb1;
    }
    bb1: {
        ret = use(move var0);
        return;
    }
}

fn use_id() -> i32 {
    bb0: {
        ret = call id<i32>(const 7: i32) -> bb1;
    }
    bb1: {
        return;
    }
}
`

func lowerSource(t *testing.T, source string, level int) *Crate {
	t.Helper()
	program, err := ParseSource("test.mir", source)
	require.NoError(t, err, "parse should succeed")
	crate, err := Lower(program, source, session.Options{MIROptLevel: level})
	require.NoError(t, err, "lowering should succeed")
	return crate
}

func TestParseAndLowerIdentity(t *testing.T) {
	crate := lowerSource(t, identityProgram, 0)

	require.Len(t, crate.Bodies, 2)

	idDef := crate.Defs["id"]
	useDef := crate.Defs["use_id"]

	id := crate.Bodies[idDef]
	assert.Len(t, id.Blocks, 2)
	assert.Len(t, id.VarDecls, 1)
	assert.Equal(t, "T", id.ReturnTy.String())
	assert.Equal(t, session.InlineHint, crate.Context.Attrs(idDef).Inline)

	useID := crate.Bodies[useDef]
	callee, substs, ok := mir.DirectCallee(useID.Blocks[0].Terminator.Kind)
	require.True(t, ok, "the lowered call must be direct")
	assert.Equal(t, idDef, callee)
	require.Len(t, substs, 1)
	assert.Equal(t, "i32", substs[0].String())
}

func TestEndToEndInlining(t *testing.T) {
	crate := lowerSource(t, identityProgram, 2)

	opt.NewPipeline().Run(crate.Context, crate.Bodies, nil)

	useID := crate.Bodies[crate.Defs["use_id"]]
	for bb := range useID.Blocks {
		_, isCall := useID.Blocks[bb].Terminator.Kind.(*mir.CallTerm)
		assert.False(t, isCall, "use_id should contain no calls after the pipeline")
	}

	printed := mir.Print("use_id", useID)
	assert.Contains(t, printed, "const 7", "the argument constant must survive inlining")
}

func TestLowerDropAndCleanup(t *testing.T) {
	source := `adt Guard { size 8, drop }

#[inline]
fn dropper() {
    var var0: Guard;
    bb0: {
        drop(var0) -> bb1 unwind bb2;
    }
    bb1: {
        return;
    }
    bb2 (cleanup): {
        resume;
    }
}
`
	crate := lowerSource(t, source, 0)
	body := crate.Bodies[crate.Defs["dropper"]]

	require.Len(t, body.Blocks, 3)
	drop, ok := body.Blocks[0].Terminator.Kind.(*mir.DropTerm)
	require.True(t, ok)
	require.NotNil(t, drop.Unwind)
	assert.Equal(t, mir.BlockID(2), *drop.Unwind)
	assert.True(t, body.Blocks[2].IsCleanup)

	adt, ok := body.VarDecls[0].Ty.(*types.AdtType)
	require.True(t, ok)
	assert.True(t, adt.HasDtor)
	assert.Equal(t, uint64(8), adt.Size)
}

func TestLowerAttributesAndLangItems(t *testing.T) {
	source := `#[inline(never)]
#[cold]
fn chilly() {
    bb0: {
        return;
    }
}

#[intrinsic]
fn magic() {
    bb0: {
        return;
    }
}

#[inline(always)]
#[lang = "box_free"]
fn box_free(ptr: *mut u64) {
    bb0: {
        return;
    }
}

fn calls() {
    tmp tmp0: ();
    tmp tmp1: ();
    bb0: {
        tmp0 = call magic() -> bb1;
    }
    bb1: {
        tmp1 = call chilly() -> bb2;
    }
    bb2: {
        return;
    }
}
`
	crate := lowerSource(t, source, 0)
	ctx := crate.Context

	chilly := ctx.Attrs(crate.Defs["chilly"])
	assert.Equal(t, session.InlineNever, chilly.Inline)
	assert.True(t, chilly.Cold)

	require.NotNil(t, ctx.LangItems.BoxFree)
	assert.Equal(t, crate.Defs["box_free"], *ctx.LangItems.BoxFree)
	assert.Equal(t, session.InlineAlways, ctx.Attrs(crate.Defs["box_free"]).Inline)

	// The intrinsic ABI lands on callsite function types.
	calls := crate.Bodies[crate.Defs["calls"]]
	konst := calls.Blocks[0].Terminator.Kind.(*mir.CallTerm).Func.(*mir.ConstantOperand)
	fnTy := konst.Constant.Ty.(*types.FnDefType)
	assert.True(t, fnTy.Abi.IsIntrinsic())
}

func TestLowerStaticsAndProjections(t *testing.T) {
	source := `static COUNTER: u64;

fn bump() {
    var var0: [u64; 4];
    tmp tmp0: u64;
    bb0: {
        tmp0 = use(move static COUNTER);
        var0[move tmp0] = use(const 1: u64);
        ret = use(move (*var0[const 0: u64].0));
        goto -> bb1;
    }
    bb1: {
        return;
    }
}
`
	crate := lowerSource(t, source, 0)
	body := crate.Bodies[crate.Defs["bump"]]

	first := body.Blocks[0].Statements[0].Kind.(*mir.AssignStmt)
	useRv := first.Rvalue.(*mir.UseRvalue)
	consume := useRv.Operand.(*mir.ConsumeOperand)
	static, ok := consume.Lvalue.(*mir.StaticLvalue)
	require.True(t, ok)
	assert.Equal(t, "u64", crate.Context.StaticTy(static.Def).String())

	second := body.Blocks[0].Statements[1].Kind.(*mir.AssignStmt)
	proj, ok := second.Lvalue.(*mir.Projection)
	require.True(t, ok)
	_, isIndex := proj.Elem.(*mir.IndexElem)
	assert.True(t, isIndex)
}

func TestParseErrorsAreReported(t *testing.T) {
	_, err := ParseSource("bad.mir", `fn broken() { bb0: { goto -> bb1 } }`)
	assert.Error(t, err, "a terminator without a semicolon cannot parse")
}

func TestLoweringValidates(t *testing.T) {
	cases := []struct {
		name   string
		source string
		want   string
	}{
		{
			name: "undefined callee",
			source: `fn f() {
    tmp tmp0: ();
    bb0: { tmp0 = call ghost() -> bb1; }
    bb1: { return; }
}`,
			want: "undefined function",
		},
		{
			name: "undeclared slot",
			source: `fn f() {
    bb0: { ret = use(move var3); return; }
}`,
			want: "undeclared slot",
		},
		{
			name: "branch out of range",
			source: `fn f() {
    bb0: { goto -> bb7; }
}`,
			want: "undefined block",
		},
		{
			name: "statement after terminator",
			source: `fn f() {
    bb0: { return; nop; }
}`,
			want: "terminator before the end",
		},
		{
			name: "missing terminator",
			source: `fn f() {
    bb0: { nop; nop; }
}`,
			want: "does not end in a terminator",
		},
		{
			name: "sparse blocks",
			source: `fn f() {
    bb1: { return; }
}`,
			want: "labeled densely",
		},
		{
			name: "wrong generic arity",
			source: `fn id<T>(x: T) -> T {
    bb0: { ret = use(move arg0); return; }
}
fn f() {
    bb0: { ret = call id() -> bb1; }
    bb1: { return; }
}`,
			want: "type arguments",
		},
	}

	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			program, err := ParseSource("test.mir", c.source)
			require.NoError(t, err)
			_, err = Lower(program, c.source, session.Options{})
			require.Error(t, err)
			assert.Contains(t, err.Error(), c.want)
		})
	}
}

func TestRecursivePairFromText(t *testing.T) {
	source := `#[inline]
fn g() {
    tmp tmp0: ();
    bb0: {
        tmp0 = call f() -> bb1;
    }
    bb1: {
        return;
    }
}

fn f() {
    tmp tmp0: ();
    bb0: {
        tmp0 = call g() -> bb1;
    }
    bb1: {
        return;
    }
}
`
	crate := lowerSource(t, source, 2)
	opt.NewPipeline().Run(crate.Context, crate.Bodies, nil)

	f := crate.Bodies[crate.Defs["f"]]
	selfCalls := 0
	for bb := range f.Blocks {
		if def, _, ok := mir.DirectCallee(f.Blocks[bb].Terminator.Kind); ok {
			assert.Equal(t, crate.Defs["f"], def)
			selfCalls++
		}
	}
	assert.Equal(t, 1, selfCalls, "g is inlined into f and the self-call survives")
}

func TestSpansComeFromTheSource(t *testing.T) {
	crate := lowerSource(t, identityProgram, 0)
	body := crate.Bodies[crate.Defs["id"]]

	si := body.Blocks[0].Statements[0].SourceInfo
	assert.True(t, crate.Context.SourceMap.IsValid(si.Span), "lowered statements carry real spans")
	text := identityProgram[si.Span.Lo:si.Span.Hi]
	assert.True(t, strings.HasPrefix(text, "var0 = use"), "span points at the statement text, got %q", text)
}
