package grammar

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/alecthomas/participle/v2/lexer"
	pkgerrors "github.com/pkg/errors"

	"sable/internal/mir"
	"sable/internal/session"
	"sable/internal/types"
)

// Lowering of the parsed MIR text into bodies plus the session context the
// optimizer consumes: def ids by declaration order, attributes, statics and
// lang items registered along the way.

// Crate is the result of lowering one MIR file.
type Crate struct {
	Context *session.Context
	Bodies  map[types.DefID]*mir.Body
	Defs    map[string]types.DefID
}

// Lower turns a parsed program into a crate ready for the optimizer.
func Lower(program *Program, source string, opts session.Options) (*Crate, error) {
	ctx := session.NewContext(opts)
	ctx.SourceMap.Grow(uint32(len(source)))

	lo := &lowerer{
		ctx:      ctx,
		adts:     make(map[string]*types.AdtType),
		defs:     make(map[string]types.DefID),
		generics: make(map[string][]string),
		abis:     make(map[string]types.Abi),
		bodies:   make(map[types.DefID]*mir.Body),
	}

	// First pass: declare every item so bodies can reference functions and
	// statics in any order.
	for _, item := range program.Items {
		if err := lo.declareItem(item); err != nil {
			return nil, err
		}
	}

	for _, item := range program.Items {
		if item.Fn == nil {
			continue
		}
		body, err := lo.lowerFn(item.Fn)
		if err != nil {
			return nil, err
		}
		lo.bodies[lo.defs[item.Fn.Name]] = body
	}

	return &Crate{Context: ctx, Bodies: lo.bodies, Defs: lo.defs}, nil
}

type lowerer struct {
	ctx      *session.Context
	adts     map[string]*types.AdtType
	defs     map[string]types.DefID
	generics map[string][]string
	abis     map[string]types.Abi
	bodies   map[types.DefID]*mir.Body
	nextDef  int
}

func (lo *lowerer) newDef(name string) (types.DefID, error) {
	if _, exists := lo.defs[name]; exists {
		return types.DefID{}, pkgerrors.Errorf("duplicate item name %q", name)
	}
	def := types.DefID{Crate: types.LocalCrate, Index: lo.nextDef}
	lo.nextDef++
	lo.defs[name] = def
	lo.ctx.SetName(def, name)
	return def, nil
}

func (lo *lowerer) declareItem(item *Item) error {
	switch {
	case item.Adt != nil:
		if _, exists := lo.adts[item.Adt.Name]; exists {
			return pkgerrors.Errorf("duplicate adt %q", item.Adt.Name)
		}
		lo.adts[item.Adt.Name] = &types.AdtType{
			Name:    item.Adt.Name,
			Size:    item.Adt.Size,
			HasDtor: item.Adt.Drop,
		}

	case item.Static != nil:
		def, err := lo.newDef(item.Static.Name)
		if err != nil {
			return err
		}
		ty, err := lo.lowerType(item.Static.Ty, nil)
		if err != nil {
			return err
		}
		lo.ctx.DefineStatic(def, ty)

	case item.Fn != nil:
		fn := item.Fn
		def, err := lo.newDef(fn.Name)
		if err != nil {
			return err
		}
		lo.generics[fn.Name] = fn.Generics
		lo.abis[fn.Name] = types.AbiSable

		var attrs session.FnAttrs
		for _, attr := range fn.Attrs {
			switch attr.Name {
			case "inline":
				switch {
				case attr.Arg == nil:
					attrs.Inline = session.InlineHint
				case *attr.Arg == "always":
					attrs.Inline = session.InlineAlways
				case *attr.Arg == "never":
					attrs.Inline = session.InlineNever
				default:
					return pkgerrors.Errorf("%s: unknown inline mode %q", attr.Pos, *attr.Arg)
				}
			case "cold":
				attrs.Cold = true
			case "intrinsic":
				lo.abis[fn.Name] = types.AbiIntrinsic
			case "trait_method":
				lo.ctx.MarkTraitMethod(def)
			case "lang":
				if attr.Lang == nil {
					return pkgerrors.Errorf("%s: lang attribute needs a name", attr.Pos)
				}
				if *attr.Lang == "box_free" {
					boxFree := def
					lo.ctx.LangItems.BoxFree = &boxFree
				}
			default:
				return pkgerrors.Errorf("%s: unknown attribute %q", attr.Pos, attr.Name)
			}
		}
		lo.ctx.SetAttrs(def, attrs)
	}
	return nil
}

var scalarRe = regexp.MustCompile(`^([iu])(8|16|32|64|128)$`)

func (lo *lowerer) lowerType(t *Type, generics []string) (types.Type, error) {
	switch {
	case t.Ref != nil:
		elem, err := lo.lowerType(t.Ref.Elem, generics)
		if err != nil {
			return nil, err
		}
		return &types.RefType{Mut: t.Ref.Mut, Elem: elem}, nil
	case t.Ptr != nil:
		elem, err := lo.lowerType(t.Ptr.Elem, generics)
		if err != nil {
			return nil, err
		}
		return &types.RawPtrType{Mut: t.Ptr.Qual == "mut", Elem: elem}, nil
	case t.Array != nil:
		elem, err := lo.lowerType(t.Array.Elem, generics)
		if err != nil {
			return nil, err
		}
		return &types.ArrayType{Elem: elem, Len: t.Array.Len}, nil
	case t.Tuple != nil:
		elems := make([]types.Type, len(t.Tuple.Elems))
		for i, e := range t.Tuple.Elems {
			elem, err := lo.lowerType(e, generics)
			if err != nil {
				return nil, err
			}
			elems[i] = elem
		}
		return &types.TupleType{Elems: elems}, nil
	case t.Named != nil:
		return lo.lowerNamedType(t.Named, generics)
	}
	return nil, pkgerrors.New("empty type")
}

func (lo *lowerer) lowerNamedType(named *NamedType, generics []string) (types.Type, error) {
	name := named.Name

	if name == "Box" {
		if len(named.Generics) != 1 {
			return nil, pkgerrors.Errorf("Box takes exactly one type argument")
		}
		elem, err := lo.lowerType(named.Generics[0], generics)
		if err != nil {
			return nil, err
		}
		return &types.BoxType{Elem: elem}, nil
	}
	if len(named.Generics) > 0 {
		return nil, pkgerrors.Errorf("type %q takes no type arguments", name)
	}
	if name == "bool" {
		return &types.BoolType{}, nil
	}
	if m := scalarRe.FindStringSubmatch(name); m != nil {
		bits, _ := strconv.Atoi(m[2])
		return &types.IntType{Bits: bits, Signed: m[1] == "i"}, nil
	}
	for i, g := range generics {
		if g == name {
			return &types.ParamType{Index: i, Name: name}, nil
		}
	}
	if adt, ok := lo.adts[name]; ok {
		return adt, nil
	}
	return nil, pkgerrors.Errorf("unknown type %q", name)
}

// fnLowerer carries the per-function state: slot counts for validation and
// the block count for target checks.
type fnLowerer struct {
	*lowerer
	fn     *FnDecl
	body   *mir.Body
	blocks int
}

func (lo *lowerer) lowerFn(fn *FnDecl) (*mir.Body, error) {
	fnSpan := span(fn.Pos.Offset, fn.EndPos.Offset)

	body := &mir.Body{
		Span:     fnSpan,
		ReturnTy: types.Unit(),
		VisibilityScopes: []mir.VisibilityScopeData{
			{Span: fnSpan},
		},
	}

	for _, arg := range fn.Args {
		ty, err := lo.lowerType(arg.Ty, fn.Generics)
		if err != nil {
			return nil, err
		}
		body.ArgDecls = append(body.ArgDecls, mir.ArgDecl{Ty: ty, Name: arg.Name})
	}
	if fn.Return != nil {
		ty, err := lo.lowerType(fn.Return, fn.Generics)
		if err != nil {
			return nil, err
		}
		body.ReturnTy = ty
	}

	for _, decl := range fn.Decls {
		switch {
		case decl.Var != nil:
			idx, err := slotIndex(decl.Var.Slot, "var")
			if err != nil {
				return nil, err
			}
			if idx != len(body.VarDecls) {
				return nil, pkgerrors.Errorf("%s: var slots must be declared densely, got %s", decl.Var.Pos, decl.Var.Slot)
			}
			ty, err := lo.lowerType(decl.Var.Ty, fn.Generics)
			if err != nil {
				return nil, err
			}
			body.VarDecls = append(body.VarDecls, mir.VarDecl{
				Mut:        true,
				Ty:         ty,
				Name:       decl.Var.Slot,
				SourceInfo: mir.SourceInfo{Span: span(decl.Var.Pos.Offset, decl.Var.Pos.Offset+len(decl.Var.Slot)), Scope: mir.ArgScope},
			})
		case decl.Tmp != nil:
			idx, err := slotIndex(decl.Tmp.Slot, "tmp")
			if err != nil {
				return nil, err
			}
			if idx != len(body.TempDecls) {
				return nil, pkgerrors.Errorf("tmp slots must be declared densely, got %s", decl.Tmp.Slot)
			}
			ty, err := lo.lowerType(decl.Tmp.Ty, fn.Generics)
			if err != nil {
				return nil, err
			}
			body.TempDecls = append(body.TempDecls, mir.TempDecl{Ty: ty})
		}
	}

	fl := &fnLowerer{lowerer: lo, fn: fn, body: body, blocks: len(fn.Blocks)}

	for i, block := range fn.Blocks {
		label, err := slotIndex(block.Label, "bb")
		if err != nil {
			return nil, err
		}
		if label != i {
			return nil, pkgerrors.Errorf("%s: blocks must be labeled densely, got %s", block.Pos, block.Label)
		}
		data, err := fl.lowerBlock(block)
		if err != nil {
			return nil, err
		}
		body.Blocks = append(body.Blocks, data)
	}
	if len(body.Blocks) == 0 {
		return nil, pkgerrors.Errorf("fn %s has no blocks", fn.Name)
	}
	return body, nil
}

func slotIndex(slot, prefix string) (int, error) {
	if !strings.HasPrefix(slot, prefix) {
		return 0, pkgerrors.Errorf("expected a %s<N> slot, got %q", prefix, slot)
	}
	idx, err := strconv.Atoi(slot[len(prefix):])
	if err != nil {
		return 0, pkgerrors.Errorf("expected a %s<N> slot, got %q", prefix, slot)
	}
	return idx, nil
}

func span(lo, hi int) mir.Span {
	return mir.Span{Lo: uint32(lo), Hi: uint32(hi)}
}

func (fl *fnLowerer) lowerBlock(block *Block) (mir.BasicBlockData, error) {
	data := mir.BasicBlockData{IsCleanup: block.Cleanup}
	if len(block.Instrs) == 0 {
		return data, pkgerrors.Errorf("%s: block %s is empty", block.Pos, block.Label)
	}
	for i, instr := range block.Instrs {
		last := i == len(block.Instrs)-1
		si := mir.SourceInfo{Span: span(instr.Pos.Offset, instr.EndPos.Offset), Scope: mir.ArgScope}

		kind, err := fl.lowerTerminator(instr)
		if err != nil {
			return data, err
		}
		if kind != nil {
			if !last {
				return data, pkgerrors.Errorf("%s: terminator before the end of block %s", instr.Pos, block.Label)
			}
			data.Terminator = &mir.Terminator{SourceInfo: si, Kind: kind}
			break
		}

		if last {
			return data, pkgerrors.Errorf("%s: block %s does not end in a terminator", instr.Pos, block.Label)
		}
		stmt, err := fl.lowerStatement(instr)
		if err != nil {
			return data, err
		}
		data.Statements = append(data.Statements, mir.Statement{SourceInfo: si, Kind: stmt})
	}
	return data, nil
}

func (fl *fnLowerer) lowerStatement(instr *Instr) (mir.StatementKind, error) {
	switch {
	case instr.Live != nil:
		lv, err := fl.lowerLvalue(instr.Live)
		if err != nil {
			return nil, err
		}
		return &mir.StorageLiveStmt{Lvalue: lv}, nil
	case instr.Dead != nil:
		lv, err := fl.lowerLvalue(instr.Dead)
		if err != nil {
			return nil, err
		}
		return &mir.StorageDeadStmt{Lvalue: lv}, nil
	case instr.Nop:
		return &mir.NopStmt{}, nil
	case instr.Discr != nil:
		lv, err := fl.lowerLvalue(instr.Discr.Lvalue)
		if err != nil {
			return nil, err
		}
		return &mir.SetDiscriminantStmt{Lvalue: lv, Variant: instr.Discr.Variant}, nil
	case instr.Assign != nil && instr.Assign.Value.Rvalue != nil:
		lv, err := fl.lowerLvalue(instr.Assign.Lvalue)
		if err != nil {
			return nil, err
		}
		rv, err := fl.lowerRvalue(instr.Assign.Value.Rvalue)
		if err != nil {
			return nil, err
		}
		return &mir.AssignStmt{Lvalue: lv, Rvalue: rv}, nil
	}
	return nil, pkgerrors.Errorf("%s: expected a statement", instr.Pos)
}

// lowerTerminator returns nil (and no error) when instr is not a
// terminator form.
func (fl *fnLowerer) lowerTerminator(instr *Instr) (mir.TerminatorKind, error) {
	switch {
	case instr.Goto != nil:
		target, err := fl.blockRef(instr.Goto.Target)
		if err != nil {
			return nil, err
		}
		return &mir.GotoTerm{Target: target}, nil

	case instr.If != nil:
		cond, err := fl.lowerOperand(instr.If.Cond)
		if err != nil {
			return nil, err
		}
		then, err := fl.blockRef(instr.If.Then)
		if err != nil {
			return nil, err
		}
		els, err := fl.blockRef(instr.If.Else)
		if err != nil {
			return nil, err
		}
		return &mir.IfTerm{Cond: mir.BlockPair{Cond: cond, Then: then, Else: els}}, nil

	case instr.Switch != nil:
		discr, err := fl.lowerLvalue(instr.Switch.Discr)
		if err != nil {
			return nil, err
		}
		targets, err := fl.blockRefs(instr.Switch.Targets)
		if err != nil {
			return nil, err
		}
		return &mir.SwitchTerm{Discr: discr, Targets: targets}, nil

	case instr.SwInt != nil:
		discr, err := fl.lowerLvalue(instr.SwInt.Discr)
		if err != nil {
			return nil, err
		}
		targets, err := fl.blockRefs(instr.SwInt.Targets)
		if err != nil {
			return nil, err
		}
		return &mir.SwitchIntTerm{Discr: discr, Values: instr.SwInt.Values, Targets: targets}, nil

	case instr.Drop != nil:
		location, err := fl.lowerLvalue(instr.Drop.Location)
		if err != nil {
			return nil, err
		}
		target, err := fl.blockRef(instr.Drop.Target)
		if err != nil {
			return nil, err
		}
		unwind, err := fl.blockRefOpt(instr.Drop.Unwind)
		if err != nil {
			return nil, err
		}
		return &mir.DropTerm{Location: location, Target: target, Unwind: unwind}, nil

	case instr.Replace != nil:
		location, err := fl.lowerLvalue(instr.Replace.Location)
		if err != nil {
			return nil, err
		}
		value, err := fl.lowerOperand(instr.Replace.Value)
		if err != nil {
			return nil, err
		}
		target, err := fl.blockRef(instr.Replace.Target)
		if err != nil {
			return nil, err
		}
		unwind, err := fl.blockRefOpt(instr.Replace.Unwind)
		if err != nil {
			return nil, err
		}
		return &mir.DropAndReplaceTerm{Location: location, Value: value, Target: target, Unwind: unwind}, nil

	case instr.Assert != nil:
		cond, err := fl.lowerOperand(instr.Assert.Cond)
		if err != nil {
			return nil, err
		}
		target, err := fl.blockRef(instr.Assert.Target)
		if err != nil {
			return nil, err
		}
		cleanup, err := fl.blockRefOpt(instr.Assert.Cleanup)
		if err != nil {
			return nil, err
		}
		return &mir.AssertTerm{
			Cond:     cond,
			Expected: instr.Assert.Expected == "true",
			Msg:      instr.Assert.Msg,
			Target:   target,
			Cleanup:  cleanup,
		}, nil

	case instr.Return:
		return &mir.ReturnTerm{}, nil
	case instr.Resume:
		return &mir.ResumeTerm{}, nil
	case instr.Unreach:
		return &mir.UnreachableTerm{}, nil

	case instr.Call != nil:
		return fl.lowerCall(instr.Call, nil, instr.Pos)

	case instr.Assign != nil && instr.Assign.Value.Call != nil:
		dest, err := fl.lowerLvalue(instr.Assign.Lvalue)
		if err != nil {
			return nil, err
		}
		return fl.lowerCall(instr.Assign.Value.Call, dest, instr.Pos)
	}
	return nil, nil
}

func (fl *fnLowerer) lowerCall(call *Call, dest mir.Lvalue, pos lexer.Position) (mir.TerminatorKind, error) {
	fun, err := fl.lowerCallee(call.Callee)
	if err != nil {
		return nil, err
	}
	args := make([]mir.Operand, len(call.CallArgs))
	for i, a := range call.CallArgs {
		arg, err := fl.lowerOperand(a)
		if err != nil {
			return nil, err
		}
		args[i] = arg
	}
	var destination *mir.CallDestination
	if dest != nil {
		if call.Target == nil {
			return nil, pkgerrors.Errorf("%s: call with a destination needs a return target", pos)
		}
		target, err := fl.blockRef(*call.Target)
		if err != nil {
			return nil, err
		}
		destination = &mir.CallDestination{Lvalue: dest, Target: target}
	} else if call.Target != nil {
		return nil, pkgerrors.Errorf("%s: call without a destination cannot have a return target", pos)
	}
	cleanup, err := fl.blockRefOpt(call.Cleanup)
	if err != nil {
		return nil, err
	}
	return &mir.CallTerm{Func: fun, Args: args, Destination: destination, Cleanup: cleanup}, nil
}

func (fl *fnLowerer) lowerCallee(callee *Callee) (mir.Operand, error) {
	if callee.Move != nil {
		lv, err := fl.lowerLvalue(callee.Move)
		if err != nil {
			return nil, err
		}
		return mir.Consume(lv), nil
	}
	def, ok := fl.defs[callee.Name]
	if !ok {
		return nil, pkgerrors.Errorf("call to undefined function %q", callee.Name)
	}
	substs := make(types.GenericArgs, len(callee.Generics))
	for i, g := range callee.Generics {
		ty, err := fl.lowerType(g, fl.fn.Generics)
		if err != nil {
			return nil, err
		}
		substs[i] = ty
	}
	if want := len(fl.generics[callee.Name]); want != len(substs) {
		return nil, pkgerrors.Errorf("function %q takes %d type arguments, got %d", callee.Name, want, len(substs))
	}
	fnTy := &types.FnDefType{Def: def, Substs: substs, Abi: fl.abis[callee.Name]}
	return &mir.ConstantOperand{Constant: mir.Constant{
		Ty:      fnTy,
		Literal: &mir.ItemLiteral{Def: def, Substs: substs},
	}}, nil
}

func (fl *fnLowerer) blockRef(label string) (mir.BlockID, error) {
	idx, err := slotIndex(label, "bb")
	if err != nil {
		return 0, err
	}
	if idx >= fl.blocks {
		return 0, pkgerrors.Errorf("fn %s: branch to undefined block %s", fl.fn.Name, label)
	}
	return mir.BlockID(idx), nil
}

func (fl *fnLowerer) blockRefOpt(label *string) (*mir.BlockID, error) {
	if label == nil {
		return nil, nil
	}
	id, err := fl.blockRef(*label)
	if err != nil {
		return nil, err
	}
	return &id, nil
}

func (fl *fnLowerer) blockRefs(labels []string) ([]mir.BlockID, error) {
	out := make([]mir.BlockID, len(labels))
	for i, label := range labels {
		id, err := fl.blockRef(label)
		if err != nil {
			return nil, err
		}
		out[i] = id
	}
	return out, nil
}

func (fl *fnLowerer) lowerLvalue(lv *Lvalue) (mir.Lvalue, error) {
	var base mir.Lvalue
	switch {
	case lv.Base.Deref != nil:
		inner, err := fl.lowerLvalue(lv.Base.Deref)
		if err != nil {
			return nil, err
		}
		base = mir.Deref(inner)
	case lv.Base.Static != nil:
		def, ok := fl.defs[*lv.Base.Static]
		if !ok {
			return nil, pkgerrors.Errorf("reference to undefined static %q", *lv.Base.Static)
		}
		base = &mir.StaticLvalue{Def: def}
	case lv.Base.Name != nil:
		var err error
		base, err = fl.lowerBaseSlot(*lv.Base.Name)
		if err != nil {
			return nil, err
		}
	default:
		return nil, pkgerrors.New("empty lvalue")
	}

	for _, proj := range lv.Proj {
		switch {
		case proj.Field != nil:
			base = &mir.Projection{Base: base, Elem: &mir.FieldElem{Field: *proj.Field, Ty: types.Unit()}}
		case proj.Index != nil:
			op, err := fl.lowerOperand(proj.Index)
			if err != nil {
				return nil, err
			}
			base = &mir.Projection{Base: base, Elem: &mir.IndexElem{Operand: op}}
		}
	}
	return base, nil
}

func (fl *fnLowerer) lowerBaseSlot(name string) (mir.Lvalue, error) {
	if name == "ret" {
		return &mir.ReturnPointer{}, nil
	}
	for _, prefix := range []string{"var", "tmp", "arg"} {
		if !strings.HasPrefix(name, prefix) {
			continue
		}
		idx, err := slotIndex(name, prefix)
		if err != nil {
			return nil, err
		}
		switch prefix {
		case "var":
			if idx >= len(fl.body.VarDecls) {
				return nil, pkgerrors.Errorf("fn %s: undeclared slot %s", fl.fn.Name, name)
			}
			return mir.Var(mir.VarID(idx)), nil
		case "tmp":
			if idx >= len(fl.body.TempDecls) {
				return nil, pkgerrors.Errorf("fn %s: undeclared slot %s", fl.fn.Name, name)
			}
			return mir.Temp(mir.TempID(idx)), nil
		case "arg":
			if idx >= len(fl.body.ArgDecls) {
				return nil, pkgerrors.Errorf("fn %s: undeclared slot %s", fl.fn.Name, name)
			}
			return mir.Arg(mir.ArgID(idx)), nil
		}
	}
	return nil, pkgerrors.Errorf("fn %s: unknown lvalue %q", fl.fn.Name, name)
}

func (fl *fnLowerer) lowerOperand(op *Operand) (mir.Operand, error) {
	switch {
	case op.Move != nil:
		lv, err := fl.lowerLvalue(op.Move)
		if err != nil {
			return nil, err
		}
		return mir.Consume(lv), nil
	case op.Const != nil:
		return fl.lowerConstant(op.Const)
	}
	return nil, pkgerrors.New("empty operand")
}

func (fl *fnLowerer) lowerConstant(c *Constant) (mir.Operand, error) {
	kind := c.Kind
	switch {
	case kind.Item != nil:
		callee := &Callee{Name: kind.Item.Name, Generics: kind.Item.Generics}
		return fl.lowerCallee(callee)
	case kind.Promoted != nil:
		return &mir.ConstantOperand{Constant: mir.Constant{
			Ty:      types.Unit(),
			Literal: &mir.PromotedLiteral{Index: mir.PromotedID(*kind.Promoted)},
		}}, nil
	case kind.Value != nil:
		ty, err := fl.lowerType(kind.Value.Ty, fl.fn.Generics)
		if err != nil {
			return nil, err
		}
		value := int64(kind.Value.Value)
		if kind.Value.Neg {
			value = -value
		}
		return &mir.ConstantOperand{Constant: mir.Constant{
			Ty:      ty,
			Literal: &mir.ValueLiteral{Value: value},
		}}, nil
	}
	return nil, pkgerrors.New("empty constant")
}

func (fl *fnLowerer) lowerRvalue(rv *Rvalue) (mir.Rvalue, error) {
	switch {
	case rv.Use != nil:
		op, err := fl.lowerOperand(rv.Use)
		if err != nil {
			return nil, err
		}
		return &mir.UseRvalue{Operand: op}, nil
	case rv.Ref != nil:
		lv, err := fl.lowerLvalue(rv.Ref.Lvalue)
		if err != nil {
			return nil, err
		}
		kind := mir.BorrowShared
		if rv.Ref.Mut {
			kind = mir.BorrowMut
		}
		return &mir.RefRvalue{Kind: kind, Lvalue: lv}, nil
	case rv.Cast != nil:
		op, err := fl.lowerOperand(rv.Cast.Op)
		if err != nil {
			return nil, err
		}
		ty, err := fl.lowerType(rv.Cast.Ty, fl.fn.Generics)
		if err != nil {
			return nil, err
		}
		return &mir.CastRvalue{Kind: mir.CastMisc, Op: op, Ty: ty}, nil
	case rv.Bin != nil:
		left, err := fl.lowerOperand(rv.Bin.Left)
		if err != nil {
			return nil, err
		}
		right, err := fl.lowerOperand(rv.Bin.Right)
		if err != nil {
			return nil, err
		}
		return &mir.BinaryOpRvalue{Op: rv.Bin.Op, Left: left, Right: right}, nil
	case rv.Un != nil:
		op, err := fl.lowerOperand(rv.Un.Operand)
		if err != nil {
			return nil, err
		}
		return &mir.UnaryOpRvalue{Op: rv.Un.Op, Operand: op}, nil
	case rv.Agg != nil:
		ty, err := fl.lowerType(rv.Agg.Ty, fl.fn.Generics)
		if err != nil {
			return nil, err
		}
		ops := make([]mir.Operand, len(rv.Agg.Operands))
		for i, o := range rv.Agg.Operands {
			op, err := fl.lowerOperand(o)
			if err != nil {
				return nil, err
			}
			ops[i] = op
		}
		return &mir.AggregateRvalue{Ty: ty, Operands: ops}, nil
	}
	return nil, pkgerrors.New("empty rvalue")
}
