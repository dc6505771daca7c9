package types

// Subst replaces generic parameters in ty by position with the given
// arguments. A parameter with no matching argument is left in place, which
// keeps partially-substituted bodies printable when a frontend bug hands us
// short substitutions.
func Subst(ty Type, args GenericArgs) Type {
	if len(args) == 0 {
		return ty
	}
	switch t := ty.(type) {
	case *ParamType:
		if t.Index < len(args) {
			return args[t.Index]
		}
		return t
	case *TupleType:
		if len(t.Elems) == 0 {
			return t
		}
		elems := make([]Type, len(t.Elems))
		for i, e := range t.Elems {
			elems[i] = Subst(e, args)
		}
		return &TupleType{Elems: elems}
	case *RefType:
		return &RefType{Mut: t.Mut, Elem: Subst(t.Elem, args)}
	case *RawPtrType:
		return &RawPtrType{Mut: t.Mut, Elem: Subst(t.Elem, args)}
	case *BoxType:
		return &BoxType{Elem: Subst(t.Elem, args)}
	case *ArrayType:
		return &ArrayType{Elem: Subst(t.Elem, args), Len: t.Len}
	case *FnDefType:
		if !t.Substs.HasTypes() {
			return t
		}
		substs := make(GenericArgs, len(t.Substs))
		for i, s := range t.Substs {
			substs[i] = Subst(s, args)
		}
		return &FnDefType{Def: t.Def, Substs: substs, Abi: t.Abi}
	default:
		// Scalars and monomorphic ADTs contain no parameters.
		return ty
	}
}

// SubstAll substitutes every type in a slice.
func SubstAll(tys []Type, args GenericArgs) []Type {
	if len(args) == 0 || len(tys) == 0 {
		return tys
	}
	out := make([]Type, len(tys))
	for i, t := range tys {
		out[i] = Subst(t, args)
	}
	return out
}
