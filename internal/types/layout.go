package types

// TargetLayout is the slice of the target data layout the optimizer needs.
type TargetLayout struct {
	PointerSize uint64 // bytes
}

// ParamEnv names the item whose parameter assumptions are in scope for
// layout and destructor queries.
type ParamEnv struct {
	Item DefID
}

// SizeOf returns the byte size of ty under the given layout, or false when
// the size is not statically known (unsubstituted parameters, unsized data).
func SizeOf(layout TargetLayout, env ParamEnv, ty Type) (uint64, bool) {
	switch t := ty.(type) {
	case *IntType:
		return uint64(t.Bits) / 8, true
	case *BoolType:
		return 1, true
	case *TupleType:
		var total uint64
		for _, e := range t.Elems {
			size, ok := SizeOf(layout, env, e)
			if !ok {
				return 0, false
			}
			total += size
		}
		return total, true
	case *RefType, *RawPtrType, *BoxType:
		return layout.PointerSize, true
	case *ArrayType:
		elem, ok := SizeOf(layout, env, t.Elem)
		if !ok {
			return 0, false
		}
		return elem * t.Len, true
	case *AdtType:
		return t.Size, true
	case *FnDefType:
		// References to function items carry no data.
		return 0, true
	default:
		return 0, false
	}
}

// NeedsDrop reports whether dropping a value of ty runs user code.
// Unsubstituted parameters answer true: without knowing the concrete type we
// must assume a destructor.
func NeedsDrop(env ParamEnv, ty Type) bool {
	switch t := ty.(type) {
	case *BoxType:
		return true
	case *AdtType:
		return t.HasDtor
	case *TupleType:
		for _, e := range t.Elems {
			if NeedsDrop(env, e) {
				return true
			}
		}
		return false
	case *ArrayType:
		return NeedsDrop(env, t.Elem)
	case *ParamType:
		return true
	default:
		return false
	}
}
