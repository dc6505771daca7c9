package mir

import (
	"sable/internal/types"
)

// Terminator ends a basic block.
type Terminator struct {
	SourceInfo SourceInfo
	Kind       TerminatorKind
}

type TerminatorKind interface {
	isTerminatorKind()
	// Successors returns every block the terminator may branch to,
	// including unwind edges.
	Successors() []BlockID
}

// GotoTerm branches unconditionally.
type GotoTerm struct {
	Target BlockID
}

// IfTerm branches on a boolean operand.
type IfTerm struct {
	Cond BlockPair
}

// BlockPair bundles an if's condition with its two targets.
type BlockPair struct {
	Cond       Operand
	Then, Else BlockID
}

// SwitchTerm branches on an ADT discriminant, one target per variant.
type SwitchTerm struct {
	Discr   Lvalue
	Targets []BlockID
}

// SwitchIntTerm branches on an integer value; the last target is the
// otherwise edge.
type SwitchIntTerm struct {
	Discr   Lvalue
	Values  []int64
	Targets []BlockID
}

// DropTerm runs the destructor of Location, then continues at Target.
// Unwind, when present, is taken if the destructor panics.
type DropTerm struct {
	Location Lvalue
	Target   BlockID
	Unwind   *BlockID
}

// DropAndReplaceTerm drops Location and stores Value into it.
type DropAndReplaceTerm struct {
	Location Lvalue
	Value    Operand
	Target   BlockID
	Unwind   *BlockID
}

// CallDestination is where a call's return value goes and where control
// resumes.
type CallDestination struct {
	Lvalue Lvalue
	Target BlockID
}

// CallTerm invokes Func. Destination is nil for diverging calls. Cleanup,
// when present, is taken if the callee unwinds.
type CallTerm struct {
	Func        Operand
	Args        []Operand
	Destination *CallDestination
	Cleanup     *BlockID
}

// AssertTerm checks a condition and panics with Msg when it is not Expected.
type AssertTerm struct {
	Cond     Operand
	Expected bool
	Msg      string
	Target   BlockID
	Cleanup  *BlockID
}

// ReturnTerm exits the function normally.
type ReturnTerm struct{}

// ResumeTerm continues unwinding into the caller.
type ResumeTerm struct{}

// UnreachableTerm marks control flow that cannot happen.
type UnreachableTerm struct{}

func (*GotoTerm) isTerminatorKind()           {}
func (*IfTerm) isTerminatorKind()             {}
func (*SwitchTerm) isTerminatorKind()         {}
func (*SwitchIntTerm) isTerminatorKind()      {}
func (*DropTerm) isTerminatorKind()           {}
func (*DropAndReplaceTerm) isTerminatorKind() {}
func (*CallTerm) isTerminatorKind()           {}
func (*AssertTerm) isTerminatorKind()         {}
func (*ReturnTerm) isTerminatorKind()         {}
func (*ResumeTerm) isTerminatorKind()         {}
func (*UnreachableTerm) isTerminatorKind()    {}

func (t *GotoTerm) Successors() []BlockID { return []BlockID{t.Target} }

func (t *IfTerm) Successors() []BlockID { return []BlockID{t.Cond.Then, t.Cond.Else} }

func (t *SwitchTerm) Successors() []BlockID {
	out := make([]BlockID, len(t.Targets))
	copy(out, t.Targets)
	return out
}

func (t *SwitchIntTerm) Successors() []BlockID {
	out := make([]BlockID, len(t.Targets))
	copy(out, t.Targets)
	return out
}

func (t *DropTerm) Successors() []BlockID {
	out := []BlockID{t.Target}
	if t.Unwind != nil {
		out = append(out, *t.Unwind)
	}
	return out
}

func (t *DropAndReplaceTerm) Successors() []BlockID {
	out := []BlockID{t.Target}
	if t.Unwind != nil {
		out = append(out, *t.Unwind)
	}
	return out
}

func (t *CallTerm) Successors() []BlockID {
	var out []BlockID
	if t.Destination != nil {
		out = append(out, t.Destination.Target)
	}
	if t.Cleanup != nil {
		out = append(out, *t.Cleanup)
	}
	return out
}

func (t *AssertTerm) Successors() []BlockID {
	out := []BlockID{t.Target}
	if t.Cleanup != nil {
		out = append(out, *t.Cleanup)
	}
	return out
}

func (*ReturnTerm) Successors() []BlockID      { return nil }
func (*ResumeTerm) Successors() []BlockID      { return nil }
func (*UnreachableTerm) Successors() []BlockID { return nil }

// MapSuccessors rewrites every successor block id of kind in place,
// including unwind and cleanup edges.
func MapSuccessors(kind TerminatorKind, f func(BlockID) BlockID) {
	switch t := kind.(type) {
	case *GotoTerm:
		t.Target = f(t.Target)
	case *IfTerm:
		t.Cond.Then = f(t.Cond.Then)
		t.Cond.Else = f(t.Cond.Else)
	case *SwitchTerm:
		for i, tgt := range t.Targets {
			t.Targets[i] = f(tgt)
		}
	case *SwitchIntTerm:
		for i, tgt := range t.Targets {
			t.Targets[i] = f(tgt)
		}
	case *DropTerm:
		t.Target = f(t.Target)
		if t.Unwind != nil {
			u := f(*t.Unwind)
			t.Unwind = &u
		}
	case *DropAndReplaceTerm:
		t.Target = f(t.Target)
		if t.Unwind != nil {
			u := f(*t.Unwind)
			t.Unwind = &u
		}
	case *CallTerm:
		if t.Destination != nil {
			t.Destination.Target = f(t.Destination.Target)
		}
		if t.Cleanup != nil {
			c := f(*t.Cleanup)
			t.Cleanup = &c
		}
	case *AssertTerm:
		t.Target = f(t.Target)
		if t.Cleanup != nil {
			c := f(*t.Cleanup)
			t.Cleanup = &c
		}
	}
}

// DirectCallee extracts the statically-known callee of a call terminator:
// the func operand must be a constant of function-item type. The boolean is
// false for indirect calls.
func DirectCallee(kind TerminatorKind) (types.DefID, types.GenericArgs, bool) {
	call, ok := kind.(*CallTerm)
	if !ok {
		return types.DefID{}, nil, false
	}
	konst, ok := call.Func.(*ConstantOperand)
	if !ok {
		return types.DefID{}, nil, false
	}
	fn, ok := konst.Constant.Ty.(*types.FnDefType)
	if !ok {
		return types.DefID{}, nil, false
	}
	return fn.Def, fn.Substs, true
}
