package mir

import (
	"sable/internal/types"
)

// Mid-level IR: a control-flow graph per function. Blocks, locals, scopes and
// promoted sub-bodies are kept in dense vectors and addressed by typed
// indices, so splicing one body into another is index arithmetic rather than
// pointer surgery.

// BlockID indexes Body.Blocks. The entry block of every body is block 0.
type BlockID int

// StartBlock is the entry block of every body.
const StartBlock BlockID = 0

// VarID indexes Body.VarDecls (user-declared variables).
type VarID int

// TempID indexes Body.TempDecls (compiler temporaries).
type TempID int

// ArgID indexes Body.ArgDecls (signature parameters).
type ArgID int

// ScopeID indexes Body.VisibilityScopes.
type ScopeID int

// PromotedID indexes Body.Promoted.
type PromotedID int

// Span is a half-open byte range into the crate's source map. The zero Span
// is the dummy span attached to synthesized code.
type Span struct {
	Lo uint32
	Hi uint32
}

// DummySpan marks code with no source location.
var DummySpan = Span{}

// SourceInfo locates a statement or terminator for debug info: where it came
// from and which lexical scope it belongs to.
type SourceInfo struct {
	Span  Span
	Scope ScopeID
}

// VisibilityScopeData is one node of the per-body scope forest. ParentScope
// is nil for roots and otherwise refers to a lower-indexed scope.
type VisibilityScopeData struct {
	Span        Span
	ParentScope *ScopeID
}

// ArgScope is the scope every body's arguments live in (the root scope).
const ArgScope ScopeID = 0

// VarDecl is a user-declared variable slot.
type VarDecl struct {
	Mut        bool
	Ty         types.Type
	Name       string
	SourceInfo SourceInfo
}

// TempDecl is a compiler-introduced temporary slot.
type TempDecl struct {
	Ty types.Type
}

// ArgDecl is a signature parameter slot.
type ArgDecl struct {
	Ty   types.Type
	Name string
}

// UpvarDecl describes a variable captured by a closure body. The inliner
// refuses bodies that have any.
type UpvarDecl struct {
	Name  string
	ByRef bool
}

// Body is the lowered IR of one function.
type Body struct {
	Blocks           []BasicBlockData
	VisibilityScopes []VisibilityScopeData
	Promoted         []*Body
	VarDecls         []VarDecl
	TempDecls        []TempDecl
	ArgDecls         []ArgDecl
	UpvarDecls       []UpvarDecl
	ReturnTy         types.Type
	Span             Span
}

// BasicBlockData is a straight-line run of statements ended by exactly one
// terminator. IsCleanup marks blocks that execute only while unwinding.
type BasicBlockData struct {
	Statements []Statement
	Terminator *Terminator
	IsCleanup  bool
}

// Block returns the block data for id.
func (b *Body) Block(id BlockID) *BasicBlockData {
	return &b.Blocks[id]
}

// NewTemp appends a temporary of the given type and returns its index.
func (b *Body) NewTemp(ty types.Type) TempID {
	b.TempDecls = append(b.TempDecls, TempDecl{Ty: ty})
	return TempID(len(b.TempDecls) - 1)
}

// Statement is a non-branching instruction.
type Statement struct {
	SourceInfo SourceInfo
	Kind       StatementKind
}

type StatementKind interface {
	isStatementKind()
}

// AssignStmt stores the value of an rvalue into an lvalue.
type AssignStmt struct {
	Lvalue Lvalue
	Rvalue Rvalue
}

// StorageLiveStmt begins the live range of a local slot.
type StorageLiveStmt struct {
	Lvalue Lvalue
}

// StorageDeadStmt ends the live range of a local slot.
type StorageDeadStmt struct {
	Lvalue Lvalue
}

// SetDiscriminantStmt writes an enum discriminant. Opaque to the optimizer
// apart from its lvalue.
type SetDiscriminantStmt struct {
	Lvalue  Lvalue
	Variant int
}

// NopStmt does nothing; passes leave one behind instead of shifting
// statement vectors.
type NopStmt struct{}

func (*AssignStmt) isStatementKind()          {}
func (*StorageLiveStmt) isStatementKind()     {}
func (*StorageDeadStmt) isStatementKind()     {}
func (*SetDiscriminantStmt) isStatementKind() {}
func (*NopStmt) isStatementKind()             {}

// MakeNop replaces a statement's kind with Nop in place.
func (s *Statement) MakeNop() {
	s.Kind = &NopStmt{}
}
