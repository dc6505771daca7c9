package grammar

import (
	"github.com/alecthomas/participle/v2/lexer"
)

// Grammar of the textual MIR format. One file holds the items of one crate:
// ADT layouts, statics, and functions whose bodies are written block by
// block, the same notation the internal printer emits.

type Program struct {
	Items []*Item `@@*`
}

type Item struct {
	Adt    *AdtDecl    `  @@`
	Static *StaticDecl `| @@`
	Fn     *FnDecl     `| @@`
}

// AdtDecl declares a nominal type with a precomputed layout, e.g.
// `adt Guard { size 8, drop }`.
type AdtDecl struct {
	Name string `"adt" @Ident "{"`
	Size uint64 `"size" @Integer`
	Drop bool   `[ "," @"drop" ] "}"`
}

// StaticDecl declares a global, e.g. `static COUNTER: u64;`.
type StaticDecl struct {
	Name string `"static" @Ident ":"`
	Ty   *Type  `@@ ";"`
}

type Attr struct {
	Pos  lexer.Position
	Name string  `"#" "[" @Ident`
	Arg  *string `[ "(" @Ident ")" ]`
	Lang *string `[ "=" @String ] "]"`
}

type FnDecl struct {
	Pos      lexer.Position
	EndPos   lexer.Position
	Attrs    []*Attr      `@@*`
	Name     string       `"fn" @Ident`
	Generics []string     `[ "<" @Ident { "," @Ident } ">" ]`
	Args     []*ArgDecl   `"(" [ @@ { "," @@ } ] ")"`
	Return   *Type        `[ "->" @@ ]`
	Decls    []*LocalDecl `"{" @@*`
	Blocks   []*Block     `@@* "}"`
}

type ArgDecl struct {
	Name string `@Ident ":"`
	Ty   *Type  `@@`
}

type LocalDecl struct {
	Var *VarDecl `  @@`
	Tmp *TmpDecl `| @@`
}

// VarDecl declares a user variable slot: `var var0: i32;`.
type VarDecl struct {
	Pos  lexer.Position
	Slot string `"var" @Ident ":"`
	Ty   *Type  `@@ ";"`
}

// TmpDecl declares a temporary slot: `tmp tmp0: i32;`.
type TmpDecl struct {
	Slot string `"tmp" @Ident ":"`
	Ty   *Type  `@@ ";"`
}

type Block struct {
	Pos     lexer.Position
	Label   string   `@Ident`
	Cleanup bool     `[ "(" @"cleanup" ")" ] ":" "{"`
	Instrs  []*Instr `@@* "}"`
}

// Instr covers statements and terminators uniformly; lowering checks that
// exactly the last instruction of a block is a terminator.
type Instr struct {
	Pos    lexer.Position
	EndPos lexer.Position

	Live    *Lvalue      `  "live" "(" @@ ")" ";"`
	Dead    *Lvalue      `| "dead" "(" @@ ")" ";"`
	Nop     bool         `| @"nop" ";"`
	Discr   *DiscrAssign `| @@`
	Goto    *Goto        `| @@`
	If      *If          `| @@`
	Switch  *Switch      `| @@`
	SwInt   *SwitchInt   `| @@`
	Drop    *Drop        `| @@`
	Replace *Replace     `| @@`
	Assert  *Assert      `| @@`
	Return  bool         `| @"return" ";"`
	Resume  bool         `| @"resume" ";"`
	Unreach bool         `| @"unreachable" ";"`
	Call    *Call        `| @@ ";"`
	Assign  *Assign      `| @@`
}

type DiscrAssign struct {
	Lvalue  *Lvalue `"discriminant" "(" @@ ")" "="`
	Variant int     `@Integer ";"`
}

type Assign struct {
	Lvalue *Lvalue    `@@ "="`
	Value  *AssignRHS `@@ ";"`
}

// AssignRHS is either a plain rvalue (a statement) or a call (making the
// assignment the block's terminator).
type AssignRHS struct {
	Call   *Call   `  @@`
	Rvalue *Rvalue `| @@`
}

type Goto struct {
	Target string `"goto" "->" @Ident ";"`
}

type If struct {
	Cond *Operand `"if" "(" @@ ")" "->"`
	Then string   `"[" @Ident ","`
	Else string   `@Ident "]" ";"`
}

type Switch struct {
	Discr   *Lvalue  `"switch" "(" @@ ")" "->"`
	Targets []string `"[" @Ident { "," @Ident } "]" ";"`
}

type SwitchInt struct {
	Discr   *Lvalue  `"switchInt" "(" @@ ")"`
	Values  []int64  `"[" [ @Integer { "," @Integer } ] "]" "->"`
	Targets []string `"[" @Ident { "," @Ident } "]" ";"`
}

type Drop struct {
	Location *Lvalue `"drop" "(" @@ ")" "->"`
	Target   string  `@Ident`
	Unwind   *string `[ "unwind" @Ident ] ";"`
}

type Replace struct {
	Location *Lvalue  `"replace" "(" @@ "<-"`
	Value    *Operand `@@ ")" "->"`
	Target   string   `@Ident`
	Unwind   *string  `[ "unwind" @Ident ] ";"`
}

type Assert struct {
	Cond     *Operand `"assert" "(" @@ ","`
	Expected string   `"expected" @Ident ","`
	Msg      string   `@String ")" "->"`
	Target   string   `@Ident`
	Cleanup  *string  `[ "cleanup" @Ident ] ";"`
}

// Call is a call terminator, with or without a destination:
// `tmp0 = call pair<i32>(move arg0) -> bb1 cleanup bb2;` assigns; a bare
// `call exit(const 1: i32);` diverges.
type Call struct {
	Callee  *Callee    `"call" @@`
	CallArgs []*Operand `"(" [ @@ { "," @@ } ] ")"`
	Target  *string    `[ "->" @Ident ]`
	Cleanup *string    `[ "cleanup" @Ident ]`
}

// Callee is either a function reference by name or an arbitrary operand
// for indirect calls.
type Callee struct {
	Move     *Lvalue `  "move" @@`
	Name     string  `| @Ident`
	Generics []*Type `[ "<" @@ { "," @@ } ">" ]`
}

type Lvalue struct {
	Base *LvalueBase `@@`
	Proj []*Proj     `@@*`
}

type LvalueBase struct {
	Deref  *Lvalue `  "(" "*" @@ ")"`
	Static *string `| "static" @Ident`
	Name   *string `| @Ident`
}

type Proj struct {
	Field *int     `  "." @Integer`
	Index *Operand `| "[" @@ "]"`
}

type Operand struct {
	Move  *Lvalue   `  "move" @@`
	Const *Constant `| @@`
}

type Constant struct {
	Kind *ConstKind `"const" @@`
}

type ConstKind struct {
	Item     *ItemRef  `  "item" @@`
	Promoted *int      `| "promoted" "(" @Integer ")"`
	Value    *ValueLit `| @@`
}

type ItemRef struct {
	Name     string  `@Ident`
	Generics []*Type `[ "<" @@ { "," @@ } ">" ]`
}

type ValueLit struct {
	Neg   bool   `[ @"-" ]`
	Value uint64 `@Integer`
	Ty    *Type  `":" @@`
}

type Rvalue struct {
	Use  *Operand   `  "use" "(" @@ ")"`
	Ref  *Ref       `| @@`
	Cast *Cast      `| @@`
	Bin  *BinaryOp  `| @@`
	Un   *UnaryOp   `| @@`
	Agg  *Aggregate `| @@`
}

type Ref struct {
	Mut    bool    `"&" [ @"mut" ]`
	Lvalue *Lvalue `@@`
}

type Cast struct {
	Op *Operand `"cast" "(" @@`
	Ty *Type    `"as" @@ ")"`
}

type BinaryOp struct {
	Op          string   `"binop" "(" @Operator ","`
	Left, Right *Operand `@@ "," @@ ")"`
}

type UnaryOp struct {
	Op      string   `"unop" "(" @Operator ","`
	Operand *Operand `@@ ")"`
}

type Aggregate struct {
	Ty       *Type      `"aggregate" @@`
	Operands []*Operand `"(" [ @@ { "," @@ } ] ")"`
}

type Type struct {
	Ref   *RefType   `  @@`
	Ptr   *PtrType   `| @@`
	Array *ArrayType `| @@`
	Tuple *TupleType `| @@`
	Named *NamedType `| @@`
}

type RefType struct {
	Mut  bool  `"&" [ @"mut" ]`
	Elem *Type `@@`
}

type PtrType struct {
	Qual string `"*" @( "mut" | "const" )`
	Elem *Type  `@@`
}

type ArrayType struct {
	Elem *Type  `"[" @@ ";"`
	Len  uint64 `@Integer "]"`
}

type TupleType struct {
	Elems []*Type `"(" [ @@ { "," @@ } ] ")"`
}

// NamedType covers scalars (i32, u8, bool), generic parameters, ADTs, and
// Box<T>.
type NamedType struct {
	Name     string  `@Ident`
	Generics []*Type `[ "<" @@ { "," @@ } ">" ]`
}
