// Package ast defines the contract the (external) lexer/parser produces
// and the code generator consumes. It carries no behavior of its own:
// resultant_type is written by the lowerer, never by the parser.
package ast

import "eaglec/internal/types"

// NodeKind tags the AST node variants.
type NodeKind int

const (
	KValue NodeKind = iota
	KBinary
	KUnary
	KVarDecl
	KTypeDecl
	KIfBlock
	KLoopBlock
	KCast
	KStructMemberGet
	KFunctionCall
	KFunctionDecl
	KStructDecl
	KAlloc
	KBreak
	KContinue
)

// Unary op codes.
const (
	OpReturn    = 'r'
	OpDeref     = '*'
	OpAddr      = '&'
	OpNot       = '!'
	OpPrint     = 'p'
	OpUnwrap    = 'u'
	OpSizeof    = 's'
	OpTransmute = 't'
	OpCountof   = 'c'
)

// Binary op codes: simple forms, compound-assignment companions, and
// comparisons.
const (
	OpAssign  = '='
	OpIndex   = '['
	OpAnd     = '&'
	OpOr      = '|'
	OpAdd     = '+'
	OpSub     = '-'
	OpMul     = '*'
	OpDiv     = '/'
	OpAddAssn = 'P'
	OpSubAssn = 'M'
	OpMulAssn = 'T'
	OpDivAssn = 'D'
	OpEq      = 'e'
	OpNe      = 'n'
	OpGt      = 'g'
	OpLt      = 'l'
	OpGe      = 'G'
	OpLe      = 'L'
)

// Node is the common contract every AST node satisfies: a kind tag, a
// source line, and the resultant type slot the lowerer fills in.
type Node interface {
	Kind() NodeKind
	Line() int
	ResultType() *types.Type
	SetResultType(*types.Type)
}

// Base is the common field group every node embeds: the source line the
// parser stamped it with, and the resultant-type slot the lowerer fills in.
type Base struct {
	LineNo int
	Result *types.Type
}

func (b *Base) Line() int                   { return b.LineNo }
func (b *Base) ResultType() *types.Type     { return b.Result }
func (b *Base) SetResultType(t *types.Type) { b.Result = t }

// ValueNode is a literal: integer, double, C-string, or nil.
type ValueNode struct {
	Base
	IntVal    int64
	FloatVal  float64
	StrVal    string
	IsFloat   bool
	IsString  bool
	IsNil     bool
	BitWidth  int // for integer literals: 1,8,16,32,64
}

func (*ValueNode) Kind() NodeKind { return KValue }

// IdentNode is a variable or function reference by name.
type IdentNode struct {
	Base
	Name string
}

func (*IdentNode) Kind() NodeKind { return KValue }

// BinaryNode is a two-operand expression tagged with a single-character op
// code.
type BinaryNode struct {
	Base
	Op    byte
	Left  Node
	Right Node
}

func (*BinaryNode) Kind() NodeKind { return KBinary }

// UnaryNode is a one-operand expression tagged with a single-character op
// code.
type UnaryNode struct {
	Base
	Op      byte
	Operand Node
	// TypeArg is populated for sizeof T; Operand is nil in that case.
	TypeArg *types.Type
}

func (*UnaryNode) Kind() NodeKind { return KUnary }

// VarDeclNode declares a local. DeclaredType is nil when the declaration
// uses auto and must be resolved at first assignment.
type VarDeclNode struct {
	Base
	Name         string
	DeclaredType *types.Type
	Init         Node // nil if uninitialized
}

func (*VarDeclNode) Kind() NodeKind { return KVarDecl }

// TypeDeclNode names a type in source position (e.g. the T in `var x : T`).
type TypeDeclNode struct {
	Base
	TypeName string
	Resolved *types.Type
}

func (*TypeDeclNode) Kind() NodeKind { return KTypeDecl }

// IfNode models an if/else-if/else chain: Next is the else-if continuation,
// nil at the chain's end; Else is the final else body, nil if absent.
type IfNode struct {
	Base
	Test Node
	Then []Node
	Next *IfNode
	Else []Node
}

func (*IfNode) Kind() NodeKind { return KIfBlock }

// LoopNode models while/for. Setup and Update are nil for a bare while.
type LoopNode struct {
	Base
	Setup  Node
	Test   Node
	Update Node
	Body   []Node
}

func (*LoopNode) Kind() NodeKind { return KLoopBlock }

// CastNode casts Operand to TargetType.
type CastNode struct {
	Base
	Operand    Node
	TargetType *types.Type
}

func (*CastNode) Kind() NodeKind { return KCast }

// MemberNode is struct/class member access x.f.
type MemberNode struct {
	Base
	Receiver Node
	Field    string
}

func (*MemberNode) Kind() NodeKind { return KStructMemberGet }

// CallNode is a function/method/closure call.
type CallNode struct {
	Base
	Callee Node
	Args   []Node
}

func (*CallNode) Kind() NodeKind { return KFunctionCall }

// Param is one function parameter's name and declared type.
type Param struct {
	Name string
	Type *types.Type
}

// FuncDeclNode is a function, method, or closure body.
type FuncDeclNode struct {
	Base
	Name       string
	Params     []Param
	ReturnType *types.Type
	Body       []Node
	IsMethod   bool
	ClassName  string // non-empty when IsMethod
	Closure    types.ClosureKind
}

func (*FuncDeclNode) Kind() NodeKind { return KFunctionDecl }

// StructDeclNode declares a struct or class type.
type StructDeclNode struct {
	Base
	Name       string
	IsClass    bool
	Fields     []Param
	Interfaces []string
	Methods    []*FuncDeclNode
}

func (*StructDeclNode) Kind() NodeKind { return KStructDecl }

// AllocNode is `new T` with an optional initializer expression run against
// the freshly allocated payload.
type AllocNode struct {
	Base
	AllocType *types.Type
	Init      Node // nil if uninitialized
}

func (*AllocNode) Kind() NodeKind { return KAlloc }

// ReturnNode is a return statement; modeled separately from UnaryNode{Op:
// OpReturn} for clarity even though its op code is the unary 'r'.
type ReturnNode struct {
	Base
	Value Node // nil for a bare `return` in a void function
}

func (*ReturnNode) Kind() NodeKind { return KUnary }

// BreakNode and ContinueNode model loop-control statements. Both run the
// enclosing loop body's scope-exit callbacks before transferring control.
type BreakNode struct{ Base }

func (*BreakNode) Kind() NodeKind { return KBreak }

type ContinueNode struct{ Base }

func (*ContinueNode) Kind() NodeKind { return KContinue }
