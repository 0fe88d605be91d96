package codegen

import (
	"eaglec/internal/ast"
	"eaglec/internal/compileerr"

	"github.com/llir/llvm/ir/value"
)

// LowerExpr is the AST dispatcher's expression entry point: a type switch
// over every concrete node the (external) parser produces that can
// appear in value position.
func (c *CompilerContext) LowerExpr(n ast.Node) (value.Value, error) {
	switch v := n.(type) {
	case *ast.ValueNode:
		return c.lowerValue(v)
	case *ast.IdentNode:
		return c.lowerIdent(v)
	case *ast.BinaryNode:
		return c.lowerBinary(v)
	case *ast.UnaryNode:
		return c.lowerUnary(v)
	case *ast.CastNode:
		return c.lowerCast(v)
	case *ast.MemberNode:
		return c.lowerMember(v)
	case *ast.CallNode:
		return c.lowerCall(v)
	case *ast.AllocNode:
		return c.lowerAlloc(v)
	default:
		return nil, compileerr.New(compileerr.InternalCompilerError, n.Line(), "node cannot appear in an expression position")
	}
}

// LowerStmt is the AST Dispatcher's statement entry point: control-flow
// and declaration forms dispatch to their dedicated lowerer; anything
// else is an expression used for its side effect (an assignment or a bare
// call), lowered via LowerExpr and its value discarded.
func (c *CompilerContext) LowerStmt(n ast.Node) error {
	switch v := n.(type) {
	case *ast.VarDeclNode:
		return c.lowerVarDecl(v)
	case *ast.IfNode:
		return c.lowerIf(v)
	case *ast.LoopNode:
		return c.lowerLoop(v)
	case *ast.ReturnNode:
		return c.lowerReturn(v, c.currentReturnType)
	case *ast.BreakNode:
		return c.lowerBreak(v)
	case *ast.ContinueNode:
		return c.lowerContinue(v)
	case *ast.FuncDeclNode:
		return c.lowerFuncDecl(v)
	case *ast.StructDeclNode:
		return c.lowerStructDecl(v)
	default:
		_, err := c.LowerExpr(n)
		return err
	}
}
