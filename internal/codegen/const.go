package codegen

import (
	"github.com/llir/llvm/ir/constant"
	"github.com/llir/llvm/ir/enum"
	lltypes "github.com/llir/llvm/ir/types"

	"eaglec/internal/ast"
	"eaglec/internal/compileerr"
	"eaglec/internal/irbuild"
	etypes "eaglec/internal/types"
)

// LowerConstExpr folds a global initializer expression into an LLVM
// constant: arithmetic, casts, and literals are evaluated without
// touching the reference-counting machinery. A global's initializer may
// not reference a local, allocate,
// or call — anything that would require a runtime instruction is an
// error here rather than silently falling back to the regular
// instruction-emitting lowerer.
func (c *CompilerContext) LowerConstExpr(n ast.Node) (constant.Constant, error) {
	switch v := n.(type) {
	case *ast.ValueNode:
		return c.constValue(v)
	case *ast.UnaryNode:
		return c.constUnary(v)
	case *ast.BinaryNode:
		return c.constBinary(v)
	case *ast.CastNode:
		return c.constCast(v)
	default:
		return nil, compileerr.New(compileerr.InternalCompilerError, n.Line(), "expression is not a compile-time constant")
	}
}

func (c *CompilerContext) constValue(n *ast.ValueNode) (constant.Constant, error) {
	switch {
	case n.IsNil:
		n.SetResultType(c.Reg.NewPointer(c.Reg.Basic(etypes.KAny), false, false, false))
		return constant.NewNull(lltypes.NewPointer(lltypes.I8)), nil
	case n.IsString:
		return nil, compileerr.New(compileerr.InternalCompilerError, n.Line(), "a string literal cannot be folded to a scalar global initializer")
	case n.IsFloat:
		n.SetResultType(c.Reg.Basic(etypes.KDouble))
		return constant.NewFloat(lltypes.Double, n.FloatVal), nil
	default:
		k := intKindForWidth(n.BitWidth)
		n.SetResultType(c.Reg.Basic(k))
		return constant.NewInt(irbuild.LowerType(c.Reg, c.Reg.Basic(k)).(*lltypes.IntType), n.IntVal), nil
	}
}

func (c *CompilerContext) constUnary(n *ast.UnaryNode) (constant.Constant, error) {
	if n.Op == ast.OpSizeof {
		llt := irbuild.LowerType(c.Reg, n.TypeArg)
		nullPtr := constant.NewNull(lltypes.NewPointer(llt))
		one := constant.NewGetElementPtr(llt, nullPtr, constant.NewInt(lltypes.I32, 1))
		n.SetResultType(c.Reg.Basic(etypes.KInt64))
		return constant.NewPtrToInt(one, lltypes.I64), nil
	}
	if n.Op == ast.OpCountof {
		return nil, compileerr.New(compileerr.InternalCompilerError, n.Line(), "'countof' of another global is not supported in a constant initializer")
	}

	operand, err := c.LowerConstExpr(n.Operand)
	if err != nil {
		return nil, err
	}
	t := n.Operand.ResultType()

	switch n.Op {
	case ast.OpNot:
		n.SetResultType(c.Reg.Basic(etypes.KInt1))
		return constant.NewICmp(enum.IPredEQ, operand, constant.NewInt(lltypes.I1, 0)), nil
	case ast.OpSub:
		n.SetResultType(t)
		if isFloatKind(t.Kind) {
			return constant.NewFNeg(operand), nil
		}
		return constant.NewSub(constant.NewInt(operand.Type().(*lltypes.IntType), 0), operand), nil
	default:
		return nil, compileerr.New(compileerr.InvalidCast, n.Line(), "operator %q cannot appear in a constant expression", string(n.Op))
	}
}

func (c *CompilerContext) constBinary(n *ast.BinaryNode) (constant.Constant, error) {
	left, err := c.LowerConstExpr(n.Left)
	if err != nil {
		return nil, err
	}
	right, err := c.LowerConstExpr(n.Right)
	if err != nil {
		return nil, err
	}
	lt := n.Left.ResultType()
	rt := n.Right.ResultType()
	result := c.Reg.Promotion(lt, rt)
	n.SetResultType(result)

	left = constCoerce(left, lt, result, c.Reg)
	right = constCoerce(right, rt, result, c.Reg)

	isFloat := isFloatKind(result.Kind)
	switch n.Op {
	case ast.OpAdd:
		if isFloat {
			return constant.NewFAdd(left, right), nil
		}
		return constant.NewAdd(left, right), nil
	case ast.OpSub:
		if isFloat {
			return constant.NewFSub(left, right), nil
		}
		return constant.NewSub(left, right), nil
	case ast.OpMul:
		if isFloat {
			return constant.NewFMul(left, right), nil
		}
		return constant.NewMul(left, right), nil
	case ast.OpDiv:
		if isFloat {
			return constant.NewFDiv(left, right), nil
		}
		if isUnsignedKind(result.Kind) {
			return constant.NewUDiv(left, right), nil
		}
		return constant.NewSDiv(left, right), nil
	default:
		return nil, compileerr.New(compileerr.InvalidCast, n.Line(), "operator %q cannot appear in a constant expression", string(n.Op))
	}
}

func (c *CompilerContext) constCast(n *ast.CastNode) (constant.Constant, error) {
	operand, err := c.LowerConstExpr(n.Operand)
	if err != nil {
		return nil, err
	}
	src := n.Operand.ResultType()
	dst := n.TargetType
	n.SetResultType(dst)
	if !src.IsNumeric() || !dst.IsNumeric() {
		return nil, compileerr.New(compileerr.InvalidCast, n.Line(), "only numeric casts can appear in a constant expression")
	}
	return constCoerce(operand, src, dst, c.Reg), nil
}

// constCoerce applies the same numeric conversion numericCast does, in
// constant-expression form.
func constCoerce(v constant.Constant, src, dst *etypes.Type, reg *etypes.Registry) constant.Constant {
	if src.Kind == dst.Kind {
		return v
	}
	dstT := irbuild.LowerType(reg, dst)
	switch {
	case isIntegerKind(src.Kind) && isIntegerKind(dst.Kind):
		it := dstT.(*lltypes.IntType)
		srcBits, dstBits := bitWidth(src.Kind), bitWidth(dst.Kind)
		switch {
		case dstBits < srcBits:
			return constant.NewTrunc(v, it)
		case dstBits > srcBits:
			if isUnsignedKind(src.Kind) {
				return constant.NewZExt(v, it)
			}
			return constant.NewSExt(v, it)
		default:
			return v
		}
	case isFloatKind(src.Kind) && isFloatKind(dst.Kind):
		ft := dstT.(*lltypes.FloatType)
		if src.Kind == etypes.KFloat && dst.Kind == etypes.KDouble {
			return constant.NewFPExt(v, ft)
		}
		return constant.NewFPTrunc(v, ft)
	case isIntegerKind(src.Kind) && isFloatKind(dst.Kind):
		ft := dstT.(*lltypes.FloatType)
		if isUnsignedKind(src.Kind) {
			return constant.NewUIToFP(v, ft)
		}
		return constant.NewSIToFP(v, ft)
	case isFloatKind(src.Kind) && isIntegerKind(dst.Kind):
		it := dstT.(*lltypes.IntType)
		if isUnsignedKind(dst.Kind) {
			return constant.NewFPToUI(v, it)
		}
		return constant.NewFPToSI(v, it)
	default:
		return v
	}
}
