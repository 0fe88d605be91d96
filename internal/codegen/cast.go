package codegen

import (
	lltypes "github.com/llir/llvm/ir/types"
	"github.com/llir/llvm/ir/value"

	"eaglec/internal/ast"
	"eaglec/internal/compileerr"
	"eaglec/internal/irbuild"
	etypes "eaglec/internal/types"
)

// lowerCast implements an explicit cast: numeric-to-numeric routes
// through widening/narrowing/sign-extension per source/target kind;
// pointer-to-pointer is a reinterpret; pointer<->integer requires the
// integer side; everything else is an error.
func (c *CompilerContext) lowerCast(n *ast.CastNode) (value.Value, error) {
	operand, err := c.LowerExpr(n.Operand)
	if err != nil {
		return nil, err
	}
	src := n.Operand.ResultType()
	dst := n.TargetType
	n.SetResultType(dst)

	switch {
	case src.IsNumeric() && dst.IsNumeric():
		return c.numericCast(src, dst, operand), nil

	case src.Kind == etypes.KPointer && dst.Kind == etypes.KPointer:
		return c.B.Block().NewBitCast(operand, irbuild.LowerType(c.Reg, dst)), nil

	case src.Kind == etypes.KPointer && isIntegerKind(dst.Kind):
		return c.B.Block().NewPtrToInt(operand, irbuild.LowerType(c.Reg, dst).(*lltypes.IntType)), nil

	case isIntegerKind(src.Kind) && dst.Kind == etypes.KPointer:
		return c.B.Block().NewIntToPtr(operand, irbuild.LowerType(c.Reg, dst).(*lltypes.PointerType)), nil

	default:
		return nil, compileerr.New(compileerr.InvalidCast, n.Line(), "cannot cast %s to %s", src.Kind, dst.Kind)
	}
}

func isIntegerKind(k etypes.Kind) bool {
	switch k {
	case etypes.KInt1, etypes.KInt8, etypes.KInt16, etypes.KInt32, etypes.KInt64,
		etypes.KUInt8, etypes.KUInt16, etypes.KUInt32, etypes.KUInt64:
		return true
	default:
		return false
	}
}

func isFloatKind(k etypes.Kind) bool {
	return k == etypes.KFloat || k == etypes.KDouble
}

func isUnsignedKind(k etypes.Kind) bool {
	switch k {
	case etypes.KUInt8, etypes.KUInt16, etypes.KUInt32, etypes.KUInt64:
		return true
	default:
		return false
	}
}

// numericCast dispatches between the four numeric-conversion instruction
// families LLVM distinguishes: int<->int (trunc/zext/sext), float<->float
// (fptrunc/fpext), int->float, float->int.
func (c *CompilerContext) numericCast(src, dst *etypes.Type, v value.Value) value.Value {
	dstT := irbuild.LowerType(c.Reg, dst)

	switch {
	case isIntegerKind(src.Kind) && isIntegerKind(dst.Kind):
		srcBits := bitWidth(src.Kind)
		dstBits := bitWidth(dst.Kind)
		it := dstT.(*lltypes.IntType)
		switch {
		case dstBits < srcBits:
			return c.B.Block().NewTrunc(v, it)
		case dstBits > srcBits:
			if isUnsignedKind(src.Kind) {
				return c.B.Block().NewZExt(v, it)
			}
			return c.B.Block().NewSExt(v, it)
		default:
			return v
		}

	case isFloatKind(src.Kind) && isFloatKind(dst.Kind):
		ft := dstT.(*lltypes.FloatType)
		if src.Kind == etypes.KFloat && dst.Kind == etypes.KDouble {
			return c.B.Block().NewFPExt(v, ft)
		}
		if src.Kind == etypes.KDouble && dst.Kind == etypes.KFloat {
			return c.B.Block().NewFPTrunc(v, ft)
		}
		return v

	case isIntegerKind(src.Kind) && isFloatKind(dst.Kind):
		ft := dstT.(*lltypes.FloatType)
		if isUnsignedKind(src.Kind) {
			return c.B.Block().NewUIToFP(v, ft)
		}
		return c.B.Block().NewSIToFP(v, ft)

	case isFloatKind(src.Kind) && isIntegerKind(dst.Kind):
		it := dstT.(*lltypes.IntType)
		if isUnsignedKind(dst.Kind) {
			return c.B.Block().NewFPToUI(v, it)
		}
		return c.B.Block().NewFPToSI(v, it)

	default:
		return v
	}
}

func bitWidth(k etypes.Kind) int {
	switch k {
	case etypes.KInt1:
		return 1
	case etypes.KInt8, etypes.KUInt8:
		return 8
	case etypes.KInt16, etypes.KUInt16:
		return 16
	case etypes.KInt32, etypes.KUInt32:
		return 32
	case etypes.KInt64, etypes.KUInt64:
		return 64
	default:
		return 0
	}
}
