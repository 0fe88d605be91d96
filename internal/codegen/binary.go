package codegen

import (
	"github.com/llir/llvm/ir"
	"github.com/llir/llvm/ir/constant"
	"github.com/llir/llvm/ir/enum"
	lltypes "github.com/llir/llvm/ir/types"
	"github.com/llir/llvm/ir/value"

	"eaglec/internal/ast"
	"eaglec/internal/compileerr"
	"eaglec/internal/irbuild"
	"eaglec/internal/memory"
	etypes "eaglec/internal/types"
)

// lowerBinary dispatches a binary node by its op code.
func (c *CompilerContext) lowerBinary(n *ast.BinaryNode) (value.Value, error) {
	switch n.Op {
	case ast.OpAssign:
		return c.lowerAssign(n)
	case ast.OpIndex:
		return c.lowerIndexLoad(n)
	case ast.OpAnd, ast.OpOr:
		return c.lowerShortCircuit(n)
	case ast.OpAdd, ast.OpSub, ast.OpMul, ast.OpDiv:
		return c.lowerArith(n)
	case ast.OpAddAssn, ast.OpSubAssn, ast.OpMulAssn, ast.OpDivAssn:
		return c.lowerCompoundAssign(n)
	case ast.OpEq, ast.OpNe, ast.OpGt, ast.OpLt, ast.OpGe, ast.OpLe:
		return c.lowerCompare(n)
	default:
		return nil, compileerr.New(compileerr.InternalCompilerError, n.Line(), "unhandled binary op %q", n.Op)
	}
}

// indexSlot resolves `a[i]`'s addressable slot: a two-index GEP for a
// fixed-size array value, a single-index GEP for a pointer or unsized
// array.
func (c *CompilerContext) indexSlot(n *ast.BinaryNode) (value.Value, *etypes.Type, error) {
	base, baseType, err := c.slotOf(n.Left)
	if err != nil {
		base, err = c.LowerExpr(n.Left)
		if err != nil {
			return nil, nil, err
		}
		baseType = n.Left.ResultType()
	}
	idx, err := c.LowerExpr(n.Right)
	if err != nil {
		return nil, nil, err
	}
	idx64 := c.toInt64(n.Right.ResultType(), idx)

	switch baseType.Kind {
	case etypes.KArray:
		elemType := irbuild.LowerType(c.Reg, baseType.Elem)
		if baseType.Count != etypes.ArrayUnknownCount {
			arrType := irbuild.LowerType(c.Reg, baseType)
			ptr := c.B.Block().NewGetElementPtr(arrType, base, constant.NewInt(lltypes.I32, 0), idx64)
			return ptr, baseType.Elem, nil
		}
		ptr := c.B.Block().NewGetElementPtr(elemType, base, idx64)
		return ptr, baseType.Elem, nil

	case etypes.KPointer:
		elemType := irbuild.LowerType(c.Reg, baseType.Pointee)
		ptr := c.B.Block().NewGetElementPtr(elemType, base, idx64)
		return ptr, baseType.Pointee, nil

	default:
		return nil, nil, compileerr.New(compileerr.InvalidDereference, n.Line(), "cannot index a non-array, non-pointer value")
	}
}

func (c *CompilerContext) lowerIndexLoad(n *ast.BinaryNode) (value.Value, error) {
	slot, elemType, err := c.indexSlot(n)
	if err != nil {
		return nil, err
	}
	n.SetResultType(elemType)
	if elemType.Kind == etypes.KStruct || elemType.Kind == etypes.KClass {
		return slot, nil
	}
	return c.B.Block().NewLoad(irbuild.LowerType(c.Reg, elemType), slot), nil
}

// toInt64 coerces an index operand to i64.
func (c *CompilerContext) toInt64(t *etypes.Type, v value.Value) value.Value {
	if t.Kind == etypes.KInt64 || t.Kind == etypes.KUInt64 {
		return v
	}
	i64 := lltypes.I64
	if isUnsignedKind(t.Kind) {
		return c.B.Block().NewZExt(v, i64)
	}
	return c.B.Block().NewSExt(v, i64)
}

// lowerAssign implements `dst = rhs`, consulting the assignment policy
// table by destination type.
func (c *CompilerContext) lowerAssign(n *ast.BinaryNode) (value.Value, error) {
	slot, dstType, err := c.slotOf(n.Left)
	if err != nil {
		return nil, err
	}
	rhs, err := c.LowerExpr(n.Right)
	if err != nil {
		return nil, err
	}
	n.SetResultType(dstType)

	switch {
	case dstType.Kind == etypes.KPointer && dstType.Counted:
		_, consumed := c.consumeIfTransient(n.Right, rhs)
		payload := irbuild.LowerType(c.Reg, dstType.Pointee)
		headerType := irbuild.CountedHeaderType(c.Reg, payload)
		memory.AssignCounted(c.B, c.RT, headerType, slot, rhs, consumed)

	case dstType.Kind == etypes.KPointer && dstType.Weak:
		memory.AssignWeak(c.B, c.RT, slot, rhs)

	case (dstType.Kind == etypes.KStruct || dstType.Kind == etypes.KClass) && c.Reg.NeedsDestructor(dstType):
		_, consumed := c.consumeIfTransient(n.Right, rhs)
		if triad, ok := c.Triads.Get(dstType.Name); ok && !consumed {
			memory.AssignStruct(c.B, triad, slot, rhs)
		} else {
			c.B.Block().NewStore(c.B.Block().NewLoad(irbuild.LowerType(c.Reg, dstType), rhs), slot)
		}

	case dstType.Kind == etypes.KInterface && n.Right.ResultType().Kind == etypes.KClass:
		c.storeInterfaceDescriptor(slot, irbuild.LowerType(c.Reg, n.Right.ResultType()), rhs)

	default:
		memory.AssignPlain(c.B, slot, rhs)
	}
	return rhs, nil
}

// lowerShortCircuit implements `&&`/`||`: two blocks joined by a phi of
// width two, with each evaluated branch's transient table flushed at its
// own block.
func (c *CompilerContext) lowerShortCircuit(n *ast.BinaryNode) (value.Value, error) {
	left, err := c.LowerExpr(n.Left)
	if err != nil {
		return nil, err
	}
	leftTest, err := c.testZero(n.Left.ResultType(), left, n.Line())
	if err != nil {
		return nil, err
	}
	c.flushTransients()

	fn := c.B.CurrentFunc()
	rhsBlock := fn.NewBlock("")
	mergeBlock := fn.NewBlock("")
	shortCircuitBlock := c.B.Block()

	if n.Op == ast.OpAnd {
		shortCircuitBlock.NewCondBr(leftTest, rhsBlock, mergeBlock)
	} else {
		shortCircuitBlock.NewCondBr(leftTest, mergeBlock, rhsBlock)
	}

	c.B.SetBlock(rhsBlock)
	right, err := c.LowerExpr(n.Right)
	if err != nil {
		return nil, err
	}
	rightTest, err := c.testZero(n.Right.ResultType(), right, n.Line())
	if err != nil {
		return nil, err
	}
	c.flushTransients()
	rhsEnd := c.B.Block()
	rhsEnd.NewBr(mergeBlock)

	c.B.SetBlock(mergeBlock)
	n.SetResultType(c.Reg.Basic(etypes.KInt1))
	phi := mergeBlock.NewPhi(
		ir.NewIncoming(leftTest, shortCircuitBlock),
		ir.NewIncoming(rightTest, rhsEnd),
	)
	return phi, nil
}

// flushTransients runs the same balancing sweep EndStatement does, in the
// middle of a statement: a short-circuit branch boundary is a statement
// boundary for transient-flushing purposes, while the whole `&&`/`||`
// expression is still one statement.
func (c *CompilerContext) flushTransients() {
	if c.constMode || c.Transients == nil {
		return
	}
	c.Transients.Flush(
		func(v value.Value) {
			memory.EmitCheckPtr(c.B, c.RT, memory.RefcountPtr(c.B, headerTypeOf(v), v))
		},
		func(v value.Value) {
			memory.EmitDecr(c.B, c.RT, memory.RefcountPtr(c.B, headerTypeOf(v), v))
		},
	)
}

// lowerArith implements `+ - * /`, including pointer arithmetic: the
// non-pointer operand must be integer, pointer arithmetic never
// dereferences, and subtraction negates the index.
func (c *CompilerContext) lowerArith(n *ast.BinaryNode) (value.Value, error) {
	left, err := c.LowerExpr(n.Left)
	if err != nil {
		return nil, err
	}
	right, err := c.LowerExpr(n.Right)
	if err != nil {
		return nil, err
	}
	lt, rt := n.Left.ResultType(), n.Right.ResultType()

	if lt.Kind == etypes.KPointer {
		v, err := c.pointerArith(n.Line(), n.Op, lt, left, rt, right)
		if err != nil {
			return nil, err
		}
		n.SetResultType(lt)
		return v, nil
	}
	if rt.Kind == etypes.KPointer {
		return nil, compileerr.New(compileerr.InvalidPointerArithmetic, n.Line(), "pointer operand must be on the left")
	}

	result := c.Reg.Promotion(lt, rt)
	if result.Kind == etypes.KNone {
		return nil, compileerr.New(compileerr.TypeMismatch, n.Line(), "incompatible operand types")
	}
	n.SetResultType(result)
	l := c.numericCast(lt, result, left)
	r := c.numericCast(rt, result, right)
	return c.emitArith(n.Op, result, l, r), nil
}

func (c *CompilerContext) pointerArith(line int, op byte, lt *etypes.Type, left value.Value, rt *etypes.Type, right value.Value) (value.Value, error) {
	if op == ast.OpMul || op == ast.OpDiv {
		return nil, compileerr.New(compileerr.InvalidPointerArithmetic, line, "pointers only support + and -")
	}
	if !isIntegerKind(rt.Kind) {
		return nil, compileerr.New(compileerr.InvalidPointerArithmetic, line, "pointer arithmetic requires an integer operand")
	}
	if lt.Pointee.Kind == etypes.KAny {
		return nil, compileerr.New(compileerr.InvalidPointerArithmetic, line, "cannot perform arithmetic on *any")
	}
	idx := c.toInt64(rt, right)
	if op == ast.OpSub {
		idx = c.B.Block().NewSub(constant.NewInt(lltypes.I64, 0), idx)
	}
	elemType := irbuild.LowerType(c.Reg, lt.Pointee)
	return c.B.Block().NewGetElementPtr(elemType, left, idx), nil
}

func (c *CompilerContext) emitArith(op byte, t *etypes.Type, l, r value.Value) value.Value {
	blk := c.B.Block()
	if isFloatKind(t.Kind) {
		switch op {
		case ast.OpAdd:
			return blk.NewFAdd(l, r)
		case ast.OpSub:
			return blk.NewFSub(l, r)
		case ast.OpMul:
			return blk.NewFMul(l, r)
		default:
			return blk.NewFDiv(l, r)
		}
	}
	switch op {
	case ast.OpAdd:
		return blk.NewAdd(l, r)
	case ast.OpSub:
		return blk.NewSub(l, r)
	case ast.OpMul:
		return blk.NewMul(l, r)
	default:
		if isUnsignedKind(t.Kind) {
			return blk.NewUDiv(l, r)
		}
		return blk.NewSDiv(l, r)
	}
}

// lowerCompoundAssign implements `+= -= *= /=` as a plain load-modify-
// store against the existing slot, bypassing the assignment policy table
// entirely since the slot's object identity never changes.
func (c *CompilerContext) lowerCompoundAssign(n *ast.BinaryNode) (value.Value, error) {
	slot, dstType, err := c.slotOf(n.Left)
	if err != nil {
		return nil, err
	}
	current := c.B.Block().NewLoad(irbuild.LowerType(c.Reg, dstType), slot)
	rhs, err := c.LowerExpr(n.Right)
	if err != nil {
		return nil, err
	}
	rt := n.Right.ResultType()

	var plainOp byte
	switch n.Op {
	case ast.OpAddAssn:
		plainOp = ast.OpAdd
	case ast.OpSubAssn:
		plainOp = ast.OpSub
	case ast.OpMulAssn:
		plainOp = ast.OpMul
	default:
		plainOp = ast.OpDiv
	}

	n.SetResultType(dstType)
	if dstType.Kind == etypes.KPointer {
		updated, err := c.pointerArith(n.Line(), plainOp, dstType, current, rt, rhs)
		if err != nil {
			return nil, err
		}
		c.B.Block().NewStore(updated, slot)
		return updated, nil
	}

	r := c.numericCast(rt, dstType, rhs)
	updated := c.emitArith(plainOp, dstType, current, r)
	c.B.Block().NewStore(updated, slot)
	return updated, nil
}

// lowerCompare implements `e n g l G L`: promote, then an ordered float
// compare or a signed/unsigned integer compare by kind, result always
// bool.
func (c *CompilerContext) lowerCompare(n *ast.BinaryNode) (value.Value, error) {
	left, err := c.LowerExpr(n.Left)
	if err != nil {
		return nil, err
	}
	right, err := c.LowerExpr(n.Right)
	if err != nil {
		return nil, err
	}
	lt, rt := n.Left.ResultType(), n.Right.ResultType()
	n.SetResultType(c.Reg.Basic(etypes.KInt1))

	if lt.Kind == etypes.KPointer || rt.Kind == etypes.KPointer {
		pred := pointerPredicate(n.Op)
		return c.B.Block().NewICmp(pred, left, right), nil
	}

	result := c.Reg.Promotion(lt, rt)
	if result.Kind == etypes.KNone {
		return nil, compileerr.New(compileerr.TypeMismatch, n.Line(), "incompatible operand types")
	}
	l := c.numericCast(lt, result, left)
	r := c.numericCast(rt, result, right)

	if isFloatKind(result.Kind) {
		return c.B.Block().NewFCmp(floatPredicate(n.Op), l, r), nil
	}
	return c.B.Block().NewICmp(intPredicate(n.Op, isUnsignedKind(result.Kind)), l, r), nil
}

func pointerPredicate(op byte) enum.IPred {
	if op == ast.OpNe {
		return enum.IPredNE
	}
	return enum.IPredEQ
}

func floatPredicate(op byte) enum.FPred {
	switch op {
	case ast.OpEq:
		return enum.FPredOEQ
	case ast.OpNe:
		return enum.FPredONE
	case ast.OpGt:
		return enum.FPredOGT
	case ast.OpLt:
		return enum.FPredOLT
	case ast.OpGe:
		return enum.FPredOGE
	default:
		return enum.FPredOLE
	}
}

func intPredicate(op byte, unsigned bool) enum.IPred {
	switch op {
	case ast.OpEq:
		return enum.IPredEQ
	case ast.OpNe:
		return enum.IPredNE
	case ast.OpGt:
		if unsigned {
			return enum.IPredUGT
		}
		return enum.IPredSGT
	case ast.OpLt:
		if unsigned {
			return enum.IPredULT
		}
		return enum.IPredSLT
	case ast.OpGe:
		if unsigned {
			return enum.IPredUGE
		}
		return enum.IPredSGE
	default:
		if unsigned {
			return enum.IPredULE
		}
		return enum.IPredSLE
	}
}
