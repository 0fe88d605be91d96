package codegen

import (
	"github.com/llir/llvm/ir/constant"
	lltypes "github.com/llir/llvm/ir/types"
	"github.com/llir/llvm/ir/value"

	"eaglec/internal/ast"
	"eaglec/internal/compileerr"
	"eaglec/internal/irbuild"
	"eaglec/internal/memory"
	etypes "eaglec/internal/types"
)

// lowerUnary dispatches a unary node by its op code.
func (c *CompilerContext) lowerUnary(n *ast.UnaryNode) (value.Value, error) {
	switch n.Op {
	case ast.OpAddr:
		return c.lowerAddr(n)
	case ast.OpDeref:
		return c.lowerDeref(n)
	case ast.OpSizeof:
		return c.lowerSizeof(n)
	case ast.OpCountof:
		return c.lowerCountof(n)
	case ast.OpNot:
		return c.lowerNot(n)
	case ast.OpUnwrap:
		return c.lowerUnwrap(n)
	case ast.OpPrint:
		return c.lowerPrint(n)
	case ast.OpTransmute:
		return c.lowerTransmute(n)
	default:
		return nil, compileerr.New(compileerr.InternalCompilerError, n.Line(), "unhandled unary op %q", n.Op)
	}
}

// lowerAddr implements `&x`: the address of an l-value.
func (c *CompilerContext) lowerAddr(n *ast.UnaryNode) (value.Value, error) {
	slot, t, err := c.slotOf(n.Operand)
	if err != nil {
		return nil, compileerr.New(compileerr.NonAssignableLHS, n.Line(), "'&' requires an addressable operand")
	}
	n.SetResultType(c.Reg.NewPointer(t, false, false, false))
	return slot, nil
}

// lowerDeref implements `*p`: requires a non-*any pointer; struct/class
// payloads return the inner pointer (keep address), everything else loads.
func (c *CompilerContext) lowerDeref(n *ast.UnaryNode) (value.Value, error) {
	operand, err := c.LowerExpr(n.Operand)
	if err != nil {
		return nil, err
	}
	t := n.Operand.ResultType()
	if t.Kind != etypes.KPointer {
		return nil, compileerr.New(compileerr.InvalidDereference, n.Line(), "cannot dereference a non-pointer")
	}
	if t.Pointee.Kind == etypes.KAny {
		return nil, compileerr.New(compileerr.InvalidDereference, n.Line(), "cannot dereference *any")
	}
	n.SetResultType(t.Pointee)

	payloadPtr := c.payloadAddress(t, operand)
	if t.Pointee.Kind == etypes.KStruct || t.Pointee.Kind == etypes.KClass {
		return payloadPtr, nil
	}
	return c.B.Block().NewLoad(irbuild.LowerType(c.Reg, t.Pointee), payloadPtr), nil
}

// payloadAddress returns the address user dereference should see: for a
// counted/weak pointer, the header's payload field; for a plain pointer,
// the pointer itself.
func (c *CompilerContext) payloadAddress(t *etypes.Type, v value.Value) value.Value {
	if !t.Counted && !t.Weak {
		return v
	}
	payload := irbuild.LowerType(c.Reg, t.Pointee)
	headerType := irbuild.CountedHeaderType(c.Reg, payload)
	return memory.PayloadPtr(c.B, headerType, v)
}

// lowerSizeof implements `sizeof T`: a 64-bit constant equal to T's
// low-level ABI size, computed the same GEP-on-null trick internal/memory
// uses for allocation.
func (c *CompilerContext) lowerSizeof(n *ast.UnaryNode) (value.Value, error) {
	n.SetResultType(c.Reg.Basic(etypes.KUInt64))
	llt := irbuild.LowerType(c.Reg, n.TypeArg)
	nullPtr := constant.NewNull(lltypes.NewPointer(llt))
	sizePtr := c.B.Block().NewGetElementPtr(llt, nullPtr, constant.NewInt(lltypes.I32, 1))
	return c.B.Block().NewPtrToInt(sizePtr, lltypes.I64), nil
}

// lowerCountof implements `countof a`. Arrays here are fixed-layout LLVM
// array values or unsized-array pointers, never a runtime struct carrying
// its own length, so there is no length field to load at runtime.
// `countof` is therefore a compile-time constant equal to the array's
// declared size, valid only for a sized array type; an unsized array
// (declared `T[]`) has no static count and is rejected.
func (c *CompilerContext) lowerCountof(n *ast.UnaryNode) (value.Value, error) {
	_, t, err := c.slotOf(n.Operand)
	if err != nil {
		return nil, compileerr.New(compileerr.InvalidDereference, n.Line(), "'countof' requires an addressable array operand")
	}
	if t.Kind != etypes.KArray {
		return nil, compileerr.New(compileerr.InvalidDereference, n.Line(), "'countof' requires an array operand")
	}
	if t.Count == etypes.ArrayUnknownCount {
		return nil, compileerr.New(compileerr.InvalidDereference, n.Line(), "'countof' requires a sized array; this array has no static count")
	}
	n.SetResultType(c.Reg.Basic(etypes.KInt64))
	return constant.NewInt(lltypes.I64, int64(t.Count)), nil
}

// lowerNot implements `!e`: a test against the operand type's zero,
// negated (test-lowering already yields i1 true-for-nonzero, so `!e`'s
// result is the complement of that).
func (c *CompilerContext) lowerNot(n *ast.UnaryNode) (value.Value, error) {
	operand, err := c.LowerExpr(n.Operand)
	if err != nil {
		return nil, err
	}
	n.SetResultType(c.Reg.Basic(etypes.KInt1))
	nonZero, err := c.testZero(n.Operand.ResultType(), operand, n.Line())
	if err != nil {
		return nil, err
	}
	return c.B.Block().NewXor(nonZero, constant.NewInt(lltypes.I1, 1)), nil
}

// lowerUnwrap implements `unwrap p`: converts a counted/weak pointer to a
// raw pointer to its payload. Errors on an uncounted pointer.
func (c *CompilerContext) lowerUnwrap(n *ast.UnaryNode) (value.Value, error) {
	operand, err := c.LowerExpr(n.Operand)
	if err != nil {
		return nil, err
	}
	t := n.Operand.ResultType()
	if t.Kind != etypes.KPointer || (!t.Counted && !t.Weak) {
		return nil, compileerr.New(compileerr.InvalidDereference, n.Line(), "'unwrap' requires a counted or weak pointer")
	}
	n.SetResultType(c.Reg.NewPointer(t.Pointee, false, false, false))
	payload := irbuild.LowerType(c.Reg, t.Pointee)
	headerType := irbuild.CountedHeaderType(c.Reg, payload)
	return memory.PayloadPtr(c.B, headerType, operand), nil
}

// printFormat maps an expression's result type to the printf format string
// used for `print e`. A raw pointer to byte prints as a C string, whether
// it came from a string literal (KCString) or any other *byte-typed
// expression; every other pointer falls back to the address format.
func printFormat(t *etypes.Type) string {
	switch t.Kind {
	case etypes.KFloat, etypes.KDouble:
		return "%lf\x00"
	case etypes.KInt1:
		return "(Bool) %d\x00"
	case etypes.KInt64, etypes.KUInt64:
		return "%ld\x00"
	case etypes.KCString:
		return "%s\x00"
	case etypes.KPointer:
		if t.Pointee != nil && t.Pointee.Kind == etypes.KUInt8 {
			return "%s\x00"
		}
		return "%p\x00"
	default:
		if isIntegerKind(t.Kind) {
			return "%d\x00"
		}
		return "%p\x00"
	}
}

// lowerPrint implements `print e`: emits a call to the variadic libc printf
// with a format string selected by the operand's kind.
func (c *CompilerContext) lowerPrint(n *ast.UnaryNode) (value.Value, error) {
	operand, err := c.LowerExpr(n.Operand)
	if err != nil {
		return nil, err
	}
	n.SetResultType(c.Reg.Basic(etypes.KVoid))
	fmtStr := c.internStringLiteral(printFormat(n.Operand.ResultType()))
	printf := c.printfFunc()
	c.B.Block().NewCall(printf, fmtStr, operand)
	return nil, nil
}

func (c *CompilerContext) printfFunc() value.Value {
	if f := c.B.Module.Func("printf"); f != nil {
		return f
	}
	fn := c.B.DeclareExternalFunc("printf", lltypes.I32)
	fn.Sig.Variadic = true
	return fn
}

// lowerTransmute implements the `^` operator: `^p` reinterprets a raw
// pointer as a freshly owned counted pointer to the same pointee, by
// allocating a new header whose payload slot is overwritten with a copy
// of the value the raw pointer points at and whose refcount starts at one. This is
// the only reading consistent with the operator's name ("transmute to
// counted") that does not require a pointer's header to already exist.
func (c *CompilerContext) lowerTransmute(n *ast.UnaryNode) (value.Value, error) {
	operand, err := c.LowerExpr(n.Operand)
	if err != nil {
		return nil, err
	}
	t := n.Operand.ResultType()
	if t.Kind != etypes.KPointer || t.Counted || t.Weak {
		return nil, compileerr.New(compileerr.InvalidCast, n.Line(), "'^' requires a raw (uncounted) pointer operand")
	}
	resultType := c.Reg.NewPointer(t.Pointee, true, false, false)
	n.SetResultType(resultType)

	payload := irbuild.LowerType(c.Reg, t.Pointee)
	headerType := irbuild.CountedHeaderType(c.Reg, payload)
	header := memory.NewAllocation(c.B, c.RT, headerType, nil, func(payloadPtr value.Value) {
		c.B.Block().NewStore(c.B.Block().NewLoad(payload, operand), payloadPtr)
	})
	memory.EmitIncr(c.B, c.RT, memory.RefcountPtr(c.B, headerType, header))
	if c.Transients != nil {
		c.Transients.AddTransient(n, header)
	}
	return header, nil
}
