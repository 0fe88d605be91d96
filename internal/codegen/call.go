package codegen

import (
	"github.com/llir/llvm/ir"
	"github.com/llir/llvm/ir/constant"
	lltypes "github.com/llir/llvm/ir/types"
	"github.com/llir/llvm/ir/value"

	"eaglec/internal/ast"
	"eaglec/internal/compileerr"
	"eaglec/internal/irbuild"
	"eaglec/internal/memory"
	etypes "eaglec/internal/types"
)

func methodFuncName(className, method string) string {
	return "__egl_m_" + className + "_" + method
}

// interfaceDescriptorType is the runtime shape an interface-typed value
// takes at a call site: {vtable *i8, data *i8}. An interface's concrete
// call-site descriptor is left to the code generator (the type registry
// carries only the abstract 1-byte placeholder); a two-word fat pointer
// is the idiomatic shape for dynamic dispatch over an opaque receiver.
func interfaceDescriptorType() *lltypes.StructType {
	i8ptr := lltypes.NewPointer(lltypes.I8)
	return lltypes.NewStruct(i8ptr, i8ptr)
}

// storeInterfaceDescriptor populates an interface-typed slot from a class
// value's address: the vtable word is read from the class layout's hidden
// leading member (field 0, per LowerType's class-layout comment), the data
// word is the class pointer itself, bitcast to *i8.
func (c *CompilerContext) storeInterfaceDescriptor(slot value.Value, classIRType lltypes.Type, classPtr value.Value) {
	i8ptr := lltypes.NewPointer(lltypes.I8)
	descType := interfaceDescriptorType()

	vtableField := c.B.Block().NewGetElementPtr(classIRType, classPtr, constant.NewInt(lltypes.I32, 0), constant.NewInt(lltypes.I32, 0))
	vtable := c.B.Block().NewLoad(i8ptr, vtableField)

	vtableSlot := c.B.Block().NewGetElementPtr(descType, slot, constant.NewInt(lltypes.I32, 0), constant.NewInt(lltypes.I32, 0))
	dataSlot := c.B.Block().NewGetElementPtr(descType, slot, constant.NewInt(lltypes.I32, 0), constant.NewInt(lltypes.I32, 1))
	c.B.Block().NewStore(vtable, vtableSlot)
	c.B.Block().NewStore(c.B.Block().NewBitCast(classPtr, i8ptr), dataSlot)
}

// lowerCall implements the three calling conventions: plain direct call,
// method call (receiver passed as a bitcast *i8 first argument), and
// closure call (code/env pair unpacked, env passed as the first
// argument), plus interface dispatch through a vtable descriptor.
func (c *CompilerContext) lowerCall(n *ast.CallNode) (value.Value, error) {
	if member, ok := n.Callee.(*ast.MemberNode); ok {
		if call, handled, err := c.lowerMethodOrInterfaceCall(n, member); handled || err != nil {
			return call, err
		}
	}

	calleeVal, err := c.LowerExpr(n.Callee)
	if err != nil {
		return nil, err
	}
	fnType := n.Callee.ResultType()
	if fnType.Kind != etypes.KFunction {
		return nil, compileerr.New(compileerr.TypeMismatch, n.Line(), "callee is not a function")
	}

	args, err := c.lowerArgs(n.Args, fnType.Params)
	if err != nil {
		return nil, err
	}
	n.SetResultType(fnType.Ret)

	var result value.Value
	if fnType.Closure == etypes.ClosureClosed {
		result, err = c.lowerClosureCall(fnType, calleeVal, args)
		if err != nil {
			return nil, err
		}
	} else {
		result = c.B.Block().NewCall(calleeVal, args...)
	}
	c.recordLoadedTransient(n, fnType.Ret, result)
	return result, nil
}

// lowerMethodOrInterfaceCall handles `recv.method(args)`. handled is false
// when the member resolves to a plain field rather than a method, so the
// generic callee-expression path in lowerCall runs instead (e.g. a field
// holding a closure value, called as `obj.callback()`).
func (c *CompilerContext) lowerMethodOrInterfaceCall(n *ast.CallNode, member *ast.MemberNode) (value.Value, bool, error) {
	recvSlot, recvType, err := c.receiverSlot(member.Receiver)
	if err != nil {
		return nil, false, err
	}

	switch recvType.Kind {
	case etypes.KClass:
		fnType, _, ok := c.Reg.LookupMethod(recvType, member.Field)
		if !ok {
			return nil, false, nil
		}
		args, err := c.lowerArgs(n.Args, fnType.Params)
		if err != nil {
			return nil, true, err
		}
		n.SetResultType(fnType.Ret)
		recvI8 := c.B.Block().NewBitCast(recvSlot, lltypes.NewPointer(lltypes.I8))
		callArgs := append([]value.Value{recvI8}, args...)
		fn := c.lookupOrDeclareMethod(recvType.Name, member.Field, fnType)
		result := c.B.Block().NewCall(fn, callArgs...)
		c.recordLoadedTransient(n, fnType.Ret, result)
		return result, true, nil

	case etypes.KInterface:
		offset := c.Reg.InterfaceOffset(recvType, member.Field)
		if offset < 0 {
			return nil, false, nil
		}
		descType := interfaceDescriptorType()
		vtablePtr := c.B.Block().NewGetElementPtr(descType, recvSlot, constant.NewInt(lltypes.I32, 0), constant.NewInt(lltypes.I32, 0))
		dataPtr := c.B.Block().NewGetElementPtr(descType, recvSlot, constant.NewInt(lltypes.I32, 0), constant.NewInt(lltypes.I32, 1))
		vtable := c.B.Block().NewLoad(lltypes.NewPointer(lltypes.I8), vtablePtr)
		data := c.B.Block().NewLoad(lltypes.NewPointer(lltypes.I8), dataPtr)

		vtableArr := c.B.Block().NewBitCast(vtable, lltypes.NewPointer(lltypes.NewPointer(lltypes.I8)))
		slotPtr := c.B.Block().NewGetElementPtr(lltypes.NewPointer(lltypes.I8), vtableArr, constant.NewInt(lltypes.I64, int64(offset)))
		fnSlot := c.B.Block().NewLoad(lltypes.NewPointer(lltypes.I8), slotPtr)

		args := make([]value.Value, len(n.Args))
		for i, a := range n.Args {
			v, err := c.LowerExpr(a)
			if err != nil {
				return nil, true, err
			}
			args[i] = v
		}
		callArgs := append([]value.Value{data}, args...)
		fnTyped := c.B.Block().NewBitCast(fnSlot, lltypes.NewPointer(lltypes.NewFunc(lltypes.Void, paramTypes(callArgs)...)))
		result := c.B.Block().NewCall(fnTyped, callArgs...)
		n.SetResultType(c.Reg.Basic(etypes.KVoid))
		return result, true, nil

	default:
		return nil, false, nil
	}
}

func paramTypes(args []value.Value) []lltypes.Type {
	ts := make([]lltypes.Type, len(args))
	for i, a := range args {
		ts[i] = a.Type()
	}
	return ts
}

// lookupOrDeclareMethod finds a class method's generated function symbol,
// declaring an external reference to it if this compilation unit hasn't
// generated the method's body itself (cross-module call).
func (c *CompilerContext) lookupOrDeclareMethod(className, method string, fnType *etypes.Type) value.Value {
	name := methodFuncName(className, method)
	if f := c.B.Module.Func(name); f != nil {
		return f
	}
	ret := irbuild.LowerType(c.Reg, fnType.Ret)
	params := []*ir.Param{ir.NewParam("self", lltypes.NewPointer(lltypes.I8))}
	for i, p := range fnType.Params {
		params = append(params, ir.NewParam(paramName(i), irbuild.LowerType(c.Reg, p)))
	}
	return c.B.DeclareExternalFunc(name, ret, params...)
}

func paramName(i int) string {
	names := [...]string{"a0", "a1", "a2", "a3", "a4", "a5", "a6", "a7"}
	if i < len(names) {
		return names[i]
	}
	return "a"
}

// lowerClosureCall unpacks a {code, env} value, bitcasts the code pointer
// to a function type with env prepended as its first parameter, and
// calls it.
func (c *CompilerContext) lowerClosureCall(fnType *etypes.Type, closureVal value.Value, args []value.Value) (value.Value, error) {
	code := c.B.Block().NewExtractValue(closureVal, 0)
	env := c.B.Block().NewExtractValue(closureVal, 1)

	ret := irbuild.LowerType(c.Reg, fnType.Ret)
	params := make([]lltypes.Type, 0, len(fnType.Params)+1)
	params = append(params, lltypes.NewPointer(lltypes.I8))
	for _, p := range fnType.Params {
		params = append(params, irbuild.LowerType(c.Reg, p))
	}
	fnPtrType := lltypes.NewPointer(lltypes.NewFunc(ret, params...))
	typedCode := c.B.Block().NewBitCast(code, fnPtrType)

	callArgs := append([]value.Value{env}, args...)
	return c.B.Block().NewCall(typedCode, callArgs...), nil
}

// lowerArgs lowers a call's argument list, coercing each to its declared
// parameter type and consuming a transient/loaded-transient argument
// rather than incrementing it (ownership transfers into the callee).
func (c *CompilerContext) lowerArgs(argNodes []ast.Node, declared []*etypes.Type) ([]value.Value, error) {
	out := make([]value.Value, len(argNodes))
	for i, a := range argNodes {
		v, err := c.LowerExpr(a)
		if err != nil {
			return nil, err
		}
		if i < len(declared) {
			at := a.ResultType()
			dt := declared[i]
			if at.IsNumeric() && dt.IsNumeric() {
				v = c.numericCast(at, dt, v)
			}
			if dt.Kind == etypes.KPointer && dt.Counted {
				if _, consumed := c.consumeIfTransient(a, v); !consumed {
					payload := irbuild.LowerType(c.Reg, dt.Pointee)
					headerType := irbuild.CountedHeaderType(c.Reg, payload)
					memory.EmitIncr(c.B, c.RT, memory.RefcountPtr(c.B, headerType, v))
				}
			}
		}
		out[i] = v
	}
	return out, nil
}

// recordLoadedTransient registers a call's result as a loaded-transient
// when its type owns a reference or a destructor: such a result is
// balanced with __egl_decr_ptr at the next statement boundary unless
// something consumes it first (an assignment, a return, or another call
// argument).
func (c *CompilerContext) recordLoadedTransient(n ast.Node, retType *etypes.Type, v value.Value) {
	if c.Transients == nil || retType == nil {
		return
	}
	owns := (retType.Kind == etypes.KPointer && retType.Counted) ||
		((retType.Kind == etypes.KStruct || retType.Kind == etypes.KClass) && c.Reg.NeedsDestructor(retType))
	if owns {
		c.Transients.AddLoadedTransient(n, v)
	}
}
