package codegen

import (
	"github.com/llir/llvm/ir/constant"
	lltypes "github.com/llir/llvm/ir/types"
	"github.com/llir/llvm/ir/value"

	"eaglec/internal/ast"
	"eaglec/internal/compileerr"
	"eaglec/internal/irbuild"
	etypes "eaglec/internal/types"
)

// memberSlot resolves `x.f`'s addressable slot via struct_member_index,
// handling both a struct/class held by value (whose slotOf already
// returns its address) and a pointer receiver (auto-dereferenced through
// its payload address, counted or not).
func (c *CompilerContext) memberSlot(n *ast.MemberNode) (value.Value, *etypes.Type, error) {
	recvSlot, recvType, err := c.receiverSlot(n.Receiver)
	if err != nil {
		return nil, nil, err
	}
	if recvType.Kind != etypes.KStruct && recvType.Kind != etypes.KClass {
		return nil, nil, compileerr.New(compileerr.UnknownMember, n.Line(), "member access requires a struct or class")
	}

	idx, fieldType := c.Reg.StructMemberIndex(recvType, n.Field)
	if idx == -2 {
		return nil, nil, compileerr.New(compileerr.InternalCompilerError, n.Line(), "type %q has not been laid out", recvType.Name)
	}
	if idx == -1 {
		return nil, nil, compileerr.New(compileerr.UnknownMember, n.Line(), "%q has no member %q", recvType.Name, n.Field)
	}

	irType := irbuild.LowerType(c.Reg, recvType)
	fp := c.B.Block().NewGetElementPtr(irType, recvSlot,
		constant.NewInt(lltypes.I32, 0), constant.NewInt(lltypes.I32, int64(idx)))
	return fp, fieldType, nil
}

// receiverSlot resolves a member-access receiver to the address of the
// struct/class value it names, auto-dereferencing a pointer receiver
// through its payload (`p.f` on a `*Struct` reads the same as `(*p).f`).
func (c *CompilerContext) receiverSlot(n ast.Node) (value.Value, *etypes.Type, error) {
	slot, t, err := c.slotOf(n)
	if err == nil {
		if t.Kind == etypes.KPointer {
			return c.payloadAddress(t, mustLoadPointer(c, n, slot)), t.Pointee, nil
		}
		return slot, t, nil
	}

	v, lowerErr := c.LowerExpr(n)
	if lowerErr != nil {
		return nil, nil, lowerErr
	}
	t = n.ResultType()
	if t.Kind == etypes.KPointer {
		return c.payloadAddress(t, v), t.Pointee, nil
	}
	return v, t, nil
}

// mustLoadPointer loads a pointer-typed slot's value (slotOf returns the
// address of the pointer variable itself, not the pointer value).
func mustLoadPointer(c *CompilerContext, n ast.Node, slot value.Value) value.Value {
	t := n.ResultType()
	llt := irbuild.LowerType(c.Reg, t)
	return c.B.Block().NewLoad(llt, slot)
}

// lowerMember implements `x.f`: a field load (or kept address for an
// aggregate field), or, when the name resolves to a method rather than a
// field, the receiver's address typed as the method. Nothing is recorded
// for a following call: call.go recognizes a MemberNode callee and
// re-derives the receiver itself.
func (c *CompilerContext) lowerMember(n *ast.MemberNode) (value.Value, error) {
	recvSlot, recvType, err := c.receiverSlot(n.Receiver)
	if err != nil {
		return nil, err
	}
	if recvType.Kind == etypes.KStruct || recvType.Kind == etypes.KClass {
		if fnType, _, ok := c.Reg.LookupMethod(recvType, n.Field); ok {
			// A bare method reference outside of a call position still
			// needs a resultant type; callers that actually invoke it go
			// through call.go's MemberNode-aware path instead of here.
			n.SetResultType(fnType)
			return recvSlot, nil
		}
	}

	slot, fieldType, err := c.memberSlot(n)
	if err != nil {
		return nil, err
	}
	n.SetResultType(fieldType)
	if fieldType.Kind == etypes.KStruct || fieldType.Kind == etypes.KClass {
		return slot, nil
	}
	return c.B.Block().NewLoad(irbuild.LowerType(c.Reg, fieldType), slot), nil
}
