package codegen

import (
	"github.com/llir/llvm/ir/constant"
	lltypes "github.com/llir/llvm/ir/types"
	"github.com/llir/llvm/ir/value"

	"eaglec/internal/ast"
	"eaglec/internal/irbuild"
	"eaglec/internal/memory"
	etypes "eaglec/internal/types"
)

// lowerAlloc implements `new T` / `new T(init)`: allocate a counted
// header sized for T's payload, wire the destructor the runtime must
// call when the refcount reaches zero, populate the payload, and record the
// resulting header as the expression's transient (consumed by whatever
// assignment, return, or call argument it feeds into, or balanced by
// __egl_check_ptr at the statement boundary otherwise).
func (c *CompilerContext) lowerAlloc(n *ast.AllocNode) (value.Value, error) {
	payloadType := n.AllocType
	payload := irbuild.LowerType(c.Reg, payloadType)
	headerType := irbuild.CountedHeaderType(c.Reg, payload)

	destructorFn := c.destructorFor(payloadType)

	var initErr error
	header := memory.NewAllocation(c.B, c.RT, headerType, destructorFn, func(payloadPtr value.Value) {
		if n.Init == nil {
			c.zeroFillPayload(payloadType, payloadPtr)
			return
		}
		initErr = c.initPayload(payloadType, payloadPtr, n.Init)
	})
	if initErr != nil {
		return nil, initErr
	}

	n.SetResultType(c.Reg.NewPointer(payloadType, true, false, false))
	memory.RecordTransient(c.Transients, n, header)
	return header, nil
}

// destructorFor selects the function a freshly allocated header's
// destructor slot should hold: a struct/class's own generated triad
// destructor, the generic runtime destructor for a payload that is
// itself a counted/weak pointer or an array of them, or nil when the
// payload owns nothing.
func (c *CompilerContext) destructorFor(t *etypes.Type) value.Value {
	switch {
	case (t.Kind == etypes.KStruct || t.Kind == etypes.KClass) && c.Reg.NeedsDestructor(t):
		triad := c.ensureTriad(t)
		return triad.Destroy

	case t.Kind == etypes.KPointer && (t.Counted || t.Weak):
		return c.RT.CountedDestructor

	case t.Kind == etypes.KArray && c.Reg.NeedsDestructor(t):
		return c.RT.CountedDestructor

	default:
		return nil
	}
}

// ensureTriad returns a struct/class type's generated constructor/copy/
// destructor triad, generating it on first request (lazy generation: a
// type's triad is built the first time something allocates or declares
// it, rather than in a separate dependency-ordered upfront pass).
func (c *CompilerContext) ensureTriad(t *etypes.Type) *memory.Triad {
	if triad, ok := c.Triads.Get(t.Name); ok {
		return triad
	}

	fieldOffset := 0
	var fieldNames []string
	var fieldTypes []*etypes.Type
	if t.Kind == etypes.KStruct {
		d, _ := c.Reg.StructDefOf(t.Name)
		fieldNames, fieldTypes = d.FieldNames, d.FieldTypes
	} else {
		d, _ := c.Reg.ClassDefOf(t.Name)
		fieldNames, fieldTypes = d.FieldNames, d.FieldTypes
		fieldOffset = 1
	}

	for _, ft := range fieldTypes {
		if (ft.Kind == etypes.KStruct || ft.Kind == etypes.KClass) && c.Reg.NeedsDestructor(ft) {
			c.ensureTriad(ft)
		}
	}

	irType := irbuild.LowerType(c.Reg, t).(*lltypes.StructType)
	return memory.GenerateTriad(c.B, c.Reg, c.RT, c.Triads, t.Name, irType, fieldNames, fieldTypes, fieldOffset)
}

// zeroFillPayload fills an allocation's payload with its zero value, the
// same uninitialized-local convention zeroInitSlot uses for declarations.
func (c *CompilerContext) zeroFillPayload(t *etypes.Type, payloadPtr value.Value) {
	switch {
	case (t.Kind == etypes.KStruct || t.Kind == etypes.KClass) && c.Reg.NeedsDestructor(t):
		triad := c.ensureTriad(t)
		c.B.Block().NewCall(triad.Init, payloadPtr)
	case t.Kind == etypes.KArray && c.arrayOwnsMemory(t):
		c.fillArrayNil(t, payloadPtr)
	default:
		llt := irbuild.LowerType(c.Reg, t)
		c.B.Block().NewStore(constant.NewZeroInitializer(llt), payloadPtr)
	}
}

// initPayload stores an explicit `new T(init)` initializer into the
// freshly allocated payload, applying the same struct copy-construction
// or counted-pointer increment a variable declaration's initializer would.
func (c *CompilerContext) initPayload(t *etypes.Type, payloadPtr value.Value, init ast.Node) error {
	rhs, err := c.LowerExpr(init)
	if err != nil {
		return err
	}
	switch {
	case t.Kind == etypes.KPointer && t.Counted:
		_, consumed := c.consumeIfTransient(init, rhs)
		if !consumed {
			payload := irbuild.LowerType(c.Reg, t.Pointee)
			headerType := irbuild.CountedHeaderType(c.Reg, payload)
			memory.EmitIncr(c.B, c.RT, memory.RefcountPtr(c.B, headerType, rhs))
		}
		c.B.Block().NewStore(rhs, payloadPtr)

	case t.Kind == etypes.KPointer && t.Weak:
		memory.AssignWeak(c.B, c.RT, payloadPtr, rhs)

	case (t.Kind == etypes.KStruct || t.Kind == etypes.KClass) && c.Reg.NeedsDestructor(t):
		_, consumed := c.consumeIfTransient(init, rhs)
		triad := c.ensureTriad(t)
		if consumed {
			c.B.Block().NewStore(c.B.Block().NewLoad(irbuild.LowerType(c.Reg, t), rhs), payloadPtr)
		} else {
			c.B.Block().NewCall(triad.Copy, payloadPtr, rhs)
		}

	default:
		c.B.Block().NewStore(rhs, payloadPtr)
	}
	return nil
}
